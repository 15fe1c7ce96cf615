package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/mangrovewatch/mangrove/internal/database/migrations"
	"github.com/mangrovewatch/mangrove/internal/setup/config"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bunotel"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
)

const (
	applicationName = "mangrove"
	pingTimeout     = 5 * time.Second
)

// ErrPendingMigrations is returned when the schema is behind the binary.
var ErrPendingMigrations = errors.New("database migrations are pending, run `db migrate` first")

// Options controls how Open prepares the connection.
type Options struct {
	// PhoneRegion is the default region used when normalizing phone numbers.
	PhoneRegion string
	// RequireSchema fails Open when any migration is unapplied.
	RequireSchema bool
}

// Client exposes the models, services and raw handle of one connection pool.
type Client interface {
	Model() *Repository
	Service() *Service
	DB() *bun.DB
	Migrator() *migrate.Migrator
	Close() error
}

type client struct {
	db       *bun.DB
	repo     *Repository
	service  *Service
	migrator *migrate.Migrator
	logger   *zap.Logger
}

// Open connects to PostgreSQL, verifies the server answers and wires the
// repository and service layers on top of the pool.
func Open(ctx context.Context, cfg *config.PostgreSQL, opts Options, logger *zap.Logger) (Client, error) {
	useSonicJSON()

	db := bun.NewDB(openPool(cfg), pgdialect.New())
	db.AddQueryHook(NewHook(logger))
	db.AddQueryHook(bunotel.NewQueryHook(bunotel.WithDBName(cfg.DBName)))

	c := &client{
		db:       db,
		migrator: migrate.NewMigrator(db, migrations.Migrations),
		logger:   logger,
	}

	if err := c.verify(ctx, opts.RequireSchema); err != nil {
		_ = db.Close()
		return nil, err
	}

	c.repo = NewRepository(db, logger)
	c.service = NewService(db, c.repo, opts.PhoneRegion, logger)

	logger.Info("Connected to PostgreSQL",
		zap.String("addr", poolAddr(cfg)),
		zap.String("database", cfg.DBName))

	return c, nil
}

func openPool(cfg *config.PostgreSQL) *sql.DB {
	pool := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithAddr(poolAddr(cfg)),
		pgdriver.WithUser(cfg.User),
		pgdriver.WithPassword(cfg.Password),
		pgdriver.WithDatabase(cfg.DBName),
		pgdriver.WithInsecure(true),
		pgdriver.WithApplicationName(applicationName),
	))

	pool.SetMaxOpenConns(cfg.MaxOpenConns)
	pool.SetMaxIdleConns(cfg.MaxIdleConns)
	pool.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Minute)
	pool.SetConnMaxIdleTime(time.Duration(cfg.MaxIdleTime) * time.Minute)

	return pool
}

func poolAddr(cfg *config.PostgreSQL) string {
	return net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
}

// verify pings the server and, when asked, rejects a schema with unapplied migrations.
func (c *client) verify(ctx context.Context, requireSchema bool) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := c.db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("failed to reach database: %w", err)
	}

	if !requireSchema {
		return nil
	}

	ms, err := c.migrator.MigrationsWithStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to check migration status: %w", err)
	}

	if unapplied := ms.Unapplied(); len(unapplied) > 0 {
		return fmt.Errorf("%w: %s", ErrPendingMigrations, unapplied)
	}

	return nil
}

func (c *client) Model() *Repository          { return c.repo }
func (c *client) Service() *Service           { return c.service }
func (c *client) DB() *bun.DB                 { return c.db }
func (c *client) Migrator() *migrate.Migrator { return c.migrator }

// Close releases the pool.
func (c *client) Close() error {
	if err := c.db.Close(); err != nil {
		c.logger.Error("Failed to close database connection", zap.Error(err))
		return err
	}

	c.logger.Info("Database connection closed")

	return nil
}
