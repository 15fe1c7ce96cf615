package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/mangrovewatch/mangrove/cmd/db/commands"
	"github.com/mangrovewatch/mangrove/internal/database"
	"github.com/mangrovewatch/mangrove/internal/setup/config"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	deps, err := setupDependencies()
	if err != nil {
		return fmt.Errorf("failed to setup dependencies: %w", err)
	}
	defer deps.DB.Close()

	app := &cli.Command{
		Name:  "db",
		Usage: "Database management tool",
		Commands: append(
			commands.MigrationCommands(deps),
			commands.LedgerCommands(deps)...,
		),
	}

	return app.Run(context.Background(), os.Args)
}

// setupDependencies initializes the database connection and migrator.
func setupDependencies() (*commands.CLIDependencies, error) {
	// Load full configuration
	cfg, _, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Create development logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	// Connect to database without auto-migrating so migrations stay explicit
	db, err := database.Open(context.Background(), &cfg.Common.PostgreSQL, database.Options{
		PhoneRegion: cfg.API.Registration.DefaultRegion,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &commands.CLIDependencies{
		DB:       db,
		Migrator: db.Migrator(),
		Logger:   logger,
	}, nil
}
