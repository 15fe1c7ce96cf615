package commands

import (
	"errors"

	"github.com/mangrovewatch/mangrove/internal/database"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
)

var (
	ErrNameRequired     = errors.New("NAME argument required")
	ErrLedgerMismatches = errors.New("ledger mismatches found")
)

// CLIDependencies holds the common dependencies needed by CLI commands.
type CLIDependencies struct {
	DB       database.Client
	Migrator *migrate.Migrator
	Logger   *zap.Logger
}
