// Package store persists players and run records in Postgres, SQLite, or
// memory.
package store

import (
	"context"

	"github.com/benashkar/golf-tracker/internal/player"
	"github.com/benashkar/golf-tracker/internal/runlog"
)

// Store defines the persistence interface for roster and enrichment jobs.
type Store interface {
	player.Store
	runlog.Store

	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*Memory)(nil)
)
