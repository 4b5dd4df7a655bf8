package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/benashkar/golf-tracker/internal/player"
	"github.com/benashkar/golf-tracker/internal/runlog"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
// Writes are serialized through a single connection.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS players (
	id                          INTEGER PRIMARY KEY AUTOINCREMENT,
	first_name                  TEXT NOT NULL DEFAULT '',
	last_name                   TEXT NOT NULL DEFAULT '',
	birth_date                  DATE,
	country                     TEXT,
	high_school_name            TEXT,
	high_school_city            TEXT,
	high_school_state           TEXT,
	high_school_graduation_year INTEGER,
	hometown_city               TEXT,
	hometown_state              TEXT,
	hometown_country            TEXT,
	birthplace_city             TEXT,
	birthplace_state            TEXT,
	birthplace_country          TEXT,
	college_name                TEXT,
	college_graduation_year     INTEGER,
	wikipedia_url               TEXT,
	bio_source_name             TEXT,
	bio_source_url              TEXT,
	bio_last_updated            DATETIME,
	created_at                  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at                  DATETIME NOT NULL DEFAULT (datetime('now')),
	version                     INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_players_name ON players(first_name, last_name);

CREATE TABLE IF NOT EXISTS player_identifiers (
	player_id  INTEGER NOT NULL REFERENCES players(id) ON DELETE CASCADE,
	system     TEXT NOT NULL,
	identifier TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (player_id, system),
	UNIQUE (system, identifier)
);

CREATE TABLE IF NOT EXISTS player_field_provenance (
	player_id   INTEGER NOT NULL REFERENCES players(id) ON DELETE CASCADE,
	field       TEXT NOT NULL,
	source      TEXT NOT NULL,
	source_url  TEXT,
	recorded_at DATETIME NOT NULL,
	PRIMARY KEY (player_id, field)
);

CREATE TABLE IF NOT EXISTS run_log (
	id                TEXT PRIMARY KEY,
	kind              TEXT NOT NULL,
	league_code       TEXT,
	tournament_id     TEXT,
	player_id         INTEGER,
	source_url        TEXT,
	status            TEXT NOT NULL,
	records_processed INTEGER NOT NULL DEFAULT 0,
	records_created   INTEGER NOT NULL DEFAULT 0,
	records_updated   INTEGER NOT NULL DEFAULT 0,
	errors            TEXT NOT NULL DEFAULT '[]',
	errors_dropped    INTEGER NOT NULL DEFAULT 0,
	error_trace       TEXT,
	started_at        DATETIME NOT NULL,
	completed_at      DATETIME,
	duration_seconds  REAL
);

CREATE INDEX IF NOT EXISTS idx_run_log_started ON run_log(started_at);
CREATE INDEX IF NOT EXISTS idx_run_log_kind_status ON run_log(kind, status);
`

func (s *SQLiteStore) c() conn { return sqliteConn{q: s.db} }

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InTx runs fn in one SQLite transaction.
func (s *SQLiteStore) InTx(ctx context.Context, fn func(ctx context.Context, tx player.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(ctx, &playerTx{c: sqliteConn{q: tx}, now: s.now}); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit tx")
}

func (s *SQLiteStore) GetPlayer(ctx context.Context, id int64) (*player.Player, error) {
	return getPlayer(ctx, s.c(), id)
}

func (s *SQLiteStore) ListNeedingBio(ctx context.Context, f player.ListFilter) ([]*player.Player, error) {
	return listNeedingBio(ctx, s.c(), f)
}

func (s *SQLiteStore) InsertRun(ctx context.Context, r *runlog.Record) error {
	return insertRun(ctx, s.c(), r)
}

func (s *SQLiteStore) FinishRun(ctx context.Context, r *runlog.Record) error {
	return finishRun(ctx, s.c(), r)
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*runlog.Record, error) {
	return getRun(ctx, s.c(), id)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, f runlog.Filter) ([]runlog.Record, error) {
	return listRuns(ctx, s.c(), f)
}
