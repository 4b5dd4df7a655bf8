package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/benashkar/golf-tracker/internal/db"
	"github.com/benashkar/golf-tracker/internal/player"
	"github.com/benashkar/golf-tracker/internal/runlog"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	now     func() time.Time
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(5)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close, now: time.Now}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS players (
	id                          BIGSERIAL PRIMARY KEY,
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
	bio_last_updated            TIMESTAMPTZ,
	created_at                  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at                  TIMESTAMPTZ NOT NULL DEFAULT now(),
	version                     BIGINT NOT NULL DEFAULT 0
);

ALTER TABLE players ADD COLUMN IF NOT EXISTS version BIGINT NOT NULL DEFAULT 0;

CREATE INDEX IF NOT EXISTS idx_players_name ON players(first_name, last_name);

CREATE TABLE IF NOT EXISTS player_identifiers (
	player_id  BIGINT NOT NULL REFERENCES players(id) ON DELETE CASCADE,
	system     TEXT NOT NULL,
	identifier TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (player_id, system),
	UNIQUE (system, identifier)
);

CREATE TABLE IF NOT EXISTS player_field_provenance (
	player_id   BIGINT NOT NULL REFERENCES players(id) ON DELETE CASCADE,
	field       TEXT NOT NULL,
	source      TEXT NOT NULL,
	source_url  TEXT,
	recorded_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (player_id, field)
);

CREATE TABLE IF NOT EXISTS run_log (
	id                TEXT PRIMARY KEY,
	kind              TEXT NOT NULL,
	league_code       TEXT,
	tournament_id     TEXT,
	player_id         BIGINT,
	source_url        TEXT,
	status            TEXT NOT NULL,
	records_processed INTEGER NOT NULL DEFAULT 0,
	records_created   INTEGER NOT NULL DEFAULT 0,
	records_updated   INTEGER NOT NULL DEFAULT 0,
	errors            TEXT NOT NULL DEFAULT '[]',
	errors_dropped    INTEGER NOT NULL DEFAULT 0,
	error_trace       TEXT,
	started_at        TIMESTAMPTZ NOT NULL,
	completed_at      TIMESTAMPTZ,
	duration_seconds  DOUBLE PRECISION
);

CREATE INDEX IF NOT EXISTS idx_run_log_started ON run_log(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_run_log_kind_status ON run_log(kind, status);
`

func (s *PostgresStore) c() conn { return pgConn{q: s.pool} }

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// InTx runs fn in one Postgres transaction.
func (s *PostgresStore) InTx(ctx context.Context, fn func(ctx context.Context, tx player.Tx) error) error {
	return db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &playerTx{c: pgConn{q: tx}, now: s.now})
	})
}

func (s *PostgresStore) GetPlayer(ctx context.Context, id int64) (*player.Player, error) {
	return getPlayer(ctx, s.c(), id)
}

func (s *PostgresStore) ListNeedingBio(ctx context.Context, f player.ListFilter) ([]*player.Player, error) {
	return listNeedingBio(ctx, s.c(), f)
}

func (s *PostgresStore) InsertRun(ctx context.Context, r *runlog.Record) error {
	return insertRun(ctx, s.c(), r)
}

func (s *PostgresStore) FinishRun(ctx context.Context, r *runlog.Record) error {
	return finishRun(ctx, s.c(), r)
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*runlog.Record, error) {
	return getRun(ctx, s.c(), id)
}

func (s *PostgresStore) ListRuns(ctx context.Context, f runlog.Filter) ([]runlog.Record, error) {
	return listRuns(ctx, s.c(), f)
}
