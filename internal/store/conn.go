package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/benashkar/golf-tracker/internal/db"
)

type scannable interface {
	Scan(dest ...any) error
}

// conn is the query surface shared by the Postgres and SQLite stores.
// Queries are written with $N placeholders in argument order.
type conn interface {
	exec(ctx context.Context, q string, args ...any) (int64, error)
	queryRow(ctx context.Context, q string, args ...any) scannable
	query(ctx context.Context, q string, args []any, each func(r scannable) error) error
	noRows(err error) bool
	unique(err error) bool
}

type pgConn struct {
	q db.Querier
}

func (c pgConn) exec(ctx context.Context, q string, args ...any) (int64, error) {
	tag, err := c.q.Exec(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (c pgConn) queryRow(ctx context.Context, q string, args ...any) scannable {
	return c.q.QueryRow(ctx, q, args...)
}

func (c pgConn) query(ctx context.Context, q string, args []any, each func(r scannable) error) error {
	rows, err := c.q.Query(ctx, q, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := each(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (pgConn) noRows(err error) bool { return errors.Is(err, pgx.ErrNoRows) }
func (pgConn) unique(err error) bool { return db.IsUniqueViolation(err) }

// sqlQuerier is satisfied by *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqliteConn struct {
	q sqlQuerier
}

var dollarParam = regexp.MustCompile(`\$\d+`)

func rebind(q string) string {
	return dollarParam.ReplaceAllString(q, "?")
}

func (c sqliteConn) exec(ctx context.Context, q string, args ...any) (int64, error) {
	res, err := c.q.ExecContext(ctx, rebind(q), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (c sqliteConn) queryRow(ctx context.Context, q string, args ...any) scannable {
	return c.q.QueryRowContext(ctx, rebind(q), args...)
}

func (c sqliteConn) query(ctx context.Context, q string, args []any, each func(r scannable) error) error {
	rows, err := c.q.QueryContext(ctx, rebind(q), args...)
	if err != nil {
		return err
	}
	defer rows.Close() //nolint:errcheck
	for rows.Next() {
		if err := each(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (sqliteConn) noRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }

func (sqliteConn) unique(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
