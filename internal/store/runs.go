package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/benashkar/golf-tracker/internal/runlog"
)

const runColumns = `id, kind, league_code, tournament_id, player_id, source_url, status,
	records_processed, records_created, records_updated, errors, errors_dropped, error_trace,
	started_at, completed_at, duration_seconds`

func insertRun(ctx context.Context, c conn, r *runlog.Record) error {
	errs, err := marshalErrors(r.Errors)
	if err != nil {
		return err
	}
	_, err = c.exec(ctx,
		`INSERT INTO run_log (`+runColumns+`) VALUES (`+placeholders(1, 16)+`)`,
		r.ID, r.Kind, nullable(r.Scope.LeagueCode), nullable(r.Scope.TournamentID), r.Scope.PlayerID,
		nullable(r.Scope.SourceURL), string(r.Status),
		r.RecordsProcessed, r.RecordsCreated, r.RecordsUpdated, errs, r.ErrorsDropped, nullable(r.ErrorTrace),
		r.StartedAt, r.CompletedAt, r.DurationSeconds,
	)
	return eris.Wrapf(err, "store: insert run %s", r.ID)
}

func finishRun(ctx context.Context, c conn, r *runlog.Record) error {
	errs, err := marshalErrors(r.Errors)
	if err != nil {
		return err
	}
	n, err := c.exec(ctx,
		`UPDATE run_log SET status = $1, records_processed = $2, records_created = $3, records_updated = $4,
		 errors = $5, errors_dropped = $6, error_trace = $7, completed_at = $8, duration_seconds = $9
		 WHERE id = $10`,
		string(r.Status), r.RecordsProcessed, r.RecordsCreated, r.RecordsUpdated,
		errs, r.ErrorsDropped, nullable(r.ErrorTrace), r.CompletedAt, r.DurationSeconds,
		r.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "store: finish run %s", r.ID)
	}
	if n == 0 {
		return eris.Errorf("store: run not found: %s", r.ID)
	}
	return nil
}

func getRun(ctx context.Context, c conn, id string) (*runlog.Record, error) {
	r, err := scanRun(c.queryRow(ctx, `SELECT `+runColumns+` FROM run_log WHERE id = $1`, id))
	if err != nil {
		if c.noRows(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "store: get run %s", id)
	}
	return r, nil
}

func listRuns(ctx context.Context, c conn, f runlog.Filter) ([]runlog.Record, error) {
	q := `SELECT ` + runColumns + ` FROM run_log WHERE 1=1`
	var args []any
	if f.Status != "" {
		args = append(args, string(f.Status))
		q += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if f.Kind != "" {
		args = append(args, f.Kind)
		q += fmt.Sprintf(` AND kind = $%d`, len(args))
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since.UTC())
		q += fmt.Sprintf(` AND started_at >= $%d`, len(args))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	q += fmt.Sprintf(` ORDER BY started_at DESC LIMIT $%d`, len(args))

	var runs []runlog.Record
	err := c.query(ctx, q, args, func(r scannable) error {
		rec, err := scanRun(r)
		if err != nil {
			return err
		}
		runs = append(runs, *rec)
		return nil
	})
	return runs, eris.Wrap(err, "store: list runs")
}

func scanRun(row scannable) (*runlog.Record, error) {
	var r runlog.Record
	var league, tournament, sourceURL, errs, trace *string
	var status string
	err := row.Scan(&r.ID, &r.Kind, &league, &tournament, &r.Scope.PlayerID, &sourceURL, &status,
		&r.RecordsProcessed, &r.RecordsCreated, &r.RecordsUpdated, &errs, &r.ErrorsDropped, &trace,
		&r.StartedAt, &r.CompletedAt, &r.DurationSeconds)
	if err != nil {
		return nil, err
	}
	r.Status = runlog.Status(status)
	r.Scope.LeagueCode = deref(league)
	r.Scope.TournamentID = deref(tournament)
	r.Scope.SourceURL = deref(sourceURL)
	r.ErrorTrace = deref(trace)
	if errs != nil && *errs != "" {
		if err := json.Unmarshal([]byte(*errs), &r.Errors); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal run errors")
		}
	}
	return &r, nil
}

func marshalErrors(errs []string) (string, error) {
	if errs == nil {
		errs = []string{}
	}
	b, err := json.Marshal(errs)
	if err != nil {
		return "", eris.Wrap(err, "store: marshal run errors")
	}
	return string(b), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
