// Package runlog tracks the lifecycle of a scraping or enrichment job as a
// RunRecord that always ends in a terminal state.
package runlog

import (
	"context"
	"time"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusStarted Status = "started"
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusPartial || s == StatusFailed
}

// MaxErrors bounds the error strings kept on a record.
const MaxErrors = 10

// Scope narrows what a run worked on. All fields are optional.
type Scope struct {
	LeagueCode   string `json:"league_code,omitempty"`
	TournamentID string `json:"tournament_id,omitempty"`
	PlayerID     *int64 `json:"player_id,omitempty"`
	SourceURL    string `json:"source_url,omitempty"`
}

// Record is one row of the run log.
type Record struct {
	ID               string     `json:"id"`
	Kind             string     `json:"kind"`
	Scope            Scope      `json:"scope"`
	Status           Status     `json:"status"`
	RecordsProcessed int        `json:"records_processed"`
	RecordsCreated   int        `json:"records_created"`
	RecordsUpdated   int        `json:"records_updated"`
	Errors           []string   `json:"errors,omitempty"`
	ErrorsDropped    int        `json:"errors_dropped,omitempty"`
	ErrorTrace       string     `json:"error_trace,omitempty"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	DurationSeconds  *float64   `json:"duration_seconds,omitempty"`
}

// Filter specifies criteria for listing runs.
type Filter struct {
	Status Status
	Kind   string
	Since  time.Time
	Limit  int
}

// Store persists run records.
type Store interface {
	InsertRun(ctx context.Context, r *Record) error
	FinishRun(ctx context.Context, r *Record) error
	GetRun(ctx context.Context, id string) (*Record, error)
	ListRuns(ctx context.Context, f Filter) ([]Record, error)
}

// Summary is the outcome of a run as reported to callers.
type Summary struct {
	RunID            string   `json:"run_id"`
	Kind             string   `json:"kind"`
	Status           Status   `json:"status"`
	RecordsProcessed int      `json:"records_processed"`
	RecordsCreated   int      `json:"records_created"`
	RecordsUpdated   int      `json:"records_updated"`
	Errors           []string `json:"errors"`
}

// Summarize projects a record onto its Summary.
func Summarize(r Record) Summary {
	errs := r.Errors
	if errs == nil {
		errs = []string{}
	}
	return Summary{
		RunID:            r.ID,
		Kind:             r.Kind,
		Status:           r.Status,
		RecordsProcessed: r.RecordsProcessed,
		RecordsCreated:   r.RecordsCreated,
		RecordsUpdated:   r.RecordsUpdated,
		Errors:           errs,
	}
}
