package runlog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/benashkar/golf-tracker/internal/metrics"
)

// finishTimeout bounds the final write of a run record.
const finishTimeout = 10 * time.Second

// Run is the handle a job uses to report progress. Counters are advisory
// and safe for concurrent use.
type Run struct {
	mu  sync.Mutex
	rec Record
}

// ID returns the run id.
func (r *Run) ID() string { return r.rec.ID }

// AddProcessed adds n to the processed counter.
func (r *Run) AddProcessed(n int) {
	r.mu.Lock()
	r.rec.RecordsProcessed += n
	r.mu.Unlock()
}

// AddCreated adds n to the created counter.
func (r *Run) AddCreated(n int) {
	r.mu.Lock()
	r.rec.RecordsCreated += n
	r.mu.Unlock()
}

// AddUpdated adds n to the updated counter.
func (r *Run) AddUpdated(n int) {
	r.mu.Lock()
	r.rec.RecordsUpdated += n
	r.mu.Unlock()
}

// AddError records msg. Once MaxErrors are held further messages are
// counted but not kept.
func (r *Run) AddError(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.rec.Errors) >= MaxErrors {
		r.rec.ErrorsDropped++
		return
	}
	r.rec.Errors = append(r.rec.Errors, msg)
}

// Errorf records a formatted error message.
func (r *Run) Errorf(format string, args ...any) {
	r.AddError(fmt.Sprintf(format, args...))
}

// ErrorCount returns every error recorded, kept or dropped.
func (r *Run) ErrorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rec.Errors) + r.rec.ErrorsDropped
}

// Snapshot returns a copy of the current record.
func (r *Run) Snapshot() Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.rec
	rec.Errors = append([]string(nil), r.rec.Errors...)
	return rec
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithNow overrides the clock.
func WithNow(fn func() time.Time) Option {
	return func(t *Tracker) { t.now = fn }
}

// WithMetrics counts completed runs.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

// Tracker opens and closes run records.
type Tracker struct {
	store   Store
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewTracker creates a Tracker writing to store.
func NewTracker(store Store, opts ...Option) *Tracker {
	t := &Tracker{store: store, now: time.Now}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Start inserts a started record and returns its handle.
func (t *Tracker) Start(ctx context.Context, kind string, scope Scope) (*Run, error) {
	run := &Run{rec: Record{
		ID:        uuid.NewString(),
		Kind:      kind,
		Scope:     scope,
		Status:    StatusStarted,
		StartedAt: t.now().UTC(),
	}}
	rec := run.Snapshot()
	if err := t.store.InsertRun(ctx, &rec); err != nil {
		return nil, eris.Wrapf(err, "runlog: start %s", kind)
	}
	zap.L().Info("run started",
		zap.String("run_id", run.ID()),
		zap.String("kind", kind),
		zap.String("league", scope.LeagueCode),
	)
	return run, nil
}

// DecideStatus applies the completion rules: a job error fails the run;
// otherwise no errors is success, errors with progress is partial, and
// errors without progress is failed.
func DecideStatus(processed, errCount int, jobErr error) Status {
	switch {
	case jobErr != nil:
		return StatusFailed
	case errCount == 0:
		return StatusSuccess
	case processed > 0:
		return StatusPartial
	default:
		return StatusFailed
	}
}

// Complete closes the run. The summary is valid even when the final
// store write fails; that failure is returned alongside it. Completing
// an already closed run returns its summary unchanged.
func (t *Tracker) Complete(ctx context.Context, run *Run, jobErr error) (Summary, error) {
	run.mu.Lock()
	if run.rec.Status.Terminal() {
		rec := run.rec
		run.mu.Unlock()
		return Summarize(rec), nil
	}
	if jobErr != nil {
		msg := jobErr.Error()
		if len(run.rec.Errors) >= MaxErrors {
			run.rec.Errors[MaxErrors-1] = msg
			run.rec.ErrorsDropped++
		} else {
			run.rec.Errors = append(run.rec.Errors, msg)
		}
		run.rec.ErrorTrace = eris.ToString(jobErr, true)
	}
	errCount := len(run.rec.Errors) + run.rec.ErrorsDropped
	run.rec.Status = DecideStatus(run.rec.RecordsProcessed, errCount, jobErr)
	done := t.now().UTC()
	dur := done.Sub(run.rec.StartedAt).Seconds()
	run.rec.CompletedAt = &done
	run.rec.DurationSeconds = &dur
	run.mu.Unlock()

	rec := run.Snapshot()
	t.metrics.IncRun(rec.Kind, string(rec.Status))

	fields := []zap.Field{
		zap.String("run_id", rec.ID),
		zap.String("kind", rec.Kind),
		zap.String("status", string(rec.Status)),
		zap.Int("processed", rec.RecordsProcessed),
		zap.Int("created", rec.RecordsCreated),
		zap.Int("updated", rec.RecordsUpdated),
		zap.Int("errors", errCount),
		zap.Float64("duration_seconds", dur),
	}
	if rec.Status == StatusFailed {
		zap.L().Error("run failed", append(fields, zap.Error(jobErr))...)
	} else {
		zap.L().Info("run completed", fields...)
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()
	if err := t.store.FinishRun(wctx, &rec); err != nil {
		return Summarize(rec), eris.Wrapf(err, "runlog: finish run %s", rec.ID)
	}
	return Summarize(rec), nil
}

// Do runs fn inside a run of the given kind. The record is closed even
// when fn returns an error or panics. The returned error is fn's error,
// or the tracker's own failure when fn succeeded.
func (t *Tracker) Do(ctx context.Context, kind string, scope Scope, fn func(ctx context.Context, run *Run) error) (Summary, error) {
	run, err := t.Start(ctx, kind, scope)
	if err != nil {
		return Summary{Kind: kind, Status: StatusFailed, Errors: []string{err.Error()}}, err
	}

	jobErr := runGuarded(ctx, run, fn)
	sum, cerr := t.Complete(ctx, run, jobErr)
	if jobErr != nil {
		return sum, jobErr
	}
	return sum, cerr
}

func runGuarded(ctx context.Context, run *Run, fn func(ctx context.Context, run *Run) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("runlog: job panicked: %v", r)
		}
	}()
	return fn(ctx, run)
}
