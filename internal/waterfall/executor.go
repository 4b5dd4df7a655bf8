package waterfall

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/benashkar/golf-tracker/internal/extract"
	"github.com/benashkar/golf-tracker/internal/metrics"
	"github.com/benashkar/golf-tracker/internal/player"
	"github.com/benashkar/golf-tracker/internal/resilience"
)

// Stats counts waterfall outcomes across Enrich calls.
type Stats struct {
	Processed   int            `json:"processed"`
	Enriched    int            `json:"enriched"`
	NotFound    int            `json:"not_found"`
	Skipped     int            `json:"skipped"`
	Errors      int            `json:"errors"`
	SourcesUsed map[string]int `json:"sources_used"`
}

// Executor walks the configured sources for one subject at a time.
type Executor struct {
	cfg      *Config
	registry *Registry
	breakers *resilience.Breakers
	metrics  *metrics.Metrics
	now      func() time.Time

	mu    sync.Mutex
	stats Stats
}

// Option configures an Executor.
type Option func(*Executor)

// WithMetrics counts lookups per source and result.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithNow sets the clock used for observation timestamps.
func WithNow(fn func() time.Time) Option {
	return func(e *Executor) { e.now = fn }
}

// WithBreakers shares a breaker set between executors.
func WithBreakers(b *resilience.Breakers) Option {
	return func(e *Executor) { e.breakers = b }
}

// NewExecutor creates a waterfall executor.
func NewExecutor(cfg *Config, registry *Registry, opts ...Option) *Executor {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	e := &Executor{
		cfg:      cfg,
		registry: registry,
		now:      time.Now,
		stats:    Stats{SourcesUsed: make(map[string]int)},
	}
	for _, o := range opts {
		o(e)
	}
	if e.breakers == nil {
		e.breakers = resilience.NewBreakers(cfg.Breaker.CircuitConfig())
	}
	return e
}

// Enrich consults each enabled source in order and returns the first result
// that contains at least one field in needs. Later sources are not called
// once a source hits. A nil Hit with a nil error means every source came up
// empty. Source failures are logged and skipped; only a cancelled context
// is returned as an error.
func (e *Executor) Enrich(ctx context.Context, subject Subject, needs []player.Field) (*Hit, error) {
	e.count(func(s *Stats) { s.Processed++ })
	if len(needs) == 0 {
		e.count(func(s *Stats) { s.Skipped++ })
		return nil, nil
	}

	log := zap.L().With(
		zap.Int64("player_id", subject.PlayerID),
		zap.String("player", subject.FullName()),
	)

	for _, sc := range e.cfg.Enabled() {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "waterfall: enrich")
		}

		src := e.registry.Get(sc.Name)
		if src == nil {
			log.Warn("waterfall: source not registered", zap.String("source", sc.Name))
			continue
		}

		doc, err := resilience.ExecuteVal(ctx, e.breakers.Get(sc.Name), func(ctx context.Context) (*Document, error) {
			return src.Lookup(ctx, subject, needs)
		})
		switch {
		case errors.Is(err, resilience.ErrCircuitOpen):
			log.Debug("waterfall: source circuit open", zap.String("source", sc.Name))
			e.metrics.IncLookup(sc.Name, "open")
			continue
		case err != nil:
			if ctx.Err() != nil {
				return nil, eris.Wrap(ctx.Err(), "waterfall: enrich")
			}
			log.Warn("waterfall: source lookup failed", zap.String("source", sc.Name), zap.Error(err))
			e.metrics.IncLookup(sc.Name, "error")
			e.count(func(s *Stats) { s.Errors++ })
			continue
		case doc == nil:
			e.metrics.IncLookup(sc.Name, "empty")
			continue
		}

		bio := Extracted(doc)
		found := fieldsIn(bio, needs)
		if len(found) == 0 {
			log.Debug("waterfall: source had no needed fields", zap.String("source", sc.Name), zap.String("url", doc.URL))
			e.metrics.IncLookup(sc.Name, "miss")
			continue
		}

		e.metrics.IncLookup(sc.Name, "hit")
		e.count(func(s *Stats) {
			s.Enriched++
			s.SourcesUsed[sc.Name]++
		})
		log.Info("waterfall: source hit",
			zap.String("source", sc.Name),
			zap.String("url", doc.URL),
			zap.Int("fields", len(bio.Fields())),
		)
		return &Hit{
			Source: sc.Name,
			URL:    doc.URL,
			Found:  found,
			Observation: player.Observation{
				Source:      sc.Name,
				SourceURL:   doc.URL,
				ExternalIDs: subject.ExternalIDs,
				FirstName:   subject.FirstName,
				LastName:    subject.LastName,
				Bio:         bio,
				ObservedAt:  e.now().UTC(),
			},
		}, nil
	}

	e.count(func(s *Stats) { s.NotFound++ })
	log.Debug("waterfall: no source had needed fields")
	return nil, nil
}

// Extracted combines a document's structured fields with what the text
// extractor finds. Structured fields win.
func Extracted(doc *Document) player.Bio {
	bio := doc.Bio.Clone()
	if len(doc.Text) > 0 {
		bio.Fill(extract.Bio(doc.Text...))
	}
	return bio
}

func fieldsIn(bio player.Bio, needs []player.Field) []player.Field {
	var out []player.Field
	for _, f := range needs {
		if bio.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

func (e *Executor) count(fn func(s *Stats)) {
	e.mu.Lock()
	fn(&e.stats)
	e.mu.Unlock()
}

// Stats returns a copy of the counters.
func (e *Executor) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.stats
	out.SourcesUsed = make(map[string]int, len(e.stats.SourcesUsed))
	for k, v := range e.stats.SourcesUsed {
		out.SourcesUsed[k] = v
	}
	return out
}

// Breakers exposes the breaker set for status reporting.
func (e *Executor) Breakers() *resilience.Breakers { return e.breakers }
