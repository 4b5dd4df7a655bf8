// Package resolve maps observations onto canonical players and merges
// their fields.
package resolve

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/benashkar/golf-tracker/internal/metrics"
	"github.com/benashkar/golf-tracker/internal/player"
	"github.com/benashkar/golf-tracker/internal/resilience"
)

// Options controls a single resolution.
type Options struct {
	// Force lets the observation overwrite populated bio fields.
	Force bool
	// MatchOnly merges into existing players and never creates one.
	MatchOnly bool
}

// Result describes what a resolution did.
type Result struct {
	Player  *player.Player
	Created bool
	// Updated is set when an existing player changed.
	Updated bool
	// Skipped is set when the observation carried no usable identity.
	Skipped bool
	// Unmatched is set when MatchOnly found no existing player.
	Unmatched bool
	// MatchedBy names the key that found the player: "<system>", "name", or "".
	MatchedBy string
	Fields    []player.Field
}

// Action labels the result for logs and metrics.
func (r Result) Action() string {
	switch {
	case r.Skipped:
		return "skipped"
	case r.Unmatched:
		return "unmatched"
	case r.Created:
		return "created"
	case r.Updated:
		return "updated"
	default:
		return "unchanged"
	}
}

// Resolver handles player identity resolution.
type Resolver struct {
	store   player.Store
	metrics *metrics.Metrics
	now     func() time.Time
	retry   resilience.RetryPolicy
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMetrics counts resolutions by action.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// WithNow overrides the clock used for provenance.
func WithNow(fn func() time.Time) Option {
	return func(r *Resolver) { r.now = fn }
}

// NewResolver creates a Resolver. A unit of work that loses a race, either
// an identity key taken by a concurrent create or a row updated since it
// was read, is re-run on fresh state so the lost write becomes a merge.
func NewResolver(store player.Store, opts ...Option) *Resolver {
	r := &Resolver{
		store: store,
		now:   time.Now,
		retry: resilience.RetryPolicy{
			MaxRetries: 3,
			ShouldRetry: func(err error) bool {
				return errors.Is(err, player.ErrConflict)
			},
			OnRetry: resilience.RetryLogger("resolve", "resolve_and_merge"),
		},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// ResolveAndMerge finds the player obs describes, creating one when
// nothing matches, and merges obs into it. Lookup order:
//  1. the observing source's external id
//  2. any other external id, by system name
//  3. exact first and last name
//
// The first hit wins.
func (r *Resolver) ResolveAndMerge(ctx context.Context, obs player.Observation, opts Options) (Result, error) {
	if !obs.HasIdentity() {
		zap.L().Debug("resolve: skipping observation without identity",
			zap.String("source", obs.Source),
			zap.String("source_url", obs.SourceURL),
		)
		r.metrics.IncResolve("skipped")
		return Result{Skipped: true}, nil
	}

	var res Result
	err := resilience.Do(ctx, r.retry, func(ctx context.Context) error {
		res = Result{}
		return r.store.InTx(ctx, func(ctx context.Context, tx player.Tx) error {
			return r.resolveInTx(ctx, tx, obs, opts, &res)
		})
	})
	if err != nil {
		return Result{}, eris.Wrapf(err, "resolve: %s", describe(obs))
	}

	r.metrics.IncResolve(res.Action())
	var id int64
	if res.Player != nil {
		id = res.Player.ID
	}
	zap.L().Debug("resolve: done",
		zap.String("action", res.Action()),
		zap.Int64("player_id", id),
		zap.String("matched_by", res.MatchedBy),
		zap.Int("fields", len(res.Fields)),
	)
	return res, nil
}

func (r *Resolver) resolveInTx(ctx context.Context, tx player.Tx, obs player.Observation, opts Options, res *Result) error {
	existing, matchedBy, err := Lookup(ctx, tx, obs)
	if err != nil {
		return err
	}

	if existing == nil && opts.MatchOnly {
		res.Unmatched = true
		return nil
	}
	if existing == nil {
		p := player.FromObservation(obs, r.now())
		if err := tx.Create(ctx, p); err != nil {
			return err
		}
		res.Player = p
		res.Created = true
		res.Fields = p.Fields()
		return nil
	}

	before := existing.Clone()
	fields := player.Merge(existing, obs, player.MergeOptions{Force: opts.Force, Now: r.now})
	res.Player = existing
	res.MatchedBy = matchedBy
	res.Fields = fields
	if len(fields) == 0 && !player.IdentityChanged(before, existing) {
		return nil
	}
	if err := tx.Update(ctx, existing); err != nil {
		return err
	}
	res.Updated = true
	return nil
}

// Lookup finds the player obs refers to and names the key that matched.
func Lookup(ctx context.Context, tx player.Tx, obs player.Observation) (*player.Player, string, error) {
	for _, k := range obs.IdentityKeys() {
		p, err := tx.FindByExternalID(ctx, k.System, k.ID)
		if err != nil {
			return nil, "", eris.Wrapf(err, "resolve: lookup %s=%s", k.System, k.ID)
		}
		if p != nil {
			return p, k.System, nil
		}
	}
	if obs.HasName() {
		first, last := strings.TrimSpace(obs.FirstName), strings.TrimSpace(obs.LastName)
		p, err := tx.FindByName(ctx, first, last)
		if err != nil {
			return nil, "", eris.Wrapf(err, "resolve: lookup name %s %s", first, last)
		}
		if p != nil {
			return p, "name", nil
		}
	}
	return nil, "", nil
}

func describe(obs player.Observation) string {
	name := strings.TrimSpace(obs.FirstName + " " + obs.LastName)
	for _, k := range obs.IdentityKeys() {
		if name == "" {
			return k.System + "=" + k.ID
		}
		return name + " (" + k.System + "=" + k.ID + ")"
	}
	return name
}
