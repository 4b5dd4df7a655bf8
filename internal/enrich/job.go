// Package enrich runs the bio waterfall over stored players and merges
// what it finds back through the resolver.
package enrich

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/benashkar/golf-tracker/internal/player"
	"github.com/benashkar/golf-tracker/internal/resolve"
	"github.com/benashkar/golf-tracker/internal/runlog"
	"github.com/benashkar/golf-tracker/internal/waterfall"
)

// RunKind labels enrichment run records.
const RunKind = "bio_enrichment"

// Waterfall finds bio fields for one player.
type Waterfall interface {
	Enrich(ctx context.Context, subject waterfall.Subject, needs []player.Field) (*waterfall.Hit, error)
	Stats() waterfall.Stats
}

// Resolver merges an observation into the canonical store.
type Resolver interface {
	ResolveAndMerge(ctx context.Context, obs player.Observation, opts resolve.Options) (resolve.Result, error)
}

// Options narrows one enrichment run.
type Options struct {
	// Limit caps how many players are selected. Zero means no cap.
	Limit int
	// Force selects every player and lets hits overwrite populated fields.
	Force bool
	// PlayerID restricts the run to one player.
	PlayerID int64
}

// Report summarizes a run beyond the run record counters.
type Report struct {
	Selected   int             `json:"selected"`
	CooledDown int             `json:"cooled_down"`
	Waterfall  waterfall.Stats `json:"waterfall"`
}

// Job enriches players that are missing target fields.
type Job struct {
	store    player.Store
	wf       Waterfall
	resolver Resolver
	targets  []player.Field
	cooldown Cooldown
}

// Option configures a Job.
type Option func(*Job)

// WithCooldown skips players the waterfall recently missed.
func WithCooldown(c Cooldown) Option {
	return func(j *Job) { j.cooldown = c }
}

// NewJob creates an enrichment job for targets.
func NewJob(store player.Store, wf Waterfall, resolver Resolver, targets []player.Field, opts ...Option) *Job {
	j := &Job{
		store:    store,
		wf:       wf,
		resolver: resolver,
		targets:  targets,
		cooldown: NoCooldown{},
	}
	for _, o := range opts {
		o(j)
	}
	return j
}

// Run enriches the selected players one at a time. A failure on one player
// becomes a run error; the run itself fails only when players cannot be
// listed or the context is cancelled.
func (j *Job) Run(ctx context.Context, run *runlog.Run, opts Options) (Report, error) {
	var rep Report
	players, err := j.selectPlayers(ctx, opts)
	if err != nil {
		return rep, err
	}
	rep.Selected = len(players)
	zap.L().Info("enrich: players selected",
		zap.String("run_id", run.ID()),
		zap.Int("players", len(players)),
		zap.Bool("force", opts.Force),
	)

	for _, p := range players {
		if err := ctx.Err(); err != nil {
			return rep, eris.Wrap(err, "enrich: run")
		}
		if !opts.Force && j.coolingDown(ctx, p.ID) {
			rep.CooledDown++
			continue
		}
		if err := j.enrichOne(ctx, run, p, opts); err != nil {
			return rep, err
		}
	}

	rep.Waterfall = j.wf.Stats()
	return rep, nil
}

func (j *Job) selectPlayers(ctx context.Context, opts Options) ([]*player.Player, error) {
	if opts.PlayerID != 0 {
		p, err := j.store.GetPlayer(ctx, opts.PlayerID)
		if err != nil {
			return nil, eris.Wrapf(err, "enrich: get player %d", opts.PlayerID)
		}
		if p == nil {
			return nil, eris.Errorf("enrich: player %d not found", opts.PlayerID)
		}
		return []*player.Player{p}, nil
	}
	players, err := j.store.ListNeedingBio(ctx, player.ListFilter{
		Fields: j.targets,
		All:    opts.Force,
		Limit:  opts.Limit,
	})
	if err != nil {
		return nil, eris.Wrap(err, "enrich: list players")
	}
	return players, nil
}

// enrichOne returns an error only for cancellation.
func (j *Job) enrichOne(ctx context.Context, run *runlog.Run, p *player.Player, opts Options) error {
	needs := p.Missing(j.targets)
	if opts.Force {
		needs = j.targets
	}

	hit, err := j.wf.Enrich(ctx, waterfall.SubjectFromPlayer(p), needs)
	if err != nil {
		return err
	}
	run.AddProcessed(1)

	if hit == nil {
		if err := j.cooldown.Mark(ctx, p.ID); err != nil {
			zap.L().Warn("enrich: cooldown mark failed", zap.Int64("player_id", p.ID), zap.Error(err))
		}
		return nil
	}

	res, err := j.resolver.ResolveAndMerge(ctx, hit.Observation, resolve.Options{Force: opts.Force})
	if err != nil {
		zap.L().Warn("enrich: merge failed",
			zap.Int64("player_id", p.ID),
			zap.String("source", hit.Source),
			zap.Error(err),
		)
		run.Errorf("player %d (%s): %v", p.ID, p.FullName(), err)
		return nil
	}
	if res.Updated {
		run.AddUpdated(1)
	}
	if err := j.cooldown.Clear(ctx, p.ID); err != nil {
		zap.L().Warn("enrich: cooldown clear failed", zap.Int64("player_id", p.ID), zap.Error(err))
	}
	zap.L().Debug("enrich: player merged",
		zap.Int64("player_id", p.ID),
		zap.String("source", hit.Source),
		zap.String("action", res.Action()),
		zap.Int("fields", len(res.Fields)),
	)
	return nil
}

func (j *Job) coolingDown(ctx context.Context, id int64) bool {
	active, err := j.cooldown.Active(ctx, id)
	if err != nil {
		zap.L().Warn("enrich: cooldown lookup failed", zap.Int64("player_id", id), zap.Error(err))
		return false
	}
	return active
}
