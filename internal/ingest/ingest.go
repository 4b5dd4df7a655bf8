// Package ingest runs a list of observation loaders through the resolver
// inside a run, recording each failed item and moving on.
package ingest

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/benashkar/golf-tracker/internal/player"
	"github.com/benashkar/golf-tracker/internal/resolve"
	"github.com/benashkar/golf-tracker/internal/runlog"
)

// Resolver merges one observation into the canonical store.
type Resolver interface {
	ResolveAndMerge(ctx context.Context, obs player.Observation, opts resolve.Options) (resolve.Result, error)
}

// Item is one unit of ingest work. Load does whatever fetching the item
// needs and returns the observation it produced.
type Item struct {
	Label string
	Load  func(ctx context.Context) (player.Observation, error)
}

// Static wraps an already built observation.
func Static(label string, obs player.Observation) Item {
	return Item{
		Label: label,
		Load:  func(context.Context) (player.Observation, error) { return obs, nil },
	}
}

// Run loads and resolves every item in order. A failed item becomes a run
// error and the loop continues; only cancellation stops it early.
func Run(ctx context.Context, run *runlog.Run, r Resolver, items []Item, opts resolve.Options) error {
	for i, it := range items {
		if err := ctx.Err(); err != nil {
			return eris.Wrapf(err, "ingest: stopped after %d of %d items", i, len(items))
		}

		obs, err := it.Load(ctx)
		if err != nil {
			fail(run, it.Label, "load", err)
			continue
		}
		res, err := r.ResolveAndMerge(ctx, obs, opts)
		if err != nil {
			fail(run, it.Label, "resolve", err)
			continue
		}

		run.AddProcessed(1)
		switch {
		case res.Created:
			run.AddCreated(1)
		case res.Updated:
			run.AddUpdated(1)
		}
	}
	return nil
}

func fail(run *runlog.Run, label, stage string, err error) {
	zap.L().Warn("ingest: item failed",
		zap.String("run_id", run.ID()),
		zap.String("item", label),
		zap.String("stage", stage),
		zap.Error(err),
	)
	run.Errorf("%s: %v", label, err)
}
