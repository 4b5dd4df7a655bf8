package main

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/benashkar/golf-tracker/internal/ingest"
	"github.com/benashkar/golf-tracker/internal/pga"
	"github.com/benashkar/golf-tracker/internal/resolve"
	"github.com/benashkar/golf-tracker/internal/runlog"
	"github.com/benashkar/golf-tracker/internal/store"
)

// rosterRunKind labels directory ingest run records.
const rosterRunKind = "roster"

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Ingest tour player directories",
	Long:  "Fetches the active player directory of each tour from the PGA Tour orchestrator and resolves every player into the store. Each tour runs as its own job.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("roster"); err != nil {
			return err
		}
		ctx := cmd.Context()

		tours, _ := cmd.Flags().GetStringSlice("tours")
		if len(tours) == 0 {
			tours = cfg.PGA.Tours
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sums, runErr := runRoster(ctx, st, tours)
		if err := printJSON(cmd.OutOrStdout(), sums); err != nil {
			return err
		}
		return runErr
	},
}

func init() {
	rosterCmd.Flags().StringSlice("tours", nil, "tour codes to ingest, e.g. R,H,S (default from config)")
	rootCmd.AddCommand(rosterCmd)
}

// runRoster ingests each tour concurrently, one fetch client and one run
// record per tour. A failed tour does not stop the others.
func runRoster(ctx context.Context, st store.Store, codes []string) ([]runlog.Summary, error) {
	tours := make([]pga.Tour, 0, len(codes))
	for _, code := range codes {
		t, err := pga.LookupTour(code)
		if err != nil {
			return nil, err
		}
		tours = append(tours, t)
	}

	m, _ := sharedMetrics()
	tracker := runlog.NewTracker(st, runlog.WithMetrics(m))
	resolver := resolve.NewResolver(st, resolve.WithMetrics(m))

	sums := make([]runlog.Summary, len(tours))
	var g errgroup.Group
	for i, tour := range tours {
		g.Go(func() error {
			client := pga.New(newFetcher("pga_"+strings.ToLower(tour.Code), cfg.Fetch.MinDelay()), cfg.PGA.GraphQLURL, cfg.PGA.APIKey)
			scope := runlog.Scope{LeagueCode: tour.League, SourceURL: tour.ProfileURL}

			sum, err := tracker.Do(ctx, rosterRunKind, scope, func(ctx context.Context, run *runlog.Run) error {
				entries, err := client.Directory(ctx, tour)
				if err != nil {
					return err
				}
				items := make([]ingest.Item, 0, len(entries))
				for _, e := range entries {
					items = append(items, ingest.Static(e.FirstName+" "+e.LastName, client.Observation(tour, e)))
				}
				return ingest.Run(ctx, run, resolver, items, resolve.Options{})
			})
			sums[i] = sum
			if err != nil {
				zap.L().Error("roster: tour failed", zap.String("tour", tour.Code), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	var failed []string
	for i, s := range sums {
		if s.Status == runlog.StatusFailed {
			failed = append(failed, tours[i].Code)
		}
	}
	if len(failed) > 0 {
		return sums, eris.Errorf("roster: %d of %d tours failed: %s", len(failed), len(tours), strings.Join(failed, ","))
	}
	return sums, nil
}
