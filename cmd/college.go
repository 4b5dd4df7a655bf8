package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/benashkar/golf-tracker/internal/college"
	"github.com/benashkar/golf-tracker/internal/ingest"
	"github.com/benashkar/golf-tracker/internal/player"
	"github.com/benashkar/golf-tracker/internal/resolve"
	"github.com/benashkar/golf-tracker/internal/runlog"
	"github.com/benashkar/golf-tracker/internal/store"
)

var collegeCmd = &cobra.Command{
	Use:   "college-rosters",
	Short: "Fill in hometowns and high schools from college team rosters",
	Long:  "Reads college golf roster pages and merges each row's hometown, high school and college into the existing player with the same name. Rows that match no player are ignored.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("college"); err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, runErr := runCollegeRosters(ctx, st, configuredRosters())
		if err := printJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
		return runErr
	},
}

func init() {
	rootCmd.AddCommand(collegeCmd)
}

// collegeResult is what the college-rosters command prints.
type collegeResult struct {
	runlog.Summary
	RostersRead int `json:"rosters_read"`
	Rows        int `json:"rows"`
	Unmatched   int `json:"unmatched"`
}

func configuredRosters() []college.Roster {
	if len(cfg.College.Rosters) == 0 {
		return college.DefaultRosters()
	}
	out := make([]college.Roster, 0, len(cfg.College.Rosters))
	for _, r := range cfg.College.Rosters {
		out = append(out, college.Roster{Name: r.Name, URL: r.URL, School: r.School})
	}
	return out
}

// unmatchedCounter counts rows the resolver found no player for.
type unmatchedCounter struct {
	r         ingest.Resolver
	unmatched int
}

func (c *unmatchedCounter) ResolveAndMerge(ctx context.Context, obs player.Observation, opts resolve.Options) (resolve.Result, error) {
	res, err := c.r.ResolveAndMerge(ctx, obs, opts)
	if err == nil && res.Unmatched {
		c.unmatched++
	}
	return res, err
}

// runCollegeRosters reads every roster with one polite client, then merges
// the rows into existing players inside a single run. An unreadable roster
// is a run error; the rest still merge.
func runCollegeRosters(ctx context.Context, st store.Store, rosters []college.Roster) (collegeResult, error) {
	m, _ := sharedMetrics()
	tracker := runlog.NewTracker(st, runlog.WithMetrics(m))
	counter := &unmatchedCounter{r: resolve.NewResolver(st, resolve.WithMetrics(m))}
	client := college.New(newFetcher(college.SourceName, cfg.Fetch.MinDelay()))

	var res collegeResult
	sum, err := tracker.Do(ctx, college.SourceName, runlog.Scope{}, func(ctx context.Context, run *runlog.Run) error {
		var items []ingest.Item
		for _, r := range rosters {
			entries, err := client.Fetch(ctx, r)
			if err != nil {
				zap.L().Warn("college: roster failed", zap.String("roster", r.Name), zap.Error(err))
				run.Errorf("%s: %v", r.Name, err)
				continue
			}
			res.RostersRead++
			for _, e := range entries {
				items = append(items, ingest.Static(e.FirstName+" "+e.LastName+" ("+r.Name+")", client.Observation(r, e)))
			}
		}
		res.Rows = len(items)
		if res.RostersRead == 0 && len(rosters) > 0 {
			return eris.Errorf("college: none of %d rosters could be read", len(rosters))
		}
		return ingest.Run(ctx, run, counter, items, resolve.Options{MatchOnly: true})
	})
	res.Summary = sum
	res.Unmatched = counter.unmatched
	return res, err
}
