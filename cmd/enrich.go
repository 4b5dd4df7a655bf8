package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/benashkar/golf-tracker/internal/enrich"
	"github.com/benashkar/golf-tracker/internal/resolve"
	"github.com/benashkar/golf-tracker/internal/runlog"
	"github.com/benashkar/golf-tracker/internal/sources"
	"github.com/benashkar/golf-tracker/internal/store"
	"github.com/benashkar/golf-tracker/internal/waterfall"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Fill in player bios from web sources",
	Long:  "Runs the source waterfall over players missing target bio fields and merges the first useful result into each player.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("enrich"); err != nil {
			return err
		}
		ctx := cmd.Context()

		limit, _ := cmd.Flags().GetInt("limit")
		if !cmd.Flags().Changed("limit") {
			limit = cfg.Enrich.Limit
		}
		force, _ := cmd.Flags().GetBool("force")
		playerID, _ := cmd.Flags().GetInt64("player")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, runErr := runEnrich(ctx, st, enrich.Options{Limit: limit, Force: force, PlayerID: playerID})
		if err := printJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
		return runErr
	},
}

func init() {
	enrichCmd.Flags().Int("limit", 50, "max players to enrich (default from config)")
	enrichCmd.Flags().Bool("force", false, "enrich every player and overwrite populated fields")
	enrichCmd.Flags().Int64("player", 0, "enrich a single player by id")
	rootCmd.AddCommand(enrichCmd)
}

// enrichResult is what the enrich command prints.
type enrichResult struct {
	runlog.Summary
	Report enrich.Report `json:"report"`
}

func loadWaterfall() (*waterfall.Config, error) {
	if cfg.Enrich.WaterfallPath == "" {
		return waterfall.DefaultConfig(), nil
	}
	return waterfall.LoadConfig(cfg.Enrich.WaterfallPath)
}

// sourceClients gives each source its own fetch client, with the source's
// delay when it sets one.
func sourceClients(sc waterfall.SourceConfig) sources.Fetcher {
	delay := cfg.Fetch.MinDelay()
	if sc.MinDelayMs > 0 {
		delay = time.Duration(sc.MinDelayMs) * time.Millisecond
	}
	return newFetcher(sc.Name, delay)
}

// initCooldown connects the miss cooldown to Redis when one is configured.
func initCooldown() (enrich.Cooldown, func()) {
	if cfg.Enrich.CooldownHours <= 0 || cfg.Redis.Addr == "" {
		return enrich.NoCooldown{}, func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return enrich.NewRedisCooldown(client, cfg.Enrich.Cooldown()), func() { _ = client.Close() }
}

func runEnrich(ctx context.Context, st store.Store, opts enrich.Options) (enrichResult, error) {
	wcfg, err := loadWaterfall()
	if err != nil {
		return enrichResult{}, err
	}
	targets, err := wcfg.TargetFields()
	if err != nil {
		return enrichResult{}, err
	}
	reg, err := sources.Registry(wcfg, sourceClients)
	if err != nil {
		return enrichResult{}, err
	}
	cooldown, closeCooldown := initCooldown()
	defer closeCooldown()

	m, _ := sharedMetrics()
	exec := waterfall.NewExecutor(wcfg, reg, waterfall.WithMetrics(m))
	job := enrich.NewJob(st, exec, resolve.NewResolver(st, resolve.WithMetrics(m)), targets, enrich.WithCooldown(cooldown))

	scope := runlog.Scope{}
	if opts.PlayerID != 0 {
		id := opts.PlayerID
		scope.PlayerID = &id
	}

	var rep enrich.Report
	sum, err := runlog.NewTracker(st, runlog.WithMetrics(m)).Do(ctx, enrich.RunKind, scope, func(ctx context.Context, run *runlog.Run) error {
		var err error
		rep, err = job.Run(ctx, run, opts)
		return err
	})
	zap.L().Info("enrich: waterfall stats",
		zap.Int("enriched", rep.Waterfall.Enriched),
		zap.Int("not_found", rep.Waterfall.NotFound),
		zap.Int("errors", rep.Waterfall.Errors),
		zap.Any("sources_used", rep.Waterfall.SourcesUsed),
	)
	return enrichResult{Summary: sum, Report: rep}, err
}
