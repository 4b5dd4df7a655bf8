package main

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rotisserie/eris"

	"github.com/benashkar/golf-tracker/internal/fetcher"
	"github.com/benashkar/golf-tracker/internal/metrics"
	"github.com/benashkar/golf-tracker/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "golf.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{MaxConns: int32(cfg.Store.MaxConns)})
	case "memory":
		return store.NewMemory(), nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore opens the configured store and makes sure its tables exist.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

var (
	metricsOnce sync.Once
	metricsReg  *prometheus.Registry
	appMetrics  *metrics.Metrics
)

// sharedMetrics returns the process-wide collectors served on /metrics.
func sharedMetrics() (*metrics.Metrics, *prometheus.Registry) {
	metricsOnce.Do(func() {
		metricsReg = prometheus.NewRegistry()
		metricsReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		appMetrics = metrics.New(metricsReg)
	})
	return appMetrics, metricsReg
}

// newFetcher builds a dedicated fetch client from the fetch defaults.
func newFetcher(name string, minDelay time.Duration) *fetcher.Client {
	m, _ := sharedMetrics()
	return fetcher.New(fetcher.Options{
		Name:      strings.ToLower(name),
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   cfg.Fetch.Timeout(),
		MinDelay:  minDelay,
		Retry:     cfg.Fetch.RetryPolicy(),
		Metrics:   m,
	})
}
