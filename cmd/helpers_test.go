package main

import (
	"net/http"
	"testing"

	"go.uber.org/zap"

	"github.com/benashkar/golf-tracker/internal/config"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// useConfig installs a fast, retry-free config for the duration of t.
func useConfig(t *testing.T, mutate func(c *config.Config)) *config.Config {
	t.Helper()
	c := &config.Config{
		Store: config.StoreConfig{Driver: "memory"},
		Log:   config.LogConfig{Level: "error", Format: "console"},
		Fetch: config.FetchConfig{
			UserAgent:   "golf-tracker-test",
			TimeoutSecs: 5,
		},
		Enrich: config.EnrichConfig{Limit: 50},
		PGA: config.PGAConfig{
			APIKey: "test-key",
			Tours:  []string{"R"},
		},
		Server: config.ServerConfig{Port: 9090},
	}
	if mutate != nil {
		mutate(c)
	}
	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
	return c
}

func writeHTML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte("<html><body>" + body + "</body></html>"))
}
