// Package metrics holds the Prometheus collectors shared by fetch clients,
// run tracking, and the enrichment waterfall.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	FetchRequests  *prometheus.CounterVec
	FetchRetries   *prometheus.CounterVec
	Runs           *prometheus.CounterVec
	SourceLookups  *prometheus.CounterVec
	PlayerResolves *prometheus.CounterVec
}

// New registers the collectors on reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		FetchRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "golf_fetch_requests_total",
			Help: "Fetch outcomes by client and result",
		}, []string{"client", "result"}), // ok, timeout, http_error, transport_error, invalid_json
		FetchRetries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "golf_fetch_retries_total",
			Help: "HTTP retries issued by client",
		}, []string{"client"}),
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "golf_runs_total",
			Help: "Completed runs by kind and status",
		}, []string{"kind", "status"}),
		SourceLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "golf_source_lookups_total",
			Help: "Waterfall source lookups by result",
		}, []string{"source", "result"}), // hit, miss, empty, error, open
		PlayerResolves: f.NewCounterVec(prometheus.CounterOpts{
			Name: "golf_player_resolves_total",
			Help: "Observation resolutions by action",
		}, []string{"action"}), // created, updated, unchanged, skipped
	}
}

func (m *Metrics) IncFetch(client, result string) {
	if m == nil {
		return
	}
	m.FetchRequests.WithLabelValues(client, result).Inc()
}

func (m *Metrics) AddRetries(client string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.FetchRetries.WithLabelValues(client).Add(float64(n))
}

func (m *Metrics) IncRun(kind, status string) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) IncLookup(source, result string) {
	if m == nil {
		return
	}
	m.SourceLookups.WithLabelValues(source, result).Inc()
}

func (m *Metrics) IncResolve(action string) {
	if m == nil {
		return
	}
	m.PlayerResolves.WithLabelValues(action).Inc()
}
