package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/benashkar/golf-tracker/internal/enrich"
	"github.com/benashkar/golf-tracker/internal/runlog"
	"github.com/benashkar/golf-tracker/internal/store"
)

var (
	servePort  int
	serveEvery time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve health, metrics, and run history over HTTP",
	Long:  "Starts an HTTP server exposing /healthz, /metrics, and the run log. With --every, roster and enrich jobs also run on a fixed interval.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(ctx, st),
			ReadHeaderTimeout: 10 * time.Second,
		}

		if serveEvery > 0 {
			go schedule(ctx, st, serveEvery)
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().DurationVar(&serveEvery, "every", 0, "run roster then enrich on this interval (0 disables)")
	rootCmd.AddCommand(serveCmd)
}

// buildRouter wires the HTTP routes. Enrichment requests run on one
// background worker under ctx.
func buildRouter(ctx context.Context, st store.Store) http.Handler {
	_, reg := sharedMetrics()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP)
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := st.Ping(req.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/runs", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			q := req.URL.Query()
			limit, _ := strconv.Atoi(q.Get("limit"))
			if limit <= 0 {
				limit = 50
			}
			runs, err := st.ListRuns(req.Context(), runlog.Filter{
				Status: runlog.Status(q.Get("status")),
				Kind:   q.Get("kind"),
				Limit:  limit,
			})
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
				return
			}
			if runs == nil {
				runs = []runlog.Record{}
			}
			writeJSON(w, http.StatusOK, runs)
		})
		r.Get("/{id}", func(w http.ResponseWriter, req *http.Request) {
			run, err := st.GetRun(req.Context(), chi.URLParam(req, "id"))
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
				return
			}
			if run == nil {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
				return
			}
			writeJSON(w, http.StatusOK, run)
		})
	})

	queue := newEnrichQueue(ctx, enrichQueueSize, func(ctx context.Context, opts enrich.Options) {
		res, err := runEnrich(ctx, st, opts)
		if err != nil {
			zap.L().Error("player enrichment failed", zap.Int64("player_id", opts.PlayerID), zap.Error(err))
			return
		}
		zap.L().Info("player enrichment complete",
			zap.Int64("player_id", opts.PlayerID),
			zap.String("run_id", res.RunID),
			zap.String("status", string(res.Status)),
		)
	})
	r.Post("/players/{id}/enrich", enrichHandler(queue))

	return r
}

func enrichHandler(q *enrichQueue) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(req, "id"), 10, 64)
		if err != nil || id <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid player id"})
			return
		}
		force := req.URL.Query().Get("force") == "true"

		switch q.Submit(enrich.Options{PlayerID: id, Force: force}) {
		case submitFull:
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "enrichment queue is full", "player_id": id})
		case submitDuplicate:
			writeJSON(w, http.StatusAccepted, map[string]any{"status": "already_queued", "player_id": id})
		default:
			writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted", "player_id": id})
		}
	}
}

// enrichQueueSize bounds pending single-player requests.
const enrichQueueSize = 16

type submitResult int

const (
	submitQueued submitResult = iota
	submitDuplicate
	submitFull
)

// enrichQueue runs single-player enrichments one at a time on a single
// worker. A player waiting in the queue is not queued twice.
type enrichQueue struct {
	jobs chan enrich.Options
	run  func(ctx context.Context, opts enrich.Options)

	mu      sync.Mutex
	pending map[int64]bool
}

// newEnrichQueue starts the worker; it stops when ctx is done.
func newEnrichQueue(ctx context.Context, size int, run func(ctx context.Context, opts enrich.Options)) *enrichQueue {
	q := &enrichQueue{
		jobs:    make(chan enrich.Options, size),
		run:     run,
		pending: make(map[int64]bool),
	}
	go q.work(ctx)
	return q
}

func (q *enrichQueue) Submit(opts enrich.Options) submitResult {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending[opts.PlayerID] {
		return submitDuplicate
	}
	select {
	case q.jobs <- opts:
		q.pending[opts.PlayerID] = true
		return submitQueued
	default:
		return submitFull
	}
}

func (q *enrichQueue) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case opts := <-q.jobs:
			q.mu.Lock()
			delete(q.pending, opts.PlayerID)
			q.mu.Unlock()
			q.run(ctx, opts)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// schedule runs roster then enrich every interval until ctx is done.
func schedule(ctx context.Context, st store.Store, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if _, err := runRoster(ctx, st, cfg.PGA.Tours); err != nil {
			zap.L().Warn("scheduled roster failed", zap.Error(err))
		}
		if _, err := runEnrich(ctx, st, enrich.Options{Limit: cfg.Enrich.Limit}); err != nil {
			zap.L().Warn("scheduled enrich failed", zap.Error(err))
		}
	}
}
