package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"lnskit/internal/config"
	"lnskit/internal/events"
	"lnskit/internal/metrics"
	"lnskit/internal/store"
)

type Server struct {
	Store  store.Store
	Broker events.Broker
	Log    zerolog.Logger

	cfg     config.ServerConfig
	solver  config.SolverConfig
	runner  *Runner
	limiter *rate.Limiter
	http    *http.Server
}

// NewServer wires the handlers. cfg and solver must have defaults applied.
func NewServer(cfg config.ServerConfig, solver config.SolverConfig, st store.Store, broker events.Broker, log zerolog.Logger) *Server {
	s := &Server{
		Store:  st,
		Broker: broker,
		Log:    log,
		cfg:    cfg,
		solver: solver,
		runner: NewRunner(st, broker, cfg.MaxConcurrentRuns, log),
	}
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst)
	}
	return s
}

// SetNotifier forwards terminal run states to n.
func (s *Server) SetNotifier(n Notifier) { s.runner.SetNotifier(n) }

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.HealthHandler)
	r.Get("/readyz", s.ReadyHandler)
	r.Get("/debug/info", s.DebugHandler)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	r.Route("/v1/runs", func(r chi.Router) {
		r.Post("/", s.CreateRunHandler)
		r.Get("/", s.ListRunsHandler)
		r.Get("/{id}", s.GetRunHandler)
		r.Delete("/{id}", s.CancelRunHandler)
		r.Get("/{id}/events", s.RunEventsHandler)
	})
	return r
}

// ListenAndServe blocks until the server stops. Shutdown ends it cleanly.
func (s *Server) ListenAndServe() error {
	s.http = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.Log.Info().Str("addr", s.cfg.Addr).Msg("API listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, then cancels and drains active runs.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.http != nil {
		err = s.http.Shutdown(ctx)
	}
	if rerr := s.runner.Shutdown(ctx); err == nil {
		err = rerr
	}
	return err
}

// observe logs every request and records it under its route pattern so
// ids do not explode label cardinality.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start)

		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			path = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		code := strconv.Itoa(status)
		metrics.HTTPRequests.WithLabelValues(r.Method, path, code).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, path, code).Observe(dur.Seconds())
		s.Log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).
			Dur("duration", dur).Str("request_id", middleware.GetReqID(r.Context())).Msg("request")
	})
}
