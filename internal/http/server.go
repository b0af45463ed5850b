// Package http exposes the ledger over a JSON API wrapped in a {code, data, msg} envelope.
package http

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"zhangdan/internal/cache"
	"zhangdan/internal/log"
	"zhangdan/internal/middleware/ratelimit"
	"zhangdan/internal/middleware/security"
	"zhangdan/internal/middleware/trace"
	"zhangdan/internal/services"
)

// Probe is a readiness check reported by /readyz.
type Probe func(ctx context.Context) error

// Options tunes the server. Zero values are usable.
type Options struct {
	Logger             *log.Logger
	RateLimitPerMinute int
	// CacheStats feeds the shard cache counters into /metrics.
	CacheStats func() cache.Stats
	// Probes are extra readiness checks keyed by name, e.g. the event broker.
	Probes map[string]Probe
}

type Server struct {
	http.Server
	svc         *services.TransactionService
	logger      *log.Logger
	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	tracer      *trace.Middleware
	cacheStats  func() cache.Stats
	probes      map[string]Probe
	started     time.Time
	now         func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc *services.TransactionService, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	detector := security.NewDetector(logger)
	s := &Server{
		svc:    svc,
		logger: logger,
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
		}),
		detector:   detector,
		tracer:     trace.NewMiddleware(logger, detector.ExtractClientIP),
		cacheStats: opts.CacheStats,
		probes:     opts.Probes,
		now:        time.Now,
	}
	s.started = s.now()

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.NotFound(s.handleNotFound)
	r.MethodNotAllowed(s.handleMethodNotAllowed)

	r.Use(middleware.Recoverer)
	r.Use(s.tracer.Middleware)
	r.Use(s.detector.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	r.Route("/transactions", func(r chi.Router) {
		r.Use(s.rateLimiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited,
			http.MethodPost, http.MethodPut, http.MethodDelete))

		r.Get("/", s.handleQuery)
		r.Post("/", s.handleCreate)
		r.Post("/batch", s.handleBatch)
		r.Post("/batch/text", s.handleBatchText)
		r.Get("/export", s.handleExport)
		r.Post("/import", s.handleImport)
		r.Get("/summary", s.handleSummary)
		r.Get("/categories", s.handleCategories)
		r.Get("/{id}", s.handleGet)
		r.Put("/{id}", s.handleUpdate)
		r.Delete("/{id}", s.handleDelete)
	})
	return r
}

// Shutdown stops the rate limiter and drains the HTTP server. Safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func sortedProbeNames(m map[string]Probe) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
