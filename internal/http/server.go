package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"budget/internal/core"
	applog "budget/internal/log"
	"budget/internal/middleware/trace"
)

// Ledger is what the API needs from the ledger controller.
type Ledger interface {
	Today() core.Date
	Currency() core.Currency
	Templates() []core.TransactionTemplate
	Template(id string) (core.TransactionTemplate, error)
	MonthView(year int, month time.Month) core.MonthView
	Pending() []core.Occurrence

	CreateTemplate(ctx context.Context, t core.TransactionTemplate) (core.TransactionTemplate, error)
	UpdateTemplate(ctx context.Context, t core.TransactionTemplate) (core.TransactionTemplate, error)
	RecordDecision(ctx context.Context, key core.OccurrenceKey, decision core.Decision) error
	SetCurrency(ctx context.Context, c core.Currency) error

	Due(ctx context.Context) (core.Occurrence, bool)
	DismissDue(ctx context.Context) (core.OccurrenceKey, bool)
}

// Pinger reports whether a dependency is usable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	http.Server
	ledger      Ledger
	readiness   Pinger
	logger      *applog.Logger
	tracer      *trace.Middleware
	rateLimiter *rateLimiter

	shutdownOnce sync.Once
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithReadiness makes /readyz check p.
func WithReadiness(p Pinger) ServerOption {
	return func(s *Server) { s.readiness = p }
}

func WithLogger(l *applog.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// WithRateLimit sets how many writes per minute one client may send.
func WithRateLimit(perMinute int) ServerOption {
	return func(s *Server) { s.rateLimiter = newRateLimiter(perMinute) }
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, ledger Ledger, opts ...ServerOption) *Server {
	s := &Server{
		ledger:      ledger,
		rateLimiter: newRateLimiter(defaultRateLimit),
		tracer:      trace.NewMiddleware(extractClientIP),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/month", s.handleMonth)
	mux.HandleFunc("GET /api/pending", s.handlePending)
	mux.HandleFunc("GET /api/templates", s.handleListTemplates)
	mux.HandleFunc("POST /api/templates", s.handleCreateTemplate)
	mux.HandleFunc("GET /api/templates/{id}", s.handleGetTemplate)
	mux.HandleFunc("PUT /api/templates/{id}", s.handleUpdateTemplate)
	mux.HandleFunc("POST /api/decisions", s.handleDecision)
	mux.HandleFunc("GET /api/due", s.handleDue)
	mux.HandleFunc("POST /api/due/dismiss", s.handleDismissDue)
	mux.HandleFunc("GET /api/currency", s.handleGetCurrency)
	mux.HandleFunc("PUT /api/currency", s.handleSetCurrency)

	var handler http.Handler = s.withSecurity(mux)
	handler = applog.RequestIDMiddleware(trace.FromRequest)(handler)
	handler = s.tracer.Middleware(handler)
	handler = applog.Middleware(s.logger)(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go s.rateLimiter.startCleanup()
	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Metrics returns request counters collected by the trace middleware.
func (s *Server) Metrics() trace.Metrics {
	return s.tracer.GetMetrics()
}
