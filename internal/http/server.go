// Package http exposes the forecasting service over JSON: predictions,
// health checks, training and expense intake.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"previsioni/internal/artifact"
	"previsioni/internal/cache"
	"previsioni/internal/core"
	"previsioni/internal/forecast"
	applog "previsioni/internal/log"
	"previsioni/internal/middleware/ratelimit"
	"previsioni/internal/middleware/security"
	"previsioni/internal/middleware/trace"
	"previsioni/internal/services"
	"previsioni/internal/source"
)

// RunLister lists the most recent training runs.
type RunLister interface {
	ListTrainingRuns(ctx context.Context, limit int) ([]core.TrainingRun, error)
}

// Deps are the collaborators the handlers need. Expenses, Runs and Source
// may be nil; the matching endpoints then answer 501 or degrade.
type Deps struct {
	Predictor     *forecast.Predictor
	Training      *services.TrainingService
	Expenses      *services.ExpenseService
	Source        source.TransactionSource
	Runs          RunLister
	Artifacts     artifact.Store
	ReferencePath string
	CacheSize     int
	CacheTTL      time.Duration
	Logger        *applog.Logger
}

// prediction is what the cache keeps per user and feature set.
type prediction struct {
	Value   float64
	BasedOn string
	Model   forecast.Source
}

type Server struct {
	http.Server
	deps Deps

	logger           *applog.Logger
	predictions      *cache.LRUCache[prediction]
	cacheManager     *cache.Manager
	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	started          time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP)
	}
	if deps.CacheSize <= 0 {
		deps.CacheSize = 1000
	}

	s := &Server{
		deps:             deps,
		logger:           logger,
		predictions:      cache.NewLRUCache[prediction](deps.CacheSize, deps.CacheTTL),
		cacheManager:     cache.NewManager(logger.Logger),
		rateLimiter:      ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		securityDetector: security.NewDetector(),
		started:          time.Now(),
	}
	s.traceMiddleware = trace.NewMiddleware(logger, s.securityDetector.ExtractClientIP)

	if deps.CacheTTL > 0 {
		s.cacheManager.Register(s.predictions)
		s.cacheManager.StartCleanup(deps.CacheTTL)
	}

	limited := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /healthz", s.handleLive)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("POST /predict", s.handlePredict)
	mux.Handle("POST /train", limited(http.HandlerFunc(s.handleTrain)))
	mux.HandleFunc("GET /train/runs", s.handleTrainingRuns)
	mux.Handle("POST /expenses", limited(http.HandlerFunc(s.handleCreateExpense)))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	var handler http.Handler = mux
	handler = s.securityDetector.Middleware(logger.Logger)(handler)
	handler = security.CORS(handler)
	handler = headers.Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// InvalidatePredictions drops every cached prediction. It is registered as
// a trainer hook so a new artifact is served immediately.
func (s *Server) InvalidatePredictions() {
	if n := s.predictions.Purge(); n > 0 {
		s.logger.Debug("Prediction cache flushed", "entries", n)
	}
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.deps.CacheTTL > 0 {
			s.cacheManager.Stop()
		}
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
