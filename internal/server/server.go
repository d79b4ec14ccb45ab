// Package server exposes the therapy pipeline over HTTP.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/raphaelgruber/ravan/internal/metrics"
	"github.com/raphaelgruber/ravan/internal/ratelimit"
	"github.com/raphaelgruber/ravan/internal/service"
)

// Deps holds the services the HTTP handlers call.
type Deps struct {
	Chat       *service.ChatService
	Plans      *service.PlanService
	Reports    *service.ReportService
	Dreams     *service.DreamService
	Memory     *service.MemoryService
	Ingest     *service.IngestService
	Dispatcher *service.Dispatcher
	Metrics    *metrics.Collector
	Limiter    *ratelimit.Limiter
}

// Server routes HTTP requests to the pipeline services.
type Server struct {
	deps      Deps
	logger    *slog.Logger
	mux       *http.ServeMux
	upgrader  websocket.Upgrader
	pingEvery time.Duration
}

// New creates a server with all routes registered.
func New(deps Deps, logger *slog.Logger) *Server {
	s := &Server{
		deps:   deps,
		logger: logger,
		mux:    http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // clients authenticate upstream
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		pingEvery: 10 * time.Second,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /therapy-chat", s.handleChat)
	s.mux.HandleFunc("GET /therapy-chat/ws", s.handleChatSocket)
	s.mux.HandleFunc("POST /generate-session-plan", s.handleGeneratePlan)
	s.mux.HandleFunc("POST /generate-report", s.handleGenerateReport)
	s.mux.HandleFunc("POST /generate-dream", s.handleGenerateDream)
	s.mux.HandleFunc("POST /analyze-dreams", s.handleAnalyzeDreams)

	s.mux.HandleFunc("POST /emotion-logs", s.handleEmotionLog)
	s.mux.HandleFunc("POST /mood-trends", s.handleMoodTrend)
	s.mux.HandleFunc("POST /test-results", s.handleTestResult)
	s.mux.HandleFunc("POST /client-test-results", s.handleClientTestResult)

	s.mux.HandleFunc("GET /therapy-memory/{userId}", s.handleGetMemory)
	s.mux.HandleFunc("GET /session-plans/{userId}/current", s.handleCurrentPlan)

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /stats", s.handleStats)
	s.mux.HandleFunc("GET /admin/dead-letters", s.handleDeadLetters)
}

// Handler returns the routes wrapped in logging and rate limiting.
// Health checks are never rate limited.
func (s *Server) Handler() http.Handler {
	limited := ratelimit.Middleware(s.deps.Limiter, func(r *http.Request) {
		if s.deps.Metrics != nil {
			s.deps.Metrics.Incr(metrics.CounterRateLimited)
		}
		s.logger.Info("rate limited", "key", ratelimit.ClientKey(r), "path", r.URL.Path)
	})(s.mux)

	return LoggingMiddleware(s.logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			s.mux.ServeHTTP(w, r)
			return
		}
		limited.ServeHTTP(w, r)
	}))
}
