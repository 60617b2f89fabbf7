package server

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ashita-ai/sekkei/internal/ratelimit"
)

// Server is the Sekkei HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Handlers returns the underlying Handlers.
func (s *Server) Handlers() *Handlers {
	return s.handlers
}

// Config holds all dependencies and settings for creating a Server.
type Config struct {
	Handlers *Handlers
	Logger   *slog.Logger

	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Optional embedded assets.
	UIFS fs.FS // Embedded UI filesystem (SPA).

	// RateLimiter limits /v1 requests per client IP. Nil disables.
	RateLimiter ratelimit.Limiter
}

// New creates a new HTTP server with all routes configured.
func New(cfg Config) *Server {
	h := cfg.Handlers
	mux := http.NewServeMux()

	// Streaming sessions.
	mux.HandleFunc("POST /v1/sessions", h.HandleStartSession)
	mux.HandleFunc("GET /v1/sessions/{session_id}", h.HandleGetSession)
	mux.HandleFunc("POST /v1/sessions/{session_id}/pause", h.HandlePauseSession)
	mux.HandleFunc("POST /v1/sessions/{session_id}/resume", h.HandleResumeSession)
	mux.HandleFunc("POST /v1/sessions/{session_id}/stop", h.HandleStopSession)
	mux.HandleFunc("PUT /v1/sessions/{session_id}/speed", h.HandleSetSpeed)
	mux.HandleFunc("GET /v1/sessions/{session_id}/events", h.HandleSessionEvents)
	mux.HandleFunc("POST /v1/sessions/{session_id}/retry-save", h.HandleRetrySave)

	// Transcripts.
	mux.HandleFunc("GET /v1/transcripts", h.HandleListTranscripts)
	mux.HandleFunc("GET /v1/transcripts/{transcript_id}", h.HandleGetTranscript)
	mux.HandleFunc("DELETE /v1/transcripts/{transcript_id}", h.HandleDeleteTranscript)

	// Projects (read surface over the auto-save records).
	mux.HandleFunc("GET /v1/projects", h.HandleListProjects)
	mux.HandleFunc("GET /v1/projects/{project_id}", h.HandleGetProject)

	// OpenAPI spec (no auth, no rate limit).
	mux.HandleFunc("GET /openapi.yaml", h.HandleOpenAPISpec)

	// Health.
	mux.HandleFunc("GET /health", h.HandleHealth)

	// SPA: serve the embedded UI at the root path.
	// Registered last so all API routes take priority via the mux's longest-match rule.
	if cfg.UIFS != nil {
		mux.Handle("/", newSPAHandler(cfg.UIFS))
		cfg.Logger.Info("ui enabled, serving SPA at /")
	}

	// Middleware chain (outermost executes first):
	// request ID → security headers → tracing → logging → rate limit → owner → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = ownerMiddleware(handler)
	if cfg.RateLimiter != nil {
		keyFn := func(r *http.Request) string {
			// Only API routes are limited; health checks and static
			// assets pass through.
			if !strings.HasPrefix(r.URL.Path, "/v1/") {
				return ""
			}
			return ratelimit.IPKeyFunc(r)
		}
		reqIDFn := func(r *http.Request) string { return RequestIDFromContext(r.Context()) }
		handler = ratelimit.Middleware(cfg.RateLimiter, keyFn, reqIDFn)(handler)
	}
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler:  handler,
		handlers: h,
		logger:   cfg.Logger,
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
