// Package http exposes the aggregation engine over a JSON API: snapshot
// uploads, pivot reports with CSV/XLSX export, snapshot comparisons and the
// annual goal.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/fedemoisello/Visibility-Netsuite/internal/log"
	"github.com/fedemoisello/Visibility-Netsuite/internal/services"
)

// Options tunes the request handling limits.
type Options struct {
	MaxUploadBytes int64
	TopClients     int
}

type Server struct {
	http.Server
	svc         *services.VisibilityService
	logger      *log.Logger
	structured  *log.StructuredLogger
	rateLimiter *rateLimiter

	maxUploadBytes int64
	topClients     int

	shutdownOnce sync.Once
}

// NewServer configures routes and limits, returning a ready-to-run server.
func NewServer(addr string, svc *services.VisibilityService, logger *log.Logger, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	if opts.TopClients <= 0 {
		opts.TopClients = 10
	}

	httpLogger := logger.WithComponent(log.ComponentHTTP)
	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           log.Middleware(httpLogger)(mux),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       60 * time.Second,
			WriteTimeout:      60 * time.Second,
		},
		svc:            svc,
		logger:         httpLogger,
		structured:     log.NewStructuredLogger(logger),
		rateLimiter:    newRateLimiter(),
		maxUploadBytes: opts.MaxUploadBytes,
		topClients:     opts.TopClients,
	}

	mux.HandleFunc("POST /api/snapshots", s.withMiddleware(s.handleCreateSnapshot))
	mux.HandleFunc("GET /api/snapshots", s.withMiddleware(s.handleListSnapshots))
	mux.HandleFunc("DELETE /api/snapshots/{id}", s.withMiddleware(s.handleDeleteSnapshot))
	mux.HandleFunc("GET /api/report", s.withMiddleware(s.handleReport))
	mux.HandleFunc("POST /api/compare", s.withMiddleware(s.handleCompare))
	mux.HandleFunc("GET /api/goal", s.withMiddleware(s.handleGoal))
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	return s
}

// withMiddleware adds security headers, rate limiting and request logging.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)

		s.structured.LogHTTPStart(r.Context(), r, clientIP)

		// Uploads are the expensive path; everything else is cheap reads.
		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		s.structured.LogHTTPEnd(r.Context(), r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
