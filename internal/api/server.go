// Package api exposes the HTTP surface: latest batch, packed binary buffer,
// engine stats, catalog refresh, the SSE stream, and the operational
// endpoints.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/sprett/sat-tracker/internal/auth"
	"github.com/sprett/sat-tracker/internal/catalog"
	"github.com/sprett/sat-tracker/internal/engine"
	"github.com/sprett/sat-tracker/internal/health"
	"github.com/sprett/sat-tracker/internal/metrics"
	"github.com/sprett/sat-tracker/internal/stream"
)

// Refresher triggers a catalog refresh; the server exposes it on the API.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	eng        *engine.Engine
	store      *catalog.Store
	refresher  Refresher
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(addr string, eng *engine.Engine, store *catalog.Store, refresher Refresher,
	streamHandler *stream.Handler, logger *slog.Logger, authCfg auth.Config) *Server {

	s := &Server{
		eng:       eng,
		store:     store,
		refresher: refresher,
		logger:    logger,
	}

	mux := http.NewServeMux()

	// Register routes.
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(func() bool {
		return eng.Latest() != nil
	}))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/v1/positions", s.handlePositions)
	mux.HandleFunc("GET /api/v1/positions.bin", s.handlePositionsPacked)
	mux.HandleFunc("GET /api/v1/stats", s.handleStats)
	mux.HandleFunc("POST /api/v1/catalog/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/v1/stream/positions", streamHandler.HandlePositions)

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(authCfg)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = metrics.Middleware(handler)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// handlePositions serves the latest batch as JSON.
// GET /api/v1/positions
func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	batch := s.eng.Latest()
	if batch == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "no batch computed yet")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(batch)
}

// handlePositionsPacked serves the latest batch's (lat, lon, alt) triples as
// the packed binary buffer.
// GET /api/v1/positions.bin
func (s *Server) handlePositionsPacked(w http.ResponseWriter, r *http.Request) {
	batch := s.eng.Latest()
	if batch == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "no batch computed yet")
		return
	}
	buf := engine.EncodePacked(batch.Samples)
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(buf)))
	w.Header().Set("X-Batch-Instant", batch.Instant.UTC().Format(time.RFC3339Nano))
	w.Write(buf)
}

// handleStats serves cumulative engine diagnostics plus catalog age.
// GET /api/v1/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Engine            engine.Stats `json:"engine"`
		CatalogAgeSeconds float64      `json:"catalog_age_seconds"`
		CatalogEntries    int          `json:"catalog_entries"`
	}{
		Engine:            s.eng.Stats(),
		CatalogAgeSeconds: s.store.AgeSeconds(),
	}
	if cat := s.store.Get(); cat != nil {
		resp.CatalogEntries = len(cat.Entries)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleRefresh triggers a catalog refresh and reports the outcome.
// POST /api/v1/catalog/refresh
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		writeJSONError(w, http.StatusNotImplemented, "no catalog source configured")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()
	if err := s.refresher.Refresh(ctx); err != nil {
		s.logger.Error("catalog refresh failed", "error", err)
		writeJSONError(w, http.StatusBadGateway, "refresh failed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

func writeJSONError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// Flush passes through so the SSE handler keeps streaming behind the recorder.
func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer for
// deadline control on streaming connections.
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", r.RemoteAddr,
			)
		})
	}
}
