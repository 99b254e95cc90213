// Package stream implements Server-Sent Events (SSE) streaming of position
// batches. Clients connect via GET /api/v1/stream/positions and receive the
// latest batch each time the engine completes one.
//
// SSE message format:
//
//	data: {"type":"positions","t":"2026-08-26T04:00:00Z","count":123,"sat":[...]}\n\n
//
// First message is always metadata:
//
//	data: {"type":"metadata","catalog_fetched_at":"...","catalog_age_seconds":1800}\n\n
//
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval to prevent
// timeout. Reconnecting clients receive a fresh metadata message on each
// connection.
package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/sprett/sat-tracker/internal/catalog"
	"github.com/sprett/sat-tracker/internal/engine"
	"github.com/sprett/sat-tracker/internal/httputil"
	"github.com/sprett/sat-tracker/internal/metrics"
)

// Config holds streaming configuration loaded from environment variables.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 10).
	KeepaliveInterval  time.Duration // Keep-alive ping interval (default: 30s).
	TrustProxy         bool          // Trust X-Forwarded-For / X-Real-IP.
}

// Handler manages SSE streaming connections. It follows the engine's cadence
// by polling the latest completed batch and forwarding each new instant.
type Handler struct {
	eng     *engine.Engine
	store   *catalog.Store
	config  Config
	limiter *streamLimiter
	logger  *slog.Logger
}

// NewHandler creates a new streaming handler.
func NewHandler(eng *engine.Engine, store *catalog.Store, config Config, logger *slog.Logger) *Handler {
	return &Handler{
		eng:     eng,
		store:   store,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP),
		logger:  logger,
	}
}

// HandlePositions serves the SSE position stream.
// GET /api/v1/stream/positions
func (h *Handler) HandlePositions(w http.ResponseWriter, r *http.Request) {
	// Rate limiting: enforce concurrent stream limit per IP.
	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if !h.limiter.acquire(ip) {
		h.logger.Warn("stream rate limit exceeded",
			"remote_ip", ip,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"error": "too many concurrent streams"})
		return
	}

	metrics.StreamClientConnected(1)
	startTime := time.Now()
	h.logger.Info("stream connected",
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
	)

	// Cleanup on disconnect: release rate limit slot and update metrics.
	defer func() {
		h.limiter.release(ip)
		metrics.StreamClientConnected(-1)
		h.logger.Info("stream disconnected",
			"remote_ip", ip,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		)
	}()

	// Verify flusher support (required for SSE).
	flusher, ok := w.(http.Flusher)
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "streaming not supported"})
		return
	}

	// Set SSE response headers.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Use ResponseController to manage write deadlines for long-lived SSE.
	// Clear the server's default WriteTimeout for this connection.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	c := &client{
		w:       w,
		flusher: flusher,
		rc:      rc,
		ip:      ip,
		logger:  h.logger,
	}

	// Send jittered retry interval (3-7s) to prevent thundering-herd
	// reconnection storms when the server restarts.
	retryMs := 3000 + rand.Intn(4000)
	fmt.Fprintf(w, "retry: %d\n\n", retryMs)
	flusher.Flush()

	// Send metadata message (first message on every connection).
	if cat := h.store.Get(); cat != nil {
		meta := metadataMessage{
			Type:             "metadata",
			CatalogFetchedAt: cat.FetchedAt.UTC().Format(time.RFC3339),
			CatalogAge:       int(time.Since(cat.FetchedAt).Seconds()),
		}
		data, err := json.Marshal(meta)
		if err == nil {
			err = c.sendRaw(data)
		}
		if err != nil {
			h.logger.Warn("stream send error (metadata)", "remote_ip", ip, "error", err)
			return
		}
	}

	// Forward each new batch as it completes. Polling at a fraction of the
	// engine interval keeps the handler decoupled from the engine's single
	// message channel while still following its cadence.
	ticker := time.NewTicker(pollInterval(h.eng.TickInterval()))
	defer ticker.Stop()

	keepaliveTicker := time.NewTicker(h.config.KeepaliveInterval)
	defer keepaliveTicker.Stop()

	ctx := r.Context()
	var lastInstant time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			batch := h.eng.Latest()
			if batch == nil || !batch.Instant.After(lastInstant) {
				continue
			}
			lastInstant = batch.Instant

			data, err := json.Marshal(buildBatchMessage(batch))
			if err != nil {
				h.logger.Warn("stream marshal error", "remote_ip", ip, "error", err)
				continue
			}
			if err := c.sendRaw(data); err != nil {
				h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
				return
			}

			// Reset keepalive since we just sent data.
			keepaliveTicker.Reset(h.config.KeepaliveInterval)

		case <-keepaliveTicker.C:
			if err := c.sendKeepalive(); err != nil {
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}

// pollInterval picks how often a stream connection checks for a new batch:
// a quarter of the engine tick, clamped so very fast ticks do not spin and
// very slow ticks still react within 200ms.
func pollInterval(tick time.Duration) time.Duration {
	p := tick / 4
	if p < 10*time.Millisecond {
		p = 10 * time.Millisecond
	}
	if p > 200*time.Millisecond {
		p = 200 * time.Millisecond
	}
	return p
}

// buildBatchMessage formats a batch into the SSE payload.
func buildBatchMessage(b *engine.Batch) positionsMessage {
	sats := make([]satPayload, len(b.Samples))
	for i, s := range b.Samples {
		sats[i] = satPayload{
			ID:      s.Identity,
			Lat:     s.Position.LatDeg,
			Lon:     s.Position.LonDeg,
			Alt:     s.Position.AltKm,
			Visible: s.Visible,
		}
	}
	return positionsMessage{
		Type:  "positions",
		T:     b.Instant.UTC().Format(time.RFC3339Nano),
		Count: len(sats),
		Sat:   sats,
	}
}

// SSE message payload types.

type metadataMessage struct {
	Type             string `json:"type"`
	CatalogFetchedAt string `json:"catalog_fetched_at"`
	CatalogAge       int    `json:"catalog_age_seconds"`
}

type positionsMessage struct {
	Type  string       `json:"type"`
	T     string       `json:"t"`
	Count int          `json:"count"`
	Sat   []satPayload `json:"sat"`
}

type satPayload struct {
	ID      string  `json:"id"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Alt     float64 `json:"alt"`
	Visible bool    `json:"visible"`
}
