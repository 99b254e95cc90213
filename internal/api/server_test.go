package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sprett/sat-tracker/internal/auth"
	"github.com/sprett/sat-tracker/internal/catalog"
	"github.com/sprett/sat-tracker/internal/engine"
	"github.com/sprett/sat-tracker/internal/stream"
	"github.com/sprett/sat-tracker/internal/visibility"
)

const (
	issLine1 = "1 25544U 98067A   08264.51782528 -.00002182  00000-0 -11606-4 0  2927"
	issLine2 = "2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.72125391563537"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

type stubRefresher struct {
	err    error
	called bool
}

func (s *stubRefresher) Refresh(ctx context.Context) error {
	s.called = true
	return s.err
}

func testCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Source:    "test",
		FetchedAt: time.Now(),
		Entries: []catalog.Entry{
			{Identity: "ISS (ZARYA)", Category: "active", Line1: issLine1, Line2: issLine2},
		},
	}
}

// newTestServer wires a server around a fresh engine. The returned engine has
// no batch yet; tests that need one call runBatch.
func newTestServer(t *testing.T, refresher Refresher, authCfg auth.Config) (*Server, *engine.Engine, *catalog.Store) {
	t.Helper()
	logger := testLogger()
	eng := engine.New(engine.Config{TickInterval: time.Minute, Workers: 2}, logger)
	store := catalog.NewStore()
	sh := stream.NewHandler(eng, store, stream.Config{
		MaxConcurrentPerIP: 10,
		KeepaliveInterval:  30 * time.Second,
	}, logger)
	srv := NewServer(":0", eng, store, refresher, sh, logger, authCfg)
	return srv, eng, store
}

func runBatch(t *testing.T, eng *engine.Engine, store *catalog.Store) {
	t.Helper()
	cat := testCatalog()
	store.Set(cat)
	at := time.Date(2008, 9, 21, 0, 0, 0, 0, time.UTC)
	if _, err := eng.RunOnce(context.Background(), cat, at, visibility.Observer{}); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
}

func do(srv *Server, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	srv.HTTPServer().Handler.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t, nil, auth.Config{})
	if w := do(srv, "GET", "/healthz", nil); w.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", w.Code)
	}
}

func TestReadyzFollowsFirstBatch(t *testing.T) {
	srv, eng, store := newTestServer(t, nil, auth.Config{})

	if w := do(srv, "GET", "/readyz", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz before first batch: status = %d, want 503", w.Code)
	}
	runBatch(t, eng, store)
	if w := do(srv, "GET", "/readyz", nil); w.Code != http.StatusOK {
		t.Errorf("readyz after first batch: status = %d, want 200", w.Code)
	}
}

func TestPositions(t *testing.T) {
	srv, eng, store := newTestServer(t, nil, auth.Config{})

	if w := do(srv, "GET", "/api/v1/positions", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("positions before first batch: status = %d, want 503", w.Code)
	}

	runBatch(t, eng, store)
	w := do(srv, "GET", "/api/v1/positions", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var batch engine.Batch
	if err := json.NewDecoder(w.Body).Decode(&batch); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(batch.Samples) != 1 {
		t.Fatalf("got %d samples, want 1", len(batch.Samples))
	}
	if batch.Samples[0].Identity != "ISS (ZARYA)" {
		t.Errorf("sample identity = %q", batch.Samples[0].Identity)
	}
}

func TestPositionsPacked(t *testing.T) {
	srv, eng, store := newTestServer(t, nil, auth.Config{})
	runBatch(t, eng, store)

	w := do(srv, "GET", "/api/v1/positions.bin", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/octet-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	if _, err := time.Parse(time.RFC3339Nano, w.Header().Get("X-Batch-Instant")); err != nil {
		t.Errorf("X-Batch-Instant unparseable: %v", err)
	}
	triples, ok := engine.DecodePacked(w.Body.Bytes())
	if !ok {
		t.Fatal("packed payload did not decode")
	}
	if len(triples) != 1 {
		t.Fatalf("got %d triples, want 1", len(triples))
	}
	if alt := triples[0][2]; alt < 200 || alt > 500 {
		t.Errorf("packed altitude = %v km, outside plausible range", alt)
	}
}

func TestStats(t *testing.T) {
	srv, eng, store := newTestServer(t, nil, auth.Config{})
	runBatch(t, eng, store)

	w := do(srv, "GET", "/api/v1/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		Engine         engine.Stats `json:"engine"`
		CatalogEntries int          `json:"catalog_entries"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if resp.Engine.BatchesCompleted != 1 {
		t.Errorf("batches_completed = %d, want 1", resp.Engine.BatchesCompleted)
	}
	if resp.Engine.SamplesEmitted != 1 {
		t.Errorf("samples_emitted = %d, want 1", resp.Engine.SamplesEmitted)
	}
	if resp.CatalogEntries != 1 {
		t.Errorf("catalog_entries = %d, want 1", resp.CatalogEntries)
	}
}

func TestCatalogRefresh(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ref := &stubRefresher{}
		srv, _, _ := newTestServer(t, ref, auth.Config{})
		w := do(srv, "POST", "/api/v1/catalog/refresh", nil)
		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", w.Code)
		}
		if !ref.called {
			t.Error("refresher not invoked")
		}
	})
	t.Run("upstream failure", func(t *testing.T) {
		ref := &stubRefresher{err: errors.New("upstream down")}
		srv, _, _ := newTestServer(t, ref, auth.Config{})
		if w := do(srv, "POST", "/api/v1/catalog/refresh", nil); w.Code != http.StatusBadGateway {
			t.Errorf("status = %d, want 502", w.Code)
		}
	})
	t.Run("no source configured", func(t *testing.T) {
		srv, _, _ := newTestServer(t, nil, auth.Config{})
		if w := do(srv, "POST", "/api/v1/catalog/refresh", nil); w.Code != http.StatusNotImplemented {
			t.Errorf("status = %d, want 501", w.Code)
		}
	})
}

func TestAuth(t *testing.T) {
	cfg := auth.Config{Enabled: true, Token: "secret"}
	srv, eng, store := newTestServer(t, nil, cfg)
	runBatch(t, eng, store)

	tests := []struct {
		name       string
		path       string
		header     http.Header
		wantStatus int
	}{
		{"no token", "/api/v1/stats", nil, http.StatusUnauthorized},
		{"wrong token", "/api/v1/stats", http.Header{"Authorization": {"Bearer nope"}}, http.StatusUnauthorized},
		{"malformed header", "/api/v1/stats", http.Header{"Authorization": {"secret"}}, http.StatusUnauthorized},
		{"valid token", "/api/v1/stats", http.Header{"Authorization": {"Bearer secret"}}, http.StatusOK},
		{"healthz exempt", "/healthz", nil, http.StatusOK},
		{"metrics exempt", "/metrics", nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(srv, "GET", tt.path, tt.header); w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}
