package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func serve(cfg Config, path, header string) int {
	handler := Middleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest("GET", path, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w.Code
}

func TestMiddlewareDisabled(t *testing.T) {
	if code := serve(Config{}, "/api/v1/positions", ""); code != http.StatusOK {
		t.Errorf("disabled auth: status = %d, want 200", code)
	}
}

func TestMiddlewareEnabled(t *testing.T) {
	cfg := Config{Enabled: true, Token: "tok"}
	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"valid token", "/api/v1/positions", "Bearer tok", http.StatusOK},
		{"missing header", "/api/v1/positions", "", http.StatusUnauthorized},
		{"wrong token", "/api/v1/positions", "Bearer bad", http.StatusUnauthorized},
		{"no bearer prefix", "/api/v1/positions", "tok", http.StatusUnauthorized},
		{"healthz exempt", "/healthz", "", http.StatusOK},
		{"readyz exempt", "/readyz", "", http.StatusOK},
		{"metrics exempt", "/metrics", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := serve(cfg, tt.path, tt.header); code != tt.want {
				t.Errorf("status = %d, want %d", code, tt.want)
			}
		})
	}
}
