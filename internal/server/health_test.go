package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/efebarandurmaz/hybridrag/internal/app"
)

func healthRouter(s *HealthServer) http.Handler {
	r := chi.NewRouter()
	s.Mount(r)
	return r
}

func getHealth(t *testing.T, h http.Handler, path string) (int, HealthResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected application/json, got %q", ct)
	}
	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return w.Code, resp
}

func TestHealthServer_ReadyAndLive(t *testing.T) {
	s := NewHealthServer("1.0.0")
	h := healthRouter(s)

	if code, _ := getHealth(t, h, "/ready"); code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before ready, got %d", code)
	}
	s.SetReady(true)
	if code, _ := getHealth(t, h, "/readyz"); code != http.StatusOK {
		t.Fatalf("expected 200 when ready, got %d", code)
	}

	if code, _ := getHealth(t, h, "/live"); code != http.StatusOK {
		t.Fatalf("expected 200 when live, got %d", code)
	}
	s.SetLive(false)
	if code, resp := getHealth(t, h, "/livez"); code != http.StatusServiceUnavailable || resp.Status != HealthStatusUnhealthy {
		t.Fatalf("expected 503 unhealthy, got %d %s", code, resp.Status)
	}
}

func TestHealthServer_Health(t *testing.T) {
	tests := []struct {
		name       string
		statuses   map[string]HealthStatus
		wantCode   int
		wantStatus HealthStatus
	}{
		{"no checks", nil, http.StatusOK, HealthStatusHealthy},
		{"all healthy", map[string]HealthStatus{"qdrant": HealthStatusHealthy, "neo4j": HealthStatusHealthy}, http.StatusOK, HealthStatusHealthy},
		{"degraded", map[string]HealthStatus{"qdrant": HealthStatusHealthy, "llm": HealthStatusDegraded}, http.StatusOK, HealthStatusDegraded},
		{"unhealthy wins", map[string]HealthStatus{"neo4j": HealthStatusUnhealthy, "llm": HealthStatusDegraded}, http.StatusServiceUnavailable, HealthStatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewHealthServer("1.0.0")
			for name, st := range tt.statuses {
				st := st
				s.RegisterCheck(name, func(context.Context) HealthCheck { return HealthCheck{Status: st} })
			}
			code, resp := getHealth(t, healthRouter(s), "/healthz")
			if code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, code)
			}
			if resp.Status != tt.wantStatus {
				t.Fatalf("expected %s, got %s", tt.wantStatus, resp.Status)
			}
			if resp.Version != "1.0.0" {
				t.Fatalf("expected version 1.0.0, got %s", resp.Version)
			}
			if len(resp.Checks) != len(tt.statuses) {
				t.Fatalf("expected %d checks, got %d", len(tt.statuses), len(resp.Checks))
			}
			for i := 1; i < len(resp.Checks); i++ {
				if resp.Checks[i-1].Name > resp.Checks[i].Name {
					t.Fatalf("checks not sorted: %v", resp.Checks)
				}
			}
		})
	}
}

func TestCheckerFor(t *testing.T) {
	fail := func(context.Context) error { return errors.New("connection refused") }
	ok := func(context.Context) error { return nil }

	tests := []struct {
		check app.Check
		want  HealthStatus
	}{
		{app.Check{Name: "qdrant", Kind: "database", Fn: fail}, HealthStatusUnhealthy},
		{app.Check{Name: "neo4j", Kind: "database", Fn: ok}, HealthStatusHealthy},
		{app.Check{Name: "llm", Kind: "llm", Fn: fail}, HealthStatusDegraded},
		{app.Check{Name: "redis", Kind: "cache", Fn: fail}, HealthStatusDegraded},
		{app.Check{Name: "redis", Kind: "cache", Fn: ok}, HealthStatusHealthy},
	}
	for _, tt := range tests {
		got := CheckerFor(tt.check)(context.Background())
		if got.Status != tt.want {
			t.Errorf("%s/%s: expected %s, got %s (%s)", tt.check.Kind, tt.check.Name, tt.want, got.Status, got.Message)
		}
	}
}

func TestLLMHealthChecker_NilCheckFn(t *testing.T) {
	got := LLMHealthChecker("ollama", nil)(context.Background())
	if got.Status != HealthStatusHealthy {
		t.Fatalf("expected healthy, got %s", got.Status)
	}
	if got.Details["provider"] != "ollama" {
		t.Fatalf("expected provider detail, got %v", got.Details)
	}
}

func TestHealthServer_RegisterChecks(t *testing.T) {
	s := NewHealthServer("")
	s.RegisterChecks([]app.Check{
		{Name: "qdrant", Kind: "database", Fn: func(context.Context) error { return nil }},
		{Name: "llm", Kind: "llm", Fn: func(context.Context) error { return errors.New("down") }},
	})
	resp := s.Run(context.Background())
	if resp.Status != HealthStatusDegraded {
		t.Fatalf("expected degraded, got %s", resp.Status)
	}
	if len(resp.Checks) != 2 || resp.Checks[0].Name != "llm" || resp.Checks[1].Name != "qdrant" {
		t.Fatalf("unexpected checks: %+v", resp.Checks)
	}
}
