// Package server exposes the HTTP API, health probes and graceful
// shutdown.
package server

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/efebarandurmaz/hybridrag/internal/app"
)

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

// HealthCheck is the outcome of one probe.
type HealthCheck struct {
	Name    string            `json:"name"`
	Status  HealthStatus      `json:"status"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// HealthResponse is the body of every health endpoint.
type HealthResponse struct {
	Status    HealthStatus  `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Version   string        `json:"version,omitempty"`
	Checks    []HealthCheck `json:"checks,omitempty"`
}

// HealthChecker probes one component.
type HealthChecker func(ctx context.Context) HealthCheck

// HealthServer serves liveness, readiness and dependency health.
type HealthServer struct {
	mu           sync.RWMutex
	checks       map[string]HealthChecker
	version      string
	ready        bool
	live         bool
	checkTimeout time.Duration
}

// NewHealthServer creates a health server that is live but not yet ready.
func NewHealthServer(version string) *HealthServer {
	return &HealthServer{
		checks:       make(map[string]HealthChecker),
		version:      version,
		live:         true,
		checkTimeout: 5 * time.Second,
	}
}

// RegisterCheck adds or replaces a named check.
func (s *HealthServer) RegisterCheck(name string, checker HealthChecker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = checker
}

// RegisterChecks adds a checker for every backend probe of a
// RetrievalContext.
func (s *HealthServer) RegisterChecks(checks []app.Check) {
	for _, c := range checks {
		s.RegisterCheck(c.Name, CheckerFor(c))
	}
}

// SetReady marks the server as ready to accept traffic.
func (s *HealthServer) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// SetLive marks the server as live (or not).
func (s *HealthServer) SetLive(live bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = live
}

// Mount registers the health endpoints and their Kubernetes aliases on r.
func (s *HealthServer) Mount(r chi.Router) {
	r.Get("/health", s.handleHealth)
	r.Get("/healthz", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Get("/readyz", s.handleReady)
	r.Get("/live", s.handleLive)
	r.Get("/livez", s.handleLive)
}

// Run executes every check concurrently and folds the results. Any
// unhealthy check makes the whole response unhealthy; otherwise any
// degraded check makes it degraded. Checks are reported sorted by name.
func (s *HealthServer) Run(ctx context.Context) HealthResponse {
	ctx, cancel := context.WithTimeout(ctx, s.checkTimeout)
	defer cancel()

	s.mu.RLock()
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	checks := make(map[string]HealthChecker, len(s.checks))
	for k, v := range s.checks {
		checks[k] = v
	}
	version := s.version
	s.mu.RUnlock()
	sort.Strings(names)

	results := make([]HealthCheck, len(names))
	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			check := checks[name](ctx)
			check.Name = name
			results[i] = check
			return nil
		})
	}
	_ = g.Wait()

	resp := HealthResponse{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now().UTC(),
		Version:   version,
		Checks:    results,
	}
	for _, check := range results {
		switch {
		case check.Status == HealthStatusUnhealthy:
			resp.Status = HealthStatusUnhealthy
		case check.Status == HealthStatusDegraded && resp.Status == HealthStatusHealthy:
			resp.Status = HealthStatusDegraded
		}
	}
	return resp
}

func (s *HealthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := s.Run(r.Context())
	code := http.StatusOK
	if resp.Status == HealthStatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func (s *HealthServer) handleReady(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	ready := s.ready
	s.mu.RUnlock()
	s.writeProbe(w, ready)
}

func (s *HealthServer) handleLive(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	live := s.live
	s.mu.RUnlock()
	s.writeProbe(w, live)
}

func (s *HealthServer) writeProbe(w http.ResponseWriter, ok bool) {
	resp := HealthResponse{Status: HealthStatusHealthy, Timestamp: time.Now().UTC()}
	if !ok {
		resp.Status = HealthStatusUnhealthy
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// CheckerFor maps a backend probe to a checker. A failing index store is
// unhealthy; a failing model server or cache only degrades service.
func CheckerFor(c app.Check) HealthChecker {
	switch c.Kind {
	case "llm":
		return LLMHealthChecker(c.Name, c.Fn)
	case "cache":
		return CacheHealthChecker(c.Fn)
	default:
		return StoreHealthChecker(c.Name, c.Fn)
	}
}

// StoreHealthChecker reports an index store as unhealthy when checkFn
// fails.
func StoreHealthChecker(store string, checkFn func(ctx context.Context) error) HealthChecker {
	return func(ctx context.Context) HealthCheck {
		if err := checkFn(ctx); err != nil {
			return HealthCheck{
				Status:  HealthStatusUnhealthy,
				Message: store + " connection failed: " + err.Error(),
			}
		}
		return HealthCheck{Status: HealthStatusHealthy, Message: store + " connection OK"}
	}
}

// LLMHealthChecker reports the model server. Retrieval still works when it
// is down, so failure is degraded rather than unhealthy.
func LLMHealthChecker(provider string, checkFn func(ctx context.Context) error) HealthChecker {
	return func(ctx context.Context) HealthCheck {
		details := map[string]string{"provider": provider}
		if checkFn == nil {
			return HealthCheck{Status: HealthStatusHealthy, Message: "LLM provider configured", Details: details}
		}
		if err := checkFn(ctx); err != nil {
			return HealthCheck{
				Status:  HealthStatusDegraded,
				Message: "LLM provider degraded: " + err.Error(),
				Details: details,
			}
		}
		return HealthCheck{Status: HealthStatusHealthy, Message: "LLM provider OK", Details: details}
	}
}

// CacheHealthChecker reports the embedding cache. Misses fall through to
// the embedder, so failure is degraded.
func CacheHealthChecker(checkFn func(ctx context.Context) error) HealthChecker {
	return func(ctx context.Context) HealthCheck {
		if err := checkFn(ctx); err != nil {
			return HealthCheck{Status: HealthStatusDegraded, Message: "embedding cache unavailable: " + err.Error()}
		}
		return HealthCheck{Status: HealthStatusHealthy, Message: "embedding cache OK"}
	}
}
