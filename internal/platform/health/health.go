// Package health serves liveness, readiness and detailed health endpoints.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Status represents the health status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// Check is the outcome of one dependency probe
type Check struct {
	Name      string  `json:"name"`
	Status    Status  `json:"status"`
	Critical  bool    `json:"critical"`
	Message   string  `json:"message,omitempty"`
	LatencyMS float64 `json:"latency_ms"`
}

// Response is the health check response
type Response struct {
	Status        Status            `json:"status"`
	Timestamp     time.Time         `json:"timestamp"`
	Version       string            `json:"version,omitempty"`
	Service       string            `json:"service,omitempty"`
	Checks        map[string]*Check `json:"checks,omitempty"`
	UptimeSeconds int64             `json:"uptime_seconds"`
}

// Checker probes one dependency
type Checker func(ctx context.Context) error

type registered struct {
	checker  Checker
	critical bool
}

// Handler aggregates dependency checks. A failing critical check makes the
// service unhealthy; a failing optional one only degrades it.
type Handler struct {
	mu           sync.RWMutex
	checks       map[string]registered
	service      string
	version      string
	startTime    time.Time
	checkTimeout time.Duration
}

// NewHandler creates a new health handler
func NewHandler(service, version string) *Handler {
	return &Handler{
		checks:       make(map[string]registered),
		service:      service,
		version:      version,
		startTime:    time.Now(),
		checkTimeout: 2 * time.Second,
	}
}

// AddCheck registers a dependency the service cannot serve without
func (h *Handler) AddCheck(name string, checker Checker) {
	h.add(name, checker, true)
}

// AddOptionalCheck registers a dependency the service can run without,
// such as the count cache
func (h *Handler) AddOptionalCheck(name string, checker Checker) {
	h.add(name, checker, false)
}

func (h *Handler) add(name string, checker Checker, critical bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = registered{checker: checker, critical: critical}
}

// Check runs every probe concurrently, each bounded by the check timeout
func (h *Handler) Check(ctx context.Context) *Response {
	h.mu.RLock()
	checks := make(map[string]registered, len(h.checks))
	for name, c := range h.checks {
		checks[name] = c
	}
	h.mu.RUnlock()

	resp := &Response{
		Status:        StatusHealthy,
		Timestamp:     time.Now().UTC(),
		Version:       h.version,
		Service:       h.service,
		Checks:        make(map[string]*Check, len(checks)),
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex

	for name, c := range checks {
		wg.Add(1)
		go func(name string, c registered) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, h.checkTimeout)
			defer cancel()

			start := time.Now()
			err := c.checker(checkCtx)

			check := &Check{
				Name:      name,
				Status:    StatusHealthy,
				Critical:  c.critical,
				LatencyMS: float64(time.Since(start).Microseconds()) / 1000,
			}
			if err != nil {
				check.Status = StatusUnhealthy
				check.Message = err.Error()
			}

			mu.Lock()
			defer mu.Unlock()
			resp.Checks[name] = check
			switch {
			case err == nil:
			case c.critical:
				resp.Status = StatusUnhealthy
			case resp.Status == StatusHealthy:
				resp.Status = StatusDegraded
			}
		}(name, c)
	}

	wg.Wait()
	return resp
}

// LivenessHandler reports that the process is up without probing dependencies
func (h *Handler) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "alive",
			"service": h.service,
		})
	}
}

// ReadinessHandler returns 503 only when a critical dependency is down
func (h *Handler) ReadinessHandler() http.HandlerFunc {
	return h.probe(5 * time.Second)
}

// HealthHandler returns the full report
func (h *Handler) HealthHandler() http.HandlerFunc {
	return h.probe(10 * time.Second)
}

func (h *Handler) probe(timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		resp := h.Check(ctx)

		status := http.StatusOK
		if resp.Status == StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Pinger is satisfied by the database and cache wrappers
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// FromPinger adapts a Pinger into a Checker
func FromPinger(p Pinger) Checker {
	return p.HealthCheck
}
