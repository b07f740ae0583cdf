package http

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

const (
	healthCheckTimeout = 5 * time.Second

	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	statusDegraded  = "degraded"
)

// HealthChecker is a dependency the readiness probe pings.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	checkers map[string]HealthChecker
	started  time.Time
	version  string
}

func NewHealthHandler(version string, checkers map[string]HealthChecker) *HealthHandler {
	return &HealthHandler{checkers: checkers, started: time.Now(), version: version}
}

type HealthResponse struct {
	Status    string           `json:"status"`
	Timestamp string           `json:"timestamp"`
	Version   string           `json:"version,omitempty"`
	Uptime    string           `json:"uptime,omitempty"`
	Checks    map[string]Check `json:"checks,omitempty"`
}

type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

type runtimeStats struct {
	HeapAlloc  uint64 `json:"heap_alloc_bytes"`
	Sys        uint64 `json:"sys_bytes"`
	NumGC      uint32 `json:"num_gc"`
	Goroutines int    `json:"goroutines"`
}

func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HandleHealth)
	r.Get("/health/live", h.HandleLiveness)
	r.Get("/health/ready", h.HandleReadiness)
}

// HandleLiveness never touches dependencies. The desk client probes it to
// decide whether it is online.
func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthResponse{
		Status:    statusHealthy,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	resp := h.probe(r.Context())
	WriteJSON(w, httpStatusFor(resp.Status), resp)
}

// HandleHealth is readiness plus runtime statistics. A failing dependency
// reports "degraded".
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := h.probe(r.Context())
	code := httpStatusFor(resp.Status)
	if resp.Status != statusHealthy {
		resp.Status = statusDegraded
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	WriteJSON(w, code, struct {
		HealthResponse
		Runtime runtimeStats `json:"runtime"`
	}{
		HealthResponse: resp,
		Runtime: runtimeStats{
			HeapAlloc:  mem.HeapAlloc,
			Sys:        mem.Sys,
			NumGC:      mem.NumGC,
			Goroutines: runtime.NumGoroutine(),
		},
	})
}

// probe pings every checker concurrently under one deadline.
func (h *HealthHandler) probe(ctx context.Context) HealthResponse {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checkers))
	for name := range h.checkers {
		names = append(names, name)
	}
	results := make([]Check, len(names))

	var g errgroup.Group
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			results[i] = runCheck(ctx, h.checkers[name])
			return nil
		})
	}
	_ = g.Wait()

	resp := HealthResponse{
		Status:    statusHealthy,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   h.version,
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Checks:    make(map[string]Check, len(names)),
	}
	for i, name := range names {
		resp.Checks[name] = results[i]
		if results[i].Status != statusHealthy {
			resp.Status = statusUnhealthy
		}
	}
	return resp
}

func runCheck(ctx context.Context, checker HealthChecker) Check {
	if checker == nil {
		return Check{Status: statusUnhealthy, Message: "not configured"}
	}

	start := time.Now()
	err := checker.Ping(ctx)
	check := Check{Status: statusHealthy, Latency: time.Since(start).String()}
	if err != nil {
		check.Status = statusUnhealthy
		check.Message = err.Error()
	}
	return check
}

func httpStatusFor(status string) int {
	if status == statusHealthy {
		return http.StatusOK
	}
	return http.StatusServiceUnavailable
}
