package http

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
)

const checkTimeout = 5 * time.Second

// HealthChecker is anything that can report reachability, such as a pgx pool.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// ConnectionStats reports live gateway load.
type ConnectionStats interface {
	ConnectionCount() int
	UserCount() int
}

// HealthHandler serves liveness, readiness and a detailed status view.
type HealthHandler struct {
	checkers map[string]HealthChecker
	stats    ConnectionStats
	started  time.Time
	version  string
}

// NewHealthHandler creates a health handler checking the database. stats may
// be nil.
func NewHealthHandler(db HealthChecker, stats ConnectionStats, version string) *HealthHandler {
	return &HealthHandler{
		checkers: map[string]HealthChecker{"database": db},
		stats:    stats,
		started:  time.Now(),
		version:  version,
	}
}

// HealthResponse is the body of every health endpoint.
type HealthResponse struct {
	Status    string           `json:"status"`
	Timestamp string           `json:"timestamp"`
	Version   string           `json:"version,omitempty"`
	Uptime    string           `json:"uptime,omitempty"`
	Checks    map[string]Check `json:"checks,omitempty"`
	Gateway   *GatewayStatus   `json:"gateway,omitempty"`
	Runtime   *RuntimeStatus   `json:"runtime,omitempty"`
}

// Check is the outcome of one dependency check.
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// GatewayStatus summarises the connection registry.
type GatewayStatus struct {
	Connections int `json:"connections"`
	OnlineUsers int `json:"online_users"`
}

// RuntimeStatus is a small snapshot of process health.
type RuntimeStatus struct {
	Goroutines int    `json:"goroutines"`
	HeapBytes  uint64 `json:"heap_bytes"`
	SysBytes   uint64 `json:"sys_bytes"`
	NumGC      uint32 `json:"num_gc"`
}

// HandleLiveness answers as long as the process can serve HTTP.
func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	writeHealth(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleReadiness fails with 503 while any dependency is unreachable.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	resp, ok := h.evaluate(r.Context())
	status := http.StatusOK
	if !ok {
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	writeHealth(w, status, resp)
}

// HandleHealth is the readiness view plus gateway load and runtime figures.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp, ok := h.evaluate(r.Context())
	status := http.StatusOK
	if !ok {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}

	if h.stats != nil {
		resp.Gateway = &GatewayStatus{
			Connections: h.stats.ConnectionCount(),
			OnlineUsers: h.stats.UserCount(),
		}
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	resp.Runtime = &RuntimeStatus{
		Goroutines: runtime.NumGoroutine(),
		HeapBytes:  mem.HeapAlloc,
		SysBytes:   mem.Sys,
		NumGC:      mem.NumGC,
	}

	writeHealth(w, status, resp)
}

// evaluate runs every check and reports whether all of them passed.
func (h *HealthHandler) evaluate(ctx context.Context) (HealthResponse, bool) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checkers))
	for name := range h.checkers {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := make(map[string]Check, len(names))
	healthy := true
	for _, name := range names {
		c := check(ctx, h.checkers[name])
		checks[name] = c
		if c.Status != "healthy" {
			healthy = false
		}
	}

	return HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   h.version,
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Checks:    checks,
	}, healthy
}

func check(ctx context.Context, target HealthChecker) Check {
	if target == nil {
		return Check{Status: "unhealthy", Message: "not configured"}
	}

	start := time.Now()
	err := target.Ping(ctx)
	latency := time.Since(start).String()
	if err != nil {
		return Check{Status: "unhealthy", Message: err.Error(), Latency: latency}
	}
	return Check{Status: "healthy", Latency: latency}
}

func writeHealth(w http.ResponseWriter, status int, resp HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// RegisterRoutes mounts the health endpoints.
func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HandleHealth)
	r.Get("/health/live", h.HandleLiveness)
	r.Get("/health/ready", h.HandleReadiness)
}
