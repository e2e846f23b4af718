package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"pricetracker/pkg/response"

	"go.uber.org/zap"
)

// Pinger is anything the readiness probe can check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds handler dependencies.
type Config struct {
	Service  string
	Version  string
	Store    Pinger
	Sessions Pinger
	Logger   *zap.Logger
	// PingTimeout bounds each dependency check. Defaults to 2s.
	PingTimeout time.Duration
}

// Handler serves the operational endpoints.
type Handler struct {
	service   string
	version   string
	store     Pinger
	sessions  Pinger
	logger    *zap.Logger
	timeout   time.Duration
	startTime time.Time
}

// New creates a new handler.
func New(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = 2 * time.Second
	}
	return &Handler{
		service:   cfg.Service,
		version:   cfg.Version,
		store:     cfg.Store,
		sessions:  cfg.Sessions,
		logger:    cfg.Logger.Named("http"),
		timeout:   cfg.PingTimeout,
		startTime: time.Now(),
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// Health handles GET /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	response.OK(w, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
	})
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Ready     bool      `json:"ready"`
	Timestamp time.Time `json:"timestamp"`
	Checks    []Check   `json:"checks"`
}

// Check represents an individual readiness check.
type Check struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (h *Handler) check(ctx context.Context, name string, p Pinger) Check {
	if p == nil {
		return Check{Name: name, Status: "disabled"}
	}
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if err := p.Ping(ctx); err != nil {
		h.logger.Warn("readiness check failed", zap.String("check", name), zap.Error(err))
		return Check{Name: name, Status: "error", Error: err.Error()}
	}
	return Check{Name: name, Status: "ok"}
}

func (h *Handler) checks(ctx context.Context) []Check {
	return []Check{
		h.check(ctx, "database", h.store),
		h.check(ctx, "sessions", h.sessions),
	}
}

// Ready handles GET /api/v1/ready
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := h.checks(r.Context())

	ready := true
	for _, c := range checks {
		if c.Status == "error" {
			ready = false
			break
		}
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, status, ReadyResponse{
		Ready:     ready,
		Timestamp: time.Now().UTC(),
		Checks:    checks,
	})
}

// StatusChecks represents the checks in status response
type StatusChecks struct {
	Database string  `json:"database"`
	Sessions string  `json:"sessions"`
	MemoryMB float64 `json:"memory_mb"`
}

// StatusResponse represents the unified status response for monitoring
type StatusResponse struct {
	Service       string       `json:"service"`
	Status        string       `json:"status"`
	Version       string       `json:"version"`
	Timestamp     string       `json:"timestamp"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	PingMS        int64        `json:"ping_ms"`
	Goroutines    int          `json:"goroutines"`
	Checks        StatusChecks `json:"checks"`
}

// Status handles GET /api/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	checks := h.checks(r.Context())
	pingMS := time.Since(start).Milliseconds()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	memoryMB := float64(memStats.Alloc) / 1024 / 1024

	status := "ok"
	for _, c := range checks {
		if c.Status == "error" {
			status = "degraded"
		}
	}

	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	response.OK(w, StatusResponse{
		Service:       h.service,
		Status:        status,
		Version:       h.version,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		PingMS:        pingMS,
		Goroutines:    runtime.NumGoroutine(),
		Checks: StatusChecks{
			Database: checks[0].Status,
			Sessions: checks[1].Status,
			MemoryMB: float64(int(memoryMB*100)) / 100,
		},
	})
}
