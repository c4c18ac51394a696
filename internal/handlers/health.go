package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/feedlens/api/internal/platform/httpx"
)

// ReadinessProbe reports whether one downstream dependency is reachable.
type ReadinessProbe func(ctx context.Context) error

// HealthHandlers serves the liveness and readiness endpoints.
type HealthHandlers struct {
	startedAt time.Time
	clock     func() time.Time
	probes    map[string]ReadinessProbe
	order     []string
}

// HealthOption customises the health handlers.
type HealthOption func(*HealthHandlers)

// NewHealthHandlers constructs the health handlers with an optional set of probes.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{
		startedAt: time.Now(),
		clock:     time.Now,
		probes:    make(map[string]ReadinessProbe),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// WithHealthClock overrides the clock, primarily for tests.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// WithHealthStartedAt pins the process start time used for uptime reporting.
func WithHealthStartedAt(startedAt time.Time) HealthOption {
	return func(h *HealthHandlers) {
		h.startedAt = startedAt
	}
}

// WithReadinessProbe registers a named dependency check run by /readyz.
func WithReadinessProbe(name string, probe ReadinessProbe) HealthOption {
	return func(h *HealthHandlers) {
		if name == "" || probe == nil {
			return
		}
		if _, ok := h.probes[name]; !ok {
			h.order = append(h.order, name)
		}
		h.probes[name] = probe
	}
}

// Healthz reports process liveness. It never touches downstream dependencies.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.clock()
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    now.Sub(h.startedAt).String(),
		"timestamp": now.UTC().Format(time.RFC3339),
	})
}

// Readyz runs every registered probe and fails closed on the first error.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	checks := make(map[string]string, len(h.probes))
	for _, name := range h.order {
		if err := h.probes[name](ctx); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("not_ready", name+" unavailable", http.StatusServiceUnavailable))
			return
		}
		checks[name] = "ok"
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status": "ok",
		"checks": checks,
	})
}
