package handler

import (
	"context"
	"net/http"
	"sort"
	"time"
)

// Pinger is a dependency whose reachability gates readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	checks map[string]Pinger
}

// NewHealthHandler creates a new HealthHandler. checks maps a dependency name
// (postgres, redis, ...) to its probe.
func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Liveness returns 200 if the service is alive.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readiness returns 200 if every dependency answers.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := map[string]string{"status": "ready"}
	for _, name := range names {
		if err := h.checks[name].Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, name+" unhealthy", err.Error())
			return
		}
		status[name] = "ok"
	}

	writeJSON(w, http.StatusOK, status)
}
