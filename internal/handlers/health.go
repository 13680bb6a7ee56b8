package handlers

import (
	"context"
	"net/http"
	"time"
)

// Pinger is anything with a liveness check, such as a pgx pool or a Valkey
// client adapter.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f(ctx).
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Health reports whether the database and the cache are reachable.
type Health struct {
	checks map[string]Pinger
}

// NewHealth creates the health handler over named dependencies.
func NewHealth(checks map[string]Pinger) *Health {
	return &Health{checks: checks}
}

// ServeHTTP handles GET /health.
func (h *Health) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	result := map[string]string{}
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			result[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		result[name] = "ok"
	}

	body := map[string]any{"status": "ok", "checks": result}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	writeJSON(w, status, body)
}
