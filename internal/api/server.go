// SPDX-License-Identifier: MIT

// Package api serves the daemon's HTTP surface: the liveness endpoint that
// keep-alive pingers hit, health and readiness reports, and metrics.
package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/threadwarden/internal/api/middleware"
	"github.com/ManuGH/threadwarden/internal/health"
)

// AwakeBody is the liveness response body.
const AwakeBody = "Bot is awake!"

// Config selects the optional parts of the HTTP surface.
type Config struct {
	ServiceName        string
	MetricsEnabled     bool
	TracingEnabled     bool
	RateLimitPerMinute int
}

// NewRouter builds the HTTP handler.
func NewRouter(cfg Config, hm *health.Manager) http.Handler {
	stack := middleware.StackConfig{
		EnableMetrics:      cfg.MetricsEnabled,
		EnableLogging:      true,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}
	if cfg.TracingEnabled {
		stack.TracingService = cfg.ServiceName
	}
	r := middleware.NewRouter(stack)

	r.Get("/", handleAwake)
	r.Head("/", handleAwake)
	if hm != nil {
		r.Get("/healthz", hm.ServeHealth)
		r.Get("/readyz", hm.ServeReady)
	}
	if cfg.MetricsEnabled {
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
	})
	return r
}

func handleAwake(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write([]byte(AwakeBody))
	}
}

func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + code + `"}`))
}
