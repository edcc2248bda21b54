package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

const healthCheckTimeout = 5 * time.Second

// Checker reports whether a dependency is reachable
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker
type CheckerFunc func(ctx context.Context) error

// HealthCheck calls f
func (f CheckerFunc) HealthCheck(ctx context.Context) error {
	return f(ctx)
}

// Readiness reports tagger model state
type Readiness interface {
	Ready() bool
	Err() error
}

// HealthDeps lists the dependencies checked in extended mode. Nil entries are
// reported as not configured.
type HealthDeps struct {
	Database Checker
	Cache    Checker
	Queue    Checker
	Tagger   Readiness
}

// HealthChecker handles health check requests
type HealthChecker struct {
	deps HealthDeps
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(deps HealthDeps) *HealthChecker {
	return &HealthChecker{deps: deps}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthCheck handles the /healthz endpoint
func (h *HealthChecker) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	statusCode := http.StatusOK
	if r.URL.Query().Get("mode") == "extended" {
		response.Checks = h.runChecks(r.Context())
		for _, result := range response.Checks {
			if result != "healthy" && result != "not configured" {
				response.Status = "unhealthy"
				statusCode = http.StatusServiceUnavailable
				break
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

func (h *HealthChecker) runChecks(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	checks := map[string]string{
		"database": checkDependency(ctx, h.deps.Database),
		"redis":    checkDependency(ctx, h.deps.Cache),
		"rabbitmq": checkDependency(ctx, h.deps.Queue),
		"tagger":   taggerState(h.deps.Tagger),
	}
	return checks
}

func checkDependency(ctx context.Context, c Checker) string {
	if c == nil {
		return "not configured"
	}
	if err := c.HealthCheck(ctx); err != nil {
		return "unhealthy: " + sanitizeErrorMessage(err.Error())
	}
	return "healthy"
}

func taggerState(t Readiness) string {
	if t == nil {
		return "not configured"
	}
	if t.Ready() {
		return "healthy"
	}
	if err := t.Err(); err != nil {
		return "unhealthy: " + sanitizeErrorMessage(err.Error())
	}
	return "loading"
}
