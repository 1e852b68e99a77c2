package handler

import (
	"context"
	"net/http"

	"officehours/backend/internal/api/response"
	"officehours/backend/internal/service"
)

// Pinger verifies connectivity to a backing store
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck returns a simple health check response
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{
		"status": "ok",
	})
}

// ReadyCheck returns readiness including store connectivity and
// stream outcome counters
func ReadyCheck(db Pinger, metrics *service.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			response.Error(w, http.StatusServiceUnavailable, "database not ready")
			return
		}

		response.OK(w, map[string]any{
			"status":  "ready",
			"streams": metrics.Snapshot(),
		})
	}
}
