package api

import (
	"net/http"
	"time"

	"objectstore/logger"
	"objectstore/store"
)

// HealthHandler answers liveness checks against the coordinator's database.
type HealthHandler struct {
	coord     *store.Coordinator
	startTime time.Time
}

// NewHealthHandler returns a HealthHandler backed by coord.
func NewHealthHandler(coord *store.Coordinator) *HealthHandler {
	return &HealthHandler{coord: coord, startTime: time.Now()}
}

// Health handles GET /svc/v1/healthz: pings the database connection and
// reports uptime. Not part of the core storage and revisioning engine —
// ambient ops tooling stubbed the way the teacher's health_handler.go does.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	checks := map[string]string{}

	if err := h.coord.Engine().DB().PingContext(r.Context()); err != nil {
		logger.Warn("health check: database ping failed: %v", err)
		status = "unhealthy"
		checks["database"] = "unhealthy: " + err.Error()
	} else {
		checks["database"] = "healthy"
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}

	RespondJSON(w, code, Envelope{
		"status": status,
		"uptime": time.Since(h.startTime).String(),
		"checks": checks,
	})
}
