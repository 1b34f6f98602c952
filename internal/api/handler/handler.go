// Package handler provides HTTP handlers for the ops API: health checks,
// the sync job ledger, and alert rows. External dashboards are read-only
// consumers; nothing here mutates state.
package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/playpulse/playpulse-data/internal/alerts"
	"github.com/playpulse/playpulse-data/internal/api/respond"
	"github.com/playpulse/playpulse-data/internal/config"
	"github.com/playpulse/playpulse-data/internal/db"
	"github.com/playpulse/playpulse-data/internal/jobs"
)

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	pool   *db.Pool
	ledger *jobs.PGLedger
	alerts *alerts.PGStore
	cfg    *config.Config
}

// New creates a Handler with shared dependencies.
func New(pool *db.Pool, cfg *config.Config) *Handler {
	return &Handler{
		pool:   pool,
		ledger: jobs.NewPGLedger(pool.Pool),
		alerts: alerts.NewPGStore(pool.Pool),
		cfg:    cfg,
	}
}

// Root serves API info at /.
// @Summary API root info
// @Description Returns API name, version, and status.
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"name":    "PlayPulse Ops API",
		"version": "1.0.0",
		"status":  "running",
		"docs":    "/docs",
	})
}

// HealthCheck returns basic health status.
// @Summary Health check
// @Description Returns basic health status and timestamp.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies database connectivity.
// @Summary Database health check
// @Description Verifies Postgres connectivity.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/db [get]
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	if err := h.pool.HealthCheck(r.Context()); err != nil {
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"database":  "disconnected",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// GetJobs returns recent sync job ledger rows.
// @Summary Recent sync jobs
// @Description Returns the newest job ledger rows, most recent first.
// @Tags jobs
// @Produce json
// @Param limit query int false "Max rows (default 50)"
// @Success 200 {array} jobs.Job
// @Router /api/v1/jobs [get]
func (h *Handler) GetJobs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	rows, err := h.ledger.Recent(r.Context(), limit)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "QUERY_FAILED", "Failed to list jobs")
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, rows)
}

// GetSubscriberAlerts returns recent alerts for one subscriber.
// @Summary Recent alerts for a subscriber
// @Description Returns the newest alert rows for a subscriber, most recent first.
// @Tags alerts
// @Produce json
// @Param subscriberID path string true "Subscriber ID"
// @Param limit query int false "Max rows (default 50)"
// @Success 200 {array} alerts.Alert
// @Router /api/v1/alerts/{subscriberID} [get]
func (h *Handler) GetSubscriberAlerts(w http.ResponseWriter, r *http.Request) {
	subscriberID := chi.URLParam(r, "subscriberID")
	if subscriberID == "" {
		respond.WriteError(w, http.StatusBadRequest, "MISSING_SUBSCRIBER", "subscriberID is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	rows, err := h.alerts.Recent(r.Context(), subscriberID, limit)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "QUERY_FAILED", "Failed to list alerts")
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, rows)
}
