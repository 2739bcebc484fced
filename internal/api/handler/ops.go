// Package handler provides HTTP handlers for the ServiField API.
package handler

import (
	"net/http"
	"time"

	"github.com/servifield/servifield/internal/api/models"
	"github.com/servifield/servifield/internal/api/response"
	"github.com/servifield/servifield/internal/degradation"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	manager   *degradation.Manager
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(version, buildTime string, manager *degradation.Manager) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		manager:   manager,
	}
}

// HealthCheck handles GET /healthz - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /readyz - readiness check. Ready once the first
// health snapshot has been published; the snapshot's own status does not
// matter, a degraded system still serves traffic.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if h.manager.GetCachedHealth() == nil {
		health := models.Health{
			Status: models.HealthStatusFail,
			Time:   models.Timestamp(time.Now()),
			Details: map[string]interface{}{
				"reason": "health snapshot not yet computed",
			},
		}
		response.JSON(w, r, http.StatusServiceUnavailable, health)
		return
	}

	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}
	response.JSON(w, r, http.StatusOK, health)
}
