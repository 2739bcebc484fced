package handler

import (
	"net/http"
	"time"

	"github.com/servifield/servifield/internal/api/models"
	"github.com/servifield/servifield/internal/api/response"
	"github.com/servifield/servifield/internal/degradation"
)

// HealthHandler serves the dashboard health snapshot.
type HealthHandler struct {
	manager *degradation.Manager
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(manager *degradation.Manager) *HealthHandler {
	return &HealthHandler{manager: manager}
}

// GetHealth handles GET /v1/health - the full system health snapshot.
// Served from the cached snapshot; falls back to a synchronous check before
// the first scheduled cycle has run.
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshot(r)
	if err != nil {
		response.ServiceUnavailable(w, r, "health snapshot unavailable")
		return
	}
	response.JSON(w, r, http.StatusOK, healthResponse(h.manager.Catalog(), snap))
}

// ListServices handles GET /v1/health/services - the per-service sub-view.
func (h *HealthHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshot(r)
	if err != nil {
		response.ServiceUnavailable(w, r, "health snapshot unavailable")
		return
	}
	resp := models.ServicesResponse{
		Services:  serviceHealthList(h.manager.Catalog(), snap),
		UpdatedAt: models.Timestamp(snap.UpdatedAt),
	}
	response.JSON(w, r, http.StatusOK, resp)
}

// ListFeatures handles GET /v1/health/features - the per-feature sub-view.
func (h *HealthHandler) ListFeatures(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshot(r)
	if err != nil {
		response.ServiceUnavailable(w, r, "health snapshot unavailable")
		return
	}
	resp := models.FeaturesResponse{
		Features:  featureHealthList(h.manager.Catalog(), snap),
		UpdatedAt: models.Timestamp(snap.UpdatedAt),
	}
	response.JSON(w, r, http.StatusOK, resp)
}

// TriggerCheck handles POST /v1/health/check - operator-triggered immediate
// re-check of every dependency.
func (h *HealthHandler) TriggerCheck(w http.ResponseWriter, r *http.Request) {
	snap, err := h.manager.GetSystemHealth(r.Context())
	if err != nil {
		response.ServiceUnavailable(w, r, "health check did not complete")
		return
	}
	response.JSON(w, r, http.StatusOK, healthResponse(h.manager.Catalog(), snap))
}

func (h *HealthHandler) snapshot(r *http.Request) (*degradation.SystemHealth, error) {
	if snap := h.manager.GetCachedHealth(); snap != nil {
		return snap, nil
	}
	return h.manager.GetSystemHealth(r.Context())
}

// healthResponse converts a snapshot into the dashboard wire shape, with
// services and features in catalog order.
func healthResponse(catalog *degradation.Catalog, snap *degradation.SystemHealth) models.HealthResponse {
	return models.HealthResponse{
		Status:               models.SystemStatus(snap.Status),
		Message:              snap.Message,
		Services:             serviceHealthList(catalog, snap),
		Features:             featureHealthList(catalog, snap),
		Incidents:            incidentSummaries(snap.ActiveIncidents),
		HealthyCount:         snap.HealthyCount,
		TotalServices:        snap.TotalServices,
		DegradedFeatureCount: snap.DegradedFeatureCount,
		UpdatedAt:            models.Timestamp(snap.UpdatedAt),
	}
}

func serviceHealthList(catalog *degradation.Catalog, snap *degradation.SystemHealth) []models.ServiceHealth {
	services := catalog.Services()
	out := make([]models.ServiceHealth, 0, len(services))
	for _, svc := range services {
		state := snap.Services[svc.ID]
		out = append(out, models.ServiceHealth{
			ID:           string(svc.ID),
			Name:         svc.Name,
			Status:       string(state.Status),
			SuccessRate:  state.SuccessRate,
			CircuitState: string(state.CircuitState),
			AvgLatencyMs: state.AvgLatencyMs,
			LastSuccess:  timestampPtr(state.LastSuccess),
			LastError:    timestampPtr(state.LastError),
			Message:      state.LastErrorMessage,
			RecoveryEta:  timestampPtr(state.RecoveryETA),
		})
	}
	return out
}

func featureHealthList(catalog *degradation.Catalog, snap *degradation.SystemHealth) []models.FeatureHealth {
	features := catalog.Features()
	out := make([]models.FeatureHealth, 0, len(features))
	for _, feat := range features {
		state := snap.Features[feat.ID]
		fh := models.FeatureHealth{
			ID:        string(feat.ID),
			Name:      feat.Name,
			Available: state.Available,
			Message:   state.UserMessage,
		}
		if !state.Available {
			fh.Severity = string(feat.Severity)
			fh.AffectedServices = serviceIDStrings(state.AffectedServices)
			fh.AlternativeAction = feat.AlternativeAction
		}
		out = append(out, fh)
	}
	return out
}

func incidentSummaries(incidents []degradation.Incident) []models.IncidentSummary {
	out := make([]models.IncidentSummary, 0, len(incidents))
	for i := range incidents {
		out = append(out, models.IncidentSummary{
			ID:       incidents[i].ID,
			Title:    incidents[i].Title,
			Severity: string(incidents[i].Severity),
			Status:   string(incidents[i].Status),
		})
	}
	return out
}

func serviceIDStrings(ids []degradation.ServiceID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

// timestampPtr returns nil for the zero time so optional timestamps are
// omitted from JSON rather than rendered as year one.
func timestampPtr(t time.Time) *models.Timestamp {
	if t.IsZero() {
		return nil
	}
	ts := models.Timestamp(t)
	return &ts
}
