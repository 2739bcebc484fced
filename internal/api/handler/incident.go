package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/servifield/servifield/internal/api/models"
	"github.com/servifield/servifield/internal/api/response"
	"github.com/servifield/servifield/internal/degradation"
	"github.com/servifield/servifield/internal/incidentlog"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// IncidentHandler handles incident lifecycle endpoints.
type IncidentHandler struct {
	manager *degradation.Manager
	history incidentlog.Repository
}

// NewIncidentHandler creates a new IncidentHandler. history may be nil when
// no archive is configured; only the history endpoint degrades.
func NewIncidentHandler(manager *degradation.Manager, history incidentlog.Repository) *IncidentHandler {
	return &IncidentHandler{
		manager: manager,
		history: history,
	}
}

// ListIncidents handles GET /v1/incidents - active incidents.
func (h *IncidentHandler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	active := h.manager.GetActiveIncidents()
	resp := models.IncidentsResponse{
		Incidents: make([]models.Incident, 0, len(active)),
	}
	for i := range active {
		resp.Incidents = append(resp.Incidents, toIncident(&active[i]))
	}
	response.JSON(w, r, http.StatusOK, resp)
}

// GetIncident handles GET /v1/incidents/{incidentId} - one incident,
// resolved or not.
func (h *IncidentHandler) GetIncident(w http.ResponseWriter, r *http.Request) {
	incidentID := chi.URLParam(r, "incidentId")
	if incidentID == "" {
		response.BadRequest(w, r, "incidentId is required", nil)
		return
	}

	inc, err := h.manager.GetIncident(incidentID)
	if err != nil {
		if errors.Is(err, degradation.ErrIncidentNotFound) {
			response.NotFound(w, r, fmt.Sprintf("incident %s not found", incidentID))
			return
		}
		response.InternalError(w, r, "incident lookup failed")
		return
	}
	response.JSON(w, r, http.StatusOK, toIncident(inc))
}

// CreateIncident handles POST /v1/incidents - manually open an incident.
func (h *IncidentHandler) CreateIncident(w http.ResponseWriter, r *http.Request) {
	var input models.IncidentCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	params := degradation.CreateIncidentParams{
		Title:       input.Title,
		Description: input.Description,
		Severity:    degradation.IncidentSeverity(input.Severity),
		Services:    serviceIDs(input.Services),
		Features:    featureIDs(input.Features),
		Message:     input.Message,
	}

	inc, err := h.manager.CreateIncident(r.Context(), params)
	if err != nil {
		writeIncidentError(w, r, err)
		return
	}

	location := fmt.Sprintf("/v1/incidents/%s", inc.ID)
	response.Created(w, r, location, toIncident(inc))
}

// UpdateIncident handles PATCH /v1/incidents/{incidentId} - apply a status
// change and/or append a note.
func (h *IncidentHandler) UpdateIncident(w http.ResponseWriter, r *http.Request) {
	incidentID := chi.URLParam(r, "incidentId")
	if incidentID == "" {
		response.BadRequest(w, r, "incidentId is required", nil)
		return
	}

	var input models.IncidentUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	params := degradation.UpdateIncidentParams{
		Status:  degradation.IncidentStatus(input.Status),
		Message: input.Message,
	}

	inc, err := h.manager.UpdateIncident(r.Context(), incidentID, params)
	if err != nil {
		writeIncidentError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toIncident(inc))
}

// ResolveIncident handles POST /v1/incidents/{incidentId}/resolve - close an
// incident. The body is optional.
func (h *IncidentHandler) ResolveIncident(w http.ResponseWriter, r *http.Request) {
	incidentID := chi.URLParam(r, "incidentId")
	if incidentID == "" {
		response.BadRequest(w, r, "incidentId is required", nil)
		return
	}

	var input models.IncidentResolveRequest
	// Body is optional, ignore decode errors
	_ = json.NewDecoder(r.Body).Decode(&input)

	inc, err := h.manager.ResolveIncident(r.Context(), incidentID, input.Message)
	if err != nil {
		writeIncidentError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toIncident(inc))
}

// ListHistory handles GET /v1/incidents/history - the persisted incident
// archive, newest first, cursor-paginated.
func (h *IncidentHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		response.ServiceUnavailable(w, r, "incident archive is not configured")
		return
	}

	opts := incidentlog.ListOptions{
		Limit:  defaultHistoryLimit,
		Cursor: r.URL.Query().Get("cursor"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			response.BadRequest(w, r, "limit must be a positive integer", nil)
			return
		}
		if limit > maxHistoryLimit {
			limit = maxHistoryLimit
		}
		opts.Limit = limit
	}
	if raw := r.URL.Query().Get("resolved"); raw != "" {
		onlyResolved, err := strconv.ParseBool(raw)
		if err != nil {
			response.BadRequest(w, r, "resolved must be a boolean", nil)
			return
		}
		opts.OnlyResolved = onlyResolved
	}

	result, err := h.history.List(r.Context(), opts)
	if err != nil {
		response.ServiceUnavailable(w, r, "incident archive is unavailable")
		return
	}

	page := models.PagedIncidents{
		Items: make([]models.Incident, 0, len(result.Items)),
		Meta:  models.PagedResponseMeta{Limit: opts.Limit},
	}
	for i := range result.Items {
		page.Items = append(page.Items, incidentFromRecord(result.Items[i]))
	}
	if result.NextCursor != "" {
		cursor := result.NextCursor
		page.Meta.NextCursor = &cursor
	}
	response.JSON(w, r, http.StatusOK, page)
}

// writeIncidentError maps manager errors onto problem responses.
func writeIncidentError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, degradation.ErrIncidentNotFound):
		response.NotFound(w, r, "incident not found")
	case errors.Is(err, degradation.ErrDuplicateIncident),
		errors.Is(err, degradation.ErrIncidentResolved):
		response.Conflict(w, r, err.Error())
	case errors.Is(err, degradation.ErrInvalidIncident),
		errors.Is(err, degradation.ErrInvalidTransition),
		errors.Is(err, degradation.ErrUnknownService),
		errors.Is(err, degradation.ErrUnknownFeature):
		response.BadRequest(w, r, err.Error(), nil)
	default:
		response.InternalError(w, r, "incident operation failed")
	}
}

// toIncident converts a manager incident into the wire shape.
func toIncident(inc *degradation.Incident) models.Incident {
	out := models.Incident{
		ID:          inc.ID,
		Title:       inc.Title,
		Description: inc.Description,
		Severity:    string(inc.Severity),
		Status:      string(inc.Status),
		Services:    serviceIDStrings(inc.Services),
		Features:    featureIDStrings(inc.Features),
		StartedAt:   models.Timestamp(inc.StartedAt),
		ResolvedAt:  timestampPtr(inc.ResolvedAt),
		Updates:     make([]models.IncidentUpdate, 0, len(inc.Updates)),
	}
	for _, u := range inc.Updates {
		out.Updates = append(out.Updates, models.IncidentUpdate{
			Timestamp: models.Timestamp(u.Timestamp),
			Status:    string(u.Status),
			Message:   u.Message,
		})
	}
	return out
}

// incidentFromRecord converts an archived incident into the wire shape.
func incidentFromRecord(rec *incidentlog.Record) models.Incident {
	out := models.Incident{
		ID:          rec.ID,
		Title:       rec.Title,
		Description: rec.Description,
		Severity:    rec.Severity,
		Status:      rec.Status,
		Services:    rec.Services,
		Features:    rec.Features,
		StartedAt:   models.Timestamp(rec.StartedAt),
		Updates:     make([]models.IncidentUpdate, 0, len(rec.Updates)),
	}
	if rec.ResolvedAt != nil {
		ts := models.Timestamp(*rec.ResolvedAt)
		out.ResolvedAt = &ts
	}
	for _, u := range rec.Updates {
		out.Updates = append(out.Updates, models.IncidentUpdate{
			Timestamp: models.Timestamp(u.Timestamp),
			Status:    u.Status,
			Message:   u.Message,
		})
	}
	return out
}

func serviceIDs(ids []string) []degradation.ServiceID {
	out := make([]degradation.ServiceID, len(ids))
	for i, id := range ids {
		out[i] = degradation.ServiceID(id)
	}
	return out
}

func featureIDs(ids []string) []degradation.FeatureID {
	out := make([]degradation.FeatureID, len(ids))
	for i, id := range ids {
		out[i] = degradation.FeatureID(id)
	}
	return out
}

func featureIDStrings(ids []degradation.FeatureID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
