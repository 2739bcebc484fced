package models

// IncidentUpdate is one entry in an incident's audit trail.
type IncidentUpdate struct {
	Timestamp Timestamp `json:"timestamp"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
}

// Incident is the full incident representation.
type Incident struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Severity    string           `json:"severity"`
	Status      string           `json:"status"`
	Services    []string         `json:"services"`
	Features    []string         `json:"features"`
	StartedAt   Timestamp        `json:"startedAt"`
	ResolvedAt  *Timestamp       `json:"resolvedAt,omitempty"`
	Updates     []IncidentUpdate `json:"updates"`
}

// IncidentsResponse wraps the active incident list.
type IncidentsResponse struct {
	Incidents []Incident `json:"incidents"`
}

// PagedIncidents is a paginated incident history page.
type PagedIncidents struct {
	Items []Incident        `json:"items"`
	Meta  PagedResponseMeta `json:"meta"`
}

// IncidentCreateRequest is the input for manually opening an incident.
type IncidentCreateRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Severity    string   `json:"severity"`
	Services    []string `json:"services"`
	Features    []string `json:"features,omitempty"`
	Message     string   `json:"message,omitempty"`
}

// IncidentUpdateRequest is the input for an operator update. Status may be
// empty to append a note without changing lifecycle state.
type IncidentUpdateRequest struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message"`
}

// IncidentResolveRequest is the optional input for resolving an incident.
type IncidentResolveRequest struct {
	Message string `json:"message,omitempty"`
}
