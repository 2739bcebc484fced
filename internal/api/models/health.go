package models

// SystemStatus represents the system-wide health classification.
type SystemStatus string

const (
	SystemStatusOperational   SystemStatus = "operational"
	SystemStatusDegraded      SystemStatus = "degraded"
	SystemStatusPartialOutage SystemStatus = "partial_outage"
	SystemStatusMajorOutage   SystemStatus = "major_outage"
)

// ServiceHealth represents the health of one external dependency. The id,
// name, status and successRate fields are consumed by the dashboard client
// and must keep their names.
type ServiceHealth struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Status      string  `json:"status"`
	SuccessRate float64 `json:"successRate"`

	CircuitState string     `json:"circuitState,omitempty"`
	AvgLatencyMs float64    `json:"avgLatencyMs,omitempty"`
	LastSuccess  *Timestamp `json:"lastSuccess,omitempty"`
	LastError    *Timestamp `json:"lastError,omitempty"`
	Message      string     `json:"message,omitempty"`
	RecoveryEta  *Timestamp `json:"recoveryEta,omitempty"`
}

// FeatureHealth represents the availability of one product capability. The
// id, name, available and message fields are consumed by the dashboard
// client and must keep their names.
type FeatureHealth struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Message   string `json:"message"`

	Severity          string   `json:"severity,omitempty"`
	AffectedServices  []string `json:"affectedServices,omitempty"`
	AlternativeAction string   `json:"alternativeAction,omitempty"`
}

// IncidentSummary is the compact incident representation embedded in the
// health document.
type IncidentSummary struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Severity string `json:"severity"`
	Status   string `json:"status"`
}

// HealthResponse is the full dashboard-compatible snapshot.
type HealthResponse struct {
	Status  SystemStatus `json:"status"`
	Message string       `json:"message"`

	Services  []ServiceHealth   `json:"services"`
	Features  []FeatureHealth   `json:"features"`
	Incidents []IncidentSummary `json:"incidents"`

	HealthyCount         int `json:"healthyCount"`
	TotalServices        int `json:"totalServices"`
	DegradedFeatureCount int `json:"degradedFeatureCount"`

	UpdatedAt Timestamp `json:"updatedAt"`
}

// ServicesResponse is the per-service sub-view of the snapshot.
type ServicesResponse struct {
	Services  []ServiceHealth `json:"services"`
	UpdatedAt Timestamp       `json:"updatedAt"`
}

// FeaturesResponse is the per-feature sub-view of the snapshot.
type FeaturesResponse struct {
	Features  []FeatureHealth `json:"features"`
	UpdatedAt Timestamp       `json:"updatedAt"`
}
