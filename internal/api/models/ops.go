package models

// Health represents the liveness of the service process itself. Dependency
// health lives under /v1/health.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}
