// Package degradation tracks the health of the external dependencies the
// product relies on and derives feature availability, an overall system
// status, and an incident lifecycle from it.
package degradation

import (
	"errors"
	"time"
)

// Manager errors.
var (
	ErrIncidentNotFound   = errors.New("incident not found")
	ErrIncidentResolved   = errors.New("incident is already resolved")
	ErrDuplicateIncident  = errors.New("an active incident already references this service")
	ErrInvalidIncident    = errors.New("invalid incident")
	ErrUnknownService     = errors.New("unknown service")
	ErrUnknownFeature     = errors.New("unknown feature")
	ErrInvalidTransition  = errors.New("invalid incident status transition")
	ErrProbeNotRegistered = errors.New("no probe registered for service")
)

// ServiceID identifies an external dependency.
type ServiceID string

// Production service identifiers.
const (
	ServiceMercadoPago ServiceID = "mercadopago"
	ServiceMessaging   ServiceID = "messaging"
	ServiceAI          ServiceID = "ai"
	ServiceAFIP        ServiceID = "afip"
	ServiceDatabase    ServiceID = "database"
	ServiceCache       ServiceID = "cache"
	ServiceStorage     ServiceID = "storage"
)

// FeatureID identifies a user-facing product capability.
type FeatureID string

// Production feature identifiers.
const (
	FeatureOnlinePayments      FeatureID = "online_payments"
	FeaturePaymentWebhooks     FeatureID = "payment_webhooks"
	FeatureWhatsAppMessaging   FeatureID = "whatsapp_messaging"
	FeatureSMSNotifications    FeatureID = "sms_notifications"
	FeatureAIResponses         FeatureID = "ai_responses"
	FeatureVoiceTranscription  FeatureID = "voice_transcription"
	FeatureDocumentExtraction  FeatureID = "document_extraction"
	FeatureInvoiceGeneration   FeatureID = "invoice_generation"
	FeatureElectronicInvoicing FeatureID = "electronic_invoicing"
)

// ServiceStatus is the health classification of a single service.
type ServiceStatus string

const (
	StatusHealthy     ServiceStatus = "healthy"
	StatusDegraded    ServiceStatus = "degraded"
	StatusUnavailable ServiceStatus = "unavailable"
	StatusUnknown     ServiceStatus = "unknown"
)

// CircuitState is the breaker classification reported by probes that wrap a
// circuit breaker. It is consumed here, never computed.
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitHalfOpen CircuitState = "half-open"
	CircuitOpen     CircuitState = "open"
)

// StatusFromCircuit maps a breaker state to a service status. Probes that
// wrap a circuit breaker use this as their classification.
func StatusFromCircuit(cs CircuitState) ServiceStatus {
	switch cs {
	case CircuitClosed:
		return StatusHealthy
	case CircuitHalfOpen:
		return StatusDegraded
	case CircuitOpen:
		return StatusUnavailable
	default:
		return StatusUnknown
	}
}

// ImpactLevel describes how badly an outage of a service hurts the product.
type ImpactLevel string

const (
	ImpactCritical ImpactLevel = "critical"
	ImpactHigh     ImpactLevel = "high"
	ImpactMedium   ImpactLevel = "medium"
	ImpactLow      ImpactLevel = "low"
)

// FeatureSeverity describes how a degraded feature is surfaced to users.
type FeatureSeverity string

const (
	SeverityInfo    FeatureSeverity = "info"
	SeverityWarning FeatureSeverity = "warning"
	SeverityError   FeatureSeverity = "error"
)

// Service is the static description of one external dependency.
type Service struct {
	ID          ServiceID
	Name        string
	Description string
	Impact      ImpactLevel

	// HasFallback indicates the product keeps limping along without this
	// service; FallbackDescription says how.
	HasFallback         bool
	FallbackDescription string
}

// ServiceState is the health of one service as observed during the most
// recent aggregation cycle.
type ServiceState struct {
	Status ServiceStatus

	// CircuitState is set when the probe wraps a circuit breaker, empty
	// otherwise.
	CircuitState CircuitState

	// SuccessRate is the probe's rolling success percentage (0-100).
	SuccessRate float64

	// AvgLatencyMs is the probe's rolling average request latency.
	AvgLatencyMs float64

	LastSuccess time.Time
	LastError   time.Time

	// LastErrorMessage carries the most recent failure, empty when none.
	LastErrorMessage string

	// RecoveryETA is an optional estimate of when the service returns,
	// zero when unknown.
	RecoveryETA time.Time

	UpdatedAt time.Time
}

// Feature is the static description of a product capability and the services
// it requires.
type Feature struct {
	ID          FeatureID
	Name        string
	Description string

	// Requires lists the services the feature cannot work without, in
	// display order.
	Requires []ServiceID

	// Severity controls how prominently the degradation is surfaced when
	// the feature is unavailable.
	Severity FeatureSeverity

	// AlternativeAction tells the user what to do instead, empty when
	// there is nothing to suggest.
	AlternativeAction string
}

// FeatureState is the availability of one feature as derived from the most
// recent aggregation cycle.
type FeatureState struct {
	Available bool

	// AffectedServices is the subset of required services currently not
	// healthy. Available is true exactly when this is empty.
	AffectedServices []ServiceID

	// UserMessage is the user-facing explanation when the feature is
	// unavailable, empty otherwise.
	UserMessage string

	// DegradedReason lists the affected service names, empty when
	// available.
	DegradedReason string
}

// IncidentStatus is the lifecycle state of an incident.
type IncidentStatus string

const (
	IncidentInvestigating IncidentStatus = "investigating"
	IncidentIdentified    IncidentStatus = "identified"
	IncidentMonitoring    IncidentStatus = "monitoring"
	IncidentResolved      IncidentStatus = "resolved"
)

// ordinal orders lifecycle states; manual transitions may only move forward.
func (s IncidentStatus) ordinal() int {
	switch s {
	case IncidentInvestigating:
		return 0
	case IncidentIdentified:
		return 1
	case IncidentMonitoring:
		return 2
	case IncidentResolved:
		return 3
	default:
		return -1
	}
}

// Valid reports whether the status is one of the known lifecycle states.
func (s IncidentStatus) Valid() bool {
	return s.ordinal() >= 0
}

// IncidentSeverity grades an incident.
type IncidentSeverity string

const (
	IncidentMinor    IncidentSeverity = "minor"
	IncidentMajor    IncidentSeverity = "major"
	IncidentCritical IncidentSeverity = "critical"
)

// Valid reports whether the severity is one of the known grades.
func (s IncidentSeverity) Valid() bool {
	switch s {
	case IncidentMinor, IncidentMajor, IncidentCritical:
		return true
	}
	return false
}

// IncidentUpdate is one entry in an incident's append-only audit trail.
type IncidentUpdate struct {
	Timestamp time.Time
	Message   string
	Status    IncidentStatus
}

// Incident is a tracked record of an ongoing degradation.
type Incident struct {
	ID          string
	Services    []ServiceID
	Features    []FeatureID
	Title       string
	Description string
	Severity    IncidentSeverity
	Status      IncidentStatus
	StartedAt   time.Time

	// ResolvedAt is zero until the incident reaches the resolved status.
	ResolvedAt time.Time

	// Updates is append-only; every transition adds an entry.
	Updates []IncidentUpdate

	// monitoringEpoch counts entries into monitoring. A scheduled
	// auto-resolve captures it when armed and fires only against the same
	// epoch, so a timer from before a regression cannot cut short the
	// cool-down of a later monitoring stint.
	monitoringEpoch uint64
}

// Resolved reports whether the incident reached its terminal state.
func (i *Incident) Resolved() bool {
	return i.Status == IncidentResolved
}

// References reports whether the incident covers the given service.
func (i *Incident) References(id ServiceID) bool {
	for _, s := range i.Services {
		if s == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to hand out of the manager.
func (i *Incident) Clone() Incident {
	out := *i
	out.Services = append([]ServiceID(nil), i.Services...)
	out.Features = append([]FeatureID(nil), i.Features...)
	out.Updates = append([]IncidentUpdate(nil), i.Updates...)
	return out
}

// SystemStatus is the system-wide classification.
type SystemStatus string

const (
	SystemOperational   SystemStatus = "operational"
	SystemDegraded      SystemStatus = "degraded"
	SystemPartialOutage SystemStatus = "partial_outage"
	SystemMajorOutage   SystemStatus = "major_outage"
)

// SystemHealth is one atomically produced snapshot of everything the manager
// knows. Snapshots are immutable once published; callers must not modify
// them.
type SystemHealth struct {
	Status  SystemStatus
	Message string

	Services map[ServiceID]ServiceState
	Features map[FeatureID]FeatureState

	// ActiveIncidents holds copies of every incident not yet resolved.
	ActiveIncidents []Incident

	HealthyCount         int
	TotalServices        int
	DegradedFeatureCount int

	UpdatedAt time.Time
}
