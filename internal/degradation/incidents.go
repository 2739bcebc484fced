package degradation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// IncidentEventType labels a lifecycle transition for sinks.
type IncidentEventType string

const (
	EventIncidentCreated  IncidentEventType = "incident.created"
	EventIncidentUpdated  IncidentEventType = "incident.updated"
	EventIncidentResolved IncidentEventType = "incident.resolved"
)

// IncidentEvent describes one incident lifecycle transition.
type IncidentEvent struct {
	Type       IncidentEventType
	Incident   Incident
	OccurredAt time.Time
}

// IncidentSink receives incident lifecycle events. The manager notifies
// sinks asynchronously and in isolation; a failing sink is logged and never
// interrupts the lifecycle.
type IncidentSink interface {
	RecordIncident(ctx context.Context, ev IncidentEvent) error
}

// CreateIncidentParams is the input for a manually opened incident.
type CreateIncidentParams struct {
	Title       string
	Description string
	Severity    IncidentSeverity
	Services    []ServiceID
	Features    []FeatureID

	// Message seeds the audit trail; a default is used when empty.
	Message string
}

// UpdateIncidentParams is the input for an operator update. Status may be
// empty to append a note without changing state; otherwise it must move the
// lifecycle forward.
type UpdateIncidentParams struct {
	Status  IncidentStatus
	Message string
}

// incidentStore holds the live incident set and applies the lifecycle rules.
// It is not safe for concurrent use on its own: the Manager serializes every
// call, which is also what makes the duplicate-create check race-free.
type incidentStore struct {
	catalog   *Catalog
	logger    zerolog.Logger
	incidents map[string]*Incident
	order     []string
}

func newIncidentStore(catalog *Catalog, logger zerolog.Logger) *incidentStore {
	return &incidentStore{
		catalog:   catalog,
		logger:    logger,
		incidents: make(map[string]*Incident),
	}
}

func newIncidentID() string {
	return "inc_" + uuid.New().String()[:22]
}

// reconcile applies the automatic lifecycle rules against a fresh service
// state map. It returns the transitions that occurred, in order. Incidents
// that just entered monitoring still need a delayed auto-resolve scheduled
// by the caller.
func (s *incidentStore) reconcile(states map[ServiceID]ServiceState, autoCreate bool, now time.Time) []IncidentEvent {
	var events []IncidentEvent

	// Open incidents for critical services that just went unavailable. The
	// check against existing incidents keeps at most one active incident
	// per service.
	if autoCreate {
		for _, svc := range s.catalog.Services() {
			if svc.Impact != ImpactCritical || states[svc.ID].Status != StatusUnavailable {
				continue
			}
			if s.activeForService(svc.ID) != nil {
				continue
			}

			inc := s.newAutoIncident(svc, now)
			s.insert(inc)
			s.logger.Warn().
				Str("incident_id", inc.ID).
				Str("service", string(svc.ID)).
				Msg("incident opened automatically")
			events = append(events, IncidentEvent{Type: EventIncidentCreated, Incident: inc.Clone(), OccurredAt: now})
		}
	}

	// Progress or regress the rest. An incident whose services have all
	// recovered moves to monitoring; a monitoring incident whose services
	// relapsed moves back to identified, which also disarms its pending
	// auto-resolve.
	for _, id := range s.order {
		inc := s.incidents[id]
		if inc.Resolved() {
			continue
		}

		healthy := s.allHealthy(inc, states)
		switch {
		case inc.Status != IncidentMonitoring && healthy:
			s.transition(inc, IncidentMonitoring, "All affected services have recovered. Monitoring before resolution.", now)
			events = append(events, IncidentEvent{Type: EventIncidentUpdated, Incident: inc.Clone(), OccurredAt: now})
		case inc.Status == IncidentMonitoring && !healthy:
			msg := fmt.Sprintf("Regression detected: %s unhealthy again.", s.unhealthyNames(inc, states))
			s.transition(inc, IncidentIdentified, msg, now)
			s.logger.Warn().
				Str("incident_id", inc.ID).
				Msg("regression while monitoring, auto-resolve cancelled")
			events = append(events, IncidentEvent{Type: EventIncidentUpdated, Incident: inc.Clone(), OccurredAt: now})
		}
	}

	return events
}

// autoResolve finishes a monitoring incident once its cool-down elapsed. It
// re-reads the current state instead of trusting the timer: a regression
// since scheduling has either moved the incident out of monitoring or, after
// a recovery, bumped its monitoring epoch past the one the timer was armed
// with. Either way the stale timer is a no-op, and only the timer armed on
// the latest entry into monitoring can resolve.
func (s *incidentStore) autoResolve(id string, epoch uint64, now time.Time) (IncidentEvent, bool) {
	inc, ok := s.incidents[id]
	if !ok || inc.Status != IncidentMonitoring || inc.monitoringEpoch != epoch {
		return IncidentEvent{}, false
	}

	s.transition(inc, IncidentResolved, "No further issues observed. Resolved automatically.", now)
	s.logger.Info().
		Str("incident_id", inc.ID).
		Msg("incident resolved automatically")
	return IncidentEvent{Type: EventIncidentResolved, Incident: inc.Clone(), OccurredAt: now}, true
}

// create opens an incident on behalf of an operator.
func (s *incidentStore) create(p CreateIncidentParams, now time.Time) (*Incident, error) {
	if p.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidIncident)
	}
	if !p.Severity.Valid() {
		return nil, fmt.Errorf("%w: severity %q", ErrInvalidIncident, p.Severity)
	}
	if len(p.Services) == 0 {
		return nil, fmt.Errorf("%w: at least one service is required", ErrInvalidIncident)
	}
	for _, sid := range p.Services {
		if _, ok := s.catalog.Service(sid); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownService, sid)
		}
		if s.activeForService(sid) != nil {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateIncident, sid)
		}
	}
	for _, fid := range p.Features {
		if _, ok := s.catalog.Feature(fid); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownFeature, fid)
		}
	}

	message := p.Message
	if message == "" {
		message = "Incident opened."
	}

	inc := &Incident{
		ID:          newIncidentID(),
		Services:    append([]ServiceID(nil), p.Services...),
		Features:    append([]FeatureID(nil), p.Features...),
		Title:       p.Title,
		Description: p.Description,
		Severity:    p.Severity,
		Status:      IncidentInvestigating,
		StartedAt:   now,
		Updates: []IncidentUpdate{{
			Timestamp: now,
			Message:   message,
			Status:    IncidentInvestigating,
		}},
	}
	s.insert(inc)
	return inc, nil
}

// update applies an operator update. Status changes are forward-only.
func (s *incidentStore) update(id string, p UpdateIncidentParams, now time.Time) (*Incident, error) {
	inc, ok := s.incidents[id]
	if !ok {
		return nil, ErrIncidentNotFound
	}
	if inc.Resolved() {
		return nil, ErrIncidentResolved
	}
	if p.Message == "" {
		return nil, fmt.Errorf("%w: message is required", ErrInvalidIncident)
	}

	if p.Status == "" || p.Status == inc.Status {
		inc.Updates = append(inc.Updates, IncidentUpdate{
			Timestamp: now,
			Message:   p.Message,
			Status:    inc.Status,
		})
		return inc, nil
	}

	if !p.Status.Valid() {
		return nil, fmt.Errorf("%w: status %q", ErrInvalidIncident, p.Status)
	}
	if p.Status.ordinal() < inc.Status.ordinal() {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, inc.Status, p.Status)
	}

	s.transition(inc, p.Status, p.Message, now)
	return inc, nil
}

// resolve closes an incident on behalf of an operator.
func (s *incidentStore) resolve(id, message string, now time.Time) (*Incident, error) {
	if message == "" {
		message = "Incident marked resolved."
	}
	return s.update(id, UpdateIncidentParams{Status: IncidentResolved, Message: message}, now)
}

// get returns the live record; callers clone before handing it out.
func (s *incidentStore) get(id string) (*Incident, bool) {
	inc, ok := s.incidents[id]
	return inc, ok
}

// active returns copies of every non-resolved incident in creation order.
func (s *incidentStore) active() []Incident {
	var out []Incident
	for _, id := range s.order {
		if inc := s.incidents[id]; !inc.Resolved() {
			out = append(out, inc.Clone())
		}
	}
	return out
}

// activeForService returns the non-resolved incident referencing the
// service, nil when there is none.
func (s *incidentStore) activeForService(id ServiceID) *Incident {
	for _, incID := range s.order {
		inc := s.incidents[incID]
		if !inc.Resolved() && inc.References(id) {
			return inc
		}
	}
	return nil
}

func (s *incidentStore) insert(inc *Incident) {
	s.incidents[inc.ID] = inc
	s.order = append(s.order, inc.ID)
}

// transition moves an incident to a new status and appends the audit entry.
func (s *incidentStore) transition(inc *Incident, to IncidentStatus, message string, now time.Time) {
	inc.Status = to
	if to == IncidentMonitoring {
		inc.monitoringEpoch++
	}
	if to == IncidentResolved {
		inc.ResolvedAt = now
	}
	inc.Updates = append(inc.Updates, IncidentUpdate{
		Timestamp: now,
		Message:   message,
		Status:    to,
	})
}

func (s *incidentStore) newAutoIncident(svc Service, now time.Time) *Incident {
	features := s.catalog.FeaturesRequiring(svc.ID)
	return &Incident{
		ID:          newIncidentID(),
		Services:    []ServiceID{svc.ID},
		Features:    features,
		Title:       fmt.Sprintf("%s outage", svc.Name),
		Description: fmt.Sprintf("%s is unavailable. %d feature(s) are affected.", svc.Name, len(features)),
		Severity:    IncidentCritical,
		Status:      IncidentInvestigating,
		StartedAt:   now,
		Updates: []IncidentUpdate{{
			Timestamp: now,
			Message:   fmt.Sprintf("Opened automatically: %s reported unavailable.", svc.Name),
			Status:    IncidentInvestigating,
		}},
	}
}

func (s *incidentStore) allHealthy(inc *Incident, states map[ServiceID]ServiceState) bool {
	for _, sid := range inc.Services {
		if states[sid].Status != StatusHealthy {
			return false
		}
	}
	return true
}

func (s *incidentStore) unhealthyNames(inc *Incident, states map[ServiceID]ServiceState) string {
	var ids []ServiceID
	for _, sid := range inc.Services {
		if states[sid].Status != StatusHealthy {
			ids = append(ids, sid)
		}
	}
	return strings.Join(serviceNames(s.catalog, ids), ", ")
}
