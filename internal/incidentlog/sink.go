package incidentlog

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/servifield/servifield/internal/degradation"
)

// Sink persists incident lifecycle events into a Repository. Plug it into
// the degradation manager's sink list.
type Sink struct {
	repo   Repository
	logger zerolog.Logger
}

// NewSink creates a sink writing to repo.
func NewSink(repo Repository, logger zerolog.Logger) *Sink {
	return &Sink{
		repo:   repo,
		logger: logger.With().Str("sink", "incidentlog").Logger(),
	}
}

// RecordIncident implements degradation.IncidentSink.
func (s *Sink) RecordIncident(ctx context.Context, ev degradation.IncidentEvent) error {
	rec := RecordFromIncident(ev.Incident, ev.OccurredAt)
	if err := s.repo.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("persist incident %s: %w", rec.ID, err)
	}

	s.logger.Debug().
		Str("incident_id", rec.ID).
		Str("event", string(ev.Type)).
		Str("status", rec.Status).
		Msg("incident event persisted")
	return nil
}

// Ensure Sink implements degradation.IncidentSink.
var _ degradation.IncidentSink = (*Sink)(nil)
