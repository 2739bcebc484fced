// Package incidentlog persists incident lifecycle events so history survives
// restarts. The degradation manager keeps active incidents in memory; this
// package is the durable record behind the history endpoint.
package incidentlog

import (
	"time"

	"github.com/servifield/servifield/internal/degradation"
)

// Update is one persisted audit trail entry.
type Update struct {
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
}

// Record is the persisted form of an incident. Each lifecycle event upserts
// the full record, so the row always reflects the latest state.
type Record struct {
	ID          string
	Title       string
	Description string
	Severity    string
	Status      string
	Services    []string
	Features    []string
	StartedAt   time.Time
	ResolvedAt  *time.Time
	Updates     []Update
	UpdatedAt   time.Time
}

// Resolved reports whether the record is in its terminal state.
func (r *Record) Resolved() bool {
	return r.Status == string(degradation.IncidentResolved)
}

// RecordFromIncident converts a manager incident into its persisted form.
func RecordFromIncident(inc degradation.Incident, at time.Time) Record {
	rec := Record{
		ID:          inc.ID,
		Title:       inc.Title,
		Description: inc.Description,
		Severity:    string(inc.Severity),
		Status:      string(inc.Status),
		Services:    make([]string, 0, len(inc.Services)),
		Features:    make([]string, 0, len(inc.Features)),
		StartedAt:   inc.StartedAt,
		Updates:     make([]Update, 0, len(inc.Updates)),
		UpdatedAt:   at,
	}

	for _, s := range inc.Services {
		rec.Services = append(rec.Services, string(s))
	}
	for _, f := range inc.Features {
		rec.Features = append(rec.Features, string(f))
	}
	for _, u := range inc.Updates {
		rec.Updates = append(rec.Updates, Update{
			Timestamp: u.Timestamp,
			Status:    string(u.Status),
			Message:   u.Message,
		})
	}
	if !inc.ResolvedAt.IsZero() {
		resolved := inc.ResolvedAt
		rec.ResolvedAt = &resolved
	}

	return rec
}
