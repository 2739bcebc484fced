package incidentlog_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servifield/servifield/internal/degradation"
	"github.com/servifield/servifield/internal/incidentlog"
)

type failingRepo struct{}

func (f *failingRepo) Upsert(_ context.Context, _ incidentlog.Record) error {
	return errors.New("connection reset")
}

func (f *failingRepo) Get(_ context.Context, _ string) (*incidentlog.Record, error) {
	return nil, incidentlog.ErrRecordNotFound
}

func (f *failingRepo) List(_ context.Context, _ incidentlog.ListOptions) (*incidentlog.ListResult, error) {
	return &incidentlog.ListResult{}, nil
}

func sampleIncident(started time.Time) degradation.Incident {
	return degradation.Incident{
		ID:        "inc_abc",
		Title:     "PostgreSQL outage",
		Severity:  degradation.IncidentCritical,
		Status:    degradation.IncidentIdentified,
		Services:  []degradation.ServiceID{"database"},
		Features:  []degradation.FeatureID{"invoice_generation", "electronic_invoicing"},
		StartedAt: started,
		Updates: []degradation.IncidentUpdate{
			{Timestamp: started, Status: degradation.IncidentInvestigating, Message: "Opened automatically."},
			{Timestamp: started.Add(time.Minute), Status: degradation.IncidentIdentified, Message: "Failover in progress."},
		},
	}
}

func TestSink_PersistsEvent(t *testing.T) {
	repo := incidentlog.NewInMemoryRepository()
	sink := incidentlog.NewSink(repo, zerolog.Nop())
	started := time.Now().Add(-10 * time.Minute)

	ev := degradation.IncidentEvent{
		Type:       degradation.EventIncidentUpdated,
		Incident:   sampleIncident(started),
		OccurredAt: started.Add(time.Minute),
	}
	require.NoError(t, sink.RecordIncident(context.Background(), ev))

	rec, err := repo.Get(context.Background(), "inc_abc")
	require.NoError(t, err)
	assert.Equal(t, "PostgreSQL outage", rec.Title)
	assert.Equal(t, "critical", rec.Severity)
	assert.Equal(t, "identified", rec.Status)
	assert.Equal(t, []string{"database"}, rec.Services)
	assert.Equal(t, []string{"invoice_generation", "electronic_invoicing"}, rec.Features)
	assert.Nil(t, rec.ResolvedAt)
	require.Len(t, rec.Updates, 2)
	assert.Equal(t, "Failover in progress.", rec.Updates[1].Message)
}

func TestSink_ResolvedIncidentKeepsTimestamp(t *testing.T) {
	repo := incidentlog.NewInMemoryRepository()
	sink := incidentlog.NewSink(repo, zerolog.Nop())
	started := time.Now().Add(-time.Hour)

	inc := sampleIncident(started)
	inc.Status = degradation.IncidentResolved
	inc.ResolvedAt = started.Add(45 * time.Minute)

	ev := degradation.IncidentEvent{
		Type:       degradation.EventIncidentResolved,
		Incident:   inc,
		OccurredAt: inc.ResolvedAt,
	}
	require.NoError(t, sink.RecordIncident(context.Background(), ev))

	rec, err := repo.Get(context.Background(), "inc_abc")
	require.NoError(t, err)
	assert.True(t, rec.Resolved())
	require.NotNil(t, rec.ResolvedAt)
	assert.True(t, rec.ResolvedAt.Equal(inc.ResolvedAt))
}

func TestSink_RepositoryFailureIsReported(t *testing.T) {
	sink := incidentlog.NewSink(&failingRepo{}, zerolog.Nop())

	ev := degradation.IncidentEvent{
		Type:       degradation.EventIncidentCreated,
		Incident:   sampleIncident(time.Now()),
		OccurredAt: time.Now(),
	}
	err := sink.RecordIncident(context.Background(), ev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inc_abc")
}
