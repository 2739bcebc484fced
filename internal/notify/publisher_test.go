package notify_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servifield/servifield/internal/degradation"
	"github.com/servifield/servifield/internal/notify"
)

func TestMessageFrom(t *testing.T) {
	started := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	ev := degradation.IncidentEvent{
		Type: degradation.EventIncidentCreated,
		Incident: degradation.Incident{
			ID:        "inc_42",
			Title:     "WhatsApp Business API outage",
			Severity:  degradation.IncidentMajor,
			Status:    degradation.IncidentInvestigating,
			Services:  []degradation.ServiceID{"messaging"},
			Features:  []degradation.FeatureID{"whatsapp_messaging", "sms_notifications"},
			StartedAt: started,
		},
		OccurredAt: started,
	}

	msg := notify.MessageFrom(ev)

	assert.Equal(t, "incident.created", msg.Event)
	assert.Equal(t, "inc_42", msg.IncidentID)
	assert.Equal(t, "major", msg.Severity)
	assert.Equal(t, "investigating", msg.Status)
	assert.Equal(t, []string{"messaging"}, msg.Services)
	assert.Equal(t, []string{"whatsapp_messaging", "sms_notifications"}, msg.Features)
	assert.True(t, msg.OccurredAt.Equal(started))
}

func TestMessageFrom_JSONShape(t *testing.T) {
	ev := degradation.IncidentEvent{
		Type: degradation.EventIncidentResolved,
		Incident: degradation.Incident{
			ID:       "inc_7",
			Title:    "Redis outage",
			Severity: degradation.IncidentMinor,
			Status:   degradation.IncidentResolved,
			Services: []degradation.ServiceID{"cache"},
		},
		OccurredAt: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(notify.MessageFrom(ev))
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "incident.resolved", decoded["event"])
	assert.Equal(t, "inc_7", decoded["incident_id"])
	assert.Equal(t, "resolved", decoded["status"])
	assert.Equal(t, []interface{}{"cache"}, decoded["services"])
	assert.Equal(t, []interface{}{}, decoded["features"])
	assert.Equal(t, "2026-03-14T10:00:00Z", decoded["occurred_at"])
}
