// Package notify publishes incident lifecycle events to Pub/Sub so external
// systems such as the status page and on-call escalation can react to them.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/servifield/servifield/internal/degradation"
)

// Config holds configuration for the incident event publisher.
type Config struct {
	ProjectID string
	TopicName string
	Logger    zerolog.Logger
}

// Message is the wire form of one incident lifecycle event.
type Message struct {
	Event      string    `json:"event"`
	IncidentID string    `json:"incident_id"`
	Title      string    `json:"title"`
	Severity   string    `json:"severity"`
	Status     string    `json:"status"`
	Services   []string  `json:"services"`
	Features   []string  `json:"features"`
	OccurredAt time.Time `json:"occurred_at"`
}

// MessageFrom converts a lifecycle event into its wire form.
func MessageFrom(ev degradation.IncidentEvent) Message {
	msg := Message{
		Event:      string(ev.Type),
		IncidentID: ev.Incident.ID,
		Title:      ev.Incident.Title,
		Severity:   string(ev.Incident.Severity),
		Status:     string(ev.Incident.Status),
		Services:   make([]string, 0, len(ev.Incident.Services)),
		Features:   make([]string, 0, len(ev.Incident.Features)),
		OccurredAt: ev.OccurredAt,
	}
	for _, s := range ev.Incident.Services {
		msg.Services = append(msg.Services, string(s))
	}
	for _, f := range ev.Incident.Features {
		msg.Features = append(msg.Features, string(f))
	}
	return msg
}

// Publisher publishes incident events to a Pub/Sub topic.
type Publisher struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	topicName string
	logger    zerolog.Logger
}

// NewPublisher creates a publisher for the configured topic.
func NewPublisher(ctx context.Context, cfg Config) (*Publisher, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	return &Publisher{
		client:    client,
		publisher: client.Publisher(cfg.TopicName),
		topicName: cfg.TopicName,
		logger:    cfg.Logger.With().Str("sink", "notify").Logger(),
	}, nil
}

// RecordIncident implements degradation.IncidentSink. The publish is
// confirmed before returning so the manager's sink error handling sees
// broker failures.
func (p *Publisher) RecordIncident(ctx context.Context, ev degradation.IncidentEvent) error {
	data, err := json.Marshal(MessageFrom(ev))
	if err != nil {
		return fmt.Errorf("marshal incident event: %w", err)
	}

	result := p.publisher.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event":    string(ev.Type),
			"severity": string(ev.Incident.Severity),
		},
	})

	id, err := result.Get(ctx)
	if err != nil {
		return fmt.Errorf("publish incident event: %w", err)
	}

	p.logger.Debug().
		Str("incident_id", ev.Incident.ID).
		Str("message_id", id).
		Str("topic", p.topicName).
		Msg("incident event published")
	return nil
}

// Close flushes pending publishes and closes the client.
func (p *Publisher) Close() error {
	p.publisher.Stop()
	return p.client.Close()
}

// Ensure Publisher implements degradation.IncidentSink.
var _ degradation.IncidentSink = (*Publisher)(nil)
