package mutation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/emilianohg/internhub/internal/models"
)

// Notification types.
const (
	EventNewMessage         = "new_message"
	EventApplicationStatus  = "application_status"
	EventJobPublished       = "job_published"
	EventInterviewScheduled = "interview_scheduled"
	EventFeedbackReceived   = "feedback_received"
	EventNewApplication     = "new_application"
)

// Event is published after a primary write has committed.
type Event struct {
	ID            string
	Type          string
	RecipientType string
	RecipientID   string
	ResourceType  string
	ResourceID    int64
	Payload       map[string]any
	OccurredAt    time.Time
}

func newEvent(typ, recipientType, recipientID, resourceType string, resourceID int64, payload map[string]any, at time.Time) Event {
	return Event{
		ID:            uuid.NewString(),
		Type:          typ,
		RecipientType: recipientType,
		RecipientID:   recipientID,
		ResourceType:  resourceType,
		ResourceID:    resourceID,
		Payload:       payload,
		OccurredAt:    at,
	}
}

// Sink consumes events. Delivery is best effort.
type Sink interface {
	Publish(ctx context.Context, e Event) error
}

type NotificationWriter interface {
	Create(ctx context.Context, n models.Notification) (int64, error)
}

// NotificationSink turns events into notifications rows.
type NotificationSink struct {
	notifications NotificationWriter
}

func NewNotificationSink(w NotificationWriter) *NotificationSink {
	return &NotificationSink{notifications: w}
}

func (s *NotificationSink) Publish(ctx context.Context, e Event) error {
	body := map[string]any{"event_id": e.ID}
	for k, v := range e.Payload {
		body[k] = v
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "encode notification payload")
	}

	_, err = s.notifications.Create(ctx, models.Notification{
		RecipientType: e.RecipientType,
		RecipientID:   e.RecipientID,
		Type:          e.Type,
		ResourceType:  e.ResourceType,
		ResourceID:    e.ResourceID,
		Payload:       payload,
		CreatedAt:     e.OccurredAt,
	})
	return err
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e Event) error

func (f SinkFunc) Publish(ctx context.Context, e Event) error { return f(ctx, e) }

// Fanout publishes to every sink in order and returns the first error.
// A failing sink does not stop the ones after it.
type Fanout []Sink

func (f Fanout) Publish(ctx context.Context, e Event) error {
	var first error
	for _, s := range f {
		if err := s.Publish(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}
