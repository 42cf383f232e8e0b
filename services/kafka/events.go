package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Topics
const (
	TopicPayments     = "payments"
	TopicExams        = "exams"
	TopicEnrollments  = "enrollments"
	TopicEmails       = "emails"
	TopicApplications = "applications"
)

// Event types
const (
	EventPaymentInitiated    = "payment.initiated"
	EventPaymentVerified     = "payment.verified"
	EventPaymentFailed       = "payment.failed"
	EventExamSubmitted       = "exam.submitted"
	EventEnrollmentCreated   = "enrollment.created"
	EventEnrollmentCompleted = "enrollment.completed"
	EventCertificateIssued   = "certificate.issued"
	EventApplicationCreated  = "application.created"
	EventApplicationReviewed = "application.reviewed"
	EventEmailSend           = "email.send"
)

// Topics returns every topic the platform writes to.
func Topics() []string {
	return []string{TopicPayments, TopicExams, TopicEnrollments, TopicEmails, TopicApplications}
}

// Event is the envelope for every message on the bus. Consumers route on the
// "event" field.
type Event struct {
	ID        string          `json:"id"`
	Event     string          `json:"event"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewEvent wraps data into an envelope with a fresh id.
func NewEvent(eventType string, data interface{}) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:        uuid.NewString(),
		Event:     eventType,
		Timestamp: time.Now().UTC(),
		Data:      raw,
	}, nil
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v interface{}) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("event %s has no data", e.Event)
	}
	return json.Unmarshal(e.Data, v)
}

// Publisher is what services depend on to emit events.
type Publisher interface {
	PublishEvent(ctx context.Context, topic, key, eventType string, data interface{}) error
}
