package realtime

import (
	"context"
	"errors"
	"time"
)

// Event types published by the services
const (
	EventAttendance  = "attendance"
	EventRecognition = "recognition"
	EventEnrollment  = "enrollment"
	EventFinalized   = "finalized"
	EventLeave       = "leave"
)

// Event represents a message sent to feed subscribers
type Event struct {
	Type       string                 `json:"type"`
	SubjectID  uint                   `json:"subject_id,omitempty"`
	Day        string                 `json:"day,omitempty"`
	Action     string                 `json:"action,omitempty"`
	Status     string                 `json:"status,omitempty"`
	Outcome    string                 `json:"outcome,omitempty"`
	Confidence float64                `json:"confidence,omitempty"`
	Extra      map[string]interface{} `json:"extra,omitempty"`
	Timestamp  int64                  `json:"timestamp"`
}

// NewEvent stamps an event with the current time
func NewEvent(eventType string) Event {
	return Event{Type: eventType, Timestamp: time.Now().Unix()}
}

// Publisher delivers events to subscribers. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Nop discards every event
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi publishes to every publisher and joins their errors
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
