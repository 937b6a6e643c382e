// Package events publishes ledger state changes to downstream consumers.
// Events are emitted only after the owning transaction has committed.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Routing keys for ledger events.
const (
	ScheduleCreated       = "schedule.created"
	ScheduleUpdated       = "schedule.updated"
	ScheduleDeleted       = "schedule.deleted"
	SchedulesGenerated    = "schedule.generated"
	RegistrationCreated   = "registration.created"
	RegistrationConfirmed = "registration.confirmed"
	RegistrationCancelled = "registration.cancelled"
	RegistrationRefunded  = "registration.refunded"
	PaymentCreated        = "payment.created"
	PaymentRefunded       = "payment.refunded"
	PrescriptionIssued    = "prescription.issued"
)

// Event is the envelope every message carries.
type Event struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data"`
}

func New(eventType string, data interface{}) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// Publisher delivers events to a broker.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Emit publishes evts in order. Failures are logged and do not affect the
// caller, since the state change they describe is already committed.
func Emit(ctx context.Context, p Publisher, logger zerolog.Logger, evts ...Event) {
	if p == nil {
		return
	}
	for _, evt := range evts {
		if err := p.Publish(ctx, evt); err != nil {
			logger.Error().Err(err).
				Str("event_id", evt.ID).
				Str("event_type", evt.Type).
				Msg("failed to publish ledger event")
		}
	}
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	// Err, when set, is returned from every Publish call.
	Err error
}

func (r *Recorder) Publish(_ context.Context, evt Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, evt)
	return nil
}

// Events returns a copy of what was published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the routing keys published so far, in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}
