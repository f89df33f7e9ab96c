// Package events defines the booking events published for downstream
// consumers (payments, activity log) and the publishers that deliver them.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	RoutingBookingCreated   = "booking.created"
	RoutingBookingCancelled = "booking.cancelled"
)

// Envelope wraps every payload on the wire.
type Envelope struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

func NewEnvelope(eventType string, occurredAt time.Time, data any) Envelope {
	return Envelope{
		EventID:    uuid.NewString(),
		Type:       eventType,
		OccurredAt: occurredAt.UTC(),
		Data:       data,
	}
}

type BookingCreatedV1 struct {
	BookingID       int64     `json:"booking_id"`
	SlotID          int64     `json:"slot_id"`
	StudentID       int64     `json:"student_id"`
	LessonTypeID    int64     `json:"lesson_type_id"`
	PackageID       *int64    `json:"package_id,omitempty"`
	PaymentSource   string    `json:"payment_source"`
	AmountPaidCents int       `json:"amount_paid_cents"`
	StartTime       time.Time `json:"start_time"`
}

type BookingCancelledV1 struct {
	BookingID      int64     `json:"booking_id"`
	SlotID         int64     `json:"slot_id"`
	StudentID      int64     `json:"student_id"`
	Reason         string    `json:"reason,omitempty"`
	LessonRefunded bool      `json:"lesson_refunded"`
	SlotReopened   bool      `json:"slot_reopened"`
	CancelledAt    time.Time `json:"cancelled_at"`
}

// Publisher delivers an event under a routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
	Close() error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }

func (NopPublisher) Close() error { return nil }
