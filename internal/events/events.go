// Package events publishes booking lifecycle events to a message broker.
// Publishing happens after commit and is best effort.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/mentor-booking/internal/model"
)

// Routing keys.
const (
	KeyRequested = "booking.requested"
	KeyConfirmed = "booking.confirmed"
	KeyCancelled = "booking.cancelled"
)

// BookingEvent is the payload published on every lifecycle transition.
type BookingEvent struct {
	EventID     string              `json:"event_id"`
	BookingID   string              `json:"booking_id"`
	SlotID      string              `json:"slot_id"`
	MentorID    string              `json:"mentor_id"`
	StudentID   string              `json:"student_id"`
	Status      model.BookingStatus `json:"status"`
	CancelledBy *model.Party        `json:"cancelled_by,omitempty"`
	OccurredAt  time.Time           `json:"occurred_at"`
}

// NewBookingEvent builds the event for b's current state.
func NewBookingEvent(b *model.Booking) BookingEvent {
	return BookingEvent{
		EventID:     uuid.New().String(),
		BookingID:   b.ID,
		SlotID:      b.SlotID,
		MentorID:    b.MentorID,
		StudentID:   b.StudentID,
		Status:      b.Status,
		CancelledBy: b.CancelledBy,
		OccurredAt:  time.Now().UTC(),
	}
}

// KeyFor returns the routing key for a status.
func KeyFor(s model.BookingStatus) string {
	switch s {
	case model.StatusConfirmed:
		return KeyConfirmed
	case model.StatusCancelled:
		return KeyCancelled
	default:
		return KeyRequested
	}
}

// Publisher publishes booking events.
type Publisher interface {
	Publish(ctx context.Context, key string, ev BookingEvent) error
}

// Nop discards events. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, BookingEvent) error { return nil }
