package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/mentor-booking/internal/model"
)

func TestNewBookingEvent(t *testing.T) {
	by := model.PartyStudent
	b := &model.Booking{ID: "b1", SlotID: "s1", MentorID: "m1", StudentID: "u1", Status: model.StatusCancelled, CancelledBy: &by}

	ev := NewBookingEvent(b)
	assert.NotEmpty(t, ev.EventID)
	assert.Equal(t, "b1", ev.BookingID)
	assert.False(t, ev.OccurredAt.IsZero())

	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"cancelled_by":"student"`)
	assert.Contains(t, string(raw), `"status":"cancelled"`)
}

func TestKeyFor(t *testing.T) {
	assert.Equal(t, KeyRequested, KeyFor(model.StatusRequested))
	assert.Equal(t, KeyConfirmed, KeyFor(model.StatusConfirmed))
	assert.Equal(t, KeyCancelled, KeyFor(model.StatusCancelled))
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.Publish(context.Background(), KeyConfirmed, BookingEvent{}))
}
