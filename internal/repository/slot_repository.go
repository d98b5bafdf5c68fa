package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/mentor-booking/internal/model"
)

// SlotRepository reads mentor availability slots.
type SlotRepository struct {
	db      DB
	timeout time.Duration
}

// NewSlotRepository constructs a SlotRepository.
func NewSlotRepository(db DB, timeout time.Duration) *SlotRepository {
	return &SlotRepository{db: db, timeout: timeout}
}

// ListAvailable returns the mentor's slots inside [from, to] that no
// requested or confirmed booking references, ordered by start time.
//
// Availability is computed with a left anti-join against active bookings
// rather than a stored flag, so it cannot drift from the bookings table.
func (r *SlotRepository) ListAvailable(ctx context.Context, mentorID string, from, to time.Time) ([]model.Slot, error) {
	ctx, cancel := bounded(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.Query(ctx,
		`SELECT s.slot_id, s.mentor_id, s.start_time, s.end_time
		 FROM mentor_availability_slots s
		 LEFT JOIN bookings b
		   ON b.slot_id = s.slot_id
		  AND b.status IN ('requested', 'confirmed')
		 WHERE s.mentor_id = $1
		   AND s.start_time >= $2
		   AND s.end_time <= $3
		   AND b.booking_id IS NULL
		 ORDER BY s.start_time ASC`,
		mentorID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("list available slots: %w", err)
	}
	defer rows.Close()

	var slots []model.Slot
	for rows.Next() {
		var s model.Slot
		if err := rows.Scan(&s.ID, &s.MentorID, &s.StartTime, &s.EndTime); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}
