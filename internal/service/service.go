// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/mentor-booking/internal/apperror"
	"github.com/Shivanand-hulikatti/mentor-booking/internal/model"
	"github.com/Shivanand-hulikatti/mentor-booking/internal/repository"
)

// Listing limits.
const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// SlotStore reads availability.
type SlotStore interface {
	ListAvailable(ctx context.Context, mentorID string, from, to time.Time) ([]model.Slot, error)
}

// BookingStore is the persistence the booking lifecycle needs.
// *repository.BookingRepository implements it.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking) error
	Get(ctx context.Context, bookingID string) (*model.Booking, error)
	InTx(ctx context.Context, fn func(ctx context.Context, tx repository.BookingTx) error) error
	List(ctx context.Context, f model.ListFilter) ([]model.BookingView, error)
}

// EmailLogReader reads recorded notification attempts.
type EmailLogReader interface {
	ListByBooking(ctx context.Context, bookingID string) ([]model.EmailLog, error)
}

// AvailabilityService answers open-slot queries.
type AvailabilityService struct {
	slots SlotStore
}

// NewAvailabilityService constructs an AvailabilityService.
func NewAvailabilityService(slots SlotStore) *AvailabilityService {
	return &AvailabilityService{slots: slots}
}

// ListAvailable validates the query window and returns the mentor's open
// slots inside it, earliest first.
func (s *AvailabilityService) ListAvailable(ctx context.Context, mentorID, fromRaw, toRaw string) ([]model.Slot, error) {
	mentorID = strings.TrimSpace(mentorID)
	fromRaw = strings.TrimSpace(fromRaw)
	toRaw = strings.TrimSpace(toRaw)
	if mentorID == "" || fromRaw == "" || toRaw == "" {
		return nil, apperror.Validation("required params: mentor_id, from, to")
	}
	from, err := ParseTimestamp(fromRaw)
	if err != nil {
		return nil, apperror.Validation("invalid datetime format")
	}
	to, err := ParseTimestamp(toRaw)
	if err != nil {
		return nil, apperror.Validation("invalid datetime format")
	}
	if !to.After(from) {
		return nil, apperror.Validation("`to` must be after `from`")
	}
	if !validID(mentorID) {
		return []model.Slot{}, nil
	}

	slots, err := s.slots.ListAvailable(ctx, mentorID, from, to)
	if err != nil {
		return nil, apperror.Unexpected(fmt.Errorf("list available: %w", err))
	}
	if slots == nil {
		slots = []model.Slot{}
	}
	return slots, nil
}

// ParseTimestamp accepts ISO-8601 timestamps with an offset or Z suffix.
// Timestamps without an offset are taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05.999999999", "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// ParseLimit turns a raw limit parameter into a row count. Missing,
// unparseable or non-positive values give the default; large values are
// clamped to the maximum.
func ParseLimit(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultListLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return DefaultListLimit
	}
	return min(n, MaxListLimit)
}

// classify maps errors escaping a transaction onto the apperror taxonomy.
func classify(err error, op string) error {
	var ae *apperror.Error
	if errors.As(err, &ae) {
		return ae
	}
	return apperror.Unexpected(fmt.Errorf("%s: %w", op, err))
}

// validID reports whether s is a well-formed identifier. Malformed ids
// cannot match any stored row.
func validID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
