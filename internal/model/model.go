// Package model defines the core domain types for the mentor booking system.
package model

import "time"

// BookingStatus is a stage of the booking lifecycle.
type BookingStatus string

const (
	StatusRequested BookingStatus = "requested"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
)

// Valid reports whether s is one of the known lifecycle states.
func (s BookingStatus) Valid() bool {
	switch s {
	case StatusRequested, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

// Active reports whether a booking in this state still occupies its slot.
func (s BookingStatus) Active() bool {
	return s == StatusRequested || s == StatusConfirmed
}

// Party identifies which side of a booking performed an action.
type Party string

const (
	PartyStudent Party = "student"
	PartyMentor  Party = "mentor"
)

// Valid reports whether p is student or mentor.
func (p Party) Valid() bool {
	return p == PartyStudent || p == PartyMentor
}

// Identity is the verified subject of a request. It is resolved per request
// and never persisted.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// Slot is a mentor-defined time window eligible for booking.
type Slot struct {
	ID        string    `json:"slot_id"`
	MentorID  string    `json:"-"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Booking is a request to occupy a slot.
type Booking struct {
	ID                 string        `json:"booking_id"`
	SlotID             string        `json:"slot_id"`
	MentorID           string        `json:"mentor_id"`
	StudentID          string        `json:"student_id"`
	Status             BookingStatus `json:"status"`
	Note               *string       `json:"note"`
	CreatedAt          time.Time     `json:"created_at"`
	ConfirmedAt        *time.Time    `json:"confirmed_at"`
	CancelledAt        *time.Time    `json:"cancelled_at"`
	CancelledBy        *Party        `json:"cancelled_by"`
	MeetingURLSnapshot *string       `json:"meeting_url_snapshot"`
}

// MentorProfile carries the contact details needed to notify a mentor.
// Empty strings mean the value is not on file.
type MentorProfile struct {
	MentorID    string
	DisplayName string
	Email       string
	MeetingURL  string
}

// StudentProfile carries the contact details needed to notify a student.
type StudentProfile struct {
	StudentID   string
	DisplayName string
	Email       string
}

// BookingView is a booking joined with its slot timing and both parties'
// profiles, ready for display.
type BookingView struct {
	BookingID          string        `json:"booking_id"`
	SlotID             string        `json:"slot_id"`
	Status             BookingStatus `json:"status"`
	Note               *string       `json:"note"`
	CreatedAt          *time.Time    `json:"created_at"`
	ConfirmedAt        *time.Time    `json:"confirmed_at"`
	CancelledAt        *time.Time    `json:"cancelled_at"`
	CancelledBy        *string       `json:"cancelled_by"`
	MeetingURLSnapshot *string       `json:"meeting_url_snapshot"`
	Slot               SlotTiming    `json:"slot"`
	Mentor             MentorView    `json:"mentor"`
	Student            StudentView   `json:"student"`
}

// SlotTiming is the time window of a listed booking.
type SlotTiming struct {
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
}

// MentorView is the mentor side of a listed booking.
type MentorView struct {
	MentorID        string  `json:"mentor_id"`
	Name            *string `json:"name"`
	Email           *string `json:"email"`
	TeamsMeetingURL *string `json:"teams_meeting_url"`
}

// StudentView is the student side of a listed booking.
type StudentView struct {
	StudentID string  `json:"student_id"`
	Name      *string `json:"name"`
	Email     *string `json:"email"`
}

// ListFilter selects bookings for a listing.
type ListFilter struct {
	Role   Party
	UserID string
	Status BookingStatus // empty means any
	Limit  int
}

// EmailStatus is the outcome of a best-effort notification.
type EmailStatus string

const (
	EmailNotAttempted EmailStatus = "not_attempted"
	EmailSent         EmailStatus = "sent"
	EmailFailed       EmailStatus = "failed"
	EmailSkipped      EmailStatus = "skipped_missing_data"
)

// EmailType names the lifecycle transition a notification belongs to.
type EmailType string

const (
	EmailTypeConfirmed EmailType = "booking_confirmed"
	EmailTypeCancelled EmailType = "booking_cancelled"
)

// EmailLog records one notification attempt.
type EmailLog struct {
	ID           string
	BookingID    string
	EmailType    EmailType
	Recipients   []string
	Subject      string
	Status       EmailStatus
	ErrorMessage string
	CreatedAt    time.Time
}

// CreateBookingRequest is the payload for POST /bookings.
type CreateBookingRequest struct {
	SlotID    string  `json:"slot_id"`
	StudentID string  `json:"student_id"`
	Note      *string `json:"note"`
}

// ConfirmBookingRequest is the payload for POST /bookings/confirm.
type ConfirmBookingRequest struct {
	BookingID string `json:"booking_id"`
}

// CancelBookingRequest is the payload for POST /bookings/cancel.
type CancelBookingRequest struct {
	BookingID   string `json:"booking_id"`
	CancelledBy string `json:"cancelled_by"`
}

// ErrorResponse is the standard JSON error envelope.
type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}
