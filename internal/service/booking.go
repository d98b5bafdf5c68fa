package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/mentor-booking/internal/apperror"
	"github.com/Shivanand-hulikatti/mentor-booking/internal/events"
	"github.com/Shivanand-hulikatti/mentor-booking/internal/model"
	"github.com/Shivanand-hulikatti/mentor-booking/internal/notify"
	"github.com/Shivanand-hulikatti/mentor-booking/internal/repository"
)

// afterCommitTimeout bounds notification and event publishing, which run
// detached from the request once the transition is durable.
const afterCommitTimeout = 20 * time.Second

// BookingDeps are the collaborators of a BookingService.
type BookingDeps struct {
	Store     BookingStore
	Emails    EmailLogReader
	Notifier  notify.Notifier
	Events    events.Publisher
	Templates notify.Templates
	Logger    *zap.Logger
	// EnforcePartyCheck restricts confirm, cancel and the email history to
	// the booking's mentor or student, and create to the student themself.
	EnforcePartyCheck bool
}

// BookingService runs the booking lifecycle:
//
//	requested -> confirmed -> cancelled
//	requested -> cancelled
//
// Confirming a confirmed booking and cancelling a cancelled one are no-ops.
type BookingService struct {
	store        BookingStore
	emails       EmailLogReader
	notifier     notify.Notifier
	events       events.Publisher
	templates    notify.Templates
	logger       *zap.Logger
	enforceParty bool
}

// NewBookingService constructs a BookingService.
func NewBookingService(d BookingDeps) *BookingService {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	if d.Notifier == nil {
		d.Notifier = notify.NewLogNotifier(d.Logger)
	}
	return &BookingService{
		store:        d.Store,
		emails:       d.Emails,
		notifier:     d.Notifier,
		events:       d.Events,
		templates:    d.Templates,
		logger:       d.Logger,
		enforceParty: d.EnforcePartyCheck,
	}
}

// TransitionResult is the outcome of a confirm or cancel call.
type TransitionResult struct {
	Booking *model.Booking
	// Changed is false when the booking was already in the target state.
	Changed     bool
	EmailStatus model.EmailStatus
	EmailError  string
}

// Create requests a booking for a slot.
func (s *BookingService) Create(ctx context.Context, id model.Identity, req model.CreateBookingRequest) (*model.Booking, error) {
	slotID := strings.TrimSpace(req.SlotID)
	studentID := strings.TrimSpace(req.StudentID)
	if slotID == "" || studentID == "" {
		return nil, apperror.Validation("required fields: slot_id, student_id")
	}
	if !validID(slotID) {
		return nil, apperror.NotFound("slot not found")
	}
	if !validID(studentID) {
		return nil, apperror.Validation("invalid student_id")
	}
	if s.enforceParty && studentID != id.UserID {
		return nil, apperror.Forbidden("students can only request bookings for themselves")
	}

	b := &model.Booking{
		ID:        uuid.New().String(),
		SlotID:    slotID,
		StudentID: studentID,
		Note:      normalizeNote(req.Note),
	}
	if err := s.store.Create(ctx, b); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperror.NotFound("slot not found")
		case errors.Is(err, repository.ErrSlotTaken):
			return nil, apperror.Conflict("slot already booked")
		case errors.Is(err, repository.ErrMissingReference):
			return nil, apperror.NotFound("student not found")
		}
		return nil, apperror.Unexpected(fmt.Errorf("create booking: %w", err))
	}

	s.logger.Info("booking requested",
		zap.String("booking_id", b.ID),
		zap.String("slot_id", b.SlotID),
		zap.String("student_id", b.StudentID),
	)
	s.publish(ctx, b)
	return b, nil
}

// Confirm moves a requested booking to confirmed, snapshotting the mentor's
// meeting link, then notifies both parties.
//
// The booking row is locked for the whole transaction, so a concurrent
// confirm or cancel waits and then sees the post-transition state. Profile
// preconditions are checked before any write; a failed check leaves the
// booking untouched.
func (s *BookingService) Confirm(ctx context.Context, id model.Identity, bookingID string) (*TransitionResult, error) {
	bookingID = strings.TrimSpace(bookingID)
	if bookingID == "" {
		return nil, apperror.Validation("required field: booking_id")
	}
	if !validID(bookingID) {
		return nil, apperror.NotFound("booking not found")
	}

	res := &TransitionResult{EmailStatus: model.EmailNotAttempted}
	var (
		session notify.Session
		start   *time.Time
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx repository.BookingTx) error {
		b, err := s.lock(ctx, tx, id, bookingID)
		if err != nil {
			return err
		}
		if b.Status == model.StatusConfirmed {
			res.Booking = b
			return nil
		}
		if b.Status != model.StatusRequested {
			return apperror.Conflict(fmt.Sprintf("cannot confirm booking in status '%s'", b.Status))
		}

		mentor, err := tx.MentorProfile(ctx, b.MentorID)
		if err != nil {
			return err
		}
		if mentor == nil || mentor.Email == "" || mentor.MeetingURL == "" {
			return apperror.Conflict("mentor profile incomplete (email or meeting link missing)")
		}
		student, err := tx.StudentProfile(ctx, b.StudentID)
		if err != nil {
			return err
		}
		if student == nil || student.Email == "" {
			return apperror.Conflict("student profile incomplete (email missing)")
		}
		if start, err = tx.SlotStart(ctx, b.SlotID); err != nil {
			return err
		}

		updated, err := tx.MarkConfirmed(ctx, b.ID, mentor.MeetingURL)
		if err != nil {
			return err
		}
		res.Booking = updated
		res.Changed = true
		session = sessionOf(updated, mentor, student, start)
		session.MeetingURL = mentor.MeetingURL
		return nil
	})
	if err != nil {
		return nil, classify(err, "confirm booking")
	}

	if !res.Changed {
		s.logger.Info("confirm skipped, already confirmed", zap.String("booking_id", res.Booking.ID))
		return res, nil
	}

	s.publish(ctx, res.Booking)
	if start == nil {
		res.EmailStatus = model.EmailSkipped
		res.EmailError = "start_time=false"
		s.logger.Warn("email skipped", zap.String("booking_id", res.Booking.ID), zap.String("detail", res.EmailError))
		return res, nil
	}
	s.send(ctx, res, s.templates.Confirmed(session))
	return res, nil
}

// Cancel moves a requested or confirmed booking to cancelled, then notifies
// both parties when their contact details and the slot time are known. The
// notification outcome is reported in the result and never fails the call.
func (s *BookingService) Cancel(ctx context.Context, id model.Identity, bookingID, cancelledBy string) (*TransitionResult, error) {
	bookingID = strings.TrimSpace(bookingID)
	by := model.Party(strings.TrimSpace(cancelledBy))
	if bookingID == "" || by == "" {
		return nil, apperror.Validation("required fields: booking_id, cancelled_by")
	}
	if !by.Valid() {
		return nil, apperror.Validation("cancelled_by must be 'student' or 'mentor'")
	}
	if !validID(bookingID) {
		return nil, apperror.NotFound("booking not found")
	}

	res := &TransitionResult{EmailStatus: model.EmailNotAttempted}
	var (
		session  notify.Session
		complete bool
		detail   string
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx repository.BookingTx) error {
		b, err := s.lock(ctx, tx, id, bookingID)
		if err != nil {
			return err
		}
		if s.enforceParty && !actsAs(id, b, by) {
			return apperror.Forbidden("cancelled_by does not match the caller")
		}
		if b.Status == model.StatusCancelled {
			res.Booking = b
			return nil
		}

		updated, err := tx.MarkCancelled(ctx, b.ID, by)
		if err != nil {
			return err
		}
		mentor, err := tx.MentorProfile(ctx, b.MentorID)
		if err != nil {
			return err
		}
		student, err := tx.StudentProfile(ctx, b.StudentID)
		if err != nil {
			return err
		}
		start, err := tx.SlotStart(ctx, b.SlotID)
		if err != nil {
			return err
		}

		res.Booking = updated
		res.Changed = true
		session = sessionOf(updated, mentor, student, start)
		complete = session.MentorEmail != "" && session.StudentEmail != "" && session.MeetingURL != "" && start != nil
		detail = fmt.Sprintf("mentor_email=%t student_email=%t teams_url=%t start_time=%t",
			session.MentorEmail != "", session.StudentEmail != "", session.MeetingURL != "", start != nil)
		return nil
	})
	if err != nil {
		return nil, classify(err, "cancel booking")
	}

	if !res.Changed {
		s.logger.Info("cancel skipped, already cancelled", zap.String("booking_id", res.Booking.ID))
		return res, nil
	}

	s.logger.Info("booking cancelled", zap.String("booking_id", res.Booking.ID), zap.String("cancelled_by", string(by)))
	s.publish(ctx, res.Booking)
	if !complete {
		res.EmailStatus = model.EmailSkipped
		res.EmailError = detail
		s.logger.Warn("email skipped", zap.String("booking_id", res.Booking.ID), zap.String("detail", detail))
		return res, nil
	}
	s.send(ctx, res, s.templates.Cancelled(session, by))
	return res, nil
}

// ListResult is a page of bookings for one identity acting in one role.
type ListResult struct {
	Role   model.Party
	UserID string
	Items  []model.BookingView
}

// List returns the caller's bookings in the given role, newest first. The
// caller's own id is always the filter; other identities cannot be listed.
func (s *BookingService) List(ctx context.Context, id model.Identity, role, status, limit string) (*ListResult, error) {
	r := model.Party(strings.ToLower(strings.TrimSpace(role)))
	if !r.Valid() {
		return nil, apperror.Validation("query param 'role' must be 'mentor' or 'student'")
	}
	st := model.BookingStatus(strings.ToLower(strings.TrimSpace(status)))
	if st != "" && !st.Valid() {
		return nil, apperror.Validation("query param 'status' must be requested|confirmed|cancelled")
	}

	items, err := s.store.List(ctx, model.ListFilter{
		Role:   r,
		UserID: id.UserID,
		Status: st,
		Limit:  ParseLimit(limit),
	})
	if err != nil {
		return nil, apperror.Unexpected(fmt.Errorf("list bookings: %w", err))
	}
	if items == nil {
		items = []model.BookingView{}
	}
	return &ListResult{Role: r, UserID: id.UserID, Items: items}, nil
}

// ListEmails returns the notification attempts recorded for a booking,
// newest first. Recipients are personal data, so the party check applies.
func (s *BookingService) ListEmails(ctx context.Context, id model.Identity, bookingID string) ([]model.EmailLog, error) {
	bookingID = strings.TrimSpace(bookingID)
	if !validID(bookingID) {
		return nil, apperror.NotFound("booking not found")
	}
	if s.enforceParty {
		b, err := s.store.Get(ctx, bookingID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperror.NotFound("booking not found")
			}
			return nil, apperror.Unexpected(fmt.Errorf("get booking: %w", err))
		}
		if id.UserID != b.MentorID && id.UserID != b.StudentID {
			return nil, apperror.Forbidden("not a party to this booking")
		}
	}

	logs, err := s.emails.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, apperror.Unexpected(fmt.Errorf("list email logs: %w", err))
	}
	if logs == nil {
		logs = []model.EmailLog{}
	}
	return logs, nil
}

// lock loads and locks the booking, translating a missing row and applying
// the optional party check.
func (s *BookingService) lock(ctx context.Context, tx repository.BookingTx, id model.Identity, bookingID string) (*model.Booking, error) {
	b, err := tx.LockBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound("booking not found")
		}
		return nil, err
	}
	if s.enforceParty && id.UserID != b.MentorID && id.UserID != b.StudentID {
		return nil, apperror.Forbidden("not a party to this booking")
	}
	return b, nil
}

// send delivers msg and records the outcome on res.
func (s *BookingService) send(ctx context.Context, res *TransitionResult, msg notify.Message) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), afterCommitTimeout)
	defer cancel()

	s.logger.Info("email send start",
		zap.String("booking_id", msg.BookingID),
		zap.String("email_type", string(msg.Type)),
		zap.Strings("to", msg.To),
	)
	if err := s.notifier.Send(ctx, msg); err != nil {
		res.EmailStatus = model.EmailFailed
		res.EmailError = err.Error()
		s.logger.Error("email send failed", zap.String("booking_id", msg.BookingID), zap.Error(err))
		return
	}
	res.EmailStatus = model.EmailSent
	s.logger.Info("email send done", zap.String("booking_id", msg.BookingID))
}

// publish emits the lifecycle event for b. Failures are logged.
func (s *BookingService) publish(ctx context.Context, b *model.Booking) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), afterCommitTimeout)
	defer cancel()

	key := events.KeyFor(b.Status)
	if err := s.events.Publish(ctx, key, events.NewBookingEvent(b)); err != nil {
		s.logger.Warn("publish event failed", zap.String("key", key), zap.String("booking_id", b.ID), zap.Error(err))
	}
}

func sessionOf(b *model.Booking, mentor *model.MentorProfile, student *model.StudentProfile, start *time.Time) notify.Session {
	s := notify.Session{BookingID: b.ID}
	if b.Note != nil {
		s.Note = *b.Note
	}
	if b.MeetingURLSnapshot != nil {
		s.MeetingURL = *b.MeetingURLSnapshot
	}
	if mentor != nil {
		s.MentorName = mentor.DisplayName
		s.MentorEmail = mentor.Email
		if s.MeetingURL == "" {
			s.MeetingURL = mentor.MeetingURL
		}
	}
	if student != nil {
		s.StudentName = student.DisplayName
		s.StudentEmail = student.Email
	}
	if start != nil {
		s.StartTime = *start
	}
	return s
}

// actsAs reports whether id is the party of b named by side.
func actsAs(id model.Identity, b *model.Booking, side model.Party) bool {
	if side == model.PartyMentor {
		return id.UserID == b.MentorID
	}
	return id.UserID == b.StudentID
}

func normalizeNote(n *string) *string {
	if n == nil {
		return nil
	}
	v := strings.TrimSpace(*n)
	if v == "" {
		return nil
	}
	return &v
}
