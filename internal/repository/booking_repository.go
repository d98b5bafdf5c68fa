package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Shivanand-hulikatti/mentor-booking/internal/model"
)

const bookingColumns = `booking_id, slot_id, mentor_id, student_id, status, note,
	created_at, confirmed_at, cancelled_at, cancelled_by, meeting_url_snapshot`

// BookingTx is the set of operations available inside a booking transaction.
// Every read that feeds a state transition goes through the same transaction
// as the write.
type BookingTx interface {
	// LockBooking loads the booking and holds an exclusive row lock on it
	// until the transaction ends.
	LockBooking(ctx context.Context, bookingID string) (*model.Booking, error)
	// MentorProfile returns nil, nil when the mentor has no profile row.
	MentorProfile(ctx context.Context, mentorID string) (*model.MentorProfile, error)
	// StudentProfile returns nil, nil when the student has no profile row.
	StudentProfile(ctx context.Context, studentID string) (*model.StudentProfile, error)
	// SlotStart returns nil, nil when the slot no longer exists.
	SlotStart(ctx context.Context, slotID string) (*time.Time, error)
	MarkConfirmed(ctx context.Context, bookingID, meetingURL string) (*model.Booking, error)
	MarkCancelled(ctx context.Context, bookingID string, by model.Party) (*model.Booking, error)
}

// BookingRepository handles persistence for bookings.
type BookingRepository struct {
	db      DB
	timeout time.Duration
}

// NewBookingRepository constructs a BookingRepository. Each transaction and
// query is bounded by timeout.
func NewBookingRepository(db DB, timeout time.Duration) *BookingRepository {
	return &BookingRepository{db: db, timeout: timeout}
}

// Create inserts a requested booking for b.SlotID and fills in MentorID and
// CreatedAt. It returns ErrNotFound when the slot does not exist and
// ErrSlotTaken when another active booking already holds the slot.
//
// No application lock is taken: two concurrent inserts for the same slot are
// resolved by the partial unique index
//
//	CREATE UNIQUE INDEX bookings_active_slot_uniq ON bookings (slot_id)
//	 WHERE status IN ('requested', 'confirmed');
//
// which lets exactly one of them commit.
func (r *BookingRepository) Create(ctx context.Context, b *model.Booking) error {
	return r.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`SELECT mentor_id FROM mentor_availability_slots WHERE slot_id = $1`,
			b.SlotID,
		).Scan(&b.MentorID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("get slot: %w", err)
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO bookings (booking_id, slot_id, mentor_id, student_id, status, note)
			 VALUES ($1, $2, $3, $4, 'requested', $5)
			 RETURNING status, created_at`,
			b.ID, b.SlotID, b.MentorID, b.StudentID, b.Note,
		).Scan((*string)(&b.Status), &b.CreatedAt)
		if err != nil {
			switch pgCode(err) {
			case codeUniqueViolation:
				return ErrSlotTaken
			case codeForeignKeyViolation:
				return ErrMissingReference
			}
			return fmt.Errorf("insert booking: %w", err)
		}
		return nil
	})
}

// InTx runs fn inside one transaction with BookingTx operations. The
// transaction commits only if fn returns nil and is rolled back on every
// other exit path, releasing any row locks taken by fn.
func (r *BookingRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx BookingTx) error) error {
	return r.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &bookingTx{tx: tx})
	})
}

// WithTx runs fn inside a transaction bounded by the repository timeout.
func (r *BookingRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	ctx, cancel := bounded(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// Rollback is a no-op once Commit has succeeded.
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Get loads a booking without locking it.
func (r *BookingRepository) Get(ctx context.Context, bookingID string) (*model.Booking, error) {
	ctx, cancel := bounded(ctx, r.timeout)
	defer cancel()

	b, err := scanBooking(r.db.QueryRow(ctx,
		`SELECT `+bookingColumns+`
		 FROM bookings
		 WHERE booking_id = $1`,
		bookingID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// List returns bookings matching f joined with slot timing and both
// profiles, newest first.
func (r *BookingRepository) List(ctx context.Context, f model.ListFilter) ([]model.BookingView, error) {
	ctx, cancel := bounded(ctx, r.timeout)
	defer cancel()

	var (
		where []string
		args  []any
	)
	if f.Role == model.PartyMentor {
		args = append(args, f.UserID)
		where = append(where, fmt.Sprintf("b.mentor_id = $%d", len(args)))
	} else {
		args = append(args, f.UserID)
		where = append(where, fmt.Sprintf("b.student_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("b.status = $%d", len(args)))
	}
	args = append(args, f.Limit)

	sql := `SELECT
			b.booking_id, b.slot_id, b.mentor_id, b.student_id, b.status, b.note,
			b.created_at, b.confirmed_at, b.cancelled_at, b.cancelled_by, b.meeting_url_snapshot,
			s.start_time, s.end_time,
			m.display_name, au_m.email, m.teams_meeting_url,
			st.display_name, au_s.email
		FROM bookings b
		JOIN mentor_availability_slots s ON s.slot_id = b.slot_id
		LEFT JOIN mentors m ON m.mentor_id = b.mentor_id
		LEFT JOIN app_users au_m ON au_m.user_id = b.mentor_id
		LEFT JOIN students st ON st.student_id = b.student_id
		LEFT JOIN app_users au_s ON au_s.user_id = b.student_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY b.created_at DESC
		LIMIT $` + fmt.Sprint(len(args))

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var views []model.BookingView
	for rows.Next() {
		var (
			v      model.BookingView
			status string
		)
		err := rows.Scan(
			&v.BookingID, &v.SlotID, &v.Mentor.MentorID, &v.Student.StudentID, &status, &v.Note,
			&v.CreatedAt, &v.ConfirmedAt, &v.CancelledAt, &v.CancelledBy, &v.MeetingURLSnapshot,
			&v.Slot.StartTime, &v.Slot.EndTime,
			&v.Mentor.Name, &v.Mentor.Email, &v.Mentor.TeamsMeetingURL,
			&v.Student.Name, &v.Student.Email,
		)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		v.Status = model.BookingStatus(status)
		views = append(views, v)
	}
	return views, rows.Err()
}

// bookingTx implements BookingTx on a pgx transaction.
type bookingTx struct {
	tx pgx.Tx
}

func (t *bookingTx) LockBooking(ctx context.Context, bookingID string) (*model.Booking, error) {
	b, err := scanBooking(t.tx.QueryRow(ctx,
		`SELECT `+bookingColumns+`
		 FROM bookings
		 WHERE booking_id = $1
		 FOR UPDATE`,
		bookingID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock booking row: %w", err)
	}
	return b, nil
}

func (t *bookingTx) MentorProfile(ctx context.Context, mentorID string) (*model.MentorProfile, error) {
	var name, email, meetingURL *string
	err := t.tx.QueryRow(ctx,
		`SELECT m.display_name, au.email, m.teams_meeting_url
		 FROM mentors m
		 LEFT JOIN app_users au ON au.user_id = m.mentor_id
		 WHERE m.mentor_id = $1`,
		mentorID,
	).Scan(&name, &email, &meetingURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get mentor profile: %w", err)
	}
	return &model.MentorProfile{
		MentorID:    mentorID,
		DisplayName: deref(name),
		Email:       strings.TrimSpace(deref(email)),
		MeetingURL:  strings.TrimSpace(deref(meetingURL)),
	}, nil
}

func (t *bookingTx) StudentProfile(ctx context.Context, studentID string) (*model.StudentProfile, error) {
	var name, email *string
	err := t.tx.QueryRow(ctx,
		`SELECT s.display_name, au.email
		 FROM students s
		 LEFT JOIN app_users au ON au.user_id = s.student_id
		 WHERE s.student_id = $1`,
		studentID,
	).Scan(&name, &email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get student profile: %w", err)
	}
	return &model.StudentProfile{
		StudentID:   studentID,
		DisplayName: deref(name),
		Email:       strings.TrimSpace(deref(email)),
	}, nil
}

func (t *bookingTx) SlotStart(ctx context.Context, slotID string) (*time.Time, error) {
	var start time.Time
	err := t.tx.QueryRow(ctx,
		`SELECT start_time FROM mentor_availability_slots WHERE slot_id = $1`,
		slotID,
	).Scan(&start)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get slot start: %w", err)
	}
	return &start, nil
}

func (t *bookingTx) MarkConfirmed(ctx context.Context, bookingID, meetingURL string) (*model.Booking, error) {
	b, err := scanBooking(t.tx.QueryRow(ctx,
		`UPDATE bookings
		 SET status = 'confirmed',
		     confirmed_at = NOW(),
		     meeting_url_snapshot = $2
		 WHERE booking_id = $1
		 RETURNING `+bookingColumns,
		bookingID, meetingURL,
	))
	if err != nil {
		return nil, fmt.Errorf("confirm booking: %w", err)
	}
	return b, nil
}

func (t *bookingTx) MarkCancelled(ctx context.Context, bookingID string, by model.Party) (*model.Booking, error) {
	b, err := scanBooking(t.tx.QueryRow(ctx,
		`UPDATE bookings
		 SET status = 'cancelled',
		     cancelled_at = NOW(),
		     cancelled_by = $2
		 WHERE booking_id = $1
		 RETURNING `+bookingColumns,
		bookingID, string(by),
	))
	if err != nil {
		return nil, fmt.Errorf("cancel booking: %w", err)
	}
	return b, nil
}

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var (
		b           model.Booking
		status      string
		cancelledBy *string
	)
	err := row.Scan(
		&b.ID, &b.SlotID, &b.MentorID, &b.StudentID, &status, &b.Note,
		&b.CreatedAt, &b.ConfirmedAt, &b.CancelledAt, &cancelledBy, &b.MeetingURLSnapshot,
	)
	if err != nil {
		return nil, err
	}
	b.Status = model.BookingStatus(status)
	if cancelledBy != nil {
		p := model.Party(*cancelledBy)
		b.CancelledBy = &p
	}
	return &b, nil
}
