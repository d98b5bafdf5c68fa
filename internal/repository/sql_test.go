package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/mentor-booking/internal/model"
)

const (
	bookingID = "b0000000-0000-0000-0000-000000000001"
	slotID    = "s0000000-0000-0000-0000-000000000001"
	mentorID  = "m0000000-0000-0000-0000-000000000001"
	studentID = "u0000000-0000-0000-0000-000000000001"
)

var created = time.Date(2025, 1, 3, 9, 0, 0, 0, time.UTC)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

var bookingCols = []string{
	"booking_id", "slot_id", "mentor_id", "student_id", "status", "note",
	"created_at", "confirmed_at", "cancelled_at", "cancelled_by", "meeting_url_snapshot",
}

func bookingRows(status string, confirmedAt *time.Time, meetingURL *string) *pgxmock.Rows {
	return pgxmock.NewRows(bookingCols).
		AddRow(bookingID, slotID, mentorID, studentID, status, nil, created, confirmedAt, nil, nil, meetingURL)
}

func TestListAvailableExcludesActiveBookings(t *testing.T) {
	mock := newMock(t)
	from := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	start := from.Add(10 * time.Hour)

	mock.ExpectQuery(`FROM mentor_availability_slots s\s+LEFT JOIN bookings b\s+ON b\.slot_id = s\.slot_id\s+AND b\.status IN \('requested', 'confirmed'\)` +
		`\s+WHERE s\.mentor_id = \$1\s+AND s\.start_time >= \$2\s+AND s\.end_time <= \$3\s+AND b\.booking_id IS NULL\s+ORDER BY s\.start_time ASC`).
		WithArgs(mentorID, from, to).
		WillReturnRows(pgxmock.NewRows([]string{"slot_id", "mentor_id", "start_time", "end_time"}).
			AddRow(slotID, mentorID, start, start.Add(time.Hour)))

	slots, err := NewSlotRepository(mock, time.Second).ListAvailable(context.Background(), mentorID, from, to)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, model.Slot{ID: slotID, MentorID: mentorID, StartTime: start, EndTime: start.Add(time.Hour)}, slots[0])
}

func TestCreateBooking(t *testing.T) {
	mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT mentor_id FROM mentor_availability_slots WHERE slot_id = \$1`).
		WithArgs(slotID).
		WillReturnRows(pgxmock.NewRows([]string{"mentor_id"}).AddRow(mentorID))
	mock.ExpectQuery(`INSERT INTO bookings`).
		WithArgs(bookingID, slotID, mentorID, studentID, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"status", "created_at"}).AddRow("requested", created))
	mock.ExpectCommit()

	b := &model.Booking{ID: bookingID, SlotID: slotID, StudentID: studentID}
	require.NoError(t, NewBookingRepository(mock, time.Second).Create(context.Background(), b))
	assert.Equal(t, mentorID, b.MentorID)
	assert.Equal(t, model.StatusRequested, b.Status)
	assert.Equal(t, created, b.CreatedAt)
}

func TestCreateBookingErrors(t *testing.T) {
	tests := []struct {
		name      string
		slotErr   error
		insertErr error
		want      error
	}{
		{"missing slot", pgx.ErrNoRows, nil, ErrNotFound},
		{"active booking exists", nil, &pgconn.PgError{Code: codeUniqueViolation}, ErrSlotTaken},
		{"unknown student", nil, &pgconn.PgError{Code: codeForeignKeyViolation}, ErrMissingReference},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			mock.ExpectBegin()
			slot := mock.ExpectQuery(`SELECT mentor_id FROM mentor_availability_slots`).WithArgs(slotID)
			if tt.slotErr != nil {
				slot.WillReturnError(tt.slotErr)
			} else {
				slot.WillReturnRows(pgxmock.NewRows([]string{"mentor_id"}).AddRow(mentorID))
				mock.ExpectQuery(`INSERT INTO bookings`).
					WithArgs(bookingID, slotID, mentorID, studentID, pgxmock.AnyArg()).
					WillReturnError(tt.insertErr)
			}
			mock.ExpectRollback()

			b := &model.Booking{ID: bookingID, SlotID: slotID, StudentID: studentID}
			err := NewBookingRepository(mock, time.Second).Create(context.Background(), b)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestListBookingsFilters(t *testing.T) {
	tests := []struct {
		name  string
		f     model.ListFilter
		where string
		args  []any
	}{
		{
			"mentor with status",
			model.ListFilter{Role: model.PartyMentor, UserID: mentorID, Status: model.StatusConfirmed, Limit: 50},
			`WHERE b\.mentor_id = \$1 AND b\.status = \$2\s+ORDER BY b\.created_at DESC\s+LIMIT \$3`,
			[]any{mentorID, "confirmed", 50},
		},
		{
			"student any status",
			model.ListFilter{Role: model.PartyStudent, UserID: studentID, Limit: 10},
			`WHERE b\.student_id = \$1\s+ORDER BY b\.created_at DESC\s+LIMIT \$2`,
			[]any{studentID, 10},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			start := created.Add(48 * time.Hour)
			end := start.Add(time.Hour)
			email := "mentor@example.com"
			mock.ExpectQuery(tt.where).
				WithArgs(tt.args...).
				WillReturnRows(pgxmock.NewRows([]string{
					"booking_id", "slot_id", "mentor_id", "student_id", "status", "note",
					"created_at", "confirmed_at", "cancelled_at", "cancelled_by", "meeting_url_snapshot",
					"start_time", "end_time",
					"mentor_name", "mentor_email", "teams_meeting_url",
					"student_name", "student_email",
				}).AddRow(
					bookingID, slotID, mentorID, studentID, "confirmed", nil,
					&created, nil, nil, nil, nil,
					&start, &end,
					nil, &email, nil,
					nil, nil,
				))

			views, err := NewBookingRepository(mock, time.Second).List(context.Background(), tt.f)
			require.NoError(t, err)
			require.Len(t, views, 1)
			v := views[0]
			assert.Equal(t, model.StatusConfirmed, v.Status)
			assert.Equal(t, mentorID, v.Mentor.MentorID)
			assert.Equal(t, &email, v.Mentor.Email)
			assert.Nil(t, v.Student.Email)
			assert.Equal(t, &start, v.Slot.StartTime)
		})
	}
}

func TestConfirmLocksBookingRow(t *testing.T) {
	mock := newMock(t)
	url := "https://teams.example.com/m"
	now := created.Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM bookings\s+WHERE booking_id = \$1\s+FOR UPDATE`).
		WithArgs(bookingID).
		WillReturnRows(bookingRows("requested", nil, nil))
	mock.ExpectQuery(`UPDATE bookings\s+SET status = 'confirmed'`).
		WithArgs(bookingID, url).
		WillReturnRows(bookingRows("confirmed", &now, &url))
	mock.ExpectCommit()

	var got *model.Booking
	err := NewBookingRepository(mock, time.Second).InTx(context.Background(), func(ctx context.Context, tx BookingTx) error {
		b, err := tx.LockBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		assert.Equal(t, model.StatusRequested, b.Status)
		got, err = tx.MarkConfirmed(ctx, b.ID, url)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, got.Status)
	assert.Equal(t, &now, got.ConfirmedAt)
	assert.Equal(t, &url, got.MeetingURLSnapshot)
}

func TestLockBookingNotFoundRollsBack(t *testing.T) {
	mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs(bookingID).WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	err := NewBookingRepository(mock, time.Second).InTx(context.Background(), func(ctx context.Context, tx BookingTx) error {
		_, err := tx.LockBooking(ctx, bookingID)
		return err
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetBooking(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`FROM bookings\s+WHERE booking_id = \$1$`).
		WithArgs(bookingID).
		WillReturnRows(bookingRows("requested", nil, nil))
	mock.ExpectQuery(`FROM bookings`).WithArgs(bookingID).WillReturnError(pgx.ErrNoRows)

	repo := NewBookingRepository(mock, time.Second)
	b, err := repo.Get(context.Background(), bookingID)
	require.NoError(t, err)
	assert.Equal(t, studentID, b.StudentID)
	assert.Nil(t, b.CancelledBy)

	_, err = repo.Get(context.Background(), bookingID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordEmailLog(t *testing.T) {
	mock := newMock(t)
	msg := "status 503"
	mock.ExpectQuery(`INSERT INTO email_logs`).
		WithArgs(pgxmock.AnyArg(), bookingID, "booking_cancelled", []string{"a@example.com"}, "Cancelled", "failed", &msg).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(created))

	l := &model.EmailLog{
		BookingID:    bookingID,
		EmailType:    model.EmailTypeCancelled,
		Recipients:   []string{"a@example.com"},
		Subject:      "Cancelled",
		Status:       model.EmailFailed,
		ErrorMessage: msg,
	}
	require.NoError(t, NewEmailLogRepository(mock, time.Second).Record(context.Background(), l))
	assert.NotEmpty(t, l.ID)
	assert.Equal(t, created, l.CreatedAt)
}

func TestListEmailLogsQueryError(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`FROM email_logs\s+WHERE booking_id = \$1\s+ORDER BY created_at DESC`).
		WithArgs(bookingID).
		WillReturnError(errors.New("connection reset"))

	_, err := NewEmailLogRepository(mock, time.Second).ListByBooking(context.Background(), bookingID)
	assert.ErrorContains(t, err, "list email logs")
}
