package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/mentor-booking/internal/model"
)

// EmailLogRepository handles email_logs persistence.
type EmailLogRepository struct {
	db      DB
	timeout time.Duration
}

// NewEmailLogRepository constructs an EmailLogRepository.
func NewEmailLogRepository(db DB, timeout time.Duration) *EmailLogRepository {
	return &EmailLogRepository{db: db, timeout: timeout}
}

// Record inserts one notification attempt. A missing ID is generated.
func (r *EmailLogRepository) Record(ctx context.Context, l *model.EmailLog) error {
	ctx, cancel := bounded(ctx, r.timeout)
	defer cancel()

	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	var errMsg *string
	if l.ErrorMessage != "" {
		errMsg = &l.ErrorMessage
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO email_logs (id, booking_id, email_type, recipients, subject, status, error_message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`,
		l.ID, l.BookingID, string(l.EmailType), l.Recipients, l.Subject, string(l.Status), errMsg,
	).Scan(&l.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert email log: %w", err)
	}
	return nil
}

// ListByBooking returns the notification attempts for a booking, newest first.
func (r *EmailLogRepository) ListByBooking(ctx context.Context, bookingID string) ([]model.EmailLog, error) {
	ctx, cancel := bounded(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.Query(ctx,
		`SELECT id, booking_id, email_type, recipients, subject, status, error_message, created_at
		 FROM email_logs
		 WHERE booking_id = $1
		 ORDER BY created_at DESC`,
		bookingID,
	)
	if err != nil {
		return nil, fmt.Errorf("list email logs: %w", err)
	}
	defer rows.Close()

	var logs []model.EmailLog
	for rows.Next() {
		var (
			l                   model.EmailLog
			emailType, status   string
			subject, errMessage *string
		)
		if err := rows.Scan(&l.ID, &l.BookingID, &emailType, &l.Recipients, &subject, &status, &errMessage, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan email log: %w", err)
		}
		l.EmailType = model.EmailType(emailType)
		l.Status = model.EmailStatus(status)
		l.Subject = deref(subject)
		l.ErrorMessage = deref(errMessage)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
