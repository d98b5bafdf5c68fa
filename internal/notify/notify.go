// Package notify delivers booking notifications. Delivery is best effort:
// callers capture the outcome and never fail the triggering operation on it.
package notify

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/mentor-booking/internal/model"
)

// Message is one email to all parties of a booking.
type Message struct {
	BookingID string
	Type      model.EmailType
	To        []string
	Subject   string
	Body      string
}

// Notifier sends a message.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// LogNotifier writes messages to the log instead of sending them. It is used
// when no mail provider is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Send implements Notifier.
func (n *LogNotifier) Send(_ context.Context, msg Message) error {
	n.logger.Info("mail delivery disabled, message logged",
		zap.String("booking_id", msg.BookingID),
		zap.String("email_type", string(msg.Type)),
		zap.String("to", strings.Join(msg.To, ",")),
		zap.String("subject", msg.Subject),
	)
	return nil
}

// EmailLogStore persists notification attempts.
type EmailLogStore interface {
	Record(ctx context.Context, l *model.EmailLog) error
}

// RecordingNotifier wraps a Notifier and records every attempt in an
// EmailLogStore. Recording failures are logged and never returned.
type RecordingNotifier struct {
	next   Notifier
	store  EmailLogStore
	logger *zap.Logger
}

// NewRecordingNotifier constructs a RecordingNotifier.
func NewRecordingNotifier(next Notifier, store EmailLogStore, logger *zap.Logger) *RecordingNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordingNotifier{next: next, store: store, logger: logger}
}

// Send implements Notifier.
func (n *RecordingNotifier) Send(ctx context.Context, msg Message) error {
	sendErr := n.next.Send(ctx, msg)

	entry := &model.EmailLog{
		BookingID:  msg.BookingID,
		EmailType:  msg.Type,
		Recipients: msg.To,
		Subject:    msg.Subject,
		Status:     model.EmailSent,
	}
	if sendErr != nil {
		entry.Status = model.EmailFailed
		entry.ErrorMessage = sendErr.Error()
	}
	// The request context may be close to its deadline; the log write gets
	// its own budget.
	if err := n.store.Record(context.WithoutCancel(ctx), entry); err != nil {
		n.logger.Warn("record email attempt failed", zap.String("booking_id", msg.BookingID), zap.Error(err))
	}
	return sendErr
}
