package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/mentor-booking/internal/model"
)

// Session holds what the lifecycle emails mention about a booking.
type Session struct {
	BookingID    string
	MentorName   string
	MentorEmail  string
	StudentName  string
	StudentEmail string
	StartTime    time.Time
	MeetingURL   string
	Note         string
}

// Templates renders lifecycle emails for one brand.
type Templates struct {
	Brand string
}

// Confirmed renders the confirmation email.
func (t Templates) Confirmed(s Session) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s and %s,\n\n", orDefault(s.StudentName, "Student"), orDefault(s.MentorName, "Mentor"))
	b.WriteString("Your mentoring session is confirmed.\n\n")
	fmt.Fprintf(&b, "When: %s\n", s.StartTime.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Teams link: %s\n", s.MeetingURL)
	if s.Note != "" {
		fmt.Fprintf(&b, "\nStudent note: %s\n", s.Note)
	}
	fmt.Fprintf(&b, "\nThanks,\n%s\n", t.Brand)

	return Message{
		BookingID: s.BookingID,
		Type:      model.EmailTypeConfirmed,
		To:        []string{s.StudentEmail, s.MentorEmail},
		Subject:   t.Brand + ": Session confirmed",
		Body:      b.String(),
	}
}

// Cancelled renders the cancellation email.
func (t Templates) Cancelled(s Session, by model.Party) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s and %s,\n\n", orDefault(s.StudentName, "Student"), orDefault(s.MentorName, "Mentor"))
	b.WriteString("The mentoring session has been cancelled.\n\n")
	fmt.Fprintf(&b, "Cancelled by: %s\n", by)
	fmt.Fprintf(&b, "When: %s\n", s.StartTime.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Teams link: %s\n\n", s.MeetingURL)
	b.WriteString("You can rebook another time slot when ready.\n\n")
	fmt.Fprintf(&b, "Thanks,\n%s\n", t.Brand)

	return Message{
		BookingID: s.BookingID,
		Type:      model.EmailTypeCancelled,
		To:        []string{s.StudentEmail, s.MentorEmail},
		Subject:   t.Brand + ": Session cancelled",
		Body:      b.String(),
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
