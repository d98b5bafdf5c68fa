// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/mentor-booking/internal/apperror"
	"github.com/Shivanand-hulikatti/mentor-booking/internal/auth"
	"github.com/Shivanand-hulikatti/mentor-booking/internal/model"
	"github.com/Shivanand-hulikatti/mentor-booking/internal/service"
)

// Availability answers open-slot queries.
type Availability interface {
	ListAvailable(ctx context.Context, mentorID, from, to string) ([]model.Slot, error)
}

// Bookings runs the booking lifecycle. *service.BookingService implements it.
type Bookings interface {
	Create(ctx context.Context, id model.Identity, req model.CreateBookingRequest) (*model.Booking, error)
	Confirm(ctx context.Context, id model.Identity, bookingID string) (*service.TransitionResult, error)
	Cancel(ctx context.Context, id model.Identity, bookingID, cancelledBy string) (*service.TransitionResult, error)
	List(ctx context.Context, id model.Identity, role, status, limit string) (*service.ListResult, error)
	ListEmails(ctx context.Context, id model.Identity, bookingID string) ([]model.EmailLog, error)
}

// BookingHandler holds all HTTP handlers for the mentor booking API.
type BookingHandler struct {
	availability Availability
	bookings     Bookings
	logger       *zap.Logger
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(a Availability, b Bookings, logger *zap.Logger) *BookingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingHandler{availability: a, bookings: b, logger: logger}
}

// NewRouter returns a chi router with the shared middleware stack and JSON
// replies for panics, unknown paths and unsupported methods. They are set
// before any route so mounted subrouters inherit them.
func NewRouter(logger *zap.Logger) *chi.Mux {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := chi.NewRouter()
	r.NotFound(NotFound)
	r.MethodNotAllowed(MethodNotAllowed)
	r.Use(middleware.RequestID) // attach request IDs
	r.Use(middleware.RealIP)    // trust X-Forwarded-For
	r.Use(Recover(logger))      // recover from panics, return 500
	r.Use(Logger(logger))       // structured access log
	return r
}

// Routes mounts the authenticated API on r.
func (h *BookingHandler) Routes(r chi.Router) {
	r.Get("/me", h.Me)
	r.Get("/availability", h.ListAvailability)
	r.Route("/bookings", func(r chi.Router) {
		r.Get("/", h.ListBookings)
		r.Post("/", h.CreateBooking)
		r.Post("/confirm", h.ConfirmBooking)
		r.Post("/cancel", h.CancelBooking)
		r.Get("/{id}/emails", h.ListEmails)
	})
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{OK: false, Error: msg})
}

// fail reports err with its classified status. Unexpected errors are logged
// and reach the client only as a generic message.
func (h *BookingHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	fail(w, r, h.logger, err)
}

func fail(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	ae := apperror.As(err)
	if ae.Kind == apperror.KindUnexpected || ae.Status >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeError(w, ae.Status, ae.Message)
}

var errInvalidJSON = apperror.Validation("invalid JSON body")

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errInvalidJSON
	}
	return nil
}

func identity(r *http.Request) model.Identity {
	id, _ := auth.IdentityFrom(r.Context())
	return id
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

// Me handles GET /me and echoes the verified identity.
func (h *BookingHandler) Me(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"user_id": id.UserID,
		"email":   id.Email,
		"role":    id.Role,
	})
}

// ListAvailability handles GET /availability?mentor_id=&from=&to=
func (h *BookingHandler) ListAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mentorID := q.Get("mentor_id")

	slots, err := h.availability.ListAvailable(r.Context(), mentorID, q.Get("from"), q.Get("to"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"mentor_id": mentorID,
		"count":     len(slots),
		"slots":     slots,
	})
}

// CreateBooking handles POST /bookings
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req model.CreateBookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	b, err := h.bookings.Create(r.Context(), identity(r), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"ok":         true,
		"booking_id": b.ID,
		"status":     b.Status,
	})
}

// ConfirmBooking handles POST /bookings/confirm
func (h *BookingHandler) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	var req model.ConfirmBookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.bookings.Confirm(r.Context(), identity(r), req.BookingID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	body := map[string]any{
		"ok":           true,
		"booking_id":   res.Booking.ID,
		"status":       res.Booking.Status,
		"confirmed_at": res.Booking.ConfirmedAt,
	}
	if res.Changed {
		body["email_status"] = res.EmailStatus
		body["email_error"] = nullable(res.EmailError)
	}
	writeJSON(w, http.StatusOK, body)
}

// CancelBooking handles POST /bookings/cancel
func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	var req model.CancelBookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.bookings.Cancel(r.Context(), identity(r), req.BookingID, req.CancelledBy)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	body := map[string]any{
		"ok":           true,
		"booking_id":   res.Booking.ID,
		"slot_id":      res.Booking.SlotID,
		"status":       res.Booking.Status,
		"cancelled_at": res.Booking.CancelledAt,
	}
	if res.Changed {
		body["email_status"] = res.EmailStatus
		body["email_error"] = nullable(res.EmailError)
	}
	writeJSON(w, http.StatusOK, body)
}

// ListBookings handles GET /bookings?role=&status=&limit=
func (h *BookingHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	res, err := h.bookings.List(r.Context(), identity(r), q.Get("role"), q.Get("status"), q.Get("limit"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"role":    res.Role,
		"user_id": res.UserID,
		"count":   len(res.Items),
		"items":   res.Items,
	})
}

type emailLogView struct {
	ID           string            `json:"id"`
	EmailType    model.EmailType   `json:"email_type"`
	Recipients   []string          `json:"recipients"`
	Subject      string            `json:"subject"`
	Status       model.EmailStatus `json:"status"`
	ErrorMessage *string           `json:"error_message"`
	CreatedAt    time.Time         `json:"created_at"`
}

// ListEmails handles GET /bookings/{id}/emails
// Returns the recorded notification attempts for a booking, newest first.
func (h *BookingHandler) ListEmails(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	logs, err := h.bookings.ListEmails(r.Context(), identity(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	items := make([]emailLogView, 0, len(logs))
	for _, l := range logs {
		items = append(items, emailLogView{
			ID:           l.ID,
			EmailType:    l.EmailType,
			Recipients:   l.Recipients,
			Subject:      l.Subject,
			Status:       l.Status,
			ErrorMessage: nullable(l.ErrorMessage),
			CreatedAt:    l.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"booking_id": id,
		"count":      len(items),
		"items":      items,
	})
}

// NotFound replies to unrouted paths.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}

// MethodNotAllowed replies to a known path requested with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "status": "ok"})
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
