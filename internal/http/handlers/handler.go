package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Freeeeeet/stable_booking/internal/model"
	"github.com/Freeeeeet/stable_booking/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// BookingService is the part of service.BookingService the API uses.
type BookingService interface {
	GetAvailableSlots(ctx context.Context, filter model.AvailabilityFilter) ([]*model.AvailableSlot, error)
	BookLesson(ctx context.Context, req model.BookLessonRequest) (*model.Booking, error)
	CancelBooking(ctx context.Context, bookingID int64, reason string) (*model.CancellationResult, error)
	GetBooking(ctx context.Context, bookingID int64) (*model.Booking, error)
	ListStudentBookings(ctx context.Context, studentID int64) ([]*model.Booking, error)
}

type SlotGenerator interface {
	GenerateWeeklySlots(ctx context.Context, weekStart time.Time) ([]*model.Slot, error)
}

// Handler serves the booking API.
type Handler struct {
	bookings  BookingService
	generator SlotGenerator
	validate  *validator.Validate
	location  *time.Location
	logger    *zap.Logger
}

func New(bookings BookingService, generator SlotGenerator, loc *time.Location, logger *zap.Logger) *Handler {
	if loc == nil {
		loc = time.Local
	}
	return &Handler{
		bookings:  bookings,
		generator: generator,
		validate:  validator.New(),
		location:  loc,
		logger:    logger,
	}
}

// Register mounts the API routes on r. bookingMiddleware wraps only POST /bookings.
func (h *Handler) Register(r chi.Router, bookingMiddleware ...func(http.Handler) http.Handler) {
	r.Get("/slots/available", h.AvailableSlots)
	r.With(bookingMiddleware...).Post("/bookings", h.BookLesson)
	r.Get("/bookings/{bookingID}", h.GetBooking)
	r.Post("/bookings/{bookingID}/cancel", h.CancelBooking)
	r.Get("/students/{studentID}/bookings", h.StudentBookings)
	r.Post("/admin/slots/generate", h.GenerateSlots)
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid", Message: message})
}

// writeError maps service errors to status codes. Internal errors are logged
// and answered with a generic message.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := service.ErrorKind(err)
	switch kind {
	case "not_found":
		writeJSON(w, http.StatusNotFound, errorResponse{Error: kind, Message: err.Error()})
	case "invalid", "full", "conflict":
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: kind, Message: err.Error()})
	default:
		h.logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: kind, Message: "internal error"})
	}
}

var errEmptyBody = errors.New("empty body")

func (h *Handler) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return errors.New("malformed JSON body")
	}
	return h.validate.Struct(dst)
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (h *Handler) parseDate(value string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, value, h.location)
}
