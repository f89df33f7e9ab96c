package handlers

import (
	"errors"
	"net/http"

	"github.com/Freeeeeet/stable_booking/internal/model"
)

type bookLessonRequest struct {
	SlotID    int64  `json:"slot_id" validate:"required,gt=0"`
	StudentID int64  `json:"student_id" validate:"required,gt=0"`
	HorseID   *int64 `json:"horse_id" validate:"omitempty,gt=0"`
	PackageID *int64 `json:"package_id" validate:"omitempty,gt=0"`
	Notes     string `json:"notes" validate:"max=1000"`
}

type cancelBookingRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// BookLesson handles POST /api/bookings.
func (h *Handler) BookLesson(w http.ResponseWriter, r *http.Request) {
	var req bookLessonRequest
	if err := h.decode(r, &req); err != nil {
		writeBadRequest(w, "slot_id and student_id are required positive ids")
		return
	}

	booking, err := h.bookings.BookLesson(r.Context(), model.BookLessonRequest{
		SlotID:    req.SlotID,
		StudentID: req.StudentID,
		HorseID:   req.HorseID,
		PackageID: req.PackageID,
		Notes:     req.Notes,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

// GetBooking handles GET /api/bookings/{bookingID}.
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "bookingID")
	if !ok {
		writeBadRequest(w, "booking id must be a positive integer")
		return
	}

	booking, err := h.bookings.GetBooking(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// CancelBooking handles POST /api/bookings/{bookingID}/cancel. The body is optional.
func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "bookingID")
	if !ok {
		writeBadRequest(w, "booking id must be a positive integer")
		return
	}

	var req cancelBookingRequest
	if err := h.decode(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeBadRequest(w, "reason must be at most 500 characters")
		return
	}

	result, err := h.bookings.CancelBooking(r.Context(), id, req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// StudentBookings handles GET /api/students/{studentID}/bookings.
func (h *Handler) StudentBookings(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "studentID")
	if !ok {
		writeBadRequest(w, "student id must be a positive integer")
		return
	}

	bookings, err := h.bookings.ListStudentBookings(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if bookings == nil {
		bookings = []*model.Booking{}
	}
	writeJSON(w, http.StatusOK, bookings)
}
