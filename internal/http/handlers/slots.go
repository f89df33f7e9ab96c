package handlers

import (
	"net/http"
	"strconv"

	"github.com/Freeeeeet/stable_booking/internal/model"
)

type availabilityQuery struct {
	StartDate    string `validate:"required,datetime=2006-01-02"`
	EndDate      string `validate:"required,datetime=2006-01-02"`
	LessonTypeID string `validate:"omitempty,number"`
	InstructorID string `validate:"omitempty,number"`
}

type generateSlotsRequest struct {
	WeekStart string `json:"week_start" validate:"required,datetime=2006-01-02"`
}

type generateSlotsResponse struct {
	Created int           `json:"created"`
	Slots   []*model.Slot `json:"slots"`
}

// AvailableSlots handles GET /api/slots/available.
func (h *Handler) AvailableSlots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := availabilityQuery{
		StartDate:    q.Get("start_date"),
		EndDate:      q.Get("end_date"),
		LessonTypeID: q.Get("lesson_type_id"),
		InstructorID: q.Get("instructor_id"),
	}
	if err := h.validate.Struct(params); err != nil {
		writeBadRequest(w, "start_date and end_date are required as YYYY-MM-DD; ids must be numeric")
		return
	}

	filter := model.AvailabilityFilter{}
	filter.StartDate, _ = h.parseDate(params.StartDate)
	filter.EndDate, _ = h.parseDate(params.EndDate)
	filter.LessonTypeID = optionalID(params.LessonTypeID)
	filter.InstructorID = optionalID(params.InstructorID)

	slots, err := h.bookings.GetAvailableSlots(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if slots == nil {
		slots = []*model.AvailableSlot{}
	}
	writeJSON(w, http.StatusOK, slots)
}

// GenerateSlots handles POST /api/admin/slots/generate.
func (h *Handler) GenerateSlots(w http.ResponseWriter, r *http.Request) {
	var req generateSlotsRequest
	if err := h.decode(r, &req); err != nil {
		writeBadRequest(w, "week_start is required as YYYY-MM-DD")
		return
	}
	weekStart, _ := h.parseDate(req.WeekStart)

	created, err := h.generator.GenerateWeeklySlots(r.Context(), weekStart)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if created == nil {
		created = []*model.Slot{}
	}
	writeJSON(w, http.StatusOK, generateSlotsResponse{Created: len(created), Slots: created})
}

func optionalID(value string) *int64 {
	if value == "" {
		return nil
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil
	}
	return &id
}
