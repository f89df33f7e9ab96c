package model

import "time"

type SlotStatus string

const (
	SlotStatusOpen      SlotStatus = "open"
	SlotStatusBooked    SlotStatus = "booked"    // capacity exhausted
	SlotStatusCancelled SlotStatus = "cancelled" // closed by an admin
)

// Slot is one bookable lesson window (availability_slots).
type Slot struct {
	ID           int64      `json:"id"`
	LessonTypeID int64      `json:"lesson_type_id"`
	InstructorID *int64     `json:"instructor_id"`
	HorseID      *int64     `json:"horse_id"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      time.Time  `json:"end_time"`
	Capacity     int        `json:"capacity"`
	Status       SlotStatus `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Overlaps reports whether the two windows touch or intersect.
// Touching edges count as overlap: a lesson ending at 10:00 conflicts with one starting at 10:00.
func (s *Slot) Overlaps(start, end time.Time) bool {
	return !s.StartTime.After(end) && !s.EndTime.Before(start)
}

// AvailableSlot is a slot annotated with its live booking count.
type AvailableSlot struct {
	Slot
	BookedCount       int `json:"booked_count"`
	RemainingCapacity int `json:"remaining_capacity"`
}

// AvailabilityFilter narrows the availability query. Dates are inclusive calendar days.
type AvailabilityFilter struct {
	StartDate    time.Time
	EndDate      time.Time
	LessonTypeID *int64
	InstructorID *int64
}

// SameInstructor compares optional instructor references.
func SameInstructor(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
