package model

import (
	"fmt"
	"time"
)

// LessonBlockTemplate is a weekly recurring rule the slot generator expands into slots.
type LessonBlockTemplate struct {
	ID           int64     `json:"id"`
	Weekday      int       `json:"weekday"`    // 0 = Sunday, 6 = Saturday
	StartTime    string    `json:"start_time"` // "HH:MM", 24h
	LessonTypeID int64     `json:"lesson_type_id"`
	InstructorID *int64    `json:"instructor_id"`
	HorseID      *int64    `json:"horse_id"`
	Capacity     int       `json:"capacity"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// ParseClock parses an "HH:MM" wall-clock time.
func ParseClock(value string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid start time %q: want HH:MM", value)
	}
	return t.Hour(), t.Minute(), nil
}
