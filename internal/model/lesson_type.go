package model

import "time"

type LessonType struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	PriceCents      int       `json:"price_cents"`
	DurationMinutes int       `json:"duration_minutes"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
}

// Duration returns the lesson length.
func (l *LessonType) Duration() time.Duration {
	return time.Duration(l.DurationMinutes) * time.Minute
}
