package model

import "time"

type PackageStatus string

const (
	PackageStatusActive    PackageStatus = "active"
	PackageStatusExpired   PackageStatus = "expired"
	PackageStatusExhausted PackageStatus = "exhausted"
)

// StudentPackage is a prepaid bundle of lessons owned by a student.
type StudentPackage struct {
	ID               int64         `json:"id"`
	StudentID        int64         `json:"student_id"`
	LessonTypeID     *int64        `json:"lesson_type_id"` // nil = any lesson type
	LessonsIncluded  int           `json:"lessons_included"`
	RemainingLessons int           `json:"remaining_lessons"`
	PricePaidCents   int           `json:"price_paid_cents"`
	ExpiresAt        *time.Time    `json:"expires_at"`
	Status           PackageStatus `json:"status"`
	CreatedAt        time.Time     `json:"created_at"`
}

// IsExpired checks expiry against now.
func (p *StudentPackage) IsExpired(now time.Time) bool {
	return p.ExpiresAt != nil && !now.Before(*p.ExpiresAt)
}

// Covers reports whether the package can pay for a lesson of the given type.
func (p *StudentPackage) Covers(lessonTypeID int64) bool {
	return p.LessonTypeID == nil || *p.LessonTypeID == lessonTypeID
}
