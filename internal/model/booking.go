package model

import "time"

type BookingStatus string

const (
	BookingStatusBooked    BookingStatus = "booked"
	BookingStatusCompleted BookingStatus = "completed" // set outside the booking workflow
	BookingStatusCancelled BookingStatus = "cancelled" // terminal
)

// IsActive reports whether the booking still holds a unit of slot capacity.
func (s BookingStatus) IsActive() bool {
	return s == BookingStatusBooked || s == BookingStatusCompleted
}

type PaymentSource string

const (
	PaymentSourceSingle  PaymentSource = "single"
	PaymentSourcePackage PaymentSource = "package"
)

// Booking is a student's reservation of one unit of a slot (lesson_bookings).
type Booking struct {
	ID                 int64         `json:"id"`
	SlotID             int64         `json:"slot_id"`
	StudentID          int64         `json:"student_id"`
	LessonTypeID       int64         `json:"lesson_type_id"`
	HorseID            *int64        `json:"horse_id"`
	PackageID          *int64        `json:"package_id"`
	PaymentSource      PaymentSource `json:"payment_source"`
	AmountPaidCents    int           `json:"amount_paid_cents"`
	Notes              string        `json:"notes"`
	Status             BookingStatus `json:"status"`
	CancellationReason string        `json:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time    `json:"cancelled_at,omitempty"`
	ReminderSentAt     *time.Time    `json:"-"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`

	// Filled in for confirmation display, not stored on the row
	Slot       *Slot       `json:"slot,omitempty"`
	LessonType *LessonType `json:"lesson_type,omitempty"`
	Instructor *Instructor `json:"instructor,omitempty"`
	Horse      *Horse      `json:"horse,omitempty"`
}

// BookLessonRequest carries the inputs of the booking workflow.
type BookLessonRequest struct {
	SlotID    int64
	StudentID int64
	HorseID   *int64
	PackageID *int64
	Notes     string
}

// CancellationResult acknowledges a successful cancellation.
type CancellationResult struct {
	BookingID      int64 `json:"booking_id"`
	Success        bool  `json:"success"`
	LessonRefunded bool  `json:"lesson_refunded"`
	SlotReopened   bool  `json:"slot_reopened"`
}
