package repository

import (
	"context"
	"time"

	"github.com/Freeeeeet/stable_booking/internal/model"
)

// Getters return (nil, nil) when the row does not exist.

type SlotRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Slot, error)
	// GetByIDForUpdate locks the slot row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id int64) (*model.Slot, error)
	UpdateStatus(ctx context.Context, id int64, status model.SlotStatus) error
	ListAvailable(ctx context.Context, q AvailabilityQuery) ([]*model.AvailableSlot, error)
	SlotExists(ctx context.Context, startTime time.Time, instructorID *int64) (bool, error)
	CreateBatch(ctx context.Context, slots []*model.Slot) error
}

// AvailabilityQuery selects open slots starting in [From, To).
type AvailabilityQuery struct {
	From         time.Time
	To           time.Time
	LessonTypeID *int64
	InstructorID *int64
}

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	GetByID(ctx context.Context, id int64) (*model.Booking, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*model.Booking, error)
	// CountActiveBySlot counts booked and completed bookings.
	CountActiveBySlot(ctx context.Context, slotID int64) (int, error)
	// FindOverlappingActive returns one active booking of the student whose
	// slot window overlaps [start, end] (edges inclusive), or nil.
	FindOverlappingActive(ctx context.Context, studentID int64, start, end time.Time) (*model.Booking, error)
	Cancel(ctx context.Context, id int64, reason string, at time.Time) error
	ListByStudent(ctx context.Context, studentID int64) ([]*model.Booking, error)
	// ListDueReminders returns booked bookings (with Slot set) starting in (from, to]
	// that have not been reminded yet.
	ListDueReminders(ctx context.Context, from, to time.Time) ([]*model.Booking, error)
	MarkReminderSent(ctx context.Context, id int64, at time.Time) (bool, error)
}

type PackageRepository interface {
	GetByIDForUpdate(ctx context.Context, id int64) (*model.StudentPackage, error)
	// DeductLesson takes one lesson; false when nothing was left.
	DeductLesson(ctx context.Context, id int64) (bool, error)
	// RefundLesson gives one lesson back; false when the package is already full.
	RefundLesson(ctx context.Context, id int64) (bool, error)
}

type LessonTypeRepository interface {
	GetByID(ctx context.Context, id int64) (*model.LessonType, error)
}

type LessonBlockRepository interface {
	GetAllActive(ctx context.Context) ([]*model.LessonBlockTemplate, error)
}

type StudentRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Student, error)
	// GetByIDForUpdate locks the student row; bookings of one student are serialized on it.
	GetByIDForUpdate(ctx context.Context, id int64) (*model.Student, error)
}

type InstructorRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Instructor, error)
}

type HorseRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Horse, error)
}

// Repositories is one consistent set of repositories, either bound to the
// pool or to a single transaction.
type Repositories struct {
	Slots       SlotRepository
	Bookings    BookingRepository
	Packages    PackageRepository
	LessonTypes LessonTypeRepository
	Templates   LessonBlockRepository
	Students    StudentRepository
	Instructors InstructorRepository
	Horses      HorseRepository
}

// Store is the unit of work used by the services.
type Store interface {
	Repositories() Repositories
	// RunInTx commits when fn returns nil and rolls back otherwise.
	RunInTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
