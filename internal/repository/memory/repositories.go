package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Freeeeeet/stable_booking/internal/model"
	"github.com/Freeeeeet/stable_booking/internal/repository"
)

type slotRepo struct{ view }

func (r slotRepo) GetByID(_ context.Context, id int64) (*model.Slot, error) {
	var result *model.Slot
	err := r.with(func(st *state) error {
		if slot, ok := st.slots[id]; ok {
			result = &slot
		}
		return nil
	})
	return result, err
}

// GetByIDForUpdate needs no row lock: the whole transaction is serialized.
func (r slotRepo) GetByIDForUpdate(ctx context.Context, id int64) (*model.Slot, error) {
	return r.GetByID(ctx, id)
}

func (r slotRepo) UpdateStatus(_ context.Context, id int64, status model.SlotStatus) error {
	return r.with(func(st *state) error {
		slot, ok := st.slots[id]
		if !ok {
			return fmt.Errorf("update slot status: slot %d not found", id)
		}
		slot.Status = status
		st.slots[id] = slot
		return nil
	})
}

func (r slotRepo) ListAvailable(_ context.Context, q repository.AvailabilityQuery) ([]*model.AvailableSlot, error) {
	var result []*model.AvailableSlot
	err := r.with(func(st *state) error {
		counts := activeCounts(st)
		for _, slot := range st.slots {
			if slot.Status != model.SlotStatusOpen {
				continue
			}
			if slot.StartTime.Before(q.From) || !slot.StartTime.Before(q.To) {
				continue
			}
			if q.LessonTypeID != nil && slot.LessonTypeID != *q.LessonTypeID {
				continue
			}
			if q.InstructorID != nil && (slot.InstructorID == nil || *slot.InstructorID != *q.InstructorID) {
				continue
			}
			booked := counts[slot.ID]
			if booked >= slot.Capacity {
				continue
			}
			result = append(result, &model.AvailableSlot{
				Slot:              slot,
				BookedCount:       booked,
				RemainingCapacity: slot.Capacity - booked,
			})
		}
		return nil
	})
	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartTime.Equal(result[j].StartTime) {
			return result[i].StartTime.Before(result[j].StartTime)
		}
		return result[i].ID < result[j].ID
	})
	return result, err
}

func (r slotRepo) SlotExists(_ context.Context, startTime time.Time, instructorID *int64) (bool, error) {
	var exists bool
	err := r.with(func(st *state) error {
		exists = hasSlot(st, startTime, instructorID)
		return nil
	})
	return exists, err
}

// CreateBatch mirrors the unique (start_time, instructor_id) index: a
// duplicate fails the whole batch.
func (r slotRepo) CreateBatch(_ context.Context, slots []*model.Slot) error {
	return r.with(func(st *state) error {
		for i, slot := range slots {
			if hasSlot(st, slot.StartTime, slot.InstructorID) {
				return fmt.Errorf("create slots: duplicate slot at %s", slot.StartTime.Format(time.RFC3339))
			}
			for _, other := range slots[:i] {
				if other.StartTime.Equal(slot.StartTime) && model.SameInstructor(other.InstructorID, slot.InstructorID) {
					return fmt.Errorf("create slots: duplicate slot at %s", slot.StartTime.Format(time.RFC3339))
				}
			}
		}
		now := r.now()
		for _, slot := range slots {
			slot.ID = st.nextID()
			slot.CreatedAt = now
			st.slots[slot.ID] = *slot
		}
		return nil
	})
}

func hasSlot(st *state, startTime time.Time, instructorID *int64) bool {
	for _, slot := range st.slots {
		if slot.StartTime.Equal(startTime) && model.SameInstructor(slot.InstructorID, instructorID) {
			return true
		}
	}
	return false
}

func activeCounts(st *state) map[int64]int {
	counts := make(map[int64]int)
	for _, b := range st.bookings {
		if b.Status.IsActive() {
			counts[b.SlotID]++
		}
	}
	return counts
}

type bookingRepo struct{ view }

func (r bookingRepo) Create(_ context.Context, booking *model.Booking) error {
	return r.with(func(st *state) error {
		if _, ok := st.slots[booking.SlotID]; !ok {
			return fmt.Errorf("create booking: slot %d does not exist", booking.SlotID)
		}
		now := r.now()
		booking.ID = st.nextID()
		booking.CreatedAt = now
		booking.UpdatedAt = now
		st.bookings[booking.ID] = stripBooking(*booking)
		return nil
	})
}

// stripBooking drops the display-only expansions before storing.
func stripBooking(b model.Booking) model.Booking {
	b.Slot = nil
	b.LessonType = nil
	b.Instructor = nil
	b.Horse = nil
	return b
}

func (r bookingRepo) GetByID(_ context.Context, id int64) (*model.Booking, error) {
	var result *model.Booking
	err := r.with(func(st *state) error {
		if b, ok := st.bookings[id]; ok {
			result = &b
		}
		return nil
	})
	return result, err
}

func (r bookingRepo) GetByIDForUpdate(ctx context.Context, id int64) (*model.Booking, error) {
	return r.GetByID(ctx, id)
}

func (r bookingRepo) CountActiveBySlot(_ context.Context, slotID int64) (int, error) {
	var count int
	err := r.with(func(st *state) error {
		for _, b := range st.bookings {
			if b.SlotID == slotID && b.Status.IsActive() {
				count++
			}
		}
		return nil
	})
	return count, err
}

func (r bookingRepo) FindOverlappingActive(_ context.Context, studentID int64, start, end time.Time) (*model.Booking, error) {
	var result *model.Booking
	var resultStart time.Time
	err := r.with(func(st *state) error {
		for _, b := range st.bookings {
			if b.StudentID != studentID || !b.Status.IsActive() {
				continue
			}
			slot, ok := st.slots[b.SlotID]
			if !ok || !slot.Overlaps(start, end) {
				continue
			}
			if result == nil || slot.StartTime.Before(resultStart) {
				result = &b
				resultStart = slot.StartTime
			}
		}
		return nil
	})
	return result, err
}

func (r bookingRepo) Cancel(_ context.Context, id int64, reason string, at time.Time) error {
	return r.with(func(st *state) error {
		b, ok := st.bookings[id]
		if !ok || b.Status == model.BookingStatusCancelled {
			return fmt.Errorf("cancel booking: booking %d not found or already cancelled", id)
		}
		cancelledAt := at
		b.Status = model.BookingStatusCancelled
		b.CancellationReason = reason
		b.CancelledAt = &cancelledAt
		b.UpdatedAt = at
		st.bookings[id] = b
		return nil
	})
}

func (r bookingRepo) ListByStudent(_ context.Context, studentID int64) ([]*model.Booking, error) {
	var result []*model.Booking
	err := r.with(func(st *state) error {
		for _, b := range st.bookings {
			if b.StudentID == studentID {
				result = append(result, &b)
			}
		}
		return nil
	})
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	return result, err
}

func (r bookingRepo) ListDueReminders(_ context.Context, from, to time.Time) ([]*model.Booking, error) {
	var result []*model.Booking
	err := r.with(func(st *state) error {
		for _, b := range st.bookings {
			if b.Status != model.BookingStatusBooked || b.ReminderSentAt != nil {
				continue
			}
			slot, ok := st.slots[b.SlotID]
			if !ok || !slot.StartTime.After(from) || slot.StartTime.After(to) {
				continue
			}
			b.Slot = &slot
			result = append(result, &b)
		}
		return nil
	})
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Slot.StartTime.Equal(result[j].Slot.StartTime) {
			return result[i].Slot.StartTime.Before(result[j].Slot.StartTime)
		}
		return result[i].ID < result[j].ID
	})
	return result, err
}

func (r bookingRepo) MarkReminderSent(_ context.Context, id int64, at time.Time) (bool, error) {
	var marked bool
	err := r.with(func(st *state) error {
		b, ok := st.bookings[id]
		if !ok || b.ReminderSentAt != nil {
			return nil
		}
		sentAt := at
		b.ReminderSentAt = &sentAt
		st.bookings[id] = b
		marked = true
		return nil
	})
	return marked, err
}

func sortBookingsByID(bookings []*model.Booking) {
	sort.Slice(bookings, func(i, j int) bool { return bookings[i].ID < bookings[j].ID })
}

type packageRepo struct{ view }

func (r packageRepo) GetByIDForUpdate(_ context.Context, id int64) (*model.StudentPackage, error) {
	var result *model.StudentPackage
	err := r.with(func(st *state) error {
		if pkg, ok := st.packages[id]; ok {
			result = &pkg
		}
		return nil
	})
	return result, err
}

func (r packageRepo) DeductLesson(_ context.Context, id int64) (bool, error) {
	var ok bool
	err := r.with(func(st *state) error {
		pkg, found := st.packages[id]
		if !found || pkg.RemainingLessons <= 0 {
			return nil
		}
		pkg.RemainingLessons--
		st.packages[id] = pkg
		ok = true
		return nil
	})
	return ok, err
}

func (r packageRepo) RefundLesson(_ context.Context, id int64) (bool, error) {
	var ok bool
	err := r.with(func(st *state) error {
		pkg, found := st.packages[id]
		if !found || pkg.RemainingLessons >= pkg.LessonsIncluded {
			return nil
		}
		pkg.RemainingLessons++
		st.packages[id] = pkg
		ok = true
		return nil
	})
	return ok, err
}

type lessonTypeRepo struct{ view }

func (r lessonTypeRepo) GetByID(_ context.Context, id int64) (*model.LessonType, error) {
	var result *model.LessonType
	err := r.with(func(st *state) error {
		if lt, ok := st.lessonTypes[id]; ok {
			result = &lt
		}
		return nil
	})
	return result, err
}

type templateRepo struct{ view }

func (r templateRepo) GetAllActive(_ context.Context) ([]*model.LessonBlockTemplate, error) {
	var result []*model.LessonBlockTemplate
	err := r.with(func(st *state) error {
		for _, tpl := range st.templates {
			if tpl.IsActive {
				result = append(result, &tpl)
			}
		}
		return nil
	})
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, err
}

type studentRepo struct{ view }

func (r studentRepo) GetByID(_ context.Context, id int64) (*model.Student, error) {
	var result *model.Student
	err := r.with(func(st *state) error {
		if s, ok := st.students[id]; ok {
			result = &s
		}
		return nil
	})
	return result, err
}

func (r studentRepo) GetByIDForUpdate(ctx context.Context, id int64) (*model.Student, error) {
	return r.GetByID(ctx, id)
}

type instructorRepo struct{ view }

func (r instructorRepo) GetByID(_ context.Context, id int64) (*model.Instructor, error) {
	var result *model.Instructor
	err := r.with(func(st *state) error {
		if i, ok := st.instructors[id]; ok {
			result = &i
		}
		return nil
	})
	return result, err
}

type horseRepo struct{ view }

func (r horseRepo) GetByID(_ context.Context, id int64) (*model.Horse, error) {
	var result *model.Horse
	err := r.with(func(st *state) error {
		if h, ok := st.horses[id]; ok {
			result = &h
		}
		return nil
	})
	return result, err
}
