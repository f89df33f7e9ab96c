// Package memory is an in-process repository.Store used by tests and by the
// server when no database is configured.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Freeeeeet/stable_booking/internal/model"
	"github.com/Freeeeeet/stable_booking/internal/repository"
)

type state struct {
	seq         int64
	lessonTypes map[int64]model.LessonType
	templates   map[int64]model.LessonBlockTemplate
	slots       map[int64]model.Slot
	bookings    map[int64]model.Booking
	packages    map[int64]model.StudentPackage
	students    map[int64]model.Student
	instructors map[int64]model.Instructor
	horses      map[int64]model.Horse
}

func newState() *state {
	return &state{
		lessonTypes: map[int64]model.LessonType{},
		templates:   map[int64]model.LessonBlockTemplate{},
		slots:       map[int64]model.Slot{},
		bookings:    map[int64]model.Booking{},
		packages:    map[int64]model.StudentPackage{},
		students:    map[int64]model.Student{},
		instructors: map[int64]model.Instructor{},
		horses:      map[int64]model.Horse{},
	}
}

func cloneMap[V any](src map[int64]V) map[int64]V {
	dst := make(map[int64]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// clone copies every table. Stored values never share mutable pointees:
// updates always replace pointer fields instead of writing through them.
func (s *state) clone() *state {
	return &state{
		seq:         s.seq,
		lessonTypes: cloneMap(s.lessonTypes),
		templates:   cloneMap(s.templates),
		slots:       cloneMap(s.slots),
		bookings:    cloneMap(s.bookings),
		packages:    cloneMap(s.packages),
		students:    cloneMap(s.students),
		instructors: cloneMap(s.instructors),
		horses:      cloneMap(s.horses),
	}
}

func (s *state) nextID() int64 {
	s.seq++
	return s.seq
}

// Store keeps all data in memory. Transactions are serialized: RunInTx holds
// the store lock for the whole unit of work and works on a copy that replaces
// the committed state only when fn succeeds.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

var _ repository.Store = (*Store)(nil)

type Option func(*Store)

// WithClock overrides the clock used for created_at columns.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{st: newState(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Repositories returns repositories that lock the store per call.
// They must not be used from inside RunInTx.
func (s *Store) Repositories() repository.Repositories {
	return s.bind(view{store: s})
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(ctx, s.bind(view{store: s, tx: work})); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) bind(v view) repository.Repositories {
	return repository.Repositories{
		Slots:       slotRepo{v},
		Bookings:    bookingRepo{v},
		Packages:    packageRepo{v},
		LessonTypes: lessonTypeRepo{v},
		Templates:   templateRepo{v},
		Students:    studentRepo{v},
		Instructors: instructorRepo{v},
		Horses:      horseRepo{v},
	}
}

// view is either bound to a transaction copy or to the committed state.
type view struct {
	store *Store
	tx    *state
}

func (v view) with(fn func(st *state) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return fn(v.store.st)
}

func (v view) now() time.Time {
	return v.store.now()
}

// Seed helpers assign the ID on the passed value and store a copy.

func (s *Store) AddLessonType(lt *model.LessonType) *model.LessonType {
	s.mu.Lock()
	defer s.mu.Unlock()
	lt.ID = s.st.nextID()
	lt.CreatedAt = s.now()
	s.st.lessonTypes[lt.ID] = *lt
	return lt
}

func (s *Store) AddTemplate(tpl *model.LessonBlockTemplate) *model.LessonBlockTemplate {
	s.mu.Lock()
	defer s.mu.Unlock()
	tpl.ID = s.st.nextID()
	tpl.CreatedAt = s.now()
	s.st.templates[tpl.ID] = *tpl
	return tpl
}

func (s *Store) AddSlot(slot *model.Slot) *model.Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot.ID = s.st.nextID()
	slot.CreatedAt = s.now()
	if slot.Status == "" {
		slot.Status = model.SlotStatusOpen
	}
	s.st.slots[slot.ID] = *slot
	return slot
}

func (s *Store) AddPackage(pkg *model.StudentPackage) *model.StudentPackage {
	s.mu.Lock()
	defer s.mu.Unlock()
	pkg.ID = s.st.nextID()
	pkg.CreatedAt = s.now()
	if pkg.Status == "" {
		pkg.Status = model.PackageStatusActive
	}
	s.st.packages[pkg.ID] = *pkg
	return pkg
}

func (s *Store) AddStudent(student *model.Student) *model.Student {
	s.mu.Lock()
	defer s.mu.Unlock()
	student.ID = s.st.nextID()
	student.CreatedAt = s.now()
	s.st.students[student.ID] = *student
	return student
}

func (s *Store) AddInstructor(instructor *model.Instructor) *model.Instructor {
	s.mu.Lock()
	defer s.mu.Unlock()
	instructor.ID = s.st.nextID()
	instructor.CreatedAt = s.now()
	s.st.instructors[instructor.ID] = *instructor
	return instructor
}

func (s *Store) AddHorse(horse *model.Horse) *model.Horse {
	s.mu.Lock()
	defer s.mu.Unlock()
	horse.ID = s.st.nextID()
	horse.CreatedAt = s.now()
	s.st.horses[horse.ID] = *horse
	return horse
}

// Package returns a committed copy of the package, or nil.
func (s *Store) Package(id int64) *model.StudentPackage {
	s.mu.Lock()
	defer s.mu.Unlock()
	pkg, ok := s.st.packages[id]
	if !ok {
		return nil
	}
	return &pkg
}

// Slot returns a committed copy of the slot, or nil.
func (s *Store) Slot(id int64) *model.Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.st.slots[id]
	if !ok {
		return nil
	}
	return &slot
}

// SlotBookings returns committed bookings of one slot in creation order.
func (s *Store) SlotBookings(slotID int64) []*model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*model.Booking
	for _, b := range s.st.bookings {
		if b.SlotID == slotID {
			result = append(result, &b)
		}
	}
	sortBookingsByID(result)
	return result
}

// SlotCount returns the number of stored slots.
func (s *Store) SlotCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.slots)
}

// SetBookingStatus overwrites a booking status the way an external process
// (e.g. lesson completion) would. It reports whether the booking exists.
func (s *Store) SetBookingStatus(id int64, status model.BookingStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.st.bookings[id]
	if !ok {
		return false
	}
	b.Status = status
	s.st.bookings[id] = b
	return true
}
