package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/stable_booking/internal/model"
	"github.com/Freeeeeet/stable_booking/internal/repository/memory"
	"go.uber.org/zap"
)

// testClock ticks one second per call so created_at values are ordered.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(start time.Time) *testClock {
	return &testClock{now: start}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Sunday; the following Monday 2026-03-02 starts the test week.
var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

type fixture struct {
	t          *testing.T
	ctx        context.Context
	clock      *testClock
	store      *memory.Store
	service    *BookingService
	lessonType *model.LessonType
	instructor *model.Instructor
	horse      *model.Horse
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	clock := newTestClock(testNow)
	store := memory.New(memory.WithClock(clock.Now))

	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		clock: clock,
		store: store,
		lessonType: store.AddLessonType(&model.LessonType{
			Name:            "Private lesson",
			PriceCents:      4500,
			DurationMinutes: 60,
			IsActive:        true,
		}),
		instructor: store.AddInstructor(&model.Instructor{Name: "Anna"}),
		horse:      store.AddHorse(&model.Horse{Name: "Comet", IsActive: true}),
	}

	all := append([]Option{WithClock(clock.Now), WithLocation(time.UTC)}, opts...)
	f.service = NewBookingService(store, zap.NewNop(), all...)
	return f
}

func (f *fixture) student(name string) *model.Student {
	return f.store.AddStudent(&model.Student{FirstName: name, Email: name + "@example.com"})
}

// slot adds an open slot on 2026-03-02 from hh:mm for the given minutes.
func (f *fixture) slot(hour, minute, minutes, capacity int) *model.Slot {
	start := time.Date(2026, 3, 2, hour, minute, 0, 0, time.UTC)
	return f.store.AddSlot(&model.Slot{
		LessonTypeID: f.lessonType.ID,
		InstructorID: &f.instructor.ID,
		HorseID:      &f.horse.ID,
		StartTime:    start,
		EndTime:      start.Add(time.Duration(minutes) * time.Minute),
		Capacity:     capacity,
		Status:       model.SlotStatusOpen,
	})
}

func (f *fixture) pkg(studentID int64, remaining int) *model.StudentPackage {
	return f.store.AddPackage(&model.StudentPackage{
		StudentID:        studentID,
		LessonsIncluded:  10,
		RemainingLessons: remaining,
		PricePaidCents:   40000,
		Status:           model.PackageStatusActive,
	})
}

func (f *fixture) book(slotID, studentID int64) (*model.Booking, error) {
	return f.service.BookLesson(f.ctx, model.BookLessonRequest{SlotID: slotID, StudentID: studentID})
}

type recordingNotifier struct {
	mu        sync.Mutex
	confirmed []int64
	cancelled []int64
	reminded  []int64
	err       error
}

func (n *recordingNotifier) BookingConfirmed(_ context.Context, b *model.Booking, _ *model.Student) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmed = append(n.confirmed, b.ID)
	return n.err
}

func (n *recordingNotifier) BookingCancelled(_ context.Context, b *model.Booking, _ *model.Student) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelled = append(n.cancelled, b.ID)
	return n.err
}

func (n *recordingNotifier) LessonReminder(_ context.Context, b *model.Booking, _ *model.Student) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reminded = append(n.reminded, b.ID)
	return n.err
}

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	return nil
}
