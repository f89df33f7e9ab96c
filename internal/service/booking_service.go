package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/stable_booking/internal/events"
	"github.com/Freeeeeet/stable_booking/internal/model"
	"github.com/Freeeeeet/stable_booking/internal/repository"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type BookingService struct {
	store   repository.Store
	logger  *zap.Logger
	opts    options
	effects *sideEffects
}

func NewBookingService(store repository.Store, logger *zap.Logger, opts ...Option) *BookingService {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &BookingService{
		store:   store,
		logger:  logger,
		opts:    o,
		effects: &sideEffects{timeout: o.notifyTimeout, logger: logger},
	}
}

// Wait blocks until background notifications and events have finished.
func (s *BookingService) Wait() {
	s.effects.wait()
}

// GetAvailableSlots возвращает открытые слоты со свободными местами.
// StartDate и EndDate включительно, в часовом поясе школы.
func (s *BookingService) GetAvailableSlots(ctx context.Context, filter model.AvailabilityFilter) ([]*model.AvailableSlot, error) {
	if filter.StartDate.IsZero() || filter.EndDate.IsZero() {
		return nil, fmt.Errorf("start and end date are required: %w", ErrInvalid)
	}

	from := startOfDay(filter.StartDate, s.opts.location)
	last := startOfDay(filter.EndDate, s.opts.location)
	if last.Before(from) {
		return nil, fmt.Errorf("end date %s is before start date %s: %w",
			last.Format(time.DateOnly), from.Format(time.DateOnly), ErrInvalid)
	}

	slots, err := s.store.Repositories().Slots.ListAvailable(ctx, repository.AvailabilityQuery{
		From:         from,
		To:           last.AddDate(0, 0, 1),
		LessonTypeID: filter.LessonTypeID,
		InstructorID: filter.InstructorID,
	})
	if err != nil {
		return nil, fmt.Errorf("list available slots: %w", err)
	}

	return slots, nil
}

// BookLesson бронирует место в слоте для ученика. Все шаги выполняются в
// одной транзакции: при любой ошибке не остаётся ни брони, ни списания с пакета.
func (s *BookingService) BookLesson(ctx context.Context, req model.BookLessonRequest) (*model.Booking, error) {
	ctx, span := tracer.Start(ctx, "booking.book_lesson")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("slot_id", req.SlotID),
		attribute.Int64("student_id", req.StudentID),
	)

	var (
		booking *model.Booking
		student *model.Student
	)

	started := time.Now()
	err := s.store.RunInTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		booking, student, err = s.bookInTx(ctx, repos, req)
		return err
	})
	s.opts.metrics.ObserveTx("book_lesson", time.Since(started).Seconds())

	if err != nil {
		s.opts.metrics.ObserveBooking(ErrorKind(err))
		recordSpanError(span, err)
		s.logger.Info("Booking rejected",
			zap.Int64("slot_id", req.SlotID),
			zap.Int64("student_id", req.StudentID),
			zap.String("reason", ErrorKind(err)),
			zap.Error(err),
		)
		return nil, err
	}

	s.opts.metrics.ObserveBooking("booked")
	span.SetAttributes(attribute.Int64("booking_id", booking.ID))

	s.logger.Info("Lesson booked",
		zap.Int64("booking_id", booking.ID),
		zap.Int64("slot_id", booking.SlotID),
		zap.Int64("student_id", booking.StudentID),
		zap.String("payment_source", string(booking.PaymentSource)),
		zap.Int("amount_paid_cents", booking.AmountPaidCents),
	)

	s.afterBooked(ctx, booking, student)

	return booking, nil
}

func (s *BookingService) bookInTx(ctx context.Context, repos repository.Repositories, req model.BookLessonRequest) (*model.Booking, *model.Student, error) {
	if req.SlotID <= 0 || req.StudentID <= 0 {
		return nil, nil, fmt.Errorf("slot and student are required: %w", ErrInvalid)
	}

	// Слот блокируется первым: порядок блокировок slot -> student -> package
	slot, err := repos.Slots.GetByIDForUpdate(ctx, req.SlotID)
	if err != nil {
		return nil, nil, fmt.Errorf("get slot: %w", err)
	}
	if slot == nil {
		return nil, nil, fmt.Errorf("slot %d: %w", req.SlotID, ErrNotFound)
	}

	switch slot.Status {
	case model.SlotStatusOpen:
	case model.SlotStatusBooked:
		return nil, nil, fmt.Errorf("slot %d has no places left: %w", slot.ID, ErrFull)
	default:
		return nil, nil, fmt.Errorf("slot %d is %s: %w", slot.ID, slot.Status, ErrInvalid)
	}

	count, err := repos.Bookings.CountActiveBySlot(ctx, slot.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("count slot bookings: %w", err)
	}
	if count >= slot.Capacity {
		return nil, nil, fmt.Errorf("slot %d has %d of %d places taken: %w", slot.ID, count, slot.Capacity, ErrFull)
	}

	// Блокировка ученика сериализует его параллельные брони в разные слоты,
	// иначе обе транзакции пройдут проверку пересечений. Порядок: slot -> student -> package
	student, err := repos.Students.GetByIDForUpdate(ctx, req.StudentID)
	if err != nil {
		return nil, nil, fmt.Errorf("get student: %w", err)
	}
	if student == nil {
		return nil, nil, fmt.Errorf("student %d: %w", req.StudentID, ErrNotFound)
	}

	overlapping, err := repos.Bookings.FindOverlappingActive(ctx, student.ID, slot.StartTime, slot.EndTime)
	if err != nil {
		return nil, nil, fmt.Errorf("check overlapping bookings: %w", err)
	}
	if overlapping != nil {
		return nil, nil, fmt.Errorf("student %d already holds booking %d at that time: %w", student.ID, overlapping.ID, ErrConflict)
	}

	lessonType, err := repos.LessonTypes.GetByID(ctx, slot.LessonTypeID)
	if err != nil {
		return nil, nil, fmt.Errorf("get lesson type: %w", err)
	}
	if lessonType == nil {
		return nil, nil, fmt.Errorf("lesson type %d: %w", slot.LessonTypeID, ErrNotFound)
	}

	horseID := slot.HorseID
	if req.HorseID != nil {
		horse, err := repos.Horses.GetByID(ctx, *req.HorseID)
		if err != nil {
			return nil, nil, fmt.Errorf("get horse: %w", err)
		}
		if horse == nil || !horse.IsActive {
			return nil, nil, fmt.Errorf("horse %d is not available: %w", *req.HorseID, ErrInvalid)
		}
		horseID = req.HorseID
	}

	booking := &model.Booking{
		SlotID:       slot.ID,
		StudentID:    student.ID,
		LessonTypeID: lessonType.ID,
		HorseID:      horseID,
		Notes:        req.Notes,
		Status:       model.BookingStatusBooked,
	}

	if req.PackageID != nil {
		if err := s.chargePackage(ctx, repos, *req.PackageID, student.ID, lessonType.ID); err != nil {
			return nil, nil, err
		}
		booking.PackageID = req.PackageID
		booking.PaymentSource = model.PaymentSourcePackage
		booking.AmountPaidCents = 0
	} else {
		booking.PaymentSource = model.PaymentSourceSingle
		booking.AmountPaidCents = lessonType.PriceCents
	}

	if err := repos.Bookings.Create(ctx, booking); err != nil {
		return nil, nil, fmt.Errorf("create booking: %w", err)
	}

	count, err = repos.Bookings.CountActiveBySlot(ctx, slot.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("recount slot bookings: %w", err)
	}
	if count >= slot.Capacity {
		if err := repos.Slots.UpdateStatus(ctx, slot.ID, model.SlotStatusBooked); err != nil {
			return nil, nil, fmt.Errorf("mark slot booked: %w", err)
		}
		slot.Status = model.SlotStatusBooked
	}

	booking.Slot = slot
	booking.LessonType = lessonType
	if err := expandParticipants(ctx, repos, booking); err != nil {
		return nil, nil, err
	}

	return booking, student, nil
}

// chargePackage списывает одно занятие с пакета ученика
func (s *BookingService) chargePackage(ctx context.Context, repos repository.Repositories, packageID, studentID, lessonTypeID int64) error {
	pkg, err := repos.Packages.GetByIDForUpdate(ctx, packageID)
	if err != nil {
		return fmt.Errorf("get package: %w", err)
	}

	switch {
	case pkg == nil:
		return fmt.Errorf("package %d does not exist: %w", packageID, ErrInvalid)
	case pkg.StudentID != studentID:
		return fmt.Errorf("package %d belongs to another student: %w", packageID, ErrInvalid)
	case pkg.Status != model.PackageStatusActive:
		return fmt.Errorf("package %d is %s: %w", packageID, pkg.Status, ErrInvalid)
	case pkg.IsExpired(s.opts.now()):
		return fmt.Errorf("package %d has expired: %w", packageID, ErrInvalid)
	case !pkg.Covers(lessonTypeID):
		return fmt.Errorf("package %d does not cover lesson type %d: %w", packageID, lessonTypeID, ErrInvalid)
	case pkg.RemainingLessons <= 0:
		return fmt.Errorf("package %d has no lessons left: %w", packageID, ErrInvalid)
	}

	deducted, err := repos.Packages.DeductLesson(ctx, packageID)
	if err != nil {
		return fmt.Errorf("deduct package lesson: %w", err)
	}
	if !deducted {
		return fmt.Errorf("package %d has no lessons left: %w", packageID, ErrInvalid)
	}

	return nil
}

// CancelBooking отменяет бронирование, возвращает занятие в пакет и при
// необходимости снова открывает слот.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID int64, reason string) (*model.CancellationResult, error) {
	ctx, span := tracer.Start(ctx, "booking.cancel_booking")
	defer span.End()
	span.SetAttributes(attribute.Int64("booking_id", bookingID))

	var (
		result  *model.CancellationResult
		booking *model.Booking
		student *model.Student
	)

	started := time.Now()
	err := s.store.RunInTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		result, booking, student, err = s.cancelInTx(ctx, repos, bookingID, reason)
		return err
	})
	s.opts.metrics.ObserveTx("cancel_booking", time.Since(started).Seconds())

	if err != nil {
		recordSpanError(span, err)
		s.logger.Info("Cancellation rejected",
			zap.Int64("booking_id", bookingID),
			zap.String("reason", ErrorKind(err)),
			zap.Error(err),
		)
		return nil, err
	}

	s.opts.metrics.ObserveCancellation(result.LessonRefunded)

	s.logger.Info("Booking cancelled",
		zap.Int64("booking_id", bookingID),
		zap.Int64("slot_id", booking.SlotID),
		zap.Bool("lesson_refunded", result.LessonRefunded),
		zap.Bool("slot_reopened", result.SlotReopened),
	)

	s.afterCancelled(ctx, booking, student, result)

	return result, nil
}

func (s *BookingService) cancelInTx(ctx context.Context, repos repository.Repositories, bookingID int64, reason string) (*model.CancellationResult, *model.Booking, *model.Student, error) {
	// Порядок блокировок: booking -> slot -> package
	booking, err := repos.Bookings.GetByIDForUpdate(ctx, bookingID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("get booking: %w", err)
	}
	if booking == nil {
		return nil, nil, nil, fmt.Errorf("booking %d: %w", bookingID, ErrNotFound)
	}
	if booking.Status == model.BookingStatusCancelled {
		return nil, nil, nil, fmt.Errorf("booking %d is already cancelled: %w", bookingID, ErrInvalid)
	}

	slot, err := repos.Slots.GetByIDForUpdate(ctx, booking.SlotID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("get slot: %w", err)
	}
	if slot == nil {
		return nil, nil, nil, fmt.Errorf("slot %d of booking %d is missing", booking.SlotID, bookingID)
	}

	result := &model.CancellationResult{BookingID: bookingID, Success: true}

	if booking.PackageID != nil {
		refunded, err := repos.Packages.RefundLesson(ctx, *booking.PackageID)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("refund package lesson: %w", err)
		}
		if !refunded {
			s.logger.Warn("Package already full, lesson not refunded",
				zap.Int64("booking_id", bookingID),
				zap.Int64("package_id", *booking.PackageID),
			)
		}
		result.LessonRefunded = refunded
	}

	now := s.opts.now()
	if err := repos.Bookings.Cancel(ctx, bookingID, reason, now); err != nil {
		return nil, nil, nil, fmt.Errorf("cancel booking: %w", err)
	}
	booking.Status = model.BookingStatusCancelled
	booking.CancellationReason = reason
	booking.CancelledAt = &now
	booking.UpdatedAt = now

	count, err := repos.Bookings.CountActiveBySlot(ctx, slot.ID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("recount slot bookings: %w", err)
	}
	// Слот, закрытый администратором, остаётся закрытым
	if count < slot.Capacity && slot.Status == model.SlotStatusBooked {
		if err := repos.Slots.UpdateStatus(ctx, slot.ID, model.SlotStatusOpen); err != nil {
			return nil, nil, nil, fmt.Errorf("reopen slot: %w", err)
		}
		slot.Status = model.SlotStatusOpen
		result.SlotReopened = true
	}
	booking.Slot = slot

	student, err := repos.Students.GetByID(ctx, booking.StudentID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("get student: %w", err)
	}

	lessonType, err := repos.LessonTypes.GetByID(ctx, booking.LessonTypeID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("get lesson type: %w", err)
	}
	booking.LessonType = lessonType

	return result, booking, student, nil
}

// GetBooking возвращает бронирование со слотом, типом занятия, инструктором и лошадью
func (s *BookingService) GetBooking(ctx context.Context, bookingID int64) (*model.Booking, error) {
	repos := s.store.Repositories()

	booking, err := repos.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if booking == nil {
		return nil, fmt.Errorf("booking %d: %w", bookingID, ErrNotFound)
	}

	if err := expandBooking(ctx, repos, booking); err != nil {
		return nil, err
	}

	return booking, nil
}

// ListStudentBookings возвращает все бронирования ученика, новые первыми
func (s *BookingService) ListStudentBookings(ctx context.Context, studentID int64) ([]*model.Booking, error) {
	repos := s.store.Repositories()

	student, err := repos.Students.GetByID(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	if student == nil {
		return nil, fmt.Errorf("student %d: %w", studentID, ErrNotFound)
	}

	bookings, err := repos.Bookings.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list student bookings: %w", err)
	}

	for _, booking := range bookings {
		slot, err := repos.Slots.GetByID(ctx, booking.SlotID)
		if err != nil {
			return nil, fmt.Errorf("get slot: %w", err)
		}
		booking.Slot = slot
	}

	return bookings, nil
}

func (s *BookingService) afterBooked(ctx context.Context, booking *model.Booking, student *model.Student) {
	if n := s.opts.notifier; n != nil {
		s.effects.run(ctx, "booking_confirmed", func(ctx context.Context) error {
			err := n.BookingConfirmed(ctx, booking, student)
			s.opts.metrics.ObserveNotification("booking_confirmed", notificationStatus(err))
			return err
		})
	}

	if p := s.opts.publisher; p != nil {
		evt := events.NewEnvelope(events.RoutingBookingCreated, booking.CreatedAt, events.BookingCreatedV1{
			BookingID:       booking.ID,
			SlotID:          booking.SlotID,
			StudentID:       booking.StudentID,
			LessonTypeID:    booking.LessonTypeID,
			PackageID:       booking.PackageID,
			PaymentSource:   string(booking.PaymentSource),
			AmountPaidCents: booking.AmountPaidCents,
			StartTime:       booking.Slot.StartTime,
		})
		s.effects.run(ctx, events.RoutingBookingCreated, func(ctx context.Context) error {
			return p.Publish(ctx, events.RoutingBookingCreated, evt)
		})
	}
}

func (s *BookingService) afterCancelled(ctx context.Context, booking *model.Booking, student *model.Student, result *model.CancellationResult) {
	if n := s.opts.notifier; n != nil && student != nil {
		s.effects.run(ctx, "booking_cancelled", func(ctx context.Context) error {
			err := n.BookingCancelled(ctx, booking, student)
			s.opts.metrics.ObserveNotification("booking_cancelled", notificationStatus(err))
			return err
		})
	}

	if p := s.opts.publisher; p != nil {
		evt := events.NewEnvelope(events.RoutingBookingCancelled, *booking.CancelledAt, events.BookingCancelledV1{
			BookingID:      booking.ID,
			SlotID:         booking.SlotID,
			StudentID:      booking.StudentID,
			Reason:         booking.CancellationReason,
			LessonRefunded: result.LessonRefunded,
			SlotReopened:   result.SlotReopened,
			CancelledAt:    *booking.CancelledAt,
		})
		s.effects.run(ctx, events.RoutingBookingCancelled, func(ctx context.Context) error {
			return p.Publish(ctx, events.RoutingBookingCancelled, evt)
		})
	}
}

// expandBooking fills slot, lesson type, instructor and horse for display.
func expandBooking(ctx context.Context, repos repository.Repositories, booking *model.Booking) error {
	slot, err := repos.Slots.GetByID(ctx, booking.SlotID)
	if err != nil {
		return fmt.Errorf("get slot: %w", err)
	}
	booking.Slot = slot

	lessonType, err := repos.LessonTypes.GetByID(ctx, booking.LessonTypeID)
	if err != nil {
		return fmt.Errorf("get lesson type: %w", err)
	}
	booking.LessonType = lessonType

	return expandParticipants(ctx, repos, booking)
}

func expandParticipants(ctx context.Context, repos repository.Repositories, booking *model.Booking) error {
	if booking.Slot != nil && booking.Slot.InstructorID != nil {
		instructor, err := repos.Instructors.GetByID(ctx, *booking.Slot.InstructorID)
		if err != nil {
			return fmt.Errorf("get instructor: %w", err)
		}
		booking.Instructor = instructor
	}

	if booking.HorseID != nil {
		horse, err := repos.Horses.GetByID(ctx, *booking.HorseID)
		if err != nil {
			return fmt.Errorf("get horse: %w", err)
		}
		booking.Horse = horse
	}

	return nil
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func notificationStatus(err error) string {
	if err != nil {
		return "failed"
	}
	return "sent"
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, ErrorKind(err))
}
