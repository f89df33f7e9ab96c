package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/stable_booking/internal/repository"
	"go.uber.org/zap"
)

// ReminderService напоминает ученикам о предстоящих занятиях
type ReminderService struct {
	store  repository.Store
	logger *zap.Logger
	opts   options
}

func NewReminderService(store repository.Store, logger *zap.Logger, opts ...Option) *ReminderService {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &ReminderService{store: store, logger: logger, opts: o}
}

// SendDueReminders sends one reminder per booked lesson starting within
// (now, now+window]. A booking is claimed before sending, so a reminder goes
// out at most once even when several runs overlap.
func (s *ReminderService) SendDueReminders(ctx context.Context, window time.Duration) (int, error) {
	if window <= 0 {
		return 0, fmt.Errorf("reminder window must be positive: %w", ErrInvalid)
	}
	if s.opts.notifier == nil {
		return 0, nil
	}

	now := s.opts.now()
	repos := s.store.Repositories()

	due, err := repos.Bookings.ListDueReminders(ctx, now, now.Add(window))
	if err != nil {
		return 0, fmt.Errorf("list due reminders: %w", err)
	}

	sent := 0
	for _, booking := range due {
		claimed, err := repos.Bookings.MarkReminderSent(ctx, booking.ID, now)
		if err != nil {
			return sent, fmt.Errorf("mark reminder sent: %w", err)
		}
		if !claimed {
			continue
		}

		student, err := repos.Students.GetByID(ctx, booking.StudentID)
		if err != nil {
			return sent, fmt.Errorf("get student: %w", err)
		}
		if student == nil {
			s.logger.Warn("Reminder skipped, student missing",
				zap.Int64("booking_id", booking.ID),
				zap.Int64("student_id", booking.StudentID))
			continue
		}

		if err := expandBooking(ctx, repos, booking); err != nil {
			return sent, err
		}

		err = s.opts.notifier.LessonReminder(ctx, booking, student)
		s.opts.metrics.ObserveNotification("lesson_reminder", notificationStatus(err))
		if err != nil {
			s.logger.Warn("Failed to send lesson reminder",
				zap.Int64("booking_id", booking.ID),
				zap.Error(err))
			continue
		}
		sent++
	}

	if sent > 0 {
		s.logger.Info("Lesson reminders sent", zap.Int("count", sent))
	}

	return sent, nil
}
