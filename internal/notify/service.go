package notify

import (
	"context"
	"errors"
	"time"

	"github.com/Freeeeeet/stable_booking/internal/model"
	"go.uber.org/zap"
)

// ChatSender delivers a text message to a chat.
type ChatSender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Service fans booking notifications out to email and Telegram.
// Either channel may be nil.
type Service struct {
	email    EmailSender
	chat     ChatSender
	location *time.Location
	logger   *zap.Logger
}

func NewService(email EmailSender, chat ChatSender, loc *time.Location, logger *zap.Logger) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{email: email, chat: chat, location: loc, logger: logger}
}

func (s *Service) BookingConfirmed(ctx context.Context, b *model.Booking, student *model.Student) error {
	return s.deliver(ctx, student, confirmedMessage(b, student, s.location))
}

func (s *Service) BookingCancelled(ctx context.Context, b *model.Booking, student *model.Student) error {
	return s.deliver(ctx, student, cancelledMessage(b, student, s.location))
}

func (s *Service) LessonReminder(ctx context.Context, b *model.Booking, student *model.Student) error {
	return s.deliver(ctx, student, reminderMessage(b, student, s.location))
}

// deliver tries every recipient and joins the failures.
func (s *Service) deliver(ctx context.Context, student *model.Student, msg message) error {
	var errs []error

	if s.email != nil {
		for _, to := range recipients(student) {
			err := s.email.Send(ctx, EmailMessage{
				To:      to.email,
				ToName:  to.name,
				Subject: msg.subject,
				Body:    msg.text,
			})
			if err != nil {
				errs = append(errs, err)
			}
		}
	}

	if s.chat != nil && student.TelegramChatID != nil {
		if err := s.chat.Send(ctx, *student.TelegramChatID, msg.html); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		s.logger.Warn("Notification partially failed",
			zap.Int64("student_id", student.ID),
			zap.String("subject", msg.subject),
			zap.Error(err))
		return err
	}
	return nil
}

type recipient struct {
	name  string
	email string
}

// recipients returns the student and guardian addresses, skipping blanks and duplicates.
func recipients(s *model.Student) []recipient {
	var out []recipient
	if s.Email != "" {
		out = append(out, recipient{name: s.FullName(), email: s.Email})
	}
	if s.GuardianEmail != "" && s.GuardianEmail != s.Email {
		out = append(out, recipient{name: s.GuardianName, email: s.GuardianEmail})
	}
	return out
}
