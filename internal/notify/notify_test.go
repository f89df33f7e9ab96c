package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/stable_booking/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeEmail struct {
	mu   sync.Mutex
	sent []EmailMessage
	err  error
}

func (f *fakeEmail) Send(_ context.Context, msg EmailMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return f.err
}

type fakeBot struct {
	params []*bot.SendMessageParams
	err    error
}

func (f *fakeBot) SendMessage(_ context.Context, p *bot.SendMessageParams) (*models.Message, error) {
	f.params = append(f.params, p)
	if f.err != nil {
		return nil, f.err
	}
	return &models.Message{ID: len(f.params)}, nil
}

func sampleBooking() *model.Booking {
	start := time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC)
	return &model.Booking{
		ID:              42,
		PaymentSource:   model.PaymentSourceSingle,
		AmountPaidCents: 4500,
		Status:          model.BookingStatusBooked,
		Slot:            &model.Slot{StartTime: start, EndTime: start.Add(time.Hour)},
		LessonType:      &model.LessonType{Name: "Private lesson", DurationMinutes: 60},
		Instructor:      &model.Instructor{Name: "Anna"},
		Horse:           &model.Horse{Name: "Comet & Co"},
	}
}

func TestBookingConfirmedReachesStudentGuardianAndChat(t *testing.T) {
	email := &fakeEmail{}
	chat := &fakeBot{}
	svc := NewService(email, &TelegramSender{bot: chat}, time.UTC, zap.NewNop())

	chatID := int64(777)
	student := &model.Student{
		ID: 1, FirstName: "Mia", LastName: "Stone", Email: "mia@example.com",
		GuardianName: "Kate Stone", GuardianEmail: "kate@example.com", TelegramChatID: &chatID,
	}

	require.NoError(t, svc.BookingConfirmed(context.Background(), sampleBooking(), student))

	require.Len(t, email.sent, 2)
	assert.Equal(t, "mia@example.com", email.sent[0].To)
	assert.Equal(t, "Mia Stone", email.sent[0].ToName)
	assert.Equal(t, "kate@example.com", email.sent[1].To)
	assert.Equal(t, "Lesson booked", email.sent[0].Subject)
	assert.Contains(t, email.sent[0].Body, "Monday, March 2, 2026")
	assert.Contains(t, email.sent[0].Body, "5:00 PM-6:00 PM")
	assert.Contains(t, email.sent[0].Body, "Amount due: $45.00")

	require.Len(t, chat.params, 1)
	assert.Equal(t, chatID, chat.params[0].ChatID)
	assert.Equal(t, models.ParseModeHTML, chat.params[0].ParseMode)
	assert.Contains(t, chat.params[0].Text, "Comet &amp; Co")
}

func TestGuardianSharingStudentEmailGetsOneMessage(t *testing.T) {
	email := &fakeEmail{}
	svc := NewService(email, nil, time.UTC, zap.NewNop())
	student := &model.Student{FirstName: "Leo", Email: "family@example.com", GuardianEmail: "family@example.com"}

	require.NoError(t, svc.LessonReminder(context.Background(), sampleBooking(), student))
	assert.Len(t, email.sent, 1)
	assert.Equal(t, "Lesson reminder", email.sent[0].Subject)
}

func TestCancelledMessageMentionsPackageRefund(t *testing.T) {
	email := &fakeEmail{}
	svc := NewService(email, nil, time.UTC, zap.NewNop())

	b := sampleBooking()
	b.PaymentSource = model.PaymentSourcePackage
	b.CancellationReason = "sick"

	require.NoError(t, svc.BookingCancelled(context.Background(), b, &model.Student{FirstName: "Mia", Email: "mia@example.com"}))
	require.Len(t, email.sent, 1)
	assert.Contains(t, email.sent[0].Body, "Reason: sick")
	assert.Contains(t, email.sent[0].Body, "returned to your package")
}

func TestDeliverJoinsChannelFailures(t *testing.T) {
	email := &fakeEmail{err: errors.New("smtp down")}
	chat := &fakeBot{err: errors.New("bot blocked")}
	svc := NewService(email, &TelegramSender{bot: chat}, time.UTC, zap.NewNop())

	chatID := int64(5)
	err := svc.BookingConfirmed(context.Background(), sampleBooking(),
		&model.Student{FirstName: "Mia", Email: "mia@example.com", TelegramChatID: &chatID})

	require.Error(t, err)
	assert.ErrorContains(t, err, "smtp down")
	assert.ErrorContains(t, err, "bot blocked")
	assert.Len(t, chat.params, 1)
}

func TestStubEmailSender(t *testing.T) {
	require.NoError(t, NewStubEmailSender(zap.NewNop()).Send(context.Background(), EmailMessage{To: "x@example.com"}))
}

func TestNewSendGridSenderDisabledWithoutKey(t *testing.T) {
	assert.Nil(t, NewSendGridSender(SendGridConfig{}, zap.NewNop()))
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "$45.00", FormatPrice(4500))
	assert.Equal(t, "$0.05", FormatPrice(5))
	assert.Equal(t, "45 min", FormatDuration(45))
	assert.Equal(t, "1 h", FormatDuration(60))
	assert.Equal(t, "1 h 30 min", FormatDuration(90))
}
