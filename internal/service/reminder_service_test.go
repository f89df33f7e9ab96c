package service

import (
	"errors"
	"testing"
	"time"

	"github.com/Freeeeeet/stable_booking/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSendDueRemindersSendsOncePerBooking(t *testing.T) {
	f := newFixture(t)
	soon := f.slot(9, 0, 60, 4)     // 2026-03-02 09:00
	tooLate := f.slot(20, 0, 60, 4) // outside the window
	cancelledSlot := f.slot(11, 0, 60, 4)

	mia := f.student("mia")
	leo := f.student("leo")

	due, err := f.book(soon.ID, mia.ID)
	require.NoError(t, err)
	_, err = f.book(tooLate.ID, leo.ID)
	require.NoError(t, err)
	dropped, err := f.book(cancelledSlot.ID, leo.ID)
	require.NoError(t, err)
	_, err = f.service.CancelBooking(f.ctx, dropped.ID, "")
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	now := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	reminders := NewReminderService(f.store, zap.NewNop(),
		WithNotifier(notifier),
		WithClock(func() time.Time { return now }),
	)

	sent, err := reminders.SendDueReminders(f.ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []int64{due.ID}, notifier.reminded)

	sent, err = reminders.SendDueReminders(f.ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Len(t, notifier.reminded, 1)
}

func TestSendDueRemindersKeepsGoingAfterFailure(t *testing.T) {
	f := newFixture(t)
	first := f.slot(9, 0, 60, 4)
	second := f.slot(12, 0, 60, 4)
	_, err := f.book(first.ID, f.student("mia").ID)
	require.NoError(t, err)
	_, err = f.book(second.ID, f.student("leo").ID)
	require.NoError(t, err)

	notifier := &recordingNotifier{err: errors.New("telegram unavailable")}
	reminders := NewReminderService(f.store, zap.NewNop(),
		WithNotifier(notifier),
		WithClock(func() time.Time { return time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC) }),
	)

	sent, err := reminders.SendDueReminders(f.ctx, 12*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Len(t, notifier.reminded, 2)
}

func TestSendDueRemindersRejectsEmptyWindow(t *testing.T) {
	f := newFixture(t)
	reminders := NewReminderService(f.store, zap.NewNop(), WithNotifier(&recordingNotifier{}))

	_, err := reminders.SendDueReminders(f.ctx, 0)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestSendDueRemindersWithoutNotifierIsNoop(t *testing.T) {
	f := newFixture(t)
	slot := f.slot(9, 0, 60, 4)
	booking, err := f.book(slot.ID, f.student("mia").ID)
	require.NoError(t, err)

	reminders := NewReminderService(f.store, zap.NewNop())
	sent, err := reminders.SendDueReminders(f.ctx, 48*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, sent)

	stored, err := f.store.Repositories().Bookings.GetByID(f.ctx, booking.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.ReminderSentAt)
	assert.Equal(t, model.BookingStatusBooked, stored.Status)
}
