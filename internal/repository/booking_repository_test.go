package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/Freeeeeet/stable_booking/internal/model"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingRepositoryCreate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewBookingRepository(mock)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	booking := &model.Booking{
		SlotID:          5,
		StudentID:       9,
		LessonTypeID:    2,
		PaymentSource:   model.PaymentSourceSingle,
		AmountPaidCents: 4500,
		Notes:           "first lesson",
		Status:          model.BookingStatusBooked,
	}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO lesson_bookings")).
		WithArgs(int64(5), int64(9), int64(2), pgxmock.AnyArg(), pgxmock.AnyArg(),
			model.PaymentSourceSingle, 4500, "first lesson", model.BookingStatusBooked).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(42), now, now))

	require.NoError(t, repo.Create(context.Background(), booking))
	assert.Equal(t, int64(42), booking.ID)
	assert.Equal(t, now, booking.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryCountActiveBySlot(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("status IN \\('booked', 'completed'\\)").
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	count, err := NewBookingRepository(mock).CountActiveBySlot(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryCancelAlreadyCancelled(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE lesson_bookings")).
		WithArgs(int64(8), "sick horse", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = NewBookingRepository(mock).Cancel(context.Background(), 8, "sick horse", at)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryMarkReminderSentIsGuarded(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewBookingRepository(mock)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec("reminder_sent_at IS NULL").
		WithArgs(int64(8), at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("reminder_sent_at IS NULL").
		WithArgs(int64(8), at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	marked, err := repo.MarkReminderSent(context.Background(), 8, at)
	require.NoError(t, err)
	assert.True(t, marked)

	marked, err = repo.MarkReminderSent(context.Background(), 8, at)
	require.NoError(t, err)
	assert.False(t, marked)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPackageRepositoryDeductAndRefundAreGuarded(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPackageRepository(mock)

	mock.ExpectExec("remaining_lessons > 0").
		WithArgs(int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec("remaining_lessons < lessons_included").
		WithArgs(int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	deducted, err := repo.DeductLesson(context.Background(), 3)
	require.NoError(t, err)
	assert.False(t, deducted)

	refunded, err := repo.RefundLesson(context.Background(), 3)
	require.NoError(t, err)
	assert.True(t, refunded)
	require.NoError(t, mock.ExpectationsWereMet())
}

var bookingRowColumns = []string{"id", "slot_id", "student_id", "lesson_type_id", "horse_id", "package_id",
	"payment_source", "amount_paid_cents", "notes", "status", "cancellation_reason",
	"cancelled_at", "reminder_sent_at", "created_at", "updated_at"}

func bookingRow(id, slotID, studentID int64, at time.Time) []any {
	return []any{id, slotID, studentID, int64(2), (*int64)(nil), (*int64)(nil),
		model.PaymentSourceSingle, 4500, "", model.BookingStatusBooked, "",
		(*time.Time)(nil), (*time.Time)(nil), at, at}
}

func TestBookingRepositoryFindOverlappingActiveUsesInclusiveBounds(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	start := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`s\.start_time <= \$3\s+AND s\.end_time >= \$2`).
		WithArgs(int64(9), start, end).
		WillReturnRows(pgxmock.NewRows(bookingRowColumns).AddRow(bookingRow(31, 4, 9, created)...))

	booking, err := NewBookingRepository(mock).FindOverlappingActive(context.Background(), 9, start, end)
	require.NoError(t, err)
	require.NotNil(t, booking)
	assert.Equal(t, int64(31), booking.ID)
	assert.Equal(t, int64(4), booking.SlotID)
	assert.Equal(t, model.BookingStatusBooked, booking.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryFindOverlappingActiveNoneReturnsNil(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	start := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("JOIN availability_slots s ON s.id = b.slot_id")).
		WithArgs(int64(9), start, end).
		WillReturnRows(pgxmock.NewRows(bookingRowColumns))

	booking, err := NewBookingRepository(mock).FindOverlappingActive(context.Background(), 9, start, end)
	require.NoError(t, err)
	assert.Nil(t, booking)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryListDueRemindersAttachesSlot(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	from := time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	lesson := from.Add(26 * time.Hour / 2)
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	columns := append(append([]string{}, bookingRowColumns...), slotRowColumns...)
	row := append(bookingRow(31, 4, 9, created),
		int64(4), int64(2), int64Ptr(7), (*int64)(nil), lesson, lesson.Add(time.Hour), 3, model.SlotStatusOpen, created)

	mock.ExpectQuery(`s\.start_time > \$1\s+AND s\.start_time <= \$2`).
		WithArgs(from, to).
		WillReturnRows(pgxmock.NewRows(columns).AddRow(row...))

	bookings, err := NewBookingRepository(mock).ListDueReminders(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	require.NotNil(t, bookings[0].Slot)
	assert.Equal(t, int64(4), bookings[0].Slot.ID)
	assert.Equal(t, lesson, bookings[0].Slot.StartTime)
	assert.Equal(t, int64Ptr(7), bookings[0].Slot.InstructorID)
	require.NoError(t, mock.ExpectationsWereMet())
}
