package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/stable_booking/internal/model"
	"github.com/Freeeeeet/stable_booking/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

const bookingColumns = `b.id, b.slot_id, b.student_id, b.lesson_type_id, b.horse_id, b.package_id,
	b.payment_source, b.amount_paid_cents, b.notes, b.status, b.cancellation_reason,
	b.cancelled_at, b.reminder_sent_at, b.created_at, b.updated_at`

type PgBookingRepository struct {
	db base.DBTX
}

func NewBookingRepository(db base.DBTX) *PgBookingRepository {
	return &PgBookingRepository{db: db}
}

func bookingDest(b *model.Booking) []any {
	return []any{
		&b.ID,
		&b.SlotID,
		&b.StudentID,
		&b.LessonTypeID,
		&b.HorseID,
		&b.PackageID,
		&b.PaymentSource,
		&b.AmountPaidCents,
		&b.Notes,
		&b.Status,
		&b.CancellationReason,
		&b.CancelledAt,
		&b.ReminderSentAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	}
}

func scanBookings(rows pgx.Rows) ([]*model.Booking, error) {
	defer rows.Close()

	var bookings []*model.Booking
	for rows.Next() {
		var booking model.Booking
		if err := rows.Scan(bookingDest(&booking)...); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, &booking)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookings: %w", err)
	}
	return bookings, nil
}

// Create создаёт новое бронирование
func (r *PgBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	query := `
		INSERT INTO lesson_bookings (slot_id, student_id, lesson_type_id, horse_id, package_id,
			payment_source, amount_paid_cents, notes, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		booking.SlotID,
		booking.StudentID,
		booking.LessonTypeID,
		booking.HorseID,
		booking.PackageID,
		booking.PaymentSource,
		booking.AmountPaidCents,
		booking.Notes,
		booking.Status,
	).Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create booking: %w", err)
	}

	return nil
}

// GetByID получает бронирование по ID
func (r *PgBookingRepository) GetByID(ctx context.Context, id int64) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM lesson_bookings b WHERE b.id = $1`

	var booking model.Booking
	err := r.db.QueryRow(ctx, query, id).Scan(bookingDest(&booking)...)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking by id: %w", err)
	}

	return &booking, nil
}

// GetByIDForUpdate получает бронирование и блокирует строку
func (r *PgBookingRepository) GetByIDForUpdate(ctx context.Context, id int64) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM lesson_bookings b WHERE b.id = $1 FOR UPDATE`

	var booking model.Booking
	err := r.db.QueryRow(ctx, query, id).Scan(bookingDest(&booking)...)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock booking: %w", err)
	}

	return &booking, nil
}

// CountActiveBySlot считает занятые места в слоте
func (r *PgBookingRepository) CountActiveBySlot(ctx context.Context, slotID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM lesson_bookings
		WHERE slot_id = $1 AND status IN ('booked', 'completed')
	`

	var count int
	if err := r.db.QueryRow(ctx, query, slotID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count slot bookings: %w", err)
	}
	return count, nil
}

// FindOverlappingActive ищет активное бронирование студента, пересекающееся по времени
func (r *PgBookingRepository) FindOverlappingActive(ctx context.Context, studentID int64, start, end time.Time) (*model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM lesson_bookings b
		JOIN availability_slots s ON s.id = b.slot_id
		WHERE b.student_id = $1
		  AND b.status IN ('booked', 'completed')
		  AND s.start_time <= $3
		  AND s.end_time >= $2
		ORDER BY s.start_time
		LIMIT 1
	`

	var booking model.Booking
	err := r.db.QueryRow(ctx, query, studentID, start, end).Scan(bookingDest(&booking)...)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find overlapping booking: %w", err)
	}

	return &booking, nil
}

// Cancel переводит бронирование в статус cancelled
func (r *PgBookingRepository) Cancel(ctx context.Context, id int64, reason string, at time.Time) error {
	query := `
		UPDATE lesson_bookings
		SET status = 'cancelled', cancellation_reason = $2, cancelled_at = $3, updated_at = $3
		WHERE id = $1 AND status <> 'cancelled'
	`

	result, err := r.db.Exec(ctx, query, id, reason, at)
	if err != nil {
		return fmt.Errorf("cancel booking: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("cancel booking: booking %d not found or already cancelled", id)
	}

	return nil
}

// ListByStudent получает все бронирования студента, новые первыми
func (r *PgBookingRepository) ListByStudent(ctx context.Context, studentID int64) ([]*model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM lesson_bookings b
		WHERE b.student_id = $1
		ORDER BY b.created_at DESC, b.id DESC
	`

	rows, err := r.db.Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("get bookings by student: %w", err)
	}
	return scanBookings(rows)
}

// ListDueReminders получает бронирования, по которым пора отправить напоминание
func (r *PgBookingRepository) ListDueReminders(ctx context.Context, from, to time.Time) ([]*model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `,
		       s.id, s.lesson_type_id, s.instructor_id, s.horse_id, s.start_time, s.end_time,
		       s.capacity, s.status, s.created_at
		FROM lesson_bookings b
		JOIN availability_slots s ON s.id = b.slot_id
		WHERE b.status = 'booked'
		  AND b.reminder_sent_at IS NULL
		  AND s.start_time > $1
		  AND s.start_time <= $2
		ORDER BY s.start_time, b.id
	`

	rows, err := r.db.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("get due reminders: %w", err)
	}
	defer rows.Close()

	var bookings []*model.Booking
	for rows.Next() {
		var booking model.Booking
		var slot model.Slot
		dest := append(bookingDest(&booking),
			&slot.ID,
			&slot.LessonTypeID,
			&slot.InstructorID,
			&slot.HorseID,
			&slot.StartTime,
			&slot.EndTime,
			&slot.Capacity,
			&slot.Status,
			&slot.CreatedAt,
		)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan due reminder: %w", err)
		}
		booking.Slot = &slot
		bookings = append(bookings, &booking)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due reminders: %w", err)
	}

	return bookings, nil
}

// MarkReminderSent отмечает напоминание отправленным; false если уже было отмечено
func (r *PgBookingRepository) MarkReminderSent(ctx context.Context, id int64, at time.Time) (bool, error) {
	query := `
		UPDATE lesson_bookings
		SET reminder_sent_at = $2
		WHERE id = $1 AND reminder_sent_at IS NULL
	`

	result, err := r.db.Exec(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("mark reminder sent: %w", err)
	}
	return result.RowsAffected() == 1, nil
}
