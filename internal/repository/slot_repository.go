package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/stable_booking/internal/model"
	"github.com/Freeeeeet/stable_booking/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

const slotColumns = `id, lesson_type_id, instructor_id, horse_id, start_time, end_time, capacity, status, created_at`

type PgSlotRepository struct {
	db base.DBTX
}

func NewSlotRepository(db base.DBTX) *PgSlotRepository {
	return &PgSlotRepository{db: db}
}

func scanSlot(row pgx.Row) (*model.Slot, error) {
	var slot model.Slot
	err := row.Scan(
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
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

// GetByID получает слот по ID
func (r *PgSlotRepository) GetByID(ctx context.Context, id int64) (*model.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM availability_slots WHERE id = $1`

	slot, err := scanSlot(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get slot by id: %w", err)
	}
	return slot, nil
}

// GetByIDForUpdate получает слот и блокирует строку до конца транзакции
func (r *PgSlotRepository) GetByIDForUpdate(ctx context.Context, id int64) (*model.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM availability_slots WHERE id = $1 FOR UPDATE`

	slot, err := scanSlot(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock slot: %w", err)
	}
	return slot, nil
}

// UpdateStatus обновляет статус слота
func (r *PgSlotRepository) UpdateStatus(ctx context.Context, id int64, status model.SlotStatus) error {
	query := `UPDATE availability_slots SET status = $1 WHERE id = $2`

	tag, err := r.db.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("update slot status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update slot status: slot %d not found", id)
	}
	return nil
}

// ListAvailable returns open slots that still have room, with their live
// booking counts, ordered by start time.
func (r *PgSlotRepository) ListAvailable(ctx context.Context, q AvailabilityQuery) ([]*model.AvailableSlot, error) {
	query := `
		SELECT s.id, s.lesson_type_id, s.instructor_id, s.horse_id, s.start_time, s.end_time,
		       s.capacity, s.status, s.created_at, COALESCE(b.booked, 0) AS booked_count
		FROM availability_slots s
		LEFT JOIN (
			SELECT slot_id, COUNT(*) AS booked
			FROM lesson_bookings
			WHERE status IN ('booked', 'completed')
			GROUP BY slot_id
		) b ON b.slot_id = s.id
		WHERE s.status = 'open'
		  AND s.start_time >= $1
		  AND s.start_time < $2
		  AND ($3::bigint IS NULL OR s.lesson_type_id = $3)
		  AND ($4::bigint IS NULL OR s.instructor_id = $4)
		  AND COALESCE(b.booked, 0) < s.capacity
		ORDER BY s.start_time, s.id
	`

	rows, err := r.db.Query(ctx, query, q.From, q.To, q.LessonTypeID, q.InstructorID)
	if err != nil {
		return nil, fmt.Errorf("list available slots: %w", err)
	}
	defer rows.Close()

	var result []*model.AvailableSlot
	for rows.Next() {
		var item model.AvailableSlot
		err := rows.Scan(
			&item.ID,
			&item.LessonTypeID,
			&item.InstructorID,
			&item.HorseID,
			&item.StartTime,
			&item.EndTime,
			&item.Capacity,
			&item.Status,
			&item.CreatedAt,
			&item.BookedCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan available slot: %w", err)
		}
		item.RemainingCapacity = item.Capacity - item.BookedCount
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate available slots: %w", err)
	}

	return result, nil
}

// SlotExists проверяет существует ли слот с таким началом у того же инструктора
func (r *PgSlotRepository) SlotExists(ctx context.Context, startTime time.Time, instructorID *int64) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM availability_slots
			WHERE start_time = $1
			  AND instructor_id IS NOT DISTINCT FROM $2
		)
	`

	var exists bool
	if err := r.db.QueryRow(ctx, query, startTime, instructorID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check slot exists: %w", err)
	}
	return exists, nil
}

// CreateBatch inserts all slots with one statement and fills their IDs.
// Returned rows are matched back by (start_time, instructor_id), which is unique per slot.
func (r *PgSlotRepository) CreateBatch(ctx context.Context, slots []*model.Slot) error {
	if len(slots) == 0 {
		return nil
	}

	const cols = 7
	values := make([]string, 0, len(slots))
	args := make([]any, 0, len(slots)*cols)
	pending := make(map[slotKey]*model.Slot, len(slots))
	for i, slot := range slots {
		n := i * cols
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			n+1, n+2, n+3, n+4, n+5, n+6, n+7))
		args = append(args,
			slot.LessonTypeID,
			slot.InstructorID,
			slot.HorseID,
			slot.StartTime,
			slot.EndTime,
			slot.Capacity,
			slot.Status,
		)
		key := newSlotKey(slot.StartTime, slot.InstructorID)
		if _, dup := pending[key]; dup {
			return fmt.Errorf("create slots: duplicate slot at %s", slot.StartTime.Format(time.RFC3339))
		}
		pending[key] = slot
	}

	query := `
		INSERT INTO availability_slots (lesson_type_id, instructor_id, horse_id, start_time, end_time, capacity, status)
		VALUES ` + strings.Join(values, ", ") + `
		RETURNING id, created_at, start_time, instructor_id
	`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("create slots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id           int64
			createdAt    time.Time
			startTime    time.Time
			instructorID *int64
		)
		if err := rows.Scan(&id, &createdAt, &startTime, &instructorID); err != nil {
			return fmt.Errorf("scan created slot: %w", err)
		}
		key := newSlotKey(startTime, instructorID)
		slot, ok := pending[key]
		if !ok {
			return fmt.Errorf("create slots: unexpected row for %s", startTime.Format(time.RFC3339))
		}
		slot.ID = id
		slot.CreatedAt = createdAt
		delete(pending, key)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("create slots: %w", err)
	}
	if len(pending) != 0 {
		return fmt.Errorf("create slots: %d rows not returned", len(pending))
	}

	return nil
}

type slotKey struct {
	start         int64
	instructorID  int64
	hasInstructor bool
}

func newSlotKey(start time.Time, instructorID *int64) slotKey {
	key := slotKey{start: start.UnixNano()}
	if instructorID != nil {
		key.instructorID = *instructorID
		key.hasInstructor = true
	}
	return key
}
