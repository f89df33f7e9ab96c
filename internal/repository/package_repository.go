package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/stable_booking/internal/model"
	"github.com/Freeeeeet/stable_booking/internal/repository/base"
)

type PgPackageRepository struct {
	db base.DBTX
}

func NewPackageRepository(db base.DBTX) *PgPackageRepository {
	return &PgPackageRepository{db: db}
}

// GetByIDForUpdate получает пакет занятий и блокирует строку
func (r *PgPackageRepository) GetByIDForUpdate(ctx context.Context, id int64) (*model.StudentPackage, error) {
	query := `
		SELECT id, student_id, lesson_type_id, lessons_included, remaining_lessons,
		       price_paid_cents, expires_at, status, created_at
		FROM student_packages
		WHERE id = $1
		FOR UPDATE
	`

	var pkg model.StudentPackage
	err := r.db.QueryRow(ctx, query, id).Scan(
		&pkg.ID,
		&pkg.StudentID,
		&pkg.LessonTypeID,
		&pkg.LessonsIncluded,
		&pkg.RemainingLessons,
		&pkg.PricePaidCents,
		&pkg.ExpiresAt,
		&pkg.Status,
		&pkg.CreatedAt,
	)

	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock package: %w", err)
	}

	return &pkg, nil
}

// DeductLesson списывает одно занятие с пакета
func (r *PgPackageRepository) DeductLesson(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE student_packages
		SET remaining_lessons = remaining_lessons - 1
		WHERE id = $1 AND remaining_lessons > 0
	`

	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("deduct package lesson: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// RefundLesson возвращает одно занятие в пакет
func (r *PgPackageRepository) RefundLesson(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE student_packages
		SET remaining_lessons = remaining_lessons + 1
		WHERE id = $1 AND remaining_lessons < lessons_included
	`

	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("refund package lesson: %w", err)
	}
	return result.RowsAffected() == 1, nil
}
