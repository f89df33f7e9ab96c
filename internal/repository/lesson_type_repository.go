package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/stable_booking/internal/model"
	"github.com/Freeeeeet/stable_booking/internal/repository/base"
)

type PgLessonTypeRepository struct {
	db base.DBTX
}

func NewLessonTypeRepository(db base.DBTX) *PgLessonTypeRepository {
	return &PgLessonTypeRepository{db: db}
}

// GetByID получает тип занятия по ID
func (r *PgLessonTypeRepository) GetByID(ctx context.Context, id int64) (*model.LessonType, error) {
	query := `
		SELECT id, name, description, price_cents, duration_minutes, is_active, created_at
		FROM lesson_types
		WHERE id = $1
	`

	var lessonType model.LessonType
	err := r.db.QueryRow(ctx, query, id).Scan(
		&lessonType.ID,
		&lessonType.Name,
		&lessonType.Description,
		&lessonType.PriceCents,
		&lessonType.DurationMinutes,
		&lessonType.IsActive,
		&lessonType.CreatedAt,
	)

	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get lesson type by id: %w", err)
	}

	return &lessonType, nil
}
