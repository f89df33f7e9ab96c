package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/stable_booking/internal/model"
	"github.com/Freeeeeet/stable_booking/internal/repository/base"
)

// PgLessonBlockRepository читает недельные шаблоны занятий
type PgLessonBlockRepository struct {
	db base.DBTX
}

func NewLessonBlockRepository(db base.DBTX) *PgLessonBlockRepository {
	return &PgLessonBlockRepository{db: db}
}

// GetAllActive получает все активные шаблоны
func (r *PgLessonBlockRepository) GetAllActive(ctx context.Context) ([]*model.LessonBlockTemplate, error) {
	query := `
		SELECT id, weekday, start_time, lesson_type_id, instructor_id, horse_id, capacity, is_active, created_at
		FROM lesson_block_templates
		WHERE is_active = true
		ORDER BY weekday, start_time, id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get active templates: %w", err)
	}
	defer rows.Close()

	var templates []*model.LessonBlockTemplate
	for rows.Next() {
		tpl := &model.LessonBlockTemplate{}
		err := rows.Scan(
			&tpl.ID,
			&tpl.Weekday,
			&tpl.StartTime,
			&tpl.LessonTypeID,
			&tpl.InstructorID,
			&tpl.HorseID,
			&tpl.Capacity,
			&tpl.IsActive,
			&tpl.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}

	return templates, nil
}
