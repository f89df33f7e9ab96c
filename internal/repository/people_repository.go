package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/stable_booking/internal/model"
	"github.com/Freeeeeet/stable_booking/internal/repository/base"
)

type PgStudentRepository struct {
	db base.DBTX
}

func NewStudentRepository(db base.DBTX) *PgStudentRepository {
	return &PgStudentRepository{db: db}
}

const studentColumns = `id, first_name, last_name, email, guardian_name, guardian_email, telegram_chat_id, created_at`

// GetByID получает ученика по ID
func (r *PgStudentRepository) GetByID(ctx context.Context, id int64) (*model.Student, error) {
	return r.get(ctx, `SELECT `+studentColumns+` FROM students WHERE id = $1`, id)
}

// GetByIDForUpdate получает ученика и блокирует строку до конца транзакции
func (r *PgStudentRepository) GetByIDForUpdate(ctx context.Context, id int64) (*model.Student, error) {
	return r.get(ctx, `SELECT `+studentColumns+` FROM students WHERE id = $1 FOR UPDATE`, id)
}

func (r *PgStudentRepository) get(ctx context.Context, query string, id int64) (*model.Student, error) {
	var student model.Student
	err := r.db.QueryRow(ctx, query, id).Scan(
		&student.ID,
		&student.FirstName,
		&student.LastName,
		&student.Email,
		&student.GuardianName,
		&student.GuardianEmail,
		&student.TelegramChatID,
		&student.CreatedAt,
	)

	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil // Ученик не найден
		}
		return nil, fmt.Errorf("get student by id: %w", err)
	}

	return &student, nil
}

type PgInstructorRepository struct {
	db base.DBTX
}

func NewInstructorRepository(db base.DBTX) *PgInstructorRepository {
	return &PgInstructorRepository{db: db}
}

func (r *PgInstructorRepository) GetByID(ctx context.Context, id int64) (*model.Instructor, error) {
	query := `SELECT id, name, email, created_at FROM instructors WHERE id = $1`

	var instructor model.Instructor
	err := r.db.QueryRow(ctx, query, id).Scan(
		&instructor.ID,
		&instructor.Name,
		&instructor.Email,
		&instructor.CreatedAt,
	)

	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get instructor by id: %w", err)
	}

	return &instructor, nil
}

type PgHorseRepository struct {
	db base.DBTX
}

func NewHorseRepository(db base.DBTX) *PgHorseRepository {
	return &PgHorseRepository{db: db}
}

func (r *PgHorseRepository) GetByID(ctx context.Context, id int64) (*model.Horse, error) {
	query := `SELECT id, name, is_active, created_at FROM horses WHERE id = $1`

	var horse model.Horse
	err := r.db.QueryRow(ctx, query, id).Scan(
		&horse.ID,
		&horse.Name,
		&horse.IsActive,
		&horse.CreatedAt,
	)

	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get horse by id: %w", err)
	}

	return &horse, nil
}
