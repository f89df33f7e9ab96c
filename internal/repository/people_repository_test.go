package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var studentRowColumns = []string{"id", "first_name", "last_name", "email", "guardian_name", "guardian_email", "telegram_chat_id", "created_at"}

func TestStudentRepositoryGetByIDForUpdateLocksRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	created := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE id = $1 FOR UPDATE")).
		WithArgs(int64(9)).
		WillReturnRows(pgxmock.NewRows(studentRowColumns).
			AddRow(int64(9), "Anna", "Petrova", "anna@example.com", "", "", int64Ptr(555), created))

	student, err := NewStudentRepository(mock).GetByIDForUpdate(context.Background(), 9)
	require.NoError(t, err)
	require.NotNil(t, student)
	assert.Equal(t, "Anna", student.FirstName)
	assert.Equal(t, int64Ptr(555), student.TelegramChatID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryGetByIDForUpdateMissingReturnsNil(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs(int64(404)).
		WillReturnRows(pgxmock.NewRows(studentRowColumns))

	student, err := NewStudentRepository(mock).GetByIDForUpdate(context.Background(), 404)
	require.NoError(t, err)
	assert.Nil(t, student)
	require.NoError(t, mock.ExpectationsWereMet())
}
