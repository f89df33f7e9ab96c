package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/Freeeeeet/stable_booking/internal/model"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store := newPostgresStore(mock)
	store.retryBackoff = time.Millisecond
	return store, mock
}

func TestRunInTxCommitsOnSuccess(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE availability_slots SET status")).
		WithArgs(model.SlotStatusBooked, int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := store.RunInTx(context.Background(), func(ctx context.Context, repos Repositories) error {
		return repos.Slots.UpdateStatus(ctx, 7, model.SlotStatusBooked)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	store, mock := newMockStore(t)
	errBusiness := errors.New("slot is full")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := store.RunInTx(context.Background(), func(ctx context.Context, repos Repositories) error {
		return errBusiness
	})
	require.ErrorIs(t, err, errBusiness)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTxRetriesSerializationFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE availability_slots SET status")).
		WithArgs(model.SlotStatusOpen, int64(3)).
		WillReturnError(&pgconn.PgError{Code: "40001", Message: "could not serialize access"})
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE availability_slots SET status")).
		WithArgs(model.SlotStatusOpen, int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	attempts := 0
	err := store.RunInTx(context.Background(), func(ctx context.Context, repos Repositories) error {
		attempts++
		return repos.Slots.UpdateStatus(ctx, 3, model.SlotStatusOpen)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTxDoesNotRetryOtherDatabaseErrors(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE availability_slots SET status")).
		WithArgs(model.SlotStatusOpen, int64(3)).
		WillReturnError(&pgconn.PgError{Code: "23514", Message: "check constraint"})
	mock.ExpectRollback()

	attempts := 0
	err := store.RunInTx(context.Background(), func(ctx context.Context, repos Repositories) error {
		attempts++
		return repos.Slots.UpdateStatus(ctx, 3, model.SlotStatusOpen)
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	require.NoError(t, mock.ExpectationsWereMet())
}
