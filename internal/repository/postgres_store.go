package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/stable_booking/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"
)

const (
	defaultTxRetries      = 3
	defaultTxRetryBackoff = 20 * time.Millisecond
)

// PostgresStore hands out pgx-backed repositories and runs units of work in
// database transactions.
type PostgresStore struct {
	db           base.TxBeginner
	maxRetries   uint64
	retryBackoff time.Duration
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return newPostgresStore(pool)
}

func newPostgresStore(db base.TxBeginner) *PostgresStore {
	return &PostgresStore{
		db:           db,
		maxRetries:   defaultTxRetries,
		retryBackoff: defaultTxRetryBackoff,
	}
}

func bindRepositories(db base.DBTX) Repositories {
	return Repositories{
		Slots:       NewSlotRepository(db),
		Bookings:    NewBookingRepository(db),
		Packages:    NewPackageRepository(db),
		LessonTypes: NewLessonTypeRepository(db),
		Templates:   NewLessonBlockRepository(db),
		Students:    NewStudentRepository(db),
		Instructors: NewInstructorRepository(db),
		Horses:      NewHorseRepository(db),
	}
}

func (s *PostgresStore) Repositories() Repositories {
	return bindRepositories(s.db)
}

// RunInTx runs fn in a transaction. Serialization failures and deadlocks
// replay fn from the start in a fresh transaction; any other error is
// returned as is.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	backoff := retry.WithMaxRetries(s.maxRetries, retry.NewExponential(s.retryBackoff))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := s.runOnce(ctx, fn)
		if err != nil && base.IsRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (s *PostgresStore) runOnce(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(ctx, bindRepositories(tx)); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}
