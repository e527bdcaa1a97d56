package transactor

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err, "failed to create sqlmock")
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestWithinTransactionCommit(t *testing.T) {
	db, mock := newMockDB(t)
	trx := NewSqlxTransactor(db)
	executor := NewSqlxWithinTransactionExecutor(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO t").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := trx.WithinTransaction(context.Background(), func(ctx context.Context) error {
		_, err := executor.Executor(ctx).ExecContext(ctx, "INSERT INTO t VALUES (1)")
		return err
	})
	require.NoError(t, err, "transaction must be committed")
	require.NoError(t, mock.ExpectationsWereMet(), "all expectations must be met")
}

func TestWithinTransactionRollback(t *testing.T) {
	db, mock := newMockDB(t)
	trx := NewSqlxTransactor(db)

	mock.ExpectBegin()
	mock.ExpectRollback()

	fnErr := errors.New("boom")
	err := trx.WithinTransaction(context.Background(), func(ctx context.Context) error {
		return fnErr
	})
	require.ErrorIs(t, err, fnErr, "function error must be returned")
	require.NoError(t, mock.ExpectationsWereMet(), "all expectations must be met")
}

func TestExecutorOutsideTransaction(t *testing.T) {
	db, _ := newMockDB(t)
	executor := NewSqlxWithinTransactionExecutor(db)

	require.Same(t, db, executor.Executor(context.Background()), "db must be used outside of transaction")
}
