package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithinTx_Commit(t *testing.T) {
	dbConn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer dbConn.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE product_variants").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	txm := NewTxManager(dbConn)
	err = txm.WithinTx(context.Background(), TxOptions{Isolation: sql.LevelSerializable}, func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx, "UPDATE product_variants SET quantity = quantity - 1")
		return err
	})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_RollbackOnError(t *testing.T) {
	dbConn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer dbConn.Close()

	domainErr := errors.New("not enough stock")

	mock.ExpectBegin()
	mock.ExpectRollback()

	txm := NewTxManager(dbConn)
	err = txm.WithinTx(context.Background(), TxOptions{}, func(ctx context.Context, tx DBTX) error {
		return domainErr
	})

	assert.ErrorIs(t, err, domainErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_RollbackOnPanic(t *testing.T) {
	dbConn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer dbConn.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	txm := NewTxManager(dbConn)
	assert.Panics(t, func() {
		_ = txm.WithinTx(context.Background(), TxOptions{}, func(ctx context.Context, tx DBTX) error {
			panic("boom")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_ClassifiesSerializationFailure(t *testing.T) {
	dbConn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer dbConn.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE").WillReturnError(&pq.Error{Code: "40001", Message: "could not serialize access"})
	mock.ExpectRollback()

	txm := NewTxManager(dbConn)
	err = txm.WithinTx(context.Background(), TxOptions{Isolation: sql.LevelSerializable}, func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx, "UPDATE product_variants SET quantity = 0")
		return err
	})

	assert.ErrorIs(t, err, ErrSerialization)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_AcquireTimeout(t *testing.T) {
	dbConn, _, err := sqlmock.New()
	require.NoError(t, err)
	defer dbConn.Close()
	dbConn.SetMaxOpenConns(1)

	held, err := dbConn.Conn(context.Background())
	require.NoError(t, err)
	defer held.Close()

	called := false
	txm := NewTxManager(dbConn)
	err = txm.WithinTx(context.Background(), TxOptions{AcquireWait: 20 * time.Millisecond, Timeout: time.Second}, func(ctx context.Context, tx DBTX) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, ErrTimeout)
	assert.False(t, called)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"serialization", &pq.Error{Code: "40001"}, ErrSerialization},
		{"deadlock", &pq.Error{Code: "40P01"}, ErrSerialization},
		{"unique", &pq.Error{Code: "23505", Constraint: "orders_order_id_key"}, ErrUniqueViolation},
		{"lock timeout", &pq.Error{Code: "55P03"}, ErrTimeout},
		{"statement cancelled", &pq.Error{Code: "57014"}, ErrTimeout},
		{"context deadline", context.DeadlineExceeded, ErrTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, Classify(tt.err), tt.want)
		})
	}

	t.Run("passthrough", func(t *testing.T) {
		other := &pq.Error{Code: "23503"}
		assert.Same(t, other, Classify(other))
		assert.Nil(t, Classify(nil))
	})

	t.Run("unique helper", func(t *testing.T) {
		assert.True(t, IsUniqueViolation(&pq.Error{Code: "23505"}))
		assert.False(t, IsUniqueViolation(errors.New("x")))
	})
}
