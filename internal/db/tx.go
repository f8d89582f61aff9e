package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"techwire-be/internal/logger"

	"go.uber.org/zap"
)

type TxOptions struct {
	Isolation sql.IsolationLevel
	// AcquireWait bounds how long we wait for a pooled connection.
	AcquireWait time.Duration
	// Timeout bounds the whole transaction, acquisition included.
	Timeout  time.Duration
	ReadOnly bool
}

type TxManager interface {
	WithinTx(ctx context.Context, opts TxOptions, fn func(ctx context.Context, tx DBTX) error) error
}

type txManager struct {
	db *sql.DB
}

func NewTxManager(db *sql.DB) TxManager {
	return &txManager{db: db}
}

func (m *txManager) WithinTx(ctx context.Context, opts TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	log := logger.FromCtx(ctx).With(zap.String("layer", "db"), zap.String("method", "WithinTx"))

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	acquireCtx := ctx
	if opts.AcquireWait > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, opts.AcquireWait)
		defer cancel()
	}

	conn, err := m.db.Conn(acquireCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: acquire connection: %v", ErrTimeout, err)
		}
		return Classify(err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, &sql.TxOptions{Isolation: opts.Isolation, ReadOnly: opts.ReadOnly})
	if err != nil {
		return Classify(err)
	}

	committed := false
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Error("rollback failed", zap.Error(rbErr))
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return Classify(err)
	}

	if err = tx.Commit(); err != nil {
		log.Error("commit failed", zap.Error(err))
		return Classify(err)
	}
	committed = true

	return nil
}
