package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sakashimaa/product-showcase/pkg/mylogger"
	"go.uber.org/zap"
)

// ErrUnavailable marks a transaction that kept failing with transient errors
// until the retry window closed.
var ErrUnavailable = errors.New("store unavailable")

type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type TxRunner struct {
	pool   TxBeginner
	logger *zap.Logger
	window time.Duration
}

func NewTxRunner(pool TxBeginner, logger *zap.Logger, window time.Duration) *TxRunner {
	if window <= 0 {
		window = 2 * time.Second
	}

	return &TxRunner{
		pool:   pool,
		logger: logger,
		window: window,
	}
}

// Run executes fn inside one transaction. The transaction is retried from
// scratch on serialization failures, deadlocks and dropped connections.
func (r *TxRunner) Run(ctx context.Context, fn func(tx pgx.Tx) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = r.window

	attempt := 0
	exhausted := false

	operation := func() error {
		attempt++

		err := r.runOnce(ctx, fn)
		if err == nil {
			return nil
		}

		if !IsTransient(err) {
			exhausted = false
			return backoff.Permanent(err)
		}

		exhausted = true
		mylogger.Warn(
			ctx,
			r.logger,
			"Transient transaction failure, retrying",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		return err
	}

	err := backoff.Retry(operation, backoff.WithContext(b, ctx))
	if err == nil {
		return nil
	}

	if exhausted && ctx.Err() == nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	return err
}

func (r *TxRunner) runOnce(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}

	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)

		err := tx.Rollback(cleanupCtx)
		if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Warn(
				cleanupCtx,
				r.logger,
				"Error rolling back transaction",
				zap.Error(err),
			)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Unavailable reports whether err means the store could not be reached, either
// right now or for the whole retry window.
func Unavailable(err error) bool {
	return errors.Is(err, ErrUnavailable) || IsTransient(err)
}

// IsTransient reports whether retrying the whole transaction may succeed.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) || pgconn.Timeout(err) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "57P01", "57P03":
			return true
		}

		return strings.HasPrefix(pgErr.Code, "08")
	}

	return pgconn.SafeToRetry(err)
}

// IsForeignKeyViolation reports a foreign_key_violation (23503).
func IsForeignKeyViolation(err error) bool {
	return hasCode(err, "23503")
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
