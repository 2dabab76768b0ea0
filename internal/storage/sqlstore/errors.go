package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"

	"github.com/ticketport/ticketport/internal/storage"
)

// wrapDBError wraps a database error with operation context.
// It converts sql.ErrNoRows to storage.ErrNotFound for consistent error handling.
func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// classify maps constraint violations onto the storage sentinels.
func (s *Store) classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrConflict), errors.Is(err, storage.ErrReference):
		return err
	case s.dialect.IsUniqueViolation(err):
		return fmt.Errorf("%s: %w: %w", op, storage.ErrConflict, err)
	case s.dialect.IsForeignKeyViolation(err):
		return fmt.Errorf("%s: %w: %w", op, storage.ErrReference, err)
	default:
		return wrapDBError(op, err)
	}
}

// retry runs op, retrying transient errors with exponential backoff.
// Non-transient errors are returned immediately.
func (s *Store) retry(ctx context.Context, op func() error) error {
	if s.opts.MaxRetryElapsed <= 0 {
		return op()
	}
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = s.opts.MaxRetryElapsed
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !s.dialect.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(bo, ctx))
}

// execContext wraps s.db.ExecContext with retry for transient errors.
func (s *Store) execContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	var result sql.Result
	err := s.retry(ctx, func() error {
		var execErr error
		result, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	})
	return result, err
}

// queryRow runs a single-row query with retry and scans it with scan.
func (s *Store) queryRow(ctx context.Context, scan func(*sql.Row) error, query string, args ...interface{}) error {
	return s.retry(ctx, func() error {
		return scan(s.db.QueryRowContext(ctx, query, args...))
	})
}
