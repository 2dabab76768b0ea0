// Package sqlstore implements storage.Storage over database/sql. The sqlite
// and mysql packages open the connection and supply a Dialect; all queries
// use "?" placeholders, which both drivers accept.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ticketport/ticketport/internal/storage"
)

// Dialect captures what differs between SQL backends.
type Dialect interface {
	// Name is used in error messages and telemetry.
	Name() string
	// SchemaStatements are executed in order on open; each must be idempotent.
	SchemaStatements() []string
	IsUniqueViolation(err error) bool
	IsForeignKeyViolation(err error) bool
	// IsRetryable reports transient errors worth retrying with backoff.
	IsRetryable(err error) bool
}

// Options tunes a Store.
type Options struct {
	// MaxRetryElapsed bounds the total time spent retrying one operation.
	// Zero disables retries.
	MaxRetryElapsed time.Duration
}

// Store is a SQL-backed gateway.
type Store struct {
	db      *sql.DB
	dialect Dialect
	opts    Options
	closed  atomic.Bool
	now     func() time.Time
}

var _ storage.Storage = (*Store)(nil)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// New initializes the schema on db and returns a Store that owns db.
func New(ctx context.Context, db *sql.DB, dialect Dialect, opts Options) (*Store, error) {
	s := &Store{
		db:      db,
		dialect: dialect,
		opts:    opts,
		now:     func() time.Time { return time.Now().UTC() },
	}
	if err := s.initSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	for _, stmt := range s.dialect.SchemaStatements() {
		err := s.retry(ctx, func() error {
			_, err := s.db.ExecContext(ctx, stmt)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to initialize %s schema: %w", s.dialect.Name(), err)
		}
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ticket_sequence WHERE id = 1`).Scan(&count); err != nil {
		return wrapDBError("read ticket sequence", err)
	}
	if count == 0 {
		if _, err := s.db.ExecContext(ctx, `INSERT INTO ticket_sequence (id, next_number) VALUES (1, 1)`); err != nil {
			return wrapDBError("seed ticket sequence", err)
		}
	}
	return nil
}

// DB exposes the underlying connection pool. Callers must not close it.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the dialect the store was opened with.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Close closes the connection pool.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}

// IsClosed returns true if Close() has been called.
func (s *Store) IsClosed() bool {
	return s.closed.Load()
}

// withTx executes fn within a database transaction, committing on success.
func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	return s.retry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return wrapDBError("begin transaction", err)
		}
		defer func() { _ = tx.Rollback() }()

		if err := fn(tx); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return wrapDBError("commit transaction", err)
		}
		return nil
	})
}

// sqlTx adapts a *sql.Tx to storage.Transaction.
type sqlTx struct {
	s  *Store
	tx *sql.Tx
}

// RunInTransaction runs fn in one database transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx storage.Transaction) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapDBError("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&sqlTx{s: s, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return wrapDBError("commit transaction", err)
	}
	return nil
}
