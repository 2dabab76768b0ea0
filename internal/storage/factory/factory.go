// Package factory provides functions for creating storage backends based on configuration.
package factory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ticketport/ticketport/internal/config"
	"github.com/ticketport/ticketport/internal/storage"
	"github.com/ticketport/ticketport/internal/storage/memory"
	"github.com/ticketport/ticketport/internal/storage/mysql"
	"github.com/ticketport/ticketport/internal/storage/sqlite"
)

// Backend names accepted by New and the "backend" config key.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendMySQL  = "mysql"
)

// BackendFactory is a function that creates a storage backend.
// target is a file path for sqlite and a DSN for mysql.
type BackendFactory func(ctx context.Context, target string, opts Options) (storage.Storage, error)

// backendRegistry holds registered backend factories
var backendRegistry = make(map[string]BackendFactory)

// RegisterBackend registers a storage backend factory
func RegisterBackend(name string, factory BackendFactory) {
	backendRegistry[name] = factory
}

func init() {
	RegisterBackend(BackendMemory, func(ctx context.Context, target string, opts Options) (storage.Storage, error) {
		return memory.New(), nil
	})
	RegisterBackend(BackendSQLite, func(ctx context.Context, target string, opts Options) (storage.Storage, error) {
		sopts := sqlite.DefaultOptions()
		if opts.LockTimeout > 0 {
			sopts.BusyTimeout = opts.LockTimeout
		}
		if opts.RetryTimeout > 0 {
			sopts.MaxRetryElapsed = opts.RetryTimeout
		}
		return sqlite.NewWithOptions(ctx, target, sopts)
	})
	RegisterBackend(BackendMySQL, func(ctx context.Context, target string, opts Options) (storage.Storage, error) {
		mopts := mysql.DefaultOptions()
		if opts.RetryTimeout > 0 {
			mopts.MaxRetryElapsed = opts.RetryTimeout
		}
		return mysql.NewWithOptions(ctx, target, mopts)
	})
}

// Options configures how the storage backend is opened
type Options struct {
	// LockTimeout is the SQLite busy timeout.
	LockTimeout time.Duration
	// RetryTimeout bounds backoff retries of transient errors.
	RetryTimeout time.Duration
}

// New creates a storage backend based on the backend type.
func New(ctx context.Context, backend, target string) (storage.Storage, error) {
	return NewWithOptions(ctx, backend, target, Options{})
}

// NewWithOptions creates a storage backend with the specified options.
func NewWithOptions(ctx context.Context, backend, target string, opts Options) (storage.Storage, error) {
	if backend == "" {
		backend = BackendSQLite
	}
	if factory, ok := backendRegistry[backend]; ok {
		return factory(ctx, target, opts)
	}
	return nil, fmt.Errorf("unknown storage backend: %s (supported: %s)", backend, strings.Join(Backends(), ", "))
}

// NewFromConfig opens the backend named by the "backend" config key, using
// "db" as the SQLite path or "mysql.dsn" as the MySQL DSN.
func NewFromConfig(ctx context.Context) (storage.Storage, error) {
	backend := config.GetString("backend")
	target := config.GetString("db")
	if backend == BackendMySQL {
		target = config.GetString("mysql.dsn")
	}
	return NewWithOptions(ctx, backend, target, Options{})
}

// Backends lists registered backend names, sorted.
func Backends() []string {
	names := make([]string, 0, len(backendRegistry))
	for name := range backendRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
