// Package sqlite implements the storage interface using SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	// Import SQLite driver
	sqlite3 "github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/tetratelabs/wazero"

	"github.com/ticketport/ticketport/internal/storage/sqlstore"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// memCounter names in-memory databases; "file:memdb" alone would be shared
// by every store in the process.
var memCounter atomic.Int64

// setupWASMCache configures WASM compilation caching to reduce SQLite startup time.
// Falls back to an in-memory cache if the user cache directory is unusable.
func setupWASMCache() string {
	cacheDir := ""
	if userCache, err := os.UserCacheDir(); err == nil {
		cacheDir = filepath.Join(userCache, "ticketport", "wasm")
	}

	var cache wazero.CompilationCache
	if cacheDir != "" {
		if c, err := wazero.NewCompilationCacheWithDir(cacheDir); err == nil {
			cache = c
		}
	}
	if cache == nil {
		cache = wazero.NewCompilationCache()
		cacheDir = ""
	}

	sqlite3.RuntimeConfig = wazero.NewRuntimeConfig().WithCompilationCache(cache)
	return cacheDir
}

func init() {
	_ = setupWASMCache()
}

// connString builds the driver DSN for path and reports whether it is in-memory.
func connString(path string, busyTimeout time.Duration) (string, bool, error) {
	pragmas := fmt.Sprintf("_pragma=foreign_keys(ON)&_pragma=busy_timeout(%d)", busyTimeout.Milliseconds())

	switch {
	case path == MemoryPath || path == "":
		name := fmt.Sprintf("memdb%d", memCounter.Add(1))
		return "file:" + name + "?mode=memory&cache=shared&_pragma=journal_mode(DELETE)&" + pragmas, true, nil
	case strings.HasPrefix(path, "file:"):
		connStr := path
		if !strings.Contains(path, "_pragma=foreign_keys") {
			sep := "?"
			if strings.Contains(path, "?") {
				sep = "&"
			}
			connStr += sep + pragmas
		}
		return connStr, strings.Contains(path, "mode=memory"), nil
	default:
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return "", false, fmt.Errorf("failed to create directory: %w", err)
		}
		return "file:" + path + "?" + pragmas, false, nil
	}
}

// Options tunes the SQLite connection.
type Options struct {
	BusyTimeout     time.Duration
	MaxRetryElapsed time.Duration
}

// DefaultOptions returns the settings used when none are configured.
func DefaultOptions() Options {
	return Options{
		BusyTimeout:     30 * time.Second,
		MaxRetryElapsed: 5 * time.Second,
	}
}

// New opens (creating if needed) the SQLite database at path.
// Use MemoryPath for a throwaway in-memory database.
func New(ctx context.Context, path string) (*sqlstore.Store, error) {
	return NewWithOptions(ctx, path, DefaultOptions())
}

// NewWithOptions is New with explicit timeouts.
func NewWithOptions(ctx context.Context, path string, opts Options) (*sqlstore.Store, error) {
	connStr, isInMemory, err := connString(path, opts.BusyTimeout)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// In-memory databases are per connection unless the pool is pinned to one.
	if isInMemory {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(runtime.NumCPU() + 1)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(0)
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store, err := sqlstore.New(ctx, db, Dialect{}, sqlstore.Options{MaxRetryElapsed: opts.MaxRetryElapsed})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Dialect matches SQLite error text.
type Dialect struct{}

var _ sqlstore.Dialect = Dialect{}

func (Dialect) Name() string { return "sqlite" }

func (Dialect) SchemaStatements() []string { return schemaStatements }

// IsUniqueViolation checks if an error is a UNIQUE constraint violation
func (Dialect) IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsForeignKeyViolation checks if an error is a FOREIGN KEY constraint violation
func (Dialect) IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "FOREIGN KEY constraint failed") ||
		strings.Contains(errStr, "foreign key constraint failed")
}

// IsRetryable reports lock contention that outlasted busy_timeout.
func (Dialect) IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "sqlite_busy") ||
		strings.Contains(errStr, "database table is locked")
}
