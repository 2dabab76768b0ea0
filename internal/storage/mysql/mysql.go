// Package mysql implements the storage interface over the MySQL protocol.
// It works against MySQL and Dolt sql-server.
package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/ticketport/ticketport/internal/storage/sqlstore"
)

// MySQL server error numbers the gateway maps to storage sentinels.
const (
	errDupEntry          = 1062
	errNoReferencedRow   = 1216
	errRowIsReferenced   = 1217
	errRowIsReferenced2  = 1451
	errNoReferencedRow2  = 1452
	errLockDeadlock      = 1213
	errLockWaitTimeout   = 1205
	errDatabaseExists    = 1007
	defaultRetryDuration = 30 * time.Second
)

var databaseNameRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Options configures the connection pool.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// MaxRetryElapsed bounds retries of transient errors; zero uses 30s.
	MaxRetryElapsed time.Duration
}

// DefaultOptions returns the pool settings used for server mode.
func DefaultOptions() Options {
	return Options{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		MaxRetryElapsed: defaultRetryDuration,
	}
}

// New connects to the database named in dsn, creating it if needed.
func New(ctx context.Context, dsn string) (*sqlstore.Store, error) {
	return NewWithOptions(ctx, dsn, DefaultOptions())
}

// NewWithOptions is New with explicit pool settings.
func NewWithOptions(ctx context.Context, dsn string, opts Options) (*sqlstore.Store, error) {
	cfg, err := parseDSN(dsn)
	if err != nil {
		return nil, err
	}
	if err := ensureDatabase(ctx, cfg); err != nil {
		return nil, err
	}

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create mysql connector: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	if opts.MaxRetryElapsed == 0 {
		opts.MaxRetryElapsed = defaultRetryDuration
	}
	store, err := sqlstore.New(ctx, db, Dialect{}, sqlstore.Options{MaxRetryElapsed: opts.MaxRetryElapsed})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// parseDSN validates dsn and forces the settings the gateway relies on.
func parseDSN(dsn string) (*mysql.Config, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("mysql backend requires a DSN (set mysql.dsn)")
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql DSN: %w", err)
	}
	if cfg.DBName == "" {
		return nil, fmt.Errorf("mysql DSN must name a database")
	}
	if !databaseNameRe.MatchString(cfg.DBName) {
		return nil, fmt.Errorf("invalid database name %q: only letters, digits and underscores are allowed", cfg.DBName)
	}
	// Timestamps are stored as strings.
	cfg.ParseTime = false
	cfg.MultiStatements = false
	return cfg, nil
}

// ensureDatabase creates cfg.DBName through a connection with no default schema.
func ensureDatabase(ctx context.Context, cfg *mysql.Config) error {
	initCfg := cfg.Clone()
	initCfg.DBName = ""
	connector, err := mysql.NewConnector(initCfg)
	if err != nil {
		return fmt.Errorf("failed to create mysql connector: %w", err)
	}
	initDB := sql.OpenDB(connector)
	defer func() { _ = initDB.Close() }()

	_, err = initDB.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", cfg.DBName)) //nolint:gosec // name validated by parseDSN
	if err == nil || mysqlErrorNumber(err) == errDatabaseExists {
		return nil
	}
	if strings.Contains(strings.ToLower(err.Error()), "connection refused") {
		return fmt.Errorf("failed to connect to mysql server at %s: %w", cfg.Addr, err)
	}
	return fmt.Errorf("failed to create database: %w", err)
}

func mysqlErrorNumber(err error) uint16 {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number
	}
	return 0
}

// Dialect classifies MySQL and Dolt errors.
type Dialect struct{}

var _ sqlstore.Dialect = Dialect{}

func (Dialect) Name() string { return "mysql" }

func (Dialect) SchemaStatements() []string { return schemaStatements }

func (Dialect) IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if mysqlErrorNumber(err) == errDupEntry {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "duplicate entry") || strings.Contains(errStr, "duplicate unique key")
}

func (Dialect) IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	switch mysqlErrorNumber(err) {
	case errNoReferencedRow, errNoReferencedRow2, errRowIsReferenced, errRowIsReferenced2:
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint fails")
}

// IsRetryable reports transient connection errors and lock conflicts.
func (Dialect) IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	switch mysqlErrorNumber(err) {
	case errLockDeadlock, errLockWaitTimeout:
		return true
	}
	errStr := strings.ToLower(err.Error())
	for _, transient := range []string{
		"driver: bad connection",
		"invalid connection",
		"broken pipe",
		"connection reset",
		"connection refused",
		"lost connection",
		"gone away",
		"i/o timeout",
	} {
		if strings.Contains(errStr, transient) {
			return true
		}
	}
	return false
}
