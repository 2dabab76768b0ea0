package mysql

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDSN(t *testing.T) {
	tests := []struct {
		name    string
		dsn     string
		wantDB  string
		wantErr string
	}{
		{"valid", "root:pw@tcp(127.0.0.1:3306)/helpdesk?parseTime=true", "helpdesk", ""},
		{"empty", "  ", "", "requires a DSN"},
		{"no database", "root@tcp(127.0.0.1:3306)/", "", "must name a database"},
		{"hostile name", "root@tcp(127.0.0.1:3306)/x`;drop", "", "invalid database name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := parseDSN(tt.dsn)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDB, cfg.DBName)
			assert.False(t, cfg.ParseTime, "timestamps are stored as strings")
		})
	}
}

func TestDialectClassification(t *testing.T) {
	d := Dialect{}
	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'a@example.com' for key 'uq_users_email'"}
	fk := &mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row"}
	deadlock := &mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"}

	tests := []struct {
		name      string
		err       error
		unique    bool
		fk        bool
		retryable bool
	}{
		{"nil", nil, false, false, false},
		{"duplicate", fmt.Errorf("create user: %w", dup), true, false, false},
		{"dolt duplicate text", errors.New("duplicate unique key given: [a@example.com]"), true, false, false},
		{"foreign key", fmt.Errorf("create ticket: %w", fk), false, true, false},
		{"deadlock", deadlock, false, false, true},
		{"bad conn", fmt.Errorf("exec: %w", driver.ErrBadConn), false, false, true},
		{"invalid conn", mysql.ErrInvalidConn, false, false, true},
		{"gone away", errors.New("Error 2006: MySQL server has gone away"), false, false, true},
		{"syntax", &mysql.MySQLError{Number: 1064, Message: "You have an error in your SQL syntax"}, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.unique, d.IsUniqueViolation(tt.err))
			assert.Equal(t, tt.fk, d.IsForeignKeyViolation(tt.err))
			assert.Equal(t, tt.retryable, d.IsRetryable(tt.err))
		})
	}
}
