//go:build integration

package mysql

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/dolt"

	"github.com/ticketport/ticketport/internal/storage"
	"github.com/ticketport/ticketport/internal/testutil/teststore"
)

const doltImage = "dolthub/dolt-sql-server:1.43.0"

// TestConformanceDolt runs the shared storage contract against a Dolt
// sql-server. Tables are dropped between subtests.
func TestConformanceDolt(t *testing.T) {
	ctx := context.Background()
	container, err := dolt.Run(ctx, doltImage,
		dolt.WithDatabase("ticketport"),
		dolt.WithUsername("ticketport"),
		dolt.WithPassword("ticketport"),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	dsn, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	teststore.RunConformance(t, func(t *testing.T) storage.Storage {
		dropTables(t, dsn)
		s, err := New(ctx, dsn)
		require.NoError(t, err)
		return s
	})
}

func dropTables(t *testing.T, dsn string) {
	t.Helper()
	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err)
	defer db.Close()
	for _, table := range []string{"form_responses", "comments", "tickets", "field_definitions", "users", "ticket_sequence"} {
		_, err := db.Exec("DROP TABLE IF EXISTS " + table)
		require.NoError(t, err)
	}
}
