package repository

import (
	"context"
	"path/filepath"
	"testing"

	"mathpractice/internal/database"

	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, err := database.Initialize(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.RunMigrations(context.Background(), "../../migrations")
	require.NoError(t, err)
	return db
}

func countRows(t *testing.T, db *database.DB, query string, args ...interface{}) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRowContext(context.Background(), query, args...).Scan(&n))
	return n
}

func strPtr(s string) *string { return &s }
func intP(n int) *int         { return &n }
func i64P(n int64) *int64     { return &n }
func boolP(b bool) *bool      { return &b }
