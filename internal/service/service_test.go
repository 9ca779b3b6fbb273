package service

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"mathpractice/internal/database"
	"mathpractice/internal/repository"

	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestIngestService(t *testing.T) *IngestService {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, err := database.Initialize(filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.RunMigrations(context.Background(), "../../migrations")
	require.NoError(t, err)

	events := repository.NewEventRepository(db, repository.NewIdempotencyRepository(db))
	return NewIngestService(events, "test-key", discardLogger())
}

func strPtr(s string) *string { return &s }
func intP(n int) *int         { return &n }
func i64P(n int64) *int64     { return &n }
