package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mathpractice/internal/database"
	"mathpractice/internal/repository"
	"mathpractice/internal/security"
	"mathpractice/internal/service"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testAPIKey   = "ingest-key"
	testPassword = "correct horse"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestServer wires the full router against a temporary SQLite database.
func newTestServer(t *testing.T, maxFailures int) http.Handler {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db, err := database.Initialize(filepath.Join(t.TempDir(), "handlers.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.RunMigrations(context.Background(), "../../migrations")
	require.NoError(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	logger := discardLogger()
	events := repository.NewEventRepository(db, repository.NewIdempotencyRepository(db))
	ingestService := service.NewIngestService(events, testAPIKey, logger)
	adminAuth := service.NewAdminAuthService("admin", string(hash),
		security.NewLoginThrottle(15*time.Minute, maxFailures, 15*time.Minute),
		security.NewTokenIssuer("session-secret", security.AdminSessionPurpose, 7*24*time.Hour),
		logger)

	mw := NewMiddleware(ingestService, adminAuth, logger, false)
	mux := http.NewServeMux()
	RegisterRoutes(mux,
		mw,
		NewIngestHandler(ingestService, logger),
		NewAdminHandler(ingestService, adminAuth, logger, false),
		NewHealthHandler(db, logger),
	)
	return mw.Logging(mux)
}

func postJSON(t *testing.T, h http.Handler, path, apiKey, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set(APIKeyHeader, apiKey)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func get(t *testing.T, h http.Handler, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func postForm(t *testing.T, h http.Handler, path, remoteAddr string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(dst))
}

func adminCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == AdminCookieName {
			return c
		}
	}
	t.Fatalf("response did not set %s cookie", AdminCookieName)
	return nil
}

func login(t *testing.T, h http.Handler) *http.Cookie {
	t.Helper()
	rec := postForm(t, h, "/admin/login", "10.0.0.1:5000", url.Values{
		"username": {"admin"},
		"password": {testPassword},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	return adminCookie(t, rec)
}
