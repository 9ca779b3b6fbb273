package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"mathpractice/internal/security"
	"mathpractice/internal/service"

	"github.com/google/uuid"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const RequestIDContextKey ContextKey = "request_id"

// Middleware holds dependencies for middleware functions
type Middleware struct {
	ingestService *service.IngestService
	adminAuth     *service.AdminAuthService
	logger        *slog.Logger
	trustProxy    bool
}

// NewMiddleware creates a new middleware instance
func NewMiddleware(ingestService *service.IngestService, adminAuth *service.AdminAuthService, logger *slog.Logger, trustProxy bool) *Middleware {
	return &Middleware{
		ingestService: ingestService,
		adminAuth:     adminAuth,
		logger:        logger,
		trustProxy:    trustProxy,
	}
}

// RequireAPIKey rejects ingestion requests without the configured API key.
func (m *Middleware) RequireAPIKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := m.ingestService.CheckAPIKey(r.Header.Get(APIKeyHeader)); err != nil {
			respondWithError(w, m.logger, http.StatusUnauthorized, ErrUnauthorized, "", nil)
			return
		}
		next(w, r)
	}
}

// RequireAdmin rejects API requests without a valid admin session cookie.
func (m *Middleware) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !m.isAdmin(r) {
			respondWithError(w, m.logger, http.StatusUnauthorized, ErrUnauthorized, "", nil)
			return
		}
		next(w, r)
	}
}

// RequireAdminPage is RequireAdmin for browser pages: it clears a stale
// cookie and redirects to the login form.
func (m *Middleware) RequireAdminPage(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !m.isAdmin(r) {
			if _, err := r.Cookie(AdminCookieName); err == nil {
				http.SetCookie(w, security.CreateDeleteCookie(AdminCookieName))
			}
			http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
			return
		}
		next(w, r)
	}
}

func (m *Middleware) isAdmin(r *http.Request) bool {
	cookie, err := r.Cookie(AdminCookieName)
	if err != nil {
		return false
	}
	return m.adminAuth.Authenticate(cookie.Value) == nil
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Logging middleware logs HTTP requests and tags each with a request id.
func (m *Middleware) Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)
		ctx := context.WithValue(r.Context(), RequestIDContextKey, requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		level := slog.LevelInfo
		if rec.status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		m.logger.LogAttrs(ctx, level, "request",
			slog.String("request_id", requestID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("duration", time.Since(start)),
			slog.String("client", security.ClientIP(r, m.trustProxy)),
		)
	})
}

// GetRequestID retrieves the request id from the request context
func GetRequestID(ctx context.Context) string {
	id, ok := ctx.Value(RequestIDContextKey).(string)
	if !ok {
		return ""
	}
	return id
}
