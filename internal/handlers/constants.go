package handlers

const (
	AdminCookieName = "admin_session"
	APIKeyHeader    = "X-API-Key"
	RequestIDHeader = "X-Request-ID"

	// maxBodyBytes caps ingestion request bodies.
	maxBodyBytes = 1 << 20

	ErrInvalidJSON         = "invalid JSON body"
	ErrInvalidFormData     = "invalid form data"
	ErrUnauthorized        = "unauthorized"
	ErrTooManyAttempts     = "too many attempts, try again later"
	ErrNotFound            = "not found"
	ErrInternalServerError = "internal server error"
)
