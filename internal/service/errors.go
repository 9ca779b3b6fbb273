package service

import "errors"

var (
	// ErrUnauthorized covers every rejected credential: API key, admin
	// password or session token. Callers must not learn which check failed.
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("too many failed login attempts")
	ErrNotFound     = errors.New("not found")
)
