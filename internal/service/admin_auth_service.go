package service

import (
	"fmt"
	"log/slog"
	"time"

	"mathpractice/internal/security"
)

// AdminAuthService authenticates the single admin principal.
type AdminAuthService struct {
	username     string
	passwordHash string
	throttle     *security.LoginThrottle
	tokens       *security.TokenIssuer
	logger       *slog.Logger
}

// NewAdminAuthService creates a new admin auth service
func NewAdminAuthService(username, passwordHash string, throttle *security.LoginThrottle, tokens *security.TokenIssuer, logger *slog.Logger) *AdminAuthService {
	return &AdminAuthService{
		username:     username,
		passwordHash: passwordHash,
		throttle:     throttle,
		tokens:       tokens,
		logger:       logger.With("component", "admin-auth"),
	}
}

// Login checks the credentials submitted from clientKey and returns a session
// token. A blocked clientKey gets ErrRateLimited without a password check.
func (s *AdminAuthService) Login(clientKey, username, password string) (string, error) {
	if s.throttle.IsBlocked(clientKey) {
		s.logger.Warn("admin login rejected while blocked", "client", clientKey)
		return "", ErrRateLimited
	}

	// Both checks always run so timing does not reveal a valid username.
	userOK := security.SecretEqual(username, s.username)
	passOK := security.CheckPassword(password, s.passwordHash)
	if !userOK || !passOK {
		blocked := s.throttle.RecordFailure(clientKey)
		failures := s.throttle.FailureCount(clientKey)
		if blocked {
			s.logger.Warn("admin login blocked", "client", clientKey, "failures", failures)
		} else {
			s.logger.Info("admin login failed", "client", clientKey, "failures", failures)
		}
		return "", ErrUnauthorized
	}

	s.throttle.Clear(clientKey)

	token, err := s.tokens.Issue(s.username)
	if err != nil {
		return "", fmt.Errorf("failed to issue session token: %w", err)
	}
	s.logger.Info("admin logged in", "client", clientKey)
	return token, nil
}

// Authenticate accepts a session token issued to the admin principal.
func (s *AdminAuthService) Authenticate(token string) error {
	if token == "" || !s.tokens.VerifyPrincipal(token, s.username) {
		return ErrUnauthorized
	}
	return nil
}

// SessionMaxAge is how long an issued token stays valid.
func (s *AdminAuthService) SessionMaxAge() time.Duration {
	return s.tokens.MaxAge()
}
