package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AdminSessionPurpose salts admin session tokens.
const AdminSessionPurpose = "admin-session"

// ErrInvalidToken is returned for every token that fails verification,
// whatever the reason.
var ErrInvalidToken = errors.New("invalid token")

// TokenIssuer issues and verifies stateless HS256 session tokens. The signing
// key is derived from the server secret and a purpose string, so a token
// minted for one purpose never verifies for another.
type TokenIssuer struct {
	key     []byte
	purpose string
	maxAge  time.Duration
	now     func() time.Time
}

// NewTokenIssuer creates a token issuer for purpose.
func NewTokenIssuer(secret, purpose string, maxAge time.Duration) *TokenIssuer {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(purpose))
	return &TokenIssuer{
		key:     mac.Sum(nil),
		purpose: purpose,
		maxAge:  maxAge,
		now:     time.Now,
	}
}

// MaxAge returns how long issued tokens stay valid.
func (t *TokenIssuer) MaxAge() time.Duration {
	return t.maxAge
}

// Issue returns a signed token for principal.
func (t *TokenIssuer) Issue(principal string) (string, error) {
	now := t.now()
	claims := jwt.RegisteredClaims{
		Subject:   principal,
		Audience:  jwt.ClaimStrings{t.purpose},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.maxAge)),
		ID:        uuid.NewString(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and age of token and returns its principal.
func (t *TokenIssuer) Verify(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return t.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(t.purpose),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}

	// The issue time governs age even if the max age was lowered after issue.
	if claims.IssuedAt == nil || t.now().Sub(claims.IssuedAt.Time) > t.maxAge {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// VerifyPrincipal reports whether token is valid and was issued to expected.
func (t *TokenIssuer) VerifyPrincipal(token, expected string) bool {
	principal, err := t.Verify(token)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(principal), []byte(expected)) == 1
}
