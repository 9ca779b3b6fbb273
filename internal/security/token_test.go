package security

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIssuer(clock *fakeClock) *TokenIssuer {
	ti := NewTokenIssuer("server-secret", AdminSessionPurpose, 7*24*time.Hour)
	ti.now = clock.Now
	return ti
}

func TestTokenRoundTrip(t *testing.T) {
	clock := newFakeClock()
	ti := newTestIssuer(clock)

	token, err := ti.Issue("admin")
	require.NoError(t, err)

	principal, err := ti.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", principal)
	assert.True(t, ti.VerifyPrincipal(token, "admin"))
	assert.False(t, ti.VerifyPrincipal(token, "someone-else"))
}

func TestTokenTampered(t *testing.T) {
	clock := newFakeClock()
	ti := newTestIssuer(clock)

	token, err := ti.Issue("admin")
	require.NoError(t, err)

	// Flip one character inside the payload segment.
	i := strings.Index(token, ".") + 5
	flipped := []byte(token)
	if flipped[i] == 'A' {
		flipped[i] = 'B'
	} else {
		flipped[i] = 'A'
	}

	_, err = ti.Verify(string(flipped))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenExpired(t *testing.T) {
	clock := newFakeClock()
	ti := newTestIssuer(clock)

	token, err := ti.Issue("admin")
	require.NoError(t, err)

	clock.Advance(7*24*time.Hour - time.Minute)
	_, err = ti.Verify(token)
	assert.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = ti.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenMaxAgeLoweredAfterIssue(t *testing.T) {
	clock := newFakeClock()
	ti := newTestIssuer(clock)

	token, err := ti.Issue("admin")
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	ti.maxAge = time.Hour
	_, err = ti.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenPurposeAndSecretSeparation(t *testing.T) {
	clock := newFakeClock()
	ti := newTestIssuer(clock)

	token, err := ti.Issue("admin")
	require.NoError(t, err)

	otherPurpose := NewTokenIssuer("server-secret", "password-reset", 7*24*time.Hour)
	otherPurpose.now = clock.Now
	_, err = otherPurpose.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	otherSecret := NewTokenIssuer("another-secret", AdminSessionPurpose, 7*24*time.Hour)
	otherSecret.now = clock.Now
	_, err = otherSecret.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenMalformed(t *testing.T) {
	ti := newTestIssuer(newFakeClock())

	for _, token := range []string{"", "garbage", "a.b.c", "eyJhbGciOiJub25lIn0.eyJzdWIiOiJhZG1pbiJ9."} {
		_, err := ti.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", token)
	}
}
