package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

func signTestToken(t *testing.T, secret, sub string, exp time.Time) string {
	t.Helper()
	claims := Claims{
		Email: sub + "@example.com",
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestVerifierAcceptsValidToken(t *testing.T) {
	v := NewVerifier(testSecret)
	tok := signTestToken(t, testSecret, "user-1", time.Now().Add(time.Hour))

	claims, err := v.Parse("Bearer " + tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID())
	assert.Equal(t, "user-1@example.com", claims.Email)
}

func TestVerifierRejections(t *testing.T) {
	v := NewVerifier(testSecret)

	_, err := v.Parse(signTestToken(t, testSecret, "user-1", time.Now().Add(-time.Minute)))
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, err = v.Parse(signTestToken(t, "another-secret", "user-1", time.Now().Add(time.Hour)))
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.Parse(signTestToken(t, testSecret, "", time.Now().Add(time.Hour)))
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.Parse("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifierDisabledWithoutSecret(t *testing.T) {
	assert.False(t, NewVerifier("").Enabled())
	var v *Verifier
	assert.False(t, v.Enabled())
	assert.True(t, NewVerifier(testSecret).Enabled())
}
