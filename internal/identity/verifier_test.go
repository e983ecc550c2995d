package identity

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestVerifyValidToken(t *testing.T) {
	v := NewVerifier("topsecret")

	tokenString := signToken(t, "topsecret", Claims{
		UserID: "u-1",
		Email:  "a@x.com",
		Role:   "member",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	})

	id, err := v.Verify(tokenString)
	require.NoError(t, err)
	assert.Equal(t, "u-1", id.ID)
	assert.Equal(t, "a@x.com", id.Email)
	assert.Equal(t, "member", id.Role)
	assert.Equal(t, "a@x.com", id.Key())
}

func TestVerifyWrongSecret(t *testing.T) {
	v := NewVerifier("topsecret")

	tokenString := signToken(t, "othersecret", Claims{
		UserID: "u-1",
		Email:  "a@x.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	_, err := v.Verify(tokenString)
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestVerifyExpiredToken(t *testing.T) {
	v := NewVerifier("topsecret")

	tokenString := signToken(t, "topsecret", Claims{
		UserID: "u-1",
		Email:  "a@x.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})

	_, err := v.Verify(tokenString)
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestVerifyGarbage(t *testing.T) {
	v := NewVerifier("topsecret")

	_, err := v.Verify("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestVerifyMissingEmailClaim(t *testing.T) {
	v := NewVerifier("topsecret")

	tokenString := signToken(t, "topsecret", Claims{
		UserID: "u-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	_, err := v.Verify(tokenString)
	assert.ErrorIs(t, err, ErrInvalidCredential)
}
