package identity

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidCredential is returned for any token that does not verify:
// bad signature, expired, malformed, or missing claims.
var ErrInvalidCredential = errors.New("invalid credential")

// Claims is the JWT claim set courier issues and verifies.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier validates bearer tokens against an HMAC secret. The secret is
// injected at construction; there is no ambient shared state.
type Verifier struct {
	secretKey []byte
}

// NewVerifier creates a Verifier with the given signing secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secretKey: []byte(secret)}
}

// Verify parses and validates tokenString and returns the identity it
// carries. It is side-effect-free and safe for concurrent use. Callers must
// not retry a failed verification on their own; a failed attempt is
// re-submitted by the client.
func (v *Verifier) Verify(tokenString string) (Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secretKey, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Identity{}, ErrInvalidCredential
	}

	if claims.Email == "" {
		return Identity{}, fmt.Errorf("%w: token has no email claim", ErrInvalidCredential)
	}

	return Identity{
		ID:    claims.UserID,
		Email: claims.Email,
		Role:  claims.Role,
	}, nil
}
