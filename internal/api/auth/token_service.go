// Package auth issues the bearer tokens the relay's identity verifier
// accepts.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/courierchat/internal/identity"
	"github.com/courierchat/internal/users"
)

// TokenService handles JWT token creation for authenticated users.
type TokenService struct {
	secretKey []byte
	ttl       time.Duration
}

// Token is an issued access token plus its expiry.
type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	TokenType   string    `json:"token_type"` // "Bearer"
}

// NewTokenService creates a token service signing with secretKey. Tokens
// expire after ttl.
func NewTokenService(secretKey string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenService{secretKey: []byte(secretKey), ttl: ttl}
}

// CreateToken signs a JWT carrying the user's public claims. The claim set
// matches what identity.Verifier expects on the websocket side.
func (ts *TokenService) CreateToken(user *users.User) (*Token, error) {
	expiresAt := time.Now().Add(ts.ttl)

	claims := &identity.Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "courierchat",
			Subject:   user.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ts.secretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign JWT: %w", err)
	}

	return &Token{
		AccessToken: signed,
		ExpiresAt:   expiresAt,
		TokenType:   "Bearer",
	}, nil
}
