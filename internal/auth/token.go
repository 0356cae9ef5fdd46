package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "worldstream-server"

// Claims is the JWT claims structure for viewer tokens.
type Claims struct {
	jwt.RegisteredClaims

	Viewer string `json:"viewer"`
}

// TokenService issues and validates viewer tokens. It is only active
// when a viewer auth secret is configured; without one the viewer
// endpoint accepts unauthenticated connections.
type TokenService struct {
	secret []byte
	expiry time.Duration
}

// NewTokenService creates a token service. Returns nil when secret is
// empty, which callers treat as auth disabled.
func NewTokenService(secret string, expiry time.Duration) *TokenService {
	if secret == "" {
		return nil
	}
	return &TokenService{
		secret: []byte(secret),
		expiry: expiry,
	}
}

// IssueToken generates a signed token for the named viewer.
func (s *TokenService) IssueToken(viewer string) (string, error) {
	now := time.Now()

	tokenID, err := generateTokenID()
	if err != nil {
		return "", fmt.Errorf("failed to generate token ID: %w", err)
	}

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   viewer,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        tokenID,
		},
		Viewer: viewer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken validates a token and returns its claims.
func (s *TokenService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.Issuer != tokenIssuer {
		return nil, errors.New("invalid token issuer")
	}

	return claims, nil
}

// generateTokenID generates a unique token ID.
func generateTokenID() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
