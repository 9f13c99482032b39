package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const defaultTokenTTL = 30 * 24 * time.Hour

// ErrInvalidToken indicates a token that failed signature or claim checks.
var ErrInvalidToken = errors.New("invalid session token")

// TokenIssuer issues and verifies HS256 bearer session tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer builds an issuer from the shared signing secret.
func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("jwt secret required")
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}, nil
}

// Issue signs a token whose subject is the user ID.
func (t *TokenIssuer) Issue(userID string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify validates the token and returns the user ID it was issued for.
func (t *TokenIssuer) Verify(tokenString string) (string, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || strings.TrimSpace(claims.Subject) == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
