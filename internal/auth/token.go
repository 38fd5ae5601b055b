// Package auth issues and validates the bearer tokens protecting the API.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenProvider creates and validates HS256 signed tokens.
type TokenProvider struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenProvider(secret string, ttl time.Duration) *TokenProvider {
	return &TokenProvider{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// CreateToken issues a token for the given username.
func (tp *TokenProvider) CreateToken(username string) (string, error) {
	now := tp.now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tp.ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tp.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate parses a token string and returns the username it was issued
// for. Expired, malformed, or foreign-signed tokens are rejected.
func (tp *TokenProvider) Validate(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&jwt.RegisteredClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return tp.secret, nil
		},
		jwt.WithTimeFunc(tp.now),
	)
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return claims.Subject, nil
}
