package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"soulconnect/errors"
)

// Claims is the data carried inside a session JWT. The display name is
// embedded so the realtime gateway can label events without a store
// round trip.
type Claims struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies session JWTs with an HMAC secret.
type Tokens struct {
	secret   []byte
	lifetime time.Duration
}

func NewTokens(secret string, lifetime time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), lifetime: lifetime}
}

// Generate creates a signed token for an identity.
func (t *Tokens) Generate(userID, displayName string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:      userID,
		DisplayName: displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.lifetime)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "soulconnect",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify parses and validates signature and expiry, returning the
// identity claims. Any failure maps to ErrInvalidToken; callers never
// see library internals.
func (t *Tokens) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	})
	if err != nil {
		return nil, errors.ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.ErrInvalidToken
	}
	return claims, nil
}
