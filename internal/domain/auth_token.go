package domain

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoAuthToken is returned when an authentication token is required but not provided.
	ErrNoAuthToken = errors.New("no auth token")
	// ErrInvalidToken is returned when a token is malformed, its signature does not match,
	// it has expired, or it belongs to a different account.
	ErrInvalidToken = errors.New("invalid token")
)

// TokenClaims is the payload of a session token.
type TokenClaims struct {
	UserID string `json:"userId"` // Identifier of the authenticated user

	jwt.RegisteredClaims
}

// Credentials is the request body of register and login calls.
type Credentials struct {
	LoginID   string `json:"loginId"`
	Plaintext string `json:"plaintext"`
}
