package domain

import (
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrAlreadyRegistered is returned when registering a login id that is already taken.
	ErrAlreadyRegistered = errors.New("already registered")
	// ErrUserNotFound is returned when looking up a non-existent login id.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials is returned when the password does not match, or when the
	// user lacks the privilege the requested scope demands.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDuplicateLogin is returned by a user store when an insert collides with an
	// existing login id.
	ErrDuplicateLogin = errors.New("duplicate login id")
	// ErrNoLoginID is returned when a request carries no login id.
	ErrNoLoginID = errors.New("no login id")
)

// User represents a registered account.
type User struct {
	ID           uuid.UUID // Immutable identifier, the only identity carried by tokens
	LoginID      string    // Unique login identifier (email)
	PasswordHash string    // Hash of the password under Salt
	Salt         string    // Per-user random salt, generated once at registration
	IsPrivileged bool      // Grants backend scope logins
	CreatedAt    int64     // Unix timestamp of account creation
}
