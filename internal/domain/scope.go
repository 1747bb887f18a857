package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidScope is returned when a login requests a scope that does not exist.
var ErrInvalidScope = errors.New("invalid scope")

// Scope is the access tier requested at login.
type Scope int

const (
	// ScopeStandard is granted to every registered user.
	ScopeStandard Scope = iota
	// ScopeBackend is granted to privileged users only.
	ScopeBackend
)

// ParseScope maps the wire value of a scope to a Scope. An empty value means ScopeStandard.
func ParseScope(s string) (Scope, error) {
	switch s {
	case "", "standard":
		return ScopeStandard, nil
	case "backend":
		return ScopeBackend, nil
	default:
		return ScopeStandard, fmt.Errorf("%w: %q", ErrInvalidScope, s)
	}
}

func (s Scope) String() string {
	if s == ScopeBackend {
		return "backend"
	}

	return "standard"
}

// Permits reports whether a user may log in with this scope.
func (s Scope) Permits(u *User) bool {
	return s == ScopeStandard || u.IsPrivileged
}
