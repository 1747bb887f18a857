package identityclient

import (
	"context"

	"github.com/google/uuid"
)

// AuthClient validates session tokens on behalf of services that do not own credentials.
type AuthClient interface {
	// Validate checks that token is a valid session token for loginID.
	// Returns the embedded user id and true when valid, false when the identity service
	// rejected the token or the login id, and an error when the check itself failed.
	Validate(ctx context.Context, loginID, token string) (uuid.UUID, bool, error)
}
