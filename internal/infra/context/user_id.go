package context

import (
	"context"

	"github.com/google/uuid"
)

const contextKeyUserID = contextKey("userID")

// UserIDFromContext extracts the authenticated user's id from the context.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(contextKeyUserID).(uuid.UUID)

	return userID, ok
}

// WithUserID returns a context carrying the id of the user a token was validated for.
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, contextKeyUserID, userID)
}
