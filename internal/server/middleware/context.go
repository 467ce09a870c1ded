package middleware

import (
	"context"

	"nexus-pm/backend/internal/user/domain"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is what the auth middleware learned about the caller.
type Identity struct {
	UserID string
	Email  string
	Role   domain.Role
}

// WithIdentity stashes the authenticated caller in the request context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom returns the authenticated caller, if any.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// UserID returns the caller's user id, or "" on unauthenticated requests.
func UserID(ctx context.Context) string {
	id, _ := IdentityFrom(ctx)
	return id.UserID
}
