package shared

import (
	"context"
	"time"
)

// Principal describes the authenticated caller of a request.
type Principal struct {
	UserID int64
	Email  string
	Role   string
	// TokenID is the jti of the bearer token that authenticated the request.
	TokenID   string
	ExpiresAt time.Time
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}

// ActorID returns the current user ID, or 0 for system actions.
func ActorID(ctx context.Context) int64 {
	p, _ := PrincipalFromContext(ctx)
	return p.UserID
}
