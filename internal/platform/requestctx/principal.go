// Package requestctx carries authenticated request identity through context.
package requestctx

import "context"

// Principal identifies the authenticated caller and the pair scope the
// caller acts within. Every pair has exactly two member users.
type Principal struct {
	UserID string
	PairID string
}

// principalContextKey is the context key for the authenticated principal.
type principalContextKey struct{}

// WithPrincipal stores the caller identity in context.
func WithPrincipal(ctx context.Context, principal Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// PrincipalFromContext returns the caller identity stored in context.
// The zero Principal is returned when no identity was attached.
func PrincipalFromContext(ctx context.Context) Principal {
	if ctx == nil {
		return Principal{}
	}
	value, _ := ctx.Value(principalContextKey{}).(Principal)
	return value
}
