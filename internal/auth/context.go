// ABOUTME: Request-context propagation of the authenticated principal
// ABOUTME: Provides WithPrincipal/FromContext used by the gate and handlers

package auth

import (
	"context"
)

// principalKey is the key type for storing a Principal in context.Context.
type principalKey struct{}

// WithPrincipal returns a new context with the principal attached.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext retrieves the principal from the context, returning nil if not present.
func FromContext(ctx context.Context) *Principal {
	val := ctx.Value(principalKey{})
	if val == nil {
		return nil
	}
	p, ok := val.(*Principal)
	if !ok {
		return nil
	}
	return p
}

// IsAdmin returns true if the principal carries the admin role.
func (p *Principal) IsAdmin() bool {
	return p.Role == "admin"
}
