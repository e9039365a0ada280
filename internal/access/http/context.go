// Package http provides HTTP handlers and middleware for access control and
// principal management.
package http

import (
	"context"

	accessDomain "github.com/aknoru/lacbot-security/internal/access/domain"
)

// principalKey is a context key type for storing resolved principals.
type principalKey struct{}

// WithPrincipal stores a resolved principal in the context.
// This is typically called by the principal middleware after header resolution.
func WithPrincipal(ctx context.Context, principal *accessDomain.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, principal)
}

// GetPrincipal retrieves the resolved principal from the context.
// Returns (principal, true) if one is present, or (nil, false) for anonymous
// requests.
func GetPrincipal(ctx context.Context) (*accessDomain.Principal, bool) {
	principal, ok := ctx.Value(principalKey{}).(*accessDomain.Principal)
	return principal, ok
}
