// Package ctxkeys holds the shared context keys for the API layer.
// It is a leaf package so middleware and handlers can share the exact
// key type without an import cycle.
package ctxkeys

import "context"

// Key is the named type for all API context keys. context.Value compares
// both type and value, so a named type cannot collide with plain string
// keys from other packages.
type Key string

const (
	// TenantID is the context key for the authenticated tenant.
	// Injected by AuthMiddleware from JWT claims, read by all dashboard handlers.
	TenantID Key = "tenant_id"

	// UserID is the context key for the authenticated user.
	UserID Key = "user_id"
)

// WithValue adds a ctxkeys.Key value to the context.
func WithValue(ctx context.Context, key Key, value string) context.Context {
	return context.WithValue(ctx, key, value)
}
