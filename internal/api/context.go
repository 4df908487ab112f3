// Shared context helpers for API middleware and route wiring.
package api

import (
	"context"

	"github.com/clariohq/clario/internal/api/ctxkeys"
)

// WithTenantID adds tenant_id to the request context.
// Uses ctxkeys.TenantID, the same key AuthMiddleware injects.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, ctxkeys.TenantID, tenantID)
}

// GetTenantID retrieves tenant_id from context.
func GetTenantID(ctx context.Context) (string, error) {
	tenantID, ok := ctx.Value(ctxkeys.TenantID).(string)
	if !ok || tenantID == "" {
		return "", ErrMissingTenantID
	}
	return tenantID, nil
}
