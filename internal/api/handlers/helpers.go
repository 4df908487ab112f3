// Package handlers translates HTTP requests into domain service calls and
// maps domain errors to response codes.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/clariohq/clario/internal/api/ctxkeys"
)

const (
	headerContentType = "Content-Type"
	mimeJSON          = "application/json"

	errInvalidBody          = "invalid request body"
	errMissingTenantContext = "missing tenant context"
)

// getTenantID retrieves tenant_id from context. Uses ctxkeys.TenantID, the
// same type and value AuthMiddleware injects.
func getTenantID(ctx context.Context) (string, error) {
	tenantID, ok := ctx.Value(ctxkeys.TenantID).(string)
	if !ok || tenantID == "" {
		return "", fmt.Errorf("tenant_id not found in context")
	}
	return tenantID, nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set(headerContentType, mimeJSON)
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

// writeError writes a JSON error response in the shared {"error": msg} shape.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
