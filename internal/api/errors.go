package api

import "errors"

var (
	// ErrMissingTenantID is returned when tenant_id is missing from context.
	ErrMissingTenantID = errors.New("missing tenant_id in context")
)
