// HTTP handlers for widget CRUD. All routes are tenant-scoped via the JWT
// claims injected by AuthMiddleware; the widget key in the response is what
// the embed script uses against the public chat endpoint.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clariohq/clario/internal/domain/widget"
)

// WidgetHandler handles widget HTTP requests.
type WidgetHandler struct {
	widgetService *widget.Service
}

// NewWidgetHandler creates a WidgetHandler.
func NewWidgetHandler(svc *widget.Service) *WidgetHandler {
	return &WidgetHandler{widgetService: svc}
}

// CreateWidgetRequest is the request body for POST /api/v1/widgets.
type CreateWidgetRequest struct {
	Name           string   `json:"name"`
	Products       []string `json:"products,omitempty"`
	Language       string   `json:"language,omitempty"`
	Instructions   string   `json:"instructions,omitempty"`
	NudgeThreshold int      `json:"nudgeThreshold,omitempty"`
}

// UpdateWidgetRequest is the request body for PUT /api/v1/widgets/{id}.
type UpdateWidgetRequest struct {
	Name           string   `json:"name"`
	Products       []string `json:"products,omitempty"`
	Language       string   `json:"language,omitempty"`
	Instructions   string   `json:"instructions,omitempty"`
	NudgeThreshold int      `json:"nudgeThreshold,omitempty"`
}

// WidgetResponse is the JSON shape of one widget.
type WidgetResponse struct {
	ID             string   `json:"id"`
	WidgetKey      string   `json:"widgetKey"`
	Name           string   `json:"name"`
	Products       []string `json:"products"`
	Language       string   `json:"language,omitempty"`
	Instructions   string   `json:"instructions,omitempty"`
	NudgeThreshold int      `json:"nudgeThreshold"`
	CreatedAt      string   `json:"createdAt"`
	UpdatedAt      string   `json:"updatedAt"`
}

func toWidgetResponse(w *widget.Widget) WidgetResponse {
	return WidgetResponse{
		ID:             w.ID,
		WidgetKey:      w.WidgetKey,
		Name:           w.Name,
		Products:       w.Products,
		Language:       w.Language,
		Instructions:   w.Instructions,
		NudgeThreshold: w.NudgeThreshold,
		CreatedAt:      w.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      w.UpdatedAt.Format(time.RFC3339),
	}
}

// CreateWidget handles POST /api/v1/widgets.
func (h *WidgetHandler) CreateWidget(w http.ResponseWriter, r *http.Request) {
	tenantID, err := getTenantID(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, errMissingTenantContext)
		return
	}

	var req CreateWidgetRequest
	if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
		writeError(w, http.StatusBadRequest, errInvalidBody)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	created, createErr := h.widgetService.Create(r.Context(), widget.CreateInput{
		TenantID:       tenantID,
		Name:           req.Name,
		Products:       req.Products,
		Language:       req.Language,
		Instructions:   req.Instructions,
		NudgeThreshold: req.NudgeThreshold,
	})
	if createErr != nil {
		writeError(w, http.StatusInternalServerError, "failed to create widget")
		return
	}

	writeJSON(w, http.StatusCreated, toWidgetResponse(created))
}

// ListWidgets handles GET /api/v1/widgets.
func (h *WidgetHandler) ListWidgets(w http.ResponseWriter, r *http.Request) {
	tenantID, err := getTenantID(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, errMissingTenantContext)
		return
	}

	widgets, listErr := h.widgetService.List(r.Context(), tenantID)
	if listErr != nil {
		writeError(w, http.StatusInternalServerError, "failed to list widgets")
		return
	}

	items := make([]WidgetResponse, len(widgets))
	for i := range widgets {
		items[i] = toWidgetResponse(&widgets[i])
	}
	writeJSON(w, http.StatusOK, map[string][]WidgetResponse{"widgets": items})
}

// GetWidget handles GET /api/v1/widgets/{id}.
func (h *WidgetHandler) GetWidget(w http.ResponseWriter, r *http.Request) {
	tenantID, err := getTenantID(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, errMissingTenantContext)
		return
	}

	found, getErr := h.widgetService.Get(r.Context(), tenantID, chi.URLParam(r, "id"))
	if getErr != nil {
		if errors.Is(getErr, widget.ErrNotFound) {
			writeError(w, http.StatusNotFound, "widget not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get widget")
		return
	}

	writeJSON(w, http.StatusOK, toWidgetResponse(found))
}

// UpdateWidget handles PUT /api/v1/widgets/{id}.
func (h *WidgetHandler) UpdateWidget(w http.ResponseWriter, r *http.Request) {
	tenantID, err := getTenantID(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, errMissingTenantContext)
		return
	}

	var req UpdateWidgetRequest
	if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
		writeError(w, http.StatusBadRequest, errInvalidBody)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	updated, updateErr := h.widgetService.Update(r.Context(), tenantID, chi.URLParam(r, "id"), widget.UpdateInput{
		Name:           req.Name,
		Products:       req.Products,
		Language:       req.Language,
		Instructions:   req.Instructions,
		NudgeThreshold: req.NudgeThreshold,
	})
	if updateErr != nil {
		if errors.Is(updateErr, widget.ErrNotFound) {
			writeError(w, http.StatusNotFound, "widget not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update widget")
		return
	}

	writeJSON(w, http.StatusOK, toWidgetResponse(updated))
}

// DeleteWidget handles DELETE /api/v1/widgets/{id}.
func (h *WidgetHandler) DeleteWidget(w http.ResponseWriter, r *http.Request) {
	tenantID, err := getTenantID(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, errMissingTenantContext)
		return
	}

	if delErr := h.widgetService.Delete(r.Context(), tenantID, chi.URLParam(r, "id")); delErr != nil {
		if errors.Is(delErr, widget.ErrNotFound) {
			writeError(w, http.StatusNotFound, "widget not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete widget")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
