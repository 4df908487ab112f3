// HTTP handler for dashboard lead reads.
// GET /api/v1/leads lists captured leads for the tenant, optionally
// filtered by widget.
package handlers

import (
	"net/http"
	"time"

	"github.com/clariohq/clario/internal/domain/lead"
)

// LeadHandler handles lead HTTP requests.
type LeadHandler struct {
	leadService *lead.Service
}

// NewLeadHandler creates a LeadHandler.
func NewLeadHandler(svc *lead.Service) *LeadHandler {
	return &LeadHandler{leadService: svc}
}

// LeadResponse is the JSON shape of one captured lead.
type LeadResponse struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversationId"`
	WidgetID       string `json:"widgetId"`
	Name           string `json:"name,omitempty"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Source         string `json:"source"`
	CreatedAt      string `json:"createdAt"`
}

// ListLeads handles GET /api/v1/leads?widgetId=.
// Without widgetId it returns every lead of the tenant; with widgetId it
// narrows to that widget. Widget ownership is enforced by the tenant join,
// so a foreign widgetId simply yields an empty list.
func (h *LeadHandler) ListLeads(w http.ResponseWriter, r *http.Request) {
	tenantID, err := getTenantID(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, errMissingTenantContext)
		return
	}

	var (
		leads   []lead.Lead
		listErr error
	)
	if widgetID := r.URL.Query().Get("widgetId"); widgetID != "" {
		leads, listErr = h.leadService.ListByWidget(r.Context(), tenantID, widgetID)
	} else {
		leads, listErr = h.leadService.ListByTenant(r.Context(), tenantID)
	}
	if listErr != nil {
		writeError(w, http.StatusInternalServerError, "failed to list leads")
		return
	}

	items := make([]LeadResponse, len(leads))
	for i, l := range leads {
		items[i] = LeadResponse{
			ID:             l.ID,
			ConversationID: l.ConversationID,
			WidgetID:       l.WidgetID,
			Name:           l.Name,
			Email:          l.Email,
			Phone:          l.Phone,
			Source:         l.Source,
			CreatedAt:      l.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, map[string][]LeadResponse{"leads": items})
}
