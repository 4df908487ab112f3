// HTTP handler for knowledge search.
// POST /api/v1/knowledge/search runs tenant-scoped retrieval over the
// knowledge base and returns ranked results.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/clariohq/clario/internal/domain/knowledge"
)

// KnowledgeSearchHandler handles knowledge search HTTP requests.
type KnowledgeSearchHandler struct {
	searchService *knowledge.SearchService
}

// NewKnowledgeSearchHandler creates a KnowledgeSearchHandler.
func NewKnowledgeSearchHandler(svc *knowledge.SearchService) *KnowledgeSearchHandler {
	return &KnowledgeSearchHandler{searchService: svc}
}

// searchRequest is the JSON request body for POST /api/v1/knowledge/search.
type searchRequest struct {
	Query         string   `json:"query"`
	Products      []string `json:"products,omitempty"`
	Languages     []string `json:"languages,omitempty"`
	MinSimilarity float64  `json:"minSimilarity,omitempty"`
	Limit         int      `json:"limit,omitempty"`
	BoostPricing  bool     `json:"boostPricing,omitempty"`
}

// searchResultItem is a single ranked result.
type searchResultItem struct {
	ID          string  `json:"id"`
	Content     string  `json:"content"`
	Similarity  float64 `json:"similarity"`
	SourceTitle string  `json:"sourceTitle"`
	SourceURL   string  `json:"sourceUrl,omitempty"`
}

// searchResponse is the JSON response body for POST /api/v1/knowledge/search.
type searchResponse struct {
	Results []searchResultItem `json:"results"`
	Query   string             `json:"query"`
}

// Search handles POST /api/v1/knowledge/search.
func (h *KnowledgeSearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID, err := getTenantID(ctx)
	if err != nil {
		writeError(w, http.StatusUnauthorized, errMissingTenantContext)
		return
	}

	var req searchRequest
	if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
		writeError(w, http.StatusBadRequest, errInvalidBody)
		return
	}

	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	results := h.searchService.Search(ctx, knowledge.SearchInput{
		Query:         req.Query,
		TenantID:      tenantID,
		Products:      req.Products,
		Languages:     req.Languages,
		MinSimilarity: req.MinSimilarity,
		Limit:         req.Limit,
		BoostPricing:  req.BoostPricing,
	})

	items := make([]searchResultItem, len(results))
	for i, res := range results {
		items[i] = searchResultItem{
			ID:          res.ID,
			Content:     res.Content,
			Similarity:  res.Similarity,
			SourceTitle: res.SourceTitle,
			SourceURL:   res.SourceURL,
		}
	}

	writeJSON(w, http.StatusOK, searchResponse{Results: items, Query: req.Query})
}
