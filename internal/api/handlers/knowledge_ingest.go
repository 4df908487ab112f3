// HTTP handler for knowledge ingestion.
// POST /api/v1/knowledge/ingest accepts a single submission or a batch.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/clariohq/clario/internal/domain/knowledge"
)

// KnowledgeIngestHandler handles knowledge ingestion HTTP requests.
type KnowledgeIngestHandler struct {
	ingestService *knowledge.IngestService
}

// NewKnowledgeIngestHandler creates a KnowledgeIngestHandler.
func NewKnowledgeIngestHandler(svc *knowledge.IngestService) *KnowledgeIngestHandler {
	return &KnowledgeIngestHandler{ingestService: svc}
}

// ingestItem is one knowledge submission.
type ingestItem struct {
	Content     string   `json:"content"`
	Products    []string `json:"products,omitempty"`
	Language    string   `json:"language,omitempty"`
	SourceTitle string   `json:"sourceTitle,omitempty"`
	SourceURL   string   `json:"sourceUrl,omitempty"`
}

// ingestRequest is the JSON request body for POST /api/v1/knowledge/ingest.
// Either the top-level fields carry one submission, or Items carries a batch.
type ingestRequest struct {
	ingestItem
	Items []ingestItem `json:"items,omitempty"`
}

// ingestResponse reports how many chunks the submission produced.
type ingestResponse struct {
	Chunks int `json:"chunks"`
}

// Ingest handles POST /api/v1/knowledge/ingest.
func (h *KnowledgeIngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID, err := getTenantID(ctx)
	if err != nil {
		writeError(w, http.StatusUnauthorized, errMissingTenantContext)
		return
	}

	var req ingestRequest
	if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
		writeError(w, http.StatusBadRequest, errInvalidBody)
		return
	}

	inputs, valErr := buildIngestInputs(tenantID, req)
	if valErr != nil {
		writeError(w, http.StatusBadRequest, valErr.Error())
		return
	}

	chunks, ingestErr := h.ingestService.IngestBatch(ctx, inputs)
	if ingestErr != nil {
		writeError(w, http.StatusInternalServerError, "failed to ingest knowledge")
		return
	}

	writeJSON(w, http.StatusCreated, ingestResponse{Chunks: chunks})
}

// buildIngestInputs normalizes the single and batch request shapes into
// IngestInputs for the service.
func buildIngestInputs(tenantID string, req ingestRequest) ([]knowledge.IngestInput, error) {
	items := req.Items
	if len(items) == 0 {
		if req.Content == "" {
			return nil, errors.New("content is required")
		}
		items = []ingestItem{req.ingestItem}
	}

	inputs := make([]knowledge.IngestInput, 0, len(items))
	for _, item := range items {
		if item.Content == "" {
			return nil, errors.New("every item needs content")
		}
		inputs = append(inputs, knowledge.IngestInput{
			TenantID:    tenantID,
			Products:    item.Products,
			Language:    item.Language,
			Content:     item.Content,
			SourceTitle: item.SourceTitle,
			SourceURL:   item.SourceURL,
		})
	}
	return inputs, nil
}
