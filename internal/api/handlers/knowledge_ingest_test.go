package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/clariohq/clario/internal/domain/knowledge"
	"github.com/clariohq/clario/internal/infra/eventbus"
)

func newIngestHandler(t *testing.T) (*KnowledgeIngestHandler, string) {
	t.Helper()
	db := mustOpenDB(t)
	tenantID := seedTenant(t, db)

	provider := &stubProvider{defaultVec: []float32{1, 0}}
	store := knowledge.NewStore(db, provider, noplog)
	svc := knowledge.NewIngestService(store, eventbus.New(), noplog)
	return NewKnowledgeIngestHandler(svc), tenantID
}

func postIngest(t *testing.T, h *KnowledgeIngestHandler, tenantID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshaling request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/knowledge/ingest", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if tenantID != "" {
		req = req.WithContext(contextWithTenantID(req.Context(), tenantID))
	}
	rr := httptest.NewRecorder()
	h.Ingest(rr, req)
	return rr
}

func TestKnowledgeIngestHandler_Single(t *testing.T) {
	t.Parallel()

	h, tenantID := newIngestHandler(t)
	rr := postIngest(t, h, tenantID, map[string]any{
		"content":     "Clario starts at $49 per month on the Starter plan.",
		"sourceTitle": "Pricing",
		"sourceUrl":   "/pricing",
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d; want 201 — body: %s", rr.Code, rr.Body.String())
	}

	var resp ingestResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Chunks < 1 {
		t.Errorf("chunks = %d; want at least 1", resp.Chunks)
	}
}

func TestKnowledgeIngestHandler_Batch(t *testing.T) {
	t.Parallel()

	h, tenantID := newIngestHandler(t)
	rr := postIngest(t, h, tenantID, map[string]any{
		"items": []map[string]any{
			{"content": "Refunds are processed within 5 business days."},
			{"content": "The widget supports Spanish and English.", "language": "es"},
		},
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d; want 201 — body: %s", rr.Code, rr.Body.String())
	}

	var resp ingestResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Chunks < 2 {
		t.Errorf("chunks = %d; want at least 2", resp.Chunks)
	}
}

func TestKnowledgeIngestHandler_MissingContent(t *testing.T) {
	t.Parallel()

	h, tenantID := newIngestHandler(t)
	if rr := postIngest(t, h, tenantID, map[string]any{"sourceTitle": "Empty"}); rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d; want 400", rr.Code)
	}
}

func TestKnowledgeIngestHandler_BatchItemWithoutContent(t *testing.T) {
	t.Parallel()

	h, tenantID := newIngestHandler(t)
	rr := postIngest(t, h, tenantID, map[string]any{
		"items": []map[string]any{
			{"content": "fine"},
			{"sourceTitle": "missing content"},
		},
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d; want 400", rr.Code)
	}
}

func TestKnowledgeIngestHandler_NoTenantContext(t *testing.T) {
	t.Parallel()

	h, _ := newIngestHandler(t)
	if rr := postIngest(t, h, "", map[string]any{"content": "text"}); rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d; want 401", rr.Code)
	}
}
