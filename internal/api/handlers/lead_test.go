package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/clariohq/clario/internal/domain/lead"
	"github.com/clariohq/clario/internal/domain/widget"
	"github.com/clariohq/clario/internal/infra/eventbus"
	"github.com/clariohq/clario/pkg/uuid"
)

type leadFixture struct {
	handler  *LeadHandler
	db       *sql.DB
	tenantID string
	widgetID string
}

func newLeadFixture(t *testing.T) *leadFixture {
	t.Helper()
	db := mustOpenDB(t)
	tenantID := seedTenant(t, db)

	w, err := widget.NewService(db).Create(context.Background(), widget.CreateInput{
		TenantID: tenantID,
		Name:     "Lead Widget",
	})
	if err != nil {
		t.Fatalf("creating widget: %v", err)
	}

	return &leadFixture{
		handler:  NewLeadHandler(lead.NewService(db, eventbus.New(), noplog)),
		db:       db,
		tenantID: tenantID,
		widgetID: w.ID,
	}
}

// seedLead inserts a conversation plus a captured lead for the fixture widget.
func (f *leadFixture) seedLead(t *testing.T, email string) {
	t.Helper()
	now := time.Now().UTC().Format(time.RFC3339)
	convID := uuid.NewV7().String()
	if _, err := f.db.Exec(`
		INSERT INTO conversations (id, widget_id, visitor_id, started_at, last_message_at, lead_captured)
		VALUES (?, ?, ?, ?, ?, 1)
	`, convID, f.widgetID, "visitor-"+email, now, now); err != nil {
		t.Fatalf("seeding conversation: %v", err)
	}
	if _, err := f.db.Exec(`
		INSERT INTO leads (id, conversation_id, widget_id, email, source, created_at)
		VALUES (?, ?, ?, ?, 'chat_prompt', ?)
	`, uuid.NewV7().String(), convID, f.widgetID, email, now); err != nil {
		t.Fatalf("seeding lead: %v", err)
	}
}

func (f *leadFixture) list(t *testing.T, tenantID, widgetID string) *httptest.ResponseRecorder {
	t.Helper()
	url := "/api/v1/leads"
	if widgetID != "" {
		url += "?widgetId=" + widgetID
	}
	req := httptest.NewRequest(http.MethodGet, url, nil)
	req = req.WithContext(contextWithTenantID(req.Context(), tenantID))
	rr := httptest.NewRecorder()
	f.handler.ListLeads(rr, req)
	return rr
}

func decodeLeads(t *testing.T, rr *httptest.ResponseRecorder) []LeadResponse {
	t.Helper()
	var resp map[string][]LeadResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding leads response: %v", err)
	}
	return resp["leads"]
}

func TestLeadHandler_ListByTenant(t *testing.T) {
	t.Parallel()

	f := newLeadFixture(t)
	f.seedLead(t, "ada@example.com")
	f.seedLead(t, "grace@example.com")

	rr := f.list(t, f.tenantID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d — body: %s", rr.Code, rr.Body.String())
	}
	if leads := decodeLeads(t, rr); len(leads) != 2 {
		t.Errorf("leads = %d; want 2", len(leads))
	}
}

func TestLeadHandler_ListByWidget(t *testing.T) {
	t.Parallel()

	f := newLeadFixture(t)
	f.seedLead(t, "ada@example.com")

	rr := f.list(t, f.tenantID, f.widgetID)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	leads := decodeLeads(t, rr)
	if len(leads) != 1 {
		t.Fatalf("leads = %d; want 1", len(leads))
	}
	if leads[0].Email != "ada@example.com" {
		t.Errorf("email = %q; want %q", leads[0].Email, "ada@example.com")
	}
	if leads[0].WidgetID != f.widgetID {
		t.Errorf("widgetId = %q; want %q", leads[0].WidgetID, f.widgetID)
	}
}

func TestLeadHandler_ForeignTenantSeesNothing(t *testing.T) {
	t.Parallel()

	f := newLeadFixture(t)
	f.seedLead(t, "ada@example.com")

	rr := f.list(t, "other-tenant", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if leads := decodeLeads(t, rr); len(leads) != 0 {
		t.Errorf("foreign tenant sees %d leads; want 0", len(leads))
	}
}

func TestLeadHandler_NoTenantContext(t *testing.T) {
	t.Parallel()

	f := newLeadFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/leads", nil)
	rr := httptest.NewRecorder()
	f.handler.ListLeads(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d; want 401", rr.Code)
	}
}
