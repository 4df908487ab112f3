package widget

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/clariohq/clario/internal/infra/sqlite"
	"github.com/clariohq/clario/pkg/uuid"
)

func mustOpenDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sqlite.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}
	return db
}

func seedTenant(t *testing.T, db *sql.DB, name string) string {
	t.Helper()
	id := uuid.NewV7().String()
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := db.Exec(`INSERT INTO tenants (id, name, created_at) VALUES (?, ?, ?)`,
		id, name, now); err != nil {
		t.Fatalf("insert tenant: %v", err)
	}
	return id
}

func TestCreateAndGet(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	tenantID := seedTenant(t, db, "Acme")
	svc := NewService(db)

	created, err := svc.Create(context.Background(), CreateInput{
		TenantID: tenantID,
		Name:     "Support Widget",
		Products: []string{"crm"},
		Language: "en",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.WidgetKey == "" {
		t.Error("widget key must be generated")
	}
	if created.NudgeThreshold != DefaultNudgeThreshold {
		t.Errorf("nudge threshold = %d, want default %d", created.NudgeThreshold, DefaultNudgeThreshold)
	}

	got, err := svc.Get(context.Background(), tenantID, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "Support Widget" || got.Language != "en" {
		t.Errorf("got %+v, want name and language round-tripped", got)
	}
	if len(got.Products) != 1 || got.Products[0] != "crm" {
		t.Errorf("products = %v, want [crm]", got.Products)
	}
}

func TestGet_CrossTenantIsNotFound(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	tenantA := seedTenant(t, db, "A")
	tenantB := seedTenant(t, db, "B")
	svc := NewService(db)

	created, err := svc.Create(context.Background(), CreateInput{TenantID: tenantA, Name: "A's widget"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.Get(context.Background(), tenantB, created.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-tenant Get: err = %v, want ErrNotFound", err)
	}
}

func TestResolveByKey(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	tenantID := seedTenant(t, db, "Acme")
	svc := NewService(db)

	created, err := svc.Create(context.Background(), CreateInput{TenantID: tenantID, Name: "Docs"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := svc.ResolveByKey(context.Background(), created.WidgetKey)
	if err != nil {
		t.Fatalf("ResolveByKey: %v", err)
	}
	if got.ID != created.ID || got.TenantID != tenantID {
		t.Errorf("resolved %+v, want id %s of tenant %s", got, created.ID, tenantID)
	}

	if _, err := svc.ResolveByKey(context.Background(), "no-such-key"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown key: err = %v, want ErrNotFound", err)
	}
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	tenantID := seedTenant(t, db, "Acme")
	svc := NewService(db)

	created, err := svc.Create(context.Background(), CreateInput{TenantID: tenantID, Name: "Old"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated, err := svc.Update(context.Background(), tenantID, created.ID, UpdateInput{
		Name:           "New",
		Instructions:   "Be friendly.",
		NudgeThreshold: 7,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Name != "New" || updated.Instructions != "Be friendly." || updated.NudgeThreshold != 7 {
		t.Errorf("updated = %+v", updated)
	}

	if _, err := svc.Update(context.Background(), tenantID, "missing", UpdateInput{Name: "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing widget: err = %v, want ErrNotFound", err)
	}
}

func TestDeleteAndList(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	tenantID := seedTenant(t, db, "Acme")
	svc := NewService(db)

	first, err := svc.Create(context.Background(), CreateInput{TenantID: tenantID, Name: "First"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Create(context.Background(), CreateInput{TenantID: tenantID, Name: "Second"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	widgets, err := svc.List(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(widgets) != 2 {
		t.Fatalf("widgets = %d, want 2", len(widgets))
	}

	if err := svc.Delete(context.Background(), tenantID, first.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.Delete(context.Background(), tenantID, first.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("double delete: err = %v, want ErrNotFound", err)
	}

	widgets, err = svc.List(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(widgets) != 1 || widgets[0].Name != "Second" {
		t.Errorf("widgets after delete = %+v, want only Second", widgets)
	}
}
