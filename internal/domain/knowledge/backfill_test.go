package knowledge

import (
	"context"
	"database/sql"
	"testing"

	"github.com/clariohq/clario/internal/infra/eventbus"
)

// countUnembedded returns how many of the tenant's chunks still lack vectors.
func countUnembedded(t *testing.T, db *sql.DB, tenantID string) int {
	t.Helper()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM knowledge_chunks WHERE tenant_id = ? AND embedding IS NULL`,
		tenantID).Scan(&n); err != nil {
		t.Fatalf("count unembedded: %v", err)
	}
	return n
}

func TestBackfill_EmbedsPendingChunks(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	tenantID := seedTenant(t, db, "Acme")

	// ingest while the provider is down: chunks land without vectors
	downStore := NewStore(db, &stubProvider{embedErr: errStubEmbedFailed}, noplog())
	mustUpsert(t, downStore, UpsertChunkInput{TenantID: tenantID, Content: "first pending chunk"})
	mustUpsert(t, downStore, UpsertChunkInput{TenantID: tenantID, Content: "second pending chunk"})

	if got := countUnembedded(t, db, tenantID); got != 2 {
		t.Fatalf("unembedded = %d, want 2", got)
	}

	// provider recovers; backfill embeds everything
	provider := &stubProvider{defaultVec: unitVec(1, 0)}
	store := NewStore(db, provider, noplog())
	svc := NewBackfillService(store, provider, eventbus.New(), noplog())

	n, err := svc.Backfill(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("Backfill: %v", err)
	}
	if n != 2 {
		t.Errorf("embedded = %d, want 2", n)
	}
	if got := countUnembedded(t, db, tenantID); got != 0 {
		t.Errorf("unembedded after backfill = %d, want 0", got)
	}
}

func TestBackfill_NeverReembedsExistingVectors(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	tenantID := seedTenant(t, db, "Acme")

	provider := &stubProvider{defaultVec: unitVec(1, 0)}
	store := NewStore(db, provider, noplog())
	mustUpsert(t, store, UpsertChunkInput{TenantID: tenantID, Content: "already embedded"})

	svc := NewBackfillService(store, provider, eventbus.New(), noplog())
	n, err := svc.Backfill(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("Backfill: %v", err)
	}
	if n != 0 {
		t.Errorf("embedded = %d, want 0 (vectors already present)", n)
	}
}

func TestBackfill_StopsOnProviderFailure(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	tenantID := seedTenant(t, db, "Acme")

	downProvider := &stubProvider{embedErr: errStubEmbedFailed}
	store := NewStore(db, downProvider, noplog())
	mustUpsert(t, store, UpsertChunkInput{TenantID: tenantID, Content: "stuck pending"})

	svc := NewBackfillService(store, downProvider, eventbus.New(), noplog())
	if _, err := svc.Backfill(context.Background(), tenantID); err == nil {
		t.Error("expected error when the provider stays down")
	}
	if got := countUnembedded(t, db, tenantID); got != 1 {
		t.Errorf("unembedded = %d, want 1 (chunk stays pending for the next run)", got)
	}
}
