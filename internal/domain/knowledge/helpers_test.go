// Shared fixtures for the knowledge package tests: a migrated on-disk SQLite
// database per test and a deterministic stub embedding provider keyed by text.
package knowledge

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/clariohq/clario/internal/infra/llm"
	"github.com/clariohq/clario/internal/infra/sqlite"
	"github.com/clariohq/clario/pkg/uuid"
)

// errStubEmbedFailed simulates an unavailable embedding provider.
var errStubEmbedFailed = errors.New("stub embedding provider unavailable")

// stubProvider implements llm.Provider with canned vectors per input text.
// Texts with no canned vector get defaultVec; a nil defaultVec means the
// lookup must hit, so tests fail loudly on unexpected inputs.
type stubProvider struct {
	vectors    map[string][]float32
	defaultVec []float32
	embedErr   error
	chatReply  string
	chatErr    error
}

func (p *stubProvider) Embed(_ context.Context, req llm.EmbedRequest) (*llm.EmbedResponse, error) {
	if p.embedErr != nil {
		return nil, p.embedErr
	}
	out := make([][]float32, len(req.Texts))
	for i, text := range req.Texts {
		vec, ok := p.vectors[text]
		if !ok {
			vec = p.defaultVec
		}
		out[i] = vec
	}
	return &llm.EmbedResponse{Embeddings: out}, nil
}

func (p *stubProvider) ChatCompletion(_ context.Context, _ llm.ChatRequest) (*llm.ChatResponse, error) {
	if p.chatErr != nil {
		return nil, p.chatErr
	}
	return &llm.ChatResponse{Content: p.chatReply, StopReason: "stop"}, nil
}

func (p *stubProvider) ModelInfo() llm.ModelMeta {
	return llm.ModelMeta{ID: "stub", Provider: "stub"}
}

func (p *stubProvider) HealthCheck(_ context.Context) error { return nil }

// mustOpenDB opens a fresh migrated database under t.TempDir().
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

// seedTenant inserts a tenant row and returns its ID.
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

// mustUpsert upserts a chunk or fails the test.
func mustUpsert(t *testing.T, store *Store, input UpsertChunkInput) {
	t.Helper()
	if err := store.UpsertChunk(context.Background(), input); err != nil {
		t.Fatalf("UpsertChunk(%q): %v", input.Content, err)
	}
}

// countChunks returns the number of chunk rows for the tenant.
func countChunks(t *testing.T, db *sql.DB, tenantID string) int {
	t.Helper()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM knowledge_chunks WHERE tenant_id = ?`,
		tenantID).Scan(&n); err != nil {
		t.Fatalf("count chunks: %v", err)
	}
	return n
}

func noplog() zerolog.Logger { return zerolog.Nop() }
