package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
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

// seedWidget creates a tenant and a widget row, returning both IDs.
func seedWidget(t *testing.T, db *sql.DB) (tenantID, widgetID string) {
	t.Helper()
	now := time.Now().UTC().Format(time.RFC3339)
	tenantID = uuid.NewV7().String()
	if _, err := db.Exec(`INSERT INTO tenants (id, name, created_at) VALUES (?, ?, ?)`,
		tenantID, "Acme", now); err != nil {
		t.Fatalf("insert tenant: %v", err)
	}
	widgetID = uuid.NewV7().String()
	if _, err := db.Exec(`
		INSERT INTO widgets (id, tenant_id, widget_key, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		widgetID, tenantID, uuid.NewV7().String(), "Support", now, now); err != nil {
		t.Fatalf("insert widget: %v", err)
	}
	return tenantID, widgetID
}

func TestCreateAndGetForWidget(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	_, widgetID := seedWidget(t, db)
	store := NewConversationStore(db)

	created, err := store.Create(context.Background(), widgetID, "visitor-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.LeadCaptured {
		t.Error("new conversation must start with lead_captured=false")
	}

	got, err := store.GetForWidget(context.Background(), widgetID, created.ID)
	if err != nil {
		t.Fatalf("GetForWidget: %v", err)
	}
	if got.VisitorID != "visitor-1" {
		t.Errorf("visitor = %q, want visitor-1", got.VisitorID)
	}
}

func TestGetForWidget_WrongWidgetIsNotFound(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	_, widgetA := seedWidget(t, db)
	_, widgetB := seedWidget(t, db)
	store := NewConversationStore(db)

	created, err := store.Create(context.Background(), widgetA, "visitor-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := store.GetForWidget(context.Background(), widgetB, created.ID); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("err = %v, want ErrConversationNotFound", err)
	}
}

func TestHistory_ChronologicalWithIDTiebreak(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	_, widgetID := seedWidget(t, db)
	store := NewConversationStore(db)

	conv, err := store.Create(context.Background(), widgetID, "visitor-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// messages land within the same second; the UUIDv7 IDs keep order
	for i := 0; i < 6; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		if _, err := store.AppendMessage(context.Background(), conv.ID, role, fmt.Sprintf("msg %d", i)); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}

	history, err := store.History(context.Background(), conv.ID, 4)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("history = %d messages, want 4", len(history))
	}
	for i, want := range []string{"msg 2", "msg 3", "msg 4", "msg 5"} {
		if history[i].Content != want {
			t.Errorf("history[%d] = %q, want %q", i, history[i].Content, want)
		}
	}
}

func TestCountUserMessages(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	_, widgetID := seedWidget(t, db)
	store := NewConversationStore(db)

	conv, err := store.Create(context.Background(), widgetID, "visitor-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := store.AppendMessage(context.Background(), conv.ID, RoleUser, "hi"); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}
	if _, err := store.AppendMessage(context.Background(), conv.ID, RoleAssistant, "hello"); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	count, err := store.CountUserMessages(context.Background(), conv.ID)
	if err != nil {
		t.Fatalf("CountUserMessages: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3 (assistant messages excluded)", count)
	}
}

func TestTouchLastMessage(t *testing.T) {
	t.Parallel()

	db := mustOpenDB(t)
	_, widgetID := seedWidget(t, db)
	store := NewConversationStore(db)

	conv, err := store.Create(context.Background(), widgetID, "visitor-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// backdate, then touch
	if _, err := db.Exec(`UPDATE conversations SET last_message_at = ? WHERE id = ?`,
		time.Now().UTC().Add(-time.Hour).Format(time.RFC3339), conv.ID); err != nil {
		t.Fatalf("backdate: %v", err)
	}
	if err := store.TouchLastMessage(context.Background(), conv.ID); err != nil {
		t.Fatalf("TouchLastMessage: %v", err)
	}

	got, err := store.GetForWidget(context.Background(), widgetID, conv.ID)
	if err != nil {
		t.Fatalf("GetForWidget: %v", err)
	}
	if time.Since(got.LastMessageAt) > time.Minute {
		t.Errorf("last_message_at = %v, want recent", got.LastMessageAt)
	}
}
