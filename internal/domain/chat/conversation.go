// Package chat drives one AI chat turn: conversation/message persistence,
// rate limiting, knowledge retrieval, prompt assembly, the LLM call, and
// fire-and-forget lead capture.
package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/clariohq/clario/pkg/uuid"
)

// Message roles. The schema CHECK constraint mirrors these.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrConversationNotFound is returned when a conversation does not exist or
// belongs to a different widget.
var ErrConversationNotFound = errors.New("chat: conversation not found")

// Conversation is one visitor session on a widget. lead_captured is
// monotonic: once true it never reverts.
type Conversation struct {
	ID            string
	WidgetID      string
	VisitorID     string
	StartedAt     time.Time
	LastMessageAt time.Time
	LeadCaptured  bool
}

// Message is one turn half. Append-only; history ordering is by created_at
// with the time-sorted ID as tiebreak.
type Message struct {
	ID             string
	ConversationID string
	Role           string
	Content        string
	CreatedAt      time.Time
}

// ConversationStore persists conversations and their messages.
type ConversationStore struct {
	db *sql.DB
}

// NewConversationStore creates a ConversationStore.
func NewConversationStore(db *sql.DB) *ConversationStore {
	return &ConversationStore{db: db}
}

// Create starts a new conversation for a visitor on a widget.
func (s *ConversationStore) Create(ctx context.Context, widgetID, visitorID string) (*Conversation, error) {
	now := time.Now().UTC()
	c := &Conversation{
		ID:            uuid.NewV7().String(),
		WidgetID:      widgetID,
		VisitorID:     visitorID,
		StartedAt:     now,
		LastMessageAt: now,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, widget_id, visitor_id, started_at, last_message_at)
		VALUES (?, ?, ?, ?, ?)
	`, c.ID, widgetID, visitorID, now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("chat: creating conversation: %w", err)
	}
	return c, nil
}

// GetForWidget returns a conversation only when it belongs to the widget.
// An existing conversation of another widget is indistinguishable from a
// missing one.
func (s *ConversationStore) GetForWidget(ctx context.Context, widgetID, id string) (*Conversation, error) {
	var (
		c                          Conversation
		startedRaw, lastMessageRaw string
		leadCaptured               int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, widget_id, visitor_id, started_at, last_message_at, lead_captured
		FROM conversations
		WHERE id = ? AND widget_id = ?
	`, id, widgetID).Scan(&c.ID, &c.WidgetID, &c.VisitorID, &startedRaw, &lastMessageRaw, &leadCaptured)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("chat: loading conversation: %w", err)
	}
	c.StartedAt, _ = time.Parse(time.RFC3339, startedRaw)
	c.LastMessageAt, _ = time.Parse(time.RFC3339, lastMessageRaw)
	c.LeadCaptured = leadCaptured != 0
	return &c, nil
}

// AppendMessage persists one message and returns it.
func (s *ConversationStore) AppendMessage(ctx context.Context, conversationID, role, content string) (*Message, error) {
	now := time.Now().UTC()
	m := &Message{
		ID:             uuid.NewV7().String(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      now,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, m.ID, conversationID, role, content, now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("chat: appending message: %w", err)
	}
	return m, nil
}

// History returns the conversation's most recent limit messages in
// chronological order. Second-resolution timestamps collide under load, so
// the time-sorted message ID breaks ties deterministically.
func (s *ConversationStore) History(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, created_at
		FROM (
			SELECT id, conversation_id, role, content, created_at
			FROM messages
			WHERE conversation_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		)
		ORDER BY created_at, id
	`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("chat: loading history: %w", err)
	}
	defer rows.Close()

	var history []Message
	for rows.Next() {
		var (
			m            Message
			createdAtRaw string
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &createdAtRaw); err != nil {
			return nil, fmt.Errorf("chat: scanning message: %w", err)
		}
		m.CreatedAt, _ = time.Parse(time.RFC3339, createdAtRaw)
		history = append(history, m)
	}
	return history, rows.Err()
}

// CountUserMessages returns how many visitor messages the conversation holds.
// Drives the contact-info nudge threshold.
func (s *ConversationStore) CountUserMessages(ctx context.Context, conversationID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages WHERE conversation_id = ? AND role = 'user'
	`, conversationID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("chat: counting user messages: %w", err)
	}
	return n, nil
}

// TouchLastMessage bumps the conversation's last_message_at to now.
func (s *ConversationStore) TouchLastMessage(ctx context.Context, conversationID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET last_message_at = ? WHERE id = ?
	`, time.Now().UTC().Format(time.RFC3339), conversationID)
	if err != nil {
		return fmt.Errorf("chat: touching conversation: %w", err)
	}
	return nil
}
