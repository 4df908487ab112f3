package lead

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/clariohq/clario/internal/infra/eventbus"
	"github.com/clariohq/clario/pkg/uuid"
)

// TopicLeadCaptured is published after a lead row is durably written.
const TopicLeadCaptured = "lead.captured"

// SourceChatPrompt tags leads captured from inbound chat messages.
const SourceChatPrompt = "chat_prompt"

// repeatLookupLimit bounds the informational existing-lead check.
const repeatLookupLimit = 5

// Lead is captured visitor contact information tied to one conversation.
type Lead struct {
	ID             string
	ConversationID string
	WidgetID       string
	Name           string
	Email          string
	Phone          string
	Source         string
	CreatedAt      time.Time
}

// CapturedEventPayload identifies a freshly captured lead.
type CapturedEventPayload struct {
	LeadID         string
	ConversationID string
	WidgetID       string
}

// CaptureInput carries one inbound message and its conversation state.
type CaptureInput struct {
	ConversationID string
	WidgetID       string
	LeadCaptured   bool // the conversation's current flag, read by the caller
	Message        string
}

// Service persists leads and serves dashboard reads.
type Service struct {
	db  *sql.DB
	bus eventbus.EventBus
	log zerolog.Logger
}

// NewService creates a lead Service.
func NewService(db *sql.DB, bus eventbus.EventBus, log zerolog.Logger) *Service {
	return &Service{db: db, bus: bus, log: log}
}

// Capture scans the message for contact information and records a lead for
// the conversation if one has not been captured yet. All storage failures are
// logged and swallowed: lead capture must never affect the chat response.
//
// Idempotency is layered: the lead_captured flag short-circuits the common
// case, and the unique index on leads(conversation_id) closes the race
// between two messages observing the flag as false. The loser's
// INSERT OR IGNORE affects zero rows and skips the flag update.
func (s *Service) Capture(ctx context.Context, input CaptureInput) {
	if input.LeadCaptured {
		return
	}
	contact := ExtractContact(input.Message)
	if contact.Empty() {
		return
	}
	if err := s.capture(ctx, input, contact); err != nil {
		s.log.Warn().Err(err).Str("conversation_id", input.ConversationID).
			Msg("lead capture failed, chat turn unaffected")
	}
}

func (s *Service) capture(ctx context.Context, input CaptureInput, contact ContactInfo) error {
	if contact.Email != "" {
		s.logRepeatContact(ctx, input.WidgetID, contact.Email)
	}

	leadID := uuid.NewV7().String()
	now := time.Now().UTC().Format(time.RFC3339)

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO leads
			(id, conversation_id, widget_id, name, email, phone, source, created_at)
		VALUES (?, ?, ?, NULL, ?, ?, ?, ?)
	`, leadID, input.ConversationID, input.WidgetID,
		nullableStr(contact.Email), nullableStr(contact.Phone), SourceChatPrompt, now)
	if err != nil {
		return fmt.Errorf("lead: inserting: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("lead: checking insert: %w", err)
	}
	if inserted == 0 {
		// another message won the race; nothing to do
		return nil
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET lead_captured = 1 WHERE id = ?`,
		input.ConversationID); err != nil {
		return fmt.Errorf("lead: flipping conversation flag: %w", err)
	}

	s.bus.Publish(TopicLeadCaptured, CapturedEventPayload{
		LeadID:         leadID,
		ConversationID: input.ConversationID,
		WidgetID:       input.WidgetID,
	})
	s.log.Info().Str("lead_id", leadID).Str("conversation_id", input.ConversationID).
		Msg("lead captured")
	return nil
}

// logRepeatContact checks whether this email already appears in leads of the
// same widget. The lookup is informational only: a visitor who contacted a
// different conversation is still a new lead for this one.
func (s *Service) logRepeatContact(ctx context.Context, widgetID, email string) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM leads WHERE widget_id = ? AND email = ? LIMIT ?
	`, widgetID, email, repeatLookupLimit)
	if err != nil {
		return
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		count++
	}
	if count > 0 {
		s.log.Info().Str("widget_id", widgetID).Int("prior_leads", count).
			Msg("repeat contact detected")
	}
}

// ListByWidget returns the widget's leads for the dashboard, newest first.
// The join on widgets enforces the tenant scope.
func (s *Service) ListByWidget(ctx context.Context, tenantID, widgetID string) ([]Lead, error) {
	return s.list(ctx, `
		SELECT l.id, l.conversation_id, l.widget_id, l.name, l.email, l.phone, l.source, l.created_at
		FROM leads l
		JOIN widgets w ON w.id = l.widget_id
		WHERE w.tenant_id = ? AND l.widget_id = ?
		ORDER BY l.created_at DESC, l.id DESC
	`, tenantID, widgetID)
}

// ListByTenant returns all leads across the tenant's widgets, newest first.
func (s *Service) ListByTenant(ctx context.Context, tenantID string) ([]Lead, error) {
	return s.list(ctx, `
		SELECT l.id, l.conversation_id, l.widget_id, l.name, l.email, l.phone, l.source, l.created_at
		FROM leads l
		JOIN widgets w ON w.id = l.widget_id
		WHERE w.tenant_id = ?
		ORDER BY l.created_at DESC, l.id DESC
	`, tenantID)
}

func (s *Service) list(ctx context.Context, query string, args ...any) ([]Lead, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("lead: listing: %w", err)
	}
	defer rows.Close()

	var leads []Lead
	for rows.Next() {
		var (
			l                  Lead
			name, email, phone sql.NullString
			createdAtRaw       string
		)
		if err := rows.Scan(&l.ID, &l.ConversationID, &l.WidgetID,
			&name, &email, &phone, &l.Source, &createdAtRaw); err != nil {
			return nil, fmt.Errorf("lead: scanning: %w", err)
		}
		l.Name = name.String
		l.Email = email.String
		l.Phone = phone.String
		l.CreatedAt, _ = time.Parse(time.RFC3339, createdAtRaw)
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

func nullableStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
