// Package widget manages embeddable chat-widget configurations. A widget
// belongs to one tenant and scopes the knowledge search (products, language)
// and prompt behavior (instructions, nudge threshold) of its conversations.
package widget

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clariohq/clario/pkg/uuid"
)

// ErrNotFound is returned when a widget does not exist or belongs to another
// tenant. The two cases are deliberately indistinguishable to callers.
var ErrNotFound = errors.New("widget: not found")

// DefaultNudgeThreshold is the number of visitor messages after which the
// assistant starts asking for contact information.
const DefaultNudgeThreshold = 4

// Widget is one embeddable chat instance.
type Widget struct {
	ID             string
	TenantID       string
	WidgetKey      string // public key used by the embed script
	Name           string
	Products       []string
	Language       string
	Instructions   string // tenant-specific system prompt preamble
	NudgeThreshold int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CreateInput carries the fields for a new widget.
type CreateInput struct {
	TenantID       string
	Name           string
	Products       []string
	Language       string
	Instructions   string
	NudgeThreshold int // 0 → DefaultNudgeThreshold
}

// UpdateInput carries the mutable widget fields.
type UpdateInput struct {
	Name           string
	Products       []string
	Language       string
	Instructions   string
	NudgeThreshold int
}

// Service provides widget CRUD and public key resolution.
type Service struct {
	db *sql.DB
}

// NewService creates a widget Service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Create inserts a new widget and returns it with a freshly generated key.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Widget, error) {
	if input.TenantID == "" {
		return nil, errors.New("widget: tenant id is required")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errors.New("widget: name is required")
	}
	threshold := input.NudgeThreshold
	if threshold <= 0 {
		threshold = DefaultNudgeThreshold
	}

	productsJSON, err := json.Marshal(emptyIfNil(input.Products))
	if err != nil {
		return nil, fmt.Errorf("widget: encoding products: %w", err)
	}

	now := time.Now().UTC()
	w := &Widget{
		ID:             uuid.NewV7().String(),
		TenantID:       input.TenantID,
		WidgetKey:      uuid.NewV7().String(),
		Name:           name,
		Products:       emptyIfNil(input.Products),
		Language:       input.Language,
		Instructions:   input.Instructions,
		NudgeThreshold: threshold,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO widgets
			(id, tenant_id, widget_key, name, products, language, instructions,
			 nudge_threshold, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, w.ID, w.TenantID, w.WidgetKey, w.Name, string(productsJSON),
		nullableStr(w.Language), w.Instructions, w.NudgeThreshold,
		now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("widget: creating: %w", err)
	}
	return w, nil
}

// Get returns a widget by ID, scoped to the tenant.
func (s *Service) Get(ctx context.Context, tenantID, id string) (*Widget, error) {
	return s.queryOne(ctx, `WHERE id = ? AND tenant_id = ?`, id, tenantID)
}

// ResolveByKey returns the widget for a public widget key. This is the only
// lookup path that is not tenant-scoped by the caller: the key itself picks
// the tenant, and the returned TenantID scopes everything downstream.
func (s *Service) ResolveByKey(ctx context.Context, widgetKey string) (*Widget, error) {
	return s.queryOne(ctx, `WHERE widget_key = ?`, widgetKey)
}

// List returns all widgets of the tenant, newest first.
func (s *Service) List(ctx context.Context, tenantID string) ([]Widget, error) {
	rows, err := s.db.QueryContext(ctx, selectWidget+`
		WHERE tenant_id = ? ORDER BY created_at DESC, id DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("widget: listing: %w", err)
	}
	defer rows.Close()

	var widgets []Widget
	for rows.Next() {
		w, scanErr := scanWidget(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		widgets = append(widgets, *w)
	}
	return widgets, rows.Err()
}

// Update replaces the mutable fields of a widget. Returns ErrNotFound when
// the widget does not exist for the tenant.
func (s *Service) Update(ctx context.Context, tenantID, id string, input UpdateInput) (*Widget, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errors.New("widget: name is required")
	}
	threshold := input.NudgeThreshold
	if threshold <= 0 {
		threshold = DefaultNudgeThreshold
	}
	productsJSON, err := json.Marshal(emptyIfNil(input.Products))
	if err != nil {
		return nil, fmt.Errorf("widget: encoding products: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE widgets
		SET name = ?, products = ?, language = ?, instructions = ?,
		    nudge_threshold = ?, updated_at = ?
		WHERE id = ? AND tenant_id = ?
	`, name, string(productsJSON), nullableStr(input.Language), input.Instructions,
		threshold, time.Now().UTC().Format(time.RFC3339), id, tenantID)
	if err != nil {
		return nil, fmt.Errorf("widget: updating: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, tenantID, id)
}

// Delete removes a widget. Returns ErrNotFound when nothing was deleted.
func (s *Service) Delete(ctx context.Context, tenantID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM widgets WHERE id = ? AND tenant_id = ?`, id, tenantID)
	if err != nil {
		return fmt.Errorf("widget: deleting: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const selectWidget = `
	SELECT id, tenant_id, widget_key, name, products, language, instructions,
	       nudge_threshold, created_at, updated_at
	FROM widgets`

func (s *Service) queryOne(ctx context.Context, where string, args ...any) (*Widget, error) {
	rows, err := s.db.QueryContext(ctx, selectWidget+" "+where, args...)
	if err != nil {
		return nil, fmt.Errorf("widget: querying: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("widget: querying: %w", err)
		}
		return nil, ErrNotFound
	}
	return scanWidget(rows)
}

func scanWidget(rows *sql.Rows) (*Widget, error) {
	var (
		w                          Widget
		productsJSON               string
		language                   sql.NullString
		createdAtRaw, updatedAtRaw string
	)
	if err := rows.Scan(&w.ID, &w.TenantID, &w.WidgetKey, &w.Name, &productsJSON,
		&language, &w.Instructions, &w.NudgeThreshold, &createdAtRaw, &updatedAtRaw); err != nil {
		return nil, fmt.Errorf("widget: scanning: %w", err)
	}
	if err := json.Unmarshal([]byte(productsJSON), &w.Products); err != nil {
		w.Products = []string{}
	}
	w.Language = language.String
	w.CreatedAt, _ = time.Parse(time.RFC3339, createdAtRaw)
	w.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAtRaw)
	return &w, nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nullableStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
