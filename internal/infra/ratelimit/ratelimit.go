// Package ratelimit limits how many user messages a conversation may send
// within a sliding window.
//
// Two backends are provided:
//   - StoreLimiter counts committed user messages in the database. It is
//     correct across multiple server instances because the store is the
//     shared source of truth.
//   - RedisLimiter keeps a counter per conversation in Redis with a TTL.
//     Cheaper per check, at the cost of an external dependency.
package ratelimit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Limiter decides whether a conversation may send another message.
type Limiter interface {
	// Allow reports whether conversationID is under its message budget.
	Allow(ctx context.Context, conversationID string) (bool, error)
}

// StoreLimiter enforces the limit by counting user messages already
// committed to the messages table within the window.
type StoreLimiter struct {
	db     *sql.DB
	max    int
	window time.Duration
}

// NewStoreLimiter returns a Limiter backed by the messages table.
// max is the number of user messages allowed per window.
func NewStoreLimiter(db *sql.DB, max int, window time.Duration) *StoreLimiter {
	return &StoreLimiter{db: db, max: max, window: window}
}

// Allow counts user messages for the conversation newer than now-window.
// A conversation with max or more messages in the window is rejected; the
// check runs before the incoming message is persisted, so the budget is
// exactly max messages per window.
func (l *StoreLimiter) Allow(ctx context.Context, conversationID string) (bool, error) {
	cutoff := time.Now().UTC().Add(-l.window).Format(time.RFC3339)

	var count int
	err := l.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM messages
		WHERE conversation_id = ? AND role = 'user' AND created_at >= ?
	`, conversationID, cutoff).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("counting messages in window: %w", err)
	}

	return count < l.max, nil
}
