// Package notify handles asynchronous push notifications: durable
// notification records in PostgreSQL, per-user device token registration
// sets in Redis, and best-effort delivery through a pluggable provider.
package notify

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Notification types.
const (
	TypeMessage = "message"
)

// MaxBodyChars is the cap on notification body length; longer bodies are
// truncated with a trailing ellipsis.
const MaxBodyChars = 100

// Notification is one persisted notification record. The record is
// written before any delivery attempt; delivery itself is best-effort.
type Notification struct {
	ID        string
	UserID    string
	Type      string
	Title     string
	Body      string
	RelatedID string
	CreatedAt time.Time
}

// Job is the payload enqueued on the push-job queue for the notifier
// worker. The notification record it refers to has already been persisted.
type Job struct {
	NotificationID string `json:"notification_id"`
	UserID         string `json:"user_id"`
	Type           string `json:"type"`
	Title          string `json:"title"`
	Body           string `json:"body"`
	RelatedID      string `json:"related_id"`
}

// TruncateBody caps a notification body at MaxBodyChars characters,
// appending an ellipsis when it had to cut.
func TruncateBody(body string) string {
	runes := []rune(body)
	if len(runes) <= MaxBodyChars {
		return body
	}
	return string(runes[:MaxBodyChars]) + "…"
}

// Store manages notification records in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a notification store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a notification record.
func (s *Store) Create(ctx context.Context, n *Notification) error {
	const query = `
		INSERT INTO notifications (id, user_id, type, title, body, related_id)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.db.ExecContext(ctx, query, n.ID, n.UserID, n.Type, n.Title, n.Body, n.RelatedID)
	if err != nil {
		return fmt.Errorf("notify: insert: %w", err)
	}
	return nil
}

// ListByUser returns a user's most recent notifications, newest first.
func (s *Store) ListByUser(ctx context.Context, userID string, limit int) ([]Notification, error) {
	const query = `
		SELECT id, user_id, type, title, body, related_id, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("notify: list: %w", err)
	}
	defer rows.Close()

	var notifications []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Body, &n.RelatedID, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("notify: list scan: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notify: list rows: %w", err)
	}
	return notifications, nil
}
