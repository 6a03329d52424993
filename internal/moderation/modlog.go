package moderation

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// LogEntry is one adjudicated violation or reset, appended to the
// moderation_log table. Entries are immutable once written and are read by
// administrative tooling for audit.
type LogEntry struct {
	UserID            string
	Action            Action
	Reason            string
	MessageExcerpt    string
	WarningCountAfter int
	CreatedAt         time.Time
}

// ExcerptLen is how much of the offending message body is kept in a log
// entry.
const ExcerptLen = 80

// Excerpt trims a message body for inclusion in a log entry.
func Excerpt(content string) string {
	runes := []rune(content)
	if len(runes) <= ExcerptLen {
		return content
	}
	return string(runes[:ExcerptLen])
}

// LogStore manages moderation log entries in PostgreSQL.
type LogStore struct {
	db *sql.DB
}

// NewLogStore creates a log store backed by the given database handle.
func NewLogStore(db *sql.DB) *LogStore {
	return &LogStore{db: db}
}

// Append inserts a moderation log entry.
func (s *LogStore) Append(ctx context.Context, entry *LogEntry) error {
	const query = `
		INSERT INTO moderation_log (user_id, action, reason, message_excerpt, warning_count_after)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.ExecContext(ctx, query,
		entry.UserID,
		string(entry.Action),
		entry.Reason,
		entry.MessageExcerpt,
		entry.WarningCountAfter,
	)
	if err != nil {
		return fmt.Errorf("moderation: log insert: %w", err)
	}
	return nil
}

// ListByUser returns a user's most recent log entries, newest first.
func (s *LogStore) ListByUser(ctx context.Context, userID string, limit int) ([]LogEntry, error) {
	const query = `
		SELECT user_id, action, reason, message_excerpt, warning_count_after, created_at
		FROM moderation_log
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("moderation: log list: %w", err)
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var e LogEntry
		var action string
		if err := rows.Scan(&e.UserID, &action, &e.Reason, &e.MessageExcerpt, &e.WarningCountAfter, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("moderation: log scan: %w", err)
		}
		e.Action = Action(action)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("moderation: log rows: %w", err)
	}
	return entries, nil
}
