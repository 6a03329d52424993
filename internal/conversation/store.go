package conversation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Store manages conversation membership, summaries and message documents
// in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Members returns the conversation's current membership list.
func (s *Store) Members(ctx context.Context, conversationID string) ([]Member, error) {
	const query = `
		SELECT user_id, display_name, joined_at
		FROM conversation_members
		WHERE conversation_id = $1
		ORDER BY joined_at`

	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("conversation: members: %w", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.UserID, &m.DisplayName, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("conversation: members scan: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation: members rows: %w", err)
	}
	return members, nil
}

// Join adds a user to a conversation and creates their summary row. Both
// writes happen in one transaction so a member never exists without a
// summary. Re-joining an existing member is a no-op.
func (s *Store) Join(ctx context.Context, conversationID string, member Member, kind, conversationName string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("conversation: join begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversation_members (conversation_id, user_id, display_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (conversation_id, user_id) DO NOTHING`,
		conversationID, member.UserID, member.DisplayName)
	if err != nil {
		return fmt.Errorf("conversation: join member insert: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversation_summaries (owner_user_id, conversation_id, display_name, kind)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner_user_id, conversation_id) DO NOTHING`,
		member.UserID, conversationID, conversationName, kind)
	if err != nil {
		return fmt.Errorf("conversation: join summary insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("conversation: join commit: %w", err)
	}
	return nil
}

// Leave removes a user from a conversation and deletes their summary row.
func (s *Store) Leave(ctx context.Context, conversationID, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("conversation: leave begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM conversation_members
		WHERE conversation_id = $1 AND user_id = $2`,
		conversationID, userID); err != nil {
		return fmt.Errorf("conversation: leave member delete: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM conversation_summaries
		WHERE owner_user_id = $1 AND conversation_id = $2`,
		userID, conversationID); err != nil {
		return fmt.Errorf("conversation: leave summary delete: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("conversation: leave commit: %w", err)
	}
	return nil
}

// Summary returns one member's summary row, or nil if the user has no
// summary for the conversation.
func (s *Store) Summary(ctx context.Context, ownerUserID, conversationID string) (*Summary, error) {
	const query = `
		SELECT owner_user_id, conversation_id, display_name, avatar_ref, kind,
		       last_message, updated_at, unread_count
		FROM conversation_summaries
		WHERE owner_user_id = $1 AND conversation_id = $2`

	var sum Summary
	err := s.db.QueryRowContext(ctx, query, ownerUserID, conversationID).Scan(
		&sum.OwnerUserID, &sum.ConversationID, &sum.DisplayName, &sum.AvatarRef,
		&sum.Kind, &sum.LastMessage, &sum.UpdatedAt, &sum.UnreadCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("conversation: summary: %w", err)
	}
	return &sum, nil
}

// ListSummaries returns all of a user's conversation summaries, most
// recently updated first. This backs the inbox listing.
func (s *Store) ListSummaries(ctx context.Context, ownerUserID string) ([]Summary, error) {
	const query = `
		SELECT owner_user_id, conversation_id, display_name, avatar_ref, kind,
		       last_message, updated_at, unread_count
		FROM conversation_summaries
		WHERE owner_user_id = $1
		ORDER BY updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("conversation: list summaries: %w", err)
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.OwnerUserID, &sum.ConversationID, &sum.DisplayName,
			&sum.AvatarRef, &sum.Kind, &sum.LastMessage, &sum.UpdatedAt, &sum.UnreadCount); err != nil {
			return nil, fmt.Errorf("conversation: list summaries scan: %w", err)
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation: list summaries rows: %w", err)
	}
	return summaries, nil
}

// MarkRead zeroes the member's unread counter for a conversation.
func (s *Store) MarkRead(ctx context.Context, ownerUserID, conversationID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE conversation_summaries
		SET unread_count = 0
		WHERE owner_user_id = $1 AND conversation_id = $2`,
		ownerUserID, conversationID)
	if err != nil {
		return fmt.Errorf("conversation: mark read: %w", err)
	}
	return nil
}

// RecentMessages returns the conversation's most recent messages in
// chronological order (oldest first).
func (s *Store) RecentMessages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	const query = `
		SELECT id, conversation_id, sender_id, sender_display_name, content, type,
		       COALESCE(call_id, ''), COALESCE(call_status, ''), created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("conversation: recent messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.SenderDisplayName,
			&m.Content, &m.Type, &m.CallID, &m.CallStatus, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("conversation: recent messages scan: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation: recent messages rows: %w", err)
	}

	// Reverse into chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// InsertCallPlaceholder creates the optimistic "calling" message for an
// in-progress call, keyed by the caller-supplied correlation id. The
// server-resolved timestamp is returned on the message.
func (s *Store) InsertCallPlaceholder(ctx context.Context, msg *Message) (*Message, error) {
	const query = `
		INSERT INTO messages (id, conversation_id, sender_id, sender_display_name, content, type, call_id, call_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`

	out := *msg
	out.Type = TypeCall
	out.CallStatus = CallStatusCalling
	err := s.db.QueryRowContext(ctx, query,
		out.ID, out.ConversationID, out.SenderID, out.SenderDisplayName,
		out.Content, out.Type, out.CallID, out.CallStatus).Scan(&out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("conversation: insert call placeholder: %w", err)
	}
	return &out, nil
}

// FinalizeCall rewrites a call placeholder in place with its final content.
// Returns nil with no error when no placeholder matches the correlation id
// (already cleaned up).
func (s *Store) FinalizeCall(ctx context.Context, conversationID, callID, content string) (*Message, error) {
	const query = `
		UPDATE messages
		SET content = $3, call_status = $4
		WHERE conversation_id = $1 AND call_id = $2
		RETURNING id, conversation_id, sender_id, sender_display_name, content, type,
		          COALESCE(call_id, ''), COALESCE(call_status, ''), created_at`

	var m Message
	err := s.db.QueryRowContext(ctx, query, conversationID, callID, content, CallStatusEnded).Scan(
		&m.ID, &m.ConversationID, &m.SenderID, &m.SenderDisplayName,
		&m.Content, &m.Type, &m.CallID, &m.CallStatus, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("conversation: finalize call: %w", err)
	}
	return &m, nil
}

// DeleteCallPlaceholder removes a call placeholder outright. Returns the
// deleted message id, or "" when no placeholder matched.
func (s *Store) DeleteCallPlaceholder(ctx context.Context, conversationID, callID string) (string, error) {
	const query = `
		DELETE FROM messages
		WHERE conversation_id = $1 AND call_id = $2
		RETURNING id`

	var id string
	err := s.db.QueryRowContext(ctx, query, conversationID, callID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("conversation: delete call placeholder: %w", err)
	}
	return id, nil
}
