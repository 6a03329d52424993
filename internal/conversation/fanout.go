package conversation

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/harbor/chat-app/internal/metrics"
)

// SenderPrefix is prepended to the sender's own last-message preview.
const SenderPrefix = "You: "

// DefaultMaxBatch caps the number of summary mutations applied in one
// transaction. Conversations larger than this are chunked: the first
// transaction carries the message plus the first chunk, follow-up
// transactions the rest, so very large groups trade cross-chunk atomicity
// for bounded transaction size. This is a known limitation, never a silent
// truncation of membership.
const DefaultMaxBatch = 500

// Engine applies a sent message's side effects — the message insert plus
// one summary mutation per member — as one atomic batch.
type Engine struct {
	db       *sql.DB
	maxBatch int
}

// NewEngine creates a fan-out engine with the default batch ceiling.
func NewEngine(db *sql.DB) *Engine {
	return &Engine{db: db, maxBatch: DefaultMaxBatch}
}

// SetMaxBatch overrides the per-transaction mutation ceiling. Intended for
// tests and for deployments with a tuned store.
func (e *Engine) SetMaxBatch(n int) {
	if n > 0 {
		e.maxBatch = n
	}
}

// FanOut persists msg and propagates it to every current member's summary.
// Membership is read once, inside the first transaction: a member removed
// after that snapshot simply has no summary row left and is skipped, it
// does not abort the batch. The message insert and the first chunk of
// summary mutations commit together, so a message never exists without its
// fan-out having applied. The returned message carries the server-assigned
// timestamp; the returned members are the snapshot the fan-out applied to.
func (e *Engine) FanOut(ctx context.Context, msg *Message) (*Message, []Member, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("conversation: fanout begin: %w", err)
	}
	defer tx.Rollback()

	members, err := membersTx(ctx, tx, msg.ConversationID)
	if err != nil {
		return nil, nil, err
	}

	out := *msg
	if out.Type == "" {
		out.Type = TypeText
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, sender_display_name, content, type)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		out.ID, out.ConversationID, out.SenderID, out.SenderDisplayName, out.Content, out.Type,
	).Scan(&out.CreatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("conversation: fanout message insert: %w", err)
	}

	first := members
	var rest []Member
	if len(members) > e.maxBatch {
		first, rest = members[:e.maxBatch], members[e.maxBatch:]
		log.Printf("[fanout] conversation=%s members=%d exceeds batch ceiling %d, chunking (eventual consistency across chunks)",
			out.ConversationID, len(members), e.maxBatch)
	}

	if err := applyMutations(ctx, tx, &out, first); err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("conversation: fanout commit: %w", err)
	}

	// Follow-up chunks commit independently of the message write.
	for len(rest) > 0 {
		chunk := rest
		if len(chunk) > e.maxBatch {
			chunk = rest[:e.maxBatch]
		}
		rest = rest[len(chunk):]
		if err := e.applyChunk(ctx, &out, chunk); err != nil {
			// The message itself is committed at this point.
			return &out, members, err
		}
	}

	metrics.FanoutBatchSize.Observe(float64(len(members)))
	return &out, members, nil
}

// applyChunk applies one follow-up chunk of summary mutations in its own
// transaction.
func (e *Engine) applyChunk(ctx context.Context, msg *Message, chunk []Member) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("conversation: fanout chunk begin: %w", err)
	}
	defer tx.Rollback()

	if err := applyMutations(ctx, tx, msg, chunk); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("conversation: fanout chunk commit: %w", err)
	}
	return nil
}

// applyMutations writes one summary mutation per member. The unread
// counter moves with a server-side increment so concurrent sends to the
// same recipient never lose an update.
func applyMutations(ctx context.Context, tx *sql.Tx, msg *Message, members []Member) error {
	for _, m := range members {
		var err error
		if m.UserID == msg.SenderID {
			_, err = tx.ExecContext(ctx, `
				UPDATE conversation_summaries
				SET last_message = $3, updated_at = NOW()
				WHERE owner_user_id = $1 AND conversation_id = $2`,
				m.UserID, msg.ConversationID, SenderPrefix+msg.Content)
		} else {
			_, err = tx.ExecContext(ctx, `
				UPDATE conversation_summaries
				SET last_message = $3, updated_at = NOW(), unread_count = unread_count + 1
				WHERE owner_user_id = $1 AND conversation_id = $2`,
				m.UserID, msg.ConversationID, msg.SenderDisplayName+": "+msg.Content)
		}
		if err != nil {
			return fmt.Errorf("conversation: fanout summary update for %s: %w", m.UserID, err)
		}
	}
	return nil
}

// membersTx reads the membership snapshot inside the fan-out transaction.
func membersTx(ctx context.Context, tx *sql.Tx, conversationID string) ([]Member, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT user_id, display_name, joined_at
		FROM conversation_members
		WHERE conversation_id = $1
		ORDER BY joined_at`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("conversation: fanout members: %w", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.UserID, &m.DisplayName, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("conversation: fanout members scan: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversation: fanout members rows: %w", err)
	}
	return members, nil
}
