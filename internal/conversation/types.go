// Package conversation owns the durable chat documents: messages, per-member
// conversation summaries and the membership list, all stored in PostgreSQL.
// Its fan-out engine applies a message's side effects to every member's
// summary atomically with the message write.
package conversation

import "time"

// Conversation kinds.
const (
	KindDirect = "direct"
	KindGroup  = "group"
)

// Message types.
const (
	TypeText = "text"
	TypeCall = "call"
)

// Call statuses recorded on call-log messages.
const (
	CallStatusCalling = "calling"
	CallStatusEnded   = "ended"
)

// Member is one entry in a conversation's membership list. Membership is
// maintained by the membership collaborator; the fan-out engine reads it as
// a point-in-time snapshot.
type Member struct {
	UserID      string
	DisplayName string
	JoinedAt    time.Time
}

// Summary is the per-member inbox projection of one conversation. N members
// means N independent summary rows for one logical conversation.
type Summary struct {
	OwnerUserID    string    `json:"owner_user_id"`
	ConversationID string    `json:"conversation_id"`
	DisplayName    string    `json:"display_name"`
	AvatarRef      string    `json:"avatar_ref"`
	Kind           string    `json:"kind"`
	LastMessage    string    `json:"last_message"`
	UpdatedAt      time.Time `json:"updated_at"`
	UnreadCount    int       `json:"unread_count"`
}

// Message is one sent message. Immutable after creation except for
// call-log messages, whose content and call status are rewritten in place
// as the underlying call resolves.
type Message struct {
	ID                string    `json:"id"`
	ConversationID    string    `json:"conversation_id"`
	SenderID          string    `json:"sender_id"`
	SenderDisplayName string    `json:"sender_display_name"`
	Content           string    `json:"content"`
	Type              string    `json:"type"`
	CallID            string    `json:"call_id,omitempty"`
	CallStatus        string    `json:"call_status,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}
