// Package dispatch publishes the side effects of accepted messages that
// live outside the atomic write path: live conversation events for
// connected subscribers, best-effort push notification jobs for offline
// members, and the ephemeral call-log transitions.
package dispatch

import "github.com/harbor/chat-app/internal/conversation"

// Live event types emitted on a conversation's event subject.
const (
	EventNewMessage     = "newMessage"
	EventCallLogUpdated = "callLogUpdated"
	EventCallLogDeleted = "callLogDeleted"
)

// Event is the payload published to conv.events.<conversation_id>. It
// carries the persisted message (with server-assigned id and resolved
// timestamp) for newMessage and callLogUpdated; callLogDeleted carries
// only the id of the removed message.
type Event struct {
	Type           string                `json:"type"`
	ConversationID string                `json:"conversation_id"`
	Message        *conversation.Message `json:"message,omitempty"`
	MessageID      string                `json:"message_id,omitempty"`
}
