// Package protocol defines the WebSocket message types and structures used for
// communication between the client and server. All messages are serialized as
// JSON and follow a consistent envelope format with a type discriminator.
package protocol

import (
	"encoding/json"
	"fmt"
)

// ---------------------------------------------------------------------------
// Message type constants
// ---------------------------------------------------------------------------

// Client -> Server message types.
const (
	TypeJoinConversation  = "join_conversation"
	TypeLeaveConversation = "leave_conversation"
	TypeSendMessage       = "send_message"
	TypeMarkRead          = "mark_read"
	TypeStartCall         = "start_call"
	TypeRegisterPushToken = "register_push_token"
	TypePing              = "ping"
)

// Server -> Client message types.
const (
	TypeMessageAccepted = "message_accepted"
	TypeMessageRejected = "message_rejected"
	TypeNewMessage      = "new_message"
	TypeCallLogUpdated  = "call_log_updated"
	TypeCallLogDeleted  = "call_log_deleted"
	TypeHistory         = "history"
	TypeRateLimited     = "rate_limited"
	TypeError           = "error"
	TypePong            = "pong"
)

// ---------------------------------------------------------------------------
// Envelope — used for initial JSON parsing to extract the type discriminator.
// ---------------------------------------------------------------------------

// Envelope holds the message type and the raw JSON payload for deferred
// parsing into a concrete struct.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON implements the json.Unmarshaler interface. It captures the
// full raw bytes and extracts only the "type" field so that the rest of the
// payload can be decoded later into the appropriate concrete struct.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	// Capture the full raw message for deferred parsing.
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	// Extract only the type field.
	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal envelope: %w", err)
	}
	if partial.Type == "" {
		return fmt.Errorf("protocol: missing or empty \"type\" field")
	}
	e.Type = partial.Type
	return nil
}

// ---------------------------------------------------------------------------
// Client -> Server message structs
// ---------------------------------------------------------------------------

// JoinConversationMsg subscribes the connection to a conversation's live
// events and requests recent history.
type JoinConversationMsg struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
}

// LeaveConversationMsg unsubscribes the connection from a conversation's
// live events.
type LeaveConversationMsg struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
}

// SendMessageMsg is a text message sent by the client into a conversation.
// ClientRef is an opaque client-chosen token echoed back in the accept or
// reject response so the client can correlate it with its optimistic UI.
type SendMessageMsg struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
	ClientRef      string `json:"client_ref"`
}

// MarkReadMsg resets the client's unread counter for a conversation.
type MarkReadMsg struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
}

// StartCallMsg creates the optimistic call-log placeholder for a call the
// client is initiating. CorrelationID is the caller-generated id the later
// outcome report will carry.
type StartCallMsg struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	CorrelationID  string `json:"correlation_id"`
}

// RegisterPushTokenMsg adds a device token to the user's push registration
// set.
type RegisterPushTokenMsg struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// PingMsg is a client-initiated keepalive ping.
type PingMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Server -> Client message structs
// ---------------------------------------------------------------------------

// MessageAcceptedMsg confirms a send_message passed moderation and was
// persisted. MessageID is the server-assigned id.
type MessageAcceptedMsg struct {
	Type      string `json:"type"`
	ClientRef string `json:"client_ref"`
	MessageID string `json:"message_id"`
}

// MessageRejectedMsg reports a send_message denied by moderation, along with
// the policy text the client should display.
type MessageRejectedMsg struct {
	Type          string `json:"type"`
	ClientRef     string `json:"client_ref"`
	Reason        string `json:"reason"`
	PolicyMessage string `json:"policy_message"`
	WarningCount  int    `json:"warning_count"`
	DaysRemaining int    `json:"days_remaining,omitempty"`
}

// NewMessageMsg delivers a message accepted into a conversation the client
// has joined. Payload is the full message document as JSON.
type NewMessageMsg struct {
	Type           string          `json:"type"`
	ConversationID string          `json:"conversation_id"`
	Message        json.RawMessage `json:"message"`
}

// CallLogUpdatedMsg delivers an in-place rewrite of a call-log message.
type CallLogUpdatedMsg struct {
	Type           string          `json:"type"`
	ConversationID string          `json:"conversation_id"`
	Message        json.RawMessage `json:"message"`
}

// CallLogDeletedMsg tells the client to drop a call-log message that was
// deleted rather than finalized.
type CallLogDeletedMsg struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

// HistoryMsg delivers the recent messages of a conversation the client just
// joined, oldest first.
type HistoryMsg struct {
	Type           string            `json:"type"`
	ConversationID string            `json:"conversation_id"`
	Messages       []json.RawMessage `json:"messages"`
}

// RateLimitedMsg is sent by the server when the client has been rate-limited.
type RateLimitedMsg struct {
	Type       string `json:"type"`
	RetryAfter int    `json:"retry_after"`
}

// ErrorMsg is sent by the server to communicate an error condition.
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PongMsg is the server's response to a client ping.
type PongMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// ParseClientMessage parses raw WebSocket bytes into a typed client message.
// It returns the message type string, the decoded struct, and any error
// encountered during parsing. An error is returned for unknown or
// server-only message types.
func ParseClientMessage(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse message: %w", err)
	}

	var (
		msg interface{}
		err error
	)

	switch env.Type {
	case TypeJoinConversation:
		var m JoinConversationMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeLeaveConversation:
		var m LeaveConversationMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeSendMessage:
		var m SendMessageMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeMarkRead:
		var m MarkReadMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeStartCall:
		var m StartCallMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeRegisterPushToken:
		var m RegisterPushTokenMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypePing:
		var m PingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	default:
		return env.Type, nil, fmt.Errorf("protocol: unknown client message type: %q", env.Type)
	}

	if err != nil {
		return env.Type, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
	}
	return env.Type, msg, nil
}

// NewServerMessage creates a JSON-encoded byte slice for a server message.
// The msgType is injected into the payload under the "type" key. The payload
// should be one of the server message structs; this function marshals it to
// JSON, injects the type field, and returns the final bytes.
func NewServerMessage(msgType string, payload interface{}) ([]byte, error) {
	// Marshal the payload struct to a generic map so we can ensure the "type"
	// field is present and correct.
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal payload: %w", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("protocol: failed to unmarshal payload into map: %w", err)
	}

	m["type"] = msgType

	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal server message: %w", err)
	}
	return out, nil
}
