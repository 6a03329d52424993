package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harbor/chat-app/internal/conversation"
)

// Call outcomes reported by the call-event collaborator.
const (
	OutcomeEnded     = "ended"
	OutcomeMissed    = "missed"
	OutcomeCancelled = "cancelled"
)

// DefaultMinConnected is the minimum answered duration below which a call
// is treated as never having happened: its placeholder is deleted instead
// of finalized.
const DefaultMinConnected = 5 * time.Second

// CallingPlaceholder is the optimistic content shown while a call rings.
const CallingPlaceholder = "Calling…"

// Resolution is the call outcome report, keyed by the caller-supplied
// correlation id.
type Resolution struct {
	ConversationID string `json:"conversation_id"`
	CorrelationID  string `json:"correlation_id"`
	Outcome        string `json:"outcome"`
	DurationMs     int64  `json:"duration_ms"`
}

// callStore is the message-document surface the call log mutates.
type callStore interface {
	InsertCallPlaceholder(ctx context.Context, msg *conversation.Message) (*conversation.Message, error)
	FinalizeCall(ctx context.Context, conversationID, callID, content string) (*conversation.Message, error)
	DeleteCallPlaceholder(ctx context.Context, conversationID, callID string) (string, error)
}

// broadcaster lets the call log emit live events without owning the bus.
type broadcaster interface {
	Broadcast(event Event)
}

// CallLog drives the ephemeral call-log message lifecycle:
// Calling -> {Ended, Missed, Cancelled}. The log must never show an
// unresolved "calling" message: every started call either finalizes into
// a duration line or is deleted outright.
type CallLog struct {
	store        callStore
	events       broadcaster
	minConnected time.Duration
}

// NewCallLog creates a call log with the default minimum-duration
// threshold.
func NewCallLog(store callStore, events broadcaster) *CallLog {
	return &CallLog{
		store:        store,
		events:       events,
		minConnected: DefaultMinConnected,
	}
}

// SetMinConnected overrides the answered-duration threshold.
func (c *CallLog) SetMinConnected(d time.Duration) {
	if d > 0 {
		c.minConnected = d
	}
}

// Start creates the optimistic placeholder message for a ringing call and
// broadcasts it.
func (c *CallLog) Start(ctx context.Context, conversationID, callerID, callerName, correlationID string) (*conversation.Message, error) {
	msg, err := c.store.InsertCallPlaceholder(ctx, &conversation.Message{
		ID:                uuid.New().String(),
		ConversationID:    conversationID,
		SenderID:          callerID,
		SenderDisplayName: callerName,
		Content:           CallingPlaceholder,
		CallID:            correlationID,
	})
	if err != nil {
		return nil, fmt.Errorf("dispatch: call start: %w", err)
	}

	c.events.Broadcast(Event{
		Type:           EventNewMessage,
		ConversationID: conversationID,
		Message:        msg,
	})
	return msg, nil
}

// Resolve applies a call outcome to its placeholder. An answered call at
// or above the minimum duration is rewritten in place into a duration
// line; anything else deletes the placeholder. An unknown correlation id
// means the placeholder was already cleaned up and is a no-op, not an
// error.
func (c *CallLog) Resolve(ctx context.Context, res Resolution) error {
	duration := time.Duration(res.DurationMs) * time.Millisecond

	if res.Outcome == OutcomeEnded && duration >= c.minConnected {
		msg, err := c.store.FinalizeCall(ctx, res.ConversationID, res.CorrelationID, FormatCallDuration(duration))
		if err != nil {
			return fmt.Errorf("dispatch: call resolve: %w", err)
		}
		if msg == nil {
			return nil
		}
		c.events.Broadcast(Event{
			Type:           EventCallLogUpdated,
			ConversationID: res.ConversationID,
			Message:        msg,
		})
		return nil
	}

	deletedID, err := c.store.DeleteCallPlaceholder(ctx, res.ConversationID, res.CorrelationID)
	if err != nil {
		return fmt.Errorf("dispatch: call delete: %w", err)
	}
	if deletedID == "" {
		return nil
	}
	c.events.Broadcast(Event{
		Type:           EventCallLogDeleted,
		ConversationID: res.ConversationID,
		MessageID:      deletedID,
	})
	return nil
}

// FormatCallDuration renders the final call-log line: seconds below one
// minute, whole minutes otherwise.
func FormatCallDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("Video call • %d sec", int(d.Seconds()))
	}
	return fmt.Sprintf("Video call • %d min", int(d.Minutes()))
}
