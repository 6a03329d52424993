package dispatch

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/harbor/chat-app/internal/conversation"
	"github.com/harbor/chat-app/internal/notify"
)

// eventBus is the messaging surface the dispatcher publishes on.
type eventBus interface {
	PublishConversationEvent(conversationID string, data []byte) error
	PublishPushJob(data []byte) error
}

// presenceChecker reports which users currently hold a live connection.
type presenceChecker interface {
	OnlineSet(ctx context.Context, userIDs []string) (map[string]bool, error)
}

// notificationStore persists notification records before delivery.
type notificationStore interface {
	Create(ctx context.Context, n *notify.Notification) error
}

// Dispatcher emits live and asynchronous events for accepted messages.
// Everything here is fire-and-forget relative to the write path: no
// failure rolls back or retries the underlying message.
type Dispatcher struct {
	bus           eventBus
	presence      presenceChecker
	notifications notificationStore
	timeout       time.Duration
}

// NewDispatcher creates a dispatcher publishing on the given bus.
func NewDispatcher(bus eventBus, presence presenceChecker, notifications notificationStore) *Dispatcher {
	return &Dispatcher{
		bus:           bus,
		presence:      presence,
		notifications: notifications,
		timeout:       10 * time.Second,
	}
}

// MessageAccepted broadcasts the persisted message to live subscribers and
// enqueues push jobs for members without a live connection. Called on its
// own goroutine by ingress; the context bounds the store calls only.
func (d *Dispatcher) MessageAccepted(msg *conversation.Message, members []conversation.Member) {
	d.Broadcast(Event{
		Type:           EventNewMessage,
		ConversationID: msg.ConversationID,
		Message:        msg,
	})

	recipients := make([]string, 0, len(members))
	for _, m := range members {
		if m.UserID != msg.SenderID {
			recipients = append(recipients, m.UserID)
		}
	}
	if len(recipients) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	online, err := d.presence.OnlineSet(ctx, recipients)
	if err != nil {
		// Presence unavailable: push everyone rather than nobody.
		log.Printf("[dispatch] presence lookup failed, pushing all recipients: %v", err)
		online = map[string]bool{}
	}

	for _, userID := range recipients {
		if online[userID] {
			continue // the live broadcast reaches them
		}
		d.enqueuePush(ctx, userID, msg)
	}
}

// enqueuePush persists a notification record and, only after that
// succeeds, enqueues the delivery job.
func (d *Dispatcher) enqueuePush(ctx context.Context, userID string, msg *conversation.Message) {
	n := &notify.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      notify.TypeMessage,
		Title:     msg.SenderDisplayName,
		Body:      notify.TruncateBody(msg.Content),
		RelatedID: msg.ConversationID,
	}
	if err := d.notifications.Create(ctx, n); err != nil {
		log.Printf("[dispatch] notification record failed user=%s: %v", userID, err)
		return
	}

	data, err := json.Marshal(notify.Job{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Type:           n.Type,
		Title:          n.Title,
		Body:           n.Body,
		RelatedID:      n.RelatedID,
	})
	if err != nil {
		log.Printf("[dispatch] push job marshal failed user=%s: %v", userID, err)
		return
	}
	if err := d.bus.PublishPushJob(data); err != nil {
		log.Printf("[dispatch] push job publish failed user=%s: %v", userID, err)
	}
}

// Broadcast publishes a live event to the conversation's subscribers.
// Failures are logged only.
func (d *Dispatcher) Broadcast(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[dispatch] event marshal failed type=%s: %v", event.Type, err)
		return
	}
	if err := d.bus.PublishConversationEvent(event.ConversationID, data); err != nil {
		log.Printf("[dispatch] event publish failed type=%s conversation=%s: %v",
			event.Type, event.ConversationID, err)
	}
}
