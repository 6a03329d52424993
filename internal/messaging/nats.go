// Package messaging provides a NATS client wrapper for pub/sub messaging
// across the chat backend. It carries the live conversation event stream,
// the push-notification job queue, and the call-resolution ingress used by
// the call-event collaborator.
package messaging

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS subject patterns.
const (
	// SubjectConvEvents carries live events for one conversation:
	// conv.events.<conversation_id>.
	SubjectConvEvents = "conv.events"

	// SubjectPushJobs is the queue of pending push notification jobs,
	// consumed by the notifier worker.
	SubjectPushJobs = "notify.push"

	// SubjectCallResolve receives call-outcome reports from the
	// call-event collaborator.
	SubjectCallResolve = "call.resolve"
)

// Client wraps the NATS connection with helper methods for the backend's
// pub/sub channels.
type Client struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// Config holds NATS connection settings.
type Config struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:           "nats://localhost:4222",
		Name:          "chat",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1, // infinite reconnects
	}
}

// NewClient connects to NATS with the given config and returns a ready
// client. It returns an error if the initial connection fails.
func NewClient(config Config) (*Client, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			} else {
				log.Printf("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Printf("[nats] connected to %s", nc.ConnectedUrl())

	return &Client{
		conn: nc,
		subs: make(map[string]*nats.Subscription),
	}, nil
}

// Publish sends data to the given NATS subject.
func (c *Client) Publish(subject string, data []byte) error {
	return c.conn.Publish(subject, data)
}

// PublishConversationEvent publishes a live event to the conversation's
// event subject.
func (c *Client) PublishConversationEvent(conversationID string, data []byte) error {
	return c.Publish(SubjectConvEvents+"."+conversationID, data)
}

// SubscribeConversation subscribes to a conversation's live events. The
// subscription is keyed by subscriberKey so multiple local subscribers
// (e.g. several connections on one gateway) can watch the same
// conversation without overwriting each other.
func (c *Client) SubscribeConversation(conversationID, subscriberKey string, handler func(data []byte)) error {
	subject := SubjectConvEvents + "." + conversationID
	key := "convsub:" + subscriberKey
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	c.subs[key] = sub
	c.mu.Unlock()
	return nil
}

// UnsubscribeConversation drops the subscription registered under
// subscriberKey.
func (c *Client) UnsubscribeConversation(subscriberKey string) error {
	return c.unsubscribe("convsub:" + subscriberKey)
}

// PublishPushJob enqueues a push notification job for the notifier worker.
func (c *Client) PublishPushJob(data []byte) error {
	return c.Publish(SubjectPushJobs, data)
}

// SubscribePushJobs consumes push notification jobs. The queue group
// spreads jobs across notifier instances instead of duplicating them.
func (c *Client) SubscribePushJobs(handler func(data []byte)) error {
	sub, err := c.conn.QueueSubscribe(SubjectPushJobs, "notifiers", func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", SubjectPushJobs, err)
	}

	c.mu.Lock()
	c.subs[SubjectPushJobs] = sub
	c.mu.Unlock()
	return nil
}

// PublishCallResolution reports a call outcome for resolution.
func (c *Client) PublishCallResolution(data []byte) error {
	return c.Publish(SubjectCallResolve, data)
}

// SubscribeCallResolutions consumes call outcome reports from the
// call-event collaborator.
func (c *Client) SubscribeCallResolutions(handler func(data []byte)) error {
	sub, err := c.conn.Subscribe(SubjectCallResolve, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", SubjectCallResolve, err)
	}

	c.mu.Lock()
	c.subs[SubjectCallResolve] = sub
	c.mu.Unlock()
	return nil
}

// Close drains all active subscriptions and closes the NATS connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for subject, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			log.Printf("[nats] drain %s: %v", subject, err)
		}
	}
	c.subs = make(map[string]*nats.Subscription)

	if err := c.conn.Drain(); err != nil {
		log.Printf("[nats] connection drain: %v", err)
	}

	log.Printf("[nats] client closed")
}

// unsubscribe removes and unsubscribes a stored subscription by key.
func (c *Client) unsubscribe(key string) error {
	c.mu.Lock()
	sub, ok := c.subs[key]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("nats: no subscription for %s", key)
	}
	delete(c.subs, key)
	c.mu.Unlock()

	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("nats unsubscribe %s: %w", key, err)
	}
	return nil
}
