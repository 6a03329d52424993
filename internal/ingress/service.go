// Package ingress is the accept path for user-submitted messages: every
// send is validated, rate limited, and screened by the moderation gate
// before it is persisted and fanned out. Only after the fan-out commits
// does dispatch (live events, push jobs) happen, on its own goroutine.
package ingress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harbor/chat-app/internal/conversation"
	"github.com/harbor/chat-app/internal/dispatch"
	"github.com/harbor/chat-app/internal/metrics"
	"github.com/harbor/chat-app/internal/moderation"
	"github.com/harbor/chat-app/internal/ratelimit"
)

// ErrRateLimited is returned when the sender exceeded their send budget.
var ErrRateLimited = errors.New("ingress: rate limited")

// contentGate screens outbound content and tracks sender standing.
type contentGate interface {
	Check(ctx context.Context, userID, content string) (moderation.Decision, error)
}

// fanoutEngine persists a message and propagates it to member summaries.
type fanoutEngine interface {
	FanOut(ctx context.Context, msg *conversation.Message) (*conversation.Message, []conversation.Member, error)
}

// eventDispatcher handles post-commit delivery. Never on the accept path's
// critical section.
type eventDispatcher interface {
	MessageAccepted(msg *conversation.Message, members []conversation.Member)
}

// limiter throttles per-user actions.
type limiter interface {
	Allow(ctx context.Context, identifier string, rule ratelimit.Rule) (bool, error)
}

// callResolver drives the call-log placeholder lifecycle.
type callResolver interface {
	Start(ctx context.Context, conversationID, callerID, callerName, correlationID string) (*conversation.Message, error)
	Resolve(ctx context.Context, res dispatch.Resolution) error
}

// SendResult is the outcome of a send attempt that reached a decision.
// Accepted carries the persisted message; a rejection carries the policy
// text the client should show.
type SendResult struct {
	Accepted      bool
	Message       *conversation.Message // set when accepted
	Reason        string                // set when rejected
	PolicyMessage string                // set when rejected
	WarningCount  int                   // sender's warning count after the evaluation
	DaysRemaining int                   // set when rejected due to an active suspension
}

// Service orchestrates the message accept path.
type Service struct {
	gate     contentGate
	engine   fanoutEngine
	dispatch eventDispatcher
	limits   limiter
	calls    callResolver
}

// NewService wires the accept path together.
func NewService(gate contentGate, engine fanoutEngine, dispatcher eventDispatcher, limits limiter, calls callResolver) *Service {
	return &Service{
		gate:     gate,
		engine:   engine,
		dispatch: dispatcher,
		limits:   limits,
		calls:    calls,
	}
}

// SendMessage runs one message through the full accept path. The send is
// not acknowledged until the fan-out transaction has committed; dispatch
// runs afterwards on its own goroutine and cannot fail the send.
//
// Validation failures and rate limiting return errors; a moderation denial
// is a normal SendResult with Accepted false.
func (s *Service) SendMessage(ctx context.Context, conversationID, senderID, senderName, content string) (*SendResult, error) {
	start := time.Now()

	if err := conversation.ValidateContent(content); err != nil {
		metrics.MessagesTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	allowed, _ := s.limits.Allow(ctx, senderID, ratelimit.RuleMessage)
	if !allowed {
		metrics.MessagesTotal.WithLabelValues("rate_limited").Inc()
		return nil, ErrRateLimited
	}

	// The gate applies its own failure policy, so the decision stands even
	// when it also reports a store error.
	decision, _ := s.gate.Check(ctx, senderID, content)
	if !decision.Allowed {
		metrics.MessagesTotal.WithLabelValues("rejected").Inc()
		return &SendResult{
			Accepted:      false,
			Reason:        decision.Reason,
			PolicyMessage: decision.PolicyMessage,
			WarningCount:  decision.WarningCount,
			DaysRemaining: decision.DaysRemaining,
		}, nil
	}

	msg, members, err := s.engine.FanOut(ctx, &conversation.Message{
		ID:                uuid.New().String(),
		ConversationID:    conversationID,
		SenderID:          senderID,
		SenderDisplayName: senderName,
		Content:           content,
	})
	if err != nil {
		metrics.MessagesTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("ingress: send: %w", err)
	}

	metrics.MessagesTotal.WithLabelValues("accepted").Inc()
	metrics.IngressLatency.Observe(time.Since(start).Seconds())

	go s.dispatch.MessageAccepted(msg, members)

	return &SendResult{Accepted: true, Message: msg}, nil
}

// StartCall creates the optimistic call-log placeholder, subject to the
// per-user call-start budget.
func (s *Service) StartCall(ctx context.Context, conversationID, callerID, callerName, correlationID string) (*conversation.Message, error) {
	allowed, _ := s.limits.Allow(ctx, callerID, ratelimit.RuleCallStart)
	if !allowed {
		return nil, ErrRateLimited
	}
	return s.calls.Start(ctx, conversationID, callerID, callerName, correlationID)
}

// ResolveCall applies a call outcome report to its placeholder.
func (s *Service) ResolveCall(ctx context.Context, res dispatch.Resolution) error {
	return s.calls.Resolve(ctx, res)
}
