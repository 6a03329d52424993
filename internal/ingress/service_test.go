package ingress

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/harbor/chat-app/internal/conversation"
	"github.com/harbor/chat-app/internal/dispatch"
	"github.com/harbor/chat-app/internal/moderation"
	"github.com/harbor/chat-app/internal/ratelimit"
)

type fakeGate struct {
	decision moderation.Decision
	err      error
	checked  []string
}

func (f *fakeGate) Check(_ context.Context, _, content string) (moderation.Decision, error) {
	f.checked = append(f.checked, content)
	return f.decision, f.err
}

type fakeEngine struct {
	err     error
	members []conversation.Member
	fanned  []*conversation.Message
}

func (f *fakeEngine) FanOut(_ context.Context, msg *conversation.Message) (*conversation.Message, []conversation.Member, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	out := *msg
	out.Type = conversation.TypeText
	out.CreatedAt = time.Now()
	f.fanned = append(f.fanned, &out)
	return &out, f.members, nil
}

type fakeDispatcher struct {
	mu       sync.Mutex
	accepted []*conversation.Message
	done     chan struct{}
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{done: make(chan struct{}, 8)}
}

func (f *fakeDispatcher) MessageAccepted(msg *conversation.Message, _ []conversation.Member) {
	f.mu.Lock()
	f.accepted = append(f.accepted, msg)
	f.mu.Unlock()
	f.done <- struct{}{}
}

func (f *fakeDispatcher) wait(t *testing.T) *conversation.Message {
	t.Helper()
	select {
	case <-f.done:
	case <-time.After(time.Second):
		t.Fatal("dispatch never happened")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accepted[len(f.accepted)-1]
}

type fakeLimiter struct {
	denied map[string]bool // rule key prefix -> denied
}

func (f *fakeLimiter) Allow(_ context.Context, _ string, rule ratelimit.Rule) (bool, error) {
	return !f.denied[rule.Key], nil
}

type fakeCalls struct {
	started  []string
	resolved []dispatch.Resolution
}

func (f *fakeCalls) Start(_ context.Context, conversationID, callerID, _, correlationID string) (*conversation.Message, error) {
	f.started = append(f.started, correlationID)
	return &conversation.Message{
		ID:             "call-msg",
		ConversationID: conversationID,
		SenderID:       callerID,
		CallID:         correlationID,
	}, nil
}

func (f *fakeCalls) Resolve(_ context.Context, res dispatch.Resolution) error {
	f.resolved = append(f.resolved, res)
	return nil
}

type fixture struct {
	gate       *fakeGate
	engine     *fakeEngine
	dispatcher *fakeDispatcher
	limits     *fakeLimiter
	calls      *fakeCalls
	svc        *Service
}

func newFixture() *fixture {
	f := &fixture{
		gate:       &fakeGate{decision: moderation.Decision{Allowed: true}},
		engine:     &fakeEngine{members: []conversation.Member{{UserID: "alice"}, {UserID: "bob"}}},
		dispatcher: newFakeDispatcher(),
		limits:     &fakeLimiter{denied: map[string]bool{}},
		calls:      &fakeCalls{},
	}
	f.svc = NewService(f.gate, f.engine, f.dispatcher, f.limits, f.calls)
	return f
}

func TestSendMessage_AcceptedAndDispatched(t *testing.T) {
	f := newFixture()

	res, err := f.svc.SendMessage(context.Background(), "c1", "alice", "Alice", "hello")
	if err != nil {
		t.Fatalf("SendMessage() error: %v", err)
	}
	if !res.Accepted || res.Message == nil {
		t.Fatalf("result = %+v, want accepted with message", res)
	}
	if res.Message.ID == "" {
		t.Error("expected a server-assigned message id")
	}

	dispatched := f.dispatcher.wait(t)
	if dispatched.ID != res.Message.ID {
		t.Errorf("dispatched id = %q, want %q", dispatched.ID, res.Message.ID)
	}
}

func TestSendMessage_ModerationDenialIsResultNotError(t *testing.T) {
	f := newFixture()
	f.gate.decision = moderation.Decision{
		Allowed:       false,
		Reason:        moderation.ReasonSuspension,
		PolicyMessage: "Your account is suspended.",
		WarningCount:  3,
		DaysRemaining: 4,
	}

	res, err := f.svc.SendMessage(context.Background(), "c1", "alice", "Alice", "hello")
	if err != nil {
		t.Fatalf("SendMessage() error: %v", err)
	}
	if res.Accepted {
		t.Fatal("expected rejection")
	}
	if res.Reason != moderation.ReasonSuspension || res.PolicyMessage == "" {
		t.Errorf("result = %+v", res)
	}
	if res.WarningCount != 3 || res.DaysRemaining != 4 {
		t.Errorf("standing = (%d warnings, %d days), want (3, 4)", res.WarningCount, res.DaysRemaining)
	}
	if len(f.engine.fanned) != 0 {
		t.Error("rejected message must not be persisted")
	}
}

func TestSendMessage_GateFailureDecisionStands(t *testing.T) {
	f := newFixture()
	f.gate.decision = moderation.Decision{Allowed: true}
	f.gate.err = errors.New("redis down")

	res, err := f.svc.SendMessage(context.Background(), "c1", "alice", "Alice", "hello")
	if err != nil {
		t.Fatalf("SendMessage() error: %v", err)
	}
	if !res.Accepted {
		t.Error("fail-open decision should be honored despite the gate error")
	}
	f.dispatcher.wait(t)
}

func TestSendMessage_ValidationRejectsBeforeGate(t *testing.T) {
	f := newFixture()

	cases := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"too many chars", strings.Repeat("é", conversation.MaxContentChars+1)},
		{"invalid utf8", "ok\xff"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.SendMessage(context.Background(), "c1", "alice", "Alice", tc.content); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
	if len(f.gate.checked) != 0 {
		t.Error("invalid content must never reach the moderation gate")
	}
}

func TestSendMessage_RateLimited(t *testing.T) {
	f := newFixture()
	f.limits.denied[ratelimit.RuleMessage.Key] = true

	_, err := f.svc.SendMessage(context.Background(), "c1", "alice", "Alice", "hello")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
	if len(f.gate.checked) != 0 {
		t.Error("rate-limited sends must not reach the moderation gate")
	}
}

func TestSendMessage_FanoutFailureIsError(t *testing.T) {
	f := newFixture()
	f.engine.err = errors.New("db down")

	if _, err := f.svc.SendMessage(context.Background(), "c1", "alice", "Alice", "hello"); err == nil {
		t.Fatal("expected error when persistence fails")
	}
	select {
	case <-f.dispatcher.done:
		t.Fatal("failed sends must not be dispatched")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStartCall_RateLimited(t *testing.T) {
	f := newFixture()
	f.limits.denied[ratelimit.RuleCallStart.Key] = true

	_, err := f.svc.StartCall(context.Background(), "c1", "alice", "Alice", "corr-1")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
	if len(f.calls.started) != 0 {
		t.Error("rate-limited call must not start")
	}
}

func TestStartCallAndResolveDelegate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.svc.StartCall(ctx, "c1", "alice", "Alice", "corr-1"); err != nil {
		t.Fatalf("StartCall() error: %v", err)
	}
	if err := f.svc.ResolveCall(ctx, dispatch.Resolution{CorrelationID: "corr-1", Outcome: dispatch.OutcomeMissed}); err != nil {
		t.Fatalf("ResolveCall() error: %v", err)
	}
	if len(f.calls.started) != 1 || len(f.calls.resolved) != 1 {
		t.Errorf("started=%d resolved=%d, want 1/1", len(f.calls.started), len(f.calls.resolved))
	}
}
