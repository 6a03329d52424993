package moderation

import (
	"context"
	"log"
	"time"

	"github.com/harbor/chat-app/internal/metrics"
)

// FailurePolicy selects how the gate behaves when the ledger store is
// unreachable.
type FailurePolicy int

const (
	// FailOpen lets the message through when the ledger cannot be
	// consulted. Availability over enforcement: the error goes to logs
	// and metrics, never to the end user.
	FailOpen FailurePolicy = iota

	// FailClosed denies the message when the ledger cannot be consulted.
	FailClosed
)

// ledgerEvaluator is the ledger surface the gate depends on.
type ledgerEvaluator interface {
	Evaluate(ctx context.Context, userID string, flagged bool, now time.Time) (Evaluation, error)
}

// logAppender is the audit-log surface the gate depends on.
type logAppender interface {
	Append(ctx context.Context, entry *LogEntry) error
}

// Gate composes the content screener, the ledger and the audit log into
// the single allow/deny check the ingress path calls per message.
type Gate struct {
	screener Screener
	ledger   ledgerEvaluator
	auditLog logAppender
	policy   FailurePolicy
	now      func() time.Time
}

// NewGate builds a moderation gate. The now function defaults to time.Now
// and exists so tests can pin the clock.
func NewGate(screener Screener, ledger ledgerEvaluator, auditLog logAppender, policy FailurePolicy) *Gate {
	return &Gate{
		screener: screener,
		ledger:   ledger,
		auditLog: auditLog,
		policy:   policy,
		now:      time.Now,
	}
}

// Check evaluates one message from userID. The returned Decision tells the
// caller whether to deliver the message; err is non-nil only when the
// ledger store failed, in which case the Decision already reflects the
// configured failure policy.
func (g *Gate) Check(ctx context.Context, userID, content string) (Decision, error) {
	term, flagged := g.screener.Screen(content)
	now := g.now()

	ev, err := g.ledger.Evaluate(ctx, userID, flagged, now)
	if err != nil {
		metrics.ModerationStoreErrors.Inc()
		if g.policy == FailClosed {
			log.Printf("[moderation] ledger unavailable for user=%s, failing closed: %v", userID, err)
			return Decision{
				Allowed:       false,
				Reason:        ReasonUnavailable,
				PolicyMessage: policyMessage(ReasonUnavailable, 0, 0),
			}, err
		}
		log.Printf("[moderation] ledger unavailable for user=%s, failing open: %v", userID, err)
		return Decision{Allowed: true}, err
	}

	if ev.ResetApplied {
		g.append(ctx, &LogEntry{
			UserID:            userID,
			Action:            ActionSuspensionRemoved,
			Reason:            "suspension expired",
			WarningCountAfter: 0,
		})
		metrics.ModerationActions.WithLabelValues(string(ActionSuspensionRemoved)).Inc()
	}

	switch ev.Status {
	case statusSuspended:
		days := daysRemaining(ev.SuspendedUntil, now)
		return Decision{
			Allowed:       false,
			Reason:        ReasonSuspension,
			PolicyMessage: policyMessage(ReasonSuspension, ev.WarningCount, days),
			WarningCount:  ev.WarningCount,
			DaysRemaining: days,
		}, nil

	case statusEscalated:
		action := actionForCount(ev.WarningCount)
		g.append(ctx, &LogEntry{
			UserID:            userID,
			Action:            action,
			Reason:            "flagged term: " + term,
			MessageExcerpt:    Excerpt(content),
			WarningCountAfter: ev.WarningCount,
		})
		metrics.ModerationActions.WithLabelValues(string(action)).Inc()

		reason := ReasonWarning
		days := 0
		switch action {
		case ActionFinalWarning:
			reason = ReasonFinalWarning
		case ActionSuspension:
			reason = ReasonSuspension
			days = daysRemaining(ev.SuspendedUntil, now)
		}
		return Decision{
			Allowed:       false,
			Reason:        reason,
			PolicyMessage: policyMessage(reason, ev.WarningCount, 0),
			WarningCount:  ev.WarningCount,
			DaysRemaining: days,
		}, nil
	}

	return Decision{Allowed: true, WarningCount: ev.WarningCount}, nil
}

// append writes an audit entry. The audit log is best-effort relative to
// the decision already applied to the ledger: a failed insert is logged,
// not propagated.
func (g *Gate) append(ctx context.Context, entry *LogEntry) {
	if g.auditLog == nil {
		return
	}
	if err := g.auditLog.Append(ctx, entry); err != nil {
		log.Printf("[moderation] audit log append failed user=%s action=%s: %v",
			entry.UserID, entry.Action, err)
	}
}

// daysRemaining rounds the remaining suspension time up to whole days, so
// a suspension with any time left reports at least one day.
func daysRemaining(until, now time.Time) int {
	remaining := until.Sub(now)
	if remaining <= 0 {
		return 0
	}
	days := int((remaining + 24*time.Hour - 1) / (24 * time.Hour))
	return days
}
