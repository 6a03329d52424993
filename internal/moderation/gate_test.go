package moderation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// fakeLedger returns a scripted Evaluation (or error) and records the
// flagged argument it was called with.
type fakeLedger struct {
	ev          Evaluation
	err         error
	lastFlagged bool
}

func (f *fakeLedger) Evaluate(_ context.Context, _ string, flagged bool, _ time.Time) (Evaluation, error) {
	f.lastFlagged = flagged
	return f.ev, f.err
}

// fakeLog records appended entries.
type fakeLog struct {
	entries []LogEntry
	err     error
}

func (f *fakeLog) Append(_ context.Context, e *LogEntry) error {
	f.entries = append(f.entries, *e)
	return f.err
}

func newTestGate(ledger *fakeLedger, auditLog *fakeLog, policy FailurePolicy) *Gate {
	g := NewGate(NewDenyList([]string{"spam"}), ledger, auditLog, policy)
	g.now = func() time.Time { return time.Unix(1_000_000_000, 0) }
	return g
}

func TestGate_CleanAllowed(t *testing.T) {
	ledger := &fakeLedger{ev: Evaluation{Status: statusAllowed}}
	gate := newTestGate(ledger, &fakeLog{}, FailOpen)

	d, err := gate.Check(context.Background(), "u1", "hello there")
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if !d.Allowed {
		t.Error("expected allowed")
	}
	if ledger.lastFlagged {
		t.Error("clean message must not be passed as flagged")
	}
}

func TestGate_WarningDecision(t *testing.T) {
	tests := []struct {
		name       string
		count      int
		wantReason string
	}{
		{"first warning", 1, ReasonWarning},
		{"final warning", 2, ReasonFinalWarning},
		{"suspension", 3, ReasonSuspension},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := Evaluation{Status: statusEscalated, WarningCount: tt.count}
			if tt.count == 3 {
				ev.SuspendedUntil = time.Unix(1_000_000_000, 0).Add(SuspensionDuration)
			}
			ledger := &fakeLedger{ev: ev}
			auditLog := &fakeLog{}
			gate := newTestGate(ledger, auditLog, FailOpen)

			d, err := gate.Check(context.Background(), "u1", "buy my spam now")
			if err != nil {
				t.Fatalf("Check() error: %v", err)
			}
			if d.Allowed {
				t.Fatal("expected denied")
			}
			if d.Reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", d.Reason, tt.wantReason)
			}
			if d.WarningCount != tt.count {
				t.Errorf("warning count = %d, want %d", d.WarningCount, tt.count)
			}
			if d.PolicyMessage == "" {
				t.Error("expected a policy message")
			}
			if !ledger.lastFlagged {
				t.Error("flagged message must be passed as flagged")
			}
			if len(auditLog.entries) != 1 {
				t.Fatalf("expected 1 audit entry, got %d", len(auditLog.entries))
			}
			entry := auditLog.entries[0]
			if entry.Action != actionForCount(tt.count) {
				t.Errorf("audit action = %q, want %q", entry.Action, actionForCount(tt.count))
			}
			if !strings.Contains(entry.Reason, "spam") {
				t.Errorf("audit reason %q should name the matched term", entry.Reason)
			}
			if entry.WarningCountAfter != tt.count {
				t.Errorf("audit count = %d, want %d", entry.WarningCountAfter, tt.count)
			}
		})
	}
}

func TestGate_SuspendedDenial(t *testing.T) {
	now := time.Unix(1_000_000_000, 0)
	ledger := &fakeLedger{ev: Evaluation{
		Status:         statusSuspended,
		WarningCount:   3,
		SuspendedUntil: now.Add(3*24*time.Hour + time.Hour),
	}}
	auditLog := &fakeLog{}
	gate := newTestGate(ledger, auditLog, FailOpen)

	d, err := gate.Check(context.Background(), "u1", "totally clean text")
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if d.Allowed {
		t.Fatal("expected denied")
	}
	if d.Reason != ReasonSuspension {
		t.Errorf("reason = %q, want %q", d.Reason, ReasonSuspension)
	}
	// 3 days and 1 hour remaining rounds up to 4 days.
	if d.DaysRemaining != 4 {
		t.Errorf("days remaining = %d, want 4", d.DaysRemaining)
	}
	if len(auditLog.entries) != 0 {
		t.Errorf("suspension gate must not write audit entries, got %d", len(auditLog.entries))
	}
}

func TestGate_ExpiryWritesRemovalEntry(t *testing.T) {
	ledger := &fakeLedger{ev: Evaluation{Status: statusAllowed, ResetApplied: true}}
	auditLog := &fakeLog{}
	gate := newTestGate(ledger, auditLog, FailOpen)

	d, err := gate.Check(context.Background(), "u1", "hello")
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if !d.Allowed {
		t.Error("expected allowed after reset")
	}
	if len(auditLog.entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(auditLog.entries))
	}
	if auditLog.entries[0].Action != ActionSuspensionRemoved {
		t.Errorf("audit action = %q, want %q", auditLog.entries[0].Action, ActionSuspensionRemoved)
	}
}

func TestGate_FailOpen(t *testing.T) {
	ledger := &fakeLedger{err: errors.New("redis down")}
	gate := newTestGate(ledger, &fakeLog{}, FailOpen)

	d, err := gate.Check(context.Background(), "u1", "spam spam spam")
	if err == nil {
		t.Fatal("expected the store error to be surfaced to the caller")
	}
	if !d.Allowed {
		t.Error("fail-open must allow the message")
	}
}

func TestGate_FailClosed(t *testing.T) {
	ledger := &fakeLedger{err: errors.New("redis down")}
	gate := newTestGate(ledger, &fakeLog{}, FailClosed)

	d, err := gate.Check(context.Background(), "u1", "hello")
	if err == nil {
		t.Fatal("expected the store error to be surfaced to the caller")
	}
	if d.Allowed {
		t.Error("fail-closed must deny the message")
	}
	if d.Reason != ReasonUnavailable {
		t.Errorf("reason = %q, want %q", d.Reason, ReasonUnavailable)
	}
}

func TestGate_AuditFailureDoesNotBlock(t *testing.T) {
	ledger := &fakeLedger{ev: Evaluation{Status: statusEscalated, WarningCount: 1}}
	auditLog := &fakeLog{err: errors.New("pg down")}
	gate := newTestGate(ledger, auditLog, FailOpen)

	d, err := gate.Check(context.Background(), "u1", "spam")
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if d.Allowed {
		t.Error("expected denied regardless of audit failure")
	}
}

func TestDaysRemaining(t *testing.T) {
	now := time.Unix(0, 0)
	tests := []struct {
		name  string
		until time.Time
		want  int
	}{
		{"past", now.Add(-time.Hour), 0},
		{"one hour", now.Add(time.Hour), 1},
		{"exactly one day", now.Add(24 * time.Hour), 1},
		{"one day one second", now.Add(24*time.Hour + time.Second), 2},
		{"full week", now.Add(7 * 24 * time.Hour), 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := daysRemaining(tt.until, now); got != tt.want {
				t.Errorf("daysRemaining() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExcerpt(t *testing.T) {
	long := strings.Repeat("a", 200)
	if got := Excerpt(long); len([]rune(got)) != ExcerptLen {
		t.Errorf("excerpt length = %d, want %d", len([]rune(got)), ExcerptLen)
	}
	if got := Excerpt("short"); got != "short" {
		t.Errorf("Excerpt(short) = %q", got)
	}
}
