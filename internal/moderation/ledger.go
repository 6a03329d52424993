package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// LedgerPrefix is the Redis key prefix for per-user moderation ledgers.
	// Each ledger is a hash with warning_count and suspended_until fields.
	LedgerPrefix = "mod:"

	// SuspensionDuration is how long a suspension lasts once the warning
	// count reaches SuspensionThreshold.
	SuspensionDuration = 7 * 24 * time.Hour

	// SuspensionThreshold is the warning count at which a suspension is
	// applied.
	SuspensionThreshold = 3
)

// Evaluation statuses returned by the ledger script.
const (
	statusAllowed   = 0 // message clean, no ledger change (beyond lazy expiry)
	statusEscalated = 1 // flagged: warning count incremented
	statusSuspended = 2 // active suspension: denied without increment
)

// Evaluation is the raw outcome of one atomic ledger evaluation.
type Evaluation struct {
	Status         int
	WarningCount   int       // count after the evaluation
	SuspendedUntil time.Time // zero unless a suspension is active
	ResetApplied   bool      // an expired suspension was cleared during this read
}

// Ledger stores per-user warning/suspension state in Redis. The whole
// evaluation — lazy expiry, suspension gate, escalation — runs as a single
// Lua script so two concurrent violations from the same user can never
// both observe the same warning count.
type Ledger struct {
	client     *redis.Client
	script     *redis.Script
	suspension time.Duration
}

// NewLedger creates a Ledger using the provided Redis client.
func NewLedger(client *redis.Client) *Ledger {
	return &Ledger{
		client:     client,
		script:     redis.NewScript(evaluateLua),
		suspension: SuspensionDuration,
	}
}

// Evaluate applies one message evaluation to the user's ledger at time now.
// flagged reports whether the content screener flagged the message body.
func (l *Ledger) Evaluate(ctx context.Context, userID string, flagged bool, now time.Time) (Evaluation, error) {
	key := LedgerPrefix + userID

	flaggedArg := 0
	if flagged {
		flaggedArg = 1
	}

	vals, err := l.script.Run(ctx, l.client, []string{key},
		now.Unix(), flaggedArg, int64(l.suspension.Seconds()), SuspensionThreshold).Int64Slice()
	if err != nil {
		return Evaluation{}, fmt.Errorf("moderation: ledger evaluate: %w", err)
	}
	if len(vals) != 4 {
		return Evaluation{}, fmt.Errorf("moderation: ledger script returned %d values, want 4", len(vals))
	}

	ev := Evaluation{
		Status:       int(vals[0]),
		WarningCount: int(vals[1]),
		ResetApplied: vals[3] == 1,
	}
	if vals[2] > 0 {
		ev.SuspendedUntil = time.Unix(vals[2], 0)
	}
	return ev, nil
}

// WarningCount reads the user's current warning count without applying any
// transition. Intended for administrative tooling; the send path always
// goes through Evaluate.
func (l *Ledger) WarningCount(ctx context.Context, userID string) (int, error) {
	count, err := l.client.HGet(ctx, LedgerPrefix+userID, "warning_count").Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("moderation: ledger read: %w", err)
	}
	return count, nil
}

// evaluateLua performs the full per-user evaluation atomically:
//
//  1. lazy expiry: a suspension whose deadline has passed resets the
//     ledger (warning_count=0, suspended_until cleared),
//  2. suspension gate: an active suspension denies without increment,
//  3. clean messages pass through,
//  4. flagged messages increment warning_count by exactly one; reaching
//     the threshold sets suspended_until.
//
// Returns {status, warning_count, suspended_until, reset_applied}.
const evaluateLua = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local flagged = tonumber(ARGV[2])
local suspension = tonumber(ARGV[3])
local threshold = tonumber(ARGV[4])

local count = tonumber(redis.call('HGET', key, 'warning_count') or '0')
local ends = tonumber(redis.call('HGET', key, 'suspended_until') or '0')
local reset = 0

if ends > 0 and ends <= now then
    count = 0
    ends = 0
    reset = 1
    redis.call('HSET', key, 'warning_count', 0)
    redis.call('HDEL', key, 'suspended_until')
end

if ends > now then
    return {2, count, ends, reset}
end

if flagged == 0 then
    return {0, count, 0, reset}
end

count = redis.call('HINCRBY', key, 'warning_count', 1)
if count >= threshold then
    ends = now + suspension
    redis.call('HSET', key, 'suspended_until', ends)
    return {1, count, ends, reset}
end
return {1, count, 0, reset}
`
