package moderation

import "fmt"

// Action identifies a moderation ledger transition, as recorded in the
// moderation log.
type Action string

const (
	ActionWarning           Action = "warning"
	ActionFinalWarning      Action = "final_warning"
	ActionSuspension        Action = "suspension"
	ActionSuspensionRemoved Action = "suspension_removed"
)

// Denial reasons returned to the sender.
const (
	ReasonWarning      = "warning"
	ReasonFinalWarning = "final_warning"
	ReasonSuspension   = "suspension"
	ReasonUnavailable  = "moderation_unavailable"
)

// Decision is the outcome of evaluating one message against the sender's
// moderation ledger.
type Decision struct {
	Allowed       bool
	Reason        string // set when denied
	PolicyMessage string // human-readable text for the client
	WarningCount  int    // sender's warning count after the evaluation
	DaysRemaining int    // set when denied due to an active suspension
}

// actionForCount maps a post-increment warning count to the log action.
func actionForCount(count int) Action {
	switch {
	case count <= 1:
		return ActionWarning
	case count == 2:
		return ActionFinalWarning
	default:
		return ActionSuspension
	}
}

// policyMessage returns the client-facing text for a denial.
func policyMessage(reason string, warningCount, daysRemaining int) string {
	switch reason {
	case ReasonWarning:
		return fmt.Sprintf("Your message was blocked for violating community guidelines. Warning %d of 2.", warningCount)
	case ReasonFinalWarning:
		return "Your message was blocked. This is your final warning: one more violation suspends your account."
	case ReasonSuspension:
		if daysRemaining > 0 {
			return fmt.Sprintf("Your account is suspended. %d day(s) remaining.", daysRemaining)
		}
		return "Your account has been suspended for 7 days."
	case ReasonUnavailable:
		return "Messages cannot be sent right now. Please try again later."
	}
	return "Your message was blocked."
}
