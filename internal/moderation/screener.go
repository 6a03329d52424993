// Package moderation screens message content and maintains the per-user
// warning/suspension ledger that gates message delivery. A flagged message
// escalates the sender through warning, final warning and a timed
// suspension; suspensions expire lazily on the next evaluation.
package moderation

import "strings"

// Screener classifies a message body. Implementations must be pure and
// safe for concurrent use so a richer classifier can replace the default
// denylist without touching callers.
type Screener interface {
	// Screen returns the matched term and true if the text violates
	// policy, or "" and false if it is clean.
	Screen(text string) (term string, flagged bool)
}

// DenyList flags any message containing a configured term as a
// case-insensitive substring. There is deliberately no word-boundary
// check: "SPAMMER" matches the entry "spam". That over-matching is the
// documented behavior, not a defect.
type DenyList struct {
	terms []string // lowercased at construction
}

// DefaultDenyTerms is the built-in denylist used when no custom list is
// configured. Kept short here; production deployments load a curated list.
var DefaultDenyTerms = []string{
	"spam",
	"scam",
	"idiot",
	"stupid",
}

// NewDenyList builds a DenyList from the given terms. Terms are lowercased
// and blank entries dropped.
func NewDenyList(terms []string) *DenyList {
	cleaned := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			cleaned = append(cleaned, t)
		}
	}
	return &DenyList{terms: cleaned}
}

// Screen reports the first denylist term found as a substring of the
// lowercased text.
func (d *DenyList) Screen(text string) (string, bool) {
	lowered := strings.ToLower(text)
	for _, term := range d.terms {
		if strings.Contains(lowered, term) {
			return term, true
		}
	}
	return "", false
}
