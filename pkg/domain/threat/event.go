// Package threat provides the threat event and analysis domain model.
package threat

import (
	"fmt"
	"strings"
	"time"
)

// EventKind classifies a recorded policy violation.
type EventKind string

const (
	// KindRateLimitViolation is emitted when a request exceeds its rule.
	KindRateLimitViolation EventKind = "rate_limit_violation"

	// KindInvalidToken is emitted by the authentication collaborator when
	// a request carries a malformed or expired credential.
	KindInvalidToken EventKind = "invalid_token"

	// KindBlacklistedAccess is emitted when a blacklisted IP attempts a
	// request.
	KindBlacklistedAccess EventKind = "blacklisted_access"
)

// IsValid checks if the event kind is valid.
func (k EventKind) IsValid() bool {
	switch k {
	case KindRateLimitViolation, KindInvalidToken, KindBlacklistedAccess:
		return true
	default:
		return false
	}
}

// ParseEventKind parses a string into an EventKind.
func ParseEventKind(s string) (EventKind, error) {
	k := EventKind(strings.ToLower(s))
	if !k.IsValid() {
		return "", fmt.Errorf("unknown threat event kind %q", s)
	}
	return k, nil
}

// Event is one append-only policy violation record. Events are never
// mutated and are discarded after the retention window.
type Event struct {
	IP   string    `json:"ip"`
	Kind EventKind `json:"kind"`
	At   time.Time `json:"at"`
}
