package ratelimit

import (
	"fmt"
	"time"
)

// Request describes one inbound request as seen by the gateway.
type Request struct {
	// ClientIP is the requester's IP address, without port.
	ClientIP string

	// PrincipalID is the authenticated principal, empty for anonymous
	// requests.
	PrincipalID string

	// Path is the target endpoint path.
	Path string

	// Method is the HTTP method.
	Method string
}

// Identity returns the rate limiting key for the request: the principal id
// when authenticated, otherwise the client IP. Keying on the principal
// prevents shared-IP starvation behind NATs and IP-based evasion.
func (r Request) Identity() string {
	if r.PrincipalID != "" {
		return "principal:" + r.PrincipalID
	}
	return "ip:" + r.ClientIP
}

// Decision is the outcome class of a gateway evaluation.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionDeny  Decision = "deny"
)

// Reason explains why a verdict was reached.
type Reason string

const (
	// ReasonWithinLimit means the request fit its rate limit rule.
	ReasonWithinLimit Reason = "within_limit"

	// ReasonRateLimited means the rule's limit was exhausted.
	ReasonRateLimited Reason = "rate_limited"

	// ReasonBlacklisted means the client IP holds an active deny entry.
	ReasonBlacklisted Reason = "blacklisted"

	// ReasonWhitelisted means the client IP holds an active allow entry
	// and bypassed the limiter.
	ReasonWhitelisted Reason = "whitelisted"

	// ReasonFailOpen means the counter store was unreachable and the
	// configured policy allowed the request.
	ReasonFailOpen Reason = "fail_open"

	// ReasonFailClosed means the counter store was unreachable and the
	// configured policy denied the request.
	ReasonFailClosed Reason = "fail_closed"
)

// Verdict is the result of evaluating one request. A deny is a successful
// evaluation with a negative outcome, never an error.
type Verdict struct {
	Decision Decision
	Reason   Reason

	// Rule is the rule that was applied, zero for list-based verdicts.
	Rule Rule

	// Remaining is the quota left in the current window. Only meaningful
	// for limiter verdicts.
	Remaining int

	// RetryAfter is how long the client should wait before retrying.
	// Set on rate-limited denials.
	RetryAfter time.Duration
}

// Allowed reports whether the verdict permits the request.
func (v Verdict) Allowed() bool {
	return v.Decision == DecisionAllow
}

// WindowBucket returns the fixed-window bucket index for the given instant.
func WindowBucket(now time.Time, window time.Duration) int64 {
	return now.UnixNano() / int64(window)
}

// CounterKey builds the composite counter key for (scope, identity, bucket).
func CounterKey(scope, identity string, bucket int64) string {
	return fmt.Sprintf("%s|%s|%d", scope, identity, bucket)
}
