// Package ratelimit provides the rate limiting domain model: rules, scope
// resolution, request identities and the counter store contract.
package ratelimit

import (
	"fmt"
	"strings"
	"time"
)

// ScopeDefault is the scope applied when no endpoint rule matches.
const ScopeDefault = "global-default"

// Rule defines a rate limit for a scope: at most Limit requests (plus Burst
// tolerance) per fixed Window.
type Rule struct {
	// Scope is "global-default" or "endpoint:<pattern>".
	Scope string

	// Pattern is the endpoint path pattern for endpoint rules. An exact
	// path, or a prefix ending in '*'. Empty for the default rule.
	Pattern string

	// Limit is the maximum number of requests per window.
	Limit int

	// Window is the fixed counting window.
	Window time.Duration

	// Burst is an optional tolerance added on top of Limit.
	Burst int
}

// Validate checks that the rule is well formed.
func (r Rule) Validate() error {
	if r.Limit <= 0 {
		return fmt.Errorf("rule %q: limit must be positive", r.Scope)
	}
	if r.Window <= 0 {
		return fmt.Errorf("rule %q: window must be positive", r.Scope)
	}
	if r.Burst < 0 {
		return fmt.Errorf("rule %q: burst must not be negative", r.Scope)
	}
	return nil
}

// Max returns the effective ceiling for the rule (limit plus burst).
func (r Rule) Max() int {
	return r.Limit + r.Burst
}

// Matches reports whether the rule's pattern applies to the given path.
// The default rule matches everything.
func (r Rule) Matches(path string) bool {
	if r.Scope == ScopeDefault {
		return true
	}
	if strings.HasSuffix(r.Pattern, "*") {
		return strings.HasPrefix(path, strings.TrimSuffix(r.Pattern, "*"))
	}
	return path == r.Pattern
}

// specificity orders endpoint rules: longer patterns are more specific.
// Exact patterns beat a wildcard pattern of the same prefix length because
// the trailing '*' is not counted.
func (r Rule) specificity() int {
	return len(strings.TrimSuffix(r.Pattern, "*"))
}

// RuleSet holds the default rule and the ordered endpoint overrides.
// Endpoint rules are kept in declaration order; when two patterns tie on
// specificity the earlier declaration wins.
type RuleSet struct {
	def       Rule
	endpoints []Rule
}

// NewRuleSet builds a RuleSet from a default rule and endpoint overrides.
// Endpoint rule order is preserved for tie breaking.
func NewRuleSet(def Rule, endpoints []Rule) (*RuleSet, error) {
	def.Scope = ScopeDefault
	def.Pattern = ""
	if err := def.Validate(); err != nil {
		return nil, err
	}

	eps := make([]Rule, 0, len(endpoints))
	seen := make(map[string]bool, len(endpoints))
	for _, ep := range endpoints {
		if ep.Pattern == "" {
			return nil, fmt.Errorf("endpoint rule requires a pattern")
		}
		if seen[ep.Pattern] {
			return nil, fmt.Errorf("duplicate endpoint pattern %q", ep.Pattern)
		}
		seen[ep.Pattern] = true
		ep.Scope = "endpoint:" + ep.Pattern
		if err := ep.Validate(); err != nil {
			return nil, err
		}
		eps = append(eps, ep)
	}

	return &RuleSet{def: def, endpoints: eps}, nil
}

// Default returns the global default rule.
func (rs *RuleSet) Default() Rule {
	return rs.def
}

// Endpoints returns the endpoint rules in declaration order.
func (rs *RuleSet) Endpoints() []Rule {
	out := make([]Rule, len(rs.endpoints))
	copy(out, rs.endpoints)
	return out
}

// Resolve returns the rule applicable to the given path: the most specific
// matching endpoint rule, or the default rule when none matches. Ties on
// specificity are broken by declaration order, first wins.
func (rs *RuleSet) Resolve(path string) Rule {
	best := rs.def
	bestSpec := -1
	for _, ep := range rs.endpoints {
		if !ep.Matches(path) {
			continue
		}
		if spec := ep.specificity(); spec > bestSpec {
			best = ep
			bestSpec = spec
		}
	}
	return best
}
