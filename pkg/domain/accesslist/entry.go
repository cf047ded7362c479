// Package accesslist provides the allow/deny list domain model.
package accesslist

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes whitelist (allow) from blacklist (deny) entries.
type Kind string

const (
	KindAllow Kind = "allow"
	KindDeny  Kind = "deny"
)

// IsValid checks if the kind is valid.
func (k Kind) IsValid() bool {
	return k == KindAllow || k == KindDeny
}

// ParseKind parses a string into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(s))
	if !k.IsValid() {
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidInput, s)
	}
	return k, nil
}

// Entry is one allow or deny list entry. Entries target a single IP or a
// CIDR range and may carry an expiry; a nil ExpiresAt means permanent.
type Entry struct {
	ID        string     `json:"id"`
	IP        string     `json:"ip"`
	Kind      Kind       `json:"kind"`
	Reason    string     `json:"reason,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// NewEntry creates a new entry expiring after ttl. ip must be a syntactically
// valid IP address or CIDR range; ttl must be positive. Permanent entries are
// created explicitly through NewPermanentEntry.
func NewEntry(ip string, kind Kind, reason string, ttl time.Duration, now time.Time) (*Entry, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrInvalidInput)
	}

	e, err := NewPermanentEntry(ip, kind, reason, now)
	if err != nil {
		return nil, err
	}
	expires := now.UTC().Add(ttl)
	e.ExpiresAt = &expires
	return e, nil
}

// NewPermanentEntry creates an entry with no expiry.
func NewPermanentEntry(ip string, kind Kind, reason string, now time.Time) (*Entry, error) {
	normalized, err := NormalizeIP(ip)
	if err != nil {
		return nil, err
	}
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidInput, kind)
	}

	return &Entry{
		ID:        uuid.New().String(),
		IP:        normalized,
		Kind:      kind,
		Reason:    reason,
		CreatedAt: now.UTC(),
	}, nil
}

// Active reports whether the entry is in effect at the given instant.
// Expired entries behave exactly like absent entries.
func (e *Entry) Active(now time.Time) bool {
	return e.ExpiresAt == nil || e.ExpiresAt.After(now)
}

// IsCIDR reports whether the entry targets a range rather than a single IP.
func (e *Entry) IsCIDR() bool {
	return strings.Contains(e.IP, "/")
}

// Matches reports whether the entry covers the given IP. Single-IP entries
// match by equality, CIDR entries by containment.
func (e *Entry) Matches(ip string) bool {
	if !e.IsCIDR() {
		return e.IP == ip
	}

	_, network, err := net.ParseCIDR(e.IP)
	if err != nil {
		return false
	}
	parsed := net.ParseIP(ip)
	return parsed != nil && network.Contains(parsed)
}

// NormalizeIP validates and canonicalizes an IP address or CIDR range.
func NormalizeIP(ip string) (string, error) {
	trimmed := strings.TrimSpace(ip)
	if trimmed == "" {
		return "", fmt.Errorf("%w: ip is required", ErrInvalidInput)
	}

	if strings.Contains(trimmed, "/") {
		_, network, err := net.ParseCIDR(trimmed)
		if err != nil {
			return "", fmt.Errorf("%w: %q is not a valid CIDR range", ErrInvalidInput, ip)
		}
		return network.String(), nil
	}

	parsed := net.ParseIP(trimmed)
	if parsed == nil {
		return "", fmt.Errorf("%w: %q is not a valid IP address", ErrInvalidInput, ip)
	}
	return parsed.String(), nil
}
