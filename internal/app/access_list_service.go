package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/guardgate/api/internal/metrics"
	"github.com/guardgate/api/pkg/domain/accesslist"
	"github.com/guardgate/api/pkg/logger"
)

// AccessListService manages the operator-facing allow and deny lists and
// answers the gateway's per-request list lookups. Deny always wins: an IP
// on both lists is treated as denied, and adding an allow entry for an IP
// with an active deny entry is rejected.
type AccessListService struct {
	repo   accesslist.Repository
	clock  func() time.Time
	logger *logger.Logger
}

// NewAccessListService creates an access list service.
func NewAccessListService(repo accesslist.Repository, log *logger.Logger) *AccessListService {
	return &AccessListService{
		repo:   repo,
		clock:  time.Now,
		logger: log.With("service", "access_list"),
	}
}

// WithClock overrides the service clock. Test hook.
func (s *AccessListService) WithClock(now func() time.Time) *AccessListService {
	s.clock = now
	return s
}

// ListVerdict classifies an IP against both lists.
type ListVerdict int

const (
	// ListNeutral means no active entry covers the IP.
	ListNeutral ListVerdict = iota

	// ListDenied means an active deny entry covers the IP.
	ListDenied

	// ListAllowed means an active allow entry covers the IP and no deny
	// entry does.
	ListAllowed
)

// Add creates or replaces an entry expiring after ttl. A non-positive ttl is
// rejected with accesslist.ErrInvalidInput; permanent entries go through
// AddPermanent. Adding an allow entry for an IP covered by an active deny
// entry returns accesslist.ErrDenyPrecedence.
func (s *AccessListService) Add(ctx context.Context, kind accesslist.Kind, ip, reason string, ttl time.Duration) (*accesslist.Entry, error) {
	entry, err := accesslist.NewEntry(ip, kind, reason, ttl, s.clock())
	if err != nil {
		return nil, err
	}
	return s.store(ctx, entry)
}

// AddPermanent creates or replaces an entry with no expiry. Permanence is a
// deliberate operator action, never the fallout of a zero duration.
func (s *AccessListService) AddPermanent(ctx context.Context, kind accesslist.Kind, ip, reason string) (*accesslist.Entry, error) {
	entry, err := accesslist.NewPermanentEntry(ip, kind, reason, s.clock())
	if err != nil {
		return nil, err
	}
	return s.store(ctx, entry)
}

func (s *AccessListService) store(ctx context.Context, entry *accesslist.Entry) (*accesslist.Entry, error) {
	now := s.clock()
	kind := entry.Kind

	if kind == accesslist.KindAllow {
		if denied, err := s.activeEntry(ctx, accesslist.KindDeny, entry.IP, now); err != nil {
			return nil, err
		} else if denied != nil {
			return nil, fmt.Errorf("%w: %s has an active deny entry", accesslist.ErrDenyPrecedence, entry.IP)
		}
	}

	// A new deny supersedes an exact-match allow entry. CIDR allows stay;
	// the deny still wins at evaluation time.
	if kind == accesslist.KindDeny {
		if allowed, err := s.activeEntry(ctx, accesslist.KindAllow, entry.IP, now); err != nil {
			return nil, err
		} else if allowed != nil && allowed.IP == entry.IP {
			if err := s.repo.Remove(ctx, accesslist.KindAllow, allowed.IP); err != nil && !errors.Is(err, accesslist.ErrEntryNotFound) {
				return nil, fmt.Errorf("remove superseded allow entry: %w", err)
			}
			s.logger.Info("allow entry superseded by deny", "ip", allowed.IP, "reason", entry.Reason)
		}
	}

	if err := s.repo.Upsert(ctx, entry); err != nil {
		return nil, fmt.Errorf("add %s entry: %w", kind, err)
	}

	metrics.AccessListMutationsTotal.WithLabelValues(string(kind), "add").Inc()
	s.logger.Info("access list entry added",
		"kind", string(kind),
		"ip", entry.IP,
		"reason", entry.Reason,
		"expires_at", entry.ExpiresAt,
	)
	return entry, nil
}

// Remove deletes the exact entry for (kind, ip).
func (s *AccessListService) Remove(ctx context.Context, kind accesslist.Kind, ip string) error {
	normalized, err := accesslist.NormalizeIP(ip)
	if err != nil {
		return err
	}

	if err := s.repo.Remove(ctx, kind, normalized); err != nil {
		return err
	}

	metrics.AccessListMutationsTotal.WithLabelValues(string(kind), "remove").Inc()
	s.logger.Info("access list entry removed", "kind", string(kind), "ip", normalized)
	return nil
}

// List returns the active entries of the given kind. Expired entries are
// filtered out; the sweeper removes them from storage.
func (s *AccessListService) List(ctx context.Context, kind accesslist.Kind) ([]*accesslist.Entry, error) {
	entries, err := s.repo.List(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("list %s entries: %w", kind, err)
	}

	now := s.clock()
	active := make([]*accesslist.Entry, 0, len(entries))
	for _, entry := range entries {
		if entry.Active(now) {
			active = append(active, entry)
		}
	}
	metrics.AccessListEntries.WithLabelValues(string(kind)).Set(float64(len(active)))
	return active, nil
}

// Evaluate classifies ip against both lists, deny first. Lookup failures
// are returned; the gateway decides how to degrade.
func (s *AccessListService) Evaluate(ctx context.Context, ip string) (ListVerdict, *accesslist.Entry, error) {
	now := s.clock()

	if entry, err := s.activeEntry(ctx, accesslist.KindDeny, ip, now); err != nil {
		return ListNeutral, nil, err
	} else if entry != nil {
		return ListDenied, entry, nil
	}

	if entry, err := s.activeEntry(ctx, accesslist.KindAllow, ip, now); err != nil {
		return ListNeutral, nil, err
	} else if entry != nil {
		return ListAllowed, entry, nil
	}

	return ListNeutral, nil, nil
}

// activeEntry returns the active entry of kind covering ip, nil when none.
// The repository filters expiry, so whatever comes back is in effect.
func (s *AccessListService) activeEntry(ctx context.Context, kind accesslist.Kind, ip string, now time.Time) (*accesslist.Entry, error) {
	entry, err := s.repo.Find(ctx, kind, ip, now)
	if errors.Is(err, accesslist.ErrEntryNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find %s entry: %w", kind, err)
	}
	return entry, nil
}

// SweepExpired removes entries whose expiry passed and returns the count.
func (s *AccessListService) SweepExpired(ctx context.Context) (int64, error) {
	removed, err := s.repo.RemoveExpired(ctx, s.clock())
	if err != nil {
		return 0, fmt.Errorf("sweep expired entries: %w", err)
	}
	if removed > 0 {
		metrics.AccessListExpiredTotal.Add(float64(removed))
		s.logger.Info("expired access list entries removed", "count", removed)
	}
	return removed, nil
}
