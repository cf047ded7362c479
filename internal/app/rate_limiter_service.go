package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/guardgate/api/internal/config"
	"github.com/guardgate/api/internal/metrics"
	"github.com/guardgate/api/pkg/domain/ratelimit"
	"github.com/guardgate/api/pkg/logger"
)

// RateLimiterService evaluates requests against the fixed-window rules.
// The active rule set is swapped atomically on reload, so in-flight checks
// always see one consistent set.
//
// When the counter store is unreachable the configured failure policy
// applies. Fail-open admits requests but still throttles each identity
// through a local token bucket, so an outage degrades enforcement without
// suspending it. Fail-closed denies until the store returns.
type RateLimiterService struct {
	store ratelimit.CounterStore
	rules atomic.Pointer[ratelimit.RuleSet]

	failurePolicy config.FailurePolicy
	storeTimeout  time.Duration

	fallbackRate  rate.Limit
	fallbackBurst int
	fallbackMu    sync.Mutex
	fallback      map[string]*rate.Limiter

	clock  func() time.Time
	logger *logger.Logger
}

// NewRateLimiterService creates a rate limiter service.
func NewRateLimiterService(store ratelimit.CounterStore, rules *ratelimit.RuleSet, cfg config.GatewayConfig, log *logger.Logger) *RateLimiterService {
	s := &RateLimiterService{
		store:         store,
		failurePolicy: cfg.FailurePolicy,
		storeTimeout:  cfg.StoreTimeout,
		fallbackRate:  rate.Limit(cfg.FallbackRatePerSec),
		fallbackBurst: cfg.FallbackBurst,
		fallback:      make(map[string]*rate.Limiter),
		clock:         time.Now,
		logger:        log.With("service", "rate_limiter"),
	}
	s.rules.Store(rules)
	return s
}

// WithClock overrides the service clock. Test hook.
func (s *RateLimiterService) WithClock(now func() time.Time) *RateLimiterService {
	s.clock = now
	return s
}

// Rules returns the active rule set.
func (s *RateLimiterService) Rules() *ratelimit.RuleSet {
	return s.rules.Load()
}

// ReplaceRules atomically swaps the active rule set. Counters keyed under
// scopes that no longer exist simply expire with their windows.
func (s *RateLimiterService) ReplaceRules(rules *ratelimit.RuleSet) {
	s.rules.Store(rules)
	s.logger.Info("rate limit rules replaced",
		"endpoint_rules", len(rules.Endpoints()),
		"default_limit", rules.Default().Limit,
	)
}

// Check evaluates one request, consuming one unit of its quota. A deny is a
// successful evaluation, not an error.
func (s *RateLimiterService) Check(ctx context.Context, req ratelimit.Request) ratelimit.Verdict {
	rule := s.Rules().Resolve(req.Path)
	now := s.clock()
	key := ratelimit.CounterKey(rule.Scope, req.Identity(), ratelimit.WindowBucket(now, rule.Window))

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	count, ttl, err := s.store.Increment(storeCtx, key, rule.Window)
	if err != nil {
		return s.checkFallback(req, rule, err)
	}

	remaining := int(int64(rule.Max()) - count)
	if remaining < 0 {
		remaining = 0
	}

	if count > int64(rule.Max()) {
		metrics.RateLimitDenialsTotal.WithLabelValues(rule.Scope).Inc()
		s.logger.Debug("rate limit exceeded",
			"identity", req.Identity(),
			"scope", rule.Scope,
			"count", count,
			"limit", rule.Max(),
		)
		return ratelimit.Verdict{
			Decision:   ratelimit.DecisionDeny,
			Reason:     ratelimit.ReasonRateLimited,
			Rule:       rule,
			Remaining:  0,
			RetryAfter: ttl,
		}
	}

	return ratelimit.Verdict{
		Decision:  ratelimit.DecisionAllow,
		Reason:    ratelimit.ReasonWithinLimit,
		Rule:      rule,
		Remaining: remaining,
	}
}

// Status reports the current quota for a request without consuming it.
func (s *RateLimiterService) Status(ctx context.Context, req ratelimit.Request) (ratelimit.Verdict, error) {
	rule := s.Rules().Resolve(req.Path)
	now := s.clock()
	key := ratelimit.CounterKey(rule.Scope, req.Identity(), ratelimit.WindowBucket(now, rule.Window))

	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	count, err := s.store.Get(storeCtx, key)
	if err != nil {
		return ratelimit.Verdict{}, err
	}

	remaining := int(int64(rule.Max()) - count)
	if remaining < 0 {
		remaining = 0
	}
	verdict := ratelimit.Verdict{
		Decision:  ratelimit.DecisionAllow,
		Reason:    ratelimit.ReasonWithinLimit,
		Rule:      rule,
		Remaining: remaining,
	}
	if count > int64(rule.Max()) {
		verdict.Decision = ratelimit.DecisionDeny
		verdict.Reason = ratelimit.ReasonRateLimited
	}
	return verdict, nil
}

// checkFallback resolves a store failure through the failure policy.
func (s *RateLimiterService) checkFallback(req ratelimit.Request, rule ratelimit.Rule, err error) ratelimit.Verdict {
	if !errors.Is(err, ratelimit.ErrStoreUnavailable) && !errors.Is(err, context.DeadlineExceeded) {
		s.logger.Error("unexpected counter store error", "error", err)
	} else {
		s.logger.Warn("counter store unavailable",
			"policy", string(s.failurePolicy),
			"identity", req.Identity(),
			"error", err,
		)
	}
	metrics.FallbackDecisionsTotal.WithLabelValues(string(s.failurePolicy)).Inc()

	if s.failurePolicy == config.FailClosed {
		return ratelimit.Verdict{
			Decision:   ratelimit.DecisionDeny,
			Reason:     ratelimit.ReasonFailClosed,
			Rule:       rule,
			Remaining:  0,
			RetryAfter: time.Second,
		}
	}

	// Fail-open admits the request, but a local per-identity token bucket
	// still bounds abuse while the shared counters are unreachable. This
	// is degraded enforcement, not a bypass.
	if s.fallbackLimiter(req.Identity()).Allow() {
		return ratelimit.Verdict{
			Decision:  ratelimit.DecisionAllow,
			Reason:    ratelimit.ReasonFailOpen,
			Rule:      rule,
			Remaining: rule.Max(),
		}
	}
	return ratelimit.Verdict{
		Decision:   ratelimit.DecisionDeny,
		Reason:     ratelimit.ReasonRateLimited,
		Rule:       rule,
		Remaining:  0,
		RetryAfter: time.Second,
	}
}

func (s *RateLimiterService) fallbackLimiter(identity string) *rate.Limiter {
	s.fallbackMu.Lock()
	defer s.fallbackMu.Unlock()

	lim, ok := s.fallback[identity]
	if !ok {
		// Bound memory during long outages under identity churn.
		if len(s.fallback) >= maxFallbackIdentities {
			s.fallback = make(map[string]*rate.Limiter)
		}
		lim = rate.NewLimiter(s.fallbackRate, s.fallbackBurst)
		s.fallback[identity] = lim
	}
	return lim
}

// maxFallbackIdentities caps the local fallback limiter map.
const maxFallbackIdentities = 10000

// Healthy reports whether the counter store answers a ping.
func (s *RateLimiterService) Healthy(ctx context.Context) error {
	return s.store.Ping(ctx)
}
