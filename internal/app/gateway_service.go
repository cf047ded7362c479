package app

import (
	"context"
	"time"

	"github.com/guardgate/api/internal/metrics"
	"github.com/guardgate/api/pkg/domain/ratelimit"
	"github.com/guardgate/api/pkg/domain/threat"
	"github.com/guardgate/api/pkg/logger"
)

// GatewayService is the single decision point for inbound requests. The
// evaluation order is fixed: deny list, then allow list, then the rate
// limiter. Violations feed the threat log as a side effect and never block
// the decision itself.
type GatewayService struct {
	accessLists *AccessListService
	rateLimiter *RateLimiterService
	threats     *ThreatService
	logger      *logger.Logger
}

// NewGatewayService creates the gateway decision facade.
func NewGatewayService(lists *AccessListService, limiter *RateLimiterService, threats *ThreatService, log *logger.Logger) *GatewayService {
	return &GatewayService{
		accessLists: lists,
		rateLimiter: limiter,
		threats:     threats,
		logger:      log.With("service", "gateway"),
	}
}

// Decide evaluates one request and returns the verdict. A deny is a normal
// outcome; errors never escape, list lookup failures degrade to the rate
// limiter path.
func (s *GatewayService) Decide(ctx context.Context, req ratelimit.Request) ratelimit.Verdict {
	start := time.Now()
	verdict := s.decide(ctx, req)

	metrics.DecisionDuration.Observe(time.Since(start).Seconds())
	metrics.DecisionsTotal.WithLabelValues(string(verdict.Decision), string(verdict.Reason)).Inc()

	if !verdict.Allowed() {
		s.logger.Info("request denied",
			"ip", req.ClientIP,
			"identity", req.Identity(),
			"path", req.Path,
			"reason", string(verdict.Reason),
			"retry_after", verdict.RetryAfter,
		)
	}
	return verdict
}

func (s *GatewayService) decide(ctx context.Context, req ratelimit.Request) ratelimit.Verdict {
	listVerdict, _, err := s.accessLists.Evaluate(ctx, req.ClientIP)
	if err != nil {
		// A broken list store must not take the gateway down. Fall
		// through to the limiter, which has its own failure policy.
		s.logger.Warn("access list lookup failed, degrading to limiter",
			"ip", req.ClientIP,
			"error", err,
		)
		listVerdict = ListNeutral
	}

	switch listVerdict {
	case ListDenied:
		s.threats.Record(req.ClientIP, threat.KindBlacklistedAccess)
		return ratelimit.Verdict{
			Decision: ratelimit.DecisionDeny,
			Reason:   ratelimit.ReasonBlacklisted,
		}
	case ListAllowed:
		return ratelimit.Verdict{
			Decision: ratelimit.DecisionAllow,
			Reason:   ratelimit.ReasonWhitelisted,
		}
	}

	verdict := s.rateLimiter.Check(ctx, req)
	if verdict.Reason == ratelimit.ReasonRateLimited {
		s.threats.Record(req.ClientIP, threat.KindRateLimitViolation)
	}
	return verdict
}

// ReportInvalidToken records a credential violation observed by the
// authentication layer.
func (s *GatewayService) ReportInvalidToken(ip string) {
	s.threats.Record(ip, threat.KindInvalidToken)
}

// Status reports the remaining quota for a request without consuming it.
func (s *GatewayService) Status(ctx context.Context, req ratelimit.Request) (ratelimit.Verdict, error) {
	return s.rateLimiter.Status(ctx, req)
}
