package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/guardgate/api/internal/app"
	"github.com/guardgate/api/internal/infra/http/middleware"
	"github.com/guardgate/api/pkg/apierror"
	"github.com/guardgate/api/pkg/domain/accesslist"
	"github.com/guardgate/api/pkg/domain/ratelimit"
	"github.com/guardgate/api/pkg/logger"
)

// GatewayHandler serves the gateway introspection endpoints.
type GatewayHandler struct {
	gateway     *app.GatewayService
	rateLimiter *app.RateLimiterService
	accessLists *app.AccessListService
	threats     *app.ThreatService
	logger      *logger.Logger
}

// NewGatewayHandler creates a new GatewayHandler.
func NewGatewayHandler(gateway *app.GatewayService, limiter *app.RateLimiterService, lists *app.AccessListService, threats *app.ThreatService, log *logger.Logger) *GatewayHandler {
	return &GatewayHandler{
		gateway:     gateway,
		rateLimiter: limiter,
		accessLists: lists,
		threats:     threats,
		logger:      log.With("handler", "gateway"),
	}
}

// RuleResponse is the JSON shape of one rate limit rule.
type RuleResponse struct {
	Scope   string `json:"scope"`
	Pattern string `json:"pattern,omitempty"`
	Limit   int    `json:"limit"`
	Window  string `json:"window"`
	Burst   int    `json:"burst,omitempty"`
}

// StatsResponse summarizes the gateway's current state.
type StatsResponse struct {
	GeneratedAt    time.Time      `json:"generated_at"`
	StoreConnected bool           `json:"store_connected"`
	DefaultRule    RuleResponse   `json:"default_rule"`
	EndpointRules  []RuleResponse `json:"endpoint_rules"`
	BlacklistSize  int            `json:"blacklist_size"`
	WhitelistSize  int            `json:"whitelist_size"`
	ThreatLevel    string         `json:"threat_level"`
	Threats24h     int            `json:"threats_24h"`
}

func toRuleResponse(r ratelimit.Rule) RuleResponse {
	return RuleResponse{
		Scope:   r.Scope,
		Pattern: r.Pattern,
		Limit:   r.Limit,
		Window:  r.Window.String(),
		Burst:   r.Burst,
	}
}

// Stats handles GET /api/v1/gateway/stats. A store outage degrades the
// response (store_connected false, zeroed sections) instead of failing it.
func (h *GatewayHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rules := h.rateLimiter.Rules()
	endpoints := rules.Endpoints()
	endpointResponses := make([]RuleResponse, len(endpoints))
	for i, ep := range endpoints {
		endpointResponses[i] = toRuleResponse(ep)
	}

	resp := StatsResponse{
		GeneratedAt:    time.Now().UTC(),
		StoreConnected: h.rateLimiter.Healthy(ctx) == nil,
		DefaultRule:    toRuleResponse(rules.Default()),
		EndpointRules:  endpointResponses,
	}

	if denied, err := h.accessLists.List(ctx, accesslist.KindDeny); err != nil {
		h.logger.Warn("stats: blacklist listing failed", "error", err)
	} else {
		resp.BlacklistSize = len(denied)
	}
	if allowed, err := h.accessLists.List(ctx, accesslist.KindAllow); err != nil {
		h.logger.Warn("stats: whitelist listing failed", "error", err)
	} else {
		resp.WhitelistSize = len(allowed)
	}
	if analysis, err := h.threats.Analyze(ctx, 24*time.Hour); err != nil {
		h.logger.Warn("stats: threat analysis failed", "error", err)
	} else {
		resp.ThreatLevel = string(analysis.Level)
		resp.Threats24h = analysis.TotalThreats
	}

	writeJSONResponse(w, http.StatusOK, resp)
}

// TestRateLimitRequest optionally overrides the evaluated path and method.
type TestRateLimitRequest struct {
	Path   string `json:"path"`
	Method string `json:"method"`
}

// VerdictResponse is the JSON shape of one evaluation verdict.
type VerdictResponse struct {
	Decision   string       `json:"decision"`
	Reason     string       `json:"reason"`
	Rule       RuleResponse `json:"rule,omitempty"`
	Remaining  int          `json:"remaining"`
	RetryAfter string       `json:"retry_after,omitempty"`
}

func toVerdictResponse(v ratelimit.Verdict) VerdictResponse {
	resp := VerdictResponse{
		Decision:  string(v.Decision),
		Reason:    string(v.Reason),
		Remaining: v.Remaining,
	}
	if v.Rule.Scope != "" {
		resp.Rule = toRuleResponse(v.Rule)
	}
	if v.RetryAfter > 0 {
		resp.RetryAfter = v.RetryAfter.String()
	}
	return resp
}

// TestRateLimit handles POST /api/v1/gateway/test-rate-limit. It runs one
// real evaluation against the caller's own identity, consuming quota like
// any other request.
func (h *GatewayHandler) TestRateLimit(w http.ResponseWriter, r *http.Request) {
	req := middleware.RequestFromHTTP(r)

	var body TestRateLimitRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			apierror.BadRequest("invalid JSON body").WriteJSON(w)
			return
		}
	}
	if body.Path != "" {
		req.Path = body.Path
	}
	if body.Method != "" {
		req.Method = body.Method
	}

	verdict := h.gateway.Decide(r.Context(), req)
	writeJSONResponse(w, http.StatusOK, toVerdictResponse(verdict))
}
