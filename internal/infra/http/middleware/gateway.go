package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"github.com/guardgate/api/internal/app"
	"github.com/guardgate/api/pkg/apierror"
	"github.com/guardgate/api/pkg/domain/ratelimit"
	"github.com/guardgate/api/pkg/logger"
)

// PrincipalIDKey carries the authenticated principal through the request
// context. The authentication layer in front of the gateway sets it.
const PrincipalIDKey logger.ContextKey = "principal_id"

// PrincipalIDHeader is the trusted header carrying the principal identity
// when authentication terminates upstream of this process.
const PrincipalIDHeader = "X-Principal-ID"

// WithPrincipalID returns a context carrying the principal identity.
func WithPrincipalID(ctx context.Context, principalID string) context.Context {
	return context.WithValue(ctx, PrincipalIDKey, principalID)
}

// GetPrincipalID extracts the principal identity from context.
func GetPrincipalID(ctx context.Context) string {
	if id, ok := ctx.Value(PrincipalIDKey).(string); ok {
		return id
	}
	return ""
}

// Gateway evaluates every request through the decision engine before it
// reaches the protected handler. Denied requests are answered here: 403 for
// blacklisted clients, 429 with Retry-After for exhausted quotas.
func Gateway(gateway *app.GatewayService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := RequestFromHTTP(r)
			verdict := gateway.Decide(r.Context(), req)

			if verdict.Rule.Scope != "" {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(verdict.Rule.Max()))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(verdict.Remaining))
			}

			if verdict.Allowed() {
				next.ServeHTTP(w, r)
				return
			}

			switch verdict.Reason {
			case ratelimit.ReasonBlacklisted:
				apierror.Forbidden("access denied").WriteJSON(w)
			default:
				if verdict.RetryAfter > 0 {
					seconds := int(verdict.RetryAfter.Seconds())
					if seconds < 1 {
						seconds = 1
					}
					w.Header().Set("Retry-After", strconv.Itoa(seconds))
				}
				apierror.RateLimitExceeded().WriteJSON(w)
			}
		})
	}
}

// RequestFromHTTP builds the decision engine request for an HTTP request.
// The principal comes from the request context when the in-process auth
// layer set it, falling back to the trusted upstream header.
func RequestFromHTTP(r *http.Request) ratelimit.Request {
	principal := GetPrincipalID(r.Context())
	if principal == "" {
		principal = r.Header.Get(PrincipalIDHeader)
	}

	return ratelimit.Request{
		ClientIP:    clientIP(r),
		PrincipalID: principal,
		Path:        r.URL.Path,
		Method:      r.Method,
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
