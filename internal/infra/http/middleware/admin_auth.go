package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/guardgate/api/pkg/apierror"
	"github.com/guardgate/api/pkg/logger"
)

// AdminAPIKeyHeader is the header name for admin API key authentication.
const AdminAPIKeyHeader = "X-Admin-API-Key"

// AdminAuth guards the mutating admin endpoints with static API keys.
// Comparison is constant time. With no keys configured every request is
// rejected, so an unconfigured production deployment fails safe.
type AdminAuth struct {
	keys   [][]byte
	logger *logger.Logger
}

// NewAdminAuth creates an admin auth middleware accepting the given keys.
func NewAdminAuth(keys []string, log *logger.Logger) *AdminAuth {
	hashed := make([][]byte, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			hashed = append(hashed, []byte(k))
		}
	}
	return &AdminAuth{
		keys:   hashed,
		logger: log.With("middleware", "admin_auth"),
	}
}

// Authenticate validates the admin API key.
func (m *AdminAuth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get(AdminAPIKeyHeader)
		if apiKey == "" {
			// Also accept Authorization with Bearer scheme.
			authHeader := r.Header.Get("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				apiKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if apiKey == "" {
			m.logger.Debug("admin auth: missing API key", "path", r.URL.Path)
			apierror.Unauthorized("missing admin API key").WriteJSON(w)
			return
		}

		if !m.matches(apiKey) {
			m.logger.Warn("admin auth: invalid API key",
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)
			apierror.Unauthorized("invalid admin API key").WriteJSON(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *AdminAuth) matches(apiKey string) bool {
	candidate := []byte(apiKey)
	ok := false
	for _, key := range m.keys {
		if len(key) == len(candidate) && subtle.ConstantTimeCompare(key, candidate) == 1 {
			ok = true
		}
	}
	return ok
}
