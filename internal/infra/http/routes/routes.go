// Package routes registers all HTTP routes for the gateway admin API.
package routes

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"

	infrahttp "github.com/guardgate/api/internal/infra/http"
	"github.com/guardgate/api/internal/infra/http/handler"
	"github.com/guardgate/api/internal/infra/http/middleware"
	"github.com/guardgate/api/pkg/domain/accesslist"
)

// Middleware is an alias to the http package's Middleware type.
type Middleware = infrahttp.Middleware

// Router is an alias to the http package's Router interface.
type Router = infrahttp.Router

// Handlers holds all HTTP handlers for route registration.
type Handlers struct {
	Health     *handler.HealthHandler
	Gateway    *handler.GatewayHandler
	AccessList *handler.AccessListHandler
	Threat     *handler.ThreatHandler

	// AdminAuth guards all mutating admin endpoints.
	AdminAuth *middleware.AdminAuth

	// Decision, when set, runs the gateway decision middleware in front
	// of the admin API so the gateway protects its own surface.
	// Operational endpoints stay outside it.
	Decision Middleware
}

// Register registers all application routes. Route definitions live in the
// infrastructure layer, not in main.
//
// Read endpoints (stats, analysis, list contents) are open; every mutation
// requires an admin API key.
func Register(router Router, h Handlers) {
	// Operational endpoints (public).
	router.GET("/health", h.Health.Health)
	router.GET("/ready", h.Health.Ready)
	router.GET("/metrics", promhttp.Handler().ServeHTTP)

	adminAuth := Middleware(h.AdminAuth.Authenticate)

	var groupMiddlewares []Middleware
	if h.Decision != nil {
		groupMiddlewares = append(groupMiddlewares, h.Decision)
	}

	router.Group("/api/v1/gateway", func(r Router) {
		r.GET("/stats", h.Gateway.Stats)
		r.POST("/test-rate-limit", h.Gateway.TestRateLimit)

		r.GET("/threats/analysis", h.Threat.Analysis)

		// Delete routes use a wildcard so CIDR values with slashes
		// survive routing.
		r.GET("/blacklist", h.AccessList.List(accesslist.KindDeny))
		r.POST("/blacklist", h.AccessList.Add(accesslist.KindDeny), adminAuth)
		r.DELETE("/blacklist/*", h.AccessList.Remove(accesslist.KindDeny), adminAuth)

		r.GET("/whitelist", h.AccessList.List(accesslist.KindAllow))
		r.POST("/whitelist", h.AccessList.Add(accesslist.KindAllow), adminAuth)
		r.DELETE("/whitelist/*", h.AccessList.Remove(accesslist.KindAllow), adminAuth)
	}, groupMiddlewares...)
}
