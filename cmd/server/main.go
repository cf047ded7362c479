package main

import (
	"context"
	"flag"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/guardgate/api/internal/app"
	"github.com/guardgate/api/internal/config"
	"github.com/guardgate/api/internal/infra/http"
	"github.com/guardgate/api/internal/infra/http/handler"
	"github.com/guardgate/api/internal/infra/http/middleware"
	"github.com/guardgate/api/internal/infra/http/routes"
	"github.com/guardgate/api/internal/infra/jobs"
	"github.com/guardgate/api/internal/infra/memory"
	"github.com/guardgate/api/internal/infra/redis"
	"github.com/guardgate/api/internal/metrics"
	"github.com/guardgate/api/pkg/domain/accesslist"
	"github.com/guardgate/api/pkg/domain/ratelimit"
	"github.com/guardgate/api/pkg/domain/threat"
	"github.com/guardgate/api/pkg/logger"
	"github.com/guardgate/api/pkg/validator"
)

// Command line flags.
var (
	storeBackend = flag.String("store", "redis", "Backing store: redis, memory")
)

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	// ==========================================================================
	// Configuration & Logger
	// ==========================================================================
	cfg, err := config.Load()
	if err != nil {
		log := logger.NewDefault()
		log.Error("failed to load configuration", "error", err)
		return 1
	}

	log := initLogger(cfg)
	log.Info("starting application", "app", cfg.App.Name, "env", cfg.App.Env)

	// ==========================================================================
	// Stores
	// ==========================================================================
	var (
		counterStore ratelimit.CounterStore
		listRepo     accesslist.Repository
		eventStore   threat.Store
	)

	switch *storeBackend {
	case "memory":
		// Single-instance deployments only: counters and lists do not
		// survive a restart and are not shared across replicas.
		counterStore = memory.NewCounterStore()
		listRepo = memory.NewAccessListRepository()
		eventStore = memory.NewEventStore(int(cfg.Threat.MaxEvents))
		log.Warn("using in-memory stores, state will not survive a restart")
	case "redis":
		client, err := redis.New(&cfg.Redis, log)
		if err != nil {
			log.Error("failed to connect to redis", "error", err)
			return 1
		}
		defer closeWithLog(client, "redis", log)
		log.Info("redis connected", "addr", cfg.Redis.Addr())

		counterStore = redis.NewCounterStore(client)
		listRepo = redis.NewAccessListStore(client)
		eventStore = redis.NewEventStore(client, cfg.Threat.MaxEvents)
	default:
		log.Error("unknown store backend", "store", *storeBackend)
		return 1
	}

	// ==========================================================================
	// Rules
	// ==========================================================================
	rules, err := loadRules(cfg)
	if err != nil {
		log.Error("failed to load rate limit rules", "error", err, "file", cfg.Gateway.RulesFile)
		return 1
	}
	log.Info("rate limit rules loaded",
		"endpoint_rules", len(rules.Endpoints()),
		"default_limit", rules.Default().Limit,
	)

	// ==========================================================================
	// Services
	// ==========================================================================
	thresholds := threat.Thresholds{
		Low:    cfg.Threat.LevelLow,
		Medium: cfg.Threat.LevelMedium,
		High:   cfg.Threat.LevelHigh,
	}

	listService := app.NewAccessListService(listRepo, log)
	threatService := app.NewThreatService(eventStore, thresholds, cfg.Threat.Retention, log)
	limiterService := app.NewRateLimiterService(counterStore, rules, cfg.Gateway, log)
	gatewayService := app.NewGatewayService(listService, limiterService, threatService, log)

	// ==========================================================================
	// HTTP Server
	// ==========================================================================
	v := validator.New()
	server := http.NewServer(cfg, log)
	routes.Register(server.Router(), routes.Handlers{
		Health:     handler.NewHealthHandler(counterStore),
		Gateway:    handler.NewGatewayHandler(gatewayService, limiterService, listService, threatService, log),
		AccessList: handler.NewAccessListHandler(listService, v, log),
		Threat:     handler.NewThreatHandler(threatService, log),
		AdminAuth:  middleware.NewAdminAuth(cfg.Admin.APIKeys, log),
		Decision:   middleware.Gateway(gatewayService),
	})

	if err := server.Router().Walk(func(method, path string, _ nethttp.Handler) error {
		log.Debug("route registered", "method", method, "path", path)
		return nil
	}); err != nil {
		log.Warn("failed to walk routes", "error", err)
	}

	// ==========================================================================
	// Background Jobs
	// ==========================================================================
	sweeper := jobs.NewSweeper(listService, threatService, cfg.Sweep.Interval, log)
	if err := sweeper.Start(); err != nil {
		log.Error("failed to start sweeper", "error", err)
		return 1
	}
	defer sweeper.Stop()

	// SIGHUP reloads the rule file without dropping traffic. An invalid
	// file keeps the previous rule set.
	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	go func() {
		for range reload {
			next, err := loadRules(cfg)
			if err != nil {
				metrics.RuleReloadsTotal.WithLabelValues("failure").Inc()
				log.Error("rule reload failed, keeping previous rules",
					"error", err,
					"file", cfg.Gateway.RulesFile,
				)
				continue
			}
			limiterService.ReplaceRules(next)
			metrics.RuleReloadsTotal.WithLabelValues("success").Inc()
		}
	}()

	// ==========================================================================
	// Start Server
	// ==========================================================================
	go func() {
		if err := server.Start(); err != nil {
			log.Error("server error", "error", err)
		}
	}()
	log.Info("application started", "http_addr", cfg.Server.Addr())

	// ==========================================================================
	// Graceful Shutdown
	// ==========================================================================
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
		return 1
	}

	log.Info("application stopped")
	return 0
}

func initLogger(cfg *config.Config) *logger.Logger {
	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	log.SetDefault()
	return log
}

func loadRules(cfg *config.Config) (*ratelimit.RuleSet, error) {
	if cfg.Gateway.RulesFile == "" {
		return config.DefaultRuleSet(), nil
	}
	return config.LoadRuleSet(cfg.Gateway.RulesFile)
}

type closer interface {
	Close() error
}

func closeWithLog(c closer, name string, log *logger.Logger) {
	if err := c.Close(); err != nil {
		log.Error("failed to close "+name, "error", err)
	}
}
