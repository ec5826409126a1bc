package main

import (
	"flag"
	"log"

	"go.uber.org/zap"

	"github.com/quantarc/ordergate/internal/auth"
	"github.com/quantarc/ordergate/internal/config"
	"github.com/quantarc/ordergate/internal/domain/event"
	"github.com/quantarc/ordergate/internal/eventstore"
	"github.com/quantarc/ordergate/internal/execution"
	"github.com/quantarc/ordergate/internal/handlers"
	"github.com/quantarc/ordergate/internal/metrics"
	"github.com/quantarc/ordergate/internal/risk"
	"github.com/quantarc/ordergate/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg.Server.Environment)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("starting order gateway",
		zap.String("version", cfg.Server.Version),
		zap.String("environment", cfg.Server.Environment),
	)

	collector := metrics.NewCollector()

	store := eventstore.New(
		logger.Named("eventstore"),
		eventstore.WithAppendHook(func(event.Event) { collector.EventAppended() }),
	)

	riskEngine := risk.NewEngine(store, cfg.Risk, logger.Named("risk"))

	venue := execution.NewSimulatedVenue(cfg.Execution.VenueLatency, cfg.Execution.VenueSuccessRate)
	execEngine := execution.NewEngine(store, riskEngine, venue, execution.Config{
		MaxRetryAttempts: cfg.Execution.MaxRetryAttempts,
		BackoffBase:      cfg.Execution.BackoffBase,
		BreakerThreshold: cfg.Execution.BreakerThreshold,
		BreakerCooldown:  cfg.Execution.BreakerCooldown,
	}, logger.Named("execution"), collector)
	defer execEngine.Close()

	authManager := auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry, logger.Named("auth"))
	for _, u := range cfg.Auth.Users {
		role, err := auth.ParseRole(u.Role)
		if err != nil {
			logger.Fatal("invalid seed user role",
				zap.String("username", u.Username),
				zap.Error(err),
			)
		}
		if err := authManager.SeedUser(u.Username, u.Password, role); err != nil {
			logger.Fatal("failed to seed user",
				zap.String("username", u.Username),
				zap.Error(err),
			)
		}
	}

	h := &server.Handlers{
		Auth:   handlers.NewAuthHandler(authManager, logger.Named("http")),
		Orders: handlers.NewOrderHandler(execEngine, logger.Named("http")),
		Risk:   handlers.NewRiskHandler(riskEngine, logger.Named("http")),
		Audit:  handlers.NewAuditHandler(store),
		System: handlers.NewSystemHandler(store, riskEngine, execEngine, cfg.Server.Version),
	}

	httpServer := server.New(cfg, authManager, h, collector, logger.Named("server"))
	httpServer.Setup()

	if err := httpServer.Start(); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func newLogger(environment string) (*zap.Logger, error) {
	if environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
