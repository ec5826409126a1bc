// Package server wires the gin router: middleware chain, route groups,
// role gates, and graceful shutdown.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/quantarc/ordergate/internal/auth"
	"github.com/quantarc/ordergate/internal/config"
	"github.com/quantarc/ordergate/internal/handlers"
	"github.com/quantarc/ordergate/internal/metrics"
	"github.com/quantarc/ordergate/internal/middleware"
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Auth   *handlers.AuthHandler
	Orders *handlers.OrderHandler
	Risk   *handlers.RiskHandler
	Audit  *handlers.AuditHandler
	System *handlers.SystemHandler
}

// HTTPServer owns the router and its lifecycle.
type HTTPServer struct {
	router    *gin.Engine
	config    *config.Config
	logger    *zap.Logger
	verifier  middleware.TokenVerifier
	handlers  *Handlers
	collector *metrics.Collector
}

// New creates a server instance. Call Setup before Start.
func New(cfg *config.Config, verifier middleware.TokenVerifier, h *Handlers, collector *metrics.Collector, logger *zap.Logger) *HTTPServer {
	return &HTTPServer{
		config:    cfg,
		verifier:  verifier,
		handlers:  h,
		collector: collector,
		logger:    logger,
	}
}

// Setup initializes the router, middleware, and routes.
func (s *HTTPServer) Setup() {
	if s.config.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()
}

func (s *HTTPServer) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.RequestLogger(s.logger))

	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	limiter := rate.NewLimiter(rate.Limit(s.config.RateLimit.RequestsPerSecond), s.config.RateLimit.Burst)
	s.router.Use(middleware.RateLimit(limiter))
}

func (s *HTTPServer) setupRoutes() {
	s.router.GET("/", s.handlers.System.Root)
	if s.collector != nil {
		s.router.GET("/metrics", gin.WrapH(s.collector.Handler()))
	}

	v1 := s.router.Group("/api/v1")

	// Public routes
	v1.POST("/auth/login", s.handlers.Auth.Login)
	v1.GET("/health", s.handlers.System.Health)

	// Any authenticated role
	authed := v1.Group("")
	authed.Use(middleware.Auth(s.verifier))
	{
		authed.GET("/orders/:id", s.handlers.Orders.Get)
		authed.GET("/orders", s.handlers.Orders.List)
		authed.GET("/risk/metrics", s.handlers.Risk.Metrics)
		authed.GET("/risk/positions", s.handlers.Risk.Positions)
		authed.GET("/metrics", s.handlers.System.SystemMetrics)
	}

	// Trading
	trading := v1.Group("")
	trading.Use(middleware.Auth(s.verifier))
	trading.Use(middleware.RequireRole(auth.RoleTrader))
	{
		trading.POST("/orders", s.handlers.Orders.Submit)
	}

	// Risk management
	riskMgmt := v1.Group("/risk")
	riskMgmt.Use(middleware.Auth(s.verifier))
	riskMgmt.Use(middleware.RequireRole(auth.RoleRiskManager))
	{
		riskMgmt.GET("/limits", s.handlers.Risk.GetLimits)
		riskMgmt.PUT("/limits", s.handlers.Risk.UpdateLimits)
		riskMgmt.POST("/kill-switch", s.handlers.Risk.KillSwitch)
	}

	// Compliance
	audit := v1.Group("/audit")
	audit.Use(middleware.Auth(s.verifier))
	audit.Use(middleware.RequireRole(auth.RoleCompliance))
	{
		audit.GET("/events", s.handlers.Audit.RecentEvents)
		audit.GET("/correlation/:cid", s.handlers.Audit.ByCorrelation)
		audit.GET("/order/:oid/trail", s.handlers.Audit.OrderTrail)
	}
}

// Start runs the server until SIGINT/SIGTERM, then drains for up to 30s.
func (s *HTTPServer) Start() error {
	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:        s.router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		s.logger.Info("starting server",
			zap.Int("port", s.config.Server.Port),
			zap.String("environment", s.config.Server.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	s.logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Error("forced shutdown", zap.Error(err))
		return err
	}

	s.logger.Info("server exited")
	return nil
}

// Router returns the gin router for testing.
func (s *HTTPServer) Router() *gin.Engine {
	return s.router
}
