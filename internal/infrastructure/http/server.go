package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	handlers "github.com/wekeepgrowing/billing-identity/internal/adapter/handler/http"
	"github.com/wekeepgrowing/billing-identity/internal/config"
	"github.com/wekeepgrowing/billing-identity/internal/metrics"
	"github.com/wekeepgrowing/billing-identity/internal/middleware/auth"
	"github.com/wekeepgrowing/billing-identity/pkg/logger"
	"go.uber.org/zap"
)

// Dependencies are the usecases served over HTTP.
type Dependencies struct {
	Billing   handlers.BillingUsecase
	Customers handlers.CustomerUsecase
	Plans     handlers.PlanUsecase
	Auditor   handlers.AuditUsecase
	Webhooks  handlers.WebhookVerifier
	Metrics   metrics.BillingMetrics

	// Registerer and Gatherer back the request metrics and /metrics; the prometheus defaults when nil
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

type Server struct {
	config *config.Config
	logger *zap.Logger
	echo   *echo.Echo
	deps   Dependencies
}

func NewServer(cfg *config.Config, logger *zap.Logger, deps Dependencies) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handlers.NewRequestValidator()

	if deps.Registerer == nil {
		deps.Registerer = prometheus.DefaultRegisterer
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		config: cfg,
		logger: logger,
		echo:   e,
		deps:   deps,
	}
	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Handler exposes the router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.HTTP.Host, s.config.Server.HTTP.Port)
	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupMiddleware() {
	logger.WithEchoLogger(s.echo, s.logger)

	origins := s.config.Server.HTTP.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{s.config.Service.ClientURL}
	}

	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(logger.NewEchoRequestLogger(s.logger))
	s.echo.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "billing",
		Subsystem:  "http",
		Registerer: s.deps.Registerer,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics" || c.Path() == "/health"
		},
	}))
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization},
	}))
}

func (s *Server) setupRoutes() {
	// Health check
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": s.config.Service.Name,
		})
	})

	s.echo.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: s.deps.Gatherer}))

	checkoutHandler := handlers.NewCheckoutHandler(s.deps.Billing, s.logger)
	subscriptionHandler := handlers.NewSubscriptionHandler(s.deps.Billing, s.logger)
	plansHandler := handlers.NewPlansHandler(s.deps.Plans, s.logger)
	customerHandler := handlers.NewCustomerHandler(s.deps.Customers, s.logger)
	webhookHandler := handlers.NewWebhookHandler(s.deps.Webhooks, s.deps.Customers, s.deps.Plans, s.deps.Metrics, s.logger)
	adminHandler := handlers.NewAdminHandler(s.deps.Auditor, s.logger)

	jwtConfig := auth.JWTConfig{
		Secret: s.config.Service.Supabase.JWTSecret,
		Logger: s.logger,
	}

	v1 := s.echo.Group("/api/v1")

	// Public routes
	v1.GET("/plans", plansHandler.GetPlans)
	v1.POST("/checkout/donation", checkoutHandler.CreateDonationSession)

	// Admin routes authenticate with the operator key instead of a user token
	admin := v1.Group("/admin", auth.AdminKeyMiddleware(s.config.Service.AdminAPIKey, s.logger))
	admin.GET("/duplicates", adminHandler.AnalyzeDuplicates)
	admin.DELETE("/duplicates", adminHandler.DeleteDuplicate)

	// Protected routes (require JWT authentication)
	protected := v1.Group("", auth.JWTMiddleware(jwtConfig))

	protected.POST("/checkout/session", checkoutHandler.CreateCheckoutSession)
	protected.POST("/billing/portal", checkoutHandler.CreatePortalSession)

	subscriptions := protected.Group("/subscriptions")
	subscriptions.GET("/current", subscriptionHandler.GetCurrentSubscription)
	subscriptions.POST("/modify", subscriptionHandler.ModifySubscription)

	customer := protected.Group("/customer")
	customer.GET("/mapping", customerHandler.GetMapping)
	customer.POST("/reconcile", customerHandler.Reconcile)

	// Webhook route (outside API versioning)
	s.echo.POST("/webhook", webhookHandler.HandleWebhook)
}
