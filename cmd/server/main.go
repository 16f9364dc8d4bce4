package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/wekeepgrowing/billing-identity/internal/config"
	"github.com/wekeepgrowing/billing-identity/internal/infrastructure/database"
	grpcServer "github.com/wekeepgrowing/billing-identity/internal/infrastructure/grpc"
	httpServer "github.com/wekeepgrowing/billing-identity/internal/infrastructure/http"
	"github.com/wekeepgrowing/billing-identity/internal/infrastructure/lock"
	"github.com/wekeepgrowing/billing-identity/internal/infrastructure/provider/stripe"
	"github.com/wekeepgrowing/billing-identity/internal/metrics"
	"github.com/wekeepgrowing/billing-identity/internal/usecase"
	"github.com/wekeepgrowing/billing-identity/pkg/logger"
	"github.com/wekeepgrowing/billing-identity/pkg/messaging"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Initialize logger
	zapLogger, err := logger.NewZapLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Mapping store
	repos, err := database.NewRepositories(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to initialize mapping store", zap.Error(err))
	}
	defer func() {
		if err := repos.Close(zapLogger); err != nil {
			zapLogger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	// Per-user lock and mapping events
	var (
		locker    usecase.CustomerLocker
		publisher usecase.EventPublisher
	)
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			zapLogger.Fatal("Failed to connect to Redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		defer redisClient.Close()

		locker = lock.NewRedisLocker(redisClient, cfg.Redis.LockTTL, cfg.Redis.LockWait, zapLogger)
		publisher = messaging.FromClient(redisClient)
		zapLogger.Info("Using Redis customer lock", zap.String("addr", cfg.Redis.Addr))
	} else {
		locker = lock.NewLocalLocker(cfg.Redis.LockWait)
		zapLogger.Warn("Redis disabled; customer lock is process local and mapping events are not published")
	}

	// Billing provider
	stripeProvider := stripe.NewStripeProvider(stripe.Config{
		SecretKey:         cfg.Service.StripeSecretKey,
		WebhookSecret:     cfg.Service.StripeWebhookSecret,
		APIURL:            cfg.Service.StripeAPIURL,
		MaxNetworkRetries: 2,
	}, zapLogger)
	directory := stripeProvider.Directory()
	gateway := stripeProvider.Gateway()

	billingMetrics := metrics.NewBillingMetrics(prometheus.DefaultRegisterer)

	// Usecases
	reconciler := usecase.NewCustomerReconciler(directory, zapLogger)
	customerService := usecase.NewCustomerService(
		reconciler,
		repos.CustomerMapping,
		directory,
		locker,
		publisher,
		cfg.Redis.EventsChannel,
		billingMetrics,
		zapLogger,
	)
	billingService := usecase.NewBillingService(
		customerService,
		gateway,
		cfg.Service.ClientURL,
		cfg.Service.DefaultDonationCurrency,
		zapLogger,
	)

	fallback, err := cfg.Plans.FallbackPlans()
	if err != nil {
		zapLogger.Fatal("Invalid fallback plans", zap.Error(err))
	}
	planCatalog := usecase.NewPlanCatalog(gateway, usecase.PlanCatalogOptions{
		TTL:                 cfg.Plans.CacheTTL,
		ExcludeNameContains: cfg.Plans.ExcludeNameContains,
		PopularNameContains: cfg.Plans.PopularNameContains,
		Fallback:            fallback,
	}, billingMetrics, zapLogger)

	auditor := usecase.NewDuplicateAuditor(
		directory,
		usecase.AuditorOptions{PageLimit: cfg.Audit.PageLimit, Concurrency: cfg.Audit.Concurrency},
		billingMetrics,
		zapLogger,
	)

	// Initialize servers
	grpcSrv := grpcServer.NewServer(cfg, zapLogger)
	httpSrv := httpServer.NewServer(cfg, zapLogger, httpServer.Dependencies{
		Billing:   billingService,
		Customers: customerService,
		Plans:     planCatalog,
		Auditor:   auditor,
		Webhooks:  gateway,
		Metrics:   billingMetrics,
	})

	// Start servers
	go func() {
		if err := grpcSrv.Start(); err != nil {
			zapLogger.Fatal("Failed to start gRPC server", zap.Error(err))
		}
	}()

	go func() {
		if err := httpSrv.Start(); err != nil {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	<-ctx.Done()

	zapLogger.Info("Shutting down servers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Failed to shutdown HTTP server", zap.Error(err))
	}

	if err := grpcSrv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Failed to shutdown gRPC server", zap.Error(err))
	}

	zapLogger.Info("Servers shut down successfully")
}
