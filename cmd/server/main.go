package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/bsm/redislock"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/merchantpay/billing-service/internal/adapters/database"
	"github.com/merchantpay/billing-service/internal/adapters/logging"
	"github.com/merchantpay/billing-service/internal/adapters/postgres"
	"github.com/merchantpay/billing-service/internal/adapters/redisqueue"
	"github.com/merchantpay/billing-service/internal/auth"
	"github.com/merchantpay/billing-service/internal/config"
	cronHandler "github.com/merchantpay/billing-service/internal/handlers/cron"
	recurringHandler "github.com/merchantpay/billing-service/internal/handlers/recurring"
	"github.com/merchantpay/billing-service/internal/middleware"
	generationService "github.com/merchantpay/billing-service/internal/services/generation"
	templateService "github.com/merchantpay/billing-service/internal/services/template"
	"github.com/merchantpay/billing-service/pkg/observability"
	"github.com/merchantpay/billing-service/pkg/shutdown"
)

func main() {
	// Load .env in local development; ignore when absent
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Logger.Level, cfg.Logger.Development)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting billing service",
		zap.Int("port", cfg.Server.Port),
		zap.Int("metrics_port", cfg.Server.MetricsPort),
	)

	ctx := context.Background()

	// Database
	dbAdapter, err := database.NewPostgreSQLAdapter(ctx, &database.PostgreSQLConfig{
		DatabaseURL: cfg.Database.ConnectionString(),
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}

	// Redis backs the notification queue and the generation run lock.
	// The service stays up without it; generation passes run unguarded and
	// reminder enqueues fail soft.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis unreachable at startup", zap.Error(err))
	}
	cancelPing()

	locker := redislock.New(redisClient)
	queue := redisqueue.NewQueue(redisClient, cfg.Redis.QueueKey)

	// Repositories and services
	domainLogger := logging.NewZapLogger(logger)
	templateRepo := postgres.NewTemplateRepository(dbAdapter)
	invoiceRepo := postgres.NewInvoiceRepository(dbAdapter)
	notificationRepo := postgres.NewNotificationRepository(dbAdapter)
	customerRepo := postgres.NewCustomerRepository(dbAdapter)

	templateSvc := templateService.NewService(dbAdapter, templateRepo, customerRepo, domainLogger)
	generationSvc := generationService.NewService(
		dbAdapter, templateRepo, invoiceRepo, notificationRepo, customerRepo, queue, domainLogger,
	)

	// Merchant authentication
	jwtManager, err := auth.NewJWTManager([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer, cfg.Auth.Expiry)
	if err != nil {
		logger.Fatal("Failed to initialize JWT manager", zap.Error(err))
	}
	authMiddleware := middleware.NewAuth(jwtManager, logger)

	// Merchant API routes (JWT protected)
	apiMux := http.NewServeMux()
	recurringHandler.NewTemplateHandler(templateSvc, invoiceRepo, logger).RegisterRoutes(apiMux)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/", authMiddleware.Handler(apiMux))

	// Cron routes (shared-secret protected, outside JWT auth)
	genHandler := cronHandler.NewGenerationHandler(generationSvc, locker, logger, cfg.Cron.Secret)
	mux.HandleFunc("/cron/generate-invoices", genHandler.GenerateInvoices)
	mux.HandleFunc("/cron/health", genHandler.HealthCheck)

	// Rate limiter (50 req/s per IP, burst of 100)
	rateLimiter := middleware.NewRateLimiter(50, 100)

	handler := rateLimiter.Middleware(
		middleware.SecurityHeaders(
			observability.HTTPMiddleware(mux),
		),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Metrics and health server on a separate port
	healthChecker := observability.NewHealthChecker(dbAdapter.GetDB(), redisClient)
	metricsServer := observability.StartMetricsServer(fmt.Sprintf("%d", cfg.Server.MetricsPort), healthChecker, logger)

	// Shutdown order: HTTP servers first, then Redis, database last
	shutdownManager := shutdown.NewManager(logger, 30*time.Second)
	shutdownManager.RegisterNoErr("database", dbAdapter.Close)
	shutdownManager.RegisterCloser("redis", redisClient)
	shutdownManager.RegisterNoErr("rate_limiter", rateLimiter.Shutdown)
	shutdownManager.Register("metrics_server", metricsServer.Shutdown)
	shutdownManager.Register("http_server", server.Shutdown)

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	shutdownManager.WaitForShutdown()
}
