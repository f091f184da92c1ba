package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"time"

	"github.com/bsm/redislock"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/merchantpay/billing-service/internal/adapters/database"
	"github.com/merchantpay/billing-service/internal/adapters/logging"
	"github.com/merchantpay/billing-service/internal/adapters/postgres"
	"github.com/merchantpay/billing-service/internal/adapters/redisqueue"
	"github.com/merchantpay/billing-service/internal/config"
	"github.com/merchantpay/billing-service/internal/handlers/cron"
	"github.com/merchantpay/billing-service/internal/services/generation"
	"github.com/merchantpay/billing-service/pkg/timeutil"
)

// One-shot invoice generation pass, for running from a scheduler or by hand
// without going through the HTTP cron endpoint. Safe to re-run: an already
// billed cycle generates nothing.
func main() {
	asOfFlag := flag.String("as-of", "", "Generation date (YYYY-MM-DD), defaults to today")
	batchSize := flag.Int("batch-size", generation.DefaultBatchSize, "Maximum templates to process in this pass")
	flag.Parse()

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

	asOf := timeutil.Today()
	if *asOfFlag != "" {
		parsed, err := time.Parse("2006-01-02", *asOfFlag)
		if err != nil {
			logger.Fatal("Invalid -as-of date", zap.String("value", *asOfFlag), zap.Error(err))
		}
		asOf = parsed
	}

	ctx := context.Background()

	dbAdapter, err := database.NewPostgreSQLAdapter(ctx, &database.PostgreSQLConfig{
		DatabaseURL: cfg.Database.ConnectionString(),
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbAdapter.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	// Skip the pass when another replica holds the run lock. Best effort:
	// if Redis is down the pass still runs, the schedule compare-and-set
	// keeps double generation out.
	locker := redislock.New(redisClient)
	lock, err := locker.Obtain(ctx, cron.GenerationLockKey, 5*time.Minute, nil)
	switch {
	case errors.Is(err, redislock.ErrNotObtained):
		logger.Info("Another generation pass is in progress, exiting")
		return
	case err != nil:
		logger.Warn("Could not obtain generation lock, continuing unguarded", zap.Error(err))
	default:
		defer func() { _ = lock.Release(ctx) }()
	}

	domainLogger := logging.NewZapLogger(logger)
	queue := redisqueue.NewQueue(redisClient, cfg.Redis.QueueKey)

	svc := generation.NewService(
		dbAdapter,
		postgres.NewTemplateRepository(dbAdapter),
		postgres.NewInvoiceRepository(dbAdapter),
		postgres.NewNotificationRepository(dbAdapter),
		postgres.NewCustomerRepository(dbAdapter),
		queue,
		domainLogger,
	)

	result, err := svc.ProcessDueTemplates(ctx, asOf, *batchSize)
	if err != nil {
		logger.Fatal("Generation pass failed", zap.Error(err))
	}

	logger.Info("Generation pass completed",
		zap.Time("as_of", asOf),
		zap.Int("processed", result.ProcessedCount),
		zap.Int("generated", result.GeneratedCount),
		zap.Int("deactivated", result.DeactivatedCount),
		zap.Int("failures", result.FailedCount),
	)

	for _, genErr := range result.Errors {
		logger.Warn("Template failed during pass",
			zap.String("template_id", genErr.TemplateID),
			zap.String("error", genErr.Error),
		)
	}
}
