package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/merchantpay/billing-service/internal/adapters/aisensy"
	"github.com/merchantpay/billing-service/internal/adapters/database"
	"github.com/merchantpay/billing-service/internal/adapters/logging"
	"github.com/merchantpay/billing-service/internal/adapters/postgres"
	"github.com/merchantpay/billing-service/internal/adapters/redisqueue"
	"github.com/merchantpay/billing-service/internal/config"
	"github.com/merchantpay/billing-service/internal/domain"
	"github.com/merchantpay/billing-service/pkg/observability"
	"github.com/merchantpay/billing-service/pkg/resilience"
	"github.com/merchantpay/billing-service/pkg/shutdown"
)

const (
	// dequeueTimeout bounds each blocking pop so the loop can observe shutdown
	dequeueTimeout = 5 * time.Second

	// maxDeliveryAttempts caps retries per message before marking it FAILED
	maxDeliveryAttempts = 5
)

// worker consumes the outbound WhatsApp queue and delivers reminders through
// AiSensy, recording the outcome on the notification job row.
type worker struct {
	queue            *redisqueue.Queue
	notificationRepo *postgres.NotificationRepository
	sender           *aisensy.Client
	backoff          resilience.BackoffStrategy
	tracker          *shutdown.InFlightTracker
	logger           *zap.Logger
}

func main() {
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

	logger.Info("Starting notification worker",
		zap.String("queue", cfg.Redis.QueueKey),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbAdapter, err := database.NewPostgreSQLAdapter(ctx, &database.PostgreSQLConfig{
		DatabaseURL: cfg.Database.ConnectionString(),
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}

	// The worker exists to drain the queue, so unlike the API server it
	// treats Redis as a hard dependency.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	err = redisClient.Ping(pingCtx).Err()
	cancelPing()
	if err != nil {
		logger.Fatal("Redis unreachable", zap.Error(err))
	}

	w := &worker{
		queue:            redisqueue.NewQueue(redisClient, cfg.Redis.QueueKey),
		notificationRepo: postgres.NewNotificationRepository(dbAdapter),
		sender: aisensy.NewClient(aisensy.Config{
			BaseURL:      cfg.AiSensy.BaseURL,
			APIKey:       cfg.AiSensy.APIKey,
			CampaignName: cfg.AiSensy.CampaignName,
			UserName:     cfg.AiSensy.UserName,
			Timeout:      cfg.AiSensy.Timeout,
		}, logger),
		backoff: resilience.DeliveryBackoff(),
		tracker: shutdown.NewInFlightTracker("notification-delivery", logger),
		logger:  logger,
	}

	healthChecker := observability.NewHealthChecker(dbAdapter.GetDB(), redisClient)
	metricsServer := observability.StartMetricsServer(fmt.Sprintf("%d", cfg.Server.MetricsPort), healthChecker, logger)

	shutdownManager := shutdown.NewManager(logger, 30*time.Second)
	shutdownManager.RegisterNoErr("database", dbAdapter.Close)
	shutdownManager.RegisterCloser("redis", redisClient)
	shutdownManager.Register("metrics_server", metricsServer.Shutdown)
	shutdownManager.Register("in_flight_deliveries", w.tracker.Shutdown)
	shutdownManager.RegisterNoErr("consume_loop", cancel)

	go w.run(ctx)

	shutdownManager.WaitForShutdown()
}

// run consumes the queue until ctx is cancelled
func (w *worker) run(ctx context.Context) {
	for {
		if ctx.Err() != nil || w.tracker.IsShuttingDown() {
			return
		}

		msg, err := w.queue.Dequeue(ctx, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("Failed to dequeue notification", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if msg == nil {
			continue
		}

		if !w.tracker.Add() {
			// Shutdown raced the dequeue; push the message back
			if err := w.requeue(msg); err != nil {
				w.logger.Error("Failed to requeue message during shutdown",
					zap.String("job_id", msg.JobID),
					zap.Error(err),
				)
			}
			return
		}

		w.process(ctx, msg)
		w.tracker.Done()
	}
}

// process attempts delivery with backoff and records the final status
func (w *worker) process(ctx context.Context, msg *redisqueue.Message) {
	var lastErr error

	for attempt := 0; attempt < maxDeliveryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
			case <-time.After(w.backoff.NextDelay(attempt - 1)):
			}
			if ctx.Err() != nil {
				break
			}
		}

		lastErr = w.sender.SendMessage(ctx, msg.Destination, msg.Text)
		if lastErr == nil {
			w.markDelivered(msg, domain.NotificationStatusSent)
			w.logger.Info("Reminder delivered",
				zap.String("job_id", msg.JobID),
				zap.String("merchant_id", msg.MerchantID),
				zap.Int("attempts", attempt+1),
			)
			return
		}

		w.logger.Warn("Delivery attempt failed",
			zap.String("job_id", msg.JobID),
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr),
		)
	}

	w.markDelivered(msg, domain.NotificationStatusFailed)
	w.logger.Error("Reminder delivery exhausted retries",
		zap.String("job_id", msg.JobID),
		zap.String("merchant_id", msg.MerchantID),
		zap.Error(lastErr),
	)
}

// markDelivered records the terminal status. A separate context keeps the
// status write alive during shutdown.
func (w *worker) markDelivered(msg *redisqueue.Message, status domain.NotificationStatus) {
	updateCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := w.notificationRepo.UpdateStatus(updateCtx, nil, msg.JobID, status); err != nil {
		w.logger.Error("Failed to update notification status",
			zap.String("job_id", msg.JobID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
	}

	observability.NotificationsDelivered.WithLabelValues(string(status)).Inc()
}

func (w *worker) requeue(msg *redisqueue.Message) error {
	requeueCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	job := &domain.NotificationJob{
		ID:          msg.JobID,
		MerchantID:  msg.MerchantID,
		Destination: msg.Destination,
		MessageText: msg.Text,
	}
	return w.queue.Enqueue(requeueCtx, job)
}
