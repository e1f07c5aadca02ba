package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kursadbilgin/certmint/internal/config"
	"github.com/kursadbilgin/certmint/internal/contentstore"
	"github.com/kursadbilgin/certmint/internal/directory"
	"github.com/kursadbilgin/certmint/internal/handler"
	"github.com/kursadbilgin/certmint/internal/infra/postgresql"
	infraredis "github.com/kursadbilgin/certmint/internal/infra/redis"
	"github.com/kursadbilgin/certmint/internal/ledger"
	"github.com/kursadbilgin/certmint/internal/observability"
	"github.com/kursadbilgin/certmint/internal/queue"
	"github.com/kursadbilgin/certmint/internal/ratelimit"
	"github.com/kursadbilgin/certmint/internal/repository"
	"github.com/kursadbilgin/certmint/internal/service"
	"github.com/kursadbilgin/certmint/internal/transport"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.RequireWorker(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger, err := observability.NewLogger(observability.LoggerConfig{
		Service: "certmint-worker",
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgresql.NewPostgres(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	broker, err := queue.NewRabbitMQ(ctx, cfg.RabbitMQURL, logger)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	defer broker.Close()

	metrics := observability.NewMetrics()

	uploader, err := contentstore.NewIPFSUploader(cfg.IPFSAPIURL, cfg.IPFSGatewayURL,
		contentstore.WithRetries(cfg.ContentUploadRetries),
		contentstore.WithTimeout(cfg.ContentUploadTimeout()),
		contentstore.WithLogger(logger),
	)
	if err != nil {
		logger.Fatal("content store initialization failed", zap.Error(err))
	}
	uploader.SetMetrics(metrics)

	eth, err := ledger.NewEthereumLedger(ctx, cfg.Ledger(), logger)
	if err != nil {
		logger.Fatal("ledger initialization failed", zap.Error(err))
	}
	defer eth.Close()
	eth.SetMetrics(metrics)

	rateLimiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec,
		infraredis.WithServiceLimit(ratelimit.KeyLedger, cfg.LedgerRateLimitPerSec),
	)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}

	coordinator, err := service.NewCoordinator(uploader, eth, service.CoordinatorOptions{
		Concurrency: cfg.BatchConcurrency,
		RateLimiter: rateLimiter,
	}, logger)
	if err != nil {
		logger.Fatal("coordinator initialization failed", zap.Error(err))
	}
	coordinator.SetMetrics(metrics)

	progress, err := infraredis.NewProgressStore(rdb, 0, logger)
	if err != nil {
		logger.Fatal("progress store initialization failed", zap.Error(err))
	}

	opts := service.WorkerOptions{
		Consumers: cfg.WorkerConsumers,
		Progress:  progress,
	}
	if cfg.ResolveSubjectNames {
		students, err := directory.NewClient(cfg.DirectoryURL)
		if err != nil {
			logger.Fatal("directory client initialization failed", zap.Error(err))
		}
		opts.Resolver = students
	}

	consumer := queue.NewRabbitMQConsumer(broker, cfg.WorkerConsumers, logger)
	defer consumer.Close()

	worker, err := service.NewWorkerService(
		repository.NewGormBatchRepo(db),
		repository.NewGormBatchRecordRepo(db),
		consumer,
		coordinator,
		opts,
		logger,
	)
	if err != nil {
		logger.Fatal("worker service initialization failed", zap.Error(err))
	}
	worker.SetMetrics(metrics)

	app := fiber.New(fiber.Config{
		AppName:               "certmint-worker",
		DisableStartupMessage: true,
		ErrorHandler:          transport.ErrorHandler(logger),
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	handler.RegisterHealthRoutes(app, sqlDB, rdb, broker)

	go func() {
		if err := app.Listen(fmt.Sprintf(":%d", cfg.WorkerPort)); err != nil {
			logger.Error("worker http server stopped", zap.Error(err))
		}
	}()

	logger.Info("certmint worker started",
		zap.Int("consumers", cfg.WorkerConsumers),
		zap.Int("concurrency", cfg.BatchConcurrency),
		zap.Int("port", cfg.WorkerPort),
	)

	if err := worker.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped with error", zap.Error(err))
	}

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("worker http shutdown failed", zap.Error(err))
	}
	logger.Info("certmint worker stopped")
}
