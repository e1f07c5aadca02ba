package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kursadbilgin/certmint/internal/config"
	"github.com/kursadbilgin/certmint/internal/contentstore"
	"github.com/kursadbilgin/certmint/internal/handler"
	"github.com/kursadbilgin/certmint/internal/infra/postgresql"
	"github.com/kursadbilgin/certmint/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/certmint/internal/infra/redis"
	"github.com/kursadbilgin/certmint/internal/ledger"
	"github.com/kursadbilgin/certmint/internal/observability"
	"github.com/kursadbilgin/certmint/internal/queue"
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
	if err := cfg.RequireAPI(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger, err := observability.NewLogger(observability.LoggerConfig{
		Service: "certmint-api",
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

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
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

	progress, err := infraredis.NewProgressStore(rdb, 0, logger)
	if err != nil {
		logger.Fatal("progress store initialization failed", zap.Error(err))
	}
	rateLimiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}

	issuance, err := service.NewIssuanceService(
		repository.NewGormBatchRepo(db),
		repository.NewGormBatchRecordRepo(db),
		queue.NewRabbitMQPublisher(broker),
		progress,
		logger,
	)
	if err != nil {
		logger.Fatal("issuance service initialization failed", zap.Error(err))
	}

	uploader, err := contentstore.NewIPFSUploader(cfg.IPFSAPIURL, cfg.IPFSGatewayURL,
		contentstore.WithRetries(cfg.ContentUploadRetries),
		contentstore.WithTimeout(cfg.ContentUploadTimeout()),
		contentstore.WithLogger(logger),
	)
	if err != nil {
		logger.Fatal("content store initialization failed", zap.Error(err))
	}
	uploader.SetMetrics(metrics)

	assets, err := service.NewAssetService(uploader, rateLimiter, logger)
	if err != nil {
		logger.Fatal("asset service initialization failed", zap.Error(err))
	}

	// Revocation is only served when the issuer key is configured.
	var revoker ledger.Revoker
	if err := cfg.RequireLedger(); err != nil {
		logger.Warn("credential revocation disabled", zap.Error(err))
	} else {
		eth, err := ledger.NewEthereumLedger(ctx, cfg.Ledger(), logger)
		if err != nil {
			logger.Fatal("ledger initialization failed", zap.Error(err))
		}
		defer eth.Close()
		eth.SetMetrics(metrics)
		revoker = eth
	}

	credentials, err := service.NewCredentialService(revoker, logger)
	if err != nil {
		logger.Fatal("credential service initialization failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		AppName:      "certmint-api",
		BodyLimit:    cfg.MaxUploadBytes(),
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	handler.RegisterHealthRoutes(app, sqlDB, rdb, broker)
	if err := handler.RegisterBatchRoutes(app, issuance); err != nil {
		logger.Fatal("batch routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterAssetRoutes(app, assets); err != nil {
		logger.Fatal("asset routes registration failed", zap.Error(err))
	}
	if err := handler.RegisterCredentialRoutes(app, credentials); err != nil {
		logger.Fatal("credential routes registration failed", zap.Error(err))
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down api")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.Error("api shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("certmint api started", zap.Int("port", cfg.APIPort))
	if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
		logger.Error("api server stopped", zap.Error(err))
	}
}
