package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/kursadbilgin/payout-notifier/internal/config"
	"github.com/kursadbilgin/payout-notifier/internal/gateway"
	"github.com/kursadbilgin/payout-notifier/internal/handler"
	"github.com/kursadbilgin/payout-notifier/internal/infra/postgresql"
	"github.com/kursadbilgin/payout-notifier/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/payout-notifier/internal/infra/redis"
	"github.com/kursadbilgin/payout-notifier/internal/observability"
	"github.com/kursadbilgin/payout-notifier/internal/queue"
	"github.com/kursadbilgin/payout-notifier/internal/repository"
	"github.com/kursadbilgin/payout-notifier/internal/service"
	"github.com/kursadbilgin/payout-notifier/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
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

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	limiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.GatewayRatePerSec)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}

	mq, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	defer mq.Close()
	publisher := queue.NewRabbitMQPublisher(mq)

	mailer, err := gateway.NewMailerGateway(
		cfg.MailerURL,
		cfg.MailerToken,
		time.Duration(cfg.MailerTimeoutSec)*time.Second,
	)
	if err != nil {
		logger.Fatal("mailer gateway initialization failed", zap.Error(err))
	}

	payments := repository.NewGormPaymentRepo(db)
	providers := repository.NewGormProviderRepo(db)
	deliveries := repository.NewGormDeliveryRepo(db)

	summaries, err := service.NewSummaryService(payments, providers, deliveries, logger)
	if err != nil {
		logger.Fatal("summary service initialization failed", zap.Error(err))
	}

	dispatches, err := service.NewDispatchService(providers, deliveries, mailer, limiter, logger)
	if err != nil {
		logger.Fatal("dispatch service initialization failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	dispatches.SetMetrics(metrics)
	dispatches.SetEventPublisher(publisher)

	app := fiber.New(fiber.Config{
		ErrorHandler:          transport.ErrorHandler(logger),
		DisableStartupMessage: true,
	})
	app.Use(transport.RequestID())
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	if err := handler.RegisterSummaryRoutes(app, summaries, cfg.OperatorID); err != nil {
		logger.Fatal("summary route registration failed", zap.Error(err))
	}
	if err := handler.RegisterDispatchRoutes(app, dispatches, cfg.OperatorID); err != nil {
		logger.Fatal("dispatch route registration failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})
	g.Go(func() error {
		<-gctx.Done()
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if cfg.AutoDispatchIntervalSec > 0 {
		scheduler, err := service.NewScheduler(
			summaries,
			dispatches,
			cfg.OperatorID,
			time.Duration(cfg.AutoDispatchIntervalSec)*time.Second,
			logger,
		)
		if err != nil {
			logger.Fatal("scheduler initialization failed", zap.Error(err))
		}
		g.Go(func() error {
			return scheduler.Start(gctx)
		})
	}

	logger.Info("payout-notifier api started",
		zap.Int("port", cfg.APIPort),
		zap.Bool("autoDispatch", cfg.AutoDispatchIntervalSec > 0),
	)

	if err := g.Wait(); err != nil {
		logger.Fatal("server terminated", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
