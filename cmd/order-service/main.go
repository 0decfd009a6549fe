package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/yasmin-dev/souq-orders/internal/currency"
	"github.com/yasmin-dev/souq-orders/internal/repository"
	"github.com/yasmin-dev/souq-orders/internal/service"
	transporthttp "github.com/yasmin-dev/souq-orders/internal/transport/http"
	"github.com/yasmin-dev/souq-orders/internal/transport/http/handler"
	transportkafka "github.com/yasmin-dev/souq-orders/internal/transport/kafka"
	"github.com/yasmin-dev/souq-orders/pkg/config"
	"github.com/yasmin-dev/souq-orders/pkg/db"
	pkgkafka "github.com/yasmin-dev/souq-orders/pkg/kafka"
	"github.com/yasmin-dev/souq-orders/pkg/mylogger"
	outboxRepository "github.com/yasmin-dev/souq-orders/pkg/outbox/repository"
	"github.com/yasmin-dev/souq-orders/pkg/outbox/worker"
	"github.com/yasmin-dev/souq-orders/pkg/utils"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg := config.MustLoad()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := utils.InitTracer(ctx, "order-service")
	if err != nil {
		log.Fatalf("failed to init tracer: %v", err)
	}

	pool, err := db.NewPostgresDB(cfg.Postgres.URL)
	if err != nil {
		log.Fatalf("failed to create pool: %v", err)
	}

	logger, err := config.NewLogger(config.LoggerConfig{
		Level: "Info",
		Env:   cfg.Env,
	})
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})

	orderRepo := repository.NewOrderRepository(pool, logger)
	stockRepo := repository.NewStockRepository(pool, logger)
	catalogRepo := repository.NewCatalogRepository(pool, logger)
	rateRepo := repository.NewRateRepository(pool, logger)
	outboxRepo := outboxRepository.NewOutboxRepository(pool, logger)

	pricer := service.NewPricer(catalogRepo, logger)
	orderService := service.NewOrderService(pool, logger, pricer, orderRepo, stockRepo, catalogRepo, outboxRepo)

	rates := currency.NewBreakerProvider(
		currency.NewCachedProvider(currency.NewRepoProvider(rateRepo), redisClient),
		logger,
	)
	presenter := currency.NewPresenter(cfg.Currency.Base, rates, logger)

	kafkaProducer, err := pkgkafka.NewProducer(cfg.Kafka.Brokers)
	if err != nil {
		log.Fatalf("error creating kafka producer: %v", err)
	}

	outboxProcessor := worker.NewOutboxProcessor(pool, outboxRepo, kafkaProducer, logger)
	go outboxProcessor.Start(ctx)

	rateConsumer := transportkafka.NewConsumer(rateRepo, redisClient, cfg.Kafka.GroupID, logger)
	go rateConsumer.Start(ctx, cfg.Kafka.Brokers)

	orderHandler := handler.NewOrderHandler(orderService, presenter, logger)
	app := transporthttp.NewApp(orderHandler)

	go func() {
		mylogger.Info(ctx, logger, "HTTP server listening", zap.String("port", cfg.HTTP.Port))
		if err := app.Listen(cfg.HTTP.Port); err != nil {
			log.Fatalf("error serving HTTP: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, exit := context.WithTimeout(context.WithoutCancel(ctx), time.Second*5)
	defer exit()

	mylogger.Info(shutdownCtx, logger, "Shutting down order service")

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Failed to shut down HTTP server", zap.Error(err))
	}

	if err := kafkaProducer.Close(); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Failed to close kafka producer", zap.Error(err))
	}

	if err := tp.Shutdown(shutdownCtx); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Failed to shut down telemetry", zap.Error(err))
	}

	pool.Close()
}
