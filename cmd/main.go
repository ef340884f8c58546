package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sakashimaa/product-showcase/internal/identity"
	"github.com/sakashimaa/product-showcase/internal/listing"
	"github.com/sakashimaa/product-showcase/internal/metrics"
	"github.com/sakashimaa/product-showcase/internal/repository"
	"github.com/sakashimaa/product-showcase/internal/service"
	"github.com/sakashimaa/product-showcase/internal/transport/http"
	"github.com/sakashimaa/product-showcase/internal/transport/http/handler"
	productKafka "github.com/sakashimaa/product-showcase/internal/transport/kafka"
	"github.com/sakashimaa/product-showcase/pkg/config"
	"github.com/sakashimaa/product-showcase/pkg/db"
	kafka2 "github.com/sakashimaa/product-showcase/pkg/kafka"
	outbox "github.com/sakashimaa/product-showcase/pkg/outbox/repository"
	"github.com/sakashimaa/product-showcase/pkg/outbox/worker"
	"github.com/sakashimaa/product-showcase/pkg/utils"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf(".env not found: %v\n", err)
	}

	cfg := config.MustLoad()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.LoggerConfig())
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	shutdownTracer := func(context.Context) error { return nil }
	if cfg.Tracing.Enabled {
		tp, err := utils.InitTracer(ctx, utils.TracerConfig{
			ServiceName: cfg.Tracing.Service,
			Endpoint:    cfg.Tracing.Endpoint,
			Env:         cfg.Env,
		})
		if err != nil {
			logger.Fatal("Error init tracer", zap.Error(err))
		}
		shutdownTracer = tp.Shutdown
	}

	if err := db.Migrate(cfg.Postgres.MigrationsDir, cfg.Postgres.URL); err != nil {
		logger.Fatal("Error applying migrations", zap.Error(err))
	}

	pool, err := db.NewPostgresDB(cfg.Postgres.URL, db.PoolOptions{
		MaxConns: cfg.Postgres.MaxConns,
		MinConns: cfg.Postgres.MinConns,
	})
	if err != nil {
		logger.Fatal("Error creating new postgres DB", zap.Error(err))
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})

	identityProvider, err := identity.NewJWTProvider(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		logger.Fatal("Error creating identity provider", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	kafkaProducer, err := kafka2.NewProducer(cfg.Kafka.Brokers, logger)
	if err != nil {
		logger.Fatal("Error creating kafka producer", zap.Error(err))
	}

	productRepository := repository.NewProductRepository(logger)
	outboxRepository := outbox.NewOutboxRepository(logger)
	txRunner := db.NewTxRunner(pool, logger, cfg.Postgres.RetryWindow)

	productService := service.NewProductService(
		productRepository,
		outboxRepository,
		pool,
		txRunner,
		cfg.Kafka.Topic,
		m,
		logger,
	)
	cachedProductService := service.NewCachedProductService(productService, rdb, cfg.Redis.CacheTTL, m, logger)

	broker := listing.NewBroker()
	listingService := listing.NewService(
		productRepository,
		pool,
		broker,
		listing.Options{
			DefaultLimit: cfg.Listing.DefaultLimit,
			MaxLimit:     cfg.Listing.MaxLimit,
		},
		m,
		logger,
	)

	outboxProcessor := worker.NewOutboxProcessor(pool, outboxRepository, kafkaProducer, logger)
	go outboxProcessor.Start(ctx)

	consumer := productKafka.NewConsumer(cachedProductService, broker, logger)
	groupID := cfg.Kafka.GroupID + "-" + uuid.NewString()
	go func() {
		if err := consumer.Start(ctx, cfg.Kafka.Brokers, groupID, cfg.Kafka.Topic); err != nil {
			logger.Error("Change feed consumer stopped", zap.Error(err))
		}
	}()

	app := http.NewApp(http.LimiterConfig{
		Max:    cfg.Limiter.Max,
		Window: cfg.Limiter.Window,
	})

	breaker := utils.BreakerSettings{
		Name:         "ProductStore",
		MaxRequests:  cfg.Breaker.MaxRequests,
		Interval:     cfg.Breaker.Interval,
		Timeout:      cfg.Breaker.Timeout,
		MinRequests:  cfg.Breaker.MinRequests,
		FailureRatio: cfg.Breaker.FailureRatio,
	}

	handlers := &http.Handlers{
		Product: handler.NewProductHandler(cachedProductService, breaker, cfg.HTTP.Timeout, logger),
		Listing: handler.NewListingHandler(ctx, listingService, cfg.HTTP.Timeout, logger),
	}
	http.RegisterRoutes(app, handlers, identityProvider, registry, logger)

	go func() {
		logger.Info("HTTP service listening", zap.String("port", cfg.HTTP.Port))
		if err := app.Listen(cfg.HTTP.Port); err != nil {
			logger.Fatal("Error listening HTTP", zap.String("port", cfg.HTTP.Port), zap.Error(err))
		}
	}()

	logger.Info("product showcase started!")

	<-ctx.Done()

	logger.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Error shutting down HTTP server", zap.Error(err))
	} else {
		logger.Info("Stopped HTTP server successfully")
	}

	if err := kafkaProducer.Close(); err != nil {
		logger.Error("Error closing kafka producer", zap.Error(err))
	}

	if err := rdb.Close(); err != nil {
		logger.Error("Error closing redis client", zap.Error(err))
	}

	pool.Close()
	logger.Info("Closed db pool successfully")

	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.Error("Error stopping telemetry", zap.Error(err))
	} else {
		logger.Info("Telemetry closed correctly")
	}
}
