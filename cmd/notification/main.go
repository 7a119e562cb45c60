package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/IBM/sarama"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/samims/notify/internal/channel"
	"github.com/samims/notify/internal/config"
	"github.com/samims/notify/internal/handler"
	"github.com/samims/notify/internal/idempotency"
	"github.com/samims/notify/internal/kafka"
	"github.com/samims/notify/internal/logger"
	"github.com/samims/notify/internal/metrics"
	"github.com/samims/notify/internal/router"
	"github.com/samims/notify/internal/service"
	"github.com/samims/notify/internal/store"
	"github.com/samims/notify/internal/template"
	"github.com/samims/notify/pkg/tracing"
)

func main() {
	// Load configuration from environment variables and exit on error.
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr := logger.NewLogger(cfg.AppCfg.LogLevel)
	slog.SetDefault(logr)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.AppCfg.Tracing {
		tracingCfg, err := tracing.NewConfig()
		if err != nil {
			logr.Error("invalid tracing config", "error", err)
			os.Exit(1)
		}
		shutdownTracing, err := tracing.SetupTracing(ctx, tracingCfg, logr)
		if err != nil {
			logr.Error("failed to set up tracing", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				logr.Warn("tracing shutdown failed", "error", err)
			}
		}()
	}

	// --- Stores ---
	deps := map[string]service.Pinger{}
	var (
		notifStore    store.NotificationStorage
		templateStore store.TemplateStorage
	)
	switch cfg.AppCfg.StoreDriver {
	case "postgres":
		pool, err := store.ConnectPostgres(ctx, cfg.DBConfig)
		if err != nil {
			logr.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		sqlDB := store.NewSQLX(pool)
		defer func(db *sqlx.DB) { _ = db.Close() }(sqlDB)

		if cfg.DBConfig.Migrate {
			if err := store.Migrate(ctx, sqlDB, cfg.DBConfig.MigrationsTable, logr); err != nil {
				logr.Error("failed to migrate database", "error", err)
				os.Exit(1)
			}
		}
		notifStore = store.NewPostgresStorage(pool)
		templateStore = store.NewTemplateStorage(sqlDB)
	default:
		logr.Warn("using in-memory store; records are lost on restart")
		notifStore = store.NewMemoryStorage()
		templateStore = store.NewMemoryTemplateStorage()
	}
	deps["store"] = notifStore

	resolver := template.NewResolver(templateStore, cfg.Templates.CacheTTL, logr)
	if cfg.Templates.SeedFile != "" {
		n, err := store.SeedTemplates(ctx, resolver.Save, cfg.Templates.SeedFile)
		if err != nil {
			logr.Error("failed to seed templates", "file", cfg.Templates.SeedFile, "error", err)
			os.Exit(1)
		}
		logr.Info("seeded templates", "count", n)
	}

	// --- Channels ---
	httpClient := &http.Client{Timeout: cfg.Delivery.AdapterTimeout}
	timeout := cfg.Delivery.AdapterTimeout
	chCfg := cfg.Channels
	registry, err := channel.NewRegistry(
		channel.Guard(channel.NewEmailAdapter(chCfg.Email, httpClient, logr), timeout, chCfg.Email.RatePerSec),
		channel.Guard(channel.NewSMSAdapter(chCfg.SMS, httpClient, logr), timeout, chCfg.SMS.RatePerSec),
		channel.Guard(channel.NewPushAdapter(chCfg.Push, httpClient, logr), timeout, chCfg.Push.RatePerSec),
		channel.Guard(channel.NewWhatsAppAdapter(chCfg.WhatsApp, httpClient, logr), timeout, chCfg.WhatsApp.RatePerSec),
	)
	if err != nil {
		logr.Error("failed to build channel registry", "error", err)
		os.Exit(1)
	}
	logr.Info("channels enabled", "channels", registry.Supported())

	// --- Delivery path ---
	var wg sync.WaitGroup
	var (
		dispatcher service.Dispatcher
		producer   kafka.DispatchProducer
		sender     service.AsyncSender
	)
	if cfg.KafkaConfig.QueueEnabled {
		saramaCfg := sarama.NewConfig()
		saramaCfg.Version = sarama.V2_1_0_0
		saramaCfg.ClientID = cfg.KafkaConfig.ClientID
		saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
		saramaCfg.Producer.Return.Successes = true
		saramaCfg.Producer.Return.Errors = true
		saramaCfg.Consumer.Return.Errors = true
		saramaCfg.Consumer.Offsets.Initial = sarama.OffsetOldest

		asyncProducer, err := sarama.NewAsyncProducer(cfg.KafkaConfig.KafkaBrokers, saramaCfg)
		if err != nil {
			logr.Error("failed to create Kafka producer", "error", err)
			os.Exit(1)
		}
		producer = kafka.NewProducer(asyncProducer, cfg.KafkaConfig.KafkaTopic, logr, tracing.GetTracer("notification-producer"))
		producer.Start()
		dispatcher = service.NewQueueDispatcher(producer)

		consumerGroup, err := sarama.NewConsumerGroup(cfg.KafkaConfig.KafkaBrokers, cfg.KafkaConfig.ConsumerGroup, saramaCfg)
		if err != nil {
			logr.Error("failed to create Kafka consumer group", "error", err)
			os.Exit(1)
		}
		worker := service.NewDeliveryWorker(notifStore, registry, producer, cfg.Delivery.MaxRetries, logr)
		consumer := kafka.NewKafkaConsumer(
			cfg.KafkaConfig.KafkaTopic,
			consumerGroup,
			worker,
			tracing.GetTracer("notification-consumer"),
			logr,
		)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logr.Error("Kafka consumer stopped with error", "error", err)
			}
		}()
	} else {
		sender = service.NewAsyncSender(notifStore, registry, cfg.Delivery.WorkerLimit, logr)
		dispatcher = sender
	}

	sweeper := service.NewSweeper(notifStore, dispatcher,
		cfg.Delivery.SweepInterval, cfg.Delivery.SweepStale, cfg.Delivery.WorkerLimit, logr)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := sweeper.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logr.Error("sweeper stopped with error", "error", err)
		}
	}()

	// --- Idempotency ---
	var idem idempotency.Store
	if cfg.Redis.URL != "" {
		rdb, err := idempotency.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			logr.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer func(c *redis.Client) { _ = c.Close() }(rdb)
		idem = idempotency.NewRedisStore(rdb, cfg.Redis.IdempotencyTTL)
		deps["redis"] = idem
	} else {
		idem = idempotency.NewMemoryStore(cfg.Redis.IdempotencyTTL)
	}

	// --- HTTP ---
	notifSvc := service.NewNotificationService(notifStore, resolver, dispatcher, logr)
	r := router.NewRouter(router.Handlers{
		Notifications: handler.NewNotificationHandler(notifSvc, idem, logr),
		Channels:      handler.NewChannelHandler(registry),
		Health:        handler.NewHealthHandler(service.NewHealthService(deps), logr),
	}, cfg.Auth.Secret, cfg.AppCfg.RequestTimeout)

	server := &http.Server{
		Addr:    ":" + cfg.AppCfg.Port,
		Handler: r,
	}
	go func() {
		logr.Info("Server started", "addr", server.Addr, "queue_enabled", cfg.KafkaConfig.QueueEnabled)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("HTTP server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.AppCfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Error("HTTP server shutdown failed", "error", err)
	}

	// consumer and sweeper may still publish; close the producer only after they stop
	wg.Wait()
	if sender != nil {
		if err := sender.Close(shutdownCtx); err != nil {
			logr.Warn("async sender did not drain", "error", err)
		}
	}
	if producer != nil {
		producer.Close(shutdownCtx)
	}
	logr.Info("Service shut down gracefully")
}
