package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Freeeeeet/stable_booking/internal/app"
	"github.com/Freeeeeet/stable_booking/internal/config"
	"github.com/Freeeeeet/stable_booking/internal/events"
	"github.com/Freeeeeet/stable_booking/internal/http/handlers"
	"github.com/Freeeeeet/stable_booking/internal/http/middleware"
	"github.com/Freeeeeet/stable_booking/internal/http/router"
	"github.com/Freeeeeet/stable_booking/internal/notify"
	"github.com/Freeeeeet/stable_booking/internal/observability/metrics"
	"github.com/Freeeeeet/stable_booking/internal/repository"
	"github.com/Freeeeeet/stable_booking/internal/repository/memory"
	"github.com/Freeeeeet/stable_booking/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := app.NewLogger(cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting stable booking service",
		zap.String("environment", cfg.Environment),
		zap.String("store", cfg.StoreDriver),
		zap.String("timezone", cfg.Location().String()))

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	bookingMetrics := metrics.NewBookingMetrics(registry)

	publisher := openPublisher(cfg, logger)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("Failed to close event publisher", zap.Error(err))
		}
	}()

	opts := []service.Option{
		service.WithNotifier(newNotifier(cfg, logger)),
		service.WithPublisher(publisher),
		service.WithMetrics(bookingMetrics),
		service.WithLocation(cfg.Location()),
		service.WithNotifyTimeout(cfg.NotifyTimeout),
	}
	bookingService := service.NewBookingService(store, logger, opts...)
	generator := service.NewSlotGenerator(store, logger, opts...)
	reminders := service.NewReminderService(store, logger, opts...)

	scheduler := app.NewScheduler(generator, reminders, app.SchedulerConfig{
		GenerationInterval: cfg.SlotGenerationInterval,
		WeeksAhead:         cfg.SlotGenerationWeeksAhead,
		ReminderInterval:   cfg.ReminderInterval,
		ReminderWindow:     cfg.ReminderWindow,
	}, logger)
	scheduler.Start(ctx)

	var idempotency *middleware.Idempotency
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		idempotency = middleware.NewIdempotency(rdb, cfg.IdempotencyTTL, logger)
	}

	server := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: router.New(router.Config{
			Handler:     handlers.New(bookingService, generator, cfg.Location(), logger),
			Idempotency: idempotency,
			Gatherer:    registry,
			Logger:      logger,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			scheduler.Stop()
			return fmt.Errorf("http server: %w", err)
		}
	}

	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}

	bookingService.Wait()
	logger.Info("Server stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.Store, func(), error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("Using in-memory store, data is lost on restart")
		return memory.New(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}

	if cfg.MigrationsEnabled {
		migrator, err := app.NewMigrator(pool, logger)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		err = migrator.Run(ctx)
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Warn("Failed to close migrator", zap.Error(closeErr))
		}
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
	}

	return repository.NewPostgresStore(pool), pool.Close, nil
}

func openPublisher(cfg *config.Config, logger *zap.Logger) events.Publisher {
	if cfg.AMQPURL == "" {
		return events.NopPublisher{}
	}
	publisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		logger.Error("AMQP unavailable, booking events are disabled", zap.Error(err))
		return events.NopPublisher{}
	}
	logger.Info("Publishing booking events", zap.String("exchange", cfg.AMQPExchange))
	return publisher
}

func newNotifier(cfg *config.Config, logger *zap.Logger) *notify.Service {
	var email notify.EmailSender = notify.NewStubEmailSender(logger)
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		email = sg
	}

	var chat notify.ChatSender
	if cfg.TelegramToken != "" {
		tg, err := notify.NewTelegramSender(cfg.TelegramToken)
		if err != nil {
			logger.Error("Telegram unavailable, chat notifications are disabled", zap.Error(err))
		} else {
			chat = tg
		}
	}

	return notify.NewService(email, chat, cfg.Location(), logger)
}
