package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/carbon-ledger/internal/api/http/handlers"
	"github.com/spec-kit/carbon-ledger/internal/app"
	"github.com/spec-kit/carbon-ledger/internal/config"
	"github.com/spec-kit/carbon-ledger/internal/events"
	"github.com/spec-kit/carbon-ledger/internal/ledger"
	"github.com/spec-kit/carbon-ledger/internal/observability"
	"github.com/spec-kit/carbon-ledger/internal/persistence"
	"github.com/spec-kit/carbon-ledger/internal/repository/memory"
	"github.com/spec-kit/carbon-ledger/internal/service"
	"github.com/spec-kit/carbon-ledger/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dependencies := map[string]handlers.Pinger{}

	var storage app.Storage
	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(cfg.Postgres, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer pg.Close()
		dependencies["postgres"] = pg
		lockTimeout := time.Duration(cfg.Postgres.LockTimeoutMS) * time.Millisecond
		storage = app.PostgresStorage(pg, lockTimeout, logger)
	default:
		logger.Warn("using in-memory storage, balances are lost on restart")
		storage = app.MemoryStorage(memory.NewStore())
	}

	var redis *persistence.Redis
	needRedis := cfg.Ledger.LockBackend == config.LockRedis
	if needRedis || cfg.Notification.PublishEvents {
		redis, err = persistence.NewRedis(ctx, cfg.Redis, needRedis, logger)
		if err != nil {
			logger.Fatal("failed to connect redis", zap.Error(err))
		}
		defer redis.Close()
		dependencies["redis"] = redis
	}

	var locker ledger.Locker
	if cfg.Ledger.LockBackend == config.LockRedis {
		locker = ledger.NewRedisLocker(redis.Client, cfg.Ledger.LockTimeout(), cfg.Ledger.LockTTL())
	} else {
		locker = ledger.NewLocalLocker(cfg.Ledger.LockTimeout())
	}

	dispatcher := events.NewInMemoryDispatcher(logger)
	var stream service.StreamAppender
	if redis != nil {
		stream = redis
	}
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, stream, cfg.Redis.EventsStream, logger, cfg.Notification))

	application := app.New(app.Options{
		Config:       *cfg,
		Storage:      storage,
		Locker:       locker,
		Dispatcher:   dispatcher,
		Metrics:      observability.NewMetrics(),
		Logger:       logger,
		Dependencies: dependencies,
	})

	go func() {
		logger.Info("listening",
			zap.String("addr", cfg.App.Addr()),
			zap.String("storage", cfg.Storage.Driver),
			zap.String("lock_backend", locker.Backend()),
		)
		if err := application.Fiber.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := application.Fiber.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
