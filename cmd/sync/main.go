package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gangwalparul19/rupiya-sync/internal/config"
	"github.com/gangwalparul19/rupiya-sync/internal/logging"
	"github.com/gangwalparul19/rupiya-sync/internal/services"
	"go.uber.org/zap"
)

// Standalone sync daemon: drains the persisted queue without serving the
// caller-facing API. Run it instead of, not alongside, the embedded trigger
// in cmd/api. Sync passes are serialized per process, not across processes.
func main() {
	// Load configuration
	if err := config.LoadConfig(); err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// Initialize logging
	if err := logging.InitLogger(); err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}

	logging.Logger.Info("starting rupiya sync daemon")

	// Initialize Redis
	config.InitRedis()
	if config.Redis == nil {
		log.Fatal("Failed to initialize Redis client")
	}

	// Initialize MongoDB
	config.InitMongoDB()
	if config.MongoDB == nil {
		log.Fatal("Failed to initialize MongoDB")
	}

	store := services.NewRedisQueueStore(config.Redis, config.AppConfig.QueueSnapshotKey, logging.Logger)

	limiter := services.NewRateLimiter(services.LimitProfile{
		MaxRequests: config.AppConfig.RateLimitMaxRequests,
		Window:      config.AppConfig.RateLimitWindow,
	}, logging.Logger)
	go limiter.StartCleanup(5 * time.Minute)

	applier := services.NewMongoApplier(config.MongoDB, logging.Logger)

	monitor := services.NewProbeMonitor(
		services.MongoProbe(config.MongoClient),
		config.AppConfig.ProbeInterval,
		config.AppConfig.ProbeTimeout,
		logging.Logger,
	)
	go monitor.StartMonitoring()

	metrics := services.NewMetrics()

	coordinator := services.NewSyncCoordinator(store, limiter, applier, monitor, metrics, config.AppConfig.SyncMaxRetries, logging.Logger)
	if err := coordinator.Load(context.Background()); err != nil {
		logging.Logger.Error("failed to restore persisted queue", zap.Error(err))
	}

	trigger := services.NewSyncTrigger(coordinator, monitor, config.AppConfig.SyncPassInterval, logging.Logger)
	trigger.Start()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	logging.Logger.Info("shutdown signal received")

	trigger.Stop()
	monitor.Stop()
	limiter.StopCleanup()

	logging.Logger.Info("rupiya sync daemon stopped")
}
