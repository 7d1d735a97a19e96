package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gangwalparul19/rupiya-sync/internal/config"
	"github.com/gangwalparul19/rupiya-sync/internal/handlers"
	"github.com/gangwalparul19/rupiya-sync/internal/logging"
	"github.com/gangwalparul19/rupiya-sync/internal/middleware"
	"github.com/gangwalparul19/rupiya-sync/internal/observability"
	"github.com/gangwalparul19/rupiya-sync/internal/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title           Rupiya Sync API
// @version         1.0
// @description     Offline mutation queue for the rupiya personal-finance tracker. Accepts add/update/delete operations against finance collections, persists them durably and drives them to the document store with bounded retries behind a per-collection sliding-window rate limiter.

// @host      localhost:8080
// @BasePath  /v1

// @tag.name queue
// @tag.description Offline mutation queue operations

// @tag.name ratelimit
// @tag.description Rate limiter introspection and resets

// @tag.name health
// @tag.description Health check operations

func main() {
	// Initialize logger first
	if err := logging.InitLogger(); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logging.Logger.Fatal("failed to load config", zap.Error(err))
	}

	// Initialize observability
	observability.InitTracer()
	defer observability.ShutdownTracer()

	// Initialize database connections
	config.InitMongoDB()
	config.InitRedis()

	// Assemble the queue subsystem
	store := services.NewRedisQueueStore(config.Redis, config.AppConfig.QueueSnapshotKey, logging.Logger)

	limiter := services.NewRateLimiter(services.LimitProfile{
		MaxRequests: config.AppConfig.RateLimitMaxRequests,
		Window:      config.AppConfig.RateLimitWindow,
	}, logging.Logger)
	limiter.SetProfile("expenses", services.LimitProfile{MaxRequests: 50, Window: time.Minute})
	limiter.SetProfile("budgets", services.LimitProfile{MaxRequests: 30, Window: time.Minute})
	limiter.SetProfile("goals", services.LimitProfile{MaxRequests: 30, Window: time.Minute})
	limiter.SetProfile("documents", services.LimitProfile{MaxRequests: 20, Window: time.Minute})
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

	// Set Gin mode
	if config.AppConfig.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create router with middleware
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(),
		middleware.RequestTracker(),
		cors.Default(),
	)

	// Metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	queueHandlers := handlers.NewQueueHandlers(coordinator, trigger, logging.Logger)
	rateLimitHandlers := handlers.NewRateLimitHandlers(limiter, logging.Logger)
	healthHandlers := handlers.NewHealthHandlers(coordinator)

	// API v1 routes
	v1 := router.Group("/v1")
	{
		v1.GET("/health", healthHandlers.Check)

		v1.POST("/queue/operations", queueHandlers.Enqueue)
		v1.GET("/queue/operations", queueHandlers.ListPending)
		v1.GET("/queue/failed", queueHandlers.ListFailed)
		v1.GET("/queue/stats", queueHandlers.Stats)
		v1.POST("/queue/flush", queueHandlers.Flush)
		v1.DELETE("/queue/completed", queueHandlers.ClearCompleted)
		v1.DELETE("/queue", queueHandlers.ClearAll)

		v1.GET("/ratelimit/:key", rateLimitHandlers.Status)
		v1.POST("/ratelimit/:key/reset", rateLimitHandlers.Reset)
		v1.POST("/ratelimit/reset", rateLimitHandlers.ResetAll)
	}

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Create server with timeouts
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.AppConfig.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logging.Logger.Info("starting server",
			zap.Int("port", config.AppConfig.Port),
			zap.String("environment", config.AppConfig.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	logging.Logger.Info("shutting down server...")

	trigger.Stop()
	monitor.Stop()
	limiter.StopCleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logging.Logger.Info("server exited gracefully")
}
