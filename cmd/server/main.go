package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/rajweepmondal/url-shortener/internal/analyticsqueue"
	"github.com/rajweepmondal/url-shortener/internal/cache"
	"github.com/rajweepmondal/url-shortener/internal/config"
	"github.com/rajweepmondal/url-shortener/internal/middleware"
	"github.com/rajweepmondal/url-shortener/internal/migrations"
	"github.com/rajweepmondal/url-shortener/internal/notifier"
	"github.com/rajweepmondal/url-shortener/internal/repository/postgres"
	"github.com/rajweepmondal/url-shortener/internal/repository/redis"
	"github.com/rajweepmondal/url-shortener/internal/router"
	"github.com/rajweepmondal/url-shortener/internal/service"
	"github.com/rajweepmondal/url-shortener/internal/sweeper"
	"github.com/rajweepmondal/url-shortener/internal/utils"
	"github.com/rajweepmondal/url-shortener/pkg/auth"
	"github.com/rajweepmondal/url-shortener/pkg/ratelimiter"
	"github.com/rajweepmondal/url-shortener/pkg/shortener"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting URL Shortener Service",
		zap.String("version", "1.0.0"),
		zap.String("port", cfg.Server.Port),
	)

	if err := migrations.Run(cfg.Database.URL); err != nil {
		logger.Fatal("Failed to apply database migrations", zap.Error(err))
	}
	logger.Info("Database migrations applied")

	dbConn, err := utils.NewDatabaseConnection(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to databases", zap.Error(err))
	}
	defer dbConn.Close()

	logger.Info("Database connections established")

	// Repositories
	urlRepo := postgres.NewURLRepository(dbConn.PostgreSQL)
	analyticsRepo := postgres.NewAnalyticsRepository(dbConn.PostgreSQL)
	notificationRepo := postgres.NewNotificationRepository(dbConn.PostgreSQL)
	cacheRepo := redis.NewCacheRepository(dbConn.Redis)
	rateLimitRepo := redis.NewRateLimitRepository(dbConn.Redis)

	// Two-tier cache
	l1Cache, err := cache.NewL1Cache(cfg.Cache.L1MaxItems)
	if err != nil {
		logger.Fatal("Failed to initialize L1 cache", zap.Error(err))
	}
	cacheManager := cache.NewManager(l1Cache, cacheRepo, cfg.Cache.PositiveTTL, cfg.Cache.NegativeTTL)

	// Short code allocator
	sc := shortener.New(cfg.App.ShortCodeLength, cfg.App.ShortCodeMaxAttempts, urlRepo, cfg.App.ReservedWordSet())

	// Webhook notifier and click-analytics queue
	webhookNotifier := notifier.New(
		notificationRepo,
		cfg.Webhook.Timeout,
		cfg.Webhook.MaxRetries,
		cfg.Webhook.RetryBaseDelay,
		cfg.Webhook.QueueSize,
		cfg.Webhook.BreakerThreshold,
		cfg.Webhook.AMQPUrl,
		logger,
	)
	clickQueue := analyticsqueue.New(cfg.Analytics.BrokerList(), cfg.Analytics.Topic, cfg.Analytics.QueueSize, cfg.Analytics.Workers, logger)

	urlService := service.NewURLService(
		urlRepo,
		analyticsRepo,
		cacheManager,
		sc,
		cfg.App.BaseURL,
		cfg.App.CacheTTL,
		logger,
		service.WithNotifier(webhookNotifier),
		service.WithAnalyticsQueue(clickQueue),
	)

	// Background sweeper for hard-deleting expired soft deletes
	urlSweeper := sweeper.New(urlRepo, cfg.Sweeper.Interval, cfg.Sweeper.GracePeriod, cfg.Sweeper.BatchSize, logger)
	go urlSweeper.Run()

	// Authentication
	authConfig := auth.AuthConfig{
		JWTSecret:    cfg.Auth.JWTSecret,
		JWTDuration:  cfg.Auth.JWTDuration,
		JWTIssuer:    cfg.Auth.JWTIssuer,
		AdminAPIKey:  cfg.Auth.AdminAPIKey,
		EnableJWT:    cfg.Auth.EnableJWT,
		EnableAPIKey: cfg.Auth.EnableAPIKey,
	}

	authManager, err := auth.NewAuthManager(authConfig)
	if err != nil {
		logger.Fatal("Failed to initialize auth manager", zap.Error(err))
	}

	rateLimiterConfig := ratelimiter.Config{
		Strategy: ratelimiter.StrategySlidingWindow,
		Limit:    cfg.App.RateLimit,
		Window:   cfg.App.RateWindow,
	}
	rateLimiter := ratelimiter.New(rateLimitRepo, rateLimiterConfig)
	rateLimitMiddleware := ratelimiter.NewMiddleware(rateLimiter)

	authMiddleware := middleware.NewAuthMiddleware(authManager, logger)

	httpRouter := router.New(urlService, logger, rateLimitMiddleware, authMiddleware)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      httpRouter.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("HTTP server starting", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to serve HTTP", zap.Error(err))
		}
	}()

	routes := httpRouter.GetRoutes()
	logger.Info("HTTP routes registered", zap.Strings("routes", routes))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	urlSweeper.Stop()
	webhookNotifier.Close()
	if err := clickQueue.Close(); err != nil {
		logger.Warn("failed to close analytics queue cleanly", zap.Error(err))
	}
	cacheManager.Close()

	logger.Info("Server stopped gracefully")
}

// initLogger initializes the logger based on configuration
func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapConfig zap.Config

	if cfg.Format == "console" {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig = zap.NewProductionConfig()
	}

	switch cfg.Level {
	case "debug":
		zapConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapConfig.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapConfig.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapConfig.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zapConfig.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return zapConfig.Build()
}
