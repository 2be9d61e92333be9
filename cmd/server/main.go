package main

import (
	"context"
	"log"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/andriputra/skysearch/internal/cache"
	"github.com/andriputra/skysearch/internal/config"
	"github.com/andriputra/skysearch/internal/handler"
	"github.com/andriputra/skysearch/internal/orchestrator"
	"github.com/andriputra/skysearch/internal/progress"
	"github.com/andriputra/skysearch/internal/providers"
	"github.com/andriputra/skysearch/internal/ratelimit"
	"github.com/andriputra/skysearch/internal/store"
	"github.com/andriputra/skysearch/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	limiter := ratelimit.New(ratelimit.Config{
		PerMinute:         cfg.RateLimitPerMinute,
		PerHour:           cfg.RateLimitPerHour,
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	})

	registry := providers.NewRegistry(
		providers.NewAmadeusAdapter(providers.Config{
			BaseURL:    cfg.AmadeusBaseURL,
			APIKey:     cfg.AmadeusAPIKey,
			Timeout:    cfg.ProviderTimeout,
			MaxRetries: cfg.ProviderMaxRetries,
		}, limiter, zlog),
		providers.NewDuffelAdapter(providers.Config{
			BaseURL:    cfg.DuffelBaseURL,
			APIKey:     cfg.DuffelAPIKey,
			Timeout:    cfg.ProviderTimeout,
			MaxRetries: cfg.ProviderMaxRetries,
		}, limiter, zlog),
		providers.NewKiwiAdapter(providers.Config{
			BaseURL:    cfg.KiwiBaseURL,
			APIKey:     cfg.KiwiAPIKey,
			Timeout:    cfg.ProviderTimeout,
			MaxRetries: cfg.ProviderMaxRetries,
		}, limiter, zlog),
	)
	zlog.Info("initialized providers", zap.Strings("providers", registry.Names()))

	var resultCache cache.Cache
	if cfg.CacheEnabled {
		redisCache, err := cache.NewRedisCache(context.Background(), cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			zlog.Warn("redis unavailable, using in-memory cache", zap.Error(err))
			resultCache = cache.NewMemoryCache()
		} else {
			resultCache = redisCache
			zlog.Info("redis cache enabled", zap.String("addr", cfg.RedisAddr), zap.Duration("ttl", cfg.CacheTTL))
		}
	} else {
		resultCache = cache.NewNoOpCache()
		zlog.Info("cache disabled")
	}
	defer func() { _ = resultCache.Close() }()

	publisher := progress.NewPublisher(16, zlog)
	searchStore := store.NewMemoryStore()

	orch := orchestrator.New(orchestrator.Config{
		MaxActiveSearches: cfg.MaxActiveSearches,
		DefaultTimeout:    cfg.SearchTimeout,
		CacheTTL:          cfg.CacheTTL,
	}, registry, searchStore, resultCache, publisher, zlog)

	searchHandler := handler.NewSearchHandler(orch, searchStore, publisher, zlog)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())

	api := e.Group("/api/v1")
	api.POST("/flights/search", searchHandler.Submit)
	api.GET("/flights/searches/active", searchHandler.ListActive)
	api.GET("/flights/searches/:id/progress", searchHandler.GetProgress)
	api.DELETE("/flights/searches/:id", searchHandler.Cancel)
	api.POST("/flights/searches/:id/filter", searchHandler.Filter)
	api.POST("/flights/searches/:id/sort", searchHandler.Sort)

	e.GET("/ws/search/:id", searchHandler.Watch)
	e.GET("/health", searchHandler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	zlog.Info("starting flight search server", zap.String("port", cfg.Port))
	if err := e.Start(":" + cfg.Port); err != nil {
		zlog.Fatal("server exited", zap.Error(err))
	}
}
