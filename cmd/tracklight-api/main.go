package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/tracklight/tracklight-api/internal/handler"
	"github.com/tracklight/tracklight-api/internal/middleware"
	"github.com/tracklight/tracklight-api/internal/provider"
	"github.com/tracklight/tracklight-api/internal/repository"
	"github.com/tracklight/tracklight-api/internal/service"
	"github.com/tracklight/tracklight-api/pkg/cache"
	"github.com/tracklight/tracklight-api/pkg/config"
	"github.com/tracklight/tracklight-api/pkg/database"
	appErrors "github.com/tracklight/tracklight-api/pkg/errors"
	"github.com/tracklight/tracklight-api/pkg/jobs"
	"github.com/tracklight/tracklight-api/pkg/logger"
	corsmiddleware "github.com/tracklight/tracklight-api/pkg/middleware/cors"
	reqidmiddleware "github.com/tracklight/tracklight-api/pkg/middleware/requestid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	calendarRepo := repository.NewCalendarRepository(db)
	eventRepo := repository.NewEventRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Layout.CacheTTL, logr, cfg.Layout.CacheEnabled && redisClient != nil)

	matcher := service.NewRuleMatcher(logr)
	classifier := service.NewClassificationService(categoryRepo, eventRepo, matcher, logr)
	querySvc := service.NewEventQueryService(eventRepo, logr)
	allocator := service.NewAllocationService(querySvc, eventRepo, logr, service.AllocationConfig{
		WindowPadding:     cfg.Sync.WindowPadding,
		ProgressBatchSize: cfg.Allocation.ProgressBatchSize,
	})
	layoutSvc := service.NewLayoutService(querySvc, cacheSvc, cfg.Layout.CacheTTL, logr)
	categorySvc := service.NewCategoryService(categoryRepo, eventRepo, classifier, validator.New(), logr)
	eventSvc := service.NewEventService(eventRepo, categoryRepo, logr)
	reportSvc := service.NewReportService(eventRepo, categoryRepo, logr)

	calendarProvider := provider.NewHTTPProvider(cfg.Provider.BaseURL, cfg.Provider.Token, cfg.Provider.Timeout)
	syncSvc := service.NewSyncService(calendarProvider, calendarRepo, eventRepo, classifier, allocator, cacheSvc, metrics, logr, service.SyncServiceConfig{
		PageSize: cfg.Sync.PageSize,
	})

	if cfg.Sync.Interval > 0 {
		scheduler := jobs.NewScheduler("sync", cfg.Sync.Interval, func(ctx context.Context) error {
			_, err := syncSvc.SyncAll(ctx, false)
			if errors.Is(err, appErrors.ErrSyncInProgress) {
				return nil
			}
			return err
		}, logr)
		scheduler.Start(context.Background())
		defer scheduler.Stop()
	}

	syncHandler := handler.NewSyncHandler(syncSvc)
	calendarHandler := handler.NewCalendarHandler(calendarRepo)
	eventHandler := handler.NewEventHandler(querySvc, eventSvc)
	categoryHandler := handler.NewCategoryHandler(categorySvc)
	layoutHandler := handler.NewLayoutHandler(layoutSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	opsHandler := handler.NewOpsHandler(metrics, db)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", opsHandler.Health)
	r.GET("/ready", opsHandler.Ready)
	r.GET("/metrics", opsHandler.Prometheus)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/sync", syncHandler.Trigger)
		v1.GET("/sync/status", syncHandler.Status)
		v1.GET("/sync/last", syncHandler.Last)

		v1.GET("/calendars", calendarHandler.List)
		v1.PATCH("/calendars/:id", calendarHandler.SetEnabled)

		v1.GET("/events", eventHandler.List)
		v1.PATCH("/events/:id/category", eventHandler.SetCategory)

		v1.GET("/categories", categoryHandler.List)
		v1.GET("/categories/tree", categoryHandler.Tree)
		v1.POST("/categories", categoryHandler.Create)
		v1.PUT("/categories/:id", categoryHandler.Update)
		v1.DELETE("/categories/:id", categoryHandler.Delete)

		v1.GET("/layout/day", layoutHandler.Day)
		v1.GET("/reports/durations", reportHandler.Durations)
		v1.GET("/reports/durations/export", reportHandler.Export)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
