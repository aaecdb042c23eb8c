package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/lumenlms/announce-api/api/swagger"
	"github.com/lumenlms/announce-api/internal/handler"
	"github.com/lumenlms/announce-api/internal/middleware"
	"github.com/lumenlms/announce-api/internal/models"
	"github.com/lumenlms/announce-api/internal/repository"
	"github.com/lumenlms/announce-api/internal/service"
	"github.com/lumenlms/announce-api/pkg/cache"
	"github.com/lumenlms/announce-api/pkg/config"
	"github.com/lumenlms/announce-api/pkg/database"
	"github.com/lumenlms/announce-api/pkg/jobs"
	"github.com/lumenlms/announce-api/pkg/logger"
	corsmiddleware "github.com/lumenlms/announce-api/pkg/middleware/cors"
	reqidmiddleware "github.com/lumenlms/announce-api/pkg/middleware/requestid"
	"github.com/lumenlms/announce-api/pkg/storage"
)

// @title Lumen Announce API
// @version 0.1.0
// @description Announcement lifecycle and audience targeting engine
// @BasePath /api/v1
// @schemes http

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, viewer-context caching disabled", "error", err)
		redisClient = nil
	}

	annRepo := repository.NewAnnouncementRepository(db)
	memberRepo := repository.NewMembershipRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	exportRepo := repository.NewExportRepository(db)

	metricsSvc := service.NewMetricsService()
	tokenSvc := service.NewTokenService(service.TokenConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
	})
	annSvc := service.NewAnnouncementService(annRepo, memberRepo, cacheRepo, metricsSvc, validator.New(), logr, service.AnnouncementServiceConfig{
		DefaultPageSize: cfg.Announcements.DefaultPageSize,
		MaxPageSize:     cfg.Announcements.MaxPageSize,
		ViewerCacheTTL:  cfg.Announcements.ViewerCacheTTL,
	})

	var exportJobSvc *service.ExportJobService
	var exportQueue *jobs.Queue
	if cfg.Exports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc := service.NewExportService(annRepo, store, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Exports.SignedURLTTL,
		}, logr, nil, nil)
		worker := service.NewExportWorker(exportRepo, exportSvc, logr)
		exportQueue = jobs.NewQueue("acknowledgment_exports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			Logger:     logr,
		})
		exportQueue.Start(ctx)
		exportJobSvc = service.NewExportJobService(exportRepo, annRepo, exportQueue, exportSvc, logr, service.ExportJobServiceConfig{
			ResultTTL:       cfg.Exports.SignedURLTTL,
			CleanupInterval: cfg.Exports.CleanupInterval,
			MaxRetries:      cfg.Exports.WorkerRetries,
		})
		exportJobSvc.RecoverPendingJobs(ctx)
		exportJobSvc.StartCleanup(ctx)
	}

	annHandler := handler.NewAnnouncementHandler(annSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	if exportJobSvc != nil {
		exportHandler := handler.NewExportHandler(exportJobSvc)
		// Downloads authenticate via the signed token embedded in the URL.
		api.GET("/export/:token", exportHandler.Download)

		authedExports := api.Group("")
		authedExports.Use(middleware.JWT(tokenSvc))
		authedExports.GET("/exports/:id", exportHandler.Status)
		authedExports.POST("/announcements/:id/export",
			middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin, models.RoleSuperAdmin),
			exportHandler.CreateExport)
	}

	announcements := api.Group("/announcements")
	announcements.Use(middleware.JWT(tokenSvc))
	{
		announcements.GET("", annHandler.List)
		announcements.POST("/:id/acknowledge", annHandler.Acknowledge)
		announcements.POST("/:id/dismiss", annHandler.Dismiss)

		manage := announcements.Group("")
		manage.Use(middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin, models.RoleSuperAdmin))
		manage.POST("", annHandler.Create)
		manage.GET("/:id", annHandler.Get)
		manage.PATCH("/:id", annHandler.Update)
		manage.DELETE("/:id", annHandler.Delete)
		manage.POST("/:id/publish-now", annHandler.PublishNow)
		manage.GET("/:id/acknowledgments", annHandler.ListAcknowledgments)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
	if exportQueue != nil {
		exportQueue.Stop()
	}
}
