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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/sheriapal/sheriapal-api/api/swagger"
	"github.com/sheriapal/sheriapal-api/internal/ai"
	"github.com/sheriapal/sheriapal-api/internal/handler"
	"github.com/sheriapal/sheriapal-api/internal/middleware"
	"github.com/sheriapal/sheriapal-api/internal/models"
	"github.com/sheriapal/sheriapal-api/internal/repository"
	"github.com/sheriapal/sheriapal-api/internal/search"
	"github.com/sheriapal/sheriapal-api/internal/service"
	"github.com/sheriapal/sheriapal-api/pkg/cache"
	"github.com/sheriapal/sheriapal-api/pkg/config"
	"github.com/sheriapal/sheriapal-api/pkg/database"
	"github.com/sheriapal/sheriapal-api/pkg/jobs"
	"github.com/sheriapal/sheriapal-api/pkg/logger"
	corsmiddleware "github.com/sheriapal/sheriapal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/sheriapal/sheriapal-api/pkg/middleware/requestid"
	"github.com/sheriapal/sheriapal-api/pkg/storage"
)

// @title SheriaPal API
// @version 1.0.0
// @description Legal document management and AI assistance backend
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	userRepo := repository.NewUserRepository(db)
	docRepo := repository.NewDocumentRepository(db)

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.AI.CacheTTL, logr, true)
		}
	}

	store, err := storage.New(storage.Config{
		Backend:      cfg.Storage.Backend,
		LocalDir:     cfg.Storage.LocalDir,
		S3Bucket:     cfg.Storage.S3Bucket,
		S3Region:     cfg.Storage.S3Region,
		AWSAccessKey: cfg.Storage.AWSAccessKey,
		AWSSecretKey: cfg.Storage.AWSSecretKey,
	})
	if err != nil {
		logr.Sugar().Fatalw("failed to init storage backend", "error", err)
	}

	signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)
	index := search.NewKeywordIndex()

	indexerSvc := service.NewIndexerService(docRepo, store, index, metricsSvc, logr)
	queue := jobs.NewQueue("indexer", indexerSvc.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Indexer.Workers,
		MaxRetries: cfg.Indexer.MaxRetries,
		RetryDelay: cfg.Indexer.RetryDelay,
		Logger:     logr,
	})
	queue.Start(ctx)
	defer queue.Stop()

	if err := indexerSvc.Warm(ctx); err != nil {
		logr.Sugar().Warnw("failed to warm document index", "error", err)
	}

	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, logr)
	lawyerSvc := service.NewLawyerService(userRepo, logr)
	docSvc := service.NewDocumentService(docRepo, store, signer, index, queue, logr, service.DocumentConfig{
		MaxFileSizeBytes: cfg.Storage.MaxFileSizeBytes,
		AllowedMIMEs:     cfg.Storage.AllowedMIMEs,
	})

	var completer ai.Completer
	if cfg.AI.Enabled {
		gemini, err := ai.NewGeminiCompleter(ctx, cfg.AI.APIKey, cfg.AI.Model)
		if err != nil {
			logr.Sugar().Warnw("gemini client init failed, AI surface disabled", "error", err)
		} else {
			defer gemini.Close()
			completer = gemini
		}
	}
	aiSvc := service.NewAIService(completer, index, cacheSvc, metricsSvc, logr, service.AIConfig{
		Model:          cfg.AI.Model,
		RequestTimeout: cfg.AI.RequestTimeout,
		CacheTTL:       cfg.AI.CacheTTL,
	})

	authHandler := handler.NewAuthHandler(authSvc)
	docHandler := handler.NewDocumentHandler(docSvc)
	lawyerHandler := handler.NewLawyerHandler(lawyerSvc)
	userHandler := handler.NewUserHandler(userSvc)
	aiHandler := handler.NewAIHandler(aiSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	// Signed tokens carry their own authentication.
	api.GET("/files/:token", docHandler.DownloadSigned)

	docs := api.Group("/documents", middleware.JWT(authSvc))
	{
		docs.POST("", docHandler.Upload)
		docs.GET("", docHandler.List)
		docs.GET("/:id", docHandler.Get)
		docs.DELETE("/:id", docHandler.Delete)
		docs.POST("/:id/submit", docHandler.Submit)
		docs.POST("/:id/approve", docHandler.Approve)
		docs.POST("/:id/reject", docHandler.Reject)
		docs.GET("/:id/download", docHandler.Download)
		docs.GET("/:id/signed-url", docHandler.SignedURL)
	}

	aiGroup := api.Group("/ai", middleware.JWT(authSvc))
	{
		aiGroup.POST("/query", aiHandler.Query)
		aiGroup.POST("/draft", aiHandler.Draft)
		aiGroup.GET("/templates", aiHandler.Templates)
	}

	admin := api.Group("/admin", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))
	{
		admin.GET("/users", userHandler.List)
		admin.POST("/users", userHandler.CreateAdmin)
		admin.GET("/users/:id", userHandler.Get)
		admin.PUT("/users/:id/role", userHandler.AssignRole)
		admin.GET("/lawyers/pending", lawyerHandler.ListPending)
		admin.POST("/lawyers/:id/approve", lawyerHandler.Approve)
		admin.POST("/lawyers/:id/decline", lawyerHandler.Decline)
		admin.GET("/documents/export", docHandler.Export)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

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
}
