package main

import (
	"context"
	"errors"
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

	_ "github.com/lindenworks/studio-ops-api/api/swagger"
	"github.com/lindenworks/studio-ops-api/internal/handler"
	"github.com/lindenworks/studio-ops-api/internal/middleware"
	"github.com/lindenworks/studio-ops-api/internal/models"
	"github.com/lindenworks/studio-ops-api/internal/repository"
	"github.com/lindenworks/studio-ops-api/internal/service"
	"github.com/lindenworks/studio-ops-api/pkg/cache"
	"github.com/lindenworks/studio-ops-api/pkg/config"
	"github.com/lindenworks/studio-ops-api/pkg/database"
	"github.com/lindenworks/studio-ops-api/pkg/jobs"
	"github.com/lindenworks/studio-ops-api/pkg/logger"
	corsmiddleware "github.com/lindenworks/studio-ops-api/pkg/middleware/cors"
	reqidmiddleware "github.com/lindenworks/studio-ops-api/pkg/middleware/requestid"
	"github.com/lindenworks/studio-ops-api/pkg/storage"
)

// auditSink is what the services expect for the platform audit trail.
// It stays nil when the trail is disabled, which turns auditing off
// without any service knowing about the toggle.
type auditSink interface {
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
}

// @title Studio Ops API
// @version 1.0.0
// @description Suggestion review and pattern learning engine for the Linden Works ops platform.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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
	sugar := logr.Sugar()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		sugar.Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		sugar.Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	store, err := storage.NewLocalStorage(cfg.Sources.StorageDir)
	if err != nil {
		sugar.Fatalw("failed to init source storage", "error", err)
	}

	metrics := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	suggestionRepo := repository.NewSuggestionRepository(db)
	entryRepo := repository.NewAuditEntryRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)
	sourceRepo := repository.NewSourceRepository(db)
	patternRepo := repository.NewPatternRepository(db)
	targetRepo := repository.NewTargetRepository(db)
	ingestRepo := repository.NewIngestJobRepository(db)

	cacheSvc := service.NewCacheService(nil, metrics, 0, logr, false)
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metrics, 10*time.Minute, logr, true)
	}

	var audit auditSink
	if cfg.Audit.Enabled {
		audit = repository.NewAuditLogRepository(db)
	}

	validate := validator.New()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "studio-ops-api",
	})

	planner := service.NewChangePlanner(targetRepo)
	patternSvc := service.NewPatternService(patternRepo, sourceRepo, cacheSvc, metrics, logr,
		cfg.Patterns.DefaultBoost, cfg.Patterns.MatchCacheTTL)
	suggestionSvc := service.NewSuggestionService(suggestionRepo, entryRepo, feedbackRepo, sourceRepo,
		store, planner, db, audit, cacheSvc, metrics, validate, logr, service.SuggestionServiceConfig{
			DefaultPageSize: cfg.Review.DefaultPageSize,
			MaxPageSize:     cfg.Review.MaxPageSize,
			GroupCacheTTL:   cfg.Review.GroupCacheTTL,
		})
	reviewSvc := service.NewReviewService(db, suggestionRepo, entryRepo, targetRepo, planner,
		patternSvc, feedbackRepo, audit, cacheSvc, metrics, logr, cfg.Review.MaxBulkSize)

	var ingestSvc *service.IngestService
	var queue *jobs.Queue
	if cfg.Ingest.Enabled {
		worker := service.NewIngestWorker(ingestRepo, sourceRepo, store, cfg.Ingest.DropDir,
			cfg.Ingest.WorkerRetries, logr)
		queue = jobs.NewQueue("ingest", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Ingest.WorkerConcurrency,
			MaxRetries: cfg.Ingest.WorkerRetries,
			Logger:     logr,
		})
		queue.Start(context.Background())
		ingestSvc = service.NewIngestService(ingestRepo, queue, audit, cfg.Ingest.RecoveryLimit, logr)
		ingestSvc.RecoverPendingJobs(context.Background())
	}

	authHandler := handler.NewAuthHandler(authSvc)
	suggestionHandler := handler.NewSuggestionHandler(suggestionSvc)
	reviewHandler := handler.NewReviewHandler(reviewSvc)
	patternHandler := handler.NewPatternHandler(patternSvc)
	metricsHandler := handler.NewMetricsHandler(metrics, db)
	ingestHandler := handler.NewIngestHandler(nil)
	if ingestSvc != nil {
		ingestHandler = handler.NewIngestHandler(ingestSvc)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	requireAuth := middleware.JWT(authSvc)
	reviewerOnly := middleware.RequireRoles(models.RoleAdmin, models.RoleReviewer)
	generatorOnly := middleware.RequireRoles(models.RoleAdmin, models.RoleService)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", requireAuth, authHandler.Logout)
	auth.POST("/change-password", requireAuth, authHandler.ChangePassword)
	auth.GET("/me", requireAuth, authHandler.Me)

	suggestions := api.Group("/suggestions", requireAuth)
	suggestions.POST("", generatorOnly, suggestionHandler.Ingest)
	suggestions.GET("", reviewerOnly, suggestionHandler.List)
	suggestions.GET("/groups", reviewerOnly, suggestionHandler.Groups)
	suggestions.POST("/groups/approve", reviewerOnly, reviewHandler.ApproveGroup)
	suggestions.POST("/bulk/approve", reviewerOnly, reviewHandler.BulkApprove)
	suggestions.POST("/bulk/reject", reviewerOnly, reviewHandler.BulkReject)
	suggestions.GET("/:id", reviewerOnly, suggestionHandler.Get)
	suggestions.GET("/:id/preview", reviewerOnly, suggestionHandler.Preview)
	suggestions.GET("/:id/source", reviewerOnly, suggestionHandler.Source)
	suggestions.POST("/:id/approve", reviewerOnly, reviewHandler.Approve)
	suggestions.POST("/:id/reject", reviewerOnly, reviewHandler.Reject)
	suggestions.POST("/:id/correct", reviewerOnly, reviewHandler.Correct)
	suggestions.POST("/:id/rollback", reviewerOnly, reviewHandler.Rollback)
	suggestions.POST("/:id/feedback", reviewerOnly, suggestionHandler.Feedback)

	api.GET("/feedback/tags", requireAuth, reviewerOnly, suggestionHandler.Tags)

	patterns := api.Group("/patterns", requireAuth)
	patterns.GET("", reviewerOnly, patternHandler.List)
	patterns.GET("/match", generatorOnly, patternHandler.Match)

	ingestJobs := api.Group("/ingest-jobs", requireAuth, adminOnly)
	ingestJobs.POST("", ingestHandler.Create)
	ingestJobs.GET("", ingestHandler.List)
	ingestJobs.GET("/:id", ingestHandler.Get)

	api.GET("/system/metrics", requireAuth, adminOnly, metricsHandler.System)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.ListenAndServe()
	}()
	sugar.Infow("server starting", "addr", addr, "env", cfg.Env)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalw("server failed", "error", err)
		}
	case <-ctx.Done():
		sugar.Infow("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Warnw("server shutdown error", "error", err)
	}

	if queue != nil {
		sugar.Infow("stopping import queue", "depth", queue.Depth())
		queue.Stop()
	}
	sugar.Infow("server stopped")
}
