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
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/lecturer-contract-api/api/swagger"
	"github.com/noah-isme/lecturer-contract-api/internal/handler"
	"github.com/noah-isme/lecturer-contract-api/internal/middleware"
	"github.com/noah-isme/lecturer-contract-api/internal/models"
	"github.com/noah-isme/lecturer-contract-api/internal/repository"
	"github.com/noah-isme/lecturer-contract-api/internal/service"
	"github.com/noah-isme/lecturer-contract-api/pkg/cache"
	"github.com/noah-isme/lecturer-contract-api/pkg/config"
	"github.com/noah-isme/lecturer-contract-api/pkg/database"
	"github.com/noah-isme/lecturer-contract-api/pkg/export"
	"github.com/noah-isme/lecturer-contract-api/pkg/jobs"
	"github.com/noah-isme/lecturer-contract-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/lecturer-contract-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/lecturer-contract-api/pkg/middleware/requestid"
	"github.com/noah-isme/lecturer-contract-api/pkg/observability"
	"github.com/noah-isme/lecturer-contract-api/pkg/storage"
)

// @title Lecturer Contract API
// @version 1.0.0
// @description Teaching load computation and contract settlement for lecturer contracts
// @BasePath /api/v1
// @schemes http https
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

	flushSentry, err := observability.InitSentry(cfg.Sentry.DSN, cfg.Env, cfg.Release)
	if err != nil {
		logr.Warn("sentry disabled", zap.Error(err))
	}
	defer flushSentry()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			logr.Fatal("failed to apply migrations", zap.Error(err))
		}
		logr.Info("migrations applied")
	}

	metrics := service.NewMetricsService()
	readiness := map[string]handler.Pinger{"postgres": db}

	var cacheRepo service.CacheRepository
	var redisClient *redis.Client
	if cfg.Contracts.PDFCacheEnable {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, pdf cache disabled", zap.Error(err))
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
			readiness["redis"] = handler.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Contracts.PDFCacheTTL, logr, cacheRepo != nil)

	files, err := storage.NewLocalStorage(cfg.Signatures.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare signature storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Signatures.SignedURLSecret, cfg.Signatures.SignedURLTTL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cleanup := jobs.NewCleanupQueue(files, jobs.QueueConfig{Workers: 2, Logger: logr})
	cleanup.Start(ctx)

	validate := validator.New()
	userRepo := repository.NewUserRepository(db)
	contractRepo := repository.NewContractRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	lecturerRepo := repository.NewLecturerRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	contractSvc := service.NewContractService(service.ContractServiceDeps{
		Store:       contractRepo,
		Assignments: assignmentRepo,
		Lecturers:   lecturerRepo,
		Artifacts:   files,
		Cleanup:     cleanup,
		Signer:      signer,
		Renderer:    export.NewContractPDF(),
		Cache:       cacheSvc,
		Metrics:     metrics,
		Audit:       userRepo,
		Validator:   validate,
		Logger:      logr,
	}, service.ContractServiceConfig{
		MaxSignatureBytes: cfg.Signatures.MaxFileSizeBytes,
		AllowedMIMEs:      cfg.Signatures.AllowedMIMEs,
		IssuerName:        cfg.Contracts.IssuerName,
		PDFCacheTTL:       cfg.Contracts.PDFCacheTTL,
		DownloadPath:      cfg.APIPrefix + "/signatures/download",
	})
	assignmentSvc := service.NewAssignmentService(assignmentRepo, lecturerRepo, userRepo, validate, logr)
	lecturerSvc := service.NewLecturerService(lecturerRepo, userRepo, validate, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	metricsHandler := handler.NewMetricsHandler(metrics, readiness)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), routeDeps{
		auth:        handler.NewAuthHandler(authSvc),
		contracts:   handler.NewContractHandler(contractSvc, cfg.Signatures.MaxFileSizeBytes),
		assignments: handler.NewAssignmentHandler(assignmentSvc),
		lecturers:   handler.NewLecturerHandler(lecturerSvc),
		metrics:     metricsHandler,
		tokens:      authSvc,
		audit:       userRepo,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	cleanup.Stop()
	if redisClient != nil {
		_ = redisClient.Close()
	}
	logr.Info("server stopped")
}

type routeDeps struct {
	auth        *handler.AuthHandler
	contracts   *handler.ContractHandler
	assignments *handler.AssignmentHandler
	lecturers   *handler.LecturerHandler
	metrics     *handler.MetricsHandler
	tokens      *service.AuthService
	audit       *repository.UserRepository
}

func registerRoutes(api *gin.RouterGroup, deps routeDeps) {
	api.POST("/auth/login", deps.auth.Login)
	// The signed token is the credential for artifact downloads.
	api.GET("/signatures/download", deps.contracts.DownloadSignature)

	secured := api.Group("")
	secured.Use(middleware.JWT(deps.tokens))
	secured.GET("/auth/me", deps.auth.Me)

	adminOnly := middleware.RequireRoles()
	staff := middleware.RequireRoles(models.RoleManagement)
	anyone := middleware.RequireRoles(models.RoleManagement, models.RoleLecturer)

	secured.GET("/metrics/snapshot", adminOnly, deps.metrics.Snapshot)

	assignments := secured.Group("/assignments")
	assignments.GET("", staff, deps.assignments.List)
	assignments.POST("", adminOnly, deps.assignments.Create)
	assignments.PATCH("/:id/status", adminOnly, deps.assignments.UpdateStatus)
	assignments.PUT("/:id/lecturer", adminOnly, deps.assignments.AssignLecturer)

	lecturers := secured.Group("/lecturers")
	lecturers.GET("/:id", staff, deps.lecturers.Get)
	lecturers.PUT("/:id/rates/:year", adminOnly, deps.lecturers.UpsertRate)

	contracts := secured.Group("/contracts")
	contracts.POST("", adminOnly, deps.contracts.Create)
	contracts.GET("", anyone, deps.contracts.List)
	contracts.GET("/export", staff, middleware.Audit(deps.audit, models.AuditActionContractDownload, "contract_register"), deps.contracts.Export)
	contracts.GET("/:id", anyone, deps.contracts.Get)
	contracts.GET("/:id/summary", anyone, deps.contracts.Summary)
	contracts.GET("/:id/hours", anyone, deps.contracts.Hours)
	contracts.GET("/:id/salary", anyone, deps.contracts.Salary)
	contracts.GET("/:id/pdf", anyone, middleware.Audit(deps.audit, models.AuditActionContractDownload, "contract"), deps.contracts.PDF)
	contracts.POST("/:id/signatures/:role", anyone, deps.contracts.SubmitSignature)
	contracts.GET("/:id/signatures/:role/url", anyone, deps.contracts.SignatureURL)
	contracts.PATCH("/:id/status", adminOnly, deps.contracts.SetStatus)
	contracts.DELETE("/:id", adminOnly, deps.contracts.Delete)
}
