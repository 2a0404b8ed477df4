package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/cnportal/cn-portal-api/api/swagger"
	"github.com/cnportal/cn-portal-api/internal/handler"
	"github.com/cnportal/cn-portal-api/internal/middleware"
	"github.com/cnportal/cn-portal-api/internal/models"
	"github.com/cnportal/cn-portal-api/internal/repository"
	"github.com/cnportal/cn-portal-api/internal/service"
	"github.com/cnportal/cn-portal-api/pkg/cache"
	"github.com/cnportal/cn-portal-api/pkg/config"
	"github.com/cnportal/cn-portal-api/pkg/database"
	"github.com/cnportal/cn-portal-api/pkg/export"
	"github.com/cnportal/cn-portal-api/pkg/jobs"
	"github.com/cnportal/cn-portal-api/pkg/logger"
	corsmiddleware "github.com/cnportal/cn-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/cnportal/cn-portal-api/pkg/middleware/requestid"
	"github.com/cnportal/cn-portal-api/pkg/storage"
)

// @title CN Portal API
// @version 1.0.0
// @description Employee timesheet portal: period-based drafts, two-level approvals, exports
// @BasePath /api
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, dashboard caching disabled", "error", err)
		redisClient = nil
	}

	attachmentStore, err := storage.NewLocalStorage(cfg.Attachments.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init attachment storage", "error", err)
	}
	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	attachmentSigner := storage.NewSignedURLSigner(cfg.Attachments.SignedURLSecret, cfg.Attachments.SignedURLTTL)
	exportSigner := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	employeeRepo := repository.NewEmployeeRepository(db)
	candidateRepo := repository.NewCandidateRepository(db)
	timesheetRepo := repository.NewTimesheetRepository(db)
	reportRepo := repository.NewReportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, redisClient != nil)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	employeeSvc := service.NewEmployeeService(employeeRepo, userRepo, validate, logr)
	candidateSvc := service.NewCandidateService(candidateRepo, validate, logr)

	periodSvc := service.NewPeriodService()
	timesheetSvc := service.NewTimesheetService(timesheetRepo, periodSvc, userRepo, attachmentStore, attachmentSigner, metricsSvc, validate, logr, service.TimesheetServiceConfig{
		AllowedAttachmentMIMEs: cfg.Attachments.AllowedMIMEs,
		MaxAttachmentBytes:     cfg.Attachments.MaxFileSizeBytes,
	})

	exportSvc := service.NewExportService(timesheetRepo, employeeRepo, exportStore, exportSigner, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr, export.NewCSVExporter(), export.NewPDFExporter())

	reportWorker := service.NewReportWorker(reportRepo, exportSvc, cfg.Exports.WorkerRetries, logr)
	reportQueue := jobs.NewQueue("exports", reportWorker.Handle, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		Logger:     logr,
	})
	reportSvc := service.NewReportService(reportRepo, reportQueue, exportSvc, logr, service.ReportServiceConfig{
		ResultTTL:       cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
		MaxRetries:      cfg.Exports.WorkerRetries,
	})

	ctx := context.Background()
	reportQueue.Start(ctx)
	defer reportQueue.Stop()
	reportSvc.RecoverPendingJobs(ctx)
	reportSvc.StartCleanup(ctx)

	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Timesheets: timesheetRepo,
		Employees:  employeeRepo,
		Metrics:    metricsSvc,
		Cache:      cacheSvc,
		Logger:     logr,
		Config:     service.DashboardServiceConfig{CacheTTL: cfg.Dashboard.CacheTTL},
	})

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	employeeHandler := handler.NewEmployeeHandler(employeeSvc)
	candidateHandler := handler.NewCandidateHandler(candidateSvc)
	timesheetHandler := handler.NewTimesheetHandler(timesheetSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	exportHandler := handler.NewExportHandler(reportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.WithResponseMeta())
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

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
	}

	// Signed token downloads authenticate via the token itself.
	api.GET("/export/:token", exportHandler.Download)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))
	{
		protected.POST("/auth/logout", authHandler.Logout)
		protected.POST("/auth/change-password", authHandler.ChangePassword)
		protected.GET("/auth/me", authHandler.Me)

		timesheets := protected.Group("/timesheets")
		{
			timesheets.GET("/period-info", timesheetHandler.PeriodInfo)
			timesheets.POST("/auto-fill", timesheetHandler.AutoFill)
			timesheets.GET("/draft", timesheetHandler.GetDraft)
			timesheets.PUT("/draft", timesheetHandler.SaveDraft)
			timesheets.DELETE("/draft", timesheetHandler.DeleteDraft)
			timesheets.POST("/submit", timesheetHandler.Submit)
			timesheets.GET("", timesheetHandler.List)
			timesheets.GET("/:id", timesheetHandler.Get)
			timesheets.POST("/:id/attachments", timesheetHandler.Attach)
			timesheets.POST("/:id/approve", middleware.RequireApprover(), timesheetHandler.Approve)
			timesheets.POST("/:id/reject", middleware.RequireApprover(), timesheetHandler.Reject)
			timesheets.POST("/:id/reopen", middleware.RequireRoles(models.RoleAdmin), timesheetHandler.Reopen)
		}

		users := protected.Group("/users", middleware.RequireRoles(models.RoleAdmin))
		{
			users.GET("", userHandler.List)
			users.POST("", userHandler.Create)
			users.GET("/:id", userHandler.Get)
			users.PUT("/:id", userHandler.Update)
			users.PATCH("/:id/role", middleware.Audit(userRepo, "UPDATE_ROLE", "users"), userHandler.UpdateRole)
			users.DELETE("/:id", userHandler.Delete)
		}

		employees := protected.Group("/employees")
		{
			employees.GET("", employeeHandler.List)
			employees.GET("/:id", employeeHandler.Get)
			employees.GET("/:id/vendor", employeeHandler.Vendor)

			manage := employees.Group("", middleware.RequireRoles(models.RoleAdmin))
			manage.POST("", employeeHandler.Create)
			manage.PUT("/:id", employeeHandler.Update)
			manage.DELETE("/:id", employeeHandler.Deactivate)
			manage.PUT("/:id/vendor", employeeHandler.SetVendor)
		}

		candidates := protected.Group("/candidates", middleware.RequireRoles(models.RoleAdmin, models.RoleManager))
		{
			candidates.GET("", candidateHandler.List)
			candidates.POST("", candidateHandler.Create)
			candidates.GET("/:id", candidateHandler.Get)
			candidates.PUT("/:id", candidateHandler.Update)
			candidates.DELETE("/:id", candidateHandler.Delete)
		}

		dashboard := protected.Group("/dashboard", middleware.RequireRoles(models.RoleAdmin))
		{
			dashboard.GET("", dashboardHandler.Admin)
			dashboard.GET("/pending", dashboardHandler.PendingQueue)
		}

		exports := protected.Group("/exports")
		{
			exports.POST("", exportHandler.Create)
			exports.GET("/:id", exportHandler.Status)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
