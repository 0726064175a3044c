package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/acadhub/thesis-supervision-api/api/swagger"
	"github.com/acadhub/thesis-supervision-api/internal/handler"
	"github.com/acadhub/thesis-supervision-api/internal/middleware"
	"github.com/acadhub/thesis-supervision-api/internal/models"
	"github.com/acadhub/thesis-supervision-api/internal/repository"
	"github.com/acadhub/thesis-supervision-api/internal/service"
	"github.com/acadhub/thesis-supervision-api/pkg/cache"
	"github.com/acadhub/thesis-supervision-api/pkg/config"
	"github.com/acadhub/thesis-supervision-api/pkg/database"
	"github.com/acadhub/thesis-supervision-api/pkg/logger"
	corsmiddleware "github.com/acadhub/thesis-supervision-api/pkg/middleware/cors"
	reqidmiddleware "github.com/acadhub/thesis-supervision-api/pkg/middleware/requestid"
	"github.com/acadhub/thesis-supervision-api/pkg/storage"
)

// @title Thesis Supervision API
// @version 1.0.0
// @description Thesis supervision workflow: invitations, engagements, tasks and progress reports.
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, roster caching disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	uploads, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}
	reports, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init report storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

	validate := validator.New()

	instructorRepo := repository.NewInstructorRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	invitationRepo := repository.NewInvitationRepository(db)
	engagementRepo := repository.NewEngagementRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	policy := service.UploadPolicy{
		MaxFileSizeBytes: cfg.Uploads.MaxFileSizeBytes,
		AllowedMIMEs:     cfg.Uploads.AllowedMIMEs,
	}

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(instructorRepo, studentRepo, validate, logr, service.AuthConfig{
		TokenSecret: cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.Expiration,
		Issuer:      cfg.JWT.Issuer,
	})
	invitationSvc := service.NewInvitationService(invitationRepo, studentRepo, engagementRepo, validate, logr)
	engagementSvc := service.NewEngagementService(engagementRepo, taskRepo, uploads, reports, signer, policy, validate, logr)
	taskSvc := service.NewTaskService(taskRepo, engagementRepo, uploads, policy, validate, logr)
	rosterSvc := service.NewRosterService(instructorRepo, studentRepo, cacheRepo, cfg.Roster.CacheTTL, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	invitationHandler := handler.NewInvitationHandler(invitationSvc)
	engagementHandler := handler.NewEngagementHandler(engagementSvc, reports)
	taskHandler := handler.NewTaskHandler(taskSvc)
	rosterHandler := handler.NewRosterHandler(rosterSvc)
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

	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/register/student", authHandler.RegisterStudent)
	api.POST("/auth/register/instructor", authHandler.RegisterInstructor)

	// Report downloads authorize through the signed token in the URL.
	api.GET("/reports/download", engagementHandler.DownloadReport)

	authed := api.Group("", middleware.JWT(authSvc))
	{
		authed.GET("/auth/me", authHandler.Me)

		authed.POST("/invitations", middleware.RequireKind(models.KindInstructor), invitationHandler.Create)
		authed.GET("/invitations", invitationHandler.List)
		authed.POST("/invitations/:id/respond", middleware.RequireKind(models.KindStudent), invitationHandler.Respond)

		authed.GET("/engagements", engagementHandler.List)
		authed.GET("/engagements/:id", engagementHandler.Get)
		authed.PATCH("/engagements/:id/status", engagementHandler.UpdateStatus)
		authed.DELETE("/engagements/:id", engagementHandler.Delete)
		authed.POST("/engagements/:id/thesis-files", engagementHandler.UploadThesisFile)
		authed.GET("/engagements/:id/thesis-files", engagementHandler.ListThesisFiles)
		authed.POST("/engagements/:id/report", engagementHandler.ProgressReport)

		authed.POST("/engagements/:id/tasks", taskHandler.Create)
		authed.GET("/engagements/:id/tasks", taskHandler.List)
		authed.PATCH("/tasks/:id", taskHandler.Update)
		authed.PATCH("/tasks/:id/status", taskHandler.UpdateStatus)
		authed.DELETE("/tasks/:id", taskHandler.Delete)
		authed.POST("/tasks/:id/attachments", taskHandler.AttachFile)
		authed.GET("/tasks/:id/attachments", taskHandler.ListAttachments)

		authed.GET("/roster/instructors", rosterHandler.ListInstructors)
		authed.GET("/roster/students", middleware.RequireKind(models.KindInstructor), rosterHandler.ListStudents)

		admin := authed.Group("/roster", middleware.RequireRoles(models.RoleAdmin))
		{
			admin.PATCH("/students/:id/status", rosterHandler.SetStudentStatus)
			admin.PATCH("/instructors/:id/role", rosterHandler.SetInstructorRole)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
