package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/college-portal-api/api/swagger"
	"github.com/noah-isme/college-portal-api/internal/handler"
	"github.com/noah-isme/college-portal-api/internal/middleware"
	"github.com/noah-isme/college-portal-api/internal/models"
	"github.com/noah-isme/college-portal-api/internal/policy"
	"github.com/noah-isme/college-portal-api/internal/repository"
	"github.com/noah-isme/college-portal-api/internal/service"
	"github.com/noah-isme/college-portal-api/pkg/cache"
	"github.com/noah-isme/college-portal-api/pkg/config"
	"github.com/noah-isme/college-portal-api/pkg/database"
	"github.com/noah-isme/college-portal-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/college-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/college-portal-api/pkg/middleware/requestid"
	"github.com/noah-isme/college-portal-api/pkg/storage"
)

// @title College Portal API
// @version 1.0.0
// @description Role-based administration backend for students, staff, departments and notices
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	validate := validator.New()

	// Redis is optional; caching degrades to direct reads when unavailable.
	var cacheRepo *repository.CacheRepository
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
			defer redisClient.Close() //nolint:errcheck
		}
	}

	files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init file storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	staffRepo := repository.NewStaffRepository(db)
	hodRepo := repository.NewHODRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	syllabusRepo := repository.NewSyllabusRepository(db)
	noticeRepo := repository.NewNoticeRepository(db)

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, cfg.Cache.Enabled && cacheRepo != nil)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "college-portal-api",
		Audience:           []string{"college-portal"},
	})
	authSvc.UseProfileSources(studentRepo, staffRepo)
	userSvc := service.NewUserService(userRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, userRepo, validate, logr)
	staffSvc := service.NewStaffService(staffRepo, userRepo, hodRepo, cfg.HOD.DeletionPolicy, validate, logr)
	hodSvc := service.NewHODService(hodRepo, staffRepo, cacheSvc, userRepo, cfg.Cache.TTL, validate, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, validate, logr)
	syllabusSvc := service.NewSyllabusService(syllabusRepo, subjectRepo, files, signer, logr)
	noticeSvc := service.NewNoticeService(noticeRepo, models.DefaultCategoryAudiences(), cfg.Notices.MaxAge, validate, logr)
	noticeSvc.UseCache(cacheSvc, cfg.Cache.TTL)
	exportSvc := service.NewExportService(studentRepo, staffRepo, files, signer, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	staffHandler := handler.NewStaffHandler(staffSvc)
	hodHandler := handler.NewHODHandler(hodSvc)
	subjectHandler := handler.NewSubjectHandler(subjectSvc)
	syllabusHandler := handler.NewSyllabusHandler(syllabusSvc, files)
	noticeHandler := handler.NewNoticeHandler(noticeSvc)
	exportHandler := handler.NewExportHandler(exportSvc, files)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

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
		auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	users := api.Group("/users", middleware.JWT(authSvc))
	{
		users.PUT("/me", userHandler.UpdateProfile)
		users.GET("", middleware.RequireRoles(false, models.RoleAdmin), userHandler.List)
		users.GET("/:id", middleware.RequireRoles(true, models.RoleAdmin), userHandler.Get)
		users.POST("/:id/deactivate", middleware.RequireRoles(false, models.RoleAdmin), userHandler.Deactivate)
		users.DELETE("/:id",
			middleware.RequireRoles(false, models.RoleAdmin),
			middleware.Audit(userRepo, models.AuditActionUserDelete, "user"),
			userHandler.Delete)
	}

	students := api.Group("/students", middleware.JWT(authSvc))
	{
		students.GET("", middleware.RequirePermission(policy.ActionList, policy.ResourceStudent), studentHandler.List)
		students.GET("/:id", middleware.RequirePermission(policy.ActionRead, policy.ResourceStudent), studentHandler.Get)
		students.POST("", middleware.RequirePermission(policy.ActionCreate, policy.ResourceStudent), studentHandler.Create)
		students.PUT("/:id", middleware.RequirePermission(policy.ActionUpdate, policy.ResourceStudent), studentHandler.Update)
		students.DELETE("/:id", middleware.RequirePermission(policy.ActionDelete, policy.ResourceStudent), studentHandler.Delete)
	}

	staff := api.Group("/staff", middleware.JWT(authSvc))
	{
		staff.GET("", middleware.RequirePermission(policy.ActionList, policy.ResourceStaff), staffHandler.List)
		staff.GET("/:id", middleware.RequirePermission(policy.ActionRead, policy.ResourceStaff), staffHandler.Get)
		staff.POST("", middleware.RequirePermission(policy.ActionCreate, policy.ResourceStaff), staffHandler.Create)
		staff.PUT("/:id", middleware.RequirePermission(policy.ActionUpdate, policy.ResourceStaff), staffHandler.Update)
		staff.DELETE("/:id", middleware.RequirePermission(policy.ActionDelete, policy.ResourceStaff), staffHandler.Delete)
	}

	hods := api.Group("/hods", middleware.JWT(authSvc))
	{
		hods.GET("", middleware.RequirePermission(policy.ActionList, policy.ResourceHOD), hodHandler.List)
		hods.GET("/:id", middleware.RequirePermission(policy.ActionRead, policy.ResourceHOD), hodHandler.Get)
		hods.GET("/current/:department", middleware.RequirePermission(policy.ActionRead, policy.ResourceHOD), hodHandler.Current)
		hods.POST("", middleware.RequirePermission(policy.ActionCreate, policy.ResourceHOD), hodHandler.Appoint)
		hods.PUT("/:id", middleware.RequirePermission(policy.ActionUpdate, policy.ResourceHOD), hodHandler.Update)
		hods.POST("/:id/retire", middleware.RequirePermission(policy.ActionDelete, policy.ResourceHOD), hodHandler.Retire)
	}

	api.GET("/departments", middleware.JWT(authSvc), subjectHandler.Departments)

	subjects := api.Group("/subjects", middleware.JWT(authSvc))
	{
		subjects.GET("", middleware.RequirePermission(policy.ActionList, policy.ResourceSubject), subjectHandler.List)
		subjects.GET("/:id", middleware.RequirePermission(policy.ActionRead, policy.ResourceSubject), subjectHandler.Get)
		subjects.POST("", middleware.RequirePermission(policy.ActionCreate, policy.ResourceSubject), subjectHandler.Create)
		subjects.PUT("/:id", middleware.RequirePermission(policy.ActionUpdate, policy.ResourceSubject), subjectHandler.Update)
		subjects.DELETE("/:id", middleware.RequirePermission(policy.ActionDelete, policy.ResourceSubject), subjectHandler.Delete)

		subjects.GET("/:id/syllabus", middleware.RequirePermission(policy.ActionRead, policy.ResourceSyllabus), syllabusHandler.GetBySubject)
		subjects.PUT("/:id/syllabus", middleware.RequirePermission(policy.ActionUpdate, policy.ResourceSyllabus), syllabusHandler.Upload)
		subjects.GET("/:id/syllabus/download", middleware.RequirePermission(policy.ActionRead, policy.ResourceSyllabus), syllabusHandler.DownloadURL)
	}

	syllabi := api.Group("/syllabi")
	{
		syllabi.GET("/download", syllabusHandler.Download)
		syllabi.GET("", middleware.JWT(authSvc), middleware.RequirePermission(policy.ActionList, policy.ResourceSyllabus), syllabusHandler.List)
		syllabi.DELETE("/:id", middleware.JWT(authSvc), middleware.RequirePermission(policy.ActionDelete, policy.ResourceSyllabus), syllabusHandler.Delete)
	}

	notices := api.Group("/notices", middleware.JWT(authSvc))
	{
		notices.GET("", middleware.RequirePermission(policy.ActionList, policy.ResourceNotice), noticeHandler.List)
		notices.GET("/:id", middleware.RequirePermission(policy.ActionRead, policy.ResourceNotice), noticeHandler.Get)
		notices.POST("", middleware.RequirePermission(policy.ActionCreate, policy.ResourceNotice), noticeHandler.Create)
		notices.PUT("/:id", middleware.RequirePermission(policy.ActionUpdate, policy.ResourceNotice), noticeHandler.Update)
		notices.DELETE("/:id", middleware.RequirePermission(policy.ActionDelete, policy.ResourceNotice), noticeHandler.Delete)
	}

	exports := api.Group("/exports")
	{
		exports.GET("/download", exportHandler.Download)
		exports.POST("/students", middleware.JWT(authSvc), middleware.RequirePermission(policy.ActionCreate, policy.ResourceExport), exportHandler.Students)
		exports.POST("/staff", middleware.JWT(authSvc), middleware.RequirePermission(policy.ActionCreate, policy.ResourceExport), exportHandler.Staff)
	}

	api.GET("/metrics/snapshot", middleware.JWT(authSvc), middleware.RequireRoles(false, models.RoleAdmin), metricsHandler.Snapshot)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sweeper *service.NoticeSweeper
	if cfg.Notices.SweepEnabled {
		sweeper = service.NewNoticeSweeper(noticeSvc, cfg.Notices.SweepInterval, logr)
		sweeper.Start(rootCtx)
		defer sweeper.Stop()
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Errorw("server failed", "error", err)
			stop()
		}
	}()

	<-rootCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logr.Sugar().Infow("server stopped")
}
