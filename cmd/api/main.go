package main

import (
	"context"
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

	_ "github.com/vidyalaya/vidyalaya-api/api/swagger"
	"github.com/vidyalaya/vidyalaya-api/internal/handler"
	"github.com/vidyalaya/vidyalaya-api/internal/middleware"
	"github.com/vidyalaya/vidyalaya-api/internal/repository"
	"github.com/vidyalaya/vidyalaya-api/internal/service"
	"github.com/vidyalaya/vidyalaya-api/pkg/cache"
	"github.com/vidyalaya/vidyalaya-api/pkg/config"
	"github.com/vidyalaya/vidyalaya-api/pkg/database"
	"github.com/vidyalaya/vidyalaya-api/pkg/jobs"
	"github.com/vidyalaya/vidyalaya-api/pkg/logger"
	corsmiddleware "github.com/vidyalaya/vidyalaya-api/pkg/middleware/cors"
	reqidmiddleware "github.com/vidyalaya/vidyalaya-api/pkg/middleware/requestid"
)

// @title Vidyalaya API
// @version 1.0.0
// @description Multi-tenant school administration API
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, report caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	schoolRepo := repository.NewSchoolRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	classRepo := repository.NewClassRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	structureRepo := repository.NewFeeStructureRepository(db)
	studentFeeRepo := repository.NewStudentFeeRepository(db)
	discountRepo := repository.NewFeeDiscountRepository(db)
	transactionRepo := repository.NewFeeTransactionRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	summaryRepo := repository.NewAttendanceSummaryRepository(db)
	reportRepo := repository.NewReportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, schoolRepo, validate, logr, service.AuthConfig{
		Secret:        cfg.JWT.Secret,
		AccessExpiry:  cfg.JWT.Expiration,
		RefreshExpiry: cfg.JWT.RefreshExpiration,
		Issuer:        "vidyalaya-api",
	})
	schoolSvc := service.NewSchoolService(schoolRepo, validate, logr)
	sessionSvc := service.NewSessionService(sessionRepo, schoolRepo, validate, logr)
	userSvc := service.NewUserService(userRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, validate, logr)
	classSvc := service.NewClassService(classRepo, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, studentRepo, classRepo, validate, logr)
	feeSvc := service.NewFeeService(structureRepo, studentFeeRepo, discountRepo, enrollmentRepo, validate, logr)
	paymentSvc := service.NewPaymentService(studentFeeRepo, transactionRepo, validate, logr)
	discountSvc := service.NewDiscountService(discountRepo, studentFeeRepo, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, summaryRepo, classRepo, enrollmentRepo, validate, logr)
	reportSvc := service.NewReportService(reportRepo, attendanceRepo, enrollmentRepo, structureRepo, sessionRepo, cacheRepo, cfg.Reports.CacheTTL, logr)
	exportSvc := service.NewExportService(studentFeeRepo, attendanceRepo, transactionRepo, schoolRepo, metricsSvc, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		RetryDelay: cfg.Exports.RetryDelay,
		Logger:     logr,
	}, "", logr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exportSvc.Start(ctx)
	defer exportSvc.Stop()

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
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handlers := handler.Handlers{
		Auth:        handler.NewAuthHandler(authSvc),
		Schools:     handler.NewSchoolHandler(schoolSvc),
		Sessions:    handler.NewSessionHandler(sessionSvc),
		Users:       handler.NewUserHandler(userSvc),
		Students:    handler.NewStudentHandler(studentSvc),
		Classes:     handler.NewClassHandler(classSvc, sessionSvc),
		Enrollments: handler.NewEnrollmentHandler(enrollmentSvc, sessionSvc),
		Fees:        handler.NewFeeHandler(feeSvc, sessionSvc, reportSvc),
		Payments:    handler.NewPaymentHandler(paymentSvc, metricsSvc, reportSvc),
		Discounts:   handler.NewDiscountHandler(discountSvc, sessionSvc, reportSvc),
		Attendance:  handler.NewAttendanceHandler(attendanceSvc, sessionSvc, metricsSvc, reportSvc),
		Reports:     handler.NewReportHandler(reportSvc, sessionSvc),
		Exports:     handler.NewExportHandler(exportSvc, sessionSvc),
	}
	handler.RegisterRoutes(r.Group(cfg.APIPrefix), handlers, authSvc, handler.RouteConfig{
		ReportsEnabled: cfg.Reports.Enabled,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
}
