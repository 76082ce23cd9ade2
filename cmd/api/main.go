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
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/qr-attendance-api/api/swagger"
	"github.com/noah-isme/qr-attendance-api/internal/handler"
	"github.com/noah-isme/qr-attendance-api/internal/repository"
	"github.com/noah-isme/qr-attendance-api/internal/router"
	"github.com/noah-isme/qr-attendance-api/internal/service"
	"github.com/noah-isme/qr-attendance-api/pkg/cache"
	"github.com/noah-isme/qr-attendance-api/pkg/clock"
	"github.com/noah-isme/qr-attendance-api/pkg/config"
	"github.com/noah-isme/qr-attendance-api/pkg/database"
	"github.com/noah-isme/qr-attendance-api/pkg/export"
	"github.com/noah-isme/qr-attendance-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/qr-attendance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/qr-attendance-api/pkg/middleware/requestid"
	"github.com/noah-isme/qr-attendance-api/pkg/qrcode"
)

// @title QR Attendance API
// @version 1.0.0
// @description Classroom attendance tracking with teacher-issued QR codes
// @BasePath /
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		applied, err := database.Migrate(ctx, db, cfg.Database.MigrationsDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to apply migrations", "error", err)
		}
		logr.Sugar().Infow("migrations applied", "files", applied)
	}

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, aggregate caching disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	policy, err := clock.NewPolicy(clock.SystemClock{}, cfg.Attendance.Timezone)
	if err != nil {
		logr.Sugar().Fatalw("invalid cohort timezone", "error", err)
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	sessionRepo := repository.NewQRSessionRepository(db)
	redemptions := repository.NewRedemptionStore(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, redisClient != nil)
	aggregationSvc := service.NewAggregationService(userRepo, attendanceRepo, cacheSvc, policy, service.AggregationConfig{
		Cohort:        cfg.Attendance.Cohort,
		TrendWindow:   cfg.Attendance.TrendWindow,
		RankingWindow: cfg.Attendance.RankingWindow,
		CacheTTL:      cfg.Cache.TTL,
	}, logr)
	qrSvc := service.NewQRSessionService(sessionRepo, qrcode.NewEncoder(256), policy, cfg.Attendance.QRTTL, metricsSvc, logr)
	attendanceSvc := service.NewAttendanceService(service.AttendanceServiceParams{
		Store:       redemptions,
		Ledger:      attendanceRepo,
		Sessions:    sessionRepo,
		Users:       userRepo,
		QR:          qrSvc,
		Aggregation: aggregationSvc,
		Policy:      policy,
		Metrics:     metricsSvc,
		Validator:   validate,
		Logger:      logr,
	})
	userSvc := service.NewUserService(userRepo, aggregationSvc, validate, logr, service.UserServiceConfig{
		Cohort:          cfg.Attendance.Cohort,
		DefaultPassword: cfg.Attendance.DefaultImportPassword,
		AdminName:       cfg.Setup.AdminName,
		AdminEmail:      cfg.Setup.AdminEmail,
		AdminPassword:   cfg.Setup.AdminPassword,
	})
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	exportSvc := service.NewExportService(aggregationSvc, userSvc, policy.Location(), logr, export.NewCSVExporter(), export.NewPDFExporter())

	checks := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		checks["redis"] = handler.PingFunc(cacheRepo.Ping)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	router.Register(r, router.Handlers{
		Auth:       handler.NewAuthHandler(authSvc),
		QR:         handler.NewQRHandler(qrSvc, attendanceSvc),
		Attendance: handler.NewAttendanceHandler(attendanceSvc, exportSvc, policy.TodayString),
		Users:      handler.NewUserHandler(userSvc, exportSvc),
		Metrics:    handler.NewMetricsHandler(metricsSvc, checks),
	}, router.Options{
		Prefix:     cfg.APIPrefix,
		EnableDocs: cfg.Env != config.EnvProduction,
		Tokens:     authSvc,
		Audit:      userRepo,
		MetricsSvc: metricsSvc,
		Logger:     logr,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "cohort", cfg.Attendance.Cohort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
