package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/qr-attendance-api/internal/repository"
	"github.com/noah-isme/qr-attendance-api/internal/scheduler"
	"github.com/noah-isme/qr-attendance-api/internal/service"
	"github.com/noah-isme/qr-attendance-api/pkg/cache"
	"github.com/noah-isme/qr-attendance-api/pkg/clock"
	"github.com/noah-isme/qr-attendance-api/pkg/config"
	"github.com/noah-isme/qr-attendance-api/pkg/database"
	"github.com/noah-isme/qr-attendance-api/pkg/logger"
	"github.com/noah-isme/qr-attendance-api/pkg/qrcode"
	"github.com/noah-isme/qr-attendance-api/pkg/storage"
)

func main() {
	runNow := flag.Bool("now", false, "enqueue one reset immediately after start")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if !cfg.Reset.Enabled && !*runNow {
		logr.Info("daily reset disabled, set RESET_ENABLED=true to schedule it")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		if redisClient, err = cache.NewRedis(ctx, cfg.Redis); err != nil {
			logr.Warn("redis unavailable, cache invalidation skipped", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	policy, err := clock.NewPolicy(clock.SystemClock{}, cfg.Attendance.Timezone)
	if err != nil {
		logr.Sugar().Fatalw("invalid cohort timezone", "error", err)
	}

	userRepo := repository.NewUserRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	sessionRepo := repository.NewQRSessionRepository(db)

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(repository.NewCacheRepository(redisClient, logr), metricsSvc, cfg.Cache.TTL, logr, redisClient != nil)
	aggregationSvc := service.NewAggregationService(userRepo, attendanceRepo, cacheSvc, policy, service.AggregationConfig{
		Cohort:   cfg.Attendance.Cohort,
		CacheTTL: cfg.Cache.TTL,
	}, logr)
	qrSvc := service.NewQRSessionService(sessionRepo, qrcode.NewEncoder(256), policy, cfg.Attendance.QRTTL, metricsSvc, logr)
	attendanceSvc := service.NewAttendanceService(service.AttendanceServiceParams{
		Store:       repository.NewRedemptionStore(db),
		Ledger:      attendanceRepo,
		Sessions:    sessionRepo,
		Users:       userRepo,
		QR:          qrSvc,
		Aggregation: aggregationSvc,
		Policy:      policy,
		Metrics:     metricsSvc,
		Logger:      logr,
	})

	schedCfg := scheduler.Config{
		Spec:       cfg.Reset.Cron,
		Location:   policy.Location(),
		Retries:    cfg.Reset.Retries,
		RetryDelay: 30 * time.Second,
	}
	if cfg.Reset.SnapshotEnabled {
		archive, err := storage.NewLocalStorage(cfg.Reset.SnapshotDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to prepare snapshot directory", "error", err)
		}
		schedCfg.Snapshots = service.NewSnapshotService(userRepo, attendanceRepo, archive, policy, service.SnapshotConfig{
			Cohort:    cfg.Attendance.Cohort,
			Retention: cfg.Reset.SnapshotRetention,
		}, logr)
	}

	sched, err := scheduler.NewResetScheduler(attendanceSvc, qrSvc, schedCfg, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to build reset scheduler", "error", err)
	}

	sched.Start(ctx)
	logr.Sugar().Infow("next daily reset", "at", sched.Next().Format(time.RFC3339), "timezone", policy.Location().String())
	if *runNow {
		sched.Trigger()
	}

	<-ctx.Done()
	logr.Info("stopping scheduler")
	sched.Stop()
}
