// Package scheduler runs the daily attendance reset on a cron timer.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/qr-attendance-api/internal/dto"
	"github.com/noah-isme/qr-attendance-api/internal/service"
	"github.com/noah-isme/qr-attendance-api/pkg/jobs"
)

// JobTypeDailyReset identifies the queued reset job.
const JobTypeDailyReset = "attendance.daily_reset"

type resetter interface {
	Reset(ctx context.Context, req service.ResetRequest) (*dto.ResetResponse, error)
}

type sessionSweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// Snapshotter archives the ledger before it is wiped.
type Snapshotter interface {
	Snapshot(ctx context.Context) (string, error)
}

// Config configures the reset schedule.
type Config struct {
	Spec       string
	Location   *time.Location
	Retries    int
	RetryDelay time.Duration
	JobTimeout time.Duration

	// Snapshots, when set, must succeed before the ledger is wiped.
	Snapshots Snapshotter
}

// ResetScheduler enqueues a ledger reset on every cron tick and runs it on a retrying queue.
type ResetScheduler struct {
	cron     *cron.Cron
	queue    *jobs.Queue
	resetter resetter
	sweeper  sessionSweeper
	snapshot Snapshotter
	spec     string
	logger   *zap.Logger
}

// NewResetScheduler validates the cron spec and wires the queue.
func NewResetScheduler(resetter resetter, sweeper sessionSweeper, cfg Config, logger *zap.Logger) (*ResetScheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 30 * time.Second
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 4 * time.Minute
	}

	s := &ResetScheduler{resetter: resetter, sweeper: sweeper, snapshot: cfg.Snapshots, spec: cfg.Spec, logger: logger}
	s.queue = jobs.NewQueue("attendance-reset", s.handle, jobs.QueueConfig{
		Workers:    1,
		MaxRetries: cfg.Retries,
		RetryDelay: cfg.RetryDelay,
		JobTimeout: cfg.JobTimeout,
		Logger:     logger,
		OnGiveUp: func(job jobs.Job, err error) {
			logger.Error("daily reset abandoned", zap.String("job_id", job.ID), zap.Int("attempts", job.Attempt), zap.Error(err))
		},
	})

	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger))
	s.cron = cron.New(
		cron.WithLocation(cfg.Location),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	if _, err := s.cron.AddFunc(cfg.Spec, s.Trigger); err != nil {
		return nil, fmt.Errorf("schedule reset %q: %w", cfg.Spec, err)
	}
	return s, nil
}

// Start runs the queue and the cron timer until Stop.
func (s *ResetScheduler) Start(ctx context.Context) {
	s.queue.Start(ctx)
	s.cron.Start()
	s.logger.Info("attendance reset scheduler started", zap.String("schedule", s.spec))
}

// Stop halts the timer, waits for a running tick, then drains the queue workers.
func (s *ResetScheduler) Stop() {
	<-s.cron.Stop().Done()
	s.queue.Stop()
	s.logger.Info("attendance reset scheduler stopped")
}

// Next reports the next planned run.
func (s *ResetScheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Trigger enqueues a reset job immediately.
func (s *ResetScheduler) Trigger() {
	if err := s.queue.Enqueue(jobs.Job{Type: JobTypeDailyReset}); err != nil {
		s.logger.Error("failed to enqueue daily reset", zap.Error(err))
	}
}

func (s *ResetScheduler) handle(ctx context.Context, job jobs.Job) error {
	if s.snapshot != nil {
		name, err := s.snapshot.Snapshot(ctx)
		if err != nil {
			return fmt.Errorf("snapshot ledger: %w", err)
		}
		if name != "" {
			s.logger.Info("ledger archived before reset", zap.String("job_id", job.ID), zap.String("file", name))
		}
	}
	res, err := s.resetter.Reset(ctx, service.ResetRequest{Trigger: service.ResetTriggerScheduled})
	if err != nil {
		return err
	}
	if s.sweeper != nil {
		if n, err := s.sweeper.SweepExpired(ctx); err != nil {
			s.logger.Warn("failed to sweep expired qr sessions", zap.Error(err))
		} else if n > 0 {
			s.logger.Info("expired qr sessions deactivated", zap.Int64("count", n))
		}
	}
	s.logger.Info("daily reset completed", zap.String("job_id", job.ID), zap.Int64("deleted", res.DeletedCount))
	return nil
}
