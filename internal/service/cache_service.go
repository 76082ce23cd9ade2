package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
)

// CacheRepository abstracts persistence for cached aggregation payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
	Counter(ctx context.Context, key string) (int64, error)
	Incr(ctx context.Context, key string) (int64, error)
}

// CacheService wraps the aggregation cache and records hit metrics. Failures never
// propagate to callers; a broken cache only costs a recomputation.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get returns true when the cache was hit and dest was populated.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) bool {
	if !s.Enabled() {
		return false
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	}
	return err == nil
}

// Set stores value under key. A non-positive ttl uses the default.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if !s.Enabled() {
		return
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Generation returns the cohort's cache generation. Keys embed it so a result computed
// before an invalidation can never be read after it. ok is false when caching is off or
// the counter is unreadable; callers then bypass the cache.
func (s *CacheService) Generation(ctx context.Context, cohort string) (int64, bool) {
	if !s.Enabled() {
		return 0, false
	}
	gen, err := s.repo.Counter(ctx, generationKey(cohort))
	if err != nil {
		s.logger.Warn("cache generation read failed", zap.String("cohort", cohort), zap.Error(err))
		return 0, false
	}
	return gen, true
}

// InvalidateCohort advances the cohort generation and drops its cached aggregates.
func (s *CacheService) InvalidateCohort(ctx context.Context, cohort string) {
	if !s.Enabled() {
		return
	}
	if _, err := s.repo.Incr(ctx, generationKey(cohort)); err != nil {
		s.logger.Warn("cache generation bump failed", zap.String("cohort", cohort), zap.Error(err))
	}
	pattern := fmt.Sprintf("attendance:%s:*", cohort)
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
	}
}

// generationKey lives outside the attendance:{cohort}:* pattern so invalidation never
// resets it.
func generationKey(cohort string) string {
	return fmt.Sprintf("attendance-gen:%s", cohort)
}

func trendsCacheKey(cohort string, gen int64, today string, window int) string {
	return fmt.Sprintf("attendance:%s:g%d:trends:%s:%d", cohort, gen, today, window)
}

func rankingCacheKey(cohort string, gen int64, today string, window int) string {
	return fmt.Sprintf("attendance:%s:g%d:ranking:%s:%d", cohort, gen, today, window)
}
