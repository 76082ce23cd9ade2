package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	"github.com/noah-isme/qr-attendance-api/internal/repository"
	"github.com/noah-isme/qr-attendance-api/pkg/clock"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
)

const rankingSize = 3

type rosterReader interface {
	ListStudents(ctx context.Context, cohort string) ([]models.RosterStudent, error)
}

type ledgerReader interface {
	List(ctx context.Context, filter repository.AttendanceFilter) ([]models.AttendanceRecord, error)
}

// AggregationConfig sets the cohort and default windows.
type AggregationConfig struct {
	Cohort        string
	TrendWindow   int
	RankingWindow int
	CacheTTL      time.Duration
}

// AggregationService derives daily views and statistics from the roster and the ledger.
// Absent entries are synthesized here and never stored.
type AggregationService struct {
	roster rosterReader
	ledger ledgerReader
	cache  *CacheService
	policy *clock.Policy
	cfg    AggregationConfig
	logger *zap.Logger
}

// NewAggregationService constructs the service.
func NewAggregationService(roster rosterReader, ledger ledgerReader, cache *CacheService, policy *clock.Policy, cfg AggregationConfig, logger *zap.Logger) *AggregationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TrendWindow <= 0 {
		cfg.TrendWindow = 7
	}
	if cfg.RankingWindow <= 0 {
		cfg.RankingWindow = 30
	}
	return &AggregationService{roster: roster, ledger: ledger, cache: cache, policy: policy, cfg: cfg, logger: logger}
}

// Cohort returns the tracked cohort.
func (s *AggregationService) Cohort() string { return s.cfg.Cohort }

// Daily returns one entry per roster student for day together with the day's stats.
func (s *AggregationService) Daily(ctx context.Context, day string) ([]models.DailyEntry, models.DailyStats, error) {
	students, err := s.students(ctx)
	if err != nil {
		return nil, models.DailyStats{}, err
	}
	records, err := s.ledger.List(ctx, repository.AttendanceFilter{From: day, To: day})
	if err != nil {
		return nil, models.DailyStats{}, appErrors.Storage(err, "failed to load attendance")
	}
	entries := buildDailyView(students, records, day)
	return entries, computeStats(entries), nil
}

// DailyView returns the roster view for day.
func (s *AggregationService) DailyView(ctx context.Context, day string) ([]models.DailyEntry, error) {
	entries, _, err := s.Daily(ctx, day)
	return entries, err
}

// DailyStats returns the day's status counts and attendance rate.
func (s *AggregationService) DailyStats(ctx context.Context, day string) (models.DailyStats, error) {
	_, stats, err := s.Daily(ctx, day)
	return stats, err
}

// Trends computes the presence curve of the last window days ending today.
func (s *AggregationService) Trends(ctx context.Context, window int) (*models.Trends, error) {
	if window <= 0 {
		window = s.cfg.TrendWindow
	}
	today := s.policy.TodayString()
	gen, cacheable := s.cache.Generation(ctx, s.cfg.Cohort)
	key := trendsCacheKey(s.cfg.Cohort, gen, today, window)
	var cached models.Trends
	if cacheable && s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	days := s.policy.LastDays(window)
	students, err := s.students(ctx)
	if err != nil {
		return nil, err
	}
	present := models.AttendanceStatusPresent
	records, err := s.ledger.List(ctx, repository.AttendanceFilter{
		From:   s.policy.DayString(days[0]),
		To:     today,
		Status: &present,
	})
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load attendance trends")
	}

	trends := buildTrends(students, records, days, s.policy.Location())
	if cacheable {
		s.cache.Set(ctx, key, trends, s.cfg.CacheTTL)
	}
	return trends, nil
}

// PerformanceRanking ranks roster students by distinct present days in the last window days.
func (s *AggregationService) PerformanceRanking(ctx context.Context, window int) (*models.PerformanceRanking, error) {
	if window <= 0 {
		window = s.cfg.RankingWindow
	}
	today := s.policy.TodayString()
	gen, cacheable := s.cache.Generation(ctx, s.cfg.Cohort)
	key := rankingCacheKey(s.cfg.Cohort, gen, today, window)
	var cached models.PerformanceRanking
	if cacheable && s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	days := s.policy.LastDays(window)
	students, err := s.students(ctx)
	if err != nil {
		return nil, err
	}
	present := models.AttendanceStatusPresent
	records, err := s.ledger.List(ctx, repository.AttendanceFilter{
		From:   s.policy.DayString(days[0]),
		To:     today,
		Status: &present,
	})
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load attendance ranking")
	}

	ranking := buildRanking(students, records, window)
	if cacheable {
		s.cache.Set(ctx, key, ranking, s.cfg.CacheTTL)
	}
	return ranking, nil
}

// Invalidate drops cached aggregates after the ledger or roster changed.
func (s *AggregationService) Invalidate(ctx context.Context) {
	s.cache.InvalidateCohort(ctx, s.cfg.Cohort)
}

func (s *AggregationService) students(ctx context.Context) ([]models.RosterStudent, error) {
	students, err := s.roster.ListStudents(ctx, s.cfg.Cohort)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load roster")
	}
	return students, nil
}

func buildDailyView(students []models.RosterStudent, records []models.AttendanceRecord, day string) []models.DailyEntry {
	byStudent := make(map[string]models.AttendanceRecord, len(records))
	for _, rec := range records {
		if _, seen := byStudent[rec.StudentID]; !seen {
			byStudent[rec.StudentID] = rec
		}
	}

	stored := make([]models.DailyEntry, 0, len(records))
	absent := make([]models.DailyEntry, 0, len(students))
	for _, st := range students {
		ref := models.StudentRef{ID: st.ID, Name: st.Name, Email: st.Email}
		rec, ok := byStudent[st.ID]
		if !ok {
			absent = append(absent, models.DailyEntry{
				Student: ref,
				Date:    day,
				Status:  models.AttendanceStatusAbsent,
			})
			continue
		}
		ts := rec.Timestamp
		stored = append(stored, models.DailyEntry{
			ID:        rec.ID,
			Student:   ref,
			Date:      day,
			Status:    rec.Status,
			Timestamp: &ts,
		})
	}

	// Roster order is by name, so a stable sort leaves equal timestamps name-ordered.
	sort.SliceStable(stored, func(i, j int) bool {
		return stored[i].Timestamp.Before(*stored[j].Timestamp)
	})
	return append(stored, absent...)
}

func computeStats(entries []models.DailyEntry) models.DailyStats {
	stats := models.DailyStats{Total: len(entries)}
	for _, e := range entries {
		if e.Synthesized() {
			continue
		}
		switch e.Status {
		case models.AttendanceStatusPresent:
			stats.Hadir++
		case models.AttendanceStatusExcused:
			stats.Izin++
		case models.AttendanceStatusSick:
			stats.Sakit++
		}
	}
	accounted := stats.Hadir + stats.Izin + stats.Sakit
	stats.Alfa = stats.Total - accounted
	if stats.Alfa < 0 {
		stats.Alfa = 0
	}
	stats.AttendanceRate = "0.00"
	if stats.Total > 0 {
		stats.AttendanceRate = fmt.Sprintf("%.2f", float64(accounted)/float64(stats.Total)*100)
	}
	return stats
}

func buildTrends(students []models.RosterStudent, records []models.AttendanceRecord, days []time.Time, loc *time.Location) *models.Trends {
	onRoster := rosterSet(students)
	presentByDay := make(map[string]map[string]struct{}, len(days))
	for _, rec := range records {
		if _, ok := onRoster[rec.StudentID]; !ok {
			continue
		}
		set, ok := presentByDay[rec.Day]
		if !ok {
			set = make(map[string]struct{})
			presentByDay[rec.Day] = set
		}
		set[rec.StudentID] = struct{}{}
	}

	total := len(students)
	trends := &models.Trends{
		Window:        len(days),
		Daily:         make([]models.TrendPoint, 0, len(days)),
		TotalStudents: total,
	}
	var sum float64
	for _, day := range days {
		date := day.In(loc).Format(clock.DateLayout)
		present := len(presentByDay[date])
		pct := percentage(present, total)
		sum += pct
		trends.Daily = append(trends.Daily, models.TrendPoint{
			Date:       date,
			Day:        day.In(loc).Weekday().String()[:3],
			Present:    present,
			Percentage: pct,
		})
	}
	avg := 0.0
	if len(days) > 0 {
		avg = sum / float64(len(days))
	}
	trends.WeeklyAverage = fmt.Sprintf("%.1f", avg)
	return trends
}

func buildRanking(students []models.RosterStudent, records []models.AttendanceRecord, window int) *models.PerformanceRanking {
	days := make(map[string]map[string]struct{}, len(students))
	for _, rec := range records {
		set, ok := days[rec.StudentID]
		if !ok {
			set = make(map[string]struct{})
			days[rec.StudentID] = set
		}
		set[rec.Day] = struct{}{}
	}

	performers := make([]models.Performer, 0, len(students))
	for _, st := range students {
		count := len(days[st.ID])
		performers = append(performers, models.Performer{
			StudentID:  st.ID,
			Name:       st.Name,
			Email:      st.Email,
			Count:      count,
			Percentage: percentage(count, window),
		})
	}
	sort.SliceStable(performers, func(i, j int) bool {
		if performers[i].Count != performers[j].Count {
			return performers[i].Count > performers[j].Count
		}
		return performers[i].Name < performers[j].Name
	})

	topN := rankingSize
	if len(performers) < topN {
		topN = len(performers)
	}
	top := append([]models.Performer{}, performers[:topN]...)

	rest := performers[topN:]
	start := len(rest) - rankingSize
	if start < 0 {
		start = 0
	}
	bottom := append([]models.Performer{}, rest[start:]...)
	sort.SliceStable(bottom, func(i, j int) bool {
		if bottom[i].Count != bottom[j].Count {
			return bottom[i].Count < bottom[j].Count
		}
		return bottom[i].Name < bottom[j].Name
	})

	return &models.PerformanceRanking{
		Window:           window,
		TopPerformers:    top,
		BottomPerformers: bottom,
	}
}

func rosterSet(students []models.RosterStudent) map[string]struct{} {
	set := make(map[string]struct{}, len(students))
	for _, st := range students {
		set[st.ID] = struct{}{}
	}
	return set
}

// percentage returns part/whole*100 rounded to one decimal, or 0 when whole is zero.
func percentage(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*1000) / 10
}
