package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vidyalaya/vidyalaya-api/internal/models"
	appErrors "github.com/vidyalaya/vidyalaya-api/pkg/errors"
)

type reportRepository interface {
	FeeTotals(ctx context.Context, schoolID, sessionID string, today time.Time) (*models.FeeStatistics, error)
	CountStudentsWithFees(ctx context.Context, schoolID, sessionID string) (int, error)
	PaymentsBetween(ctx context.Context, schoolID string, from, to time.Time) ([]models.PaymentRow, error)
	ClassCollectionRows(ctx context.Context, schoolID, sessionID string) ([]models.ClassCollectionRate, error)
	CountClassStudents(ctx context.Context, classID, sessionID string) (int, error)
}

type reportAttendanceReader interface {
	ListClassBetween(ctx context.Context, classID, sessionID string, from, to time.Time) ([]models.DailyAttendanceRow, error)
	ListStudentBetween(ctx context.Context, studentID, sessionID string, from, to time.Time) ([]models.DailyAttendanceRow, error)
}

type reportEnrollmentReader interface {
	CountActiveBySession(ctx context.Context, sessionID string) (int, error)
}

type reportStructureReader interface {
	CountBySession(ctx context.Context, schoolID, sessionID string) (int, error)
}

type reportSessionReader interface {
	FindByID(ctx context.Context, id string) (*models.AcademicSession, error)
}

type reportCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// ReportService derives fee and attendance reports. Aggregates are cached
// with a short TTL; all series are zero-filled so charts never have holes.
type ReportService struct {
	repo        reportRepository
	attendance  reportAttendanceReader
	enrollments reportEnrollmentReader
	structures  reportStructureReader
	sessions    reportSessionReader
	cache       reportCache
	cacheTTL    time.Duration
	logger      *zap.Logger
}

// NewReportService constructs the report service.
func NewReportService(repo reportRepository, attendance reportAttendanceReader, enrollments reportEnrollmentReader, structures reportStructureReader, sessions reportSessionReader, cache reportCache, cacheTTL time.Duration, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &ReportService{
		repo:        repo,
		attendance:  attendance,
		enrollments: enrollments,
		structures:  structures,
		sessions:    sessions,
		cache:       cache,
		cacheTTL:    cacheTTL,
		logger:      logger,
	}
}

func reportCacheKey(schoolID, sessionID, name string, parts ...string) string {
	key := fmt.Sprintf("reports:%s:%s:%s", schoolID, sessionID, name)
	for _, part := range parts {
		key += ":" + part
	}
	return key
}

func (s *ReportService) fromCache(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	err := s.cache.Get(ctx, key, dest)
	if err == nil {
		return true
	}
	if !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("report cache read failed", zap.String("key", key), zap.Error(err))
	}
	return false
}

func (s *ReportService) toCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		s.logger.Warn("report cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// InvalidateSchool drops every cached report for a school. Called after
// writes that change the underlying aggregates.
func (s *ReportService) InvalidateSchool(ctx context.Context, schoolID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, fmt.Sprintf("reports:%s:*", schoolID)); err != nil {
		s.logger.Warn("report cache invalidation failed", zap.String("school_id", schoolID), zap.Error(err))
	}
}

// FeeStatistics aggregates the session's fee ledger with headcounts.
func (s *ReportService) FeeStatistics(ctx context.Context, schoolID, sessionID string) (*models.FeeStatistics, error) {
	key := reportCacheKey(schoolID, sessionID, "fee_statistics")
	var cached models.FeeStatistics
	if s.fromCache(ctx, key, &cached) {
		return &cached, nil
	}

	stats, err := s.repo.FeeTotals(ctx, schoolID, sessionID, time.Now().UTC())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate fee totals")
	}

	totalStudents, err := s.enrollments.CountActiveBySession(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrolled students")
	}
	withFees, err := s.repo.CountStudentsWithFees(ctx, schoolID, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students with fees")
	}
	structureCount, err := s.structures.CountBySession(ctx, schoolID, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count fee structures")
	}

	stats.TotalStudents = totalStudents
	stats.StudentsWithout = totalStudents - withFees
	if stats.StudentsWithout < 0 {
		stats.StudentsWithout = 0
	}
	stats.FeeStructureCount = structureCount
	stats.HasUnassignedFees = structureCount > 0 && stats.StudentsWithout > 0

	s.toCache(ctx, key, stats)
	return stats, nil
}

// DailyCollection returns the successful payment total per day for the last
// `days` days, zero-filled, oldest first.
func (s *ReportService) DailyCollection(ctx context.Context, schoolID string, days int) ([]models.CollectionPoint, error) {
	if days <= 0 {
		days = 7
	}
	key := reportCacheKey(schoolID, "-", "daily_collection", fmt.Sprintf("%d", days))
	var cached []models.CollectionPoint
	if s.fromCache(ctx, key, &cached) {
		return cached, nil
	}

	today := truncateToDay(time.Now().UTC())
	from := today.AddDate(0, 0, -(days - 1))
	rows, err := s.repo.PaymentsBetween(ctx, schoolID, from, today.AddDate(0, 0, 1))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payments")
	}

	totals := make(map[string]float64, days)
	for _, row := range rows {
		totals[truncateToDay(row.TransactionDate).Format("2006-01-02")] += row.Amount
	}

	points := make([]models.CollectionPoint, 0, days)
	for d := from; !d.After(today); d = d.AddDate(0, 0, 1) {
		dateKey := d.Format("2006-01-02")
		points = append(points, models.CollectionPoint{
			Date:   dateKey,
			Day:    d.Weekday().String()[:3],
			Amount: totals[dateKey],
		})
	}

	s.toCache(ctx, key, points)
	return points, nil
}

// MonthlyCollection buckets successful payments per month across the view
// session's window, zero-filling months with no payments.
func (s *ReportService) MonthlyCollection(ctx context.Context, schoolID, sessionID string) (*models.MonthlyCollection, error) {
	key := reportCacheKey(schoolID, sessionID, "monthly_collection")
	var cached models.MonthlyCollection
	if s.fromCache(ctx, key, &cached) {
		return &cached, nil
	}

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	start := time.Date(session.StartDate.Year(), session.StartDate.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(session.EndDate.Year(), session.EndDate.Month(), 1, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()
	if end.After(now) {
		end = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}

	rows, err := s.repo.PaymentsBetween(ctx, schoolID, start, end.AddDate(0, 1, 0))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payments")
	}

	totals := make(map[string]float64)
	for _, row := range rows {
		totals[row.TransactionDate.Format("2006-01")] += row.Amount
	}

	result := &models.MonthlyCollection{}
	for m := start; !m.After(end); m = m.AddDate(0, 1, 0) {
		result.Labels = append(result.Labels, m.Format("Jan 2006"))
		result.Data = append(result.Data, totals[m.Format("2006-01")])
	}

	s.toCache(ctx, key, result)
	return result, nil
}

// PaymentMethodDistribution sums successful payments per method over the
// last `days` days.
func (s *ReportService) PaymentMethodDistribution(ctx context.Context, schoolID string, days int) ([]models.PaymentMethodSlice, error) {
	if days <= 0 {
		days = 30
	}
	key := reportCacheKey(schoolID, "-", "payment_methods", fmt.Sprintf("%d", days))
	var cached []models.PaymentMethodSlice
	if s.fromCache(ctx, key, &cached) {
		return cached, nil
	}

	today := truncateToDay(time.Now().UTC())
	rows, err := s.repo.PaymentsBetween(ctx, schoolID, today.AddDate(0, 0, -(days-1)), today.AddDate(0, 0, 1))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payments")
	}

	totals := make(map[string]float64)
	order := make([]string, 0)
	for _, row := range rows {
		method := "unknown"
		if row.PaymentMethod != nil {
			method = *row.PaymentMethod
		}
		if _, seen := totals[method]; !seen {
			order = append(order, method)
		}
		totals[method] += row.Amount
	}

	slices := make([]models.PaymentMethodSlice, 0, len(order))
	for _, method := range order {
		slices = append(slices, models.PaymentMethodSlice{Method: method, Amount: totals[method]})
	}

	s.toCache(ctx, key, slices)
	return slices, nil
}

// ClassCollectionRates returns the per-class collection rate for a session.
func (s *ReportService) ClassCollectionRates(ctx context.Context, schoolID, sessionID string) ([]models.ClassCollectionRate, error) {
	key := reportCacheKey(schoolID, sessionID, "class_collection")
	var cached []models.ClassCollectionRate
	if s.fromCache(ctx, key, &cached) {
		return cached, nil
	}

	rates, err := s.repo.ClassCollectionRows(ctx, schoolID, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate class collections")
	}

	s.toCache(ctx, key, rates)
	return rates, nil
}

// ClassAttendanceStats summarises a class's attendance over the window.
func (s *ReportService) ClassAttendanceStats(ctx context.Context, schoolID, classID, sessionID string, dateRange models.DateRange) (*models.ClassAttendanceStats, error) {
	today := truncateToDay(time.Now().UTC())
	var from time.Time
	switch dateRange {
	case models.RangeWeek:
		from = today.AddDate(0, 0, -6)
	case models.RangeYear:
		from = today.AddDate(-1, 0, 0)
	default:
		from = today.AddDate(0, -1, 0)
	}

	key := reportCacheKey(schoolID, sessionID, "class_attendance", classID, string(dateRange))
	var cached models.ClassAttendanceStats
	if s.fromCache(ctx, key, &cached) {
		return &cached, nil
	}

	rows, err := s.attendance.ListClassBetween(ctx, classID, sessionID, from, today)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance range")
	}

	totalStudents, err := s.repo.CountClassStudents(ctx, classID, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count class students")
	}

	type dayAgg struct {
		present int
		total   int
	}
	byDay := make(map[string]*dayAgg)
	stats := &models.ClassAttendanceStats{TotalStudents: totalStudents}
	for _, row := range rows {
		dayKey := truncateToDay(row.Date).Format("2006-01-02")
		agg := byDay[dayKey]
		if agg == nil {
			agg = &dayAgg{}
			byDay[dayKey] = agg
		}
		agg.total++
		if row.Status == models.AttendancePresent || row.Status == models.AttendanceLate {
			agg.present++
		}

		if truncateToDay(row.Date).Equal(today) {
			switch row.Status {
			case models.AttendancePresent, models.AttendanceLate:
				stats.PresentToday++
			case models.AttendanceAbsent:
				stats.AbsentToday++
			}
		}
	}

	stats.TotalDays = len(byDay)
	if stats.TotalDays > 0 {
		var sum float64
		for _, agg := range byDay {
			if agg.total > 0 {
				sum += float64(agg.present) / float64(agg.total) * 100
			}
		}
		stats.AvgAttendance = sum / float64(stats.TotalDays)
	}

	s.toCache(ctx, key, stats)
	return stats, nil
}

// StudentAttendanceStats summarises one student's current calendar month.
func (s *ReportService) StudentAttendanceStats(ctx context.Context, studentID, sessionID string) (*models.StudentAttendanceStats, error) {
	now := time.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	rows, err := s.attendance.ListStudentBetween(ctx, studentID, sessionID, monthStart, truncateToDay(now))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student attendance")
	}

	stats := &models.StudentAttendanceStats{Month: now.Format("January 2006")}
	for _, row := range rows {
		stats.TotalDays++
		switch row.Status {
		case models.AttendancePresent:
			stats.PresentDays++
		case models.AttendanceAbsent:
			stats.AbsentDays++
		case models.AttendanceLate:
			stats.LateDays++
		case models.AttendanceHalfDay:
			stats.HalfDays++
		}
	}
	// Percentage mirrors the monthly rollups: full present days only, no
	// partial credit for late or half-day marks.
	if stats.TotalDays > 0 {
		stats.AttendancePercentage = float64(stats.PresentDays) / float64(stats.TotalDays) * 100
	}
	return stats, nil
}

// AttendanceTrends returns the daily attendance rate for a class over the
// last `days` days. Days where no attendance was taken carry has_data=false
// so charts can distinguish them from genuine zero-percent days.
func (s *ReportService) AttendanceTrends(ctx context.Context, schoolID, classID, sessionID string, days int) ([]models.AttendanceTrendPoint, error) {
	if days <= 0 {
		days = 7
	}
	key := reportCacheKey(schoolID, sessionID, "attendance_trends", classID, fmt.Sprintf("%d", days))
	var cached []models.AttendanceTrendPoint
	if s.fromCache(ctx, key, &cached) {
		return cached, nil
	}

	today := truncateToDay(time.Now().UTC())
	from := today.AddDate(0, 0, -(days - 1))
	rows, err := s.attendance.ListClassBetween(ctx, classID, sessionID, from, today)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance range")
	}

	type dayAgg struct {
		present int
		total   int
	}
	byDay := make(map[string]*dayAgg)
	for _, row := range rows {
		dayKey := truncateToDay(row.Date).Format("2006-01-02")
		agg := byDay[dayKey]
		if agg == nil {
			agg = &dayAgg{}
			byDay[dayKey] = agg
		}
		agg.total++
		if row.Status == models.AttendancePresent || row.Status == models.AttendanceLate {
			agg.present++
		}
	}

	points := make([]models.AttendanceTrendPoint, 0, days)
	for d := from; !d.After(today); d = d.AddDate(0, 0, 1) {
		dayKey := d.Format("2006-01-02")
		point := models.AttendanceTrendPoint{
			Date: dayKey,
			Day:  d.Weekday().String()[:3],
		}
		if agg, ok := byDay[dayKey]; ok && agg.total > 0 {
			point.Present = agg.present
			point.Total = agg.total
			point.Rate = float64(agg.present) / float64(agg.total) * 100
			point.HasData = true
		}
		points = append(points, point)
	}

	s.toCache(ctx, key, points)
	return points, nil
}
