package service

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/campus-admin-api/internal/dto"
	"github.com/noah-isme/campus-admin-api/internal/models"
	appErrors "github.com/noah-isme/campus-admin-api/pkg/errors"
)

const (
	topCoursesLimit      = 10
	activeStudentsLimit  = 10
	demographicsMonths   = 6
	defaultActivityDays  = 30
	maxActivityDays      = 365
	analyticsQueryPrefix = "analytics_"
)

// AnalyticsRepository describes the persistence layer required by AnalyticsService.
type AnalyticsRepository interface {
	EnrollmentTotals(ctx context.Context, filter models.EnrollmentStatsFilter) (models.EnrollmentTotals, error)
	EnrollmentByDepartment(ctx context.Context, filter models.EnrollmentStatsFilter) ([]models.DepartmentEnrollment, error)
	TopCourses(ctx context.Context, filter models.EnrollmentStatsFilter, limit int) ([]models.CourseEnrollment, error)
	StudentTotals(ctx context.Context) (models.StudentTotals, error)
	StudentsByDepartment(ctx context.Context) ([]models.DepartmentCount, error)
	NewStudentsByMonth(ctx context.Context, since time.Time) ([]models.PeriodCount, error)
	RevenueTotals(ctx context.Context, since *time.Time) (models.RevenueTotals, error)
	RevenueByFeeType(ctx context.Context, since *time.Time) ([]models.FeeTypeRevenue, error)
	RevenueByMethod(ctx context.Context, since *time.Time) ([]models.MethodRevenue, error)
	ActivityByType(ctx context.Context, since time.Time) ([]models.ActivityTypeCount, error)
	ActivityByDay(ctx context.Context, since time.Time) ([]models.PeriodCount, error)
	MostActiveStudents(ctx context.Context, since time.Time, limit int) ([]models.StudentActivityCount, error)
	CoursePerformance(ctx context.Context) ([]models.CoursePerformanceRow, error)
	DepartmentPerformance(ctx context.Context) ([]models.DepartmentPerformanceRow, error)
	EnrollmentDrift(ctx context.Context) ([]models.EnrollmentDrift, error)
}

// AnalyticsService provides read-optimised reports with cache integration. Concurrent
// misses for the same report share one computation.
type AnalyticsService struct {
	repo    AnalyticsRepository
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
	enabled bool
	flight  singleflight.Group
	now     func() time.Time
}

// NewAnalyticsService constructs an analytics service.
func NewAnalyticsService(repo AnalyticsRepository, cache *CacheService, metrics *MetricsService, logger *zap.Logger, enabled bool) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{
		repo:    repo,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
		enabled: enabled,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// EnrollmentStatistics reports seat usage overall, per department and for the busiest
// courses. The boolean indicates whether data originated from cache.
func (s *AnalyticsService) EnrollmentStatistics(ctx context.Context, filter models.EnrollmentStatsFilter) (*dto.EnrollmentStatisticsResponse, bool, error) {
	key := reportKey("enrollment", "department="+filter.Department, "semester="+filter.Semester)
	return cachedReport(ctx, s, key, func(ctx context.Context) (*dto.EnrollmentStatisticsResponse, error) {
		var (
			totals      models.EnrollmentTotals
			departments []models.DepartmentEnrollment
			top         []models.CourseEnrollment
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(s.query("enrollment_totals", func() (err error) {
			totals, err = s.repo.EnrollmentTotals(gctx, filter)
			return err
		}))
		g.Go(s.query("enrollment_departments", func() (err error) {
			departments, err = s.repo.EnrollmentByDepartment(gctx, filter)
			return err
		}))
		g.Go(s.query("enrollment_top_courses", func() (err error) {
			top, err = s.repo.TopCourses(gctx, filter, topCoursesLimit)
			return err
		}))
		if err := g.Wait(); err != nil {
			return nil, err
		}

		resp := &dto.EnrollmentStatisticsResponse{
			Statistics: dto.EnrollmentSummary{
				TotalCourses:       totals.TotalCourses,
				TotalCapacity:      totals.TotalCapacity,
				TotalEnrollment:    totals.TotalEnrollment,
				OverallUtilization: percentage(totals.TotalEnrollment, totals.TotalCapacity),
				AvailableSeats:     totals.TotalCapacity - totals.TotalEnrollment,
			},
			DepartmentBreakdown: make([]dto.DepartmentUtilization, 0, len(departments)),
			TopCourses:          make([]dto.CourseUtilization, 0, len(top)),
			FiltersApplied:      map[string]string{},
		}
		for _, d := range departments {
			resp.DepartmentBreakdown = append(resp.DepartmentBreakdown, dto.DepartmentUtilization{
				Department:      d.Department,
				Enrollment:      d.Enrollment,
				Capacity:        d.Capacity,
				UtilizationRate: percentage(d.Enrollment, d.Capacity),
			})
		}
		for _, c := range top {
			resp.TopCourses = append(resp.TopCourses, dto.CourseUtilization{
				CourseCode:  c.CourseCode,
				CourseName:  c.CourseName,
				Enrollment:  c.Enrollment,
				Capacity:    c.Capacity,
				Utilization: percentage(c.Enrollment, c.Capacity),
			})
		}
		if filter.Department != "" {
			resp.FiltersApplied["department"] = filter.Department
		}
		if filter.Semester != "" {
			resp.FiltersApplied["semester"] = filter.Semester
		}
		return resp, nil
	})
}

// StudentDemographics reports the student body by status, department and joining month.
func (s *AnalyticsService) StudentDemographics(ctx context.Context) (*dto.DemographicsResponse, bool, error) {
	now := s.now()
	since := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(demographicsMonths - 1), 0)
	key := reportKey("demographics", since.Format("2006-01"))
	return cachedReport(ctx, s, key, func(ctx context.Context) (*dto.DemographicsResponse, error) {
		var (
			totals      models.StudentTotals
			departments []models.DepartmentCount
			months      []models.PeriodCount
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(s.query("student_totals", func() (err error) {
			totals, err = s.repo.StudentTotals(gctx)
			return err
		}))
		g.Go(s.query("student_departments", func() (err error) {
			departments, err = s.repo.StudentsByDepartment(gctx)
			return err
		}))
		g.Go(s.query("student_months", func() (err error) {
			months, err = s.repo.NewStudentsByMonth(gctx, since)
			return err
		}))
		if err := g.Wait(); err != nil {
			return nil, err
		}

		resp := &dto.DemographicsResponse{
			Demographics: dto.DemographicsSummary{
				TotalStudents:    totals.Total,
				ActiveStudents:   totals.Active,
				InactiveStudents: totals.Total - totals.Active,
			},
			DepartmentDistribution: make([]dto.DepartmentShare, 0, len(departments)),
			EnrollmentTrends:       make([]dto.MonthlyNewStudents, 0, len(months)),
		}
		for _, d := range departments {
			resp.DepartmentDistribution = append(resp.DepartmentDistribution, dto.DepartmentShare{
				Department:   d.Department,
				StudentCount: d.Count,
				Percentage:   percentage(d.Count, totals.Total),
			})
		}
		for _, m := range months {
			resp.EnrollmentTrends = append(resp.EnrollmentTrends, dto.MonthlyNewStudents{Month: m.Period, NewStudents: m.Count})
		}
		return resp, nil
	})
}

// FinancialReport reports paid revenue in the timeframe together with the outstanding
// balance of active fees across enrolled students.
func (s *AnalyticsService) FinancialReport(ctx context.Context, timeframe models.Timeframe) (*dto.FinancialReportResponse, bool, error) {
	if timeframe == "" {
		timeframe = models.TimeframeCurrentSemester
	}
	if !timeframe.Valid() {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "timeframe must be one of current_semester, last_30_days, last_90_days, all_time")
	}
	since := timeframe.Since(s.now())
	window := "all"
	if since != nil {
		window = since.Format("2006-01-02")
	}
	key := reportKey("financial", string(timeframe), window)
	return cachedReport(ctx, s, key, func(ctx context.Context) (*dto.FinancialReportResponse, error) {
		var (
			totals  models.RevenueTotals
			byType  []models.FeeTypeRevenue
			methods []models.MethodRevenue
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(s.query("revenue_totals", func() (err error) {
			totals, err = s.repo.RevenueTotals(gctx, since)
			return err
		}))
		g.Go(s.query("revenue_fee_types", func() (err error) {
			byType, err = s.repo.RevenueByFeeType(gctx, since)
			return err
		}))
		g.Go(s.query("revenue_methods", func() (err error) {
			methods, err = s.repo.RevenueByMethod(gctx, since)
			return err
		}))
		if err := g.Wait(); err != nil {
			return nil, err
		}

		outstanding := totals.ActiveFees - totals.AllocPaid
		if outstanding < 0 {
			outstanding = 0
		}
		resp := &dto.FinancialReportResponse{
			Timeframe: timeframe,
			Summary: dto.FinancialSummary{
				TotalRevenue:       totals.Revenue,
				OutstandingBalance: outstanding,
				CollectionRate:     ratio(float64(totals.AllocPaid.Cents()), float64(totals.ActiveFees.Cents())),
			},
			RevenueByFeeType: make([]dto.FeeTypeRevenueShare, 0, len(byType)),
			PaymentMethods:   methods,
		}
		if resp.PaymentMethods == nil {
			resp.PaymentMethods = []models.MethodRevenue{}
		}
		var typed models.Money
		for _, t := range byType {
			typed += t.Revenue
		}
		for _, t := range byType {
			resp.RevenueByFeeType = append(resp.RevenueByFeeType, dto.FeeTypeRevenueShare{
				FeeType:    t.FeeType,
				Revenue:    t.Revenue,
				Percentage: ratio(float64(t.Revenue.Cents()), float64(typed.Cents())),
			})
		}
		return resp, nil
	})
}

// ActivityReport summarises the audit trail over the last days days.
func (s *AnalyticsService) ActivityReport(ctx context.Context, days int) (*dto.ActivityReportResponse, bool, error) {
	if days <= 0 {
		days = defaultActivityDays
	}
	if days > maxActivityDays {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "days must not exceed "+strconv.Itoa(maxActivityDays))
	}
	since := s.now().AddDate(0, 0, -days)
	key := reportKey("activity", strconv.Itoa(days), since.Format("2006-01-02"))
	return cachedReport(ctx, s, key, func(ctx context.Context) (*dto.ActivityReportResponse, error) {
		var (
			byType []models.ActivityTypeCount
			byDay  []models.PeriodCount
			top    []models.StudentActivityCount
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(s.query("activity_types", func() (err error) {
			byType, err = s.repo.ActivityByType(gctx, since)
			return err
		}))
		g.Go(s.query("activity_days", func() (err error) {
			byDay, err = s.repo.ActivityByDay(gctx, since)
			return err
		}))
		g.Go(s.query("activity_students", func() (err error) {
			top, err = s.repo.MostActiveStudents(gctx, since, activeStudentsLimit)
			return err
		}))
		if err := g.Wait(); err != nil {
			return nil, err
		}

		total := 0
		for _, t := range byType {
			total += t.Count
		}
		resp := &dto.ActivityReportResponse{
			ReportPeriodDays: days,
			Summary: dto.ActivitySummary{
				TotalActivities:        total,
				AverageDailyActivities: round2(float64(total) / float64(days)),
			},
			ActivityBreakdown:  make([]dto.ActivityTypeShare, 0, len(byType)),
			DailyTrend:         make([]dto.DailyActivity, 0, len(byDay)),
			MostActiveStudents: top,
		}
		if resp.MostActiveStudents == nil {
			resp.MostActiveStudents = []models.StudentActivityCount{}
		}
		for _, t := range byType {
			resp.ActivityBreakdown = append(resp.ActivityBreakdown, dto.ActivityTypeShare{
				ActivityType: t.ActivityType,
				Count:        t.Count,
				Percentage:   percentage(t.Count, total),
			})
		}
		for _, d := range byDay {
			resp.DailyTrend = append(resp.DailyTrend, dto.DailyActivity{Date: d.Period, ActivityCount: d.Count})
		}
		return resp, nil
	})
}

// CoursePerformance reports completion rates and average grade points.
func (s *AnalyticsService) CoursePerformance(ctx context.Context) (*dto.CoursePerformanceResponse, bool, error) {
	key := reportKey("course-performance")
	return cachedReport(ctx, s, key, func(ctx context.Context) (*dto.CoursePerformanceResponse, error) {
		var (
			courses     []models.CoursePerformanceRow
			departments []models.DepartmentPerformanceRow
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(s.query("course_performance", func() (err error) {
			courses, err = s.repo.CoursePerformance(gctx)
			return err
		}))
		g.Go(s.query("department_performance", func() (err error) {
			departments, err = s.repo.DepartmentPerformance(gctx)
			return err
		}))
		if err := g.Wait(); err != nil {
			return nil, err
		}

		resp := &dto.CoursePerformanceResponse{
			CoursePerformance:     make([]dto.CoursePerformance, 0, len(courses)),
			DepartmentPerformance: departments,
		}
		if resp.DepartmentPerformance == nil {
			resp.DepartmentPerformance = []models.DepartmentPerformanceRow{}
		}
		for _, c := range courses {
			if c.AverageGrade != nil {
				avg := round2(*c.AverageGrade)
				c.AverageGrade = &avg
			}
			resp.CoursePerformance = append(resp.CoursePerformance, dto.CoursePerformance{
				CoursePerformanceRow: c,
				CompletionRate:       percentage(c.Completed, c.TotalRegistrations),
			})
		}
		return resp, nil
	})
}

// EnrollmentDrift lists courses whose enrollment counter disagrees with their active
// registrations. It always reads through to the database.
func (s *AnalyticsService) EnrollmentDrift(ctx context.Context) (*dto.EnrollmentDriftResponse, error) {
	if !s.enabled {
		return nil, appErrors.Clone(appErrors.ErrFeatureDisabled, "analytics disabled")
	}
	var drift []models.EnrollmentDrift
	err := s.query("enrollment_drift", func() (err error) {
		drift, err = s.repo.EnrollmentDrift(ctx)
		return err
	})()
	if err != nil {
		return nil, appErrors.Storage(err, "failed to check enrollment drift")
	}
	if len(drift) > 0 {
		s.logger.Error("enrollment counter drift detected", zap.Int("courses", len(drift)))
	}
	if drift == nil {
		drift = []models.EnrollmentDrift{}
	}
	return &dto.EnrollmentDriftResponse{Consistent: len(drift) == 0, Drift: drift}, nil
}

// SystemMetrics returns system instrumentation snapshot.
func (s *AnalyticsService) SystemMetrics() models.AnalyticsSystemMetrics {
	return s.metrics.Snapshot()
}

// cachedReport serves key from cache or builds it once for all concurrent callers.
func cachedReport[T any](ctx context.Context, s *AnalyticsService, key string, build func(context.Context) (T, error)) (T, bool, error) {
	var zero T
	if !s.enabled {
		return zero, false, appErrors.Clone(appErrors.ErrFeatureDisabled, "analytics disabled")
	}

	var cached T
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, true, nil
	}

	value, err, _ := s.flight.Do(key, func() (interface{}, error) {
		report, err := build(ctx)
		if err != nil {
			return nil, err
		}
		_ = s.cache.Set(ctx, key, report, 0)
		return report, nil
	})
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return zero, false, appErr
		}
		return zero, false, appErrors.Storage(err, "failed to build report")
	}
	return value.(T), false, nil
}

// query wraps a repository call with DB timing.
func (s *AnalyticsService) query(label string, fn func() error) func() error {
	return func() error {
		start := time.Now()
		err := fn()
		s.metrics.ObserveDBQuery(analyticsQueryPrefix+label, time.Since(start))
		return err
	}
}

func percentage(part, whole int) float64 {
	return ratio(float64(part), float64(whole))
}

func ratio(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return round2(part / whole * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
