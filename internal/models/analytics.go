package models

import "time"

// EnrollmentStatsFilter scopes enrollment statistics.
type EnrollmentStatsFilter struct {
	Department string
	Semester   string
}

// EnrollmentTotals aggregates capacity across the filtered courses.
type EnrollmentTotals struct {
	TotalCourses    int `db:"total_courses" json:"total_courses"`
	TotalCapacity   int `db:"total_capacity" json:"total_capacity"`
	TotalEnrollment int `db:"total_enrollment" json:"total_enrollment"`
}

// DepartmentEnrollment is enrollment against capacity for one department.
type DepartmentEnrollment struct {
	Department string `db:"department" json:"department"`
	Enrollment int    `db:"enrollment" json:"enrollment"`
	Capacity   int    `db:"capacity" json:"capacity"`
}

// CourseEnrollment ranks a single course by seats taken.
type CourseEnrollment struct {
	CourseCode string `db:"course_code" json:"course_code"`
	CourseName string `db:"course_name" json:"course_name"`
	Enrollment int    `db:"enrollment" json:"enrollment"`
	Capacity   int    `db:"capacity" json:"capacity"`
}

// StudentTotals counts students by activity flag.
type StudentTotals struct {
	Total  int `db:"total" json:"total_students"`
	Active int `db:"active" json:"active_students"`
}

// DepartmentCount is a per-department tally.
type DepartmentCount struct {
	Department string `db:"department" json:"department"`
	Count      int    `db:"count" json:"count"`
}

// PeriodCount is a tally for a month ("2025-01") or a day ("2025-01-31").
type PeriodCount struct {
	Period string `db:"period" json:"period"`
	Count  int    `db:"count" json:"count"`
}

// Timeframe selects the payment window of a financial report.
type Timeframe string

// Supported timeframes.
const (
	TimeframeCurrentSemester Timeframe = "current_semester"
	TimeframeLast30Days      Timeframe = "last_30_days"
	TimeframeLast90Days      Timeframe = "last_90_days"
	TimeframeAllTime         Timeframe = "all_time"
)

// Valid reports whether t is a supported timeframe.
func (t Timeframe) Valid() bool {
	switch t {
	case TimeframeCurrentSemester, TimeframeLast30Days, TimeframeLast90Days, TimeframeAllTime:
		return true
	}
	return false
}

// Since returns the inclusive lower bound of the window, or nil for all_time.
// Semesters start on January 1st and July 1st.
func (t Timeframe) Since(now time.Time) *time.Time {
	var start time.Time
	switch t {
	case TimeframeCurrentSemester:
		month := time.January
		if now.Month() > time.June {
			month = time.July
		}
		start = time.Date(now.Year(), month, 1, 0, 0, 0, 0, now.Location())
	case TimeframeLast30Days:
		start = now.AddDate(0, 0, -30)
	case TimeframeLast90Days:
		start = now.AddDate(0, 0, -90)
	default:
		return nil
	}
	return &start
}

// RevenueTotals carries the headline money figures of a financial report.
type RevenueTotals struct {
	Revenue     Money `db:"revenue_cents"`
	ActiveFees  Money `db:"active_fees_cents"`
	AllocPaid   Money `db:"allocated_paid_cents"`
	AllTimePaid Money `db:"all_time_paid_cents"`
}

// FeeTypeRevenue is paid revenue grouped by fee type.
type FeeTypeRevenue struct {
	FeeType FeeType `db:"fee_type" json:"fee_type"`
	Revenue Money   `db:"revenue_cents" json:"revenue"`
}

// MethodRevenue is paid revenue grouped by payment method.
type MethodRevenue struct {
	Method           PaymentMethod `db:"payment_method" json:"method"`
	TransactionCount int           `db:"transaction_count" json:"transaction_count"`
	Amount           Money         `db:"amount_cents" json:"total_amount"`
}

// ActivityTypeCount tallies activity entries by type.
type ActivityTypeCount struct {
	ActivityType ActivityType `db:"activity_type" json:"activity_type"`
	Count        int          `db:"count" json:"count"`
}

// StudentActivityCount ranks students by activity volume.
type StudentActivityCount struct {
	StudentID     string `db:"student_id" json:"student_id"`
	StudentName   string `db:"student_name" json:"student_name"`
	ActivityCount int    `db:"activity_count" json:"activity_count"`
}

// CoursePerformanceRow is completion and grade data for one course.
type CoursePerformanceRow struct {
	CourseCode         string   `db:"course_code" json:"course_code"`
	CourseName         string   `db:"course_name" json:"course_name"`
	Department         string   `db:"department" json:"department"`
	TotalRegistrations int      `db:"total_registrations" json:"total_students"`
	Completed          int      `db:"completed" json:"completed"`
	AverageGrade       *float64 `db:"average_grade" json:"average_grade"`
}

// DepartmentPerformanceRow is grade data aggregated per department.
type DepartmentPerformanceRow struct {
	Department         string   `db:"department" json:"department"`
	TotalRegistrations int      `db:"total_registrations" json:"total_registrations"`
	AverageGrade       *float64 `db:"average_grade" json:"average_grade"`
}

// EnrollmentDrift flags a course whose counter disagrees with its active registrations.
type EnrollmentDrift struct {
	CourseCode          string `db:"course_code" json:"course_code"`
	CurrentEnrollment   int    `db:"current_enrollment" json:"current_enrollment"`
	ActiveRegistrations int    `db:"active_registrations" json:"active_registrations"`
}

// AnalyticsSystemMetrics represents system level analytics captured from instrumentation.
type AnalyticsSystemMetrics struct {
	CacheHitRatio            float64           `json:"cache_hit_ratio"`
	CacheHits                uint64            `json:"cache_hits"`
	CacheMisses              uint64            `json:"cache_misses"`
	RequestsTotal            uint64            `json:"requests_total"`
	AverageRequestDurationMs float64           `json:"average_request_duration_ms"`
	DBQueryCount             uint64            `json:"db_query_count"`
	AverageDBQueryDurationMs float64           `json:"average_db_query_duration_ms"`
	LedgerOperations         map[string]uint64 `json:"ledger_operations"`
	Goroutines               int               `json:"goroutines"`
	GeneratedAt              time.Time         `json:"generated_at"`
}
