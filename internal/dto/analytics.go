package dto

import "github.com/noah-isme/campus-admin-api/internal/models"

// EnrollmentStatisticsResponse summarises seat usage.
type EnrollmentStatisticsResponse struct {
	Statistics          EnrollmentSummary       `json:"statistics"`
	DepartmentBreakdown []DepartmentUtilization `json:"department_breakdown"`
	TopCourses          []CourseUtilization     `json:"top_courses"`
	FiltersApplied      map[string]string       `json:"filters_applied"`
}

// EnrollmentSummary carries the headline enrollment numbers.
type EnrollmentSummary struct {
	TotalCourses       int     `json:"total_courses"`
	TotalCapacity      int     `json:"total_capacity"`
	TotalEnrollment    int     `json:"total_enrollment"`
	OverallUtilization float64 `json:"overall_utilization"`
	AvailableSeats     int     `json:"available_seats"`
}

// DepartmentUtilization is seat usage per department.
type DepartmentUtilization struct {
	Department      string  `json:"department"`
	Enrollment      int     `json:"enrollment"`
	Capacity        int     `json:"capacity"`
	UtilizationRate float64 `json:"utilization_rate"`
}

// CourseUtilization is seat usage of one course.
type CourseUtilization struct {
	CourseCode  string  `json:"course_code"`
	CourseName  string  `json:"course_name"`
	Enrollment  int     `json:"enrollment"`
	Capacity    int     `json:"capacity"`
	Utilization float64 `json:"utilization"`
}

// DemographicsResponse describes the student body.
type DemographicsResponse struct {
	Demographics           DemographicsSummary  `json:"demographics"`
	DepartmentDistribution []DepartmentShare    `json:"department_distribution"`
	EnrollmentTrends       []MonthlyNewStudents `json:"enrollment_trends"`
}

// DemographicsSummary counts students by status.
type DemographicsSummary struct {
	TotalStudents    int `json:"total_students"`
	ActiveStudents   int `json:"active_students"`
	InactiveStudents int `json:"inactive_students"`
}

// DepartmentShare is a department's share of students.
type DepartmentShare struct {
	Department   string  `json:"department"`
	StudentCount int     `json:"student_count"`
	Percentage   float64 `json:"percentage"`
}

// MonthlyNewStudents counts students who joined in a month.
type MonthlyNewStudents struct {
	Month       string `json:"month"`
	NewStudents int    `json:"new_students"`
}

// FinancialReportResponse summarises revenue over a timeframe.
type FinancialReportResponse struct {
	Timeframe        models.Timeframe       `json:"timeframe"`
	Summary          FinancialSummary       `json:"financial_summary"`
	RevenueByFeeType []FeeTypeRevenueShare  `json:"revenue_by_fee_type"`
	PaymentMethods   []models.MethodRevenue `json:"payment_methods"`
}

// FinancialSummary carries revenue, outstanding balance and collection rate.
type FinancialSummary struct {
	TotalRevenue       models.Money `json:"total_revenue"`
	OutstandingBalance models.Money `json:"outstanding_balance"`
	CollectionRate     float64      `json:"collection_rate"`
}

// FeeTypeRevenueShare is revenue for one fee type with its share of the total.
type FeeTypeRevenueShare struct {
	FeeType    models.FeeType `json:"fee_type"`
	Revenue    models.Money   `json:"revenue"`
	Percentage float64        `json:"percentage"`
}

// ActivityReportResponse summarises audit activity.
type ActivityReportResponse struct {
	ReportPeriodDays   int                           `json:"report_period_days"`
	Summary            ActivitySummary               `json:"summary"`
	ActivityBreakdown  []ActivityTypeShare           `json:"activity_breakdown"`
	DailyTrend         []DailyActivity               `json:"daily_trend"`
	MostActiveStudents []models.StudentActivityCount `json:"most_active_students"`
}

// ActivitySummary carries the headline activity numbers.
type ActivitySummary struct {
	TotalActivities        int     `json:"total_activities"`
	AverageDailyActivities float64 `json:"average_daily_activities"`
}

// ActivityTypeShare is an activity type's share of the total.
type ActivityTypeShare struct {
	ActivityType models.ActivityType `json:"activity_type"`
	Count        int                 `json:"count"`
	Percentage   float64             `json:"percentage"`
}

// DailyActivity counts activity on one day.
type DailyActivity struct {
	Date          string `json:"date"`
	ActivityCount int    `json:"activity_count"`
}

// CoursePerformanceResponse reports completion and grades.
type CoursePerformanceResponse struct {
	CoursePerformance     []CoursePerformance               `json:"course_performance"`
	DepartmentPerformance []models.DepartmentPerformanceRow `json:"department_performance"`
}

// CoursePerformance is completion data for one course.
type CoursePerformance struct {
	models.CoursePerformanceRow
	CompletionRate float64 `json:"completion_rate"`
}

// EnrollmentDriftResponse lists courses whose counter disagrees with registrations.
type EnrollmentDriftResponse struct {
	Consistent bool                     `json:"consistent"`
	Drift      []models.EnrollmentDrift `json:"drift"`
}
