package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/campus-admin-api/internal/models"
)

// AnalyticsRepository exposes read-only aggregate queries for the reporting endpoints.
type AnalyticsRepository struct {
	db DBTX
}

// NewAnalyticsRepository instantiates the repository.
func NewAnalyticsRepository(db DBTX) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

func courseScope(filter models.EnrollmentStatsFilter) (string, []interface{}) {
	var builder strings.Builder
	builder.WriteString(" WHERE 1=1")
	var args []interface{}
	if filter.Department != "" {
		args = append(args, filter.Department)
		builder.WriteString(fmt.Sprintf(" AND department = $%d", len(args)))
	}
	if filter.Semester != "" {
		args = append(args, filter.Semester)
		builder.WriteString(fmt.Sprintf(" AND semester = $%d", len(args)))
	}
	return builder.String(), args
}

// EnrollmentTotals sums capacity and enrollment over the filtered courses.
func (r *AnalyticsRepository) EnrollmentTotals(ctx context.Context, filter models.EnrollmentStatsFilter) (models.EnrollmentTotals, error) {
	where, args := courseScope(filter)
	query := `SELECT COUNT(*) AS total_courses, COALESCE(SUM(max_capacity), 0) AS total_capacity,
        COALESCE(SUM(current_enrollment), 0) AS total_enrollment FROM courses` + where
	var totals models.EnrollmentTotals
	if err := r.db.GetContext(ctx, &totals, query, args...); err != nil {
		return totals, fmt.Errorf("enrollment totals: %w", err)
	}
	return totals, nil
}

// EnrollmentByDepartment groups enrollment and capacity by department.
func (r *AnalyticsRepository) EnrollmentByDepartment(ctx context.Context, filter models.EnrollmentStatsFilter) ([]models.DepartmentEnrollment, error) {
	where, args := courseScope(filter)
	query := `SELECT department, COALESCE(SUM(current_enrollment), 0) AS enrollment, COALESCE(SUM(max_capacity), 0) AS capacity
        FROM courses` + where + ` GROUP BY department ORDER BY department`
	var rows []models.DepartmentEnrollment
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("enrollment by department: %w", err)
	}
	return rows, nil
}

// TopCourses ranks courses by current enrollment.
func (r *AnalyticsRepository) TopCourses(ctx context.Context, filter models.EnrollmentStatsFilter, limit int) ([]models.CourseEnrollment, error) {
	where, args := courseScope(filter)
	query := fmt.Sprintf(`SELECT course_code, course_name, current_enrollment AS enrollment, max_capacity AS capacity
        FROM courses%s ORDER BY current_enrollment DESC, course_code ASC LIMIT %d`, where, limit)
	var rows []models.CourseEnrollment
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("top courses: %w", err)
	}
	return rows, nil
}

// StudentTotals counts all and active students.
func (r *AnalyticsRepository) StudentTotals(ctx context.Context) (models.StudentTotals, error) {
	var totals models.StudentTotals
	const query = `SELECT COUNT(*) AS total, COUNT(*) FILTER (WHERE is_active) AS active FROM students`
	if err := r.db.GetContext(ctx, &totals, query); err != nil {
		return totals, fmt.Errorf("student totals: %w", err)
	}
	return totals, nil
}

// StudentsByDepartment counts students per department.
func (r *AnalyticsRepository) StudentsByDepartment(ctx context.Context) ([]models.DepartmentCount, error) {
	var rows []models.DepartmentCount
	const query = `SELECT department, COUNT(*) AS count FROM students GROUP BY department ORDER BY count DESC, department`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("students by department: %w", err)
	}
	return rows, nil
}

// NewStudentsByMonth counts students by enrollment month since the given instant.
func (r *AnalyticsRepository) NewStudentsByMonth(ctx context.Context, since time.Time) ([]models.PeriodCount, error) {
	var rows []models.PeriodCount
	const query = `SELECT to_char(date_trunc('month', enrollment_date), 'YYYY-MM') AS period, COUNT(*) AS count
        FROM students WHERE enrollment_date >= $1 GROUP BY period ORDER BY period`
	if err := r.db.SelectContext(ctx, &rows, query, since); err != nil {
		return nil, fmt.Errorf("new students by month: %w", err)
	}
	return rows, nil
}

// RevenueTotals computes windowed revenue plus the receivable position of active fees.
// Each active fee is owed once per active or completed registration in its course.
func (r *AnalyticsRepository) RevenueTotals(ctx context.Context, since *time.Time) (models.RevenueTotals, error) {
	const query = `SELECT
        COALESCE((SELECT SUM(amount_cents) FROM payments WHERE status = 'paid' AND ($1::timestamptz IS NULL OR payment_date >= $1)), 0) AS revenue_cents,
        COALESCE((SELECT SUM(f.amount_cents * rc.registrants) FROM fee_structures f
            JOIN (SELECT course_id, COUNT(*) AS registrants FROM registrations WHERE status IN ('active', 'completed') GROUP BY course_id) rc
            ON rc.course_id = f.course_id WHERE f.is_active), 0) AS active_fees_cents,
        COALESCE((SELECT SUM(p.amount_cents) FROM payments p JOIN fee_structures f ON f.id = p.fee_structure_id
            WHERE f.is_active AND p.status = 'paid'), 0) AS allocated_paid_cents,
        COALESCE((SELECT SUM(amount_cents) FROM payments WHERE status = 'paid'), 0) AS all_time_paid_cents`
	var totals models.RevenueTotals
	if err := r.db.GetContext(ctx, &totals, query, since); err != nil {
		return totals, fmt.Errorf("revenue totals: %w", err)
	}
	return totals, nil
}

// RevenueByFeeType groups windowed paid revenue by fee type.
func (r *AnalyticsRepository) RevenueByFeeType(ctx context.Context, since *time.Time) ([]models.FeeTypeRevenue, error) {
	var rows []models.FeeTypeRevenue
	const query = `SELECT f.fee_type, SUM(p.amount_cents) AS revenue_cents
        FROM payments p JOIN fee_structures f ON f.id = p.fee_structure_id
        WHERE p.status = 'paid' AND ($1::timestamptz IS NULL OR p.payment_date >= $1)
        GROUP BY f.fee_type ORDER BY revenue_cents DESC`
	if err := r.db.SelectContext(ctx, &rows, query, since); err != nil {
		return nil, fmt.Errorf("revenue by fee type: %w", err)
	}
	return rows, nil
}

// RevenueByMethod groups windowed paid revenue by payment method.
func (r *AnalyticsRepository) RevenueByMethod(ctx context.Context, since *time.Time) ([]models.MethodRevenue, error) {
	var rows []models.MethodRevenue
	const query = `SELECT payment_method, COUNT(*) AS transaction_count, SUM(amount_cents) AS amount_cents
        FROM payments WHERE status = 'paid' AND ($1::timestamptz IS NULL OR payment_date >= $1)
        GROUP BY payment_method ORDER BY amount_cents DESC`
	if err := r.db.SelectContext(ctx, &rows, query, since); err != nil {
		return nil, fmt.Errorf("revenue by method: %w", err)
	}
	return rows, nil
}

// ActivityByType counts activity entries since the given instant grouped by type.
func (r *AnalyticsRepository) ActivityByType(ctx context.Context, since time.Time) ([]models.ActivityTypeCount, error) {
	var rows []models.ActivityTypeCount
	const query = `SELECT activity_type, COUNT(*) AS count FROM activity_logs WHERE timestamp >= $1
        GROUP BY activity_type ORDER BY count DESC`
	if err := r.db.SelectContext(ctx, &rows, query, since); err != nil {
		return nil, fmt.Errorf("activity by type: %w", err)
	}
	return rows, nil
}

// ActivityByDay counts activity entries per UTC day.
func (r *AnalyticsRepository) ActivityByDay(ctx context.Context, since time.Time) ([]models.PeriodCount, error) {
	var rows []models.PeriodCount
	const query = `SELECT to_char((timestamp AT TIME ZONE 'UTC')::date, 'YYYY-MM-DD') AS period, COUNT(*) AS count
        FROM activity_logs WHERE timestamp >= $1 GROUP BY period ORDER BY period`
	if err := r.db.SelectContext(ctx, &rows, query, since); err != nil {
		return nil, fmt.Errorf("activity by day: %w", err)
	}
	return rows, nil
}

// MostActiveStudents ranks students by activity volume.
func (r *AnalyticsRepository) MostActiveStudents(ctx context.Context, since time.Time, limit int) ([]models.StudentActivityCount, error) {
	var rows []models.StudentActivityCount
	query := fmt.Sprintf(`SELECT s.student_id, s.name AS student_name, COUNT(a.id) AS activity_count
        FROM activity_logs a JOIN students s ON s.id = a.student_id
        WHERE a.timestamp >= $1 GROUP BY s.student_id, s.name
        ORDER BY activity_count DESC, s.student_id LIMIT %d`, limit)
	if err := r.db.SelectContext(ctx, &rows, query, since); err != nil {
		return nil, fmt.Errorf("most active students: %w", err)
	}
	return rows, nil
}

// CoursePerformance reports completion counts and average grade points per course.
func (r *AnalyticsRepository) CoursePerformance(ctx context.Context) ([]models.CoursePerformanceRow, error) {
	var rows []models.CoursePerformanceRow
	const query = `SELECT c.course_code, c.course_name, c.department,
        COUNT(r.id) AS total_registrations,
        COUNT(r.id) FILTER (WHERE r.status = 'completed') AS completed,
        ROUND(AVG(r.grade_points), 2)::float8 AS average_grade
        FROM courses c JOIN registrations r ON r.course_id = c.id
        GROUP BY c.id, c.course_code, c.course_name, c.department ORDER BY c.course_code`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("course performance: %w", err)
	}
	return rows, nil
}

// DepartmentPerformance reports registrations and average grade points per department.
func (r *AnalyticsRepository) DepartmentPerformance(ctx context.Context) ([]models.DepartmentPerformanceRow, error) {
	var rows []models.DepartmentPerformanceRow
	const query = `SELECT c.department, COUNT(r.id) AS total_registrations, ROUND(AVG(r.grade_points), 2)::float8 AS average_grade
        FROM courses c JOIN registrations r ON r.course_id = c.id
        GROUP BY c.department ORDER BY c.department`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("department performance: %w", err)
	}
	return rows, nil
}

// EnrollmentDrift lists courses whose counter differs from their active registration count.
func (r *AnalyticsRepository) EnrollmentDrift(ctx context.Context) ([]models.EnrollmentDrift, error) {
	var rows []models.EnrollmentDrift
	const query = `SELECT c.course_code, c.current_enrollment, COUNT(r.id) AS active_registrations
        FROM courses c LEFT JOIN registrations r ON r.course_id = c.id AND r.status = 'active'
        GROUP BY c.id, c.course_code, c.current_enrollment
        HAVING c.current_enrollment <> COUNT(r.id) ORDER BY c.course_code`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("enrollment drift: %w", err)
	}
	return rows, nil
}
