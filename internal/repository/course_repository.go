package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/campus-admin-api/internal/models"
)

const courseColumns = `id, course_code, course_name, description, credits, department, semester, year, max_capacity, current_enrollment, instructor, schedule, location, prerequisites, is_active, created_at, updated_at`

// CourseRepository manages persistence for courses.
type CourseRepository struct {
	db DBTX
}

// NewCourseRepository constructs a CourseRepository.
func NewCourseRepository(db DBTX) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns courses matching the filter ordered by code.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.ActiveOnly {
		conditions = append(conditions, "is_active = TRUE")
	}
	if filter.Department != "" {
		args = append(args, filter.Department)
		conditions = append(conditions, fmt.Sprintf("department = $%d", len(args)))
	}
	if filter.Semester != "" {
		args = append(args, filter.Semester)
		conditions = append(conditions, fmt.Sprintf("semester = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(course_code) LIKE $%d OR LOWER(course_name) LIKE $%d)", len(args), len(args)))
	}
	where := strings.Join(conditions, " AND ")
	_, size, offset := models.Normalize(filter.Page, filter.PageSize, 200)

	query := fmt.Sprintf("SELECT %s FROM courses WHERE %s ORDER BY course_code ASC LIMIT %d OFFSET %d", courseColumns, where, size, offset)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) FROM courses WHERE %s", where), args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// FindByCode fetches a course by its code without locking.
func (r *CourseRepository) FindByCode(ctx context.Context, code string) (*models.Course, error) {
	var course models.Course
	query := fmt.Sprintf("SELECT %s FROM courses WHERE course_code = $1", courseColumns)
	if err := r.db.GetContext(ctx, &course, query, code); err != nil {
		return nil, MapError(err, "find course")
	}
	return &course, nil
}

// FindByCodeForUpdate fetches a course and holds its row lock until the transaction ends.
// Concurrent enrollments against the same course serialise here.
func (r *CourseRepository) FindByCodeForUpdate(ctx context.Context, code string) (*models.Course, error) {
	var course models.Course
	query := fmt.Sprintf("SELECT %s FROM courses WHERE course_code = $1 FOR UPDATE", courseColumns)
	if err := r.db.GetContext(ctx, &course, query, code); err != nil {
		return nil, MapError(err, "lock course")
	}
	return &course, nil
}

// Create inserts a course with an empty roster.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	course.CurrentEnrollment = 0
	course.CreatedAt = now
	course.UpdatedAt = now
	const query = `INSERT INTO courses (id, course_code, course_name, description, credits, department, semester, year, max_capacity, current_enrollment, instructor, schedule, location, prerequisites, is_active, created_at, updated_at)
        VALUES (:id, :course_code, :course_name, :description, :credits, :department, :semester, :year, :max_capacity, :current_enrollment, :instructor, :schedule, :location, :prerequisites, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return MapError(err, "create course")
	}
	return nil
}

// Update writes catalogue fields. current_enrollment is never written here.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET course_name = :course_name, description = :description, credits = :credits, department = :department,
        semester = :semester, year = :year, max_capacity = :max_capacity, instructor = :instructor, schedule = :schedule,
        location = :location, prerequisites = :prerequisites, is_active = :is_active, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, course)
	if err != nil {
		return MapError(err, "update course")
	}
	return expectOne(res, "update course")
}

// AdjustEnrollment moves the enrollment counter by +1 or -1. The guard keeps the counter
// within [0, max_capacity]; false means the guard rejected the change.
func (r *CourseRepository) AdjustEnrollment(ctx context.Context, courseID string, delta int) (bool, error) {
	var query string
	switch delta {
	case 1:
		query = `UPDATE courses SET current_enrollment = current_enrollment + 1, updated_at = NOW() WHERE id = $1 AND current_enrollment < max_capacity`
	case -1:
		query = `UPDATE courses SET current_enrollment = current_enrollment - 1, updated_at = NOW() WHERE id = $1 AND current_enrollment > 0`
	default:
		return false, fmt.Errorf("adjust enrollment: unsupported delta %d", delta)
	}
	res, err := r.db.ExecContext(ctx, query, courseID)
	if err != nil {
		return false, MapError(err, "adjust enrollment")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("adjust enrollment rows affected: %w", err)
	}
	return affected == 1, nil
}
