package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/campus-admin-api/internal/models"
)

const registrationColumns = `r.id, r.student_id, r.course_id, r.registration_date, r.status, r.grade, r.grade_points, r.completion_date, r.updated_at`

const registrationDetailSelect = `SELECT ` + registrationColumns + `,
        s.student_id AS student_key, s.name AS student_name,
        c.course_code, c.course_name, c.credits, c.instructor, c.schedule
        FROM registrations r
        JOIN students s ON s.id = r.student_id
        JOIN courses c ON c.id = r.course_id`

// RegistrationRepository manages student-course registrations.
type RegistrationRepository struct {
	db DBTX
}

// NewRegistrationRepository constructs a RegistrationRepository.
func NewRegistrationRepository(db DBTX) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// FindForUpdate returns the registration for the pair and locks it.
func (r *RegistrationRepository) FindForUpdate(ctx context.Context, studentID, courseID string) (*models.Registration, error) {
	query := fmt.Sprintf("SELECT %s FROM registrations r WHERE r.student_id = $1 AND r.course_id = $2 FOR UPDATE", registrationColumns)
	var reg models.Registration
	if err := r.db.GetContext(ctx, &reg, query, studentID, courseID); err != nil {
		return nil, MapError(err, "find registration")
	}
	return &reg, nil
}

// Insert creates a registration. A second row for the same pair fails with ErrDuplicate.
func (r *RegistrationRepository) Insert(ctx context.Context, reg *models.Registration) error {
	if reg.ID == "" {
		reg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if reg.RegistrationDate.IsZero() {
		reg.RegistrationDate = now
	}
	reg.UpdatedAt = now
	const query = `INSERT INTO registrations (id, student_id, course_id, registration_date, status, grade, grade_points, completion_date, updated_at)
        VALUES (:id, :student_id, :course_id, :registration_date, :status, :grade, :grade_points, :completion_date, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, reg); err != nil {
		return MapError(err, "insert registration")
	}
	return nil
}

// Update persists status, grading and dates of an existing registration.
func (r *RegistrationRepository) Update(ctx context.Context, reg *models.Registration) error {
	reg.UpdatedAt = time.Now().UTC()
	const query = `UPDATE registrations SET status = :status, registration_date = :registration_date, grade = :grade,
        grade_points = :grade_points, completion_date = :completion_date, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, reg)
	if err != nil {
		return MapError(err, "update registration")
	}
	return expectOne(res, "update registration")
}

// CountActiveByStudent counts a student's active registrations.
func (r *RegistrationRepository) CountActiveByStudent(ctx context.Context, studentID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM registrations WHERE student_id = $1 AND status = $2`, studentID, models.RegistrationActive); err != nil {
		return 0, fmt.Errorf("count active registrations: %w", err)
	}
	return count, nil
}

// ListByStudent returns a student's registrations, newest first.
func (r *RegistrationRepository) ListByStudent(ctx context.Context, studentKey string, filter models.RegistrationFilter) ([]models.RegistrationDetail, error) {
	return r.list(ctx, "s.student_id = $1", studentKey, filter, "r.registration_date DESC")
}

// ListByCourse returns a course roster ordered by student name.
func (r *RegistrationRepository) ListByCourse(ctx context.Context, courseCode string, filter models.RegistrationFilter) ([]models.RegistrationDetail, error) {
	return r.list(ctx, "c.course_code = $1", courseCode, filter, "s.name ASC")
}

func (r *RegistrationRepository) list(ctx context.Context, cond string, key string, filter models.RegistrationFilter, order string) ([]models.RegistrationDetail, error) {
	args := []interface{}{key}
	query := registrationDetailSelect + " WHERE " + cond
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND r.status = $%d", len(args))
	}
	query += " ORDER BY " + order

	var regs []models.RegistrationDetail
	if err := r.db.SelectContext(ctx, &regs, query, args...); err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return regs, nil
}
