package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/campus-admin-api/internal/models"
)

const studentColumns = `id, student_id, name, department, email, phone, address, is_active, enrollment_date, created_at, updated_at`

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db DBTX
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db DBTX) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.Department != "" {
		args = append(args, filter.Department)
		conditions = append(conditions, fmt.Sprintf("department = $%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(student_id) LIKE $%d OR LOWER(email) LIKE $%d)", len(args), len(args), len(args)))
	}

	where := strings.Join(conditions, " AND ")

	allowedSorts := map[string]string{
		"name":            "name",
		"student_id":      "student_id",
		"enrollment_date": "enrollment_date",
		"created_at":      "created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	_, size, offset := models.Normalize(filter.Page, filter.PageSize, 100)

	query := fmt.Sprintf("SELECT %s FROM students WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d", studentColumns, where, column, order, size, offset)

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) FROM students WHERE %s", where), args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByKey fetches a student by business key. Returns sql.ErrNoRows when absent.
func (r *StudentRepository) FindByKey(ctx context.Context, studentKey string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE student_id = $1", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, studentKey); err != nil {
		return nil, MapError(err, "find student")
	}
	return &student, nil
}

// Lock reads a student row and locks it for the rest of the transaction. Exclusive locks
// are taken before deletion; shared locks keep the row alive while dependants are written.
func (r *StudentRepository) Lock(ctx context.Context, studentKey string, exclusive bool) (*models.Student, error) {
	mode := "FOR SHARE"
	if exclusive {
		mode = "FOR UPDATE"
	}
	query := fmt.Sprintf("SELECT %s FROM students WHERE student_id = $1 %s", studentColumns, mode)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, studentKey); err != nil {
		return nil, MapError(err, "lock student")
	}
	return &student, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.EnrollmentDate.IsZero() {
		student.EnrollmentDate = now
	}
	student.CreatedAt = now
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, student_id, name, department, email, phone, address, is_active, enrollment_date, created_at, updated_at)
        VALUES (:id, :student_id, :name, :department, :email, :phone, :address, :is_active, :enrollment_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return MapError(err, "create student")
	}
	return nil
}

// Update modifies the mutable profile fields of a student. The business key is immutable.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET name = :name, department = :department, email = :email, phone = :phone, address = :address, is_active = :is_active, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, student)
	if err != nil {
		return MapError(err, "update student")
	}
	return expectOne(res, "update student")
}

// Delete hard-deletes a student; registrations, payments and activity logs cascade.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return MapError(err, "delete student")
	}
	return expectOne(res, "delete student")
}

func expectOne(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
