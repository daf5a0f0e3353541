package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/campus-admin-api/internal/models"
)

const feeSelect = `SELECT f.id, f.course_id, c.course_code, f.fee_type, f.amount_cents, f.description, f.due_date, f.is_active, f.created_at
        FROM fee_structures f JOIN courses c ON c.id = f.course_id`

// FeeRepository manages course fee structures.
type FeeRepository struct {
	db DBTX
}

// NewFeeRepository constructs a FeeRepository.
func NewFeeRepository(db DBTX) *FeeRepository {
	return &FeeRepository{db: db}
}

// Insert stores a new active fee structure.
func (r *FeeRepository) Insert(ctx context.Context, fee *models.FeeStructure) error {
	if fee.ID == "" {
		fee.ID = uuid.NewString()
	}
	fee.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO fee_structures (id, course_id, fee_type, amount_cents, description, due_date, is_active, created_at)
        VALUES (:id, :course_id, :fee_type, :amount_cents, :description, :due_date, :is_active, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, fee); err != nil {
		return MapError(err, "insert fee structure")
	}
	return nil
}

// FindByID fetches a fee structure regardless of its active flag.
func (r *FeeRepository) FindByID(ctx context.Context, id string) (*models.FeeStructure, error) {
	var fee models.FeeStructure
	if err := r.db.GetContext(ctx, &fee, feeSelect+" WHERE f.id = $1", id); err != nil {
		return nil, MapError(err, "find fee structure")
	}
	return &fee, nil
}

// FindActive returns the most recent active fee of the given type for a course.
func (r *FeeRepository) FindActive(ctx context.Context, courseID string, feeType models.FeeType) (*models.FeeStructure, error) {
	var fee models.FeeStructure
	query := feeSelect + " WHERE f.course_id = $1 AND f.fee_type = $2 AND f.is_active = TRUE ORDER BY f.created_at DESC LIMIT 1"
	if err := r.db.GetContext(ctx, &fee, query, courseID, feeType); err != nil {
		return nil, MapError(err, "find active fee structure")
	}
	return &fee, nil
}

// ListActiveByCourse returns every active fee of a course.
func (r *FeeRepository) ListActiveByCourse(ctx context.Context, courseID string) ([]models.FeeStructure, error) {
	var fees []models.FeeStructure
	query := feeSelect + " WHERE f.course_id = $1 AND f.is_active = TRUE ORDER BY f.fee_type, f.created_at"
	if err := r.db.SelectContext(ctx, &fees, query, courseID); err != nil {
		return nil, fmt.Errorf("list fee structures: %w", err)
	}
	return fees, nil
}

// Deactivate soft-deletes a fee structure. Returns false when it was already inactive or
// does not exist.
func (r *FeeRepository) Deactivate(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE fee_structures SET is_active = FALSE WHERE id = $1 AND is_active = TRUE`, id)
	if err != nil {
		return false, MapError(err, "deactivate fee structure")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deactivate fee structure rows affected: %w", err)
	}
	return affected == 1, nil
}
