package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/noah-isme/campus-admin-api/internal/models"
)

// PaymentRepository manages payments.
type PaymentRepository struct {
	db DBTX
}

// NewPaymentRepository constructs a PaymentRepository.
func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Insert stores a payment. A reused transaction id fails with ErrDuplicate on
// ConstraintTransactionID.
func (r *PaymentRepository) Insert(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.PaymentDate.IsZero() {
		payment.PaymentDate = time.Now().UTC()
	}
	const query = `INSERT INTO payments (id, student_id, fee_structure_id, amount_cents, payment_date, payment_method, transaction_id, status, notes)
        VALUES (:id, :student_id, :fee_structure_id, :amount_cents, :payment_date, :payment_method, :transaction_id, :status, :notes)`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return MapError(err, "insert payment")
	}
	return nil
}

// SumByFeeStructures totals a student's payments per fee structure. Fees without payments
// are absent from the result.
func (r *PaymentRepository) SumByFeeStructures(ctx context.Context, studentID string, feeIDs []string) (map[string]models.Money, error) {
	result := make(map[string]models.Money, len(feeIDs))
	if len(feeIDs) == 0 {
		return result, nil
	}
	const query = `SELECT fee_structure_id, COALESCE(SUM(amount_cents), 0) AS paid_cents
        FROM payments WHERE student_id = $1 AND fee_structure_id = ANY($2::uuid[])
        GROUP BY fee_structure_id`
	var rows []models.FeePaidTotal
	if err := r.db.SelectContext(ctx, &rows, query, studentID, pq.Array(feeIDs)); err != nil {
		return nil, fmt.Errorf("sum payments by fee: %w", err)
	}
	for _, row := range rows {
		result[row.FeeStructureID] = row.Paid
	}
	return result, nil
}

// TotalsByStudent returns everything a student has paid and the unallocated part of it.
func (r *PaymentRepository) TotalsByStudent(ctx context.Context, studentID string) (models.Money, models.Money, error) {
	const query = `SELECT COALESCE(SUM(amount_cents), 0),
        COALESCE(SUM(amount_cents) FILTER (WHERE fee_structure_id IS NULL), 0)
        FROM payments WHERE student_id = $1`
	var total, unallocated models.Money
	if err := r.db.QueryRowxContext(ctx, query, studentID).Scan(&total, &unallocated); err != nil {
		return 0, 0, fmt.Errorf("payment totals: %w", err)
	}
	return total, unallocated, nil
}

// ListByStudent returns payment history newest first, optionally limited to one course.
func (r *PaymentRepository) ListByStudent(ctx context.Context, studentKey string, courseCode string) ([]models.PaymentDetail, error) {
	query := `SELECT p.id, p.student_id, p.fee_structure_id, p.amount_cents, p.payment_date, p.payment_method, p.transaction_id, p.status, p.notes,
        s.student_id AS student_key, c.course_code, f.fee_type
        FROM payments p
        JOIN students s ON s.id = p.student_id
        LEFT JOIN fee_structures f ON f.id = p.fee_structure_id
        LEFT JOIN courses c ON c.id = f.course_id
        WHERE s.student_id = $1`
	args := []interface{}{studentKey}
	if courseCode != "" {
		args = append(args, courseCode)
		query += " AND c.course_code = $2"
	}
	query += " ORDER BY p.payment_date DESC"

	var payments []models.PaymentDetail
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	for i := range payments {
		payments[i].Label = "General"
		if payments[i].FeeType != nil {
			payments[i].Label = string(*payments[i].FeeType)
		}
	}
	return payments, nil
}
