package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-admin-api/internal/models"
)

func TestPaymentRepositoryInsertDuplicateTransaction(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectExec("INSERT INTO payments").
		WillReturnError(&pq.Error{Code: "23505", Constraint: ConstraintTransactionID})

	err := repo.Insert(context.Background(), &models.Payment{StudentID: "s1", Amount: models.Cents(100), Method: models.MethodCash, TransactionID: "TXN-1", Status: models.PaymentPaid})
	assert.True(t, IsDuplicate(err, ConstraintTransactionID))
}

func TestPaymentRepositorySumByFeeStructures(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM payments WHERE student_id = $1 AND fee_structure_id = ANY($2::uuid[])")).
		WithArgs("s1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"fee_structure_id", "paid_cents"}).AddRow("f1", int64(50000)))

	paid, err := repo.SumByFeeStructures(context.Background(), "s1", []string{"f1", "f2"})
	require.NoError(t, err)
	assert.Equal(t, models.Cents(50000), paid["f1"])
	_, hasF2 := paid["f2"]
	assert.False(t, hasF2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositorySumByFeeStructuresEmpty(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	paid, err := repo.SumByFeeStructures(context.Background(), "s1", nil)
	require.NoError(t, err)
	assert.Empty(t, paid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryTotalsByStudent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery("FILTER \\(WHERE fee_structure_id IS NULL\\)").
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"total", "unallocated"}).AddRow(int64(75000), int64(25000)))

	total, unallocated, err := repo.TotalsByStudent(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "750.00", total.String())
	assert.Equal(t, "250.00", unallocated.String())
}

func TestPaymentRepositoryListLabelsGeneralPayments(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	cols := []string{"id", "student_id", "fee_structure_id", "amount_cents", "payment_date", "payment_method", "transaction_id", "status", "notes", "student_key", "course_code", "fee_type"}
	rows := sqlmock.NewRows(cols).
		AddRow("p2", "s1", "f1", int64(50000), time.Now(), "credit_card", "TXN-2", "paid", nil, "S1", "CS101", "tuition").
		AddRow("p1", "s1", nil, int64(2500), time.Now().Add(-time.Hour), "cash", "TXN-1", "paid", nil, "S1", nil, nil)
	mock.ExpectQuery("ORDER BY p.payment_date DESC").
		WithArgs("S1").
		WillReturnRows(rows)

	payments, err := repo.ListByStudent(context.Background(), "S1", "")
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, "tuition", payments[0].Label)
	assert.Equal(t, "General", payments[1].Label)
	assert.Nil(t, payments[1].FeeStructureID)
}
