package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// DBTX is satisfied by both *sqlx.DB and *sqlx.Tx so repositories can run inside or
// outside a unit of work.
type DBTX interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
}

// Constraint names declared by the schema.
const (
	ConstraintStudentKey       = "students_student_id_key"
	ConstraintStudentEmail     = "students_email_key"
	ConstraintCourseCode       = "courses_course_code_key"
	ConstraintRegistrationPair = "registrations_student_course_key"
	ConstraintTransactionID    = "payments_transaction_id_key"
)

const (
	pqUniqueViolation pq.ErrorCode = "23505"
	pqCheckViolation  pq.ErrorCode = "23514"
)

var (
	// ErrDuplicate matches unique constraint violations.
	ErrDuplicate = errors.New("duplicate key")
	// ErrConstraint matches check constraint violations.
	ErrConstraint = errors.New("constraint violation")
)

// ConstraintError describes which schema constraint rejected a write.
type ConstraintError struct {
	Constraint string
	kind       error
	err        error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.kind, e.Constraint, e.err)
}

// Is lets callers match with errors.Is(err, ErrDuplicate).
func (e *ConstraintError) Is(target error) bool { return target == e.kind }

func (e *ConstraintError) Unwrap() error { return e.err }

// IsDuplicate reports whether err is a unique violation on the named constraint. An empty
// constraint matches any unique violation.
func IsDuplicate(err error, constraint string) bool {
	var ce *ConstraintError
	if !errors.As(err, &ce) || ce.kind != ErrDuplicate {
		return false
	}
	return constraint == "" || ce.Constraint == constraint
}

// MapError converts driver errors into repository sentinels while keeping the original
// error reachable through Unwrap.
func MapError(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return err
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return &ConstraintError{Constraint: pqErr.Constraint, kind: ErrDuplicate, err: fmt.Errorf("%s: %w", op, err)}
		case pqCheckViolation:
			return &ConstraintError{Constraint: pqErr.Constraint, kind: ErrConstraint, err: fmt.Errorf("%s: %w", op, err)}
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
