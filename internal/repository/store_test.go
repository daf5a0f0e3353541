package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-admin-api/internal/models"
)

func enrollThroughLedger(ctx context.Context, tx LedgerTx) error {
	student, err := tx.LockStudent(ctx, "S1", false)
	if err != nil {
		return err
	}
	course, err := tx.LockCourse(ctx, "CS101")
	if err != nil {
		return err
	}
	if err := tx.InsertRegistration(ctx, &models.Registration{StudentID: student.ID, CourseID: course.ID, Status: models.RegistrationActive}); err != nil {
		return err
	}
	if ok, err := tx.AdjustEnrollment(ctx, course.ID, 1); err != nil || !ok {
		return errors.New("capacity")
	}
	_, err = tx.AppendActivity(ctx, models.ActivityEntry{StudentID: student.ID, ActivityType: models.ActivityCourseRegistration, Description: "Registered for CS101"})
	return err
}

func expectEnrollPrefix(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectQuery("FROM students WHERE student_id = \\$1 FOR SHARE").
		WithArgs("S1").
		WillReturnRows(studentRow(sqlmock.NewRows(studentCols), "s1", "S1"))
	mock.ExpectQuery("FROM courses WHERE course_code = \\$1 FOR UPDATE").
		WithArgs("CS101").
		WillReturnRows(courseRow(sqlmock.NewRows(courseCols), "c1", "CS101", 30, 29))
	mock.ExpectExec("INSERT INTO registrations").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("current_enrollment \\+ 1").WithArgs("c1").WillReturnResult(sqlmock.NewResult(0, 1))
}

func TestStoreInTxCommitsLedgerWrites(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	store := NewStore(db, 0)

	expectEnrollPrefix(mock)
	mock.ExpectExec("INSERT INTO activity_logs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.InTx(context.Background(), func(tx LedgerTx) error {
		return enrollThroughLedger(context.Background(), tx)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreInTxRollsBackWhenActivityFails(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	store := NewStore(db, 0)

	expectEnrollPrefix(mock)
	mock.ExpectExec("INSERT INTO activity_logs").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := store.InTx(context.Background(), func(tx LedgerTx) error {
		return enrollThroughLedger(context.Background(), tx)
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreInTxMapsDuplicateRegistration(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	store := NewStore(db, 0)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO registrations").
		WillReturnError(&pq.Error{Code: "23505", Constraint: ConstraintRegistrationPair})
	mock.ExpectRollback()

	err := store.InTx(context.Background(), func(tx LedgerTx) error {
		return tx.InsertRegistration(context.Background(), &models.Registration{StudentID: "s1", CourseID: "c1", Status: models.RegistrationActive})
	})
	assert.True(t, IsDuplicate(err, ConstraintRegistrationPair))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreReadOnlyUsesSnapshot(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	store := NewStore(db, 0)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM students WHERE student_id = \\$1").
		WithArgs("S1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := store.ReadOnly(context.Background(), func(tx LedgerTx) error {
		_, err := tx.StudentByKey(context.Background(), "S1")
		return err
	})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMapErrorCheckViolation(t *testing.T) {
	err := MapError(&pq.Error{Code: "23514", Constraint: "courses_enrollment_check"}, "adjust enrollment")
	assert.ErrorIs(t, err, ErrConstraint)
	assert.False(t, IsDuplicate(err, ""))

	var pqErr *pq.Error
	assert.True(t, errors.As(err, &pqErr))
}
