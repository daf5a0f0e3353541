package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-admin-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var studentCols = []string{"id", "student_id", "name", "department", "email", "phone", "address", "is_active", "enrollment_date", "created_at", "updated_at"}

func studentRow(rows *sqlmock.Rows, id, key string) *sqlmock.Rows {
	now := time.Now()
	return rows.AddRow(id, key, "Ada Lovelace", "Computer Science", key+"@campus.edu", nil, nil, true, now, now, now)
}

func TestStudentRepositoryList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	active := true
	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+studentColumns+" FROM students WHERE 1=1 AND department = $1 AND is_active = $2 ORDER BY name ASC LIMIT 10 OFFSET 10")).
		WithArgs("Computer Science", true).
		WillReturnRows(studentRow(sqlmock.NewRows(studentCols), "1", "S1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students WHERE 1=1 AND department = $1 AND is_active = $2")).
		WithArgs("Computer Science", true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	students, total, err := repo.List(context.Background(), models.StudentFilter{
		Department: "Computer Science", Active: &active, Page: 2, PageSize: 10, SortBy: "name", SortOrder: "asc",
	})
	require.NoError(t, err)
	assert.Len(t, students, 1)
	assert.Equal(t, "S1", students[0].StudentID)
	assert.Equal(t, 11, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryFindByKeyNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery("FROM students WHERE student_id = \\$1").
		WithArgs("S404").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByKey(context.Background(), "S404")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestStudentRepositoryLockModes(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery("WHERE student_id = \\$1 FOR SHARE").
		WithArgs("S1").
		WillReturnRows(studentRow(sqlmock.NewRows(studentCols), "1", "S1"))
	mock.ExpectQuery("WHERE student_id = \\$1 FOR UPDATE").
		WithArgs("S1").
		WillReturnRows(studentRow(sqlmock.NewRows(studentCols), "1", "S1"))

	_, err := repo.Lock(context.Background(), "S1", false)
	require.NoError(t, err)
	_, err = repo.Lock(context.Background(), "S1", true)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreateDuplicateEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO students").
		WillReturnError(&pq.Error{Code: "23505", Constraint: ConstraintStudentEmail})

	err := repo.Create(context.Background(), &models.Student{StudentID: "S2", Name: "B", Department: "Math", Email: "dup@campus.edu", IsActive: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.True(t, IsDuplicate(err, ConstraintStudentEmail))
	assert.False(t, IsDuplicate(err, ConstraintStudentKey))
}

func TestStudentRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM students WHERE id = $1")).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "ghost")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
