package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-admin-api/internal/models"
	appErrors "github.com/noah-isme/campus-admin-api/pkg/errors"
)

type stubStudentLister struct {
	filter models.StudentFilter
	total  int
	err    error
}

func (s *stubStudentLister) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	s.filter = filter
	return nil, s.total, s.err
}

func newTestStudentService(store *fakeStore, lister studentLister) *StudentService {
	if lister == nil {
		lister = &stubStudentLister{}
	}
	return NewStudentService(store, lister, LedgerDeps{Metrics: NewMetricsService()}, nil)
}

func TestStudentCreateRecordsActivity(t *testing.T) {
	store := newFakeStore()
	svc := newTestStudentService(store, nil)
	date := "2024-09-01"

	student, err := svc.Create(context.Background(), CreateStudentRequest{
		StudentID:      "S100",
		Name:           "  Grace Hopper ",
		Department:     "Mathematics",
		Email:          "Grace@Uni.EDU",
		EnrollmentDate: &date,
		Client:         ClientInfo{IPAddress: "10.0.0.1", UserAgent: "test"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, student.ID)
	assert.Equal(t, "Grace Hopper", student.Name)
	assert.Equal(t, "grace@uni.edu", student.Email)
	assert.True(t, student.IsActive)
	assert.Equal(t, "2024-09-01", student.EnrollmentDate.Format(dateLayout))

	logs := store.activityLog()
	require.Len(t, logs, 1)
	assert.Equal(t, models.ActivityProfileUpdate, logs[0].ActivityType)
	assert.Equal(t, "Student profile created", logs[0].Description)
	assert.Equal(t, student.ID, logs[0].StudentID)
}

func TestStudentCreateRejectsDuplicates(t *testing.T) {
	store := newFakeStore()
	store.addStudent("S1", "Ada")
	svc := newTestStudentService(store, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateStudentRequest{StudentID: "S1", Name: "Other", Department: "Physics", Email: "other@uni.edu"})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Equal(t, "student_id already exists", err.Error())

	_, err = svc.Create(ctx, CreateStudentRequest{StudentID: "S2", Name: "Other", Department: "Physics", Email: "S1@uni.edu"})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	_, err = svc.Create(ctx, CreateStudentRequest{StudentID: "S3", Name: "Other", Department: "Physics", Email: "not-an-email"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	assert.Empty(t, store.activityLog())
}

func TestStudentUpdateTracksChangedFields(t *testing.T) {
	store := newFakeStore()
	store.addStudent("S1", "Ada")
	svc := newTestStudentService(store, nil)
	ctx := context.Background()

	same := "Ada"
	_, err := svc.Update(ctx, "S1", UpdateStudentRequest{Name: &same})
	require.NoError(t, err)
	assert.Empty(t, store.activityLog(), "unchanged fields write nothing")

	name := "Ada Lovelace"
	phone := "555-0100"
	updated, err := svc.Update(ctx, "S1", UpdateStudentRequest{Name: &name, Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", updated.Name)
	require.NotNil(t, updated.Phone)

	logs := store.activityLog()
	require.Len(t, logs, 1)
	assert.Equal(t, "Student profile updated: name, phone", logs[0].Description)

	fetched, err := svc.Get(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", fetched.Name)

	_, err = svc.Update(ctx, "S404", UpdateStudentRequest{Name: &name})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestStudentUpdateEmailConflict(t *testing.T) {
	store := newFakeStore()
	store.addStudent("S1", "Ada")
	store.addStudent("S2", "Grace")
	svc := newTestStudentService(store, nil)

	taken := "s2@uni.edu"
	_, err := svc.Update(context.Background(), "S1", UpdateStudentRequest{Email: &taken})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Equal(t, "email already registered", err.Error())
}

func TestStudentListNormalisesPaging(t *testing.T) {
	lister := &stubStudentLister{total: 42}
	svc := newTestStudentService(newFakeStore(), lister)

	students, page, err := svc.List(context.Background(), models.StudentFilter{Page: 0, PageSize: 1000})
	require.NoError(t, err)
	assert.NotNil(t, students)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 100, page.PageSize)
	assert.Equal(t, 42, page.TotalCount)
	assert.Equal(t, 100, lister.filter.PageSize)

	lister.err = errors.New("connection reset")
	_, _, err = svc.List(context.Background(), models.StudentFilter{})
	assert.ErrorIs(t, err, appErrors.ErrStorage)
}
