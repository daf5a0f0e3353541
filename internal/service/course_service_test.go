package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-admin-api/internal/models"
	appErrors "github.com/noah-isme/campus-admin-api/pkg/errors"
)

type stubCourseLister struct {
	courses []models.Course
}

func (s *stubCourseLister) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	return s.courses, len(s.courses), nil
}

func intPtr(v int) *int { return &v }

func TestCourseCreateAndDuplicate(t *testing.T) {
	store := newFakeStore()
	svc := NewCourseService(store, &stubCourseLister{}, LedgerDeps{}, nil)
	ctx := context.Background()
	req := CreateCourseRequest{CourseCode: "CS101", CourseName: "Intro", Credits: 3, Department: "Computer Science", MaxCapacity: 30}

	view, err := svc.Create(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 0, view.CurrentEnrollment)
	assert.Equal(t, 30, view.AvailableSeats)
	assert.True(t, view.IsActive)

	_, err = svc.Create(ctx, req)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Equal(t, "course CS101 already exists", err.Error())

	req.CourseCode = "CS102"
	req.Credits = 0
	_, err = svc.Create(ctx, req)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestCourseUpdateCannotShrinkBelowEnrollment(t *testing.T) {
	store := newFakeStore()
	store.addCourse("CS101", 30, 12)
	svc := NewCourseService(store, &stubCourseLister{}, LedgerDeps{}, nil)
	ctx := context.Background()

	_, err := svc.Update(ctx, "CS101", UpdateCourseRequest{MaxCapacity: intPtr(11)})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	view, err := svc.Update(ctx, "CS101", UpdateCourseRequest{MaxCapacity: intPtr(12)})
	require.NoError(t, err)
	assert.Equal(t, 12, view.MaxCapacity)
	assert.Equal(t, 12, view.CurrentEnrollment)
	assert.Equal(t, 0, view.AvailableSeats)

	_, err = svc.Update(ctx, "NOPE", UpdateCourseRequest{MaxCapacity: intPtr(5)})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestCourseDeactivateIsIdempotent(t *testing.T) {
	store := newFakeStore()
	store.addCourse("CS101", 30, 0)
	svc := NewCourseService(store, &stubCourseLister{}, LedgerDeps{}, nil)
	ctx := context.Background()

	require.NoError(t, svc.Deactivate(ctx, "CS101"))
	assert.False(t, store.course("CS101").IsActive)
	require.NoError(t, svc.Deactivate(ctx, "CS101"))
	assert.ErrorIs(t, svc.Deactivate(ctx, "NOPE"), appErrors.ErrNotFound)
}

func TestCourseListDecoratesSeats(t *testing.T) {
	lister := &stubCourseLister{courses: []models.Course{{CourseCode: "CS101", MaxCapacity: 10, CurrentEnrollment: 4}}}
	svc := NewCourseService(newFakeStore(), lister, LedgerDeps{}, nil)

	views, page, err := svc.List(context.Background(), models.CourseFilter{})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, 6, views[0].AvailableSeats)
	assert.Equal(t, 1, page.TotalCount)
}
