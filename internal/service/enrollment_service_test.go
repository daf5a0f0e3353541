package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-admin-api/internal/models"
	appErrors "github.com/noah-isme/campus-admin-api/pkg/errors"
	"github.com/noah-isme/campus-admin-api/pkg/events"
)

type stubRegistrationReader struct {
	byStudent map[string][]models.RegistrationDetail
	err       error
}

func (s *stubRegistrationReader) ListByStudent(ctx context.Context, studentKey string, filter models.RegistrationFilter) ([]models.RegistrationDetail, error) {
	return s.byStudent[studentKey], s.err
}

func (s *stubRegistrationReader) ListByCourse(ctx context.Context, courseCode string, filter models.RegistrationFilter) ([]models.RegistrationDetail, error) {
	return nil, s.err
}

// seedCourse creates a course holding active registrations for enrolled fresh students so
// the counter and the registrations agree from the start.
func seedCourse(store *fakeStore, code string, max, enrolled int) models.Course {
	course := store.addCourse(code, max, enrolled)
	for i := 0; i < enrolled; i++ {
		st := store.addStudent(fmt.Sprintf("%s-S%02d", code, i), "Seed Student")
		store.addRegistration(st.ID, course.ID, models.RegistrationActive)
	}
	return course
}

func assertCounterMatches(t *testing.T, store *fakeStore, code string) {
	t.Helper()
	course := store.course(code)
	assert.Equal(t, store.activeCount(course.ID), course.CurrentEnrollment, "counter drifted for %s", code)
	assert.LessOrEqual(t, course.CurrentEnrollment, course.MaxCapacity)
}

func newTestEnrollmentService(store *fakeStore, allowReenroll bool) (*EnrollmentService, *recordingPublisher, *recordingInvalidator) {
	pub := &recordingPublisher{}
	inv := &recordingInvalidator{}
	svc := NewEnrollmentService(store, &stubRegistrationReader{}, allowReenroll, LedgerDeps{
		Metrics:   NewMetricsService(),
		Cache:     inv,
		Publisher: pub,
		Logger:    zap.NewNop(),
	}, nil)
	return svc, pub, inv
}

func TestEnrollFillsLastSeatThenRejects(t *testing.T) {
	store := newFakeStore()
	seedCourse(store, "CS101", 30, 29)
	store.addStudent("S1", "Ada Lovelace")
	svc, pub, inv := newTestEnrollmentService(store, false)
	ctx := context.Background()

	detail, err := svc.Enroll(ctx, EnrollRequest{StudentID: "S1", CourseCode: "CS101"})
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationActive, detail.Status)
	assert.Equal(t, "S1", detail.StudentKey)
	assert.Equal(t, 30, store.course("CS101").CurrentEnrollment)
	assertCounterMatches(t, store, "CS101")

	_, err = svc.Enroll(ctx, EnrollRequest{StudentID: "S1", CourseCode: "CS101"})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrCapacityExceeded)
	assert.Equal(t, 30, store.course("CS101").CurrentEnrollment)
	assertCounterMatches(t, store, "CS101")

	assert.Equal(t, []string{events.EnrollmentCreated}, pub.published())
	assert.Equal(t, []string{analyticsCachePattern}, inv.patterns)

	logs := store.activityLog()
	require.Len(t, logs, 1)
	assert.Equal(t, models.ActivityCourseRegistration, logs[0].ActivityType)
	assert.Equal(t, "Enrolled in course: CS101 - CS101 Course", logs[0].Description)
}

func TestEnrollValidationAndLookups(t *testing.T) {
	store := newFakeStore()
	store.addStudent("S1", "Ada")
	store.addCourse("CS101", 10, 0)
	inactive := store.addCourse("OLD100", 10, 0)
	store.mu.Lock()
	inactive.IsActive = false
	store.state.courses[inactive.ID] = inactive
	store.mu.Unlock()
	svc, _, _ := newTestEnrollmentService(store, false)
	ctx := context.Background()

	tests := []struct {
		name string
		req  EnrollRequest
		want *appErrors.Error
	}{
		{name: "missing fields", req: EnrollRequest{StudentID: "S1"}, want: appErrors.ErrValidation},
		{name: "unknown student", req: EnrollRequest{StudentID: "NOPE", CourseCode: "CS101"}, want: appErrors.ErrNotFound},
		{name: "unknown course", req: EnrollRequest{StudentID: "S1", CourseCode: "NOPE"}, want: appErrors.ErrNotFound},
		{name: "inactive course", req: EnrollRequest{StudentID: "S1", CourseCode: "OLD100"}, want: appErrors.ErrInactive},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Enroll(ctx, tc.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Empty(t, store.registrations())
	assert.Empty(t, store.activityLog())
}

func TestEnrollDuplicateRegistration(t *testing.T) {
	store := newFakeStore()
	store.addStudent("S1", "Ada")
	store.addCourse("CS101", 10, 0)
	svc, _, _ := newTestEnrollmentService(store, false)
	ctx := context.Background()

	_, err := svc.Enroll(ctx, EnrollRequest{StudentID: "S1", CourseCode: "CS101"})
	require.NoError(t, err)

	_, err = svc.Enroll(ctx, EnrollRequest{StudentID: "S1", CourseCode: "CS101"})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrDuplicateReg)
	assert.Equal(t, 1, store.course("CS101").CurrentEnrollment)
	assertCounterMatches(t, store, "CS101")
}

func TestEnrollRollsBackWhenActivityAppendFails(t *testing.T) {
	store := newFakeStore()
	store.addStudent("S1", "Ada")
	store.addCourse("CS101", 10, 0)
	store.failAppend = errors.New("disk full")
	svc, pub, inv := newTestEnrollmentService(store, false)

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "S1", CourseCode: "CS101"})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrStorage)

	assert.Equal(t, 0, store.course("CS101").CurrentEnrollment)
	assert.Empty(t, store.registrations())
	assert.Empty(t, store.activityLog())
	assert.Empty(t, pub.published())
	assert.Empty(t, inv.patterns)
}

func TestDropIsNotRepeatable(t *testing.T) {
	store := newFakeStore()
	student := store.addStudent("S1", "Ada")
	course := store.addCourse("CS101", 10, 1)
	store.addRegistration(student.ID, course.ID, models.RegistrationActive)
	svc, pub, _ := newTestEnrollmentService(store, false)
	ctx := context.Background()

	detail, err := svc.Drop(ctx, DropRequest{StudentID: "S1", CourseCode: "CS101"})
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationDropped, detail.Status)
	assert.Equal(t, 0, store.course("CS101").CurrentEnrollment)

	_, err = svc.Drop(ctx, DropRequest{StudentID: "S1", CourseCode: "CS101"})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrInvalidState)
	assert.Equal(t, 0, store.course("CS101").CurrentEnrollment)
	assertCounterMatches(t, store, "CS101")

	assert.Equal(t, []string{events.EnrollmentDropped}, pub.published())
	logs := store.activityLog()
	require.Len(t, logs, 1)
	assert.Equal(t, models.ActivityCourseDrop, logs[0].ActivityType)
}

func TestDropWithoutRegistration(t *testing.T) {
	store := newFakeStore()
	store.addStudent("S1", "Ada")
	store.addCourse("CS101", 10, 0)
	svc, _, _ := newTestEnrollmentService(store, false)

	_, err := svc.Drop(context.Background(), DropRequest{StudentID: "S1", CourseCode: "CS101"})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.Contains(t, err.Error(), "registration not found")
}

func TestReenrollPolicy(t *testing.T) {
	t.Run("rejected by default", func(t *testing.T) {
		store := newFakeStore()
		student := store.addStudent("S1", "Ada")
		course := store.addCourse("CS101", 10, 0)
		store.addRegistration(student.ID, course.ID, models.RegistrationDropped)
		svc, _, _ := newTestEnrollmentService(store, false)

		_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "S1", CourseCode: "CS101"})
		require.Error(t, err)
		assert.ErrorIs(t, err, appErrors.ErrDuplicateReg)
		assert.Equal(t, 0, store.course("CS101").CurrentEnrollment)
	})

	t.Run("reactivates the dropped row", func(t *testing.T) {
		store := newFakeStore()
		student := store.addStudent("S1", "Ada")
		course := store.addCourse("CS101", 10, 0)
		dropped := store.addRegistration(student.ID, course.ID, models.RegistrationWithdrawn)
		svc, _, _ := newTestEnrollmentService(store, true)

		detail, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "S1", CourseCode: "CS101"})
		require.NoError(t, err)
		assert.Equal(t, dropped.ID, detail.ID)
		assert.Equal(t, models.RegistrationActive, detail.Status)
		assert.Len(t, store.registrations(), 1)
		assert.Equal(t, 1, store.course("CS101").CurrentEnrollment)
		assertCounterMatches(t, store, "CS101")
		assert.Contains(t, store.activityLog()[0].Description, "Re-enrolled")
	})

	t.Run("still enforces capacity", func(t *testing.T) {
		store := newFakeStore()
		student := store.addStudent("S1", "Ada")
		course := seedCourse(store, "CS101", 1, 1)
		store.addRegistration(student.ID, course.ID, models.RegistrationDropped)
		svc, _, _ := newTestEnrollmentService(store, true)

		_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "S1", CourseCode: "CS101"})
		require.Error(t, err)
		assert.ErrorIs(t, err, appErrors.ErrCapacityExceeded)
		assertCounterMatches(t, store, "CS101")
	})

	t.Run("completed rows stay closed", func(t *testing.T) {
		store := newFakeStore()
		student := store.addStudent("S1", "Ada")
		course := store.addCourse("CS101", 10, 0)
		store.addRegistration(student.ID, course.ID, models.RegistrationCompleted)
		svc, _, _ := newTestEnrollmentService(store, true)

		_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "S1", CourseCode: "CS101"})
		require.Error(t, err)
		assert.ErrorIs(t, err, appErrors.ErrDuplicateReg)
	})
}

func TestCompleteReleasesSeat(t *testing.T) {
	store := newFakeStore()
	student := store.addStudent("S1", "Ada")
	course := store.addCourse("CS101", 10, 1)
	store.addRegistration(student.ID, course.ID, models.RegistrationActive)
	svc, pub, _ := newTestEnrollmentService(store, false)
	ctx := context.Background()

	tooHigh := 4.5
	_, err := svc.Complete(ctx, CompleteRequest{StudentID: "S1", CourseCode: "CS101", GradePoints: &tooHigh})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	grade, points := "A", 4.0
	detail, err := svc.Complete(ctx, CompleteRequest{StudentID: "S1", CourseCode: "CS101", Grade: &grade, GradePoints: &points})
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationCompleted, detail.Status)
	require.NotNil(t, detail.CompletionDate)
	assert.Equal(t, 4.0, *detail.GradePoints)
	assert.Equal(t, 0, store.course("CS101").CurrentEnrollment)
	assertCounterMatches(t, store, "CS101")
	assert.Equal(t, []string{events.EnrollmentCompleted}, pub.published())
	assert.Equal(t, "Completed course: CS101 - CS101 Course with grade A", store.activityLog()[0].Description)
}

func TestDeleteStudentGuardsActiveRegistrations(t *testing.T) {
	store := newFakeStore()
	student := store.addStudent("S1", "Ada")
	course := store.addCourse("CS101", 10, 1)
	store.addRegistration(student.ID, course.ID, models.RegistrationActive)
	svc, pub, _ := newTestEnrollmentService(store, false)
	ctx := context.Background()

	err := svc.DeleteStudent(ctx, "S1")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrHasActiveRegs)
	store.mu.Lock()
	_, present := store.state.students[student.ID]
	store.mu.Unlock()
	assert.True(t, present)

	_, err = svc.Drop(ctx, DropRequest{StudentID: "S1", CourseCode: "CS101"})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteStudent(ctx, "S1"))

	assert.Empty(t, store.registrations())
	assert.Empty(t, store.activityLog())
	assert.Equal(t, []string{events.EnrollmentDropped, events.StudentDeleted}, pub.published())

	err = svc.DeleteStudent(ctx, "S1")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestConcurrentEnrollForLastSeat(t *testing.T) {
	store := newFakeStore()
	seedCourse(store, "CS101", 2, 1)
	store.addStudent("A1", "Alice")
	store.addStudent("B1", "Bob")
	svc, _, _ := newTestEnrollmentService(store, false)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	start := make(chan struct{})
	for i, key := range []string{"A1", "B1"} {
		wg.Add(1)
		go func(i int, key string) {
			defer wg.Done()
			<-start
			_, errs[i] = svc.Enroll(context.Background(), EnrollRequest{StudentID: key, CourseCode: "CS101"})
		}(i, key)
	}
	close(start)
	wg.Wait()

	succeeded, rejected := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, appErrors.ErrCapacityExceeded):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, 2, store.course("CS101").CurrentEnrollment)
	assertCounterMatches(t, store, "CS101")
}

func TestPublishFailureDoesNotFailEnroll(t *testing.T) {
	store := newFakeStore()
	store.addStudent("S1", "Ada")
	store.addCourse("CS101", 10, 0)
	svc, pub, _ := newTestEnrollmentService(store, false)
	pub.err = errors.New("nats down")

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: "S1", CourseCode: "CS101"})
	require.NoError(t, err)
	assert.Equal(t, 1, store.course("CS101").CurrentEnrollment)
}

func TestStudentRegistrationsRequiresStudent(t *testing.T) {
	store := newFakeStore()
	store.addStudent("S1", "Ada")
	reader := &stubRegistrationReader{byStudent: map[string][]models.RegistrationDetail{
		"S1": {{StudentKey: "S1", CourseCode: "CS101"}},
	}}
	svc := NewEnrollmentService(store, reader, false, LedgerDeps{}, nil)
	ctx := context.Background()

	regs, err := svc.StudentRegistrations(ctx, "S1", models.RegistrationFilter{})
	require.NoError(t, err)
	assert.Len(t, regs, 1)

	_, err = svc.StudentRegistrations(ctx, "S2", models.RegistrationFilter{})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.StudentRegistrations(ctx, "S1", models.RegistrationFilter{Status: "bogus"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
