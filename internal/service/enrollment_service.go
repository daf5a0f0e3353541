package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-admin-api/internal/models"
	"github.com/noah-isme/campus-admin-api/internal/repository"
	appErrors "github.com/noah-isme/campus-admin-api/pkg/errors"
	"github.com/noah-isme/campus-admin-api/pkg/events"
)

type registrationReader interface {
	ListByStudent(ctx context.Context, studentKey string, filter models.RegistrationFilter) ([]models.RegistrationDetail, error)
	ListByCourse(ctx context.Context, courseCode string, filter models.RegistrationFilter) ([]models.RegistrationDetail, error)
}

// EnrollRequest enrolls a student in a course.
type EnrollRequest struct {
	StudentID  string     `json:"student_id" validate:"required,max=20"`
	CourseCode string     `json:"course_code" validate:"required,max=20"`
	Client     ClientInfo `json:"-"`
}

// DropRequest drops an active registration.
type DropRequest struct {
	StudentID  string     `json:"student_id" validate:"required,max=20"`
	CourseCode string     `json:"course_code" validate:"required,max=20"`
	Client     ClientInfo `json:"-"`
}

// CompleteRequest closes an active registration with an optional grade.
type CompleteRequest struct {
	StudentID   string     `json:"student_id" validate:"required,max=20"`
	CourseCode  string     `json:"course_code" validate:"required,max=20"`
	Grade       *string    `json:"grade" validate:"omitempty,max=5"`
	GradePoints *float64   `json:"grade_points"`
	Client      ClientInfo `json:"-"`
}

type registrationEvent struct {
	RegistrationID string                    `json:"registration_id"`
	StudentID      string                    `json:"student_id"`
	CourseCode     string                    `json:"course_code"`
	Status         models.RegistrationStatus `json:"status"`
	Reactivated    bool                      `json:"reactivated,omitempty"`
}

// EnrollmentService is the enrollment ledger. It keeps courses.current_enrollment equal to
// the number of active registrations of the course.
type EnrollmentService struct {
	store         unitOfWork
	registrations registrationReader
	allowReenroll bool
	hooks         ledgerHooks
	validator     *validator.Validate
	logger        *zap.Logger
	now           func() time.Time
}

// NewEnrollmentService constructs EnrollmentService. When allowReenroll is set a dropped or
// withdrawn registration is reactivated in place instead of rejected as a duplicate.
func NewEnrollmentService(store unitOfWork, registrations registrationReader, allowReenroll bool, deps LedgerDeps, validate *validator.Validate) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	hooks := newLedgerHooks(deps)
	return &EnrollmentService{
		store:         store,
		registrations: registrations,
		allowReenroll: allowReenroll,
		hooks:         hooks,
		validator:     validate,
		logger:        hooks.logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Enroll registers the student for the course, increments the course counter and appends
// a course_registration activity in one unit of work.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (detail *models.RegistrationDetail, err error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	ctx, finish := s.hooks.start(ctx, "enroll", attribute.String("student_id", req.StudentID), attribute.String("course_code", req.CourseCode))
	defer func() { finish(err) }()

	var reactivated bool
	txErr := s.store.InTx(ctx, func(tx repository.LedgerTx) error {
		reactivated = false
		student, err := tx.LockStudent(ctx, req.StudentID, false)
		if err != nil {
			return lookupError(err, "student")
		}
		course, err := tx.LockCourse(ctx, req.CourseCode)
		if err != nil {
			return lookupError(err, "course")
		}
		if !course.IsActive {
			return appErrors.Clone(appErrors.ErrInactive, fmt.Sprintf("course %s is not active", course.CourseCode))
		}
		if course.Full() {
			return appErrors.Clone(appErrors.ErrCapacityExceeded, fmt.Sprintf("course %s is full (%d/%d)", course.CourseCode, course.CurrentEnrollment, course.MaxCapacity))
		}

		existing, err := tx.RegistrationForUpdate(ctx, student.ID, course.ID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return appErrors.Storage(err, "failed to load registration")
		}
		if existing != nil && !(s.allowReenroll && existing.Status.Reactivatable()) {
			return appErrors.Clone(appErrors.ErrDuplicateReg, fmt.Sprintf("student %s already has a %s registration for %s", student.StudentID, existing.Status, course.CourseCode))
		}

		now := s.now()
		reg := existing
		if reg != nil {
			reactivated = true
			reg.Status = models.RegistrationActive
			reg.RegistrationDate = now
			reg.Grade = nil
			reg.GradePoints = nil
			reg.CompletionDate = nil
			if err := tx.UpdateRegistration(ctx, reg); err != nil {
				return appErrors.Storage(err, "failed to reactivate registration")
			}
		} else {
			reg = &models.Registration{StudentID: student.ID, CourseID: course.ID, RegistrationDate: now, Status: models.RegistrationActive}
			if err := tx.InsertRegistration(ctx, reg); err != nil {
				if repository.IsDuplicate(err, repository.ConstraintRegistrationPair) {
					return appErrors.Clone(appErrors.ErrDuplicateReg, fmt.Sprintf("student %s is already registered for %s", student.StudentID, course.CourseCode))
				}
				return appErrors.Storage(err, "failed to create registration")
			}
		}

		ok, err := tx.AdjustEnrollment(ctx, course.ID, 1)
		if err != nil {
			return appErrors.Storage(err, "failed to update course enrollment")
		}
		if !ok {
			return appErrors.Clone(appErrors.ErrCapacityExceeded, fmt.Sprintf("course %s is full", course.CourseCode))
		}
		course.CurrentEnrollment++

		verb := "Enrolled in course"
		if reactivated {
			verb = "Re-enrolled in course"
		}
		if _, err := tx.AppendActivity(ctx, models.ActivityEntry{
			StudentID:    student.ID,
			ActivityType: models.ActivityCourseRegistration,
			Description:  fmt.Sprintf("%s: %s - %s", verb, course.CourseCode, course.CourseName),
			IPAddress:    req.Client.IPAddress,
			UserAgent:    req.Client.UserAgent,
		}); err != nil {
			return appErrors.Storage(err, "failed to record activity")
		}

		detail = newRegistrationDetail(reg, student, course)
		return nil
	})
	if txErr != nil {
		return nil, finalError(txErr, "failed to enroll student")
	}

	s.logger.Info("student enrolled",
		zap.String("student_id", req.StudentID),
		zap.String("course_code", req.CourseCode),
		zap.Bool("reactivated", reactivated),
	)
	s.hooks.committed(ctx, events.EnrollmentCreated, registrationEvent{
		RegistrationID: detail.ID,
		StudentID:      detail.StudentKey,
		CourseCode:     detail.CourseCode,
		Status:         detail.Status,
		Reactivated:    reactivated,
	})
	return detail, nil
}

// Drop moves an active registration to dropped and releases its seat.
func (s *EnrollmentService) Drop(ctx context.Context, req DropRequest) (detail *models.RegistrationDetail, err error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid drop payload")
	}
	ctx, finish := s.hooks.start(ctx, "drop", attribute.String("student_id", req.StudentID), attribute.String("course_code", req.CourseCode))
	defer func() { finish(err) }()

	txErr := s.store.InTx(ctx, func(tx repository.LedgerTx) error {
		student, course, reg, err := s.lockActive(ctx, tx, req.StudentID, req.CourseCode)
		if err != nil {
			return err
		}
		reg.Status = models.RegistrationDropped
		if err := s.release(ctx, tx, reg, course); err != nil {
			return err
		}
		if _, err := tx.AppendActivity(ctx, models.ActivityEntry{
			StudentID:    student.ID,
			ActivityType: models.ActivityCourseDrop,
			Description:  fmt.Sprintf("Dropped course: %s - %s", course.CourseCode, course.CourseName),
			IPAddress:    req.Client.IPAddress,
			UserAgent:    req.Client.UserAgent,
		}); err != nil {
			return appErrors.Storage(err, "failed to record activity")
		}
		detail = newRegistrationDetail(reg, student, course)
		return nil
	})
	if txErr != nil {
		return nil, finalError(txErr, "failed to drop registration")
	}

	s.logger.Info("registration dropped", zap.String("student_id", req.StudentID), zap.String("course_code", req.CourseCode))
	s.hooks.committed(ctx, events.EnrollmentDropped, registrationEvent{
		RegistrationID: detail.ID,
		StudentID:      detail.StudentKey,
		CourseCode:     detail.CourseCode,
		Status:         detail.Status,
	})
	return detail, nil
}

// Complete closes an active registration. A completed registration no longer holds a seat.
func (s *EnrollmentService) Complete(ctx context.Context, req CompleteRequest) (detail *models.RegistrationDetail, err error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid completion payload")
	}
	if req.GradePoints != nil && (*req.GradePoints < 0 || *req.GradePoints > 4) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "grade_points must be between 0 and 4.0")
	}
	ctx, finish := s.hooks.start(ctx, "complete", attribute.String("student_id", req.StudentID), attribute.String("course_code", req.CourseCode))
	defer func() { finish(err) }()

	txErr := s.store.InTx(ctx, func(tx repository.LedgerTx) error {
		student, course, reg, err := s.lockActive(ctx, tx, req.StudentID, req.CourseCode)
		if err != nil {
			return err
		}
		completedAt := s.now()
		reg.Status = models.RegistrationCompleted
		reg.Grade = req.Grade
		reg.GradePoints = req.GradePoints
		reg.CompletionDate = &completedAt
		if err := s.release(ctx, tx, reg, course); err != nil {
			return err
		}
		description := fmt.Sprintf("Completed course: %s - %s", course.CourseCode, course.CourseName)
		if req.Grade != nil {
			description += " with grade " + *req.Grade
		}
		if _, err := tx.AppendActivity(ctx, models.ActivityEntry{
			StudentID:    student.ID,
			ActivityType: models.ActivitySystemAction,
			Description:  description,
			IPAddress:    req.Client.IPAddress,
			UserAgent:    req.Client.UserAgent,
		}); err != nil {
			return appErrors.Storage(err, "failed to record activity")
		}
		detail = newRegistrationDetail(reg, student, course)
		return nil
	})
	if txErr != nil {
		return nil, finalError(txErr, "failed to complete registration")
	}

	s.logger.Info("registration completed", zap.String("student_id", req.StudentID), zap.String("course_code", req.CourseCode))
	s.hooks.committed(ctx, events.EnrollmentCompleted, registrationEvent{
		RegistrationID: detail.ID,
		StudentID:      detail.StudentKey,
		CourseCode:     detail.CourseCode,
		Status:         detail.Status,
	})
	return detail, nil
}

// DeleteStudent removes a student without active registrations. Registrations, payments and
// activity logs go with it.
func (s *EnrollmentService) DeleteStudent(ctx context.Context, studentKey string) (err error) {
	if studentKey == "" {
		return appErrors.Clone(appErrors.ErrValidation, "student_id is required")
	}
	ctx, finish := s.hooks.start(ctx, "delete_student", attribute.String("student_id", studentKey))
	defer func() { finish(err) }()

	txErr := s.store.InTx(ctx, func(tx repository.LedgerTx) error {
		student, err := tx.LockStudent(ctx, studentKey, true)
		if err != nil {
			return lookupError(err, "student")
		}
		active, err := tx.CountActiveRegistrations(ctx, student.ID)
		if err != nil {
			return appErrors.Storage(err, "failed to count registrations")
		}
		if active > 0 {
			return appErrors.Clone(appErrors.ErrHasActiveRegs, fmt.Sprintf("student %s has %d active registration(s)", student.StudentID, active))
		}
		if err := tx.DeleteStudent(ctx, student.ID); err != nil {
			return appErrors.Storage(err, "failed to delete student")
		}
		return nil
	})
	if txErr != nil {
		return finalError(txErr, "failed to delete student")
	}

	s.logger.Info("student deleted", zap.String("student_id", studentKey))
	s.hooks.committed(ctx, events.StudentDeleted, map[string]string{"student_id": studentKey})
	return nil
}

// StudentRegistrations lists a student's registrations, newest first.
func (s *EnrollmentService) StudentRegistrations(ctx context.Context, studentKey string, filter models.RegistrationFilter) ([]models.RegistrationDetail, error) {
	if err := validStatusFilter(filter); err != nil {
		return nil, err
	}
	if err := s.store.ReadOnly(ctx, func(tx repository.LedgerTx) error {
		_, err := tx.StudentByKey(ctx, studentKey)
		return err
	}); err != nil {
		return nil, lookupError(err, "student")
	}
	regs, err := s.registrations.ListByStudent(ctx, studentKey, filter)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to list registrations")
	}
	return regs, nil
}

// CourseEnrollments lists the roster of a course ordered by student name.
func (s *EnrollmentService) CourseEnrollments(ctx context.Context, courseCode string, filter models.RegistrationFilter) ([]models.RegistrationDetail, error) {
	if err := validStatusFilter(filter); err != nil {
		return nil, err
	}
	if err := s.store.ReadOnly(ctx, func(tx repository.LedgerTx) error {
		_, err := tx.CourseByCode(ctx, courseCode)
		return err
	}); err != nil {
		return nil, lookupError(err, "course")
	}
	regs, err := s.registrations.ListByCourse(ctx, courseCode, filter)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to list enrollments")
	}
	return regs, nil
}

// lockActive locks student, course and registration in that order and requires the
// registration to be active.
func (s *EnrollmentService) lockActive(ctx context.Context, tx repository.LedgerTx, studentKey, courseCode string) (*models.Student, *models.Course, *models.Registration, error) {
	student, err := tx.LockStudent(ctx, studentKey, false)
	if err != nil {
		return nil, nil, nil, lookupError(err, "student")
	}
	course, err := tx.LockCourse(ctx, courseCode)
	if err != nil {
		return nil, nil, nil, lookupError(err, "course")
	}
	reg, err := tx.RegistrationForUpdate(ctx, student.ID, course.ID)
	if err != nil {
		return nil, nil, nil, lookupError(err, "registration")
	}
	if reg.Status != models.RegistrationActive {
		return nil, nil, nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("registration is %s, expected active", reg.Status))
	}
	return student, course, reg, nil
}

// release persists a registration leaving the active state and frees its seat.
func (s *EnrollmentService) release(ctx context.Context, tx repository.LedgerTx, reg *models.Registration, course *models.Course) error {
	if err := tx.UpdateRegistration(ctx, reg); err != nil {
		return appErrors.Storage(err, "failed to update registration")
	}
	ok, err := tx.AdjustEnrollment(ctx, course.ID, -1)
	if err != nil {
		return appErrors.Storage(err, "failed to update course enrollment")
	}
	if !ok {
		s.logger.Error("enrollment counter already zero", zap.String("course_code", course.CourseCode))
		return appErrors.Clone(appErrors.ErrInternal, "course enrollment counter out of sync")
	}
	course.CurrentEnrollment--
	return nil
}

func validStatusFilter(filter models.RegistrationFilter) error {
	if filter.Status != "" && !filter.Status.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown registration status %q", filter.Status))
	}
	return nil
}

func newRegistrationDetail(reg *models.Registration, student *models.Student, course *models.Course) *models.RegistrationDetail {
	return &models.RegistrationDetail{
		Registration: *reg,
		StudentKey:   student.StudentID,
		StudentName:  student.Name,
		CourseCode:   course.CourseCode,
		CourseName:   course.CourseName,
		Credits:      course.Credits,
		Instructor:   course.Instructor,
		Schedule:     course.Schedule,
	}
}
