package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-admin-api/internal/models"
	"github.com/noah-isme/campus-admin-api/internal/repository"
	appErrors "github.com/noah-isme/campus-admin-api/pkg/errors"
)

type courseLister interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
}

// CreateCourseRequest adds a course to the catalogue.
type CreateCourseRequest struct {
	CourseCode    string  `json:"course_code" validate:"required,max=20"`
	CourseName    string  `json:"course_name" validate:"required,max=200"`
	Description   *string `json:"description" validate:"omitempty,max=2000"`
	Credits       int     `json:"credits" validate:"required,gte=1,lte=30"`
	Department    string  `json:"department" validate:"required,max=100"`
	Semester      *string `json:"semester" validate:"omitempty,max=20"`
	Year          *int    `json:"year" validate:"omitempty,gte=1900,lte=2200"`
	MaxCapacity   int     `json:"max_capacity" validate:"required,gte=1"`
	Instructor    *string `json:"instructor" validate:"omitempty,max=100"`
	Schedule      *string `json:"schedule" validate:"omitempty,max=200"`
	Location      *string `json:"location" validate:"omitempty,max=100"`
	Prerequisites *string `json:"prerequisites" validate:"omitempty,max=500"`
}

// UpdateCourseRequest carries catalogue changes. Nil fields are left untouched; the
// enrollment counter cannot be changed here.
type UpdateCourseRequest struct {
	CourseName    *string `json:"course_name" validate:"omitempty,min=1,max=200"`
	Description   *string `json:"description" validate:"omitempty,max=2000"`
	Credits       *int    `json:"credits" validate:"omitempty,gte=1,lte=30"`
	Department    *string `json:"department" validate:"omitempty,min=1,max=100"`
	Semester      *string `json:"semester" validate:"omitempty,max=20"`
	Year          *int    `json:"year" validate:"omitempty,gte=1900,lte=2200"`
	MaxCapacity   *int    `json:"max_capacity" validate:"omitempty,gte=1"`
	Instructor    *string `json:"instructor" validate:"omitempty,max=100"`
	Schedule      *string `json:"schedule" validate:"omitempty,max=200"`
	Location      *string `json:"location" validate:"omitempty,max=100"`
	Prerequisites *string `json:"prerequisites" validate:"omitempty,max=500"`
	IsActive      *bool   `json:"is_active"`
}

// CourseService manages the course catalogue.
type CourseService struct {
	store     unitOfWork
	courses   courseLister
	hooks     ledgerHooks
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs CourseService.
func NewCourseService(store unitOfWork, courses courseLister, deps LedgerDeps, validate *validator.Validate) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	hooks := newLedgerHooks(deps)
	return &CourseService{store: store, courses: courses, hooks: hooks, validator: validate, logger: hooks.logger}
}

// List returns courses with their seat availability.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseView, *models.Pagination, error) {
	page, size, _ := models.Normalize(filter.Page, filter.PageSize, 200)
	filter.Page, filter.PageSize = page, size
	courses, total, err := s.courses.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Storage(err, "failed to list courses")
	}
	views := make([]models.CourseView, 0, len(courses))
	for _, course := range courses {
		views = append(views, models.NewCourseView(course))
	}
	return views, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a course by code.
func (s *CourseService) Get(ctx context.Context, code string) (*models.CourseView, error) {
	var view models.CourseView
	err := s.store.ReadOnly(ctx, func(tx repository.LedgerTx) error {
		course, err := tx.CourseByCode(ctx, code)
		if err != nil {
			return lookupError(err, "course")
		}
		view = models.NewCourseView(*course)
		return nil
	})
	if err != nil {
		return nil, finalError(err, "failed to load course")
	}
	return &view, nil
}

// Create adds an active course with no enrolled students.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (view *models.CourseView, err error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course := &models.Course{
		CourseCode:    strings.TrimSpace(req.CourseCode),
		CourseName:    strings.TrimSpace(req.CourseName),
		Description:   req.Description,
		Credits:       req.Credits,
		Department:    strings.TrimSpace(req.Department),
		Semester:      req.Semester,
		Year:          req.Year,
		MaxCapacity:   req.MaxCapacity,
		Instructor:    req.Instructor,
		Schedule:      req.Schedule,
		Location:      req.Location,
		Prerequisites: req.Prerequisites,
		IsActive:      true,
	}
	ctx, finish := s.hooks.start(ctx, "create_course", attribute.String("course_code", course.CourseCode))
	defer func() { finish(err) }()

	txErr := s.store.InTx(ctx, func(tx repository.LedgerTx) error {
		course.ID = ""
		if err := tx.InsertCourse(ctx, course); err != nil {
			if repository.IsDuplicate(err, repository.ConstraintCourseCode) {
				return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("course %s already exists", course.CourseCode))
			}
			return appErrors.Storage(err, "failed to create course")
		}
		return nil
	})
	if txErr != nil {
		return nil, finalError(txErr, "failed to create course")
	}
	s.logger.Info("course created", zap.String("course_code", course.CourseCode))
	s.hooks.committed(ctx, "", nil)
	created := models.NewCourseView(*course)
	return &created, nil
}

// Update changes catalogue fields under the course row lock so a concurrent enrollment
// cannot push the counter above a shrinking capacity.
func (s *CourseService) Update(ctx context.Context, code string, req UpdateCourseRequest) (view *models.CourseView, err error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	ctx, finish := s.hooks.start(ctx, "update_course", attribute.String("course_code", code))
	defer func() { finish(err) }()

	var course *models.Course
	var changed []string
	txErr := s.store.InTx(ctx, func(tx repository.LedgerTx) error {
		current, err := tx.LockCourse(ctx, code)
		if err != nil {
			return lookupError(err, "course")
		}
		if req.MaxCapacity != nil && *req.MaxCapacity < current.CurrentEnrollment {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("max_capacity %d is below current enrollment %d", *req.MaxCapacity, current.CurrentEnrollment))
		}
		changed = applyCourseUpdate(current, req)
		course = current
		if len(changed) == 0 {
			return nil
		}
		if err := tx.UpdateCourse(ctx, current); err != nil {
			return appErrors.Storage(err, "failed to update course")
		}
		return nil
	})
	if txErr != nil {
		return nil, finalError(txErr, "failed to update course")
	}
	if len(changed) > 0 {
		s.logger.Info("course updated", zap.String("course_code", code), zap.Strings("fields", changed))
		s.hooks.committed(ctx, "", nil)
	}
	updated := models.NewCourseView(*course)
	return &updated, nil
}

// Deactivate soft-deletes a course. Existing registrations are kept.
func (s *CourseService) Deactivate(ctx context.Context, code string) (err error) {
	ctx, finish := s.hooks.start(ctx, "deactivate_course", attribute.String("course_code", code))
	defer func() { finish(err) }()

	txErr := s.store.InTx(ctx, func(tx repository.LedgerTx) error {
		course, err := tx.LockCourse(ctx, code)
		if err != nil {
			return lookupError(err, "course")
		}
		if !course.IsActive {
			return nil
		}
		course.IsActive = false
		if err := tx.UpdateCourse(ctx, course); err != nil {
			return appErrors.Storage(err, "failed to deactivate course")
		}
		return nil
	})
	if txErr != nil {
		return finalError(txErr, "failed to deactivate course")
	}
	s.logger.Info("course deactivated", zap.String("course_code", code))
	s.hooks.committed(ctx, "", nil)
	return nil
}

func applyCourseUpdate(course *models.Course, req UpdateCourseRequest) []string {
	var changed []string
	setString := func(name string, dst *string, src *string) {
		if src != nil && strings.TrimSpace(*src) != *dst {
			*dst = strings.TrimSpace(*src)
			changed = append(changed, name)
		}
	}
	setOptional := func(name string, dst **string, src *string) {
		if src != nil && !sameString(*dst, *src) {
			*dst = emptyToNil(*src)
			changed = append(changed, name)
		}
	}
	setInt := func(name string, dst *int, src *int) {
		if src != nil && *src != *dst {
			*dst = *src
			changed = append(changed, name)
		}
	}

	setString("course_name", &course.CourseName, req.CourseName)
	setOptional("description", &course.Description, req.Description)
	setInt("credits", &course.Credits, req.Credits)
	setString("department", &course.Department, req.Department)
	setOptional("semester", &course.Semester, req.Semester)
	if req.Year != nil && (course.Year == nil || *course.Year != *req.Year) {
		year := *req.Year
		course.Year = &year
		changed = append(changed, "year")
	}
	setInt("max_capacity", &course.MaxCapacity, req.MaxCapacity)
	setOptional("instructor", &course.Instructor, req.Instructor)
	setOptional("schedule", &course.Schedule, req.Schedule)
	setOptional("location", &course.Location, req.Location)
	setOptional("prerequisites", &course.Prerequisites, req.Prerequisites)
	if req.IsActive != nil && *req.IsActive != course.IsActive {
		course.IsActive = *req.IsActive
		changed = append(changed, "is_active")
	}
	return changed
}
