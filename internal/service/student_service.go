package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-admin-api/internal/models"
	"github.com/noah-isme/campus-admin-api/internal/repository"
	appErrors "github.com/noah-isme/campus-admin-api/pkg/errors"
)

type studentLister interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
}

// CreateStudentRequest registers a new student.
type CreateStudentRequest struct {
	StudentID      string     `json:"student_id" validate:"required,max=20"`
	Name           string     `json:"name" validate:"required,max=100"`
	Department     string     `json:"department" validate:"required,max=100"`
	Email          string     `json:"email" validate:"required,email,max=100"`
	Phone          *string    `json:"phone" validate:"omitempty,max=20"`
	Address        *string    `json:"address" validate:"omitempty,max=500"`
	EnrollmentDate *string    `json:"enrollment_date" validate:"omitempty,datetime=2006-01-02"`
	Client         ClientInfo `json:"-"`
}

// UpdateStudentRequest carries the profile fields to change. Nil fields are left untouched.
type UpdateStudentRequest struct {
	Name       *string    `json:"name" validate:"omitempty,min=1,max=100"`
	Department *string    `json:"department" validate:"omitempty,min=1,max=100"`
	Email      *string    `json:"email" validate:"omitempty,email,max=100"`
	Phone      *string    `json:"phone" validate:"omitempty,max=20"`
	Address    *string    `json:"address" validate:"omitempty,max=500"`
	IsActive   *bool      `json:"is_active"`
	Client     ClientInfo `json:"-"`
}

// StudentService manages student profiles.
type StudentService struct {
	store     unitOfWork
	students  studentLister
	hooks     ledgerHooks
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs StudentService.
func NewStudentService(store unitOfWork, students studentLister, deps LedgerDeps, validate *validator.Validate) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	hooks := newLedgerHooks(deps)
	return &StudentService{store: store, students: students, hooks: hooks, validator: validate, logger: hooks.logger}
}

// List returns students with pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	page, size, _ := models.Normalize(filter.Page, filter.PageSize, 100)
	filter.Page, filter.PageSize = page, size
	students, total, err := s.students.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Storage(err, "failed to list students")
	}
	if students == nil {
		students = []models.Student{}
	}
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a student by business key.
func (s *StudentService) Get(ctx context.Context, studentKey string) (*models.Student, error) {
	var student *models.Student
	err := s.store.ReadOnly(ctx, func(tx repository.LedgerTx) error {
		found, err := tx.StudentByKey(ctx, studentKey)
		if err != nil {
			return lookupError(err, "student")
		}
		student = found
		return nil
	})
	if err != nil {
		return nil, finalError(err, "failed to load student")
	}
	return student, nil
}

// Create stores a new student and its "profile created" activity.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (student *models.Student, err error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student = &models.Student{
		StudentID:  strings.TrimSpace(req.StudentID),
		Name:       strings.TrimSpace(req.Name),
		Department: strings.TrimSpace(req.Department),
		Email:      strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:      req.Phone,
		Address:    req.Address,
		IsActive:   true,
	}
	if req.EnrollmentDate != nil && *req.EnrollmentDate != "" {
		date, err := time.Parse(dateLayout, *req.EnrollmentDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "enrollment_date must be YYYY-MM-DD")
		}
		student.EnrollmentDate = date
	}
	ctx, finish := s.hooks.start(ctx, "create_student", attribute.String("student_id", student.StudentID))
	defer func() { finish(err) }()

	txErr := s.store.InTx(ctx, func(tx repository.LedgerTx) error {
		student.ID = ""
		if err := tx.InsertStudent(ctx, student); err != nil {
			return studentWriteError(err, "failed to create student")
		}
		if _, err := tx.AppendActivity(ctx, models.ActivityEntry{
			StudentID:    student.ID,
			ActivityType: models.ActivityProfileUpdate,
			Description:  "Student profile created",
			IPAddress:    req.Client.IPAddress,
			UserAgent:    req.Client.UserAgent,
		}); err != nil {
			return appErrors.Storage(err, "failed to record activity")
		}
		return nil
	})
	if txErr != nil {
		return nil, finalError(txErr, "failed to create student")
	}
	s.logger.Info("student created", zap.String("student_id", student.StudentID))
	s.hooks.committed(ctx, "", nil)
	return student, nil
}

// Update changes profile fields and records which ones changed. A request that changes
// nothing writes nothing.
func (s *StudentService) Update(ctx context.Context, studentKey string, req UpdateStudentRequest) (student *models.Student, err error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	ctx, finish := s.hooks.start(ctx, "update_student", attribute.String("student_id", studentKey))
	defer func() { finish(err) }()

	var changed []string
	txErr := s.store.InTx(ctx, func(tx repository.LedgerTx) error {
		current, err := tx.LockStudent(ctx, studentKey, true)
		if err != nil {
			return lookupError(err, "student")
		}
		changed = applyStudentUpdate(current, req)
		student = current
		if len(changed) == 0 {
			return nil
		}
		if err := tx.UpdateStudent(ctx, current); err != nil {
			return studentWriteError(err, "failed to update student")
		}
		if _, err := tx.AppendActivity(ctx, models.ActivityEntry{
			StudentID:    current.ID,
			ActivityType: models.ActivityProfileUpdate,
			Description:  "Student profile updated: " + strings.Join(changed, ", "),
			IPAddress:    req.Client.IPAddress,
			UserAgent:    req.Client.UserAgent,
		}); err != nil {
			return appErrors.Storage(err, "failed to record activity")
		}
		return nil
	})
	if txErr != nil {
		return nil, finalError(txErr, "failed to update student")
	}
	if len(changed) > 0 {
		s.logger.Info("student updated", zap.String("student_id", studentKey), zap.Strings("fields", changed))
		s.hooks.committed(ctx, "", nil)
	}
	return student, nil
}

func applyStudentUpdate(student *models.Student, req UpdateStudentRequest) []string {
	var changed []string
	if req.Name != nil && strings.TrimSpace(*req.Name) != student.Name {
		student.Name = strings.TrimSpace(*req.Name)
		changed = append(changed, "name")
	}
	if req.Department != nil && strings.TrimSpace(*req.Department) != student.Department {
		student.Department = strings.TrimSpace(*req.Department)
		changed = append(changed, "department")
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if email != student.Email {
			student.Email = email
			changed = append(changed, "email")
		}
	}
	if req.Phone != nil && !sameString(student.Phone, *req.Phone) {
		student.Phone = emptyToNil(*req.Phone)
		changed = append(changed, "phone")
	}
	if req.Address != nil && !sameString(student.Address, *req.Address) {
		student.Address = emptyToNil(*req.Address)
		changed = append(changed, "address")
	}
	if req.IsActive != nil && *req.IsActive != student.IsActive {
		student.IsActive = *req.IsActive
		changed = append(changed, "is_active")
	}
	return changed
}

func studentWriteError(err error, message string) error {
	switch {
	case repository.IsDuplicate(err, repository.ConstraintStudentKey):
		return appErrors.Clone(appErrors.ErrConflict, "student_id already exists")
	case repository.IsDuplicate(err, repository.ConstraintStudentEmail):
		return appErrors.Clone(appErrors.ErrConflict, "email already registered")
	case repository.IsDuplicate(err, ""):
		return appErrors.Clone(appErrors.ErrConflict, "student already exists")
	}
	return appErrors.Storage(err, message)
}

func sameString(current *string, next string) bool {
	if current == nil {
		return next == ""
	}
	return *current == next
}

func emptyToNil(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
