package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-admin-api/internal/dto"
	"github.com/noah-isme/campus-admin-api/internal/models"
	"github.com/noah-isme/campus-admin-api/internal/repository"
	appErrors "github.com/noah-isme/campus-admin-api/pkg/errors"
	"github.com/noah-isme/campus-admin-api/pkg/events"
	"github.com/noah-isme/campus-admin-api/pkg/export"
)

const (
	// generatedTxnAttempts bounds retries when a generated transaction id collides.
	generatedTxnAttempts = 3
	dateLayout           = "2006-01-02"
)

type paymentReader interface {
	ListByStudent(ctx context.Context, studentKey string, courseCode string) ([]models.PaymentDetail, error)
}

// CreateFeeStructureRequest attaches a fee to a course.
type CreateFeeStructureRequest struct {
	CourseCode  string         `json:"-" validate:"required,max=20"`
	FeeType     models.FeeType `json:"fee_type" validate:"required"`
	Amount      models.Money   `json:"amount"`
	Description *string        `json:"description" validate:"omitempty,max=500"`
	DueDate     *string        `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
}

// RecordPaymentRequest records money received from a student. CourseCode and FeeType
// allocate the payment to the course's active fee of that type; without them the payment
// is general.
type RecordPaymentRequest struct {
	StudentID     string               `json:"student_id" validate:"required,max=20"`
	Amount        models.Money         `json:"amount"`
	Method        models.PaymentMethod `json:"payment_method" validate:"required"`
	CourseCode    *string              `json:"course_code" validate:"omitempty,max=20"`
	FeeType       *models.FeeType      `json:"fee_type"`
	TransactionID *string              `json:"transaction_id" validate:"omitempty,max=100"`
	Notes         *string              `json:"notes" validate:"omitempty,max=1000"`
	Client        ClientInfo           `json:"-"`
}

type paymentEvent struct {
	PaymentID     string               `json:"payment_id"`
	TransactionID string               `json:"transaction_id"`
	StudentID     string               `json:"student_id"`
	Amount        models.Money         `json:"amount"`
	Method        models.PaymentMethod `json:"payment_method"`
	CourseCode    *string              `json:"course_code,omitempty"`
	FeeType       *models.FeeType      `json:"fee_type,omitempty"`
}

// FeeService is the fee ledger: fee structures, payments and derived balances.
type FeeService struct {
	store     unitOfWork
	payments  paymentReader
	hooks     ledgerHooks
	validator *validator.Validate
	logger    *zap.Logger
	renderers map[string]export.Renderer
	now       func() time.Time
	newTxnID  func(time.Time) string
}

// NewFeeService constructs FeeService.
func NewFeeService(store unitOfWork, payments paymentReader, deps LedgerDeps, validate *validator.Validate) *FeeService {
	if validate == nil {
		validate = validator.New()
	}
	hooks := newLedgerHooks(deps)
	return &FeeService{
		store:     store,
		payments:  payments,
		hooks:     hooks,
		validator: validate,
		logger:    hooks.logger,
		renderers: map[string]export.Renderer{
			"csv": export.NewCSVExporter(),
			"pdf": export.NewPDFExporter(),
		},
		now:      func() time.Time { return time.Now().UTC() },
		newTxnID: GenerateTransactionID,
	}
}

// GenerateTransactionID returns TXN-<yyyymmdd>-<12 hex digits of a random UUID>.
func GenerateTransactionID(now time.Time) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("TXN-%s-%s", now.Format("20060102"), strings.ToUpper(raw[:12]))
}

// FeeTypes lists the chargeable fee types.
func (s *FeeService) FeeTypes() []models.FeeType {
	return models.FeeTypes()
}

// CreateFeeStructure adds an active fee to a course.
func (s *FeeService) CreateFeeStructure(ctx context.Context, req CreateFeeStructureRequest) (fee *models.FeeStructure, err error) {
	if !req.FeeType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrInvalidFeeType, fmt.Sprintf("invalid fee type %q", req.FeeType))
	}
	if req.Amount < 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidAmount, "fee amount must not be negative")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid fee structure payload")
	}
	var dueDate *time.Time
	if req.DueDate != nil && *req.DueDate != "" {
		parsed, err := time.Parse(dateLayout, *req.DueDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "due_date must be YYYY-MM-DD")
		}
		dueDate = &parsed
	}
	ctx, finish := s.hooks.start(ctx, "create_fee_structure", attribute.String("course_code", req.CourseCode))
	defer func() { finish(err) }()

	txErr := s.store.InTx(ctx, func(tx repository.LedgerTx) error {
		course, err := tx.CourseByCode(ctx, req.CourseCode)
		if err != nil {
			return lookupError(err, "course")
		}
		fee = &models.FeeStructure{
			CourseID:    course.ID,
			CourseCode:  course.CourseCode,
			FeeType:     req.FeeType,
			Amount:      req.Amount,
			Description: req.Description,
			DueDate:     dueDate,
			IsActive:    true,
		}
		if err := tx.InsertFeeStructure(ctx, fee); err != nil {
			return appErrors.Storage(err, "failed to create fee structure")
		}
		return nil
	})
	if txErr != nil {
		return nil, finalError(txErr, "failed to create fee structure")
	}
	s.logger.Info("fee structure created",
		zap.String("course_code", fee.CourseCode),
		zap.String("fee_type", string(fee.FeeType)),
		zap.Stringer("amount", fee.Amount),
	)
	s.hooks.committed(ctx, "", nil)
	return fee, nil
}

// CourseFees lists the active fees of a course and their total.
func (s *FeeService) CourseFees(ctx context.Context, courseCode string) (*dto.CourseFeesResponse, error) {
	var resp *dto.CourseFeesResponse
	err := s.store.ReadOnly(ctx, func(tx repository.LedgerTx) error {
		course, err := tx.CourseByCode(ctx, courseCode)
		if err != nil {
			return lookupError(err, "course")
		}
		fees, err := tx.ActiveFeeStructures(ctx, course.ID)
		if err != nil {
			return appErrors.Storage(err, "failed to list fee structures")
		}
		resp = &dto.CourseFeesResponse{CourseCode: course.CourseCode, CourseName: course.CourseName, Fees: fees}
		if resp.Fees == nil {
			resp.Fees = []models.FeeStructure{}
		}
		for _, fee := range fees {
			resp.TotalFees += fee.Amount
		}
		return nil
	})
	if err != nil {
		return nil, finalError(err, "failed to load course fees")
	}
	return resp, nil
}

// DeactivateFeeStructure soft-deletes a fee. Payments keep their allocation. Deactivating an
// inactive fee is a no-op.
func (s *FeeService) DeactivateFeeStructure(ctx context.Context, id string) (err error) {
	if _, parseErr := uuid.Parse(id); parseErr != nil {
		return appErrors.Clone(appErrors.ErrValidation, "fee structure id must be a UUID")
	}
	ctx, finish := s.hooks.start(ctx, "deactivate_fee_structure", attribute.String("fee_structure_id", id))
	defer func() { finish(err) }()

	var fee *models.FeeStructure
	changed := false
	txErr := s.store.InTx(ctx, func(tx repository.LedgerTx) error {
		found, err := tx.FeeStructureByID(ctx, id)
		if err != nil {
			return lookupError(err, "fee structure")
		}
		fee = found
		if !fee.IsActive {
			return nil
		}
		ok, err := tx.DeactivateFeeStructure(ctx, id)
		if err != nil {
			return appErrors.Storage(err, "failed to deactivate fee structure")
		}
		changed = ok
		return nil
	})
	if txErr != nil {
		return finalError(txErr, "failed to deactivate fee structure")
	}
	if !changed {
		return nil
	}
	s.logger.Info("fee structure deactivated",
		zap.String("fee_structure_id", id),
		zap.String("course_code", fee.CourseCode),
		zap.String("fee_type", string(fee.FeeType)),
	)
	s.hooks.committed(ctx, "", nil)
	return nil
}

// RecordPayment stores a paid payment and its payment activity in one unit of work.
// Transaction ids are unique; a collision on a generated id is retried with a fresh id while
// a collision on a supplied id is reported as a duplicate transaction.
func (s *FeeService) RecordPayment(ctx context.Context, req RecordPaymentRequest) (receipt *dto.PaymentReceipt, err error) {
	if err := s.validatePayment(req); err != nil {
		return nil, err
	}
	ctx, finish := s.hooks.start(ctx, "record_payment", attribute.String("student_id", req.StudentID))
	defer func() { finish(err) }()

	supplied := req.TransactionID != nil && strings.TrimSpace(*req.TransactionID) != ""
	attempts := 1
	if !supplied {
		attempts = generatedTxnAttempts
	}

	var payment *models.Payment
	var txErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		now := s.now()
		txnID := s.newTxnID(now)
		if supplied {
			txnID = strings.TrimSpace(*req.TransactionID)
		}
		payment, txErr = s.recordOnce(ctx, req, txnID, now)
		if txErr == nil || supplied || !errors.Is(txErr, appErrors.ErrDuplicateTxn) {
			break
		}
		s.logger.Warn("generated transaction id collided", zap.String("transaction_id", txnID), zap.Int("attempt", attempt))
	}
	if txErr != nil {
		return nil, finalError(txErr, "failed to record payment")
	}

	s.hooks.metrics.ObservePayment(payment.Method, payment.Amount)
	s.logger.Info("payment recorded",
		zap.String("student_id", req.StudentID),
		zap.String("transaction_id", payment.TransactionID),
		zap.Stringer("amount", payment.Amount),
	)
	receipt = &dto.PaymentReceipt{
		PaymentID:     payment.ID,
		TransactionID: payment.TransactionID,
		StudentID:     req.StudentID,
		Amount:        payment.Amount,
		Method:        payment.Method,
		Status:        payment.Status,
		CourseCode:    req.CourseCode,
		FeeType:       req.FeeType,
		PaidAt:        payment.PaymentDate.Format(time.RFC3339),
	}
	s.hooks.committed(ctx, events.PaymentRecorded, paymentEvent{
		PaymentID:     payment.ID,
		TransactionID: payment.TransactionID,
		StudentID:     req.StudentID,
		Amount:        payment.Amount,
		Method:        payment.Method,
		CourseCode:    req.CourseCode,
		FeeType:       req.FeeType,
	})
	return receipt, nil
}

func (s *FeeService) validatePayment(req RecordPaymentRequest) error {
	if req.Amount <= 0 {
		return appErrors.Clone(appErrors.ErrInvalidAmount, "payment amount must be greater than zero")
	}
	if !req.Method.Valid() {
		return appErrors.Clone(appErrors.ErrInvalidMethod, fmt.Sprintf("invalid payment method %q", req.Method))
	}
	if req.FeeType != nil && !req.FeeType.Valid() {
		return appErrors.Clone(appErrors.ErrInvalidFeeType, fmt.Sprintf("invalid fee type %q", *req.FeeType))
	}
	if (req.CourseCode == nil) != (req.FeeType == nil) {
		return appErrors.Clone(appErrors.ErrValidation, "course_code and fee_type must be provided together")
	}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	return nil
}

func (s *FeeService) recordOnce(ctx context.Context, req RecordPaymentRequest, txnID string, now time.Time) (*models.Payment, error) {
	var payment *models.Payment
	err := s.store.InTx(ctx, func(tx repository.LedgerTx) error {
		student, err := tx.StudentByKey(ctx, req.StudentID)
		if err != nil {
			return lookupError(err, "student")
		}
		var feeID *string
		allocation := ""
		if req.CourseCode != nil && req.FeeType != nil {
			course, err := tx.CourseByCode(ctx, *req.CourseCode)
			if err != nil {
				return lookupError(err, "course")
			}
			fee, err := tx.ActiveFeeStructure(ctx, course.ID, *req.FeeType)
			if err != nil {
				return lookupError(err, fmt.Sprintf("active %s fee for %s", *req.FeeType, course.CourseCode))
			}
			feeID = &fee.ID
			allocation = fmt.Sprintf(" for %s %s", course.CourseCode, fee.FeeType)
		}

		payment = &models.Payment{
			StudentID:      student.ID,
			FeeStructureID: feeID,
			Amount:         req.Amount,
			PaymentDate:    now,
			Method:         req.Method,
			TransactionID:  txnID,
			Status:         models.PaymentPaid,
			Notes:          req.Notes,
		}
		if err := tx.InsertPayment(ctx, payment); err != nil {
			if repository.IsDuplicate(err, repository.ConstraintTransactionID) {
				return appErrors.Clone(appErrors.ErrDuplicateTxn, fmt.Sprintf("transaction id %s already exists", txnID))
			}
			return appErrors.Storage(err, "failed to insert payment")
		}
		if _, err := tx.AppendActivity(ctx, models.ActivityEntry{
			StudentID:    student.ID,
			ActivityType: models.ActivityPayment,
			Description:  fmt.Sprintf("Payment of %s via %s%s (%s)", req.Amount, req.Method, allocation, txnID),
			IPAddress:    req.Client.IPAddress,
			UserAgent:    req.Client.UserAgent,
		}); err != nil {
			return appErrors.Storage(err, "failed to record activity")
		}
		return nil
	})
	return payment, err
}

// Balance reports what a student owes for a course. Each active fee is settled by the
// payments allocated to it; amounts are exact cents and a balance is negative when the
// fee has been overpaid. General payments are reported separately.
func (s *FeeService) Balance(ctx context.Context, studentKey, courseCode string) (*dto.BalanceResponse, error) {
	var resp *dto.BalanceResponse
	err := s.store.ReadOnly(ctx, func(tx repository.LedgerTx) error {
		student, err := tx.StudentByKey(ctx, studentKey)
		if err != nil {
			return lookupError(err, "student")
		}
		course, err := tx.CourseByCode(ctx, courseCode)
		if err != nil {
			return lookupError(err, "course")
		}
		fees, err := tx.ActiveFeeStructures(ctx, course.ID)
		if err != nil {
			return appErrors.Storage(err, "failed to list fee structures")
		}
		ids := make([]string, 0, len(fees))
		for _, fee := range fees {
			ids = append(ids, fee.ID)
		}
		paid, err := tx.PaidByFeeStructure(ctx, student.ID, ids)
		if err != nil {
			return appErrors.Storage(err, "failed to sum payments")
		}
		total, unallocated, err := tx.StudentPaymentTotals(ctx, student.ID)
		if err != nil {
			return appErrors.Storage(err, "failed to sum payments")
		}

		resp = &dto.BalanceResponse{
			StudentID:        student.StudentID,
			StudentName:      student.Name,
			CourseCode:       course.CourseCode,
			CourseName:       course.CourseName,
			Fees:             make([]dto.FeeBalance, 0, len(fees)),
			UnallocatedPaid:  unallocated,
			StudentTotalPaid: total,
		}
		for _, fee := range fees {
			line := dto.FeeBalance{
				FeeStructureID: fee.ID,
				FeeType:        fee.FeeType,
				Description:    fee.Description,
				Amount:         fee.Amount,
				Paid:           paid[fee.ID],
				Balance:        fee.Amount - paid[fee.ID],
			}
			if fee.DueDate != nil {
				due := fee.DueDate.Format(dateLayout)
				line.DueDate = &due
			}
			resp.Fees = append(resp.Fees, line)
			resp.TotalFees += line.Amount
			resp.TotalPaid += line.Paid
		}
		resp.BalanceDue = resp.TotalFees - resp.TotalPaid
		return nil
	})
	if err != nil {
		return nil, finalError(err, "failed to compute balance")
	}
	return resp, nil
}

// PaymentHistory lists a student's payments newest first, optionally for one course.
func (s *FeeService) PaymentHistory(ctx context.Context, studentKey, courseCode string) ([]models.PaymentDetail, error) {
	if err := s.store.ReadOnly(ctx, func(tx repository.LedgerTx) error {
		_, err := tx.StudentByKey(ctx, studentKey)
		return err
	}); err != nil {
		return nil, lookupError(err, "student")
	}
	payments, err := s.payments.ListByStudent(ctx, studentKey, courseCode)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to list payments")
	}
	if payments == nil {
		payments = []models.PaymentDetail{}
	}
	return payments, nil
}

// Statement renders the balance of a student for a course as a CSV or PDF document.
func (s *FeeService) Statement(ctx context.Context, studentKey, courseCode, format string) (*dto.Statement, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "csv"
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedFormat, fmt.Sprintf("unsupported statement format %q", format))
	}
	balance, err := s.Balance(ctx, studentKey, courseCode)
	if err != nil {
		return nil, err
	}
	body, err := renderer.Render(statementDataset(balance, s.now()))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render statement")
	}
	return &dto.Statement{
		Filename:    fmt.Sprintf("statement-%s-%s.%s", balance.StudentID, balance.CourseCode, renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
	}, nil
}

func statementDataset(balance *dto.BalanceResponse, generatedAt time.Time) export.Dataset {
	headers := []string{"Fee Type", "Description", "Due Date", "Amount", "Paid", "Balance"}
	rows := make([]map[string]string, 0, len(balance.Fees))
	for _, fee := range balance.Fees {
		row := map[string]string{
			"Fee Type": string(fee.FeeType),
			"Amount":   fee.Amount.String(),
			"Paid":     fee.Paid.String(),
			"Balance":  fee.Balance.String(),
		}
		if fee.Description != nil {
			row["Description"] = *fee.Description
		}
		if fee.DueDate != nil {
			row["Due Date"] = *fee.DueDate
		}
		rows = append(rows, row)
	}
	return export.Dataset{
		Title:   fmt.Sprintf("Fee statement %s (%s) - %s %s", balance.StudentName, balance.StudentID, balance.CourseCode, balance.CourseName),
		Headers: headers,
		Rows:    rows,
		Footer: map[string]string{
			"Fee Type": "TOTAL",
			"Amount":   balance.TotalFees.String(),
			"Paid":     balance.TotalPaid.String(),
			"Balance":  balance.BalanceDue.String(),
		},
		Notes: []string{
			"Unallocated payments: " + balance.UnallocatedPaid.String(),
			"Total paid by student: " + balance.StudentTotalPaid.String(),
			"Generated at " + generatedAt.Format(time.RFC3339),
		},
	}
}
