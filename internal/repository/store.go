package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-admin-api/internal/models"
	"github.com/noah-isme/campus-admin-api/pkg/database"
)

// LedgerTx exposes every read and write a ledger operation performs, bound to a single
// transaction.
type LedgerTx interface {
	StudentByKey(ctx context.Context, studentKey string) (*models.Student, error)
	LockStudent(ctx context.Context, studentKey string, exclusive bool) (*models.Student, error)
	InsertStudent(ctx context.Context, student *models.Student) error
	UpdateStudent(ctx context.Context, student *models.Student) error
	DeleteStudent(ctx context.Context, id string) error

	CourseByCode(ctx context.Context, code string) (*models.Course, error)
	LockCourse(ctx context.Context, code string) (*models.Course, error)
	InsertCourse(ctx context.Context, course *models.Course) error
	UpdateCourse(ctx context.Context, course *models.Course) error
	AdjustEnrollment(ctx context.Context, courseID string, delta int) (bool, error)

	RegistrationForUpdate(ctx context.Context, studentID, courseID string) (*models.Registration, error)
	InsertRegistration(ctx context.Context, reg *models.Registration) error
	UpdateRegistration(ctx context.Context, reg *models.Registration) error
	CountActiveRegistrations(ctx context.Context, studentID string) (int, error)

	InsertFeeStructure(ctx context.Context, fee *models.FeeStructure) error
	FeeStructureByID(ctx context.Context, id string) (*models.FeeStructure, error)
	ActiveFeeStructure(ctx context.Context, courseID string, feeType models.FeeType) (*models.FeeStructure, error)
	ActiveFeeStructures(ctx context.Context, courseID string) ([]models.FeeStructure, error)
	DeactivateFeeStructure(ctx context.Context, id string) (bool, error)

	InsertPayment(ctx context.Context, payment *models.Payment) error
	PaidByFeeStructure(ctx context.Context, studentID string, feeIDs []string) (map[string]models.Money, error)
	StudentPaymentTotals(ctx context.Context, studentID string) (total models.Money, unallocated models.Money, err error)

	AppendActivity(ctx context.Context, entry models.ActivityEntry) (*models.ActivityLog, error)
}

// Store hands out units of work over the shared database.
type Store struct {
	db         *sqlx.DB
	maxRetries int
}

// NewStore constructs a Store. maxRetries bounds restarts on serialization failures.
func NewStore(db *sqlx.DB, maxRetries int) *Store {
	return &Store{db: db, maxRetries: maxRetries}
}

// InTx runs fn in a read-committed transaction. Every write made through the LedgerTx is
// committed together or not at all.
func (s *Store) InTx(ctx context.Context, fn func(LedgerTx) error) error {
	return database.WithTx(ctx, s.db, nil, s.maxRetries, func(tx *sqlx.Tx) error {
		return fn(newLedgerTx(tx))
	})
}

// ReadOnly runs fn against a single repeatable-read snapshot.
func (s *Store) ReadOnly(ctx context.Context, fn func(LedgerTx) error) error {
	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	return database.WithTx(ctx, s.db, opts, s.maxRetries, func(tx *sqlx.Tx) error {
		return fn(newLedgerTx(tx))
	})
}

type ledgerTx struct {
	students      *StudentRepository
	courses       *CourseRepository
	registrations *RegistrationRepository
	fees          *FeeRepository
	payments      *PaymentRepository
	activities    *ActivityRepository
}

func newLedgerTx(tx DBTX) *ledgerTx {
	return &ledgerTx{
		students:      NewStudentRepository(tx),
		courses:       NewCourseRepository(tx),
		registrations: NewRegistrationRepository(tx),
		fees:          NewFeeRepository(tx),
		payments:      NewPaymentRepository(tx),
		activities:    NewActivityRepository(tx),
	}
}

func (l *ledgerTx) StudentByKey(ctx context.Context, key string) (*models.Student, error) {
	return l.students.FindByKey(ctx, key)
}

func (l *ledgerTx) LockStudent(ctx context.Context, key string, exclusive bool) (*models.Student, error) {
	return l.students.Lock(ctx, key, exclusive)
}

func (l *ledgerTx) InsertStudent(ctx context.Context, student *models.Student) error {
	return l.students.Create(ctx, student)
}

func (l *ledgerTx) UpdateStudent(ctx context.Context, student *models.Student) error {
	return l.students.Update(ctx, student)
}

func (l *ledgerTx) DeleteStudent(ctx context.Context, id string) error {
	return l.students.Delete(ctx, id)
}

func (l *ledgerTx) CourseByCode(ctx context.Context, code string) (*models.Course, error) {
	return l.courses.FindByCode(ctx, code)
}

func (l *ledgerTx) LockCourse(ctx context.Context, code string) (*models.Course, error) {
	return l.courses.FindByCodeForUpdate(ctx, code)
}

func (l *ledgerTx) InsertCourse(ctx context.Context, course *models.Course) error {
	return l.courses.Create(ctx, course)
}

func (l *ledgerTx) UpdateCourse(ctx context.Context, course *models.Course) error {
	return l.courses.Update(ctx, course)
}

func (l *ledgerTx) AdjustEnrollment(ctx context.Context, courseID string, delta int) (bool, error) {
	return l.courses.AdjustEnrollment(ctx, courseID, delta)
}

func (l *ledgerTx) RegistrationForUpdate(ctx context.Context, studentID, courseID string) (*models.Registration, error) {
	return l.registrations.FindForUpdate(ctx, studentID, courseID)
}

func (l *ledgerTx) InsertRegistration(ctx context.Context, reg *models.Registration) error {
	return l.registrations.Insert(ctx, reg)
}

func (l *ledgerTx) UpdateRegistration(ctx context.Context, reg *models.Registration) error {
	return l.registrations.Update(ctx, reg)
}

func (l *ledgerTx) CountActiveRegistrations(ctx context.Context, studentID string) (int, error) {
	return l.registrations.CountActiveByStudent(ctx, studentID)
}

func (l *ledgerTx) InsertFeeStructure(ctx context.Context, fee *models.FeeStructure) error {
	return l.fees.Insert(ctx, fee)
}

func (l *ledgerTx) FeeStructureByID(ctx context.Context, id string) (*models.FeeStructure, error) {
	return l.fees.FindByID(ctx, id)
}

func (l *ledgerTx) ActiveFeeStructure(ctx context.Context, courseID string, feeType models.FeeType) (*models.FeeStructure, error) {
	return l.fees.FindActive(ctx, courseID, feeType)
}

func (l *ledgerTx) ActiveFeeStructures(ctx context.Context, courseID string) ([]models.FeeStructure, error) {
	return l.fees.ListActiveByCourse(ctx, courseID)
}

func (l *ledgerTx) DeactivateFeeStructure(ctx context.Context, id string) (bool, error) {
	return l.fees.Deactivate(ctx, id)
}

func (l *ledgerTx) InsertPayment(ctx context.Context, payment *models.Payment) error {
	return l.payments.Insert(ctx, payment)
}

func (l *ledgerTx) PaidByFeeStructure(ctx context.Context, studentID string, feeIDs []string) (map[string]models.Money, error) {
	return l.payments.SumByFeeStructures(ctx, studentID, feeIDs)
}

func (l *ledgerTx) StudentPaymentTotals(ctx context.Context, studentID string) (models.Money, models.Money, error) {
	return l.payments.TotalsByStudent(ctx, studentID)
}

func (l *ledgerTx) AppendActivity(ctx context.Context, entry models.ActivityEntry) (*models.ActivityLog, error) {
	return l.activities.Append(ctx, entry)
}
