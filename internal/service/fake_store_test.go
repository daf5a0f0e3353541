package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/noah-isme/campus-admin-api/internal/models"
	"github.com/noah-isme/campus-admin-api/internal/repository"
)

// memState is the whole database of the fake store.
type memState struct {
	students   map[string]models.Student
	courses    map[string]models.Course
	regs       map[string]models.Registration
	fees       map[string]models.FeeStructure
	payments   map[string]models.Payment
	activities []models.ActivityLog
	seq        int
}

func (s *memState) clone() *memState {
	c := &memState{
		students:   make(map[string]models.Student, len(s.students)),
		courses:    make(map[string]models.Course, len(s.courses)),
		regs:       make(map[string]models.Registration, len(s.regs)),
		fees:       make(map[string]models.FeeStructure, len(s.fees)),
		payments:   make(map[string]models.Payment, len(s.payments)),
		activities: append([]models.ActivityLog(nil), s.activities...),
		seq:        s.seq,
	}
	for k, v := range s.students {
		c.students[k] = v
	}
	for k, v := range s.courses {
		c.courses[k] = v
	}
	for k, v := range s.regs {
		c.regs[k] = v
	}
	for k, v := range s.fees {
		c.fees[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	return c
}

// fakeStore serialises units of work behind one mutex, which is a coarse stand-in for the
// row locks taken by the real store. A failed unit of work restores the snapshot taken
// when it began.
type fakeStore struct {
	mu      sync.Mutex
	state   *memState
	commits int

	failAppend       error
	failAdjust       error
	paymentConflicts int
}

func newFakeStore() *fakeStore {
	return &fakeStore{state: (&memState{}).clone()}
}

func (f *fakeStore) InTx(ctx context.Context, fn func(repository.LedgerTx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	snapshot := f.state.clone()
	if err := fn(&fakeTx{store: f}); err != nil {
		f.state = snapshot
		return err
	}
	f.commits++
	return nil
}

func (f *fakeStore) ReadOnly(ctx context.Context, fn func(repository.LedgerTx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	snapshot := f.state.clone()
	err := fn(&fakeTx{store: f})
	f.state = snapshot
	return err
}

func (f *fakeStore) nextID(prefix string) string {
	f.state.seq++
	return prefix + "-" + strconv.Itoa(f.state.seq)
}

func (f *fakeStore) addStudent(key, name string) models.Student {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := models.Student{ID: f.nextID("stu"), StudentID: key, Name: name, Department: "Computer Science", Email: key + "@uni.edu", IsActive: true}
	f.state.students[st.ID] = st
	return st
}

func (f *fakeStore) addCourse(code string, max, current int) models.Course {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := models.Course{ID: f.nextID("crs"), CourseCode: code, CourseName: code + " Course", Credits: 3, Department: "Computer Science", MaxCapacity: max, CurrentEnrollment: current, IsActive: true}
	f.state.courses[c.ID] = c
	return c
}

func (f *fakeStore) addRegistration(studentID, courseID string, status models.RegistrationStatus) models.Registration {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := models.Registration{ID: f.nextID("reg"), StudentID: studentID, CourseID: courseID, Status: status, RegistrationDate: time.Now().UTC()}
	f.state.regs[r.ID] = r
	return r
}

func (f *fakeStore) addFee(courseID string, feeType models.FeeType, amount models.Money) models.FeeStructure {
	f.mu.Lock()
	defer f.mu.Unlock()
	fee := models.FeeStructure{ID: f.nextID("fee"), CourseID: courseID, FeeType: feeType, Amount: amount, IsActive: true, CreatedAt: time.Now().UTC()}
	f.state.fees[fee.ID] = fee
	return fee
}

func (f *fakeStore) course(code string) models.Course {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.state.courses {
		if c.CourseCode == code {
			return c
		}
	}
	return models.Course{}
}

func (f *fakeStore) activeCount(courseID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.state.regs {
		if r.CourseID == courseID && r.Status == models.RegistrationActive {
			n++
		}
	}
	return n
}

func (f *fakeStore) registrations() []models.Registration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Registration, 0, len(f.state.regs))
	for _, r := range f.state.regs {
		out = append(out, r)
	}
	return out
}

func (f *fakeStore) activityLog() []models.ActivityLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ActivityLog(nil), f.state.activities...)
}

func (f *fakeStore) paymentList() []models.Payment {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Payment, 0, len(f.state.payments))
	for _, p := range f.state.payments {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TransactionID < out[j].TransactionID })
	return out
}

// fakeTx operates on the store state; the store mutex is held by the enclosing unit of work.
type fakeTx struct {
	store *fakeStore
}

func duplicate(constraint string) error {
	return repository.MapError(&pq.Error{Code: "23505", Constraint: constraint}, "fake")
}

func (t *fakeTx) state() *memState { return t.store.state }

func (t *fakeTx) StudentByKey(ctx context.Context, key string) (*models.Student, error) {
	for _, s := range t.state().students {
		if s.StudentID == key {
			found := s
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (t *fakeTx) LockStudent(ctx context.Context, key string, exclusive bool) (*models.Student, error) {
	return t.StudentByKey(ctx, key)
}

func (t *fakeTx) InsertStudent(ctx context.Context, student *models.Student) error {
	for _, s := range t.state().students {
		if s.StudentID == student.StudentID {
			return duplicate(repository.ConstraintStudentKey)
		}
		if s.Email == student.Email {
			return duplicate(repository.ConstraintStudentEmail)
		}
	}
	student.ID = t.store.nextID("stu")
	t.state().students[student.ID] = *student
	return nil
}

func (t *fakeTx) UpdateStudent(ctx context.Context, student *models.Student) error {
	for id, s := range t.state().students {
		if id != student.ID && s.Email == student.Email {
			return duplicate(repository.ConstraintStudentEmail)
		}
	}
	if _, ok := t.state().students[student.ID]; !ok {
		return sql.ErrNoRows
	}
	t.state().students[student.ID] = *student
	return nil
}

func (t *fakeTx) DeleteStudent(ctx context.Context, id string) error {
	st := t.state()
	if _, ok := st.students[id]; !ok {
		return sql.ErrNoRows
	}
	delete(st.students, id)
	for rid, r := range st.regs {
		if r.StudentID == id {
			delete(st.regs, rid)
		}
	}
	for pid, p := range st.payments {
		if p.StudentID == id {
			delete(st.payments, pid)
		}
	}
	kept := st.activities[:0]
	for _, a := range st.activities {
		if a.StudentID != id {
			kept = append(kept, a)
		}
	}
	st.activities = kept
	return nil
}

func (t *fakeTx) CourseByCode(ctx context.Context, code string) (*models.Course, error) {
	for _, c := range t.state().courses {
		if c.CourseCode == code {
			found := c
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (t *fakeTx) LockCourse(ctx context.Context, code string) (*models.Course, error) {
	return t.CourseByCode(ctx, code)
}

func (t *fakeTx) InsertCourse(ctx context.Context, course *models.Course) error {
	for _, c := range t.state().courses {
		if c.CourseCode == course.CourseCode {
			return duplicate(repository.ConstraintCourseCode)
		}
	}
	course.ID = t.store.nextID("crs")
	course.CurrentEnrollment = 0
	t.state().courses[course.ID] = *course
	return nil
}

func (t *fakeTx) UpdateCourse(ctx context.Context, course *models.Course) error {
	current, ok := t.state().courses[course.ID]
	if !ok {
		return sql.ErrNoRows
	}
	next := *course
	next.CurrentEnrollment = current.CurrentEnrollment
	t.state().courses[course.ID] = next
	return nil
}

func (t *fakeTx) AdjustEnrollment(ctx context.Context, courseID string, delta int) (bool, error) {
	if t.store.failAdjust != nil {
		return false, t.store.failAdjust
	}
	c, ok := t.state().courses[courseID]
	if !ok {
		return false, nil
	}
	switch {
	case delta == 1 && c.CurrentEnrollment < c.MaxCapacity:
		c.CurrentEnrollment++
	case delta == -1 && c.CurrentEnrollment > 0:
		c.CurrentEnrollment--
	default:
		return false, nil
	}
	t.state().courses[courseID] = c
	return true, nil
}

func (t *fakeTx) RegistrationForUpdate(ctx context.Context, studentID, courseID string) (*models.Registration, error) {
	for _, r := range t.state().regs {
		if r.StudentID == studentID && r.CourseID == courseID {
			found := r
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (t *fakeTx) InsertRegistration(ctx context.Context, reg *models.Registration) error {
	for _, r := range t.state().regs {
		if r.StudentID == reg.StudentID && r.CourseID == reg.CourseID {
			return duplicate(repository.ConstraintRegistrationPair)
		}
	}
	reg.ID = t.store.nextID("reg")
	t.state().regs[reg.ID] = *reg
	return nil
}

func (t *fakeTx) UpdateRegistration(ctx context.Context, reg *models.Registration) error {
	if _, ok := t.state().regs[reg.ID]; !ok {
		return sql.ErrNoRows
	}
	t.state().regs[reg.ID] = *reg
	return nil
}

func (t *fakeTx) CountActiveRegistrations(ctx context.Context, studentID string) (int, error) {
	n := 0
	for _, r := range t.state().regs {
		if r.StudentID == studentID && r.Status == models.RegistrationActive {
			n++
		}
	}
	return n, nil
}

func (t *fakeTx) InsertFeeStructure(ctx context.Context, fee *models.FeeStructure) error {
	fee.ID = t.store.nextID("fee")
	fee.CreatedAt = time.Now().UTC()
	t.state().fees[fee.ID] = *fee
	return nil
}

func (t *fakeTx) ActiveFeeStructure(ctx context.Context, courseID string, feeType models.FeeType) (*models.FeeStructure, error) {
	for _, f := range t.state().fees {
		if f.CourseID == courseID && f.FeeType == feeType && f.IsActive {
			found := f
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (t *fakeTx) ActiveFeeStructures(ctx context.Context, courseID string) ([]models.FeeStructure, error) {
	var fees []models.FeeStructure
	for _, f := range t.state().fees {
		if f.CourseID == courseID && f.IsActive {
			fees = append(fees, f)
		}
	}
	sort.Slice(fees, func(i, j int) bool { return fees[i].FeeType < fees[j].FeeType })
	return fees, nil
}

func (t *fakeTx) FeeStructureByID(ctx context.Context, id string) (*models.FeeStructure, error) {
	f, ok := t.state().fees[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &f, nil
}

func (t *fakeTx) DeactivateFeeStructure(ctx context.Context, id string) (bool, error) {
	f, ok := t.state().fees[id]
	if !ok || !f.IsActive {
		return false, nil
	}
	f.IsActive = false
	t.state().fees[id] = f
	return true, nil
}

func (t *fakeTx) InsertPayment(ctx context.Context, payment *models.Payment) error {
	if t.store.paymentConflicts > 0 {
		t.store.paymentConflicts--
		return duplicate(repository.ConstraintTransactionID)
	}
	for _, p := range t.state().payments {
		if p.TransactionID == payment.TransactionID {
			return duplicate(repository.ConstraintTransactionID)
		}
	}
	payment.ID = t.store.nextID("pay")
	t.state().payments[payment.ID] = *payment
	return nil
}

func (t *fakeTx) PaidByFeeStructure(ctx context.Context, studentID string, feeIDs []string) (map[string]models.Money, error) {
	wanted := make(map[string]bool, len(feeIDs))
	for _, id := range feeIDs {
		wanted[id] = true
	}
	out := make(map[string]models.Money)
	for _, p := range t.state().payments {
		if p.StudentID == studentID && p.FeeStructureID != nil && wanted[*p.FeeStructureID] {
			out[*p.FeeStructureID] += p.Amount
		}
	}
	return out, nil
}

func (t *fakeTx) StudentPaymentTotals(ctx context.Context, studentID string) (models.Money, models.Money, error) {
	var total, unallocated models.Money
	for _, p := range t.state().payments {
		if p.StudentID != studentID {
			continue
		}
		total += p.Amount
		if p.FeeStructureID == nil {
			unallocated += p.Amount
		}
	}
	return total, unallocated, nil
}

func (t *fakeTx) AppendActivity(ctx context.Context, entry models.ActivityEntry) (*models.ActivityLog, error) {
	if t.store.failAppend != nil {
		return nil, t.store.failAppend
	}
	log := models.ActivityLog{
		ID:           t.store.nextID("act"),
		StudentID:    entry.StudentID,
		ActivityType: entry.ActivityType,
		Description:  entry.Description,
		Timestamp:    time.Now().UTC(),
	}
	t.state().activities = append(t.state().activities, log)
	return &log, nil
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, eventType string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	return p.err
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

// recordingInvalidator counts cache invalidations.
type recordingInvalidator struct {
	mu       sync.Mutex
	patterns []string
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, pattern string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append(r.patterns, pattern)
	return errors.New("redis unavailable")
}
