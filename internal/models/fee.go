package models

import "time"

// FeeStructure is a charge attached to a course.
type FeeStructure struct {
	ID          string     `db:"id" json:"id"`
	CourseID    string     `db:"course_id" json:"-"`
	CourseCode  string     `db:"course_code" json:"course_code"`
	FeeType     FeeType    `db:"fee_type" json:"fee_type"`
	Amount      Money      `db:"amount_cents" json:"amount"`
	Description *string    `db:"description" json:"description,omitempty"`
	DueDate     *time.Time `db:"due_date" json:"due_date,omitempty"`
	IsActive    bool       `db:"is_active" json:"is_active"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// Payment is money received from a student, optionally allocated to a fee structure.
type Payment struct {
	ID             string        `db:"id" json:"id"`
	StudentID      string        `db:"student_id" json:"-"`
	FeeStructureID *string       `db:"fee_structure_id" json:"fee_structure_id,omitempty"`
	Amount         Money         `db:"amount_cents" json:"amount"`
	PaymentDate    time.Time     `db:"payment_date" json:"payment_date"`
	Method         PaymentMethod `db:"payment_method" json:"payment_method"`
	TransactionID  string        `db:"transaction_id" json:"transaction_id"`
	Status         PaymentStatus `db:"status" json:"status"`
	Notes          *string       `db:"notes" json:"notes,omitempty"`
}

// PaymentDetail is a payment joined with the fee it settles.
type PaymentDetail struct {
	Payment
	StudentKey string   `db:"student_key" json:"student_id"`
	CourseCode *string  `db:"course_code" json:"course_code,omitempty"`
	FeeType    *FeeType `db:"fee_type" json:"fee_type,omitempty"`
	// Label is the fee type, or "General" for unallocated payments.
	Label string `db:"-" json:"label"`
}

// FeePaidTotal is the sum of a student's payments allocated to one fee structure.
type FeePaidTotal struct {
	FeeStructureID string `db:"fee_structure_id"`
	Paid           Money  `db:"paid_cents"`
}
