package dto

import "github.com/noah-isme/campus-admin-api/internal/models"

// FeeBalance is the settlement position of one active fee structure.
type FeeBalance struct {
	FeeStructureID string         `json:"fee_structure_id"`
	FeeType        models.FeeType `json:"fee_type"`
	Description    *string        `json:"description,omitempty"`
	DueDate        *string        `json:"due_date,omitempty"`
	Amount         models.Money   `json:"amount"`
	Paid           models.Money   `json:"paid"`
	Balance        models.Money   `json:"balance"`
}

// BalanceResponse is a student's fee position for one course. Balances are exact and may
// be negative when a fee has been overpaid.
type BalanceResponse struct {
	StudentID        string       `json:"student_id"`
	StudentName      string       `json:"student_name"`
	CourseCode       string       `json:"course_code"`
	CourseName       string       `json:"course_name"`
	Fees             []FeeBalance `json:"fee_breakdown"`
	TotalFees        models.Money `json:"total_fees"`
	TotalPaid        models.Money `json:"total_paid"`
	BalanceDue       models.Money `json:"balance_due"`
	UnallocatedPaid  models.Money `json:"unallocated_paid"`
	StudentTotalPaid models.Money `json:"student_total_paid"`
}

// CourseFeesResponse lists a course's active fees with their sum.
type CourseFeesResponse struct {
	CourseCode string                `json:"course_code"`
	CourseName string                `json:"course_name"`
	Fees       []models.FeeStructure `json:"fees"`
	TotalFees  models.Money          `json:"total_fees"`
}

// PaymentReceipt is returned after a payment is recorded.
type PaymentReceipt struct {
	PaymentID     string               `json:"payment_id"`
	TransactionID string               `json:"transaction_id"`
	StudentID     string               `json:"student_id"`
	Amount        models.Money         `json:"amount"`
	Method        models.PaymentMethod `json:"payment_method"`
	Status        models.PaymentStatus `json:"status"`
	CourseCode    *string              `json:"course_code,omitempty"`
	FeeType       *models.FeeType      `json:"fee_type,omitempty"`
	PaidAt        string               `json:"payment_date"`
}

// Statement is a rendered fee statement.
type Statement struct {
	Filename    string
	ContentType string
	Body        []byte
}
