package models

// RegistrationStatus represents the lifecycle of a course registration.
type RegistrationStatus string

// Registration statuses.
const (
	RegistrationPending   RegistrationStatus = "pending"
	RegistrationActive    RegistrationStatus = "active"
	RegistrationDropped   RegistrationStatus = "dropped"
	RegistrationCompleted RegistrationStatus = "completed"
	RegistrationWithdrawn RegistrationStatus = "withdrawn"
)

// Valid reports whether s is a known status.
func (s RegistrationStatus) Valid() bool {
	switch s {
	case RegistrationPending, RegistrationActive, RegistrationDropped, RegistrationCompleted, RegistrationWithdrawn:
		return true
	}
	return false
}

// Reactivatable reports whether a registration in this status may be re-opened.
func (s RegistrationStatus) Reactivatable() bool {
	return s == RegistrationDropped || s == RegistrationWithdrawn
}

// FeeType is the closed set of chargeable fees.
type FeeType string

// Fee types.
const (
	FeeTuition      FeeType = "tuition"
	FeeLab          FeeType = "lab_fee"
	FeeLibrary      FeeType = "library_fee"
	FeeTechnology   FeeType = "technology_fee"
	FeeRegistration FeeType = "registration_fee"
	FeeExam         FeeType = "exam_fee"
	FeeOther        FeeType = "other"
)

// FeeTypes lists every fee type in display order.
func FeeTypes() []FeeType {
	return []FeeType{FeeTuition, FeeLab, FeeLibrary, FeeTechnology, FeeRegistration, FeeExam, FeeOther}
}

// Valid reports whether t is part of the closed enum.
func (t FeeType) Valid() bool {
	for _, known := range FeeTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// PaymentMethod is how a payment was tendered.
type PaymentMethod string

// Payment methods.
const (
	MethodCreditCard   PaymentMethod = "credit_card"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCash         PaymentMethod = "cash"
	MethodCheck        PaymentMethod = "check"
	MethodOnline       PaymentMethod = "online"
)

// PaymentMethods lists accepted methods.
func PaymentMethods() []PaymentMethod {
	return []PaymentMethod{MethodCreditCard, MethodBankTransfer, MethodCash, MethodCheck, MethodOnline}
}

// Valid reports whether m is an accepted method.
func (m PaymentMethod) Valid() bool {
	for _, known := range PaymentMethods() {
		if m == known {
			return true
		}
	}
	return false
}

// PaymentStatus is the settlement state of a payment.
type PaymentStatus string

// Payment statuses.
const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentPartial  PaymentStatus = "partial"
	PaymentOverdue  PaymentStatus = "overdue"
	PaymentRefunded PaymentStatus = "refunded"
)

// ActivityType classifies activity log entries.
type ActivityType string

// Activity types.
const (
	ActivityLogin              ActivityType = "login"
	ActivityProfileUpdate      ActivityType = "profile_update"
	ActivityCourseRegistration ActivityType = "course_registration"
	ActivityCourseDrop         ActivityType = "course_drop"
	ActivityPayment            ActivityType = "payment"
	ActivityEmailSent          ActivityType = "email_sent"
	ActivitySystemAction       ActivityType = "system_action"
)

// Valid reports whether a is a known activity type.
func (a ActivityType) Valid() bool {
	switch a {
	case ActivityLogin, ActivityProfileUpdate, ActivityCourseRegistration, ActivityCourseDrop,
		ActivityPayment, ActivityEmailSent, ActivitySystemAction:
		return true
	}
	return false
}
