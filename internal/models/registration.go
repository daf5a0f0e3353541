package models

import "time"

// Registration links one student to one course. At most one row exists per pair.
type Registration struct {
	ID               string             `db:"id" json:"id"`
	StudentID        string             `db:"student_id" json:"-"`
	CourseID         string             `db:"course_id" json:"-"`
	RegistrationDate time.Time          `db:"registration_date" json:"registration_date"`
	Status           RegistrationStatus `db:"status" json:"status"`
	Grade            *string            `db:"grade" json:"grade,omitempty"`
	GradePoints      *float64           `db:"grade_points" json:"grade_points,omitempty"`
	CompletionDate   *time.Time         `db:"completion_date" json:"completion_date,omitempty"`
	UpdatedAt        time.Time          `db:"updated_at" json:"updated_at"`
}

// RegistrationDetail enriches a registration with student and course business keys.
type RegistrationDetail struct {
	Registration
	StudentKey  string  `db:"student_key" json:"student_id"`
	StudentName string  `db:"student_name" json:"student_name"`
	CourseCode  string  `db:"course_code" json:"course_code"`
	CourseName  string  `db:"course_name" json:"course_name"`
	Credits     int     `db:"credits" json:"credits"`
	Instructor  *string `db:"instructor" json:"instructor,omitempty"`
	Schedule    *string `db:"schedule" json:"schedule,omitempty"`
}

// RegistrationFilter narrows roster and transcript listings.
type RegistrationFilter struct {
	Status RegistrationStatus
}
