package models

import "time"

// Course is an offering students register for. CurrentEnrollment mirrors the number of
// active registrations and is only changed by the enrollment ledger.
type Course struct {
	ID                string    `db:"id" json:"id"`
	CourseCode        string    `db:"course_code" json:"course_code"`
	CourseName        string    `db:"course_name" json:"course_name"`
	Description       *string   `db:"description" json:"description,omitempty"`
	Credits           int       `db:"credits" json:"credits"`
	Department        string    `db:"department" json:"department"`
	Semester          *string   `db:"semester" json:"semester,omitempty"`
	Year              *int      `db:"year" json:"year,omitempty"`
	MaxCapacity       int       `db:"max_capacity" json:"max_capacity"`
	CurrentEnrollment int       `db:"current_enrollment" json:"current_enrollment"`
	Instructor        *string   `db:"instructor" json:"instructor,omitempty"`
	Schedule          *string   `db:"schedule" json:"schedule,omitempty"`
	Location          *string   `db:"location" json:"location,omitempty"`
	Prerequisites     *string   `db:"prerequisites" json:"prerequisites,omitempty"`
	IsActive          bool      `db:"is_active" json:"is_active"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// AvailableSeats returns the remaining capacity.
func (c Course) AvailableSeats() int {
	if seats := c.MaxCapacity - c.CurrentEnrollment; seats > 0 {
		return seats
	}
	return 0
}

// Full reports whether the course has no seat left.
func (c Course) Full() bool {
	return c.CurrentEnrollment >= c.MaxCapacity
}

// CourseView decorates a course with derived seat availability.
type CourseView struct {
	Course
	AvailableSeats int `json:"available_seats"`
}

// NewCourseView builds the API representation of a course.
func NewCourseView(c Course) CourseView {
	return CourseView{Course: c, AvailableSeats: c.AvailableSeats()}
}

// CourseFilter restricts course listings.
type CourseFilter struct {
	Department string
	Semester   string
	ActiveOnly bool
	Search     string
	Page       int
	PageSize   int
}
