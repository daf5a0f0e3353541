package models

import "time"

// ActivityLog is an append-only audit entry for a student.
type ActivityLog struct {
	ID           string       `db:"id" json:"id"`
	StudentID    string       `db:"student_id" json:"-"`
	ActivityType ActivityType `db:"activity_type" json:"activity_type"`
	Description  string       `db:"description" json:"description"`
	Timestamp    time.Time    `db:"timestamp" json:"timestamp"`
	IPAddress    *string      `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent    *string      `db:"user_agent" json:"user_agent,omitempty"`
}

// ActivityEntry is the write-side input for an activity append.
type ActivityEntry struct {
	StudentID    string
	ActivityType ActivityType
	Description  string
	IPAddress    string
	UserAgent    string
}
