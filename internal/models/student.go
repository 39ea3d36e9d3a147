package models

import "time"

// Student represents a learner registered with a school.
type Student struct {
	ID             string     `db:"id" json:"id"`
	SchoolID       string     `db:"school_id" json:"school_id"`
	AdmissionNo    string     `db:"admission_no" json:"admission_no"`
	FirstName      string     `db:"first_name" json:"first_name"`
	LastName       string     `db:"last_name" json:"last_name"`
	Gender         string     `db:"gender" json:"gender"`
	BirthDate      *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	GuardianName   string     `db:"guardian_name" json:"guardian_name"`
	GuardianPhone  string     `db:"guardian_phone" json:"guardian_phone"`
	Address        string     `db:"address" json:"address"`
	IsActive       bool       `db:"is_active" json:"is_active"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// FullName joins the stored name parts for display.
func (s Student) FullName() string {
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

// StudentFilter encapsulates search parameters for listing students.
type StudentFilter struct {
	SchoolID  string
	Search    string
	ClassID   string
	SessionID string
	IsActive  *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
