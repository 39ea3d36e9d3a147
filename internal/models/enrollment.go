package models

import "time"

// StudentEnrollment registers a student to a class within an academic session.
// It is the source of truth for who is billable and trackable in that session.
type StudentEnrollment struct {
	ID             string    `db:"id" json:"id"`
	StudentID      string    `db:"student_id" json:"student_id"`
	ClassID        string    `db:"class_id" json:"class_id"`
	SessionID      string    `db:"session_id" json:"session_id"`
	RollNumber     int       `db:"roll_number" json:"roll_number"`
	EnrollmentDate time.Time `db:"enrollment_date" json:"enrollment_date"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// EnrollmentDetail enriches StudentEnrollment with student and class info.
type EnrollmentDetail struct {
	StudentEnrollment
	StudentName string `db:"student_name" json:"student_name"`
	AdmissionNo string `db:"admission_no" json:"admission_no"`
	ClassName   string `db:"class_name" json:"class_name"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	ClassID   string
	SessionID string
	IsActive  *bool
	Page      int
	PageSize  int
}
