package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceLate    AttendanceStatus = "late"
	AttendanceHalfDay AttendanceStatus = "half_day"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLate, AttendanceHalfDay:
		return true
	default:
		return false
	}
}

// Attendance is one record per student per class day. Uniqueness over
// (student_id, class_id, session_id, date) is enforced by the database.
type Attendance struct {
	ID           string           `db:"id" json:"id"`
	StudentID    string           `db:"student_id" json:"student_id"`
	ClassID      string           `db:"class_id" json:"class_id"`
	SessionID    string           `db:"session_id" json:"session_id"`
	Date         time.Time        `db:"date" json:"date"`
	Status       AttendanceStatus `db:"status" json:"status"`
	CheckInTime  *time.Time       `db:"check_in_time" json:"check_in_time,omitempty"`
	CheckOutTime *time.Time       `db:"check_out_time" json:"check_out_time,omitempty"`
	Notes        *string          `db:"notes" json:"notes,omitempty"`
	MarkedBy     *string          `db:"marked_by" json:"marked_by,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceRecord extends Attendance with student metadata for listings.
type AttendanceRecord struct {
	Attendance
	StudentName string `db:"student_name" json:"student_name"`
	RollNumber  int    `db:"roll_number" json:"roll_number"`
}

// AttendanceFilter defines query filters for attendance listings.
type AttendanceFilter struct {
	ClassID   string
	SessionID string
	StudentID string
	Status    *AttendanceStatus
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
}

// AttendanceSummary is the monthly rollup per (student, class, session,
// month, year). It is a pure cache of Attendance rows and must always be
// re-derivable from them.
type AttendanceSummary struct {
	ID                   string    `db:"id" json:"id"`
	StudentID            string    `db:"student_id" json:"student_id"`
	ClassID              string    `db:"class_id" json:"class_id"`
	SessionID            string    `db:"session_id" json:"session_id"`
	Month                int       `db:"month" json:"month"`
	Year                 int       `db:"year" json:"year"`
	TotalDays            int       `db:"total_days" json:"total_days"`
	PresentDays          int       `db:"present_days" json:"present_days"`
	AbsentDays           int       `db:"absent_days" json:"absent_days"`
	LateDays             int       `db:"late_days" json:"late_days"`
	HalfDays             int       `db:"half_days" json:"half_days"`
	AttendancePercentage float64   `db:"attendance_percentage" json:"attendance_percentage"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}
