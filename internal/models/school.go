package models

import "time"

// School is the tenant boundary; every other entity belongs to exactly one school.
type School struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Code      string    `db:"code" json:"code"`
	Address   string    `db:"address" json:"address"`
	Phone     string    `db:"phone" json:"phone"`
	Email     string    `db:"email" json:"email"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// AcademicSession is a school year/term boundary, the primary time-partitioning
// unit for classes, enrollments and fee instances.
type AcademicSession struct {
	ID        string    `db:"id" json:"id"`
	SchoolID  string    `db:"school_id" json:"school_id"`
	Name      string    `db:"name" json:"name"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
	IsCurrent bool      `db:"is_current" json:"is_current"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SessionContext bundles the resolved sessions for a request. ViewSession is the
// session the caller is browsing; CurrentSession is the school's active one. The
// two differ when reviewing historical data.
type SessionContext struct {
	School         *School           `json:"school"`
	CurrentSession *AcademicSession  `json:"current_session,omitempty"`
	ViewSession    *AcademicSession  `json:"view_session,omitempty"`
	AllSessions    []AcademicSession `json:"all_sessions,omitempty"`
}
