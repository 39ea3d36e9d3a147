package models

import "time"

// FeeStatistics aggregates the fee ledger for one school and session.
type FeeStatistics struct {
	TotalFees         float64 `json:"total_fees"`
	TotalPaid         float64 `json:"total_paid"`
	TotalDiscount     float64 `json:"total_discount"`
	TotalFine         float64 `json:"total_fine"`
	TotalNet          float64 `json:"total_net"`
	TotalDue          float64 `json:"total_due"`
	PaidCount         int     `json:"paid_count"`
	PendingCount      int     `json:"pending_count"`
	PartialCount      int     `json:"partial_count"`
	OverdueCount      int     `json:"overdue_count"`
	StudentFeesCount  int     `json:"student_fees_count"`
	TotalStudents     int     `json:"total_students"`
	StudentsWithout   int     `json:"students_without_fees"`
	FeeStructureCount int     `json:"fee_structures_count"`
	HasUnassignedFees bool    `json:"has_unassigned_fees"`
}

// CollectionPoint is one day in the daily collection series.
type CollectionPoint struct {
	Date   string  `json:"date"`
	Day    string  `json:"day"`
	Amount float64 `json:"amount"`
}

// MonthlyCollection is the month-bucketed collection series spanning the
// session window, zero-filled for months without transactions.
type MonthlyCollection struct {
	Labels []string  `json:"labels"`
	Data   []float64 `json:"data"`
}

// PaymentMethodSlice is one share of the payment-method distribution.
type PaymentMethodSlice struct {
	Method string  `json:"method"`
	Amount float64 `json:"amount"`
}

// ClassCollectionRate holds the per-class collection rate for a session.
type ClassCollectionRate struct {
	ClassID        string  `json:"class_id"`
	ClassName      string  `json:"class_name"`
	StudentCount   int     `json:"student_count"`
	TotalFees      float64 `json:"total_fees"`
	TotalPaid      float64 `json:"total_paid"`
	TotalNet       float64 `json:"total_net"`
	CollectionRate float64 `json:"collection_rate"`
}

// DateRange names the supported aggregation windows for class stats.
type DateRange string

const (
	RangeWeek  DateRange = "week"
	RangeMonth DateRange = "month"
	RangeYear  DateRange = "year"
)

// ClassAttendanceStats summarises attendance for a class in a window.
type ClassAttendanceStats struct {
	TotalDays     int     `json:"total_days"`
	AvgAttendance float64 `json:"avg_attendance"`
	PresentToday  int     `json:"present_today"`
	AbsentToday   int     `json:"absent_today"`
	TotalStudents int     `json:"total_students"`
}

// StudentAttendanceStats summarises one student's current-month attendance.
type StudentAttendanceStats struct {
	TotalDays            int     `json:"total_days"`
	PresentDays          int     `json:"present_days"`
	AbsentDays           int     `json:"absent_days"`
	LateDays             int     `json:"late_days"`
	HalfDays             int     `json:"half_days"`
	AttendancePercentage float64 `json:"attendance_percentage"`
	Month                string  `json:"month"`
}

// AttendanceTrendPoint is one day in the class attendance trend. HasData
// distinguishes "no attendance taken" from a genuine zero-percent day.
type AttendanceTrendPoint struct {
	Date    string  `json:"date"`
	Day     string  `json:"day"`
	Present int     `json:"present"`
	Total   int     `json:"total"`
	Rate    float64 `json:"rate"`
	HasData bool    `json:"has_data"`
}

// DailyAttendanceRow is one raw attendance observation used by the report
// aggregators.
type DailyAttendanceRow struct {
	StudentID string           `db:"student_id"`
	Date      time.Time        `db:"date"`
	Status    AttendanceStatus `db:"status"`
}

// PaymentRow is one successful payment observation used by the collection
// aggregators.
type PaymentRow struct {
	TransactionDate time.Time `db:"transaction_date"`
	Amount          float64   `db:"amount"`
	PaymentMethod   *string   `db:"payment_method"`
}
