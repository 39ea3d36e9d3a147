package models

import "time"

// FeeFrequency describes how often a fee structure bills.
type FeeFrequency string

const (
	FrequencyMonthly    FeeFrequency = "monthly"
	FrequencyQuarterly  FeeFrequency = "quarterly"
	FrequencyHalfYearly FeeFrequency = "half_yearly"
	FrequencyYearly     FeeFrequency = "yearly"
	FrequencyOneTime    FeeFrequency = "one_time"
)

// Valid reports whether the frequency is a supported value.
func (f FeeFrequency) Valid() bool {
	switch f {
	case FrequencyMonthly, FrequencyQuarterly, FrequencyHalfYearly, FrequencyYearly, FrequencyOneTime:
		return true
	default:
		return false
	}
}

// FeeStatus is the lifecycle state of a student fee instance.
type FeeStatus string

const (
	FeeStatusPending FeeStatus = "pending"
	FeeStatusPartial FeeStatus = "partial"
	FeeStatusPaid    FeeStatus = "paid"
	FeeStatusOverdue FeeStatus = "overdue"
)

// DiscountType distinguishes percentage and fixed-amount discounts.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Valid reports whether the discount type is supported.
func (d DiscountType) Valid() bool {
	return d == DiscountPercentage || d == DiscountFixed
}

// TransactionType classifies ledger entries.
type TransactionType string

const (
	TransactionPayment  TransactionType = "payment"
	TransactionDiscount TransactionType = "discount"
	TransactionFine     TransactionType = "fine"
	TransactionRefund   TransactionType = "refund"
)

// TransactionStatus marks the settlement state of a ledger entry.
type TransactionStatus string

const (
	TransactionSuccess TransactionStatus = "success"
	TransactionFailed  TransactionStatus = "failed"
	TransactionPending TransactionStatus = "pending"
)

// PaymentMethod enumerates accepted payment channels.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodCheck        PaymentMethod = "check"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodOnline       PaymentMethod = "online"
	MethodCard         PaymentMethod = "card"
)

// Valid reports whether the payment method is supported.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodCheck, MethodBankTransfer, MethodOnline, MethodCard:
		return true
	default:
		return false
	}
}

// FeeStructure is a reusable billing template owned by a school and session,
// optionally targeting one class.
type FeeStructure struct {
	ID          string       `db:"id" json:"id"`
	SchoolID    string       `db:"school_id" json:"school_id"`
	SessionID   string       `db:"session_id" json:"session_id"`
	ClassID     *string      `db:"class_id" json:"class_id,omitempty"`
	Name        string       `db:"name" json:"name"`
	Description string       `db:"description" json:"description"`
	Amount      float64      `db:"amount" json:"amount"`
	Frequency   FeeFrequency `db:"frequency" json:"frequency"`
	IsActive    bool         `db:"is_active" json:"is_active"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
}

// StudentFee is one billing obligation for one student, derived from exactly
// one fee structure within exactly one session. The monetary derivations
// (net amount, balance, overdue) are computed on read and never stored.
type StudentFee struct {
	ID             string         `db:"id" json:"id"`
	StudentID      string         `db:"student_id" json:"student_id"`
	FeeStructureID string         `db:"fee_structure_id" json:"fee_structure_id"`
	SessionID      string         `db:"session_id" json:"session_id"`
	ClassID        *string        `db:"class_id" json:"class_id,omitempty"`
	FeeAmount      float64        `db:"fee_amount" json:"fee_amount"`
	DiscountAmount float64        `db:"discount_amount" json:"discount_amount"`
	FineAmount     float64        `db:"fine_amount" json:"fine_amount"`
	PaidAmount     float64        `db:"paid_amount" json:"paid_amount"`
	DueDate        time.Time      `db:"due_date" json:"due_date"`
	PaymentDate    *time.Time     `db:"payment_date" json:"payment_date,omitempty"`
	Status         FeeStatus      `db:"status" json:"status"`
	PaymentMethod  *PaymentMethod `db:"payment_method" json:"payment_method,omitempty"`
	TransactionID  *string        `db:"transaction_id" json:"transaction_id,omitempty"`
	Notes          *string        `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// NetAmount is the effective amount owed after discounts and fines.
func (f *StudentFee) NetAmount() float64 {
	return f.FeeAmount - f.DiscountAmount + f.FineAmount
}

// Balance is the outstanding amount.
func (f *StudentFee) Balance() float64 {
	return f.NetAmount() - f.PaidAmount
}

// IsOverdue reports whether the fee is past due with money outstanding.
func (f *StudentFee) IsOverdue(today time.Time) bool {
	return f.DueDate.Before(truncateDay(today)) && f.Balance() > 0
}

// RecomputeStatus re-derives Status from the stored amounts. Callers must
// invoke it after every mutation of fee, discount, fine or paid amounts.
// Paid wins over overdue, and partial wins over overdue: a partially paid
// fee past its due date reports as partial. Reports count on this ordering.
func (f *StudentFee) RecomputeStatus(today time.Time) {
	switch {
	case f.PaidAmount >= f.NetAmount():
		f.Status = FeeStatusPaid
	case f.PaidAmount > 0:
		f.Status = FeeStatusPartial
	case f.IsOverdue(today):
		f.Status = FeeStatusOverdue
	default:
		f.Status = FeeStatusPending
	}
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// StudentFeeDetail enriches StudentFee with display metadata.
type StudentFeeDetail struct {
	StudentFee
	StudentName string  `db:"student_name" json:"student_name"`
	AdmissionNo string  `db:"admission_no" json:"admission_no"`
	FeeName     string  `db:"fee_name" json:"fee_name"`
	ClassName   *string `db:"class_name" json:"class_name,omitempty"`
}

// StudentFeeFilter scopes fee listing queries.
type StudentFeeFilter struct {
	SchoolID  string
	SessionID string
	StudentID string
	ClassID   string
	Status    *FeeStatus
	Page      int
	PageSize  int
}

// FeeDiscount is an adjustment rule logged when a discount is granted and
// consulted again when new fee instances are created inside its window.
type FeeDiscount struct {
	ID             string       `db:"id" json:"id"`
	StudentID      string       `db:"student_id" json:"student_id"`
	FeeStructureID *string      `db:"fee_structure_id" json:"fee_structure_id,omitempty"`
	DiscountType   DiscountType `db:"discount_type" json:"discount_type"`
	Value          float64      `db:"value" json:"value"`
	Reason         string       `db:"reason" json:"reason"`
	ValidFrom      time.Time    `db:"valid_from" json:"valid_from"`
	ValidTo        time.Time    `db:"valid_to" json:"valid_to"`
	IsActive       bool         `db:"is_active" json:"is_active"`
	AppliedBy      *string      `db:"applied_by" json:"applied_by,omitempty"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
}

// Amount resolves the discount against a base fee amount. Percentage
// discounts scale with the base; fixed discounts apply as-is. Stacked
// discounts accumulate additively and are deliberately uncapped.
func (d FeeDiscount) Amount(base float64) float64 {
	if d.DiscountType == DiscountPercentage {
		return base * d.Value / 100
	}
	return d.Value
}

// Covers reports whether the validity window contains the given date.
func (d FeeDiscount) Covers(date time.Time) bool {
	day := truncateDay(date)
	return !d.ValidFrom.After(day) && !d.ValidTo.Before(day)
}

// FeeTransaction is an immutable, append-only ledger entry. Rows are created
// exactly once per money movement and never mutated afterwards.
type FeeTransaction struct {
	ID              string            `db:"id" json:"id"`
	StudentFeeID    string            `db:"student_fee_id" json:"student_fee_id"`
	StudentID       string            `db:"student_id" json:"student_id"`
	TransactionType TransactionType   `db:"transaction_type" json:"transaction_type"`
	Amount          float64           `db:"amount" json:"amount"`
	PaymentMethod   *PaymentMethod    `db:"payment_method" json:"payment_method,omitempty"`
	TransactionID   string            `db:"transaction_id" json:"transaction_id"`
	TransactionDate time.Time         `db:"transaction_date" json:"transaction_date"`
	Status          TransactionStatus `db:"status" json:"status"`
	ReceiptNumber   string            `db:"receipt_number" json:"receipt_number"`
	CreatedBy       *string           `db:"created_by" json:"created_by,omitempty"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
}

// FeeTransactionFilter scopes ledger listing queries.
type FeeTransactionFilter struct {
	SchoolID  string
	StudentID string
	Type      *TransactionType
	Status    *TransactionStatus
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
}
