package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vidyalaya/vidyalaya-api/internal/models"
)

// Sentinel errors surfaced by payment application so the service can map them
// to client-facing failures without losing the precise cause.
var (
	ErrFeeNotFound    = errors.New("student fee not found")
	ErrAmountExceeded = errors.New("payment exceeds outstanding balance")
)

// StudentFeeRepository handles persistence of student fee instances.
type StudentFeeRepository struct {
	db *sqlx.DB
}

// NewStudentFeeRepository constructs the repository.
func NewStudentFeeRepository(db *sqlx.DB) *StudentFeeRepository {
	return &StudentFeeRepository{db: db}
}

const studentFeeColumns = `id, student_id, fee_structure_id, session_id, class_id, fee_amount, discount_amount,
        fine_amount, paid_amount, due_date, payment_date, status, payment_method, transaction_id, notes, created_at, updated_at`

const insertTransactionQuery = `INSERT INTO fee_transactions (id, student_fee_id, student_id, transaction_type, amount,
        payment_method, transaction_id, transaction_date, status, receipt_number, created_by, created_at)
        VALUES (:id, :student_fee_id, :student_id, :transaction_type, :amount,
        :payment_method, :transaction_id, :transaction_date, :status, :receipt_number, :created_by, :created_at)`

// FindByID returns a student fee by its ID.
func (r *StudentFeeRepository) FindByID(ctx context.Context, id string) (*models.StudentFee, error) {
	query := fmt.Sprintf(`SELECT %s FROM student_fees WHERE id = $1`, studentFeeColumns)
	var fee models.StudentFee
	if err := r.db.GetContext(ctx, &fee, query, id); err != nil {
		return nil, err
	}
	return &fee, nil
}

// FindDetailByID returns a fee instance with student and structure metadata.
func (r *StudentFeeRepository) FindDetailByID(ctx context.Context, id string) (*models.StudentFeeDetail, error) {
	const query = `SELECT f.id, f.student_id, f.fee_structure_id, f.session_id, f.class_id, f.fee_amount,
        f.discount_amount, f.fine_amount, f.paid_amount, f.due_date, f.payment_date, f.status, f.payment_method,
        f.transaction_id, f.notes, f.created_at, f.updated_at,
        s.first_name || CASE WHEN s.last_name = '' THEN '' ELSE ' ' || s.last_name END AS student_name,
        s.admission_no, fs.name AS fee_name, c.name AS class_name
        FROM student_fees f
        JOIN students s ON s.id = f.student_id
        JOIN fee_structures fs ON fs.id = f.fee_structure_id
        LEFT JOIN classes c ON c.id = f.class_id
        WHERE f.id = $1`
	var fee models.StudentFeeDetail
	if err := r.db.GetContext(ctx, &fee, query, id); err != nil {
		return nil, err
	}
	return &fee, nil
}

// Exists checks whether a fee instance already links the student to the
// structure within the session.
func (r *StudentFeeRepository) Exists(ctx context.Context, studentID, structureID, sessionID string) (bool, error) {
	const query = `SELECT 1 FROM student_fees WHERE student_id = $1 AND fee_structure_id = $2 AND session_id = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, structureID, sessionID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check student fee: %w", err)
	}
	return true, nil
}

// Insert persists a new fee instance and, when a discount was captured at
// creation, its ledger entry in the same transaction. The unique index over
// (student_id, fee_structure_id, session_id) makes concurrent duplicate
// assignment a no-op; the bool reports whether a row was actually inserted.
func (r *StudentFeeRepository) Insert(ctx context.Context, fee *models.StudentFee, txn *models.FeeTransaction) (bool, error) {
	if fee.ID == "" {
		fee.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	fee.CreatedAt = now
	fee.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin insert student fee: %w", err)
	}
	defer tx.Rollback()

	const query = `INSERT INTO student_fees (id, student_id, fee_structure_id, session_id, class_id, fee_amount,
        discount_amount, fine_amount, paid_amount, due_date, payment_date, status, payment_method, transaction_id, notes, created_at, updated_at)
        VALUES (:id, :student_id, :fee_structure_id, :session_id, :class_id, :fee_amount,
        :discount_amount, :fine_amount, :paid_amount, :due_date, :payment_date, :status, :payment_method, :transaction_id, :notes, :created_at, :updated_at)
        ON CONFLICT (student_id, fee_structure_id, session_id) DO NOTHING`
	res, err := tx.NamedExecContext(ctx, query, fee)
	if err != nil {
		return false, fmt.Errorf("insert student fee: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert student fee result: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	if txn != nil {
		if txn.ID == "" {
			txn.ID = uuid.NewString()
		}
		txn.StudentFeeID = fee.ID
		txn.StudentID = fee.StudentID
		txn.CreatedAt = now
		if _, err := tx.NamedExecContext(ctx, insertTransactionQuery, txn); err != nil {
			return false, fmt.Errorf("record assignment ledger entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit insert student fee: %w", err)
	}
	return true, nil
}

// List returns fee instances with student and structure metadata.
func (r *StudentFeeRepository) List(ctx context.Context, filter models.StudentFeeFilter) ([]models.StudentFeeDetail, int, error) {
	base := `FROM student_fees f
JOIN students s ON s.id = f.student_id
JOIN fee_structures fs ON fs.id = f.fee_structure_id
LEFT JOIN classes c ON c.id = f.class_id`
	var conditions []string
	var args []interface{}

	if filter.SchoolID != "" {
		conditions = append(conditions, fmt.Sprintf("s.school_id = $%d", len(args)+1))
		args = append(args, filter.SchoolID)
	}
	if filter.SessionID != "" {
		conditions = append(conditions, fmt.Sprintf("f.session_id = $%d", len(args)+1))
		args = append(args, filter.SessionID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("f.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("f.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("f.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT f.id, f.student_id, f.fee_structure_id, f.session_id, f.class_id, f.fee_amount,
        f.discount_amount, f.fine_amount, f.paid_amount, f.due_date, f.payment_date, f.status, f.payment_method,
        f.transaction_id, f.notes, f.created_at, f.updated_at,
        s.first_name || CASE WHEN s.last_name = '' THEN '' ELSE ' ' || s.last_name END AS student_name,
        s.admission_no, fs.name AS fee_name, c.name AS class_name
        %s ORDER BY f.due_date ASC, s.first_name ASC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var fees []models.StudentFeeDetail
	if err := r.db.SelectContext(ctx, &fees, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list student fees: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count student fees: %w", err)
	}
	return fees, total, nil
}

// ListByStudent returns all fee instances for a student in a session.
func (r *StudentFeeRepository) ListByStudent(ctx context.Context, studentID, sessionID string) ([]models.StudentFee, error) {
	query := fmt.Sprintf(`SELECT %s FROM student_fees WHERE student_id = $1 AND session_id = $2 ORDER BY due_date ASC`, studentFeeColumns)
	var fees []models.StudentFee
	if err := r.db.SelectContext(ctx, &fees, query, studentID, sessionID); err != nil {
		return nil, fmt.Errorf("list student fees: %w", err)
	}
	return fees, nil
}

// ListUnpaidByStudentAndStructure returns the pending and partial fee
// instances of a student within one session, for retroactive discount
// application. Paid and overdue fees are excluded. A nil structureID matches
// all structures.
func (r *StudentFeeRepository) ListUnpaidByStudentAndStructure(ctx context.Context, studentID, sessionID string, structureID *string) ([]models.StudentFee, error) {
	query := fmt.Sprintf(`SELECT %s FROM student_fees WHERE student_id = $1 AND session_id = $2 AND status IN ($3, $4)`, studentFeeColumns)
	args := []interface{}{studentID, sessionID, models.FeeStatusPending, models.FeeStatusPartial}
	if structureID != nil && *structureID != "" {
		query += fmt.Sprintf(" AND fee_structure_id = $%d", len(args)+1)
		args = append(args, *structureID)
	}
	var fees []models.StudentFee
	if err := r.db.SelectContext(ctx, &fees, query, args...); err != nil {
		return nil, fmt.Errorf("list unpaid fees: %w", err)
	}
	return fees, nil
}

// ApplyPayment atomically applies a payment to a fee instance: the row is
// locked, the amount validated against the live balance, and the new paid
// amount, status and ledger entry committed together. Overpayment attempts
// fail with ErrAmountExceeded leaving the fee untouched.
func (r *StudentFeeRepository) ApplyPayment(ctx context.Context, feeID string, amount float64, method models.PaymentMethod, txn *models.FeeTransaction, today time.Time) (*models.StudentFee, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin payment: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`SELECT %s FROM student_fees WHERE id = $1 FOR UPDATE`, studentFeeColumns)
	var fee models.StudentFee
	if err := tx.GetContext(ctx, &fee, query, feeID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrFeeNotFound
		}
		return nil, fmt.Errorf("lock student fee: %w", err)
	}

	if amount > fee.Balance() {
		return nil, ErrAmountExceeded
	}

	fee.PaidAmount += amount
	fee.PaymentMethod = &method
	now := time.Now().UTC()
	fee.PaymentDate = &now
	if txn.TransactionID != "" {
		fee.TransactionID = &txn.TransactionID
	}
	fee.RecomputeStatus(today)
	fee.UpdatedAt = now

	const updateQuery = `UPDATE student_fees SET paid_amount = :paid_amount, status = :status, payment_date = :payment_date,
        payment_method = :payment_method, transaction_id = :transaction_id, updated_at = :updated_at WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, updateQuery, &fee); err != nil {
		return nil, fmt.Errorf("apply payment: %w", err)
	}

	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	txn.StudentFeeID = fee.ID
	txn.StudentID = fee.StudentID
	txn.CreatedAt = now
	if _, err := tx.NamedExecContext(ctx, insertTransactionQuery, txn); err != nil {
		return nil, fmt.Errorf("record payment transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit payment: %w", err)
	}
	return &fee, nil
}

// ApplyFine atomically raises the fine amount on a fee instance and appends
// the ledger entry in the same transaction. The status is re-derived since
// the net amount grew.
func (r *StudentFeeRepository) ApplyFine(ctx context.Context, feeID string, amount float64, txn *models.FeeTransaction, today time.Time) (*models.StudentFee, error) {
	return r.applyAdjustment(ctx, feeID, txn, today, func(fee *models.StudentFee) {
		fee.FineAmount += amount
	})
}

// ApplyDiscount atomically raises the discount amount on a fee instance and
// appends the ledger entry in the same transaction.
func (r *StudentFeeRepository) ApplyDiscount(ctx context.Context, feeID string, amount float64, txn *models.FeeTransaction, today time.Time) (*models.StudentFee, error) {
	return r.applyAdjustment(ctx, feeID, txn, today, func(fee *models.StudentFee) {
		fee.DiscountAmount += amount
	})
}

// applyAdjustment locks the fee row, mutates its amounts, re-derives the
// status and writes the row together with the ledger entry in one
// transaction. A ledger failure rolls the amount change back.
func (r *StudentFeeRepository) applyAdjustment(ctx context.Context, feeID string, txn *models.FeeTransaction, today time.Time, mutate func(*models.StudentFee)) (*models.StudentFee, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin fee adjustment: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`SELECT %s FROM student_fees WHERE id = $1 FOR UPDATE`, studentFeeColumns)
	var fee models.StudentFee
	if err := tx.GetContext(ctx, &fee, query, feeID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrFeeNotFound
		}
		return nil, fmt.Errorf("lock student fee: %w", err)
	}

	mutate(&fee)
	now := time.Now().UTC()
	fee.RecomputeStatus(today)
	fee.UpdatedAt = now

	const updateQuery = `UPDATE student_fees SET discount_amount = :discount_amount, fine_amount = :fine_amount,
        status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, updateQuery, &fee); err != nil {
		return nil, fmt.Errorf("apply fee adjustment: %w", err)
	}

	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	txn.StudentFeeID = fee.ID
	txn.StudentID = fee.StudentID
	txn.CreatedAt = now
	if _, err := tx.NamedExecContext(ctx, insertTransactionQuery, txn); err != nil {
		return nil, fmt.Errorf("record adjustment transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit fee adjustment: %w", err)
	}
	return &fee, nil
}

// RefreshOverdueStatuses flips pending fees past their due date to overdue.
// Paid and partial fees are never touched.
func (r *StudentFeeRepository) RefreshOverdueStatuses(ctx context.Context, today time.Time) (int64, error) {
	const query = `UPDATE student_fees SET status = $1, updated_at = NOW()
        WHERE status = $2 AND due_date < $3 AND paid_amount = 0`
	res, err := r.db.ExecContext(ctx, query, models.FeeStatusOverdue, models.FeeStatusPending, today)
	if err != nil {
		return 0, fmt.Errorf("refresh overdue statuses: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("refresh overdue result: %w", err)
	}
	return affected, nil
}
