package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/vidyalaya/vidyalaya-api/internal/models"
)

// FeeTransactionRepository reads the append-only fee ledger. Entries are
// inserted by StudentFeeRepository in the same transaction as the fee
// mutation they record, and are never updated or deleted.
type FeeTransactionRepository struct {
	db *sqlx.DB
}

// NewFeeTransactionRepository constructs the repository.
func NewFeeTransactionRepository(db *sqlx.DB) *FeeTransactionRepository {
	return &FeeTransactionRepository{db: db}
}

const transactionColumns = `id, student_fee_id, student_id, transaction_type, amount, payment_method,
        transaction_id, transaction_date, status, receipt_number, created_by, created_at`

// FindByReceiptNumber returns the ledger entry carrying the receipt number.
func (r *FeeTransactionRepository) FindByReceiptNumber(ctx context.Context, receiptNumber string) (*models.FeeTransaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM fee_transactions WHERE receipt_number = $1`, transactionColumns)
	var txn models.FeeTransaction
	if err := r.db.GetContext(ctx, &txn, query, receiptNumber); err != nil {
		return nil, err
	}
	return &txn, nil
}

// List returns ledger entries filtered by the provided criteria.
func (r *FeeTransactionRepository) List(ctx context.Context, filter models.FeeTransactionFilter) ([]models.FeeTransaction, int, error) {
	base := "FROM fee_transactions t"
	var conditions []string
	var args []interface{}

	if filter.SchoolID != "" {
		base += " JOIN students s ON s.id = t.student_id"
		conditions = append(conditions, fmt.Sprintf("s.school_id = $%d", len(args)+1))
		args = append(args, filter.SchoolID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("t.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("t.transaction_type = $%d", len(args)+1))
		args = append(args, *filter.Type)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("t.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("t.transaction_date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("t.transaction_date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
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

	query := fmt.Sprintf(`SELECT t.id, t.student_fee_id, t.student_id, t.transaction_type, t.amount, t.payment_method,
        t.transaction_id, t.transaction_date, t.status, t.receipt_number, t.created_by, t.created_at
        %s ORDER BY t.transaction_date DESC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var txns []models.FeeTransaction
	if err := r.db.SelectContext(ctx, &txns, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list fee transactions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count fee transactions: %w", err)
	}
	return txns, total, nil
}

// ListByStudentFee returns all ledger entries for one fee instance.
func (r *FeeTransactionRepository) ListByStudentFee(ctx context.Context, studentFeeID string) ([]models.FeeTransaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM fee_transactions WHERE student_fee_id = $1 ORDER BY transaction_date ASC`, transactionColumns)
	var txns []models.FeeTransaction
	if err := r.db.SelectContext(ctx, &txns, query, studentFeeID); err != nil {
		return nil, fmt.Errorf("list fee transactions: %w", err)
	}
	return txns, nil
}
