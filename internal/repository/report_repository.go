package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vidyalaya/vidyalaya-api/internal/models"
)

// ReportRepository reads raw and semi-aggregated rows for the reporting
// services. Bucketing and zero-filling happen in the service layer.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

type feeTotalsRow struct {
	TotalFees        float64 `db:"total_fees"`
	TotalPaid        float64 `db:"total_paid"`
	TotalDiscount    float64 `db:"total_discount"`
	TotalFine        float64 `db:"total_fine"`
	PaidCount        int     `db:"paid_count"`
	PartialCount     int     `db:"partial_count"`
	OverdueCount     int     `db:"overdue_count"`
	StudentFeesCount int     `db:"student_fees_count"`
}

// FeeTotals aggregates the fee ledger for a school session. Status buckets
// are derived from the live amounts so a stale stored status cannot skew
// the report: paid wins over overdue, partial wins over overdue.
func (r *ReportRepository) FeeTotals(ctx context.Context, schoolID, sessionID string, today time.Time) (*models.FeeStatistics, error) {
	const query = `SELECT
        COALESCE(SUM(f.fee_amount), 0) AS total_fees,
        COALESCE(SUM(f.paid_amount), 0) AS total_paid,
        COALESCE(SUM(f.discount_amount), 0) AS total_discount,
        COALESCE(SUM(f.fine_amount), 0) AS total_fine,
        COUNT(*) FILTER (WHERE f.paid_amount >= f.fee_amount - f.discount_amount + f.fine_amount) AS paid_count,
        COUNT(*) FILTER (WHERE f.paid_amount > 0 AND f.paid_amount < f.fee_amount - f.discount_amount + f.fine_amount) AS partial_count,
        COUNT(*) FILTER (WHERE f.paid_amount = 0 AND f.due_date < $3 AND f.fee_amount - f.discount_amount + f.fine_amount > 0) AS overdue_count,
        COUNT(*) AS student_fees_count
        FROM student_fees f
        JOIN students s ON s.id = f.student_id
        WHERE s.school_id = $1 AND f.session_id = $2`
	var row feeTotalsRow
	if err := r.db.GetContext(ctx, &row, query, schoolID, sessionID, today); err != nil {
		return nil, fmt.Errorf("aggregate fee totals: %w", err)
	}

	stats := &models.FeeStatistics{
		TotalFees:        row.TotalFees,
		TotalPaid:        row.TotalPaid,
		TotalDiscount:    row.TotalDiscount,
		TotalFine:        row.TotalFine,
		PaidCount:        row.PaidCount,
		PartialCount:     row.PartialCount,
		OverdueCount:     row.OverdueCount,
		StudentFeesCount: row.StudentFeesCount,
	}
	stats.TotalNet = stats.TotalFees - stats.TotalDiscount + stats.TotalFine
	stats.TotalDue = stats.TotalNet - stats.TotalPaid
	stats.PendingCount = stats.StudentFeesCount - stats.PaidCount - stats.PartialCount - stats.OverdueCount
	return stats, nil
}

// CountStudentsWithFees returns how many distinct enrolled students carry at
// least one fee instance in the session.
func (r *ReportRepository) CountStudentsWithFees(ctx context.Context, schoolID, sessionID string) (int, error) {
	const query = `SELECT COUNT(DISTINCT f.student_id) FROM student_fees f
        JOIN students s ON s.id = f.student_id
        WHERE s.school_id = $1 AND f.session_id = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, schoolID, sessionID); err != nil {
		return 0, fmt.Errorf("count students with fees: %w", err)
	}
	return count, nil
}

// PaymentsBetween returns raw successful payment observations for a school
// between two instants, ordered by transaction date.
func (r *ReportRepository) PaymentsBetween(ctx context.Context, schoolID string, from, to time.Time) ([]models.PaymentRow, error) {
	const query = `SELECT t.transaction_date, t.amount, t.payment_method FROM fee_transactions t
        JOIN students s ON s.id = t.student_id
        WHERE s.school_id = $1 AND t.transaction_type = $2 AND t.status = $3
        AND t.transaction_date >= $4 AND t.transaction_date < $5
        ORDER BY t.transaction_date ASC`
	var rows []models.PaymentRow
	if err := r.db.SelectContext(ctx, &rows, query, schoolID, models.TransactionPayment, models.TransactionSuccess, from, to); err != nil {
		return nil, fmt.Errorf("list payments between: %w", err)
	}
	return rows, nil
}

type classCollectionRow struct {
	ClassID       string  `db:"class_id"`
	ClassName     string  `db:"class_name"`
	StudentCount  int     `db:"student_count"`
	TotalFees     float64 `db:"total_fees"`
	TotalPaid     float64 `db:"total_paid"`
	TotalDiscount float64 `db:"total_discount"`
	TotalFine     float64 `db:"total_fine"`
}

// ClassCollectionRows aggregates fees per class for a school session. Fees
// not bound to a class are excluded from the per-class view.
func (r *ReportRepository) ClassCollectionRows(ctx context.Context, schoolID, sessionID string) ([]models.ClassCollectionRate, error) {
	const query = `SELECT c.id AS class_id, c.name AS class_name,
        COUNT(DISTINCT f.student_id) AS student_count,
        COALESCE(SUM(f.fee_amount), 0) AS total_fees,
        COALESCE(SUM(f.paid_amount), 0) AS total_paid,
        COALESCE(SUM(f.discount_amount), 0) AS total_discount,
        COALESCE(SUM(f.fine_amount), 0) AS total_fine
        FROM classes c
        LEFT JOIN student_fees f ON f.class_id = c.id AND f.session_id = c.session_id
        WHERE c.school_id = $1 AND c.session_id = $2
        GROUP BY c.id, c.name
        ORDER BY c.name ASC`
	var rows []classCollectionRow
	if err := r.db.SelectContext(ctx, &rows, query, schoolID, sessionID); err != nil {
		return nil, fmt.Errorf("aggregate class collections: %w", err)
	}

	rates := make([]models.ClassCollectionRate, 0, len(rows))
	for _, row := range rows {
		rate := models.ClassCollectionRate{
			ClassID:      row.ClassID,
			ClassName:    row.ClassName,
			StudentCount: row.StudentCount,
			TotalFees:    row.TotalFees,
			TotalPaid:    row.TotalPaid,
			TotalNet:     row.TotalFees - row.TotalDiscount + row.TotalFine,
		}
		if rate.TotalNet > 0 {
			rate.CollectionRate = rate.TotalPaid / rate.TotalNet * 100
		}
		rates = append(rates, rate)
	}
	return rates, nil
}

// CountClassStudents returns the active enrollment headcount of a class.
func (r *ReportRepository) CountClassStudents(ctx context.Context, classID, sessionID string) (int, error) {
	const query = `SELECT COUNT(*) FROM student_enrollments
        WHERE class_id = $1 AND session_id = $2 AND is_active = TRUE`
	var count int
	if err := r.db.GetContext(ctx, &count, query, classID, sessionID); err != nil {
		return 0, fmt.Errorf("count class students: %w", err)
	}
	return count, nil
}
