package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidyalaya/vidyalaya-api/internal/models"
)

func newStudentFeeMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func studentFeeRows(fee models.StudentFee) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "student_id", "fee_structure_id", "session_id", "class_id", "fee_amount", "discount_amount",
		"fine_amount", "paid_amount", "due_date", "payment_date", "status", "payment_method", "transaction_id",
		"notes", "created_at", "updated_at",
	}).AddRow(fee.ID, fee.StudentID, fee.FeeStructureID, fee.SessionID, fee.ClassID, fee.FeeAmount,
		fee.DiscountAmount, fee.FineAmount, fee.PaidAmount, fee.DueDate, fee.PaymentDate, fee.Status,
		fee.PaymentMethod, fee.TransactionID, fee.Notes, fee.CreatedAt, fee.UpdatedAt)
}

func TestStudentFeeRepositoryInsertConflictIsNoOp(t *testing.T) {
	db, mock, cleanup := newStudentFeeMock(t)
	defer cleanup()
	repo := NewStudentFeeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO student_fees").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	inserted, err := repo.Insert(context.Background(), &models.StudentFee{
		StudentID:      "student-1",
		FeeStructureID: "structure-1",
		SessionID:      "session-1",
		FeeAmount:      1000,
		DueDate:        time.Now(),
		Status:         models.FeeStatusPending,
	}, nil)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentFeeRepositoryInsert(t *testing.T) {
	db, mock, cleanup := newStudentFeeMock(t)
	defer cleanup()
	repo := NewStudentFeeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO student_fees").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	fee := &models.StudentFee{
		StudentID:      "student-1",
		FeeStructureID: "structure-1",
		SessionID:      "session-1",
		FeeAmount:      1000,
		DueDate:        time.Now(),
		Status:         models.FeeStatusPending,
	}
	inserted, err := repo.Insert(context.Background(), fee, nil)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotEmpty(t, fee.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentFeeRepositoryInsertWithDiscountLedgerEntry(t *testing.T) {
	db, mock, cleanup := newStudentFeeMock(t)
	defer cleanup()
	repo := NewStudentFeeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO student_fees").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO fee_transactions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	fee := &models.StudentFee{
		StudentID:      "student-1",
		FeeStructureID: "structure-1",
		SessionID:      "session-1",
		FeeAmount:      1000,
		DiscountAmount: 100,
		DueDate:        time.Now(),
		Status:         models.FeeStatusPending,
	}
	txn := &models.FeeTransaction{
		TransactionType: models.TransactionDiscount,
		Amount:          100,
		TransactionID:   "TX-ABC",
		TransactionDate: time.Now(),
		Status:          models.TransactionSuccess,
	}
	inserted, err := repo.Insert(context.Background(), fee, txn)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, fee.ID, txn.StudentFeeID)
	assert.Equal(t, "student-1", txn.StudentID)
	assert.NotEmpty(t, txn.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentFeeRepositoryListUnpaidFiltersSessionAndStatus(t *testing.T) {
	db, mock, cleanup := newStudentFeeMock(t)
	defer cleanup()
	repo := NewStudentFeeRepository(db)

	today := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	row := models.StudentFee{
		ID:             "fee-1",
		StudentID:      "student-1",
		FeeStructureID: "structure-1",
		SessionID:      "session-1",
		FeeAmount:      1000,
		DueDate:        today,
		Status:         models.FeeStatusPending,
		CreatedAt:      today,
		UpdatedAt:      today,
	}
	mock.ExpectQuery(`SELECT (.+) FROM student_fees WHERE student_id = \$1 AND session_id = \$2 AND status IN \(\$3, \$4\)`).
		WithArgs("student-1", "session-1", models.FeeStatusPending, models.FeeStatusPartial).
		WillReturnRows(studentFeeRows(row))

	fees, err := repo.ListUnpaidByStudentAndStructure(context.Background(), "student-1", "session-1", nil)
	require.NoError(t, err)
	require.Len(t, fees, 1)
	assert.Equal(t, "fee-1", fees[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentFeeRepositoryApplyPayment(t *testing.T) {
	db, mock, cleanup := newStudentFeeMock(t)
	defer cleanup()
	repo := NewStudentFeeRepository(db)

	today := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	locked := models.StudentFee{
		ID:             "fee-1",
		StudentID:      "student-1",
		FeeStructureID: "structure-1",
		SessionID:      "session-1",
		FeeAmount:      1000,
		PaidAmount:     200,
		DueDate:        time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		Status:         models.FeeStatusPartial,
		CreatedAt:      today,
		UpdatedAt:      today,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM student_fees WHERE id = \$1 FOR UPDATE`).
		WithArgs("fee-1").
		WillReturnRows(studentFeeRows(locked))
	mock.ExpectExec("UPDATE student_fees SET paid_amount").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO fee_transactions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	txn := &models.FeeTransaction{
		TransactionType: models.TransactionPayment,
		Amount:          800,
		TransactionID:   "TX-ABC",
		TransactionDate: today,
		Status:          models.TransactionSuccess,
		ReceiptNumber:   "RCPT-20260315-DEADBEEF",
	}
	fee, err := repo.ApplyPayment(context.Background(), "fee-1", 800, models.MethodCash, txn, today)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, fee.PaidAmount)
	assert.Equal(t, models.FeeStatusPaid, fee.Status)
	assert.Equal(t, "fee-1", txn.StudentFeeID)
	assert.Equal(t, "student-1", txn.StudentID)
	assert.NotEmpty(t, txn.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentFeeRepositoryApplyPaymentOverpayment(t *testing.T) {
	db, mock, cleanup := newStudentFeeMock(t)
	defer cleanup()
	repo := NewStudentFeeRepository(db)

	today := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	locked := models.StudentFee{
		ID:         "fee-1",
		StudentID:  "student-1",
		FeeAmount:  1000,
		PaidAmount: 900,
		DueDate:    today,
		Status:     models.FeeStatusPartial,
		CreatedAt:  today,
		UpdatedAt:  today,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM student_fees WHERE id = \$1 FOR UPDATE`).
		WithArgs("fee-1").
		WillReturnRows(studentFeeRows(locked))
	mock.ExpectRollback()

	_, err := repo.ApplyPayment(context.Background(), "fee-1", 200, models.MethodCash, &models.FeeTransaction{}, today)
	assert.ErrorIs(t, err, ErrAmountExceeded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentFeeRepositoryApplyPaymentUnknownFee(t *testing.T) {
	db, mock, cleanup := newStudentFeeMock(t)
	defer cleanup()
	repo := NewStudentFeeRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM student_fees WHERE id = \$1 FOR UPDATE`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err := repo.ApplyPayment(context.Background(), "missing", 100, models.MethodCash, &models.FeeTransaction{}, time.Now())
	assert.ErrorIs(t, err, ErrFeeNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentFeeRepositoryApplyFine(t *testing.T) {
	db, mock, cleanup := newStudentFeeMock(t)
	defer cleanup()
	repo := NewStudentFeeRepository(db)

	today := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	locked := models.StudentFee{
		ID:         "fee-1",
		StudentID:  "student-1",
		FeeAmount:  1000,
		PaidAmount: 1000,
		DueDate:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Status:     models.FeeStatusPaid,
		CreatedAt:  today,
		UpdatedAt:  today,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM student_fees WHERE id = \$1 FOR UPDATE`).
		WithArgs("fee-1").
		WillReturnRows(studentFeeRows(locked))
	mock.ExpectExec("UPDATE student_fees SET discount_amount").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO fee_transactions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	txn := &models.FeeTransaction{
		TransactionType: models.TransactionFine,
		Amount:          100,
		TransactionID:   "TX-FINE",
		TransactionDate: today,
		Status:          models.TransactionSuccess,
	}
	fee, err := repo.ApplyFine(context.Background(), "fee-1", 100, txn, today)
	require.NoError(t, err)
	assert.Equal(t, 100.0, fee.FineAmount)
	assert.Equal(t, models.FeeStatusPartial, fee.Status)
	assert.Equal(t, "fee-1", txn.StudentFeeID)
	assert.NotEmpty(t, txn.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentFeeRepositoryApplyDiscount(t *testing.T) {
	db, mock, cleanup := newStudentFeeMock(t)
	defer cleanup()
	repo := NewStudentFeeRepository(db)

	today := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	locked := models.StudentFee{
		ID:        "fee-1",
		StudentID: "student-1",
		FeeAmount: 1000,
		DueDate:   time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		Status:    models.FeeStatusPending,
		CreatedAt: today,
		UpdatedAt: today,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM student_fees WHERE id = \$1 FOR UPDATE`).
		WithArgs("fee-1").
		WillReturnRows(studentFeeRows(locked))
	mock.ExpectExec("UPDATE student_fees SET discount_amount").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO fee_transactions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	txn := &models.FeeTransaction{
		TransactionType: models.TransactionDiscount,
		Amount:          250,
		TransactionID:   "TX-DISC",
		TransactionDate: today,
		Status:          models.TransactionSuccess,
	}
	fee, err := repo.ApplyDiscount(context.Background(), "fee-1", 250, txn, today)
	require.NoError(t, err)
	assert.Equal(t, 250.0, fee.DiscountAmount)
	assert.Equal(t, 750.0, fee.Balance())
	assert.Equal(t, "student-1", txn.StudentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentFeeRepositoryApplyFineUnknownFee(t *testing.T) {
	db, mock, cleanup := newStudentFeeMock(t)
	defer cleanup()
	repo := NewStudentFeeRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM student_fees WHERE id = \$1 FOR UPDATE`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err := repo.ApplyFine(context.Background(), "missing", 100, &models.FeeTransaction{}, time.Now())
	assert.ErrorIs(t, err, ErrFeeNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentFeeRepositoryRefreshOverdueStatuses(t *testing.T) {
	db, mock, cleanup := newStudentFeeMock(t)
	defer cleanup()
	repo := NewStudentFeeRepository(db)

	today := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("UPDATE student_fees SET status").
		WithArgs(models.FeeStatusOverdue, models.FeeStatusPending, today).
		WillReturnResult(sqlmock.NewResult(0, 3))

	affected, err := repo.RefreshOverdueStatuses(context.Background(), today)
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}
