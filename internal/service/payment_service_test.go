package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vidyalaya/vidyalaya-api/internal/models"
	"github.com/vidyalaya/vidyalaya-api/internal/repository"
	appErrors "github.com/vidyalaya/vidyalaya-api/pkg/errors"
)

type mockPaymentFeeRepo struct {
	fee           *models.StudentFee
	applyErr      error
	appliedAmount float64
	txns          []*models.FeeTransaction
}

func (m *mockPaymentFeeRepo) ApplyPayment(ctx context.Context, feeID string, amount float64, method models.PaymentMethod, txn *models.FeeTransaction, today time.Time) (*models.StudentFee, error) {
	if m.applyErr != nil {
		return nil, m.applyErr
	}
	m.appliedAmount = amount
	fee := *m.fee
	fee.PaidAmount += amount
	fee.PaymentMethod = &method
	fee.RecomputeStatus(today)
	txn.StudentFeeID = fee.ID
	txn.StudentID = fee.StudentID
	m.txns = append(m.txns, txn)
	return &fee, nil
}

func (m *mockPaymentFeeRepo) ApplyFine(ctx context.Context, feeID string, amount float64, txn *models.FeeTransaction, today time.Time) (*models.StudentFee, error) {
	if m.applyErr != nil {
		return nil, m.applyErr
	}
	m.appliedAmount = amount
	fee := *m.fee
	fee.FineAmount += amount
	fee.RecomputeStatus(today)
	if txn != nil {
		txn.StudentFeeID = fee.ID
		txn.StudentID = fee.StudentID
		m.txns = append(m.txns, txn)
	}
	return &fee, nil
}

type mockPaymentLedgerRepo struct {
	receipt *models.FeeTransaction
	txns    []models.FeeTransaction
}

func (m *mockPaymentLedgerRepo) FindByReceiptNumber(ctx context.Context, receiptNumber string) (*models.FeeTransaction, error) {
	if m.receipt == nil {
		return nil, sql.ErrNoRows
	}
	return m.receipt, nil
}

func (m *mockPaymentLedgerRepo) List(ctx context.Context, filter models.FeeTransactionFilter) ([]models.FeeTransaction, int, error) {
	return m.txns, len(m.txns), nil
}

func (m *mockPaymentLedgerRepo) ListByStudentFee(ctx context.Context, studentFeeID string) ([]models.FeeTransaction, error) {
	return m.txns, nil
}

func newPaymentServiceForTest(fees *mockPaymentFeeRepo, ledger *mockPaymentLedgerRepo) *PaymentService {
	return NewPaymentService(fees, ledger, validator.New(), zap.NewNop())
}

func TestPaymentServiceRecordPayment(t *testing.T) {
	fees := &mockPaymentFeeRepo{fee: &models.StudentFee{
		ID:        "fee-1",
		StudentID: "student-1",
		FeeAmount: 1000,
		DueDate:   time.Now().AddDate(0, 1, 0),
		Status:    models.FeeStatusPending,
	}}
	svc := newPaymentServiceForTest(fees, &mockPaymentLedgerRepo{})

	receipt, err := svc.RecordPayment(context.Background(), "fee-1", "user-1", RecordPaymentRequest{
		Amount:        1000,
		PaymentMethod: string(models.MethodCash),
	})
	require.NoError(t, err)
	assert.Equal(t, 1000.0, fees.appliedAmount)
	assert.Equal(t, models.FeeStatusPaid, receipt.Fee.Status)
	assert.True(t, strings.HasPrefix(receipt.Transaction.ReceiptNumber, "RCPT-"))
	assert.True(t, strings.HasPrefix(receipt.Transaction.TransactionID, "TX-"))
	assert.Equal(t, models.TransactionPayment, receipt.Transaction.TransactionType)
	require.NotNil(t, receipt.Transaction.CreatedBy)
	assert.Equal(t, "user-1", *receipt.Transaction.CreatedBy)
}

func TestPaymentServiceRecordPaymentKeepsExternalReference(t *testing.T) {
	fees := &mockPaymentFeeRepo{fee: &models.StudentFee{ID: "fee-1", FeeAmount: 500, DueDate: time.Now()}}
	svc := newPaymentServiceForTest(fees, &mockPaymentLedgerRepo{})

	receipt, err := svc.RecordPayment(context.Background(), "fee-1", "", RecordPaymentRequest{
		Amount:        500,
		PaymentMethod: string(models.MethodOnline),
		TransactionID: "GATEWAY-42",
	})
	require.NoError(t, err)
	assert.Equal(t, "GATEWAY-42", receipt.Transaction.TransactionID)
	assert.Nil(t, receipt.Transaction.CreatedBy)
}

func TestPaymentServiceRecordPaymentUnknownFee(t *testing.T) {
	fees := &mockPaymentFeeRepo{applyErr: repository.ErrFeeNotFound}
	svc := newPaymentServiceForTest(fees, &mockPaymentLedgerRepo{})

	_, err := svc.RecordPayment(context.Background(), "missing", "", RecordPaymentRequest{
		Amount:        100,
		PaymentMethod: string(models.MethodCash),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestPaymentServiceRecordPaymentOverpayment(t *testing.T) {
	fees := &mockPaymentFeeRepo{applyErr: repository.ErrAmountExceeded}
	svc := newPaymentServiceForTest(fees, &mockPaymentLedgerRepo{})

	_, err := svc.RecordPayment(context.Background(), "fee-1", "", RecordPaymentRequest{
		Amount:        5000,
		PaymentMethod: string(models.MethodCash),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestPaymentServiceRecordPaymentUnknownMethod(t *testing.T) {
	svc := newPaymentServiceForTest(&mockPaymentFeeRepo{}, &mockPaymentLedgerRepo{})

	_, err := svc.RecordPayment(context.Background(), "fee-1", "", RecordPaymentRequest{
		Amount:        100,
		PaymentMethod: "crypto",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestPaymentServiceRecordFine(t *testing.T) {
	fees := &mockPaymentFeeRepo{fee: &models.StudentFee{
		ID:         "fee-1",
		StudentID:  "student-1",
		FeeAmount:  1000,
		PaidAmount: 1000,
		DueDate:    time.Now().AddDate(0, 0, -10),
		Status:     models.FeeStatusPaid,
	}}
	svc := newPaymentServiceForTest(fees, &mockPaymentLedgerRepo{})

	fee, err := svc.RecordFine(context.Background(), "fee-1", "user-1", RecordFineRequest{Amount: 100, Reason: "late payment"})
	require.NoError(t, err)
	assert.Equal(t, 100.0, fee.FineAmount)
	assert.Equal(t, models.FeeStatusPartial, fee.Status)
	require.Len(t, fees.txns, 1)
	assert.Equal(t, models.TransactionFine, fees.txns[0].TransactionType)
	assert.Equal(t, 100.0, fees.txns[0].Amount)
	require.NotNil(t, fees.txns[0].CreatedBy)
	assert.Equal(t, "user-1", *fees.txns[0].CreatedBy)
}

func TestPaymentServiceRecordFineUnknownFee(t *testing.T) {
	fees := &mockPaymentFeeRepo{applyErr: repository.ErrFeeNotFound}
	svc := newPaymentServiceForTest(fees, &mockPaymentLedgerRepo{})

	_, err := svc.RecordFine(context.Background(), "missing", "", RecordFineRequest{Amount: 100, Reason: "late payment"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestPaymentServiceReceiptNotFound(t *testing.T) {
	svc := newPaymentServiceForTest(&mockPaymentFeeRepo{}, &mockPaymentLedgerRepo{})

	_, err := svc.Receipt(context.Background(), "RCPT-20260830-FFFFFFFF")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestReceiptNumberFormat(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	number := newReceiptNumber(now)
	assert.True(t, strings.HasPrefix(number, "RCPT-20260830-"))
	assert.Len(t, number, len("RCPT-20260830-")+8)
}
