package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/vidyalaya/vidyalaya-api/internal/models"
	"github.com/vidyalaya/vidyalaya-api/internal/repository"
	appErrors "github.com/vidyalaya/vidyalaya-api/pkg/errors"
)

type paymentFeeRepository interface {
	ApplyPayment(ctx context.Context, feeID string, amount float64, method models.PaymentMethod, txn *models.FeeTransaction, today time.Time) (*models.StudentFee, error)
	ApplyFine(ctx context.Context, feeID string, amount float64, txn *models.FeeTransaction, today time.Time) (*models.StudentFee, error)
}

type paymentLedgerRepository interface {
	FindByReceiptNumber(ctx context.Context, receiptNumber string) (*models.FeeTransaction, error)
	List(ctx context.Context, filter models.FeeTransactionFilter) ([]models.FeeTransaction, int, error)
	ListByStudentFee(ctx context.Context, studentFeeID string) ([]models.FeeTransaction, error)
}

// PaymentService records payments and fines against student fees.
type PaymentService struct {
	fees      paymentFeeRepository
	ledger    paymentLedgerRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPaymentService constructs the payment service.
func NewPaymentService(fees paymentFeeRepository, ledger paymentLedgerRepository, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{fees: fees, ledger: ledger, validator: validate, logger: logger}
}

// RecordPaymentRequest is the payload for a payment.
type RecordPaymentRequest struct {
	Amount        float64 `json:"amount" validate:"required,gt=0"`
	PaymentMethod string  `json:"payment_method" validate:"required"`
	TransactionID string  `json:"transaction_id"`
	Notes         string  `json:"notes"`
}

// RecordFineRequest is the payload for adding a fine to a fee.
type RecordFineRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
	Reason string  `json:"reason" validate:"required,min=2"`
}

// PaymentReceipt couples the updated fee with its ledger entry.
type PaymentReceipt struct {
	Fee         *models.StudentFee     `json:"fee"`
	Transaction *models.FeeTransaction `json:"transaction"`
}

// RecordPayment applies a payment to a fee instance. The fee row is locked
// for the duration of the check-and-update, so a payment exceeding the live
// balance is rejected without any state change.
func (s *PaymentService) RecordPayment(ctx context.Context, feeID string, createdBy string, req RecordPaymentRequest) (*PaymentReceipt, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	method := models.PaymentMethod(req.PaymentMethod)
	if !method.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown payment method")
	}

	reference := req.TransactionID
	if reference == "" {
		reference = newTransactionReference()
	}

	now := time.Now().UTC()
	txn := &models.FeeTransaction{
		TransactionType: models.TransactionPayment,
		Amount:          req.Amount,
		PaymentMethod:   &method,
		TransactionID:   reference,
		TransactionDate: now,
		Status:          models.TransactionSuccess,
		ReceiptNumber:   newReceiptNumber(now),
	}
	if createdBy != "" {
		txn.CreatedBy = &createdBy
	}

	fee, err := s.fees.ApplyPayment(ctx, feeID, req.Amount, method, txn, now)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrFeeNotFound):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student fee not found")
		case errors.Is(err, repository.ErrAmountExceeded):
			return nil, appErrors.Clone(appErrors.ErrValidation, "payment exceeds the outstanding balance")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
		}
	}

	s.logger.Info("payment recorded",
		zap.String("student_fee_id", feeID),
		zap.Float64("amount", req.Amount),
		zap.String("receipt", txn.ReceiptNumber))
	return &PaymentReceipt{Fee: fee, Transaction: txn}, nil
}

// RecordFine increases the fine amount on a fee and appends a ledger entry;
// both writes commit in one transaction. The status is re-derived since the
// net amount grew.
func (s *PaymentService) RecordFine(ctx context.Context, feeID string, createdBy string, req RecordFineRequest) (*models.StudentFee, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid fine payload")
	}

	now := time.Now().UTC()
	txn := &models.FeeTransaction{
		TransactionType: models.TransactionFine,
		Amount:          req.Amount,
		TransactionID:   newTransactionReference(),
		TransactionDate: now,
		Status:          models.TransactionSuccess,
	}
	if createdBy != "" {
		txn.CreatedBy = &createdBy
	}

	fee, err := s.fees.ApplyFine(ctx, feeID, req.Amount, txn, now)
	if err != nil {
		if errors.Is(err, repository.ErrFeeNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student fee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply fine")
	}

	s.logger.Info("fine recorded", zap.String("student_fee_id", fee.ID), zap.Float64("amount", req.Amount))
	return fee, nil
}

// Receipt returns the ledger entry for a receipt number.
func (s *PaymentService) Receipt(ctx context.Context, receiptNumber string) (*models.FeeTransaction, error) {
	txn, err := s.ledger.FindByReceiptNumber(ctx, receiptNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "receipt not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load receipt")
	}
	return txn, nil
}

// Transactions returns ledger entries matching the filter.
func (s *PaymentService) Transactions(ctx context.Context, filter models.FeeTransactionFilter) ([]models.FeeTransaction, *models.Pagination, error) {
	txns, total, err := s.ledger.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list transactions")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return txns, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// FeeHistory returns the ledger entries attached to one fee instance.
func (s *PaymentService) FeeHistory(ctx context.Context, feeID string) ([]models.FeeTransaction, error) {
	txns, err := s.ledger.ListByStudentFee(ctx, feeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee history")
	}
	return txns, nil
}

// newReceiptNumber builds receipt identifiers of the form
// RCPT-20260830-1A2B3C4D.
func newReceiptNumber(now time.Time) string {
	return fmt.Sprintf("RCPT-%s-%s", now.Format("20060102"), randomHex(4))
}

// newTransactionReference builds internal references for ledger entries that
// arrive without an external transaction ID.
func newTransactionReference() string {
	return "TX-" + randomHex(8)
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return strings.ToUpper(hex.EncodeToString(buf))
}
