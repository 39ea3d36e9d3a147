package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vidyalaya/vidyalaya-api/internal/models"
	appErrors "github.com/vidyalaya/vidyalaya-api/pkg/errors"
)

type mockDiscountRepo struct {
	created     []*models.FeeDiscount
	discounts   []models.FeeDiscount
	deactivated []string
}

func (m *mockDiscountRepo) Create(ctx context.Context, discount *models.FeeDiscount) error {
	discount.ID = "discount-1"
	m.created = append(m.created, discount)
	return nil
}

func (m *mockDiscountRepo) ListByStudent(ctx context.Context, studentID string) ([]models.FeeDiscount, error) {
	return m.discounts, nil
}

func (m *mockDiscountRepo) Deactivate(ctx context.Context, id string) error {
	m.deactivated = append(m.deactivated, id)
	return nil
}

type mockDiscountFeeRepo struct {
	unpaid        []models.StudentFee
	updated       []*models.StudentFee
	txns          []*models.FeeTransaction
	lastSessionID string
}

func (m *mockDiscountFeeRepo) ListUnpaidByStudentAndStructure(ctx context.Context, studentID, sessionID string, structureID *string) ([]models.StudentFee, error) {
	m.lastSessionID = sessionID
	return m.unpaid, nil
}

func (m *mockDiscountFeeRepo) ApplyDiscount(ctx context.Context, feeID string, amount float64, txn *models.FeeTransaction, today time.Time) (*models.StudentFee, error) {
	for i := range m.unpaid {
		if m.unpaid[i].ID != feeID {
			continue
		}
		fee := m.unpaid[i]
		fee.DiscountAmount += amount
		fee.RecomputeStatus(today)
		m.updated = append(m.updated, &fee)
		if txn != nil {
			txn.StudentFeeID = fee.ID
			txn.StudentID = fee.StudentID
			m.txns = append(m.txns, txn)
		}
		return &fee, nil
	}
	return nil, appErrors.ErrNotFound
}

func newDiscountServiceForTest(discounts *mockDiscountRepo, fees *mockDiscountFeeRepo) *DiscountService {
	return NewDiscountService(discounts, fees, validator.New(), zap.NewNop())
}

func windowAround(now time.Time) (time.Time, time.Time) {
	return now.AddDate(0, -1, 0), now.AddDate(0, 1, 0)
}

func TestDiscountServiceApplyRetroactively(t *testing.T) {
	now := time.Now().UTC()
	from, to := windowAround(now)
	fees := &mockDiscountFeeRepo{unpaid: []models.StudentFee{
		{ID: "fee-1", StudentID: "student-1", FeeAmount: 1000, DueDate: now.AddDate(0, 0, 7), Status: models.FeeStatusPending},
	}}
	svc := newDiscountServiceForTest(&mockDiscountRepo{}, fees)

	result, err := svc.Apply(context.Background(), "user-1", "session-1", ApplyDiscountRequest{
		StudentID:    "student-1",
		DiscountType: string(models.DiscountPercentage),
		Value:        25,
		Reason:       "sibling discount",
		ValidFrom:    from,
		ValidTo:      to,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.FeesUpdated)
	assert.Equal(t, "session-1", fees.lastSessionID)

	require.Len(t, fees.updated, 1)
	assert.Equal(t, 250.0, fees.updated[0].DiscountAmount)
	assert.Equal(t, models.FeeStatusPending, fees.updated[0].Status)

	require.Len(t, fees.txns, 1)
	assert.Equal(t, models.TransactionDiscount, fees.txns[0].TransactionType)
	assert.Equal(t, 250.0, fees.txns[0].Amount)
	require.NotNil(t, fees.txns[0].CreatedBy)
	assert.Equal(t, "user-1", *fees.txns[0].CreatedBy)
}

func TestDiscountServiceApplyStacksPastNetZero(t *testing.T) {
	now := time.Now().UTC()
	from, to := windowAround(now)
	fees := &mockDiscountFeeRepo{unpaid: []models.StudentFee{
		{ID: "fee-1", StudentID: "student-1", FeeAmount: 1000, DiscountAmount: 900, DueDate: now, Status: models.FeeStatusPending},
	}}
	svc := newDiscountServiceForTest(&mockDiscountRepo{}, fees)

	result, err := svc.Apply(context.Background(), "", "session-1", ApplyDiscountRequest{
		StudentID:    "student-1",
		DiscountType: string(models.DiscountFixed),
		Value:        500,
		Reason:       "hardship",
		ValidFrom:    from,
		ValidTo:      to,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.FeesUpdated)

	// Discounts stack without a floor, so the net can go negative and the
	// fee still settles as paid.
	require.Len(t, fees.updated, 1)
	assert.Equal(t, 1400.0, fees.updated[0].DiscountAmount)
	assert.Equal(t, -400.0, fees.updated[0].Balance())
	assert.Equal(t, models.FeeStatusPaid, fees.updated[0].Status)

	require.Len(t, fees.txns, 1)
	assert.Equal(t, 500.0, fees.txns[0].Amount)
}

func TestDiscountServiceApplyMatchesWindowAgainstDueDate(t *testing.T) {
	now := time.Now().UTC()
	fees := &mockDiscountFeeRepo{unpaid: []models.StudentFee{
		{ID: "fee-1", StudentID: "student-1", FeeAmount: 1000, DueDate: now.AddDate(1, 0, 0), Status: models.FeeStatusPending},
	}}
	svc := newDiscountServiceForTest(&mockDiscountRepo{}, fees)

	// Window covers today but not the due date a year out; the fee must be
	// skipped because eligibility is decided by the due date alone.
	result, err := svc.Apply(context.Background(), "", "session-1", ApplyDiscountRequest{
		StudentID:    "student-1",
		DiscountType: string(models.DiscountFixed),
		Value:        100,
		Reason:       "short grant",
		ValidFrom:    now.AddDate(0, -1, 0),
		ValidTo:      now.AddDate(0, 1, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.FeesUpdated)
	assert.Empty(t, fees.updated)
}

func TestDiscountServiceApplyRejectsPercentageOverHundred(t *testing.T) {
	svc := newDiscountServiceForTest(&mockDiscountRepo{}, &mockDiscountFeeRepo{})

	_, err := svc.Apply(context.Background(), "", "session-1", ApplyDiscountRequest{
		StudentID:    "student-1",
		DiscountType: string(models.DiscountPercentage),
		Value:        150,
		Reason:       "typo",
		ValidFrom:    time.Now(),
		ValidTo:      time.Now().AddDate(0, 1, 0),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDiscountServiceApplyRejectsInvertedWindow(t *testing.T) {
	svc := newDiscountServiceForTest(&mockDiscountRepo{}, &mockDiscountFeeRepo{})

	now := time.Now()
	_, err := svc.Apply(context.Background(), "", "session-1", ApplyDiscountRequest{
		StudentID:    "student-1",
		DiscountType: string(models.DiscountFixed),
		Value:        100,
		Reason:       "inverted",
		ValidFrom:    now,
		ValidTo:      now.AddDate(0, -1, 0),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDiscountServiceRevoke(t *testing.T) {
	discounts := &mockDiscountRepo{}
	svc := newDiscountServiceForTest(discounts, &mockDiscountFeeRepo{})

	err := svc.Revoke(context.Background(), "discount-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"discount-1"}, discounts.deactivated)
}
