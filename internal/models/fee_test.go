package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStudentFeeDerivations(t *testing.T) {
	fee := StudentFee{
		FeeAmount:      1000,
		DiscountAmount: 150,
		FineAmount:     50,
		PaidAmount:     400,
	}

	assert.Equal(t, 900.0, fee.NetAmount())
	assert.Equal(t, 500.0, fee.Balance())
}

func TestStudentFeeRecomputeStatus(t *testing.T) {
	today := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)
	pastDue := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	futureDue := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		fee  StudentFee
		want FeeStatus
	}{
		{
			name: "unpaid before due date is pending",
			fee:  StudentFee{FeeAmount: 1000, DueDate: futureDue},
			want: FeeStatusPending,
		},
		{
			name: "unpaid past due date is overdue",
			fee:  StudentFee{FeeAmount: 1000, DueDate: pastDue},
			want: FeeStatusOverdue,
		},
		{
			name: "partial payment past due date stays partial",
			fee:  StudentFee{FeeAmount: 1000, PaidAmount: 300, DueDate: pastDue},
			want: FeeStatusPartial,
		},
		{
			name: "full payment past due date is paid",
			fee:  StudentFee{FeeAmount: 1000, PaidAmount: 1000, DueDate: pastDue},
			want: FeeStatusPaid,
		},
		{
			name: "discount can settle a fee without payment",
			fee:  StudentFee{FeeAmount: 1000, DiscountAmount: 1000, DueDate: pastDue},
			want: FeeStatusPaid,
		},
		{
			name: "fine reopens a previously settled fee",
			fee:  StudentFee{FeeAmount: 1000, PaidAmount: 1000, FineAmount: 100, DueDate: pastDue},
			want: FeeStatusPartial,
		},
		{
			name: "due today is not overdue",
			fee:  StudentFee{FeeAmount: 1000, DueDate: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)},
			want: FeeStatusPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fee.RecomputeStatus(today)
			assert.Equal(t, tt.want, tt.fee.Status)
		})
	}
}

func TestStudentFeeIsOverdue(t *testing.T) {
	due := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	fee := StudentFee{FeeAmount: 500, DueDate: due}

	assert.False(t, fee.IsOverdue(time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC)))
	assert.True(t, fee.IsOverdue(time.Date(2026, 3, 11, 0, 1, 0, 0, time.UTC)))

	fee.PaidAmount = 500
	assert.False(t, fee.IsOverdue(time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)))
}

func TestFeeDiscountAmount(t *testing.T) {
	percentage := FeeDiscount{DiscountType: DiscountPercentage, Value: 10}
	fixed := FeeDiscount{DiscountType: DiscountFixed, Value: 50}

	assert.Equal(t, 100.0, percentage.Amount(1000))
	assert.Equal(t, 50.0, fixed.Amount(1000))
	assert.Equal(t, 50.0, fixed.Amount(200))
}

func TestFeeDiscountCovers(t *testing.T) {
	discount := FeeDiscount{
		ValidFrom: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		ValidTo:   time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
	}

	assert.True(t, discount.Covers(time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)))
	assert.True(t, discount.Covers(time.Date(2026, 1, 31, 23, 0, 0, 0, time.UTC)))
	assert.False(t, discount.Covers(time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)))
	assert.False(t, discount.Covers(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)))
}

func TestEnumValidity(t *testing.T) {
	assert.True(t, FrequencyMonthly.Valid())
	assert.True(t, FrequencyOneTime.Valid())
	assert.False(t, FeeFrequency("weekly").Valid())

	assert.True(t, DiscountPercentage.Valid())
	assert.False(t, DiscountType("waiver").Valid())

	assert.True(t, MethodBankTransfer.Valid())
	assert.False(t, PaymentMethod("crypto").Valid())
}
