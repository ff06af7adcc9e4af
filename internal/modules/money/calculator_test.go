package money

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeFinancials_ReferenceScenario(t *testing.T) {
	snap, err := ComputeFinancials(15000, 6, 15000, RateFromPercent(10))
	require.NoError(t, err)

	assert.Equal(t, int64(90000), snap.RentSubtotal)
	assert.Equal(t, int64(105000), snap.TotalAmount)
	assert.Equal(t, int64(10500), snap.CommissionAmount)
	assert.Equal(t, int64(94500), snap.LandlordPayout)
	assert.Equal(t, Rate(1000), snap.CommissionRate)
}

func TestComputeFinancials_RoundsHalfUp(t *testing.T) {
	// 12345 * 2.5% = 308.625 -> 309
	snap, err := ComputeFinancials(12345, 1, 0, Rate(250))
	require.NoError(t, err)
	assert.Equal(t, int64(309), snap.CommissionAmount)

	// 10 * 5% = 0.5 -> 1
	snap, err = ComputeFinancials(10, 1, 0, RateFromPercent(5))
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.CommissionAmount)
	assert.Equal(t, int64(9), snap.LandlordPayout)

	// 10 * 4.99% = 0.499 -> 0
	snap, err = ComputeFinancials(10, 1, 0, Rate(499))
	require.NoError(t, err)
	assert.Equal(t, int64(0), snap.CommissionAmount)
}

func TestComputeFinancials_NoRoundingLeakage(t *testing.T) {
	rents := []int64{1, 7, 999, 15000, 123457}
	deposits := []int64{0, 1, 15000, 33333}
	rates := []Rate{0, 1, 333, 1000, 1250, 9999, 10000}

	for _, rent := range rents {
		for months := MinLeaseMonths; months <= MaxLeaseMonths; months += 7 {
			for _, dep := range deposits {
				for _, rate := range rates {
					snap, err := ComputeFinancials(rent, months, dep, rate)
					require.NoError(t, err)
					assert.Equal(t, rent*int64(months), snap.RentSubtotal)
					assert.Equal(t, snap.RentSubtotal+dep, snap.TotalAmount)
					assert.Equal(t, snap.TotalAmount, snap.CommissionAmount+snap.LandlordPayout)
					assert.GreaterOrEqual(t, snap.CommissionAmount, int64(0))
					assert.LessOrEqual(t, snap.CommissionAmount, snap.TotalAmount)
				}
			}
		}
	}
}

func TestComputeFinancials_InvalidTerms(t *testing.T) {
	cases := []struct {
		name   string
		rent   int64
		months int
		dep    int64
		rate   Rate
		field  string
	}{
		{"zero rent", 0, 6, 0, RateFromPercent(10), "monthly_rent"},
		{"negative rent", -5, 6, 0, RateFromPercent(10), "monthly_rent"},
		{"zero months", 100, 0, 0, RateFromPercent(10), "lease_duration_months"},
		{"too many months", 100, 61, 0, RateFromPercent(10), "lease_duration_months"},
		{"negative deposit", 100, 6, -1, RateFromPercent(10), "security_deposit"},
		{"negative rate", 100, 6, 0, Rate(-1), "commission_rate"},
		{"rate above 100", 100, 6, 0, RateFromPercent(101), "commission_rate"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ComputeFinancials(tc.rent, tc.months, tc.dep, tc.rate)
			var termsErr *InvalidTermsError
			require.True(t, errors.As(err, &termsErr), "expected InvalidTermsError, got %v", err)
			assert.Equal(t, tc.field, termsErr.Field)
		})
	}
}

func TestComputeFinancials_Boundaries(t *testing.T) {
	_, err := ComputeFinancials(1, MaxLeaseMonths, 0, RateFromPercent(100))
	require.NoError(t, err)

	snap, err := ComputeFinancials(500, MinLeaseMonths, 0, RateFromPercent(100))
	require.NoError(t, err)
	assert.Equal(t, int64(500), snap.CommissionAmount)
	assert.Equal(t, int64(0), snap.LandlordPayout)
}

func TestParseRate(t *testing.T) {
	r, err := ParseRate("10")
	require.NoError(t, err)
	assert.Equal(t, Rate(1000), r)
	assert.Equal(t, "10%", r.String())

	r, err = ParseRate(" 7.5 ")
	require.NoError(t, err)
	assert.Equal(t, Rate(750), r)
	assert.Equal(t, "7.5%", r.String())

	_, err = ParseRate("7.125")
	assert.Error(t, err)

	_, err = ParseRate("abc")
	assert.Error(t, err)

	_, err = ParseRate("150")
	var termsErr *InvalidTermsError
	assert.True(t, errors.As(err, &termsErr))
}
