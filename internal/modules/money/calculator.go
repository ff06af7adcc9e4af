package money

import (
	"fmt"
	"math/big"
	"strings"
)

const (
	MinLeaseMonths = 1
	MaxLeaseMonths = 60

	bpsPerPercent = 100
	maxRateBps    = 100 * bpsPerPercent
)

// Rate is a commission rate in basis points (1% = 100).
type Rate int64

func RateFromPercent(p int64) Rate { return Rate(p * bpsPerPercent) }

// ParseRate reads a percent such as "10" or "7.25". Precision beyond basis
// points is rejected rather than rounded.
func ParseRate(s string) (Rate, error) {
	r, ok := new(big.Rat).SetString(strings.TrimSpace(s))
	if !ok {
		return 0, fmt.Errorf("invalid commission rate %q", s)
	}
	r.Mul(r, big.NewRat(bpsPerPercent, 1))
	if !r.IsInt() {
		return 0, fmt.Errorf("commission rate %q has more than two decimals", s)
	}
	rate := Rate(r.Num().Int64())
	if !rate.Valid() {
		return 0, &InvalidTermsError{Field: "commission_rate", Reason: "must be within [0, 100]"}
	}
	return rate, nil
}

func (r Rate) Valid() bool { return r >= 0 && r <= maxRateBps }

func (r Rate) Bps() int64 { return int64(r) }

func (r Rate) String() string {
	whole, frac := int64(r)/bpsPerPercent, int64(r)%bpsPerPercent
	if frac == 0 {
		return fmt.Sprintf("%d%%", whole)
	}
	return strings.TrimRight(fmt.Sprintf("%d.%02d", whole, frac), "0") + "%"
}

type FinancialSnapshot struct {
	MonthlyRent         int64 `json:"monthly_rent"`
	LeaseDurationMonths int   `json:"lease_duration_months"`
	RentSubtotal        int64 `json:"rent_subtotal"`
	SecurityDeposit     int64 `json:"security_deposit"`
	TotalAmount         int64 `json:"total_amount"`
	CommissionRate      Rate  `json:"commission_rate_bps"`
	CommissionAmount    int64 `json:"commission_amount"`
	LandlordPayout      int64 `json:"landlord_payout"`
}

// ComputeFinancials derives every amount of a booking from its terms. All
// arithmetic is on integer currency units.
func ComputeFinancials(monthlyRent int64, leaseDurationMonths int, securityDeposit int64, rate Rate) (FinancialSnapshot, error) {
	if monthlyRent <= 0 {
		return FinancialSnapshot{}, &InvalidTermsError{Field: "monthly_rent", Reason: "must be positive"}
	}
	if leaseDurationMonths < MinLeaseMonths || leaseDurationMonths > MaxLeaseMonths {
		return FinancialSnapshot{}, &InvalidTermsError{
			Field:  "lease_duration_months",
			Reason: fmt.Sprintf("must be within [%d, %d]", MinLeaseMonths, MaxLeaseMonths),
		}
	}
	if securityDeposit < 0 {
		return FinancialSnapshot{}, &InvalidTermsError{Field: "security_deposit", Reason: "must not be negative"}
	}
	if !rate.Valid() {
		return FinancialSnapshot{}, &InvalidTermsError{Field: "commission_rate", Reason: "must be within [0, 100]"}
	}

	subtotal := new(big.Int).Mul(big.NewInt(monthlyRent), big.NewInt(int64(leaseDurationMonths)))
	total := new(big.Int).Add(subtotal, big.NewInt(securityDeposit))
	if !total.IsInt64() {
		return FinancialSnapshot{}, &InvalidTermsError{Field: "total_amount", Reason: "overflows"}
	}

	commission := commissionOf(total, rate)
	return FinancialSnapshot{
		MonthlyRent:         monthlyRent,
		LeaseDurationMonths: leaseDurationMonths,
		RentSubtotal:        subtotal.Int64(),
		SecurityDeposit:     securityDeposit,
		TotalAmount:         total.Int64(),
		CommissionRate:      rate,
		CommissionAmount:    commission,
		LandlordPayout:      total.Int64() - commission,
	}, nil
}

// commissionOf is round-half-up(total * bps / 10000).
func commissionOf(total *big.Int, rate Rate) int64 {
	n := new(big.Int).Mul(total, big.NewInt(rate.Bps()))
	n.Add(n, big.NewInt(maxRateBps/2))
	n.Quo(n, big.NewInt(maxRateBps))
	return n.Int64()
}
