package domain

import (
	"fmt"
	"time"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingApproved  BookingStatus = "approved"
	BookingRejected  BookingStatus = "rejected"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

type PaymentStatus string

const (
	PaymentUnpaid        PaymentStatus = "unpaid"
	PaymentPaid          PaymentStatus = "paid"
	PaymentRefundPending PaymentStatus = "refund_pending"
	PaymentRefunded      PaymentStatus = "refunded"
)

// Received reports whether money has reached the platform for this booking,
// whether or not it has since been sent back.
func (s PaymentStatus) Received() bool {
	switch s {
	case PaymentPaid, PaymentRefundPending, PaymentRefunded:
		return true
	case PaymentUnpaid:
		return false
	}
	return false
}

func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentUnpaid, PaymentPaid, PaymentRefundPending, PaymentRefunded:
		return true
	}
	return false
}

type Booking struct {
	ID         int64  `json:"id" gorm:"primaryKey"`
	Reference  string `json:"reference" gorm:"type:varchar(32);uniqueIndex;not null"`
	StudentID  int64  `json:"student_id" gorm:"not null;index:idx_bookings_student_property"`
	PropertyID int64  `json:"property_id" gorm:"not null;index:idx_bookings_student_property"`
	LandlordID int64  `json:"landlord_id" gorm:"not null;index"`

	// Terms are copied from the property at request time and never change.
	MoveInDate          time.Time `json:"move_in_date" gorm:"not null"`
	LeaseEndDate        time.Time `json:"lease_end_date" gorm:"not null;index"`
	LeaseDurationMonths int       `json:"lease_duration_months" gorm:"not null"`
	MonthlyRent         int64     `json:"monthly_rent" gorm:"not null"`

	RentSubtotal      int64 `json:"rent_subtotal" gorm:"not null"`
	SecurityDeposit   int64 `json:"security_deposit" gorm:"not null"`
	TotalAmount       int64 `json:"total_amount" gorm:"not null"`
	CommissionRateBps int64 `json:"commission_rate_bps" gorm:"not null"`
	CommissionAmount  int64 `json:"commission_amount" gorm:"not null"`
	LandlordPayout    int64 `json:"landlord_payout" gorm:"not null"`

	Status           BookingStatus `json:"status" gorm:"type:varchar(20);not null;index"`
	PaymentStatus    PaymentStatus `json:"payment_status" gorm:"type:varchar(20);not null;index"`
	GatewayReference string        `json:"gateway_reference,omitempty" gorm:"type:varchar(64)"`

	RejectionReason    string `json:"rejection_reason,omitempty" gorm:"type:text"`
	CancellationReason string `json:"cancellation_reason,omitempty" gorm:"type:text"`

	Version int64 `json:"version" gorm:"not null;default:1"`

	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	ApprovedAt         *time.Time `json:"approved_at,omitempty"`
	RejectedAt         *time.Time `json:"rejected_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	PaymentCompletedAt *time.Time `json:"payment_completed_at,omitempty"`
}

func (Booking) TableName() string { return "bookings" }

// Overlaps reports whether the lease window [from, to) intersects this booking's lease.
func (b *Booking) Overlaps(from, to time.Time) bool {
	return b.MoveInDate.Before(to) && from.Before(b.LeaseEndDate)
}

// CheckInvariants verifies the money and lifecycle rules every persisted
// booking must satisfy. It is run before each write.
func (b *Booking) CheckInvariants() error {
	if b.RentSubtotal != b.MonthlyRent*int64(b.LeaseDurationMonths) {
		return fmt.Errorf("rent_subtotal %d != monthly_rent %d x %d months", b.RentSubtotal, b.MonthlyRent, b.LeaseDurationMonths)
	}
	if b.TotalAmount != b.RentSubtotal+b.SecurityDeposit {
		return fmt.Errorf("total_amount %d != rent_subtotal %d + security_deposit %d", b.TotalAmount, b.RentSubtotal, b.SecurityDeposit)
	}
	if b.CommissionAmount+b.LandlordPayout != b.TotalAmount {
		return fmt.Errorf("commission %d + payout %d != total %d", b.CommissionAmount, b.LandlordPayout, b.TotalAmount)
	}
	if !b.Status.IsValid() {
		return fmt.Errorf("unknown status %q", b.Status)
	}
	if !b.PaymentStatus.IsValid() {
		return fmt.Errorf("unknown payment status %q", b.PaymentStatus)
	}
	if (b.PaymentCompletedAt != nil) != b.PaymentStatus.Received() {
		return fmt.Errorf("payment_completed_at does not match payment status %q", b.PaymentStatus)
	}
	if (b.Status == BookingCancelled || b.Status == BookingRejected) && b.PaymentStatus == PaymentPaid {
		return fmt.Errorf("%s booking %s is paid with no refund in flight", b.Status, b.Reference)
	}
	if b.Status == BookingCompleted && b.PaymentStatus != PaymentPaid {
		return fmt.Errorf("completed booking %s is %s", b.Reference, b.PaymentStatus)
	}

	terminal := 0
	for _, ts := range []*time.Time{b.RejectedAt, b.CancelledAt, b.CompletedAt} {
		if ts != nil {
			terminal++
		}
	}
	if terminal > 1 {
		return fmt.Errorf("booking %s has %d terminal timestamps", b.Reference, terminal)
	}
	if b.CompletedAt != nil && b.ApprovedAt == nil {
		return fmt.Errorf("booking %s completed without approval", b.Reference)
	}

	for name, ts := range map[string]*time.Time{
		"approved_at":          b.ApprovedAt,
		"rejected_at":          b.RejectedAt,
		"cancelled_at":         b.CancelledAt,
		"completed_at":         b.CompletedAt,
		"payment_completed_at": b.PaymentCompletedAt,
	} {
		if ts != nil && ts.Before(b.CreatedAt) {
			return fmt.Errorf("%s precedes created_at", name)
		}
	}
	if b.ApprovedAt != nil && b.CompletedAt != nil && b.CompletedAt.Before(*b.ApprovedAt) {
		return fmt.Errorf("completed_at precedes approved_at")
	}

	switch b.Status {
	case BookingRejected:
		if b.RejectedAt == nil || b.RejectionReason == "" {
			return fmt.Errorf("rejected booking %s lacks timestamp or reason", b.Reference)
		}
	case BookingCancelled:
		if b.CancelledAt == nil || b.CancellationReason == "" {
			return fmt.Errorf("cancelled booking %s lacks timestamp or reason", b.Reference)
		}
	case BookingApproved, BookingCompleted:
		if b.ApprovedAt == nil {
			return fmt.Errorf("booking %s is %s without approved_at", b.Reference, b.Status)
		}
	case BookingPending:
	}
	return nil
}

// BookingTransition is the append-only audit trail of every state change.
type BookingTransition struct {
	ID                int64         `json:"id" gorm:"primaryKey"`
	BookingID         int64         `json:"booking_id" gorm:"not null;index"`
	FromStatus        BookingStatus `json:"from_status" gorm:"type:varchar(20)"`
	ToStatus          BookingStatus `json:"to_status" gorm:"type:varchar(20)"`
	FromPaymentStatus PaymentStatus `json:"from_payment_status" gorm:"type:varchar(20)"`
	ToPaymentStatus   PaymentStatus `json:"to_payment_status" gorm:"type:varchar(20)"`
	ActorID           int64         `json:"actor_id"`
	Reason            string        `json:"reason,omitempty" gorm:"type:text"`
	OccurredAt        time.Time     `json:"occurred_at" gorm:"not null"`
}

func (BookingTransition) TableName() string { return "booking_transitions" }
