package booking

import (
	"time"

	"campusnest/internal/domain"
	"campusnest/internal/modules/money"
)

type CreateBookingRequest struct {
	StudentID           int64
	PropertyID          int64
	LandlordID          int64
	MoveInDate          time.Time
	LeaseDurationMonths int
	// CommissionRate is captured at request time and copied onto the booking.
	CommissionRate money.Rate
}

type CreateBookingBody struct {
	PropertyID          int64  `json:"property_id" validate:"required,gt=0"`
	LandlordID          int64  `json:"landlord_id" validate:"required,gt=0"`
	MoveInDate          string `json:"move_in_date" validate:"required,datetime=2006-01-02"`
	LeaseDurationMonths int    `json:"lease_duration_months" validate:"required,min=1,max=60"`
}

type ReasonBody struct {
	Reason string `json:"reason" validate:"required,min=3,max=1000"`
}

type CommissionRateBody struct {
	Rate string `json:"rate" validate:"required"`
}

type ListQuery struct {
	Status        string `form:"status"`
	PaymentStatus string `form:"payment_status"`
	From          string `form:"from"`
	To            string `form:"to"`
	Limit         int    `form:"limit"`
	Offset        int    `form:"offset"`
}

type Actor struct {
	ID   int64
	Role string
}

const RoleSystem = "system"

// SystemActor drives scheduled transitions such as lease-end completion.
var SystemActor = Actor{Role: RoleSystem}

type BookingView struct {
	*domain.Booking
	CommissionRate string `json:"commission_rate"`
}

func NewBookingView(b *domain.Booking) BookingView {
	return BookingView{Booking: b, CommissionRate: money.Rate(b.CommissionRateBps).String()}
}
