package payment

import "campusnest/internal/domain"

type InitiateChargeBody struct {
	PayerContact string `json:"payer_contact" validate:"omitempty,email"`
}

type RefundBody struct {
	Reason string `json:"reason" validate:"required,min=3,max=1000"`
}

// ChargeHandle is what the student's client needs to complete a payment.
type ChargeHandle struct {
	Reference        string               `json:"reference"`
	BookingReference string               `json:"booking_reference"`
	Amount           int64                `json:"amount"`
	PaymentURL       string               `json:"payment_url,omitempty"`
	Status           domain.GatewayStatus `json:"status"`
}

type ReconcileReport struct {
	Checked      int `json:"checked"`
	Resolved     int `json:"resolved"`
	Redispatched int `json:"redispatched"`
	Failed       int `json:"failed"`
}
