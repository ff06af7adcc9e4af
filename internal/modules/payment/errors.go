package payment

import (
	"errors"
	"fmt"

	"campusnest/internal/domain"
)

var (
	ErrBookingNotPayable = errors.New("booking is not payable")
	ErrAmountMismatch    = errors.New("amount mismatch")
	ErrUnknownReference  = errors.New("unknown gateway reference")
)

type BookingNotPayableError struct {
	Reference     string
	Status        domain.BookingStatus
	PaymentStatus domain.PaymentStatus
}

func (e *BookingNotPayableError) Error() string {
	return fmt.Sprintf("booking %s is not payable: status=%s payment_status=%s", e.Reference, e.Status, e.PaymentStatus)
}

func (e *BookingNotPayableError) Unwrap() error { return ErrBookingNotPayable }

// GatewayUnavailableError means the charge could not be confirmed right now.
// With OutcomeUnknown set the request may still go through; the reference
// stays open until a callback or the reconciliation poll settles it.
type GatewayUnavailableError struct {
	Reference      string
	OutcomeUnknown bool
	Err            error
}

func (e *GatewayUnavailableError) Error() string {
	if e.OutcomeUnknown {
		return fmt.Sprintf("payment %s pending, outcome unknown: %v", e.Reference, e.Err)
	}
	return fmt.Sprintf("payment gateway unavailable: %v", e.Err)
}

func (e *GatewayUnavailableError) Unwrap() error { return e.Err }
