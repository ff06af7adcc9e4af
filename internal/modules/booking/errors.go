package booking

import (
	"errors"
	"fmt"

	"campusnest/internal/domain"
)

var (
	ErrNotFound        = errors.New("booking not found")
	ErrValidation      = errors.New("validation error")
	ErrForbidden       = errors.New("forbidden")
	ErrPaymentMismatch = errors.New("payment amount does not match booking total")
	// ErrRefundRequired is returned when a paid booking would end up
	// cancelled with no refund enqueued.
	ErrRefundRequired = errors.New("paid booking cannot be cancelled without a refund")
)

// InvalidTransitionError carries the state the booking is actually in so the
// caller can re-render instead of guessing.
type InvalidTransitionError struct {
	Reference     string
	Current       domain.BookingStatus
	PaymentStatus domain.PaymentStatus
	Attempted     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s booking %s: status=%s payment_status=%s", e.Attempted, e.Reference, e.Current, e.PaymentStatus)
}

type ConcurrentModificationError struct {
	BookingID int64
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("booking %d was modified concurrently, reload and retry", e.BookingID)
}

type DuplicateActiveBookingError struct {
	ExistingReference string
}

func (e *DuplicateActiveBookingError) Error() string {
	return fmt.Sprintf("student already holds active booking %s on this property for overlapping dates", e.ExistingReference)
}

type PropertyUnavailableError struct {
	PropertyID int64
}

func (e *PropertyUnavailableError) Error() string {
	return fmt.Sprintf("property %d is not available for booking", e.PropertyID)
}

type PaymentMismatchError struct {
	Expected int64
	Got      int64
}

func (e *PaymentMismatchError) Error() string {
	return fmt.Sprintf("payment amount %d does not match total %d", e.Got, e.Expected)
}

func (e *PaymentMismatchError) Unwrap() error { return ErrPaymentMismatch }
