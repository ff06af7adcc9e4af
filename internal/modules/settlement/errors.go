package settlement

import (
	"errors"
	"fmt"

	"campusnest/internal/domain"
)

var (
	ErrNotSettleable = errors.New("booking is not settleable")
	ErrNotFound      = errors.New("settlement entry not found")
	ErrInvalidPeriod = errors.New("invalid reporting period")
)

func notSettleable(b *domain.Booking) error {
	return fmt.Errorf("%w: %s is %s/%s", ErrNotSettleable, b.Reference, b.Status, b.PaymentStatus)
}
