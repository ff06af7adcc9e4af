package booking

import (
	"context"
	"time"

	"campusnest/internal/domain"
	"campusnest/internal/modules/notification"
	"campusnest/internal/repository"
)

type BookingRepository interface {
	// CreateExclusive returns the conflicting booking instead of inserting
	// when the student already holds an overlapping active one.
	CreateExclusive(ctx context.Context, b *domain.Booking, audit *domain.BookingTransition) (*domain.Booking, error)
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	GetByReference(ctx context.Context, reference string) (*domain.Booking, error)
	SaveVersioned(ctx context.Context, b *domain.Booking, expectedVersion int64, audit *domain.BookingTransition, hooks ...repository.TxHook) error
	List(ctx context.Context, f repository.BookingFilter) ([]domain.Booking, int64, error)
	ListEndedLeases(ctx context.Context, asOf time.Time, limit int) ([]domain.Booking, error)
	CountActiveByProperty(ctx context.Context, propertyID int64) (int64, error)
	Transitions(ctx context.Context, bookingID int64) ([]domain.BookingTransition, error)
}

// PropertyCatalog is the listings side of the marketplace.
type PropertyCatalog interface {
	IsPropertyBookable(ctx context.Context, id int64) (bool, error)
	GetPricing(ctx context.Context, id int64) (repository.PropertyPricing, error)
}

type ReferenceAllocator interface {
	Next(ctx context.Context) (string, error)
}

// RefundQueue records a refund in the same transaction as the booking write
// and sends it to the gateway once that transaction has committed.
type RefundQueue interface {
	Enqueue(b *domain.Booking, reason string) (*domain.Payment, repository.TxHook)
	Dispatch(ctx context.Context, p *domain.Payment)
}

type SettlementRecorder interface {
	SettlementHook(b *domain.Booking, settledAt time.Time) repository.TxHook
}

type Notifier interface {
	Emit(ctx context.Context, ev notification.Event)
}
