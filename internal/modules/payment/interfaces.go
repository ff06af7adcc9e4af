package payment

import (
	"context"
	"time"

	"campusnest/internal/domain"
	"campusnest/internal/modules/booking"
	"campusnest/internal/modules/notification"
	"campusnest/internal/repository"

	"github.com/google/uuid"
)

// BookingLedger is the slice of the booking state machine the correlator drives.
type BookingLedger interface {
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	RecordPayment(ctx context.Context, id int64, gatewayReference string, amountPaid int64) (*domain.Booking, error)
	RequestRefund(ctx context.Context, id int64, actor booking.Actor, reason string) (*domain.Booking, error)
	MarkRefunded(ctx context.Context, id int64, gatewayReference string) (*domain.Booking, error)
}

type paymentStore interface {
	Create(ctx context.Context, p *domain.Payment) error
	EnqueueHook(p *domain.Payment) repository.TxHook
	GetByReference(ctx context.Context, gatewayRef string) (*domain.Payment, error)
	LatestForBooking(ctx context.Context, bookingID int64, kind domain.PaymentKind) (*domain.Payment, error)
	ListByBooking(ctx context.Context, bookingID int64) ([]domain.Payment, error)
	MarkPending(ctx context.Context, id uuid.UUID, paymentURL string) error
	MarkUnknown(ctx context.Context, id uuid.UUID, reason string) error
	ResolveIdempotent(ctx context.Context, gatewayRef string, status domain.GatewayStatus, rawBody, reason string, at time.Time, hooks ...repository.TxHook) (*domain.Payment, bool, error)
	ListUnresolved(ctx context.Context, olderThan time.Time, limit int) ([]domain.Payment, error)
	ListRetryableRefunds(ctx context.Context, limit int) ([]domain.Payment, error)
}

type Notifier interface {
	Emit(ctx context.Context, ev notification.Event)
}
