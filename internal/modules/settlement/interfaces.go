package settlement

import (
	"context"

	"campusnest/internal/domain"
	"campusnest/internal/repository"
)

type ledgerStore interface {
	Record(ctx context.Context, e *domain.SettlementEntry) (bool, error)
	Hook(e *domain.SettlementEntry) repository.TxHook
	GetByReference(ctx context.Context, bookingRef string) (*domain.SettlementEntry, error)
	List(ctx context.Context, f repository.SettlementFilter) ([]domain.SettlementEntry, int64, error)
	Totals(ctx context.Context, f repository.SettlementFilter) (repository.SettlementTotals, error)
	LandlordTotals(ctx context.Context, f repository.SettlementFilter) ([]repository.LandlordPayoutRow, error)
}

// UnsettledSource finds completed, paid bookings with no ledger entry.
type UnsettledSource interface {
	ListUnsettled(ctx context.Context, limit int) ([]domain.Booking, error)
}
