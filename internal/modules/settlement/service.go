package settlement

import (
	"context"
	"errors"
	"time"

	"campusnest/internal/domain"
	"campusnest/internal/repository"
)

const backfillBatch = 200

// Service keeps the settlement ledger: one immutable entry per completed
// booking, copied from the booking's snapshot.
type Service struct {
	ledger    ledgerStore
	unsettled UnsettledSource
	now       func() time.Time
	loggerf   func(format string, args ...interface{})
}

func NewService(ledger ledgerStore, unsettled UnsettledSource, loggerf func(format string, args ...interface{})) *Service {
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	return &Service{ledger: ledger, unsettled: unsettled, now: time.Now, loggerf: loggerf}
}

// SettlementHook writes the entry inside the transaction that completes b.
func (s *Service) SettlementHook(b *domain.Booking, settledAt time.Time) repository.TxHook {
	return s.ledger.Hook(domain.NewSettlementEntry(b, settledAt))
}

// RecordSettlement writes the entry for a booking outside the completion
// transaction. A second call for the same booking is a no-op.
func (s *Service) RecordSettlement(ctx context.Context, b *domain.Booking) (bool, error) {
	if b.Status != domain.BookingCompleted || b.PaymentStatus != domain.PaymentPaid {
		return false, notSettleable(b)
	}
	at := s.now().UTC()
	if b.CompletedAt != nil {
		at = *b.CompletedAt
	}
	inserted, err := s.ledger.Record(ctx, domain.NewSettlementEntry(b, at))
	if err != nil {
		return false, err
	}
	if inserted {
		s.loggerf("level=info msg=settlement recorded reference=%s total=%d commission=%d payout=%d",
			b.Reference, b.TotalAmount, b.CommissionAmount, b.LandlordPayout)
	}
	return inserted, nil
}

// Backfill records entries for completed bookings that have none.
func (s *Service) Backfill(ctx context.Context) (int, error) {
	rows, err := s.unsettled.ListUnsettled(ctx, backfillBatch)
	if err != nil {
		return 0, err
	}
	n := 0
	for i := range rows {
		inserted, err := s.RecordSettlement(ctx, &rows[i])
		if err != nil {
			s.loggerf("level=error msg=settlement backfill failed reference=%s err=%v", rows[i].Reference, err)
			continue
		}
		if inserted {
			n++
		}
	}
	if n > 0 {
		s.loggerf("level=warn msg=settlement entries backfilled count=%d", n)
	}
	return n, nil
}

func (s *Service) Get(ctx context.Context, bookingRef string) (*domain.SettlementEntry, error) {
	e, err := s.ledger.GetByReference(ctx, bookingRef)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	return e, err
}

func (s *Service) List(ctx context.Context, f repository.SettlementFilter) ([]domain.SettlementEntry, int64, error) {
	if err := checkPeriod(f.From, f.To); err != nil {
		return nil, 0, err
	}
	return s.ledger.List(ctx, f)
}

// Report sums the ledger for [from, to). Either bound may be nil.
func (s *Service) Report(ctx context.Context, from, to *time.Time) (*Report, error) {
	if err := checkPeriod(from, to); err != nil {
		return nil, err
	}
	f := repository.SettlementFilter{From: from, To: to}
	totals, err := s.ledger.Totals(ctx, f)
	if err != nil {
		return nil, err
	}
	landlords, err := s.ledger.LandlordTotals(ctx, f)
	if err != nil {
		return nil, err
	}
	r := &Report{Totals: totals, Landlords: landlords}
	if from != nil {
		r.From = from.Format("2006-01-02")
	}
	if to != nil {
		r.To = to.Format("2006-01-02")
	}
	return r, nil
}

// LandlordPayouts is a landlord's own slice of the ledger.
func (s *Service) LandlordPayouts(ctx context.Context, landlordID int64, f repository.SettlementFilter) ([]domain.SettlementEntry, int64, repository.SettlementTotals, error) {
	f.LandlordID = landlordID
	rows, total, err := s.List(ctx, f)
	if err != nil {
		return nil, 0, repository.SettlementTotals{}, err
	}
	totals, err := s.ledger.Totals(ctx, f)
	if err != nil {
		return nil, 0, repository.SettlementTotals{}, err
	}
	return rows, total, totals, nil
}

func checkPeriod(from, to *time.Time) error {
	if from != nil && to != nil && !from.Before(*to) {
		return ErrInvalidPeriod
	}
	return nil
}
