package settlement

import (
	"context"
	"strings"
	"testing"
	"time"

	"campusnest/internal/database"
	"campusnest/internal/domain"
	"campusnest/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := database.OpenTest(strings.ReplaceAll(t.Name(), "/", "_"))
	require.NoError(t, err)
	return NewService(repository.NewSettlementRepository(db), repository.NewBookingRepository(db), nil), db
}

func completedBooking(t *testing.T, db *gorm.DB, ref string, landlordID, total, commission int64, completedAt time.Time) *domain.Booking {
	t.Helper()
	approved := completedAt.Add(-24 * time.Hour)
	b := &domain.Booking{
		Reference:           ref,
		StudentID:           1,
		PropertyID:          1,
		LandlordID:          landlordID,
		MoveInDate:          approved,
		LeaseEndDate:        completedAt,
		LeaseDurationMonths: 1,
		MonthlyRent:         total,
		RentSubtotal:        total,
		TotalAmount:         total,
		CommissionRateBps:   1000,
		CommissionAmount:    commission,
		LandlordPayout:      total - commission,
		Status:              domain.BookingCompleted,
		PaymentStatus:       domain.PaymentPaid,
		Version:             4,
		CreatedAt:           approved.Add(-time.Hour),
		ApprovedAt:          &approved,
		CompletedAt:         &completedAt,
		PaymentCompletedAt:  &approved,
	}
	require.NoError(t, b.CheckInvariants())
	require.NoError(t, db.Create(b).Error)
	return b
}

func TestRecordSettlement_Idempotent(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	at := time.Date(2026, 6, 30, 12, 0, 0, 0, time.UTC)
	b := completedBooking(t, db, "CN-2026-000001", 10, 105000, 10500, at)

	inserted, err := svc.RecordSettlement(ctx, b)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = svc.RecordSettlement(ctx, b)
	require.NoError(t, err)
	assert.False(t, inserted)

	e, err := svc.Get(ctx, b.Reference)
	require.NoError(t, err)
	assert.Equal(t, int64(94500), e.LandlordPayout)
	assert.True(t, at.Equal(e.SettledAt))

	_, err = svc.Get(ctx, "CN-2026-999999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordSettlement_RequiresCompletedPaid(t *testing.T) {
	svc, _ := newService(t)
	b := &domain.Booking{Reference: "CN-2026-000002", Status: domain.BookingApproved, PaymentStatus: domain.PaymentPaid}

	_, err := svc.RecordSettlement(context.Background(), b)
	assert.ErrorIs(t, err, ErrNotSettleable)
}

func TestBackfill(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	at := time.Date(2026, 6, 30, 12, 0, 0, 0, time.UTC)
	done := completedBooking(t, db, "CN-2026-000010", 10, 1000, 100, at)
	completedBooking(t, db, "CN-2026-000011", 10, 2000, 200, at)
	_, err := svc.RecordSettlement(ctx, done)
	require.NoError(t, err)

	n, err := svc.Backfill(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = svc.Backfill(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReportAndPayouts(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	june := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	july := time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC)

	for _, b := range []*domain.Booking{
		completedBooking(t, db, "CN-2026-000020", 10, 105000, 10500, june),
		completedBooking(t, db, "CN-2026-000021", 11, 50000, 5000, june),
		completedBooking(t, db, "CN-2026-000022", 10, 20000, 2000, july),
	} {
		_, err := svc.RecordSettlement(ctx, b)
		require.NoError(t, err)
	}

	from := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	r, err := svc.Report(ctx, &from, &to)
	require.NoError(t, err)
	assert.Equal(t, int64(2), r.Totals.Bookings)
	assert.Equal(t, int64(155000), r.Totals.GrossAmount)
	assert.Equal(t, int64(15500), r.Totals.CommissionAmount)
	assert.Equal(t, int64(139500), r.Totals.LandlordPayout)
	require.Len(t, r.Landlords, 2)
	assert.Equal(t, int64(10), r.Landlords[0].LandlordID)
	assert.Equal(t, "2026-06-01", r.From)

	all, err := svc.Report(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.Totals.Bookings)

	rows, total, totals, err := svc.LandlordPayouts(ctx, 10, repository.SettlementFilter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, rows, 2)
	assert.Equal(t, int64(94500+18000), totals.LandlordPayout)

	_, err = svc.Report(ctx, &to, &from)
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}
