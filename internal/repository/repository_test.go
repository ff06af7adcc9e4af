package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"campusnest/internal/database"
	"campusnest/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenTest(strings.ReplaceAll(t.Name(), "/", "_"))
	require.NoError(t, err)
	return db
}

func newBooking(ref string, studentID int64, moveIn time.Time) *domain.Booking {
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	return &domain.Booking{
		Reference:           ref,
		StudentID:           studentID,
		PropertyID:          1,
		LandlordID:          2,
		MoveInDate:          moveIn,
		LeaseEndDate:        moveIn.AddDate(0, 6, 0),
		LeaseDurationMonths: 6,
		MonthlyRent:         100,
		RentSubtotal:        600,
		TotalAmount:         600,
		CommissionRateBps:   1000,
		CommissionAmount:    60,
		LandlordPayout:      540,
		Status:              domain.BookingPending,
		PaymentStatus:       domain.PaymentUnpaid,
		Version:             1,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

func TestSaveVersioned_Conflict(t *testing.T) {
	db := openDB(t)
	repo := NewBookingRepository(db)
	ctx := context.Background()
	b := newBooking("CN-2026-000001", 1, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, repo.Create(ctx, b, &domain.BookingTransition{ToStatus: b.Status, OccurredAt: b.CreatedAt}))

	stale := *b
	b.Status = domain.BookingApproved
	require.NoError(t, repo.SaveVersioned(ctx, b, 1, &domain.BookingTransition{FromStatus: domain.BookingPending, ToStatus: b.Status, OccurredAt: b.CreatedAt}))
	assert.Equal(t, int64(2), b.Version)

	stale.Status = domain.BookingRejected
	err := repo.SaveVersioned(ctx, &stale, 1, &domain.BookingTransition{ToStatus: stale.Status, OccurredAt: b.CreatedAt})
	assert.ErrorIs(t, err, ErrVersionConflict)

	got, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingApproved, got.Status)

	history, err := repo.Transitions(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestSaveVersioned_HookFailureRollsBack(t *testing.T) {
	db := openDB(t)
	repo := NewBookingRepository(db)
	ctx := context.Background()
	b := newBooking("CN-2026-000002", 1, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, repo.Create(ctx, b, &domain.BookingTransition{ToStatus: b.Status, OccurredAt: b.CreatedAt}))

	b.Status = domain.BookingApproved
	failing := func(tx *gorm.DB) error { return errors.New("ledger unavailable") }
	err := repo.SaveVersioned(ctx, b, 1, &domain.BookingTransition{ToStatus: b.Status, OccurredAt: b.CreatedAt}, failing)
	require.Error(t, err)

	got, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingPending, got.Status)
	assert.Equal(t, int64(1), got.Version)
}

func TestCreate_DuplicateReference(t *testing.T) {
	db := openDB(t)
	repo := NewBookingRepository(db)
	ctx := context.Background()
	moveIn := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, newBooking("CN-2026-000003", 1, moveIn), &domain.BookingTransition{OccurredAt: moveIn}))
	err := repo.Create(ctx, newBooking("CN-2026-000003", 2, moveIn), &domain.BookingTransition{OccurredAt: moveIn})
	assert.ErrorIs(t, err, ErrDuplicate)

	exists, err := repo.ReferenceExists(ctx, "CN-2026-000003")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestFindActiveOverlap(t *testing.T) {
	db := openDB(t)
	repo := NewBookingRepository(db)
	ctx := context.Background()
	moveIn := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	b := newBooking("CN-2026-000004", 1, moveIn)
	require.NoError(t, repo.Create(ctx, b, &domain.BookingTransition{OccurredAt: moveIn}))

	got, err := repo.FindActiveOverlap(ctx, 1, 1, moveIn.AddDate(0, 2, 0), moveIn.AddDate(0, 8, 0))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, b.Reference, got.Reference)

	got, err = repo.FindActiveOverlap(ctx, 1, 1, b.LeaseEndDate, b.LeaseEndDate.AddDate(0, 6, 0))
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = repo.FindActiveOverlap(ctx, 2, 1, moveIn, b.LeaseEndDate)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCreateExclusive(t *testing.T) {
	db := openDB(t)
	repo := NewBookingRepository(db)
	ctx := context.Background()
	require.NoError(t, db.Create(&domain.Property{ID: 1, LandlordID: 2, Title: "Flat", Status: domain.PropertyActive, MonthlyRent: 100}).Error)
	moveIn := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	first := newBooking("CN-2026-000005", 1, moveIn)
	existing, err := repo.CreateExclusive(ctx, first, &domain.BookingTransition{OccurredAt: moveIn})
	require.NoError(t, err)
	assert.Nil(t, existing)
	assert.NotZero(t, first.ID)

	second := newBooking("CN-2026-000006", 1, moveIn.AddDate(0, 3, 0))
	existing, err = repo.CreateExclusive(ctx, second, &domain.BookingTransition{OccurredAt: moveIn})
	require.NoError(t, err)
	require.NotNil(t, existing)
	assert.Equal(t, first.Reference, existing.Reference)
	assert.Zero(t, second.ID)

	missing := newBooking("CN-2026-000007", 1, moveIn)
	missing.PropertyID = 99
	_, err = repo.CreateExclusive(ctx, missing, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList_Filters(t *testing.T) {
	db := openDB(t)
	repo := NewBookingRepository(db)
	ctx := context.Background()
	moveIn := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	for i, st := range []domain.BookingStatus{domain.BookingPending, domain.BookingPending, domain.BookingRejected} {
		b := newBooking("CN-2026-00010"+string(rune('0'+i)), int64(10+i), moveIn)
		b.Status = st
		if st == domain.BookingRejected {
			at := b.CreatedAt
			b.RejectedAt = &at
			b.RejectionReason = "full"
		}
		require.NoError(t, repo.Create(ctx, b, &domain.BookingTransition{OccurredAt: moveIn}))
	}

	rows, total, err := repo.List(ctx, BookingFilter{Status: domain.BookingPending, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, rows, 1)

	_, total, err = repo.List(ctx, BookingFilter{StudentID: 12})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	byStatus := map[domain.BookingStatus]int64{}
	for _, c := range counts {
		byStatus[c.Status] = c.Count
	}
	assert.Equal(t, int64(2), byStatus[domain.BookingPending])
	assert.Equal(t, int64(1), byStatus[domain.BookingRejected])

	n, err := repo.CountActiveByProperty(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestInsertSettlementIdempotent(t *testing.T) {
	db := openDB(t)
	repo := NewSettlementRepository(db)
	ctx := context.Background()
	e := &domain.SettlementEntry{BookingReference: "CN-2026-000050", BookingID: 1, LandlordID: 2, TotalAmount: 600, CommissionAmount: 60, LandlordPayout: 540, SettledAt: time.Now().UTC()}

	inserted, err := repo.Record(ctx, e)
	require.NoError(t, err)
	assert.True(t, inserted)

	again := *e
	again.ID = uuid.Nil
	inserted, err = repo.Record(ctx, &again)
	require.NoError(t, err)
	assert.False(t, inserted)

	totals, err := repo.Totals(ctx, SettlementFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), totals.Bookings)
	assert.Equal(t, int64(60), totals.CommissionAmount)
}

func TestResolveIdempotent(t *testing.T) {
	db := openDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()
	p := &domain.Payment{BookingID: 1, Kind: domain.PaymentKindCharge, GatewayReference: "CH-1", Amount: 600, Status: domain.GatewayCreated}
	require.NoError(t, repo.Create(ctx, p))

	require.NoError(t, repo.MarkUnknown(ctx, p.ID, "timeout"))
	got, err := repo.GetByReference(ctx, "CH-1")
	require.NoError(t, err)
	assert.Equal(t, domain.GatewayUnknown, got.Status)

	hookRuns := 0
	counting := func(tx *gorm.DB) error {
		hookRuns++
		return nil
	}
	_, changed, err := repo.ResolveIdempotent(ctx, "CH-1", domain.GatewaySucceeded, "raw", "", time.Now().UTC(), counting)
	require.NoError(t, err)
	assert.True(t, changed)

	out, changed, err := repo.ResolveIdempotent(ctx, "CH-1", domain.GatewayFailed, "", "late failure", time.Now().UTC(), counting)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, domain.GatewaySucceeded, out.Status)
	assert.Equal(t, 1, hookRuns)

	require.NoError(t, repo.MarkPending(ctx, p.ID, "https://pay"))
	got, err = repo.GetByReference(ctx, "CH-1")
	require.NoError(t, err)
	assert.Equal(t, domain.GatewaySucceeded, got.Status)

	_, _, err = repo.ResolveIdempotent(ctx, "CH-404", domain.GatewayFailed, "", "", time.Now().UTC())
	assert.ErrorIs(t, err, ErrNotFound)
}
