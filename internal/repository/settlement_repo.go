package repository

import (
	"context"
	"time"

	"campusnest/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettlementRepository struct {
	db *gorm.DB
}

func NewSettlementRepository(db *gorm.DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

// InsertSettlementIdempotent writes e unless an entry for the same booking reference
// already exists. It reports whether a row was inserted.
func InsertSettlementIdempotent(tx *gorm.DB, e *domain.SettlementEntry) (bool, error) {
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "booking_reference"}},
		DoNothing: true,
	}).Create(e)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *SettlementRepository) Record(ctx context.Context, e *domain.SettlementEntry) (bool, error) {
	return InsertSettlementIdempotent(r.db.WithContext(ctx), e)
}

// Hook records e inside the transaction that completes its booking.
func (r *SettlementRepository) Hook(e *domain.SettlementEntry) TxHook {
	return func(tx *gorm.DB) error {
		_, err := InsertSettlementIdempotent(tx, e)
		return err
	}
}

func (r *SettlementRepository) GetByReference(ctx context.Context, bookingRef string) (*domain.SettlementEntry, error) {
	var e domain.SettlementEntry
	if err := r.db.WithContext(ctx).Where("booking_reference = ?", bookingRef).First(&e).Error; err != nil {
		return nil, mapErr(err)
	}
	return &e, nil
}

type SettlementFilter struct {
	LandlordID int64
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

func (f SettlementFilter) apply(q *gorm.DB) *gorm.DB {
	if f.LandlordID != 0 {
		q = q.Where("landlord_id = ?", f.LandlordID)
	}
	if f.From != nil {
		q = q.Where("settled_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("settled_at < ?", *f.To)
	}
	return q
}

func (r *SettlementRepository) List(ctx context.Context, f SettlementFilter) ([]domain.SettlementEntry, int64, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	q := f.apply(r.db.WithContext(ctx).Model(&domain.SettlementEntry{}))

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []domain.SettlementEntry
	if err := q.Order("settled_at DESC").Limit(f.Limit).Offset(f.Offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

type SettlementTotals struct {
	Bookings         int64 `gorm:"column:bookings" json:"bookings"`
	GrossAmount      int64 `gorm:"column:gross_amount" json:"gross_amount"`
	CommissionAmount int64 `gorm:"column:commission_amount" json:"commission_amount"`
	LandlordPayout   int64 `gorm:"column:landlord_payout" json:"landlord_payout"`
}

func (r *SettlementRepository) Totals(ctx context.Context, f SettlementFilter) (SettlementTotals, error) {
	var out SettlementTotals
	err := f.apply(r.db.WithContext(ctx).Model(&domain.SettlementEntry{})).
		Select("COUNT(*) AS bookings, COALESCE(SUM(total_amount),0) AS gross_amount, " +
			"COALESCE(SUM(commission_amount),0) AS commission_amount, COALESCE(SUM(landlord_payout),0) AS landlord_payout").
		Scan(&out).Error
	return out, err
}

type LandlordPayoutRow struct {
	LandlordID     int64 `gorm:"column:landlord_id" json:"landlord_id"`
	Bookings       int64 `gorm:"column:bookings" json:"bookings"`
	LandlordPayout int64 `gorm:"column:landlord_payout" json:"landlord_payout"`
}

func (r *SettlementRepository) LandlordTotals(ctx context.Context, f SettlementFilter) ([]LandlordPayoutRow, error) {
	var rows []LandlordPayoutRow
	err := f.apply(r.db.WithContext(ctx).Model(&domain.SettlementEntry{})).
		Select("landlord_id, COUNT(*) AS bookings, COALESCE(SUM(landlord_payout),0) AS landlord_payout").
		Group("landlord_id").
		Order("landlord_payout DESC, landlord_id").
		Scan(&rows).Error
	return rows, err
}
