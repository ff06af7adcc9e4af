package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SettlementEntry is the immutable record of what the platform earned and
// what it owes the landlord for one completed booking.
type SettlementEntry struct {
	ID               uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	BookingReference string    `json:"booking_reference" gorm:"type:varchar(32);uniqueIndex;not null"`
	BookingID        int64     `json:"booking_id" gorm:"not null;index"`
	LandlordID       int64     `json:"landlord_id" gorm:"not null;index"`
	TotalAmount      int64     `json:"total_amount" gorm:"not null"`
	CommissionAmount int64     `json:"commission_amount" gorm:"not null"`
	LandlordPayout   int64     `json:"landlord_payout" gorm:"not null"`
	SettledAt        time.Time `json:"settled_at" gorm:"not null;index"`
}

func (SettlementEntry) TableName() string { return "settlement_entries" }

func (e *SettlementEntry) BeforeCreate(_ *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// NewSettlementEntry snapshots the booking's financials; nothing is recomputed.
func NewSettlementEntry(b *Booking, settledAt time.Time) *SettlementEntry {
	return &SettlementEntry{
		BookingReference: b.Reference,
		BookingID:        b.ID,
		LandlordID:       b.LandlordID,
		TotalAmount:      b.TotalAmount,
		CommissionAmount: b.CommissionAmount,
		LandlordPayout:   b.LandlordPayout,
		SettledAt:        settledAt,
	}
}
