package domain

import "time"

type PropertyStatus string

const (
	PropertyActive   PropertyStatus = "active"
	PropertyInactive PropertyStatus = "inactive"
	PropertyDraft    PropertyStatus = "draft"
	PropertyArchived PropertyStatus = "archived"
)

// Property is owned by the listings side of the marketplace; the booking
// engine only reads it.
type Property struct {
	ID              int64          `json:"id" gorm:"primaryKey"`
	LandlordID      int64          `json:"landlord_id" gorm:"not null;index"`
	Title           string         `json:"title" gorm:"type:varchar(255);not null"`
	City            string         `json:"city,omitempty" gorm:"type:varchar(120)"`
	Status          PropertyStatus `json:"status" gorm:"type:varchar(20);default:'draft';index"`
	MonthlyRent     int64          `json:"monthly_rent" gorm:"not null"`
	SecurityDeposit int64          `json:"security_deposit" gorm:"not null;default:0"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func (Property) TableName() string { return "properties" }

func (p *Property) IsBookable() bool { return p.Status == PropertyActive }

// PlatformSetting is a live key/value setting edited from the admin screens.
type PlatformSetting struct {
	Key       string    `json:"key" gorm:"type:varchar(64);primaryKey"`
	Value     string    `json:"value" gorm:"type:text;not null"`
	UpdatedBy int64     `json:"updated_by"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (PlatformSetting) TableName() string { return "platform_settings" }

const SettingCommissionRate = "commission_rate_bps"
