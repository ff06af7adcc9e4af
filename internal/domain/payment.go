package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PaymentKind string

const (
	PaymentKindCharge PaymentKind = "charge"
	PaymentKindRefund PaymentKind = "refund"
)

// GatewayStatus tracks one charge or refund request at the payment gateway.
type GatewayStatus string

const (
	GatewayCreated   GatewayStatus = "created"
	GatewayPending   GatewayStatus = "pending"
	GatewaySucceeded GatewayStatus = "succeeded"
	GatewayFailed    GatewayStatus = "failed"
	// GatewayUnknown means the request timed out and the gateway may or may not have acted on it.
	GatewayUnknown GatewayStatus = "unknown"
)

func (s GatewayStatus) IsResolved() bool {
	return s == GatewaySucceeded || s == GatewayFailed
}

type Payment struct {
	ID               uuid.UUID     `json:"id" gorm:"type:uuid;primaryKey"`
	BookingID        int64         `json:"booking_id" gorm:"not null;index"`
	Kind             PaymentKind   `json:"kind" gorm:"type:varchar(10);not null;index"`
	GatewayReference string        `json:"gateway_reference" gorm:"type:varchar(64);uniqueIndex;not null"`
	// ParentReference is the charge a refund pays back.
	ParentReference  string        `json:"parent_reference,omitempty" gorm:"type:varchar(64)"`
	Amount           int64         `json:"amount" gorm:"not null"`
	Status           GatewayStatus `json:"status" gorm:"type:varchar(20);default:'created';index"`
	PayerContact     string        `json:"payer_contact,omitempty" gorm:"type:varchar(255)"`
	Reason           string        `json:"reason,omitempty" gorm:"type:text"`
	PaymentURL       string        `json:"payment_url,omitempty" gorm:"type:text"`
	FailureReason    string        `json:"failure_reason,omitempty" gorm:"type:text"`
	ResultRawBody    string        `json:"-" gorm:"type:text"`
	ResolvedAt       *time.Time    `json:"resolved_at,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

func (Payment) TableName() string { return "payments" }

func (p *Payment) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
