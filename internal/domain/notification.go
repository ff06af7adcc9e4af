package domain

import "time"

type NotificationType string

const (
	NotifBookingCreated   NotificationType = "booking_created"
	NotifBookingApproved  NotificationType = "booking_approved"
	NotifBookingRejected  NotificationType = "booking_rejected"
	NotifBookingCancelled NotificationType = "booking_cancelled"
	NotifBookingCompleted NotificationType = "booking_completed"
	NotifPaymentReceived  NotificationType = "payment_received"
	NotifPaymentFailed    NotificationType = "payment_failed"
	NotifRefundCompleted  NotificationType = "refund_completed"
)

type Notification struct {
	ID        int64            `json:"id" gorm:"primaryKey"`
	UserID    int64            `json:"user_id" gorm:"not null;index:idx_notifications_user_unread"`
	Type      NotificationType `json:"type" gorm:"type:varchar(40);not null"`
	Title     string           `json:"title" gorm:"type:varchar(255)"`
	Message   string           `json:"message,omitempty" gorm:"type:text"`
	IsRead    bool             `json:"is_read" gorm:"index:idx_notifications_user_unread"`
	Data      any              `json:"data,omitempty" gorm:"type:text;serializer:json"`
	CreatedAt time.Time        `json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }
