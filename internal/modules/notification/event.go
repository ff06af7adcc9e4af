package notification

import (
	"time"

	"campusnest/internal/domain"
)

// Event is what the engine announces after a booking change has committed.
type Event struct {
	Type          domain.NotificationType `json:"type"`
	BookingID     int64                   `json:"booking_id"`
	Reference     string                  `json:"booking_reference"`
	StudentID     int64                   `json:"student_id"`
	LandlordID    int64                   `json:"landlord_id"`
	Status        domain.BookingStatus    `json:"status"`
	PaymentStatus domain.PaymentStatus    `json:"payment_status"`
	Amount        int64                   `json:"amount,omitempty"`
	Reason        string                  `json:"reason,omitempty"`
	OccurredAt    time.Time               `json:"occurred_at"`
}

func EventFor(t domain.NotificationType, b *domain.Booking, reason string, at time.Time) Event {
	ev := Event{
		Type:          t,
		BookingID:     b.ID,
		Reference:     b.Reference,
		StudentID:     b.StudentID,
		LandlordID:    b.LandlordID,
		Status:        b.Status,
		PaymentStatus: b.PaymentStatus,
		Reason:        reason,
		OccurredAt:    at,
	}
	switch t {
	case domain.NotifPaymentReceived, domain.NotifPaymentFailed, domain.NotifRefundCompleted:
		ev.Amount = b.TotalAmount
	case domain.NotifBookingCompleted:
		ev.Amount = b.LandlordPayout
	}
	return ev
}

// Recipients lists who gets an inbox row for the event.
func (e Event) Recipients() []int64 {
	switch e.Type {
	case domain.NotifBookingCreated:
		return []int64{e.LandlordID}
	case domain.NotifBookingApproved, domain.NotifBookingRejected,
		domain.NotifPaymentFailed, domain.NotifRefundCompleted:
		return []int64{e.StudentID}
	case domain.NotifBookingCancelled, domain.NotifBookingCompleted, domain.NotifPaymentReceived:
		return []int64{e.StudentID, e.LandlordID}
	}
	return nil
}
