package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"campusnest/internal/domain"
	"campusnest/internal/repository"
)

const publishTimeout = 5 * time.Second

var ErrNotFound = errors.New("notification not found")

type inboxStore interface {
	Create(ctx context.Context, n *domain.Notification) error
	ListForUser(ctx context.Context, userID int64, unreadOnly bool, limit, offset int) ([]domain.Notification, error)
	CountUnread(ctx context.Context, userID int64) (int64, error)
	MarkAsRead(ctx context.Context, id, userID int64) error
	MarkAllAsRead(ctx context.Context, userID int64) error
}

// Service delivers booking events: an inbox row per recipient, a push to
// any open socket and a message on the broker. Delivery failures are logged
// and never reach the caller.
type Service struct {
	inbox     inboxStore
	hub       *Hub
	publisher EventPublisher
	loggerf   func(format string, args ...interface{})
	wg        sync.WaitGroup
}

func NewService(inbox inboxStore, hub *Hub, publisher EventPublisher, loggerf func(format string, args ...interface{})) *Service {
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	return &Service{inbox: inbox, hub: hub, publisher: publisher, loggerf: loggerf}
}

func (s *Service) Emit(ctx context.Context, ev Event) {
	ctx = context.WithoutCancel(ctx)
	title, message := render(ev)

	for _, userID := range ev.Recipients() {
		if userID <= 0 {
			continue
		}
		n := &domain.Notification{
			UserID:  userID,
			Type:    ev.Type,
			Title:   title,
			Message: message,
			Data:    ev,
		}
		if err := s.inbox.Create(ctx, n); err != nil {
			s.loggerf("level=error msg=notification insert failed type=%s reference=%s user_id=%d err=%v", ev.Type, ev.Reference, userID, err)
			continue
		}
		if s.hub != nil {
			s.hub.SendToUser(userID, n)
		}
	}

	if s.publisher == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		pctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		if err := s.publisher.Publish(pctx, ev); err != nil {
			s.loggerf("level=warn msg=event publish failed type=%s reference=%s err=%v", ev.Type, ev.Reference, err)
		}
	}()
}

// Wait blocks until in-flight broker publishes are done.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) List(ctx context.Context, userID int64, unreadOnly bool, limit, offset int) ([]domain.Notification, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	list, err := s.inbox.ListForUser(ctx, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	unread, err := s.inbox.CountUnread(ctx, userID)
	if err != nil {
		unread = 0
	}
	return list, unread, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	return s.inbox.CountUnread(ctx, userID)
}

func (s *Service) MarkAsRead(ctx context.Context, id, userID int64) error {
	err := s.inbox.MarkAsRead(ctx, id, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *Service) MarkAllAsRead(ctx context.Context, userID int64) error {
	return s.inbox.MarkAllAsRead(ctx, userID)
}

func render(ev Event) (string, string) {
	switch ev.Type {
	case domain.NotifBookingCreated:
		return "New booking request", fmt.Sprintf("Booking %s is waiting for your approval", ev.Reference)
	case domain.NotifBookingApproved:
		return "Booking approved", fmt.Sprintf("Your booking %s was approved", ev.Reference)
	case domain.NotifBookingRejected:
		return "Booking rejected", withReason(fmt.Sprintf("Your booking %s was rejected", ev.Reference), ev.Reason)
	case domain.NotifBookingCancelled:
		return "Booking cancelled", withReason(fmt.Sprintf("Booking %s was cancelled", ev.Reference), ev.Reason)
	case domain.NotifBookingCompleted:
		return "Booking completed", fmt.Sprintf("Booking %s is complete, payout %d", ev.Reference, ev.Amount)
	case domain.NotifPaymentReceived:
		return "Payment received", fmt.Sprintf("Payment of %d received for booking %s", ev.Amount, ev.Reference)
	case domain.NotifPaymentFailed:
		return "Payment failed", withReason(fmt.Sprintf("Payment for booking %s failed", ev.Reference), ev.Reason)
	case domain.NotifRefundCompleted:
		return "Refund completed", fmt.Sprintf("Refund of %d for booking %s was sent", ev.Amount, ev.Reference)
	}
	return string(ev.Type), ev.Reference
}

func withReason(msg, reason string) string {
	if reason == "" {
		return msg
	}
	return msg + ". Reason: " + reason
}
