package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campusnest/internal/domain"
	"campusnest/internal/gateway"
	"campusnest/internal/modules/booking"
	"campusnest/internal/modules/notification"
	jwtpkg "campusnest/internal/pkg/jwt"
	"campusnest/internal/repository"

	"github.com/google/uuid"
)

const (
	reconcileBatch     = 100
	orphanRefundReason = "charge captured after booking closed"
)

// Service correlates gateway charges, refunds and callbacks with bookings.
type Service struct {
	bookings BookingLedger
	payments paymentStore
	gateway  gateway.Client
	refunds  *RefundDispatcher
	notifier Notifier
	timeout  time.Duration
	now      func() time.Time
	loggerf  func(format string, args ...interface{})
}

func NewService(
	bookings BookingLedger,
	payments paymentStore,
	gw gateway.Client,
	refunds *RefundDispatcher,
	notifier Notifier,
	timeout time.Duration,
	loggerf func(format string, args ...interface{}),
) *Service {
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	s := &Service{
		bookings: bookings,
		payments: payments,
		gateway:  gw,
		refunds:  refunds,
		notifier: notifier,
		timeout:  timeout,
		now:      time.Now,
		loggerf:  loggerf,
	}
	if refunds != nil {
		refunds.resolve = s.OnRefundCallback
	}
	return s
}

// InitiateCharge opens a charge for the booking total. The payment row is
// written before the gateway is called so a timeout can be reconciled later.
func (s *Service) InitiateCharge(ctx context.Context, bookingID int64, actor booking.Actor, payerContact string) (*ChargeHandle, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if actor.Role != jwtpkg.RoleAdmin && !(actor.Role == jwtpkg.RoleStudent && actor.ID == b.StudentID) {
		return nil, booking.ErrForbidden
	}
	if !b.Status.IsActive() || b.PaymentStatus != domain.PaymentUnpaid {
		return nil, &BookingNotPayableError{Reference: b.Reference, Status: b.Status, PaymentStatus: b.PaymentStatus}
	}

	if open, err := s.payments.LatestForBooking(ctx, b.ID, domain.PaymentKindCharge); err == nil {
		switch open.Status {
		case domain.GatewayPending:
			return handleFor(open, b), nil
		case domain.GatewayUnknown, domain.GatewayCreated:
			return nil, &GatewayUnavailableError{Reference: open.GatewayReference, OutcomeUnknown: true, Err: errors.New("previous charge not settled yet")}
		case domain.GatewaySucceeded, domain.GatewayFailed:
		}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	p := &domain.Payment{
		ID:               uuid.New(),
		BookingID:        b.ID,
		Kind:             domain.PaymentKindCharge,
		GatewayReference: newGatewayReference("CH"),
		Amount:           b.TotalAmount,
		Status:           domain.GatewayCreated,
		PayerContact:     payerContact,
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("save payment failed: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	res, err := s.gateway.Charge(callCtx, gateway.ChargeRequest{
		Reference:    p.GatewayReference,
		Amount:       p.Amount,
		Description:  "Booking " + b.Reference,
		PayerContact: payerContact,
		Booking:      b.Reference,
	})
	switch {
	case errors.Is(err, gateway.ErrTimeout):
		s.loggerf("level=warn msg=charge outcome unknown reference=%s booking=%s", p.GatewayReference, b.Reference)
		if merr := s.payments.MarkUnknown(context.WithoutCancel(ctx), p.ID, "gateway timeout"); merr != nil {
			s.loggerf("level=error msg=failed to mark charge unknown reference=%s err=%v", p.GatewayReference, merr)
		}
		return nil, &GatewayUnavailableError{Reference: p.GatewayReference, OutcomeUnknown: true, Err: err}
	case errors.Is(err, gateway.ErrUnavailable):
		s.failPayment(ctx, p.GatewayReference, "gateway unavailable: "+err.Error())
		return nil, &GatewayUnavailableError{Reference: p.GatewayReference, Err: err}
	case err != nil:
		s.failPayment(ctx, p.GatewayReference, err.Error())
		return nil, fmt.Errorf("charge rejected: %w", err)
	}

	if err := s.payments.MarkPending(ctx, p.ID, res.PaymentURL); err != nil {
		return nil, err
	}
	p.Status = domain.GatewayPending
	p.PaymentURL = res.PaymentURL
	s.loggerf("level=info msg=charge initiated reference=%s booking=%s amount=%d", p.GatewayReference, b.Reference, p.Amount)
	return handleFor(p, b), nil
}

// OnCallback routes a verified gateway callback by the kind of payment it
// refers to and returns the acknowledgement body.
func (s *Service) OnCallback(ctx context.Context, cb *gateway.Callback) (string, error) {
	p, err := s.payments.GetByReference(ctx, cb.Reference)
	if errors.Is(err, repository.ErrNotFound) {
		return "", ErrUnknownReference
	}
	if err != nil {
		return "", err
	}
	if p.Kind == domain.PaymentKindRefund {
		return s.OnRefundCallback(ctx, cb)
	}
	return s.OnGatewayCallback(ctx, cb)
}

// OnGatewayCallback applies a charge outcome. Replays of a callback that was
// already applied are acknowledged without changing anything.
func (s *Service) OnGatewayCallback(ctx context.Context, cb *gateway.Callback) (string, error) {
	ack := "OK" + cb.Reference
	p, err := s.payments.GetByReference(ctx, cb.Reference)
	if errors.Is(err, repository.ErrNotFound) {
		return "", ErrUnknownReference
	}
	if err != nil {
		return "", err
	}
	if p.Kind != domain.PaymentKindCharge {
		return "", fmt.Errorf("%w: %s is not a charge", ErrUnknownReference, cb.Reference)
	}
	if p.Status == domain.GatewaySucceeded {
		s.loggerf("level=info msg=idempotent callback already paid reference=%s", cb.Reference)
		return ack, nil
	}

	if cb.Status == domain.GatewayFailed {
		changed := s.failPayment(ctx, cb.Reference, failureReason(cb))
		if changed {
			if b, err := s.bookings.GetByID(ctx, p.BookingID); err == nil {
				s.emit(ctx, domain.NotifPaymentFailed, b, failureReason(cb))
			}
		}
		return ack, nil
	}
	if cb.Status != domain.GatewaySucceeded {
		return ack, nil
	}

	if cb.Amount != p.Amount {
		reason := fmt.Sprintf("amount mismatch callback=%d expected=%d", cb.Amount, p.Amount)
		s.failPayment(ctx, cb.Reference, reason)
		return "", ErrAmountMismatch
	}

	_, err = s.bookings.RecordPayment(ctx, p.BookingID, p.GatewayReference, cb.Amount)
	var (
		invalid *booking.InvalidTransitionError
		orphan  *domain.Payment
		hooks   []repository.TxHook
	)
	switch {
	case err == nil:
	case errors.As(err, &invalid):
		b, gerr := s.bookings.GetByID(ctx, p.BookingID)
		if gerr != nil {
			return "", gerr
		}
		if b.GatewayReference != p.GatewayReference {
			// closed booking or paid by another charge: pay this one back
			orphan = newRefund(p.BookingID, p.GatewayReference, cb.Amount, orphanRefundReason)
			hooks = append(hooks, s.payments.EnqueueHook(orphan))
			s.loggerf("level=warn msg=charge captured for booking that cannot take it, refunding reference=%s booking=%s status=%s payment_status=%s",
				p.GatewayReference, b.Reference, b.Status, b.PaymentStatus)
		}
	case errors.Is(err, booking.ErrPaymentMismatch):
		s.failPayment(ctx, cb.Reference, err.Error())
		return "", ErrAmountMismatch
	default:
		return "", err
	}

	// the refund row is written with the charge resolution, so only the
	// callback that resolves the charge queues one
	_, changed, err := s.payments.ResolveIdempotent(ctx, cb.Reference, domain.GatewaySucceeded, cb.RawBody, "", s.now().UTC(), hooks...)
	if err != nil {
		return "", err
	}
	if changed && orphan != nil && s.refunds != nil {
		s.refunds.Dispatch(ctx, orphan)
	}
	return ack, nil
}

// InitiateRefund refunds a paid booking without changing its status.
func (s *Service) InitiateRefund(ctx context.Context, bookingID int64, actor booking.Actor, reason string) (*domain.Booking, error) {
	return s.bookings.RequestRefund(ctx, bookingID, actor, reason)
}

// OnRefundCallback finalises a refund. A failure leaves the booking in
// refund_pending so the reconciliation run can send a new refund.
func (s *Service) OnRefundCallback(ctx context.Context, cb *gateway.Callback) (string, error) {
	ack := "OK" + cb.Reference
	p, err := s.payments.GetByReference(ctx, cb.Reference)
	if errors.Is(err, repository.ErrNotFound) {
		return "", ErrUnknownReference
	}
	if err != nil {
		return "", err
	}
	if p.Kind != domain.PaymentKindRefund {
		return "", fmt.Errorf("%w: %s is not a refund", ErrUnknownReference, cb.Reference)
	}
	if p.Status == domain.GatewaySucceeded {
		return ack, nil
	}

	switch cb.Status {
	case domain.GatewayFailed:
		s.failPayment(ctx, cb.Reference, failureReason(cb))
		s.loggerf("level=error msg=refund failed reference=%s booking_id=%d reason=%q", cb.Reference, p.BookingID, failureReason(cb))
		return ack, nil
	case domain.GatewaySucceeded:
	case domain.GatewayCreated, domain.GatewayPending, domain.GatewayUnknown:
		return ack, nil
	}

	if cb.Amount != p.Amount {
		s.loggerf("level=error msg=refund amount mismatch reference=%s callback=%d expected=%d", cb.Reference, cb.Amount, p.Amount)
		return "", ErrAmountMismatch
	}
	b, err := s.bookings.GetByID(ctx, p.BookingID)
	if err != nil {
		return "", err
	}
	// a refund of a charge the booking never took leaves the booking alone
	if p.ParentReference == b.GatewayReference {
		if _, err := s.bookings.MarkRefunded(ctx, p.BookingID, p.GatewayReference); err != nil {
			return "", err
		}
	}
	if _, _, err := s.payments.ResolveIdempotent(ctx, cb.Reference, domain.GatewaySucceeded, cb.RawBody, "", s.now().UTC()); err != nil {
		return "", err
	}
	return ack, nil
}

// ReconcilePending asks the gateway about charges and refunds that never got
// a final callback and replays the answers through the callback paths.
func (s *Service) ReconcilePending(ctx context.Context, olderThan time.Time) (ReconcileReport, error) {
	var report ReconcileReport
	rows, err := s.payments.ListUnresolved(ctx, olderThan, reconcileBatch)
	if err != nil {
		return report, err
	}

	for i := range rows {
		p := &rows[i]
		report.Checked++
		if p.Kind == domain.PaymentKindRefund && p.Status == domain.GatewayCreated && s.refunds != nil {
			s.refunds.Dispatch(ctx, p)
			report.Redispatched++
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		st, err := s.gateway.Status(callCtx, p.GatewayReference)
		cancel()
		if err != nil {
			s.loggerf("level=warn msg=status poll failed reference=%s err=%v", p.GatewayReference, err)
			report.Failed++
			continue
		}
		if !st.Status.IsResolved() {
			if p.Status == domain.GatewayUnknown && st.Status == domain.GatewayPending {
				if err := s.payments.MarkPending(ctx, p.ID, p.PaymentURL); err != nil {
					s.loggerf("level=error msg=failed to mark payment pending reference=%s err=%v", p.GatewayReference, err)
					report.Failed++
				}
			}
			continue
		}
		if st.Status == domain.GatewaySucceeded && st.Amount == 0 {
			// without an amount the exact-match check cannot run; wait for the callback
			s.loggerf("level=warn msg=status reported success without amount, left unresolved reference=%s", p.GatewayReference)
			report.Failed++
			continue
		}

		cb := &gateway.Callback{Reference: p.GatewayReference, Amount: st.Amount, Status: st.Status, Reason: st.Reason}
		if _, err := s.OnCallback(ctx, cb); err != nil {
			s.loggerf("level=error msg=reconcile replay failed reference=%s err=%v", p.GatewayReference, err)
			report.Failed++
			continue
		}
		report.Resolved++
	}

	n, err := s.retryFailedRefunds(ctx)
	report.Redispatched += n
	return report, err
}

func (s *Service) ListPayments(ctx context.Context, bookingID int64) ([]domain.Payment, error) {
	return s.payments.ListByBooking(ctx, bookingID)
}

func (s *Service) retryFailedRefunds(ctx context.Context) (int, error) {
	if s.refunds == nil {
		return 0, nil
	}
	rows, err := s.payments.ListRetryableRefunds(ctx, reconcileBatch)
	if err != nil {
		return 0, err
	}
	seen := map[string]bool{}
	sent := 0
	for _, failed := range rows {
		if seen[failed.ParentReference] {
			continue
		}
		seen[failed.ParentReference] = true

		p := newRefund(failed.BookingID, failed.ParentReference, failed.Amount, failed.Reason)
		if err := s.payments.Create(ctx, p); err != nil {
			s.loggerf("level=error msg=failed to queue refund retry booking_id=%d err=%v", failed.BookingID, err)
			continue
		}
		s.refunds.Dispatch(ctx, p)
		sent++
	}
	return sent, nil
}

// failPayment records a failed outcome and reports whether the row changed.
func (s *Service) failPayment(ctx context.Context, ref, reason string) bool {
	_, changed, err := s.payments.ResolveIdempotent(context.WithoutCancel(ctx), ref, domain.GatewayFailed, "", reason, s.now().UTC())
	if err != nil {
		s.loggerf("level=error msg=failed to record payment failure reference=%s err=%v", ref, err)
		return false
	}
	return changed
}

func (s *Service) emit(ctx context.Context, t domain.NotificationType, b *domain.Booking, reason string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Emit(ctx, notification.EventFor(t, b, reason, s.now().UTC()))
}

func failureReason(cb *gateway.Callback) string {
	if cb.Reason != "" {
		return cb.Reason
	}
	return "declined by gateway"
}

func handleFor(p *domain.Payment, b *domain.Booking) *ChargeHandle {
	return &ChargeHandle{
		Reference:        p.GatewayReference,
		BookingReference: b.Reference,
		Amount:           p.Amount,
		PaymentURL:       p.PaymentURL,
		Status:           p.Status,
	}
}
