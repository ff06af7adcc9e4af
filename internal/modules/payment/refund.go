package payment

import (
	"context"
	"errors"
	"strings"
	"time"

	"campusnest/internal/domain"
	"campusnest/internal/gateway"
	"campusnest/internal/repository"

	"github.com/google/uuid"
)

// RefundDispatcher is the refund half of the correlator. The booking state
// machine uses it to enqueue a refund inside its own transaction and to send
// it once that transaction has committed.
type RefundDispatcher struct {
	payments paymentStore
	gateway  gateway.Client
	timeout  time.Duration
	loggerf  func(format string, args ...interface{})
	// resolve settles a refund the gateway confirmed synchronously.
	resolve func(ctx context.Context, cb *gateway.Callback) (string, error)
}

func NewRefundDispatcher(payments paymentStore, gw gateway.Client, timeout time.Duration, loggerf func(format string, args ...interface{})) *RefundDispatcher {
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	return &RefundDispatcher{payments: payments, gateway: gw, timeout: timeout, loggerf: loggerf}
}

func (d *RefundDispatcher) Enqueue(b *domain.Booking, reason string) (*domain.Payment, repository.TxHook) {
	p := newRefund(b.ID, b.GatewayReference, b.TotalAmount, reason)
	return p, d.payments.EnqueueHook(p)
}

// Dispatch sends a queued refund. It never fails the caller: a timeout leaves
// the row unknown and any other error leaves it for the reconciliation run.
func (d *RefundDispatcher) Dispatch(ctx context.Context, p *domain.Payment) {
	ctx = context.WithoutCancel(ctx)
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	res, err := d.gateway.Refund(callCtx, gateway.RefundRequest{
		Reference:         p.GatewayReference,
		OriginalReference: p.ParentReference,
		Amount:            p.Amount,
		Reason:            p.Reason,
	})
	if errors.Is(err, gateway.ErrTimeout) {
		d.loggerf("level=warn msg=refund outcome unknown reference=%s booking_id=%d", p.GatewayReference, p.BookingID)
		if merr := d.payments.MarkUnknown(ctx, p.ID, "gateway timeout"); merr != nil {
			d.loggerf("level=error msg=failed to mark refund unknown reference=%s err=%v", p.GatewayReference, merr)
		}
		return
	}
	if err != nil {
		d.loggerf("level=error msg=refund dispatch failed reference=%s booking_id=%d err=%v", p.GatewayReference, p.BookingID, err)
		return
	}

	if res.Status.IsResolved() && d.resolve != nil {
		cb := &gateway.Callback{Reference: p.GatewayReference, Amount: p.Amount, Status: res.Status}
		if _, err := d.resolve(ctx, cb); err != nil {
			d.loggerf("level=error msg=refund resolution failed reference=%s err=%v", p.GatewayReference, err)
		}
		return
	}
	if err := d.payments.MarkPending(ctx, p.ID, ""); err != nil {
		d.loggerf("level=error msg=failed to mark refund pending reference=%s err=%v", p.GatewayReference, err)
	}
	d.loggerf("level=info msg=refund dispatched reference=%s booking_id=%d amount=%d", p.GatewayReference, p.BookingID, p.Amount)
}

func newRefund(bookingID int64, parent string, amount int64, reason string) *domain.Payment {
	return &domain.Payment{
		ID:               uuid.New(),
		BookingID:        bookingID,
		Kind:             domain.PaymentKindRefund,
		GatewayReference: newGatewayReference("RF"),
		ParentReference:  parent,
		Amount:           amount,
		Status:           domain.GatewayCreated,
		Reason:           reason,
	}
}

func newGatewayReference(prefix string) string {
	return prefix + "-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:16])
}
