package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"campusnest/internal/domain"
	"campusnest/internal/modules/money"
	"campusnest/internal/modules/notification"
	jwtpkg "campusnest/internal/pkg/jwt"
	"campusnest/internal/repository"
)

const endedLeaseBatch = 100

type Service struct {
	bookings    BookingRepository
	properties  PropertyCatalog
	references  ReferenceAllocator
	refunds     RefundQueue
	settlements SettlementRecorder
	notifier    Notifier
	now         func() time.Time
	loggerf     func(format string, args ...interface{})
}

func NewService(
	bookings BookingRepository,
	properties PropertyCatalog,
	references ReferenceAllocator,
	refunds RefundQueue,
	settlements SettlementRecorder,
	notifier Notifier,
	loggerf func(format string, args ...interface{}),
) *Service {
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	return &Service{
		bookings:    bookings,
		properties:  properties,
		references:  references,
		refunds:     refunds,
		settlements: settlements,
		notifier:    notifier,
		now:         time.Now,
		loggerf:     loggerf,
	}
}

func (s *Service) Create(ctx context.Context, req CreateBookingRequest) (*domain.Booking, error) {
	if req.StudentID <= 0 || req.PropertyID <= 0 || req.LandlordID <= 0 || req.MoveInDate.IsZero() {
		return nil, ErrValidation
	}
	now := s.now().UTC()
	moveIn := truncateDay(req.MoveInDate)
	if moveIn.Before(truncateDay(now)) {
		return nil, fmt.Errorf("%w: move-in date is in the past", ErrValidation)
	}

	bookable, err := s.properties.IsPropertyBookable(ctx, req.PropertyID)
	if err != nil {
		return nil, err
	}
	if !bookable {
		return nil, &PropertyUnavailableError{PropertyID: req.PropertyID}
	}
	pricing, err := s.properties.GetPricing(ctx, req.PropertyID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &PropertyUnavailableError{PropertyID: req.PropertyID}
		}
		return nil, err
	}
	if pricing.LandlordID != req.LandlordID {
		return nil, fmt.Errorf("%w: landlord %d does not own property %d", ErrValidation, req.LandlordID, req.PropertyID)
	}

	snap, err := money.ComputeFinancials(pricing.MonthlyRent, req.LeaseDurationMonths, pricing.SecurityDeposit, req.CommissionRate)
	if err != nil {
		return nil, err
	}

	leaseEnd := moveIn.AddDate(0, req.LeaseDurationMonths, 0)
	b := &domain.Booking{
		StudentID:           req.StudentID,
		PropertyID:          req.PropertyID,
		LandlordID:          req.LandlordID,
		MoveInDate:          moveIn,
		LeaseEndDate:        leaseEnd,
		LeaseDurationMonths: snap.LeaseDurationMonths,
		MonthlyRent:         snap.MonthlyRent,
		RentSubtotal:        snap.RentSubtotal,
		SecurityDeposit:     snap.SecurityDeposit,
		TotalAmount:         snap.TotalAmount,
		CommissionRateBps:   snap.CommissionRate.Bps(),
		CommissionAmount:    snap.CommissionAmount,
		LandlordPayout:      snap.LandlordPayout,
		Status:              domain.BookingPending,
		PaymentStatus:       domain.PaymentUnpaid,
		Version:             1,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	// a reference can lose a race with another writer; allocate again once
	for attempt := 0; ; attempt++ {
		b.Reference, err = s.references.Next(ctx)
		if err != nil {
			return nil, err
		}
		if err := b.CheckInvariants(); err != nil {
			return nil, fmt.Errorf("booking invariants: %w", err)
		}
		audit := &domain.BookingTransition{
			ToStatus:        b.Status,
			ToPaymentStatus: b.PaymentStatus,
			ActorID:         req.StudentID,
			OccurredAt:      now,
		}
		existing, err := s.bookings.CreateExclusive(ctx, b, audit)
		if existing != nil {
			return nil, &DuplicateActiveBookingError{ExistingReference: existing.Reference}
		}
		if err == nil {
			break
		}
		if errors.Is(err, repository.ErrDuplicate) && attempt == 0 {
			s.loggerf("level=warn msg=booking reference taken on insert reference=%s", b.Reference)
			continue
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &PropertyUnavailableError{PropertyID: req.PropertyID}
		}
		return nil, err
	}

	s.loggerf("level=info msg=booking created reference=%s student_id=%d property_id=%d total=%d commission=%d",
		b.Reference, b.StudentID, b.PropertyID, b.TotalAmount, b.CommissionAmount)
	s.emit(ctx, domain.NotifBookingCreated, b, "")
	return b, nil
}

func (s *Service) Approve(ctx context.Context, id int64, actor Actor) (*domain.Booking, error) {
	return s.apply(ctx, id, actor, domain.TransitionApprove, "")
}

func (s *Service) Reject(ctx context.Context, id int64, actor Actor, reason string) (*domain.Booking, error) {
	return s.apply(ctx, id, actor, domain.TransitionReject, reason)
}

func (s *Service) Cancel(ctx context.Context, id int64, actor Actor, reason string) (*domain.Booking, error) {
	return s.apply(ctx, id, actor, domain.TransitionCancel, reason)
}

func (s *Service) Complete(ctx context.Context, id int64, actor Actor) (*domain.Booking, error) {
	return s.apply(ctx, id, actor, domain.TransitionComplete, "")
}

// RecordPayment marks the booking paid. The amount must equal the total.
func (s *Service) RecordPayment(ctx context.Context, id int64, gatewayReference string, amountPaid int64) (*domain.Booking, error) {
	if strings.TrimSpace(gatewayReference) == "" {
		return nil, fmt.Errorf("%w: gateway reference is required", ErrValidation)
	}
	return s.mutate(ctx, id, SystemActor, func(b *domain.Booking, now time.Time) (*change, error) {
		if !b.Status.IsActive() || b.PaymentStatus != domain.PaymentUnpaid {
			return nil, invalidTransition(b, "record payment for")
		}
		if amountPaid != b.TotalAmount {
			return nil, &PaymentMismatchError{Expected: b.TotalAmount, Got: amountPaid}
		}
		b.PaymentStatus = domain.PaymentPaid
		b.PaymentCompletedAt = &now
		b.GatewayReference = gatewayReference
		return &change{reason: "payment " + gatewayReference, event: domain.NotifPaymentReceived}, nil
	})
}

// RequestRefund moves a paid booking to refund_pending and queues the refund.
// The booking status itself is left alone.
func (s *Service) RequestRefund(ctx context.Context, id int64, actor Actor, reason string) (*domain.Booking, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: reason is required", ErrValidation)
	}
	return s.mutate(ctx, id, actor, func(b *domain.Booking, now time.Time) (*change, error) {
		if !actor.canManage(b) {
			return nil, ErrForbidden
		}
		if b.PaymentStatus != domain.PaymentPaid {
			return nil, invalidTransition(b, "refund")
		}
		if b.Status == domain.BookingCompleted {
			return nil, invalidTransition(b, "refund")
		}
		ch := &change{reason: reason}
		if err := s.queueRefund(b, reason, ch); err != nil {
			return nil, err
		}
		return ch, nil
	})
}

// MarkRefunded finalises a refund the gateway confirmed. Already refunded
// bookings are returned unchanged.
func (s *Service) MarkRefunded(ctx context.Context, id int64, gatewayReference string) (*domain.Booking, error) {
	var unchanged *domain.Booking
	b, err := s.mutate(ctx, id, SystemActor, func(b *domain.Booking, now time.Time) (*change, error) {
		switch b.PaymentStatus {
		case domain.PaymentRefunded:
			unchanged = b
			return nil, errNoChange
		case domain.PaymentRefundPending:
		case domain.PaymentUnpaid, domain.PaymentPaid:
			return nil, invalidTransition(b, "finalise refund for")
		}
		b.PaymentStatus = domain.PaymentRefunded
		return &change{reason: "refund " + gatewayReference, event: domain.NotifRefundCompleted}, nil
	})
	if errors.Is(err, errNoChange) {
		return unchanged, nil
	}
	return b, err
}

func (s *Service) Get(ctx context.Context, id int64, actor Actor) (*domain.Booking, error) {
	b, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.canView(b) {
		return nil, ErrForbidden
	}
	return b, nil
}

// GetByID skips the ownership check; it is for internal callers.
func (s *Service) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	return s.load(ctx, id)
}

func (s *Service) GetByReference(ctx context.Context, reference string, actor Actor) (*domain.Booking, error) {
	b, err := s.bookings.GetByReference(ctx, reference)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !actor.canView(b) {
		return nil, ErrForbidden
	}
	return b, nil
}

func (s *Service) History(ctx context.Context, id int64, actor Actor) ([]domain.BookingTransition, error) {
	if _, err := s.Get(ctx, id, actor); err != nil {
		return nil, err
	}
	return s.bookings.Transitions(ctx, id)
}

func (s *Service) ListForStudent(ctx context.Context, studentID int64, f repository.BookingFilter) ([]domain.Booking, int64, error) {
	f.StudentID = studentID
	f.LandlordID = 0
	return s.bookings.List(ctx, f)
}

func (s *Service) ListForLandlord(ctx context.Context, landlordID int64, f repository.BookingFilter) ([]domain.Booking, int64, error) {
	f.LandlordID = landlordID
	f.StudentID = 0
	return s.bookings.List(ctx, f)
}

func (s *Service) List(ctx context.Context, f repository.BookingFilter) ([]domain.Booking, int64, error) {
	return s.bookings.List(ctx, f)
}

// ActiveBookingCount is the only figure handed back to the listings side.
func (s *Service) ActiveBookingCount(ctx context.Context, propertyID int64) (int64, error) {
	return s.bookings.CountActiveByProperty(ctx, propertyID)
}

// CompleteEndedLeases completes approved, paid bookings whose lease has ended.
// A booking that fails is logged and skipped.
func (s *Service) CompleteEndedLeases(ctx context.Context, asOf time.Time) (int, error) {
	rows, err := s.bookings.ListEndedLeases(ctx, asOf, endedLeaseBatch)
	if err != nil {
		return 0, err
	}
	done := 0
	for i := range rows {
		if _, err := s.Complete(ctx, rows[i].ID, SystemActor); err != nil {
			s.loggerf("level=error msg=lease end completion failed reference=%s err=%v", rows[i].Reference, err)
			continue
		}
		done++
	}
	return done, nil
}

func (s *Service) apply(ctx context.Context, id int64, actor Actor, tr domain.Transition, reason string) (*domain.Booking, error) {
	reason = strings.TrimSpace(reason)
	if tr.RequiresReason() && reason == "" {
		return nil, fmt.Errorf("%w: reason is required", ErrValidation)
	}

	return s.mutate(ctx, id, actor, func(b *domain.Booking, now time.Time) (*change, error) {
		if !actor.allowed(tr, b) {
			return nil, ErrForbidden
		}
		if !b.Status.CanTransition(tr) {
			return nil, invalidTransition(b, string(tr))
		}

		ch := &change{reason: reason}
		b.Status = tr.Target()
		switch tr {
		case domain.TransitionApprove:
			b.ApprovedAt = &now
			ch.event = domain.NotifBookingApproved
		case domain.TransitionReject:
			b.RejectedAt = &now
			b.RejectionReason = reason
			ch.event = domain.NotifBookingRejected
			if b.PaymentStatus == domain.PaymentPaid {
				if err := s.queueRefund(b, reason, ch); err != nil {
					return nil, err
				}
			}
		case domain.TransitionCancel:
			b.CancelledAt = &now
			b.CancellationReason = reason
			ch.event = domain.NotifBookingCancelled
			if b.PaymentStatus == domain.PaymentPaid {
				if err := s.queueRefund(b, reason, ch); err != nil {
					return nil, err
				}
			}
		case domain.TransitionComplete:
			if b.PaymentStatus != domain.PaymentPaid {
				return nil, invalidTransition(b, string(tr))
			}
			b.CompletedAt = &now
			ch.event = domain.NotifBookingCompleted
			if s.settlements == nil {
				return nil, errors.New("settlement recorder is not configured")
			}
			ch.hooks = append(ch.hooks, s.settlements.SettlementHook(b, now))
		}
		return ch, nil
	})
}

func (s *Service) queueRefund(b *domain.Booking, reason string, ch *change) error {
	if s.refunds == nil {
		return ErrRefundRequired
	}
	p, hook := s.refunds.Enqueue(b, reason)
	b.PaymentStatus = domain.PaymentRefundPending
	ch.hooks = append(ch.hooks, hook)
	ch.after = func(ctx context.Context) { s.refunds.Dispatch(ctx, p) }
	return nil
}

var errNoChange = errors.New("no change")

// change is what a mutation wants written alongside the booking row.
type change struct {
	reason string
	event  domain.NotificationType
	hooks  []repository.TxHook
	after  func(ctx context.Context)
}

type mutation func(b *domain.Booking, now time.Time) (*change, error)

// mutate reads the booking, applies fn and writes it back guarded by the
// version read. On a version conflict it re-reads and re-validates once.
func (s *Service) mutate(ctx context.Context, id int64, actor Actor, fn mutation) (*domain.Booking, error) {
	for attempt := 0; ; attempt++ {
		b, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		before := *b
		now := s.now().UTC()

		ch, err := fn(b, now)
		if err != nil {
			return nil, err
		}
		b.UpdatedAt = now
		if err := b.CheckInvariants(); err != nil {
			return nil, fmt.Errorf("booking invariants: %w", err)
		}

		audit := &domain.BookingTransition{
			FromStatus:        before.Status,
			ToStatus:          b.Status,
			FromPaymentStatus: before.PaymentStatus,
			ToPaymentStatus:   b.PaymentStatus,
			ActorID:           actor.ID,
			Reason:            ch.reason,
			OccurredAt:        now,
		}
		err = s.bookings.SaveVersioned(ctx, b, before.Version, audit, ch.hooks...)
		if errors.Is(err, repository.ErrVersionConflict) {
			if attempt == 0 {
				s.loggerf("level=info msg=booking version conflict, retrying booking_id=%d version=%d", id, before.Version)
				continue
			}
			return nil, &ConcurrentModificationError{BookingID: id}
		}
		if err != nil {
			return nil, err
		}

		s.loggerf("level=info msg=booking updated reference=%s status=%s->%s payment_status=%s->%s actor_id=%d",
			b.Reference, before.Status, b.Status, before.PaymentStatus, b.PaymentStatus, actor.ID)
		if ch.after != nil {
			ch.after(ctx)
		}
		if ch.event != "" {
			s.emit(ctx, ch.event, b, ch.reason)
		}
		return b, nil
	}
}

func (s *Service) load(ctx context.Context, id int64) (*domain.Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	return b, err
}

func (s *Service) emit(ctx context.Context, t domain.NotificationType, b *domain.Booking, reason string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Emit(ctx, notification.EventFor(t, b, reason, s.now().UTC()))
}

func invalidTransition(b *domain.Booking, attempted string) *InvalidTransitionError {
	return &InvalidTransitionError{
		Reference:     b.Reference,
		Current:       b.Status,
		PaymentStatus: b.PaymentStatus,
		Attempted:     attempted,
	}
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (a Actor) isStaff() bool {
	return a.Role == jwtpkg.RoleAdmin || a.Role == RoleSystem
}

func (a Actor) canManage(b *domain.Booking) bool {
	return a.isStaff() || (a.Role == jwtpkg.RoleLandlord && a.ID == b.LandlordID)
}

func (a Actor) canView(b *domain.Booking) bool {
	return a.canManage(b) || (a.Role == jwtpkg.RoleStudent && a.ID == b.StudentID)
}

// allowed reports whether the actor may attempt tr. Landlords decide on their
// own bookings, students may withdraw their own, completion is staff only.
func (a Actor) allowed(tr domain.Transition, b *domain.Booking) bool {
	switch tr {
	case domain.TransitionApprove, domain.TransitionReject:
		return a.canManage(b)
	case domain.TransitionCancel:
		return a.canView(b)
	case domain.TransitionComplete:
		return a.isStaff()
	}
	return false
}
