package repository

import (
	"context"
	"errors"
	"time"

	"campusnest/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	return mapErr(r.db.WithContext(ctx).Create(p).Error)
}

// EnqueueHook inserts p inside a booking write transaction.
func (r *PaymentRepository) EnqueueHook(p *domain.Payment) TxHook {
	return func(tx *gorm.DB) error {
		return tx.Create(p).Error
	}
}

func (r *PaymentRepository) GetByReference(ctx context.Context, gatewayRef string) (*domain.Payment, error) {
	var p domain.Payment
	if err := r.db.WithContext(ctx).Where("gateway_reference = ?", gatewayRef).First(&p).Error; err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

// LatestForBooking returns the newest row of the given kind, or ErrNotFound.
func (r *PaymentRepository) LatestForBooking(ctx context.Context, bookingID int64, kind domain.PaymentKind) (*domain.Payment, error) {
	var p domain.Payment
	err := r.db.WithContext(ctx).
		Where("booking_id = ? AND kind = ?", bookingID, kind).
		Order("created_at DESC").
		First(&p).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (r *PaymentRepository) ListByBooking(ctx context.Context, bookingID int64) ([]domain.Payment, error) {
	var rows []domain.Payment
	err := r.db.WithContext(ctx).Where("booking_id = ?", bookingID).Order("created_at").Find(&rows).Error
	return rows, err
}

// MarkPending records that the gateway accepted the request. Resolved rows
// are left alone.
func (r *PaymentRepository) MarkPending(ctx context.Context, id uuid.UUID, paymentURL string) error {
	return r.db.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("id = ? AND status IN ?", id, []domain.GatewayStatus{domain.GatewayCreated, domain.GatewayUnknown}).
		Updates(map[string]interface{}{
			"status":      domain.GatewayPending,
			"payment_url": paymentURL,
		}).Error
}

func (r *PaymentRepository) MarkUnknown(ctx context.Context, id uuid.UUID, reason string) error {
	return r.db.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("id = ? AND status IN ?", id, []domain.GatewayStatus{domain.GatewayCreated, domain.GatewayPending}).
		Updates(map[string]interface{}{
			"status":         domain.GatewayUnknown,
			"failure_reason": reason,
		}).Error
}

// ResolveIdempotent moves a payment row to succeeded or failed. A succeeded row
// is never overwritten and a repeated failure changes nothing. The returned
// payment reflects the row after the call. Hooks run in the same transaction
// and only when the row actually changed.
func (r *PaymentRepository) ResolveIdempotent(ctx context.Context, gatewayRef string, status domain.GatewayStatus, rawBody, reason string, at time.Time, hooks ...TxHook) (*domain.Payment, bool, error) {
	if !status.IsResolved() {
		return nil, false, errors.New("resolve requires succeeded or failed")
	}

	var (
		p       domain.Payment
		changed bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("gateway_reference = ?", gatewayRef).First(&p).Error; err != nil {
			return err
		}
		if p.Status == domain.GatewaySucceeded || p.Status == status {
			return nil
		}
		res := tx.Model(&domain.Payment{}).Where("id = ?", p.ID).Updates(map[string]interface{}{
			"status":          status,
			"result_raw_body": rawBody,
			"failure_reason":  reason,
			"resolved_at":     at,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errors.New("payment row not updated")
		}
		for _, hook := range hooks {
			if err := hook(tx); err != nil {
				return err
			}
		}
		p.Status = status
		p.ResultRawBody = rawBody
		p.FailureReason = reason
		p.ResolvedAt = &at
		changed = true
		return nil
	})
	if err != nil {
		return nil, false, mapErr(err)
	}
	return &p, changed, nil
}

// ListUnresolved returns rows the gateway has not given a final answer on and
// that were created before olderThan.
func (r *PaymentRepository) ListUnresolved(ctx context.Context, olderThan time.Time, limit int) ([]domain.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []domain.Payment
	err := r.db.WithContext(ctx).
		Where("status IN ?", []domain.GatewayStatus{domain.GatewayCreated, domain.GatewayPending, domain.GatewayUnknown}).
		Where("created_at < ?", olderThan).
		Order("created_at").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// ListRetryableRefunds returns failed refunds whose charge still has no live
// refund: either the booking is awaiting one, or the charge was captured
// after the booking closed.
func (r *PaymentRepository) ListRetryableRefunds(ctx context.Context, limit int) ([]domain.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []domain.Payment
	err := r.db.WithContext(ctx).
		Joins("JOIN bookings b ON b.id = payments.booking_id").
		Where("payments.kind = ? AND payments.status = ?", domain.PaymentKindRefund, domain.GatewayFailed).
		Where("(b.payment_status = ? OR payments.parent_reference <> COALESCE(b.gateway_reference, ''))", domain.PaymentRefundPending).
		Where("NOT EXISTS (SELECT 1 FROM payments p2 WHERE p2.booking_id = payments.booking_id AND p2.parent_reference = payments.parent_reference AND p2.kind = ? AND p2.status <> ?)",
			domain.PaymentKindRefund, domain.GatewayFailed).
		Order("payments.created_at").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
