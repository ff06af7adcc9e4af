package repository

import (
	"context"
	"time"

	"campusnest/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) DB() *gorm.DB { return r.db }

// Create inserts a new booking together with its first audit row.
func (r *BookingRepository) Create(ctx context.Context, b *domain.Booking, audit *domain.BookingTransition) error {
	return mapErr(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(b).Error; err != nil {
			return err
		}
		if audit != nil {
			audit.BookingID = b.ID
			if err := tx.Create(audit).Error; err != nil {
				return err
			}
		}
		return nil
	}))
}

func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	var b domain.Booking
	if err := r.db.WithContext(ctx).First(&b, id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &b, nil
}

func (r *BookingRepository) GetByReference(ctx context.Context, reference string) (*domain.Booking, error) {
	var b domain.Booking
	if err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&b).Error; err != nil {
		return nil, mapErr(err)
	}
	return &b, nil
}

func (r *BookingRepository) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&domain.Booking{}).Where("reference = ?", reference).Count(&cnt).Error
	return cnt > 0, err
}

// FindActiveOverlap returns a pending or approved booking of the student on
// the property whose lease intersects [from, to), or nil.
func (r *BookingRepository) FindActiveOverlap(ctx context.Context, studentID, propertyID int64, from, to time.Time) (*domain.Booking, error) {
	return activeOverlap(r.db.WithContext(ctx), studentID, propertyID, from, to)
}

// CreateExclusive inserts b unless the student already holds an overlapping
// active booking on the property, which it returns instead. The property row
// is locked first so concurrent requests for it check and insert one at a time.
func (r *BookingRepository) CreateExclusive(ctx context.Context, b *domain.Booking, audit *domain.BookingTransition) (*domain.Booking, error) {
	var existing *domain.Booking
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prop domain.Property
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").Where("id = ?", b.PropertyID).First(&prop).Error; err != nil {
			return err
		}
		found, err := activeOverlap(tx, b.StudentID, b.PropertyID, b.MoveInDate, b.LeaseEndDate)
		if err != nil {
			return err
		}
		if found != nil {
			existing = found
			return nil
		}
		if err := tx.Create(b).Error; err != nil {
			return err
		}
		if audit != nil {
			audit.BookingID = b.ID
			return tx.Create(audit).Error
		}
		return nil
	})
	if err != nil {
		return nil, mapErr(err)
	}
	return existing, nil
}

func activeOverlap(db *gorm.DB, studentID, propertyID int64, from, to time.Time) (*domain.Booking, error) {
	var rows []domain.Booking
	err := db.
		Where("student_id = ? AND property_id = ?", studentID, propertyID).
		Where("status IN ?", []domain.BookingStatus{domain.BookingPending, domain.BookingApproved}).
		Where("move_in_date < ? AND lease_end_date > ?", to, from).
		Order("id").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// SaveVersioned writes the mutable lifecycle fields of b only if the stored
// version still equals expectedVersion. The audit row and hooks share the
// transaction.
func (r *BookingRepository) SaveVersioned(ctx context.Context, b *domain.Booking, expectedVersion int64, audit *domain.BookingTransition, hooks ...TxHook) error {
	next := expectedVersion + 1
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Booking{}).
			Where("id = ? AND version = ?", b.ID, expectedVersion).
			Updates(map[string]interface{}{
				"status":               b.Status,
				"payment_status":       b.PaymentStatus,
				"gateway_reference":    b.GatewayReference,
				"rejection_reason":     b.RejectionReason,
				"cancellation_reason":  b.CancellationReason,
				"approved_at":          b.ApprovedAt,
				"rejected_at":          b.RejectedAt,
				"cancelled_at":         b.CancelledAt,
				"completed_at":         b.CompletedAt,
				"payment_completed_at": b.PaymentCompletedAt,
				"updated_at":           b.UpdatedAt,
				"version":              next,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrVersionConflict
		}
		if audit != nil {
			audit.BookingID = b.ID
			if err := tx.Create(audit).Error; err != nil {
				return err
			}
		}
		for _, hook := range hooks {
			if err := hook(tx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return mapErr(err)
	}
	b.Version = next
	return nil
}

type BookingFilter struct {
	Status        domain.BookingStatus
	PaymentStatus domain.PaymentStatus
	StudentID     int64
	LandlordID    int64
	PropertyID    int64
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
	Limit         int
	Offset        int
}

func (r *BookingRepository) List(ctx context.Context, f BookingFilter) ([]domain.Booking, int64, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	q := r.db.WithContext(ctx).Model(&domain.Booking{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.PaymentStatus != "" {
		q = q.Where("payment_status = ?", f.PaymentStatus)
	}
	if f.StudentID != 0 {
		q = q.Where("student_id = ?", f.StudentID)
	}
	if f.LandlordID != 0 {
		q = q.Where("landlord_id = ?", f.LandlordID)
	}
	if f.PropertyID != 0 {
		q = q.Where("property_id = ?", f.PropertyID)
	}
	if f.CreatedFrom != nil {
		q = q.Where("created_at >= ?", *f.CreatedFrom)
	}
	if f.CreatedTo != nil {
		q = q.Where("created_at < ?", *f.CreatedTo)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []domain.Booking
	if err := q.Order("created_at DESC, id DESC").Limit(f.Limit).Offset(f.Offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ListEndedLeases returns approved, paid bookings whose lease ended by asOf.
func (r *BookingRepository) ListEndedLeases(ctx context.Context, asOf time.Time, limit int) ([]domain.Booking, error) {
	var rows []domain.Booking
	err := r.db.WithContext(ctx).
		Where("status = ? AND payment_status = ?", domain.BookingApproved, domain.PaymentPaid).
		Where("lease_end_date <= ?", asOf).
		Order("lease_end_date, id").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// ListUnsettled returns completed bookings with no ledger entry.
func (r *BookingRepository) ListUnsettled(ctx context.Context, limit int) ([]domain.Booking, error) {
	var rows []domain.Booking
	err := r.db.WithContext(ctx).
		Where("status = ? AND payment_status = ?", domain.BookingCompleted, domain.PaymentPaid).
		Where("NOT EXISTS (SELECT 1 FROM settlement_entries s WHERE s.booking_reference = bookings.reference)").
		Order("id").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// CountActiveByProperty is shown on listing pages.
func (r *BookingRepository) CountActiveByProperty(ctx context.Context, propertyID int64) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).
		Model(&domain.Booking{}).
		Where("property_id = ? AND status IN ?", propertyID, []domain.BookingStatus{domain.BookingPending, domain.BookingApproved}).
		Count(&cnt).Error
	return cnt, err
}

func (r *BookingRepository) Transitions(ctx context.Context, bookingID int64) ([]domain.BookingTransition, error) {
	var rows []domain.BookingTransition
	err := r.db.WithContext(ctx).Where("booking_id = ?", bookingID).Order("id").Find(&rows).Error
	return rows, err
}

type StatusCount struct {
	Status domain.BookingStatus `gorm:"column:status" json:"status"`
	Count  int64                `gorm:"column:count" json:"count"`
}

func (r *BookingRepository) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	var rows []StatusCount
	err := r.db.WithContext(ctx).
		Model(&domain.Booking{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Order("status").
		Scan(&rows).Error
	return rows, err
}
