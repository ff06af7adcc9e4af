package repository

import (
	"context"
	"errors"
	"time"

	"campusnest/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PropertyRepository struct {
	db *gorm.DB
}

func NewPropertyRepository(db *gorm.DB) *PropertyRepository {
	return &PropertyRepository{db: db}
}

// PropertyPricing is the part of a listing a booking copies at request time.
type PropertyPricing struct {
	LandlordID      int64
	MonthlyRent     int64
	SecurityDeposit int64
}

func (r *PropertyRepository) Create(ctx context.Context, p *domain.Property) error {
	return mapErr(r.db.WithContext(ctx).Create(p).Error)
}

func (r *PropertyRepository) GetByID(ctx context.Context, id int64) (*domain.Property, error) {
	var p domain.Property
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (r *PropertyRepository) IsPropertyBookable(ctx context.Context, id int64) (bool, error) {
	p, err := r.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return p.IsBookable(), nil
}

func (r *PropertyRepository) GetPricing(ctx context.Context, id int64) (PropertyPricing, error) {
	p, err := r.GetByID(ctx, id)
	if err != nil {
		return PropertyPricing{}, err
	}
	return PropertyPricing{
		LandlordID:      p.LandlordID,
		MonthlyRent:     p.MonthlyRent,
		SecurityDeposit: p.SecurityDeposit,
	}, nil
}

type SettingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the stored value and whether the key exists.
func (r *SettingsRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var s domain.PlatformSetting
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return s.Value, true, nil
}

func (r *SettingsRepository) Set(ctx context.Context, key, value string, updatedBy int64) error {
	s := domain.PlatformSetting{Key: key, Value: value, UpdatedBy: updatedBy, UpdatedAt: time.Now()}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_by", "updated_at"}),
	}).Create(&s).Error
}
