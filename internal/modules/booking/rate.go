package booking

import (
	"context"
	"fmt"
	"strconv"

	"campusnest/internal/domain"
	"campusnest/internal/modules/money"
)

type settingsStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, updatedBy int64) error
}

// SettingsRateSource reads the live platform commission rate. The value is
// only ever read at the HTTP edge and handed to Create as a parameter.
type SettingsRateSource struct {
	settings settingsStore
	fallback money.Rate
}

func NewSettingsRateSource(settings settingsStore, fallback money.Rate) *SettingsRateSource {
	return &SettingsRateSource{settings: settings, fallback: fallback}
}

func (r *SettingsRateSource) CommissionRate(ctx context.Context) (money.Rate, error) {
	raw, ok, err := r.settings.Get(ctx, domain.SettingCommissionRate)
	if err != nil {
		return 0, err
	}
	if !ok {
		return r.fallback, nil
	}
	bps, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || !money.Rate(bps).Valid() {
		return 0, fmt.Errorf("stored commission rate %q is invalid", raw)
	}
	return money.Rate(bps), nil
}

func (r *SettingsRateSource) SetCommissionRate(ctx context.Context, rate money.Rate, actorID int64) error {
	if !rate.Valid() {
		return &money.InvalidTermsError{Field: "commission_rate", Reason: "must be within [0, 100]"}
	}
	return r.settings.Set(ctx, domain.SettingCommissionRate, strconv.FormatInt(rate.Bps(), 10), actorID)
}
