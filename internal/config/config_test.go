package config

import (
	"testing"
	"time"

	"campusnest/internal/modules/money"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("JWT_TTL", "")
	t.Setenv("DEFAULT_COMMISSION_RATE", "")
	t.Setenv("REFERENCE_PREFIX", "")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.AppEnv)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, money.RateFromPercent(10), cfg.DefaultCommissionRate)
	assert.Equal(t, "CN", cfg.ReferencePrefix)
}

func TestFromEnv_ParsesValues(t *testing.T) {
	t.Setenv("APP_ENV", "Staging")
	t.Setenv("DEFAULT_COMMISSION_RATE", "7.5")
	t.Setenv("GATEWAY_TIMEOUT", "3s")
	t.Setenv("GATEWAY_BASE_URL", "https://pay.example.com/")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("REFERENCE_PREFIX", "sh")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.AppEnv)
	assert.Equal(t, money.Rate(750), cfg.DefaultCommissionRate)
	assert.Equal(t, 3*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, "https://pay.example.com", cfg.GatewayBaseURL)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, "SH", cfg.ReferencePrefix)
}

func TestFromEnv_RejectsBadValues(t *testing.T) {
	t.Setenv("DEFAULT_COMMISSION_RATE", "120")
	_, err := FromEnv()
	assert.Error(t, err)

	t.Setenv("DEFAULT_COMMISSION_RATE", "10")
	t.Setenv("GATEWAY_TIMEOUT", "soon")
	_, err = FromEnv()
	assert.Error(t, err)
}

func TestFromEnv_ProdRequiresSecrets(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")
	_, err := FromEnv()
	assert.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "s3cr3t")
	t.Setenv("GATEWAY_PASSWORD1", "p1")
	t.Setenv("GATEWAY_PASSWORD2", "p2")
	t.Setenv("GATEWAY_MERCHANT", "campusnest")
	t.Setenv("GATEWAY_TEST_MODE", "false")
	_, err = FromEnv()
	assert.NoError(t, err)
}
