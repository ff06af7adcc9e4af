package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"campusnest/internal/modules/money"

	"github.com/joho/godotenv"
)

const (
	defaultHTTPAddr        = ":8080"
	defaultDatabaseURL     = "file:campusnest.db?_pragma=foreign_keys(1)"
	defaultJWTSecret       = "change-me-jwt-secret"
	defaultJWTTTL          = "24h"
	defaultCommissionRate  = "10"
	defaultGatewayBaseURL  = "https://gateway.sandbox.local"
	defaultGatewayPassword = "change-me-gateway-password"
	defaultGatewayTimeout  = "10s"
	defaultReferencePrefix = "CN"
	defaultReconcileAfter  = "15m"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	DatabaseURL string

	JWTSecret string
	JWTTTL    time.Duration

	// DefaultCommissionRate is used when platform_settings has no rate yet.
	DefaultCommissionRate money.Rate

	GatewayBaseURL   string
	GatewayMerchant  string
	GatewayPassword1 string
	GatewayPassword2 string
	GatewayTimeout   time.Duration
	GatewayTestMode  bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RabbitMQURL   string
	RabbitMQQueue string

	ReferencePrefix string
	ReconcileAfter  time.Duration
}

// Load reads .env when present and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env not loaded: %v", err)
	}
	return FromEnv()
}

func FromEnv() (*Config, error) {
	cfg := &Config{}
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.HTTPAddr = strings.TrimSpace(getEnv("HTTP_ADDR", defaultHTTPAddr))
	cfg.DatabaseURL = strings.TrimSpace(getEnv("DATABASE_URL", defaultDatabaseURL))
	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", defaultJWTSecret))

	var err error
	cfg.JWTTTL, err = parseDurationEnv("JWT_TTL", defaultJWTTTL)
	if err != nil {
		return nil, err
	}

	rateRaw := strings.TrimSpace(getEnv("DEFAULT_COMMISSION_RATE", defaultCommissionRate))
	cfg.DefaultCommissionRate, err = money.ParseRate(rateRaw)
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_COMMISSION_RATE value %q: %w", rateRaw, err)
	}

	cfg.GatewayBaseURL = strings.TrimRight(strings.TrimSpace(getEnv("GATEWAY_BASE_URL", defaultGatewayBaseURL)), "/")
	cfg.GatewayMerchant = strings.TrimSpace(os.Getenv("GATEWAY_MERCHANT"))
	cfg.GatewayPassword1 = strings.TrimSpace(getEnv("GATEWAY_PASSWORD1", defaultGatewayPassword))
	cfg.GatewayPassword2 = strings.TrimSpace(getEnv("GATEWAY_PASSWORD2", defaultGatewayPassword))
	cfg.GatewayTimeout, err = parseDurationEnv("GATEWAY_TIMEOUT", defaultGatewayTimeout)
	if err != nil {
		return nil, err
	}
	cfg.GatewayTestMode = parseBoolEnv("GATEWAY_TEST_MODE", "false")

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.RedisDB, err = parseIntEnv("REDIS_DB", "0")
	if err != nil {
		return nil, err
	}

	cfg.RabbitMQURL = strings.TrimSpace(os.Getenv("RABBITMQ_URL"))
	cfg.RabbitMQQueue = strings.TrimSpace(getEnv("RABBITMQ_QUEUE", "booking_events"))

	cfg.ReferencePrefix = strings.ToUpper(strings.TrimSpace(getEnv("REFERENCE_PREFIX", defaultReferencePrefix)))
	cfg.ReconcileAfter, err = parseDurationEnv("RECONCILE_AFTER", defaultReconcileAfter)
	if err != nil {
		return nil, err
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be > 0")
	}
	if cfg.GatewayTimeout <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT must be > 0")
	}
	if cfg.ReconcileAfter <= 0 {
		return fmt.Errorf("RECONCILE_AFTER must be > 0")
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}
	if cfg.ReferencePrefix == "" || len(cfg.ReferencePrefix) > 8 {
		return fmt.Errorf("REFERENCE_PREFIX must be 1-8 characters")
	}

	if IsProdLike(cfg.AppEnv) {
		if isEmptyOrDefault(cfg.JWTSecret, defaultJWTSecret) {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
		if isEmptyOrDefault(cfg.GatewayPassword1, defaultGatewayPassword) || isEmptyOrDefault(cfg.GatewayPassword2, defaultGatewayPassword) {
			return fmt.Errorf("in prod/release GATEWAY_PASSWORD1 and GATEWAY_PASSWORD2 must be set and not default")
		}
		if cfg.GatewayMerchant == "" {
			return fmt.Errorf("in prod/release GATEWAY_MERCHANT must be set")
		}
		if cfg.GatewayTestMode {
			return fmt.Errorf("in prod/release GATEWAY_TEST_MODE must be false")
		}
	}
	return nil
}

func IsProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseIntEnv(name, fallback string) (int, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return n, nil
}

func parseBoolEnv(name, fallback string) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(name, fallback)))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
