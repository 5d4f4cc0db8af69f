package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Gateway   GatewayConfig
	Scheduler SchedulerConfig
	Billing   BillingConfig
	Auth      AuthConfig
	Logger    LoggerConfig
}

type ServerConfig struct {
	Port               int
	Host               string
	MetricsPort        int
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// DatabaseConfig holds PostgreSQL pool configuration. DB_POOL_SIZE maps
// to the pool's minimum connections and DB_MAX_OVERFLOW is added on top
// for the maximum, mirroring the project's pool-size/overflow split.
type DatabaseConfig struct {
	URL         string
	PoolSize    int32
	MaxOverflow int32
}

func (d DatabaseConfig) MaxConns() int32 {
	return d.PoolSize + d.MaxOverflow
}

// GatewayConfig selects and configures the payment gateway adapter. The
// retry fields tune the HTTP gateway's exponential backoff for this
// service's own retry cadence rather than inheriting the resilience
// package's generic defaults outright: a subscription charge attempt is
// already sitting behind the day-scale RETRY_DELAY_DAYS schedule, so a
// single post() retries fast and gives up quickly, leaving the slower
// cadence to the billing engine's scheduled retry scan.
type GatewayConfig struct {
	Provider          string // "mock" or "yoomoney"
	MockSuccessRate   float64
	YooMoneySecretRef string
	RetryBaseDelay    time.Duration
	RetryMaxDelay     time.Duration
	RetryMultiplier   float64
	RetryJitter       float64
}

type SchedulerConfig struct {
	MaxWorkers    int
	BillingHour   int
	BillingMinute int
}

// BillingConfig holds the recurring-payment retry schedule.
type BillingConfig struct {
	MaxPaymentRetries int
	RetryDelayDays    []int
}

type AuthConfig struct {
	SecretKey             string
	AccessTokenExpireMins int
}

type LoggerConfig struct {
	Level       string
	Development bool
}

// LoadFromEnv loads configuration from environment variables, applying
// the defaults from the project's external-interfaces contract.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnvAsInt("SERVER_PORT", 8080),
			Host:               getEnv("SERVER_HOST", "0.0.0.0"),
			MetricsPort:        getEnvAsInt("METRICS_PORT", 9090),
			RateLimitPerSecond: getEnvAsFloat("CRON_RATE_LIMIT_PER_SECOND", 2),
			RateLimitBurst:     getEnvAsInt("CRON_RATE_LIMIT_BURST", 5),
		},
		Database: DatabaseConfig{
			URL:         getEnv("DATABASE_URL", ""),
			PoolSize:    int32(getEnvAsInt("DB_POOL_SIZE", 20)),
			MaxOverflow: int32(getEnvAsInt("DB_MAX_OVERFLOW", 10)),
		},
		Gateway: GatewayConfig{
			Provider:          getEnv("PAYMENT_GATEWAY", "mock"),
			MockSuccessRate:   getEnvAsFloat("PAYMENT_SUCCESS_RATE", 0.95),
			YooMoneySecretRef: getEnv("YOOMONEY_SECRET_REF", "subscriptions/gateways/yoomoney"),
			RetryBaseDelay:    time.Duration(getEnvAsInt("GATEWAY_RETRY_BASE_DELAY_MS", 50)) * time.Millisecond,
			RetryMaxDelay:     time.Duration(getEnvAsInt("GATEWAY_RETRY_MAX_DELAY_MS", 2000)) * time.Millisecond,
			RetryMultiplier:   getEnvAsFloat("GATEWAY_RETRY_MULTIPLIER", 2.0),
			RetryJitter:       getEnvAsFloat("GATEWAY_RETRY_JITTER", 0.1),
		},
		Scheduler: SchedulerConfig{
			MaxWorkers:    getEnvAsInt("SCHEDULER_MAX_WORKERS", 10),
			BillingHour:   getEnvAsInt("BILLING_HOUR", 2),
			BillingMinute: getEnvAsInt("BILLING_MINUTE", 0),
		},
		Billing: BillingConfig{
			MaxPaymentRetries: getEnvAsInt("MAX_PAYMENT_RETRIES", 3),
			RetryDelayDays:    getEnvAsIntSlice("RETRY_DELAY_DAYS", []int{1, 3, 7}),
		},
		Auth: AuthConfig{
			SecretKey:             getEnv("SECRET_KEY", ""),
			AccessTokenExpireMins: getEnvAsInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
	}

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Auth.SecretKey == "" {
		return nil, fmt.Errorf("SECRET_KEY is required")
	}
	if cfg.Gateway.Provider != "mock" && cfg.Gateway.Provider != "yoomoney" {
		return nil, fmt.Errorf("PAYMENT_GATEWAY must be one of mock, yoomoney, got %q", cfg.Gateway.Provider)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsIntSlice parses a comma-separated list, e.g. "1,3,7".
func getEnvAsIntSlice(key string, defaultValue []int) []int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	result := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return defaultValue
		}
		result = append(result, v)
	}
	return result
}
