package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

/* Config holds every setting the service reads at startup
 * Values come from an optional .env file (TOML) overridden by the environment
 */
type Config struct {
	Port     string `mapstructure:"PORT"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"` // empty keeps every store in memory
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	CommerceShopDomain  string  `mapstructure:"COMMERCE_SHOP_DOMAIN"`
	CommerceAccessToken string  `mapstructure:"COMMERCE_ACCESS_TOKEN"`
	CommerceAPIVersion  string  `mapstructure:"COMMERCE_API_VERSION"`
	CommerceRateLimit   float64 `mapstructure:"COMMERCE_RATE_LIMIT"`

	ProvidersFile         string `mapstructure:"PROVIDERS_FILE"`
	RequireSignature      bool   `mapstructure:"REQUIRE_SIGNATURE"`
	CommerceWebhookSecret string `mapstructure:"COMMERCE_WEBHOOK_SECRET"`
	PaymentsWebhookSecret string `mapstructure:"PAYMENTS_WEBHOOK_SECRET"`

	SyncOnPaymentSuccess bool `mapstructure:"SYNC_ON_PAYMENT_SUCCESS"`
	SyncOnOrderCreation  bool `mapstructure:"SYNC_ON_ORDER_CREATION"`

	QueueMaxRetries      int `mapstructure:"QUEUE_MAX_RETRIES"`
	QueueBatchSize       int `mapstructure:"QUEUE_BATCH_SIZE"`
	QueueBatchDelayMs    int `mapstructure:"QUEUE_BATCH_DELAY_MS"`
	QueueRetentionHours  int `mapstructure:"QUEUE_RETENTION_HOURS"`
	LedgerRetentionHours int `mapstructure:"LEDGER_RETENTION_HOURS"`
}

var defaults = map[string]any{
	"PORT":                    "8080",
	"LOG_LEVEL":               "info",
	"REDIS_ADDR":              "",
	"REDIS_PASSWORD":          "",
	"REDIS_DB":                0,
	"COMMERCE_SHOP_DOMAIN":    "",
	"COMMERCE_ACCESS_TOKEN":   "",
	"COMMERCE_API_VERSION":    "2024-01",
	"COMMERCE_RATE_LIMIT":     2.0,
	"PROVIDERS_FILE":          "",
	"REQUIRE_SIGNATURE":       false,
	"COMMERCE_WEBHOOK_SECRET": "",
	"PAYMENTS_WEBHOOK_SECRET": "",
	"SYNC_ON_PAYMENT_SUCCESS": true,
	"SYNC_ON_ORDER_CREATION":  false,
	"QUEUE_MAX_RETRIES":       3,
	"QUEUE_BATCH_SIZE":        5,
	"QUEUE_BATCH_DELAY_MS":    1000,
	"QUEUE_RETENTION_HOURS":   24,
	"LEDGER_RETENTION_HOURS":  72,
}

// GetConfig reads .env from the working directory when present
func GetConfig() (*Config, error) {
	return Load(".")
}

// Load reads .env from dir when present, then the environment
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("toml")
	v.AddConfigPath(dir)
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("parsing config data: %w", err)
	}
	return &config, nil
}

// UseRedis reports whether durable stores are configured
func (c *Config) UseRedis() bool {
	return c.RedisAddr != ""
}

// QueueBatchDelay returns the pause between batches
func (c *Config) QueueBatchDelay() time.Duration {
	return time.Duration(c.QueueBatchDelayMs) * time.Millisecond
}

// QueueRetention is how long final queue items are kept
func (c *Config) QueueRetention() time.Duration {
	return time.Duration(c.QueueRetentionHours) * time.Hour
}

// LedgerRetention is how long completed delivery records are kept
func (c *Config) LedgerRetention() time.Duration {
	return time.Duration(c.LedgerRetentionHours) * time.Hour
}
