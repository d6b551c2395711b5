package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (STOREFRONT_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (STOREFRONT_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Pricing     PricingConfig
	Kafka       KafkaConfig
	Redis       RedisConfig
	RateLimit   RateLimitConfig
	Graceful    GracefulConfig
}

// PricingConfig selects where order line prices come from.
type PricingConfig struct {
	CatalogPrices bool `default:"false" usage:"Price order lines from the catalog instead of the request" flag:"catalog-prices"`
}

// KafkaConfig enables publishing of order events. Publishing is off when
// Brokers is empty.
type KafkaConfig struct {
	Brokers []string `usage:"Kafka bootstrap brokers" flag:"kafka-brokers"`
	Topic   string   `default:"order-events" usage:"Topic receiving order events" flag:"kafka-topic"`
}

// RedisConfig enables Idempotency-Key support. It is off when Addr is empty.
type RedisConfig struct {
	Addr           string        `usage:"Redis address, e.g. localhost:6379" flag:"redis-addr"`
	Password       string        `usage:"Redis password" flag:"redis-password"`
	DB             int           `default:"0" usage:"Redis database number" flag:"redis-db"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" yaml:"idempotency_ttl" default:"24h" usage:"How long idempotency keys are remembered" flag:"idempotency-ttl"`
}

// RateLimitConfig controls the per-client token bucket rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "STOREFRONT",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first setting that prevents the server from starting.
func (c *Config) Validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set STOREFRONT_DATABASE_URL or DATABASE_URL")
	case c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0:
		return errors.Errorf("invalid rate limit %d per %s", c.RateLimit.Max, c.RateLimit.Window)
	case len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "":
		return errors.New("kafka topic is required when brokers are set")
	case c.Redis.Addr != "" && c.Redis.IdempotencyTTL <= 0:
		return errors.New("idempotency TTL must be positive")
	}
	return nil
}

// applyPlatformDefaults maps the standard DATABASE_URL and PORT variables set
// by hosting platforms onto the STOREFRONT_ configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
