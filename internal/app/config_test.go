package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLoaderConfig(files ...string) aconfig.Config {
	return aconfig.Config{
		EnvPrefix: "STOREFRONT",
		SkipFlags: true,
		Files:     files,
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("STOREFRONT_DATABASE_URL", "postgres://localhost/storefront")

	cfg, err := loadConfig(testLoaderConfig())
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Addr)
	assert.False(t, cfg.Pricing.CatalogPrices)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "order-events", cfg.Kafka.Topic)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, 24*time.Hour, cfg.Redis.IdempotencyTTL)
	assert.Equal(t, 100, cfg.RateLimit.Max)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 3*time.Second, cfg.Graceful.ReadinessDelay)
	assert.Equal(t, 15*time.Second, cfg.Graceful.ShutdownTimeout)
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("STOREFRONT_DATABASE_URL", "postgres://db/storefront")
	t.Setenv("STOREFRONT_PRICING_CATALOG_PRICES", "true")
	t.Setenv("STOREFRONT_KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("STOREFRONT_REDIS_ADDR", "redis:6379")
	t.Setenv("STOREFRONT_REDIS_IDEMPOTENCY_TTL", "1h")

	cfg, err := loadConfig(testLoaderConfig())
	require.NoError(t, err)

	assert.True(t, cfg.Pricing.CatalogPrices)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, time.Hour, cfg.Redis.IdempotencyTTL)
}

func TestLoadConfig_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: 127.0.0.1:9090
database_url: postgres://yaml/storefront
kafka:
  brokers: [localhost:9092]
  topic: orders
rate_limit:
  max: 5
  window: 10s
`), 0o600))

	cfg, err := loadConfig(testLoaderConfig(path))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.Addr)
	assert.Equal(t, "postgres://yaml/storefront", cfg.DatabaseURL)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "orders", cfg.Kafka.Topic)
	assert.Equal(t, 5, cfg.RateLimit.Max)
	assert.Equal(t, 10*time.Second, cfg.RateLimit.Window)
}

func TestLoadConfig_PlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("PORT", "3000")

	cfg, err := loadConfig(testLoaderConfig())
	require.NoError(t, err)

	assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:3000", cfg.Addr)
}

func TestLoadConfig_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("STOREFRONT_DATABASE_URL", "")
	t.Setenv("DATABASE_URL", "")

	_, err := loadConfig(testLoaderConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database URL is required")
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			DatabaseURL: "postgres://x",
			RateLimit:   RateLimitConfig{Max: 1, Window: time.Second},
			Kafka:       KafkaConfig{Topic: "order-events"},
			Redis:       RedisConfig{IdempotencyTTL: time.Hour},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "ok", mutate: func(*Config) {}},
		{name: "no database", mutate: func(c *Config) { c.DatabaseURL = "" }, wantErr: "database URL"},
		{name: "zero rate", mutate: func(c *Config) { c.RateLimit.Max = 0 }, wantErr: "rate limit"},
		{
			name:    "brokers without topic",
			mutate:  func(c *Config) { c.Kafka = KafkaConfig{Brokers: []string{"k:9092"}} },
			wantErr: "kafka topic",
		},
		{
			name:    "redis without ttl",
			mutate:  func(c *Config) { c.Redis = RedisConfig{Addr: "r:6379"} },
			wantErr: "TTL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
