package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
	IngestServerAddr string `env:"INGEST_SERVER_ADDR" envDefault:":8080"`
	AdminServerAddr  string `env:"ADMIN_SERVER_ADDR" envDefault:":9091"`
	RoutePrefix      string `env:"ROUTE_PREFIX" envDefault:""`
	MaxEventSize     int64  `env:"MAX_EVENT_SIZE_BYTES" envDefault:"65536"` // 64KB

	LogStoreDir        string `env:"LOG_STORE_DIR" envDefault:"./logs"`
	LogStoreMaxRecords int    `env:"LOG_STORE_MAX_RECORDS" envDefault:"1000"`

	RateLimitMaxRequests int           `env:"RATE_LIMIT_MAX_REQUESTS" envDefault:"10"`
	RateLimitWindow      time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"60s"`
	RateLimitBackend     string        `env:"RATE_LIMIT_BACKEND" envDefault:"memory"` // memory | redis
	RateLimitStateFile   string        `env:"RATE_LIMIT_STATE_FILE"`
	RateLimitCollect     bool          `env:"RATE_LIMIT_COLLECT" envDefault:"false"`

	RedisURL         string `env:"REDIS_URL"`
	LeadStream       string `env:"LEAD_STREAM" envDefault:"lead_submissions"`
	LeadStreamMaxLen int64  `env:"LEAD_STREAM_MAX_LEN" envDefault:"100000"`
	RedisDLQStream   string `env:"REDIS_DLQ_STREAM" envDefault:"lead_submissions_dlq"`

	PostgresURL    string        `env:"POSTGRES_URL"`
	APIKeyCacheTTL time.Duration `env:"API_KEY_CACHE_TTL" envDefault:"5m"`
	AdminAPIKeys   []string      `env:"ADMIN_API_KEYS" envSeparator:","`

	PIIRedactionFields string `env:"PII_REDACTION_FIELDS" envDefault:"phone,email"`

	RelayBatchSize    int           `env:"RELAY_BATCH_SIZE" envDefault:"100"`
	RelayMaxRetries   int           `env:"RELAY_MAX_RETRIES" envDefault:"3"`
	RelayRetryBackoff time.Duration `env:"RELAY_RETRY_BACKOFF" envDefault:"1s"`
	RelayClaimMinIdle time.Duration `env:"RELAY_CLAIM_MIN_IDLE" envDefault:"30s"`
	RelayMetricsAddr  string        `env:"RELAY_METRICS_ADDR" envDefault:":9092"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
