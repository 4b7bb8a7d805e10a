package config

import (
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `envconfig:"SERVER"`
	Database  DatabaseConfig  `envconfig:"DATABASE"`
	Redis     RedisConfig     `envconfig:"REDIS"`
	App       AppConfig       `envconfig:"APP"`
	Log       LogConfig       `envconfig:"LOG"`
	Cache     CacheConfig     `envconfig:"CACHE"`
	Webhook   WebhookConfig   `envconfig:"WEBHOOK"`
	Analytics AnalyticsConfig `envconfig:"ANALYTICS"`
	Sweeper   SweeperConfig   `envconfig:"SWEEPER"`
	Auth      AuthConfig      `envconfig:"AUTH"`
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	JWTSecret    string        `envconfig:"JWT_SECRET" required:"true"`
	JWTDuration  time.Duration `envconfig:"JWT_DURATION" default:"24h"`
	JWTIssuer    string        `envconfig:"JWT_ISSUER" default:"url-shortener"`
	AdminAPIKey  string        `envconfig:"ADMIN_API_KEY" required:"true"`
	EnableJWT    bool          `envconfig:"ENABLE_JWT" default:"true"`
	EnableAPIKey bool          `envconfig:"ENABLE_API_KEY" default:"true"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	GracefulTimeout time.Duration `envconfig:"GRACEFUL_TIMEOUT" default:"30s"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"10s"`
	MaxRecvMsgSize  int           `envconfig:"MAX_RECV_MSG_SIZE" default:"4194304"` // 4MB
	MaxSendMsgSize  int           `envconfig:"MAX_SEND_MSG_SIZE" default:"4194304"` // 4MB
	MetricsPort     string        `envconfig:"METRICS_PORT" default:"9090"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL             string        `envconfig:"POSTGRES_URL" required:"true"`
	MaxOpenConns    int           `envconfig:"MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"CONN_MAX_LIFETIME" default:"5m"`
	ConnMaxIdleTime time.Duration `envconfig:"CONN_MAX_IDLE_TIME" default:"5m"`
	MigrationsPath  string        `envconfig:"MIGRATIONS_PATH" default:"file://internal/migrations/sql"`
}

// RedisConfig holds Redis-related configuration
type RedisConfig struct {
	URL          string        `envconfig:"REDIS_URL" required:"true"`
	PoolSize     int           `envconfig:"POOL_SIZE" default:"10"`
	MinIdleConn  int           `envconfig:"MIN_IDLE_CONN" default:"5"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"3s"`
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	BaseURL              string        `envconfig:"BASE_URL" default:"http://localhost:8080"`
	ShortCodeLength      int           `envconfig:"SHORT_CODE_LENGTH" default:"7"`
	ShortCodeMaxAttempts int           `envconfig:"SHORT_CODE_MAX_ATTEMPTS" default:"8"`
	DefaultTTL           time.Duration `envconfig:"DEFAULT_TTL" default:"8760h"` // 1 year
	MaxURLLength         int           `envconfig:"MAX_URL_LENGTH" default:"2048"`
	RateLimit            int           `envconfig:"RATE_LIMIT" default:"100"`
	RateWindow           time.Duration `envconfig:"RATE_WINDOW" default:"1m"`
	CacheTTL             time.Duration `envconfig:"CACHE_TTL" default:"1h"`
	ReservedWords        string        `envconfig:"RESERVED_WORDS" default:"api,admin,www,health,metrics,webhooks,static,assets"`
}

// ReservedWordSet returns the configured reserved words as a set.
func (a AppConfig) ReservedWordSet() map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Split(a.ReservedWords, ",") {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			set[w] = true
		}
	}
	return set
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Format string `envconfig:"FORMAT" default:"json"` // json or console
}

// CacheConfig holds two-tier cache configuration.
type CacheConfig struct {
	L1MaxItems  int64         `envconfig:"L1_MAX_ITEMS" default:"100000"`
	L1TTL       time.Duration `envconfig:"L1_TTL" default:"30s"`
	PositiveTTL time.Duration `envconfig:"POSITIVE_TTL" default:"1h"`
	NegativeTTL time.Duration `envconfig:"NEGATIVE_TTL" default:"30s"`
}

// WebhookConfig holds outbound webhook delivery configuration.
type WebhookConfig struct {
	Timeout          time.Duration `envconfig:"TIMEOUT" default:"10s"`
	MaxRetries       int           `envconfig:"MAX_RETRIES" default:"3"`
	RetryBaseDelay   time.Duration `envconfig:"RETRY_BASE_DELAY" default:"500ms"`
	QueueSize        int           `envconfig:"QUEUE_SIZE" default:"1000"`
	BreakerThreshold uint32        `envconfig:"BREAKER_THRESHOLD" default:"5"`
	AMQPUrl          string        `envconfig:"AMQP_URL" default:""`
}

// AnalyticsConfig holds the click-event queue configuration.
type AnalyticsConfig struct {
	Brokers   string `envconfig:"QUEUE_BROKERS" default:""`
	Topic     string `envconfig:"QUEUE_TOPIC" default:"url-clicks"`
	QueueSize int    `envconfig:"QUEUE_SIZE" default:"2000"`
	Workers   int    `envconfig:"WORKERS" default:"4"`
}

// BrokerList splits the configured broker string into a slice.
func (a AnalyticsConfig) BrokerList() []string {
	var out []string
	for _, b := range strings.Split(a.Brokers, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			out = append(out, b)
		}
	}
	return out
}

// SweeperConfig holds the soft-delete hard-delete background sweep settings.
type SweeperConfig struct {
	Interval    time.Duration `envconfig:"INTERVAL" default:"1h"`
	GracePeriod time.Duration `envconfig:"GRACE_PERIOD" default:"720h"` // 30 days
	BatchSize   int           `envconfig:"BATCH_SIZE" default:"500"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.App.ShortCodeLength < 4 || c.App.ShortCodeLength > 10 {
		c.App.ShortCodeLength = 7
	}

	if c.App.MaxURLLength < 100 || c.App.MaxURLLength > 4096 {
		c.App.MaxURLLength = 2048
	}

	if c.App.RateLimit < 1 {
		c.App.RateLimit = 100
	}

	if c.App.ShortCodeMaxAttempts < 1 {
		c.App.ShortCodeMaxAttempts = 8
	}

	if c.Cache.L1MaxItems < 1 {
		c.Cache.L1MaxItems = 100000
	}

	if c.Webhook.MaxRetries < 0 {
		c.Webhook.MaxRetries = 3
	}

	if c.Analytics.Workers < 1 {
		c.Analytics.Workers = 4
	}

	return nil
}
