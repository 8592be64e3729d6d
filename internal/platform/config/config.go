// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	dErrors "facecards/pkg/domain-errors"
)

// MaxPreviewTTL bounds how long a refresh preview may stay applicable.
const MaxPreviewTTL = 30 * time.Minute

// Secret wraps a sensitive value so it never reaches logs or JSON.
type Secret string

func (s Secret) String() string               { return "[REDACTED]" }
func (s Secret) GoString() string             { return "[REDACTED]" }
func (s Secret) MarshalText() ([]byte, error) { return []byte("[REDACTED]"), nil }
func (s Secret) Value() string                { return string(s) }
func (s Secret) Empty() bool                  { return strings.TrimSpace(string(s)) == "" }

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `envconfig:"ADDR" default:":8080"`
	Environment     string        `envconfig:"ENVIRONMENT" default:"development"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"3m"`
}

// Production reports whether cookies must be marked Secure.
func (s Server) Production() bool {
	return strings.EqualFold(s.Environment, "production")
}

// Log selects the slog handler.
type Log struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"`
}

// Database configures PostgreSQL. An empty URL selects the in-memory stores.
type Database struct {
	URL          Secret `envconfig:"DATABASE_URL"`
	MaxOpenConns int    `envconfig:"DATABASE_MAX_OPEN_CONNS" default:"10"`
}

// RedisConfig configures the optional Redis client.
type RedisConfig struct {
	URL          string        `envconfig:"REDIS_URL"`
	PoolSize     int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"3s"`
}

// Kafka configures the audit outbox relay. No brokers disables the relay.
type Kafka struct {
	Brokers       []string      `envconfig:"KAFKA_BROKERS"`
	Topic         string        `envconfig:"KAFKA_TOPIC" default:"roster.audit"`
	RelayInterval time.Duration `envconfig:"KAFKA_RELAY_INTERVAL" default:"2s"`
	BatchSize     int           `envconfig:"KAFKA_RELAY_BATCH_SIZE" default:"100"`
}

// Admin holds the single admin identity and the secrets that sign its tokens.
type Admin struct {
	Secret       Secret        `envconfig:"ADMIN_SECRET"`
	Username     string        `envconfig:"ADMIN_USERNAME" default:"admin"`
	Password     Secret        `envconfig:"ADMIN_PASSWORD"`
	PasswordHash Secret        `envconfig:"ADMIN_PASSWORD_HASH"`
	SessionTTL   time.Duration `envconfig:"ADMIN_SESSION_TTL" default:"24h"`
	CronSecret   Secret        `envconfig:"CRON_SECRET"`
	LoginLimit   int           `envconfig:"LOGIN_MAX_ATTEMPTS" default:"5"`
	LoginWindow  time.Duration `envconfig:"LOGIN_WINDOW" default:"15m"`
}

// Fetch configures the upstream knowledge source.
type Fetch struct {
	APIKey        Secret        `envconfig:"OPENAI_API_KEY"`
	BaseURL       string        `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	Model         string        `envconfig:"OPENAI_MODEL" default:"gpt-4o"`
	Interval      time.Duration `envconfig:"FETCH_INTERVAL" default:"1s"`
	Timeout       time.Duration `envconfig:"FETCH_TIMEOUT" default:"60s"`
	MaxAttempts   uint64        `envconfig:"FETCH_MAX_ATTEMPTS" default:"3"`
	PositionsFile string        `envconfig:"POSITIONS_FILE"`
}

// Preview configures refresh preview lifetime and garbage collection.
type Preview struct {
	TTL           time.Duration `envconfig:"PREVIEW_TTL" default:"10m"`
	SweepInterval time.Duration `envconfig:"PREVIEW_SWEEP_INTERVAL" default:"1m"`
}

// Config is the full process configuration.
type Config struct {
	Server   Server
	Log      Log
	Database Database
	Redis    RedisConfig
	Kafka    Kafka
	Admin    Admin
	Fetch    Fetch
	Preview  Preview
}

// Load reads the environment and validates the result.
// Nested fields fall back to their unprefixed tag name, so DATABASE_URL is read as-is.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "invalid environment")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints. Failures are configuration errors
// and stop the process at startup.
func (c *Config) Validate() error {
	if c.Admin.Secret.Empty() {
		return dErrors.New(dErrors.CodeConfiguration, "ADMIN_SECRET is required")
	}
	if len(c.Admin.Secret.Value()) < 16 {
		return dErrors.New(dErrors.CodeConfiguration, "ADMIN_SECRET must be at least 16 characters")
	}
	if c.Preview.TTL <= 0 {
		return dErrors.New(dErrors.CodeConfiguration, "PREVIEW_TTL must be positive")
	}
	if c.Preview.TTL > MaxPreviewTTL {
		c.Preview.TTL = MaxPreviewTTL
	}
	if c.Fetch.MaxAttempts == 0 {
		return dErrors.New(dErrors.CodeConfiguration, "FETCH_MAX_ATTEMPTS must be at least 1")
	}
	if c.Admin.LoginLimit < 1 || c.Admin.LoginWindow <= 0 {
		return dErrors.New(dErrors.CodeConfiguration, "login rate limit must be positive")
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return dErrors.New(dErrors.CodeConfiguration, fmt.Sprintf("unknown LOG_FORMAT %q", c.Log.Format))
	}
	return nil
}
