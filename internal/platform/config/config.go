package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

const devAdminSigningKey = "dev-admin-key-change-in-production"

// Server captures process level configuration.
type Server struct {
	Addr        string `env:"ROLLCALL_ADDR"        envDefault:":8080"`
	Environment string `env:"ROLLCALL_ENV"         envDefault:"development"`
	LogLevel    string `env:"ROLLCALL_LOG_LEVEL"   envDefault:"info"`

	Storage     string `env:"ROLLCALL_STORAGE"      envDefault:"memory"`
	DatabaseURL string `env:"ROLLCALL_DATABASE_URL"`
	SQLitePath  string `env:"ROLLCALL_SQLITE_PATH"  envDefault:"rollcall.db"`

	// TrustClientCredentials enables the direct enrollment and attendance
	// endpoints that accept a credential id without a WebAuthn ceremony.
	TrustClientCredentials bool `env:"ROLLCALL_TRUST_CLIENT_CREDENTIALS" envDefault:"false"`

	CeremonyRequestsPerMinute int `env:"ROLLCALL_CEREMONY_RATE_PER_MINUTE" envDefault:"30"`

	WebAuthn WebAuthnConfig
	Redis    RedisConfig
	Admin    AdminConfig
	Kafka    KafkaConfig
	NATS     NATSConfig
	Tracing  TracingConfig
}

// WebAuthnConfig controls relying party settings.
type WebAuthnConfig struct {
	RPDisplayName string        `env:"ROLLCALL_WEBAUTHN_RP_DISPLAY_NAME" envDefault:"Rollcall"`
	RPID          string        `env:"ROLLCALL_WEBAUTHN_RP_ID"           envDefault:"localhost"`
	RPOrigins     []string      `env:"ROLLCALL_WEBAUTHN_RP_ORIGINS"      envSeparator:"," envDefault:"http://localhost:8080"`
	Timeout       time.Duration `env:"ROLLCALL_WEBAUTHN_TIMEOUT"         envDefault:"60s"`
	Grace         time.Duration `env:"ROLLCALL_WEBAUTHN_GRACE"           envDefault:"30s"`
}

// RedisConfig configures the ceremony store. An empty URL keeps ceremonies in
// process memory.
type RedisConfig struct {
	URL          string        `env:"ROLLCALL_REDIS_URL"`
	PoolSize     int           `env:"ROLLCALL_REDIS_POOL_SIZE"      envDefault:"10"`
	MinIdleConns int           `env:"ROLLCALL_REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"ROLLCALL_REDIS_DIAL_TIMEOUT"   envDefault:"5s"`
	ReadTimeout  time.Duration `env:"ROLLCALL_REDIS_READ_TIMEOUT"   envDefault:"3s"`
	WriteTimeout time.Duration `env:"ROLLCALL_REDIS_WRITE_TIMEOUT"  envDefault:"3s"`
}

// AdminConfig configures the list administration bearer tokens.
type AdminConfig struct {
	SigningKey string `env:"ROLLCALL_ADMIN_SIGNING_KEY"`
	Issuer     string `env:"ROLLCALL_ADMIN_ISSUER"   envDefault:"rollcall"`
	Audience   string `env:"ROLLCALL_ADMIN_AUDIENCE" envDefault:"rollcall-admin"`
}

// KafkaConfig configures audit streaming. No brokers means audit events stay
// in process.
type KafkaConfig struct {
	Brokers  []string `env:"ROLLCALL_KAFKA_BROKERS"   envSeparator:","`
	Topic    string   `env:"ROLLCALL_KAFKA_TOPIC"     envDefault:"rollcall.audit"`
	ClientID string   `env:"ROLLCALL_KAFKA_CLIENT_ID" envDefault:"rollcall"`
}

// NATSConfig configures the live roster fan-out. No URL means an in-process
// hub.
type NATSConfig struct {
	URL   string `env:"ROLLCALL_NATS_URL"`
	Token string `env:"ROLLCALL_NATS_TOKEN"`
	Name  string `env:"ROLLCALL_NATS_NAME" envDefault:"rollcall"`
}

// TracingConfig configures OTLP trace export. Tracing stays off without an
// endpoint.
type TracingConfig struct {
	Enabled     bool    `env:"ROLLCALL_OTEL_ENABLED"      envDefault:"true"`
	Endpoint    string  `env:"ROLLCALL_OTEL_ENDPOINT"`
	ServiceName string  `env:"ROLLCALL_OTEL_SERVICE_NAME" envDefault:"rollcall"`
	SampleRatio float64 `env:"ROLLCALL_OTEL_SAMPLE_RATIO" envDefault:"1"`
}

func loadEnvFile() error {
	envFile := os.Getenv("ROLLCALL_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}
	return nil
}

// AdminFromEnv reads only the admin token settings, for tools that sign
// tokens without running the server.
func AdminFromEnv() (AdminConfig, error) {
	if err := loadEnvFile(); err != nil {
		return AdminConfig{}, err
	}
	cfg, err := env.ParseAs[AdminConfig]()
	if err != nil {
		return AdminConfig{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.SigningKey == "" && !strings.EqualFold(os.Getenv("ROLLCALL_ENV"), "production") {
		cfg.SigningKey = devAdminSigningKey
	}
	return cfg, nil
}

// FromEnv loads an optional .env file (ROLLCALL_ENV_FILE, default ".env"),
// then parses and validates the environment.
func FromEnv() (Server, error) {
	if err := loadEnvFile(); err != nil {
		return Server{}, err
	}

	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Admin.SigningKey == "" && !cfg.IsProduction() {
		cfg.Admin.SigningKey = devAdminSigningKey
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

func (c Server) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Validate checks cross-field rules. Every WebAuthn origin must be served from
// the RP id host so assertions cannot be replayed from another site.
func (c Server) Validate() error {
	switch c.Storage {
	case StorageMemory, StorageSQLite:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("ROLLCALL_DATABASE_URL is required for postgres storage")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage)
	}

	if c.WebAuthn.RPID == "" {
		return errors.New("ROLLCALL_WEBAUTHN_RP_ID is required")
	}
	if len(c.WebAuthn.RPOrigins) == 0 {
		return errors.New("ROLLCALL_WEBAUTHN_RP_ORIGINS is required")
	}
	for _, origin := range c.WebAuthn.RPOrigins {
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid WebAuthn origin %q", origin)
		}
		if !strings.EqualFold(u.Hostname(), c.WebAuthn.RPID) {
			return fmt.Errorf("WebAuthn origin %q does not match RP id %q", origin, c.WebAuthn.RPID)
		}
		if u.Scheme != "https" && u.Hostname() != "localhost" {
			return fmt.Errorf("WebAuthn origin %q must use https", origin)
		}
	}
	if c.WebAuthn.Timeout <= 0 {
		return errors.New("ROLLCALL_WEBAUTHN_TIMEOUT must be positive")
	}

	if c.Admin.SigningKey == "" {
		return errors.New("ROLLCALL_ADMIN_SIGNING_KEY is required in production")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return errors.New("ROLLCALL_OTEL_SAMPLE_RATIO must be between 0 and 1")
	}
	if c.CeremonyRequestsPerMinute <= 0 {
		return errors.New("ROLLCALL_CEREMONY_RATE_PER_MINUTE must be positive")
	}
	return nil
}

// CeremonyTTL is how long an unfinished ceremony survives.
func (c WebAuthnConfig) CeremonyTTL() time.Duration {
	return c.Timeout + c.Grace
}
