// Package config loads the gateway configuration from the environment and an
// optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultAppName          = "CustodyAuth"
	defaultAppEnv           = "development"
	defaultPort             = "8080"
	defaultLogLevel         = "info"
	defaultLogFormat        = "json"
	defaultShutdownDelay    = 10 * time.Second
	defaultIdempotencyTTL   = 2 * time.Minute
	defaultCustodyBaseURL   = "https://api.circle.com"
	defaultCallTimeout      = 10 * time.Second
	defaultAccountType      = "SCA"
	defaultBlockchains      = "ETH-SEPOLIA"
	defaultLeaseTTL         = 30 * time.Second
	defaultSessionPerMinute = 10
	defaultAuditTimeout     = 5 * time.Second
	defaultMongoDatabase    = "custody_auth"

	AuditBackendPostgres = "postgres"
	AuditBackendMongo    = "mongo"
	AuditBackendMemory   = "memory"
)

// Config captures application runtime configuration.
type Config struct {
	AppName        string        `mapstructure:"APP_NAME"`
	AppEnv         string        `mapstructure:"APP_ENV"`
	Port           string        `mapstructure:"PORT"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`
	LogFormat      string        `mapstructure:"LOG_FORMAT"`
	ShutdownPeriod time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
	// IdempotencyTTL bounds how long an in-flight Idempotency-Key blocks duplicates.
	IdempotencyTTL time.Duration `mapstructure:"IDEMPOTENCY_TTL"`

	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	RedisURL      string `mapstructure:"REDIS_URL"`
	MongoURL      string `mapstructure:"MONGO_URL"`
	MongoDatabase string `mapstructure:"MONGO_DATABASE"`
	// AuditBackend is postgres, mongo or memory. Empty derives it from the
	// configured stores.
	AuditBackend string `mapstructure:"AUDIT_BACKEND"`

	CustodyBaseURL     string        `mapstructure:"CUSTODY_BASE_URL"`
	CustodyAPIKey      string        `mapstructure:"CUSTODY_API_KEY"`
	CustodyCallTimeout time.Duration `mapstructure:"CUSTODY_CALL_TIMEOUT"`
	CustodyAccountType string        `mapstructure:"CUSTODY_ACCOUNT_TYPE"`
	// CustodyBlockchains is a comma-separated chain list.
	CustodyBlockchains string `mapstructure:"CUSTODY_BLOCKCHAINS"`

	// ClientAppID is handed to clients initializing the custody SDK.
	ClientAppID            string        `mapstructure:"CLIENT_APP_ID"`
	SessionLeaseTTL        time.Duration `mapstructure:"SESSION_LEASE_TTL"`
	SessionRateLimitPerMin int           `mapstructure:"SESSION_RATE_LIMIT_PER_MIN"`
	AuditWriteTimeout      time.Duration `mapstructure:"AUDIT_WRITE_TIMEOUT"`
}

// Load reads .env (if present), then the environment. Env vars override .env.
func Load() (Config, error) {
	v := newViper()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.AuditBackend = strings.ToLower(strings.TrimSpace(cfg.AuditBackend))

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDatabaseURL reads only DATABASE_URL, for tools that need no custody
// credentials.
func LoadDatabaseURL() (string, error) {
	v := newViper()
	dsn := strings.TrimSpace(v.GetString("DATABASE_URL"))
	if dsn == "" {
		return "", errors.New("config: DATABASE_URL must be set")
	}
	return dsn, nil
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // missing .env is fine

	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", defaultAppName)
	v.SetDefault("APP_ENV", defaultAppEnv)
	v.SetDefault("PORT", defaultPort)
	v.SetDefault("LOG_LEVEL", defaultLogLevel)
	v.SetDefault("LOG_FORMAT", defaultLogFormat)
	v.SetDefault("SHUTDOWN_TIMEOUT", defaultShutdownDelay)
	v.SetDefault("IDEMPOTENCY_TTL", defaultIdempotencyTTL)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("MONGO_URL", "")
	v.SetDefault("MONGO_DATABASE", defaultMongoDatabase)
	v.SetDefault("AUDIT_BACKEND", "")
	v.SetDefault("CUSTODY_BASE_URL", defaultCustodyBaseURL)
	v.SetDefault("CUSTODY_API_KEY", "")
	v.SetDefault("CUSTODY_CALL_TIMEOUT", defaultCallTimeout)
	v.SetDefault("CUSTODY_ACCOUNT_TYPE", defaultAccountType)
	v.SetDefault("CUSTODY_BLOCKCHAINS", defaultBlockchains)
	v.SetDefault("CLIENT_APP_ID", "")
	v.SetDefault("SESSION_LEASE_TTL", defaultLeaseTTL)
	v.SetDefault("SESSION_RATE_LIMIT_PER_MIN", defaultSessionPerMinute)
	v.SetDefault("AUDIT_WRITE_TIMEOUT", defaultAuditTimeout)
}

func (c Config) validate() error {
	if c.CustodyAPIKey == "" {
		return errors.New("config: CUSTODY_API_KEY must be set")
	}
	if c.CustodyCallTimeout <= 0 {
		return errors.New("config: CUSTODY_CALL_TIMEOUT must be positive")
	}
	if len(c.Blockchains()) == 0 {
		return errors.New("config: CUSTODY_BLOCKCHAINS must name at least one chain")
	}
	if !c.IsDevelopment() {
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL must be set")
		}
		if c.RedisURL == "" {
			return errors.New("config: REDIS_URL must be set")
		}
	}
	switch c.AuditBackend {
	case "", AuditBackendPostgres, AuditBackendMemory:
	case AuditBackendMongo:
		if c.MongoURL == "" {
			return errors.New("config: MONGO_URL must be set when AUDIT_BACKEND=mongo")
		}
	default:
		return fmt.Errorf("config: unknown AUDIT_BACKEND %q", c.AuditBackend)
	}
	if c.AuditBackend == AuditBackendPostgres && c.DatabaseURL == "" {
		return errors.New("config: DATABASE_URL must be set when AUDIT_BACKEND=postgres")
	}
	return nil
}

// IsDevelopment reports whether the service runs with in-memory fallbacks allowed.
func (c Config) IsDevelopment() bool {
	switch strings.ToLower(c.AppEnv) {
	case "", "dev", "development", "local", "test":
		return true
	}
	return false
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// Blockchains returns the configured chain list.
func (c Config) Blockchains() []string {
	parts := strings.Split(c.CustodyBlockchains, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ResolvedAuditBackend returns the audit store to use: the explicit choice,
// else Mongo when configured, else Postgres when configured, else memory.
func (c Config) ResolvedAuditBackend() string {
	switch {
	case c.AuditBackend != "":
		return c.AuditBackend
	case c.MongoURL != "":
		return AuditBackendMongo
	case c.DatabaseURL != "":
		return AuditBackendPostgres
	default:
		return AuditBackendMemory
	}
}
