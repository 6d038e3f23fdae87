package estateAuth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/MrEthical07/estateAuth/password"
	"github.com/MrEthical07/estateAuth/session"
)

// Config is the full runtime configuration. Every field can be set from an ESTATE_*
// environment variable; see the env tags.
type Config struct {
	Session   SessionConfig   `envPrefix:"ESTATE_SESSION_"`
	Cache     CacheConfig     `envPrefix:"ESTATE_CACHE_"`
	Database  DatabaseConfig  `envPrefix:"ESTATE_DB_"`
	Redis     RedisConfig     `envPrefix:"ESTATE_REDIS_"`
	Password  PasswordConfig  `envPrefix:"ESTATE_PASSWORD_"`
	RateLimit RateLimitConfig `envPrefix:"ESTATE_RATELIMIT_"`
	Audit     AuditConfig     `envPrefix:"ESTATE_AUDIT_"`
	Metrics   MetricsConfig   `envPrefix:"ESTATE_METRICS_"`
	Server    ServerConfig    `envPrefix:"ESTATE_HTTP_"`
	Log       LogConfig       `envPrefix:"ESTATE_LOG_"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the session cookie.
type SessionConfig struct {
	CookieName string `env:"COOKIE_NAME" envDefault:"estate_session"`
	// SigningKey switches the cookie to HS256 JWT. Empty keeps unsigned base64url JSON.
	SigningKey   string        `env:"SIGNING_KEY"`
	Issuer       string        `env:"ISSUER"        envDefault:"estateAuth"`
	MaxAge       time.Duration `env:"MAX_AGE"       envDefault:"168h"`
	CookiePath   string        `env:"COOKIE_PATH"   envDefault:"/"`
	CookieDomain string        `env:"COOKIE_DOMAIN"`
	Secure       bool          `env:"SECURE"        envDefault:"true"`
	SameSite     string        `env:"SAME_SITE"     envDefault:"lax"`
}

// Signed reports whether cookies are signed.
func (c SessionConfig) Signed() bool {
	return c.SigningKey != ""
}

/*
====================================
CACHE CONFIG
====================================
*/

// CacheConfig sizes the agent directory cache.
type CacheConfig struct {
	Size    int           `env:"SIZE"    envDefault:"1024"`
	TTL     time.Duration `env:"TTL"     envDefault:"5m"`
	Channel string        `env:"CHANNEL" envDefault:"estate:agentcache:invalidate"`
}

/*
====================================
STORAGE CONFIG
====================================
*/

// DatabaseConfig points at the SQLite database.
type DatabaseConfig struct {
	DSN          string `env:"DSN"            envDefault:"file:estate.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"`
	MaxOpenConns int    `env:"MAX_OPEN_CONNS" envDefault:"4"`
	AutoMigrate  bool   `env:"AUTO_MIGRATE"   envDefault:"true"`
}

// RedisConfig is optional. An empty Addr disables throttling and cross-process cache
// invalidation.
type RedisConfig struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

// Enabled reports whether a Redis address is configured.
func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

/*
====================================
SECURITY CONFIG
====================================
*/

// PasswordConfig holds Argon2id cost parameters.
type PasswordConfig struct {
	Memory         uint32 `env:"MEMORY_KB"        envDefault:"65536"`
	Time           uint32 `env:"TIME"             envDefault:"3"`
	Parallelism    uint8  `env:"PARALLELISM"      envDefault:"2"`
	SaltLength     uint32 `env:"SALT_LENGTH"      envDefault:"16"`
	KeyLength      uint32 `env:"KEY_LENGTH"       envDefault:"32"`
	UpgradeOnLogin bool   `env:"UPGRADE_ON_LOGIN" envDefault:"true"`
}

func (c PasswordConfig) hasherConfig() password.Config {
	return password.Config{
		Memory:      c.Memory,
		Time:        c.Time,
		Parallelism: c.Parallelism,
		SaltLength:  c.SaltLength,
		KeyLength:   c.KeyLength,
	}
}

// RateLimitConfig bounds failed logins and registrations. Requires Redis.
type RateLimitConfig struct {
	MaxLoginAttempts      int           `env:"MAX_LOGIN_ATTEMPTS"       envDefault:"5"`
	LoginWindow           time.Duration `env:"LOGIN_WINDOW"             envDefault:"15m"`
	IPThrottle            bool          `env:"IP_THROTTLE"              envDefault:"true"`
	MaxRegistrationsPerIP int           `env:"MAX_REGISTRATIONS_PER_IP" envDefault:"10"`
	RegistrationWindow    time.Duration `env:"REGISTRATION_WINDOW"      envDefault:"1h"`
}

/*
====================================
OBSERVABILITY CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool `env:"ENABLED"      envDefault:"true"`
	BufferSize int  `env:"BUFFER_SIZE"  envDefault:"1024"`
	DropIfFull bool `env:"DROP_IF_FULL" envDefault:"true"`
}

// MetricsConfig toggles in-process counters.
type MetricsConfig struct {
	Enabled                 bool `env:"ENABLED"            envDefault:"true"`
	EnableLatencyHistograms bool `env:"LATENCY_HISTOGRAMS" envDefault:"false"`
}

// LogConfig selects the zap logger.
type LogConfig struct {
	Level       string `env:"LEVEL"       envDefault:"info"`
	Development bool   `env:"DEVELOPMENT" envDefault:"false"`
}

// ServerConfig is consumed by the estated daemon.
type ServerConfig struct {
	Addr            string        `env:"ADDR"             envDefault:":8080"`
	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS"  envSeparator:","`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT"     envDefault:"10s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT"    envDefault:"15s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	TrustProxy      bool          `env:"TRUST_PROXY"      envDefault:"false"`
}

// DefaultConfig returns the envDefault values without consulting the process environment.
func DefaultConfig() Config {
	cfg, err := LoadConfigFrom(map[string]string{})
	if err != nil {
		panic(fmt.Sprintf("estateAuth: default config: %v", err))
	}
	return cfg
}

// LoadConfig reads ESTATE_* variables from the process environment and validates the result.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfigFrom is LoadConfig over an explicit variable set.
func LoadConfigFrom(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects inconsistent values.
func (c *Config) Validate() error {
	// Session
	if strings.TrimSpace(c.Session.CookieName) == "" {
		return errors.New("Session CookieName must not be empty")
	}
	if c.Session.Signed() && len(c.Session.SigningKey) < 32 {
		return errors.New("Session SigningKey must be at least 32 bytes")
	}
	if c.Session.MaxAge < 0 {
		return errors.New("Session MaxAge must be >= 0")
	}
	sameSite, ok := session.ParseSameSite(c.Session.SameSite)
	if !ok {
		return errors.New("Session SameSite must be 'lax', 'strict' or 'none'")
	}
	if sameSite == http.SameSiteNoneMode && !c.Session.Secure {
		return errors.New("Session SameSite=none requires Secure cookies")
	}

	// Cache
	if c.Cache.Size <= 0 {
		return errors.New("Cache Size must be > 0")
	}
	if c.Cache.TTL <= 0 {
		return errors.New("Cache TTL must be > 0")
	}

	// Database
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("Database DSN must not be empty")
	}
	if c.Database.MaxOpenConns < 0 {
		return errors.New("Database MaxOpenConns must be >= 0")
	}

	// Password
	if err := c.Password.hasherConfig().Validate(); err != nil {
		return fmt.Errorf("Password: %w", err)
	}

	// Rate limits
	if c.RateLimit.MaxLoginAttempts < 0 || c.RateLimit.MaxRegistrationsPerIP < 0 {
		return errors.New("RateLimit budgets must be >= 0")
	}
	if c.RateLimit.MaxLoginAttempts > 0 && c.RateLimit.LoginWindow <= 0 {
		return errors.New("RateLimit LoginWindow must be > 0 when MaxLoginAttempts is set")
	}
	if c.RateLimit.MaxRegistrationsPerIP > 0 && c.RateLimit.RegistrationWindow <= 0 {
		return errors.New("RateLimit RegistrationWindow must be > 0 when MaxRegistrationsPerIP is set")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	// Log
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("Log Level: %w", err)
	}

	return nil
}

// Lint reports settings that are valid but unsafe for production.
func (c *Config) Lint() []string {
	var warnings []string
	if !c.Session.Signed() {
		warnings = append(warnings, "session cookies are unsigned; set ESTATE_SESSION_SIGNING_KEY")
	}
	if !c.Session.Secure {
		warnings = append(warnings, "session cookies are sent over plain HTTP")
	}
	if c.Session.MaxAge == 0 {
		warnings = append(warnings, "sessions never expire")
	}
	if !c.Redis.Enabled() {
		warnings = append(warnings, "redis disabled: logins are not throttled and cache invalidation is local only")
	}
	return warnings
}

// NewLogger builds the zap logger described by c.
func (c LogConfig) NewLogger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	return zc.Build()
}
