package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is read once at process start and passed to constructors.
// Nothing in the engine reads the environment directly.
type Config struct {
	Host string `env:"APP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"APP_PORT" envDefault:"8080"`

	DatabaseDSN string `env:"DB_DSN"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// RateLimitBackend is "redis" or "memory".
	RateLimitBackend string `env:"RATE_LIMIT_BACKEND" envDefault:"redis"`

	JWTSecret   string `env:"JWT_SECRET"`
	JWTTTLHours int    `env:"JWT_TTL_HOURS" envDefault:"24"`

	// AllowUnverifiedFallback lets booking and cashier endpoints accept
	// uid/email from the request body when no bearer token is sent.
	AllowUnverifiedFallback bool `env:"AUTH_ALLOW_UNVERIFIED_FALLBACK" envDefault:"false"`

	AllowedDomains       []string `env:"ALLOWED_DOMAINS" envDefault:"mite.ac.in,asterhyphen.xyz" envSeparator:","`
	DefaultNoShowTimeout int      `env:"DEFAULT_NO_SHOW_TIMEOUT" envDefault:"300"`
	CreateQueueCooldown  int      `env:"CREATE_QUEUE_COOLDOWN" envDefault:"60"`
	BookCooldown         int      `env:"BOOK_COOLDOWN" envDefault:"2"`
	LowPriorityPrefix    string   `env:"LOW_PRIORITY_PREFIX" envDefault:"4MT"`
	SweepSchedule        string   `env:"SWEEP_SCHEDULE" envDefault:"@every 60s"`

	BasicAuthUser string `env:"BASIC_AUTH_USER"`
	BasicAuthPass string `env:"BASIC_AUTH_PASS"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load parses the environment into a Config and normalizes it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the built-in defaults without reading the environment.
func Default() Config {
	cfg := Config{
		Host:                 "0.0.0.0",
		Port:                 "8080",
		RedisAddr:            "localhost:6379",
		RateLimitBackend:     "redis",
		JWTTTLHours:          24,
		AllowedDomains:       []string{"mite.ac.in", "asterhyphen.xyz"},
		DefaultNoShowTimeout: 300,
		CreateQueueCooldown:  60,
		BookCooldown:         2,
		LowPriorityPrefix:    "4MT",
		SweepSchedule:        "@every 60s",
		LogLevel:             "info",
	}
	cfg.normalize()
	return cfg
}

func (c *Config) normalize() {
	domains := make([]string, 0, len(c.AllowedDomains))
	for _, d := range c.AllowedDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			domains = append(domains, d)
		}
	}
	c.AllowedDomains = domains

	if c.DefaultNoShowTimeout <= 0 {
		c.DefaultNoShowTimeout = 300
	}
	if c.CreateQueueCooldown <= 0 {
		c.CreateQueueCooldown = 60
	}
	if c.BookCooldown <= 0 {
		c.BookCooldown = 2
	}
	c.RateLimitBackend = strings.ToLower(strings.TrimSpace(c.RateLimitBackend))
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	if len(c.AllowedDomains) == 0 {
		return errors.New("ALLOWED_DOMAINS must list at least one domain")
	}
	switch c.RateLimitBackend {
	case "redis", "memory":
	default:
		return fmt.Errorf("unsupported RATE_LIMIT_BACKEND: %s", c.RateLimitBackend)
	}
	return nil
}

func (c Config) Addr() string {
	return c.Host + ":" + c.Port
}

func (c Config) DefaultNoShowTimeoutDuration() time.Duration {
	return time.Duration(c.DefaultNoShowTimeout) * time.Second
}

func (c Config) CreateQueueCooldownDuration() time.Duration {
	return time.Duration(c.CreateQueueCooldown) * time.Second
}

func (c Config) BookCooldownDuration() time.Duration {
	return time.Duration(c.BookCooldown) * time.Second
}

func (c Config) JWTTTL() time.Duration {
	return time.Duration(c.JWTTTLHours) * time.Hour
}
