package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	JWT       JWTConfig       `yaml:"jwt"`
	Referral  ReferralConfig  `yaml:"referral"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Audit     AuditConfig     `yaml:"audit"`
}

type ServerConfig struct {
	Port         string        `yaml:"port"`
	Env          string        `yaml:"env"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	RequestLog   bool          `yaml:"request_log"`
}

type DatabaseConfig struct {
	Driver          string        `yaml:"driver"` // mysql | postgres | sqlite
	DSN             string        `yaml:"dsn"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type JWTConfig struct {
	AccessSecret string        `yaml:"access_secret"`
	AccessExpiry time.Duration `yaml:"access_expiry"`
	Issuer       string        `yaml:"issuer"`
}

// ReferralConfig holds the fixed award paid to both sides of a converted referral.
// The system_settings row referral_award_credits overrides AwardCredits at runtime.
type ReferralConfig struct {
	AwardCredits int64 `yaml:"award_credits"`
	CodeAttempts int   `yaml:"code_attempts"`
}

type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

type AuditConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "5000",
			Env:          "development",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          "mysql",
			DSN:             "refbook:refbook@tcp(localhost:3306)/refbook?charset=utf8mb4&parseTime=True&loc=Local",
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
		},
		JWT: JWTConfig{
			AccessSecret: "change-me-in-production",
			AccessExpiry: 7 * 24 * time.Hour,
			Issuer:       "refbook",
		},
		Referral: ReferralConfig{
			AwardCredits: 2,
			CodeAttempts: 10,
		},
		RateLimit: RateLimitConfig{
			Requests: 100,
			Window:   15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:  true,
			Interval: 15 * time.Minute,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, a .env file
// and the process environment, in increasing order of precedence.
// An empty path falls back to REFBOOK_CONFIG.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("REFBOOK_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	// A missing .env is normal outside local development.
	_ = godotenv.Load()
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Server.Env, "APP_ENV")
	setString(&cfg.Database.Driver, "DATABASE_DRIVER")
	setString(&cfg.Database.DSN, "DATABASE_DSN")
	setString(&cfg.JWT.AccessSecret, "JWT_SECRET")
	if err := setDuration(&cfg.JWT.AccessExpiry, "JWT_EXPIRES_IN"); err != nil {
		return err
	}
	if v := os.Getenv("REFERRAL_CREDITS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return fmt.Errorf("REFERRAL_CREDITS must be a non-negative integer, got %q", v)
		}
		cfg.Referral.AwardCredits = n
	}
	if v := os.Getenv("AUDIT_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("AUDIT_ENABLED: %w", err)
		}
		cfg.Audit.Enabled = b
	}
	return setDuration(&cfg.Audit.Interval, "AUDIT_INTERVAL")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
