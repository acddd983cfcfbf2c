package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// StoreBackend selects where nonces and rate limit counters live
type StoreBackend string

const (
	StoreMemory StoreBackend = "memory"
	StoreRedis  StoreBackend = "redis"
)

// DevJWTSecret is used when running with dev enabled and no secret configured
const DevJWTSecret = "dev-secret-change-in-production"

// Config holds all configuration for the gateway
type Config struct {
	HTTPAddr  string `mapstructure:"http_addr"`
	LogLevel  string `mapstructure:"log_level"`
	LogPretty bool   `mapstructure:"log_pretty"`
	Dev       bool   `mapstructure:"dev"`

	JWTSecret string        `mapstructure:"jwt_secret"`
	JWTExpiry time.Duration `mapstructure:"jwt_expiry"`

	NonceTTL          time.Duration `mapstructure:"nonce_ttl"`
	NonceReapInterval time.Duration `mapstructure:"nonce_reap_interval"`

	RateLimitUploadsPerDay int           `mapstructure:"rate_limit_uploads_per_day"`
	RateLimitWindow        time.Duration `mapstructure:"rate_limit_window"`

	MinBalanceCC    string `mapstructure:"min_balance_cc"`
	SignatureScheme string `mapstructure:"signature_scheme"`
	SS58Prefix      int    `mapstructure:"ss58_prefix"` // -1 accepts any network

	LedgerRPCURL  string        `mapstructure:"ledger_rpc_url"`
	LedgerTimeout time.Duration `mapstructure:"ledger_timeout"`

	StoreBackend  StoreBackend `mapstructure:"store_backend"`
	RedisURL      string       `mapstructure:"redis_url"`
	EventsEnabled bool         `mapstructure:"events_enabled"`

	IPFSAPIURL     string        `mapstructure:"ipfs_api_url"`
	IPFSTimeout    time.Duration `mapstructure:"ipfs_timeout"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", "0.0.0.0:5050")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)
	v.SetDefault("dev", false)

	v.SetDefault("jwt_secret", "")
	v.SetDefault("jwt_expiry", "1h")

	v.SetDefault("nonce_ttl", "300s")
	v.SetDefault("nonce_reap_interval", "60s")

	v.SetDefault("rate_limit_uploads_per_day", 10)
	v.SetDefault("rate_limit_window", "24h")

	v.SetDefault("min_balance_cc", "0.1")
	v.SetDefault("signature_scheme", "sr25519")
	v.SetDefault("ss58_prefix", -1)

	v.SetDefault("ledger_rpc_url", "wss://kusama.api.encointer.org")
	v.SetDefault("ledger_timeout", "10s")

	v.SetDefault("store_backend", string(StoreMemory))
	v.SetDefault("redis_url", "redis://localhost:6379/0")
	v.SetDefault("events_enabled", false)

	v.SetDefault("ipfs_api_url", "http://localhost:5001")
	v.SetDefault("ipfs_timeout", "60s")
	v.SetDefault("max_upload_bytes", 10<<20)
}

// Load reads ccgate.yaml from the working directory or /etc/ccgate and
// applies CCGATE_* environment overrides
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName("ccgate")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/ccgate/")

	v.SetEnvPrefix("CCGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}

	if cfg.Dev && cfg.JWTSecret == "" {
		cfg.JWTSecret = DevJWTSecret
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that cannot be defaulted
func (c Config) Validate() error {
	var errs []error

	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_secret is required"))
	}
	if c.JWTExpiry <= 0 {
		errs = append(errs, errors.New("jwt_expiry must be positive"))
	}
	if c.NonceTTL <= 0 {
		errs = append(errs, errors.New("nonce_ttl must be positive"))
	}
	if c.NonceReapInterval <= 0 {
		errs = append(errs, errors.New("nonce_reap_interval must be positive"))
	}
	if c.RateLimitUploadsPerDay <= 0 {
		errs = append(errs, errors.New("rate_limit_uploads_per_day must be positive"))
	}
	if c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("rate_limit_window must be positive"))
	}
	if minBalance, err := decimal.NewFromString(c.MinBalanceCC); err != nil {
		errs = append(errs, fmt.Errorf("min_balance_cc: %w", err))
	} else if minBalance.IsNegative() {
		errs = append(errs, errors.New("min_balance_cc must not be negative"))
	}
	if c.SS58Prefix < -1 || c.SS58Prefix > 16383 {
		errs = append(errs, fmt.Errorf("ss58_prefix %d out of range", c.SS58Prefix))
	}
	if c.LedgerRPCURL == "" && !c.Dev {
		errs = append(errs, errors.New("ledger_rpc_url is required outside dev mode"))
	}
	switch c.StoreBackend {
	case StoreMemory:
	case StoreRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("redis_url is required for the redis store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store_backend %q", c.StoreBackend))
	}
	if c.EventsEnabled && c.RedisURL == "" {
		errs = append(errs, errors.New("redis_url is required when events are enabled"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("max_upload_bytes must be positive"))
	}

	return errors.Join(errs...)
}
