package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Security    SecurityConfig    `mapstructure:"security"`
	Callers     []CallerConfig    `mapstructure:"callers"`
	Limits      LimitsConfig      `mapstructure:"limits"`
	Challenge   ChallengeConfig   `mapstructure:"challenge"`
	Documents   DocumentsConfig   `mapstructure:"documents"`
	KYCProvider KYCProviderConfig `mapstructure:"kyc_provider"`
	Settlement  SettlementConfig  `mapstructure:"settlement"`
	Notify      NotifyConfig      `mapstructure:"notify"`
	Jobs        JobsConfig        `mapstructure:"jobs"`
	Log         LogConfig         `mapstructure:"log"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// AuthConfig verifies seller bearer tokens minted by the external account system.
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"` // used by cmd/devtoken only
}

type SecurityConfig struct {
	MasterKey string `mapstructure:"master_key"` // 32-byte hex-encoded; all data keys are derived from it
}

// CallerConfig is a service-to-service client allowed to hit the callback routes.
type CallerConfig struct {
	Name      string   `mapstructure:"name"`
	AccessKey string   `mapstructure:"access_key"`
	Secret    string   `mapstructure:"secret"`
	Scopes    []string `mapstructure:"scopes"` // kyc, settlement, methods, earnings; empty = all
}

// LimitsConfig amounts are in minor units (cents).
type LimitsConfig struct {
	Currency      string        `mapstructure:"currency"`
	MinAmount     int64         `mapstructure:"min_amount"`
	MaxPerTx      int64         `mapstructure:"max_per_tx"`
	MonthlyCap    int64         `mapstructure:"monthly_cap"`
	MonthlyWindow time.Duration `mapstructure:"monthly_window"`
	ConfirmWindow time.Duration `mapstructure:"confirm_window"`
}

type ChallengeConfig struct {
	TTL         time.Duration `mapstructure:"ttl"`
	CodeLength  int           `mapstructure:"code_length"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

type DocumentsConfig struct {
	MaxBytes     int64    `mapstructure:"max_bytes"`
	AllowedTypes []string `mapstructure:"allowed_types"`
}

type KYCProviderConfig struct {
	BaseURL     string        `mapstructure:"base_url"` // empty = manual review (decisions arrive via webhook only)
	CallbackURL string        `mapstructure:"callback_url"`
	AccessKey   string        `mapstructure:"access_key"`
	Secret      string        `mapstructure:"secret"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type SettlementConfig struct {
	BaseURL   string        `mapstructure:"base_url"` // empty = instructions are logged for manual payout
	AccessKey string        `mapstructure:"access_key"`
	Secret    string        `mapstructure:"secret"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type NotifyConfig struct {
	Provider       string `mapstructure:"provider"` // log, sendgrid
	SendGridAPIKey string `mapstructure:"sendgrid_api_key"`
	SendGridHost   string `mapstructure:"sendgrid_host"`
	FromAddress    string `mapstructure:"from_address"`
	FromName       string `mapstructure:"from_name"`
}

type JobsConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	ExpireInterval     time.Duration `mapstructure:"expire_interval"`
	RedispatchInterval time.Duration `mapstructure:"redispatch_interval"`
	RedispatchAfter    time.Duration `mapstructure:"redispatch_after"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: SPS_ (Seller Payout Service).
// Nested keys use underscore: SPS_DATABASE_HOST, SPS_AUTH_JWT_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "seller_payouts")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "marketplace-accounts")
	v.SetDefault("auth.token_ttl", "1h")
	v.SetDefault("security.master_key", "")
	v.SetDefault("limits.currency", "USD")
	v.SetDefault("limits.min_amount", 1000)
	v.SetDefault("limits.max_per_tx", 100000)
	v.SetDefault("limits.monthly_cap", 1000000)
	v.SetDefault("limits.monthly_window", "720h")
	v.SetDefault("limits.confirm_window", "30m")
	v.SetDefault("challenge.ttl", "10m")
	v.SetDefault("challenge.code_length", 6)
	v.SetDefault("challenge.max_attempts", 5)
	v.SetDefault("documents.max_bytes", 5*1024*1024)
	v.SetDefault("documents.allowed_types", []string{"image/jpeg", "image/png", "application/pdf"})
	v.SetDefault("kyc_provider.base_url", "")
	v.SetDefault("kyc_provider.timeout", "10s")
	v.SetDefault("settlement.base_url", "")
	v.SetDefault("settlement.timeout", "15s")
	v.SetDefault("notify.provider", "log")
	v.SetDefault("notify.sendgrid_host", "https://api.sendgrid.com")
	v.SetDefault("notify.from_address", "no-reply@marketplace.local")
	v.SetDefault("notify.from_name", "Seller Payouts")
	v.SetDefault("jobs.enabled", true)
	v.SetDefault("jobs.expire_interval", "1m")
	v.SetDefault("jobs.redispatch_interval", "2m")
	v.SetDefault("jobs.redispatch_after", "5m")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// SPS_DATABASE_HOST -> database.host
	v.SetEnvPrefix("SPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// A missing config file is fine; env vars can suffice.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects limit combinations the withdrawal ledger cannot honor.
func (c *Config) Validate() error {
	l := c.Limits
	if l.MinAmount <= 0 || l.MaxPerTx < l.MinAmount || l.MonthlyCap < l.MaxPerTx {
		return fmt.Errorf("invalid withdrawal limits: min=%d max=%d monthly=%d", l.MinAmount, l.MaxPerTx, l.MonthlyCap)
	}
	if c.Challenge.CodeLength < 4 || c.Challenge.CodeLength > 9 {
		return fmt.Errorf("challenge.code_length must be between 4 and 9, got %d", c.Challenge.CodeLength)
	}
	if c.Notify.Provider != "log" && c.Notify.Provider != "sendgrid" {
		return fmt.Errorf("notify.provider must be log or sendgrid, got %q", c.Notify.Provider)
	}
	for _, caller := range c.Callers {
		if caller.AccessKey == "" || caller.Secret == "" {
			return fmt.Errorf("caller %q needs access_key and secret", caller.Name)
		}
	}
	return nil
}
