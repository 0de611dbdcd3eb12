package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Policy holds the fare engine's timing and limit rules.
type Policy struct {
	AntiPassback    time.Duration `mapstructure:"anti_passback"`
	RescanLock      time.Duration `mapstructure:"rescan_lock"`
	GuestWindow     time.Duration `mapstructure:"guest_window"`
	FraudWindow     time.Duration `mapstructure:"fraud_window"`
	GiftOuterExpiry time.Duration `mapstructure:"gift_outer_expiry"`
	MinTopUpCents   int64         `mapstructure:"min_topup_cents"`
	MaxTopUpCents   int64         `mapstructure:"max_topup_cents"`
}

// Tables names the DynamoDB tables backing the store.
type Tables struct {
	Accounts     string `mapstructure:"accounts"`
	Transactions string `mapstructure:"transactions"`
	ScanLog      string `mapstructure:"scan_log"`
	GiftTokens   string `mapstructure:"gift_tokens"`
	Passes       string `mapstructure:"passes"`
	Connections  string `mapstructure:"connections"`
}

// Config is the process configuration shared by the HTTP app and the lambdas.
type Config struct {
	HTTPPort          string `mapstructure:"http_port"`
	StorageBackend    string `mapstructure:"storage_backend"`
	Tables            Tables `mapstructure:"dynamodb_tables"`
	GiftQueueURL      string `mapstructure:"gift_queue_url"`
	WebSocketEndpoint string `mapstructure:"websocket_endpoint"`
	LogLevel          string `mapstructure:"log_level"`
	Policy            Policy `mapstructure:"policy"`
}

const (
	BackendDynamoDB = "dynamodb"
	BackendMemory   = "memory"
)

// DefaultPolicy returns the documented fare rules: 5 minute anti-passback and
// rescan lock, 90 minute guest window, 5 minute fraud window, 7 day gift backstop,
// top-ups between $5 and $500.
func DefaultPolicy() Policy {
	return Policy{
		AntiPassback:    5 * time.Minute,
		RescanLock:      5 * time.Minute,
		GuestWindow:     90 * time.Minute,
		FraudWindow:     5 * time.Minute,
		GiftOuterExpiry: 7 * 24 * time.Hour,
		MinTopUpCents:   500,
		MaxTopUpCents:   50000,
	}
}

func setDefaults(v *viper.Viper) {
	p := DefaultPolicy()
	v.SetDefault("http_port", "8080")
	v.SetDefault("storage_backend", BackendDynamoDB)
	v.SetDefault("log_level", "info")
	v.SetDefault("dynamodb_tables.accounts", "")
	v.SetDefault("dynamodb_tables.transactions", "")
	v.SetDefault("dynamodb_tables.scan_log", "")
	v.SetDefault("dynamodb_tables.gift_tokens", "")
	v.SetDefault("dynamodb_tables.passes", "")
	v.SetDefault("dynamodb_tables.connections", "")
	v.SetDefault("gift_queue_url", "")
	v.SetDefault("websocket_endpoint", "")
	v.SetDefault("policy.anti_passback", p.AntiPassback)
	v.SetDefault("policy.rescan_lock", p.RescanLock)
	v.SetDefault("policy.guest_window", p.GuestWindow)
	v.SetDefault("policy.fraud_window", p.FraudWindow)
	v.SetDefault("policy.gift_outer_expiry", p.GiftOuterExpiry)
	v.SetDefault("policy.min_topup_cents", p.MinTopUpCents)
	v.SetDefault("policy.max_topup_cents", p.MaxTopUpCents)
}

// Load reads configuration from a .env file (if present) and the environment.
// Nested keys map to upper-case variables with "_" separators, e.g.
// DYNAMODB_TABLES_ACCOUNTS or POLICY_ANTI_PASSBACK=5m.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the selected backend has what it needs and the policy is usable.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendMemory:
	case BackendDynamoDB:
		t := c.Tables
		if t.Accounts == "" || t.Transactions == "" || t.ScanLog == "" || t.GiftTokens == "" || t.Passes == "" {
			return fmt.Errorf("one or more DynamoDB table names are not set")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}

	p := c.Policy
	if p.AntiPassback <= 0 || p.RescanLock <= 0 || p.GuestWindow <= 0 || p.FraudWindow <= 0 || p.GiftOuterExpiry <= 0 {
		return fmt.Errorf("policy durations must be positive")
	}
	if p.MinTopUpCents < 0 {
		return fmt.Errorf("minimum top-up cannot be negative")
	}
	if p.MaxTopUpCents < p.MinTopUpCents {
		return fmt.Errorf("maximum top-up cannot be below the minimum")
	}
	return nil
}
