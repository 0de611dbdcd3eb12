package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("Memory Defaults", func(t *testing.T) {
		t.Setenv("STORAGE_BACKEND", "memory")

		cfg, err := load(viper.New())

		require.NoError(t, err)
		assert.Equal(t, "8080", cfg.HTTPPort)
		assert.Equal(t, DefaultPolicy(), cfg.Policy)
	})

	t.Run("DynamoDB From Environment", func(t *testing.T) {
		t.Setenv("STORAGE_BACKEND", "dynamodb")
		t.Setenv("DYNAMODB_TABLES_ACCOUNTS", "accounts")
		t.Setenv("DYNAMODB_TABLES_TRANSACTIONS", "transactions")
		t.Setenv("DYNAMODB_TABLES_SCAN_LOG", "scan-log")
		t.Setenv("DYNAMODB_TABLES_GIFT_TOKENS", "gift-tokens")
		t.Setenv("DYNAMODB_TABLES_PASSES", "passes")
		t.Setenv("POLICY_ANTI_PASSBACK", "2m")
		t.Setenv("POLICY_MIN_TOPUP_CENTS", "1000")
		t.Setenv("POLICY_MAX_TOPUP_CENTS", "20000")
		t.Setenv("GIFT_QUEUE_URL", "https://sqs.example.com/gifts")

		cfg, err := load(viper.New())

		require.NoError(t, err)
		assert.Equal(t, "scan-log", cfg.Tables.ScanLog)
		assert.Equal(t, 2*time.Minute, cfg.Policy.AntiPassback)
		assert.Equal(t, 90*time.Minute, cfg.Policy.GuestWindow)
		assert.Equal(t, int64(1000), cfg.Policy.MinTopUpCents)
		assert.Equal(t, int64(20000), cfg.Policy.MaxTopUpCents)
		assert.Equal(t, "https://sqs.example.com/gifts", cfg.GiftQueueURL)
	})

	t.Run("Missing Tables", func(t *testing.T) {
		t.Setenv("STORAGE_BACKEND", "dynamodb")

		_, err := load(viper.New())

		assert.Error(t, err)
	})

	t.Run("Unknown Backend", func(t *testing.T) {
		t.Setenv("STORAGE_BACKEND", "sqlite")

		_, err := load(viper.New())

		assert.ErrorContains(t, err, "unknown storage backend")
	})
}

func TestValidate_Policy(t *testing.T) {
	cfg := Config{StorageBackend: BackendMemory, Policy: DefaultPolicy()}
	require.NoError(t, cfg.Validate())

	cfg.Policy.GuestWindow = 0
	assert.Error(t, cfg.Validate())

	cfg.Policy = DefaultPolicy()
	cfg.Policy.MinTopUpCents = -1
	assert.Error(t, cfg.Validate())

	cfg.Policy = DefaultPolicy()
	cfg.Policy.MaxTopUpCents = cfg.Policy.MinTopUpCents - 1
	assert.ErrorContains(t, cfg.Validate(), "maximum top-up")
}
