package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/trustledger/internal/domain"
	"github.com/iho/trustledger/internal/infrastructure/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	if cfg.DatabaseURL == "" {
		t.Fatalf("expected default database URL to be set")
	}

	if cfg.HTTPPort != "8080" {
		t.Fatalf("expected default HTTP port 8080, got %s", cfg.HTTPPort)
	}

	assert.Equal(t, config.StorePostgres, cfg.LedgerStore)
	assert.Equal(t, config.LockLocal, cfg.LedgerLock)
	assert.Equal(t, "USD", cfg.DefaultCurrency)
	assert.Equal(t, "iolta-main", cfg.DefaultFirmAccountID)
	assert.Equal(t, 5, cfg.MaxConflictRetries)
	assert.Equal(t, 10, cfg.AuditMaxAttempts)

	epsilon, err := cfg.EpsilonMoney()
	require.NoError(t, err)
	assert.True(t, epsilon.IsZero())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("REDIS_URL", "redis://example")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("DATABASE_TIMEOUT", "45s")
	t.Setenv("JWT_SECRET", "top-secret")
	t.Setenv("AUTH_ENABLED", "true")
	t.Setenv("LEDGER_STORE", "memory")
	t.Setenv("LEDGER_LOCK", "redis")
	t.Setenv("LEDGER_LOCK_TIMEOUT", "250ms")
	t.Setenv("AUDIT_SINK", "redis")
	t.Setenv("RECONCILIATION_EPSILON", "0.01")
	t.Setenv("LEDGER_MAX_AMOUNT", "50000.00")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	if cfg.DatabaseURL != "postgres://example" {
		t.Fatalf("expected custom database URL, got %s", cfg.DatabaseURL)
	}

	if cfg.DatabaseTimeout != 45*time.Second {
		t.Fatalf("expected database timeout override, got %s", cfg.DatabaseTimeout)
	}

	if !cfg.AuthEnabled || cfg.JWTSecret != "top-secret" {
		t.Fatalf("expected auth overrides to be applied")
	}

	assert.Equal(t, config.StoreMemory, cfg.LedgerStore)
	assert.Equal(t, config.LockRedis, cfg.LedgerLock)
	assert.Equal(t, 250*time.Millisecond, cfg.LockTimeout)

	epsilon, err := cfg.EpsilonMoney()
	require.NoError(t, err)
	assert.True(t, epsilon.Equal(domain.MustParseMoney("0.01")))

	ceiling, err := cfg.MaxAmountMoney()
	require.NoError(t, err)
	assert.True(t, ceiling.Equal(domain.MustParseMoney("50000")))
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown store", map[string]string{"LEDGER_STORE": "sqlite"}},
		{"unknown lock", map[string]string{"LEDGER_LOCK": "etcd"}},
		{"unknown sink", map[string]string{"AUDIT_SINK": "kafka"}},
		{"postgres sink without postgres", map[string]string{"LEDGER_STORE": "memory", "AUDIT_SINK": "postgres"}},
		{"bad currency", map[string]string{"LEDGER_DEFAULT_CURRENCY": "DOGE"}},
		{"bad epsilon", map[string]string{"RECONCILIATION_EPSILON": "a lot"}},
		{"negative epsilon", map[string]string{"RECONCILIATION_EPSILON": "-1"}},
		{"auth without secret", map[string]string{"AUTH_ENABLED": "true", "JWT_SECRET": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.Load()
			assert.Error(t, err)
		})
	}
}
