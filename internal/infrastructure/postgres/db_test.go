package postgres

import (
	"context"
	"io/fs"
	"strings"
	"testing"
)

func TestNewPoolWithConfigDefaults(t *testing.T) {
	ctx := context.Background()

	// using invalid URL should return error
	if _, err := NewPoolWithConfig(ctx, PoolConfig{DatabaseURL: "not-a-url"}); err == nil {
		t.Fatalf("expected error when parsing invalid URL")
	}
}

func TestNewPoolWithConfigPingFailure(t *testing.T) {
	ctx := context.Background()
	cfg := PoolConfig{
		DatabaseURL: "postgres://invalid:5432/db",
		MaxConns:    1,
		MinConns:    0,
	}

	_, err := NewPoolWithConfig(ctx, cfg)
	if err == nil {
		t.Fatalf("expected error when pool cannot connect")
	}
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, "migrations")
	if err != nil {
		t.Fatalf("failed to read embedded migrations: %v", err)
	}

	ups, downs := 0, 0
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		}
	}

	if ups == 0 || ups != downs {
		t.Fatalf("expected paired up/down migrations, got %d up and %d down", ups, downs)
	}
}

func TestSchemaGuardsLedgerInvariants(t *testing.T) {
	schema, err := fs.ReadFile(embeddedMigrations, "migrations/000001_trust_ledger.up.sql")
	if err != nil {
		t.Fatalf("failed to read schema: %v", err)
	}

	for _, want := range []string{
		"UNIQUE (matter_id, sequence)",
		"trust_transactions_reversal_of_key",
		"BEFORE UPDATE OR DELETE ON trust_transactions",
	} {
		if !strings.Contains(string(schema), want) {
			t.Errorf("schema is missing %q", want)
		}
	}
}
