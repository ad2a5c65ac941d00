package postgres

import (
	"testing"
	"time"
)

func TestConfig_PoolConfig(t *testing.T) {
	cfg := DefaultConfig()
	pc, err := cfg.PoolConfig()
	if err != nil {
		t.Fatalf("PoolConfig() error = %v", err)
	}
	if pc.MaxConns != 4 || pc.MinConns != 1 {
		t.Errorf("pool size = %d/%d, want 4/1", pc.MaxConns, pc.MinConns)
	}
	if pc.MaxConnLifetime != time.Hour {
		t.Errorf("MaxConnLifetime = %v, want 1h", pc.MaxConnLifetime)
	}
	if pc.ConnConfig.Database != "academy" {
		t.Errorf("Database = %q, want academy", pc.ConnConfig.Database)
	}

	cfg.DSN = "::not a dsn::"
	if _, err := cfg.PoolConfig(); err == nil {
		t.Error("PoolConfig() should reject a malformed DSN")
	}
}
