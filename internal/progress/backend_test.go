package progress

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/felixgeelhaar/academy/internal/config"
)

func TestOpenBackend_Local(t *testing.T) {
	tests := []struct {
		backend    string
		wantName   string
		wantSQLite bool
	}{
		{config.BackendMemory, "memory", false},
		{config.BackendFile, "file", false},
		{"", "file", false},
		{config.BackendSQLite, "sqlite", true},
	}

	for _, tt := range tests {
		t.Run(tt.wantName, func(t *testing.T) {
			ctx := context.Background()
			cfg := config.DefaultLocalConfig().Storage
			cfg.Backend = tt.backend

			b, err := OpenBackend(ctx, cfg, t.TempDir(), slog.Default())
			if err != nil {
				t.Fatalf("OpenBackend() error = %v", err)
			}
			defer b.Close()

			if b.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", b.Name, tt.wantName)
			}
			if (b.SQLite != nil) != tt.wantSQLite {
				t.Errorf("SQLite set = %v, want %v", b.SQLite != nil, tt.wantSQLite)
			}

			store := NewStore(b.KV, b.Name, "1.1")
			p := store.Default()
			p.AddXP(30)
			if err := store.Save(ctx, p); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			if got := store.Load(ctx); got.TotalXP != 30 {
				t.Errorf("Load() = %d XP, want 30", got.TotalXP)
			}
		})
	}
}

func TestOpenBackend_SQLitePath(t *testing.T) {
	cfg := config.DefaultLocalConfig().Storage
	cfg.Backend = config.BackendSQLite
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "custom.db")

	b, err := OpenBackend(context.Background(), cfg, t.TempDir(), slog.Default())
	if err != nil {
		t.Fatalf("OpenBackend() error = %v", err)
	}
	defer b.Close()

	if b.SQLite.Path() != cfg.SQLite.Path {
		t.Errorf("Path() = %q, want %q", b.SQLite.Path(), cfg.SQLite.Path)
	}
	if v, err := b.SQLite.SchemaVersion(context.Background()); err != nil || v != 2 {
		t.Errorf("SchemaVersion() = %d, %v; want 2", v, err)
	}
}

func TestOpenBackend_Unknown(t *testing.T) {
	cfg := config.StorageConfig{Backend: "floppy"}
	if _, err := OpenBackend(context.Background(), cfg, t.TempDir(), slog.Default()); err == nil {
		t.Error("OpenBackend() should fail for an unknown backend")
	}
}
