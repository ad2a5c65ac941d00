package local

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/felixgeelhaar/academy/internal/storage"
)

func TestNewStore_CreatesDirectory(t *testing.T) {
	newDir := filepath.Join(t.TempDir(), "subdir", "nested")

	store, err := NewStore(newDir)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if store.BasePath() != newDir {
		t.Errorf("BasePath() = %v, want %v", store.BasePath(), newDir)
	}

	info, err := os.Stat(newDir)
	if err != nil {
		t.Fatalf("directory not created: %v", err)
	}
	if !info.IsDir() {
		t.Error("expected directory, got file")
	}
}

func TestStore_PutGet(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	if _, err := store.Get(ctx, "esp8266_progress"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}

	if err := store.Put(ctx, "esp8266_progress", []byte(`{"total_xp":75}`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := store.Put(ctx, "esp8266_progress", []byte(`{"total_xp":150}`)); err != nil {
		t.Fatalf("second Put() error = %v", err)
	}

	got, err := store.Get(ctx, "esp8266_progress")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != `{"total_xp":150}` {
		t.Errorf("Get() = %s, want last write", got)
	}

	if _, err := os.Stat(filepath.Join(store.BasePath(), "esp8266_progress.json")); err != nil {
		t.Errorf("record file missing: %v", err)
	}
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	store, _ := NewStore(t.TempDir())

	if err := store.Delete(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}

	_ = store.Put(ctx, "k", []byte("{}"))
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, "k"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
}

func TestStore_InvalidKey(t *testing.T) {
	ctx := context.Background()
	store, _ := NewStore(t.TempDir())

	for _, key := range []string{"", "../escape", "a/b"} {
		if err := store.Put(ctx, key, []byte("{}")); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Put(%q) error = %v, want ErrInvalidKey", key, err)
		}
	}
}

func TestStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	store, _ := NewStore(t.TempDir())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Put(ctx, "k", []byte(`{"ok":true}`))
			_, _ = store.Get(ctx, "k")
		}()
	}
	wg.Wait()

	got, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != `{"ok":true}` {
		t.Errorf("Get() = %s", got)
	}
}
