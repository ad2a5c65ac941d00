package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/academy/internal/storage"
)

func TestKVStore_PutGet(t *testing.T) {
	ctx := context.Background()
	store := NewKVStore(openTestDB(t))

	if _, err := store.Get(ctx, "esp8266_progress"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}

	if err := store.Put(ctx, "esp8266_progress", []byte(`{"total_xp":50}`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := store.Put(ctx, "esp8266_progress", []byte(`{"total_xp":125}`)); err != nil {
		t.Fatalf("second Put() error = %v", err)
	}

	got, err := store.Get(ctx, "esp8266_progress")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != `{"total_xp":125}` {
		t.Errorf("Get() = %s, want last write", got)
	}
}

func TestKVStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := NewKVStore(openTestDB(t))

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
