package progress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/academy/internal/config"
	"github.com/felixgeelhaar/academy/internal/storage"
)

// brokenKV fails every call
type brokenKV struct {
	gets, puts int
}

var errBroken = errors.New("disk on fire")

func (b *brokenKV) Get(context.Context, string) ([]byte, error) {
	b.gets++
	return nil, errBroken
}

func (b *brokenKV) Put(context.Context, string, []byte) error {
	b.puts++
	return errBroken
}

func (b *brokenKV) Delete(context.Context, string) error {
	return errBroken
}

var fixedNow = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func newTestStore(kv storage.KV) (*Store, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	return NewStore(kv, "memory", "1.1", WithLogger(logger), WithClock(func() time.Time { return fixedNow })), &buf
}

func TestStore_LoadDefault(t *testing.T) {
	store, _ := newTestStore(storage.NewMemory())

	p := store.Load(context.Background())
	if p.CurrentLevel != 1 || p.TotalXP != 0 || p.CurrentLesson != "1.1" {
		t.Errorf("Load() = %+v, want defaults", p)
	}
	if p.StreakDays != 0 || p.LearningPath != "beginner" {
		t.Errorf("Load() = %+v, want streak 0 and beginner path", p)
	}
	if !p.LastActivity.Equal(fixedNow) {
		t.Errorf("LastActivity = %v, want %v", p.LastActivity, fixedNow)
	}
}

func TestStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	store, _ := newTestStore(kv)

	p := store.Default()
	p.MarkCompleted("1.1")
	p.AddBadge("first-hello")
	p.AddXP(75)
	p.CurrentLesson = "1.2"
	if err := store.Save(ctx, p); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	raw, err := kv.Get(ctx, Key)
	if err != nil {
		t.Fatalf("record not stored under %s: %v", Key, err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("stored record is not JSON: %v", err)
	}
	for _, name := range []string{"current_level", "total_xp", "completed_lessons", "current_lesson", "streak_days", "badges_earned", "learning_path", "last_activity"} {
		if _, ok := fields[name]; !ok {
			t.Errorf("stored record missing %q", name)
		}
	}

	loaded := store.Load(ctx)
	if loaded.TotalXP != 75 || loaded.CurrentLesson != "1.2" {
		t.Errorf("Load() = %+v", loaded)
	}
	if !loaded.HasCompleted("1.1") || !loaded.HasBadge("first-hello") {
		t.Errorf("Load() lost sets: %+v", loaded)
	}

	if err := store.Save(ctx, loaded); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}
	again, _ := kv.Get(ctx, Key)
	if !bytes.Equal(raw, again) {
		t.Error("saving an unchanged record should be idempotent")
	}
}

func TestStore_InvalidRecordFallsBackToDefault(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "{{{"},
		{"wrong shape", `{"total_xp":"lots"}`},
		{"negative xp", `{"current_level":1,"total_xp":-5,"current_lesson":"1.1"}`},
		{"zero level", `{"current_level":0,"total_xp":0,"current_lesson":"1.1"}`},
		{"no current lesson", `{"current_level":1,"total_xp":0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			kv := storage.NewMemory()
			_ = kv.Put(ctx, Key, []byte(tt.data))
			store, logs := newTestStore(kv)

			p := store.Load(ctx)
			if p.TotalXP != 0 || p.CurrentLesson != "1.1" {
				t.Errorf("Load() = %+v, want defaults", p)
			}
			if !strings.Contains(logs.String(), "invalid") {
				t.Errorf("expected a warning, got %q", logs.String())
			}
			if store.Degraded() {
				t.Error("an invalid record should not degrade the store")
			}
		})
	}
}

func TestStore_LoadNormalises(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	_ = kv.Put(ctx, Key, []byte(`{"current_level":9,"total_xp":250,"completed_lessons":["1.1","1.1"],"current_lesson":"1.2","badges_earned":null}`))
	store, _ := newTestStore(kv)

	p := store.Load(ctx)
	if p.CurrentLevel != 2 {
		t.Errorf("CurrentLevel = %d, want 2", p.CurrentLevel)
	}
	if len(p.CompletedLessons) != 1 {
		t.Errorf("CompletedLessons = %v, want deduplicated", p.CompletedLessons)
	}
	if p.BadgesEarned == nil {
		t.Error("BadgesEarned should be non-nil")
	}
}

func TestStore_DegradesToMemory(t *testing.T) {
	ctx := context.Background()
	broken := &brokenKV{}
	store, logs := newTestStore(broken)

	p := store.Load(ctx)
	if p.CurrentLesson != "1.1" {
		t.Errorf("Load() = %+v, want defaults", p)
	}
	if !store.Degraded() {
		t.Fatal("store should degrade after a backend failure")
	}
	if !strings.Contains(store.Backend(), "degraded") {
		t.Errorf("Backend() = %q", store.Backend())
	}
	if !strings.Contains(logs.String(), "progress storage unavailable") {
		t.Errorf("expected degradation warning, got %q", logs.String())
	}

	p.AddXP(50)
	if err := store.Save(ctx, p); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if broken.puts != 0 {
		t.Errorf("degraded store should not write to the broken backend, puts = %d", broken.puts)
	}
	if got := store.Load(ctx); got.TotalXP != 50 {
		t.Errorf("Load() after degraded save = %d XP, want 50", got.TotalXP)
	}
}

func TestStore_SaveFailureDegrades(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(&writeOnlyBroken{inner: storage.NewMemory()})

	p := store.Default()
	p.AddXP(10)
	if err := store.Save(ctx, p); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !store.Degraded() {
		t.Error("store should degrade after a failed write")
	}
	if got := store.Load(ctx); got.TotalXP != 10 {
		t.Errorf("Load() = %d XP, want 10", got.TotalXP)
	}
}

type writeOnlyBroken struct {
	inner *storage.Memory
}

func (w *writeOnlyBroken) Get(ctx context.Context, key string) ([]byte, error) {
	return w.inner.Get(ctx, key)
}

func (w *writeOnlyBroken) Put(context.Context, string, []byte) error {
	return errBroken
}

func (w *writeOnlyBroken) Delete(ctx context.Context, key string) error {
	return w.inner.Delete(ctx, key)
}

func TestStore_Reset(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(storage.NewMemory())

	p := store.Default()
	p.AddXP(100)
	_ = store.Save(ctx, p)

	if err := store.Reset(ctx); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if err := store.Reset(ctx); err != nil {
		t.Fatalf("second Reset() error = %v", err)
	}
	if got := store.Load(ctx); got.TotalXP != 0 {
		t.Errorf("Load() after reset = %d XP, want 0", got.TotalXP)
	}
}

func TestDecode(t *testing.T) {
	p, err := Decode([]byte(`{"current_level":1,"total_xp":0,"current_lesson":"1.1"}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if p.CompletedLessons == nil {
		t.Error("CompletedLessons should be non-nil")
	}

	if _, err := Decode([]byte(`[]`)); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("Decode([]) error = %v, want ErrInvalidRecord", err)
	}
}

// ctxKV fails like a network backend when the caller's context is done
type ctxKV struct {
	inner *storage.Memory
}

func (c ctxKV) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.inner.Get(ctx, key)
}

func (c ctxKV) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.inner.Put(ctx, key, value)
}

func (c ctxKV) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.inner.Delete(ctx, key)
}

func TestStore_CancelledCallerDoesNotDegrade(t *testing.T) {
	kv := ctxKV{inner: storage.NewMemory()}
	store, _ := newTestStore(kv)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	p := store.Default()
	if err := store.Save(cancelled, p); !errors.Is(err, context.Canceled) {
		t.Errorf("Save() with cancelled ctx error = %v, want context.Canceled", err)
	}
	_ = store.Load(cancelled)
	if store.Degraded() {
		t.Fatal("a cancelled caller should not degrade the store")
	}

	p.AddXP(75)
	if err := store.Save(context.Background(), p); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := kv.inner.Get(context.Background(), Key); err != nil {
		t.Errorf("record should reach the backend, got %v", err)
	}
}

func TestStore_SQLiteKeepsProgressAfterCancelledSave(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultLocalConfig().Storage
	cfg.Backend = config.BackendSQLite
	cfg.SQLite.Path = filepath.Join(dir, "academy.db")

	b, err := OpenBackend(context.Background(), cfg, dir, slog.Default())
	if err != nil {
		t.Fatalf("OpenBackend() error = %v", err)
	}
	store := NewStore(b.KV, b.Name, "1.1")

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	p := store.Default()
	_ = store.Save(cancelled, p)

	p.AddXP(75)
	if err := store.Save(context.Background(), p); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if store.Degraded() {
		t.Errorf("Backend() = %q, want sqlite", store.Backend())
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := OpenBackend(context.Background(), cfg, dir, slog.Default())
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	got := NewStore(reopened.KV, reopened.Name, "1.1").Load(context.Background())
	if got.TotalXP != 75 {
		t.Errorf("TotalXP after restart = %d, want 75", got.TotalXP)
	}
}
