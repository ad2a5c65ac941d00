package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// flakyKV fails the first failures calls, then delegates to Memory
type flakyKV struct {
	mu       sync.Mutex
	failures int
	calls    int
	inner    *Memory
}

var errFlaky = errors.New("connection reset")

func (f *flakyKV) fail() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return true
	}
	return false
}

func (f *flakyKV) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *flakyKV) Get(ctx context.Context, key string) ([]byte, error) {
	if f.fail() {
		return nil, errFlaky
	}
	return f.inner.Get(ctx, key)
}

func (f *flakyKV) Put(ctx context.Context, key string, value []byte) error {
	if f.fail() {
		return errFlaky
	}
	return f.inner.Put(ctx, key, value)
}

func (f *flakyKV) Delete(ctx context.Context, key string) error {
	if f.fail() {
		return errFlaky
	}
	return f.inner.Delete(ctx, key)
}

func testResilientConfig() ResilientConfig {
	cfg := DefaultResilientConfig()
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = 5 * time.Millisecond
	return cfg
}

func TestResilientKV_RetriesTransientFailures(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyKV{failures: 2, inner: NewMemory()}
	kv := NewResilientKV(flaky, "test", testResilientConfig())

	if err := kv.Put(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if flaky.callCount() != 3 {
		t.Errorf("calls = %d, want 3", flaky.callCount())
	}

	got, err := kv.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != "v" {
		t.Errorf("Get() = %s, want v", got)
	}
}

func TestResilientKV_NotFoundIsNotRetried(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyKV{inner: NewMemory()}
	kv := NewResilientKV(flaky, "test", testResilientConfig())

	for i := 0; i < 5; i++ {
		if _, err := kv.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Get() error = %v, want ErrNotFound", err)
		}
	}
	if flaky.callCount() != 5 {
		t.Errorf("calls = %d, want 5", flaky.callCount())
	}
	if err := kv.Delete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}

func TestResilientKV_PersistentFailure(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyKV{failures: 1000, inner: NewMemory()}
	kv := NewResilientKV(flaky, "test", testResilientConfig())

	for i := 0; i < 3; i++ {
		if err := kv.Put(ctx, "k", []byte("v")); err == nil {
			t.Fatal("Put() should fail while the backend is down")
		}
	}
	before := flaky.callCount()

	if err := kv.Put(ctx, "k", []byte("v")); err == nil {
		t.Fatal("Put() should fail while the breaker is open")
	}
	if flaky.callCount() != before {
		t.Errorf("open breaker should not reach the backend: calls %d -> %d", before, flaky.callCount())
	}
}
