//go:build integration

package redis_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/felixgeelhaar/academy/internal/storage"
	academyredis "github.com/felixgeelhaar/academy/internal/storage/redis"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns its address
func setupRedis(t *testing.T) (string, func()) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		testcontainers.TerminateContainer(container)
		t.Fatalf("failed to get host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		testcontainers.TerminateContainer(container)
		t.Fatalf("failed to get port: %v", err)
	}

	cleanup := func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}
	return fmt.Sprintf("%s:%s", host, port.Port()), cleanup
}

func TestIntegration_Store_PutGetDelete(t *testing.T) {
	addr, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()
	cfg := academyredis.DefaultConfig()
	cfg.Addr = addr

	store, err := academyredis.Open(ctx, cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer store.Close()

	if _, err := store.Get(ctx, "esp8266_progress"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
	if err := store.Put(ctx, "esp8266_progress", []byte(`{"total_xp":75}`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, err := store.Get(ctx, "esp8266_progress")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != `{"total_xp":75}` {
		t.Errorf("Get() = %s", got)
	}
	if err := store.Delete(ctx, "esp8266_progress"); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
}

func TestIntegration_Open_Unreachable(t *testing.T) {
	cfg := academyredis.DefaultConfig()
	cfg.Addr = "127.0.0.1:1"
	if _, err := academyredis.Open(context.Background(), cfg); err == nil {
		t.Error("expected error for unreachable server")
	}
}
