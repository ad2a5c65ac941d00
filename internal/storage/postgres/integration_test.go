//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/felixgeelhaar/academy/internal/storage"
	"github.com/felixgeelhaar/academy/internal/storage/postgres"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgres starts a PostgreSQL container and returns its DSN
func setupPostgres(t *testing.T) (string, func()) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "academy",
				"POSTGRES_PASSWORD": "academy",
				"POSTGRES_DB":       "academy",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start PostgreSQL container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		testcontainers.TerminateContainer(container)
		t.Fatalf("failed to get host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		testcontainers.TerminateContainer(container)
		t.Fatalf("failed to get port: %v", err)
	}

	cleanup := func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}
	dsn := fmt.Sprintf("postgres://academy:academy@%s:%s/academy?sslmode=disable", host, port.Port())
	return dsn, cleanup
}

func TestIntegration_Store_PutGetDelete(t *testing.T) {
	dsn, cleanup := setupPostgres(t)
	defer cleanup()

	ctx := context.Background()
	cfg := postgres.DefaultConfig()
	cfg.DSN = dsn

	store, err := postgres.Open(ctx, cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer store.Close()

	if _, err := store.Get(ctx, "esp8266_progress"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
	if err := store.Put(ctx, "esp8266_progress", []byte(`{"total_xp": 75}`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := store.Put(ctx, "esp8266_progress", []byte(`{"total_xp": 150}`)); err != nil {
		t.Fatalf("second Put() error = %v", err)
	}
	got, err := store.Get(ctx, "esp8266_progress")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != `{"total_xp": 150}` {
		t.Errorf("Get() = %s", got)
	}
	if err := store.Delete(ctx, "esp8266_progress"); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Errorf("Migrate() should be idempotent: %v", err)
	}
}
