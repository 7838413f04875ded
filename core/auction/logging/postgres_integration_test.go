//go:build integration

package logging

import (
	"context"
	"fmt"
	"testing"
	"time"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kilianp07/parcelmas/core/factory"
)

func TestPostgresStore(t *testing.T) {
	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "fleet",
			"POSTGRES_PASSWORD": "fleet",
			"POSTGRES_DB":       "auctions",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("unable to start postgres: %v", err)
	}
	defer func() { _ = container.Terminate(ctx) }()
	host, _ := container.Host(ctx)
	port, _ := container.MappedPort(ctx, "5432")
	dsn := fmt.Sprintf("postgres://fleet:fleet@%s:%s/auctions?sslmode=disable", host, port.Port())

	store, err := NewStore(factory.ModuleConfig{Type: "postgres", Conf: map[string]any{"dsn": dsn}})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() { _ = store.Close() }()
	if _, ok := store.(*PostgresStore); !ok {
		t.Fatalf("expected PostgresStore, got %T", store)
	}
	exerciseStore(t, store)
}
