//go:build integration

package store

import (
	"context"
	"os"
	"strconv"
	"testing"

	"github.com/esp-pix/authserver/config"
	"github.com/esp-pix/authserver/internal/db"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/require"
)

func TestRepositories_Postgres(t *testing.T) {
	if os.Getenv("SKIP_DOCKER") == "1" {
		t.Skip("SKIP_DOCKER=1 set; skipping integration test")
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker not available: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker not available: %v", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=esppix",
			"POSTGRES_PASSWORD=esppix",
			"POSTGRES_DB=esppix_test",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Purge(resource) })

	port, err := strconv.Atoi(resource.GetPort("5432/tcp"))
	require.NoError(t, err)
	cfg := config.DatabaseConfig{
		Driver:   db.DriverPostgres,
		Host:     "localhost",
		Port:     port,
		User:     "esppix",
		Password: "esppix",
		DBName:   "esppix_test",
	}

	// migrations fail until postgres accepts connections
	require.NoError(t, pool.Retry(func() error {
		return db.MigrateUp(cfg)
	}))

	conn, err := db.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	exerciseRepositories(t, conn)

	require.NoError(t, db.MigrateDown(cfg))
}
