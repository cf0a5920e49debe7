package clickhouse

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"narrative-lab/internal/storage/migrations"
)

// startContainer starts ClickHouse and returns a DSN for database db.
// The database itself is not created.
func startContainer(t *testing.T, db string) (string, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "clickhouse/clickhouse-server:24.1-alpine",
			ExposedPorts: []string{"9000/tcp"},
			WaitingFor: wait.ForAll(
				wait.ForLog("Application: Ready for connections").
					WithStartupTimeout(60*time.Second),
				wait.ForListeningPort("9000/tcp"),
			),
			Env: map[string]string{
				"CLICKHOUSE_USER":     "default",
				"CLICKHOUSE_PASSWORD": "",
			},
		},
		Started: true,
	})
	require.NoError(t, err, "start clickhouse container")

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	dsn := fmt.Sprintf("clickhouse://default@%s:%s/%s", host, port.Port(), db)
	return dsn, func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	}
}

// setupTestDB starts ClickHouse, creates the database and applies migrations.
func setupTestDB(t *testing.T) (*Conn, func()) {
	t.Helper()

	dsn, terminate := startContainer(t, "prices")
	ctx := context.Background()

	_, err := EnsureDatabase(ctx, dsn)
	require.NoError(t, err)

	conn, err := NewConn(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, migrations.RunClickhouseMigrations(ctx, conn))

	return conn, func() {
		conn.Close()
		terminate()
	}
}
