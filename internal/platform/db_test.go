package platform

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.db")
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "whatever")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "a.db", want: "a.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"},
		{in: "file:a.db?mode=rwc", want: "file:a.db?mode=rwc&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"},
		{in: "a.db?_pragma=foreign_keys(0)", want: "a.db?_pragma=foreign_keys(0)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sqliteDSN(tt.in))
	}
}

func TestAutoMigrate_SQLite(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, DriverSQLite, openTestDB(t))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, AutoMigrate(db))
	// Running again is a no-op.
	require.NoError(t, AutoMigrate(db))

	version, dirty, err := SchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	for _, table := range []string{"suppliers", "brokers", "inventory", "historical_inventory", "ingestion_runs"} {
		var n int
		err := db.GetContext(ctx, &n, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table)
		require.NoError(t, err)
		assert.Equal(t, 1, n, "table %s", table)
	}
}

func TestHistoricalPrimaryKey(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, DriverSQLite, openTestDB(t))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, AutoMigrate(db))

	insert := `INSERT INTO historical_inventory (nc_code, snapshot_date, quantity) VALUES (?, ?, ?)`
	_, err = db.ExecContext(ctx, insert, "X001", "2024-01-01", 1)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, insert, "X001", "2024-01-01", 2)
	require.Error(t, err, "duplicate (nc_code, snapshot_date) must be rejected")

	_, err = db.ExecContext(ctx, insert, "X001", "20240102", 2)
	require.Error(t, err, "non-canonical dates must be rejected")
}
