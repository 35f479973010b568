// Package platformtest provides a migrated throwaway database for tests.
package platformtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/shelfwatch/shelfwatch/internal/platform"
)

// NewDB opens a migrated SQLite database in a temporary directory.
// The database is closed when the test ends.
func NewDB(t testing.TB) *sqlx.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "shelfwatch.db")
	db, err := platform.Open(context.Background(), platform.DriverSQLite, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, platform.AutoMigrate(db))
	return db
}
