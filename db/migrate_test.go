package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenWithMigrations(t *testing.T) {
	t.Run("successfully opens database and runs migrations", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "test.db")

		database, err := OpenWithMigrations(dbPath, nil)
		require.NoError(t, err)
		require.NotNil(t, database)
		defer database.Close()

		var exists int
		err = database.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_migrations'").Scan(&exists)
		require.NoError(t, err)
		assert.Equal(t, 1, exists, "schema_migrations table should exist after migrations")

		err = database.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='fetch_metadata'").Scan(&exists)
		require.NoError(t, err)
		assert.Equal(t, 1, exists, "fetch_metadata table should exist after migrations")
	})

	t.Run("migrations are idempotent across reopens", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "test.db")

		database, err := OpenWithMigrations(dbPath, nil)
		require.NoError(t, err)
		database.Close()

		// Second open must skip already-applied versions
		database, err = OpenWithMigrations(dbPath, nil)
		require.NoError(t, err)
		defer database.Close()

		var applied int
		err = database.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied)
		require.NoError(t, err)
		assert.Equal(t, 2, applied)
	})
}

func TestIsDatabaseClosed(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	database, err := OpenWithMigrations(dbPath, nil)
	require.NoError(t, err)
	require.NoError(t, database.Close())

	_, err = database.Exec("INSERT INTO schema_migrations (version) VALUES ('zzz')")
	require.Error(t, err)
	assert.True(t, IsDatabaseClosed(err))

	assert.False(t, IsDatabaseClosed(nil))
	assert.True(t, IsDatabaseClosed(ErrDatabaseClosed))
}
