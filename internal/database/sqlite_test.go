package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := Open(Config{
		Path:    filepath.Join(t.TempDir(), "nested", "tours.db"),
		Migrate: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestOpenMigrates(t *testing.T) {
	conn := openTestDB(t)

	version, dirty, err := MigrateVersion(conn)
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	for _, table := range []string{"tours", "tour_samples", "tour_geo_parts"} {
		var name string
		err := conn.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		assert.NoError(t, err, table)
	}

	// A second run has nothing to do
	require.NoError(t, MigrateUp(conn))
}

func TestOpenWithoutMigrate(t *testing.T) {
	conn, err := Open(Config{Path: filepath.Join(t.TempDir(), "plain.db")})
	require.NoError(t, err)
	defer conn.Close()

	version, _, err := MigrateVersion(conn)
	require.NoError(t, err)
	assert.Zero(t, version)
}

func TestTransaction(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()

	insert := func(tx *sql.Tx, title string) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO tours (title, start_time) VALUES (?, 0)`, title)
		return err
	}
	count := func() int {
		var n int
		require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM tours`).Scan(&n))
		return n
	}

	require.NoError(t, Transaction(ctx, conn, func(tx *sql.Tx) error {
		return insert(tx, "kept")
	}))
	assert.Equal(t, 1, count())

	errAbort := errors.New("abort")
	err := Transaction(ctx, conn, func(tx *sql.Tx) error {
		require.NoError(t, insert(tx, "rolled back"))
		return errAbort
	})
	assert.ErrorIs(t, err, errAbort)
	assert.Equal(t, 1, count())

	assert.Panics(t, func() {
		Transaction(ctx, conn, func(tx *sql.Tx) error {
			require.NoError(t, insert(tx, "panicked"))
			panic("boom")
		})
	})
	assert.Equal(t, 1, count())
}
