package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSqliteDSN(t *testing.T) {
	assert.Equal(t, "darp.db?_pragma=foreign_keys(1)", sqliteDSN("darp.db"))
	assert.Equal(t, "f.db?cache=shared&_pragma=foreign_keys(1)", sqliteDSN("f.db?cache=shared"))
	assert.Equal(t, "f.db?_pragma=foreign_keys(1)", sqliteDSN("f.db?_pragma=foreign_keys(1)"))
}

func TestNewDBConnectionSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")

	conn, err := NewDBConnection("sqlite://"+path, PoolConfig{Size: 5, MaxOverflow: 2})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	defer sqlDB.Close()

	assert.Equal(t, 7, sqlDB.Stats().MaxOpenConnections)

	var fk int
	require.NoError(t, conn.Raw("PRAGMA foreign_keys").Scan(&fk).Error)
	assert.Equal(t, 1, fk)
}
