// Package db opens the relational store backing the catalog.
package db

import (
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultSQLiteFile is used when no DSN is configured.
const DefaultSQLiteFile = "darp.db"

// PoolConfig sizes the connection pool.
// Size connections are kept idle, up to Size+MaxOverflow may be open at once.
type PoolConfig struct {
	Size        int
	MaxOverflow int
}

// NewDBConnection connects to Postgres when dsn is a postgres url, otherwise to a SQLite file.
// An empty dsn opens DefaultSQLiteFile in the working directory.
func NewDBConnection(dsn string, pool PoolConfig) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}

	var dialector gorm.Dialector
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		dialector = postgres.Open(dsn)
	case dsn == "":
		dialector = sqlite.Open(sqliteDSN(DefaultSQLiteFile))
	default:
		dialector = sqlite.Open(sqliteDSN(strings.TrimPrefix(dsn, "sqlite://")))
	}

	conn, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if pool.Size > 0 {
		sqlDB.SetMaxIdleConns(pool.Size)
		sqlDB.SetMaxOpenConns(pool.Size + max(pool.MaxOverflow, 0))
	}
	return conn, nil
}

// sqliteDSN enables foreign keys so that tool rows follow their server on delete.
func sqliteDSN(path string) string {
	if strings.Contains(path, "_pragma=foreign_keys") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)"
}
