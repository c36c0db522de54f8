// Package testhelpers provides shared fixtures for darp tests.
package testhelpers

import (
	"fmt"
	"os"
	"testing"

	"github.com/darp-registry/darp/internal/migrations"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestSetup holds a migrated test database and its cleanup function.
type TestSetup struct {
	DB      *gorm.DB
	Cleanup func()
}

// CreateTestDB creates a migrated SQLite database in a temporary file.
// A file is used instead of :memory: so that every pooled connection sees the same data.
func CreateTestDB() (*gorm.DB, error) {
	f, err := os.CreateTemp("", "darp-test-*.db")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp db file: %w", err)
	}
	_ = f.Close()

	db, err := gorm.Open(sqlite.Open("file:"+f.Name()+"?_foreign_keys=on&_busy_timeout=5000"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open test db: %w", err)
	}
	if err := migrations.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate test db: %w", err)
	}
	return db, nil
}

// SetupTestDB creates a test database and fails the test if that is not possible.
func SetupTestDB(t *testing.T) *TestSetup {
	t.Helper()

	db, err := CreateTestDB()
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	return &TestSetup{
		DB: db,
		Cleanup: func() {
			sqlDB, err := db.DB()
			if err != nil {
				return
			}
			var path string
			_ = db.Raw("SELECT file FROM pragma_database_list WHERE name = 'main'").Scan(&path).Error
			_ = sqlDB.Close()
			if path != "" {
				_ = os.Remove(path)
			}
		},
	}
}
