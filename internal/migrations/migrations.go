// Package migrations brings the catalog schema up to date.
package migrations

import (
	"fmt"

	"github.com/darp-registry/darp/internal/model"
	"gorm.io/gorm"
)

// serverNameIndex enforces case-insensitive uniqueness of server names.
// Both SQLite and Postgres accept expression indexes in this form.
const serverNameIndex = "CREATE UNIQUE INDEX IF NOT EXISTS idx_servers_name_lower ON servers (lower(name))"

// Migrate creates or updates the servers and tools tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.Server{}, &model.Tool{}); err != nil {
		return fmt.Errorf("auto migration failed: %w", err)
	}
	if err := db.Exec(serverNameIndex).Error; err != nil {
		return fmt.Errorf("failed to create server name index: %w", err)
	}
	return nil
}
