package database

import (
	"fmt"
	"log"

	"gorm.io/gorm/logger"

	"github.com/mrlokans/shelfsync/internal/database/catalog"
)

// BootstrapCatalog creates an empty catalog at path. The connection manager never
// does this on its own; it is an explicit administrative step.
func BootstrapCatalog(path string) error {
	db, err := openGorm(path, logger.Warn)
	if err != nil {
		return err
	}
	defer closeGorm(db)

	for _, stmt := range catalog.SchemaStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("bootstrap catalog: %w", err)
		}
	}
	log.Printf("Catalog initialized at %s", path)
	return nil
}
