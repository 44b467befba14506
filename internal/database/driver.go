package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/shelfsync/internal/database/catalog"
)

// DriverName is the database/sql driver registered with the catalog's SQL
// functions on every connection.
const DriverName = "sqlite3_shelfsync"

// Single writer, many readers. Immediate transactions take the write lock up
// front instead of failing on upgrade.
const dsnParams = "_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_foreign_keys=on&_txlock=immediate"

var registerOnce sync.Once

func registerDriver() {
	registerOnce.Do(func() {
		sql.Register(DriverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				if err := conn.RegisterFunc("title_sort", catalog.TitleSort, true); err != nil {
					return fmt.Errorf("register title_sort: %w", err)
				}
				if err := conn.RegisterFunc("uuid4", func() string { return uuid.NewString() }, false); err != nil {
					return fmt.Errorf("register uuid4: %w", err)
				}
				return nil
			},
		})
	})
}

// DSN builds the connection string for a store file.
func DSN(path string) string {
	return path + "?" + dsnParams
}

// openGorm opens a store file through the registered driver.
func openGorm(path string, level logger.LogLevel) (*gorm.DB, error) {
	registerDriver()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := gorm.Open(sqlite.New(sqlite.Config{
		DriverName: DriverName,
		DSN:        DSN(path),
	}), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping %s: %w", path, err)
	}
	return db, nil
}

func closeGorm(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
