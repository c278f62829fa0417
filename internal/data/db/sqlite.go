package db

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yungbote/slidedeck-backend/internal/platform/logger"
)

// NewSQLiteService opens a single-file database. ":memory:" is accepted for
// tests and throwaway runs.
func NewSQLiteService(path string, logg *logger.Logger) (*Service, error) {
	serviceLog := logg.With("service", "SQLiteService")

	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
	}
	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %q: %w", path, err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	serviceLog.Info("opened", "path", path)
	return &Service{db: db, log: serviceLog}, nil
}
