package database

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/finsuite/brokerage-api/internal/types"
)

// NewDatabase initializes and returns a new GORM DB connection at the given
// path and migrates the back-office schema.
func NewDatabase(path string) (*gorm.DB, error) {
	if path == "" {
		path = "brokerage.db"
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// Migrate applies the schema. Exposed separately so tests can migrate an
// in-memory database.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.Customer{},
		&types.Portfolio{},
		&types.Wallet{},
		&types.WalletTransaction{},
		&types.Order{},
		&types.StockTransaction{},
		&types.IdempotencyRecord{},
	)
}
