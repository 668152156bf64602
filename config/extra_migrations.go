package config

import (
	"fmt"

	"gorm.io/gorm"
)

// CreateUnconfirmedMeasuresPartialIndex indexes only the measures still waiting for
// confirmation. AutoMigrate cannot express a WHERE clause on an index.
func CreateUnconfirmedMeasuresPartialIndex(db *gorm.DB) error {
	err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_measures_unconfirmed
		ON measures (customer_code, measure_datetime)
		WHERE has_confirmed = false
	`).Error
	if err != nil {
		return fmt.Errorf("failed to create unconfirmed measures index: %w", err)
	}
	return nil
}
