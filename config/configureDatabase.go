package config

import (
	"fmt"
	"time"

	"meter-reading-backend/db/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// allModels defines all models that should be migrated
var allModels = []interface{}{
	&models.Measure{},
}

func ConfigureDatabase(cfg DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=%s",
		cfg.Host, cfg.User, cfg.Password, cfg.Name, cfg.Port, cfg.TimeZone,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("[DB-CONNECT] failed to connect to database: %w", err)
	}

	if err := MigrateDatabase(db); err != nil {
		return nil, err
	}
	if err := CreateUnconfirmedMeasuresPartialIndex(db); err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("[DB-POOL] failed to get underlying DB connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(30)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(1 * time.Hour)

	Logger.Info("[DB-STATUS] Database setup complete",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Name),
	)
	return db, nil
}

// MigrateDatabase creates or updates every table in allModels, including the
// composite unique index that allows one measure per customer, type and month.
func MigrateDatabase(db *gorm.DB) error {
	if err := db.AutoMigrate(allModels...); err != nil {
		return fmt.Errorf("failed to migrate tables: %w", err)
	}
	Logger.Info("Tables migrated successfully")
	return nil
}
