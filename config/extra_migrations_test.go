package config

import (
	"testing"

	"meter-reading-backend/db/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMigrationsCreateMeasureIndexes(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, MigrateDatabase(db))
	require.NoError(t, CreateUnconfirmedMeasuresPartialIndex(db))
	// Running twice is a no-op.
	require.NoError(t, CreateUnconfirmedMeasuresPartialIndex(db))

	assert.True(t, db.Migrator().HasIndex(&models.Measure{}, "idx_measures_customer_type_month"))
	assert.True(t, db.Migrator().HasIndex(&models.Measure{}, "idx_measures_unconfirmed"))
}
