package handlers_test

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/farm2market/internal/config"
	"github.com/example/farm2market/internal/models"
	"github.com/example/farm2market/internal/services"
	"github.com/example/farm2market/internal/utils"
)

// newTestDB opens an in-memory sqlite database with the full schema.
// Every :memory: connection is a separate database, so the pool is
// pinned to a single connection.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Profile{},
		&models.Crop{},
		&models.Order{},
		&models.Transaction{},
		&models.ChatThread{},
		&models.Message{},
	))
	return db
}

func seedProfile(t *testing.T, db *gorm.DB, phone, name, role string) *models.Profile {
	t.Helper()

	profile := &models.Profile{Phone: &phone, Name: &name, Role: &role}
	require.NoError(t, db.Create(profile).Error)
	return profile
}

func seedCrop(t *testing.T, db *gorm.DB, farmerID uuid.UUID, pricePerKg, quantityKg float64) *models.Crop {
	t.Helper()

	crop := &models.Crop{
		FarmerID:   farmerID,
		Name:       "Tomatoes",
		PricePerKg: pricePerKg,
		QuantityKg: quantityKg,
		Location:   "Nashik",
		Available:  true,
	}
	require.NoError(t, db.Create(crop).Error)
	return crop
}

// bearerToken registers an identity session for the phone and returns a
// token the auth middleware accepts.
func bearerToken(t *testing.T, cfg *config.Config, identity *services.IdentityService, phone string) string {
	t.Helper()

	sess := identity.Register(phone)
	token, err := utils.GenerateToken(cfg.JWTSecret, sess.ID, phone, time.Hour)
	require.NoError(t, err)
	return token
}
