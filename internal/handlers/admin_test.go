package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/farm2market/internal/handlers"
	"github.com/example/farm2market/internal/models"
)

func TestListAllUsersBuyerStats(t *testing.T) {
	db := newTestDB(t)
	h := handlers.NewAdminHandler(db)

	app := fiber.New()
	app.Get("/api/admin/users", h.ListAllUsers)

	buyer := seedProfile(t, db, "+911234500010", "Ravi", models.RoleBuyer)
	farmer := seedProfile(t, db, "+911234500011", "Asha", models.RoleFarmer)
	crop := seedCrop(t, db, farmer.ID, 40, 100)

	for _, qty := range []float64{2, 3} {
		order := &models.Order{
			BuyerID:         buyer.ID,
			FarmerID:        farmer.ID,
			CropID:          crop.ID,
			QuantityKg:      qty,
			TotalPrice:      qty * crop.PricePerKg,
			Status:          models.OrderStatusPaid,
			DeliveryAddress: "12 Market Road",
		}
		require.NoError(t, db.Create(order).Error)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/admin/users", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		Success bool `json:"success"`
		Data    []struct {
			ID         uuid.UUID `json:"id"`
			Phone      *string   `json:"phone"`
			OrderCount int64     `json:"order_count"`
			TotalSpent float64   `json:"total_spent"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.Len(t, payload.Data, 2)

	for _, row := range payload.Data {
		switch row.ID {
		case buyer.ID:
			assert.Equal(t, int64(2), row.OrderCount)
			assert.Equal(t, 200.0, row.TotalSpent)
		case farmer.ID:
			assert.Zero(t, row.OrderCount)
			assert.Zero(t, row.TotalSpent)
		}
	}

	t.Run("aggregate failure surfaces as an error", func(t *testing.T) {
		require.NoError(t, db.Migrator().DropTable(&models.Order{}))

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/admin/users", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	})
}
