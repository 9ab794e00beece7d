package models_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/example/farm2market/internal/models"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{models.OrderStatusPending, models.OrderStatusPaid, true},
		{models.OrderStatusPending, models.OrderStatusCancelled, true},
		{models.OrderStatusPending, models.OrderStatusDelivered, false},
		{models.OrderStatusPaid, models.OrderStatusDelivered, true},
		{models.OrderStatusPaid, models.OrderStatusCancelled, true},
		{models.OrderStatusPaid, models.OrderStatusPending, false},
		{models.OrderStatusDelivered, models.OrderStatusCancelled, false},
		{models.OrderStatusDelivered, models.OrderStatusPaid, false},
		{models.OrderStatusCancelled, models.OrderStatusPending, false},
		{models.OrderStatusCancelled, models.OrderStatusPaid, false},
		{"bogus", models.OrderStatusPaid, false},
	}

	for _, tc := range cases {
		assert.Equalf(t, tc.want, models.CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestOtherParty(t *testing.T) {
	buyerID, farmerID := uuid.New(), uuid.New()
	thread := &models.ChatThread{BuyerID: buyerID, FarmerID: farmerID}

	assert.Equal(t, buyerID, thread.OtherParty(farmerID))
	assert.Equal(t, farmerID, thread.OtherParty(buyerID))
}

func TestProfileComplete(t *testing.T) {
	name := "Asha"
	role := models.RoleBuyer
	empty := ""

	assert.True(t, (&models.Profile{Name: &name, Role: &role}).Complete())
	assert.False(t, (&models.Profile{}).Complete())
	assert.False(t, (&models.Profile{Name: &name}).Complete())
	assert.False(t, (&models.Profile{Name: &empty, Role: &role}).Complete())
}

func TestValidRole(t *testing.T) {
	assert.True(t, models.ValidRole(models.RoleAdmin))
	assert.True(t, models.ValidRole(models.RoleFarmer))
	assert.True(t, models.ValidRole(models.RoleBuyer))
	assert.False(t, models.ValidRole("wholesaler"))
	assert.False(t, models.ValidRole(""))
}
