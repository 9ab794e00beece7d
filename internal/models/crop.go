package models

import (
	"github.com/google/uuid"
)

// Crop is a produce listing owned by a farmer.
type Crop struct {
	BaseModel
	FarmerID    uuid.UUID `gorm:"type:uuid;index" json:"farmer_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PricePerKg  float64   `json:"price_per_kg"`
	QuantityKg  float64   `json:"quantity_kg"`
	ImageURL    string    `json:"image_url"`
	Location    string    `json:"location"`
	Available   bool      `gorm:"default:true" json:"available"`
}
