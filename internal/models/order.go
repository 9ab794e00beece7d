package models

import (
	"github.com/google/uuid"
)

// Order statuses. Allowed transitions: pending -> paid -> delivered, or any
// non-terminal state -> cancelled.
const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to string) bool {
	switch from {
	case OrderStatusPending:
		return to == OrderStatusPaid || to == OrderStatusCancelled
	case OrderStatusPaid:
		return to == OrderStatusDelivered || to == OrderStatusCancelled
	default:
		return false
	}
}

// Order records a purchase of a crop. TotalPrice is quantity times the
// crop's price per kg at order time and is never recomputed, even if the
// crop's price changes later.
type Order struct {
	BaseModel
	BuyerID          uuid.UUID `gorm:"type:uuid;index" json:"buyer_id"`
	FarmerID         uuid.UUID `gorm:"type:uuid;index" json:"farmer_id"`
	CropID           uuid.UUID `gorm:"type:uuid;index" json:"crop_id"`
	QuantityKg       float64   `json:"quantity_kg"`
	TotalPrice       float64   `json:"total_price"`
	Status           string    `gorm:"default:pending" json:"status"`
	DeliveryAddress  string    `json:"delivery_address"`
	GatewayOrderID   string    `json:"gateway_order_id"`
	GatewayPaymentID string    `json:"gateway_payment_id"`
}

// Transaction records a settled payment against an order.
type Transaction struct {
	BaseModel
	OrderID   uuid.UUID `gorm:"type:uuid;index" json:"order_id"`
	PaymentID string    `json:"payment_id"`
	Amount    float64   `json:"amount"`
	Status    string    `json:"status"`
}
