package handlers

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/farm2market/internal/middleware"
	"github.com/example/farm2market/internal/models"
	"github.com/example/farm2market/internal/services"
	"github.com/example/farm2market/internal/utils"
)

// OrderHandler manages checkout and order endpoints.
type OrderHandler struct {
	db      *gorm.DB
	gateway *services.RazorpayService
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(db *gorm.DB, gateway *services.RazorpayService) *OrderHandler {
	return &OrderHandler{db: db, gateway: gateway}
}

type checkoutRequest struct {
	CropID          string  `json:"crop_id"`
	QuantityKg      float64 `json:"quantity_kg"`
	DeliveryAddress string  `json:"delivery_address"`
}

// Checkout validates the purchase and mints a gateway order for the client
// widget. When the gateway signals it is not configured, or its call fails,
// the purchase proceeds through the simulated-payment fallback and a paid
// order is recorded immediately. Total price is frozen at the crop's
// current price per kg.
func (h *OrderHandler) Checkout(c *fiber.Ctx) error {
	profile, ok := middleware.GetCurrentProfile(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if strings.TrimSpace(req.DeliveryAddress) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "delivery address is required")
	}
	if req.QuantityKg <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "quantity must be positive")
	}

	cropID, err := uuid.Parse(req.CropID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid crop id")
	}

	var crop models.Crop
	if err := h.db.First(&crop, "id = ?", cropID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "crop not found")
		}
		return err
	}

	if !crop.Available || req.QuantityKg > crop.QuantityKg {
		return fiber.NewError(fiber.StatusBadRequest, "insufficient stock")
	}

	totalPrice := crop.PricePerKg * req.QuantityKg

	gatewayOrder, err := h.gateway.CreateOrder(c.Context(), totalPrice, crop.ID, req.QuantityKg)
	if err != nil {
		if !errors.Is(err, services.ErrGatewayNotConfigured) {
			log.Printf("[Order] gateway order creation failed: %v", err)
		}
		// Simulated fallback: record a paid order without the widget.
		order, cerr := h.createPaidOrder(c, profile.ID, &crop, req,
			services.SimulatedOrderID(), services.SimulatedPaymentID())
		if cerr != nil {
			return cerr
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success":   true,
			"simulated": true,
			"data":      orderResponse(order),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"payment": fiber.Map{
			"key":              h.gateway.KeyID(),
			"gateway_order_id": gatewayOrder.ID,
			"amount":           gatewayOrder.Amount,
			"currency":         gatewayOrder.Currency,
		},
	})
}

type confirmRequest struct {
	CropID           string  `json:"crop_id"`
	QuantityKg       float64 `json:"quantity_kg"`
	DeliveryAddress  string  `json:"delivery_address"`
	GatewayOrderID   string  `json:"gateway_order_id"`
	GatewayPaymentID string  `json:"gateway_payment_id"`
}

// Confirm records the paid order after the client widget reports success.
func (h *OrderHandler) Confirm(c *fiber.Ctx) error {
	profile, ok := middleware.GetCurrentProfile(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req confirmRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.GatewayOrderID == "" || req.GatewayPaymentID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "payment references are required")
	}
	if strings.TrimSpace(req.DeliveryAddress) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "delivery address is required")
	}
	if req.QuantityKg <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "quantity must be positive")
	}

	cropID, err := uuid.Parse(req.CropID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid crop id")
	}

	var crop models.Crop
	if err := h.db.First(&crop, "id = ?", cropID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "crop not found")
		}
		return err
	}

	order, err := h.createPaidOrder(c, profile.ID, &crop, checkoutRequest{
		CropID:          req.CropID,
		QuantityKg:      req.QuantityKg,
		DeliveryAddress: req.DeliveryAddress,
	}, req.GatewayOrderID, req.GatewayPaymentID)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    orderResponse(order),
	})
}

// createPaidOrder inserts the paid order and its transaction row, then
// decrements crop stock. The stock update is not rolled back on failure;
// the paid order row is the source of truth.
func (h *OrderHandler) createPaidOrder(c *fiber.Ctx, buyerID uuid.UUID, crop *models.Crop, req checkoutRequest, gatewayOrderID, gatewayPaymentID string) (*models.Order, error) {
	order := models.Order{
		BuyerID:          buyerID,
		FarmerID:         crop.FarmerID,
		CropID:           crop.ID,
		QuantityKg:       req.QuantityKg,
		TotalPrice:       crop.PricePerKg * req.QuantityKg,
		Status:           models.OrderStatusPaid,
		DeliveryAddress:  strings.TrimSpace(req.DeliveryAddress),
		GatewayOrderID:   gatewayOrderID,
		GatewayPaymentID: gatewayPaymentID,
	}

	if err := h.db.Create(&order).Error; err != nil {
		return nil, err
	}

	txn := models.Transaction{
		OrderID:   order.ID,
		PaymentID: gatewayPaymentID,
		Amount:    order.TotalPrice,
		Status:    models.OrderStatusPaid,
	}
	if err := h.db.Create(&txn).Error; err != nil {
		log.Printf("[Order] transaction record failed for order %s: %v", order.ID, err)
	}

	remaining := crop.QuantityKg - req.QuantityKg
	if err := h.db.Model(&models.Crop{}).Where("id = ?", crop.ID).
		Updates(map[string]interface{}{
			"quantity_kg": remaining,
			"available":   remaining > 0,
		}).Error; err != nil {
		log.Printf("[Order] stock update failed for crop %s: %v", crop.ID, err)
	}

	return &order, nil
}

// ListOrders returns orders where the caller is buyer or farmer.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	profile, ok := middleware.GetCurrentProfile(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Order{}).
		Where("buyer_id = ? OR farmer_id = ?", profile.ID, profile.ID)

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var orders []models.Order
	if err := query.Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&orders).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    orders,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// GetOrder returns a single order the caller participates in.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	profile, ok := middleware.GetCurrentProfile(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var order models.Order
	if err := h.db.First(&order, "id = ? AND (buyer_id = ? OR farmer_id = ?)", id, profile.ID, profile.ID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus moves an order through its lifecycle. Only participants may
// update, and only along the allowed transitions.
func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	profile, ok := middleware.GetCurrentProfile(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req updateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	var order models.Order
	if err := h.db.First(&order, "id = ? AND (buyer_id = ? OR farmer_id = ?)", id, profile.ID, profile.ID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return err
	}

	if !models.CanTransition(order.Status, req.Status) {
		return fiber.NewError(fiber.StatusBadRequest, "invalid status transition")
	}

	if err := h.db.Model(&order).Update("status", req.Status).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

func orderResponse(order *models.Order) fiber.Map {
	return fiber.Map{
		"id":                 order.ID,
		"crop_id":            order.CropID,
		"quantity_kg":        order.QuantityKg,
		"total_price":        order.TotalPrice,
		"status":             order.Status,
		"gateway_order_id":   order.GatewayOrderID,
		"gateway_payment_id": order.GatewayPaymentID,
	}
}
