package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/farm2market/internal/models"
	"github.com/example/farm2market/internal/utils"
)

// AdminHandler manages admin-only endpoints.
type AdminHandler struct {
	db *gorm.DB
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(db *gorm.DB) *AdminHandler {
	return &AdminHandler{db: db}
}

// DashboardStats returns aggregate statistics for the admin dashboard.
func (h *AdminHandler) DashboardStats(c *fiber.Ctx) error {
	var totalUsers int64
	if err := h.db.Model(&models.Profile{}).Count(&totalUsers).Error; err != nil {
		return err
	}

	// Users by role
	type roleCount struct {
		Role  string `json:"role"`
		Count int64  `json:"count"`
	}
	var roleCounts []roleCount
	if err := h.db.Model(&models.Profile{}).
		Select("role, count(*) as count").
		Where("role IS NOT NULL").
		Group("role").
		Scan(&roleCounts).Error; err != nil {
		return err
	}
	usersByRole := make(map[string]int64)
	for _, rc := range roleCounts {
		usersByRole[rc.Role] = rc.Count
	}

	var totalCrops int64
	if err := h.db.Model(&models.Crop{}).Count(&totalCrops).Error; err != nil {
		return err
	}

	var totalOrders int64
	if err := h.db.Model(&models.Order{}).Count(&totalOrders).Error; err != nil {
		return err
	}

	// Orders by status
	type statusCount struct {
		Status string `json:"status"`
		Count  int64  `json:"count"`
	}
	var statusCounts []statusCount
	if err := h.db.Model(&models.Order{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		return err
	}
	ordersByStatus := make(map[string]int64)
	for _, sc := range statusCounts {
		ordersByStatus[sc.Status] = sc.Count
	}

	// Total revenue (sum of total_price for non-cancelled orders)
	var totalRevenue float64
	if err := h.db.Model(&models.Order{}).
		Where("status != ?", models.OrderStatusCancelled).
		Select("COALESCE(SUM(total_price), 0)").
		Scan(&totalRevenue).Error; err != nil {
		return err
	}

	// Today's revenue
	var todayRevenue float64
	if err := h.db.Model(&models.Order{}).
		Where("status != ? AND created_at::date = CURRENT_DATE", models.OrderStatusCancelled).
		Select("COALESCE(SUM(total_price), 0)").
		Scan(&todayRevenue).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"total_users":      totalUsers,
			"users_by_role":    usersByRole,
			"total_crops":      totalCrops,
			"total_orders":     totalOrders,
			"total_revenue":    totalRevenue,
			"today_revenue":    todayRevenue,
			"orders_by_status": ordersByStatus,
		},
	})
}

// ListAllUsers returns all registered profiles with pagination and search,
// enriched with per-buyer order counts and totals.
func (h *AdminHandler) ListAllUsers(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Profile{})

	if search := c.Query("search"); search != "" {
		query = query.Where(
			"name ILIKE ? OR phone ILIKE ?",
			"%"+search+"%", "%"+search+"%",
		)
	}
	if role := c.Query("role"); role != "" {
		query = query.Where("role = ?", role)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var profiles []models.Profile
	if err := query.Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&profiles).Error; err != nil {
		return err
	}

	type buyerStats struct {
		BuyerID    string  `json:"buyer_id"`
		OrderCount int64   `json:"order_count"`
		TotalSpent float64 `json:"total_spent"`
	}

	var stats []buyerStats
	if err := h.db.Model(&models.Order{}).
		Select("buyer_id, count(*) as order_count, COALESCE(SUM(total_price), 0) as total_spent").
		Group("buyer_id").
		Scan(&stats).Error; err != nil {
		return err
	}

	statsMap := make(map[string]buyerStats)
	for _, s := range stats {
		statsMap[s.BuyerID] = s
	}

	type profileResponse struct {
		models.Profile
		OrderCount int64   `json:"order_count"`
		TotalSpent float64 `json:"total_spent"`
	}

	result := make([]profileResponse, len(profiles))
	for i, p := range profiles {
		result[i] = profileResponse{Profile: p}
		if s, ok := statsMap[p.ID.String()]; ok {
			result[i].OrderCount = s.OrderCount
			result[i].TotalSpent = s.TotalSpent
		}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    result,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// UpdateUser edits a profile's name, phone or role.
func (h *AdminHandler) UpdateUser(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid user id")
	}

	var req struct {
		Name  *string `json:"name"`
		Phone *string `json:"phone"`
		Role  *string `json:"role"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Role != nil && !models.ValidRole(*req.Role) {
		return fiber.NewError(fiber.StatusBadRequest, "invalid role")
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Role != nil {
		updates["role"] = *req.Role
	}
	if len(updates) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "nothing to update")
	}

	res := h.db.Model(&models.Profile{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "user not found")
	}

	var profile models.Profile
	if err := h.db.First(&profile, "id = ?", id).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": profile})
}

// DeleteUser removes a profile.
func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid user id")
	}

	res := h.db.Delete(&models.Profile{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "user not found")
	}
	return c.JSON(fiber.Map{"success": true})
}

// ListAllCrops returns every listing, including unavailable ones that the
// public catalog hides.
func (h *AdminHandler) ListAllCrops(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Crop{})

	if search := c.Query("search"); search != "" {
		query = query.Where("name ILIKE ? OR location ILIKE ?", "%"+search+"%", "%"+search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var crops []models.Crop
	if err := query.Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&crops).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    crops,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// UpdateAnyCrop edits a listing regardless of ownership.
func (h *AdminHandler) UpdateAnyCrop(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid crop id")
	}

	var req struct {
		Name       *string  `json:"name"`
		PricePerKg *float64 `json:"price_per_kg"`
		QuantityKg *float64 `json:"quantity_kg"`
		Available  *bool    `json:"available"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.PricePerKg != nil {
		if *req.PricePerKg <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "price must be positive")
		}
		updates["price_per_kg"] = *req.PricePerKg
	}
	if req.QuantityKg != nil {
		if *req.QuantityKg < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "quantity cannot be negative")
		}
		updates["quantity_kg"] = *req.QuantityKg
	}
	if req.Available != nil {
		updates["available"] = *req.Available
	}
	if len(updates) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "nothing to update")
	}

	res := h.db.Model(&models.Crop{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "crop not found")
	}

	var crop models.Crop
	if err := h.db.First(&crop, "id = ?", id).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": crop})
}

// DeleteAnyCrop removes a listing regardless of ownership.
func (h *AdminHandler) DeleteAnyCrop(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid crop id")
	}

	res := h.db.Delete(&models.Crop{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "crop not found")
	}
	return c.JSON(fiber.Map{"success": true})
}

// ListAllOrders returns all orders with pagination and status filtering.
func (h *AdminHandler) ListAllOrders(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Order{})

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

// RecentOrders returns the most recent 5 orders for the dashboard.
func (h *AdminHandler) RecentOrders(c *fiber.Ctx) error {
	var orders []models.Order
	if err := h.db.Order("created_at desc").
		Limit(5).
		Find(&orders).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": orders})
}

// UpdateAnyOrderStatus moves an order's status. Admins follow the same
// transition rules as participants.
func (h *AdminHandler) UpdateAnyOrderStatus(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid order id")
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	var order models.Order
	if err := h.db.First(&order, "id = ?", id).Error; err != nil {
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
