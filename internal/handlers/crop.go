package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/farm2market/internal/middleware"
	"github.com/example/farm2market/internal/models"
	"github.com/example/farm2market/internal/utils"
)

// CropHandler manages crop listing endpoints.
type CropHandler struct {
	db *gorm.DB
}

// NewCropHandler constructs CropHandler.
func NewCropHandler(db *gorm.DB) *CropHandler {
	return &CropHandler{db: db}
}

// ListCrops returns available crops for the marketplace, with optional
// name/location search.
func (h *CropHandler) ListCrops(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Crop{}).Where("available = ?", true)

	if search := c.Query("search"); search != "" {
		pattern := "%" + search + "%"
		query = query.Where("name ILIKE ? OR location ILIKE ?", pattern, pattern)
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

// GetCrop returns a single crop.
func (h *CropHandler) GetCrop(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var crop models.Crop
	if err := h.db.First(&crop, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "crop not found")
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": crop})
}

// MyCrops returns the authenticated farmer's listings, including
// unavailable ones.
func (h *CropHandler) MyCrops(c *fiber.Ctx) error {
	profile, ok := middleware.GetCurrentProfile(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var crops []models.Crop
	if err := h.db.Where("farmer_id = ?", profile.ID).
		Order("created_at desc").
		Find(&crops).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": crops})
}

type cropRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	PricePerKg  float64 `json:"price_per_kg"`
	QuantityKg  float64 `json:"quantity_kg"`
	ImageURL    string  `json:"image_url"`
	Location    string  `json:"location"`
	Available   *bool   `json:"available"`
}

// CreateCrop lists a new crop for the authenticated farmer.
func (h *CropHandler) CreateCrop(c *fiber.Ctx) error {
	profile, ok := middleware.GetCurrentProfile(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req cropRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.Name == "" {
		return fiber.NewError(fiber.StatusBadRequest, "name is required")
	}
	if req.PricePerKg <= 0 || req.QuantityKg <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "price and quantity must be positive")
	}

	crop := models.Crop{
		FarmerID:    profile.ID,
		Name:        req.Name,
		Description: req.Description,
		PricePerKg:  req.PricePerKg,
		QuantityKg:  req.QuantityKg,
		ImageURL:    req.ImageURL,
		Location:    req.Location,
		Available:   true,
	}

	if err := h.db.Create(&crop).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": crop})
}

// UpdateCrop modifies one of the farmer's own listings.
func (h *CropHandler) UpdateCrop(c *fiber.Ctx) error {
	profile, ok := middleware.GetCurrentProfile(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var crop models.Crop
	if err := h.db.First(&crop, "id = ? AND farmer_id = ?", id, profile.ID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "crop not found")
		}
		return err
	}

	var req cropRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]interface{}{}
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Description != "" {
		updates["description"] = req.Description
	}
	if req.PricePerKg > 0 {
		updates["price_per_kg"] = req.PricePerKg
	}
	if req.QuantityKg > 0 {
		updates["quantity_kg"] = req.QuantityKg
	}
	if req.ImageURL != "" {
		updates["image_url"] = req.ImageURL
	}
	if req.Location != "" {
		updates["location"] = req.Location
	}
	if req.Available != nil {
		updates["available"] = *req.Available
	}
	if len(updates) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "no fields to update")
	}

	if err := h.db.Model(&crop).Updates(updates).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": crop})
}

// DeleteCrop removes one of the farmer's own listings.
func (h *CropHandler) DeleteCrop(c *fiber.Ctx) error {
	profile, ok := middleware.GetCurrentProfile(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	result := h.db.Where("id = ? AND farmer_id = ?", id, profile.ID).Delete(&models.Crop{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "crop not found")
	}

	return c.JSON(fiber.Map{"success": true, "message": "crop deleted"})
}
