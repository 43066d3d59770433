package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"ieltsprep_app_echo/internal/models"
)

// CatalogHandler serves the purchasable content catalog and its admin CRUD
type CatalogHandler struct {
	db *gorm.DB
}

func NewCatalogHandler(db *gorm.DB) *CatalogHandler {
	return &CatalogHandler{db: db}
}

// ListMockTests returns active mock tests, soonest first
func (h *CatalogHandler) ListMockTests(c echo.Context) error {
	var tests []models.MockTest
	if err := h.db.Where("is_active = ?", true).Order("scheduled_at asc").Find(&tests).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch mock tests")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"mock_tests": tests})
}

// ListPracticeModules returns active practice modules, optionally filtered
// by category
func (h *CatalogHandler) ListPracticeModules(c echo.Context) error {
	query := h.db.Where("is_active = ?", true)
	if category := c.QueryParam("category"); category != "" {
		query = query.Where("category = ?", category)
	}

	var modules []models.PracticeModule
	if err := query.Order("title asc").Find(&modules).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch practice modules")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"practice_modules": modules})
}

// CreateMockTest adds a mock test to the catalog (admin)
func (h *CatalogHandler) CreateMockTest(c echo.Context) error {
	var req MockTestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if req.Title == "" || req.Slug == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title and slug are required")
	}

	scheduledAt, err := time.Parse(time.RFC3339, req.ScheduledAt)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "scheduled_at must be RFC3339")
	}

	test := models.MockTest{
		Title:        req.Title,
		Slug:         req.Slug,
		ScheduledAt:  scheduledAt,
		Price:        req.Price,
		DurationDays: req.DurationDays,
		IsActive:     true,
	}
	if req.IsActive != nil {
		test.IsActive = *req.IsActive
	}
	if err := h.db.Create(&test).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create mock test")
	}
	return c.JSON(http.StatusOK, test)
}

// UpdateMockTest updates an existing mock test (admin)
func (h *CatalogHandler) UpdateMockTest(c echo.Context) error {
	testID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid mock test ID")
	}

	var test models.MockTest
	if err := h.db.First(&test, testID).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "mock test not found")
	}

	var req MockTestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}

	if req.Title != "" {
		test.Title = req.Title
	}
	if req.Slug != "" {
		test.Slug = req.Slug
	}
	if req.ScheduledAt != "" {
		scheduledAt, err := time.Parse(time.RFC3339, req.ScheduledAt)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "scheduled_at must be RFC3339")
		}
		test.ScheduledAt = scheduledAt
	}
	if req.Price > 0 {
		test.Price = req.Price
	}
	if req.DurationDays > 0 {
		test.DurationDays = req.DurationDays
	}
	if req.IsActive != nil {
		test.IsActive = *req.IsActive
	}

	if err := h.db.Save(&test).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update mock test")
	}
	return c.JSON(http.StatusOK, test)
}

// CreatePracticeModule adds a practice module to the catalog (admin)
func (h *CatalogHandler) CreatePracticeModule(c echo.Context) error {
	var req PracticeModuleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if req.Title == "" || req.Slug == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title and slug are required")
	}

	switch models.ModuleCategory(req.Category) {
	case models.ModuleCategoryListening, models.ModuleCategoryReading,
		models.ModuleCategoryWriting, models.ModuleCategorySpeaking:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown category")
	}

	module := models.PracticeModule{
		Title:        req.Title,
		Slug:         req.Slug,
		Category:     models.ModuleCategory(req.Category),
		Price:        req.Price,
		DurationDays: req.DurationDays,
		IsActive:     true,
	}
	if req.IsActive != nil {
		module.IsActive = *req.IsActive
	}
	if err := h.db.Create(&module).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create practice module")
	}
	return c.JSON(http.StatusOK, module)
}

// CreateCoupon adds a discount coupon (admin)
func (h *CatalogHandler) CreateCoupon(c echo.Context) error {
	var req CouponRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if req.Code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "code is required")
	}
	if req.DiscountPercent <= 0 || req.DiscountPercent > 100 {
		return echo.NewHTTPError(http.StatusBadRequest, "discount_percent must be in (0, 100]")
	}

	validUntil, err := time.Parse(time.RFC3339, req.ValidUntil)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "valid_until must be RFC3339")
	}

	coupon := models.Coupon{
		Code:            req.Code,
		DiscountPercent: req.DiscountPercent,
		IsActive:        true,
		ValidUntil:      validUntil,
		MaxUses:         req.MaxUses,
	}
	if err := h.db.Create(&coupon).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create coupon")
	}
	return c.JSON(http.StatusOK, coupon)
}
