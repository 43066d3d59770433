package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"ieltsprep_app_echo/internal/middleware"
	"ieltsprep_app_echo/internal/models"
)

// EntitlementHandler answers "what do I own" and "may I open this" queries.
// Access checks read entitlement rows directly; nothing is cached in
// process, so a settlement is visible on the next request.
type EntitlementHandler struct {
	db *gorm.DB
}

func NewEntitlementHandler(db *gorm.DB) *EntitlementHandler {
	return &EntitlementHandler{db: db}
}

// MyPurchases lists the acting user's purchases, newest first
func (h *EntitlementHandler) MyPurchases(c echo.Context) error {
	userID := middleware.UserID(c)

	var purchases []models.Purchase
	err := h.db.Where("user_id = ? AND status = ?", userID, models.PurchaseStatusCompleted).
		Order("created_at desc").Find(&purchases).Error
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch purchases")
	}

	var subscription models.Subscription
	var active *models.Subscription
	err = h.db.Where("user_id = ? AND status = ? AND expires_at > ?",
		userID, models.SubscriptionStatusActive, time.Now()).
		Order("expires_at desc").First(&subscription).Error
	if err == nil {
		active = &subscription
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch subscription")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"purchases":    purchases,
		"subscription": active,
	})
}

// CheckAccess reports whether the acting user holds an unexpired entitlement
// for one item, addressed by type and slug
func (h *EntitlementHandler) CheckAccess(c echo.Context) error {
	itemType := models.ItemType(c.Param("itemType"))
	slug := c.Param("slug")

	switch itemType {
	case models.ItemTypePracticeModule, models.ItemTypeMockTest, models.ItemTypeVocabulary:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown item type")
	}

	userID := middleware.UserID(c)
	now := time.Now()

	// A purchase can reference the item either by slug or by the content
	// row's id; resolve the id so both forms are honored.
	var itemID *uint
	switch itemType {
	case models.ItemTypeMockTest:
		var test models.MockTest
		if err := h.db.Where("slug = ?", slug).First(&test).Error; err == nil {
			itemID = &test.ID
		}
	case models.ItemTypePracticeModule:
		var module models.PracticeModule
		if err := h.db.Where("slug = ?", slug).First(&module).Error; err == nil {
			itemID = &module.ID
		}
	}

	query := h.db.Model(&models.Purchase{}).
		Where("user_id = ? AND item_type = ? AND status = ? AND expires_at > ?",
			userID, itemType, models.PurchaseStatusCompleted, now)
	if itemID != nil {
		query = query.Where("item_slug = ? OR item_id = ?", slug, *itemID)
	} else {
		query = query.Where("item_slug = ?", slug)
	}

	var purchase models.Purchase
	err := query.Order("expires_at desc").First(&purchase).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusOK, map[string]interface{}{"has_access": false})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to check access")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"has_access": true,
		"expires_at": purchase.ExpiresAt,
	})
}

// MyRegistrations lists the acting user's mock-test registrations
func (h *EntitlementHandler) MyRegistrations(c echo.Context) error {
	userID := middleware.UserID(c)

	var registrations []models.Registration
	err := h.db.Where("user_id = ?", userID).Preload("MockTest").
		Order("created_at desc").Find(&registrations).Error
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch registrations")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"registrations": registrations})
}
