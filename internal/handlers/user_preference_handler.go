package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ieltsprep_app_echo/internal/middleware"
	"ieltsprep_app_echo/internal/models"
)

// UserPreferenceHandler lets a user control their notification channel
type UserPreferenceHandler struct {
	db *gorm.DB
}

func NewUserPreferenceHandler(db *gorm.DB) *UserPreferenceHandler {
	return &UserPreferenceHandler{db: db}
}

// GetPreference returns the acting user's notification preference, falling
// back to the email default when no row exists
func (h *UserPreferenceHandler) GetPreference(c echo.Context) error {
	userID := middleware.UserID(c)

	var pref models.UserNotifPreference
	err := h.db.Where("user_id = ?", userID).First(&pref).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusOK, map[string]interface{}{
				"channel": models.NotificationChannelEmail,
			})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch preference")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"channel": pref.Channel})
}

// UpdatePreference upserts the acting user's notification channel
func (h *UserPreferenceHandler) UpdatePreference(c echo.Context) error {
	var req struct {
		Channel models.NotificationChannel `json:"channel"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	switch req.Channel {
	case models.NotificationChannelEmail, models.NotificationChannelNone:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown channel")
	}

	pref := models.UserNotifPreference{
		UserID:  middleware.UserID(c),
		Channel: req.Channel,
	}
	err := h.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"channel", "updated_at"}),
	}).Create(&pref).Error
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update preference")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"channel": pref.Channel})
}
