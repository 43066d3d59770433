package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ieltsprep_app_echo/internal/middleware"
	"ieltsprep_app_echo/internal/models"
	"ieltsprep_app_echo/internal/services"
)

const leaderboardCacheTTL = time.Minute

// LeaderboardEntry is one row of a mock-test leaderboard
type LeaderboardEntry struct {
	UserName  string  `json:"user_name"`
	BandScore float64 `json:"band_score"`
}

// ResultHandler publishes band scores and serves leaderboards
type ResultHandler struct {
	db    *gorm.DB
	cache *services.RedisCache
}

func NewResultHandler(db *gorm.DB, cache *services.RedisCache) *ResultHandler {
	return &ResultHandler{db: db, cache: cache}
}

// PublishResult records (or replaces) a user's published band score for a
// mock test (admin)
func (h *ResultHandler) PublishResult(c echo.Context) error {
	var req PublishResultRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if req.BandScore < 0 || req.BandScore > 9 {
		return echo.NewHTTPError(http.StatusBadRequest, "band_score must be between 0 and 9")
	}

	var test models.MockTest
	if err := h.db.First(&test, req.MockTestID).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "mock test not found")
	}

	result := models.TestResult{
		UserID:      req.UserID,
		MockTestID:  req.MockTestID,
		BandScore:   req.BandScore,
		IsPublished: true,
	}
	err := h.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "mock_test_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"band_score", "is_published", "updated_at"}),
	}).Create(&result).Error
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to publish result")
	}

	// Drop the cached leaderboard so the new score shows up immediately
	if h.cache != nil {
		_ = h.cache.Delete(c.Request().Context(), leaderboardCacheKey(req.MockTestID))
	}

	return c.JSON(http.StatusOK, result)
}

// Leaderboard returns the top published band scores for a mock test,
// cached briefly in Redis
func (h *ResultHandler) Leaderboard(c echo.Context) error {
	testID, err := strconv.ParseUint(c.Param("testID"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid mock test ID")
	}

	entries, err := services.GetOrSet(h.cache, c.Request().Context(),
		leaderboardCacheKey(uint(testID)), leaderboardCacheTTL,
		func() ([]LeaderboardEntry, error) {
			var entries []LeaderboardEntry
			err := h.db.Model(&models.TestResult{}).
				Select("users.name as user_name, test_results.band_score").
				Joins("JOIN users ON users.id = test_results.user_id").
				Where("test_results.mock_test_id = ? AND test_results.is_published = ?", testID, true).
				Order("test_results.band_score desc").
				Limit(20).
				Scan(&entries).Error
			return entries, err
		})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch leaderboard")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"leaderboard": entries})
}

// MyResults lists the acting user's published results
func (h *ResultHandler) MyResults(c echo.Context) error {
	userID := middleware.UserID(c)

	var results []models.TestResult
	err := h.db.Where("user_id = ? AND is_published = ?", userID, true).
		Preload("MockTest").Order("created_at desc").Find(&results).Error
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch results")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"results": results})
}

func leaderboardCacheKey(testID uint) string {
	return fmt.Sprintf("leaderboard:%d", testID)
}
