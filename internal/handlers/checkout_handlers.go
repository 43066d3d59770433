package handlers

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"ieltsprep_app_echo/internal/middleware"
	"ieltsprep_app_echo/internal/models"
	"ieltsprep_app_echo/internal/services"
)

// CheckoutHandler exposes the checkout session store, the free-checkout
// completion path, and gateway initiation.
type CheckoutHandler struct {
	db           *gorm.DB
	checkout     *services.CheckoutService
	entitlements *services.EntitlementService
	payments     *services.PaymentService
}

func NewCheckoutHandler(db *gorm.DB, checkout *services.CheckoutService, entitlements *services.EntitlementService, payments *services.PaymentService) *CheckoutHandler {
	return &CheckoutHandler{
		db:           db,
		checkout:     checkout,
		entitlements: entitlements,
		payments:     payments,
	}
}

// CreateSession persists a cart as a pending checkout session
func (h *CheckoutHandler) CreateSession(c echo.Context) error {
	var req CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}

	userID := middleware.UserID(c)
	session, total, err := h.checkout.CreateSession(userID, req.Cart, req.CouponCode)
	if err != nil {
		if errors.Is(err, services.ErrEmptyCart) || errors.Is(err, services.ErrInvalidCartItem) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create checkout session")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"session_id": session.ID,
		"order_id":   session.OrderID,
		"total":      total,
	})
}

// GetSession returns a session to its owner, with the current display total
func (h *CheckoutHandler) GetSession(c echo.Context) error {
	sessionID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid session ID")
	}

	userID := middleware.UserID(c)
	session, err := h.checkout.GetSession(uint(sessionID), userID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "checkout session not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch checkout session")
	}

	total, _, _ := services.CartTotal(h.db, session.Cart, session.CouponCode, time.Now())

	return c.JSON(http.StatusOK, map[string]interface{}{
		"session": session,
		"total":   total,
	})
}

// CompleteFree settles a zero-cost session without touching the gateway
func (h *CheckoutHandler) CompleteFree(c echo.Context) error {
	sessionID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid session ID")
	}

	userID := middleware.UserID(c)
	err = h.entitlements.SettleFreeSession(c.Request().Context(), uint(sessionID), userID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "checkout session not found")
		}
		if errors.Is(err, services.ErrNotFree) {
			return echo.NewHTTPError(http.StatusBadRequest, "session total is not zero")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to complete checkout")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"success": true})
}

// Pay initiates a hosted-checkout transaction at the gateway, either for a
// pending session or as a mock-test pre-booking.
func (h *CheckoutHandler) Pay(c echo.Context) error {
	var req PayRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if (req.SessionID == nil) == (req.TestID == nil) {
		return echo.NewHTTPError(http.StatusBadRequest, "provide exactly one of session_id or test_id")
	}

	userID := middleware.UserID(c)
	customerName := req.CustomerName
	customerEmail := req.CustomerEmail
	if customerEmail == "" {
		customerEmail = middleware.UserEmail(c)
	}
	callbackURL := os.Getenv("PAYMENT_FINISH_URL")

	if req.SessionID != nil {
		session, err := h.checkout.GetSession(*req.SessionID, userID)
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "checkout session not found")
			}
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch checkout session")
		}

		total, _, _ := services.CartTotal(h.db, session.Cart, session.CouponCode, time.Now())
		if total <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "session is free, use the free checkout endpoint")
		}

		result, err := h.payments.InitiateSessionPayment(session, total, customerName, customerEmail, callbackURL)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadGateway, "failed to create gateway transaction: "+err.Error())
		}

		return c.JSON(http.StatusOK, map[string]interface{}{
			"token":        result.Token,
			"redirect_url": result.RedirectURL,
			"is_existing":  result.IsExisting,
		})
	}

	var test models.MockTest
	if err := h.db.Where("id = ? AND is_active = ?", *req.TestID, true).First(&test).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "mock test not found")
	}

	prebooking, result, err := h.payments.InitiatePreBookingPayment(userID, &test, customerName, customerEmail, callbackURL)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "failed to create gateway transaction: "+err.Error())
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"prebooking_id": prebooking.ID,
		"order_id":      prebooking.OrderID,
		"token":         result.Token,
		"redirect_url":  result.RedirectURL,
	})
}
