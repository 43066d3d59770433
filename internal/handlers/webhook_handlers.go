package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/midtrans/midtrans-go/coreapi"
	"gorm.io/gorm"

	"ieltsprep_app_echo/internal/models"
	"ieltsprep_app_echo/internal/services"
)

// TransactionVerifier is the slice of the gateway client the webhook needs.
// The inbound payload is never trusted; only this server-to-server check
// decides whether anything settles.
type TransactionVerifier interface {
	CheckTransaction(orderID string) (*coreapi.TransactionStatusResponse, error)
}

// WebhookHandler receives payment notifications from Midtrans. The endpoint
// is unauthenticated by design; trust comes from re-verification.
type WebhookHandler struct {
	db           *gorm.DB
	verifier     TransactionVerifier
	entitlements *services.EntitlementService
}

func NewWebhookHandler(db *gorm.DB, verifier TransactionVerifier, entitlements *services.EntitlementService) *WebhookHandler {
	return &WebhookHandler{db: db, verifier: verifier, entitlements: entitlements}
}

// MidtransCallback handles gateway notifications. Outcomes:
//   - verified and settled (or duplicate delivery)  -> 200 {message}
//   - verified but no matching local order          -> 200 {message} (ack)
//   - deny/expire/cancel                            -> 200, order marked
//   - verification call failed                      -> 502 {error}, the
//     gateway's own retry redelivers
func (h *WebhookHandler) MidtransCallback(c echo.Context) error {
	var payload map[string]interface{}
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}

	orderID, _ := payload["order_id"].(string)
	if orderID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing order_id")
	}
	payloadStatus, _ := payload["transaction_status"].(string)

	// Audit record first, before any verification or dispatch
	rawPayload, _ := json.Marshal(payload)
	history := models.PaymentCallbackHistory{
		PaymentGateway:    models.PaymentGatewayMidtrans,
		OrderID:           orderID,
		TransactionStatus: payloadStatus,
		Metadata:          rawPayload,
	}
	if err := h.db.Create(&history).Error; err != nil {
		c.Logger().Errorf("failed to record callback history: %v", err)
	}

	statusResp, err := h.verifier.CheckTransaction(orderID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "payment verification failed")
	}

	switch statusResp.TransactionStatus {
	case "capture":
		if statusResp.FraudStatus != "accept" {
			return c.JSON(http.StatusOK, map[string]string{"message": "transaction held for review"})
		}
		return h.settle(c, orderID, statusResp)
	case "settlement":
		return h.settle(c, orderID, statusResp)
	case "deny", "expire", "cancel":
		if err := h.entitlements.MarkOrderCanceled(c.Request().Context(), orderID); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to record cancellation")
		}
		return c.JSON(http.StatusOK, map[string]string{"message": "transaction canceled"})
	default:
		// pending and friends: nothing to do yet
		return c.JSON(http.StatusOK, map[string]string{"message": "transaction not settled yet"})
	}
}

func (h *WebhookHandler) settle(c echo.Context, orderID string, statusResp *coreapi.TransactionStatusResponse) error {
	ctx := c.Request().Context()
	grossAmount, _ := strconv.ParseFloat(statusResp.GrossAmount, 64)
	paymentRef := statusResp.TransactionID

	var err error
	switch services.OrderKindOf(orderID) {
	case services.OrderKindSession:
		err = h.entitlements.SettlePaidSessionByOrderID(ctx, orderID, grossAmount, paymentRef)
	case services.OrderKindPurchase:
		err = h.entitlements.SettlePaidPurchase(ctx, orderID, paymentRef)
	case services.OrderKindPreBooking:
		err = h.entitlements.SettlePaidPreBooking(ctx, orderID, paymentRef)
	default:
		// Untagged id: fall back to trying each aggregate in turn
		err = h.settleUntagged(c, orderID, grossAmount, paymentRef)
	}

	if errors.Is(err, services.ErrNotFound) {
		// Verified at the gateway but unknown here. Ack so the gateway stops
		// retrying; the callback history row preserves it for investigation.
		c.Logger().Errorf("verified payment for unknown order %s", orderID)
		return c.JSON(http.StatusOK, map[string]string{"message": "order not recognized"})
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to settle order")
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "order settled"})
}

func (h *WebhookHandler) settleUntagged(c echo.Context, orderID string, grossAmount float64, paymentRef string) error {
	ctx := c.Request().Context()

	err := h.entitlements.SettlePaidPurchase(ctx, orderID, paymentRef)
	if !errors.Is(err, services.ErrNotFound) {
		return err
	}
	err = h.entitlements.SettlePaidPreBooking(ctx, orderID, paymentRef)
	if !errors.Is(err, services.ErrNotFound) {
		return err
	}
	return h.entitlements.SettlePaidSessionByOrderID(ctx, orderID, grossAmount, paymentRef)
}
