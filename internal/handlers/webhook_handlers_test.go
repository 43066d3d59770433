package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/midtrans/midtrans-go/coreapi"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ieltsprep_app_echo/internal/models"
	"ieltsprep_app_echo/internal/services"
)

// stubVerifier returns canned gateway verdicts keyed by order id. Order ids
// it does not know fail verification, like a gateway outage would.
type stubVerifier struct {
	responses map[string]*coreapi.TransactionStatusResponse
}

func (s *stubVerifier) CheckTransaction(orderID string) (*coreapi.TransactionStatusResponse, error) {
	resp, ok := s.responses[orderID]
	if !ok {
		return nil, errors.New("verification unavailable")
	}
	return resp, nil
}

func newWebhookTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Coupon{},
		&models.CheckoutSession{},
		&models.Purchase{},
		&models.Subscription{},
		&models.Registration{},
		&models.PreBooking{},
		&models.ScheduledTask{},
		&models.PaymentCallbackHistory{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func seedPendingSession(t *testing.T, db *gorm.DB) models.CheckoutSession {
	t.Helper()

	user := models.User{
		FirebaseUID: fmt.Sprintf("uid-%s", strings.ReplaceAll(t.Name(), "/", "_")),
		Name:        "Webhook Tester",
		Email:       fmt.Sprintf("%s@example.com", strings.ReplaceAll(t.Name(), "/", "_")),
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	itemID := uint(11)
	session := models.CheckoutSession{
		UserID: user.ID,
		Cart: []models.CartItem{
			{ItemType: models.ItemTypeMockTest, ItemID: &itemID, UnitPrice: 500, DurationDays: 30},
		},
		Status:  models.SessionStatusPending,
		OrderID: services.NewOrderID(services.OrderKindSession),
	}
	if err := db.Create(&session).Error; err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return session
}

func postCallback(t *testing.T, handler *WebhookHandler, body string) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/payments/midtrans/callback", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := handler.MidtransCallback(c)
	if err != nil {
		// Echo HTTP errors carry the intended status; surface it like the
		// error handler would so assertions can read rec.Code uniformly.
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			rec.Code = httpErr.Code
		} else {
			t.Fatalf("MidtransCallback() unexpected error: %v", err)
		}
	}
	return rec
}

func TestMidtransCallbackSettlesSession(t *testing.T) {
	db := newWebhookTestDB(t)
	session := seedPendingSession(t, db)
	entitlements := services.NewEntitlementService(db)

	verifier := &stubVerifier{responses: map[string]*coreapi.TransactionStatusResponse{
		session.OrderID: {
			TransactionStatus: "settlement",
			TransactionID:     "pay_123",
			GrossAmount:       "500.00",
		},
	}}
	handler := NewWebhookHandler(db, verifier, entitlements)

	body := fmt.Sprintf(`{"order_id":%q,"transaction_status":"settlement"}`, session.OrderID)
	rec := postCallback(t, handler, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var got models.CheckoutSession
	db.First(&got, session.ID)
	if got.Status != models.SessionStatusCompleted {
		t.Errorf("session status = %q, want completed", got.Status)
	}
	if got.PaymentRef != "pay_123" {
		t.Errorf("payment ref = %q, want pay_123", got.PaymentRef)
	}

	var audits int64
	db.Model(&models.PaymentCallbackHistory{}).Where("order_id = ?", session.OrderID).Count(&audits)
	if audits != 1 {
		t.Errorf("callback history rows = %d, want 1", audits)
	}
}

func TestMidtransCallbackDuplicateDelivery(t *testing.T) {
	db := newWebhookTestDB(t)
	session := seedPendingSession(t, db)
	entitlements := services.NewEntitlementService(db)

	verifier := &stubVerifier{responses: map[string]*coreapi.TransactionStatusResponse{
		session.OrderID: {
			TransactionStatus: "settlement",
			TransactionID:     "pay_dup",
			GrossAmount:       "500.00",
		},
	}}
	handler := NewWebhookHandler(db, verifier, entitlements)

	body := fmt.Sprintf(`{"order_id":%q,"transaction_status":"settlement"}`, session.OrderID)
	for i := 0; i < 3; i++ {
		rec := postCallback(t, handler, body)
		if rec.Code != http.StatusOK {
			t.Fatalf("delivery %d status = %d, want 200", i+1, rec.Code)
		}
	}

	var purchases int64
	db.Model(&models.Purchase{}).Where("user_id = ?", session.UserID).Count(&purchases)
	if purchases != 1 {
		t.Errorf("purchases after 3 deliveries = %d, want 1", purchases)
	}
	var tasks int64
	db.Model(&models.ScheduledTask{}).Count(&tasks)
	if tasks != 1 {
		t.Errorf("notification tasks after 3 deliveries = %d, want 1", tasks)
	}
	// Every delivery is audited even though only one settles
	var audits int64
	db.Model(&models.PaymentCallbackHistory{}).Where("order_id = ?", session.OrderID).Count(&audits)
	if audits != 3 {
		t.Errorf("callback history rows = %d, want 3", audits)
	}
}

func TestMidtransCallbackVerificationFailure(t *testing.T) {
	db := newWebhookTestDB(t)
	session := seedPendingSession(t, db)
	entitlements := services.NewEntitlementService(db)

	// Verifier knows nothing, simulating a gateway outage. The payload alone
	// must never settle anything.
	handler := NewWebhookHandler(db, &stubVerifier{responses: nil}, entitlements)

	body := fmt.Sprintf(`{"order_id":%q,"transaction_status":"settlement"}`, session.OrderID)
	rec := postCallback(t, handler, body)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502 so the gateway redelivers", rec.Code)
	}

	var got models.CheckoutSession
	db.First(&got, session.ID)
	if got.Status != models.SessionStatusPending {
		t.Errorf("session status = %q, want pending", got.Status)
	}
}

func TestMidtransCallbackPayloadStatusIgnored(t *testing.T) {
	db := newWebhookTestDB(t)
	session := seedPendingSession(t, db)
	entitlements := services.NewEntitlementService(db)

	// Payload claims settlement; the gateway says pending. Verification wins.
	verifier := &stubVerifier{responses: map[string]*coreapi.TransactionStatusResponse{
		session.OrderID: {
			TransactionStatus: "pending",
		},
	}}
	handler := NewWebhookHandler(db, verifier, entitlements)

	body := fmt.Sprintf(`{"order_id":%q,"transaction_status":"settlement"}`, session.OrderID)
	rec := postCallback(t, handler, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var got models.CheckoutSession
	db.First(&got, session.ID)
	if got.Status != models.SessionStatusPending {
		t.Errorf("session status = %q, want pending (verified status was pending)", got.Status)
	}
}

func TestMidtransCallbackUnknownOrderAcked(t *testing.T) {
	db := newWebhookTestDB(t)
	entitlements := services.NewEntitlementService(db)

	orderID := services.NewOrderID(services.OrderKindSession)
	verifier := &stubVerifier{responses: map[string]*coreapi.TransactionStatusResponse{
		orderID: {
			TransactionStatus: "settlement",
			TransactionID:     "pay_ghost",
			GrossAmount:       "100.00",
		},
	}}
	handler := NewWebhookHandler(db, verifier, entitlements)

	body := fmt.Sprintf(`{"order_id":%q,"transaction_status":"settlement"}`, orderID)
	rec := postCallback(t, handler, body)
	// Verified but unknown locally: ack so the gateway stops retrying
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var audits int64
	db.Model(&models.PaymentCallbackHistory{}).Where("order_id = ?", orderID).Count(&audits)
	if audits != 1 {
		t.Errorf("callback history rows = %d, want 1", audits)
	}
}

func TestMidtransCallbackCancelFlipsDirectOrder(t *testing.T) {
	db := newWebhookTestDB(t)
	entitlements := services.NewEntitlementService(db)

	user := models.User{FirebaseUID: "uid-cancel", Email: "cancel@example.com"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	itemID := uint(4)
	purchase := models.Purchase{
		UserID:       user.ID,
		ItemType:     models.ItemTypePracticeModule,
		ItemID:       &itemID,
		DurationDays: 30,
		Amount:       150,
		Status:       models.PurchaseStatusPending,
		OrderID:      services.NewOrderID(services.OrderKindPurchase),
	}
	if err := db.Create(&purchase).Error; err != nil {
		t.Fatalf("failed to seed purchase: %v", err)
	}

	verifier := &stubVerifier{responses: map[string]*coreapi.TransactionStatusResponse{
		purchase.OrderID: {
			TransactionStatus: "expire",
		},
	}}
	handler := NewWebhookHandler(db, verifier, entitlements)

	body := fmt.Sprintf(`{"order_id":%q,"transaction_status":"expire"}`, purchase.OrderID)
	rec := postCallback(t, handler, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var got models.Purchase
	db.First(&got, purchase.ID)
	if got.Status != models.PurchaseStatusCanceled {
		t.Errorf("purchase status = %q, want canceled", got.Status)
	}
}

func TestMidtransCallbackMissingOrderID(t *testing.T) {
	db := newWebhookTestDB(t)
	entitlements := services.NewEntitlementService(db)
	handler := NewWebhookHandler(db, &stubVerifier{}, entitlements)

	rec := postCallback(t, handler, `{"transaction_status":"settlement"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestMidtransCallbackCaptureHeldForReview(t *testing.T) {
	db := newWebhookTestDB(t)
	session := seedPendingSession(t, db)
	entitlements := services.NewEntitlementService(db)

	verifier := &stubVerifier{responses: map[string]*coreapi.TransactionStatusResponse{
		session.OrderID: {
			TransactionStatus: "capture",
			FraudStatus:       "challenge",
			GrossAmount:       "500.00",
		},
	}}
	handler := NewWebhookHandler(db, verifier, entitlements)

	body := fmt.Sprintf(`{"order_id":%q,"transaction_status":"capture"}`, session.OrderID)
	rec := postCallback(t, handler, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var got models.CheckoutSession
	db.First(&got, session.ID)
	if got.Status != models.SessionStatusPending {
		t.Errorf("challenged capture settled the session, want pending")
	}
}
