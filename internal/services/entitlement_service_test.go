package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"ieltsprep_app_echo/internal/models"
)

func TestSettleFreeSessionRejectsPaidCart(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db)
	checkout := NewCheckoutService(db)
	entitlements := NewEntitlementService(db)

	cart := []models.CartItem{
		{ItemType: models.ItemTypeMockTest, ItemID: uintPtr(1), UnitPrice: 500, DurationDays: 30},
	}
	session, _, err := checkout.CreateSession(user.ID, cart, nil)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	err = entitlements.SettleFreeSession(context.Background(), session.ID, user.ID)
	if !errors.Is(err, ErrNotFree) {
		t.Fatalf("SettleFreeSession() error = %v, want ErrNotFree", err)
	}

	var got models.CheckoutSession
	db.First(&got, session.ID)
	if got.Status != models.SessionStatusPending {
		t.Errorf("session status = %q, want pending", got.Status)
	}
	var purchases int64
	db.Model(&models.Purchase{}).Where("user_id = ?", user.ID).Count(&purchases)
	if purchases != 0 {
		t.Errorf("purchases created = %d, want 0", purchases)
	}
}

func TestSettleFreeSessionGrantsZeroCostCart(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db)
	checkout := NewCheckoutService(db)
	entitlements := NewEntitlementService(db)

	cart := []models.CartItem{
		{ItemType: models.ItemTypeVocabulary, ItemSlug: strPtr("band-7-words"), UnitPrice: 0, DurationDays: 7},
	}
	session, _, err := checkout.CreateSession(user.ID, cart, nil)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	if err := entitlements.SettleFreeSession(context.Background(), session.ID, user.ID); err != nil {
		t.Fatalf("SettleFreeSession() error = %v", err)
	}

	var purchase models.Purchase
	if err := db.Where("user_id = ?", user.ID).First(&purchase).Error; err != nil {
		t.Fatalf("expected a purchase row: %v", err)
	}
	if purchase.PaymentGateway != models.PaymentGatewayManual {
		t.Errorf("purchase gateway = %q, want manual", purchase.PaymentGateway)
	}
	if purchase.Amount != 0 {
		t.Errorf("purchase amount = %v, want 0", purchase.Amount)
	}

	// Free settlement is idempotent too
	if err := entitlements.SettleFreeSession(context.Background(), session.ID, user.ID); err != nil {
		t.Fatalf("second SettleFreeSession() error = %v", err)
	}
	var purchases int64
	db.Model(&models.Purchase{}).Where("user_id = ?", user.ID).Count(&purchases)
	if purchases != 1 {
		t.Errorf("purchases after repeat = %d, want 1", purchases)
	}
}

func TestSettleFreeSessionOwnerScoped(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db)
	checkout := NewCheckoutService(db)
	entitlements := NewEntitlementService(db)

	cart := []models.CartItem{
		{ItemType: models.ItemTypeVocabulary, ItemSlug: strPtr("free-pack"), UnitPrice: 0, DurationDays: 7},
	}
	session, _, err := checkout.CreateSession(user.ID, cart, nil)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	err = entitlements.SettleFreeSession(context.Background(), session.ID, user.ID+1)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("stranger SettleFreeSession() error = %v, want ErrNotFound", err)
	}
}

func TestSettlePaidSessionIdempotent(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db)
	checkout := NewCheckoutService(db)
	entitlements := NewEntitlementService(db)
	ctx := context.Background()

	cart := []models.CartItem{
		{ItemType: models.ItemTypeMockTest, ItemID: uintPtr(3), UnitPrice: 300, DurationDays: 30},
		{ItemType: models.ItemTypePracticeModule, ItemSlug: strPtr("writing-task-2"), UnitPrice: 200, DurationDays: 60},
	}
	session, _, err := checkout.CreateSession(user.ID, cart, nil)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := entitlements.SettlePaidSession(ctx, session.ID, 500, "pay_abc"); err != nil {
			t.Fatalf("SettlePaidSession() call %d error = %v", i+1, err)
		}
	}

	var purchases int64
	db.Model(&models.Purchase{}).Where("user_id = ?", user.ID).Count(&purchases)
	if purchases != 2 {
		t.Errorf("purchases = %d, want 2 (one per cart line, once)", purchases)
	}

	var subscriptions int64
	db.Model(&models.Subscription{}).Where("user_id = ?", user.ID).Count(&subscriptions)
	if subscriptions != 1 {
		t.Errorf("subscriptions = %d, want 1", subscriptions)
	}

	var tasks int64
	db.Model(&models.ScheduledTask{}).Where("task_name = ?", TaskSendNotification).Count(&tasks)
	if tasks != 1 {
		t.Errorf("notification tasks = %d, want 1", tasks)
	}

	var got models.CheckoutSession
	db.First(&got, session.ID)
	if got.Status != models.SessionStatusCompleted {
		t.Errorf("session status = %q, want completed", got.Status)
	}
	if got.PaymentRef != "pay_abc" {
		t.Errorf("payment ref = %q, want pay_abc", got.PaymentRef)
	}
}

func TestSettlementStacksExpiry(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db)
	checkout := NewCheckoutService(db)
	entitlements := NewEntitlementService(db)
	ctx := context.Background()

	now := time.Now()
	prevExpiry := now.AddDate(0, 0, 10)
	prev := models.Purchase{
		UserID:       user.ID,
		ItemType:     models.ItemTypePracticeModule,
		ItemID:       uintPtr(7),
		DurationDays: 30,
		Status:       models.PurchaseStatusCompleted,
		StartsAt:     now.AddDate(0, 0, -20),
		ExpiresAt:    prevExpiry,
	}
	if err := db.Create(&prev).Error; err != nil {
		t.Fatalf("failed to seed previous purchase: %v", err)
	}

	cart := []models.CartItem{
		{ItemType: models.ItemTypePracticeModule, ItemID: uintPtr(7), UnitPrice: 100, DurationDays: 30},
	}
	session, _, err := checkout.CreateSession(user.ID, cart, nil)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if err := entitlements.SettlePaidSession(ctx, session.ID, 100, "pay_stack"); err != nil {
		t.Fatalf("SettlePaidSession() error = %v", err)
	}

	var renewed models.Purchase
	err = db.Where("user_id = ? AND payment_ref = ?", user.ID, "pay_stack").First(&renewed).Error
	if err != nil {
		t.Fatalf("failed to load renewed purchase: %v", err)
	}

	// New expiry extends the old one; the 10 remaining days are not lost
	want := prevExpiry.AddDate(0, 0, 30)
	if diff := renewed.ExpiresAt.Sub(want); diff < -time.Second || diff > time.Second {
		t.Errorf("renewed expiry = %v, want %v", renewed.ExpiresAt, want)
	}
}

func TestSettlementStackingIgnoresExpiredPurchases(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db)
	checkout := NewCheckoutService(db)
	entitlements := NewEntitlementService(db)
	ctx := context.Background()

	now := time.Now()
	lapsed := models.Purchase{
		UserID:       user.ID,
		ItemType:     models.ItemTypePracticeModule,
		ItemID:       uintPtr(7),
		DurationDays: 30,
		Status:       models.PurchaseStatusCompleted,
		StartsAt:     now.AddDate(0, 0, -60),
		ExpiresAt:    now.AddDate(0, 0, -30),
	}
	if err := db.Create(&lapsed).Error; err != nil {
		t.Fatalf("failed to seed lapsed purchase: %v", err)
	}

	cart := []models.CartItem{
		{ItemType: models.ItemTypePracticeModule, ItemID: uintPtr(7), UnitPrice: 100, DurationDays: 30},
	}
	session, _, err := checkout.CreateSession(user.ID, cart, nil)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if err := entitlements.SettlePaidSession(ctx, session.ID, 100, "pay_fresh"); err != nil {
		t.Fatalf("SettlePaidSession() error = %v", err)
	}

	var renewed models.Purchase
	err = db.Where("user_id = ? AND payment_ref = ?", user.ID, "pay_fresh").First(&renewed).Error
	if err != nil {
		t.Fatalf("failed to load purchase: %v", err)
	}

	// A lapsed purchase gives no base; the grant starts from now
	want := now.AddDate(0, 0, 30)
	if diff := renewed.ExpiresAt.Sub(want); diff < -5*time.Second || diff > 5*time.Second {
		t.Errorf("expiry = %v, want ~%v", renewed.ExpiresAt, want)
	}
}

func TestSettlementExtendsActiveSubscription(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db)
	checkout := NewCheckoutService(db)
	entitlements := NewEntitlementService(db)
	ctx := context.Background()

	cart := []models.CartItem{
		{ItemType: models.ItemTypeMockTest, ItemID: uintPtr(1), UnitPrice: 100, DurationDays: 30},
	}

	first, _, err := checkout.CreateSession(user.ID, cart, nil)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if err := entitlements.SettlePaidSession(ctx, first.ID, 100, "pay_1"); err != nil {
		t.Fatalf("first settlement error = %v", err)
	}

	var sub models.Subscription
	if err := db.Where("user_id = ?", user.ID).First(&sub).Error; err != nil {
		t.Fatalf("failed to load subscription: %v", err)
	}
	firstExpiry := sub.ExpiresAt

	second, _, err := checkout.CreateSession(user.ID, cart, nil)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if err := entitlements.SettlePaidSession(ctx, second.ID, 100, "pay_2"); err != nil {
		t.Fatalf("second settlement error = %v", err)
	}

	var subs int64
	db.Model(&models.Subscription{}).Where("user_id = ?", user.ID).Count(&subs)
	if subs != 1 {
		t.Fatalf("subscriptions = %d, want 1 (extended in place)", subs)
	}

	if err := db.Where("user_id = ?", user.ID).First(&sub).Error; err != nil {
		t.Fatalf("failed to reload subscription: %v", err)
	}
	want := firstExpiry.AddDate(0, 0, 30)
	if diff := sub.ExpiresAt.Sub(want); diff < -time.Second || diff > time.Second {
		t.Errorf("extended expiry = %v, want %v", sub.ExpiresAt, want)
	}
}

func TestSettlementUpsertsRegistration(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db)
	checkout := NewCheckoutService(db)
	entitlements := NewEntitlementService(db)
	ctx := context.Background()

	cart := []models.CartItem{
		{ItemType: models.ItemTypeMockTest, ItemID: uintPtr(42), UnitPrice: 200, DurationDays: 30},
	}

	for i, ref := range []string{"pay_first", "pay_second"} {
		session, _, err := checkout.CreateSession(user.ID, cart, nil)
		if err != nil {
			t.Fatalf("CreateSession() %d error = %v", i+1, err)
		}
		if err := entitlements.SettlePaidSession(ctx, session.ID, 200, ref); err != nil {
			t.Fatalf("settlement %d error = %v", i+1, err)
		}
	}

	// Buying the same test twice yields one registration, refreshed in place
	var registrations []models.Registration
	if err := db.Where("user_id = ? AND mock_test_id = ?", user.ID, 42).Find(&registrations).Error; err != nil {
		t.Fatalf("failed to load registrations: %v", err)
	}
	if len(registrations) != 1 {
		t.Fatalf("registrations = %d, want 1", len(registrations))
	}
	if registrations[0].Status != models.RegistrationStatusCompleted {
		t.Errorf("registration status = %q, want completed", registrations[0].Status)
	}
	if registrations[0].PaymentRef != "pay_second" {
		t.Errorf("registration payment ref = %q, want pay_second", registrations[0].PaymentRef)
	}
}

func TestCouponCheckoutEndToEnd(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db)
	createTestCoupon(t, db, "SAVE10", 10, time.Now().AddDate(0, 1, 0), 100)
	checkout := NewCheckoutService(db)
	entitlements := NewEntitlementService(db)
	ctx := context.Background()

	cart := []models.CartItem{
		{ItemType: models.ItemTypeMockTest, ItemID: uintPtr(5), UnitPrice: 500, DurationDays: 30},
	}
	session, total, err := checkout.CreateSession(user.ID, cart, strPtr("SAVE10"))
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if total != 450 {
		t.Fatalf("display total = %v, want 450", total)
	}

	if err := entitlements.SettlePaidSessionByOrderID(ctx, session.OrderID, 450, "pay_123"); err != nil {
		t.Fatalf("settlement error = %v", err)
	}

	var purchase models.Purchase
	if err := db.Where("user_id = ?", user.ID).First(&purchase).Error; err != nil {
		t.Fatalf("failed to load purchase: %v", err)
	}
	if purchase.Amount != 450 {
		t.Errorf("purchase amount = %v, want 450 (discounted)", purchase.Amount)
	}
	if purchase.PaymentRef != "pay_123" {
		t.Errorf("payment ref = %q, want pay_123", purchase.PaymentRef)
	}

	var coupon models.Coupon
	if err := db.Where("code = ?", "SAVE10").First(&coupon).Error; err != nil {
		t.Fatalf("failed to reload coupon: %v", err)
	}
	if coupon.UsedCount != 1 {
		t.Errorf("coupon used count = %d, want 1", coupon.UsedCount)
	}

	// Redelivery must not consume the coupon again
	if err := entitlements.SettlePaidSessionByOrderID(ctx, session.OrderID, 450, "pay_123"); err != nil {
		t.Fatalf("redelivered settlement error = %v", err)
	}
	db.Where("code = ?", "SAVE10").First(&coupon)
	if coupon.UsedCount != 1 {
		t.Errorf("coupon used count after redelivery = %d, want 1", coupon.UsedCount)
	}
}

func TestSettlePaidSessionByOrderIDUnknown(t *testing.T) {
	db := newTestDB(t)
	entitlements := NewEntitlementService(db)

	err := entitlements.SettlePaidSessionByOrderID(context.Background(), "session-does-not-exist", 100, "pay_x")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestSettlePaidPreBooking(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db)
	entitlements := NewEntitlementService(db)
	ctx := context.Background()

	prebooking := models.PreBooking{
		UserID:     user.ID,
		MockTestID: uintPtr(9),
		Amount:     250,
		Status:     models.PurchaseStatusPending,
		OrderID:    NewOrderID(OrderKindPreBooking),
	}
	if err := db.Create(&prebooking).Error; err != nil {
		t.Fatalf("failed to seed prebooking: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := entitlements.SettlePaidPreBooking(ctx, prebooking.OrderID, "pay_pb"); err != nil {
			t.Fatalf("SettlePaidPreBooking() call %d error = %v", i+1, err)
		}
	}

	var got models.PreBooking
	db.First(&got, prebooking.ID)
	if got.Status != models.PurchaseStatusCompleted {
		t.Errorf("prebooking status = %q, want completed", got.Status)
	}
	if got.PaymentStatus != "paid" {
		t.Errorf("payment status = %q, want paid", got.PaymentStatus)
	}

	var registrations int64
	db.Model(&models.Registration{}).Where("user_id = ? AND mock_test_id = ?", user.ID, 9).Count(&registrations)
	if registrations != 1 {
		t.Errorf("registrations = %d, want 1", registrations)
	}

	var tasks int64
	db.Model(&models.ScheduledTask{}).Where("task_name = ?", TaskSendNotification).Count(&tasks)
	if tasks != 1 {
		t.Errorf("notification tasks = %d, want 1", tasks)
	}
}

func TestMarkOrderCanceled(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db)
	checkout := NewCheckoutService(db)
	entitlements := NewEntitlementService(db)
	ctx := context.Background()

	cart := []models.CartItem{
		{ItemType: models.ItemTypeMockTest, ItemID: uintPtr(1), UnitPrice: 100, DurationDays: 30},
	}
	session, _, err := checkout.CreateSession(user.ID, cart, nil)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	purchase := models.Purchase{
		UserID:       user.ID,
		ItemType:     models.ItemTypePracticeModule,
		ItemID:       uintPtr(2),
		DurationDays: 30,
		Amount:       100,
		Status:       models.PurchaseStatusPending,
		OrderID:      NewOrderID(OrderKindPurchase),
	}
	if err := db.Create(&purchase).Error; err != nil {
		t.Fatalf("failed to seed purchase: %v", err)
	}

	// Session orders stay pending so the user can retry payment
	if err := entitlements.MarkOrderCanceled(ctx, session.OrderID); err != nil {
		t.Fatalf("MarkOrderCanceled(session) error = %v", err)
	}
	var gotSession models.CheckoutSession
	db.First(&gotSession, session.ID)
	if gotSession.Status != models.SessionStatusPending {
		t.Errorf("session status = %q, want pending", gotSession.Status)
	}

	// Direct orders flip to canceled
	if err := entitlements.MarkOrderCanceled(ctx, purchase.OrderID); err != nil {
		t.Fatalf("MarkOrderCanceled(purchase) error = %v", err)
	}
	var gotPurchase models.Purchase
	db.First(&gotPurchase, purchase.ID)
	if gotPurchase.Status != models.PurchaseStatusCanceled {
		t.Errorf("purchase status = %q, want canceled", gotPurchase.Status)
	}
}
