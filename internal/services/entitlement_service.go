package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ieltsprep_app_echo/internal/models"
)

// TaskSendNotification must match the handler id registered in
// internal/tasks; the literal is duplicated there to avoid an import cycle.
const TaskSendNotification = "send_notification"

// subscriptionPlanLabel is the single plan every settled session rolls into
const subscriptionPlanLabel = "ielts-prep"

// EntitlementService converts verified payments into durable access grants:
// purchase rows, a subscription, and mock-test registrations. The session
// (or order) status flip is a compare-and-swap and acts as the sole commit
// point, so redelivered webhooks and double-clicks settle at most once.
type EntitlementService struct {
	db *gorm.DB
}

func NewEntitlementService(db *gorm.DB) *EntitlementService {
	return &EntitlementService{db: db}
}

// SettleFreeSession completes a zero-cost session for its owner. The total
// is recomputed server-side; a cart that still costs anything is rejected so
// a tampered client cannot claim paid content through the free path.
func (s *EntitlementService) SettleFreeSession(ctx context.Context, sessionID, userID uint) error {
	db := s.db.WithContext(ctx)

	var session models.CheckoutSession
	err := db.Where("id = ? AND user_id = ?", sessionID, userID).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if session.Status == models.SessionStatusCompleted {
		return nil // already settled, idempotent
	}

	total, _, _ := CartTotal(db, session.Cart, session.CouponCode, time.Now())
	if total > 0 {
		return ErrNotFree
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		return s.settleSession(tx, &session, models.PaymentGatewayManual, "")
	})
	if errors.Is(err, errAlreadySettled) {
		return nil
	}
	return err
}

// SettlePaidSession completes a session after the gateway confirmed payment.
// amount is what the gateway reports as captured; a mismatch against the
// recomputed total is logged but does not block the grant, since the money
// has already moved.
func (s *EntitlementService) SettlePaidSession(ctx context.Context, sessionID uint, amount float64, paymentRef string) error {
	db := s.db.WithContext(ctx)

	var session models.CheckoutSession
	err := db.First(&session, sessionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	return s.settlePaidSession(db, &session, amount, paymentRef)
}

// SettlePaidSessionByOrderID is the webhook entry point for "session-" orders
func (s *EntitlementService) SettlePaidSessionByOrderID(ctx context.Context, orderID string, amount float64, paymentRef string) error {
	db := s.db.WithContext(ctx)

	var session models.CheckoutSession
	err := db.Where("order_id = ?", orderID).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	return s.settlePaidSession(db, &session, amount, paymentRef)
}

func (s *EntitlementService) settlePaidSession(db *gorm.DB, session *models.CheckoutSession, amount float64, paymentRef string) error {
	if session.Status == models.SessionStatusCompleted {
		return nil
	}

	total, _, _ := CartTotal(db, session.Cart, session.CouponCode, time.Now())
	if math.Abs(total-amount) >= 0.01 {
		log.Printf("settlement amount mismatch for session %d: recomputed %.2f, gateway captured %.2f", session.ID, total, amount)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return s.settleSession(tx, session, models.PaymentGatewayMidtrans, paymentRef)
	})
	if errors.Is(err, errAlreadySettled) {
		return nil
	}
	return err
}

// settleSession is the shared grant path for free and paid settlement. It
// runs inside one transaction; nothing is visible to readers until every
// entitlement row is written.
func (s *EntitlementService) settleSession(tx *gorm.DB, session *models.CheckoutSession, gateway models.PaymentGateway, paymentRef string) error {
	// Commit point: only the call that wins this update grants entitlements.
	res := tx.Model(&models.CheckoutSession{}).
		Where("id = ? AND status = ?", session.ID, models.SessionStatusPending).
		Updates(map[string]interface{}{
			"status":          models.SessionStatusCompleted,
			"payment_gateway": gateway,
			"payment_ref":     paymentRef,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errAlreadySettled
	}

	now := time.Now()
	_, coupon, applied := CartTotal(tx, session.Cart, session.CouponCode, now)

	discount := 0.0
	if applied {
		discount = coupon.DiscountPercent
	}

	var totalPaid float64
	maxDuration := 0
	for _, item := range session.Cart {
		lineAmount := item.UnitPrice * (1 - discount/100)
		totalPaid += lineAmount

		expiresAt := stackBase(tx, session.UserID, item, now).AddDate(0, 0, item.DurationDays)
		purchase := models.Purchase{
			UserID:         session.UserID,
			ItemType:       item.ItemType,
			ItemID:         item.ItemID,
			ItemSlug:       item.ItemSlug,
			DurationDays:   item.DurationDays,
			Amount:         lineAmount,
			PaymentGateway: gateway,
			PaymentRef:     paymentRef,
			Status:         models.PurchaseStatusCompleted,
			StartsAt:       now,
			ExpiresAt:      expiresAt,
		}
		if err := tx.Create(&purchase).Error; err != nil {
			return fmt.Errorf("failed to create purchase: %w", err)
		}

		if item.DurationDays > maxDuration {
			maxDuration = item.DurationDays
		}

		if item.ItemType == models.ItemTypeMockTest && item.ItemID != nil {
			if err := upsertRegistration(tx, session.UserID, *item.ItemID, paymentRef); err != nil {
				return err
			}
		}
	}

	if err := s.extendOrCreateSubscription(tx, session.UserID, totalPaid, gateway, maxDuration, now); err != nil {
		return err
	}

	if applied {
		if err := ConsumeCoupon(tx, coupon.ID); err != nil {
			return fmt.Errorf("failed to consume coupon: %w", err)
		}
	}

	return s.enqueueConfirmation(tx, session.UserID, totalPaid, "Your IELTS prep order is confirmed")
}

// stackBase returns the expiry-stacking base for one (user, item) pair: the
// expiry of the latest unexpired completed purchase, or now when none exists.
// Renewing early therefore extends from the old expiry, never shortens.
func stackBase(tx *gorm.DB, userID uint, item models.CartItem, now time.Time) time.Time {
	q := tx.Model(&models.Purchase{}).
		Where("user_id = ? AND item_type = ? AND status = ? AND expires_at > ?",
			userID, item.ItemType, models.PurchaseStatusCompleted, now)
	if item.ItemID != nil {
		q = q.Where("item_id = ?", *item.ItemID)
	} else {
		q = q.Where("item_slug = ?", *item.ItemSlug)
	}

	var prev models.Purchase
	if err := q.Order("expires_at desc").First(&prev).Error; err == nil {
		return prev.ExpiresAt
	}
	return now
}

// extendOrCreateSubscription maintains exactly one subscription movement per
// settled session. An unexpired subscription stacks from its own expiry; a
// lapsed user gets a fresh one from now.
func (s *EntitlementService) extendOrCreateSubscription(tx *gorm.DB, userID uint, amount float64, gateway models.PaymentGateway, durationDays int, now time.Time) error {
	var sub models.Subscription
	err := tx.Where("user_id = ? AND status = ? AND expires_at > ?",
		userID, models.SubscriptionStatusActive, now).
		Order("expires_at desc").First(&sub).Error

	if err == nil {
		return tx.Model(&sub).
			Update("expires_at", sub.ExpiresAt.AddDate(0, 0, durationDays)).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	sub = models.Subscription{
		UserID:         userID,
		PlanLabel:      subscriptionPlanLabel,
		Amount:         amount,
		Currency:       "IDR",
		PaymentGateway: gateway,
		Status:         models.SubscriptionStatusActive,
		StartsAt:       now,
		ExpiresAt:      now.AddDate(0, 0, durationDays),
	}
	if err := tx.Create(&sub).Error; err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

func upsertRegistration(tx *gorm.DB, userID, mockTestID uint, paymentRef string) error {
	registration := models.Registration{
		UserID:     userID,
		MockTestID: mockTestID,
		Status:     models.RegistrationStatusCompleted,
		PaymentRef: paymentRef,
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "mock_test_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "payment_ref", "updated_at"}),
	}).Create(&registration).Error
}

// enqueueConfirmation writes the notification task in the same transaction
// as the grant (outbox). The worker delivers it; email failures never roll
// back a settlement.
func (s *EntitlementService) enqueueConfirmation(tx *gorm.DB, userID uint, amount float64, subject string) error {
	var user models.User
	if err := tx.First(&user, userID).Error; err != nil {
		return err
	}

	task := models.ScheduledTask{
		TaskName: TaskSendNotification,
		Arguments: map[string]interface{}{
			"user_id": user.ID,
			"email":   user.Email,
			"name":    user.Name,
			"subject": subject,
			"amount":  amount,
		},
		Due:        time.Now(),
		Status:     models.ScheduledTaskStatusActive,
		TaskType:   models.ScheduledTaskTypeOneTime,
		MaxAttempt: 3,
	}
	return tx.Create(&task).Error
}

// SettlePaidPurchase completes a direct single-item purchase order
// ("purchase-" tagged). The expiry is computed at settlement time with the
// same stacking rule sessions use.
func (s *EntitlementService) SettlePaidPurchase(ctx context.Context, orderID, paymentRef string) error {
	db := s.db.WithContext(ctx)

	var purchase models.Purchase
	err := db.Where("order_id = ?", orderID).First(&purchase).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if purchase.Status == models.PurchaseStatusCompleted {
		return nil
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		item := models.CartItem{
			ItemType:     purchase.ItemType,
			ItemID:       purchase.ItemID,
			ItemSlug:     purchase.ItemSlug,
			DurationDays: purchase.DurationDays,
		}
		expiresAt := stackBase(tx, purchase.UserID, item, now).AddDate(0, 0, purchase.DurationDays)

		res := tx.Model(&models.Purchase{}).
			Where("id = ? AND status = ?", purchase.ID, models.PurchaseStatusPending).
			Updates(map[string]interface{}{
				"status":      models.PurchaseStatusCompleted,
				"payment_ref": paymentRef,
				"starts_at":   now,
				"expires_at":  expiresAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errAlreadySettled
		}

		if purchase.ItemType == models.ItemTypeMockTest && purchase.ItemID != nil {
			if err := upsertRegistration(tx, purchase.UserID, *purchase.ItemID, paymentRef); err != nil {
				return err
			}
		}

		return s.enqueueConfirmation(tx, purchase.UserID, purchase.Amount, "Your IELTS prep purchase is confirmed")
	})
	if errors.Is(err, errAlreadySettled) {
		return nil
	}
	return err
}

// SettlePaidPreBooking completes a "prebook-" tagged order. No stacking: a
// pre-booking is a one-off seat hold, not a renewable entitlement.
func (s *EntitlementService) SettlePaidPreBooking(ctx context.Context, orderID, paymentRef string) error {
	db := s.db.WithContext(ctx)

	var prebooking models.PreBooking
	err := db.Where("order_id = ?", orderID).First(&prebooking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if prebooking.Status == models.PurchaseStatusCompleted {
		return nil
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.PreBooking{}).
			Where("id = ? AND status = ?", prebooking.ID, models.PurchaseStatusPending).
			Updates(map[string]interface{}{
				"status":         models.PurchaseStatusCompleted,
				"payment_status": "paid",
				"payment_ref":    paymentRef,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errAlreadySettled
		}

		if prebooking.MockTestID != nil {
			if err := upsertRegistration(tx, prebooking.UserID, *prebooking.MockTestID, paymentRef); err != nil {
				return err
			}
		}

		return s.enqueueConfirmation(tx, prebooking.UserID, prebooking.Amount, "Your mock test pre-booking is confirmed")
	})
	if errors.Is(err, errAlreadySettled) {
		return nil
	}
	return err
}

// MarkOrderCanceled records a deny/expire/cancel outcome from the gateway.
// Sessions stay pending so the user can retry payment; direct orders flip to
// canceled.
func (s *EntitlementService) MarkOrderCanceled(ctx context.Context, orderID string) error {
	db := s.db.WithContext(ctx)

	switch OrderKindOf(orderID) {
	case OrderKindPurchase:
		return db.Model(&models.Purchase{}).
			Where("order_id = ? AND status = ?", orderID, models.PurchaseStatusPending).
			Update("status", models.PurchaseStatusCanceled).Error
	case OrderKindPreBooking:
		return db.Model(&models.PreBooking{}).
			Where("order_id = ? AND status = ?", orderID, models.PurchaseStatusPending).
			Updates(map[string]interface{}{
				"status":         models.PurchaseStatusCanceled,
				"payment_status": "canceled",
			}).Error
	default:
		return nil
	}
}
