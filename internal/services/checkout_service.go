package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"ieltsprep_app_echo/internal/models"
)

// CheckoutService owns the checkout session store. Sessions are created
// pending and only the entitlement writer flips them to completed.
type CheckoutService struct {
	db *gorm.DB
}

func NewCheckoutService(db *gorm.DB) *CheckoutService {
	return &CheckoutService{db: db}
}

func validateCart(cart []models.CartItem) error {
	if len(cart) == 0 {
		return ErrEmptyCart
	}
	for _, item := range cart {
		switch item.ItemType {
		case models.ItemTypePracticeModule, models.ItemTypeMockTest, models.ItemTypeVocabulary:
		default:
			return ErrInvalidCartItem
		}
		// Exactly one of id/slug must identify the item
		hasID := item.ItemID != nil
		hasSlug := item.ItemSlug != nil && *item.ItemSlug != ""
		if hasID == hasSlug {
			return ErrInvalidCartItem
		}
		if item.UnitPrice < 0 || item.DurationDays <= 0 {
			return ErrInvalidCartItem
		}
	}
	return nil
}

// CreateSession persists the cart verbatim with status pending and returns
// the session together with the display total. The coupon is only read here;
// its usage counter moves at settlement time.
func (s *CheckoutService) CreateSession(userID uint, cart []models.CartItem, couponCode *string) (*models.CheckoutSession, float64, error) {
	if err := validateCart(cart); err != nil {
		return nil, 0, err
	}

	total, _, _ := CartTotal(s.db, cart, couponCode, time.Now())

	session := models.CheckoutSession{
		UserID:     userID,
		Cart:       cart,
		CouponCode: couponCode,
		Status:     models.SessionStatusPending,
		OrderID:    NewOrderID(OrderKindSession),
	}
	if err := s.db.Create(&session).Error; err != nil {
		return nil, 0, err
	}

	return &session, total, nil
}

// GetSession returns a session only to its owner. A session belonging to a
// different user reports not-found, indistinguishable from a missing one.
func (s *CheckoutService) GetSession(sessionID, userID uint) (*models.CheckoutSession, error) {
	var session models.CheckoutSession
	err := s.db.Where("id = ? AND user_id = ?", sessionID, userID).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}
