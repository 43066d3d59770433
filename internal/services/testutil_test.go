package services

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ieltsprep_app_echo/internal/models"
)

// newTestDB opens an isolated in-memory sqlite database per test. The
// database is named after the test so parallel tests never share state.
func newTestDB(t *testing.T) *gorm.DB {
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
		&models.MockTest{},
		&models.PracticeModule{},
		&models.ScheduledTask{},
		&models.PaymentCallbackHistory{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

func createTestUser(t *testing.T, db *gorm.DB) models.User {
	t.Helper()

	user := models.User{
		FirebaseUID: fmt.Sprintf("uid-%s", strings.ReplaceAll(t.Name(), "/", "_")),
		Name:        "Test Student",
		Email:       fmt.Sprintf("%s@example.com", strings.ReplaceAll(t.Name(), "/", "_")),
		UserType:    models.UserTypeMember,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

func createTestCoupon(t *testing.T, db *gorm.DB, code string, discount float64, validUntil time.Time, maxUses int) models.Coupon {
	t.Helper()

	coupon := models.Coupon{
		Code:            code,
		DiscountPercent: discount,
		IsActive:        true,
		ValidUntil:      validUntil,
		MaxUses:         maxUses,
	}
	if err := db.Create(&coupon).Error; err != nil {
		t.Fatalf("failed to create test coupon: %v", err)
	}
	return coupon
}

func uintPtr(v uint) *uint {
	return &v
}

func strPtr(v string) *string {
	return &v
}
