package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"ieltsprep_app_echo/internal/models"
)

const defaultReminderWindowDays = 3

// ExpiryReminderTaskDef is the recurring sweep that warns users before an
// entitlement lapses. It only fans out notification tasks; delivery and
// retries belong to send_notification.
type ExpiryReminderTaskDef struct{}

// TaskID returns the unique identifier for this task
func (t *ExpiryReminderTaskDef) TaskID() string {
	return "entitlement_expiry_reminder"
}

// HandleExecution finds purchases expiring inside the window and enqueues
// one notification per purchase. Purchases already reminded are not
// deduplicated here; the window and the sweep interval are chosen so a user
// sees at most a couple of reminders.
func (t *ExpiryReminderTaskDef) HandleExecution(ctx context.Context, db *gorm.DB, task models.ScheduledTask) (map[string]interface{}, error) {
	windowDays := defaultReminderWindowDays
	if v, ok := task.Arguments["window_days"].(float64); ok && v > 0 {
		windowDays = int(v)
	}

	now := time.Now()
	deadline := now.AddDate(0, 0, windowDays)

	var purchases []models.Purchase
	err := db.Preload("User").
		Where("status = ? AND expires_at > ? AND expires_at <= ?",
			models.PurchaseStatusCompleted, now, deadline).
		Find(&purchases).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch expiring purchases: %w", err)
	}

	enqueued := 0
	for _, purchase := range purchases {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if purchase.User.Email == "" {
			continue
		}

		item := string(purchase.ItemType)
		if purchase.ItemSlug != nil {
			item = fmt.Sprintf("%s (%s)", purchase.ItemType, *purchase.ItemSlug)
		}
		args := SendNotificationArgs{
			UserID:  purchase.UserID,
			Email:   purchase.User.Email,
			Name:    purchase.User.Name,
			Subject: "Your IELTS prep access is about to expire",
			Body: fmt.Sprintf("Hi %s,\n\nYour access to %s expires on %s. Renew before then and your remaining days carry over.",
				purchase.User.Name, item, purchase.ExpiresAt.Format("2 Jan 2006")),
		}

		notifTask, err := SendNotificationTask.CreateTask(args)
		if err != nil {
			log.Printf("Failed to build reminder notification for purchase %d: %v", purchase.ID, err)
			continue
		}
		if err := db.Create(notifTask).Error; err != nil {
			log.Printf("Failed to enqueue reminder notification for purchase %d: %v", purchase.ID, err)
			continue
		}
		enqueued++
	}

	return map[string]interface{}{
		"status":   "success",
		"expiring": len(purchases),
		"enqueued": enqueued,
	}, nil
}

// ExpiryReminderTask is the singleton instance of ExpiryReminderTaskDef
var ExpiryReminderTask = &ExpiryReminderTaskDef{}
