package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"ieltsprep_app_echo/internal/models"
	"ieltsprep_app_echo/internal/services"
)

// SendNotificationArgs defines the arguments for a notification task.
// Settlement enqueues these in the same transaction as the entitlement
// grant, so every grant eventually produces (at least) one delivery attempt.
type SendNotificationArgs struct {
	UserID  uint    `json:"user_id"`
	Email   string  `json:"email"`
	Name    string  `json:"name"`
	Subject string  `json:"subject"`
	Amount  float64 `json:"amount"`
	Body    string  `json:"body"`
}

// SendNotificationTaskDef encapsulates the notification task logic
type SendNotificationTaskDef struct{}

// TaskID returns the unique identifier for this task. Must stay in sync
// with services.TaskSendNotification.
func (t *SendNotificationTaskDef) TaskID() string {
	return "send_notification"
}

// CreateTask builds a ScheduledTask record for this task
func (t *SendNotificationTaskDef) CreateTask(args SendNotificationArgs) (*models.ScheduledTask, error) {
	return BuildScheduledTask(t.TaskID(), args, time.Now(), nil, models.ScheduledTaskTypeOneTime, 3)
}

// HandleExecution delivers one notification, honoring the user's channel
// preference. A user who opted out is a skip, not a failure. Retries on
// failure are the worker's job, driven by the task's MaxAttempt.
func (t *SendNotificationTaskDef) HandleExecution(ctx context.Context, db *gorm.DB, task models.ScheduledTask) (map[string]interface{}, error) {
	argsBytes, err := json.Marshal(task.Arguments)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal args: %w", err)
	}

	var args SendNotificationArgs
	if err := json.Unmarshal(argsBytes, &args); err != nil {
		return nil, fmt.Errorf("failed to unmarshal args: %w", err)
	}

	if args.Email == "" {
		return nil, fmt.Errorf("notification args missing email")
	}

	var pref models.UserNotifPreference
	err = db.Where("user_id = ?", args.UserID).First(&pref).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to fetch preference: %w", err)
	}
	// No preference row means the email default applies
	if err == nil && pref.Channel == models.NotificationChannelNone {
		log.Printf("Notification disabled for user %d, skipping", args.UserID)
		return map[string]interface{}{"status": "skipped"}, nil
	}

	body := args.Body
	if body == "" {
		body = fmt.Sprintf("Hi %s,\n\nYour payment of %.2f has been received and your access is now active.\n\nGood luck with your preparation!", args.Name, args.Amount)
	}

	emailService := services.NewEmailService()
	if sendErr := emailService.SendEmail([]string{args.Email}, args.Subject, body); sendErr != nil {
		log.Printf("Failed to send notification to %s: %v", args.Email, sendErr)
		return nil, fmt.Errorf("failed to send email: %w", sendErr)
	}

	return map[string]interface{}{"status": "success"}, nil
}

// SendNotificationTask is the singleton instance of SendNotificationTaskDef
var SendNotificationTask = &SendNotificationTaskDef{}
