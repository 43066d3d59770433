package tasks

// DefineTasks registers all available tasks
func DefineTasks() {
	RegisterHandler(SendNotificationTask.TaskID(), SendNotificationTask.HandleExecution)
	RegisterHandler(ExpiryReminderTask.TaskID(), ExpiryReminderTask.HandleExecution)
}
