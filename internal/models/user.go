package models

// Recipient holds the delivery channels of a user.
type Recipient struct {
	UserID              int64  `json:"user_id"`
	Email               string `json:"email"`
	TelegramChatID      int64  `json:"telegram_chat_id"`
	NotifyTasksTelegram bool   `json:"notify_tasks_telegram"`
	NotifyTasksEmail    bool   `json:"notify_tasks_email"`
}
