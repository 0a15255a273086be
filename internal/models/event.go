package models

import "time"

type EventKind string

const (
	EventTaskAssigned      EventKind = "task_assigned"
	EventApprovalRequested EventKind = "approval_requested"
	EventTaskUpdated       EventKind = "task_updated"
)

// TaskEvent is handed to the notifier after a successful transition.
type TaskEvent struct {
	Kind        EventKind         `json:"kind"`
	TaskID      int64             `json:"task_id"`
	RecipientID int64             `json:"recipient_id"`
	Payload     map[string]string `json:"payload"`
	OccurredAt  time.Time         `json:"occurred_at"`
}
