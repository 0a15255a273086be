package models

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ApproverRole is the hierarchy level an approval entry belongs to.
type ApproverRole string

const (
	RoleDirectorApprover ApproverRole = "director"
	RoleAdminApprover    ApproverRole = "admin"
)

type EntryStatus string

const (
	EntryPending  EntryStatus = "pending"
	EntryApproved EntryStatus = "approved"
	EntryRejected EntryStatus = "rejected"
)

// approvalNamespace scopes entry ids so they never collide with other UUIDv5 users.
var approvalNamespace = uuid.MustParse("6f1c2a4e-3b7d-5e8f-9a0b-c1d2e3f4a5b6")

// ApprovalEntry is one step of a task's approval chain.
type ApprovalEntry struct {
	ID              string       `json:"id"`
	TaskID          int64        `json:"task_id"`
	ApproverUserID  int64        `json:"approver_user_id"`
	ApproverRole    ApproverRole `json:"approver_role"`
	Status          EntryStatus  `json:"status"`
	CreatedAt       time.Time    `json:"created_at"`
	ApprovedAt      *time.Time   `json:"approved_at,omitempty"`
	RejectionReason string       `json:"rejection_reason,omitempty"`
}

// NewApprovalEntry builds a pending entry whose id is derived from the
// task id, role and creation instant.
func NewApprovalEntry(taskID, approverID int64, role ApproverRole, at time.Time) ApprovalEntry {
	key := strconv.FormatInt(taskID, 10) + ":" + string(role) + ":" + strconv.FormatInt(at.UnixNano(), 10)
	return ApprovalEntry{
		ID:             uuid.NewSHA1(approvalNamespace, []byte(key)).String(),
		TaskID:         taskID,
		ApproverUserID: approverID,
		ApproverRole:   role,
		Status:         EntryPending,
		CreatedAt:      at,
	}
}

// Validate checks the role × status combination of a single entry.
func (e *ApprovalEntry) Validate() error {
	switch e.ApproverRole {
	case RoleDirectorApprover, RoleAdminApprover:
	default:
		return fmt.Errorf("unknown approver role %q", e.ApproverRole)
	}
	switch e.Status {
	case EntryPending:
		if e.ApprovedAt != nil {
			return fmt.Errorf("pending entry carries a resolution time")
		}
	case EntryApproved, EntryRejected:
		if e.ApprovedAt == nil {
			return fmt.Errorf("%s entry has no resolution time", e.Status)
		}
	default:
		return fmt.Errorf("unknown entry status %q", e.Status)
	}
	if e.Status == EntryRejected && e.RejectionReason == "" {
		return fmt.Errorf("rejected entry has no reason")
	}
	if e.Status != EntryRejected && e.RejectionReason != "" {
		return fmt.Errorf("%s entry carries a rejection reason", e.Status)
	}
	if e.ID == "" {
		return fmt.Errorf("entry has no id")
	}
	return nil
}

// Resolve moves a pending entry to approved or rejected.
func (e *ApprovalEntry) Resolve(approved bool, reason string, at time.Time) error {
	if e.Status != EntryPending {
		return fmt.Errorf("%s entry %s already resolved as %s", e.ApproverRole, e.ID, e.Status)
	}
	ts := at
	e.ApprovedAt = &ts
	if approved {
		e.Status = EntryApproved
		return nil
	}
	e.Status = EntryRejected
	e.RejectionReason = reason
	return nil
}

func (e ApprovalEntry) clone() ApprovalEntry {
	if e.ApprovedAt != nil {
		ts := *e.ApprovedAt
		e.ApprovedAt = &ts
	}
	return e
}
