// internal/models/task.go
package models

import (
	"fmt"
	"time"
)

// TaskStatus defines the lifecycle states of a task.
type TaskStatus string

const (
	StatusPending                 TaskStatus = "pending"
	StatusAssignedToDirector      TaskStatus = "assigned_to_director"
	StatusAssignedToEmployee      TaskStatus = "assigned_to_employee"
	StatusPendingDirectorApproval TaskStatus = "pending_director_approval"
	StatusPendingAdminApproval    TaskStatus = "pending_admin_approval"
	StatusCompleted               TaskStatus = "completed"
	StatusRejected                TaskStatus = "rejected"
)

// ApprovalLevel names whose action is currently pending.
type ApprovalLevel string

const (
	LevelNone     ApprovalLevel = "none"
	LevelDirector ApprovalLevel = "director"
	LevelAdmin    ApprovalLevel = "admin"
)

func (l ApprovalLevel) Valid() bool {
	return l == LevelNone || l == LevelDirector || l == LevelAdmin
}

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAssignedToDirector, StatusAssignedToEmployee,
		StatusPendingDirectorApproval, StatusPendingAdminApproval,
		StatusCompleted, StatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions can happen.
func (s TaskStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// AwaitsApproval reports whether the status is one of the pending_*_approval states.
func (s TaskStatus) AwaitsApproval() bool {
	return s == StatusPendingDirectorApproval || s == StatusPendingAdminApproval
}

// ChainStarted reports whether the employee has already reported completion.
func (s TaskStatus) ChainStarted() bool {
	return s.AwaitsApproval() || s.IsTerminal()
}

// Task represents a unit of work routed through the approval hierarchy.
type Task struct {
	ID                   int64           `json:"id"`
	Title                string          `json:"title"`
	Description          string          `json:"description"`
	Category             string          `json:"category"`
	CreatedBy            int64           `json:"created_by"`
	AssignedDirector     int64           `json:"assigned_director,omitempty"`
	AssignedEmployee     int64           `json:"assigned_employee,omitempty"`
	AssignedTo           int64           `json:"assigned_to,omitempty"`
	Status               TaskStatus      `json:"status"`
	CurrentApprovalLevel ApprovalLevel   `json:"current_approval_level"`
	ApprovalChain        []ApprovalEntry `json:"approval_chain"`
	RejectionReason      string          `json:"rejection_reason,omitempty"`
	Version              int64           `json:"version"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// Clone returns a deep copy, so callers never share the chain slice.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	out := *t
	if t.ApprovalChain != nil {
		out.ApprovalChain = make([]ApprovalEntry, len(t.ApprovalChain))
		for i, e := range t.ApprovalChain {
			out.ApprovalChain[i] = e.clone()
		}
	}
	return &out
}

// PendingEntry returns the index of the pending entry for role, or -1.
func (t *Task) PendingEntry(role ApproverRole) int {
	for i, e := range t.ApprovalChain {
		if e.ApproverRole == role && e.Status == EntryPending {
			return i
		}
	}
	return -1
}

// CheckInvariants validates the structural rules of the approval chain
// against the task status and approval level.
func (t *Task) CheckInvariants() error {
	if !t.Status.Valid() {
		return fmt.Errorf("unknown status %q", t.Status)
	}

	var pendingRole ApprovalLevel = LevelNone
	for i := range t.ApprovalChain {
		e := &t.ApprovalChain[i]
		if err := e.Validate(); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		if e.Status == EntryPending {
			if pendingRole != LevelNone {
				return fmt.Errorf("more than one pending entry in chain")
			}
			pendingRole = ApprovalLevel(e.ApproverRole)
		}
	}
	if t.CurrentApprovalLevel != pendingRole {
		return fmt.Errorf("approval level %q does not match pending entry %q", t.CurrentApprovalLevel, pendingRole)
	}
	if !t.Status.AwaitsApproval() && t.CurrentApprovalLevel != LevelNone {
		return fmt.Errorf("approval level %q set while status is %q", t.CurrentApprovalLevel, t.Status)
	}

	// strict ordering: director first, admin only after an approved director entry
	for i, e := range t.ApprovalChain {
		switch {
		case i == 0 && e.ApproverRole != RoleDirectorApprover:
			return fmt.Errorf("chain must start with a director entry")
		case i == 1 && (e.ApproverRole != RoleAdminApprover || t.ApprovalChain[0].Status != EntryApproved):
			return fmt.Errorf("admin entry requires an approved director entry")
		case i > 1:
			return fmt.Errorf("chain holds more than two entries")
		}
		if i > 0 && e.CreatedAt.Before(t.ApprovalChain[i-1].CreatedAt) {
			return fmt.Errorf("entry %d created before its predecessor", i)
		}
	}
	if !t.Status.ChainStarted() && len(t.ApprovalChain) > 0 {
		return fmt.Errorf("status %q does not allow approval entries", t.Status)
	}

	switch t.Status {
	case StatusPendingDirectorApproval:
		if len(t.ApprovalChain) != 1 || t.CurrentApprovalLevel != LevelDirector {
			return fmt.Errorf("status %q requires a single pending director entry", t.Status)
		}
	case StatusPendingAdminApproval:
		if len(t.ApprovalChain) != 2 || t.CurrentApprovalLevel != LevelAdmin {
			return fmt.Errorf("status %q requires a pending admin entry", t.Status)
		}
	case StatusCompleted:
		if len(t.ApprovalChain) != 2 ||
			t.ApprovalChain[0].Status != EntryApproved ||
			t.ApprovalChain[1].Status != EntryApproved {
			return fmt.Errorf("completed task requires approved director and admin entries")
		}
	case StatusRejected:
		rejected := 0
		for _, e := range t.ApprovalChain {
			if e.Status == EntryRejected {
				rejected++
			}
		}
		last := len(t.ApprovalChain) - 1
		if rejected != 1 || last < 0 || t.ApprovalChain[last].Status != EntryRejected {
			return fmt.Errorf("rejected task requires exactly one rejected entry at the end of the chain")
		}
		if t.RejectionReason == "" {
			return fmt.Errorf("rejected task requires a rejection reason")
		}
	}
	if t.Status != StatusRejected && t.RejectionReason != "" {
		return fmt.Errorf("rejection reason set while status is %q", t.Status)
	}
	return nil
}

// TaskPatch is a field-level update: only non-nil fields are written.
type TaskPatch struct {
	AssignedDirector     *int64
	AssignedEmployee     *int64
	AssignedTo           *int64
	Status               *TaskStatus
	CurrentApprovalLevel *ApprovalLevel
	ApprovalChain        []ApprovalEntry
	RejectionReason      *string
	UpdatedAt            time.Time
}

// Apply merges the patch into t and bumps its version.
func (p *TaskPatch) Apply(t *Task) {
	if p.AssignedDirector != nil {
		t.AssignedDirector = *p.AssignedDirector
	}
	if p.AssignedEmployee != nil {
		t.AssignedEmployee = *p.AssignedEmployee
	}
	if p.AssignedTo != nil {
		t.AssignedTo = *p.AssignedTo
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.CurrentApprovalLevel != nil {
		t.CurrentApprovalLevel = *p.CurrentApprovalLevel
	}
	if p.ApprovalChain != nil {
		t.ApprovalChain = p.ApprovalChain
	}
	if p.RejectionReason != nil {
		t.RejectionReason = *p.RejectionReason
	}
	t.UpdatedAt = p.UpdatedAt
	t.Version++
}

// TaskFilter defines the available parameters for filtering tasks.
type TaskFilter struct {
	AssignedTo       *int64
	AssignedDirector *int64
	AssignedEmployee *int64
	CreatedBy        *int64
	Statuses         []TaskStatus
	ApprovalLevel    *ApprovalLevel
	Limit            int
}
