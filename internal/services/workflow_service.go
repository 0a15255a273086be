// internal/services/workflow_service.go
package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"constructflow/internal/models"
	"constructflow/internal/repositories"
	"constructflow/internal/tracing"
)

// Notifier receives domain events after a transition has been persisted.
// Delivery is best-effort; errors never abort a transition.
type Notifier interface {
	Notify(ctx context.Context, event models.TaskEvent) error
}

// WorkflowService is the task approval state machine.
type WorkflowService interface {
	Create(ctx context.Context, task *models.Task) (*models.Task, error)
	AssignToDirector(ctx context.Context, taskID, directorID int64) (*models.Task, error)
	AssignToEmployee(ctx context.Context, taskID, employeeID int64) (*models.Task, error)
	MarkCompletedByEmployee(ctx context.Context, taskID int64) (*models.Task, error)
	ApproveByDirector(ctx context.Context, taskID int64, approved bool, reason string) (*models.Task, error)
	ApproveByAdmin(ctx context.Context, taskID int64, approved bool, reason string) (*models.Task, error)

	GetByID(ctx context.Context, id int64) (*models.Task, error)
	List(ctx context.Context, filter models.TaskFilter) ([]models.Task, error)
	ApprovalChain(ctx context.Context, id int64) ([]models.ApprovalEntry, error)
}

// DefaultRejectionReason is stored when a rejection comes without a reason.
const DefaultRejectionReason = "rejected"

type WorkflowOption func(s *workflowService)

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) WorkflowOption {
	return func(s *workflowService) { s.now = now }
}

type workflowService struct {
	repo     repositories.TaskRepository
	notifier Notifier
	log      *logrus.Entry
	now      func() time.Time
}

// NewWorkflowService creates the engine. notifier may be nil.
func NewWorkflowService(repo repositories.TaskRepository, notifier Notifier, log *logrus.Entry, opts ...WorkflowOption) WorkflowService {
	s := &workflowService{
		repo:     repo,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logrus.NewEntry(logrus.StandardLogger())
	}
	return s
}

func (s *workflowService) Create(ctx context.Context, task *models.Task) (out *models.Task, err error) {
	ctx, span := tracing.StartSpan(ctx, "workflow.Create")
	defer func() { span.End(err) }()

	if task == nil || strings.TrimSpace(task.Title) == "" {
		return nil, fmt.Errorf("create: %w: title is required", ErrInvalidInput)
	}
	if task.CreatedBy <= 0 {
		return nil, fmt.Errorf("create: %w: created_by is required", ErrInvalidInput)
	}
	now := s.now()
	t := &models.Task{
		Title:                strings.TrimSpace(task.Title),
		Description:          task.Description,
		Category:             task.Category,
		CreatedBy:            task.CreatedBy,
		Status:               models.StatusPending,
		CurrentApprovalLevel: models.LevelNone,
		ApprovalChain:        []models.ApprovalEntry{},
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.repo.Store(ctx, t); err != nil {
		s.log.WithError(err).Error("[workflow][create][err]")
		return nil, mapStoreError("create", err)
	}
	span.SetInt("task.id", t.ID)
	s.log.WithFields(logrus.Fields{"task_id": t.ID, "created_by": t.CreatedBy}).Info("[workflow][create][ok]")
	return t, nil
}

func (s *workflowService) AssignToDirector(ctx context.Context, taskID, directorID int64) (*models.Task, error) {
	return s.transition(ctx, "assign-director", taskID, func(t *models.Task, now time.Time) (*models.TaskPatch, []models.TaskEvent, error) {
		if directorID <= 0 {
			return nil, nil, fmt.Errorf("assign-director: %w: director id is required", ErrInvalidInput)
		}
		if t.Status.ChainStarted() {
			return nil, nil, invalidTransition("assign-director", "task %d is %s, approval chain already started", t.ID, t.Status)
		}
		status := models.StatusAssignedToDirector
		patch := &models.TaskPatch{
			AssignedDirector: &directorID,
			AssignedTo:       &directorID,
			Status:           &status,
		}
		return patch, []models.TaskEvent{
			newEvent(models.EventTaskAssigned, t, directorID, now, "role", "director"),
		}, nil
	})
}

func (s *workflowService) AssignToEmployee(ctx context.Context, taskID, employeeID int64) (*models.Task, error) {
	return s.transition(ctx, "assign-employee", taskID, func(t *models.Task, now time.Time) (*models.TaskPatch, []models.TaskEvent, error) {
		if employeeID <= 0 {
			return nil, nil, fmt.Errorf("assign-employee: %w: employee id is required", ErrInvalidInput)
		}
		if t.Status.ChainStarted() {
			return nil, nil, invalidTransition("assign-employee", "task %d is %s, approval chain already started", t.ID, t.Status)
		}
		status := models.StatusAssignedToEmployee
		patch := &models.TaskPatch{
			AssignedEmployee: &employeeID,
			AssignedTo:       &employeeID,
			Status:           &status,
		}
		return patch, []models.TaskEvent{
			newEvent(models.EventTaskAssigned, t, employeeID, now, "role", "employee"),
		}, nil
	})
}

func (s *workflowService) MarkCompletedByEmployee(ctx context.Context, taskID int64) (*models.Task, error) {
	return s.transition(ctx, "complete", taskID, func(t *models.Task, now time.Time) (*models.TaskPatch, []models.TaskEvent, error) {
		if t.Status.ChainStarted() {
			return nil, nil, invalidTransition("complete", "task %d is %s, completion already reported", t.ID, t.Status)
		}
		// AssignedDirector is 0 when no director was set; the entry keeps the sentinel.
		entry := models.NewApprovalEntry(t.ID, t.AssignedDirector, models.RoleDirectorApprover, now)
		chain := append(cloneChain(t.ApprovalChain), entry)
		status := models.StatusPendingDirectorApproval
		level := models.LevelDirector
		patch := &models.TaskPatch{
			Status:               &status,
			CurrentApprovalLevel: &level,
			ApprovalChain:        chain,
		}
		return patch, []models.TaskEvent{
			newEvent(models.EventApprovalRequested, t, t.AssignedDirector, now, "level", string(level)),
		}, nil
	})
}

func (s *workflowService) ApproveByDirector(ctx context.Context, taskID int64, approved bool, reason string) (*models.Task, error) {
	return s.transition(ctx, "approve-director", taskID, func(t *models.Task, now time.Time) (*models.TaskPatch, []models.TaskEvent, error) {
		idx := t.PendingEntry(models.RoleDirectorApprover)
		if idx < 0 || t.Status != models.StatusPendingDirectorApproval {
			return nil, nil, invalidTransition("approve-director", "task %d is %s with no pending director entry", t.ID, t.Status)
		}
		chain := cloneChain(t.ApprovalChain)
		if approved {
			if err := chain[idx].Resolve(true, "", now); err != nil {
				return nil, nil, invalidTransition("approve-director", "%v", err)
			}
			chain = append(chain, models.NewApprovalEntry(t.ID, t.CreatedBy, models.RoleAdminApprover, now))
			status := models.StatusPendingAdminApproval
			level := models.LevelAdmin
			return &models.TaskPatch{
					Status:               &status,
					CurrentApprovalLevel: &level,
					ApprovalChain:        chain,
				}, []models.TaskEvent{
					newEvent(models.EventApprovalRequested, t, t.CreatedBy, now, "level", string(level)),
					newEvent(models.EventTaskUpdated, t, t.AssignedEmployee, now, "status", string(status)),
				}, nil
		}

		reason = rejectionReason(reason)
		if err := chain[idx].Resolve(false, reason, now); err != nil {
			return nil, nil, invalidTransition("approve-director", "%v", err)
		}
		return rejectPatch(chain, reason), []models.TaskEvent{
			newEvent(models.EventTaskUpdated, t, t.AssignedEmployee, now, "status", string(models.StatusRejected), "reason", reason),
			newEvent(models.EventTaskUpdated, t, t.CreatedBy, now, "status", string(models.StatusRejected), "reason", reason),
		}, nil
	})
}

func (s *workflowService) ApproveByAdmin(ctx context.Context, taskID int64, approved bool, reason string) (*models.Task, error) {
	return s.transition(ctx, "approve-admin", taskID, func(t *models.Task, now time.Time) (*models.TaskPatch, []models.TaskEvent, error) {
		idx := t.PendingEntry(models.RoleAdminApprover)
		if idx < 0 || t.Status != models.StatusPendingAdminApproval {
			return nil, nil, invalidTransition("approve-admin", "task %d is %s with no pending admin entry", t.ID, t.Status)
		}
		chain := cloneChain(t.ApprovalChain)
		if approved {
			if err := chain[idx].Resolve(true, "", now); err != nil {
				return nil, nil, invalidTransition("approve-admin", "%v", err)
			}
			status := models.StatusCompleted
			level := models.LevelNone
			return &models.TaskPatch{
					Status:               &status,
					CurrentApprovalLevel: &level,
					ApprovalChain:        chain,
				}, []models.TaskEvent{
					newEvent(models.EventTaskUpdated, t, t.AssignedEmployee, now, "status", string(status)),
					newEvent(models.EventTaskUpdated, t, t.AssignedDirector, now, "status", string(status)),
				}, nil
		}

		reason = rejectionReason(reason)
		if err := chain[idx].Resolve(false, reason, now); err != nil {
			return nil, nil, invalidTransition("approve-admin", "%v", err)
		}
		return rejectPatch(chain, reason), []models.TaskEvent{
			newEvent(models.EventTaskUpdated, t, t.AssignedEmployee, now, "status", string(models.StatusRejected), "reason", reason),
			newEvent(models.EventTaskUpdated, t, t.AssignedDirector, now, "status", string(models.StatusRejected), "reason", reason),
		}, nil
	})
}

func (s *workflowService) GetByID(ctx context.Context, id int64) (*models.Task, error) {
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapStoreError("get", err)
	}
	return t, nil
}

func (s *workflowService) List(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	tasks, err := s.repo.FindAll(ctx, filter)
	if err != nil {
		return nil, mapStoreError("list", err)
	}
	return tasks, nil
}

func (s *workflowService) ApprovalChain(ctx context.Context, id int64) ([]models.ApprovalEntry, error) {
	t, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return t.ApprovalChain, nil
}

type transitionFunc func(t *models.Task, now time.Time) (*models.TaskPatch, []models.TaskEvent, error)

// transition runs one read-modify-write cycle: fresh read, pure state
// change, invariant check, conditional write on the read version, then
// event emission.
func (s *workflowService) transition(ctx context.Context, op string, taskID int64, fn transitionFunc) (out *models.Task, err error) {
	ctx, span := tracing.StartSpan(ctx, "workflow."+op)
	span.SetInt("task.id", taskID)
	defer func() { span.End(err) }()

	log := s.log.WithFields(logrus.Fields{"op": op, "task_id": taskID})

	current, err := s.repo.FindByID(ctx, taskID)
	if err != nil {
		err = mapStoreError(op, err)
		log.WithError(err).Warn("[workflow][load][err]")
		return nil, err
	}

	now := s.now()
	patch, events, err := fn(current, now)
	if err != nil {
		log.WithError(err).WithField("status", current.Status).Warn("[workflow][deny]")
		return nil, err
	}
	patch.UpdatedAt = now

	next := current.Clone()
	patch.Apply(next)
	if ierr := next.CheckInvariants(); ierr != nil {
		err = invalidTransition(op, "invariant violated: %v", ierr)
		log.WithError(err).Error("[workflow][invariant][err]")
		return nil, err
	}

	if err = s.repo.Update(ctx, taskID, current.Version, patch); err != nil {
		err = mapStoreError(op, err)
		log.WithError(err).Warn("[workflow][save][err]")
		return nil, err
	}
	span.SetString("task.status", string(next.Status))
	log.WithFields(logrus.Fields{
		"from":  current.Status,
		"to":    next.Status,
		"level": next.CurrentApprovalLevel,
	}).Info("[workflow][ok]")

	s.emit(ctx, events)
	return next, nil
}

func (s *workflowService) emit(ctx context.Context, events []models.TaskEvent) {
	if s.notifier == nil {
		return
	}
	seen := map[string]bool{}
	for _, ev := range events {
		if ev.RecipientID == 0 {
			s.log.WithFields(logrus.Fields{"task_id": ev.TaskID, "kind": ev.Kind}).Debug("[workflow][notify] skip: no recipient")
			continue
		}
		key := string(ev.Kind) + ":" + strconv.FormatInt(ev.RecipientID, 10)
		if seen[key] {
			continue
		}
		seen[key] = true
		if err := s.notifier.Notify(ctx, ev); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"task_id":   ev.TaskID,
				"recipient": ev.RecipientID,
				"kind":      ev.Kind,
			}).Warn("[workflow][notify][err]")
		}
	}
}

func newEvent(kind models.EventKind, t *models.Task, recipient int64, now time.Time, kv ...string) models.TaskEvent {
	payload := map[string]string{"title": t.Title}
	for i := 0; i+1 < len(kv); i += 2 {
		payload[kv[i]] = kv[i+1]
	}
	return models.TaskEvent{
		Kind:        kind,
		TaskID:      t.ID,
		RecipientID: recipient,
		Payload:     payload,
		OccurredAt:  now,
	}
}

func rejectPatch(chain []models.ApprovalEntry, reason string) *models.TaskPatch {
	status := models.StatusRejected
	level := models.LevelNone
	return &models.TaskPatch{
		Status:               &status,
		CurrentApprovalLevel: &level,
		ApprovalChain:        chain,
		RejectionReason:      &reason,
	}
}

func rejectionReason(reason string) string {
	if r := strings.TrimSpace(reason); r != "" {
		return r
	}
	return DefaultRejectionReason
}

func cloneChain(chain []models.ApprovalEntry) []models.ApprovalEntry {
	return (&models.Task{ApprovalChain: chain}).Clone().ApprovalChain
}
