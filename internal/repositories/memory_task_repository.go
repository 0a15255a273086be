package repositories

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"constructflow/internal/models"
)

// MemoryTaskRepository keeps tasks in process memory. Every read and
// write goes through a deep copy so callers never share state with the
// store.
type MemoryTaskRepository struct {
	mu     sync.RWMutex
	nextID int64
	tasks  map[int64]*models.Task
}

func NewMemoryTaskRepository() *MemoryTaskRepository {
	return &MemoryTaskRepository{tasks: make(map[int64]*models.Task)}
}

func (r *MemoryTaskRepository) Store(_ context.Context, task *models.Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	task.ID = r.nextID
	for i := range task.ApprovalChain {
		task.ApprovalChain[i].TaskID = task.ID
	}
	r.tasks[task.ID] = task.Clone()
	return nil
}

func (r *MemoryTaskRepository) FindByID(_ context.Context, id int64) (*models.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "task %d", id)
	}
	return t.Clone(), nil
}

func (r *MemoryTaskRepository) FindAll(_ context.Context, filter models.TaskFilter) ([]models.Task, error) {
	r.mu.RLock()
	out := make([]models.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		if matches(t, filter) {
			out = append(out, *t.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *MemoryTaskRepository) Update(_ context.Context, id, expectedVersion int64, patch *models.TaskPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return errors.Wrapf(ErrNotFound, "task %d", id)
	}
	if t.Version != expectedVersion {
		return errors.Wrapf(ErrVersionConflict, "task %d expected version %d, stored %d", id, expectedVersion, t.Version)
	}
	updated := t.Clone()
	p := *patch
	if p.ApprovalChain != nil {
		p.ApprovalChain = (&models.Task{ApprovalChain: patch.ApprovalChain}).Clone().ApprovalChain
	}
	p.Apply(updated)
	r.tasks[id] = updated
	return nil
}

func matches(t *models.Task, f models.TaskFilter) bool {
	if f.AssignedTo != nil && t.AssignedTo != *f.AssignedTo {
		return false
	}
	if f.AssignedDirector != nil && t.AssignedDirector != *f.AssignedDirector {
		return false
	}
	if f.AssignedEmployee != nil && t.AssignedEmployee != *f.AssignedEmployee {
		return false
	}
	if f.CreatedBy != nil && t.CreatedBy != *f.CreatedBy {
		return false
	}
	if f.ApprovalLevel != nil && t.CurrentApprovalLevel != *f.ApprovalLevel {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if t.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
