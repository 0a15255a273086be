package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"constructflow/internal/models"
)

func newStoredTask(t *testing.T, repo *MemoryTaskRepository, title string, created time.Time) *models.Task {
	t.Helper()
	task := &models.Task{
		Title:                title,
		CreatedBy:            1,
		Status:               models.StatusPending,
		CurrentApprovalLevel: models.LevelNone,
		ApprovalChain:        []models.ApprovalEntry{},
		CreatedAt:            created,
		UpdatedAt:            created,
	}
	require.NoError(t, repo.Store(context.Background(), task))
	return task
}

func TestMemoryStoreAssignsIDs(t *testing.T) {
	repo := NewMemoryTaskRepository()
	a := newStoredTask(t, repo, "a", time.Now())
	b := newStoredTask(t, repo, "b", time.Now())
	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, int64(2), b.ID)
}

func TestMemoryFindByIDReturnsCopy(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTaskRepository()
	task := newStoredTask(t, repo, "a", time.Now())

	got, err := repo.FindByID(ctx, task.ID)
	require.NoError(t, err)
	got.Title = "changed"

	again, err := repo.FindByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", again.Title)

	_, err = repo.FindByID(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryUpdateVersionCheck(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTaskRepository()
	task := newStoredTask(t, repo, "a", time.Now())

	dir := int64(2)
	status := models.StatusAssignedToDirector
	patch := &models.TaskPatch{AssignedDirector: &dir, AssignedTo: &dir, Status: &status, UpdatedAt: time.Now()}

	require.NoError(t, repo.Update(ctx, task.ID, 0, patch))
	err := repo.Update(ctx, task.ID, 0, patch)
	assert.ErrorIs(t, err, ErrVersionConflict)

	got, err := repo.FindByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, models.StatusAssignedToDirector, got.Status)
	assert.Equal(t, int64(2), got.AssignedDirector)

	assert.ErrorIs(t, repo.Update(ctx, 42, 0, patch), ErrNotFound)
}

func TestMemoryUpdateDoesNotAliasChain(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTaskRepository()
	task := newStoredTask(t, repo, "a", time.Now())

	chain := []models.ApprovalEntry{models.NewApprovalEntry(task.ID, 2, models.RoleDirectorApprover, time.Now())}
	require.NoError(t, repo.Update(ctx, task.ID, 0, &models.TaskPatch{ApprovalChain: chain}))
	chain[0].Status = models.EntryApproved

	got, err := repo.FindByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EntryPending, got.ApprovalChain[0].Status)
}

func TestMemoryFindAllFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTaskRepository()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := newStoredTask(t, repo, "a", base)
	b := newStoredTask(t, repo, "b", base.Add(time.Hour))
	newStoredTask(t, repo, "c", base.Add(2*time.Hour))

	emp := int64(5)
	status := models.StatusAssignedToEmployee
	for _, id := range []int64{a.ID, b.ID} {
		require.NoError(t, repo.Update(ctx, id, 0, &models.TaskPatch{AssignedEmployee: &emp, AssignedTo: &emp, Status: &status}))
	}

	all, err := repo.FindAll(ctx, models.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{all[0].Title, all[1].Title, all[2].Title})

	mine, err := repo.FindAll(ctx, models.TaskFilter{AssignedEmployee: &emp})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	pending, err := repo.FindAll(ctx, models.TaskFilter{Statuses: []models.TaskStatus{models.StatusPending}})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "c", pending[0].Title)

	limited, err := repo.FindAll(ctx, models.TaskFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "c", limited[0].Title)
}
