package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"constructflow/internal/models"
	"constructflow/internal/repositories"
)

const (
	adminID    = int64(1)
	directorID = int64(2)
	employeeID = int64(5)
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.TaskEvent
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, ev models.TaskEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

func (n *recordingNotifier) take() []models.TaskEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := n.events
	n.events = nil
	return out
}

// steppingClock returns strictly increasing instants.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func quietLog() *logrus.Entry {
	l, _ := test.NewNullLogger()
	return logrus.NewEntry(l)
}

type fixture struct {
	repo     *repositories.MemoryTaskRepository
	notifier *recordingNotifier
	svc      WorkflowService
}

func newFixture() *fixture {
	repo := repositories.NewMemoryTaskRepository()
	n := &recordingNotifier{}
	return &fixture{
		repo:     repo,
		notifier: n,
		svc:      NewWorkflowService(repo, n, quietLog(), WithClock(steppingClock())),
	}
}

func (f *fixture) create(t *testing.T) *models.Task {
	t.Helper()
	task, err := f.svc.Create(context.Background(), &models.Task{Title: "Install scaffolding", CreatedBy: adminID})
	require.NoError(t, err)
	return task
}

// awaitingDirector creates a task and walks it to pending_director_approval.
func (f *fixture) awaitingDirector(t *testing.T) *models.Task {
	t.Helper()
	ctx := context.Background()
	task := f.create(t)
	_, err := f.svc.AssignToDirector(ctx, task.ID, directorID)
	require.NoError(t, err)
	_, err = f.svc.AssignToEmployee(ctx, task.ID, employeeID)
	require.NoError(t, err)
	task, err = f.svc.MarkCompletedByEmployee(ctx, task.ID)
	require.NoError(t, err)
	f.notifier.take()
	return task
}

func (f *fixture) stored(t *testing.T, id int64) *models.Task {
	t.Helper()
	task, err := f.repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	require.NoError(t, task.CheckInvariants())
	return task
}

func TestCreate(t *testing.T) {
	f := newFixture()
	task := f.create(t)

	assert.Equal(t, models.StatusPending, task.Status)
	assert.Equal(t, models.LevelNone, task.CurrentApprovalLevel)
	assert.Empty(t, task.ApprovalChain)
	assert.NotZero(t, task.ID)
	assert.Equal(t, int64(0), task.Version)

	_, err := f.svc.Create(context.Background(), &models.Task{Title: "   ", CreatedBy: adminID})
	assert.ErrorIs(t, err, ErrInvalidInput)

	// the creator becomes the admin approver, so it cannot be left unset
	_, err = f.svc.Create(context.Background(), &models.Task{Title: "Install scaffolding"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	tasks, err := f.svc.List(context.Background(), models.TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	task := f.create(t)

	steps := []struct {
		name   string
		run    func() (*models.Task, error)
		status models.TaskStatus
		level  models.ApprovalLevel
		chain  int
	}{
		{"assign director", func() (*models.Task, error) { return f.svc.AssignToDirector(ctx, task.ID, directorID) },
			models.StatusAssignedToDirector, models.LevelNone, 0},
		{"assign employee", func() (*models.Task, error) { return f.svc.AssignToEmployee(ctx, task.ID, employeeID) },
			models.StatusAssignedToEmployee, models.LevelNone, 0},
		{"complete", func() (*models.Task, error) { return f.svc.MarkCompletedByEmployee(ctx, task.ID) },
			models.StatusPendingDirectorApproval, models.LevelDirector, 1},
		{"director approves", func() (*models.Task, error) { return f.svc.ApproveByDirector(ctx, task.ID, true, "") },
			models.StatusPendingAdminApproval, models.LevelAdmin, 2},
		{"admin approves", func() (*models.Task, error) { return f.svc.ApproveByAdmin(ctx, task.ID, true, "") },
			models.StatusCompleted, models.LevelNone, 2},
	}
	for i, st := range steps {
		got, err := st.run()
		require.NoError(t, err, st.name)
		assert.Equal(t, st.status, got.Status, st.name)
		assert.Equal(t, st.level, got.CurrentApprovalLevel, st.name)
		assert.Len(t, got.ApprovalChain, st.chain, st.name)
		assert.Equal(t, int64(i+1), got.Version, st.name)
		assert.Equal(t, got, f.stored(t, task.ID), st.name)
	}

	final := f.stored(t, task.ID)
	assert.Equal(t, directorID, final.AssignedDirector)
	assert.Equal(t, employeeID, final.AssignedEmployee)
	assert.Equal(t, employeeID, final.AssignedTo)
	dir, adm := final.ApprovalChain[0], final.ApprovalChain[1]
	assert.Equal(t, models.RoleDirectorApprover, dir.ApproverRole)
	assert.Equal(t, directorID, dir.ApproverUserID)
	assert.Equal(t, models.EntryApproved, dir.Status)
	assert.Equal(t, models.RoleAdminApprover, adm.ApproverRole)
	assert.Equal(t, adminID, adm.ApproverUserID)
	assert.Equal(t, models.EntryApproved, adm.Status)
	assert.NotNil(t, adm.ApprovedAt)
	assert.NotEqual(t, dir.ID, adm.ID)
}

func TestDirectorRejection(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	task := f.awaitingDirector(t)

	got, err := f.svc.ApproveByDirector(ctx, task.ID, false, "bad docs")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, got.Status)
	assert.Equal(t, models.LevelNone, got.CurrentApprovalLevel)
	assert.Equal(t, "bad docs", got.RejectionReason)
	require.Len(t, got.ApprovalChain, 1)
	assert.Equal(t, models.EntryRejected, got.ApprovalChain[0].Status)
	assert.Equal(t, "bad docs", got.ApprovalChain[0].RejectionReason)

	// terminal: nothing moves it anymore
	_, err = f.svc.ApproveByAdmin(ctx, task.ID, true, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.svc.ApproveByDirector(ctx, task.ID, true, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.svc.AssignToEmployee(ctx, task.ID, employeeID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, got.Version, f.stored(t, task.ID).Version)
}

func TestAdminRejectionWithDefaultReason(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	task := f.awaitingDirector(t)
	_, err := f.svc.ApproveByDirector(ctx, task.ID, true, "")
	require.NoError(t, err)

	got, err := f.svc.ApproveByAdmin(ctx, task.ID, false, "  ")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, got.Status)
	assert.Equal(t, DefaultRejectionReason, got.RejectionReason)
	require.Len(t, got.ApprovalChain, 2)
	assert.Equal(t, models.EntryApproved, got.ApprovalChain[0].Status)
	assert.Equal(t, models.EntryRejected, got.ApprovalChain[1].Status)
}

func TestAdminApprovalOnFreshTask(t *testing.T) {
	f := newFixture()
	task := f.create(t)

	_, err := f.svc.ApproveByAdmin(context.Background(), task.ID, true, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.False(t, IsRetryable(err))

	stored := f.stored(t, task.ID)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Equal(t, int64(0), stored.Version)
	assert.Empty(t, f.notifier.take())
}

func TestSecondDirectorApprovalIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	task := f.awaitingDirector(t)

	first, err := f.svc.ApproveByDirector(ctx, task.ID, true, "")
	require.NoError(t, err)
	_, err = f.svc.ApproveByDirector(ctx, task.ID, true, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	assert.Equal(t, first, f.stored(t, task.ID))
}

func TestCompletionRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	// no director assigned: the entry keeps approver 0 and nobody is notified
	task := f.create(t)
	got, err := f.svc.MarkCompletedByEmployee(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingDirectorApproval, got.Status)
	assert.Equal(t, int64(0), got.ApprovalChain[0].ApproverUserID)
	assert.Empty(t, f.notifier.take())

	_, err = f.svc.MarkCompletedByEmployee(ctx, task.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestReassignment(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	task := f.create(t)

	_, err := f.svc.AssignToDirector(ctx, task.ID, directorID)
	require.NoError(t, err)
	got, err := f.svc.AssignToDirector(ctx, task.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.AssignedDirector)

	_, err = f.svc.AssignToEmployee(ctx, task.ID, employeeID)
	require.NoError(t, err)
	got, err = f.svc.AssignToEmployee(ctx, task.ID, 6)
	require.NoError(t, err)
	assert.Equal(t, int64(6), got.AssignedEmployee)
	assert.Equal(t, int64(3), got.AssignedDirector)

	_, err = f.svc.MarkCompletedByEmployee(ctx, task.ID)
	require.NoError(t, err)
	_, err = f.svc.AssignToDirector(ctx, task.ID, directorID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.svc.AssignToEmployee(ctx, task.ID, employeeID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.svc.AssignToDirector(ctx, task.ID, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestUnknownTask(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	ops := map[string]func() (*models.Task, error){
		"assign director": func() (*models.Task, error) { return f.svc.AssignToDirector(ctx, 999, directorID) },
		"assign employee": func() (*models.Task, error) { return f.svc.AssignToEmployee(ctx, 999, employeeID) },
		"complete":        func() (*models.Task, error) { return f.svc.MarkCompletedByEmployee(ctx, 999) },
		"director":        func() (*models.Task, error) { return f.svc.ApproveByDirector(ctx, 999, true, "") },
		"admin":           func() (*models.Task, error) { return f.svc.ApproveByAdmin(ctx, 999, true, "") },
		"get":             func() (*models.Task, error) { return f.svc.GetByID(ctx, 999) },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			_, err := op()
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, err, repositories.ErrNotFound)
		})
	}
}

type faultyStore struct {
	repositories.TaskRepository
	findErr   error
	updateErr error
}

func (s *faultyStore) FindByID(ctx context.Context, id int64) (*models.Task, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.TaskRepository.FindByID(ctx, id)
}

func (s *faultyStore) Update(ctx context.Context, id, v int64, p *models.TaskPatch) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	return s.TaskRepository.Update(ctx, id, v, p)
}

func TestStoreFailuresSurfaceAsPersistence(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	task := f.create(t)
	dbErr := errors.New("connection reset")

	store := &faultyStore{TaskRepository: f.repo, findErr: dbErr}
	svc := NewWorkflowService(store, f.notifier, quietLog())
	_, err := svc.AssignToDirector(ctx, task.ID, directorID)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, dbErr)
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "assign-director", pe.Op)

	store.findErr, store.updateErr = nil, dbErr
	_, err = svc.AssignToDirector(ctx, task.ID, directorID)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.False(t, IsRetryable(err))

	assert.Equal(t, models.StatusPending, f.stored(t, task.ID).Status)
	assert.Empty(t, f.notifier.take())
}

// racingStore holds every FindByID until two callers have read, so both
// act on the same version.
type racingStore struct {
	repositories.TaskRepository
	arrived chan struct{}
	release chan struct{}
}

func (s *racingStore) FindByID(ctx context.Context, id int64) (*models.Task, error) {
	t, err := s.TaskRepository.FindByID(ctx, id)
	s.arrived <- struct{}{}
	<-s.release
	return t, err
}

func TestConcurrentDirectorApprovals(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	task := f.awaitingDirector(t)

	store := &racingStore{TaskRepository: f.repo, arrived: make(chan struct{}, 2), release: make(chan struct{})}
	svc := NewWorkflowService(store, f.notifier, quietLog(), WithClock(steppingClock()))

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := svc.ApproveByDirector(ctx, task.ID, true, "")
			errs <- err
		}()
	}
	<-store.arrived
	<-store.arrived
	close(store.release)

	var ok, conflicts int
	for i := 0; i < 2; i++ {
		err := <-errs
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrConflict):
			assert.True(t, IsRetryable(err))
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)

	final := f.stored(t, task.ID)
	assert.Equal(t, models.StatusPendingAdminApproval, final.Status)
	admins := 0
	for _, e := range final.ApprovalChain {
		if e.ApproverRole == models.RoleAdminApprover {
			admins++
		}
	}
	assert.Equal(t, 1, admins)
}

func TestNotifierFailureDoesNotAbort(t *testing.T) {
	f := newFixture()
	f.notifier.err = errors.New("smtp down")
	task := f.create(t)

	got, err := f.svc.AssignToDirector(context.Background(), task.ID, directorID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAssignedToDirector, got.Status)
	assert.Len(t, f.notifier.take(), 1)
}

func TestEvents(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	task := f.create(t)

	type want struct {
		kind models.EventKind
		to   int64
	}
	collect := func() []want {
		var out []want
		for _, ev := range f.notifier.take() {
			assert.Equal(t, task.ID, ev.TaskID)
			assert.Equal(t, "Install scaffolding", ev.Payload["title"])
			out = append(out, want{ev.Kind, ev.RecipientID})
		}
		return out
	}

	_, err := f.svc.AssignToDirector(ctx, task.ID, directorID)
	require.NoError(t, err)
	assert.Equal(t, []want{{models.EventTaskAssigned, directorID}}, collect())

	_, err = f.svc.AssignToEmployee(ctx, task.ID, employeeID)
	require.NoError(t, err)
	assert.Equal(t, []want{{models.EventTaskAssigned, employeeID}}, collect())

	_, err = f.svc.MarkCompletedByEmployee(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, []want{{models.EventApprovalRequested, directorID}}, collect())

	_, err = f.svc.ApproveByDirector(ctx, task.ID, true, "")
	require.NoError(t, err)
	assert.Equal(t, []want{
		{models.EventApprovalRequested, adminID},
		{models.EventTaskUpdated, employeeID},
	}, collect())

	_, err = f.svc.ApproveByAdmin(ctx, task.ID, true, "")
	require.NoError(t, err)
	assert.Equal(t, []want{
		{models.EventTaskUpdated, employeeID},
		{models.EventTaskUpdated, directorID},
	}, collect())
}

func TestListAndApprovalChain(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	a := f.awaitingDirector(t)
	f.create(t)

	lvl := models.LevelDirector
	tasks, err := f.svc.List(ctx, models.TaskFilter{ApprovalLevel: &lvl})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, a.ID, tasks[0].ID)

	chain, err := f.svc.ApprovalChain(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, chain, 1)
	assert.Equal(t, models.EntryPending, chain[0].Status)

	_, err = f.svc.ApprovalChain(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}
