package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"constructflow/internal/models"
)

// TaskRepository is the task store consumed by the workflow engine.
type TaskRepository interface {
	Store(ctx context.Context, task *models.Task) error
	FindByID(ctx context.Context, id int64) (*models.Task, error)
	FindAll(ctx context.Context, filter models.TaskFilter) ([]models.Task, error)
	// Update writes only the fields set in patch, and only if the stored
	// version still equals expectedVersion.
	Update(ctx context.Context, id, expectedVersion int64, patch *models.TaskPatch) error
}

type taskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) TaskRepository {
	return &taskRepository{db: db}
}

const taskColumns = `id, title, description, category, created_by,
       assigned_director, assigned_employee, assigned_to, status,
       current_approval_level, approval_chain, rejection_reason,
       version, created_at, updated_at`

func (r *taskRepository) Store(ctx context.Context, task *models.Task) error {
	chain, err := encodeChain(task.ApprovalChain)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO tasks (
			title, description, category, created_by, assigned_director, assigned_employee,
			assigned_to, status, current_approval_level, approval_chain, rejection_reason,
			version, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING id`
	err = r.db.QueryRowContext(ctx, query,
		task.Title, task.Description, task.Category, task.CreatedBy,
		task.AssignedDirector, task.AssignedEmployee, task.AssignedTo,
		task.Status, task.CurrentApprovalLevel, chain, task.RejectionReason,
		task.Version, task.CreatedAt, task.UpdatedAt,
	).Scan(&task.ID)
	return errors.Wrap(err, "insert task")
}

func (r *taskRepository) FindByID(ctx context.Context, id int64) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	task, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Wrapf(ErrNotFound, "task %d", id)
		}
		return nil, errors.Wrapf(err, "select task %d", id)
	}
	return task, nil
}

func (r *taskRepository) FindAll(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	baseQuery := `SELECT ` + taskColumns + ` FROM tasks`

	conditions := []string{}
	args := []interface{}{}
	argID := 1

	addInt := func(column string, v *int64) {
		if v == nil {
			return
		}
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, argID))
		args = append(args, *v)
		argID++
	}
	addInt("assigned_to", filter.AssignedTo)
	addInt("assigned_director", filter.AssignedDirector)
	addInt("assigned_employee", filter.AssignedEmployee)
	addInt("created_by", filter.CreatedBy)

	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", argID))
		args = append(args, pq.Array(statuses))
		argID++
	}
	if filter.ApprovalLevel != nil {
		conditions = append(conditions, fmt.Sprintf("current_approval_level = $%d", argID))
		args = append(args, *filter.ApprovalLevel)
		argID++
	}

	if len(conditions) > 0 {
		baseQuery += " WHERE " + strings.Join(conditions, " AND ")
	}
	baseQuery += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		baseQuery += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, baseQuery, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list tasks")
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan task")
		}
		tasks = append(tasks, *t)
	}
	return tasks, errors.WithStack(rows.Err())
}

func (r *taskRepository) Update(ctx context.Context, id, expectedVersion int64, patch *models.TaskPatch) error {
	sets := []string{}
	args := []interface{}{}
	argID := 1

	set := func(column string, v interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argID))
		args = append(args, v)
		argID++
	}
	if patch.AssignedDirector != nil {
		set("assigned_director", *patch.AssignedDirector)
	}
	if patch.AssignedEmployee != nil {
		set("assigned_employee", *patch.AssignedEmployee)
	}
	if patch.AssignedTo != nil {
		set("assigned_to", *patch.AssignedTo)
	}
	if patch.Status != nil {
		set("status", *patch.Status)
	}
	if patch.CurrentApprovalLevel != nil {
		set("current_approval_level", *patch.CurrentApprovalLevel)
	}
	if patch.ApprovalChain != nil {
		chain, err := encodeChain(patch.ApprovalChain)
		if err != nil {
			return err
		}
		set("approval_chain", chain)
	}
	if patch.RejectionReason != nil {
		set("rejection_reason", *patch.RejectionReason)
	}
	set("updated_at", patch.UpdatedAt)

	query := fmt.Sprintf(`UPDATE tasks SET %s, version = version + 1 WHERE id = $%d AND version = $%d`,
		strings.Join(sets, ", "), argID, argID+1)
	args = append(args, id, expectedVersion)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrapf(err, "update task %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "update task %d", id)
	}
	if n == 1 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM tasks WHERE id = $1)`, id).Scan(&exists); err != nil {
		return errors.Wrapf(err, "check task %d", id)
	}
	if !exists {
		return errors.Wrapf(ErrNotFound, "task %d", id)
	}
	return errors.Wrapf(ErrVersionConflict, "task %d expected version %d", id, expectedVersion)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	t := &models.Task{}
	var chain []byte
	if err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.Category, &t.CreatedBy,
		&t.AssignedDirector, &t.AssignedEmployee, &t.AssignedTo, &t.Status,
		&t.CurrentApprovalLevel, &chain, &t.RejectionReason,
		&t.Version, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(chain) > 0 {
		if err := json.Unmarshal(chain, &t.ApprovalChain); err != nil {
			return nil, errors.Wrapf(err, "decode approval chain of task %d", t.ID)
		}
	}
	if t.ApprovalChain == nil {
		t.ApprovalChain = []models.ApprovalEntry{}
	}
	return t, nil
}

// encodeChain renders the chain as text so lib/pq sends it as jsonb, not bytea.
func encodeChain(chain []models.ApprovalEntry) (string, error) {
	if chain == nil {
		chain = []models.ApprovalEntry{}
	}
	b, err := json.Marshal(chain)
	if err != nil {
		return "", errors.Wrap(err, "encode approval chain")
	}
	return string(b), nil
}
