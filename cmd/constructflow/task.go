package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/spf13/cobra"

	"constructflow/internal/app"
	"constructflow/internal/models"
	"constructflow/internal/services"
)

const (
	conflictAttempts = 5
	conflictDelay    = 100 * time.Millisecond
)

func newTaskCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Drive tasks through the approval workflow",
	}
	cmd.AddCommand(
		newTaskCreateCmd(opts),
		newTaskShowCmd(opts),
		newTaskListCmd(opts),
		newTaskIDCmd(opts, "assign-director TASK_ID DIRECTOR_ID", "Assign a director", 2, false,
			func(ctx context.Context, wf services.WorkflowService, ids []int64, _ decision) (*models.Task, error) {
				return wf.AssignToDirector(ctx, ids[0], ids[1])
			}),
		newTaskIDCmd(opts, "assign-employee TASK_ID EMPLOYEE_ID", "Assign an employee", 2, false,
			func(ctx context.Context, wf services.WorkflowService, ids []int64, _ decision) (*models.Task, error) {
				return wf.AssignToEmployee(ctx, ids[0], ids[1])
			}),
		newTaskIDCmd(opts, "complete TASK_ID", "Report the task as done by the employee", 1, false,
			func(ctx context.Context, wf services.WorkflowService, ids []int64, _ decision) (*models.Task, error) {
				return wf.MarkCompletedByEmployee(ctx, ids[0])
			}),
		newTaskIDCmd(opts, "approve-director TASK_ID", "Record the director decision", 1, true,
			func(ctx context.Context, wf services.WorkflowService, ids []int64, d decision) (*models.Task, error) {
				return wf.ApproveByDirector(ctx, ids[0], !d.reject, d.reason)
			}),
		newTaskIDCmd(opts, "approve-admin TASK_ID", "Record the admin decision", 1, true,
			func(ctx context.Context, wf services.WorkflowService, ids []int64, d decision) (*models.Task, error) {
				return wf.ApproveByAdmin(ctx, ids[0], !d.reject, d.reason)
			}),
	)
	return cmd
}

type decision struct {
	reject bool
	reason string
}

type taskOp func(ctx context.Context, wf services.WorkflowService, ids []int64, d decision) (*models.Task, error)

func newTaskIDCmd(opts *rootOptions, use, short string, nargs int, decides bool, op taskOp) *cobra.Command {
	d := &decision{}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return withRuntime(cmd, opts, func(ctx context.Context, rt *app.Runtime) error {
				var task *models.Task
				err := retryOnConflict(ctx, func() error {
					var err error
					task, err = op(ctx, rt.Workflow, ids, *d)
					return err
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), task)
			})
		},
	}
	if decides {
		cmd.Flags().BoolVar(&d.reject, "reject", false, "reject instead of approve")
		cmd.Flags().StringVar(&d.reason, "reason", "", "rejection reason")
	}
	return cmd
}

func newTaskCreateCmd(opts *rootOptions) *cobra.Command {
	var (
		description string
		category    string
		createdBy   int64
	)
	cmd := &cobra.Command{
		Use:   "create TITLE",
		Short: "Create a pending task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, opts, func(ctx context.Context, rt *app.Runtime) error {
				task, err := rt.Workflow.Create(ctx, &models.Task{
					Title:       strings.Join(args, " "),
					Description: description,
					Category:    category,
					CreatedBy:   createdBy,
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), task)
			})
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "task description")
	cmd.Flags().StringVar(&category, "category", "", "task category")
	cmd.Flags().Int64Var(&createdBy, "created-by", 0, "admin user id (receives admin approval requests)")
	_ = cmd.MarkFlagRequired("created-by")
	return cmd
}

func newTaskShowCmd(opts *rootOptions) *cobra.Command {
	var chainOnly bool
	cmd := &cobra.Command{
		Use:   "show TASK_ID",
		Short: "Print a task (or only its approval chain)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return withRuntime(cmd, opts, func(ctx context.Context, rt *app.Runtime) error {
				if chainOnly {
					chain, err := rt.Workflow.ApprovalChain(ctx, ids[0])
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), chain)
				}
				task, err := rt.Workflow.GetByID(ctx, ids[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), task)
			})
		},
	}
	cmd.Flags().BoolVar(&chainOnly, "chain", false, "print only the approval chain")
	return cmd
}

func newTaskListCmd(opts *rootOptions) *cobra.Command {
	var (
		statuses   []string
		assignedTo int64
		level      string
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter models.TaskFilter
			for _, s := range statuses {
				st := models.TaskStatus(s)
				if !st.Valid() {
					return fmt.Errorf("unknown status %q", s)
				}
				filter.Statuses = append(filter.Statuses, st)
			}
			if cmd.Flags().Changed("assigned-to") {
				filter.AssignedTo = &assignedTo
			}
			if level != "" {
				lvl := models.ApprovalLevel(level)
				if !lvl.Valid() {
					return fmt.Errorf("unknown level %q", level)
				}
				filter.ApprovalLevel = &lvl
			}
			filter.Limit = limit
			return withRuntime(cmd, opts, func(ctx context.Context, rt *app.Runtime) error {
				tasks, err := rt.Workflow.List(ctx, filter)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), tasks)
			})
		},
	}
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "filter by status (repeatable)")
	cmd.Flags().Int64Var(&assignedTo, "assigned-to", 0, "filter by current assignee")
	cmd.Flags().StringVar(&level, "level", "", "filter by approval level: none|director|admin")
	cmd.Flags().IntVar(&limit, "limit", 50, "max rows, 0 for all")
	return cmd
}

func withRuntime(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, rt *app.Runtime) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := opts.runtime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(context.Background())
	return fn(ctx, rt)
}

// retryOnConflict re-runs fn while it fails with a retryable workflow error.
func retryOnConflict(ctx context.Context, fn func() error) error {
	return retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(conflictAttempts),
		retry.Delay(conflictDelay),
		retry.RetryIf(services.IsRetryable),
		retry.LastErrorOnly(true),
	)
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid id %q", a)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
