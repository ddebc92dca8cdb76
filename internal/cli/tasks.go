package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BuzzLyutic/ptask/internal/model"
	"github.com/BuzzLyutic/ptask/internal/service"
)

func (a *App) addCmd() *cobra.Command {
	var req service.AddTaskRequest

	cmd := &cobra.Command{
		Use:   "add <description>",
		Short: "Add a new task",
		Args:  minArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Description = strings.Join(args, " ")
			task, err := a.svc.AddTask(cmd.Context(), req)
			if err != nil {
				return err
			}
			return a.print(task, func(w io.Writer) {
				fmt.Fprintln(w, a.styles.ok.Render("Task added"))
				fmt.Fprintln(w, a.styles.dim.Render("Task ID: "+task.ID))
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.ID, "id", "", "explicit task id (default: generated)")
	f.StringVarP(&req.Priority, "priority", "p", "", "priority: low, medium, high, urgent (default medium)")
	f.StringVarP(&req.Category, "category", "c", "", "category (default from config)")
	f.StringVarP(&req.Due, "due", "d", "", "due date, YYYY-MM-DD or RFC 3339")
	f.StringVarP(&req.Estimate, "estimate", "e", "", "estimated hours (default 1)")
	f.StringSliceVarP(&req.Tags, "tags", "t", nil, "comma separated tags")
	f.StringVarP(&req.Notes, "notes", "n", "", "free-form notes")
	f.StringVarP(&req.Assignee, "assignee", "a", "", "assignee")
	return cmd
}

func (a *App) listCmd() *cobra.Command {
	var req service.ListTasksRequest

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tasks with optional filters",
		Args:    exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := a.svc.ListTasks(cmd.Context(), req)
			if err != nil {
				return err
			}
			return a.print(tasks, func(w io.Writer) {
				a.styles.renderTasks(w, tasks, a.now())
			})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&req.Status, "status", "s", "", "status: pending, in_progress, completed, cancelled")
	f.StringVarP(&req.Priority, "priority", "p", "", "priority")
	f.StringVarP(&req.Category, "category", "c", "", "category")
	f.StringSliceVar(&req.Tags, "tag", nil, "tag (repeatable, any of)")
	f.StringVar(&req.Search, "search", "", "text in description or notes")
	f.StringVar(&req.Assignee, "assignee", "", "assignee")
	f.StringVar(&req.DueFrom, "due-from", "", "due on or after date")
	f.StringVar(&req.DueTo, "due-to", "", "due on or before date")
	f.BoolVar(&req.Today, "today", false, "only tasks due today")
	f.BoolVar(&req.Overdue, "overdue", false, "only overdue tasks")
	return cmd
}

func (a *App) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one task",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := a.svc.GetTask(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(task, func(w io.Writer) { a.styles.renderTask(w, task) })
		},
	}
}

func (a *App) updateCmd() *cobra.Command {
	var (
		description, status, priority, category string
		due, estimate, notes, assignee          string
		tags                                    []string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a task",
		Long:  "Change fields of a task. Only flags that are given are applied; --due none clears the due date.",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := service.UpdateTaskRequest{ID: args[0]}
			changed := cmd.Flags().Changed
			if changed("description") {
				req.Description = &description
			}
			if changed("status") {
				req.Status = &status
			}
			if changed("priority") {
				req.Priority = &priority
			}
			if changed("category") {
				req.Category = &category
			}
			if changed("due") {
				req.Due = &due
			}
			if changed("estimate") {
				req.Estimate = &estimate
			}
			if changed("tags") {
				req.Tags = &tags
			}
			if changed("notes") {
				req.Notes = &notes
			}
			if changed("assignee") {
				req.Assignee = &assignee
			}

			task, err := a.svc.UpdateTask(cmd.Context(), req)
			if err != nil {
				return err
			}
			return a.print(task, func(w io.Writer) {
				fmt.Fprintln(w, a.styles.ok.Render("Task updated"))
				a.styles.renderTask(w, task)
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&description, "description", "", "new description")
	f.StringVarP(&status, "status", "s", "", "new status")
	f.StringVarP(&priority, "priority", "p", "", "new priority")
	f.StringVarP(&category, "category", "c", "", "new category")
	f.StringVarP(&due, "due", "d", "", "new due date, or none")
	f.StringVarP(&estimate, "estimate", "e", "", "new estimate in hours")
	f.StringSliceVarP(&tags, "tags", "t", nil, "replace tags")
	f.StringVarP(&notes, "notes", "n", "", "replace notes")
	f.StringVarP(&assignee, "assignee", "a", "", "new assignee")
	return cmd
}

func (a *App) startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <id>",
		Short: "Mark a task in progress",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := a.svc.StartTask(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(task, func(w io.Writer) {
				fmt.Fprintln(w, a.styles.ok.Render("Task started: ")+task.Description)
			})
		},
	}
}

func (a *App) cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a task",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := a.svc.CancelTask(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(task, func(w io.Writer) {
				fmt.Fprintln(w, a.styles.ok.Render("Task cancelled: ")+task.Description)
			})
		},
	}
}

func (a *App) completeCmd() *cobra.Command {
	var hours, notes string

	cmd := &cobra.Command{
		Use:     "complete <id>...",
		Aliases: []string{"done"},
		Short:   "Mark one or more tasks completed",
		Args:    minArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results := a.svc.CompleteTasks(cmd.Context(), args, hours, notes)
			return a.printBatch(results, func(w io.Writer, r service.BatchResult) {
				msg := "Task completed: " + r.Task.Description
				if r.Task.CompletedAt != nil {
					msg += a.styles.dim.Render(" at " + r.Task.CompletedAt.Local().Format("2006-01-02 15:04"))
				}
				fmt.Fprintln(w, a.styles.ok.Render(msg))
			})
		},
	}

	cmd.Flags().StringVarP(&hours, "time", "t", "", "actual hours spent")
	cmd.Flags().StringVarP(&notes, "notes", "n", "", "completion notes")
	return cmd
}

func (a *App) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>...",
		Aliases: []string{"rm"},
		Short:   "Delete one or more tasks",
		Args:    minArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results := a.svc.DeleteTasks(cmd.Context(), args)
			return a.printBatch(results, func(w io.Writer, r service.BatchResult) {
				fmt.Fprintln(w, a.styles.ok.Render("Task deleted: "+r.ID))
			})
		},
	}
}

type batchItem struct {
	ID    string           `json:"id"`
	Task  *model.Task      `json:"task,omitempty"`
	Error *service.Failure `json:"error,omitempty"`
}

// printBatch reports every result and returns the first failure, so the exit
// code reflects it.
func (a *App) printBatch(results []service.BatchResult, okLine func(io.Writer, service.BatchResult)) error {
	var first error
	items := make([]batchItem, 0, len(results))
	for _, r := range results {
		item := batchItem{ID: r.ID}
		if r.Err != nil {
			f := service.Describe(r.Err)
			item.Error = &f
			if first == nil {
				first = r.Err
			}
		} else if r.Task.ID != "" {
			t := r.Task
			item.Task = &t
		}
		items = append(items, item)
	}

	if a.flags.jsonOut {
		if len(items) == 1 && first == nil && items[0].Task != nil {
			return a.print(items[0].Task, nil)
		}
		if err := a.print(items, nil); err != nil {
			return err
		}
		if first != nil {
			return batchError{first}
		}
		return nil
	}

	for _, r := range results {
		if r.Err == nil {
			okLine(a.out, r)
		} else if len(results) > 1 {
			fmt.Fprintln(a.errOut, a.styles.fail.Render(fmt.Sprintf("%s: %v", r.ID, r.Err)))
		}
	}
	if first != nil && len(results) > 1 {
		return batchError{first}
	}
	return first
}

// batchError has already been reported per item; only its exit code matters.
type batchError struct{ err error }

func (e batchError) Error() string { return e.err.Error() }
func (e batchError) Unwrap() error { return e.err }

func isReported(err error) bool {
	var be batchError
	return errors.As(err, &be)
}
