package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// NewTaskCmd создаёт группу команд для управления задачами.
func NewTaskCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
	}

	cmd.AddCommand(
		newTaskListCmd(clientFn, outputFn),
		newTaskShowCmd(clientFn, outputFn),
		newTaskCreateCmd(clientFn, outputFn),
		newTaskUpdateCmd(clientFn, outputFn),
		newTaskCompleteCmd(clientFn, outputFn),
		newTaskDeleteCmd(clientFn, outputFn),
		newTaskBulkCmd(clientFn, outputFn),
	)

	return cmd
}

var taskHeaders = table.Row{"ID", "Title", "Status", "Priority", "Deadline", "Deps", "Assigned To"}

func taskRow(t TaskResponse) table.Row {
	return table.Row{
		t.ID,
		t.Title,
		t.Status,
		strconv.FormatFloat(t.Priority, 'f', 2, 64),
		shortDate(t.Deadline),
		len(t.Dependencies),
		t.AssignedTo,
	}
}

func taskRows(tasks []TaskResponse) []table.Row {
	rows := make([]table.Row, len(tasks))
	for i, t := range tasks {
		rows[i] = taskRow(t)
	}
	return rows
}

func newTaskListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts ListTasksOpts

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			page, err := client.ListTasks(cmd.Context(), opts)
			if err != nil {
				return err
			}

			out.Print(taskHeaders, taskRows(page.Tasks), page.Tasks)
			out.Footer("page %d, %d of %d tasks", page.Page, len(page.Tasks), page.Total)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Status, "status", "", "Filter by status (pending, in-progress, completed, blocked)")
	cmd.Flags().StringVar(&opts.MinPriority, "priority", "", "Minimum priority (0-5)")
	cmd.Flags().StringVar(&opts.AssignedTo, "assigned-to", "", "Filter by assignee ID")
	cmd.Flags().StringVar(&opts.Search, "search", "", "Search in title and description")
	cmd.Flags().StringVar(&opts.SortBy, "sort-by", "", "Sort field (priority, deadline, created_at, updated_at, title)")
	cmd.Flags().StringVar(&opts.SortOrder, "sort-order", "", "Sort order (asc, desc)")
	cmd.Flags().IntVar(&opts.Page, "page", 0, "Page number")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Page size (max 100)")

	return cmd
}

func newTaskShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show task details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			task, err := client.GetTask(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out.Print(
				table.Row{"Field", "Value"},
				[]table.Row{
					{"ID", task.ID},
					{"Title", task.Title},
					{"Description", task.Description},
					{"Status", task.Status},
					{"Priority", strconv.FormatFloat(task.Priority, 'f', 2, 64)},
					{"Assigned To", task.AssignedTo},
					{"Dependencies", strings.Join(task.Dependencies, ", ")},
					{"Deadline", task.Deadline},
					{"Tags", strings.Join(task.Tags, ", ")},
					{"Hours", fmt.Sprintf("%g / %g", task.ActualHours, task.EstimatedHours)},
					{"Completion", fmt.Sprintf("%g%%", task.CompletionPercentage)},
					{"Created By", task.CreatedBy},
					{"Created", task.CreatedAt},
					{"Updated", task.UpdatedAt},
				},
				task,
			)
			return nil
		},
	}
}

func newTaskCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var req CreateTaskRequest
	var deadline string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			d, err := parseDeadline(deadline)
			if err != nil {
				return err
			}
			req.Deadline = d

			task, err := client.CreateTask(cmd.Context(), req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Task created: %s", task.ID))
			out.Print(taskHeaders, []table.Row{taskRow(*task)}, task)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Title, "title", "", "Task title (required)")
	cmd.Flags().StringVar(&req.Description, "description", "", "Task description")
	cmd.Flags().StringVar(&req.AssignedTo, "assigned-to", "", "Assignee user ID (required)")
	cmd.Flags().StringVar(&deadline, "deadline", "", "Deadline, RFC3339 or YYYY-MM-DD (required)")
	cmd.Flags().StringSliceVar(&req.Dependencies, "depends-on", nil, "Dependency task ID (repeatable)")
	cmd.Flags().StringSliceVar(&req.Tags, "tag", nil, "Tag (repeatable)")
	cmd.Flags().Float64Var(&req.EstimatedHours, "estimated-hours", 0, "Estimated hours")
	cmd.MarkFlagRequired("title")
	cmd.MarkFlagRequired("assigned-to")
	cmd.MarkFlagRequired("deadline")

	return cmd
}

// patchFlags — флаги частичного обновления, общие для update.
type patchFlags struct {
	title, description, status, assignedTo, deadline string
	dependencies, tags                               []string
	estimatedHours, actualHours, completion          float64
}

func (f *patchFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "New title")
	cmd.Flags().StringVar(&f.description, "description", "", "New description")
	cmd.Flags().StringVar(&f.status, "status", "", "New status (pending, in-progress, completed, blocked)")
	cmd.Flags().StringVar(&f.assignedTo, "assigned-to", "", "New assignee user ID")
	cmd.Flags().StringVar(&f.deadline, "deadline", "", "New deadline, RFC3339 or YYYY-MM-DD")
	cmd.Flags().StringSliceVar(&f.dependencies, "depends-on", nil, "Replace dependencies (repeatable, empty to clear)")
	cmd.Flags().StringSliceVar(&f.tags, "tag", nil, "Replace tags (repeatable, empty to clear)")
	cmd.Flags().Float64Var(&f.estimatedHours, "estimated-hours", 0, "Estimated hours")
	cmd.Flags().Float64Var(&f.actualHours, "actual-hours", 0, "Actual hours")
	cmd.Flags().Float64Var(&f.completion, "completion", 0, "Completion percentage (0-100)")
}

// request собирает запрос только из явно заданных флагов.
func (f *patchFlags) request(cmd *cobra.Command) (UpdateTaskRequest, error) {
	var req UpdateTaskRequest
	changed := cmd.Flags().Changed

	if changed("title") {
		req.Title = &f.title
	}
	if changed("description") {
		req.Description = &f.description
	}
	if changed("status") {
		req.Status = &f.status
	}
	if changed("assigned-to") {
		req.AssignedTo = &f.assignedTo
	}
	if changed("deadline") {
		d, err := parseDeadline(f.deadline)
		if err != nil {
			return req, err
		}
		req.Deadline = &d
	}
	if changed("depends-on") {
		deps := append([]string{}, f.dependencies...)
		req.Dependencies = &deps
	}
	if changed("tag") {
		tags := append([]string{}, f.tags...)
		req.Tags = &tags
	}
	if changed("estimated-hours") {
		req.EstimatedHours = &f.estimatedHours
	}
	if changed("actual-hours") {
		req.ActualHours = &f.actualHours
	}
	if changed("completion") {
		req.CompletionPercentage = &f.completion
	}

	if req == (UpdateTaskRequest{}) {
		return req, fmt.Errorf("nothing to update: specify at least one flag")
	}
	return req, nil
}

func newTaskUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var flags patchFlags

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update task fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(cmd)
			if err != nil {
				return err
			}

			task, err := clientFn().UpdateTask(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}

			out := outputFn()
			out.Success(fmt.Sprintf("Task updated: %s", task.ID))
			out.Print(taskHeaders, []table.Row{taskRow(*task)}, task)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func newTaskCompleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "complete ID",
		Short: "Mark a task as completed",
		Long:  "Mark a task as completed. Fails with CONFLICT while any dependency is not completed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status := "completed"
			task, err := clientFn().UpdateTask(cmd.Context(), args[0], UpdateTaskRequest{Status: &status})
			if err != nil {
				return err
			}

			outputFn().Success(fmt.Sprintf("Task completed: %s", task.ID))
			return nil
		},
	}
}

func newTaskDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a task",
		Long:  "Delete a task. Fails with CONFLICT while other tasks depend on it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := clientFn().DeleteTask(cmd.Context(), args[0]); err != nil {
				return err
			}

			outputFn().Success(fmt.Sprintf("Task deleted: %s", args[0]))
			return nil
		},
	}
}

func newTaskBulkCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "bulk",
		Short: "Apply a batch of updates from a JSON file",
		Long: `Apply a batch of updates. The file holds either {"tasks": [...]} or a bare array
of objects with an "id" and the fields to change. Use "-" to read from stdin.
The batch is rejected as a whole if any item fails validation or the completion gate.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readBulkRequest(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}

			resp, err := clientFn().BulkUpdate(cmd.Context(), req)
			if err != nil {
				return err
			}

			out := outputFn()
			out.Success(fmt.Sprintf("Updated %d tasks", resp.Updated))
			out.Print(taskHeaders, taskRows(resp.Tasks), resp)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "JSON file with updates")
	return cmd
}

// readBulkRequest читает пакет обновлений из файла или stdin.
func readBulkRequest(stdin io.Reader, file string) (BulkUpdateRequest, error) {
	var req BulkUpdateRequest

	r := stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return req, fmt.Errorf("open %s: %w", file, err)
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return req, fmt.Errorf("read updates: %w", err)
	}

	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		err = json.Unmarshal(data, &req.Tasks)
	} else {
		err = json.Unmarshal(data, &req)
	}
	if err != nil {
		return req, fmt.Errorf("parse updates: %w", err)
	}
	if len(req.Tasks) == 0 {
		return req, fmt.Errorf("no updates in input")
	}

	return req, nil
}

// parseDeadline принимает RFC3339 или дату YYYY-MM-DD (конец дня UTC).
func parseDeadline(s string) (string, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format(time.RFC3339), nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.Add(24*time.Hour - time.Second).Format(time.RFC3339), nil
	}
	return "", fmt.Errorf("invalid deadline %q, expected RFC3339 or YYYY-MM-DD", s)
}

// shortDate обрезает RFC3339 до даты для таблиц.
func shortDate(s string) string {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format(time.DateOnly)
	}
	return s
}
