package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/mkartavenko/taskhub/internal/client/api"
	"github.com/mkartavenko/taskhub/internal/client/models"
)

// parseFilter interprets list arguments: key=value pairs become filters
// (status=, priority=, sort=), everything else joins into the search term.
//
//	list status=pending priority=high groceries
func parseFilter(args []string) models.TaskFilter {
	var f models.TaskFilter
	var search []string

	for _, arg := range args {
		key, value, found := strings.Cut(arg, "=")
		if !found {
			search = append(search, arg)
			continue
		}
		switch key {
		case "status":
			f.Status = value
		case "priority":
			f.Priority = value
		case "sort":
			f.Sort = value
		default:
			search = append(search, arg)
		}
	}

	f.Search = strings.Join(search, " ")
	return f
}

func (a *App) list(ctx context.Context, args []string) {
	tasks, err := a.tasks.ListTasks(ctx, parseFilter(args))
	if err != nil {
		fmt.Fprintln(a.out, "error:", api.Message(err, err.Error()))
		return
	}

	if len(tasks) == 0 {
		fmt.Fprintln(a.out, "No tasks")
		return
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tPRIORITY\tDUE")
	for _, t := range tasks {
		due := "-"
		if t.DueDate != nil {
			due = t.DueDate.Format("2006-01-02")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.Title, t.Status, t.Priority, due)
	}
	w.Flush()
}

func (a *App) show(ctx context.Context, id string) {
	t, err := a.tasks.GetTask(ctx, id)
	if err != nil {
		fmt.Fprintln(a.out, "error:", api.Message(err, err.Error()))
		return
	}

	fmt.Fprintf(a.out, "%s [%s/%s]\n", t.Title, t.Status, t.Priority)
	if t.Description != "" {
		fmt.Fprintln(a.out, t.Description)
	}
	if t.DueDate != nil {
		fmt.Fprintf(a.out, "Due: %s\n", t.DueDate.Format("2006-01-02"))
	}
}

func (a *App) add(ctx context.Context) {
	title, err := GetSimpleText(a.reader, "Title", a.out)
	if err != nil || title == "" {
		fmt.Fprintln(a.out, "Title is required")
		return
	}

	description, err := GetMultiline(a.reader, "Description", a.out)
	if err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
		return
	}

	priority, err := GetSimpleText(a.reader, "Priority (low/medium/high, empty for medium)", a.out)
	if err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
		return
	}
	if priority == "" {
		priority = string(models.PriorityMedium)
	}

	t, err := a.tasks.CreateTask(ctx, api.TaskInput{
		Title:       title,
		Description: description,
		Priority:    models.TaskPriority(priority),
	})
	if err != nil {
		fmt.Fprintln(a.out, "error:", api.Message(err, err.Error()))
		return
	}
	fmt.Fprintf(a.out, "Created task %s\n", t.ID)
}

func (a *App) edit(ctx context.Context, id string) {
	current, err := a.tasks.GetTask(ctx, id)
	if err != nil {
		fmt.Fprintln(a.out, "error:", api.Message(err, err.Error()))
		return
	}

	title, err := GetSimpleText(a.reader, fmt.Sprintf("Title [%s]", current.Title), a.out)
	if err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
		return
	}
	if title == "" {
		title = current.Title
	}

	status, err := GetSimpleText(a.reader, fmt.Sprintf("Status [%s]", current.Status), a.out)
	if err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
		return
	}
	if status == "" {
		status = string(current.Status)
	}

	if _, err := a.tasks.UpdateTask(ctx, id, api.TaskInput{
		Title:       title,
		Description: current.Description,
		Status:      models.TaskStatus(status),
		Priority:    current.Priority,
	}); err != nil {
		fmt.Fprintln(a.out, "error:", api.Message(err, err.Error()))
		return
	}
	fmt.Fprintln(a.out, "Updated")
}

func (a *App) done(ctx context.Context, id string) {
	current, err := a.tasks.GetTask(ctx, id)
	if err != nil {
		fmt.Fprintln(a.out, "error:", api.Message(err, err.Error()))
		return
	}

	if _, err := a.tasks.UpdateTask(ctx, id, api.TaskInput{
		Title:       current.Title,
		Description: current.Description,
		Status:      models.StatusCompleted,
		Priority:    current.Priority,
	}); err != nil {
		fmt.Fprintln(a.out, "error:", api.Message(err, err.Error()))
		return
	}
	fmt.Fprintln(a.out, "Done")
}

func (a *App) delete(ctx context.Context, id string) {
	if err := a.tasks.DeleteTask(ctx, id); err != nil {
		fmt.Fprintln(a.out, "error:", api.Message(err, err.Error()))
		return
	}
	fmt.Fprintln(a.out, "Deleted")
}
