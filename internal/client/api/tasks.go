package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/mkartavenko/taskhub/internal/client/models"
)

// TaskInput carries the writable task fields for create and update calls.
type TaskInput struct {
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	Status      models.TaskStatus   `json:"status,omitempty"`
	Priority    models.TaskPriority `json:"priority,omitempty"`
	DueDate     string              `json:"dueDate,omitempty"`
}

type tasksPayload struct {
	Tasks []models.Task `json:"tasks"`
}

type taskPayload struct {
	Task models.Task `json:"task"`
}

func (c *Client) ListTasks(ctx context.Context, f models.TaskFilter) ([]models.Task, error) {
	q := url.Values{}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.Priority != "" {
		q.Set("priority", f.Priority)
	}
	if f.Sort != "" {
		q.Set("sort", f.Sort)
	}

	var payload tasksPayload
	err := c.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   "/api/tasks",
		Query:  q,
	}, &payload)
	if err != nil {
		return nil, err
	}
	return payload.Tasks, nil
}

func (c *Client) GetTask(ctx context.Context, id string) (*models.Task, error) {
	var payload taskPayload
	err := c.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   "/api/tasks/" + url.PathEscape(id),
	}, &payload)
	if err != nil {
		return nil, err
	}
	return &payload.Task, nil
}

func (c *Client) CreateTask(ctx context.Context, in TaskInput) (*models.Task, error) {
	var payload taskPayload
	err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/api/tasks",
		Body:   in,
	}, &payload)
	if err != nil {
		return nil, err
	}
	return &payload.Task, nil
}

func (c *Client) UpdateTask(ctx context.Context, id string, in TaskInput) (*models.Task, error) {
	var payload taskPayload
	err := c.Do(ctx, Request{
		Method: http.MethodPut,
		Path:   "/api/tasks/" + url.PathEscape(id),
		Body:   in,
	}, &payload)
	if err != nil {
		return nil, err
	}
	return &payload.Task, nil
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.Do(ctx, Request{
		Method: http.MethodDelete,
		Path:   "/api/tasks/" + url.PathEscape(id),
	}, nil)
}
