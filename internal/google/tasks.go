package google

import (
	"context"
	"fmt"
	"time"

	"github.com/hugh/projectflow/internal/database/models"
	"golang.org/x/oauth2"
	gtasks "google.golang.org/api/tasks/v1"
)

type Tasks struct {
	f   *Factory
	svc *gtasks.Service
}

func (f *Factory) Tasks(ctx context.Context, tok *oauth2.Token) (*Tasks, error) {
	svc, err := gtasks.NewService(ctx, f.clientOptions(tok)...)
	if err != nil {
		return nil, fmt.Errorf("creating tasks client: %w", err)
	}
	return &Tasks{f: f, svc: svc}, nil
}

func (t *Tasks) ListTaskLists(ctx context.Context) ([]*gtasks.TaskList, error) {
	return call(ctx, t.f, ServiceTasks, func(ctx context.Context) ([]*gtasks.TaskList, error) {
		lists, err := t.svc.Tasklists.List().Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		return lists.Items, nil
	})
}

func (t *Tasks) CreateTaskList(ctx context.Context, title string) (*gtasks.TaskList, error) {
	return call(ctx, t.f, ServiceTasks, func(ctx context.Context) (*gtasks.TaskList, error) {
		return t.svc.Tasklists.Insert(&gtasks.TaskList{Title: title}).Context(ctx).Do()
	})
}

func (t *Tasks) ListTasks(ctx context.Context, tasklistID string) ([]*gtasks.Task, error) {
	return call(ctx, t.f, ServiceTasks, func(ctx context.Context) ([]*gtasks.Task, error) {
		list, err := t.svc.Tasks.List(tasklistID).Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		return list.Items, nil
	})
}

func (t *Tasks) CreateTask(ctx context.Context, tasklistID string, task *gtasks.Task) (*gtasks.Task, error) {
	return call(ctx, t.f, ServiceTasks, func(ctx context.Context) (*gtasks.Task, error) {
		return t.svc.Tasks.Insert(tasklistID, task).Context(ctx).Do()
	})
}

func (t *Tasks) CompleteTask(ctx context.Context, tasklistID, taskID string) (*gtasks.Task, error) {
	return call(ctx, t.f, ServiceTasks, func(ctx context.Context) (*gtasks.Task, error) {
		return t.svc.Tasks.Patch(tasklistID, taskID, &gtasks.Task{Status: "completed"}).Context(ctx).Do()
	})
}

// TaskFromProject maps a ProjectFlow task onto a Google task.
func TaskFromProject(task models.Task) *gtasks.Task {
	gt := &gtasks.Task{
		Title:  task.Title,
		Notes:  task.Description,
		Status: "needsAction",
	}
	if task.Status == models.TaskStatusDone {
		gt.Status = "completed"
	}
	if task.DueDate != nil {
		gt.Due = task.DueDate.UTC().Format(time.RFC3339)
	}
	return gt
}

func (t *Tasks) SyncProjectTask(ctx context.Context, tasklistID string, task models.Task) (*gtasks.Task, error) {
	return t.CreateTask(ctx, tasklistID, TaskFromProject(task))
}
