package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/hugh/projectflow/internal/apperr"
	"github.com/hugh/projectflow/internal/database/models"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

func (s *Store) CreateTask(ctx context.Context, in CreateTaskInput) (*models.Task, error) {
	fields := map[string]string{}
	if strings.TrimSpace(in.Title) == "" {
		fields["title"] = "Task title is required"
	}
	if in.ProjectID == "" {
		fields["projectId"] = "is required"
	}
	if in.CreatedByID == "" {
		fields["createdById"] = "is required"
	}
	if in.Progress < 0 || in.Progress > 100 {
		fields["progress"] = "must be between 0 and 100"
	}
	if len(fields) > 0 {
		return nil, &apperr.ValidationError{Fields: fields}
	}

	status := in.Status
	if status == "" {
		status = models.TaskStatusTodo
	}
	priority := in.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	assignee := in.AssigneeID
	if assignee != nil && *assignee == "" {
		assignee = nil
	}

	var task models.Task
	err := s.withTx(ctx, func(tx *gorm.DB) error {
		var project models.Project
		if err := tx.Select("id").First(&project, "id = ?", in.ProjectID).Error; err != nil {
			return notFound(err, "project", in.ProjectID)
		}

		now := s.now()
		task = models.Task{
			Title:       strings.TrimSpace(in.Title),
			Description: in.Description,
			Status:      status,
			Priority:    priority,
			ProjectID:   in.ProjectID,
			AssigneeID:  assignee,
			CreatedByID: in.CreatedByID,
			DueDate:     in.DueDate,
			Progress:    in.Progress,
			Position:    in.Position,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.Create(&task).Error; err != nil {
			return fmt.Errorf("creating task: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// GetTask returns the bare task row without user joins.
func (s *Store) GetTask(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	if err := s.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "task", id)
	}
	return &task, nil
}

// GetProjectTasks returns the project's tasks ordered by position, with
// assignee and creator joined. Tasks whose creator no longer resolves are
// left out.
func (s *Store) GetProjectTasks(ctx context.Context, projectID string) ([]models.Task, error) {
	db := s.db.WithContext(ctx)

	var tasks []models.Task
	if err := db.Where("project_id = ?", projectID).Order("position ASC, created_at ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}

	ids := make([]string, 0, len(tasks)*2)
	for _, t := range tasks {
		ids = append(ids, t.CreatedByID)
		if t.AssigneeID != nil {
			ids = append(ids, *t.AssigneeID)
		}
	}
	users, err := usersByID(db, ids)
	if err != nil {
		return nil, err
	}

	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		creator, ok := users[t.CreatedByID]
		if !ok {
			s.logger.Debug("skipping task with unresolved creator", "task_id", t.ID, "created_by", t.CreatedByID)
			continue
		}
		t.CreatedBy = creator
		if t.AssigneeID != nil {
			t.Assignee = users[*t.AssigneeID]
		}
		out = append(out, t)
	}
	return out, nil
}

// UpdateTask applies a partial update; fields left nil are preserved and
// updatedAt is always refreshed. It records no activity.
func (s *Store) UpdateTask(ctx context.Context, id string, in TaskUpdate) (*models.Task, error) {
	updates := map[string]interface{}{}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, apperr.Invalid("title", "Task title is required")
		}
		updates["title"] = title
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.Status != nil {
		updates["status"] = *in.Status
	}
	if in.Priority != nil {
		updates["priority"] = *in.Priority
	}
	if in.AssigneeID != nil {
		if *in.AssigneeID == "" {
			updates["assignee_id"] = nil
		} else {
			updates["assignee_id"] = *in.AssigneeID
		}
	}
	if in.ClearDueDate {
		updates["due_date"] = nil
	} else if in.DueDate != nil {
		updates["due_date"] = *in.DueDate
	}
	if in.Progress != nil {
		if *in.Progress < 0 || *in.Progress > 100 {
			return nil, apperr.Invalid("progress", "must be between 0 and 100")
		}
		updates["progress"] = *in.Progress
	}
	if in.Position != nil {
		updates["position"] = *in.Position
	}

	var task models.Task
	err := s.withTx(ctx, func(tx *gorm.DB) error {
		if err := tx.First(&task, "id = ?", id).Error; err != nil {
			return notFound(err, "task", id)
		}
		updates["updated_at"] = s.now()
		if err := tx.Model(&models.Task{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fmt.Errorf("updating task: %w", err)
		}
		task = models.Task{}
		return tx.First(&task, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// DeleteTask removes the task and, through the foreign key, its comments.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&models.Task{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("deleting task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("task", id)
	}
	return nil
}

func (s *Store) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, apperr.Invalid("content", "Comment content is required")
	}

	var comment models.Comment
	err := s.withTx(ctx, func(tx *gorm.DB) error {
		var task models.Task
		if err := tx.Select("id").First(&task, "id = ?", in.TaskID).Error; err != nil {
			return notFound(err, "task", in.TaskID)
		}
		comment = models.Comment{
			Content:     content,
			TaskID:      in.TaskID,
			AuthorID:    in.AuthorID,
			Mentions:    lo.Compact(in.Mentions),
			Attachments: lo.Compact(in.Attachments),
			TaskLinks:   lo.Compact(in.TaskLinks),
			CreatedAt:   s.now(),
		}
		if err := tx.Create(&comment).Error; err != nil {
			return fmt.Errorf("creating comment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// GetTaskComments returns comments oldest first with the author joined.
// Comments whose author no longer resolves are left out.
func (s *Store) GetTaskComments(ctx context.Context, taskID string) ([]models.Comment, error) {
	db := s.db.WithContext(ctx)

	var comments []models.Comment
	if err := db.Where("task_id = ?", taskID).Order("created_at ASC").Find(&comments).Error; err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}

	users, err := usersByID(db, lo.Map(comments, func(c models.Comment, _ int) string { return c.AuthorID }))
	if err != nil {
		return nil, err
	}

	return lo.FilterMap(comments, func(c models.Comment, _ int) (models.Comment, bool) {
		author, ok := users[c.AuthorID]
		if !ok {
			return c, false
		}
		c.Author = author
		return c, true
	}), nil
}
