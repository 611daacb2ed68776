package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hugh/projectflow/internal/access"
	"github.com/hugh/projectflow/internal/api/dto"
	"github.com/hugh/projectflow/internal/api/middleware"
	"github.com/hugh/projectflow/internal/database/models"
	"github.com/hugh/projectflow/internal/storage"
)

type TaskHandler struct {
	store  storage.Storage
	access *access.Checker
	logger *slog.Logger
}

func NewTaskHandler(store storage.Storage, checker *access.Checker, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{store: store, access: checker, logger: logger}
}

// List handles GET /api/projects/{id}/tasks
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID := chi.URLParam(r, "id")

	if _, err := h.access.RequireProjectAccess(ctx, projectID, middleware.GetUserID(ctx)); err != nil {
		writeError(w, h.logger, err)
		return
	}

	tasks, err := h.store.GetProjectTasks(ctx, projectID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// Create handles POST /api/projects/{id}/tasks
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID := chi.URLParam(r, "id")
	userID := middleware.GetUserID(ctx)

	if _, err := h.access.RequireProjectAccess(ctx, projectID, userID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req dto.CreateTaskRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	task, err := h.store.CreateTask(ctx, storage.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      models.TaskStatus(req.Status),
		Priority:    models.Priority(req.Priority),
		ProjectID:   projectID,
		AssigneeID:  req.AssigneeID,
		CreatedByID: userID,
		DueDate:     req.DueDate,
		Progress:    req.Progress,
		Position:    req.Position,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	recordActivity(ctx, h.store, h.logger, storage.CreateActivityInput{
		Type:        models.ActivityTaskCreated,
		Description: fmt.Sprintf("Created task %q", task.Title),
		ProjectID:   projectID,
		UserID:      userID,
		EntityID:    task.ID,
	})
	writeJSON(w, http.StatusCreated, task)
}

// Update handles PUT and PATCH /api/tasks/{id}. Both are partial updates.
// A status change is recorded as an activity carrying the old and new
// status.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	taskID := chi.URLParam(r, "id")
	userID := middleware.GetUserID(ctx)

	existing, _, err := h.access.RequireTaskAccess(ctx, taskID, userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req dto.UpdateTaskRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	update := storage.TaskUpdate{
		Title:       req.Title,
		Description: req.Description,
		AssigneeID:  req.AssigneeID,
		Progress:    req.Progress,
		Position:    req.Position,
	}
	if req.Status != nil {
		status := models.TaskStatus(*req.Status)
		update.Status = &status
	}
	if req.Priority != nil {
		priority := models.Priority(*req.Priority)
		update.Priority = &priority
	}
	if req.DueDate.Set {
		update.DueDate = req.DueDate.Value
		update.ClearDueDate = req.DueDate.Value == nil
	}

	task, err := h.store.UpdateTask(ctx, taskID, update)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if task.Status != existing.Status {
		recordActivity(ctx, h.store, h.logger, storage.CreateActivityInput{
			Type:        models.ActivityTaskStatusChanged,
			Description: fmt.Sprintf("Moved %q to %s", task.Title, strings.ReplaceAll(string(task.Status), "_", " ")),
			ProjectID:   task.ProjectID,
			UserID:      userID,
			EntityID:    task.ID,
			Metadata: models.Metadata{
				"oldStatus": string(existing.Status),
				"newStatus": string(task.Status),
			},
		})
	}
	writeJSON(w, http.StatusOK, task)
}

// Delete handles DELETE /api/tasks/{id}
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	taskID := chi.URLParam(r, "id")
	userID := middleware.GetUserID(ctx)

	task, _, err := h.access.RequireTaskAccess(ctx, taskID, userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.store.DeleteTask(ctx, taskID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	recordActivity(ctx, h.store, h.logger, storage.CreateActivityInput{
		Type:        models.ActivityTaskDeleted,
		Description: fmt.Sprintf("Deleted task %q", task.Title),
		ProjectID:   task.ProjectID,
		UserID:      userID,
		EntityID:    task.ID,
	})
	w.WriteHeader(http.StatusNoContent)
}

// Comments handles GET /api/tasks/{id}/comments
func (h *TaskHandler) Comments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	taskID := chi.URLParam(r, "id")

	if _, _, err := h.access.RequireTaskAccess(ctx, taskID, middleware.GetUserID(ctx)); err != nil {
		writeError(w, h.logger, err)
		return
	}

	comments, err := h.store.GetTaskComments(ctx, taskID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if comments == nil {
		comments = []models.Comment{}
	}
	writeJSON(w, http.StatusOK, comments)
}

// CreateComment handles POST /api/tasks/{id}/comments
func (h *TaskHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	taskID := chi.URLParam(r, "id")
	userID := middleware.GetUserID(ctx)

	task, _, err := h.access.RequireTaskAccess(ctx, taskID, userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req dto.CreateCommentRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	comment, err := h.store.CreateComment(ctx, storage.CreateCommentInput{
		Content:     req.Content,
		TaskID:      taskID,
		AuthorID:    userID,
		Mentions:    req.Mentions,
		Attachments: req.Attachments,
		TaskLinks:   req.TaskLinks,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	recordActivity(ctx, h.store, h.logger, storage.CreateActivityInput{
		Type:        models.ActivityCommentAdded,
		Description: fmt.Sprintf("Commented on task %q", task.Title),
		ProjectID:   task.ProjectID,
		UserID:      userID,
		EntityID:    comment.ID,
		Metadata:    models.Metadata{"taskId": task.ID},
	})
	writeJSON(w, http.StatusCreated, comment)
}
