package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/hugh/projectflow/internal/access"
	"github.com/hugh/projectflow/internal/api/dto"
	"github.com/hugh/projectflow/internal/api/middleware"
	"github.com/hugh/projectflow/internal/apperr"
	"github.com/hugh/projectflow/internal/archive"
	"github.com/hugh/projectflow/internal/database/models"
	"github.com/hugh/projectflow/internal/invitations"
	"github.com/hugh/projectflow/internal/storage"
)

type ProjectHandler struct {
	store       storage.Storage
	access      *access.Checker
	invitations *invitations.Service
	archiver    archive.Archiver
	logger      *slog.Logger
	now         func() time.Time
}

func NewProjectHandler(store storage.Storage, checker *access.Checker, inv *invitations.Service, archiver archive.Archiver, logger *slog.Logger) *ProjectHandler {
	if archiver == nil {
		archiver = archive.NopArchiver{}
	}
	return &ProjectHandler{
		store:       store,
		access:      checker,
		invitations: inv,
		archiver:    archiver,
		logger:      logger,
		now:         time.Now,
	}
}

// record writes an activity entry. The mutation it describes has already
// happened, so a failure is only logged.
func (h *ProjectHandler) record(ctx context.Context, in storage.CreateActivityInput) {
	recordActivity(ctx, h.store, h.logger, in)
}

func recordActivity(ctx context.Context, store storage.Storage, logger *slog.Logger, in storage.CreateActivityInput) {
	if _, err := store.CreateActivity(ctx, in); err != nil {
		logger.Error("failed to record activity", "type", in.Type, "project_id", in.ProjectID, "error", err)
	}
}

// List handles GET /api/projects
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := h.store.GetUserProjects(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if projects == nil {
		projects = []models.Project{}
	}
	writeJSON(w, http.StatusOK, projects)
}

// Create handles POST /api/projects. The creator becomes the owner, and the
// session's credential bundle is stored with the project for members to
// inherit.
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateProjectRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	ctx := r.Context()
	sess := middleware.GetSession(ctx)
	userID := sess.User.ID

	project, err := h.store.CreateProject(ctx, storage.CreateProjectInput{
		Name:            req.Name,
		Description:     req.Description,
		OwnerID:         userID,
		Color:           req.Color,
		AllowedEmails:   req.AllowedEmails,
		GoogleAPIConfig: sess.GoogleConfig,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.record(ctx, storage.CreateActivityInput{
		Type:        models.ActivityProjectCreated,
		Description: fmt.Sprintf("Created project %q", project.Name),
		ProjectID:   project.ID,
		UserID:      userID,
		EntityID:    project.ID,
	})
	if err := h.store.IncrementUsage(ctx, userID, storage.Month(h.now()), storage.UsageDelta{ProjectsCreated: 1}); err != nil {
		h.logger.Warn("failed to count project usage", "user_id", userID, "error", err)
	}

	h.logger.Info("project created", "project_id", project.ID, "user_id", userID)
	writeJSON(w, http.StatusCreated, project)
}

// Get handles GET /api/projects/{id}
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID := chi.URLParam(r, "id")

	if _, err := h.access.RequireProjectAccess(ctx, projectID, middleware.GetUserID(ctx)); err != nil {
		writeError(w, h.logger, err)
		return
	}

	project, err := h.store.GetProject(ctx, projectID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// Update handles PATCH /api/projects/{id}
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID := chi.URLParam(r, "id")

	if _, err := h.access.RequireElevatedRole(ctx, projectID, middleware.GetUserID(ctx)); err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req dto.UpdateProjectRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	project, err := h.store.UpdateProject(ctx, projectID, storage.ProjectUpdate{
		Name:          req.Name,
		Description:   req.Description,
		Color:         req.Color,
		AllowedEmails: req.AllowedEmails,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// Delete handles DELETE /api/projects/{id}. When an archive bucket is
// configured the Drive document is archived first and a failed archive
// aborts the delete.
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID := chi.URLParam(r, "id")

	if _, err := h.access.RequireOwner(ctx, projectID, middleware.GetUserID(ctx)); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if h.archiver.Enabled() {
		doc, err := h.store.ExportProject(ctx, projectID)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		object, err := h.archiver.Archive(ctx, doc)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		h.logger.Info("project archived", "project_id", projectID, "object", object)
	}

	if err := h.store.DeleteProject(ctx, projectID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Members handles GET /api/projects/{id}/members
func (h *ProjectHandler) Members(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID := chi.URLParam(r, "id")

	if _, err := h.access.RequireProjectAccess(ctx, projectID, middleware.GetUserID(ctx)); err != nil {
		writeError(w, h.logger, err)
		return
	}

	members, err := h.store.GetProjectMembers(ctx, projectID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if members == nil {
		members = []models.ProjectMember{}
	}
	writeJSON(w, http.StatusOK, members)
}

// Invite handles POST /api/projects/{id}/members. New members join through
// an invitation; no membership exists until it is accepted.
func (h *ProjectHandler) Invite(w http.ResponseWriter, r *http.Request) {
	var req dto.AddMemberRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.Role == "" {
		req.Role = models.RoleMember
	}

	res, err := h.invitations.Invite(r.Context(), middleware.GetSession(r.Context()), chi.URLParam(r, "id"), invitations.InviteInput{
		Email: req.Email,
		Role:  req.Role,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// RemoveMember handles DELETE /api/projects/{id}/members/{userId}
func (h *ProjectHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID := chi.URLParam(r, "id")
	targetID := chi.URLParam(r, "userId")
	userID := middleware.GetUserID(ctx)

	if _, err := h.access.RequireElevatedRole(ctx, projectID, userID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	target, err := h.store.GetUserProjectRole(ctx, projectID, targetID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if target.Role == models.RoleOwner {
		writeError(w, h.logger, apperr.Invalid("userId", "the project owner cannot be removed"))
		return
	}

	if err := h.store.RemoveProjectMember(ctx, projectID, targetID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	name := targetID
	if u, err := h.store.GetUser(ctx, targetID); err == nil {
		name = u.DisplayName()
	}
	h.record(ctx, storage.CreateActivityInput{
		Type:        models.ActivityMemberRemoved,
		Description: fmt.Sprintf("Removed %s from the project", name),
		ProjectID:   projectID,
		UserID:      userID,
		EntityID:    targetID,
	})
	w.WriteHeader(http.StatusNoContent)
}

// Stats handles GET /api/projects/{id}/stats
func (h *ProjectHandler) Stats(w http.ResponseWriter, r *http.Request) {
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
	members, err := h.store.GetProjectMembers(ctx, projectID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, projectStats(tasks, len(members), h.now()))
}

func projectStats(tasks []models.Task, teamMembers int, now time.Time) dto.ProjectStats {
	byStatus := lo.CountValuesBy(tasks, func(t models.Task) models.TaskStatus { return t.Status })
	return dto.ProjectStats{
		TotalTasks:      len(tasks),
		TodoTasks:       byStatus[models.TaskStatusTodo],
		InProgressTasks: byStatus[models.TaskStatusInProgress],
		CompletedTasks:  byStatus[models.TaskStatusDone],
		OverdueTasks:    lo.CountBy(tasks, func(t models.Task) bool { return t.Overdue(now) }),
		TeamMembers:     teamMembers,
		HighPriorityTasks: lo.CountBy(tasks, func(t models.Task) bool {
			return t.Priority == models.PriorityHigh || t.Priority == models.PriorityCritical
		}),
	}
}

// Activities handles GET /api/projects/{id}/activities?limit=N
func (h *ProjectHandler) Activities(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID := chi.URLParam(r, "id")

	if _, err := h.access.RequireProjectAccess(ctx, projectID, middleware.GetUserID(ctx)); err != nil {
		writeError(w, h.logger, err)
		return
	}

	limit := storage.DefaultActivityLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, h.logger, apperr.Invalid("limit", "must be a positive integer"))
			return
		}
		limit = n
	}

	activities, err := h.store.GetProjectActivities(ctx, projectID, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if activities == nil {
		activities = []models.Activity{}
	}
	writeJSON(w, http.StatusOK, activities)
}

// Suggestions handles GET /api/projects/{id}/ai/suggestions
func (h *ProjectHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID := chi.URLParam(r, "id")

	if _, err := h.access.RequireProjectAccess(ctx, projectID, middleware.GetUserID(ctx)); err != nil {
		writeError(w, h.logger, err)
		return
	}

	suggestions, err := h.store.GetProjectAiSuggestions(ctx, projectID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if suggestions == nil {
		suggestions = []models.AiSuggestion{}
	}
	writeJSON(w, http.StatusOK, suggestions)
}

// DismissSuggestion handles POST /api/ai-suggestions/{id}/dismiss
func (h *ProjectHandler) DismissSuggestion(w http.ResponseWriter, r *http.Request) {
	h.updateSuggestion(w, r, storage.SuggestionUpdate{Dismissed: true})
}

// ApplySuggestion handles POST /api/ai-suggestions/{id}/apply
func (h *ProjectHandler) ApplySuggestion(w http.ResponseWriter, r *http.Request) {
	h.updateSuggestion(w, r, storage.SuggestionUpdate{Applied: lo.ToPtr(true)})
}

func (h *ProjectHandler) updateSuggestion(w http.ResponseWriter, r *http.Request, update storage.SuggestionUpdate) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	suggestion, err := h.store.GetAiSuggestion(ctx, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if _, err := h.access.RequireProjectAccess(ctx, suggestion.ProjectID, middleware.GetUserID(ctx)); err != nil {
		writeError(w, h.logger, err)
		return
	}

	updated, err := h.store.UpdateAiSuggestion(ctx, id, update)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
