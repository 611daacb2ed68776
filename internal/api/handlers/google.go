package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	gtasks "google.golang.org/api/tasks/v1"

	"github.com/hugh/projectflow/internal/access"
	"github.com/hugh/projectflow/internal/api/dto"
	"github.com/hugh/projectflow/internal/api/middleware"
	"github.com/hugh/projectflow/internal/apperr"
	"github.com/hugh/projectflow/internal/database/models"
	"github.com/hugh/projectflow/internal/google"
	"github.com/hugh/projectflow/internal/storage"
)

// GoogleHandler serves the Workspace adapters. Every route sits behind
// RequireGoogleLinked, so the session always carries unexpired tokens.
type GoogleHandler struct {
	google *google.Factory
	store  storage.Storage
	access *access.Checker
	logger *slog.Logger
	now    func() time.Time
}

func NewGoogleHandler(factory *google.Factory, store storage.Storage, checker *access.Checker, logger *slog.Logger) *GoogleHandler {
	return &GoogleHandler{
		google: factory,
		store:  store,
		access: checker,
		logger: logger,
		now:    time.Now,
	}
}

func sessionToken(ctx context.Context) *oauth2.Token {
	return middleware.GetSession(ctx).GoogleTokens.OAuth2()
}

// project resolves a project-scoped route after checking membership.
func (h *GoogleHandler) project(ctx context.Context, projectID string) (*models.Project, error) {
	if _, err := h.access.RequireProjectAccess(ctx, projectID, middleware.GetUserID(ctx)); err != nil {
		return nil, err
	}
	return h.store.GetProject(ctx, projectID)
}

// Profile handles GET /api/google/profile
func (h *GoogleHandler) Profile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	svc, err := h.google.People(ctx, sessionToken(ctx))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	person, err := svc.Profile(ctx)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, person)
}

// Contacts handles GET /api/google/contacts?q=&limit=
func (h *GoogleHandler) Contacts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, err := optionalInt(r, "limit")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	svc, err := h.google.People(ctx, sessionToken(ctx))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	people, err := svc.Contacts(ctx, r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, people)
}

// TaskLists handles GET /api/google/tasklists
func (h *GoogleHandler) TaskLists(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	svc, err := h.google.Tasks(ctx, sessionToken(ctx))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	lists, err := svc.ListTaskLists(ctx)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, lists)
}

// CreateTaskList handles POST /api/google/tasklists
func (h *GoogleHandler) CreateTaskList(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateTaskListRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	ctx := r.Context()
	svc, err := h.google.Tasks(ctx, sessionToken(ctx))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	list, err := svc.CreateTaskList(ctx, req.Title)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, list)
}

// Tasks handles GET /api/google/tasklists/{tasklistId}/tasks
func (h *GoogleHandler) Tasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	svc, err := h.google.Tasks(ctx, sessionToken(ctx))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	items, err := svc.ListTasks(ctx, chi.URLParam(r, "tasklistId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// CreateTask handles POST /api/google/tasklists/{tasklistId}/tasks
func (h *GoogleHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateGoogleTaskRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	task := &gtasks.Task{Title: req.Title, Notes: req.Notes}
	if req.Due != nil {
		task.Due = req.Due.UTC().Format(time.RFC3339)
	}

	ctx := r.Context()
	svc, err := h.google.Tasks(ctx, sessionToken(ctx))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	created, err := svc.CreateTask(ctx, chi.URLParam(r, "tasklistId"), task)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// CompleteTask handles POST /api/google/tasklists/{tasklistId}/tasks/{taskId}/complete
func (h *GoogleHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	svc, err := h.google.Tasks(ctx, sessionToken(ctx))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	task, err := svc.CompleteTask(ctx, chi.URLParam(r, "tasklistId"), chi.URLParam(r, "taskId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// SyncTasks handles POST /api/projects/{id}/sync-google-tasks. The
// project's tasks are copied into the given task list, or into a new list
// named after the project.
func (h *GoogleHandler) SyncTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	project, err := h.project(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req dto.SyncGoogleTasksRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}

	tasks, err := h.store.GetProjectTasks(ctx, project.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	svc, err := h.google.Tasks(ctx, sessionToken(ctx))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	listID := req.TaskListID
	if listID == "" {
		list, err := svc.CreateTaskList(ctx, "ProjectFlow - "+project.Name)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		listID = list.Id
	}

	synced := 0
	for _, task := range tasks {
		if _, err := svc.SyncProjectTask(ctx, listID, task); err != nil {
			h.logger.Warn("failed to sync task to google", "task_id", task.ID, "error", err)
			continue
		}
		synced++
	}

	writeJSON(w, http.StatusOK, dto.SyncGoogleTasksResponse{Success: true, TaskListID: listID, Synced: synced})
}

// Calendars handles GET /api/google/calendars
func (h *GoogleHandler) Calendars(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	svc, err := h.google.Calendar(ctx, sessionToken(ctx))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	calendars, err := svc.ListCalendars(ctx)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, calendars)
}

// Events handles GET /api/google/calendars/{calendarId}/events?timeMin=&timeMax=&q=
func (h *GoogleHandler) Events(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := google.EventQuery{Text: q.Get("q")}
	for name, dst := range map[string]*time.Time{"timeMin": &query.TimeMin, "timeMax": &query.TimeMax} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, h.logger, apperr.Invalid(name, "must be an RFC 3339 timestamp"))
			return
		}
		*dst = t
	}

	ctx := r.Context()
	svc, err := h.google.Calendar(ctx, sessionToken(ctx))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	events, err := svc.ListEvents(ctx, chi.URLParam(r, "calendarId"), query)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// CreateEvent handles POST /api/google/calendars/{calendarId}/events
func (h *GoogleHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateEventRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	event := &calendar.Event{
		Summary:     req.Summary,
		Description: req.Description,
		Start:       &calendar.EventDateTime{DateTime: req.Start.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: req.End.Format(time.RFC3339)},
	}
	for _, email := range req.Attendees {
		event.Attendees = append(event.Attendees, &calendar.EventAttendee{Email: email})
	}

	ctx := r.Context()
	svc, err := h.google.Calendar(ctx, sessionToken(ctx))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	created, err := svc.CreateEvent(ctx, chi.URLParam(r, "calendarId"), event)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// Milestone handles POST /api/projects/{id}/calendar/milestone
func (h *GoogleHandler) Milestone(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	project, err := h.project(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req dto.MilestoneRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	svc, err := h.google.Calendar(ctx, sessionToken(ctx))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	event, err := svc.CreateMilestone(ctx, project.Name, google.Milestone{
		Title:       req.Title,
		Description: req.Description,
		Date:        req.Date,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// Meeting handles POST /api/projects/{id}/calendar/meeting
func (h *GoogleHandler) Meeting(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	project, err := h.project(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req dto.MeetingRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	svc, err := h.google.Calendar(ctx, sessionToken(ctx))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	event, err := svc.CreateMeeting(ctx, project.Name, google.Meeting{
		Title:       req.Title,
		Description: req.Description,
		Start:       req.Start,
		End:         req.End,
		Attendees:   req.Attendees,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// Deadlines handles GET /api/projects/{id}/calendar/deadlines?days=N
func (h *GoogleHandler) Deadlines(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	project, err := h.project(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	days, err := optionalInt(r, "days")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	svc, err := h.google.Calendar(ctx, sessionToken(ctx))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	events, err := svc.ProjectDeadlines(ctx, project.Name, days)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// SyncDrive handles POST /api/projects/{id}/drive/sync. The project's
// document is written to Drive and the file id is stored on the project.
func (h *GoogleHandler) SyncDrive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID := chi.URLParam(r, "id")
	userID := middleware.GetUserID(ctx)

	if _, err := h.access.RequireElevatedRole(ctx, projectID, userID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	doc, err := h.store.ExportProject(ctx, projectID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	drive, err := h.google.Drive(ctx, sessionToken(ctx))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	fileID, err := drive.SaveDocument(ctx, doc.Project.DriveFileID, doc)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if fileID != doc.Project.DriveFileID {
		if _, err := h.store.UpdateProject(ctx, projectID, storage.ProjectUpdate{DriveFileID: &fileID}); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}
	h.countDriveRequest(ctx, userID)

	writeJSON(w, http.StatusOK, dto.DriveSyncResponse{Success: true, DriveFileID: fileID})
}

// RestoreDrive handles POST /api/projects/{id}/drive/restore, replacing the
// project's rows with the Drive document. Only the owner may restore.
func (h *GoogleHandler) RestoreDrive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID := chi.URLParam(r, "id")
	userID := middleware.GetUserID(ctx)

	if _, err := h.access.RequireOwner(ctx, projectID, userID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	project, err := h.store.GetProject(ctx, projectID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	drive, err := h.google.Drive(ctx, sessionToken(ctx))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	doc, err := drive.LoadDocument(ctx, project.DriveFileID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if doc.Project.ID != projectID {
		writeError(w, h.logger, apperr.Invalid("driveFileId", "document belongs to another project"))
		return
	}
	if doc.Project.OwnerID != project.OwnerID {
		writeError(w, h.logger, apperr.Invalid("ownerId", "document names a different project owner"))
		return
	}

	if err := h.store.ImportProject(ctx, doc); err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.countDriveRequest(ctx, userID)

	writeJSON(w, http.StatusOK, dto.DriveSyncResponse{Success: true, DriveFileID: project.DriveFileID})
}

func (h *GoogleHandler) countDriveRequest(ctx context.Context, userID string) {
	err := h.store.IncrementUsage(ctx, userID, storage.Month(h.now()), storage.UsageDelta{GoogleDriveRequests: 1})
	if err != nil {
		h.logger.Warn("failed to count drive usage", "user_id", userID, "error", err)
	}
}

func optionalInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperr.Invalid(name, "must be a non-negative integer")
	}
	return n, nil
}
