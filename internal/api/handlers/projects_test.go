package handlers_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugh/projectflow/internal/api/dto"
	"github.com/hugh/projectflow/internal/database/models"
	"github.com/hugh/projectflow/internal/invitations"
	"github.com/hugh/projectflow/internal/storage"
	"github.com/hugh/projectflow/internal/testutil"
)

type recordingArchiver struct {
	archived []string
}

func (a *recordingArchiver) Enabled() bool { return true }

func (a *recordingArchiver) Archive(_ context.Context, doc *models.ProjectDocument) (string, error) {
	a.archived = append(a.archived, doc.Project.ID)
	return "projects/" + doc.Project.ID + "/archive.json", nil
}

func TestProjectHandler_Create(t *testing.T) {
	env := setupRouter(t)

	tests := []struct {
		name       string
		body       map[string]interface{}
		wantStatus int
		wantField  string
	}{
		{
			name:       "valid project",
			body:       map[string]interface{}{"name": "Launch", "description": "Q3 launch", "color": "#3b82f6"},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "missing name",
			body:       map[string]interface{}{"description": "nameless"},
			wantStatus: http.StatusBadRequest,
			wantField:  "name",
		},
		{
			name:       "invalid color",
			body:       map[string]interface{}{"name": "Launch", "color": "blue"},
			wantStatus: http.StatusBadRequest,
			wantField:  "color",
		},
		{
			name:       "invalid allowed email",
			body:       map[string]interface{}{"name": "Launch", "allowedEmails": []string{"not-an-email"}},
			wantStatus: http.StatusBadRequest,
			wantField:  "allowedEmails[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/api/projects", tt.body, env.Cookie)
			require.Equal(t, tt.wantStatus, rr.Code, "Body: %s", rr.Body.String())

			if tt.wantField != "" {
				var resp errorBody
				testutil.ParseJSONResponse(t, rr, &resp)
				assert.Equal(t, "Validation failed", resp.Message)
				assert.Contains(t, resp.Details, tt.wantField)
				return
			}

			var project models.Project
			testutil.ParseJSONResponse(t, rr, &project)
			assert.NotEmpty(t, project.ID)
			assert.Equal(t, env.User.ID, project.OwnerID)

			member, err := env.Store.GetUserProjectRole(context.Background(), project.ID, env.User.ID)
			require.NoError(t, err)
			assert.Equal(t, models.RoleOwner, member.Role)

			activities, err := env.Store.GetProjectActivities(context.Background(), project.ID, 10)
			require.NoError(t, err)
			require.Len(t, activities, 1)
			assert.Equal(t, models.ActivityProjectCreated, activities[0].Type)
			assert.Equal(t, `Created project "Launch"`, activities[0].Description)
		})
	}
}

func TestProjectHandler_CreateCountsUsage(t *testing.T) {
	env := setupRouter(t)

	rr := env.do(t, http.MethodPost, "/api/projects", map[string]string{"name": "Counted"}, env.Cookie)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/usage", nil, env.Cookie)
	require.Equal(t, http.StatusOK, rr.Code)

	var usage models.UsageTracking
	testutil.ParseJSONResponse(t, rr, &usage)
	assert.Equal(t, storage.Month(time.Now()), usage.Month)
	assert.Equal(t, 1, usage.ProjectsCreated)
}

func TestProjectHandler_RequiresSession(t *testing.T) {
	env := setupRouter(t)

	rr := env.do(t, http.MethodGet, "/api/projects", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	var resp errorBody
	testutil.ParseJSONResponse(t, rr, &resp)
	assert.Equal(t, "Authentication required", resp.Message)
}

func TestProjectHandler_ListAndGet(t *testing.T) {
	env := setupRouter(t)
	project := testutil.CreateTestProject(t, env.Store, env.User)

	other := testutil.CreateTestUser(t, env.Store)
	testutil.CreateTestProject(t, env.Store, other)

	rr := env.do(t, http.MethodGet, "/api/projects", nil, env.Cookie)
	require.Equal(t, http.StatusOK, rr.Code)

	var projects []models.Project
	testutil.ParseJSONResponse(t, rr, &projects)
	require.Len(t, projects, 1)
	assert.Equal(t, project.ID, projects[0].ID)

	rr = env.do(t, http.MethodGet, "/api/projects/"+project.ID, nil, env.Cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "test-client-secret")
}

func TestProjectHandler_NonMemberIsForbidden(t *testing.T) {
	env := setupRouter(t)
	project := testutil.CreateTestProject(t, env.Store, env.User)

	outsider := testutil.CreateTestUser(t, env.Store)
	cookie := env.CookieFor(t, outsider)

	for _, path := range []string{
		"/api/projects/" + project.ID,
		"/api/projects/" + project.ID + "/members",
		"/api/projects/" + project.ID + "/tasks",
		"/api/projects/" + project.ID + "/activities",
		"/api/projects/" + project.ID + "/stats",
		"/api/projects/does-not-exist",
	} {
		rr := env.do(t, http.MethodGet, path, nil, cookie)
		assert.Equal(t, http.StatusForbidden, rr.Code, path)
	}
}

func TestProjectHandler_Update(t *testing.T) {
	env := setupRouter(t)
	project := testutil.CreateTestProject(t, env.Store, env.User)

	rr := env.do(t, http.MethodPatch, "/api/projects/"+project.ID, map[string]string{"name": "Renamed"}, env.Cookie)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var updated models.Project
	testutil.ParseJSONResponse(t, rr, &updated)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, project.Description, updated.Description)

	member := testutil.CreateTestUser(t, env.Store)
	testutil.AddTestMember(t, env.Store, project, member, models.RoleMember)
	rr = env.do(t, http.MethodPatch, "/api/projects/"+project.ID, map[string]string{"name": "Nope"}, env.CookieFor(t, member))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestProjectHandler_Invite(t *testing.T) {
	env := setupRouter(t)
	project := testutil.CreateTestProject(t, env.Store, env.User)

	rr := env.do(t, http.MethodPost, "/api/projects/"+project.ID+"/members",
		map[string]string{"email": "b@x.com", "role": "member"}, env.Cookie)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var res invitations.InviteResult
	testutil.ParseJSONResponse(t, rr, &res)
	assert.True(t, res.Success)
	assert.False(t, res.EmailSent)

	invitation, err := env.Store.GetInvitation(context.Background(), res.InvitationID)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationPending, invitation.Status)

	members, err := env.Store.GetProjectMembers(context.Background(), project.ID)
	require.NoError(t, err)
	assert.Len(t, members, 1, "a pending invitation does not create a membership")

	t.Run("owner role is rejected", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/api/projects/"+project.ID+"/members",
			map[string]string{"email": "c@x.com", "role": "owner"}, env.Cookie)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("plain member cannot invite", func(t *testing.T) {
		member := testutil.CreateTestUser(t, env.Store)
		testutil.AddTestMember(t, env.Store, project, member, models.RoleMember)

		rr := env.do(t, http.MethodPost, "/api/projects/"+project.ID+"/members",
			map[string]string{"email": "d@x.com"}, env.CookieFor(t, member))
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}

func TestProjectHandler_RemoveMember(t *testing.T) {
	env := setupRouter(t)
	project := testutil.CreateTestProject(t, env.Store, env.User)
	member := testutil.CreateTestUser(t, env.Store)
	testutil.AddTestMember(t, env.Store, project, member, models.RoleMember)

	rr := env.do(t, http.MethodDelete, "/api/projects/"+project.ID+"/members/"+env.User.ID, nil, env.Cookie)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodDelete, "/api/projects/"+project.ID+"/members/"+member.ID, nil, env.Cookie)
	require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())

	_, err := env.Store.GetUserProjectRole(context.Background(), project.ID, member.ID)
	assert.Error(t, err)

	activities, err := env.Store.GetProjectActivities(context.Background(), project.ID, 1)
	require.NoError(t, err)
	require.Len(t, activities, 1)
	assert.Equal(t, models.ActivityMemberRemoved, activities[0].Type)

	rr = env.do(t, http.MethodDelete, "/api/projects/"+project.ID+"/members/"+member.ID, nil, env.Cookie)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestProjectHandler_Stats(t *testing.T) {
	env := setupRouter(t)
	project := testutil.CreateTestProject(t, env.Store, env.User)
	ctx := context.Background()

	yesterday := time.Now().Add(-24 * time.Hour)
	inputs := []storage.CreateTaskInput{
		{Title: "todo", Status: models.TaskStatusTodo, DueDate: &yesterday},
		{Title: "doing", Status: models.TaskStatusInProgress, Priority: models.PriorityHigh},
		{Title: "done", Status: models.TaskStatusDone, Priority: models.PriorityCritical, DueDate: &yesterday},
	}
	for _, in := range inputs {
		in.ProjectID = project.ID
		in.CreatedByID = env.User.ID
		_, err := env.Store.CreateTask(ctx, in)
		require.NoError(t, err)
	}

	rr := env.do(t, http.MethodGet, "/api/projects/"+project.ID+"/stats", nil, env.Cookie)
	require.Equal(t, http.StatusOK, rr.Code)

	var stats dto.ProjectStats
	testutil.ParseJSONResponse(t, rr, &stats)
	assert.Equal(t, dto.ProjectStats{
		TotalTasks:        3,
		TodoTasks:         1,
		InProgressTasks:   1,
		CompletedTasks:    1,
		OverdueTasks:      1,
		TeamMembers:       1,
		HighPriorityTasks: 2,
	}, stats)
}

func TestProjectHandler_Activities(t *testing.T) {
	env := setupRouter(t)
	project := testutil.CreateTestProject(t, env.Store, env.User)

	for i := 0; i < 5; i++ {
		_, err := env.Store.CreateActivity(context.Background(), storage.CreateActivityInput{
			Type:        models.ActivityTaskCreated,
			Description: "activity",
			ProjectID:   project.ID,
			UserID:      env.User.ID,
		})
		require.NoError(t, err)
	}

	rr := env.do(t, http.MethodGet, "/api/projects/"+project.ID+"/activities?limit=3", nil, env.Cookie)
	require.Equal(t, http.StatusOK, rr.Code)

	var activities []models.Activity
	testutil.ParseJSONResponse(t, rr, &activities)
	require.Len(t, activities, 3)
	for i := 1; i < len(activities); i++ {
		assert.False(t, activities[i].CreatedAt.After(activities[i-1].CreatedAt))
	}
	require.NotNil(t, activities[0].User)
	assert.Equal(t, env.User.ID, activities[0].User.ID)

	rr = env.do(t, http.MethodGet, "/api/projects/"+project.ID+"/activities?limit=abc", nil, env.Cookie)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestProjectHandler_Suggestions(t *testing.T) {
	env := setupRouter(t)
	project := testutil.CreateTestProject(t, env.Store, env.User)
	ctx := context.Background()

	keep, err := env.Store.CreateAiSuggestion(ctx, storage.CreateSuggestionInput{
		Type: "task", Title: "Split the epic", ProjectID: project.ID,
	})
	require.NoError(t, err)
	drop, err := env.Store.CreateAiSuggestion(ctx, storage.CreateSuggestionInput{
		Type: "task", Title: "Add tests", ProjectID: project.ID,
	})
	require.NoError(t, err)

	rr := env.do(t, http.MethodPost, "/api/ai-suggestions/"+drop.ID+"/dismiss", nil, env.Cookie)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = env.do(t, http.MethodPost, "/api/ai-suggestions/"+keep.ID+"/apply", nil, env.Cookie)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = env.do(t, http.MethodGet, "/api/projects/"+project.ID+"/ai/suggestions", nil, env.Cookie)
	require.Equal(t, http.StatusOK, rr.Code)

	var suggestions []models.AiSuggestion
	testutil.ParseJSONResponse(t, rr, &suggestions)
	require.Len(t, suggestions, 1)
	assert.Equal(t, keep.ID, suggestions[0].ID)
	assert.True(t, suggestions[0].Applied)

	outsider := testutil.CreateTestUser(t, env.Store)
	rr = env.do(t, http.MethodPost, "/api/ai-suggestions/"+keep.ID+"/dismiss", nil, env.CookieFor(t, outsider))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestProjectHandler_Delete(t *testing.T) {
	archiver := &recordingArchiver{}
	env := setupRouter(t, withArchiver(archiver))
	project := testutil.CreateTestProject(t, env.Store, env.User)
	testutil.CreateTestTask(t, env.Store, project, env.User, "Doomed")

	admin := testutil.CreateTestUser(t, env.Store)
	testutil.AddTestMember(t, env.Store, project, admin, models.RoleAdmin)

	rr := env.do(t, http.MethodDelete, "/api/projects/"+project.ID, nil, env.CookieFor(t, admin))
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Empty(t, archiver.archived)

	rr = env.do(t, http.MethodDelete, "/api/projects/"+project.ID, nil, env.Cookie)
	require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())
	assert.Equal(t, []string{project.ID}, archiver.archived)

	_, err := env.Store.GetProject(context.Background(), project.ID)
	assert.Error(t, err)
	tasks, err := env.Store.GetProjectTasks(context.Background(), project.ID)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}
