package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugh/projectflow/internal/api/dto"
	"github.com/hugh/projectflow/internal/database/models"
	"github.com/hugh/projectflow/internal/google"
	"github.com/hugh/projectflow/internal/storage"
	"github.com/hugh/projectflow/internal/testutil"
)

func linkedEnv(t *testing.T, routes ...route) *testEnv {
	t.Helper()
	env := setupRouter(t, withGoogle(fakeGoogle(t, routes...)))
	testutil.LinkGoogle(env.Session)
	env.Resave(t)
	return env
}

func TestGoogleHandler_RequiresTokens(t *testing.T) {
	env := setupRouter(t, withGoogle(fakeGoogle(t)))

	rr := env.do(t, http.MethodGet, "/api/google/profile", nil, env.Cookie)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	var resp errorBody
	testutil.ParseJSONResponse(t, rr, &resp)
	assert.Equal(t, "Google authentication required", resp.Message)

	rr = env.do(t, http.MethodGet, "/api/google/profile", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestGoogleHandler_Profile(t *testing.T) {
	env := linkedEnv(t, route{
		method: http.MethodGet,
		suffix: "/people/me",
		body:   `{"resourceName":"people/1","names":[{"displayName":"Ada"}],"emailAddresses":[{"value":"ada@example.com"}]}`,
	})

	rr := env.do(t, http.MethodGet, "/api/google/profile", nil, env.Cookie)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var person google.Person
	testutil.ParseJSONResponse(t, rr, &person)
	assert.Equal(t, "Ada", person.Name)
	assert.Equal(t, "ada@example.com", person.Email)
}

func TestGoogleHandler_UpstreamFailureIsGeneric(t *testing.T) {
	env := linkedEnv(t, route{
		method: http.MethodGet,
		suffix: "/users/@me/lists",
		status: http.StatusInternalServerError,
		body:   `{"error":{"code":500,"message":"backend exploded"}}`,
	})

	rr := env.do(t, http.MethodGet, "/api/google/tasklists", nil, env.Cookie)
	require.Equal(t, http.StatusInternalServerError, rr.Code)

	var resp errorBody
	testutil.ParseJSONResponse(t, rr, &resp)
	assert.Equal(t, "External service request failed", resp.Message)
	assert.NotContains(t, rr.Body.String(), "exploded")
}

func TestGoogleHandler_ProjectRoutesCheckMembership(t *testing.T) {
	env := linkedEnv(t)
	owner := testutil.CreateTestUser(t, env.Store)
	project := testutil.CreateTestProject(t, env.Store, owner)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/projects/" + project.ID + "/calendar/deadlines"},
		{http.MethodPost, "/api/projects/" + project.ID + "/drive/sync"},
		{http.MethodPost, "/api/projects/" + project.ID + "/sync-google-tasks"},
	} {
		rr := env.do(t, tc.method, tc.path, nil, env.Cookie)
		assert.Equal(t, http.StatusForbidden, rr.Code, tc.path)
	}
}

func TestGoogleHandler_SyncDrive(t *testing.T) {
	env := linkedEnv(t, route{
		method: http.MethodPost,
		suffix: "/files",
		body:   `{"id":"drive-file-1"}`,
	})
	project := testutil.CreateTestProject(t, env.Store, env.User)
	testutil.CreateTestTask(t, env.Store, project, env.User, "Backed up")

	rr := env.do(t, http.MethodPost, "/api/projects/"+project.ID+"/drive/sync", nil, env.Cookie)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp dto.DriveSyncResponse
	testutil.ParseJSONResponse(t, rr, &resp)
	assert.Equal(t, "drive-file-1", resp.DriveFileID)

	stored, err := env.Store.GetProject(testutil.TestContext(t), project.ID)
	require.NoError(t, err)
	assert.Equal(t, "drive-file-1", stored.DriveFileID)
}

func TestGoogleHandler_SyncTasks(t *testing.T) {
	env := linkedEnv(t,
		route{method: http.MethodPost, suffix: "/users/@me/lists", body: `{"id":"list-1","title":"ProjectFlow"}`},
		route{method: http.MethodPost, suffix: "/lists/list-1/tasks", body: `{"id":"gt-1"}`},
	)
	project := testutil.CreateTestProject(t, env.Store, env.User)
	testutil.CreateTestTask(t, env.Store, project, env.User, "One")
	testutil.CreateTestTask(t, env.Store, project, env.User, "Two")

	rr := env.do(t, http.MethodPost, "/api/projects/"+project.ID+"/sync-google-tasks", nil, env.Cookie)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp dto.SyncGoogleTasksResponse
	testutil.ParseJSONResponse(t, rr, &resp)
	assert.Equal(t, "list-1", resp.TaskListID)
	assert.Equal(t, 2, resp.Synced)
}

func TestGoogleHandler_MeetingValidation(t *testing.T) {
	env := linkedEnv(t)
	project := testutil.CreateTestProject(t, env.Store, env.User)

	rr := env.do(t, http.MethodPost, "/api/projects/"+project.ID+"/calendar/meeting", map[string]string{
		"title": "Kickoff",
		"start": "2030-01-01T10:00:00Z",
		"end":   "2030-01-01T09:00:00Z",
	}, env.Cookie)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var resp errorBody
	testutil.ParseJSONResponse(t, rr, &resp)
	assert.Contains(t, resp.Details, "end")
}

func TestGoogleHandler_RestoreDriveKeepsOwner(t *testing.T) {
	var driveCopy []byte
	env := linkedEnv(t, route{
		method: http.MethodGet,
		suffix: "/files/drive-file-1",
		bodyFn: func() string { return string(driveCopy) },
	})
	ctx := context.Background()
	admin := testutil.CreateTestUser(t, env.Store)
	project := testutil.CreateTestProject(t, env.Store, env.User)
	testutil.AddTestMember(t, env.Store, project, admin, models.RoleAdmin)
	fileID := "drive-file-1"
	_, err := env.Store.UpdateProject(ctx, project.ID, storage.ProjectUpdate{DriveFileID: &fileID})
	require.NoError(t, err)

	// The Drive copy has been edited to hand the project to the admin.
	doc, err := env.Store.ExportProject(ctx, project.ID)
	require.NoError(t, err)
	doc.Project.OwnerID = admin.ID
	for i := range doc.Members {
		if doc.Members[i].UserID == admin.ID {
			doc.Members[i].Role = models.RoleOwner
		} else {
			doc.Members[i].Role = models.RoleMember
		}
	}
	driveCopy, err = json.Marshal(doc)
	require.NoError(t, err)

	adminSess := testutil.UserSession(env.Sessions, admin)
	testutil.LinkGoogle(adminSess)
	adminCookie := testutil.SessionCookie(t, env.Sessions, adminSess)

	rr := env.do(t, http.MethodPost, "/api/projects/"+project.ID+"/drive/restore", nil, adminCookie)
	assert.Equal(t, http.StatusForbidden, rr.Code, "admins cannot restore")

	rr = env.do(t, http.MethodPost, "/api/projects/"+project.ID+"/drive/restore", nil, env.Cookie)
	require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())

	var resp errorBody
	testutil.ParseJSONResponse(t, rr, &resp)
	assert.Contains(t, resp.Details, "ownerId")

	member, err := env.Store.GetUserProjectRole(ctx, project.ID, env.User.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, member.Role)
	stored, err := env.Store.GetProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, env.User.ID, stored.OwnerID)
}
