package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugh/projectflow/internal/api/dto"
	"github.com/hugh/projectflow/internal/auth"
	"github.com/hugh/projectflow/internal/database/models"
	"github.com/hugh/projectflow/internal/testutil"
)

func TestAuthHandler_StatusAnonymous(t *testing.T) {
	env := setupRouter(t)

	rr := env.do(t, http.MethodGet, "/api/auth/status", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var status auth.Status
	testutil.ParseJSONResponse(t, rr, &status)
	assert.False(t, status.IsAuthenticated)
	assert.False(t, status.HasGoogleConfig)
	assert.Equal(t, "anonymous", status.State)
	assert.Nil(t, status.User)
}

func TestAuthHandler_DevSignIn(t *testing.T) {
	env := setupRouter(t)

	rr := env.do(t, http.MethodPost, "/api/auth/google-config", map[string]string{
		"apiKey":       "key",
		"clientId":     "client.apps.googleusercontent.com",
		"clientSecret": "secret",
	}, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), auth.DevUser.ID)
	cookie := sessionCookie(t, rr.Result())

	rr = env.do(t, http.MethodGet, "/api/auth/status", nil, cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	var status auth.Status
	testutil.ParseJSONResponse(t, rr, &status)
	assert.True(t, status.IsAuthenticated)
	assert.True(t, status.HasGoogleConfig)
	assert.Equal(t, "client.apps.googleusercontent.com", status.ClientID)
	assert.Equal(t, "authenticated", status.State)

	rr = env.do(t, http.MethodGet, "/api/auth/user", nil, cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	var user models.User
	testutil.ParseJSONResponse(t, rr, &user)
	assert.Equal(t, auth.DevUser.Email, user.Email)
}

func TestAuthHandler_GoogleConfigValidation(t *testing.T) {
	env := setupRouter(t)

	rr := env.do(t, http.MethodPost, "/api/auth/google-config", map[string]string{"apiKey": "key"}, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var resp errorBody
	testutil.ParseJSONResponse(t, rr, &resp)
	assert.Equal(t, "is required", resp.Details["clientId"])
	assert.Equal(t, "is required", resp.Details["clientSecret"])
}

func TestAuthHandler_UserRequiresSession(t *testing.T) {
	env := setupRouter(t)

	rr := env.do(t, http.MethodGet, "/api/auth/user", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuthHandler_Tokens(t *testing.T) {
	env := setupRouter(t)

	rr := env.do(t, http.MethodPost, "/api/auth/update-google-token",
		map[string]interface{}{"accessToken": "at", "scope": auth.ScopeGmailSend}, env.Cookie)
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "tokens need a credential bundle first")

	env.Session.GoogleConfig = testutil.TestGoogleConfig()
	env.Resave(t)

	rr = env.do(t, http.MethodGet, "/api/auth/check-google-tokens", nil, env.Cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	var st dto.TokenStatus
	testutil.ParseJSONResponse(t, rr, &st)
	assert.False(t, st.HasValidTokens)

	rr = env.do(t, http.MethodPost, "/api/auth/update-google-token", map[string]interface{}{
		"accessToken": "at",
		"scope":       auth.ScopeEmail + " " + auth.ScopeGmailSend,
		"expiresIn":   3600,
	}, env.Cookie)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	cookie := sessionCookie(t, rr.Result())

	rr = env.do(t, http.MethodGet, "/api/auth/check-google-tokens", nil, cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	st = dto.TokenStatus{}
	testutil.ParseJSONResponse(t, rr, &st)
	assert.True(t, st.HasValidTokens)
	assert.True(t, st.HasGmailScope)
	assert.NotEmpty(t, st.ExpiresAt)

	rr = env.do(t, http.MethodPost, "/api/auth/refresh-google-tokens", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "no refresh token was stored")
}

func TestAuthHandler_InheritProjectConfig(t *testing.T) {
	env := setupRouter(t)
	owner := testutil.CreateTestUser(t, env.Store)
	project := testutil.CreateTestProject(t, env.Store, owner)

	rr := env.do(t, http.MethodPost, "/api/auth/inherit-project-config", map[string]string{"projectId": project.ID}, env.Cookie)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	testutil.AddTestMember(t, env.Store, project, env.User, models.RoleMember)
	rr = env.do(t, http.MethodPost, "/api/auth/inherit-project-config", map[string]string{"projectId": project.ID}, env.Cookie)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	cookie := sessionCookie(t, rr.Result())

	rr = env.do(t, http.MethodGet, "/api/auth/status", nil, cookie)
	var status auth.Status
	testutil.ParseJSONResponse(t, rr, &status)
	assert.True(t, status.HasGoogleConfig)
	assert.Equal(t, testutil.TestGoogleConfig().ClientID, status.ClientID)
}

func TestAuthHandler_CallbackInDevMode(t *testing.T) {
	env := setupRouter(t)

	rr := env.do(t, http.MethodGet, "/api/auth/callback?code=abc&state=xyz", nil, nil)
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/?error=auth_failed", rr.Header().Get("Location"))

	rr = env.do(t, http.MethodGet, "/api/auth/callback?error=access_denied", nil, nil)
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/?error=access_denied", rr.Header().Get("Location"))
}

func TestAuthHandler_Logout(t *testing.T) {
	env := setupRouter(t)

	rr := env.do(t, http.MethodPost, "/api/auth/logout", nil, env.Cookie)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/auth/user", nil, env.Cookie)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
