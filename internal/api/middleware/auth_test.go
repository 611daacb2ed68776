package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hugh/projectflow/internal/auth"
	"github.com/hugh/projectflow/internal/testutil"
	"github.com/hugh/projectflow/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func TestSession_LoadsSignedInUser(t *testing.T) {
	setup := testutil.NewTestContext(t)

	handler := Session(setup.Sessions, util.NopLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := GetSession(r.Context())
		require.NotNil(t, sess)
		assert.Equal(t, setup.User.ID, GetUserID(r.Context()))
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	req.AddCookie(setup.Cookie)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSession_AnonymousVisitorGetsEmptySession(t *testing.T) {
	sessions := testutil.NewTestSessionManager()

	handler := Session(sessions, util.NopLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := GetSession(r.Context())
		require.NotNil(t, sess)
		assert.False(t, sess.IsAuthenticated())
		assert.Empty(t, GetUserID(r.Context()))
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireUser(t *testing.T) {
	sessions := testutil.NewTestSessionManager()
	handler := RequireUser(http.HandlerFunc(okHandler))

	tests := []struct {
		name     string
		session  *auth.Session
		expected int
	}{
		{"no session", nil, http.StatusUnauthorized},
		{"anonymous", sessions.New(), http.StatusUnauthorized},
		{"signed in", &auth.Session{User: &auth.SessionUser{ID: "u-1", Email: "a@example.com"}}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
			if tt.session != nil {
				req = req.WithContext(WithSession(req.Context(), tt.session))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.expected, rec.Code)
			if tt.expected == http.StatusUnauthorized {
				assert.JSONEq(t, `{"message":"Authentication required"}`, rec.Body.String())
			}
		})
	}
}

func TestRequireGoogleLinked(t *testing.T) {
	handler := RequireGoogleLinked(http.HandlerFunc(okHandler))
	user := &auth.SessionUser{ID: "u-1", Email: "a@example.com"}

	tests := []struct {
		name     string
		tokens   *auth.GoogleTokens
		expected int
	}{
		{"no tokens", nil, http.StatusUnauthorized},
		{"expired", &auth.GoogleTokens{AccessToken: "a", ExpiresAt: time.Now().Add(-time.Minute)}, http.StatusUnauthorized},
		{"valid", &auth.GoogleTokens{AccessToken: "a", ExpiresAt: time.Now().Add(time.Hour)}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := &auth.Session{User: user, GoogleTokens: tt.tokens}
			req := httptest.NewRequest(http.MethodGet, "/api/google/profile", nil)
			req = req.WithContext(WithSession(req.Context(), sess))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.expected, rec.Code)
		})
	}
}
