package auth_test

import (
	"testing"
	"time"

	"github.com/hugh/projectflow/internal/auth"
	"github.com/hugh/projectflow/internal/database/models"
	"github.com/stretchr/testify/assert"
)

func TestSession_State(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cfg := &models.GoogleAPIConfig{APIKey: "key", ClientID: "client", ClientSecret: "secret"}
	user := &auth.SessionUser{ID: "u1", Email: "a@x.com"}

	tests := []struct {
		name string
		sess *auth.Session
		want auth.State
	}{
		{"empty session", &auth.Session{}, auth.StateAnonymous},
		{"config only", &auth.Session{GoogleConfig: cfg}, auth.StateConfigured},
		{"signed in", &auth.Session{GoogleConfig: cfg, User: user}, auth.StateAuthenticated},
		{
			"valid tokens",
			&auth.Session{GoogleConfig: cfg, User: user, GoogleTokens: &auth.GoogleTokens{
				AccessToken: "at", ExpiresAt: now.Add(time.Hour),
			}},
			auth.StateGoogleLinked,
		},
		{
			"expired tokens fall back to authenticated",
			&auth.Session{GoogleConfig: cfg, User: user, GoogleTokens: &auth.GoogleTokens{
				AccessToken: "at", RefreshToken: "rt", ExpiresAt: now.Add(-time.Second),
			}},
			auth.StateAuthenticated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sess.State(now))
		})
	}
}

func TestSession_InheritConfig(t *testing.T) {
	owner := &models.GoogleAPIConfig{APIKey: "owner-key", ClientID: "owner", ClientSecret: "s"}

	t.Run("fills an empty session", func(t *testing.T) {
		sess := &auth.Session{}
		assert.True(t, sess.InheritConfig("p1", owner))
		assert.Equal(t, "owner", sess.GoogleConfig.ClientID)
		assert.Equal(t, "p1", sess.ConfigInheritedFrom)

		owner.ClientID = "changed"
		assert.Equal(t, "owner", sess.GoogleConfig.ClientID, "session keeps its own copy")
		owner.ClientID = "owner"
	})

	t.Run("never replaces a user's own bundle", func(t *testing.T) {
		own := &models.GoogleAPIConfig{APIKey: "mine", ClientID: "mine", ClientSecret: "s"}
		sess := &auth.Session{GoogleConfig: own}
		assert.False(t, sess.InheritConfig("p1", owner))
		assert.Equal(t, "mine", sess.GoogleConfig.ClientID)
	})

	t.Run("nil bundle is ignored", func(t *testing.T) {
		sess := &auth.Session{}
		assert.False(t, sess.InheritConfig("p1", nil))
		assert.Nil(t, sess.GoogleConfig)
	})
}

func TestSession_SignOut(t *testing.T) {
	sess := &auth.Session{
		User:         &auth.SessionUser{ID: "u1"},
		GoogleConfig: &models.GoogleAPIConfig{ClientID: "c"},
		GoogleTokens: &auth.GoogleTokens{AccessToken: "at"},
		OAuthState:   "state",
	}
	sess.SignOut()

	assert.False(t, sess.IsAuthenticated())
	assert.Nil(t, sess.GoogleTokens)
	assert.Empty(t, sess.OAuthState)
	assert.True(t, sess.HasGoogleConfig())
}

func TestGoogleTokens_HasScope(t *testing.T) {
	tokens := &auth.GoogleTokens{Scope: auth.ScopeEmail + " " + auth.ScopeGmailSend}
	assert.True(t, tokens.HasScope(auth.ScopeGmailSend))
	assert.False(t, tokens.HasScope(auth.ScopeDrive))

	var none *auth.GoogleTokens
	assert.False(t, none.HasScope(auth.ScopeGmailSend))
}
