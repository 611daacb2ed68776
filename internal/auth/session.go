package auth

import (
	"strings"
	"time"

	"github.com/hugh/projectflow/internal/database/models"
	"golang.org/x/oauth2"
)

// State is the session's position in the sign-in lifecycle.
type State int

const (
	StateAnonymous State = iota
	StateConfigured
	StateAuthenticated
	StateGoogleLinked
)

func (s State) String() string {
	switch s {
	case StateConfigured:
		return "configured"
	case StateAuthenticated:
		return "authenticated"
	case StateGoogleLinked:
		return "google_linked"
	default:
		return "anonymous"
	}
}

// SessionUser is the identity snapshot kept in a session.
type SessionUser struct {
	ID               string                  `json:"id"`
	Email            string                  `json:"email"`
	FirstName        string                  `json:"firstName,omitempty"`
	LastName         string                  `json:"lastName,omitempty"`
	ProfileImageURL  string                  `json:"profileImageUrl,omitempty"`
	SubscriptionTier models.SubscriptionTier `json:"subscriptionTier"`
}

func NewSessionUser(u *models.User) *SessionUser {
	return &SessionUser{
		ID:               u.ID,
		Email:            u.Email,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		ProfileImageURL:  u.ProfileImageURL,
		SubscriptionTier: u.SubscriptionTier,
	}
}

// DisplayName is the name shown to other members, falling back to email.
func (u *SessionUser) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.Email
}

// GoogleTokens is the OAuth token set obtained from Google.
type GoogleTokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

func TokensFromOAuth2(tok *oauth2.Token) *GoogleTokens {
	t := &GoogleTokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ExpiresAt:    tok.Expiry,
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		t.Scope = scope
	}
	return t
}

func (t *GoogleTokens) OAuth2() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       t.ExpiresAt,
	}
}

// Valid reports whether the access token can still be used at now. An
// expired token is not refreshed here.
func (t *GoogleTokens) Valid(now time.Time) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	return t.ExpiresAt.IsZero() || now.Before(t.ExpiresAt)
}

func (t *GoogleTokens) HasScope(scope string) bool {
	if t == nil {
		return false
	}
	for _, s := range strings.Fields(t.Scope) {
		if s == scope {
			return true
		}
	}
	return false
}

// Session is the typed per-browser state behind the session cookie.
type Session struct {
	ID           string                  `json:"id"`
	User         *SessionUser            `json:"user,omitempty"`
	GoogleConfig *models.GoogleAPIConfig `json:"googleConfig,omitempty"`
	GoogleTokens *GoogleTokens           `json:"googleTokens,omitempty"`

	// ConfigInheritedFrom names the project whose owner's credential bundle
	// is in GoogleConfig, if it was inherited.
	ConfigInheritedFrom string `json:"configInheritedFrom,omitempty"`

	OAuthState string    `json:"oauthState,omitempty"`
	ReturnTo   string    `json:"returnTo,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (s *Session) IsAuthenticated() bool {
	return s != nil && s.User != nil
}

func (s *Session) HasGoogleConfig() bool {
	return s != nil && s.GoogleConfig != nil
}

func (s *Session) HasValidTokens(now time.Time) bool {
	return s != nil && s.GoogleTokens.Valid(now)
}

func (s *Session) State(now time.Time) State {
	switch {
	case s.IsAuthenticated() && s.HasValidTokens(now):
		return StateGoogleLinked
	case s.IsAuthenticated():
		return StateAuthenticated
	case s.HasGoogleConfig():
		return StateConfigured
	default:
		return StateAnonymous
	}
}

// InheritConfig installs a project owner's credential bundle. A bundle the
// user configured themselves is never replaced.
func (s *Session) InheritConfig(projectID string, cfg *models.GoogleAPIConfig) bool {
	if cfg == nil {
		return false
	}
	if s.GoogleConfig != nil && s.ConfigInheritedFrom == "" {
		return false
	}
	copied := *cfg
	s.GoogleConfig = &copied
	s.ConfigInheritedFrom = projectID
	return true
}

// SignOut drops identity and tokens but keeps the credential bundle.
func (s *Session) SignOut() {
	s.User = nil
	s.GoogleTokens = nil
	s.OAuthState = ""
}
