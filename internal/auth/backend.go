package auth

import (
	"context"
	"fmt"

	"github.com/hugh/projectflow/internal/apperr"
	"github.com/hugh/projectflow/internal/database/models"
	"github.com/hugh/projectflow/pkg/crypto"
)

// UserStore is the slice of storage the auth gate depends on.
type UserStore interface {
	UpsertUser(ctx context.Context, user *models.User) (*models.User, error)
	SaveUserGoogleConfig(ctx context.Context, userID string, cfg *models.GoogleAPIConfig) error
	GetUserGoogleConfig(ctx context.Context, userID string) (*models.GoogleAPIConfig, error)
	GetInheritableGoogleConfig(ctx context.Context, userID string) (*models.GoogleAPIConfig, string, error)
	GetUserProjectRole(ctx context.Context, projectID, userID string) (*models.ProjectMember, error)
	GetProjectGoogleConfig(ctx context.Context, projectID string) (*models.GoogleAPIConfig, error)
}

// BeginResult is what a backend returns when a credential bundle is
// submitted: a consent URL to visit, or a user who is already signed in.
type BeginResult struct {
	AuthURL string       `json:"authUrl,omitempty"`
	User    *SessionUser `json:"user,omitempty"`
}

// Backend is a sign-in capability. Deployments pick exactly one.
type Backend interface {
	Name() string
	Begin(ctx context.Context, sess *Session, cfg *models.GoogleAPIConfig) (*BeginResult, error)
	Complete(ctx context.Context, sess *Session, code, state string) error
}

var (
	_ Backend = (*GoogleBackend)(nil)
	_ Backend = (*DevBackend)(nil)
)

// NewBackend picks the backend named by mode ("google" or "dev").
func NewBackend(mode string, users UserStore, oauth *GoogleOAuth, redirectURL string) (Backend, error) {
	switch mode {
	case "google":
		return &GoogleBackend{users: users, oauth: oauth, redirectURL: redirectURL}, nil
	case "dev":
		return &DevBackend{users: users}, nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", mode)
	}
}

// GoogleBackend signs users in through the OAuth consent screen of the
// client they configured.
type GoogleBackend struct {
	users       UserStore
	oauth       *GoogleOAuth
	redirectURL string
}

func (b *GoogleBackend) Name() string { return "google" }

func (b *GoogleBackend) Begin(ctx context.Context, sess *Session, cfg *models.GoogleAPIConfig) (*BeginResult, error) {
	state, err := crypto.GenerateRandomString(24)
	if err != nil {
		return nil, fmt.Errorf("generating oauth state: %w", err)
	}
	setOwnConfig(sess, cfg)
	sess.OAuthState = state
	return &BeginResult{AuthURL: b.oauth.AuthCodeURL(cfg, b.redirectURL, state)}, nil
}

func (b *GoogleBackend) Complete(ctx context.Context, sess *Session, code, state string) error {
	if !sess.HasGoogleConfig() {
		return fmt.Errorf("no google config in session: %w", apperr.ErrAuthenticationRequired)
	}
	if code == "" {
		return apperr.Invalid("code", "is required")
	}
	if sess.OAuthState == "" || state != sess.OAuthState {
		return apperr.Invalid("state", "does not match the pending sign-in")
	}
	sess.OAuthState = ""

	tok, err := b.oauth.Exchange(ctx, sess.GoogleConfig, b.redirectURL, code)
	if err != nil {
		return apperr.Upstream("google oauth", err)
	}
	identity, err := b.oauth.Identify(ctx, sess.GoogleConfig, tok)
	if err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrAuthenticationRequired, err)
	}

	user, err := b.users.UpsertUser(ctx, &models.User{
		Base:            models.Base{ID: identity.Subject},
		Email:           identity.Email,
		FirstName:       identity.FirstName,
		LastName:        identity.LastName,
		ProfileImageURL: identity.Picture,
	})
	if err != nil {
		return err
	}
	if sess.ConfigInheritedFrom == "" {
		if err := b.users.SaveUserGoogleConfig(ctx, user.ID, sess.GoogleConfig); err != nil {
			return err
		}
	}

	sess.User = NewSessionUser(user)
	sess.GoogleTokens = TokensFromOAuth2(tok)
	return nil
}

// DevUser is the identity every dev-mode sign-in maps to.
var DevUser = models.User{
	Base:      models.Base{ID: "dev-user-123"},
	Email:     "dev@example.com",
	FirstName: "Development",
	LastName:  "User",
}

// DevBackend skips Google entirely and signs in a fixed local user as soon
// as a credential bundle is submitted.
type DevBackend struct {
	users UserStore
}

func (b *DevBackend) Name() string { return "dev" }

func (b *DevBackend) Begin(ctx context.Context, sess *Session, cfg *models.GoogleAPIConfig) (*BeginResult, error) {
	u := DevUser
	user, err := b.users.UpsertUser(ctx, &u)
	if err != nil {
		return nil, err
	}
	if err := b.users.SaveUserGoogleConfig(ctx, user.ID, cfg); err != nil {
		return nil, err
	}
	setOwnConfig(sess, cfg)
	sess.User = NewSessionUser(user)
	return &BeginResult{User: sess.User}, nil
}

func (b *DevBackend) Complete(ctx context.Context, sess *Session, code, state string) error {
	return apperr.Invalid("mode", "oauth callback is not available in dev mode")
}

func setOwnConfig(sess *Session, cfg *models.GoogleAPIConfig) {
	copied := *cfg
	sess.GoogleConfig = &copied
	sess.ConfigInheritedFrom = ""
}
