package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hugh/projectflow/internal/apperr"
	"github.com/hugh/projectflow/internal/database/models"
)

// Status is the body of GET /api/auth/status.
type Status struct {
	IsAuthenticated bool         `json:"isAuthenticated"`
	HasGoogleConfig bool         `json:"hasGoogleConfig"`
	HasGmailScope   bool         `json:"hasGmailScope"`
	ClientID        string       `json:"clientId,omitempty"`
	State           string       `json:"state"`
	User            *SessionUser `json:"user"`
}

// TokenUpdate carries tokens obtained by a client-side popup flow.
type TokenUpdate struct {
	AccessToken  string
	RefreshToken string
	Scope        string
	ExpiresIn    int
}

// Service implements the session state transitions.
type Service struct {
	backend Backend
	oauth   *GoogleOAuth
	users   UserStore
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(backend Backend, oauth *GoogleOAuth, users UserStore, logger *slog.Logger) *Service {
	return &Service{
		backend: backend,
		oauth:   oauth,
		users:   users,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *Service) Backend() Backend { return s.backend }

// Status reports the session state. An authenticated session with no
// credential bundle first gets the user's own saved bundle, then the bundle
// of the first project they joined as a non-owner.
func (s *Service) Status(ctx context.Context, sess *Session) *Status {
	if sess.IsAuthenticated() && !sess.HasGoogleConfig() {
		s.restoreConfig(ctx, sess)
	}

	st := &Status{
		IsAuthenticated: sess.IsAuthenticated(),
		HasGoogleConfig: sess.HasGoogleConfig(),
		HasGmailScope:   sess.GoogleTokens.HasScope(ScopeGmailSend),
		State:           sess.State(s.now()).String(),
		User:            sess.User,
	}
	if sess.HasGoogleConfig() {
		st.ClientID = sess.GoogleConfig.ClientID
	}
	return st
}

func (s *Service) restoreConfig(ctx context.Context, sess *Session) {
	userID := sess.User.ID

	own, err := s.users.GetUserGoogleConfig(ctx, userID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		s.logger.Warn("failed to load saved google config", "user_id", userID, "error", err)
	}
	if own != nil {
		setOwnConfig(sess, own)
		return
	}

	cfg, projectID, err := s.users.GetInheritableGoogleConfig(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to look up inheritable google config", "user_id", userID, "error", err)
		return
	}
	if sess.InheritConfig(projectID, cfg) {
		s.logger.Info("inherited project google config", "user_id", userID, "project_id", projectID)
	}
}

// Configure accepts a credential bundle and hands it to the sign-in backend.
func (s *Service) Configure(ctx context.Context, sess *Session, cfg *models.GoogleAPIConfig) (*BeginResult, error) {
	return s.backend.Begin(ctx, sess, cfg)
}

// CompleteOAuth finishes a consent-screen sign-in.
func (s *Service) CompleteOAuth(ctx context.Context, sess *Session, code, state string) error {
	return s.backend.Complete(ctx, sess, code, state)
}

// SaveConfig replaces the session's bundle with one the user supplied and
// persists it for signed-in users.
func (s *Service) SaveConfig(ctx context.Context, sess *Session, cfg *models.GoogleAPIConfig) error {
	setOwnConfig(sess, cfg)
	if !sess.IsAuthenticated() {
		return nil
	}
	return s.users.SaveUserGoogleConfig(ctx, sess.User.ID, cfg)
}

// ExchangeCode trades a popup-flow authorization code for tokens.
func (s *Service) ExchangeCode(ctx context.Context, sess *Session, code string) (*GoogleTokens, error) {
	if !sess.HasGoogleConfig() {
		return nil, fmt.Errorf("no google config in session: %w", apperr.ErrAuthenticationRequired)
	}
	if strings.TrimSpace(code) == "" {
		return nil, apperr.Invalid("code", "is required")
	}

	tok, err := s.oauth.Exchange(ctx, sess.GoogleConfig, PopupRedirect, code)
	if err != nil {
		return nil, apperr.Upstream("google oauth", err)
	}
	sess.GoogleTokens = TokensFromOAuth2(tok)
	return sess.GoogleTokens, nil
}

// UpdateTokens stores tokens the client obtained on its own.
func (s *Service) UpdateTokens(sess *Session, in TokenUpdate) (*GoogleTokens, error) {
	if !sess.HasGoogleConfig() {
		return nil, fmt.Errorf("no google config in session: %w", apperr.ErrAuthenticationRequired)
	}
	if in.AccessToken == "" || in.Scope == "" {
		return nil, &apperr.ValidationError{Fields: map[string]string{
			"accessToken": "is required",
			"scope":       "is required",
		}}
	}

	t := &GoogleTokens{
		AccessToken:  in.AccessToken,
		RefreshToken: in.RefreshToken,
		Scope:        in.Scope,
		TokenType:    "Bearer",
	}
	if in.ExpiresIn > 0 {
		t.ExpiresAt = s.now().Add(time.Duration(in.ExpiresIn) * time.Second)
	}
	sess.GoogleTokens = t
	return t, nil
}

// RefreshTokens uses the stored refresh token. The gate itself never calls
// this; clients ask for it explicitly.
func (s *Service) RefreshTokens(ctx context.Context, sess *Session) (*GoogleTokens, error) {
	if !sess.HasGoogleConfig() || sess.GoogleTokens == nil || sess.GoogleTokens.RefreshToken == "" {
		return nil, fmt.Errorf("no refresh token in session: %w", apperr.ErrAuthenticationRequired)
	}

	tok, err := s.oauth.Refresh(ctx, sess.GoogleConfig, sess.GoogleTokens)
	if err != nil {
		return nil, apperr.Upstream("google oauth", err)
	}

	refreshed := TokensFromOAuth2(tok)
	if refreshed.Scope == "" {
		refreshed.Scope = sess.GoogleTokens.Scope
	}
	sess.GoogleTokens = refreshed
	return refreshed, nil
}

// InheritProjectConfig copies a project's bundle into the session on
// request. Only members may do this.
func (s *Service) InheritProjectConfig(ctx context.Context, sess *Session, projectID string) error {
	if !sess.IsAuthenticated() {
		return apperr.ErrAuthenticationRequired
	}

	if _, err := s.users.GetUserProjectRole(ctx, projectID, sess.User.ID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return fmt.Errorf("project %s: %w", projectID, apperr.ErrAccessDenied)
		}
		return err
	}

	cfg, err := s.users.GetProjectGoogleConfig(ctx, projectID)
	if err != nil {
		return err
	}
	if cfg == nil {
		return apperr.NotFound("project google config", projectID)
	}

	copied := *cfg
	sess.GoogleConfig = &copied
	sess.ConfigInheritedFrom = projectID
	return nil
}
