// Package invitations runs the pending → accepted lifecycle of project
// invitations, including the session hand-over on acceptance.
package invitations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hugh/projectflow/internal/access"
	"github.com/hugh/projectflow/internal/api/validation"
	"github.com/hugh/projectflow/internal/apperr"
	"github.com/hugh/projectflow/internal/auth"
	"github.com/hugh/projectflow/internal/database/models"
	"github.com/hugh/projectflow/internal/google"
	"github.com/hugh/projectflow/internal/storage"
	"golang.org/x/oauth2"
)

// Notifier delivers the invitation email. Both the Gmail adapter and the
// job enqueuer satisfy it.
type Notifier interface {
	SendInvitation(ctx context.Context, tok *oauth2.Token, msg google.InvitationEmail) error
}

type Service struct {
	store    storage.Storage
	access   *access.Checker
	notifier Notifier
	baseURL  string
	logger   *slog.Logger
	now      func() time.Time
}

// NewService wires the lifecycle. A nil notifier disables email delivery.
func NewService(store storage.Storage, checker *access.Checker, notifier Notifier, baseURL string, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		access:   checker,
		notifier: notifier,
		baseURL:  strings.TrimRight(baseURL, "/"),
		logger:   logger,
		now:      time.Now,
	}
}

type InviteInput struct {
	Email string
	Role  models.Role
}

type InviteResult struct {
	Success      bool   `json:"success"`
	InvitationID string `json:"invitationId"`
	Message      string `json:"message"`
	EmailSent    bool   `json:"emailSent"`
}

// Invite records a pending invitation and tries to email it. Email failures
// are logged; the invitation stands either way.
func (s *Service) Invite(ctx context.Context, sess *auth.Session, projectID string, in InviteInput) (*InviteResult, error) {
	if !sess.IsAuthenticated() {
		return nil, apperr.ErrAuthenticationRequired
	}
	if _, err := s.access.RequireElevatedRole(ctx, projectID, sess.User.ID); err != nil {
		return nil, err
	}
	if !validation.Email(strings.TrimSpace(in.Email)) {
		return nil, apperr.Invalid("email", "must be a valid email address")
	}

	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	inviter := sess.User.DisplayName()
	invitation, err := s.store.CreateInvitation(ctx, storage.CreateInvitationInput{
		ProjectID:   projectID,
		Email:       in.Email,
		Role:        in.Role,
		InviterName: inviter,
	})
	if err != nil {
		return nil, err
	}

	// Invited addresses join the project's allow list.
	if !project.HasEmail(invitation.Email) {
		allowed := append(append([]string{}, project.AllowedEmails...), invitation.Email)
		if _, err := s.store.UpdateProject(ctx, projectID, storage.ProjectUpdate{AllowedEmails: allowed}); err != nil {
			return nil, err
		}
	}

	_, err = s.store.CreateActivity(ctx, storage.CreateActivityInput{
		Type:        models.ActivityMemberAdded,
		Description: fmt.Sprintf("Invited %s to the project as %s", invitation.Email, invitation.Role),
		ProjectID:   projectID,
		UserID:      sess.User.ID,
		EntityID:    invitation.Email,
		Metadata:    models.Metadata{"invitationId": invitation.ID, "role": string(invitation.Role)},
	})
	if err != nil {
		s.logger.Error("failed to record invitation activity", "project_id", projectID, "error", err)
	}

	sent := s.notify(ctx, sess, google.InvitationEmail{
		To:          invitation.Email,
		ProjectName: project.Name,
		InviterName: inviter,
		Role:        string(invitation.Role),
		InviteLink:  s.InviteLink(invitation.ID),
	})

	return &InviteResult{
		Success:      true,
		InvitationID: invitation.ID,
		Message:      "Invitation sent to " + invitation.Email,
		EmailSent:    sent,
	}, nil
}

func (s *Service) notify(ctx context.Context, sess *auth.Session, msg google.InvitationEmail) bool {
	if s.notifier == nil {
		return false
	}
	if !sess.HasValidTokens(s.now()) {
		s.logger.Info("skipping invitation email, no google tokens", "to", msg.To)
		return false
	}
	if err := s.notifier.SendInvitation(ctx, sess.GoogleTokens.OAuth2(), msg); err != nil {
		s.logger.Warn("failed to send invitation email", "to", msg.To, "error", err)
		return false
	}
	return true
}

func (s *Service) InviteLink(invitationID string) string {
	return s.baseURL + "/invite/" + invitationID
}

// View is what an invitee sees before accepting.
type View struct {
	ID          string                  `json:"id"`
	ProjectID   string                  `json:"projectId"`
	ProjectName string                  `json:"projectName"`
	InviterName string                  `json:"inviterName"`
	Role        models.Role             `json:"role"`
	Email       string                  `json:"email"`
	Status      models.InvitationStatus `json:"status"`
}

func (s *Service) Get(ctx context.Context, id string) (*View, error) {
	invitation, err := s.store.GetInvitation(ctx, id)
	if err != nil {
		return nil, err
	}
	project, err := s.store.GetProject(ctx, invitation.ProjectID)
	if err != nil {
		return nil, err
	}
	return &View{
		ID:          invitation.ID,
		ProjectID:   invitation.ProjectID,
		ProjectName: project.Name,
		InviterName: invitation.InviterName,
		Role:        invitation.Role,
		Email:       invitation.Email,
		Status:      invitation.Status,
	}, nil
}

type AcceptResult struct {
	Success            bool   `json:"success"`
	Message            string `json:"message"`
	ProjectID          string `json:"projectId"`
	HasInheritedConfig bool   `json:"hasInheritedConfig"`
}

// SessionSaver persists the session after Accept has signed it in as the
// invitee.
type SessionSaver func(*auth.Session) error

// Accept signs the session in as the invitee, creates their membership and
// installs the project's Google credential bundle. Accepting twice is a
// conflict.
//
// The session is saved before the invitation is marked accepted, so a
// failed save leaves the invitation pending and the request can be retried.
// A nil save skips persistence.
func (s *Service) Accept(ctx context.Context, sess *auth.Session, id string, save SessionSaver) (*AcceptResult, error) {
	invitation, err := s.store.GetInvitation(ctx, id)
	if err != nil {
		return nil, err
	}
	if invitation.Status != models.InvitationPending {
		return nil, fmt.Errorf("invitation %s already %s: %w", id, invitation.Status, apperr.ErrConflict)
	}

	user, err := s.invitee(ctx, invitation.Email)
	if err != nil {
		return nil, err
	}

	if sess.IsAuthenticated() && sess.User.ID != user.ID {
		sess.SignOut()
		sess.GoogleConfig = nil
		sess.ConfigInheritedFrom = ""
	}
	sess.User = auth.NewSessionUser(user)

	cfg, err := s.store.GetProjectGoogleConfig(ctx, invitation.ProjectID)
	if err != nil {
		s.logger.Warn("failed to load project google config", "project_id", invitation.ProjectID, "error", err)
	}
	inherited := false
	if cfg != nil {
		copied := *cfg
		sess.GoogleConfig = &copied
		sess.ConfigInheritedFrom = invitation.ProjectID
		inherited = true
	}

	if save != nil {
		if err := save(sess); err != nil {
			return nil, fmt.Errorf("saving invitee session: %w", err)
		}
	}
	if _, _, err := s.store.AcceptInvitation(ctx, id, user.ID); err != nil {
		return nil, err
	}

	_, err = s.store.CreateActivity(ctx, storage.CreateActivityInput{
		Type:        models.ActivityMemberJoined,
		Description: fmt.Sprintf("%s joined the project as %s", sess.User.DisplayName(), invitation.Role),
		ProjectID:   invitation.ProjectID,
		UserID:      user.ID,
		EntityID:    user.ID,
		Metadata:    models.Metadata{"invitationId": invitation.ID},
	})
	if err != nil {
		s.logger.Error("failed to record join activity", "project_id", invitation.ProjectID, "error", err)
	}

	s.logger.Info("invitation accepted", "invitation_id", id, "user_id", user.ID, "inherited_config", inherited)
	return &AcceptResult{
		Success:            true,
		Message:            "Invitation accepted successfully",
		ProjectID:          invitation.ProjectID,
		HasInheritedConfig: inherited,
	}, nil
}

// invitee resolves the invited email to a user, creating one named after
// the local part of the address when needed.
func (s *Service) invitee(ctx context.Context, email string) (*models.User, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	local, _, _ := strings.Cut(email, "@")
	return s.store.UpsertUser(ctx, &models.User{Email: email, FirstName: local})
}
