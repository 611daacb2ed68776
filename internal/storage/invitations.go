package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/hugh/projectflow/internal/apperr"
	"github.com/hugh/projectflow/internal/database/models"
	"gorm.io/gorm"
)

func (s *Store) CreateInvitation(ctx context.Context, in CreateInvitationInput) (*models.Invitation, error) {
	email := normalizeEmail(in.Email)
	if email == "" {
		return nil, apperr.Invalid("email", "is required")
	}
	role := in.Role
	if role == "" {
		role = models.RoleMember
	}
	if role == models.RoleOwner || !role.Valid() {
		return nil, apperr.Invalid("role", "must be admin or member")
	}

	var invitation models.Invitation
	err := s.withTx(ctx, func(tx *gorm.DB) error {
		var project models.Project
		if err := tx.Select("id").First(&project, "id = ?", in.ProjectID).Error; err != nil {
			return notFound(err, "project", in.ProjectID)
		}
		invitation = models.Invitation{
			ProjectID:   in.ProjectID,
			Email:       email,
			Role:        role,
			InviterName: strings.TrimSpace(in.InviterName),
			Status:      models.InvitationPending,
			CreatedAt:   s.now(),
		}
		if err := tx.Create(&invitation).Error; err != nil {
			return fmt.Errorf("creating invitation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &invitation, nil
}

func (s *Store) GetInvitation(ctx context.Context, id string) (*models.Invitation, error) {
	var invitation models.Invitation
	if err := s.db.WithContext(ctx).First(&invitation, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "invitation", id)
	}
	return &invitation, nil
}

// AcceptInvitation moves a pending invitation to accepted and ensures the
// user's membership, in one transaction. The status change is conditional,
// so only one of several concurrent accepts succeeds; the rest see a
// conflict.
func (s *Store) AcceptInvitation(ctx context.Context, invitationID, userID string) (*models.Invitation, *models.ProjectMember, error) {
	var invitation models.Invitation
	var member *models.ProjectMember

	err := s.withTx(ctx, func(tx *gorm.DB) error {
		if err := tx.First(&invitation, "id = ?", invitationID).Error; err != nil {
			return notFound(err, "invitation", invitationID)
		}

		now := s.now()
		res := tx.Model(&models.Invitation{}).
			Where("id = ? AND status = ?", invitationID, models.InvitationPending).
			Updates(map[string]interface{}{
				"status":         models.InvitationAccepted,
				"accepted_by_id": userID,
				"accepted_at":    now,
			})
		if res.Error != nil {
			return fmt.Errorf("accepting invitation: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("invitation %s already accepted: %w", invitationID, apperr.ErrConflict)
		}

		m, _, err := s.ensureMember(tx, invitation.ProjectID, userID, invitation.Role)
		if err != nil {
			return err
		}
		member = m

		invitation.Status = models.InvitationAccepted
		invitation.AcceptedByID = userID
		invitation.AcceptedAt = &now
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &invitation, member, nil
}
