package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/projectflow/internal/apperr"
	"github.com/hugh/projectflow/internal/database/models"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// CreateProject inserts the project and its owner membership in a single
// transaction, so a project never exists without its owner.
func (s *Store) CreateProject(ctx context.Context, in CreateProjectInput) (*models.Project, error) {
	fields := map[string]string{}
	if strings.TrimSpace(in.Name) == "" {
		fields["name"] = "Project name is required"
	}
	if in.OwnerID == "" {
		fields["ownerId"] = "is required"
	}
	if len(fields) > 0 {
		return nil, &apperr.ValidationError{Fields: fields}
	}

	sealed, err := s.seal(in.GoogleAPIConfig)
	if err != nil {
		return nil, err
	}

	var project models.Project
	err = s.withTx(ctx, func(tx *gorm.DB) error {
		var owner models.User
		if err := tx.First(&owner, "id = ?", in.OwnerID).Error; err != nil {
			return notFound(err, "user", in.OwnerID)
		}

		allowed := lo.Uniq(lo.Map(in.AllowedEmails, func(e string, _ int) string { return normalizeEmail(e) }))
		if len(allowed) == 0 {
			allowed = []string{owner.Email}
		}
		color := in.Color
		if color == "" {
			color = models.DefaultProjectColor
		}

		now := s.now()
		id := uuid.NewString()
		project = models.Project{
			Base:               models.Base{ID: id},
			Name:               strings.TrimSpace(in.Name),
			Description:        in.Description,
			OwnerID:            owner.ID,
			Color:              color,
			DriveFileID:        "temp-" + id, // replaced on first Drive sync
			AllowedEmails:      allowed,
			GoogleConfigSealed: sealed,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := tx.Create(&project).Error; err != nil {
			return fmt.Errorf("creating project: %w", err)
		}

		member := models.ProjectMember{
			ProjectID: project.ID,
			UserID:    owner.ID,
			Role:      models.RoleOwner,
			JoinedAt:  now,
		}
		if err := tx.Create(&member).Error; err != nil {
			return fmt.Errorf("creating owner membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	project.GoogleAPIConfig = in.GoogleAPIConfig
	return &project, nil
}

func (s *Store) GetProject(ctx context.Context, id string) (*models.Project, error) {
	var project models.Project
	if err := s.db.WithContext(ctx).First(&project, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "project", id)
	}
	return &project, nil
}

// GetUserProjects lists every project the user holds any membership in.
func (s *Store) GetUserProjects(ctx context.Context, userID string) ([]models.Project, error) {
	var projects []models.Project
	err := s.db.WithContext(ctx).
		Joins("JOIN project_members ON project_members.project_id = projects.id").
		Where("project_members.user_id = ?", userID).
		Order("projects.created_at DESC").
		Find(&projects).Error
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	return projects, nil
}

func (s *Store) UpdateProject(ctx context.Context, id string, in ProjectUpdate) (*models.Project, error) {
	updates := map[string]interface{}{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperr.Invalid("name", "Project name is required")
		}
		updates["name"] = name
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.Color != nil {
		updates["color"] = *in.Color
	}
	if in.DriveFileID != nil {
		updates["drive_file_id"] = *in.DriveFileID
	}
	if in.AllowedEmails != nil {
		updates["allowed_emails"] = models.StringList(lo.Uniq(lo.Map(in.AllowedEmails, func(e string, _ int) string { return normalizeEmail(e) })))
	}

	var project models.Project
	err := s.withTx(ctx, func(tx *gorm.DB) error {
		if err := tx.First(&project, "id = ?", id).Error; err != nil {
			return notFound(err, "project", id)
		}
		updates["updated_at"] = s.now()
		if err := tx.Model(&project).Updates(updates).Error; err != nil {
			return fmt.Errorf("updating project: %w", err)
		}
		return tx.First(&project, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// DeleteProject removes the project. Members, tasks (and their comments),
// activities, suggestions and invitations go with it.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&models.Project{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("deleting project: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("project", id)
	}
	return nil
}

func (s *Store) GetProjectGoogleConfig(ctx context.Context, projectID string) (*models.GoogleAPIConfig, error) {
	project, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return s.open(project.GoogleConfigSealed)
}

// GetInheritableGoogleConfig finds the earliest-joined project the user is a
// non-owner member of whose owner shared a credential bundle. It returns a
// nil config when there is none.
func (s *Store) GetInheritableGoogleConfig(ctx context.Context, userID string) (*models.GoogleAPIConfig, string, error) {
	var project models.Project
	err := s.db.WithContext(ctx).
		Joins("JOIN project_members ON project_members.project_id = projects.id").
		Where("project_members.user_id = ? AND project_members.role <> ?", userID, models.RoleOwner).
		Where("projects.google_config_sealed <> ''").
		Order("project_members.joined_at ASC").
		First(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("finding inheritable config: %w", err)
	}

	cfg, err := s.open(project.GoogleConfigSealed)
	if err != nil {
		return nil, "", err
	}
	return cfg, project.ID, nil
}

// AddProjectMember inserts a membership and fails with a conflict if the
// user already belongs to the project.
func (s *Store) AddProjectMember(ctx context.Context, projectID, userID string, role models.Role) (*models.ProjectMember, error) {
	member, created, err := s.EnsureProjectMember(ctx, projectID, userID, role)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, fmt.Errorf("user %s is already a member of project %s: %w", userID, projectID, apperr.ErrConflict)
	}
	return member, nil
}

// EnsureProjectMember returns the existing membership, or creates one with
// the given role. The boolean reports whether a row was created.
func (s *Store) EnsureProjectMember(ctx context.Context, projectID, userID string, role models.Role) (*models.ProjectMember, bool, error) {
	var member models.ProjectMember
	var created bool
	err := s.withTx(ctx, func(tx *gorm.DB) error {
		m, ok, err := s.ensureMember(tx, projectID, userID, role)
		if err != nil {
			return err
		}
		member, created = *m, ok
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &member, created, nil
}

func (s *Store) ensureMember(tx *gorm.DB, projectID, userID string, role models.Role) (*models.ProjectMember, bool, error) {
	if !role.Valid() {
		return nil, false, apperr.Invalid("role", "must be one of owner, admin, member")
	}

	var existing models.ProjectMember
	err := tx.Where("project_id = ? AND user_id = ?", projectID, userID).First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("loading membership: %w", err)
	}

	var project models.Project
	if err := tx.Select("id").First(&project, "id = ?", projectID).Error; err != nil {
		return nil, false, notFound(err, "project", projectID)
	}

	member := models.ProjectMember{
		ProjectID: projectID,
		UserID:    userID,
		Role:      role,
		JoinedAt:  s.now(),
	}
	tx.SavePoint("ensure_member")
	if err := tx.Create(&member).Error; err != nil {
		// A concurrent insert may have won the unique index.
		tx.RollbackTo("ensure_member")
		if again := tx.Where("project_id = ? AND user_id = ?", projectID, userID).First(&existing).Error; again == nil {
			return &existing, false, nil
		}
		return nil, false, fmt.Errorf("creating membership: %w", err)
	}
	return &member, true, nil
}

// GetProjectMembers returns memberships oldest first with the user joined.
func (s *Store) GetProjectMembers(ctx context.Context, projectID string) ([]models.ProjectMember, error) {
	db := s.db.WithContext(ctx)

	var members []models.ProjectMember
	if err := db.Where("project_id = ?", projectID).Order("joined_at ASC").Find(&members).Error; err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}

	users, err := usersByID(db, lo.Map(members, func(m models.ProjectMember, _ int) string { return m.UserID }))
	if err != nil {
		return nil, err
	}
	for i := range members {
		members[i].User = users[members[i].UserID]
	}
	return members, nil
}

// GetUserProjectRole returns the user's membership in the project. It is the
// authorization primitive for every project-scoped operation.
func (s *Store) GetUserProjectRole(ctx context.Context, projectID, userID string) (*models.ProjectMember, error) {
	var member models.ProjectMember
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		First(&member).Error
	if err != nil {
		return nil, notFound(err, "membership", projectID+"/"+userID)
	}
	return &member, nil
}

func (s *Store) RemoveProjectMember(ctx context.Context, projectID, userID string) error {
	res := s.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Delete(&models.ProjectMember{})
	if res.Error != nil {
		return fmt.Errorf("removing member: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("membership", projectID+"/"+userID)
	}
	return nil
}
