// Package access decides who may touch a project. Membership is the only
// authorization fact; tasks defer to their parent project.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/hugh/projectflow/internal/apperr"
	"github.com/hugh/projectflow/internal/database/models"
)

// MembershipReader is the storage the checker needs.
type MembershipReader interface {
	GetUserProjectRole(ctx context.Context, projectID, userID string) (*models.ProjectMember, error)
	GetTask(ctx context.Context, id string) (*models.Task, error)
}

type Checker struct {
	store MembershipReader
}

func NewChecker(store MembershipReader) *Checker {
	return &Checker{store: store}
}

// HasProjectAccess returns the user's membership, or nil if there is none.
func (c *Checker) HasProjectAccess(ctx context.Context, projectID, userID string) (*models.ProjectMember, error) {
	member, err := c.store.GetUserProjectRole(ctx, projectID, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return member, nil
}

// HasElevatedRole reports whether m may change the project's membership.
func HasElevatedRole(m *models.ProjectMember) bool {
	return m != nil && m.Role.Elevated()
}

// RequireProjectAccess fails with ErrAccessDenied for non-members, whether or
// not the project exists.
func (c *Checker) RequireProjectAccess(ctx context.Context, projectID, userID string) (*models.ProjectMember, error) {
	member, err := c.HasProjectAccess(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, fmt.Errorf("project %s: %w", projectID, apperr.ErrAccessDenied)
	}
	return member, nil
}

func (c *Checker) RequireElevatedRole(ctx context.Context, projectID, userID string) (*models.ProjectMember, error) {
	member, err := c.RequireProjectAccess(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	if !HasElevatedRole(member) {
		return nil, fmt.Errorf("role %s on project %s: %w", member.Role, projectID, apperr.ErrAccessDenied)
	}
	return member, nil
}

// RequireOwner allows only the project's owner.
func (c *Checker) RequireOwner(ctx context.Context, projectID, userID string) (*models.ProjectMember, error) {
	member, err := c.RequireProjectAccess(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	if member.Role != models.RoleOwner {
		return nil, fmt.Errorf("role %s on project %s: %w", member.Role, projectID, apperr.ErrAccessDenied)
	}
	return member, nil
}

// RequireTaskAccess loads the task and checks membership of its project. An
// unknown task is reported as not found.
func (c *Checker) RequireTaskAccess(ctx context.Context, taskID, userID string) (*models.Task, *models.ProjectMember, error) {
	task, err := c.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}
	member, err := c.RequireProjectAccess(ctx, task.ProjectID, userID)
	if err != nil {
		return nil, nil, err
	}
	return task, member, nil
}
