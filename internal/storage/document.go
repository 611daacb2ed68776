package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/hugh/projectflow/internal/apperr"
	"github.com/hugh/projectflow/internal/database/models"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// ExportProject reads the project's full entity graph into the Drive
// document shape. Rows are raw (no user joins) and include dismissed
// suggestions so the document can be reloaded without loss.
func (s *Store) ExportProject(ctx context.Context, projectID string) (*models.ProjectDocument, error) {
	var doc models.ProjectDocument
	err := s.withTx(ctx, func(tx *gorm.DB) error {
		if err := tx.First(&doc.Project, "id = ?", projectID).Error; err != nil {
			return notFound(err, "project", projectID)
		}
		if err := tx.Where("project_id = ?", projectID).Order("created_at ASC, id ASC").Find(&doc.Tasks).Error; err != nil {
			return fmt.Errorf("exporting tasks: %w", err)
		}
		if err := tx.Where("project_id = ?", projectID).Order("joined_at ASC, id ASC").Find(&doc.Members).Error; err != nil {
			return fmt.Errorf("exporting members: %w", err)
		}
		taskIDs := lo.Map(doc.Tasks, func(t models.Task, _ int) string { return t.ID })
		if len(taskIDs) > 0 {
			if err := tx.Where("task_id IN ?", taskIDs).Order("created_at ASC, id ASC").Find(&doc.Comments).Error; err != nil {
				return fmt.Errorf("exporting comments: %w", err)
			}
		}
		if err := tx.Where("project_id = ?", projectID).Order("created_at ASC, id ASC").Find(&doc.Activities).Error; err != nil {
			return fmt.Errorf("exporting activities: %w", err)
		}
		if err := tx.Where("project_id = ?", projectID).Order("created_at ASC, id ASC").Find(&doc.AiSuggestions).Error; err != nil {
			return fmt.Errorf("exporting suggestions: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Always emit arrays, never null.
	doc.Tasks = nonNil(doc.Tasks)
	doc.Members = nonNil(doc.Members)
	doc.Comments = nonNil(doc.Comments)
	doc.Activities = nonNil(doc.Activities)
	doc.AiSuggestions = nonNil(doc.AiSuggestions)
	return &doc, nil
}

// ImportProject replaces the project's rows with the document's contents,
// keeping ids and timestamps. A credential bundle already stored for the
// project survives the reload, since documents never carry one.
func (s *Store) ImportProject(ctx context.Context, doc *models.ProjectDocument) error {
	if err := validateDocument(doc); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *gorm.DB) error {
		project := doc.Project

		var existing models.Project
		err := tx.First(&existing, "id = ?", project.ID).Error
		switch {
		case err == nil:
			project.GoogleConfigSealed = existing.GoogleConfigSealed
			if err := tx.Delete(&models.Project{}, "id = ?", project.ID).Error; err != nil {
				return fmt.Errorf("replacing project: %w", err)
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("loading project: %w", err)
		}

		project.Members, project.Tasks, project.Activities, project.AiSuggestions, project.Invitations = nil, nil, nil, nil, nil
		if err := tx.Create(&project).Error; err != nil {
			return fmt.Errorf("importing project: %w", err)
		}
		if err := createAll(tx, lo.Map(doc.Members, func(m models.ProjectMember, _ int) models.ProjectMember {
			m.User = nil
			return m
		})); err != nil {
			return fmt.Errorf("importing members: %w", err)
		}
		if err := createAll(tx, lo.Map(doc.Tasks, func(t models.Task, _ int) models.Task {
			t.Comments, t.Assignee, t.CreatedBy = nil, nil, nil
			return t
		})); err != nil {
			return fmt.Errorf("importing tasks: %w", err)
		}
		if err := createAll(tx, lo.Map(doc.Comments, func(c models.Comment, _ int) models.Comment {
			c.Author = nil
			return c
		})); err != nil {
			return fmt.Errorf("importing comments: %w", err)
		}
		if err := createAll(tx, lo.Map(doc.Activities, func(a models.Activity, _ int) models.Activity {
			a.User = nil
			return a
		})); err != nil {
			return fmt.Errorf("importing activities: %w", err)
		}
		if err := createAll(tx, doc.AiSuggestions); err != nil {
			return fmt.Errorf("importing suggestions: %w", err)
		}
		return nil
	})
}

func validateDocument(doc *models.ProjectDocument) error {
	if doc == nil || doc.Project.ID == "" {
		return apperr.Invalid("project.id", "is required")
	}
	pid := doc.Project.ID
	fields := map[string]string{}

	owners := lo.Filter(doc.Members, func(m models.ProjectMember, _ int) bool { return m.Role == models.RoleOwner })
	switch {
	case len(owners) != 1:
		fields["members"] = "must contain exactly one owner"
	case owners[0].UserID != doc.Project.OwnerID:
		fields["members"] = "owner must be the project creator"
	}
	if lo.SomeBy(doc.Members, func(m models.ProjectMember) bool { return m.ProjectID != pid }) {
		fields["members"] = "belong to a different project"
	}
	if lo.SomeBy(doc.Tasks, func(t models.Task) bool { return t.ProjectID != pid }) {
		fields["tasks"] = "belong to a different project"
	}
	taskIDs := lo.SliceToMap(doc.Tasks, func(t models.Task) (string, struct{}) { return t.ID, struct{}{} })
	if lo.SomeBy(doc.Comments, func(c models.Comment) bool { _, ok := taskIDs[c.TaskID]; return !ok }) {
		fields["comments"] = "reference tasks outside the document"
	}
	if lo.SomeBy(doc.Activities, func(a models.Activity) bool { return a.ProjectID != pid }) {
		fields["activities"] = "belong to a different project"
	}
	if lo.SomeBy(doc.AiSuggestions, func(a models.AiSuggestion) bool { return a.ProjectID != pid }) {
		fields["aiSuggestions"] = "belong to a different project"
	}

	if len(fields) > 0 {
		return &apperr.ValidationError{Fields: fields}
	}
	return nil
}

func createAll[T any](tx *gorm.DB, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	return tx.CreateInBatches(rows, 100).Error
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
