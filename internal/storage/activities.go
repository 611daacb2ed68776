package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/hugh/projectflow/internal/apperr"
	"github.com/hugh/projectflow/internal/database/models"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

func (s *Store) CreateActivity(ctx context.Context, in CreateActivityInput) (*models.Activity, error) {
	if strings.TrimSpace(in.Type) == "" {
		return nil, apperr.Invalid("type", "is required")
	}
	if in.ProjectID == "" {
		return nil, apperr.Invalid("projectId", "is required")
	}

	activity := models.Activity{
		Type:        in.Type,
		Description: in.Description,
		ProjectID:   in.ProjectID,
		UserID:      in.UserID,
		EntityID:    in.EntityID,
		Metadata:    in.Metadata,
		CreatedAt:   s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&activity).Error; err != nil {
		return nil, fmt.Errorf("creating activity: %w", err)
	}
	return &activity, nil
}

// GetProjectActivities returns at most limit activities, newest first, with
// the acting user joined where it still resolves.
func (s *Store) GetProjectActivities(ctx context.Context, projectID string, limit int) ([]models.Activity, error) {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	db := s.db.WithContext(ctx)

	var activities []models.Activity
	err := db.
		Where("project_id = ?", projectID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&activities).Error
	if err != nil {
		return nil, fmt.Errorf("listing activities: %w", err)
	}

	users, err := usersByID(db, lo.Map(activities, func(a models.Activity, _ int) string { return a.UserID }))
	if err != nil {
		return nil, err
	}
	for i := range activities {
		activities[i].User = users[activities[i].UserID]
	}
	return activities, nil
}

func (s *Store) CreateAiSuggestion(ctx context.Context, in CreateSuggestionInput) (*models.AiSuggestion, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, apperr.Invalid("title", "is required")
	}
	priority := in.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}

	suggestion := models.AiSuggestion{
		Type:        in.Type,
		Title:       in.Title,
		Description: in.Description,
		ProjectID:   in.ProjectID,
		Priority:    priority,
		CreatedAt:   s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&suggestion).Error; err != nil {
		return nil, fmt.Errorf("creating suggestion: %w", err)
	}
	return &suggestion, nil
}

func (s *Store) GetAiSuggestion(ctx context.Context, id string) (*models.AiSuggestion, error) {
	var suggestion models.AiSuggestion
	if err := s.db.WithContext(ctx).First(&suggestion, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "suggestion", id)
	}
	return &suggestion, nil
}

// GetProjectAiSuggestions returns the suggestions that were not dismissed,
// newest first.
func (s *Store) GetProjectAiSuggestions(ctx context.Context, projectID string) ([]models.AiSuggestion, error) {
	var suggestions []models.AiSuggestion
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND dismissed_at IS NULL", projectID).
		Order("created_at DESC").
		Find(&suggestions).Error
	if err != nil {
		return nil, fmt.Errorf("listing suggestions: %w", err)
	}
	return suggestions, nil
}

func (s *Store) UpdateAiSuggestion(ctx context.Context, id string, in SuggestionUpdate) (*models.AiSuggestion, error) {
	updates := map[string]interface{}{}
	if in.Applied != nil {
		updates["applied"] = *in.Applied
	}
	if in.Dismissed {
		updates["dismissed_at"] = s.now()
	}

	var suggestion models.AiSuggestion
	err := s.withTx(ctx, func(tx *gorm.DB) error {
		if err := tx.First(&suggestion, "id = ?", id).Error; err != nil {
			return notFound(err, "suggestion", id)
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&models.AiSuggestion{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fmt.Errorf("updating suggestion: %w", err)
		}
		suggestion = models.AiSuggestion{}
		return tx.First(&suggestion, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return &suggestion, nil
}
