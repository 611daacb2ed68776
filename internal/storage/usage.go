package storage

import (
	"context"
	"fmt"

	"github.com/hugh/projectflow/internal/database/models"
	"gorm.io/gorm"
)

// GetUserUsage returns the usage row for the month, creating a zeroed one
// the first time a month is seen.
func (s *Store) GetUserUsage(ctx context.Context, userID, month string) (*models.UsageTracking, error) {
	var usage models.UsageTracking
	err := s.withTx(ctx, func(tx *gorm.DB) error {
		return firstOrCreateUsage(tx, userID, month, &usage)
	})
	if err != nil {
		return nil, err
	}
	return &usage, nil
}

func (s *Store) UpdateUsage(ctx context.Context, userID, month string, in UsageUpdate) (*models.UsageTracking, error) {
	updates := map[string]interface{}{}
	if in.GoogleDriveRequests != nil {
		updates["google_drive_requests"] = *in.GoogleDriveRequests
	}
	if in.GeminiRequests != nil {
		updates["gemini_requests"] = *in.GeminiRequests
	}
	if in.ProjectsCreated != nil {
		updates["projects_created"] = *in.ProjectsCreated
	}
	if in.StorageUsed != nil {
		updates["storage_used"] = *in.StorageUsed
	}

	var usage models.UsageTracking
	err := s.withTx(ctx, func(tx *gorm.DB) error {
		if err := firstOrCreateUsage(tx, userID, month, &usage); err != nil {
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		if err := usageRow(tx, userID, month).Updates(updates).Error; err != nil {
			return fmt.Errorf("updating usage: %w", err)
		}
		return usageRow(tx, userID, month).First(&usage).Error
	})
	if err != nil {
		return nil, err
	}
	return &usage, nil
}

// IncrementUsage adds the deltas atomically in the database.
func (s *Store) IncrementUsage(ctx context.Context, userID, month string, in UsageDelta) error {
	return s.withTx(ctx, func(tx *gorm.DB) error {
		var usage models.UsageTracking
		if err := firstOrCreateUsage(tx, userID, month, &usage); err != nil {
			return err
		}
		err := usageRow(tx, userID, month).Updates(map[string]interface{}{
			"google_drive_requests": gorm.Expr("google_drive_requests + ?", in.GoogleDriveRequests),
			"gemini_requests":       gorm.Expr("gemini_requests + ?", in.GeminiRequests),
			"projects_created":      gorm.Expr("projects_created + ?", in.ProjectsCreated),
			"storage_used":          gorm.Expr("storage_used + ?", in.StorageUsed),
		}).Error
		if err != nil {
			return fmt.Errorf("incrementing usage: %w", err)
		}
		return nil
	})
}

func (s *Store) GetSubscriptionPlans(ctx context.Context) []models.SubscriptionPlan {
	return models.SubscriptionPlans()
}

func usageRow(tx *gorm.DB, userID, month string) *gorm.DB {
	return tx.Model(&models.UsageTracking{}).Where("user_id = ? AND month = ?", userID, month)
}

func firstOrCreateUsage(tx *gorm.DB, userID, month string, out *models.UsageTracking) error {
	err := tx.Where(models.UsageTracking{UserID: userID, Month: month}).
		FirstOrCreate(out).Error
	if err != nil {
		return fmt.Errorf("loading usage: %w", err)
	}
	return nil
}
