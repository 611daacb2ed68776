package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hugh/projectflow/internal/apperr"
	"github.com/hugh/projectflow/internal/database/models"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// Store implements Storage on top of gorm. Cascade deletes are declared on
// the models and enforced by the database.
type Store struct {
	db     *gorm.DB
	sealer Sealer
	logger *slog.Logger

	mu   sync.Mutex
	last time.Time
}

var _ Storage = (*Store)(nil)

func NewStore(db *gorm.DB, sealer Sealer, logger *slog.Logger) *Store {
	return &Store{db: db, sealer: sealer, logger: logger}
}

// now returns strictly increasing timestamps at microsecond precision so
// ordering by created_at is total even within one clock tick.
func (s *Store) now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := time.Now().UTC().Truncate(time.Microsecond)
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

func (s *Store) withTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

// notFound maps gorm's sentinel onto the domain error.
func notFound(err error, entity, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(entity, id)
	}
	return fmt.Errorf("loading %s: %w", entity, err)
}

// usersByID loads the given users in one query, keyed by id.
func usersByID(tx *gorm.DB, ids []string) (map[string]*models.User, error) {
	ids = lo.Uniq(lo.Compact(ids))
	if len(ids) == 0 {
		return map[string]*models.User{}, nil
	}

	var users []models.User
	if err := tx.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("loading users: %w", err)
	}

	out := make(map[string]*models.User, len(users))
	for i := range users {
		out[users[i].ID] = &users[i]
	}
	return out, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "user", id)
	}
	return &user, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	email = normalizeEmail(email)
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		return nil, notFound(err, "user", email)
	}
	return &user, nil
}

// UpsertUser inserts the user or refreshes the profile fields of an existing
// one. Existing rows are matched by id, then by email. Subscription fields
// are only changed through UpdateUserSubscription.
func (s *Store) UpsertUser(ctx context.Context, in *models.User) (*models.User, error) {
	if strings.TrimSpace(in.Email) == "" {
		return nil, apperr.Invalid("email", "is required")
	}
	email := normalizeEmail(in.Email)

	var out models.User
	err := s.withTx(ctx, func(tx *gorm.DB) error {
		var existing models.User
		q := tx.Where("email = ?", email)
		if in.ID != "" {
			q = tx.Where("id = ?", in.ID).Or("email = ?", email)
		}
		err := q.First(&existing).Error

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			now := s.now()
			out = models.User{
				Base:             models.Base{ID: in.ID},
				Email:            email,
				FirstName:        in.FirstName,
				LastName:         in.LastName,
				ProfileImageURL:  in.ProfileImageURL,
				SubscriptionTier: models.TierFree,
				CreatedAt:        now,
				UpdatedAt:        now,
			}
			if in.SubscriptionTier.Valid() {
				out.SubscriptionTier = in.SubscriptionTier
			}
			return tx.Create(&out).Error
		case err != nil:
			return fmt.Errorf("loading user: %w", err)
		}

		updates := map[string]interface{}{"updated_at": s.now()}
		if in.FirstName != "" {
			updates["first_name"] = in.FirstName
		}
		if in.LastName != "" {
			updates["last_name"] = in.LastName
		}
		if in.ProfileImageURL != "" {
			updates["profile_image_url"] = in.ProfileImageURL
		}
		if err := tx.Model(&existing).Updates(updates).Error; err != nil {
			return fmt.Errorf("updating user: %w", err)
		}
		return tx.First(&out, "id = ?", existing.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) UpdateUserSubscription(ctx context.Context, userID string, in SubscriptionUpdate) (*models.User, error) {
	if !in.Tier.Valid() {
		return nil, apperr.Invalid("tier", "must be one of free, managed_api, premium")
	}

	var out models.User
	err := s.withTx(ctx, func(tx *gorm.DB) error {
		if err := tx.First(&out, "id = ?", userID).Error; err != nil {
			return notFound(err, "user", userID)
		}
		updates := map[string]interface{}{
			"subscription_tier":   in.Tier,
			"subscription_status": in.Status,
			"subscription_expiry": in.Expiry,
			"billing_reference":   in.Reference,
			"updated_at":          s.now(),
		}
		if err := tx.Model(&out).Updates(updates).Error; err != nil {
			return fmt.Errorf("updating subscription: %w", err)
		}
		return tx.First(&out, "id = ?", userID).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) SaveUserGoogleConfig(ctx context.Context, userID string, cfg *models.GoogleAPIConfig) error {
	sealed, err := s.seal(cfg)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).
		Updates(map[string]interface{}{"google_config_sealed": sealed, "updated_at": s.now()})
	if res.Error != nil {
		return fmt.Errorf("saving google config: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("user", userID)
	}
	return nil
}

func (s *Store) GetUserGoogleConfig(ctx context.Context, userID string) (*models.GoogleAPIConfig, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.open(user.GoogleConfigSealed)
}

func (s *Store) seal(cfg *models.GoogleAPIConfig) (string, error) {
	if cfg == nil {
		return "", nil
	}
	sealed, err := s.sealer.Seal(cfg)
	if err != nil {
		return "", fmt.Errorf("sealing google config: %w", err)
	}
	return sealed, nil
}

func (s *Store) open(sealed string) (*models.GoogleAPIConfig, error) {
	if sealed == "" {
		return nil, nil
	}
	var cfg models.GoogleAPIConfig
	if err := s.sealer.Open(sealed, &cfg); err != nil {
		return nil, fmt.Errorf("opening google config: %w", err)
	}
	return &cfg, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
