package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/formlet/formlet-api/internal/models"
	"gorm.io/gorm"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID retrieves a user by its local ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	result := r.db.WithContext(ctx).First(&user, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", result.Error)
	}
	return &user, nil
}

// GetByAirtableUserID retrieves a user by its Airtable identity
func (r *UserRepository) GetByAirtableUserID(ctx context.Context, airtableUserID string) (*models.User, error) {
	var user models.User
	result := r.db.WithContext(ctx).First(&user, "airtable_user_id = ?", airtableUserID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", result.Error)
	}
	return &user, nil
}

// Upsert creates or refreshes the user tied to an Airtable identity.
// Called on every successful OAuth callback; the stored tokens and
// timestamps are always overwritten with the fresh ones.
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) (*models.User, error) {
	existing, err := r.GetByAirtableUserID(ctx, user.AirtableUserID)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		return user, nil
	}

	result := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", existing.ID).
		Updates(map[string]interface{}{
			"email":            user.Email,
			"profile":          user.Profile,
			"access_token":     user.AccessToken,
			"refresh_token":    user.RefreshToken,
			"token_expires_at": user.TokenExpiresAt,
			"login_timestamp":  user.LoginTimestamp,
			"last_seen_at":     user.LastSeenAt,
			"updated_at":       time.Now(),
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update user: %w", result.Error)
	}
	user.ID = existing.ID
	return user, nil
}

// TouchLastSeen updates the user's last activity timestamp
func (r *UserRepository) TouchLastSeen(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_seen_at": time.Now(),
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to touch last seen: %w", result.Error)
	}
	return nil
}
