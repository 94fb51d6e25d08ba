package repository

import (
	"context"
	"fmt"

	"github.com/formlet/formlet-api/internal/models"
	"gorm.io/gorm"
)

type ResponseRepository struct {
	db *gorm.DB
}

func NewResponseRepository(db *gorm.DB) *ResponseRepository {
	return &ResponseRepository{db: db}
}

// Create creates a new response
func (r *ResponseRepository) Create(ctx context.Context, response *models.Response) error {
	if err := r.db.WithContext(ctx).Create(response).Error; err != nil {
		return fmt.Errorf("failed to create response: %w", err)
	}
	return nil
}

// ListByForm retrieves all responses for a form, newest first
func (r *ResponseRepository) ListByForm(ctx context.Context, formID string) ([]models.Response, error) {
	var responses []models.Response
	result := r.db.WithContext(ctx).
		Where("form_id = ?", formID).
		Order("created_at DESC").
		Find(&responses)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list responses: %w", result.Error)
	}
	return responses, nil
}
