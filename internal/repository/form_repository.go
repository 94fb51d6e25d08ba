package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/formlet/formlet-api/internal/models"
	"gorm.io/gorm"
)

var ErrFormNotFound = errors.New("form not found")

type FormRepository struct {
	db *gorm.DB
}

func NewFormRepository(db *gorm.DB) *FormRepository {
	return &FormRepository{db: db}
}

// Create creates a new form
func (r *FormRepository) Create(ctx context.Context, form *models.Form) error {
	if err := r.db.WithContext(ctx).Create(form).Error; err != nil {
		return fmt.Errorf("failed to create form: %w", err)
	}
	return nil
}

// GetByID retrieves a form by ID
func (r *FormRepository) GetByID(ctx context.Context, id string) (*models.Form, error) {
	var form models.Form
	result := r.db.WithContext(ctx).First(&form, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrFormNotFound
		}
		return nil, fmt.Errorf("failed to get form: %w", result.Error)
	}
	return &form, nil
}

// ListByOwner retrieves all forms owned by the given user
func (r *FormRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Form, error) {
	var forms []models.Form
	result := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&forms)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list forms: %w", result.Error)
	}
	return forms, nil
}

// ReplaceQuestions overwrites the form's question list wholesale.
// Concurrent edits are last-writer-wins; there is no partial patch.
func (r *FormRepository) ReplaceQuestions(ctx context.Context, id string, questions models.Questions) error {
	result := r.db.WithContext(ctx).Model(&models.Form{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"questions":  questions,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to replace questions: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrFormNotFound
	}
	return nil
}
