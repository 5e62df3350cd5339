package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/camden-git/attendancebackend/models"
)

// TemplateRepository handles database operations for EnrollmentTemplate entities
type TemplateRepository struct {
	DB *gorm.DB
}

var _ TemplateRepositoryInterface = (*TemplateRepository)(nil)

// NewTemplateRepository creates a new instance of TemplateRepository
func NewTemplateRepository(db *gorm.DB) *TemplateRepository {
	return &TemplateRepository{DB: db}
}

// Create creates a new template record in the database
func (r *TemplateRepository) Create(ctx context.Context, template *models.EnrollmentTemplate) error {
	err := r.DB.WithContext(ctx).Create(template).Error
	if err != nil {
		return fmt.Errorf("failed to create template for subject ID %d: %w", template.SubjectID, err)
	}
	return nil
}

// GetByID retrieves a template by its ID
func (r *TemplateRepository) GetByID(ctx context.Context, id string) (*models.EnrollmentTemplate, error) {
	var template models.EnrollmentTemplate
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&template).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get template by ID %s: %w", id, err)
	}
	return &template, nil
}

// ListBySubject retrieves every template of a subject, active or not
func (r *TemplateRepository) ListBySubject(ctx context.Context, subjectID uint) ([]models.EnrollmentTemplate, error) {
	var templates []models.EnrollmentTemplate
	err := r.DB.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		Order("created_at ASC, id ASC").
		Find(&templates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list templates for subject ID %d: %w", subjectID, err)
	}
	return templates, nil
}

// ListActive retrieves the active templates of all subjects, used to build the
// identification gallery
func (r *TemplateRepository) ListActive(ctx context.Context) ([]models.EnrollmentTemplate, error) {
	var templates []models.EnrollmentTemplate
	err := r.DB.WithContext(ctx).
		Where("is_active = ?", true).
		Order("subject_id ASC, created_at ASC").
		Find(&templates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active templates: %w", err)
	}
	return templates, nil
}

// UpdateFlags persists the active/primary flags of a template. The vector itself is immutable.
func (r *TemplateRepository) UpdateFlags(ctx context.Context, template *models.EnrollmentTemplate) error {
	result := r.DB.WithContext(ctx).Model(&models.EnrollmentTemplate{}).
		Where("id = ?", template.ID).
		Updates(map[string]interface{}{
			"is_active":  template.IsActive,
			"is_primary": template.IsPrimary,
			"updated_at": template.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update template ID %s: %w", template.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
