package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/camden-git/attendancebackend/models"
)

// PolicyRepository handles database operations for SchedulePolicy versions
type PolicyRepository struct {
	DB *gorm.DB
}

var _ PolicyRepositoryInterface = (*PolicyRepository)(nil)

// NewPolicyRepository creates a new instance of PolicyRepository
func NewPolicyRepository(db *gorm.DB) *PolicyRepository {
	return &PolicyRepository{DB: db}
}

// ActiveAt returns the version with the latest effective_from not after 'at'.
// Returns gorm.ErrRecordNotFound when no version was effective yet.
func (r *PolicyRepository) ActiveAt(ctx context.Context, at time.Time) (*models.SchedulePolicy, error) {
	var policy models.SchedulePolicy
	err := r.DB.WithContext(ctx).
		Where("effective_from <= ?", at.UTC()).
		Order("effective_from DESC, id DESC").
		First(&policy).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get policy effective at %s: %w", at.Format(time.RFC3339), err)
	}
	return &policy, nil
}

// GetByID retrieves a policy version by its ID
func (r *PolicyRepository) GetByID(ctx context.Context, id uint) (*models.SchedulePolicy, error) {
	var policy models.SchedulePolicy
	err := r.DB.WithContext(ctx).First(&policy, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get policy by ID %d: %w", id, err)
	}
	return &policy, nil
}

// ListAll retrieves every version, newest first
func (r *PolicyRepository) ListAll(ctx context.Context) ([]models.SchedulePolicy, error) {
	var policies []models.SchedulePolicy
	err := r.DB.WithContext(ctx).Order("effective_from DESC, id DESC").Find(&policies).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	return policies, nil
}

// Activate inserts a new version and makes it the only active one
func (r *PolicyRepository) Activate(ctx context.Context, policy *models.SchedulePolicy) error {
	policy.EffectiveFrom = policy.EffectiveFrom.UTC()
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.SchedulePolicy{}).Where("is_active = ?", true).Update("is_active", false).Error; err != nil {
			return fmt.Errorf("failed to deactivate current policy: %w", err)
		}
		policy.ID = 0
		policy.IsActive = true
		if err := tx.Create(policy).Error; err != nil {
			return fmt.Errorf("failed to create policy version: %w", err)
		}
		return nil
	})
}

func (r *PolicyRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.DB.WithContext(ctx).Model(&models.SchedulePolicy{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count policies: %w", err)
	}
	return n, nil
}
