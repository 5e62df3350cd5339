package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/camden-git/attendancebackend/models"
)

// LeaveRepository handles database operations for LeaveRequest entities
type LeaveRepository struct {
	DB *gorm.DB
}

var _ LeaveRepositoryInterface = (*LeaveRepository)(nil)

// NewLeaveRepository creates a new instance of LeaveRepository
func NewLeaveRepository(db *gorm.DB) *LeaveRepository {
	return &LeaveRepository{DB: db}
}

func (r *LeaveRepository) Create(ctx context.Context, leave *models.LeaveRequest) error {
	if err := r.DB.WithContext(ctx).Create(leave).Error; err != nil {
		return fmt.Errorf("failed to create leave request for subject ID %d: %w", leave.SubjectID, err)
	}
	return nil
}

func (r *LeaveRepository) GetByID(ctx context.Context, id string) (*models.LeaveRequest, error) {
	var leave models.LeaveRequest
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&leave).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get leave request by ID %s: %w", id, err)
	}
	return &leave, nil
}

// Update persists the workflow fields of a leave request
func (r *LeaveRepository) Update(ctx context.Context, leave *models.LeaveRequest) error {
	result := r.DB.WithContext(ctx).Model(&models.LeaveRequest{}).
		Where("id = ?", leave.ID).
		Updates(map[string]interface{}{
			"status":           leave.Status,
			"approved_by":      leave.ApprovedBy,
			"approval_date":    leave.ApprovalDate,
			"rejection_reason": leave.RejectionReason,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update leave request ID %s: %w", leave.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// List retrieves leave requests, optionally for one subject and one status, newest first
func (r *LeaveRepository) List(ctx context.Context, subjectID *uint, status models.LeaveStatus) ([]models.LeaveRequest, error) {
	query := r.DB.WithContext(ctx)
	if subjectID != nil {
		query = query.Where("subject_id = ?", *subjectID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var leaves []models.LeaveRequest
	if err := query.Order("start_day DESC, created_at DESC").Find(&leaves).Error; err != nil {
		return nil, fmt.Errorf("failed to list leave requests: %w", err)
	}
	return leaves, nil
}

// HasApprovedLeave reports whether an approved leave of the subject covers day
func (r *LeaveRepository) HasApprovedLeave(ctx context.Context, subjectID uint, day string) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.LeaveRequest{}).
		Where("subject_id = ? AND status = ? AND start_day <= ? AND end_day >= ?", subjectID, models.LeaveApproved, day, day).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("failed to check leave for subject ID %d on %s: %w", subjectID, day, err)
	}
	return n > 0, nil
}

// SubjectsOnLeave returns the set of subjects with approved leave covering day
func (r *LeaveRepository) SubjectsOnLeave(ctx context.Context, day string) (map[uint]bool, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&models.LeaveRequest{}).
		Where("status = ? AND start_day <= ? AND end_day >= ?", models.LeaveApproved, day, day).
		Distinct().Pluck("subject_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects on leave for %s: %w", day, err)
	}
	set := make(map[uint]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}
