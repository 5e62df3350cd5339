package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/camden-git/attendancebackend/models"
)

// SubjectRepository handles database operations for Subject entities
type SubjectRepository struct {
	DB *gorm.DB
}

var _ SubjectRepositoryInterface = (*SubjectRepository)(nil)

// NewSubjectRepository creates a new instance of SubjectRepository
func NewSubjectRepository(db *gorm.DB) *SubjectRepository {
	return &SubjectRepository{DB: db}
}

// Create creates a new subject record in the database
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	err := r.DB.WithContext(ctx).Create(subject).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		return fmt.Errorf("failed to create subject %s: %w", subject.EmployeeCode, err)
	}
	return nil
}

// GetByID retrieves a subject by its ID
func (r *SubjectRepository) GetByID(ctx context.Context, id uint) (*models.Subject, error) {
	var subject models.Subject
	err := r.DB.WithContext(ctx).First(&subject, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get subject by ID %d: %w", id, err)
	}
	return &subject, nil
}

// GetByEmployeeCode retrieves a subject by its unique employee code
func (r *SubjectRepository) GetByEmployeeCode(ctx context.Context, code string) (*models.Subject, error) {
	var subject models.Subject
	err := r.DB.WithContext(ctx).Where("employee_code = ?", code).First(&subject).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get subject by employee code %s: %w", code, err)
	}
	return &subject, nil
}

// ListAll retrieves all subjects ordered by ID
func (r *SubjectRepository) ListAll(ctx context.Context) ([]models.Subject, error) {
	var subjects []models.Subject
	err := r.DB.WithContext(ctx).Order("id ASC").Find(&subjects).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}
	return subjects, nil
}

func (r *SubjectRepository) ListIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&models.Subject{}).Order("id ASC").Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list subject IDs: %w", err)
	}
	return ids, nil
}

// SetEnrollment stores the cached enrollment projection of a subject
func (r *SubjectRepository) SetEnrollment(ctx context.Context, id uint, enrolled bool, enrolledAt *time.Time) error {
	result := r.DB.WithContext(ctx).Model(&models.Subject{}).Where("id = ?", id).Updates(map[string]interface{}{
		"is_face_enrolled":     enrolled,
		"face_enrollment_date": enrolledAt,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update enrollment for subject ID %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// TouchLastAttendance moves last_attendance forward; older timestamps are ignored
func (r *SubjectRepository) TouchLastAttendance(ctx context.Context, id uint, at time.Time) error {
	result := r.DB.WithContext(ctx).Model(&models.Subject{}).
		Where("id = ? AND (last_attendance IS NULL OR last_attendance < ?)", id, at).
		Update("last_attendance", at)
	if result.Error != nil {
		return fmt.Errorf("failed to update last attendance for subject ID %d: %w", id, result.Error)
	}
	return nil
}
