package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/camden-git/attendancebackend/models"
)

// AttendanceRepository handles database operations for AttendanceRecord entities
type AttendanceRepository struct {
	DB *gorm.DB
}

var _ AttendanceRepositoryInterface = (*AttendanceRepository)(nil)

// NewAttendanceRepository creates a new instance of AttendanceRepository
func NewAttendanceRepository(db *gorm.DB) *AttendanceRepository {
	return &AttendanceRepository{DB: db}
}

// Create inserts the first record of a subject's day. A second record for the same
// (subject, day) fails with gorm.ErrDuplicatedKey.
func (r *AttendanceRepository) Create(ctx context.Context, record *models.AttendanceRecord) error {
	err := r.DB.WithContext(ctx).Create(record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		return fmt.Errorf("failed to create attendance record for subject ID %d on %s: %w", record.SubjectID, record.Day, err)
	}
	return nil
}

// Save overwrites every column of an existing record
func (r *AttendanceRepository) Save(ctx context.Context, record *models.AttendanceRecord) error {
	result := r.DB.WithContext(ctx).Model(&models.AttendanceRecord{ID: record.ID}).
		Select("*").Omit("id", "created_at").
		Updates(record)
	if result.Error != nil {
		return fmt.Errorf("failed to save attendance record %s: %w", record.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// GetByID retrieves a record by its ID
func (r *AttendanceRepository) GetByID(ctx context.Context, id string) (*models.AttendanceRecord, error) {
	var record models.AttendanceRecord
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get attendance record by ID %s: %w", id, err)
	}
	return &record, nil
}

// GetBySubjectDay retrieves the single record of a subject's day
func (r *AttendanceRepository) GetBySubjectDay(ctx context.Context, subjectID uint, day string) (*models.AttendanceRecord, error) {
	var record models.AttendanceRecord
	err := r.DB.WithContext(ctx).Where("subject_id = ? AND day = ?", subjectID, day).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get attendance record for subject ID %d on %s: %w", subjectID, day, err)
	}
	return &record, nil
}

// ListBySubject retrieves a subject's records, newest day first
func (r *AttendanceRepository) ListBySubject(ctx context.Context, subjectID uint, filter AttendanceFilter) ([]models.AttendanceRecord, error) {
	query := r.DB.WithContext(ctx).Where("subject_id = ?", subjectID)
	if filter.From != "" {
		query = query.Where("day >= ?", filter.From)
	}
	if filter.To != "" {
		query = query.Where("day <= ?", filter.To)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var records []models.AttendanceRecord
	if err := query.Order("day DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list attendance records for subject ID %d: %w", subjectID, err)
	}
	return records, nil
}

// ListByDay retrieves every subject's record for one day
func (r *AttendanceRepository) ListByDay(ctx context.Context, day string) ([]models.AttendanceRecord, error) {
	var records []models.AttendanceRecord
	err := r.DB.WithContext(ctx).Where("day = ?", day).Order("subject_id ASC").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance records for %s: %w", day, err)
	}
	return records, nil
}

// ListUnapproved retrieves records waiting for admin approval, oldest first
func (r *AttendanceRepository) ListUnapproved(ctx context.Context, limit int) ([]models.AttendanceRecord, error) {
	query := r.DB.WithContext(ctx).Where("is_approved = ?", false).Order("day ASC, subject_id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var records []models.AttendanceRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list unapproved attendance records: %w", err)
	}
	return records, nil
}
