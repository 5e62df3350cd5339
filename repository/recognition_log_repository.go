package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/camden-git/attendancebackend/biometric"
	"github.com/camden-git/attendancebackend/models"
)

// RecognitionLogRepository appends and reads recognition audit entries. It never
// updates or deletes rows.
type RecognitionLogRepository struct {
	DB *gorm.DB
}

var (
	_ RecognitionLogRepositoryInterface = (*RecognitionLogRepository)(nil)
	_ biometric.AuditSink               = (*RecognitionLogRepository)(nil)
)

// NewRecognitionLogRepository creates a new instance of RecognitionLogRepository
func NewRecognitionLogRepository(db *gorm.DB) *RecognitionLogRepository {
	return &RecognitionLogRepository{DB: db}
}

func (r *RecognitionLogRepository) Append(ctx context.Context, entry *models.RecognitionLog) error {
	if err := r.DB.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to append recognition log seq %d: %w", entry.Seq, err)
	}
	return nil
}

// ListBySubject retrieves entries where the subject was matched or claimed, newest first
func (r *RecognitionLogRepository) ListBySubject(ctx context.Context, subjectID uint, limit int) ([]models.RecognitionLog, error) {
	query := r.DB.WithContext(ctx).
		Where("subject_id = ? OR claimed_subject_id = ?", subjectID, subjectID).
		Order("timestamp DESC, seq DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var entries []models.RecognitionLog
	if err := query.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list recognition logs for subject ID %d: %w", subjectID, err)
	}
	return entries, nil
}

func (r *RecognitionLogRepository) ListRecent(ctx context.Context, limit int) ([]models.RecognitionLog, error) {
	query := r.DB.WithContext(ctx).Order("timestamp DESC, seq DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var entries []models.RecognitionLog
	if err := query.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list recent recognition logs: %w", err)
	}
	return entries, nil
}

// MaxSeq returns the highest stored sequence number, 0 for an empty log
func (r *RecognitionLogRepository) MaxSeq(ctx context.Context) (uint64, error) {
	var seq uint64
	err := r.DB.WithContext(ctx).Model(&models.RecognitionLog{}).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&seq).Error
	if err != nil {
		return 0, fmt.Errorf("failed to read max recognition log seq: %w", err)
	}
	return seq, nil
}
