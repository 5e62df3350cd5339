package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RecognitionOutcome is the classification of a single match attempt.
type RecognitionOutcome string

const (
	OutcomeMatched       RecognitionOutcome = "matched"
	OutcomeNoFace        RecognitionOutcome = "no_face"
	OutcomeMultipleFaces RecognitionOutcome = "multiple_faces"
	OutcomeLowQuality    RecognitionOutcome = "low_quality"
	OutcomeUnmatched     RecognitionOutcome = "unmatched"
	OutcomeUnknown       RecognitionOutcome = "unknown"
)

// RecognitionLog is an append-only audit entry, one per match evaluation.
// Rows are never updated or deleted.
type RecognitionLog struct {
	ID               string             `gorm:"primaryKey;size:36" json:"id"`
	Seq              uint64             `gorm:"not null" json:"seq"`
	SubjectID        *uint              `gorm:"index:idx_recognition_subject_time,priority:1" json:"subject_id,omitempty"` // matched subject
	ClaimedSubjectID *uint              `gorm:"index" json:"claimed_subject_id,omitempty"`
	Outcome          RecognitionOutcome `gorm:"not null;size:16;index:idx_recognition_outcome_time,priority:1" json:"outcome"`
	Confidence       float64            `gorm:"not null" json:"confidence"`
	QualityScore     float64            `gorm:"not null" json:"quality_score"`
	TemplateID       *string            `gorm:"size:36" json:"template_id,omitempty"`
	FaceCount        int                `gorm:"not null" json:"face_count"`
	ProcessingTime   time.Duration      `gorm:"not null" json:"processing_time"`
	Notes            string             `json:"notes,omitempty"`
	Timestamp        time.Time          `gorm:"not null;index:idx_recognition_subject_time,priority:2;index:idx_recognition_outcome_time,priority:2" json:"timestamp"`
}

// TableName explicitly sets the table name for GORM.
func (RecognitionLog) TableName() string {
	return "recognition_logs"
}

func (l *RecognitionLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}
