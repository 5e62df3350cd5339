package models

import (
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TemplateSource records why a template was captured.
type TemplateSource string

const (
	SourceEnrollment TemplateSource = "enrollment"
	SourceUpdate     TemplateSource = "update"
	SourceRetrain    TemplateSource = "retrain"
)

// Valid reports whether s is a known template source.
func (s TemplateSource) Valid() bool {
	switch s {
	case SourceEnrollment, SourceUpdate, SourceRetrain:
		return true
	}
	return false
}

// EnrollmentTemplate is a stored biometric feature vector belonging to a subject.
// It corresponds to the 'enrollment_templates' table.
type EnrollmentTemplate struct {
	ID             string         `gorm:"primaryKey;size:36" json:"id"`
	SubjectID      uint           `gorm:"not null;index:idx_templates_subject_active,priority:1" json:"subject_id"`
	EmbeddingData  []byte         `gorm:"not null;column:embedding_data" json:"-"` // float32 little-endian BLOB
	Dimension      int            `gorm:"not null" json:"dimension"`
	EmbeddingModel string         `gorm:"not null;column:embedding_model;default:'arcface'" json:"embedding_model"`
	Confidence     float64        `gorm:"not null" json:"confidence"` // enrollment confidence score in [0,1]
	ImageQuality   *float64       `gorm:"column:image_quality" json:"image_quality,omitempty"`
	Source         TemplateSource `gorm:"not null;size:16" json:"source"`
	IsPrimary      bool           `gorm:"not null" json:"is_primary"`
	IsActive       bool           `gorm:"not null;index:idx_templates_subject_active,priority:2" json:"is_active"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// TableName explicitly sets the table name for GORM.
func (EnrollmentTemplate) TableName() string {
	return "enrollment_templates"
}

func (t *EnrollmentTemplate) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// GetEmbedding converts the BLOB data to []float32
func (t *EnrollmentTemplate) GetEmbedding() []float32 {
	if len(t.EmbeddingData) == 0 {
		return nil
	}

	embedding := make([]float32, len(t.EmbeddingData)/4)
	for i := 0; i < len(embedding); i++ {
		offset := i * 4
		bits := uint32(t.EmbeddingData[offset]) |
			uint32(t.EmbeddingData[offset+1])<<8 |
			uint32(t.EmbeddingData[offset+2])<<16 |
			uint32(t.EmbeddingData[offset+3])<<24
		embedding[i] = math.Float32frombits(bits)
	}
	return embedding
}

// SetEmbedding converts []float32 to BLOB data and records the dimension
func (t *EnrollmentTemplate) SetEmbedding(embedding []float32) {
	t.Dimension = len(embedding)
	if len(embedding) == 0 {
		t.EmbeddingData = nil
		return
	}

	t.EmbeddingData = make([]byte, len(embedding)*4)
	for i, val := range embedding {
		offset := i * 4
		bits := math.Float32bits(val)
		t.EmbeddingData[offset] = byte(bits)
		t.EmbeddingData[offset+1] = byte(bits >> 8)
		t.EmbeddingData[offset+2] = byte(bits >> 16)
		t.EmbeddingData[offset+3] = byte(bits >> 24)
	}
}
