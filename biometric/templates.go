package biometric

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/camden-git/attendancebackend/apperrors"
	"github.com/camden-git/attendancebackend/models"
)

// EnrollmentStatus is the projection of a subject's active template count.
type EnrollmentStatus string

const (
	NotEnrolled EnrollmentStatus = "not_enrolled"
	Enrolled    EnrollmentStatus = "enrolled"
)

const DefaultEmbeddingModel = "arcface"

// EnrollRequest describes a new template for a subject.
type EnrollRequest struct {
	Vector     []float32
	Confidence float64  // enrollment confidence score in [0,1]
	Quality    *float64 // optional image quality in [0,1]
	Source     models.TemplateSource
	Primary    bool
	Model      string
	At         time.Time
}

// TemplateSet is every template (active and inactive) of one subject. Operations return
// the templates whose stored state must change; the set itself is only updated when an
// operation succeeds.
type TemplateSet struct {
	SubjectID uint
	templates []models.EnrollmentTemplate
}

func NewTemplateSet(subjectID uint, templates []models.EnrollmentTemplate) *TemplateSet {
	ts := make([]models.EnrollmentTemplate, len(templates))
	copy(ts, templates)
	return &TemplateSet{SubjectID: subjectID, templates: ts}
}

// Templates returns a copy of every template in the set.
func (s *TemplateSet) Templates() []models.EnrollmentTemplate {
	out := make([]models.EnrollmentTemplate, len(s.templates))
	copy(out, s.templates)
	return out
}

// Active returns the active templates, primary first.
func (s *TemplateSet) Active() []models.EnrollmentTemplate {
	var out []models.EnrollmentTemplate
	for _, t := range s.templates {
		if t.IsActive {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsPrimary != out[j].IsPrimary {
			return out[i].IsPrimary
		}
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (s *TemplateSet) ActiveCount() int {
	n := 0
	for _, t := range s.templates {
		if t.IsActive {
			n++
		}
	}
	return n
}

// Primary returns the active primary template, if any.
func (s *TemplateSet) Primary() (models.EnrollmentTemplate, bool) {
	for _, t := range s.templates {
		if t.IsActive && t.IsPrimary {
			return t, true
		}
	}
	return models.EnrollmentTemplate{}, false
}

func (s *TemplateSet) Status() EnrollmentStatus {
	if s.ActiveCount() == 0 {
		return NotEnrolled
	}
	return Enrolled
}

// CheckInvariant verifies that an enrolled subject has exactly one active primary and
// that no inactive template is flagged primary.
func (s *TemplateSet) CheckInvariant() error {
	active, primaries := 0, 0
	for _, t := range s.templates {
		if t.SubjectID != s.SubjectID {
			return fmt.Errorf("template %s belongs to subject %d, not %d", t.ID, t.SubjectID, s.SubjectID)
		}
		if !t.IsActive {
			if t.IsPrimary {
				return fmt.Errorf("inactive template %s is marked primary", t.ID)
			}
			continue
		}
		active++
		if t.IsPrimary {
			primaries++
		}
	}
	if active > 0 && primaries != 1 {
		return fmt.Errorf("subject %d has %d primary templates among %d active", s.SubjectID, primaries, active)
	}
	return nil
}

// Enroll adds a template. The first active template becomes primary automatically; a
// primary request demotes every other active template in the same step. It returns the
// new template and the existing templates that were demoted.
func (s *TemplateSet) Enroll(req EnrollRequest) (models.EnrollmentTemplate, []models.EnrollmentTemplate, error) {
	if !ValidVector(req.Vector) {
		return models.EnrollmentTemplate{}, nil, apperrors.ErrInvalidVector
	}
	if math.IsNaN(req.Confidence) || req.Confidence < 0 || req.Confidence > 1 {
		return models.EnrollmentTemplate{}, nil, apperrors.ErrInvalidScore.Withf("enrollment confidence %.4f outside [0,1]", req.Confidence)
	}
	if req.Quality != nil && (math.IsNaN(*req.Quality) || *req.Quality < 0 || *req.Quality > 1) {
		return models.EnrollmentTemplate{}, nil, apperrors.ErrInvalidScore.Withf("image quality %.4f outside [0,1]", *req.Quality)
	}
	source := req.Source
	if source == "" {
		source = models.SourceEnrollment
	}
	if !source.Valid() {
		return models.EnrollmentTemplate{}, nil, apperrors.ErrInvalidInput.Withf("unknown template source %q", req.Source)
	}
	for _, t := range s.templates {
		if t.IsActive && t.Dimension != len(req.Vector) {
			return models.EnrollmentTemplate{}, nil, apperrors.ErrDimensionMismatch.Withf("got %d, subject templates have %d", len(req.Vector), t.Dimension)
		}
	}

	at := req.At
	if at.IsZero() {
		at = time.Now()
	}
	modelName := req.Model
	if modelName == "" {
		modelName = DefaultEmbeddingModel
	}

	created := models.EnrollmentTemplate{
		ID:             uuid.NewString(),
		SubjectID:      s.SubjectID,
		EmbeddingModel: modelName,
		Confidence:     req.Confidence,
		Source:         source,
		IsActive:       true,
		IsPrimary:      req.Primary || s.ActiveCount() == 0,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
	if req.Quality != nil {
		q := *req.Quality
		created.ImageQuality = &q
	}
	created.SetEmbedding(req.Vector)

	next := s.Templates()
	var demoted []models.EnrollmentTemplate
	if created.IsPrimary {
		for i := range next {
			if next[i].IsActive && next[i].IsPrimary {
				next[i].IsPrimary = false
				next[i].UpdatedAt = at
				demoted = append(demoted, next[i])
			}
		}
	}
	next = append(next, created)
	s.templates = next
	return created, demoted, nil
}

// Deactivate retires a template. The only active template cannot be retired. When the
// primary is retired, the remaining active template with the highest enrollment
// confidence (earliest created on ties) is promoted.
func (s *TemplateSet) Deactivate(templateID string, at time.Time) (models.EnrollmentTemplate, *models.EnrollmentTemplate, error) {
	idx := -1
	for i, t := range s.templates {
		if t.ID == templateID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return models.EnrollmentTemplate{}, nil, apperrors.ErrTemplateNotFound
	}
	if !s.templates[idx].IsActive {
		return models.EnrollmentTemplate{}, nil, apperrors.ErrTemplateInactive
	}
	if s.ActiveCount() == 1 {
		return models.EnrollmentTemplate{}, nil, apperrors.ErrLastTemplateProtected
	}
	if at.IsZero() {
		at = time.Now()
	}

	next := s.Templates()
	wasPrimary := next[idx].IsPrimary
	next[idx].IsActive = false
	next[idx].IsPrimary = false
	next[idx].UpdatedAt = at
	deactivated := next[idx]

	var promoted *models.EnrollmentTemplate
	if wasPrimary {
		succ := successor(next)
		next[succ].IsPrimary = true
		next[succ].UpdatedAt = at
		p := next[succ]
		promoted = &p
	}
	s.templates = next
	return deactivated, promoted, nil
}

// successor picks the index of the active template to promote. Callers guarantee at
// least one active template remains.
func successor(ts []models.EnrollmentTemplate) int {
	best := -1
	for i, t := range ts {
		if !t.IsActive {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		b := ts[best]
		switch {
		case t.Confidence > b.Confidence:
			best = i
		case t.Confidence < b.Confidence:
		case t.CreatedAt.Before(b.CreatedAt):
			best = i
		case t.CreatedAt.Equal(b.CreatedAt) && t.ID < b.ID:
			best = i
		}
	}
	return best
}
