package biometric

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/camden-git/attendancebackend/models"
)

// DefaultTieEpsilon is the score difference below which two candidates are treated as equal.
const DefaultTieEpsilon = 1e-6

// Probe is one already-extracted recognition attempt.
type Probe struct {
	ClaimedSubject *uint // set for verification, nil for identification
	Vector         []float32
	Quality        float64
	FaceCount      int
	At             time.Time
}

type Thresholds struct {
	MinConfidence float64
	MinQuality    float64
	TieEpsilon    float64
}

// ThresholdsFromPolicy takes the recognition thresholds of a schedule policy.
func ThresholdsFromPolicy(p *models.SchedulePolicy, epsilon float64) Thresholds {
	if epsilon <= 0 {
		epsilon = DefaultTieEpsilon
	}
	return Thresholds{
		MinConfidence: p.MinRecognitionConfidence,
		MinQuality:    p.MinProbeQuality,
		TieEpsilon:    epsilon,
	}
}

// Verdict is the decision for one probe.
type Verdict struct {
	Outcome      models.RecognitionOutcome `json:"outcome"`
	SubjectID    *uint                     `json:"subject_id,omitempty"`
	TemplateID   string                    `json:"template_id,omitempty"`
	Confidence   float64                   `json:"confidence"`
	QualityScore float64                   `json:"quality_score"`
	LogID        string                    `json:"log_id"`
	Seq          uint64                    `json:"seq"`
}

func (v Verdict) Matched() bool {
	return v.Outcome == models.OutcomeMatched
}

// AuditSink stores recognition log entries.
type AuditSink interface {
	Append(ctx context.Context, entry *models.RecognitionLog) error
}

// Gallery maps subject IDs to their templates. Inactive templates are ignored.
type Gallery map[uint][]models.EnrollmentTemplate

// Matcher evaluates probes and writes exactly one audit entry per evaluation.
type Matcher struct {
	sink AuditSink
	seq  atomic.Uint64
	now  func() time.Time
}

// NewMatcher creates a matcher whose sequence numbers continue after lastSeq.
func NewMatcher(sink AuditSink, lastSeq uint64) *Matcher {
	m := &Matcher{sink: sink, now: time.Now}
	m.seq.Store(lastSeq)
	return m
}

type decision struct {
	outcome    models.RecognitionOutcome
	subjectID  uint
	template   string
	confidence float64
	notes      string
}

type candidate struct {
	template models.EnrollmentTemplate
	score    float64
}

// Evaluate classifies the probe against the gallery. The audit entry is written even when
// the outcome is a failure; an error is returned only when the entry cannot be stored.
func (m *Matcher) Evaluate(ctx context.Context, probe Probe, gallery Gallery, th Thresholds) (Verdict, error) {
	start := m.now()
	if th.TieEpsilon <= 0 {
		th.TieEpsilon = DefaultTieEpsilon
	}

	d := decide(probe, gallery, th)

	// NaN and Inf cannot be stored or encoded
	quality := probe.Quality
	if !finite(quality) {
		quality = 0
	}
	verdict := Verdict{
		Outcome:      d.outcome,
		TemplateID:   d.template,
		Confidence:   d.confidence,
		QualityScore: quality,
	}
	if d.outcome == models.OutcomeMatched {
		id := d.subjectID
		verdict.SubjectID = &id
	}

	timestamp := probe.At
	if timestamp.IsZero() {
		timestamp = start
	}
	entry := &models.RecognitionLog{
		ID:             uuid.NewString(),
		Seq:            m.seq.Add(1),
		Outcome:        d.outcome,
		Confidence:     d.confidence,
		QualityScore:   quality,
		FaceCount:      probe.FaceCount,
		Notes:          d.notes,
		Timestamp:      timestamp.UTC(),
		ProcessingTime: m.now().Sub(start),
	}
	if verdict.SubjectID != nil {
		id := *verdict.SubjectID
		entry.SubjectID = &id
	}
	if probe.ClaimedSubject != nil {
		id := *probe.ClaimedSubject
		entry.ClaimedSubjectID = &id
	}
	if d.template != "" {
		tpl := d.template
		entry.TemplateID = &tpl
	}

	verdict.LogID = entry.ID
	verdict.Seq = entry.Seq
	if err := m.sink.Append(ctx, entry); err != nil {
		return verdict, fmt.Errorf("failed to append recognition log %d: %w", entry.Seq, err)
	}
	return verdict, nil
}

func decide(probe Probe, gallery Gallery, th Thresholds) decision {
	switch {
	case probe.FaceCount <= 0:
		return decision{outcome: models.OutcomeNoFace}
	case probe.FaceCount > 1:
		return decision{outcome: models.OutcomeMultipleFaces, notes: fmt.Sprintf("%d faces detected", probe.FaceCount)}
	case !finite(probe.Quality) || probe.Quality < th.MinQuality:
		return decision{outcome: models.OutcomeLowQuality, notes: fmt.Sprintf("quality %.4f below %.4f", probe.Quality, th.MinQuality)}
	}

	var subjects []uint
	if probe.ClaimedSubject != nil {
		claimed := *probe.ClaimedSubject
		if !hasActive(gallery[claimed]) {
			return decision{outcome: models.OutcomeUnknown, notes: fmt.Sprintf("subject %d has no active templates", claimed)}
		}
		subjects = []uint{claimed}
	} else {
		for id, ts := range gallery {
			if hasActive(ts) {
				subjects = append(subjects, id)
			}
		}
		sort.Slice(subjects, func(i, j int) bool { return subjects[i] < subjects[j] })
	}

	if !ValidVector(probe.Vector) {
		return decision{outcome: models.OutcomeUnmatched, notes: "probe vector is empty or not finite"}
	}

	var (
		best        candidate
		bestSubject uint
		found       bool
	)
	// subjects are ascending, so on a tie the lower subject ID is kept
	for _, id := range subjects {
		c, ok := bestTemplate(probe.Vector, gallery[id], th.TieEpsilon)
		if !ok {
			continue
		}
		if !found || c.score > best.score+th.TieEpsilon {
			best, bestSubject, found = c, id, true
		}
	}

	if !found {
		return decision{outcome: models.OutcomeUnmatched, notes: "no template with a matching dimension"}
	}
	if best.score < th.MinConfidence {
		return decision{
			outcome:    models.OutcomeUnmatched,
			confidence: best.score,
			notes:      fmt.Sprintf("best score %.4f below %.4f", best.score, th.MinConfidence),
		}
	}
	return decision{
		outcome:    models.OutcomeMatched,
		subjectID:  bestSubject,
		template:   best.template.ID,
		confidence: best.score,
	}
}

// bestTemplate scores every active template of one subject. Scores within epsilon are
// ties, broken by primary flag, then enrollment confidence, then newest creation.
func bestTemplate(vector []float32, templates []models.EnrollmentTemplate, epsilon float64) (candidate, bool) {
	var best candidate
	found := false
	for _, t := range templates {
		if !t.IsActive || t.Dimension != len(vector) {
			continue
		}
		c := candidate{template: t, score: Score(vector, t.GetEmbedding())}
		if !found || beats(c, best, epsilon) {
			best, found = c, true
		}
	}
	return best, found
}

func beats(c, cur candidate, epsilon float64) bool {
	if math.Abs(c.score-cur.score) > epsilon {
		return c.score > cur.score
	}
	a, b := c.template, cur.template
	if a.IsPrimary != b.IsPrimary {
		return a.IsPrimary
	}
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID < b.ID
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func hasActive(ts []models.EnrollmentTemplate) bool {
	for _, t := range ts {
		if t.IsActive {
			return true
		}
	}
	return false
}
