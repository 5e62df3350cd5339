package biometric

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camden-git/attendancebackend/models"
)

type memorySink struct {
	mu      sync.Mutex
	entries []models.RecognitionLog
	err     error
}

func (s *memorySink) Append(_ context.Context, entry *models.RecognitionLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *entry)
	return s.err
}

func tpl(id string, subject uint, vec []float32, primary bool, conf float64, created time.Time) models.EnrollmentTemplate {
	t := models.EnrollmentTemplate{
		ID:         id,
		SubjectID:  subject,
		Confidence: conf,
		IsPrimary:  primary,
		IsActive:   true,
		CreatedAt:  created,
	}
	t.SetEmbedding(vec)
	return t
}

var defaultThresholds = Thresholds{MinConfidence: 0.6, MinQuality: 0.5, TieEpsilon: 1e-6}

func subjectPtr(id uint) *uint { return &id }

func TestEvaluate_LowConfidenceNeverMatches(t *testing.T) {
	sink := &memorySink{}
	m := NewMatcher(sink, 0)
	gallery := Gallery{1: {tpl("a", 1, []float32{1, 0, 0}, true, 0.9, t0)}}

	// cosine 0.5 against the only template
	v, err := m.Evaluate(context.Background(), Probe{
		ClaimedSubject: subjectPtr(1),
		Vector:         []float32{0.5, 0.8660254, 0},
		Quality:        0.9,
		FaceCount:      1,
		At:             t0,
	}, gallery, defaultThresholds)
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeUnmatched, v.Outcome)
	assert.False(t, v.Matched())
	assert.Nil(t, v.SubjectID)
	assert.InDelta(t, 0.5, v.Confidence, 1e-4)

	require.Len(t, sink.entries, 1)
	entry := sink.entries[0]
	assert.Equal(t, models.OutcomeUnmatched, entry.Outcome)
	assert.Nil(t, entry.SubjectID)
	require.NotNil(t, entry.ClaimedSubjectID)
	assert.Equal(t, uint(1), *entry.ClaimedSubjectID)
	assert.Equal(t, v.LogID, entry.ID)
	assert.Equal(t, t0, entry.Timestamp)
}

func TestEvaluate_FailureOutcomes(t *testing.T) {
	gallery := Gallery{1: {tpl("a", 1, []float32{1, 0, 0}, true, 0.9, t0)}}

	cases := []struct {
		name  string
		probe Probe
		want  models.RecognitionOutcome
	}{
		{"no face", Probe{FaceCount: 0, Quality: 0.9}, models.OutcomeNoFace},
		{"two faces", Probe{FaceCount: 2, Quality: 0.9, Vector: []float32{1, 0, 0}}, models.OutcomeMultipleFaces},
		{"blurry", Probe{FaceCount: 1, Quality: 0.2, Vector: []float32{1, 0, 0}}, models.OutcomeLowQuality},
		{"nan quality", Probe{FaceCount: 1, Quality: math.NaN(), Vector: []float32{1, 0, 0}}, models.OutcomeLowQuality},
		{"unenrolled claim", Probe{FaceCount: 1, Quality: 0.9, Vector: []float32{1, 0, 0}, ClaimedSubject: subjectPtr(2)}, models.OutcomeUnknown},
		{"empty vector", Probe{FaceCount: 1, Quality: 0.9}, models.OutcomeUnmatched},
		{"wrong dimension", Probe{FaceCount: 1, Quality: 0.9, Vector: []float32{1, 0}}, models.OutcomeUnmatched},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sink := &memorySink{}
			v, err := NewMatcher(sink, 0).Evaluate(context.Background(), tc.probe, gallery, defaultThresholds)
			require.NoError(t, err)
			assert.Equal(t, tc.want, v.Outcome)
			require.Len(t, sink.entries, 1)
			assert.Equal(t, tc.want, sink.entries[0].Outcome)
			assert.Nil(t, sink.entries[0].SubjectID)
			assert.False(t, math.IsNaN(sink.entries[0].QualityScore))
		})
	}
}

func TestEvaluate_LowQualityReportsScore(t *testing.T) {
	sink := &memorySink{}
	v, err := NewMatcher(sink, 0).Evaluate(context.Background(), Probe{FaceCount: 1, Quality: 0.31, Vector: []float32{1}}, Gallery{}, defaultThresholds)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeLowQuality, v.Outcome)
	assert.InDelta(t, 0.31, v.QualityScore, 1e-9)
	assert.InDelta(t, 0.31, sink.entries[0].QualityScore, 1e-9)
}

func TestEvaluate_IdentificationPicksBestSubject(t *testing.T) {
	sink := &memorySink{}
	gallery := Gallery{
		1: {tpl("a", 1, []float32{0.8, 0.6, 0}, true, 0.9, t0)},
		2: {tpl("b", 2, []float32{1, 0, 0}, true, 0.9, t0)},
		3: {tpl("c", 3, []float32{0, 1, 0}, true, 0.9, t0)},
	}
	v, err := NewMatcher(sink, 0).Evaluate(context.Background(), Probe{Vector: []float32{1, 0, 0}, Quality: 0.9, FaceCount: 1}, gallery, defaultThresholds)
	require.NoError(t, err)

	require.True(t, v.Matched())
	assert.Equal(t, uint(2), *v.SubjectID)
	assert.Equal(t, "b", v.TemplateID)
	assert.InDelta(t, 1.0, v.Confidence, 1e-6)
	require.NotNil(t, sink.entries[0].SubjectID)
	assert.Equal(t, uint(2), *sink.entries[0].SubjectID)
	assert.Equal(t, "b", *sink.entries[0].TemplateID)
}

func TestEvaluate_CrossSubjectTieGoesToLowerID(t *testing.T) {
	gallery := Gallery{
		9: {tpl("late", 9, []float32{1, 0, 0}, true, 0.99, t0)},
		4: {tpl("early", 4, []float32{1, 0, 0}, true, 0.5, t0)},
	}
	for i := 0; i < 5; i++ {
		v, err := NewMatcher(&memorySink{}, 0).Evaluate(context.Background(), Probe{Vector: []float32{1, 0, 0}, Quality: 0.9, FaceCount: 1}, gallery, defaultThresholds)
		require.NoError(t, err)
		assert.Equal(t, uint(4), *v.SubjectID)
	}
}

func TestEvaluate_TemplateTieBreak(t *testing.T) {
	probe := Probe{ClaimedSubject: subjectPtr(1), Vector: []float32{1, 0, 0}, Quality: 0.9, FaceCount: 1}
	same := []float32{1, 0, 0}

	cases := []struct {
		name      string
		templates []models.EnrollmentTemplate
		want      string
	}{
		{
			"primary wins",
			[]models.EnrollmentTemplate{
				tpl("other", 1, same, false, 0.99, t0.Add(time.Hour)),
				tpl("primary", 1, same, true, 0.5, t0),
			},
			"primary",
		},
		{
			"higher enrollment confidence",
			[]models.EnrollmentTemplate{
				tpl("primary", 1, []float32{0, 1, 0}, true, 0.9, t0),
				tpl("weak", 1, same, false, 0.6, t0.Add(time.Hour)),
				tpl("strong", 1, same, false, 0.8, t0),
			},
			"strong",
		},
		{
			"newest",
			[]models.EnrollmentTemplate{
				tpl("primary", 1, []float32{0, 1, 0}, true, 0.9, t0),
				tpl("old", 1, same, false, 0.8, t0),
				tpl("new", 1, same, false, 0.8, t0.Add(time.Hour)),
			},
			"new",
		},
		{
			"higher score beats primary",
			[]models.EnrollmentTemplate{
				tpl("primary", 1, []float32{0.8, 0.6, 0}, true, 0.9, t0),
				tpl("exact", 1, same, false, 0.1, t0),
			},
			"exact",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := NewMatcher(&memorySink{}, 0).Evaluate(context.Background(), probe, Gallery{1: tc.templates}, defaultThresholds)
			require.NoError(t, err)
			require.True(t, v.Matched())
			assert.Equal(t, tc.want, v.TemplateID)
		})
	}
}

func TestEvaluate_IgnoresInactiveTemplates(t *testing.T) {
	inactive := tpl("gone", 1, []float32{1, 0, 0}, false, 0.9, t0)
	inactive.IsActive = false
	gallery := Gallery{1: {inactive}}

	v, err := NewMatcher(&memorySink{}, 0).Evaluate(context.Background(), Probe{ClaimedSubject: subjectPtr(1), Vector: []float32{1, 0, 0}, Quality: 0.9, FaceCount: 1}, gallery, defaultThresholds)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeUnknown, v.Outcome)
}

func TestEvaluate_SequenceAndSinkErrors(t *testing.T) {
	sink := &memorySink{}
	m := NewMatcher(sink, 41)
	probe := Probe{FaceCount: 0}

	first, err := m.Evaluate(context.Background(), probe, nil, defaultThresholds)
	require.NoError(t, err)
	second, err := m.Evaluate(context.Background(), probe, nil, defaultThresholds)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), first.Seq)
	assert.Equal(t, uint64(43), second.Seq)

	sink.err = errors.New("disk full")
	v, err := m.Evaluate(context.Background(), probe, nil, defaultThresholds)
	assert.Error(t, err)
	assert.Equal(t, models.OutcomeNoFace, v.Outcome)
	assert.Len(t, sink.entries, 3)
}

func TestThresholdsFromPolicy(t *testing.T) {
	p := models.DefaultSchedulePolicy()
	th := ThresholdsFromPolicy(&p, 0)
	assert.Equal(t, 0.6, th.MinConfidence)
	assert.Equal(t, 0.5, th.MinQuality)
	assert.Equal(t, DefaultTieEpsilon, th.TieEpsilon)
}
