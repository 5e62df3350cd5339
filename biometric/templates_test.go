package biometric

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camden-git/attendancebackend/apperrors"
	"github.com/camden-git/attendancebackend/models"
)

var t0 = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func enroll(t *testing.T, set *TemplateSet, conf float64, primary bool, at time.Time) models.EnrollmentTemplate {
	t.Helper()
	created, _, err := set.Enroll(EnrollRequest{
		Vector:     []float32{1, 0, 0},
		Confidence: conf,
		Primary:    primary,
		At:         at,
	})
	require.NoError(t, err)
	require.NoError(t, set.CheckInvariant())
	return created
}

func TestEnroll_FirstTemplateBecomesPrimary(t *testing.T) {
	set := NewTemplateSet(1, nil)
	assert.Equal(t, NotEnrolled, set.Status())

	first := enroll(t, set, 0.9, false, t0)
	assert.True(t, first.IsPrimary)
	assert.True(t, first.IsActive)
	assert.Equal(t, 3, first.Dimension)
	assert.Equal(t, models.SourceEnrollment, first.Source)
	assert.Equal(t, DefaultEmbeddingModel, first.EmbeddingModel)
	assert.Equal(t, Enrolled, set.Status())

	second := enroll(t, set, 0.95, false, t0.Add(time.Minute))
	assert.False(t, second.IsPrimary)

	primary, ok := set.Primary()
	require.True(t, ok)
	assert.Equal(t, first.ID, primary.ID)
}

func TestEnroll_PrimaryDemotesOthers(t *testing.T) {
	set := NewTemplateSet(1, nil)
	first := enroll(t, set, 0.9, false, t0)

	created, demoted, err := set.Enroll(EnrollRequest{Vector: []float32{0, 1, 0}, Confidence: 0.8, Primary: true, At: t0.Add(time.Hour)})
	require.NoError(t, err)
	require.NoError(t, set.CheckInvariant())

	assert.True(t, created.IsPrimary)
	require.Len(t, demoted, 1)
	assert.Equal(t, first.ID, demoted[0].ID)
	assert.False(t, demoted[0].IsPrimary)

	primary, ok := set.Primary()
	require.True(t, ok)
	assert.Equal(t, created.ID, primary.ID)
	assert.Equal(t, 2, set.ActiveCount())
}

func TestEnroll_Validation(t *testing.T) {
	set := NewTemplateSet(1, nil)
	enroll(t, set, 0.9, false, t0)
	quality := 1.4
	nanQuality := math.NaN()

	cases := []struct {
		name string
		req  EnrollRequest
		want error
	}{
		{"empty vector", EnrollRequest{Confidence: 0.5}, apperrors.ErrInvalidVector},
		{"nan", EnrollRequest{Vector: []float32{float32(math.NaN()), 0, 0}, Confidence: 0.5}, apperrors.ErrInvalidVector},
		{"dimension", EnrollRequest{Vector: []float32{1, 0}, Confidence: 0.5}, apperrors.ErrDimensionMismatch},
		{"confidence", EnrollRequest{Vector: []float32{1, 0, 0}, Confidence: 1.5}, apperrors.ErrInvalidScore},
		{"quality", EnrollRequest{Vector: []float32{1, 0, 0}, Confidence: 0.5, Quality: &quality}, apperrors.ErrInvalidScore},
		{"nan confidence", EnrollRequest{Vector: []float32{1, 0, 0}, Confidence: math.NaN()}, apperrors.ErrInvalidScore},
		{"nan quality", EnrollRequest{Vector: []float32{1, 0, 0}, Confidence: 0.5, Quality: &nanQuality}, apperrors.ErrInvalidScore},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := set.Enroll(tc.req)
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, 1, set.ActiveCount())
		})
	}
}

func TestDeactivate_LastTemplateProtected(t *testing.T) {
	set := NewTemplateSet(1, nil)
	only := enroll(t, set, 0.9, false, t0)

	_, _, err := set.Deactivate(only.ID, t0.Add(time.Hour))
	assert.ErrorIs(t, err, apperrors.ErrLastTemplateProtected)
	assert.Equal(t, apperrors.KindLastTemplateProtected, apperrors.KindOf(err))

	primary, ok := set.Primary()
	require.True(t, ok)
	assert.Equal(t, only.ID, primary.ID)
	assert.True(t, primary.IsActive)
}

func TestDeactivate_PromotesSuccessor(t *testing.T) {
	set := NewTemplateSet(1, nil)
	primary := enroll(t, set, 0.7, false, t0)
	older := enroll(t, set, 0.9, false, t0.Add(time.Minute))
	enroll(t, set, 0.9, false, t0.Add(2*time.Minute))
	enroll(t, set, 0.5, false, t0.Add(3*time.Minute))

	deactivated, promoted, err := set.Deactivate(primary.ID, t0.Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, set.CheckInvariant())

	assert.False(t, deactivated.IsActive)
	assert.False(t, deactivated.IsPrimary)
	require.NotNil(t, promoted)
	assert.Equal(t, older.ID, promoted.ID)
	assert.Equal(t, 3, set.ActiveCount())

	current, ok := set.Primary()
	require.True(t, ok)
	assert.Equal(t, older.ID, current.ID)
}

func TestDeactivate_NonPrimaryKeepsPrimary(t *testing.T) {
	set := NewTemplateSet(1, nil)
	primary := enroll(t, set, 0.7, false, t0)
	other := enroll(t, set, 0.9, false, t0.Add(time.Minute))

	_, promoted, err := set.Deactivate(other.ID, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Nil(t, promoted)

	current, ok := set.Primary()
	require.True(t, ok)
	assert.Equal(t, primary.ID, current.ID)

	_, _, err = set.Deactivate(other.ID, t0.Add(2*time.Hour))
	assert.ErrorIs(t, err, apperrors.ErrTemplateInactive)

	_, _, err = set.Deactivate("missing", t0)
	assert.ErrorIs(t, err, apperrors.ErrTemplateNotFound)
}

func TestCheckInvariant_DetectsBrokenSets(t *testing.T) {
	twoPrimaries := NewTemplateSet(1, []models.EnrollmentTemplate{
		{ID: "a", SubjectID: 1, IsActive: true, IsPrimary: true},
		{ID: "b", SubjectID: 1, IsActive: true, IsPrimary: true},
	})
	assert.Error(t, twoPrimaries.CheckInvariant())

	inactivePrimary := NewTemplateSet(1, []models.EnrollmentTemplate{
		{ID: "a", SubjectID: 1, IsActive: true, IsPrimary: true},
		{ID: "b", SubjectID: 1, IsActive: false, IsPrimary: true},
	})
	assert.Error(t, inactivePrimary.CheckInvariant())

	assert.NoError(t, NewTemplateSet(1, nil).CheckInvariant())
}

func TestActive_OrdersPrimaryFirst(t *testing.T) {
	set := NewTemplateSet(1, nil)
	first := enroll(t, set, 0.6, false, t0)
	enroll(t, set, 0.9, false, t0.Add(time.Minute))

	active := set.Active()
	require.Len(t, active, 2)
	assert.Equal(t, first.ID, active[0].ID)
}

func TestScore(t *testing.T) {
	assert.InDelta(t, 1.0, Score([]float32{1, 2, 3}, []float32{2, 4, 6}), 1e-9)
	assert.InDelta(t, 0.8, Score([]float32{1, 0, 0}, []float32{0.8, 0.6, 0}), 1e-6)
	assert.Zero(t, Score([]float32{1, 0}, []float32{-1, 0}))
	assert.Zero(t, Score([]float32{1, 0}, []float32{1, 0, 0}))
	assert.Zero(t, Score([]float32{0, 0}, []float32{1, 0}))
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
}
