package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/camden-git/attendancebackend/apperrors"
	"github.com/camden-git/attendancebackend/attendance"
	"github.com/camden-git/attendancebackend/biometric"
	"github.com/camden-git/attendancebackend/database"
	"github.com/camden-git/attendancebackend/extractor"
	"github.com/camden-git/attendancebackend/locks"
	"github.com/camden-git/attendancebackend/models"
	"github.com/camden-git/attendancebackend/realtime"
	"github.com/camden-git/attendancebackend/repository"
)

// FeatureExtractor turns an image into detected faces with embeddings.
type FeatureExtractor interface {
	Extract(ctx context.Context, image []byte) (*extractor.Extraction, error)
}

// RecognitionOptions tunes the matcher and the statistics window.
type RecognitionOptions struct {
	TieEpsilon   float64
	HistoryLimit int
}

// RecognitionService evaluates probes against the enrolled gallery and can turn a
// match into an attendance event.
type RecognitionService struct {
	store      *repository.Store
	locks      *locks.SubjectLocks
	matcher    *biometric.Matcher
	attendance *AttendanceService
	extractor  FeatureExtractor
	reports    *database.Reports
	publisher  realtime.Publisher
	opts       RecognitionOptions
	log        *zap.Logger
	now        func() time.Time
}

func NewRecognitionService(
	store *repository.Store,
	subjectLocks *locks.SubjectLocks,
	matcher *biometric.Matcher,
	attendanceService *AttendanceService,
	featureExtractor FeatureExtractor,
	reports *database.Reports,
	publisher realtime.Publisher,
	opts RecognitionOptions,
	log *zap.Logger,
) *RecognitionService {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 10
	}
	return &RecognitionService{
		store:      store,
		locks:      subjectLocks,
		matcher:    matcher,
		attendance: attendanceService,
		extractor:  featureExtractor,
		reports:    reports,
		publisher:  publisher,
		opts:       opts,
		log:        log.Named("recognition"),
		now:        time.Now,
	}
}

// AttendRequest is a probe that, when matched, records an attendance event.
// An empty Type picks the next natural event for the day.
type AttendRequest struct {
	Probe biometric.Probe
	Type  attendance.EventType
	Notes string
}

type AttendResult struct {
	Verdict biometric.Verdict        `json:"verdict"`
	Record  *models.AttendanceRecord `json:"record,omitempty"`
}

// Recognize evaluates one probe. Verification holds the claimed subject's lock so that
// audit entries for a subject are written in decision order.
func (s *RecognitionService) Recognize(ctx context.Context, probe biometric.Probe) (biometric.Verdict, error) {
	if probe.At.IsZero() {
		probe.At = s.now()
	}
	if probe.ClaimedSubject != nil {
		if _, err := requireSubject(ctx, s.store, *probe.ClaimedSubject); err != nil {
			return biometric.Verdict{}, err
		}
		unlock := s.locks.Lock(*probe.ClaimedSubject)
		defer unlock()
	}

	policy, err := policyAt(ctx, s.store, probe.At)
	if err != nil {
		return biometric.Verdict{}, err
	}
	gallery, err := s.gallery(ctx, probe.ClaimedSubject)
	if err != nil {
		return biometric.Verdict{}, err
	}

	verdict, err := s.matcher.Evaluate(ctx, probe, gallery, biometric.ThresholdsFromPolicy(policy, s.opts.TieEpsilon))
	if err != nil {
		s.log.Error("failed to record recognition attempt", zap.Uint64("seq", verdict.Seq), zap.Error(err))
		return verdict, err
	}

	fields := []zap.Field{
		zap.String("outcome", string(verdict.Outcome)),
		zap.Float64("confidence", verdict.Confidence),
		zap.Uint64("seq", verdict.Seq),
	}
	if verdict.SubjectID != nil {
		fields = append(fields, zap.Uint("subject_id", *verdict.SubjectID))
	}
	s.log.Info("recognition evaluated", fields...)

	ev := realtime.NewEvent(realtime.EventRecognition)
	ev.Outcome = string(verdict.Outcome)
	ev.Confidence = verdict.Confidence
	if verdict.SubjectID != nil {
		ev.SubjectID = *verdict.SubjectID
	} else if probe.ClaimedSubject != nil {
		ev.SubjectID = *probe.ClaimedSubject
	}
	publish(ctx, s.publisher, s.log, ev)
	return verdict, nil
}

// gallery loads the claimed subject's templates, or every active template for identification.
func (s *RecognitionService) gallery(ctx context.Context, claimed *uint) (biometric.Gallery, error) {
	var (
		templates []models.EnrollmentTemplate
		err       error
	)
	if claimed != nil {
		templates, err = s.store.Templates.ListBySubject(ctx, *claimed)
	} else {
		templates, err = s.store.Templates.ListActive(ctx)
	}
	if err != nil {
		return nil, err
	}
	gallery := make(biometric.Gallery)
	for _, t := range templates {
		gallery[t.SubjectID] = append(gallery[t.SubjectID], t)
	}
	return gallery, nil
}

// RecognizeImage runs the external extractor on an image and evaluates the result.
func (s *RecognitionService) RecognizeImage(ctx context.Context, image []byte, claimed *uint) (biometric.Verdict, error) {
	if s.extractor == nil {
		return biometric.Verdict{}, apperrors.ErrExtractorUnavailable
	}
	if len(image) == 0 {
		return biometric.Verdict{}, apperrors.ErrInvalidInput.Withf("image is required")
	}
	extraction, err := s.extractor.Extract(ctx, image)
	if err != nil {
		return biometric.Verdict{}, fmt.Errorf("failed to extract features: %w", err)
	}
	return s.Recognize(ctx, extraction.Probe(claimed, s.now()))
}

// Attend recognizes the probe and, on a match, records a biometric attendance event for
// the matched subject. A non-match returns the verdict together with a rejection.
func (s *RecognitionService) Attend(ctx context.Context, req AttendRequest) (*AttendResult, error) {
	if req.Probe.At.IsZero() {
		req.Probe.At = s.now()
	}
	verdict, err := s.Recognize(ctx, req.Probe)
	if err != nil {
		return nil, err
	}
	result := &AttendResult{Verdict: verdict}
	if !verdict.Matched() {
		if verdict.Outcome == models.OutcomeUnknown {
			return result, apperrors.ErrNotEnrolled
		}
		return result, apperrors.ErrNotRecognized.Withf("outcome %s", verdict.Outcome)
	}

	subjectID := *verdict.SubjectID
	eventType := req.Type
	if eventType == "" {
		eventType, err = s.nextEvent(ctx, subjectID, req.Probe.At)
		if err != nil {
			return result, err
		}
	}

	confidence := verdict.Confidence
	templateID := verdict.TemplateID
	record, err := s.attendance.RecordEvent(ctx, attendance.Event{
		SubjectID:  subjectID,
		Type:       eventType,
		At:         req.Probe.At,
		Method:     models.MethodBiometric,
		Confidence: &confidence,
		TemplateID: &templateID,
		Notes:      req.Notes,
	})
	if err != nil {
		return result, err
	}
	result.Record = record
	return result, nil
}

// nextEvent picks check-in, break end or check-out from the subject's day at 'at'.
func (s *RecognitionService) nextEvent(ctx context.Context, subjectID uint, at time.Time) (attendance.EventType, error) {
	policy, err := policyAt(ctx, s.store, at)
	if err != nil {
		return "", err
	}
	view, err := s.attendance.DayStatus(ctx, subjectID, attendance.DayKey(at, policy.Location()))
	if err != nil {
		return "", err
	}
	switch {
	case view.Actions.CanCheckIn:
		return attendance.EventCheckIn, nil
	case view.Actions.CanEndBreak:
		return attendance.EventBreakEnd, nil
	case view.Actions.CanCheckOut:
		return attendance.EventCheckOut, nil
	}
	// nothing is acceptable; let the engine report why
	return attendance.EventCheckIn, nil
}

// Stats summarises the subject's most recent recognition attempts.
func (s *RecognitionService) Stats(ctx context.Context, subjectID uint) (database.RecognitionStats, error) {
	if _, err := requireSubject(ctx, s.store, subjectID); err != nil {
		return database.RecognitionStats{}, err
	}
	return s.reports.RecognitionStats(ctx, subjectID, s.opts.HistoryLimit)
}

// Outcomes counts recognition outcomes in [from, to).
func (s *RecognitionService) Outcomes(ctx context.Context, from, to time.Time) (map[models.RecognitionOutcome]int64, error) {
	if !to.After(from) {
		return nil, apperrors.ErrInvalidInput.Withf("time range is empty")
	}
	return s.reports.OutcomeCounts(ctx, from.UTC(), to.UTC())
}

// Logs lists the audit entries involving a subject, newest first.
func (s *RecognitionService) Logs(ctx context.Context, subjectID uint, limit int) ([]models.RecognitionLog, error) {
	if _, err := requireSubject(ctx, s.store, subjectID); err != nil {
		return nil, err
	}
	return s.store.RecognitionLogs.ListBySubject(ctx, subjectID, limit)
}
