package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/camden-git/attendancebackend/apperrors"
	"github.com/camden-git/attendancebackend/attendance"
	"github.com/camden-git/attendancebackend/biometric"
	"github.com/camden-git/attendancebackend/config"
	"github.com/camden-git/attendancebackend/database"
	"github.com/camden-git/attendancebackend/locks"
	"github.com/camden-git/attendancebackend/models"
	"github.com/camden-git/attendancebackend/realtime"
	"github.com/camden-git/attendancebackend/repository"
)

const testDay = "2024-03-04"

func at(hour, minute int) time.Time {
	return time.Date(2024, 3, 4, hour, minute, 0, 0, time.UTC)
}

type capturePublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (c *capturePublisher) Publish(_ context.Context, ev realtime.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *capturePublisher) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, ev := range c.events {
		out = append(out, ev.Type)
	}
	return out
}

type testEnv struct {
	store       *repository.Store
	attendance  *AttendanceService
	enrollment  *EnrollmentService
	recognition *RecognitionService
	leaves      *LeaveService
	policies    *PolicyService
	subjects    *SubjectService
	publisher   *capturePublisher
	clock       time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := database.InitGormDB(config.DriverSQLite, dsn, database.PoolOptions{}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrateModels(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	store := repository.NewStore(db)
	reports := database.NewReports(sqlDB, config.DriverSQLite)
	subjectLocks := locks.New()
	pub := &capturePublisher{}
	log := zap.NewNop()

	env := &testEnv{store: store, publisher: pub, clock: at(9, 0)}
	now := func() time.Time { return env.clock }

	env.attendance = NewAttendanceService(store, subjectLocks, reports, pub, log)
	env.attendance.now = now
	env.enrollment = NewEnrollmentService(store, subjectLocks, pub, log)
	env.enrollment.now = now
	matcher := biometric.NewMatcher(store.RecognitionLogs, 0)
	env.recognition = NewRecognitionService(store, subjectLocks, matcher, env.attendance, nil, reports, pub, RecognitionOptions{}, log)
	env.recognition.now = now
	env.leaves = NewLeaveService(store, env.attendance, pub, log)
	env.leaves.now = now
	env.policies = NewPolicyService(store, log)
	env.policies.now = now
	env.subjects = NewSubjectService(store, log)

	seeded, err := env.policies.SeedDefault(context.Background())
	require.NoError(t, err)
	require.True(t, seeded)
	return env
}

func (e *testEnv) subject(t *testing.T, code string) *models.Subject {
	t.Helper()
	s, err := e.subjects.Create(context.Background(), code, "Subject "+code)
	require.NoError(t, err)
	return s
}

func event(subjectID uint, typ attendance.EventType, ts time.Time) attendance.Event {
	return attendance.Event{SubjectID: subjectID, Type: typ, At: ts, Method: models.MethodCard}
}

func TestRecordEvent_FullDay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.subject(t, "E-1")

	for _, ev := range []attendance.Event{
		event(s.ID, attendance.EventCheckIn, at(9, 0)),
		event(s.ID, attendance.EventBreakStart, at(12, 0)),
		event(s.ID, attendance.EventBreakEnd, at(12, 30)),
		event(s.ID, attendance.EventCheckOut, at(17, 30)),
	} {
		_, err := env.attendance.RecordEvent(ctx, ev)
		require.NoError(t, err, ev.Type)
	}

	view, err := env.attendance.DayStatus(ctx, s.ID, testDay)
	require.NoError(t, err)
	require.True(t, view.Stored)
	rec := view.Record
	assert.Equal(t, 8*time.Hour, rec.TotalWorked)
	assert.Equal(t, 30*time.Minute, rec.BreakDuration)
	assert.Equal(t, models.StatusPresent, rec.Status)
	assert.True(t, rec.IsApproved)
	assert.NotZero(t, rec.PolicyID)
	assert.Equal(t, attendance.Actions{}, view.Actions)

	subject, err := env.subjects.Get(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, subject.LastAttendance)
	assert.True(t, at(17, 30).Equal(*subject.LastAttendance))

	assert.Contains(t, env.publisher.types(), realtime.EventAttendance)
}

func TestRecordEvent_ConcurrentCheckInsCreateOneRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.subject(t, "E-1")

	const n = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejected  int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := env.attendance.RecordEvent(ctx, event(s.ID, attendance.EventCheckIn, at(9, i)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, apperrors.ErrAlreadyCheckedIn):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, rejected)
	records, err := env.attendance.History(ctx, s.ID, repository.AttendanceFilter{})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestRecordEvent_RejectionLeavesNoRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.subject(t, "E-1")

	_, err := env.attendance.RecordEvent(ctx, event(s.ID, attendance.EventCheckOut, at(17, 0)))
	require.ErrorIs(t, err, apperrors.ErrNotCheckedIn)

	view, err := env.attendance.DayStatus(ctx, s.ID, testDay)
	require.NoError(t, err)
	assert.False(t, view.Stored)
	assert.Equal(t, models.StatusAbsent, view.Record.Status)
	assert.True(t, view.Actions.CanCheckIn)

	_, err = env.attendance.RecordEvent(ctx, event(999, attendance.EventCheckIn, at(9, 0)))
	assert.ErrorIs(t, err, apperrors.ErrSubjectNotFound)
}

func TestRecordEvent_LateAndManualOverride(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.subject(t, "E-1")
	b := env.subject(t, "E-2")

	rec, err := env.attendance.RecordEvent(ctx, event(a.ID, attendance.EventCheckIn, at(9, 14)))
	require.NoError(t, err)
	assert.Equal(t, models.StatusPresent, rec.Status)

	rec, err = env.attendance.RecordEvent(ctx, event(b.ID, attendance.EventCheckIn, at(9, 16)))
	require.NoError(t, err)
	assert.Equal(t, models.StatusLate, rec.Status)

	strict := models.DefaultSchedulePolicy()
	strict.AllowManualOverride = false
	strict.RequireAdminApproval = true
	strict.EffectiveFrom = at(10, 0)
	_, err = env.policies.Activate(ctx, strict, 1)
	require.NoError(t, err)

	manual := event(a.ID, attendance.EventBreakStart, at(12, 0))
	manual.Method = models.MethodManual
	_, err = env.attendance.RecordEvent(ctx, manual)
	assert.ErrorIs(t, err, apperrors.ErrManualOverrideDisabled)
}

func TestApprovalWorkflow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.subject(t, "E-1")

	p := models.DefaultSchedulePolicy()
	p.RequireAdminApproval = true
	p.EffectiveFrom = at(0, 0)
	_, err := env.policies.Activate(ctx, p, 1)
	require.NoError(t, err)

	rec, err := env.attendance.RecordEvent(ctx, event(s.ID, attendance.EventCheckIn, at(9, 0)))
	require.NoError(t, err)
	assert.False(t, rec.IsApproved)

	pending, err := env.attendance.PendingApprovals(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	approved, err := env.attendance.Approve(ctx, rec.ID, 42)
	require.NoError(t, err)
	assert.True(t, approved.IsApproved)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, uint(42), *approved.ApprovedBy)

	_, err = env.attendance.Approve(ctx, uuid.NewString(), 42)
	assert.ErrorIs(t, err, apperrors.ErrRecordNotFound)
}

func TestFinalizeAndCorrect(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	present := env.subject(t, "E-1")
	missing := env.subject(t, "E-2")

	_, err := env.attendance.RecordEvent(ctx, event(present.ID, attendance.EventCheckIn, at(9, 0)))
	require.NoError(t, err)

	report, err := env.attendance.Finalize(ctx, testDay)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Finalized)
	assert.Equal(t, 1, report.Created)

	again, err := env.attendance.Finalize(ctx, testDay)
	require.NoError(t, err)
	assert.Equal(t, 2, again.Unchanged)
	assert.Zero(t, again.Finalized)

	view, err := env.attendance.DayStatus(ctx, missing.ID, testDay)
	require.NoError(t, err)
	assert.True(t, view.Stored)
	assert.True(t, view.Record.Finalized)
	assert.Equal(t, models.StatusAbsent, view.Record.Status)

	_, err = env.attendance.RecordEvent(ctx, event(present.ID, attendance.EventCheckOut, at(17, 0)))
	assert.ErrorIs(t, err, apperrors.ErrDayFinalized)

	in, out := at(9, 0), at(17, 0)
	corrected, err := env.attendance.Correct(ctx, attendance.Correction{
		SubjectID: present.ID, Day: testDay, CheckIn: &in, CheckOut: &out, ApprovedBy: 7, Notes: "forgot to badge out",
	})
	require.NoError(t, err)
	assert.True(t, corrected.Corrected)
	assert.True(t, corrected.Finalized)
	assert.Equal(t, 8*time.Hour, corrected.TotalWorked)
	assert.Equal(t, models.StatusPresent, corrected.Status)

	_, err = env.attendance.Correct(ctx, attendance.Correction{SubjectID: present.ID, Day: testDay, CheckIn: &out, CheckOut: &in, ApprovedBy: 7})
	assert.ErrorIs(t, err, apperrors.ErrOutOfOrder)
}

func TestLeaveWorkflowDrivesStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.subject(t, "E-1")

	_, err := env.attendance.RecordEvent(ctx, event(s.ID, attendance.EventCheckIn, at(9, 30)))
	require.NoError(t, err)

	leave, err := env.leaves.Create(ctx, LeaveInput{SubjectID: s.ID, Type: models.LeaveSick, StartDay: testDay, EndDay: "2024-03-05"})
	require.NoError(t, err)
	assert.Equal(t, models.LeavePending, leave.Status)
	assert.Equal(t, 2.0, leave.DurationDays())

	_, err = env.leaves.Approve(ctx, leave.ID, 9)
	require.NoError(t, err)

	view, err := env.attendance.DayStatus(ctx, s.ID, testDay)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOnLeave, view.Record.Status)

	view, err = env.attendance.DayStatus(ctx, s.ID, "2024-03-05")
	require.NoError(t, err)
	assert.False(t, view.Stored)
	assert.Equal(t, models.StatusOnLeave, view.Record.Status)

	_, err = env.leaves.Approve(ctx, leave.ID, 9)
	assert.ErrorIs(t, err, apperrors.ErrInvalidLeaveTransition)

	_, err = env.leaves.Cancel(ctx, leave.ID)
	require.NoError(t, err)
	view, err = env.attendance.DayStatus(ctx, s.ID, testDay)
	require.NoError(t, err)
	assert.Equal(t, models.StatusLate, view.Record.Status)

	_, err = env.leaves.Create(ctx, LeaveInput{SubjectID: s.ID, Type: models.LeaveVacation, StartDay: testDay, EndDay: "2024-03-06", IsHalfDay: true})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	_, err = env.leaves.Create(ctx, LeaveInput{SubjectID: s.ID, Type: "holiday", StartDay: testDay})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestRecompute_AppliesChosenPolicy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.subject(t, "E-1")

	_, err := env.attendance.RecordEvent(ctx, event(s.ID, attendance.EventCheckIn, at(9, 10)))
	require.NoError(t, err)

	strict := models.DefaultSchedulePolicy()
	strict.LateThresholdMinutes = 5
	strict.EffectiveFrom = at(20, 0)
	activated, err := env.policies.Activate(ctx, strict, 1)
	require.NoError(t, err)

	view, err := env.attendance.DayStatus(ctx, s.ID, testDay)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPresent, view.Record.Status, "activation must not rewrite history")

	changed, err := env.attendance.Recompute(ctx, s.ID, testDay, testDay, activated.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	view, err = env.attendance.DayStatus(ctx, s.ID, testDay)
	require.NoError(t, err)
	assert.Equal(t, models.StatusLate, view.Record.Status)
	assert.Equal(t, activated.ID, view.Record.PolicyID)

	_, err = env.attendance.Recompute(ctx, s.ID, "2024-03-05", testDay, 0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestSummaryAndOverview(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.subject(t, "E-1")

	_, err := env.attendance.RecordEvent(ctx, event(s.ID, attendance.EventCheckIn, at(9, 0)))
	require.NoError(t, err)
	_, err = env.attendance.RecordEvent(ctx, event(s.ID, attendance.EventCheckOut, at(18, 0)))
	require.NoError(t, err)

	summary, err := env.attendance.Summary(ctx, s.ID, "2024-03-04", "2024-03-05")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalDays)
	assert.Equal(t, 1, summary.PresentDays)
	assert.Equal(t, 1, summary.AbsentDays)
	assert.Equal(t, 9*time.Hour, summary.TotalWorked)
	assert.Equal(t, time.Hour, summary.TotalOvertime)
	assert.InDelta(t, 50.0, summary.AttendanceRate, 1e-9)

	overview, err := env.attendance.Overview(ctx, testDay)
	require.NoError(t, err)
	assert.Equal(t, int64(1), overview[models.StatusPresent])
}

func TestEnrollAndDeactivateKeepOnePrimary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.subject(t, "E-1")

	first, err := env.enrollment.Enroll(ctx, s.ID, biometric.EnrollRequest{Vector: []float32{1, 0, 0}, Confidence: 0.9})
	require.NoError(t, err)
	assert.True(t, first.Template.IsPrimary)

	subject, err := env.subjects.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, subject.IsFaceEnrolled)
	require.NotNil(t, subject.FaceEnrollmentDate)

	_, err = env.enrollment.Deactivate(ctx, s.ID, first.Template.ID)
	require.ErrorIs(t, err, apperrors.ErrLastTemplateProtected)
	overview, err := env.enrollment.Overview(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, overview.ActiveCount)

	second, err := env.enrollment.Enroll(ctx, s.ID, biometric.EnrollRequest{Vector: []float32{0, 1, 0}, Confidence: 0.8, Primary: true})
	require.NoError(t, err)
	require.Len(t, second.Demoted, 1)
	assert.Equal(t, first.Template.ID, second.Demoted[0].ID)

	_, err = env.enrollment.Enroll(ctx, s.ID, biometric.EnrollRequest{Vector: []float32{0, 1}, Confidence: 0.8})
	assert.ErrorIs(t, err, apperrors.ErrDimensionMismatch)

	res, err := env.enrollment.Deactivate(ctx, s.ID, second.Template.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Promoted)
	assert.Equal(t, first.Template.ID, res.Promoted.ID)

	overview, err = env.enrollment.Overview(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, biometric.Enrolled, overview.Status)
	assert.Equal(t, 1, overview.ActiveCount)
	assert.Equal(t, first.Template.ID, overview.PrimaryID)
	primaries := 0
	for _, tpl := range overview.Templates {
		if tpl.IsActive && tpl.IsPrimary {
			primaries++
		}
	}
	assert.Equal(t, 1, primaries)
}

func TestRecognizeAndAttend(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.subject(t, "E-1")
	other := env.subject(t, "E-2")

	_, err := env.enrollment.Enroll(ctx, s.ID, biometric.EnrollRequest{Vector: []float32{1, 0, 0}, Confidence: 0.9})
	require.NoError(t, err)

	low, err := env.recognition.Recognize(ctx, biometric.Probe{Vector: []float32{0.2, 1, 0}, Quality: 0.9, FaceCount: 1, At: at(8, 55)})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeUnmatched, low.Outcome)
	assert.Nil(t, low.SubjectID)

	logs, err := env.recognition.Logs(ctx, s.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, logs, "unmatched identification is not attributed to a subject")

	claimed := other.ID
	unknown, err := env.recognition.Recognize(ctx, biometric.Probe{ClaimedSubject: &claimed, Vector: []float32{1, 0, 0}, Quality: 0.9, FaceCount: 1})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeUnknown, unknown.Outcome)

	result, err := env.recognition.Attend(ctx, AttendRequest{Probe: biometric.Probe{Vector: []float32{0.99, 0.05, 0}, Quality: 0.9, FaceCount: 1, At: at(9, 0)}})
	require.NoError(t, err)
	require.True(t, result.Verdict.Matched())
	require.NotNil(t, result.Record)
	assert.Equal(t, models.MethodBiometric, result.Record.Method)
	require.NotNil(t, result.Record.Confidence)
	assert.InDelta(t, result.Verdict.Confidence, *result.Record.Confidence, 1e-9)
	assert.NotNil(t, result.Record.CheckIn)

	result, err = env.recognition.Attend(ctx, AttendRequest{Probe: biometric.Probe{Vector: []float32{1, 0, 0}, Quality: 0.9, FaceCount: 1, At: at(17, 0)}})
	require.NoError(t, err)
	require.NotNil(t, result.Record.CheckOut, "second attend checks out")

	_, err = env.recognition.Attend(ctx, AttendRequest{Probe: biometric.Probe{FaceCount: 2, Quality: 0.9, At: at(17, 5)}})
	assert.ErrorIs(t, err, apperrors.ErrNotRecognized)

	stats, err := env.recognition.Stats(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalAttempts)
	assert.Equal(t, 2, stats.Successful)

	counts, err := env.recognition.Outcomes(ctx, at(0, 0), at(23, 59))
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[models.OutcomeMatched])
	assert.Equal(t, int64(1), counts[models.OutcomeUnmatched])
	assert.Equal(t, int64(1), counts[models.OutcomeUnknown])
	assert.Equal(t, int64(1), counts[models.OutcomeMultipleFaces])

	_, err = env.recognition.RecognizeImage(ctx, []byte("img"), nil)
	assert.ErrorIs(t, err, apperrors.ErrExtractorUnavailable)
}

func TestSubjects_NaturalOrderAndDuplicates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for _, code := range []string{"E-10", "E-2", "E-1"} {
		env.subject(t, code)
	}
	_, err := env.subjects.Create(ctx, "E-2", "again")
	assert.ErrorIs(t, err, apperrors.ErrDuplicateEmployeeCode)

	list, err := env.subjects.List(ctx)
	require.NoError(t, err)
	var codes []string
	for _, s := range list {
		codes = append(codes, s.EmployeeCode)
	}
	assert.Equal(t, []string{"E-1", "E-2", "E-10"}, codes)
}

func TestPolicies_ActivateValidates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	bad := models.DefaultSchedulePolicy()
	bad.WorkEndMinutes = bad.WorkStartMinutes - 60
	_, err := env.policies.Activate(ctx, bad, 1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidPolicy)

	seeded, err := env.policies.SeedDefault(ctx)
	require.NoError(t, err)
	assert.False(t, seeded)

	active, err := env.policies.Active(ctx)
	require.NoError(t, err)
	assert.True(t, active.IsActive)

	history, err := env.policies.History(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestRecordEvent_LaterEventsKeepTheDaysPolicy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.subject(t, "E-1")

	rec, err := env.attendance.RecordEvent(ctx, event(s.ID, attendance.EventCheckIn, at(9, 30)))
	require.NoError(t, err)
	require.Equal(t, models.StatusLate, rec.Status)
	seededID := rec.PolicyID

	lenient := models.DefaultSchedulePolicy()
	lenient.LateThresholdMinutes = 60
	lenient.EffectiveFrom = at(12, 0)
	activated, err := env.policies.Activate(ctx, lenient, 1)
	require.NoError(t, err)
	require.NotEqual(t, seededID, activated.ID)

	rec, err = env.attendance.RecordEvent(ctx, event(s.ID, attendance.EventCheckOut, at(17, 30)))
	require.NoError(t, err)
	assert.Equal(t, models.StatusLate, rec.Status)
	assert.Equal(t, seededID, rec.PolicyID)

	// a first event after activation derives under the new version
	other := env.subject(t, "E-2")
	rec, err = env.attendance.RecordEvent(ctx, event(other.ID, attendance.EventCheckIn, at(12, 30)))
	require.NoError(t, err)
	assert.Equal(t, activated.ID, rec.PolicyID)
}

// breakPolicyZone simulates a hand-edited policy row with an unloadable timezone.
func breakPolicyZone(t *testing.T, env *testEnv, policyID uint) {
	t.Helper()
	err := env.store.DB().Model(&models.SchedulePolicy{}).Where("id = ?", policyID).Update("timezone", "Not/AZone").Error
	require.NoError(t, err)
}

func TestLeaveApproval_RollsBackWhenRederiveFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.subject(t, "E-1")

	rec, err := env.attendance.RecordEvent(ctx, event(s.ID, attendance.EventCheckIn, at(9, 30)))
	require.NoError(t, err)
	leave, err := env.leaves.Create(ctx, LeaveInput{SubjectID: s.ID, Type: models.LeaveSick, StartDay: testDay})
	require.NoError(t, err)

	breakPolicyZone(t, env, rec.PolicyID)

	_, err = env.leaves.Approve(ctx, leave.ID, 9)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConfigurationMissing)

	stored, err := env.leaves.Get(ctx, leave.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeavePending, stored.Status)
	assert.Nil(t, stored.ApprovedBy)

	day, err := env.store.Attendance.GetBySubjectDay(ctx, s.ID, testDay)
	require.NoError(t, err)
	assert.Equal(t, models.StatusLate, day.Status)
}

func TestRecordEvent_UnknownPolicyZoneIsSurfaced(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.subject(t, "E-1")

	rec, err := env.attendance.RecordEvent(ctx, event(s.ID, attendance.EventCheckIn, at(9, 0)))
	require.NoError(t, err)
	breakPolicyZone(t, env, rec.PolicyID)

	_, err = env.attendance.RecordEvent(ctx, event(s.ID, attendance.EventCheckOut, at(17, 0)))
	assert.ErrorIs(t, err, apperrors.ErrConfigurationMissing)

	_, err = env.policies.Active(ctx)
	assert.ErrorIs(t, err, apperrors.ErrConfigurationMissing)
}
