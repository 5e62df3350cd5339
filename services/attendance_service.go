package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/camden-git/attendancebackend/apperrors"
	"github.com/camden-git/attendancebackend/attendance"
	"github.com/camden-git/attendancebackend/database"
	"github.com/camden-git/attendancebackend/locks"
	"github.com/camden-git/attendancebackend/models"
	"github.com/camden-git/attendancebackend/realtime"
	"github.com/camden-git/attendancebackend/repository"
)

// AttendanceService loads state, runs the attendance engine and persists the result
// while holding the subject's lock.
type AttendanceService struct {
	store     *repository.Store
	locks     *locks.SubjectLocks
	reports   *database.Reports
	publisher realtime.Publisher
	log       *zap.Logger
	now       func() time.Time
}

func NewAttendanceService(
	store *repository.Store,
	subjectLocks *locks.SubjectLocks,
	reports *database.Reports,
	publisher realtime.Publisher,
	log *zap.Logger,
) *AttendanceService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AttendanceService{
		store:     store,
		locks:     subjectLocks,
		reports:   reports,
		publisher: publisher,
		log:       log.Named("attendance"),
		now:       time.Now,
	}
}

// DayView is a subject's record for one day with the events it currently accepts.
// Stored is false when the record was synthesized because no row exists.
type DayView struct {
	Record  *models.AttendanceRecord `json:"record"`
	Actions attendance.Actions       `json:"actions"`
	Stored  bool                     `json:"stored"`
}

// FinalizeReport counts what a day finalization did.
type FinalizeReport struct {
	Day       string `json:"day"`
	Finalized int    `json:"finalized"`
	Created   int    `json:"created"`
	Unchanged int    `json:"unchanged"`
	Failed    int    `json:"failed"`
}

// RecordEvent applies one attendance event. Records for different subjects never
// contend; events for the same subject are applied one at a time.
func (s *AttendanceService) RecordEvent(ctx context.Context, ev attendance.Event) (*models.AttendanceRecord, error) {
	if ev.SubjectID == 0 {
		return nil, apperrors.ErrInvalidInput.Withf("subject id is required")
	}
	if ev.At.IsZero() {
		ev.At = s.now()
	}

	unlock := s.locks.Lock(ev.SubjectID)
	defer unlock()

	var result *models.AttendanceRecord
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if _, err := requireSubject(ctx, tx, ev.SubjectID); err != nil {
			return err
		}
		policy, err := policyAt(ctx, tx, ev.At)
		if err != nil {
			return err
		}
		if ev.Day == "" {
			ev.Day = attendance.DayKey(ev.At, policy.Location())
		}
		existing, err := loadRecord(ctx, tx, ev.SubjectID, ev.Day)
		if err != nil {
			return err
		}
		// the first event of the day pins the policy; later events keep deriving under it
		if existing != nil {
			if policy, err = snapshotPolicy(ctx, tx, existing); err != nil {
				return err
			}
		}
		onLeave, err := tx.Leaves.HasApprovedLeave(ctx, ev.SubjectID, ev.Day)
		if err != nil {
			return err
		}

		next, err := attendance.Apply(existing, ev, policy, onLeave)
		if err != nil {
			return err
		}
		if err := s.persist(ctx, tx, existing, next); err != nil {
			return err
		}
		if err := tx.Subjects.TouchLastAttendance(ctx, ev.SubjectID, ev.At); err != nil {
			return err
		}
		result = next
		return nil
	})
	if err != nil {
		logRejection(s.log, "attendance event rejected", err,
			zap.Uint("subject_id", ev.SubjectID),
			zap.String("event", string(ev.Type)),
			zap.String("day", ev.Day),
		)
		return nil, err
	}

	s.log.Info("attendance event recorded",
		zap.Uint("subject_id", result.SubjectID),
		zap.String("event", string(ev.Type)),
		zap.String("day", result.Day),
		zap.String("status", string(result.Status)),
	)
	s.publishRecord(ctx, result, string(ev.Type))
	return result, nil
}

// persist inserts a new record or overwrites the existing one. A unique violation on
// (subject, day) means the lock was bypassed and is reported as DuplicateDay.
func (s *AttendanceService) persist(ctx context.Context, tx *repository.Store, existing, next *models.AttendanceRecord) error {
	var err error
	if existing == nil {
		err = tx.Attendance.Create(ctx, next)
	} else {
		err = tx.Attendance.Save(ctx, next)
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		s.log.Error("duplicate attendance record",
			zap.Uint("subject_id", next.SubjectID),
			zap.String("day", next.Day),
			zap.Error(err),
		)
		return apperrors.ErrDuplicateDay.Withf("subject %d already has a record for %s", next.SubjectID, next.Day)
	}
	return err
}

// DayStatus returns the subject's record for day, or the synthesized absent/on_leave
// record when none is stored. An empty day means today in the active policy's timezone.
func (s *AttendanceService) DayStatus(ctx context.Context, subjectID uint, day string) (*DayView, error) {
	if _, err := requireSubject(ctx, s.store, subjectID); err != nil {
		return nil, err
	}
	if day == "" {
		policy, err := policyAt(ctx, s.store, s.now())
		if err != nil {
			return nil, err
		}
		day = attendance.DayKey(s.now(), policy.Location())
	}
	if _, err := attendance.ParseDay(day, time.UTC); err != nil {
		return nil, apperrors.ErrInvalidInput.Withf("%v", err)
	}

	rec, err := loadRecord(ctx, s.store, subjectID, day)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		return &DayView{Record: rec, Actions: attendance.NextActions(rec), Stored: true}, nil
	}
	onLeave, err := s.store.Leaves.HasApprovedLeave(ctx, subjectID, day)
	if err != nil {
		return nil, err
	}
	return &DayView{Record: attendance.Default(subjectID, day, onLeave), Actions: attendance.NextActions(nil)}, nil
}

// Correct applies an administrative correction, the only way to change a checked-out
// or finalized day.
func (s *AttendanceService) Correct(ctx context.Context, c attendance.Correction) (*models.AttendanceRecord, error) {
	if c.SubjectID == 0 {
		return nil, apperrors.ErrInvalidInput.Withf("subject id is required")
	}
	unlock := s.locks.Lock(c.SubjectID)
	defer unlock()

	var result *models.AttendanceRecord
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if _, err := requireSubject(ctx, tx, c.SubjectID); err != nil {
			return err
		}
		existing, err := loadRecord(ctx, tx, c.SubjectID, c.Day)
		if err != nil {
			return err
		}
		policy, err := policyForDay(ctx, tx, c.Day, c.CheckIn)
		if err != nil {
			return err
		}
		onLeave, err := tx.Leaves.HasApprovedLeave(ctx, c.SubjectID, c.Day)
		if err != nil {
			return err
		}
		next, err := attendance.Correct(existing, c, policy, onLeave)
		if err != nil {
			return err
		}
		if err := s.persist(ctx, tx, existing, next); err != nil {
			return err
		}
		result = next
		return nil
	})
	if err != nil {
		logRejection(s.log, "correction rejected", err, zap.Uint("subject_id", c.SubjectID), zap.String("day", c.Day))
		return nil, err
	}

	s.log.Info("attendance corrected",
		zap.Uint("subject_id", result.SubjectID),
		zap.String("day", result.Day),
		zap.Uint("approved_by", c.ApprovedBy),
		zap.String("status", string(result.Status)),
	)
	s.publishRecord(ctx, result, "correction")
	return result, nil
}

// Approve marks a record approved by an administrator.
func (s *AttendanceService) Approve(ctx context.Context, recordID string, approver uint) (*models.AttendanceRecord, error) {
	if approver == 0 {
		return nil, apperrors.ErrInvalidInput.Withf("approver is required")
	}
	rec, err := s.store.Attendance.GetByID(ctx, recordID)
	if err != nil {
		return nil, notFound(err, apperrors.ErrRecordNotFound)
	}

	unlock := s.locks.Lock(rec.SubjectID)
	defer unlock()

	var result *models.AttendanceRecord
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		current, err := tx.Attendance.GetByID(ctx, recordID)
		if err != nil {
			return notFound(err, apperrors.ErrRecordNotFound)
		}
		next := current.Clone()
		next.IsApproved = true
		next.ApprovedBy = &approver
		if err := tx.Attendance.Save(ctx, next); err != nil {
			return err
		}
		result = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("attendance approved", zap.String("record_id", recordID), zap.Uint("approved_by", approver))
	return result, nil
}

// PendingApprovals lists records still waiting for an administrator.
func (s *AttendanceService) PendingApprovals(ctx context.Context, limit int) ([]models.AttendanceRecord, error) {
	return s.store.Attendance.ListUnapproved(ctx, limit)
}

// FinalizeSubject closes one subject's day. A missing record becomes absent, or
// on_leave under approved leave. Already-finalized records are left as they are.
func (s *AttendanceService) FinalizeSubject(ctx context.Context, subjectID uint, day string) (*models.AttendanceRecord, bool, error) {
	unlock := s.locks.Lock(subjectID)
	defer unlock()

	var (
		result  *models.AttendanceRecord
		created bool
	)
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		existing, err := loadRecord(ctx, tx, subjectID, day)
		if err != nil {
			return err
		}
		if existing != nil && existing.Finalized {
			result = existing
			return nil
		}

		var policy *models.SchedulePolicy
		if existing != nil {
			policy, err = snapshotPolicy(ctx, tx, existing)
		} else {
			policy, err = policyForDay(ctx, tx, day, nil)
		}
		if err != nil {
			return err
		}
		onLeave, err := tx.Leaves.HasApprovedLeave(ctx, subjectID, day)
		if err != nil {
			return err
		}
		next, err := attendance.Finalize(existing, subjectID, day, policy, onLeave)
		if err != nil {
			return err
		}
		if err := s.persist(ctx, tx, existing, next); err != nil {
			return err
		}
		result, created = next, existing == nil
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, created, nil
}

// Finalize closes day for every subject. Per-subject failures are counted and logged;
// the first one is returned after all subjects were attempted.
func (s *AttendanceService) Finalize(ctx context.Context, day string) (FinalizeReport, error) {
	report := FinalizeReport{Day: day}
	if _, err := attendance.ParseDay(day, time.UTC); err != nil {
		return report, apperrors.ErrInvalidInput.Withf("%v", err)
	}
	ids, err := s.store.Subjects.ListIDs(ctx)
	if err != nil {
		return report, err
	}

	var firstErr error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		before, err := loadRecord(ctx, s.store, id, day)
		if err != nil {
			return report, err
		}
		if before != nil && before.Finalized {
			report.Unchanged++
			continue
		}
		_, created, err := s.FinalizeSubject(ctx, id, day)
		if err != nil {
			report.Failed++
			s.log.Error("failed to finalize day", zap.Uint("subject_id", id), zap.String("day", day), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		report.Finalized++
		if created {
			report.Created++
		}
	}

	s.log.Info("day finalized",
		zap.String("day", day),
		zap.Int("finalized", report.Finalized),
		zap.Int("created", report.Created),
		zap.Int("unchanged", report.Unchanged),
		zap.Int("failed", report.Failed),
	)
	ev := realtime.NewEvent(realtime.EventFinalized)
	ev.Day = day
	ev.Extra = map[string]interface{}{"finalized": report.Finalized, "created": report.Created}
	publish(ctx, s.publisher, s.log, ev)
	return report, firstErr
}

// Recompute re-derives a subject's stored records in [from, to]. With policyID 0 each
// day uses the policy that governs it; otherwise the given version is applied.
func (s *AttendanceService) Recompute(ctx context.Context, subjectID uint, from, to string, policyID uint) (int, error) {
	if err := validateRange(from, to); err != nil {
		return 0, err
	}
	var chosen *models.SchedulePolicy
	if policyID != 0 {
		p, err := s.store.Policies.GetByID(ctx, policyID)
		if err != nil {
			return 0, notFound(err, apperrors.ErrConfigurationMissing)
		}
		chosen = p
	}
	return s.rederiveRange(ctx, subjectID, from, to, func(tx *repository.Store, rec *models.AttendanceRecord) (*models.SchedulePolicy, error) {
		if chosen != nil {
			return chosen, nil
		}
		return policyForDay(ctx, tx, rec.Day, rec.CheckIn)
	})
}

// RefreshLeave re-derives the stored records a leave range touches, each with the
// policy snapshot it was derived with, so approval or cancellation shows up in status.
func (s *AttendanceService) RefreshLeave(ctx context.Context, subjectID uint, from, to string) (int, error) {
	if err := validateRange(from, to); err != nil {
		return 0, err
	}
	return s.rederiveRange(ctx, subjectID, from, to, snapshotPicker(ctx))
}

// refreshLeaveIn is RefreshLeave inside a caller's transaction. The caller holds the
// subject lock.
func (s *AttendanceService) refreshLeaveIn(ctx context.Context, tx *repository.Store, subjectID uint, from, to string) (int, error) {
	if err := validateRange(from, to); err != nil {
		return 0, err
	}
	return s.rederiveIn(ctx, tx, subjectID, from, to, snapshotPicker(ctx))
}

func snapshotPicker(ctx context.Context) policyPicker {
	return func(tx *repository.Store, rec *models.AttendanceRecord) (*models.SchedulePolicy, error) {
		return snapshotPolicy(ctx, tx, rec)
	}
}

type policyPicker func(tx *repository.Store, rec *models.AttendanceRecord) (*models.SchedulePolicy, error)

func (s *AttendanceService) rederiveRange(ctx context.Context, subjectID uint, from, to string, pick policyPicker) (int, error) {
	unlock := s.locks.Lock(subjectID)
	defer unlock()

	var changed int
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		changed, err = s.rederiveIn(ctx, tx, subjectID, from, to, pick)
		return err
	})
	if err != nil {
		return 0, err
	}
	if changed > 0 {
		s.log.Info("attendance re-derived",
			zap.Uint("subject_id", subjectID),
			zap.String("from", from),
			zap.String("to", to),
			zap.Int("changed", changed),
		)
	}
	return changed, nil
}

func (s *AttendanceService) rederiveIn(ctx context.Context, tx *repository.Store, subjectID uint, from, to string, pick policyPicker) (int, error) {
	records, err := tx.Attendance.ListBySubject(ctx, subjectID, repository.AttendanceFilter{From: from, To: to})
	if err != nil {
		return 0, err
	}
	changed := 0
	for i := range records {
		rec := &records[i]
		policy, err := pick(tx, rec)
		if err != nil {
			return 0, fmt.Errorf("failed to resolve policy for %s: %w", rec.Day, err)
		}
		onLeave, err := tx.Leaves.HasApprovedLeave(ctx, subjectID, rec.Day)
		if err != nil {
			return 0, err
		}
		next := attendance.Rederive(rec, policy, onLeave)
		if next.Status == rec.Status && next.TotalWorked == rec.TotalWorked &&
			next.Overtime == rec.Overtime && next.BreakDuration == rec.BreakDuration && next.PolicyID == rec.PolicyID {
			continue
		}
		if err := tx.Attendance.Save(ctx, next); err != nil {
			return 0, err
		}
		changed++
	}
	return changed, nil
}

// History lists a subject's stored records, newest first.
func (s *AttendanceService) History(ctx context.Context, subjectID uint, filter repository.AttendanceFilter) ([]models.AttendanceRecord, error) {
	if _, err := requireSubject(ctx, s.store, subjectID); err != nil {
		return nil, err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperrors.ErrInvalidInput.Withf("unknown status %q", filter.Status)
	}
	return s.store.Attendance.ListBySubject(ctx, subjectID, filter)
}

// Summary aggregates a subject's attendance over [from, to].
func (s *AttendanceService) Summary(ctx context.Context, subjectID uint, from, to string) (database.AttendanceSummary, error) {
	if _, err := requireSubject(ctx, s.store, subjectID); err != nil {
		return database.AttendanceSummary{}, err
	}
	if err := validateRange(from, to); err != nil {
		return database.AttendanceSummary{}, err
	}
	summary, err := s.reports.Summary(ctx, subjectID, from, to)
	if err != nil {
		return database.AttendanceSummary{}, err
	}
	return summary, nil
}

// Overview counts statuses across all subjects for one day.
func (s *AttendanceService) Overview(ctx context.Context, day string) (map[models.AttendanceStatus]int64, error) {
	if _, err := attendance.ParseDay(day, time.UTC); err != nil {
		return nil, apperrors.ErrInvalidInput.Withf("%v", err)
	}
	return s.reports.DayOverview(ctx, day)
}

func (s *AttendanceService) publishRecord(ctx context.Context, rec *models.AttendanceRecord, action string) {
	ev := realtime.NewEvent(realtime.EventAttendance)
	ev.SubjectID = rec.SubjectID
	ev.Day = rec.Day
	ev.Action = action
	ev.Status = string(rec.Status)
	if rec.Confidence != nil {
		ev.Confidence = *rec.Confidence
	}
	publish(ctx, s.publisher, s.log, ev)
}
