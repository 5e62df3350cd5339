package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/camden-git/attendancebackend/apperrors"
	"github.com/camden-git/attendancebackend/attendance"
	"github.com/camden-git/attendancebackend/models"
	"github.com/camden-git/attendancebackend/realtime"
	"github.com/camden-git/attendancebackend/repository"
)

// notFound maps gorm.ErrRecordNotFound to the given rejection and passes other errors through.
func notFound(err error, rejection *apperrors.Rejection) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rejection
	}
	return err
}

// policyAt resolves the schedule policy effective at 'at'.
func policyAt(ctx context.Context, store *repository.Store, at time.Time) (*models.SchedulePolicy, error) {
	policy, err := store.Policies.ActiveAt(ctx, at)
	if err != nil {
		return nil, notFound(err, apperrors.ErrConfigurationMissing)
	}
	return checkZone(policy)
}

// checkZone refuses a stored policy whose timezone cannot be loaded instead of
// silently deriving it in UTC.
func checkZone(policy *models.SchedulePolicy) (*models.SchedulePolicy, error) {
	if _, err := policy.ResolveLocation(); err != nil {
		return nil, apperrors.ErrConfigurationMissing.Withf("schedule policy %d: %v", policy.ID, err)
	}
	return policy, nil
}

// policyForDay resolves the policy that governs a calendar day: the one effective at
// hint when given, otherwise the one effective at the end of the day in UTC.
func policyForDay(ctx context.Context, store *repository.Store, day string, hint *time.Time) (*models.SchedulePolicy, error) {
	if hint != nil {
		return policyAt(ctx, store, *hint)
	}
	midnight, err := attendance.ParseDay(day, time.UTC)
	if err != nil {
		return nil, apperrors.ErrInvalidInput.Withf("%v", err)
	}
	return policyAt(ctx, store, midnight.AddDate(0, 0, 1).Add(-time.Nanosecond))
}

// snapshotPolicy returns the policy a stored record was derived with, falling back to the
// policy governing its day for records that never carried one.
func snapshotPolicy(ctx context.Context, store *repository.Store, rec *models.AttendanceRecord) (*models.SchedulePolicy, error) {
	if rec.PolicyID != 0 {
		policy, err := store.Policies.GetByID(ctx, rec.PolicyID)
		if err == nil {
			return checkZone(policy)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return policyForDay(ctx, store, rec.Day, rec.CheckIn)
}

// loadRecord returns the stored record of a subject's day or nil when there is none.
func loadRecord(ctx context.Context, store *repository.Store, subjectID uint, day string) (*models.AttendanceRecord, error) {
	rec, err := store.Attendance.GetBySubjectDay(ctx, subjectID, day)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

// validateRange checks an inclusive YYYY-MM-DD range.
func validateRange(from, to string) error {
	if _, err := attendance.ParseDay(from, time.UTC); err != nil {
		return apperrors.ErrInvalidInput.Withf("%v", err)
	}
	if _, err := attendance.ParseDay(to, time.UTC); err != nil {
		return apperrors.ErrInvalidInput.Withf("%v", err)
	}
	if to < from {
		return apperrors.ErrInvalidInput.Withf("range end %s precedes start %s", to, from)
	}
	return nil
}

func requireSubject(ctx context.Context, store *repository.Store, subjectID uint) (*models.Subject, error) {
	if subjectID == 0 {
		return nil, apperrors.ErrInvalidInput.Withf("subject id is required")
	}
	subject, err := store.Subjects.GetByID(ctx, subjectID)
	if err != nil {
		return nil, notFound(err, apperrors.ErrSubjectNotFound)
	}
	return subject, nil
}

// publish delivers a feed event; failures are logged and never fail the operation.
func publish(ctx context.Context, p realtime.Publisher, log *zap.Logger, ev realtime.Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, ev); err != nil {
		log.Warn("failed to publish event", zap.String("type", ev.Type), zap.Error(err))
	}
}

// logRejection logs expected refusals quietly and everything else as an error.
func logRejection(log *zap.Logger, msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	switch apperrors.KindOf(err) {
	case "":
		log.Error(msg, fields...)
	case apperrors.KindDuplicateDay, apperrors.KindConfigurationMissing:
		log.Error(msg, fields...)
	default:
		log.Debug(msg, fields...)
	}
}
