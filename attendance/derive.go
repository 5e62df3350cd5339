package attendance

import (
	"time"

	"github.com/camden-git/attendancebackend/models"
)

// Durations are the figures derived from a record's timestamps.
type Durations struct {
	TotalWorked      time.Duration
	Break            time.Duration // capped at the policy maximum
	BreakExcess      time.Duration
	BreakExceeded    bool
	Overtime         time.Duration
	WeightedOvertime time.Duration
}

// DeriveDurations computes worked time, break and overtime from the record timestamps.
// The full actual break is subtracted from worked time; only the reported break
// duration is capped.
func DeriveDurations(rec *models.AttendanceRecord, policy *models.SchedulePolicy) Durations {
	var d Durations
	if rec == nil || policy == nil {
		return d
	}

	var actualBreak time.Duration
	if rec.BreakStart != nil && rec.BreakEnd != nil && !rec.BreakEnd.Before(*rec.BreakStart) {
		actualBreak = rec.BreakEnd.Sub(*rec.BreakStart)
	}
	d.Break = actualBreak
	if limit := policy.MaxBreak(); actualBreak > limit {
		d.Break = limit
		d.BreakExcess = actualBreak - limit
		d.BreakExceeded = true
	}

	if rec.CheckIn != nil && rec.CheckOut != nil {
		worked := rec.CheckOut.Sub(*rec.CheckIn) - actualBreak
		if worked < 0 {
			worked = 0
		}
		d.TotalWorked = worked
	}

	if threshold := policy.OvertimeThreshold(); d.TotalWorked > threshold {
		d.Overtime = d.TotalWorked - threshold
		d.WeightedOvertime = time.Duration(float64(d.Overtime) * policy.OvertimeRateMultiplier)
	}
	return d
}

// DeriveStatus classifies a record. It depends only on the timestamps, the policy and
// the leave flag, so calling it twice on the same inputs yields the same status.
//
// Precedence: on_leave, then absent (no check-in), then late, then half_day for a
// completed day shorter than the policy minimum, otherwise present.
func DeriveStatus(rec *models.AttendanceRecord, policy *models.SchedulePolicy, onLeave bool) models.AttendanceStatus {
	if onLeave {
		return models.StatusOnLeave
	}
	if rec == nil || rec.CheckIn == nil || policy == nil {
		return models.StatusAbsent
	}

	if IsLate(rec, policy) {
		return models.StatusLate
	}
	if rec.CheckOut != nil && DeriveDurations(rec, policy).TotalWorked < policy.HalfDayMinimum() {
		return models.StatusHalfDay
	}
	return models.StatusPresent
}

// IsLate reports whether the check-in falls strictly after work start plus the grace period.
func IsLate(rec *models.AttendanceRecord, policy *models.SchedulePolicy) bool {
	if rec == nil || rec.CheckIn == nil || policy == nil {
		return false
	}
	loc := policy.Location()
	local := rec.CheckIn.In(loc)

	midnight, err := ParseDay(rec.Day, loc)
	if err != nil {
		midnight = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	}
	cutoff := policy.WorkStartOn(midnight).Add(policy.LateThreshold())
	return local.After(cutoff)
}

// Rederive recomputes every derived field of a copy of rec under policy.
func Rederive(rec *models.AttendanceRecord, policy *models.SchedulePolicy, onLeave bool) *models.AttendanceRecord {
	out := rec.Clone()
	applyDerivation(out, policy, onLeave)
	return out
}

func applyDerivation(rec *models.AttendanceRecord, policy *models.SchedulePolicy, onLeave bool) {
	d := DeriveDurations(rec, policy)
	rec.TotalWorked = d.TotalWorked
	rec.BreakDuration = d.Break
	rec.BreakExcess = d.BreakExcess
	rec.BreakExceeded = d.BreakExceeded
	rec.Overtime = d.Overtime
	rec.WeightedOvertime = d.WeightedOvertime
	rec.Status = DeriveStatus(rec, policy, onLeave)
	rec.PolicyID = policy.ID
}
