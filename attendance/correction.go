package attendance

import (
	"time"

	"github.com/camden-git/attendancebackend/apperrors"
	"github.com/camden-git/attendancebackend/models"
)

// Correction replaces the full timestamp set of a day. It is the only path that can
// change a checked-out or finalized record.
type Correction struct {
	SubjectID  uint
	Day        string
	CheckIn    *time.Time
	CheckOut   *time.Time
	BreakStart *time.Time
	BreakEnd   *time.Time
	ApprovedBy uint
	Notes      string
}

// Correct applies an administrative correction and re-derives the record.
func Correct(existing *models.AttendanceRecord, c Correction, policy *models.SchedulePolicy, onLeave bool) (*models.AttendanceRecord, error) {
	if policy == nil {
		return nil, apperrors.ErrConfigurationMissing
	}
	if c.SubjectID == 0 || c.Day == "" {
		return nil, apperrors.ErrInvalidInput.Withf("subject and day are required")
	}
	if _, err := ParseDay(c.Day, time.UTC); err != nil {
		return nil, apperrors.ErrInvalidInput.Withf("%v", err)
	}
	if c.ApprovedBy == 0 {
		return nil, apperrors.ErrInvalidInput.Withf("corrections require an approver")
	}
	if existing != nil && (existing.SubjectID != c.SubjectID || existing.Day != c.Day) {
		return nil, apperrors.ErrInvalidInput.Withf("correction does not belong to record %s", existing.ID)
	}
	if err := validateTimeline(c.CheckIn, c.CheckOut, c.BreakStart, c.BreakEnd); err != nil {
		return nil, err
	}

	var rec *models.AttendanceRecord
	if existing == nil {
		rec = &models.AttendanceRecord{SubjectID: c.SubjectID, Day: c.Day, Method: models.MethodManual}
	} else {
		rec = existing.Clone()
	}

	rec.CheckIn = copyTime(c.CheckIn)
	rec.CheckOut = copyTime(c.CheckOut)
	rec.BreakStart = copyTime(c.BreakStart)
	rec.BreakEnd = copyTime(c.BreakEnd)
	if rec.Method == "" {
		rec.Method = models.MethodManual
	}
	if rec.CheckIn == nil {
		rec.Confidence = nil
		rec.TemplateID = nil
	}
	approver := c.ApprovedBy
	rec.ApprovedBy = &approver
	rec.IsApproved = true
	rec.Corrected = true
	if c.Notes != "" {
		rec.Notes = c.Notes
	}

	applyDerivation(rec, policy, onLeave)
	return rec, nil
}

// validateTimeline enforces check_in <= break_start <= break_end <= check_out on whatever
// subset of timestamps is present.
func validateTimeline(checkIn, checkOut, breakStart, breakEnd *time.Time) error {
	if checkIn == nil && (checkOut != nil || breakStart != nil || breakEnd != nil) {
		return apperrors.ErrNotCheckedIn.Withf("a correction with other timestamps needs a check-in")
	}
	if breakEnd != nil && breakStart == nil {
		return apperrors.ErrNoBreakStarted
	}
	if checkOut != nil && breakStart != nil && breakEnd == nil {
		return apperrors.ErrBreakInProgress
	}
	if checkIn != nil && checkOut != nil && checkOut.Before(*checkIn) {
		return apperrors.ErrOutOfOrder.Withf("check-out precedes check-in")
	}
	if checkIn != nil && breakStart != nil && breakStart.Before(*checkIn) {
		return apperrors.ErrOutOfOrder.Withf("break starts before check-in")
	}
	if breakStart != nil && breakEnd != nil && breakEnd.Before(*breakStart) {
		return apperrors.ErrOutOfOrder.Withf("break ends before it starts")
	}
	if checkOut != nil && breakEnd != nil && checkOut.Before(*breakEnd) {
		return apperrors.ErrOutOfOrder.Withf("check-out precedes the end of the break")
	}
	return nil
}

// Finalize closes the day for a subject. A subject with no record gets an absent (or
// on_leave) record. Finalizing an already-finalized record returns an unchanged copy.
func Finalize(existing *models.AttendanceRecord, subjectID uint, day string, policy *models.SchedulePolicy, onLeave bool) (*models.AttendanceRecord, error) {
	if policy == nil {
		return nil, apperrors.ErrConfigurationMissing
	}
	if existing != nil && existing.Finalized {
		return existing.Clone(), nil
	}

	var rec *models.AttendanceRecord
	if existing == nil {
		rec = &models.AttendanceRecord{
			SubjectID:  subjectID,
			Day:        day,
			Method:     models.MethodManual,
			IsApproved: !policy.RequireAdminApproval,
		}
	} else {
		rec = existing.Clone()
	}
	rec.Finalized = true
	applyDerivation(rec, policy, onLeave)
	return rec, nil
}

// Default is the record reported for a day that has no stored row.
func Default(subjectID uint, day string, onLeave bool) *models.AttendanceRecord {
	status := models.StatusAbsent
	if onLeave {
		status = models.StatusOnLeave
	}
	return &models.AttendanceRecord{SubjectID: subjectID, Day: day, Status: status}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
