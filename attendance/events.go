package attendance

import (
	"math"
	"time"

	"github.com/camden-git/attendancebackend/apperrors"
	"github.com/camden-git/attendancebackend/models"
)

type EventType string

const (
	EventCheckIn    EventType = "check_in"
	EventCheckOut   EventType = "check_out"
	EventBreakStart EventType = "break_start"
	EventBreakEnd   EventType = "break_end"
)

func (t EventType) Valid() bool {
	switch t {
	case EventCheckIn, EventCheckOut, EventBreakStart, EventBreakEnd:
		return true
	}
	return false
}

// Event is a single attendance action for a subject.
type Event struct {
	SubjectID  uint
	Type       EventType
	At         time.Time
	Method     models.AttendanceMethod
	Confidence *float64 // required when Method is biometric
	TemplateID *string
	Notes      string

	// Day overrides the day key derived from At in the policy timezone.
	Day string
}

// Apply folds ev into the subject's record for the day and returns the new state.
// existing may be nil when no record exists yet. On rejection the returned record is
// nil and existing is left untouched.
func Apply(existing *models.AttendanceRecord, ev Event, policy *models.SchedulePolicy, onLeave bool) (*models.AttendanceRecord, error) {
	if policy == nil {
		return nil, apperrors.ErrConfigurationMissing
	}
	if err := validateEvent(ev, policy); err != nil {
		return nil, err
	}

	day := ev.Day
	if day == "" {
		day = DayKey(ev.At, policy.Location())
	}
	if existing != nil && (existing.SubjectID != ev.SubjectID || existing.Day != day) {
		return nil, apperrors.ErrInvalidInput.Withf("event for subject %d on %s does not belong to record %s", ev.SubjectID, day, existing.ID)
	}

	if err := checkTransition(existing, ev); err != nil {
		return nil, err
	}

	var rec *models.AttendanceRecord
	if existing == nil {
		rec = &models.AttendanceRecord{
			SubjectID:  ev.SubjectID,
			Day:        day,
			IsApproved: !policy.RequireAdminApproval,
		}
	} else {
		rec = existing.Clone()
	}

	at := ev.At
	switch ev.Type {
	case EventCheckIn:
		rec.CheckIn = &at
		rec.Method = ev.Method
		rec.Confidence = nil
		rec.TemplateID = nil
		if ev.Method == models.MethodBiometric {
			c := *ev.Confidence
			rec.Confidence = &c
			if ev.TemplateID != nil {
				id := *ev.TemplateID
				rec.TemplateID = &id
			}
		}
	case EventCheckOut:
		rec.CheckOut = &at
	case EventBreakStart:
		rec.BreakStart = &at
	case EventBreakEnd:
		rec.BreakEnd = &at
	}
	if ev.Notes != "" {
		if rec.Notes != "" {
			rec.Notes += "\n"
		}
		rec.Notes += ev.Notes
	}

	applyDerivation(rec, policy, onLeave)
	return rec, nil
}

func validateEvent(ev Event, policy *models.SchedulePolicy) error {
	if ev.SubjectID == 0 {
		return apperrors.ErrInvalidInput.Withf("subject id is required")
	}
	if !ev.Type.Valid() {
		return apperrors.ErrInvalidInput.Withf("unknown event type %q", ev.Type)
	}
	if !ev.Method.Valid() {
		return apperrors.ErrInvalidInput.Withf("unknown method %q", ev.Method)
	}
	if ev.At.IsZero() {
		return apperrors.ErrInvalidInput.Withf("event timestamp is required")
	}

	switch ev.Method {
	case models.MethodBiometric:
		if ev.Confidence == nil {
			return apperrors.ErrLowConfidence.Withf("biometric events must carry a confidence score")
		}
		c := *ev.Confidence
		if math.IsNaN(c) || c < 0 || c > 1 {
			return apperrors.ErrLowConfidence.Withf("confidence %.4f outside [0,1]", c)
		}
		if c < policy.MinRecognitionConfidence {
			return apperrors.ErrLowConfidence.Withf("confidence %.4f below minimum %.4f", c, policy.MinRecognitionConfidence)
		}
	case models.MethodManual:
		if !policy.AllowManualOverride {
			return apperrors.ErrManualOverrideDisabled
		}
	}
	return nil
}

func checkTransition(rec *models.AttendanceRecord, ev Event) error {
	if rec != nil && rec.Finalized {
		return apperrors.ErrDayFinalized
	}

	switch ev.Type {
	case EventCheckIn:
		if rec.CheckedIn() {
			return apperrors.ErrAlreadyCheckedIn
		}
	case EventCheckOut:
		if !rec.CheckedIn() {
			return apperrors.ErrNotCheckedIn
		}
		if rec.CheckedOut() {
			return apperrors.ErrAlreadyCheckedOut
		}
		if rec.OnBreak() {
			return apperrors.ErrBreakInProgress
		}
		if ev.At.Before(*rec.CheckIn) || (rec.BreakEnd != nil && ev.At.Before(*rec.BreakEnd)) {
			return apperrors.ErrOutOfOrder
		}
	case EventBreakStart:
		if !rec.CheckedIn() {
			return apperrors.ErrNotCheckedIn
		}
		if rec.CheckedOut() {
			return apperrors.ErrAlreadyCheckedOut
		}
		if rec.BreakStart != nil {
			return apperrors.ErrBreakAlreadyStarted
		}
		if ev.At.Before(*rec.CheckIn) {
			return apperrors.ErrOutOfOrder
		}
	case EventBreakEnd:
		if !rec.CheckedIn() {
			return apperrors.ErrNotCheckedIn
		}
		if rec.CheckedOut() {
			return apperrors.ErrAlreadyCheckedOut
		}
		if rec.BreakStart == nil {
			return apperrors.ErrNoBreakStarted
		}
		if rec.BreakEnd != nil {
			return apperrors.ErrBreakAlreadyEnded
		}
		if ev.At.Before(*rec.BreakStart) {
			return apperrors.ErrOutOfOrder
		}
	}
	return nil
}
