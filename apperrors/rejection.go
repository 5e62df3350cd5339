package apperrors

import (
	"errors"
	"fmt"
)

// Kind groups rejections by how callers should react to them.
type Kind string

const (
	KindInvalidTransition     Kind = "invalid_transition"
	KindPolicyViolation       Kind = "policy_violation"
	KindNotEnrolled           Kind = "not_enrolled"
	KindLastTemplateProtected Kind = "last_template_protected"
	KindDuplicateDay          Kind = "duplicate_day"
	KindConfigurationMissing  Kind = "configuration_missing"
	KindInvalidInput          Kind = "invalid_input"
	KindNotFound              Kind = "not_found"
)

// Rejection is a typed, expected refusal of an operation. The record or template set
// the operation targeted is left untouched.
type Rejection struct {
	Kind    Kind
	Code    string
	Message string
}

func (r *Rejection) Error() string {
	if r.Message == "" {
		return r.Code
	}
	return r.Code + ": " + r.Message
}

// Is matches any rejection carrying the same kind and code, so a rejection returned
// with extra detail still satisfies errors.Is against the exported sentinel.
func (r *Rejection) Is(target error) bool {
	t, ok := target.(*Rejection)
	if !ok {
		return false
	}
	return t.Kind == r.Kind && t.Code == r.Code
}

// Withf returns a copy of r with a formatted message.
func (r *Rejection) Withf(format string, args ...interface{}) *Rejection {
	return &Rejection{Kind: r.Kind, Code: r.Code, Message: fmt.Sprintf(format, args...)}
}

func newRejection(kind Kind, code, message string) *Rejection {
	return &Rejection{Kind: kind, Code: code, Message: message}
}

// AsRejection unwraps err to a *Rejection if it carries one.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// KindOf returns the rejection kind of err, or "" for infrastructure errors.
func KindOf(err error) Kind {
	if r, ok := AsRejection(err); ok {
		return r.Kind
	}
	return ""
}

// attendance transitions
var (
	ErrAlreadyCheckedIn    = newRejection(KindInvalidTransition, "already_checked_in", "subject already checked in for this day")
	ErrNotCheckedIn        = newRejection(KindInvalidTransition, "not_checked_in", "subject has not checked in for this day")
	ErrAlreadyCheckedOut   = newRejection(KindInvalidTransition, "already_checked_out", "subject already checked out for this day")
	ErrBreakAlreadyStarted = newRejection(KindInvalidTransition, "break_already_started", "a break was already started for this day")
	ErrNoBreakStarted      = newRejection(KindInvalidTransition, "no_break_started", "no break has been started")
	ErrBreakAlreadyEnded   = newRejection(KindInvalidTransition, "break_already_ended", "the break has already ended")
	ErrBreakInProgress     = newRejection(KindInvalidTransition, "break_in_progress", "end the break before checking out")
	ErrOutOfOrder          = newRejection(KindInvalidTransition, "timestamp_out_of_order", "event timestamp precedes the previous event")
	ErrDayFinalized        = newRejection(KindInvalidTransition, "day_finalized", "the day is finalized; use a correction")
)

// policy
var (
	ErrLowConfidence          = newRejection(KindPolicyViolation, "low_confidence", "recognition confidence below the policy minimum")
	ErrManualOverrideDisabled = newRejection(KindPolicyViolation, "manual_override_disabled", "manual attendance is not allowed by the active policy")
	ErrConfigurationMissing   = newRejection(KindConfigurationMissing, "no_active_policy", "no schedule policy is effective at the given time")
	ErrNotRecognized          = newRejection(KindPolicyViolation, "not_recognized", "probe did not produce a match")
)

// enrollment
var (
	ErrNotEnrolled           = newRejection(KindNotEnrolled, "not_enrolled", "subject has no active templates")
	ErrLastTemplateProtected = newRejection(KindLastTemplateProtected, "last_template_protected", "cannot deactivate the only active template")
	ErrTemplateInactive      = newRejection(KindInvalidTransition, "template_inactive", "template is already inactive")
	ErrInvalidVector         = newRejection(KindInvalidInput, "invalid_vector", "feature vector is empty or contains non-finite values")
	ErrDimensionMismatch     = newRejection(KindInvalidInput, "dimension_mismatch", "feature vector dimension differs from the subject's templates")
	ErrInvalidScore          = newRejection(KindInvalidInput, "invalid_score", "scores must lie in [0,1]")
)

// storage and lookup
var (
	ErrDuplicateDay           = newRejection(KindDuplicateDay, "duplicate_day", "an attendance record already exists for this subject and day")
	ErrInvalidInput           = newRejection(KindInvalidInput, "invalid_input", "")
	ErrSubjectNotFound        = newRejection(KindNotFound, "subject_not_found", "subject not found")
	ErrRecordNotFound         = newRejection(KindNotFound, "record_not_found", "attendance record not found")
	ErrTemplateNotFound       = newRejection(KindNotFound, "template_not_found", "template not found")
	ErrLeaveNotFound          = newRejection(KindNotFound, "leave_not_found", "leave request not found")
	ErrInvalidLeaveTransition = newRejection(KindInvalidTransition, "invalid_leave_transition", "leave request cannot move to that status")
	ErrDuplicateEmployeeCode  = newRejection(KindInvalidInput, "duplicate_employee_code", "employee code already registered")
	ErrInvalidPolicy          = newRejection(KindInvalidInput, "invalid_policy", "")
	ErrExtractorUnavailable   = newRejection(KindConfigurationMissing, "extractor_unavailable", "no feature extractor is configured")
)
