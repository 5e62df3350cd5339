package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "present"
	StatusLate    AttendanceStatus = "late"
	StatusAbsent  AttendanceStatus = "absent"
	StatusHalfDay AttendanceStatus = "half_day"
	StatusOnLeave AttendanceStatus = "on_leave"
)

func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusPresent, StatusLate, StatusAbsent, StatusHalfDay, StatusOnLeave:
		return true
	}
	return false
}

type AttendanceMethod string

const (
	MethodBiometric AttendanceMethod = "biometric"
	MethodManual    AttendanceMethod = "manual"
	MethodCard      AttendanceMethod = "card"
	MethodApp       AttendanceMethod = "app"
)

func (m AttendanceMethod) Valid() bool {
	switch m {
	case MethodBiometric, MethodManual, MethodCard, MethodApp:
		return true
	}
	return false
}

// DayLayout is the storage format of AttendanceRecord.Day.
const DayLayout = "2006-01-02"

// AttendanceRecord is the single attendance row for one subject on one calendar day.
// It corresponds to the 'attendance_records' table.
type AttendanceRecord struct {
	ID        string `gorm:"primaryKey;size:36" json:"id"`
	SubjectID uint   `gorm:"not null;uniqueIndex:idx_attendance_subject_day,priority:1" json:"subject_id"`
	Day       string `gorm:"not null;size:10;uniqueIndex:idx_attendance_subject_day,priority:2;index" json:"day"` // YYYY-MM-DD in the reporting timezone

	CheckIn    *time.Time `json:"check_in,omitempty"`
	CheckOut   *time.Time `json:"check_out,omitempty"`
	BreakStart *time.Time `json:"break_start,omitempty"`
	BreakEnd   *time.Time `json:"break_end,omitempty"`

	// derived, stored as nanoseconds
	TotalWorked      time.Duration `gorm:"not null;default:0" json:"total_worked"`
	BreakDuration    time.Duration `gorm:"not null;default:0" json:"break_duration"` // capped at the policy maximum
	BreakExcess      time.Duration `gorm:"not null;default:0" json:"break_excess"`
	BreakExceeded    bool          `gorm:"not null" json:"break_exceeded"`
	Overtime         time.Duration `gorm:"not null;default:0" json:"overtime"`
	WeightedOvertime time.Duration `gorm:"not null;default:0" json:"weighted_overtime"`

	Status     AttendanceStatus `gorm:"not null;size:16;index" json:"status"`
	Method     AttendanceMethod `gorm:"not null;size:16" json:"method"`
	Confidence *float64         `json:"confidence,omitempty"` // set only for biometric check-ins
	TemplateID *string          `gorm:"size:36" json:"template_id,omitempty"`

	IsApproved bool   `gorm:"not null" json:"is_approved"`
	ApprovedBy *uint  `json:"approved_by,omitempty"`
	Notes      string `json:"notes,omitempty"`
	PolicyID   uint   `gorm:"not null" json:"policy_id"` // schedule policy version used for derivation
	Finalized  bool   `gorm:"not null" json:"finalized"`
	Corrected  bool   `gorm:"not null" json:"corrected"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName explicitly sets the table name for GORM.
func (AttendanceRecord) TableName() string {
	return "attendance_records"
}

func (r *AttendanceRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// Clone returns a deep copy so callers can derive a new state without touching the original.
func (r *AttendanceRecord) Clone() *AttendanceRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.CheckIn = cloneTime(r.CheckIn)
	c.CheckOut = cloneTime(r.CheckOut)
	c.BreakStart = cloneTime(r.BreakStart)
	c.BreakEnd = cloneTime(r.BreakEnd)
	if r.Confidence != nil {
		v := *r.Confidence
		c.Confidence = &v
	}
	if r.TemplateID != nil {
		v := *r.TemplateID
		c.TemplateID = &v
	}
	if r.ApprovedBy != nil {
		v := *r.ApprovedBy
		c.ApprovedBy = &v
	}
	return &c
}

func (r *AttendanceRecord) CheckedIn() bool  { return r != nil && r.CheckIn != nil }
func (r *AttendanceRecord) CheckedOut() bool { return r != nil && r.CheckOut != nil }

// OnBreak reports whether a break has been started and not yet ended.
func (r *AttendanceRecord) OnBreak() bool {
	return r != nil && r.BreakStart != nil && r.BreakEnd == nil
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
