package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LeaveType string

const (
	LeaveSick      LeaveType = "sick"
	LeaveVacation  LeaveType = "vacation"
	LeavePersonal  LeaveType = "personal"
	LeaveEmergency LeaveType = "emergency"
	LeaveMaternity LeaveType = "maternity"
	LeavePaternity LeaveType = "paternity"
)

func (t LeaveType) Valid() bool {
	switch t {
	case LeaveSick, LeaveVacation, LeavePersonal, LeaveEmergency, LeaveMaternity, LeavePaternity:
		return true
	}
	return false
}

type LeaveStatus string

const (
	LeavePending   LeaveStatus = "pending"
	LeaveApproved  LeaveStatus = "approved"
	LeaveRejected  LeaveStatus = "rejected"
	LeaveCancelled LeaveStatus = "cancelled"
)

// LeaveRequest is a subject's request to be away for a range of days.
// It corresponds to the 'leave_requests' table.
type LeaveRequest struct {
	ID              string      `gorm:"primaryKey;size:36" json:"id"`
	SubjectID       uint        `gorm:"not null;index:idx_leave_subject_range,priority:1" json:"subject_id"`
	Type            LeaveType   `gorm:"not null;size:16" json:"type"`
	StartDay        string      `gorm:"not null;size:10;index:idx_leave_subject_range,priority:2" json:"start_day"`
	EndDay          string      `gorm:"not null;size:10;index:idx_leave_subject_range,priority:3" json:"end_day"`
	IsHalfDay       bool        `gorm:"not null" json:"is_half_day"`
	Reason          string      `json:"reason"`
	Status          LeaveStatus `gorm:"not null;size:16;index" json:"status"`
	ApprovedBy      *uint       `json:"approved_by,omitempty"`
	ApprovalDate    *time.Time  `json:"approval_date,omitempty"`
	RejectionReason string      `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// TableName explicitly sets the table name for GORM.
func (LeaveRequest) TableName() string {
	return "leave_requests"
}

func (l *LeaveRequest) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

// DurationDays is 0.5 for a half-day leave, otherwise the inclusive number of days.
func (l *LeaveRequest) DurationDays() float64 {
	if l.IsHalfDay {
		return 0.5
	}
	start, err := time.Parse(DayLayout, l.StartDay)
	if err != nil {
		return 0
	}
	end, err := time.Parse(DayLayout, l.EndDay)
	if err != nil || end.Before(start) {
		return 0
	}
	return end.Sub(start).Hours()/24 + 1
}

// Covers reports whether day (YYYY-MM-DD) falls inside the leave range.
func (l *LeaveRequest) Covers(day string) bool {
	return l.StartDay <= day && day <= l.EndDay
}
