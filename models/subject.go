package models

import "time"

// Subject is an enrolled person whose attendance is tracked.
// It corresponds to the 'subjects' table.
type Subject struct {
	ID                 uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	EmployeeCode       string     `gorm:"uniqueIndex;not null;size:64" json:"employee_code"`
	DisplayName        string     `gorm:"not null" json:"display_name"`
	IsFaceEnrolled     bool       `gorm:"not null" json:"is_face_enrolled"` // projection of the active template count
	FaceEnrollmentDate *time.Time `json:"face_enrollment_date,omitempty"`
	LastAttendance     *time.Time `json:"last_attendance,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// TableName explicitly sets the table name for GORM.
func (Subject) TableName() string {
	return "subjects"
}
