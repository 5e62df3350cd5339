package repository

import (
	"context"
	"time"

	"github.com/camden-git/attendancebackend/models"
)

// SubjectRepositoryInterface defines the methods for subject data operations
type SubjectRepositoryInterface interface {
	Create(ctx context.Context, subject *models.Subject) error
	GetByID(ctx context.Context, id uint) (*models.Subject, error)
	GetByEmployeeCode(ctx context.Context, code string) (*models.Subject, error)
	ListAll(ctx context.Context) ([]models.Subject, error)
	ListIDs(ctx context.Context) ([]uint, error)
	SetEnrollment(ctx context.Context, id uint, enrolled bool, enrolledAt *time.Time) error
	TouchLastAttendance(ctx context.Context, id uint, at time.Time) error
}

// TemplateRepositoryInterface defines the methods for enrollment template data operations
type TemplateRepositoryInterface interface {
	Create(ctx context.Context, template *models.EnrollmentTemplate) error
	GetByID(ctx context.Context, id string) (*models.EnrollmentTemplate, error)
	ListBySubject(ctx context.Context, subjectID uint) ([]models.EnrollmentTemplate, error)
	ListActive(ctx context.Context) ([]models.EnrollmentTemplate, error)
	UpdateFlags(ctx context.Context, template *models.EnrollmentTemplate) error
}

// AttendanceFilter narrows ListBySubject. Empty fields are ignored.
type AttendanceFilter struct {
	From   string
	To     string
	Status models.AttendanceStatus
	Limit  int
}

// AttendanceRepositoryInterface defines the methods for attendance record data operations
type AttendanceRepositoryInterface interface {
	Create(ctx context.Context, record *models.AttendanceRecord) error
	Save(ctx context.Context, record *models.AttendanceRecord) error
	GetByID(ctx context.Context, id string) (*models.AttendanceRecord, error)
	GetBySubjectDay(ctx context.Context, subjectID uint, day string) (*models.AttendanceRecord, error)
	ListBySubject(ctx context.Context, subjectID uint, filter AttendanceFilter) ([]models.AttendanceRecord, error)
	ListByDay(ctx context.Context, day string) ([]models.AttendanceRecord, error)
	ListUnapproved(ctx context.Context, limit int) ([]models.AttendanceRecord, error)
}

// PolicyRepositoryInterface defines the methods for schedule policy data operations
type PolicyRepositoryInterface interface {
	ActiveAt(ctx context.Context, at time.Time) (*models.SchedulePolicy, error)
	GetByID(ctx context.Context, id uint) (*models.SchedulePolicy, error)
	ListAll(ctx context.Context) ([]models.SchedulePolicy, error)
	Activate(ctx context.Context, policy *models.SchedulePolicy) error
	Count(ctx context.Context) (int64, error)
}

// LeaveRepositoryInterface defines the methods for leave request data operations
type LeaveRepositoryInterface interface {
	Create(ctx context.Context, leave *models.LeaveRequest) error
	GetByID(ctx context.Context, id string) (*models.LeaveRequest, error)
	Update(ctx context.Context, leave *models.LeaveRequest) error
	List(ctx context.Context, subjectID *uint, status models.LeaveStatus) ([]models.LeaveRequest, error)
	HasApprovedLeave(ctx context.Context, subjectID uint, day string) (bool, error)
	SubjectsOnLeave(ctx context.Context, day string) (map[uint]bool, error)
}

// RecognitionLogRepositoryInterface defines the methods for the append-only recognition audit log
type RecognitionLogRepositoryInterface interface {
	Append(ctx context.Context, entry *models.RecognitionLog) error
	ListBySubject(ctx context.Context, subjectID uint, limit int) ([]models.RecognitionLog, error)
	ListRecent(ctx context.Context, limit int) ([]models.RecognitionLog, error)
	MaxSeq(ctx context.Context) (uint64, error)
}
