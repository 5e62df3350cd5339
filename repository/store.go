package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store bundles the repositories that share one *gorm.DB, which is either the root
// connection or an open transaction.
type Store struct {
	db *gorm.DB

	Subjects        *SubjectRepository
	Templates       *TemplateRepository
	Attendance      *AttendanceRepository
	Policies        *PolicyRepository
	Leaves          *LeaveRepository
	RecognitionLogs *RecognitionLogRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:              db,
		Subjects:        NewSubjectRepository(db),
		Templates:       NewTemplateRepository(db),
		Attendance:      NewAttendanceRepository(db),
		Policies:        NewPolicyRepository(db),
		Leaves:          NewLeaveRepository(db),
		RecognitionLogs: NewRecognitionLogRepository(db),
	}
}

// DB returns the underlying handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn against a Store bound to a single transaction. Returning an
// error from fn rolls everything back.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}
