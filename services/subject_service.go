package services

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/facette/natsort"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/camden-git/attendancebackend/apperrors"
	"github.com/camden-git/attendancebackend/models"
	"github.com/camden-git/attendancebackend/repository"
)

// SubjectService is the minimal registry of people whose attendance is tracked.
type SubjectService struct {
	store *repository.Store
	log   *zap.Logger
}

func NewSubjectService(store *repository.Store, log *zap.Logger) *SubjectService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SubjectService{store: store, log: log.Named("subjects")}
}

func (s *SubjectService) Create(ctx context.Context, employeeCode, displayName string) (*models.Subject, error) {
	employeeCode = strings.TrimSpace(employeeCode)
	displayName = strings.TrimSpace(displayName)
	if employeeCode == "" || displayName == "" {
		return nil, apperrors.ErrInvalidInput.Withf("employee code and display name are required")
	}
	subject := &models.Subject{EmployeeCode: employeeCode, DisplayName: displayName}
	if err := s.store.Subjects.Create(ctx, subject); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.ErrDuplicateEmployeeCode.Withf("employee code %s already registered", employeeCode)
		}
		return nil, err
	}
	s.log.Info("subject created", zap.Uint("subject_id", subject.ID), zap.String("employee_code", employeeCode))
	return subject, nil
}

func (s *SubjectService) Get(ctx context.Context, id uint) (*models.Subject, error) {
	return requireSubject(ctx, s.store, id)
}

// List returns every subject ordered naturally by employee code (E-2 before E-10).
func (s *SubjectService) List(ctx context.Context) ([]models.Subject, error) {
	subjects, err := s.store.Subjects.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(subjects, func(i, j int) bool {
		return natsort.Compare(subjects[i].EmployeeCode, subjects[j].EmployeeCode)
	})
	return subjects, nil
}
