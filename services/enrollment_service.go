package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/camden-git/attendancebackend/biometric"
	"github.com/camden-git/attendancebackend/locks"
	"github.com/camden-git/attendancebackend/models"
	"github.com/camden-git/attendancebackend/realtime"
	"github.com/camden-git/attendancebackend/repository"
)

// EnrollmentService manages a subject's template set. Every change runs in one
// transaction under the subject's lock, so demotion and promotion are never observed
// half-applied.
type EnrollmentService struct {
	store     *repository.Store
	locks     *locks.SubjectLocks
	publisher realtime.Publisher
	log       *zap.Logger
	now       func() time.Time
}

func NewEnrollmentService(store *repository.Store, subjectLocks *locks.SubjectLocks, publisher realtime.Publisher, log *zap.Logger) *EnrollmentService {
	if log == nil {
		log = zap.NewNop()
	}
	return &EnrollmentService{
		store:     store,
		locks:     subjectLocks,
		publisher: publisher,
		log:       log.Named("enrollment"),
		now:       time.Now,
	}
}

// EnrollResult is the new template plus the templates it demoted.
type EnrollResult struct {
	Template models.EnrollmentTemplate   `json:"template"`
	Demoted  []models.EnrollmentTemplate `json:"demoted,omitempty"`
}

// DeactivateResult is the retired template plus the successor promoted to primary, if any.
type DeactivateResult struct {
	Deactivated models.EnrollmentTemplate  `json:"deactivated"`
	Promoted    *models.EnrollmentTemplate `json:"promoted,omitempty"`
}

// EnrollmentOverview describes a subject's enrollment state.
type EnrollmentOverview struct {
	SubjectID   uint                        `json:"subject_id"`
	Status      biometric.EnrollmentStatus  `json:"status"`
	ActiveCount int                         `json:"active_count"`
	PrimaryID   string                      `json:"primary_id,omitempty"`
	Templates   []models.EnrollmentTemplate `json:"templates"`
}

func (s *EnrollmentService) Enroll(ctx context.Context, subjectID uint, req biometric.EnrollRequest) (*EnrollResult, error) {
	if req.At.IsZero() {
		req.At = s.now()
	}
	unlock := s.locks.Lock(subjectID)
	defer unlock()

	var result EnrollResult
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		subject, err := requireSubject(ctx, tx, subjectID)
		if err != nil {
			return err
		}
		set, err := loadTemplateSet(ctx, tx, subjectID)
		if err != nil {
			return err
		}

		created, demoted, err := set.Enroll(req)
		if err != nil {
			return err
		}
		for i := range demoted {
			if err := tx.Templates.UpdateFlags(ctx, &demoted[i]); err != nil {
				return err
			}
		}
		if err := tx.Templates.Create(ctx, &created); err != nil {
			return err
		}
		if err := syncEnrollment(ctx, tx, subject, set, req.At); err != nil {
			return err
		}
		result = EnrollResult{Template: created, Demoted: demoted}
		return nil
	})
	if err != nil {
		logRejection(s.log, "enrollment rejected", err, zap.Uint("subject_id", subjectID))
		return nil, err
	}

	s.log.Info("template enrolled",
		zap.Uint("subject_id", subjectID),
		zap.String("template_id", result.Template.ID),
		zap.Bool("primary", result.Template.IsPrimary),
		zap.Int("demoted", len(result.Demoted)),
	)
	ev := realtime.NewEvent(realtime.EventEnrollment)
	ev.SubjectID = subjectID
	ev.Action = "enroll"
	ev.Extra = map[string]interface{}{"template_id": result.Template.ID, "primary": result.Template.IsPrimary}
	publish(ctx, s.publisher, s.log, ev)
	return &result, nil
}

// Deactivate retires a template. The only active template is protected.
func (s *EnrollmentService) Deactivate(ctx context.Context, subjectID uint, templateID string) (*DeactivateResult, error) {
	unlock := s.locks.Lock(subjectID)
	defer unlock()

	var result DeactivateResult
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		subject, err := requireSubject(ctx, tx, subjectID)
		if err != nil {
			return err
		}
		set, err := loadTemplateSet(ctx, tx, subjectID)
		if err != nil {
			return err
		}

		at := s.now()
		deactivated, promoted, err := set.Deactivate(templateID, at)
		if err != nil {
			return err
		}
		if err := tx.Templates.UpdateFlags(ctx, &deactivated); err != nil {
			return err
		}
		if promoted != nil {
			if err := tx.Templates.UpdateFlags(ctx, promoted); err != nil {
				return err
			}
		}
		if err := syncEnrollment(ctx, tx, subject, set, at); err != nil {
			return err
		}
		result = DeactivateResult{Deactivated: deactivated, Promoted: promoted}
		return nil
	})
	if err != nil {
		logRejection(s.log, "deactivation rejected", err, zap.Uint("subject_id", subjectID), zap.String("template_id", templateID))
		return nil, err
	}

	fields := []zap.Field{zap.Uint("subject_id", subjectID), zap.String("template_id", templateID)}
	if result.Promoted != nil {
		fields = append(fields, zap.String("promoted_id", result.Promoted.ID))
	}
	s.log.Info("template deactivated", fields...)

	ev := realtime.NewEvent(realtime.EventEnrollment)
	ev.SubjectID = subjectID
	ev.Action = "deactivate"
	ev.Extra = map[string]interface{}{"template_id": templateID}
	publish(ctx, s.publisher, s.log, ev)
	return &result, nil
}

// Overview returns the subject's templates and enrollment status.
func (s *EnrollmentService) Overview(ctx context.Context, subjectID uint) (*EnrollmentOverview, error) {
	if _, err := requireSubject(ctx, s.store, subjectID); err != nil {
		return nil, err
	}
	set, err := loadTemplateSet(ctx, s.store, subjectID)
	if err != nil {
		return nil, err
	}
	overview := &EnrollmentOverview{
		SubjectID:   subjectID,
		Status:      set.Status(),
		ActiveCount: set.ActiveCount(),
		Templates:   set.Templates(),
	}
	if primary, ok := set.Primary(); ok {
		overview.PrimaryID = primary.ID
	}
	return overview, nil
}

func loadTemplateSet(ctx context.Context, store *repository.Store, subjectID uint) (*biometric.TemplateSet, error) {
	templates, err := store.Templates.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	return biometric.NewTemplateSet(subjectID, templates), nil
}

// syncEnrollment recomputes the subject's cached enrollment projection from the set.
func syncEnrollment(ctx context.Context, store *repository.Store, subject *models.Subject, set *biometric.TemplateSet, at time.Time) error {
	if err := set.CheckInvariant(); err != nil {
		return fmt.Errorf("template invariant violated: %w", err)
	}
	enrolled := set.Status() == biometric.Enrolled
	var enrolledAt *time.Time
	if enrolled {
		enrolledAt = subject.FaceEnrollmentDate
		if enrolledAt == nil {
			t := at.UTC()
			enrolledAt = &t
		}
	}
	return store.Subjects.SetEnrollment(ctx, subject.ID, enrolled, enrolledAt)
}
