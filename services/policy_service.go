package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/camden-git/attendancebackend/attendance"
	"github.com/camden-git/attendancebackend/models"
	"github.com/camden-git/attendancebackend/repository"
)

// PolicyService manages schedule policy versions. Activating a version never rewrites
// existing records; use AttendanceService.Recompute for that.
type PolicyService struct {
	store *repository.Store
	log   *zap.Logger
	now   func() time.Time
}

func NewPolicyService(store *repository.Store, log *zap.Logger) *PolicyService {
	if log == nil {
		log = zap.NewNop()
	}
	return &PolicyService{store: store, log: log.Named("policy"), now: time.Now}
}

// Active returns the version in force now.
func (s *PolicyService) Active(ctx context.Context) (*models.SchedulePolicy, error) {
	return policyAt(ctx, s.store, s.now())
}

// Activate validates and stores a new version. A zero EffectiveFrom means now.
func (s *PolicyService) Activate(ctx context.Context, policy models.SchedulePolicy, actor uint) (*models.SchedulePolicy, error) {
	if policy.Timezone == "" {
		policy.Timezone = "UTC"
	}
	if err := attendance.ValidatePolicy(&policy); err != nil {
		return nil, err
	}
	if policy.EffectiveFrom.IsZero() {
		policy.EffectiveFrom = s.now()
	}
	if actor != 0 {
		policy.CreatedBy = &actor
	}
	if err := s.store.Policies.Activate(ctx, &policy); err != nil {
		return nil, err
	}
	s.log.Info("schedule policy activated",
		zap.Uint("policy_id", policy.ID),
		zap.Time("effective_from", policy.EffectiveFrom),
		zap.String("timezone", policy.Timezone),
	)
	return &policy, nil
}

func (s *PolicyService) History(ctx context.Context) ([]models.SchedulePolicy, error) {
	return s.store.Policies.ListAll(ctx)
}

// SeedDefault stores the default policy, effective from the Unix epoch, when no
// version exists yet. It reports whether a version was created.
func (s *PolicyService) SeedDefault(ctx context.Context) (bool, error) {
	n, err := s.store.Policies.Count(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	policy := models.DefaultSchedulePolicy()
	policy.EffectiveFrom = time.Unix(0, 0).UTC()
	if err := s.store.Policies.Activate(ctx, &policy); err != nil {
		return false, err
	}
	s.log.Info("seeded default schedule policy", zap.Uint("policy_id", policy.ID))
	return true, nil
}
