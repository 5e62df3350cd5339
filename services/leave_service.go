package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/camden-git/attendancebackend/apperrors"
	"github.com/camden-git/attendancebackend/models"
	"github.com/camden-git/attendancebackend/realtime"
	"github.com/camden-git/attendancebackend/repository"
)

// LeaveService runs the leave request workflow: pending, then approved, rejected or
// cancelled. Approving or cancelling an approved leave re-derives the affected records.
type LeaveService struct {
	store      *repository.Store
	attendance *AttendanceService
	publisher  realtime.Publisher
	log        *zap.Logger
	now        func() time.Time
}

func NewLeaveService(store *repository.Store, attendanceService *AttendanceService, publisher realtime.Publisher, log *zap.Logger) *LeaveService {
	if log == nil {
		log = zap.NewNop()
	}
	return &LeaveService{
		store:      store,
		attendance: attendanceService,
		publisher:  publisher,
		log:        log.Named("leave"),
		now:        time.Now,
	}
}

// LeaveInput is a new leave request.
type LeaveInput struct {
	SubjectID uint
	Type      models.LeaveType
	StartDay  string
	EndDay    string
	IsHalfDay bool
	Reason    string
}

func (s *LeaveService) Create(ctx context.Context, in LeaveInput) (*models.LeaveRequest, error) {
	if !in.Type.Valid() {
		return nil, apperrors.ErrInvalidInput.Withf("unknown leave type %q", in.Type)
	}
	if in.EndDay == "" {
		in.EndDay = in.StartDay
	}
	if err := validateRange(in.StartDay, in.EndDay); err != nil {
		return nil, err
	}
	if in.IsHalfDay && in.StartDay != in.EndDay {
		return nil, apperrors.ErrInvalidInput.Withf("a half-day leave must start and end on the same day")
	}
	if _, err := requireSubject(ctx, s.store, in.SubjectID); err != nil {
		return nil, err
	}

	leave := &models.LeaveRequest{
		SubjectID: in.SubjectID,
		Type:      in.Type,
		StartDay:  in.StartDay,
		EndDay:    in.EndDay,
		IsHalfDay: in.IsHalfDay,
		Reason:    in.Reason,
		Status:    models.LeavePending,
	}
	if err := s.store.Leaves.Create(ctx, leave); err != nil {
		return nil, err
	}
	s.log.Info("leave requested",
		zap.String("leave_id", leave.ID),
		zap.Uint("subject_id", leave.SubjectID),
		zap.String("type", string(leave.Type)),
		zap.String("start", leave.StartDay),
		zap.String("end", leave.EndDay),
	)
	return leave, nil
}

func (s *LeaveService) Get(ctx context.Context, id string) (*models.LeaveRequest, error) {
	leave, err := s.store.Leaves.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, apperrors.ErrLeaveNotFound)
	}
	return leave, nil
}

// Approve approves a pending request and re-derives the records it covers.
func (s *LeaveService) Approve(ctx context.Context, id string, approver uint) (*models.LeaveRequest, error) {
	if approver == 0 {
		return nil, apperrors.ErrInvalidInput.Withf("approver is required")
	}
	return s.transition(ctx, id, func(leave *models.LeaveRequest) error {
		if leave.Status != models.LeavePending {
			return apperrors.ErrInvalidLeaveTransition.Withf("cannot approve a %s request", leave.Status)
		}
		now := s.now().UTC()
		leave.Status = models.LeaveApproved
		leave.ApprovedBy = &approver
		leave.ApprovalDate = &now
		return nil
	})
}

// Reject rejects a pending request.
func (s *LeaveService) Reject(ctx context.Context, id string, approver uint, reason string) (*models.LeaveRequest, error) {
	if approver == 0 {
		return nil, apperrors.ErrInvalidInput.Withf("approver is required")
	}
	return s.transition(ctx, id, func(leave *models.LeaveRequest) error {
		if leave.Status != models.LeavePending {
			return apperrors.ErrInvalidLeaveTransition.Withf("cannot reject a %s request", leave.Status)
		}
		now := s.now().UTC()
		leave.Status = models.LeaveRejected
		leave.ApprovedBy = &approver
		leave.ApprovalDate = &now
		leave.RejectionReason = reason
		return nil
	})
}

// Cancel withdraws a pending or approved request.
func (s *LeaveService) Cancel(ctx context.Context, id string) (*models.LeaveRequest, error) {
	return s.transition(ctx, id, func(leave *models.LeaveRequest) error {
		if leave.Status != models.LeavePending && leave.Status != models.LeaveApproved {
			return apperrors.ErrInvalidLeaveTransition.Withf("cannot cancel a %s request", leave.Status)
		}
		leave.Status = models.LeaveCancelled
		return nil
	})
}

// transition applies a status change and, when it adds or removes an approved leave,
// re-derives the covered records in the same transaction under the subject lock. A failed
// re-derivation leaves the request unchanged.
func (s *LeaveService) transition(ctx context.Context, id string, apply func(*models.LeaveRequest) error) (*models.LeaveRequest, error) {
	current, err := s.store.Leaves.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, apperrors.ErrLeaveNotFound)
	}
	unlock := s.attendance.locks.Lock(current.SubjectID)
	defer unlock()

	var (
		leave   *models.LeaveRequest
		changed int
	)
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		current, err := tx.Leaves.GetByID(ctx, id)
		if err != nil {
			return notFound(err, apperrors.ErrLeaveNotFound)
		}
		wasApproved := current.Status == models.LeaveApproved
		if err := apply(current); err != nil {
			return err
		}
		if err := tx.Leaves.Update(ctx, current); err != nil {
			return err
		}
		if wasApproved || current.Status == models.LeaveApproved {
			changed, err = s.attendance.refreshLeaveIn(ctx, tx, current.SubjectID, current.StartDay, current.EndDay)
			if err != nil {
				return fmt.Errorf("failed to re-derive attendance for leave %s: %w", current.ID, err)
			}
		}
		leave = current
		return nil
	})
	if err != nil {
		logRejection(s.log, "leave transition failed", err, zap.String("leave_id", id))
		return nil, err
	}

	s.log.Info("leave status changed",
		zap.String("leave_id", leave.ID),
		zap.String("status", string(leave.Status)),
		zap.Int("records_rederived", changed),
	)
	ev := realtime.NewEvent(realtime.EventLeave)
	ev.SubjectID = leave.SubjectID
	ev.Status = string(leave.Status)
	ev.Extra = map[string]interface{}{"leave_id": leave.ID, "start": leave.StartDay, "end": leave.EndDay}
	publish(ctx, s.publisher, s.log, ev)
	return leave, nil
}

// List returns leave requests, optionally for one subject and status.
func (s *LeaveService) List(ctx context.Context, subjectID *uint, status models.LeaveStatus) ([]models.LeaveRequest, error) {
	return s.store.Leaves.List(ctx, subjectID, status)
}
