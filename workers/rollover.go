package workers

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/camden-git/attendancebackend/attendance"
	"github.com/camden-git/attendancebackend/models"
)

type JobQueuer interface {
	QueueJob(job DayJob) bool
}

// PolicySource resolves the policy in force, whose timezone decides when a day ends.
type PolicySource interface {
	Active(ctx context.Context) (*models.SchedulePolicy, error)
}

// RolloverScheduler queues finalization of the previous day once the active policy's
// timezone has moved past midnight.
type RolloverScheduler struct {
	queue    JobQueuer
	policies PolicySource
	interval time.Duration
	log      *zap.Logger
	now      func() time.Time

	mu   sync.Mutex
	last string
}

func NewRolloverScheduler(queue JobQueuer, policies PolicySource, interval time.Duration, log *zap.Logger) *RolloverScheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RolloverScheduler{
		queue:    queue,
		policies: policies,
		interval: interval,
		log:      log.Named("rollover"),
		now:      time.Now,
	}
}

// Tick queues finalization of the day before now, once per day. It returns the day
// queued, or "" when nothing was queued.
func (r *RolloverScheduler) Tick(ctx context.Context, now time.Time) string {
	policy, err := r.policies.Active(ctx)
	if err != nil {
		r.log.Warn("cannot resolve active policy for rollover", zap.Error(err))
		return ""
	}
	loc := policy.Location()
	today, err := attendance.ParseDay(attendance.DayKey(now, loc), loc)
	if err != nil {
		r.log.Error("failed to parse current day", zap.Error(err))
		return ""
	}
	yesterday := attendance.DayKey(today.AddDate(0, 0, -1), loc)

	r.mu.Lock()
	defer r.mu.Unlock()
	if yesterday == r.last {
		return ""
	}
	if !r.queue.QueueJob(DayJob{TaskType: TaskFinalize, Day: yesterday}) {
		return ""
	}
	r.last = yesterday
	r.log.Info("queued day finalization", zap.String("day", yesterday))
	return yesterday
}

// Run ticks immediately and then every interval until ctx is done.
func (r *RolloverScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.Tick(ctx, r.now())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Tick(ctx, r.now())
		}
	}
}
