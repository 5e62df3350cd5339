package workers

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/camden-git/attendancebackend/services"
)

// TaskType constants
const (
	TaskFinalize  = "finalize"
	TaskRecompute = "recompute"
)

type DayJob struct {
	TaskType  string
	Day       string // finalize
	SubjectID uint   // recompute
	From      string
	To        string
	PolicyID  uint // 0 re-derives each day with its own policy
}

func (j DayJob) key() string {
	if j.TaskType == TaskRecompute {
		return fmt.Sprintf("%s:%d:%s:%s:%d", j.TaskType, j.SubjectID, j.From, j.To, j.PolicyID)
	}
	return fmt.Sprintf("%s:%s", j.TaskType, j.Day)
}

// DayService is the part of the attendance service the processor drives.
type DayService interface {
	Finalize(ctx context.Context, day string) (services.FinalizeReport, error)
	Recompute(ctx context.Context, subjectID uint, from, to string, policyID uint) (int, error)
}

type DayProcessor struct {
	JobQueue chan DayJob
	Service  DayService
	Wg       sync.WaitGroup
	StopChan chan struct{}
	Pending  map[string]bool
	Mutex    sync.Mutex

	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewDayProcessor(svc DayService, log *zap.Logger, queueSize, numWorkers int) *DayProcessor {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	proc := &DayProcessor{
		JobQueue: make(chan DayJob, queueSize),
		Service:  svc,
		StopChan: make(chan struct{}),
		Pending:  make(map[string]bool),
		log:      log.Named("day_processor"),
		ctx:      ctx,
		cancel:   cancel,
	}
	proc.Wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go proc.worker(i)
	}
	proc.log.Info("started day processing workers", zap.Int("workers", numWorkers), zap.Int("queue_size", queueSize))
	return proc
}

func (dp *DayProcessor) worker(id int) {
	defer dp.Wg.Done()
	log := dp.log.With(zap.Int("worker", id))

	for {
		select {
		case job, ok := <-dp.JobQueue:
			if !ok {
				log.Debug("job queue closed")
				return
			}
			dp.process(log, job)

			dp.Mutex.Lock()
			delete(dp.Pending, job.key())
			dp.Mutex.Unlock()

		case <-dp.StopChan:
			log.Debug("stop signal received")
			return
		}
	}
}

func (dp *DayProcessor) process(log *zap.Logger, job DayJob) {
	switch job.TaskType {
	case TaskFinalize:
		report, err := dp.Service.Finalize(dp.ctx, job.Day)
		if err != nil {
			log.Error("finalize job failed", zap.String("day", job.Day), zap.Int("failed", report.Failed), zap.Error(err))
			return
		}
		log.Info("finalize job done", zap.String("day", job.Day), zap.Int("finalized", report.Finalized))
	case TaskRecompute:
		changed, err := dp.Service.Recompute(dp.ctx, job.SubjectID, job.From, job.To, job.PolicyID)
		if err != nil {
			log.Error("recompute job failed",
				zap.Uint("subject_id", job.SubjectID),
				zap.String("from", job.From),
				zap.String("to", job.To),
				zap.Error(err),
			)
			return
		}
		log.Info("recompute job done", zap.Uint("subject_id", job.SubjectID), zap.Int("changed", changed))
	default:
		log.Error("unknown task type", zap.String("task", job.TaskType))
	}
}

// QueueJob queues a job unless an identical one is already pending.
func (dp *DayProcessor) QueueJob(job DayJob) bool {
	pendingKey := job.key()

	dp.Mutex.Lock()
	if dp.Pending[pendingKey] {
		dp.Mutex.Unlock()
		return false
	}
	dp.Pending[pendingKey] = true
	dp.Mutex.Unlock()

	select {
	case dp.JobQueue <- job:
		dp.log.Debug("queued job", zap.String("key", pendingKey))
		return true
	default:
		dp.log.Warn("day job queue full", zap.String("key", pendingKey))
		dp.Mutex.Lock()
		delete(dp.Pending, pendingKey)
		dp.Mutex.Unlock()
		return false
	}
}

// PendingCount is the number of queued or running jobs.
func (dp *DayProcessor) PendingCount() int {
	dp.Mutex.Lock()
	defer dp.Mutex.Unlock()
	return len(dp.Pending)
}

// Stop waits for running jobs to finish; queued jobs are dropped.
func (dp *DayProcessor) Stop() {
	dp.log.Info("stopping day processing workers")
	close(dp.StopChan)
	dp.Wg.Wait()
	dp.cancel()
	dp.log.Info("all day processing workers stopped")
}
