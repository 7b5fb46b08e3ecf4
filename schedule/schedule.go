package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hupe1980/coordmesh/logging"
)

// Job is a single maintenance task. It receives a context that is cancelled
// when the scheduler stops and returns how many records it touched.
type Job func(ctx context.Context) (touched int, err error)

// Scheduler runs named jobs at fixed intervals on top of robfig/cron. It is
// not safe to add jobs after Start.
type Scheduler struct {
	cron   *cron.Cron
	logger logging.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

// New creates an idle scheduler. A nil logger is replaced with NoOpLogger.
func New(logger logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{cron: cron.New(), logger: logger, ctx: ctx, cancel: cancel}
}

// Every registers a job to run at the given interval. Failures are logged and
// retried on the next tick; a panicking job is recovered and reported as an
// error.
func (s *Scheduler) Every(interval time.Duration, name string, job Job) error {
	if interval <= 0 {
		return fmt.Errorf("schedule: interval for %q must be positive", name)
	}
	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		s.runJob(name, job)
	})
	if err != nil {
		return fmt.Errorf("schedule: register %q: %w", name, err)
	}
	return nil
}

func (s *Scheduler) runJob(name string, job Job) {
	start := time.Now()
	touched, err := func() (touched int, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("job %q panicked: %v", name, r)
			}
		}()
		return job(s.ctx)
	}()
	if err != nil {
		s.logger.Warn("maintenance job failed", "job", name, "touched", touched, "duration", time.Since(start), "error", err)
		return
	}
	s.logger.Debug("maintenance job completed", "job", name, "touched", touched, "duration", time.Since(start))
}

// Start begins ticking all registered jobs. Idempotent.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.cron.Start()
}

// Stop cancels the job context and waits for any in-flight job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		s.cancel()
		return
	}
	s.started = false
	s.cancel()
	<-s.cron.Stop().Done()
}
