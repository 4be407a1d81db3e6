package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wonny/valuescreen/pkg/logger"
)

// Job is one scheduled unit of work. A returned error is logged, never
// fatal; the schedule keeps running.
type Job func(ctx context.Context) error

// Scheduler runs named jobs on cron expressions. Used by the refresh
// command to re-run screens on a cadence without an external cron daemon.
type Scheduler struct {
	cron    *cron.Cron
	logger  *logger.Logger
	timeout time.Duration
}

func New(log *logger.Logger, jobTimeout time.Duration) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		logger:  log,
		timeout: jobTimeout,
	}
}

// Add registers a job under a cron spec (standard five-field syntax).
func (s *Scheduler) Add(spec, name string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.runJob(name, job)
	})
	if err != nil {
		return fmt.Errorf("add job %s with spec %q: %w", name, spec, err)
	}
	s.logger.WithFields(map[string]interface{}{
		"job":  name,
		"spec": spec,
	}).Info("job scheduled")
	return nil
}

func (s *Scheduler) runJob(name string, job Job) {
	ctx := context.Background()
	cancel := func() {}
	if s.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
	}
	defer cancel()

	start := time.Now()
	s.logger.WithField("job", name).Info("job started")
	if err := job(ctx); err != nil {
		s.logger.WithError(err).WithFields(map[string]interface{}{
			"job":      name,
			"duration": time.Since(start).String(),
		}).Error("job failed")
		return
	}
	s.logger.WithFields(map[string]interface{}{
		"job":      name,
		"duration": time.Since(start).String(),
	}).Info("job finished")
}

// Jobs reports how many jobs are registered.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

// Start begins dispatching in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started")
}

// Stop halts dispatching and waits for running jobs to finish or the
// context to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop().Done()
	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}
