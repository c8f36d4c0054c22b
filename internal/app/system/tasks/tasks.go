// internal/app/system/tasks/tasks.go

// Package tasks runs small periodic maintenance jobs on their own
// goroutines.
package tasks

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is one periodic task. Run errors are logged, not fatal; the job
// keeps its schedule.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler drives a set of jobs. Start launches one goroutine per job;
// Stop waits for all of them.
type Scheduler struct {
	jobs   []Job
	log    *zap.Logger
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewScheduler(logger *zap.Logger) *Scheduler {
	return &Scheduler{log: logger, stopCh: make(chan struct{})}
}

// Add registers a job. Call before Start.
func (s *Scheduler) Add(j Job) { s.jobs = append(s.jobs, j) }

// Start begins every registered job's loop.
func (s *Scheduler) Start() {
	for _, j := range s.jobs {
		s.wg.Add(1)
		go s.run(j)
		s.log.Info("background job started",
			zap.String("job", j.Name),
			zap.Duration("interval", j.Interval))
	}
}

// Stop signals all jobs to stop and waits for them to finish.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	s.log.Info("background jobs stopped")
}

func (s *Scheduler) run(j Job) {
	defer s.wg.Done()

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := j.Run(ctx)
			cancel()
			if err != nil {
				s.log.Error("background job failed",
					zap.String("job", j.Name), zap.Error(err))
			}
		}
	}
}
