package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestSchedulerRunsJobsOnInterval(t *testing.T) {
	s := NewScheduler(zap.NewNop())

	var runs atomic.Int64
	s.Add(Job{
		Name:     "counter",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})
	s.Start()

	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()

	if runs.Load() < 3 {
		t.Errorf("job ran %d times, want at least 3", runs.Load())
	}
}

func TestSchedulerKeepsScheduleAfterError(t *testing.T) {
	s := NewScheduler(zap.NewNop())

	var runs atomic.Int64
	s.Add(Job{
		Name:     "flaky",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return errors.New("transient")
		},
	})
	s.Start()

	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()

	if runs.Load() < 2 {
		t.Errorf("failing job ran %d times, want at least 2", runs.Load())
	}
}

func TestSchedulerStopEndsJobs(t *testing.T) {
	s := NewScheduler(zap.NewNop())

	var runs atomic.Int64
	s.Add(Job{
		Name:     "stoppable",
		Interval: time.Millisecond,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})
	s.Start()
	time.Sleep(10 * time.Millisecond)
	s.Stop()

	after := runs.Load()
	time.Sleep(20 * time.Millisecond)
	if runs.Load() != after {
		t.Error("job kept running after Stop")
	}
}
