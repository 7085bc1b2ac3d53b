package daemon

import (
	"context"
	"log"
	"time"
)

// Task is one scheduled unit of work.
type Task func(ctx context.Context) error

// Scheduler runs a task on a fixed interval until its context ends.
type Scheduler struct {
	name       string
	interval   time.Duration
	runOnStart bool
	task       Task
}

// NewScheduler creates a scheduler. With runOnStart the task also runs once
// immediately instead of waiting a full interval.
func NewScheduler(name string, interval time.Duration, runOnStart bool, task Task) *Scheduler {
	return &Scheduler{name: name, interval: interval, runOnStart: runOnStart, task: task}
}

// Run blocks until ctx is cancelled. Task errors are logged and the loop
// continues; a tick that fires while the task is still running is dropped.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Printf("[scheduler] %s every %s", s.name, s.interval)
	if s.runOnStart {
		s.runOnce(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[scheduler] %s stopped", s.name)
			return nil
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := s.task(ctx); err != nil && ctx.Err() == nil {
		log.Printf("[scheduler] %s failed: %v", s.name, err)
	}
}
