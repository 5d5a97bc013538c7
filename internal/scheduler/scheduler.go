// Package scheduler runs the periodic provider refresh on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "planview/internal/log"
)

// Task is one step of a refresh cycle.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Scheduler runs its tasks in order on every tick of a cron spec. A cycle
// still running when the next tick fires causes that tick to be skipped.
type Scheduler struct {
	spec  string
	loc   *time.Location
	tasks []Task
}

// New validates spec (standard five-field cron or a descriptor such as
// "@every 5m") and returns a scheduler for tasks.
func New(spec string, loc *time.Location, tasks ...Task) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("scheduler: invalid refresh spec %q: %w", spec, err)
	}
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{spec: spec, loc: loc, tasks: tasks}, nil
}

// RunOnce runs every task once. A failing task does not stop the ones after
// it; all failures are returned joined.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var errs []error
	for _, t := range s.tasks {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		if err := t.Run(ctx); err != nil {
			appLog.Error("scheduled task failed", err, "task", t.Name)
			errs = append(errs, fmt.Errorf("%s: %w", t.Name, err))
			continue
		}
		appLog.Debug("scheduled task done", "task", t.Name, "took", time.Since(start).Round(time.Millisecond))
	}
	return errors.Join(errs...)
}

// Run starts the cron loop and blocks until ctx is cancelled. It waits for a
// cycle in progress to finish before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	logger := cronLogger{}
	c := cron.New(
		cron.WithLocation(s.loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(s.spec, func() { _ = s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	appLog.Info("scheduler started", "spec", s.spec, "tasks", len(s.tasks))
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	appLog.Info("scheduler stopped")
	return nil
}

// cronLogger forwards cron's own logging to appLog.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...any) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...any) {
	appLog.Error("cron: "+msg, err, kv...)
}
