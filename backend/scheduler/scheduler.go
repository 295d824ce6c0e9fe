// Package scheduler runs periodic maintenance of learning plans.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"learnplan/backend/services"
	"learnplan/backend/utils"

	"github.com/go-co-op/gocron"
)

// Cleaner is implemented by services.PlanService.
type Cleaner interface {
	CleanupStale(ctx context.Context, pendingAfter, retention time.Duration) (services.SweepResult, error)
}

type Options struct {
	Interval     time.Duration
	PendingAfter time.Duration
	Retention    time.Duration
	Timeout      time.Duration
}

// Scheduler sweeps interrupted and expired failed plans.
type Scheduler struct {
	scheduler *gocron.Scheduler
	cleaner   Cleaner
	opts      Options
	log       *utils.Logger
}

func New(cleaner Cleaner, opts Options, loc *time.Location, log *utils.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Hour
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Minute
	}
	s := gocron.NewScheduler(loc)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		cleaner:   cleaner,
		opts:      opts,
		log:       log.With("service", "Scheduler"),
	}
}

// Start schedules the sweep and runs it once right away.
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(s.opts.Interval).Do(s.sweep); err != nil {
		return fmt.Errorf("schedule plan sweep: %w", err)
	}
	s.scheduler.StartAsync()
	s.log.Info("scheduler started", "interval", s.opts.Interval)
	return nil
}

func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// RunOnce performs a single sweep synchronously.
func (s *Scheduler) RunOnce(ctx context.Context) (services.SweepResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	return s.cleaner.CleanupStale(ctx, s.opts.PendingAfter, s.opts.Retention)
}

func (s *Scheduler) sweep() {
	res, err := s.RunOnce(context.Background())
	if err != nil {
		s.log.Error("plan sweep failed", "error", err)
		return
	}
	if res.Interrupted > 0 || res.Deleted > 0 {
		s.log.Info("plan sweep done", "interrupted", res.Interrupted, "deleted", res.Deleted)
	}
}
