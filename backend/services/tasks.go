package services

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"learnplan/backend/utils"
)

// TaskRunner runs fire-and-forget work outside the request that triggered it. Each task
// gets its own timeout; errors and panics are logged and dropped.
type TaskRunner struct {
	log     *utils.Logger
	timeout time.Duration
	wg      sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func NewTaskRunner(log *utils.Logger, timeout time.Duration) *TaskRunner {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TaskRunner{log: log.With("service", "TaskRunner"), timeout: timeout}
}

// Go schedules fn. It returns false once the runner has been closed.
func (r *TaskRunner) Go(name string, fn func(ctx context.Context) error) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.log.Warn("task dropped, runner closed", "task", name)
		return false
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		if err := r.run(ctx, fn); err != nil {
			r.log.Warn("background task failed", "task", name, "error", err)
		}
	}()
	return true
}

func (r *TaskRunner) run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v\n%s", p, debug.Stack())
		}
	}()
	return fn(ctx)
}

// Wait blocks until every scheduled task has returned.
func (r *TaskRunner) Wait() {
	r.wg.Wait()
}

// Close stops accepting tasks and waits for running ones, bounded by ctx.
func (r *TaskRunner) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
