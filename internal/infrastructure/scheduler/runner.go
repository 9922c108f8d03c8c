// Package scheduler runs the periodic billing sweeps: overdue status
// refresh, follow-up scheduling, reminder dispatch and stale follow-up
// reconciliation.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is one periodic sweep executed by the Runner.
type Task struct {
	// Name identifies the task in logs.
	Name string

	// Interval is the time between runs. Tasks with a zero or
	// negative interval are skipped.
	Interval time.Duration

	// RunOnStart runs the task once immediately when the runner
	// starts instead of waiting a full interval.
	RunOnStart bool

	// Run executes one pass of the sweep.
	Run func(ctx context.Context) error
}

// RunnerConfig holds runner configuration
type RunnerConfig struct {
	// JobTimeout bounds a single task run.
	JobTimeout time.Duration
}

// DefaultRunnerConfig returns default runner configuration
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		JobTimeout: 10 * time.Minute,
	}
}

// Runner executes a fixed set of periodic tasks, one goroutine per
// task. Runs of the same task never overlap; distinct tasks run
// independently.
type Runner struct {
	config RunnerConfig
	tasks  []Task
	logger *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewRunner creates a runner for the given tasks
func NewRunner(config RunnerConfig, tasks []Task, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = DefaultRunnerConfig().JobTimeout
	}
	return &Runner{
		config: config,
		tasks:  tasks,
		logger: logger,
	}
}

// Start starts one loop per task
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.isRunning {
		r.mu.Unlock()
		return nil
	}
	r.isRunning = true
	r.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	started := 0
	for _, task := range r.tasks {
		if task.Interval <= 0 || task.Run == nil {
			r.logger.Warn("Skipping task without interval", zap.String("task", task.Name))
			continue
		}
		r.wg.Add(1)
		go r.runLoop(ctx, task)
		started++
	}

	r.logger.Info("Scheduler started",
		zap.Int("tasks", started),
		zap.Duration("job_timeout", r.config.JobTimeout),
	)

	return nil
}

// Stop gracefully stops the runner, waiting for in-flight runs
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return nil
	}
	r.isRunning = false
	r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("Scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		r.logger.Warn("Scheduler stop timed out")
		return ctx.Err()
	}
}

// runLoop runs a single task on its interval until the context ends
func (r *Runner) runLoop(ctx context.Context, task Task) {
	defer r.wg.Done()

	if task.RunOnStart {
		r.runOnce(ctx, task)
	}

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("Task loop stopping", zap.String("task", task.Name))
			return
		case <-ticker.C:
			r.runOnce(ctx, task)
		}
	}
}

// runOnce executes one bounded pass of the task
func (r *Runner) runOnce(ctx context.Context, task Task) {
	runCtx, cancel := context.WithTimeout(ctx, r.config.JobTimeout)
	defer cancel()

	start := time.Now()
	if err := task.Run(runCtx); err != nil {
		r.logger.Error("Scheduled task failed",
			zap.String("task", task.Name),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return
	}

	r.logger.Debug("Scheduled task completed",
		zap.String("task", task.Name),
		zap.Duration("elapsed", time.Since(start)),
	)
}
