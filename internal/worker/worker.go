// Package worker runs periodic maintenance tasks such as pruning expired
// sessions.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/DukeRupert/notebook/internal/metrics"
)

type registration struct {
	task     Task
	interval time.Duration
}

// Worker runs registered tasks on their own tickers.
type Worker struct {
	tasks  []registration
	config Config
	logger *slog.Logger

	// Synchronization
	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once
	started  bool
}

// New creates a new Worker with the given configuration.
// The worker must be started with Start() and stopped with Stop().
func New(config Config, logger *slog.Logger) (*Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Worker{
		config: config,
		logger: logger,
		stopCh: make(chan struct{}),
	}, nil
}

// Register adds a task. A zero interval uses Config.Interval.
// Call this before Start().
func (w *Worker) Register(task Task, interval time.Duration) {
	if interval <= 0 {
		interval = w.config.Interval
	}
	for i, r := range w.tasks {
		if r.task.Name() == task.Name() {
			w.logger.Warn("Overwriting existing task", "task", task.Name())
			w.tasks[i] = registration{task: task, interval: interval}
			return
		}
	}
	w.tasks = append(w.tasks, registration{task: task, interval: interval})
	w.logger.Debug("Registered task", "task", task.Name(), "interval", interval)
}

// Start launches one goroutine per registered task.
func (w *Worker) Start(ctx context.Context) {
	w.started = true
	for _, r := range w.tasks {
		w.wg.Add(1)
		go w.runTask(ctx, r)
	}

	w.logger.Info("Worker started", "tasks", len(w.tasks))
}

// Stop signals all tasks to stop and waits for them to finish.
// It respects the configured ShutdownTimeout.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.logger.Info("Stopping worker...")
		close(w.stopCh)
	})
	if !w.started {
		return
	}

	// Wait for tasks with timeout
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("Worker stopped gracefully")
	case <-time.After(w.config.ShutdownTimeout):
		w.logger.Warn("Worker shutdown timeout exceeded, some tasks may still be running")
	}
}

// runTask is the loop for a single task. It runs until stopCh is closed,
// ctx is done, or the task returns a permanent error.
func (w *Worker) runTask(ctx context.Context, r registration) {
	defer w.wg.Done()

	logger := w.logger.With("task", r.task.Name())
	logger.Debug("Task loop started")

	if w.config.RunOnStart {
		if !w.runOnce(ctx, r.task, logger) {
			return
		}
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			logger.Debug("Task loop stopping")
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !w.runOnce(ctx, r.task, logger) {
				return
			}
		}
	}
}

// runOnce executes the task with a timeout context and records the outcome.
// It reports whether the task should keep being scheduled.
func (w *Worker) runOnce(ctx context.Context, task Task, logger *slog.Logger) bool {
	taskCtx, cancel := context.WithTimeout(ctx, w.config.TaskTimeout)
	defer cancel()

	start := time.Now()
	err := task.Run(taskCtx)
	if err == nil {
		metrics.JobCompleted(task.Name(), time.Since(start))
		return true
	}

	metrics.JobFailed(task.Name())
	if IsPermanent(err) {
		logger.Error("Task failed with permanent error, will not run again", "error", err)
		return false
	}
	logger.Error("Task failed", "error", err)
	return true
}
