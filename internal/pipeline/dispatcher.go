package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Rashinban1988/spokenmaterial/internal/pipeline/logging"
)

// Dispatcher feeds pending files to the runner. It supports both
// dispatch strategies over the same entry point: a one-shot batch drain
// (RunOnce) and a periodic poll loop (Run). Claiming inside the runner
// keeps overlapping dispatchers from double-processing a file.
type Dispatcher struct {
	repo     Repository
	runner   *Runner
	logger   logging.Logger
	interval time.Duration
	workers  int

	wg sync.WaitGroup
}

// NewDispatcher creates a dispatcher polling at interval with a worker
// pool of the given size. Each worker owns exactly one file's run end
// to end.
func NewDispatcher(repo Repository, runner *Runner, logger logging.Logger, interval time.Duration, workers int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}

	return &Dispatcher{
		repo:     repo,
		runner:   runner,
		logger:   logger,
		interval: interval,
		workers:  workers,
	}
}

// RunOnce drains the current pending set through the worker pool and
// waits for all runs to finish. Returns an error if any file failed.
func (d *Dispatcher) RunOnce(ctx context.Context) error {
	ids, err := d.repo.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("list pending files: %w", err)
	}
	if len(ids) == 0 {
		d.logger.Debug("no pending files")
		return nil
	}

	d.logger.Info("dispatching pending files",
		logging.Int("count", len(ids)),
		logging.Int("workers", d.workers),
	)

	var failed atomic.Int64
	sem := make(chan struct{}, d.workers)

	for _, id := range ids {
		d.wg.Add(1)
		go func(fileID string) {
			defer d.wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			if err := d.runner.Process(ctx, fileID); err != nil {
				failed.Add(1)
			}
		}(id)
	}

	d.wg.Wait()

	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d files failed", n, len(ids))
	}
	return nil
}

// Run polls for pending files until the context is cancelled. Batch
// errors are logged, not returned: the loop keeps serving.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.logger.Info("dispatcher started",
		logging.Duration("poll_interval", d.interval),
		logging.Int("workers", d.workers),
	)

	for {
		if err := d.RunOnce(ctx); err != nil && ctx.Err() == nil {
			d.logger.Error("dispatch cycle finished with failures", err)
		}

		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopping, waiting for in-flight runs")
			d.wg.Wait()
			d.logger.Info("dispatcher stopped")
			return nil
		case <-ticker.C:
		}
	}
}
