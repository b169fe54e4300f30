package scheduled

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andreyxaxa/order-relay/internal/entity"
	"github.com/andreyxaxa/order-relay/pkg/backoff"
	"github.com/andreyxaxa/order-relay/pkg/logger"
	"github.com/andreyxaxa/order-relay/pkg/metrics"
)

const (
	_defaultInterval         = 60 * time.Minute
	_defaultMaxRetryAttempts = 3
	_defaultRetryDelay       = 30 * time.Second
	_defaultMaxRetryDelay    = 10 * time.Minute
	_defaultInitialDelay     = 10 * time.Second
	_defaultCheckTimeout     = 10 * time.Second
)

type (
	// Job is one unit of scheduled work.
	Job interface {
		Name() string
		Run(ctx context.Context) entity.RunResult
	}

	AvailabilityChecker interface {
		Available(ctx context.Context) bool
	}
)

// Worker runs a Job periodically. Each cycle retries the job with capped
// exponential backoff; consecutive failed cycles stretch the interval to
// the next cycle the same way. The failure count lives in memory only.
type Worker struct {
	job     Job
	checker AvailabilityChecker
	logger  logger.Interface

	interval         time.Duration
	initialDelay     time.Duration
	maxRetryAttempts int
	retryDelay       time.Duration
	maxRetryDelay    time.Duration
	continueOnError  bool
	checkTimeout     time.Duration

	consecutiveFailures atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started atomic.Bool
}

func New(job Job, l logger.Interface, opts ...Option) *Worker {
	w := &Worker{
		job:              job,
		logger:           l,
		interval:         _defaultInterval,
		initialDelay:     _defaultInitialDelay,
		maxRetryAttempts: _defaultMaxRetryAttempts,
		retryDelay:       _defaultRetryDelay,
		maxRetryDelay:    _defaultMaxRetryDelay,
		continueOnError:  true,
		checkTimeout:     _defaultCheckTimeout,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

func (w *Worker) Start(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return fmt.Errorf("ScheduledWorker - Start - %s already started", w.job.Name())
	}

	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.run()

	return nil
}

func (w *Worker) run() {
	defer w.wg.Done()

	name := w.job.Name()

	if !backoff.Sleep(w.ctx, w.initialDelay) {
		return
	}

	for {
		ok := w.runCycle()
		if w.ctx.Err() != nil {
			return
		}

		if ok {
			w.consecutiveFailures.Store(0)
			metrics.ExportCyclesTotal.WithLabelValues(name, entity.Success.String()).Inc()
		} else {
			failures := w.consecutiveFailures.Add(1)
			metrics.ExportCyclesTotal.WithLabelValues(name, entity.Failed.String()).Inc()

			if !w.continueOnError {
				w.logger.Error("ScheduledWorker - %s - fatal: cycle failed and continueOnError is off, worker stopped", name)

				return
			}

			w.logger.Warn("ScheduledWorker - %s - cycle failed, consecutive failures: %d", name, failures)
		}

		if !backoff.Sleep(w.ctx, w.NextCycleDelay()) {
			return
		}
	}
}

// runCycle tries the job up to maxRetryAttempts times and reports whether
// one attempt succeeded.
func (w *Worker) runCycle() bool {
	for attempt := 1; attempt <= w.maxRetryAttempts; attempt++ {
		if w.ctx.Err() != nil {
			return false
		}

		result := w.attempt(attempt)
		if result == entity.Success {
			return true
		}

		if attempt == w.maxRetryAttempts {
			break
		}

		delay := w.AttemptDelay(attempt)
		w.logger.Info("ScheduledWorker - %s - attempt %d/%d %s, next attempt in %s",
			w.job.Name(), attempt, w.maxRetryAttempts, result, delay)

		if !backoff.Sleep(w.ctx, delay) {
			return false
		}
	}

	return false
}

func (w *Worker) attempt(n int) (result entity.RunResult) {
	name := w.job.Name()

	defer func() {
		if p := recover(); p != nil {
			w.logger.Error(fmt.Errorf("panic %v", p), "ScheduledWorker - %s - attempt %d", name, n)
			result = entity.Failed
		}
	}()

	if w.checker != nil {
		checkCtx, cancel := context.WithTimeout(w.ctx, w.checkTimeout)
		available := w.checker.Available(checkCtx)
		cancel()

		if !available {
			w.logger.Info("ScheduledWorker - %s - dependency unavailable, skipping attempt %d", name, n)

			return entity.Unavailable
		}
	}

	// the job is allowed to finish even if shutdown starts meanwhile
	return w.job.Run(context.WithoutCancel(w.ctx))
}

// AttemptDelay is the wait after inner attempt n: min(retryDelay*2^(n-1), maxRetryDelay).
func (w *Worker) AttemptDelay(n int) time.Duration {
	return backoff.Capped(w.retryDelay, n, w.maxRetryDelay)
}

// NextCycleDelay is the interval, extended by
// min(retryDelay*2^(k-1), maxRetryDelay) after k consecutive failed cycles.
func (w *Worker) NextCycleDelay() time.Duration {
	k := int(w.consecutiveFailures.Load())
	if k == 0 {
		return w.interval
	}

	return w.interval + backoff.Capped(w.retryDelay, k, w.maxRetryDelay)
}

func (w *Worker) ConsecutiveFailures() int64 {
	return w.consecutiveFailures.Load()
}

func (w *Worker) Shutdown(ctx context.Context) error {
	if !w.started.Load() {
		return nil
	}

	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})

	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("ScheduledWorker - Shutdown: %w", ctx.Err())
	}
}
