package scheduled

import "time"

type Option func(*Worker)

func Interval(d time.Duration) Option {
	return func(w *Worker) {
		w.interval = d
	}
}

func InitialDelay(d time.Duration) Option {
	return func(w *Worker) {
		w.initialDelay = d
	}
}

func MaxRetryAttempts(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.maxRetryAttempts = n
		}
	}
}

func RetryDelay(d time.Duration) Option {
	return func(w *Worker) {
		w.retryDelay = d
	}
}

func MaxRetryDelay(d time.Duration) Option {
	return func(w *Worker) {
		w.maxRetryDelay = d
	}
}

func ContinueOnError(ok bool) Option {
	return func(w *Worker) {
		w.continueOnError = ok
	}
}

// AvailabilityCheck runs checker before every attempt; an unavailable
// dependency skips the attempt instead of failing it.
func AvailabilityCheck(checker AvailabilityChecker, timeout time.Duration) Option {
	return func(w *Worker) {
		w.checker = checker
		w.checkTimeout = timeout
	}
}
