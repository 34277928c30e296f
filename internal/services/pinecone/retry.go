// File: internal/services/pinecone/retry.go
package pinecone

import (
	"context"
	"errors"
	"time"
)

// maxBackoff caps the doubling delay between attempts.
const maxBackoff = 10 * time.Second

// RetryService bounds every index call by Config.Timeout and retries failures
// with exponential backoff starting at Config.RetryDelay.
type RetryService struct {
	config *Config
	logger Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewRetryService(config *Config, logger Logger) *RetryService {
	return &RetryService{config: config, logger: logger, sleep: sleepContext}
}

// Do runs call for the named operation. A cancelled caller context stops the
// loop at once. Running out of time yields a "timeout" error and running out
// of attempts a "retry" error, both wrapping the last failure.
func (r *RetryService) Do(ctx context.Context, operation string, call func(ctx context.Context) error) error {
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	var lastErr error
	attempts := r.config.MaxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		err := call(ctx)
		if err == nil {
			if attempt > 1 {
				r.logger.Info("pinecone call recovered", "operation", operation, "attempts", attempt)
			}
			return nil
		}
		lastErr = err

		switch {
		case errors.Is(parent.Err(), context.Canceled):
			return NewOperationError(operation+" cancelled", parent.Err())
		case ctx.Err() != nil:
			return NewTimeoutError(operation+" timed out", lastErr)
		case attempt == attempts:
			continue
		}

		delay := backoff(r.config.RetryDelay, attempt)
		r.logger.Warn("pinecone call failed, retrying",
			"operation", operation, "attempt", attempt, "delay", delay, "error", err)
		if err := r.sleep(ctx, delay); err != nil {
			return NewTimeoutError(operation+" timed out waiting to retry", lastErr)
		}
	}

	r.logger.Error("pinecone call failed", "operation", operation, "attempts", attempts, "error", lastErr)
	return NewRetryError(operation+" failed after all retries", lastErr)
}

func backoff(base time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt && d < maxBackoff; i++ {
		d *= 2
	}
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
