package fault

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"
)

// RetryConfig configures exponential backoff for external calls.
type RetryConfig struct {
	MaxAttempts     int           // Total attempts, including the first
	BaseDelay       time.Duration // Delay before the second attempt
	MaxDelay        time.Duration // Upper bound on any single delay
	ExponentialBase float64       // Growth factor between attempts
	Jitter          bool          // Randomize each delay uniformly in [0.5, 1.5)x
}

// DefaultRetryConfig returns the defaults used for model and storage calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     3,
		BaseDelay:       500 * time.Millisecond,
		MaxDelay:        10 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
	}
}

// delay computes the backoff before attempt n (1-based: n=1 is the delay
// after the first failure).
func (c RetryConfig) delay(n int) time.Duration {
	d := float64(c.BaseDelay) * math.Pow(c.ExponentialBase, float64(n-1))
	if d > float64(c.MaxDelay) {
		d = float64(c.MaxDelay)
	}
	if c.Jitter {
		d *= 0.5 + rand.Float64()
		if d > float64(c.MaxDelay) {
			d = float64(c.MaxDelay)
		}
	}
	return time.Duration(d)
}

// Retry executes op under the backoff policy. Non-retryable errors fail
// immediately without consuming the remaining attempts. After MaxAttempts
// the last error is returned unchanged.
func Retry[T any](ctx context.Context, logger *slog.Logger, name string, cfg RetryConfig, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	start := time.Now()

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Debug("operation recovered",
					"op", name,
					"attempts", attempt,
					"elapsed", time.Since(start))
			}
			return result, nil
		}
		lastErr = err

		classified := Classify(err)
		if !classified.Retryable {
			logger.Debug("non-retryable error, failing fast",
				"op", name,
				"kind", classified.Kind,
				"attempt", attempt,
				"error", err)
			return zero, err
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		wait := cfg.delay(attempt)
		logger.Debug("retrying after error",
			"op", name,
			"kind", classified.Kind,
			"attempt", attempt,
			"delay", wait,
			"error", err)

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("%s: canceled during retry backoff: %w", name, ctx.Err())
		case <-time.After(wait):
		}
	}

	logger.Warn("retry attempts exhausted",
		"op", name,
		"attempts", cfg.MaxAttempts,
		"elapsed", time.Since(start),
		"error", lastErr)
	return zero, lastErr
}

// WithCleanup runs op and, only on failure, runs every cleanup in order.
// Cleanup failures are logged and skipped; the original operation error is
// always the one returned.
func WithCleanup[T any](ctx context.Context, logger *slog.Logger, op func(context.Context) (T, error), cleanups ...func(context.Context) error) (T, error) {
	if logger == nil {
		logger = slog.Default()
	}

	result, err := op(ctx)
	if err == nil {
		return result, nil
	}

	for i, cleanup := range cleanups {
		if cerr := cleanup(ctx); cerr != nil {
			logger.Warn("cleanup failed after operation error",
				"cleanup", i,
				"cleanup_error", cerr,
				"operation_error", err)
		}
	}

	var zero T
	return zero, err
}
