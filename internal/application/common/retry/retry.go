package retry

import (
	"context"
	"errors"
	"fmt"
	"grepapp/internal/application/common/slogger"
	"math"
	"math/rand/v2"
	"time"
)

// RetryConfig defines retry behavior.
type RetryConfig struct {
	MaxRetries    int           `json:"max_retries"    mapstructure:"max_retries"`
	InitialDelay  time.Duration `json:"initial_delay"  mapstructure:"initial_delay"`
	MaxDelay      time.Duration `json:"max_delay"      mapstructure:"max_delay"`
	BackoffFactor float64       `json:"backoff_factor" mapstructure:"backoff_factor"`
	Jitter        bool          `json:"jitter"         mapstructure:"jitter"`
}

// DefaultRetryConfig returns a default retry configuration.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:    2,
		InitialDelay:  200 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	}
}

// Validate checks the configuration for values that would make backoff misbehave.
func (c *RetryConfig) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative, got %d", c.MaxRetries)
	}
	if c.InitialDelay < 0 || c.MaxDelay < 0 {
		return errors.New("retry delays must not be negative")
	}
	if c.BackoffFactor < 1 {
		return fmt.Errorf("backoff factor must be at least 1, got %v", c.BackoffFactor)
	}
	return nil
}

// RetryableOperation represents an operation that can be retried.
type RetryableOperation func(ctx context.Context) error

// RetryableChecker is an interface for custom retry logic.
// Implement this to provide custom error classification.
type RetryableChecker interface {
	IsRetryable(err error) bool
}

// CheckerFunc adapts a function to RetryableChecker.
type CheckerFunc func(err error) bool

// IsRetryable calls f(err).
func (f CheckerFunc) IsRetryable(err error) bool {
	return f(err)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option configures a RetryExecutor.
type Option func(*RetryExecutor)

// WithSleep replaces the wait between attempts. Tests use it to avoid real delays.
func WithSleep(sleep SleepFunc) Option {
	return func(r *RetryExecutor) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

// WithOnRetry registers a callback invoked before every retry attempt.
func WithOnRetry(fn func(ctx context.Context, attempt int, err error)) Option {
	return func(r *RetryExecutor) {
		r.onRetry = fn
	}
}

// RetryExecutor handles retry logic with exponential backoff.
type RetryExecutor struct {
	config           *RetryConfig
	retryableChecker RetryableChecker
	sleep            SleepFunc
	onRetry          func(ctx context.Context, attempt int, err error)
}

// NewRetryExecutor creates a retry executor. Only errors accepted by
// checker are retried.
func NewRetryExecutor(config *RetryConfig, checker RetryableChecker, opts ...Option) *RetryExecutor {
	if config == nil {
		config = DefaultRetryConfig()
	}
	r := &RetryExecutor{
		config:           config,
		retryableChecker: checker,
		sleep:            contextSleep,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Execute executes an operation with retry logic.
// When the retry budget is exhausted the last error is returned wrapped, so
// callers can still classify it with errors.As.
func (r *RetryExecutor) Execute(ctx context.Context, operation RetryableOperation) error {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.calculateDelay(attempt)
			slogger.Debug(ctx, "Retrying operation after delay", slogger.Fields3(
				"attempt", attempt,
				"max_retries", r.config.MaxRetries,
				"delay_ms", delay.Milliseconds(),
			))
			if r.onRetry != nil {
				r.onRetry(ctx, attempt, lastErr)
			}

			if err := r.sleep(ctx, delay); err != nil {
				return err
			}
		}

		err := operation(ctx)
		if err == nil {
			if attempt > 0 {
				slogger.Info(ctx, "Operation succeeded after retries", slogger.Fields{
					"attempt": attempt + 1,
				})
			}
			return nil
		}

		lastErr = err

		// Never retry once the caller has given up.
		if ctx.Err() != nil || !r.retryableChecker.IsRetryable(err) {
			slogger.Debug(ctx, "Error is not retryable", slogger.Fields{
				"error":   err.Error(),
				"attempt": attempt + 1,
			})
			return err
		}

		if attempt < r.config.MaxRetries {
			slogger.Info(ctx, "Operation failed, will retry", slogger.Fields3(
				"error", err.Error(),
				"attempt", attempt+1,
				"max_retries", r.config.MaxRetries,
			))
		}
	}

	if r.config.MaxRetries == 0 {
		return lastErr
	}
	return fmt.Errorf("operation failed after %d retries: %w", r.config.MaxRetries, lastErr)
}

// calculateDelay calculates the delay for a given attempt using exponential backoff.
func (r *RetryExecutor) calculateDelay(attempt int) time.Duration {
	delay := float64(r.config.InitialDelay) * math.Pow(r.config.BackoffFactor, float64(attempt-1))

	if delay > float64(r.config.MaxDelay) {
		delay = float64(r.config.MaxDelay)
	}

	// Add random jitter up to ±25% of the delay
	if r.config.Jitter {
		jitterRange := delay * 0.25
		delay += (rand.Float64() - 0.5) * 2 * jitterRange
	}

	return time.Duration(delay)
}

func contextSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
