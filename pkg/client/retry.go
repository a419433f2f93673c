package client

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// InitialBackoff is the initial backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// RetryConfigForErrorClass returns the appropriate retry configuration for an error class.
func RetryConfigForErrorClass(errorClass ErrorClass) RetryConfig {
	switch errorClass {
	case ErrorClassServer:
		return RetryConfig{
			MaxAttempts:       3,
			InitialBackoff:    1 * time.Second,
			MaxBackoff:        10 * time.Second,
			BackoffMultiplier: 2.0,
		}
	case ErrorClassRateLimit:
		return RetryConfig{
			MaxAttempts:       3,
			InitialBackoff:    5 * time.Second,
			MaxBackoff:        60 * time.Second,
			BackoffMultiplier: 2.0,
		}
	case ErrorClassNetwork:
		return RetryConfig{
			MaxAttempts:       3,
			InitialBackoff:    2 * time.Second,
			MaxBackoff:        30 * time.Second,
			BackoffMultiplier: 2.0,
		}
	default:
		return DefaultRetryConfig()
	}
}

// scaled applies a client-wide override: maxAttempts replaces MaxAttempts
// when positive, and base rescales the backoffs so that the default 1s base
// maps to base while the per-class ratios are kept.
func (rc RetryConfig) scaled(maxAttempts int, base time.Duration) RetryConfig {
	if maxAttempts > 0 {
		rc.MaxAttempts = maxAttempts
	}
	if base > 0 {
		factor := float64(base) / float64(time.Second)
		rc.InitialBackoff = time.Duration(float64(rc.InitialBackoff) * factor)
		rc.MaxBackoff = time.Duration(float64(rc.MaxBackoff) * factor)
	}
	return rc
}

// retryAfterError lets an attempt ask for a specific wait, e.g. from a
// Retry-After header.
type retryAfterError interface {
	RetryAfter() time.Duration
}

// retryWithBackoff executes fn with exponential backoff. fn reports the class
// of its failure; the class picks the retry policy via policy. Context
// cancellation ends the wait early and jitter spreads out concurrent retries.
func retryWithBackoff(ctx context.Context, logger zerolog.Logger, policy func(ErrorClass) RetryConfig, fn func() (ErrorClass, error)) error {
	var (
		lastErr   error
		lastClass ErrorClass
	)

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrContextCancelled, err)
		}

		errorClass, err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Str("error_class", string(lastClass)).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		lastErr, lastClass = err, errorClass

		if !shouldRetry(errorClass) {
			return lastErr
		}

		config := policy(errorClass)
		if attempt >= config.MaxAttempts {
			retryExhaustedTotal.WithLabelValues(string(errorClass)).Inc()
			logger.Warn().
				Str("error_class", string(errorClass)).
				Int("max_attempts", config.MaxAttempts).
				Msg("Retry attempts exhausted")
			return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempt, lastErr)
		}

		backoff := backoffFor(config, attempt)
		var ra retryAfterError
		if errors.As(err, &ra) && ra.RetryAfter() > 0 {
			backoff = min(ra.RetryAfter(), config.MaxBackoff)
		}

		retriesTotal.WithLabelValues(string(errorClass)).Inc()
		retryBackoffSeconds.WithLabelValues(string(errorClass)).Observe(backoff.Seconds())

		logger.Debug().
			Str("error_class", string(errorClass)).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("Retrying request after backoff")

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Warn().
				Str("error_class", string(errorClass)).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-timer.C:
		}
	}
}

// backoffFor returns the jittered (±20%) wait after the given attempt.
func backoffFor(config RetryConfig, attempt int) time.Duration {
	backoff := float64(config.InitialBackoff)
	for i := 1; i < attempt; i++ {
		backoff *= config.BackoffMultiplier
	}
	if backoff > float64(config.MaxBackoff) {
		backoff = float64(config.MaxBackoff)
	}
	return time.Duration(backoff * (0.8 + rand.Float64()*0.4))
}
