package retry

import (
	"context"
	"time"

	"github.com/marcelsud/storesync/failure"
	"github.com/rs/zerolog"
)

// SleepFunc suspends for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Engine runs operations with classified, exponential-backoff retries
type Engine struct {
	logger   zerolog.Logger
	classify func(error) failure.Classification
	sleep    SleepFunc
}

// Option configures an Engine
type Option func(*Engine)

// WithSleep replaces the timer-based sleep, mostly for tests
func WithSleep(fn SleepFunc) Option {
	return func(e *Engine) {
		e.sleep = fn
	}
}

// WithClassifier replaces failure.Classify
func WithClassifier(fn func(error) failure.Classification) Option {
	return func(e *Engine) {
		e.classify = fn
	}
}

// NewEngine creates an Engine logging to logger
func NewEngine(logger zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		logger:   logger,
		classify: failure.Classify,
		sleep:    Sleep,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run invokes op up to policy.MaxRetries+1 times. Non-retryable errors and the
// error of the final attempt are returned unchanged.
func (e *Engine) Run(ctx context.Context, rc Context, policy Policy, op func(ctx context.Context) error) error {
	policy = policy.withDefaults()

	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		log := e.logger.With().
			Str("operation", rc.OperationName).
			Str("correlation_id", rc.CorrelationID).
			Int("attempt", attempt).
			Int("max_retries", policy.MaxRetries).
			Logger()

		log.Debug().Fields(rc.Metadata).Msg("attempting operation")

		err := op(ctx)
		if err == nil {
			if attempt > 0 {
				log.Info().
					Dur("elapsed", time.Since(rc.StartedAt)).
					Msg("operation recovered after retry")
			}
			return nil
		}
		lastErr = err

		c := e.classify(err)
		event := log.Warn().
			Err(err).
			Str("kind", c.Kind.String()).
			Str("severity", c.Severity.String()).
			Bool("retryable", c.Retryable)
		if c.StatusCode > 0 {
			event = event.Int("status_code", c.StatusCode)
		}

		if !c.Retryable || attempt == policy.MaxRetries {
			event.Msg("operation failed, giving up")
			return lastErr
		}

		delay := policy.Delay(attempt, c.Kind)
		event.Dur("delay", delay).Msg("operation failed, retrying")

		if err := e.sleep(ctx, delay); err != nil {
			return lastErr
		}
	}

	return lastErr
}

// Do is the value-returning form of Engine.Run
func Do[T any](ctx context.Context, e *Engine, rc Context, policy Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := e.Run(ctx, rc, policy, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}

// Sleep waits for d unless ctx is cancelled first
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
