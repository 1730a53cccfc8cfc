// Package resilience provides fault-tolerance primitives: exponential-backoff
// retry and a circuit breaker.
package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"
)

// RetryConfig controls the backoff schedule.
type RetryConfig struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64
}

// withDefaults fills zero fields with the standard schedule: three
// attempts starting at 100ms, doubling, capped at 10s, with 10% jitter.
func (cfg RetryConfig) withDefaults() RetryConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 10 * time.Second
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}
	if cfg.JitterFraction <= 0 {
		cfg.JitterFraction = 0.1
	}
	return cfg
}

// Retry runs fn up to cfg.MaxAttempts times, sleeping with exponential
// backoff and jitter between attempts. Context cancellation aborts the
// wait but never interrupts a running attempt.
func Retry(ctx context.Context, name string, cfg RetryConfig, fn func() error) error {
	cfg = cfg.withDefaults()
	log := slog.Default().With("component", "retry", "operation", name)

	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 1; ; attempt++ {
		if lastErr = fn(); lastErr == nil {
			if attempt > 1 {
				log.Info("succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if attempt == cfg.MaxAttempts {
			return fmt.Errorf("all %d attempts failed for %s: %w", cfg.MaxAttempts, name, lastErr)
		}

		log.Warn("operation failed, retrying",
			"attempt", attempt,
			"max_attempts", cfg.MaxAttempts,
			"error", lastErr,
			"next_delay", delay,
		)
		select {
		case <-time.After(jittered(delay, cfg.JitterFraction)):
		case <-ctx.Done():
			return fmt.Errorf("retry aborted during backoff: %w", ctx.Err())
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
}

// jittered spreads a delay by up to fraction in either direction, so
// retries from many instances do not land in lockstep.
func jittered(d time.Duration, fraction float64) time.Duration {
	spread := float64(d) * fraction * (2*rand.Float64() - 1)
	out := time.Duration(float64(d) + spread)
	if out < 0 {
		return d
	}
	return out
}
