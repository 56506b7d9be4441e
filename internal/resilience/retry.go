package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/klhsieh/punchd/internal/metrics"
)

// Config defines retry behavior for one logical operation.
type Config struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	BackoffBase float64       `yaml:"backoff_base"`
	Jitter      bool          `yaml:"jitter"`
}

// DefaultConfig provides sensible defaults for driving a flaky remote page.
var DefaultConfig = Config{
	MaxAttempts: 3,
	BaseDelay:   1 * time.Second,
	MaxDelay:    30 * time.Second,
	BackoffBase: 2.0,
	Jitter:      true,
}

// Do executes op with exponential backoff. Terminal errors abort
// immediately; transient errors are retried up to MaxAttempts. The last
// error is always surfaced to the caller, wrapped with the attempt count.
func Do(ctx context.Context, name string, cfg Config, op func(context.Context) error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				slog.Info("Operation recovered", "op", name, "attempt", attempt)
			}
			return nil
		}

		lastErr = err
		metrics.RetryAttempts.WithLabelValues(name).Inc()

		// Classify before computing any delay
		if Classify(err) == CategoryTerminal {
			slog.Error("Terminal error, not retrying", "op", name, "attempt", attempt, "error", err)
			return err
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		delay := backoffDelay(attempt, cfg)
		slog.Warn("Attempt failed, backing off",
			"op", name,
			"attempt", attempt,
			"max_attempts", cfg.MaxAttempts,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", name, cfg.MaxAttempts, lastErr)
}

// backoffDelay computes the sleep before the attempt following the given
// failed attempt: min(MaxDelay, BaseDelay * BackoffBase^(attempt-1)),
// optionally jittered by ±25% to avoid synchronized retry storms.
func backoffDelay(attempt int, cfg Config) time.Duration {
	base := cfg.BackoffBase
	if base < 1 {
		base = 1
	}

	delay := float64(cfg.BaseDelay) * math.Pow(base, float64(attempt-1))
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}

	if cfg.Jitter {
		delay += (rand.Float64()*0.5 - 0.25) * delay
	}
	if delay < 0 {
		delay = 0
	}

	return time.Duration(delay)
}
