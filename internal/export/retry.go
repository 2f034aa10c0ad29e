package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

var (
	errMaxAttemptsInvalid     = errors.New("maxAttempts must be greater than 0")
	errInitialIntervalInvalid = errors.New("initialInterval must be greater than 0")
	errMaxIntervalInvalid     = errors.New("maxInterval must be >= initialInterval")
	errMultiplierInvalid      = errors.New("multiplier must be >= 1.0")
)

// RetryConfig controls how RetryingSink retries failed puts.
type RetryConfig struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	UseJitter       bool
}

// DefaultRetryConfig returns three attempts starting at 200ms.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2.0,
		UseJitter:       true,
	}
}

// Validate checks that the policy terminates and never shrinks.
func (c RetryConfig) Validate() error {
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("%w, got %d", errMaxAttemptsInvalid, c.MaxAttempts)
	}
	if c.InitialInterval <= 0 {
		return fmt.Errorf("%w, got %v", errInitialIntervalInvalid, c.InitialInterval)
	}
	if c.MaxInterval < c.InitialInterval {
		return fmt.Errorf("%w, MaxInterval: %v, InitialInterval: %v", errMaxIntervalInvalid, c.MaxInterval, c.InitialInterval)
	}
	if c.Multiplier < 1.0 {
		return fmt.Errorf("%w, got %f", errMultiplierInvalid, c.Multiplier)
	}
	return nil
}

// ExponentialBackoff returns the delay before retry number attempt (1-based).
// With jitter the delay is drawn uniformly from [0, backoff].
func ExponentialBackoff(attempt int, cfg RetryConfig) time.Duration {
	if attempt <= 0 {
		return 0
	}

	backoff := cfg.InitialInterval
	for i := 1; i < attempt; i++ {
		backoff = time.Duration(float64(backoff) * cfg.Multiplier)
		if backoff > cfg.MaxInterval {
			backoff = cfg.MaxInterval
			break
		}
	}

	if cfg.UseJitter {
		jitterMs := rand.Int64N(backoff.Milliseconds() + 1) // #nosec G404 -- non-cryptographic jitter is appropriate here
		return time.Duration(jitterMs) * time.Millisecond
	}
	return backoff
}

// RetryingSink retries failed puts of the wrapped sink with exponential backoff.
// ErrEmptyName and context errors are returned without retrying.
type RetryingSink struct {
	next   Sink
	cfg    RetryConfig
	logger *slog.Logger
	sleep  func(context.Context, time.Duration) error
}

// NewRetryingSink wraps next. A nil logger selects slog.Default().
func NewRetryingSink(next Sink, cfg RetryConfig, logger *slog.Logger) (*RetryingSink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryingSink{
		next:   next,
		cfg:    cfg,
		logger: logger.With("component", "export"),
		sleep:  sleepContext,
	}, nil
}

// Put implements Sink.
func (r *RetryingSink) Put(ctx context.Context, name, contentType string, body []byte) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := ExponentialBackoff(attempt-1, r.cfg)
			r.logger.Warn("retrying export put",
				"name", name,
				"attempt", attempt,
				"delay", delay,
				"error", lastErr)
			if err := r.sleep(ctx, delay); err != nil {
				return "", fmt.Errorf("put %s cancelled: %w", name, errors.Join(err, lastErr))
			}
		}

		ref, err := r.next.Put(ctx, name, contentType, body)
		if err == nil {
			return ref, nil
		}
		if errors.Is(err, ErrEmptyName) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("put %s failed after %d attempts: %w", name, r.cfg.MaxAttempts, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
