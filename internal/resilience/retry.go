package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

const (
	defaultRetryAttempts  = 3
	defaultInitialBackoff = 500 * time.Millisecond
	defaultMaxBackoff     = 30 * time.Second
	defaultMultiplier     = 2.0
	defaultJitterFraction = 0.25
)

// RetryConfig shapes the exponential backoff used around unreliable
// transports. The zero value is usable; unset fields take the defaults
// from DefaultRetryConfig.
type RetryConfig struct {
	// MaxAttempts counts the first try too, so 1 disables retrying.
	MaxAttempts int

	// InitialBackoff is the pause before the first retry. Each further
	// retry multiplies it by Multiplier, capped at MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64

	// JitterFraction spreads each pause by up to the given fraction in
	// either direction, so parallel transfers against the same server
	// do not reconnect in lockstep.
	JitterFraction float64

	// OnRetry observes each failed attempt right before the pause.
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig suits short staging transfers: three attempts
// starting from a half-second pause.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    defaultRetryAttempts,
		InitialBackoff: defaultInitialBackoff,
		MaxBackoff:     defaultMaxBackoff,
		Multiplier:     defaultMultiplier,
		JitterFraction: defaultJitterFraction,
	}
}

// Do runs fn until it succeeds, the error is permanent, ctx ends, or
// the attempts run out. Only errors marked transient (see IsTransient)
// are retried; the last error comes back unwrapped so callers can
// still inspect it.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	cfg = cfg.withDefaults()

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !IsTransient(err) || attempt >= cfg.MaxAttempts {
			return err
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}
		if !sleep(ctx, cfg.backoff(attempt)) {
			return err
		}
	}
}

func (cfg RetryConfig) withDefaults() RetryConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultRetryAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = defaultMultiplier
	}
	if cfg.JitterFraction < 0 {
		cfg.JitterFraction = 0
	}
	return cfg
}

// backoff computes the pause after the given 1-based attempt.
func (cfg RetryConfig) backoff(attempt int) time.Duration {
	d := float64(cfg.InitialBackoff) * math.Pow(cfg.Multiplier, float64(attempt-1))
	d = math.Min(d, float64(cfg.MaxBackoff))
	if cfg.JitterFraction > 0 {
		d += d * cfg.JitterFraction * (2*rand.Float64() - 1)
	}
	return time.Duration(math.Max(d, 0))
}

// sleep waits for d unless ctx ends first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// RetryLogger returns an OnRetry hook that reports attempts through the
// global logger, tagged with the service and operation being retried.
func RetryLogger(service, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying operation",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
