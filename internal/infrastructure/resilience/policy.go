package resilience

import (
	"log/slog"
	"time"
)

// BackoffStrategy selects how the wait between attempts grows.
type BackoffStrategy string

const (
	// BackoffExponential multiplies the previous wait by RetryMultiplier.
	BackoffExponential BackoffStrategy = "exponential"
	// BackoffLinear waits RetryInitialBackoff times the attempt number.
	BackoffLinear BackoffStrategy = "linear"
)

type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64
	RetryStrategy       BackoffStrategy

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32

	// Logger receives retry and breaker events; nil means slog.Default().
	Logger *slog.Logger
	// OnBreakerChange, when set, is told whenever an operation's breaker
	// opens or leaves the open state.
	OnBreakerChange func(operation string, open bool)
}

func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 100 * time.Millisecond,
		RetryMaxBackoff:     400 * time.Millisecond,
		RetryMultiplier:     2.0,
		RetryStrategy:       BackoffExponential,

		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	if out.RetryMaxAttempts <= 0 {
		out.RetryMaxAttempts = def.RetryMaxAttempts
	}
	if out.RetryInitialBackoff <= 0 {
		out.RetryInitialBackoff = def.RetryInitialBackoff
	}
	if out.RetryMaxBackoff <= 0 {
		out.RetryMaxBackoff = def.RetryMaxBackoff
	}
	if out.RetryMaxBackoff < out.RetryInitialBackoff {
		out.RetryMaxBackoff = out.RetryInitialBackoff
	}
	if out.RetryMultiplier < 1.0 {
		out.RetryMultiplier = def.RetryMultiplier
	}
	if out.RetryStrategy != BackoffLinear {
		out.RetryStrategy = BackoffExponential
	}

	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerOpenTimeout <= 0 {
		out.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if out.BreakerHalfOpenMaxCalls == 0 {
		out.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}

	return out
}

// delayBefore returns the pause preceding attempt n (n >= 2), capped at
// RetryMaxBackoff.
func (c Config) delayBefore(n int) time.Duration {
	if n < 2 {
		return 0
	}
	var wait time.Duration
	if c.RetryStrategy == BackoffLinear {
		wait = c.RetryInitialBackoff * time.Duration(n-1)
	} else {
		wait = c.RetryInitialBackoff
		for i := 2; i < n && wait < c.RetryMaxBackoff; i++ {
			wait = time.Duration(float64(wait) * c.RetryMultiplier)
		}
	}
	return min(wait, c.RetryMaxBackoff)
}

// EmbeddingConfig is the retry policy for query embeddings: three attempts
// waiting attempt × 1s between them.
func EmbeddingConfig() Config {
	cfg := DefaultConfig()
	cfg.RetryInitialBackoff = time.Second
	cfg.RetryMaxBackoff = 5 * time.Second
	cfg.RetryStrategy = BackoffLinear
	return cfg
}

// NATSRequestConfig retries a search request once when no worker answered or
// the connection dropped. Waits stay short because the caller holds a budget.
func NATSRequestConfig() Config {
	cfg := DefaultConfig()
	cfg.RetryMaxAttempts = 2
	cfg.RetryInitialBackoff = 250 * time.Millisecond
	cfg.RetryMaxBackoff = 250 * time.Millisecond
	cfg.BreakerMinRequests = 5
	return cfg
}
