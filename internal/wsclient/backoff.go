package wsclient

import (
	"math"
	"time"

	"github.com/openclaw/dial-agent-go/internal/config"
)

// Backoff defines reconnect pacing.
type Backoff struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

func DefaultBackoff() Backoff {
	return Backoff{
		MaxAttempts: config.ReconnectMaxAttempts,
		BaseDelay:   config.ReconnectBaseDelay,
		MaxDelay:    config.ReconnectMaxDelay,
		Multiplier:  config.ReconnectMultiplier,
	}
}

// Delay returns the wait before the given 1-indexed attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return min(b.BaseDelay, b.MaxDelay)
	}
	delay := float64(b.BaseDelay) * math.Pow(b.Multiplier, float64(attempt-1))
	if delay > float64(b.MaxDelay) {
		return b.MaxDelay
	}
	return time.Duration(delay)
}

// ShouldRetry reports whether another attempt may be scheduled after attempts so far.
func (b Backoff) ShouldRetry(attempts int) bool {
	return attempts < b.MaxAttempts
}
