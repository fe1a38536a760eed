package retry

import (
	"math"
	"time"

	"github.com/marcelsud/storesync/failure"
)

const (
	defaultMaxRetries        = 3
	defaultBaseDelay         = 1000 * time.Millisecond
	defaultMaxDelay          = 30000 * time.Millisecond
	defaultBackoffMultiplier = 2
)

// Policy controls how many times an operation is retried and how long to wait between attempts
type Policy struct {
	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// DefaultPolicy returns {maxRetries:3, baseDelay:1s, maxDelay:30s, backoffMultiplier:2}
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:        defaultMaxRetries,
		BaseDelay:         defaultBaseDelay,
		MaxDelay:          defaultMaxDelay,
		BackoffMultiplier: defaultBackoffMultiplier,
	}
}

func (p Policy) withDefaults() Policy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultMaxDelay
	}
	if p.BackoffMultiplier <= 0 {
		p.BackoffMultiplier = defaultBackoffMultiplier
	}
	return p
}

// Delay returns min(base * multiplier^attempt, max), doubled for RATE_LIMIT.
// The doubled value may exceed MaxDelay.
func (p Policy) Delay(attempt int, kind failure.Kind) time.Duration {
	p = p.withDefaults()

	raw := float64(p.BaseDelay) * math.Pow(p.BackoffMultiplier, float64(attempt))
	delay := time.Duration(math.Min(raw, float64(p.MaxDelay)))
	if kind == failure.RateLimit {
		delay *= 2
	}
	return delay
}
