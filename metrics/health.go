package metrics

import (
	"fmt"
	"time"
)

// Health is the derived state of the outbound API connection
type Health int

const (
	Healthy Health = iota + 1
	Degraded
	Unhealthy
)

// String returns the string representation of the health
func (h Health) String() string {
	switch h {
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	case Unhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// NewHealth creates a Health from a string
func NewHealth(s string) Health {
	switch s {
	case "healthy":
		return Healthy
	case "degraded":
		return Degraded
	case "unhealthy":
		return Unhealthy
	default:
		return 0
	}
}

// MarshalText implements encoding.TextMarshaler
func (h Health) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (h *Health) UnmarshalText(text []byte) error {
	v := NewHealth(string(text))
	if v == 0 {
		return fmt.Errorf("invalid health: %q", text)
	}
	*h = v
	return nil
}

const (
	unhealthyErrorRate = 0.5
	unhealthyLatency   = 5000 * time.Millisecond
	degradedErrorRate  = 0.2
	degradedLatency    = 2000 * time.Millisecond
)

// DeriveHealth classifies an error rate (0..1) and an average latency
func DeriveHealth(errorRate float64, avgLatency time.Duration) Health {
	switch {
	case errorRate >= unhealthyErrorRate || avgLatency > unhealthyLatency:
		return Unhealthy
	case errorRate >= degradedErrorRate || avgLatency > degradedLatency:
		return Degraded
	default:
		return Healthy
	}
}
