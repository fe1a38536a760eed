package metrics

import (
	"sync"
	"time"
)

// WindowSize is the number of recent API calls kept for health derivation
const WindowSize = 100

type sample struct {
	success bool
	latency time.Duration
}

/* Collector records outbound API calls and sync outcomes
 * Safe for concurrent use; one instance is shared by the composition root
 */
type Collector struct {
	mu sync.Mutex

	apiCalls       int64
	apiErrors      int64
	ordersSynced   int64
	ordersFailed   int64
	productsSynced int64
	lastSync       time.Time

	window []sample
	next   int
	health Health

	now func() time.Time
}

// NewCollector creates an empty Collector
func NewCollector() *Collector {
	return &Collector{
		window: make([]sample, 0, WindowSize),
		health: Healthy,
		now:    time.Now,
	}
}

// RecordAPICall records one outbound call and recomputes health
func (c *Collector) RecordAPICall(success bool, latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.apiCalls++
	if !success {
		c.apiErrors++
	}

	s := sample{success: success, latency: latency}
	if len(c.window) < WindowSize {
		c.window = append(c.window, s)
	} else {
		c.window[c.next] = s
	}
	c.next = (c.next + 1) % WindowSize

	rate, avg := c.windowStats()
	c.health = DeriveHealth(rate, avg)
}

// RecordOrderSync records the outcome of one order sync
func (c *Collector) RecordOrderSync(success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if success {
		c.ordersSynced++
		c.lastSync = c.now()
		return
	}
	c.ordersFailed++
}

// RecordProductSync records count products synced
func (c *Collector) RecordProductSync(count int) {
	if count <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.productsSynced += int64(count)
	c.lastSync = c.now()
}

// Health returns the health derived from the last recorded call
func (c *Collector) Health() Health {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.health
}

// Report returns a snapshot of every counter
func (c *Collector) Report() Report {
	c.mu.Lock()
	defer c.mu.Unlock()

	rate, avg := c.windowStats()
	return Report{
		APICalls:         c.apiCalls,
		APIErrors:        c.apiErrors,
		ErrorRate:        rate,
		AverageLatencyMs: float64(avg) / float64(time.Millisecond),
		Samples:          len(c.window),
		OrdersSynced:     c.ordersSynced,
		OrdersFailed:     c.ordersFailed,
		ProductsSynced:   c.productsSynced,
		LastSync:         c.lastSync,
		Health:           c.health,
		Timestamp:        c.now(),
	}
}

// windowStats must be called with mu held
func (c *Collector) windowStats() (float64, time.Duration) {
	if len(c.window) == 0 {
		return 0, 0
	}

	var failed int
	var total time.Duration
	for _, s := range c.window {
		if !s.success {
			failed++
		}
		total += s.latency
	}
	n := len(c.window)
	return float64(failed) / float64(n), total / time.Duration(n)
}
