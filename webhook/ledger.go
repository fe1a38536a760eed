package webhook

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned when a delivery id has never been seen
var ErrNotFound = errors.New("delivery not found")

// DeliveryRecord is one entry of the idempotency ledger
type DeliveryRecord struct {
	Provider   string
	DeliveryID string
	Topic      string
	Outcome    Outcome
	ReceivedAt time.Time
	UpdatedAt  time.Time
}

// Key namespaces the delivery id by provider
func (r DeliveryRecord) Key() string {
	return LedgerKey(r.Provider, r.DeliveryID)
}

// LedgerKey builds the ledger key for a provider delivery id
func LedgerKey(provider, deliveryID string) string {
	return provider + ":" + deliveryID
}

/* Small interfaces composed into Ledger, like the rest of the repository layer
 * Context is always the first parameter in functions that do I/O
 */

// LedgerReader provides read access to delivery records
type LedgerReader interface {
	Get(ctx context.Context, provider, deliveryID string) (DeliveryRecord, error)
}

// LedgerWriter provides the write side of the ledger
type LedgerWriter interface {
	/* Claim atomically inserts rec as Processing unless a Processed record or
	 * a live Processing claim already exists; in that case it returns the
	 * existing record and false
	 */
	Claim(ctx context.Context, rec DeliveryRecord) (DeliveryRecord, bool, error)
	Complete(ctx context.Context, provider, deliveryID string, outcome Outcome) error
}

// Ledger is the idempotency ledger consulted by the Router
type Ledger interface {
	LedgerReader
	LedgerWriter
}

const (
	defaultClaimTTL  = 5 * time.Minute
	defaultRetention = 72 * time.Hour
)

// MemoryLedger is a process-local Ledger; records are lost on restart
type MemoryLedger struct {
	mu        sync.Mutex
	records   map[string]DeliveryRecord
	claimTTL  time.Duration
	retention time.Duration
	now       func() time.Time
}

// NewMemoryLedger creates a MemoryLedger. Zero durations fall back to
// 5 minutes for stale claims and 72 hours of retention.
func NewMemoryLedger(claimTTL, retention time.Duration) *MemoryLedger {
	if claimTTL <= 0 {
		claimTTL = defaultClaimTTL
	}
	if retention <= 0 {
		retention = defaultRetention
	}
	return &MemoryLedger{
		records:   make(map[string]DeliveryRecord),
		claimTTL:  claimTTL,
		retention: retention,
		now:       time.Now,
	}
}

// Get returns the record for a delivery id
func (l *MemoryLedger) Get(_ context.Context, provider, deliveryID string) (DeliveryRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[LedgerKey(provider, deliveryID)]
	if !ok || l.expired(rec) {
		return DeliveryRecord{}, ErrNotFound
	}
	return rec, nil
}

// Claim implements LedgerWriter
func (l *MemoryLedger) Claim(_ context.Context, rec DeliveryRecord) (DeliveryRecord, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if existing, ok := l.records[rec.Key()]; ok && !l.expired(existing) {
		switch existing.Outcome {
		case Processed:
			return existing, false, nil
		case Processing:
			if now.Sub(existing.UpdatedAt) < l.claimTTL {
				return existing, false, nil
			}
		}
	}

	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = now
	}
	rec.Outcome = Processing
	rec.UpdatedAt = now
	l.records[rec.Key()] = rec
	return rec, true, nil
}

// Complete records the final outcome of a claimed delivery
func (l *MemoryLedger) Complete(_ context.Context, provider, deliveryID string, outcome Outcome) error {
	if err := outcome.Validate(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := LedgerKey(provider, deliveryID)
	rec, ok := l.records[key]
	if !ok {
		return ErrNotFound
	}
	rec.Outcome = outcome
	rec.UpdatedAt = l.now()
	l.records[key] = rec
	return nil
}

// Evict removes final records older than the retention window and returns how many went
func (l *MemoryLedger) Evict(_ context.Context) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for key, rec := range l.records {
		if l.expired(rec) {
			delete(l.records, key)
			n++
		}
	}
	return n
}

// Len returns the number of records held
func (l *MemoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// OutcomeCounts returns live record counts keyed by outcome name
func (l *MemoryLedger) OutcomeCounts(_ context.Context) (map[string]int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	counts := map[string]int64{
		Processing.String(): 0,
		Processed.String():  0,
		Failed.String():     0,
	}
	for _, rec := range l.records {
		if !l.expired(rec) {
			counts[rec.Outcome.String()]++
		}
	}
	return counts, nil
}

func (l *MemoryLedger) expired(rec DeliveryRecord) bool {
	return rec.Outcome.IsFinal() && l.now().Sub(rec.UpdatedAt) > l.retention
}
