package syncqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/marcelsud/storesync/failure"
	"github.com/marcelsud/storesync/retry"
	"github.com/rs/zerolog"
)

// SyncFunc performs the outbound synchronization for one event
type SyncFunc func(ctx context.Context, ev Event) (json.RawMessage, error)

// Clock abstracts time for deterministic tests
type Clock interface {
	Now() time.Time
}

// SystemClock uses the system time in UTC
type SystemClock struct{}

// Now returns the current UTC time
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

const (
	defaultMaxRetries = 3
	defaultBatchSize  = 5
	defaultBatchDelay = time.Second
	defaultClaimTTL   = 5 * time.Minute
)

// Config controls queue behavior
type Config struct {
	MaxRetries           int
	BatchSize            int
	BatchDelay           time.Duration
	ClaimTTL             time.Duration // a Processing item older than this is reclaimed
	SyncOnPaymentSuccess bool
	SyncOnOrderCreation  bool
	Clock                Clock
	Sleep                retry.SleepFunc
	OnTransition         func(Transition)
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.BatchDelay < 0 {
		c.BatchDelay = 0
	}
	if c.ClaimTTL <= 0 {
		c.ClaimTTL = defaultClaimTTL
	}
	if c.Clock == nil {
		c.Clock = SystemClock{}
	}
	if c.Sleep == nil {
		c.Sleep = retry.Sleep
	}
	return c
}

// Option configures the Queue
type Option func(*Config)

// WithMaxRetries sets the number of attempts before an item is abandoned
func WithMaxRetries(n int) Option {
	return func(c *Config) { c.MaxRetries = n }
}

// WithBatchSize sets how many events run concurrently in one batch
func WithBatchSize(n int) Option {
	return func(c *Config) { c.BatchSize = n }
}

// WithBatchDelay sets the pause between batches
func WithBatchDelay(d time.Duration) Option {
	return func(c *Config) { c.BatchDelay = d }
}

// WithClaimTTL sets how long an attempt may stay Processing before another
// enqueue or RetryFailed takes it over
func WithClaimTTL(d time.Duration) Option {
	return func(c *Config) { c.ClaimTTL = d }
}

// WithSyncOnPaymentSuccess enables syncing payment.succeeded events
func WithSyncOnPaymentSuccess(enabled bool) Option {
	return func(c *Config) { c.SyncOnPaymentSuccess = enabled }
}

// WithSyncOnOrderCreation enables syncing order.created events
func WithSyncOnOrderCreation(enabled bool) Option {
	return func(c *Config) { c.SyncOnOrderCreation = enabled }
}

// WithClock sets the queue clock
func WithClock(clock Clock) Option {
	return func(c *Config) { c.Clock = clock }
}

// WithSleep replaces the pause used between batches
func WithSleep(fn retry.SleepFunc) Option {
	return func(c *Config) { c.Sleep = fn }
}

// WithTransitionHook registers a callback invoked after every status change
func WithTransitionHook(fn func(Transition)) Option {
	return func(c *Config) { c.OnTransition = fn }
}

/* Queue drives outbound synchronization of payment events
 * One item per idempotency key; at most one attempt in flight per key
 */
type Queue struct {
	store   Store
	sync    SyncFunc
	cfg     Config
	backoff retry.Policy
	logger  zerolog.Logger
}

// New creates a Queue backed by store that calls fn to sync an event
func New(store Store, fn SyncFunc, logger zerolog.Logger, opts ...Option) *Queue {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Queue{
		store: store,
		sync:  fn,
		cfg:   cfg.withDefaults(),
		backoff: retry.Policy{
			BaseDelay:         time.Second,
			MaxDelay:          30 * time.Second,
			BackoffMultiplier: 2,
		},
		logger: logger.With().Str("component", "syncqueue").Logger(),
	}
}

// ShouldSync reports whether an event type produces a downstream sync.
// Failed and pending payments never do.
func (q *Queue) ShouldSync(t EventType) bool {
	switch t {
	case PaymentSucceeded:
		return q.cfg.SyncOnPaymentSuccess
	case OrderCreated:
		return q.cfg.SyncOnOrderCreation
	case OrderFulfilled:
		return true
	default:
		return false
	}
}

// EnqueueAndSync records ev and runs one sync attempt for it
func (q *Queue) EnqueueAndSync(ctx context.Context, ev Event) SyncResult {
	res := SyncResult{Key: ev.Key(), EventID: ev.ID, Type: ev.Type}
	if err := ev.Validate(); err != nil {
		res.Error = err.Error()
		return res
	}
	if !q.ShouldSync(ev.Type) {
		q.logger.Debug().Str("key", res.Key).Str("type", string(ev.Type)).Msg("event type not synced, skipping")
		res.Success = true
		res.Skipped = true
		return res
	}
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = q.cfg.Clock.Now()
	}
	return q.attempt(ctx, ev)
}

// RetryFailed runs one more attempt for every failed item whose retry time has
// come and for every Processing item whose claim expired
func (q *Queue) RetryFailed(ctx context.Context) ([]SyncResult, error) {
	items, err := q.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing queue items: %w", err)
	}

	now := q.cfg.Clock.Now()
	var results []SyncResult
	for _, it := range items {
		due := it.Status == Failed && !it.NextRetryAt.After(now)
		if !due && !it.ClaimExpired(now, q.cfg.ClaimTTL) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, q.attempt(ctx, it.Event))
	}
	return results, nil
}

// Status counts items per status
func (q *Queue) Status(ctx context.Context) (Counts, error) {
	items, err := q.store.List(ctx)
	if err != nil {
		return Counts{}, fmt.Errorf("listing queue items: %w", err)
	}

	var c Counts
	for _, it := range items {
		c.add(it.Status)
	}
	return c, nil
}

// StatusCounts returns item counts keyed by status name
func (q *Queue) StatusCounts(ctx context.Context) (map[string]int64, error) {
	c, err := q.Status(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]int64{
		Pending.String():    int64(c.Pending),
		Processing.String(): int64(c.Processing),
		Completed.String():  int64(c.Completed),
		Failed.String():     int64(c.Failed),
		Abandoned.String():  int64(c.Abandoned),
	}, nil
}

// Items lists every item held by the queue
func (q *Queue) Items(ctx context.Context) ([]Item, error) {
	return q.store.List(ctx)
}

// Cleanup evicts final items not updated within olderThan and returns how many went
func (q *Queue) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	items, err := q.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing queue items: %w", err)
	}

	cutoff := q.cfg.Clock.Now().Add(-olderThan)
	n := 0
	for _, it := range items {
		if !it.Status.IsFinal() || !it.UpdatedAt.Before(cutoff) {
			continue
		}
		if err := q.store.Delete(ctx, it.Key); err != nil {
			return n, fmt.Errorf("deleting queue item %s: %w", it.Key, err)
		}
		n++
	}
	if n > 0 {
		q.logger.Info().Int("evicted", n).Dur("older_than", olderThan).Msg("queue cleanup")
	}
	return n, nil
}

func (q *Queue) attempt(ctx context.Context, ev Event) SyncResult {
	now := q.cfg.Clock.Now()
	before, _ := q.store.Get(ctx, ev.Key())

	it, claimed, err := q.store.Claim(ctx, ev, now, q.cfg.ClaimTTL)
	if err != nil {
		q.logger.Error().Err(err).Str("key", ev.Key()).Msg("claiming queue item")
		return SyncResult{Key: ev.Key(), EventID: ev.ID, Type: ev.Type, Error: fmt.Sprintf("claiming queue item: %v", err)}
	}
	if !claimed {
		res := resultFromItem(it)
		if it.Status == Processing {
			res.InFlight = true
			q.logger.Info().Str("key", it.Key).Msg("sync already in flight")
		} else {
			res.Cached = true
			q.logger.Debug().Str("key", it.Key).Str("status", it.Status.String()).Msg("sync already final")
		}
		return res
	}

	from := before.Status
	if from == 0 {
		from = Pending
	}
	q.transition(it, from, nil)

	// a reclaimed item past the budget is abandoned without another call
	if from == Processing && it.Attempts > q.cfg.MaxRetries {
		return q.finish(ctx, it, nil, fmt.Errorf("claim expired %d times without a result", it.Attempts-1))
	}

	result, syncErr := q.invoke(ctx, ev)
	return q.finish(ctx, it, result, syncErr)
}

// invoke converts sync panics into errors
func (q *Queue) invoke(ctx context.Context, ev Event) (res json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sync panic: %v", r)
		}
	}()
	return q.sync(ctx, ev)
}

func (q *Queue) finish(ctx context.Context, it Item, result json.RawMessage, syncErr error) SyncResult {
	now := q.cfg.Clock.Now()
	it.UpdatedAt = now

	switch {
	case syncErr == nil:
		it.Status = Completed
		it.Result = result
		it.LastError = ""
	case it.Attempts >= q.cfg.MaxRetries:
		it.Status = Abandoned
		it.LastError = syncErr.Error()
	default:
		it.Status = Failed
		it.LastError = syncErr.Error()
		it.NextRetryAt = now.Add(q.backoff.Delay(it.Attempts, failure.Unknown))
	}

	// saving releases the claim, so it must not be skipped on cancellation
	if err := q.store.Save(context.WithoutCancel(ctx), it); err != nil {
		q.logger.Error().Err(err).Str("key", it.Key).Msg("saving queue item")
	}

	q.transition(it, Processing, syncErr)
	return resultFromItem(it)
}

func (q *Queue) transition(it Item, from Status, err error) {
	var log *zerolog.Event
	switch it.Status {
	case Abandoned:
		log = q.logger.Error()
	case Failed:
		log = q.logger.Warn()
	default:
		log = q.logger.Info()
	}
	if err != nil {
		c := failure.Classify(err)
		log = log.Err(err).Str("kind", c.Kind.String()).Bool("retryable", c.Retryable)
	}
	log.Str("key", it.Key).
		Str("from", from.String()).
		Str("to", it.Status.String()).
		Int("attempts", it.Attempts).
		Msg("queue item transition")

	if q.cfg.OnTransition != nil {
		q.cfg.OnTransition(Transition{
			Key:      it.Key,
			Event:    it.Event,
			From:     from,
			To:       it.Status,
			Attempts: it.Attempts,
			Err:      err,
		})
	}
}
