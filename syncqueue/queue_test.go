package syncqueue_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marcelsud/storesync/failure"
	"github.com/marcelsud/storesync/syncqueue"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func newManualClock() *manualClock {
	return &manualClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type syncRecorder struct {
	mu    sync.Mutex
	calls []syncqueue.Event
	fn    func(n int, ev syncqueue.Event) (json.RawMessage, error)
}

func (r *syncRecorder) Sync(_ context.Context, ev syncqueue.Event) (json.RawMessage, error) {
	r.mu.Lock()
	r.calls = append(r.calls, ev)
	n := len(r.calls)
	r.mu.Unlock()
	if r.fn == nil {
		return json.RawMessage(`{"order":{"id":1}}`), nil
	}
	return r.fn(n, ev)
}

func (r *syncRecorder) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func newQueue(rec *syncRecorder, clock syncqueue.Clock, opts ...syncqueue.Option) *syncqueue.Queue {
	base := []syncqueue.Option{
		syncqueue.WithClock(clock),
		syncqueue.WithSyncOnPaymentSuccess(true),
		syncqueue.WithSyncOnOrderCreation(true),
		syncqueue.WithSleep(func(context.Context, time.Duration) error { return nil }),
	}
	return syncqueue.New(syncqueue.NewMemoryStore(), rec.Sync, zerolog.Nop(), append(base, opts...)...)
}

func TestQueue_ShouldSync(t *testing.T) {
	tests := []struct {
		name     string
		opts     []syncqueue.Option
		typ      syncqueue.EventType
		expected bool
	}{
		{"payment succeeded enabled", []syncqueue.Option{syncqueue.WithSyncOnPaymentSuccess(true)}, syncqueue.PaymentSucceeded, true},
		{"payment succeeded disabled", nil, syncqueue.PaymentSucceeded, false},
		{"order created enabled", []syncqueue.Option{syncqueue.WithSyncOnOrderCreation(true)}, syncqueue.OrderCreated, true},
		{"order created disabled", nil, syncqueue.OrderCreated, false},
		{"order fulfilled always", nil, syncqueue.OrderFulfilled, true},
		{"payment failed never", []syncqueue.Option{syncqueue.WithSyncOnPaymentSuccess(true), syncqueue.WithSyncOnOrderCreation(true)}, syncqueue.PaymentFailed, false},
		{"payment pending never", []syncqueue.Option{syncqueue.WithSyncOnPaymentSuccess(true), syncqueue.WithSyncOnOrderCreation(true)}, syncqueue.PaymentPending, false},
		{"unknown type", nil, syncqueue.EventType("refund.created"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := syncqueue.New(syncqueue.NewMemoryStore(), nil, zerolog.Nop(), tt.opts...)
			assert.Equal(t, tt.expected, q.ShouldSync(tt.typ))
		})
	}
}

func TestQueue_PaymentFailedNeverSyncs(t *testing.T) {
	ctx := context.Background()
	rec := &syncRecorder{}
	q := newQueue(rec, newManualClock())

	payloads := []string{
		`{}`,
		`{"order_id":"order_1","amount":"10.00"}`,
		`{"failure_reason":"card_declined","line_items":[{"sku":"A","quantity":1}]}`,
		`null`,
	}
	for i, data := range payloads {
		for _, typ := range []syncqueue.EventType{syncqueue.PaymentFailed, syncqueue.PaymentPending} {
			res := q.EnqueueAndSync(ctx, syncqueue.Event{
				ID:      "evt_f" + string(rune('a'+i)) + string(typ),
				Type:    typ,
				OrderID: "order_1",
				Data:    json.RawMessage(data),
			})
			assert.True(t, res.Skipped)
			assert.True(t, res.Success)
		}
	}

	batch := q.HandleBatch(ctx, []syncqueue.Event{
		{ID: "evt_b1", Type: syncqueue.PaymentFailed},
		{ID: "evt_b2", Type: syncqueue.PaymentFailed, OrderID: "order_2"},
	})
	require.Len(t, batch, 2)

	assert.Zero(t, rec.Calls())
	counts, err := q.Status(ctx)
	require.NoError(t, err)
	assert.Zero(t, counts.Total)
}

func TestQueue_RecoversAfterTransientFailure(t *testing.T) {
	ctx := context.Background()
	clock := newManualClock()
	rec := &syncRecorder{fn: func(n int, _ syncqueue.Event) (json.RawMessage, error) {
		if n == 1 {
			return nil, failure.NewStatusError(503, "POST", "/orders.json", nil)
		}
		return json.RawMessage(`{"order":{"id":99}}`), nil
	}}
	q := newQueue(rec, clock)
	ev := syncqueue.Event{ID: "evt_1", Type: syncqueue.PaymentSucceeded, OrderID: "order_1"}

	first := q.EnqueueAndSync(ctx, ev)
	assert.False(t, first.Success)
	assert.Equal(t, syncqueue.Failed, first.Status)
	assert.Equal(t, 1, first.Attempts)
	assert.Contains(t, first.Error, "503")

	items, err := q.Items(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, clock.Now().Add(2*time.Second), items[0].NextRetryAt)

	results, err := q.RetryFailed(ctx)
	require.NoError(t, err)
	assert.Empty(t, results, "retry is not due yet")

	clock.Advance(2 * time.Second)
	results, err = q.RetryFailed(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, syncqueue.Completed, results[0].Status)
	assert.Equal(t, 2, results[0].Attempts)
	assert.JSONEq(t, `{"order":{"id":99}}`, string(results[0].Result))

	counts, err := q.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, syncqueue.Counts{Total: 1, Completed: 1}, counts)
}

func TestQueue_Abandonment(t *testing.T) {
	ctx := context.Background()
	clock := newManualClock()
	rec := &syncRecorder{fn: func(int, syncqueue.Event) (json.RawMessage, error) {
		return nil, errors.New("remote rejected order")
	}}

	var mu sync.Mutex
	var transitions []string
	hook := func(tr syncqueue.Transition) {
		mu.Lock()
		defer mu.Unlock()
		transitions = append(transitions, tr.From.String()+">"+tr.To.String())
	}
	q := newQueue(rec, clock, syncqueue.WithMaxRetries(3), syncqueue.WithTransitionHook(hook))
	ev := syncqueue.Event{ID: "evt_bad", Type: syncqueue.OrderFulfilled, OrderID: "order_9"}

	res := q.EnqueueAndSync(ctx, ev)
	assert.Equal(t, syncqueue.Failed, res.Status)

	for i := 0; i < 2; i++ {
		clock.Advance(time.Hour)
		_, err := q.RetryFailed(ctx)
		require.NoError(t, err)
	}

	items, err := q.Items(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, syncqueue.Abandoned, items[0].Status)
	assert.Equal(t, 3, items[0].Attempts)
	assert.Equal(t, "remote rejected order", items[0].LastError)

	clock.Advance(time.Hour)
	results, err := q.RetryFailed(ctx)
	require.NoError(t, err)
	assert.Empty(t, results)

	again := q.EnqueueAndSync(ctx, ev)
	assert.True(t, again.Cached)
	assert.Equal(t, syncqueue.Abandoned, again.Status)

	assert.Equal(t, 3, rec.Calls())
	assert.Equal(t, []string{
		"pending>processing", "processing>failed",
		"failed>processing", "processing>failed",
		"failed>processing", "processing>abandoned",
	}, transitions)

	counts, err := q.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Abandoned)
}

func TestQueue_CompletedIsCached(t *testing.T) {
	ctx := context.Background()
	rec := &syncRecorder{}
	q := newQueue(rec, newManualClock())
	ev := syncqueue.Event{ID: "evt_ok", Type: syncqueue.PaymentSucceeded}

	first := q.EnqueueAndSync(ctx, ev)
	second := q.EnqueueAndSync(ctx, ev)

	assert.True(t, first.Success)
	assert.False(t, first.Cached)
	assert.True(t, second.Success)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Result, second.Result)
	assert.Equal(t, 1, rec.Calls())
}

func TestQueue_ConcurrentDuplicateEnqueue(t *testing.T) {
	ctx := context.Background()
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls int32
	fn := func(context.Context, syncqueue.Event) (json.RawMessage, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(entered)
		}
		<-release
		return json.RawMessage(`{}`), nil
	}
	q := syncqueue.New(syncqueue.NewMemoryStore(), fn, zerolog.Nop(), syncqueue.WithSyncOnPaymentSuccess(true))
	ev := syncqueue.Event{ID: "evt_race", Type: syncqueue.PaymentSucceeded}

	done := make(chan syncqueue.SyncResult, 1)
	go func() { done <- q.EnqueueAndSync(ctx, ev) }()
	<-entered

	var wg sync.WaitGroup
	inFlight := make([]bool, 8)
	for i := range inFlight {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			inFlight[i] = q.EnqueueAndSync(ctx, ev).InFlight
		}(i)
	}
	wg.Wait()
	close(release)

	first := <-done
	assert.True(t, first.Success)
	for _, f := range inFlight {
		assert.True(t, f)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestQueue_ExpiredClaim(t *testing.T) {
	ctx := context.Background()
	ev := syncqueue.Event{ID: "evt_orphan", Type: syncqueue.PaymentSucceeded, OrderID: "order_9"}

	// an attempt whose owner stopped between Claim and Save
	orphan := func(clock *manualClock, store syncqueue.Store, attempts int) {
		now := clock.Now()
		require.NoError(t, store.Save(ctx, syncqueue.Item{
			Key:           ev.Key(),
			Event:         ev,
			Attempts:      attempts,
			Status:        syncqueue.Processing,
			LastAttemptAt: now,
			CreatedAt:     now,
			UpdatedAt:     now,
		}))
	}
	newOrphanQueue := func(rec *syncRecorder, clock *manualClock) (*syncqueue.Queue, syncqueue.Store) {
		store := syncqueue.NewMemoryStore()
		q := syncqueue.New(store, rec.Sync, zerolog.Nop(),
			syncqueue.WithClock(clock),
			syncqueue.WithSyncOnPaymentSuccess(true),
			syncqueue.WithClaimTTL(time.Minute),
		)
		return q, store
	}

	t.Run("fresh claim stays in flight", func(t *testing.T) {
		rec := &syncRecorder{}
		clock := newManualClock()
		q, store := newOrphanQueue(rec, clock)
		orphan(clock, store, 1)
		clock.Advance(30 * time.Second)

		res := q.EnqueueAndSync(ctx, ev)
		assert.True(t, res.InFlight)
		assert.Zero(t, rec.Calls())
	})

	t.Run("enqueue takes over an expired claim", func(t *testing.T) {
		rec := &syncRecorder{}
		clock := newManualClock()
		q, store := newOrphanQueue(rec, clock)
		orphan(clock, store, 1)
		clock.Advance(72 * time.Hour)

		res := q.EnqueueAndSync(ctx, ev)
		assert.True(t, res.Success)
		assert.False(t, res.InFlight)
		assert.Equal(t, 2, res.Attempts)
		assert.Equal(t, 1, rec.Calls())
	})

	t.Run("retry failed picks up expired claims", func(t *testing.T) {
		rec := &syncRecorder{}
		clock := newManualClock()
		q, store := newOrphanQueue(rec, clock)
		orphan(clock, store, 1)
		clock.Advance(2 * time.Minute)

		results, err := q.RetryFailed(ctx)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, syncqueue.Completed, results[0].Status)

		counts, err := q.Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, syncqueue.Counts{Total: 1, Completed: 1}, counts)
	})

	t.Run("expired claim past the budget is abandoned", func(t *testing.T) {
		rec := &syncRecorder{}
		clock := newManualClock()
		q, store := newOrphanQueue(rec, clock)
		orphan(clock, store, 3)
		clock.Advance(time.Hour)

		res := q.EnqueueAndSync(ctx, ev)
		assert.Equal(t, syncqueue.Abandoned, res.Status)
		assert.Equal(t, 4, res.Attempts)
		assert.Contains(t, res.Error, "claim expired")
		assert.Zero(t, rec.Calls())

		removed, err := q.Cleanup(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, 0, removed, "updated at the current clock instant")
		clock.Advance(time.Second)
		removed, err = q.Cleanup(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, 1, removed)
	})
}

func TestQueue_HandleBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("order created runs before payment succeeded", func(t *testing.T) {
		rec := &syncRecorder{}
		q := newQueue(rec, newManualClock(), syncqueue.WithBatchSize(1))

		results := q.HandleBatch(ctx, []syncqueue.Event{
			{ID: "evt_pay", Type: syncqueue.PaymentSucceeded},
			{ID: "evt_order", Type: syncqueue.OrderCreated},
		})

		require.Len(t, rec.calls, 2)
		assert.Equal(t, syncqueue.OrderCreated, rec.calls[0].Type)
		assert.Equal(t, syncqueue.PaymentSucceeded, rec.calls[1].Type)
		assert.Equal(t, "evt_order", results[0].EventID)
	})

	t.Run("pauses between batches", func(t *testing.T) {
		var pauses []time.Duration
		sleep := func(_ context.Context, d time.Duration) error {
			pauses = append(pauses, d)
			return nil
		}
		rec := &syncRecorder{}
		q := newQueue(rec, newManualClock(),
			syncqueue.WithBatchSize(5),
			syncqueue.WithBatchDelay(250*time.Millisecond),
			syncqueue.WithSleep(sleep),
		)

		events := make([]syncqueue.Event, 12)
		for i := range events {
			events[i] = syncqueue.Event{ID: "evt_" + string(rune('a'+i)), Type: syncqueue.OrderFulfilled}
		}
		results := q.HandleBatch(ctx, events)

		assert.Len(t, results, 12)
		assert.Equal(t, 12, rec.Calls())
		assert.Equal(t, []time.Duration{250 * time.Millisecond, 250 * time.Millisecond}, pauses)
	})

	t.Run("cancelled pause stops the remaining batches", func(t *testing.T) {
		rec := &syncRecorder{}
		q := newQueue(rec, newManualClock(),
			syncqueue.WithBatchSize(1),
			syncqueue.WithBatchDelay(time.Second),
			syncqueue.WithSleep(func(context.Context, time.Duration) error { return context.Canceled }),
		)

		results := q.HandleBatch(ctx, []syncqueue.Event{
			{ID: "evt_1", Type: syncqueue.OrderFulfilled},
			{ID: "evt_2", Type: syncqueue.OrderFulfilled},
		})

		assert.Equal(t, 1, rec.Calls())
		assert.True(t, results[0].Success)
		assert.Equal(t, context.Canceled.Error(), results[1].Error)
	})

	t.Run("cancelled context syncs nothing", func(t *testing.T) {
		rec := &syncRecorder{}
		q := newQueue(rec, newManualClock(), syncqueue.WithBatchSize(2))

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		results := q.HandleBatch(cancelled, []syncqueue.Event{
			{ID: "evt_1", Type: syncqueue.OrderFulfilled},
			{ID: "evt_2", Type: syncqueue.OrderFulfilled},
			{ID: "evt_3", Type: syncqueue.OrderFulfilled},
		})

		require.Len(t, results, 3)
		assert.Zero(t, rec.Calls())
		for _, res := range results {
			assert.False(t, res.Success)
			assert.Equal(t, context.Canceled.Error(), res.Error)
			assert.NotEmpty(t, res.Key)
		}
	})

	t.Run("no more than batch size in flight", func(t *testing.T) {
		var inFlight, peak atomic.Int32
		release := make(chan struct{})
		rec := &syncRecorder{fn: func(_ int, _ syncqueue.Event) (json.RawMessage, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			<-release
			inFlight.Add(-1)
			return json.RawMessage(`{}`), nil
		}}
		q := newQueue(rec, newManualClock(), syncqueue.WithBatchSize(3))

		events := make([]syncqueue.Event, 7)
		for i := range events {
			events[i] = syncqueue.Event{ID: "evt_" + string(rune('a'+i)), Type: syncqueue.OrderFulfilled}
		}
		done := make(chan []syncqueue.SyncResult)
		go func() { done <- q.HandleBatch(ctx, events) }()

		require.Eventually(t, func() bool { return inFlight.Load() == 3 }, time.Second, time.Millisecond)
		close(release)
		results := <-done

		assert.Len(t, results, 7)
		assert.Equal(t, 7, rec.Calls())
		assert.Equal(t, int32(3), peak.Load())
	})
}

func TestQueue_Cleanup(t *testing.T) {
	ctx := context.Background()
	clock := newManualClock()
	rec := &syncRecorder{fn: func(_ int, ev syncqueue.Event) (json.RawMessage, error) {
		if ev.ID == "evt_retry" {
			return nil, errors.New("temporary")
		}
		return json.RawMessage(`{}`), nil
	}}
	q := newQueue(rec, clock)

	q.EnqueueAndSync(ctx, syncqueue.Event{ID: "evt_done", Type: syncqueue.OrderFulfilled})
	q.EnqueueAndSync(ctx, syncqueue.Event{ID: "evt_retry", Type: syncqueue.OrderFulfilled})

	n, err := q.Cleanup(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	clock.Advance(2 * time.Hour)
	n, err = q.Cleanup(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	counts, err := q.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, syncqueue.Counts{Total: 1, Failed: 1}, counts)
}

func TestQueue_EdgeCases(t *testing.T) {
	ctx := context.Background()

	t.Run("event without id is rejected", func(t *testing.T) {
		rec := &syncRecorder{}
		q := newQueue(rec, newManualClock())
		res := q.EnqueueAndSync(ctx, syncqueue.Event{Type: syncqueue.OrderFulfilled})
		assert.False(t, res.Success)
		assert.NotEmpty(t, res.Error)
		assert.Zero(t, rec.Calls())
	})

	t.Run("sync panic becomes a failure", func(t *testing.T) {
		rec := &syncRecorder{fn: func(int, syncqueue.Event) (json.RawMessage, error) { panic("boom") }}
		q := newQueue(rec, newManualClock())
		res := q.EnqueueAndSync(ctx, syncqueue.Event{ID: "evt_p", Type: syncqueue.OrderFulfilled})
		assert.Equal(t, syncqueue.Failed, res.Status)
		assert.Contains(t, res.Error, "boom")
	})

	t.Run("memory store is not durable", func(t *testing.T) {
		rec := &syncRecorder{fn: func(int, syncqueue.Event) (json.RawMessage, error) { return nil, errors.New("down") }}
		q := newQueue(rec, newManualClock())
		q.EnqueueAndSync(ctx, syncqueue.Event{ID: "evt_lost", Type: syncqueue.OrderFulfilled})

		restarted := newQueue(rec, newManualClock())
		counts, err := restarted.Status(ctx)
		require.NoError(t, err)
		assert.Zero(t, counts.Total, "failed items are lost with the process")
	})
}

func TestSortByPriority(t *testing.T) {
	in := []syncqueue.Event{
		{ID: "1", Type: syncqueue.PaymentFailed},
		{ID: "2", Type: syncqueue.OrderFulfilled},
		{ID: "3", Type: syncqueue.PaymentSucceeded},
		{ID: "4", Type: syncqueue.PaymentPending},
		{ID: "5", Type: syncqueue.OrderCreated},
		{ID: "6", Type: syncqueue.PaymentSucceeded},
	}
	out := syncqueue.SortByPriority(in)

	ids := make([]string, len(out))
	for i, ev := range out {
		ids[i] = ev.ID
	}
	assert.Equal(t, []string{"5", "3", "6", "4", "2", "1"}, ids)
	assert.Equal(t, "1", in[0].ID, "input is not reordered")
}
