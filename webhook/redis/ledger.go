package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marcelsud/storesync/webhook"
	"github.com/redis/go-redis/v9"
)

/* Redis implementation of webhook.Ledger
 * One hash per delivery: webhook:ledger:{provider}:{delivery_id}
 * A Processing claim lives for claimTTL, a final outcome for retention
 */

const ledgerPrefix = "webhook:ledger"

// maxClaimAttempts bounds optimistic-lock retries in Claim and Complete
const maxClaimAttempts = 5

type Ledger struct {
	client    *redis.Client
	claimTTL  time.Duration
	retention time.Duration
}

// NewLedger creates a Ledger on an open client
func NewLedger(client *redis.Client, claimTTL, retention time.Duration) *Ledger {
	if claimTTL <= 0 {
		claimTTL = 5 * time.Minute
	}
	if retention <= 0 {
		retention = 72 * time.Hour
	}
	return &Ledger{client: client, claimTTL: claimTTL, retention: retention}
}

// Get retrieves a delivery record
func (l *Ledger) Get(ctx context.Context, provider, deliveryID string) (webhook.DeliveryRecord, error) {
	data, err := l.client.HGetAll(ctx, ledgerKey(provider, deliveryID)).Result()
	if err != nil {
		return webhook.DeliveryRecord{}, fmt.Errorf("getting delivery record: %w", err)
	}
	if len(data) == 0 {
		return webhook.DeliveryRecord{}, webhook.ErrNotFound
	}
	return decodeRecord(data), nil
}

// Claim inserts a Processing record unless a Processed record or a live claim exists.
// Live claims are the ones Redis has not expired yet.
func (l *Ledger) Claim(ctx context.Context, rec webhook.DeliveryRecord) (webhook.DeliveryRecord, bool, error) {
	key := ledgerKey(rec.Provider, rec.DeliveryID)
	now := time.Now()
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = now
	}
	rec.Outcome = webhook.Processing
	rec.UpdatedAt = now

	var (
		existing webhook.DeliveryRecord
		claimed  bool
	)
	txf := func(tx *redis.Tx) error {
		data, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		if len(data) > 0 {
			existing = decodeRecord(data)
			if existing.Outcome != webhook.Failed {
				claimed = false
				return nil
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, encodeRecord(rec))
			pipe.Expire(ctx, key, l.claimTTL)
			return nil
		})
		if err != nil {
			return err
		}
		claimed = true
		return nil
	}

	for i := 0; i < maxClaimAttempts; i++ {
		err := l.client.Watch(ctx, txf, key)
		if err == nil {
			if claimed {
				return rec, true, nil
			}
			return existing, false, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return webhook.DeliveryRecord{}, false, fmt.Errorf("claiming delivery: %w", err)
		}
	}
	return webhook.DeliveryRecord{}, false, fmt.Errorf("claiming delivery: too much contention on %s", key)
}

// Complete records the final outcome and extends the key to the retention window.
// A record that expired or was never claimed is left absent.
func (l *Ledger) Complete(ctx context.Context, provider, deliveryID string, outcome webhook.Outcome) error {
	if err := outcome.Validate(); err != nil {
		return err
	}

	key := ledgerKey(provider, deliveryID)
	txf := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return webhook.ErrNotFound
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, map[string]interface{}{
				"outcome":    outcome.String(),
				"updated_at": time.Now().UnixMilli(),
			})
			pipe.Expire(ctx, key, l.retention)
			return nil
		})
		return err
	}

	for i := 0; i < maxClaimAttempts; i++ {
		err := l.client.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, webhook.ErrNotFound):
			return err
		case !errors.Is(err, redis.TxFailedErr):
			return fmt.Errorf("completing delivery: %w", err)
		}
	}
	return fmt.Errorf("completing delivery: too much contention on %s", key)
}

// Close closes the Redis connection
func (l *Ledger) Close() error {
	return l.client.Close()
}

func ledgerKey(provider, deliveryID string) string {
	return fmt.Sprintf("%s:%s", ledgerPrefix, webhook.LedgerKey(provider, deliveryID))
}

func encodeRecord(rec webhook.DeliveryRecord) map[string]interface{} {
	return map[string]interface{}{
		"provider":    rec.Provider,
		"delivery_id": rec.DeliveryID,
		"topic":       rec.Topic,
		"outcome":     rec.Outcome.String(),
		"received_at": rec.ReceivedAt.UnixMilli(),
		"updated_at":  rec.UpdatedAt.UnixMilli(),
	}
}

func decodeRecord(data map[string]string) webhook.DeliveryRecord {
	return webhook.DeliveryRecord{
		Provider:   data["provider"],
		DeliveryID: data["delivery_id"],
		Topic:      data["topic"],
		Outcome:    webhook.NewOutcome(data["outcome"]),
		ReceivedAt: time.UnixMilli(parseInt64(data["received_at"])),
		UpdatedAt:  time.UnixMilli(parseInt64(data["updated_at"])),
	}
}
