package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/marcelsud/storesync/syncqueue"
	"github.com/redis/go-redis/v9"
)

/* Redis implementation of syncqueue.Store
 * Item naming: syncqueue:item:{key}, JSON encoded
 * Index naming: syncqueue:items, a set of item keys
 */

const (
	itemPrefix = "syncqueue:item"
	indexKey   = "syncqueue:items"
)

const maxClaimAttempts = 5

type Store struct {
	client *redis.Client
}

// NewStore creates a Store on an open client
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Get retrieves an item by idempotency key
func (s *Store) Get(ctx context.Context, key string) (syncqueue.Item, error) {
	return s.get(ctx, s.client, key)
}

// List retrieves every indexed item ordered by creation time
func (s *Store) List(ctx context.Context) ([]syncqueue.Item, error) {
	keys, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("listing queue keys: %w", err)
	}
	if len(keys) == 0 {
		return []syncqueue.Item{}, nil
	}

	redisKeys := make([]string, len(keys))
	for i, k := range keys {
		redisKeys[i] = itemKey(k)
	}
	values, err := s.client.MGet(ctx, redisKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("loading queue items: %w", err)
	}

	items := make([]syncqueue.Item, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var it syncqueue.Item
		if err := json.Unmarshal([]byte(raw), &it); err != nil {
			return nil, fmt.Errorf("unmarshaling queue item: %w", err)
		}
		items = append(items, it)
	}
	syncqueue.SortItems(items)
	return items, nil
}

// Claim moves the item into Processing under an optimistic lock on its key
func (s *Store) Claim(ctx context.Context, ev syncqueue.Event, now time.Time, claimTTL time.Duration) (syncqueue.Item, bool, error) {
	key := ev.Key()
	rkey := itemKey(key)

	var (
		result  syncqueue.Item
		claimed bool
	)
	txf := func(tx *redis.Tx) error {
		existing, err := s.get(ctx, tx, key)
		found := err == nil
		if err != nil && !errors.Is(err, syncqueue.ErrNotFound) {
			return err
		}

		result, claimed = syncqueue.ClaimItem(existing, found, ev, now, claimTTL)
		if !claimed {
			return nil
		}

		data, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshaling queue item: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, rkey, data, 0)
			pipe.SAdd(ctx, indexKey, key)
			return nil
		})
		return err
	}

	for i := 0; i < maxClaimAttempts; i++ {
		err := s.client.Watch(ctx, txf, rkey)
		if err == nil {
			return result, claimed, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return syncqueue.Item{}, false, fmt.Errorf("claiming queue item: %w", err)
		}
	}
	return syncqueue.Item{}, false, fmt.Errorf("claiming queue item: too much contention on %s", key)
}

// Save stores an item and indexes it
func (s *Store) Save(ctx context.Context, it syncqueue.Item) error {
	data, err := json.Marshal(it)
	if err != nil {
		return fmt.Errorf("marshaling queue item: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, itemKey(it.Key), data, 0)
		pipe.SAdd(ctx, indexKey, it.Key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving queue item: %w", err)
	}
	return nil
}

// Delete removes an item and its index entry
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, itemKey(key))
		pipe.SRem(ctx, indexKey, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting queue item: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) get(ctx context.Context, c getter, key string) (syncqueue.Item, error) {
	raw, err := c.Get(ctx, itemKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return syncqueue.Item{}, syncqueue.ErrNotFound
	}
	if err != nil {
		return syncqueue.Item{}, fmt.Errorf("getting queue item: %w", err)
	}

	var it syncqueue.Item
	if err := json.Unmarshal([]byte(raw), &it); err != nil {
		return syncqueue.Item{}, fmt.Errorf("unmarshaling queue item: %w", err)
	}
	return it, nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func itemKey(key string) string {
	return fmt.Sprintf("%s:%s", itemPrefix, key)
}
