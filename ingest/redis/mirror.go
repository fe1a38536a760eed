package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/marcelsud/storesync/ingest"
	"github.com/redis/go-redis/v9"
)

/* Redis implementation of ingest.Mirror
 * Hash naming: mirror:{kind}, one field per entity id
 */

const mirrorPrefix = "mirror"

type Mirror struct {
	client *redis.Client
}

// NewMirror creates a Mirror on an open client
func NewMirror(client *redis.Client) *Mirror {
	return &Mirror{client: client}
}

// Put implements ingest.Mirror
func (m *Mirror) Put(ctx context.Context, rec ingest.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling mirror record: %w", err)
	}
	if err := m.client.HSet(ctx, hashKey(rec.Kind), rec.ID, data).Err(); err != nil {
		return fmt.Errorf("storing mirror record: %w", err)
	}
	return nil
}

// Get implements ingest.Mirror
func (m *Mirror) Get(ctx context.Context, kind ingest.Kind, id string) (ingest.Record, error) {
	raw, err := m.client.HGet(ctx, hashKey(kind), id).Result()
	if errors.Is(err, redis.Nil) {
		return ingest.Record{}, ingest.ErrNotFound
	}
	if err != nil {
		return ingest.Record{}, fmt.Errorf("getting mirror record: %w", err)
	}

	var rec ingest.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return ingest.Record{}, fmt.Errorf("unmarshaling mirror record: %w", err)
	}
	return rec, nil
}

// Count implements ingest.Mirror
func (m *Mirror) Count(ctx context.Context, kind ingest.Kind) (int64, error) {
	n, err := m.client.HLen(ctx, hashKey(kind)).Result()
	if err != nil {
		return 0, fmt.Errorf("counting mirror records: %w", err)
	}
	return n, nil
}

func hashKey(kind ingest.Kind) string {
	return fmt.Sprintf("%s:%s", mirrorPrefix, kind)
}
