package metrics

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ledgerPattern matches the hashes written by the Redis idempotency ledger
const ledgerPattern = "webhook:ledger:*"

// RedisLedgerCollector counts Redis ledger records by outcome
type RedisLedgerCollector struct {
	client *redis.Client
}

// NewRedisLedgerCollector creates a collector on an open client
func NewRedisLedgerCollector(client *redis.Client) *RedisLedgerCollector {
	return &RedisLedgerCollector{client: client}
}

// OutcomeCounts implements OutcomeCounter
func (c *RedisLedgerCollector) OutcomeCounts(ctx context.Context) (map[string]int64, error) {
	counts := map[string]int64{
		"processing": 0,
		"processed":  0,
		"failed":     0,
	}

	var keys []string
	var cursor uint64
	for {
		scanKeys, next, err := c.client.Scan(ctx, cursor, ledgerPattern, 1000).Result()
		if err != nil {
			return nil, fmt.Errorf("scanning ledger keys: %w", err)
		}
		keys = append(keys, scanKeys...)

		cursor = next
		if cursor == 0 {
			break
		}
	}
	if len(keys) == 0 {
		return counts, nil
	}

	pipe := c.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.HGet(ctx, key, "outcome")
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("executing pipeline: %w", err)
	}

	for _, cmd := range cmds {
		outcome, err := cmd.Result()
		if err != nil {
			// key expired between scan and read
			continue
		}
		counts[outcome]++
	}
	return counts, nil
}
