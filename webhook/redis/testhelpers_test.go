//go:build integration

package redis_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/marcelsud/storesync/webhook/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	testcontainersredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

/* Ledger test fixtures
 * One container per test function; every subtest opens its own Ledger and
 * inspects keys through a raw client
 */

type ledgerEnv struct {
	addr string
	raw  *goredis.Client
}

// startLedgerRedis runs a Redis container for the duration of the test
func startLedgerRedis(t *testing.T, ctx context.Context) *ledgerEnv {
	t.Helper()

	container, err := testcontainersredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err, "failed to start Redis container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Redis container: %v", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	env := &ledgerEnv{addr: strings.TrimPrefix(uri, "redis://")}
	env.raw = goredis.NewClient(&goredis.Options{Addr: env.addr})
	require.NoError(t, env.raw.Ping(ctx).Err())
	t.Cleanup(func() { _ = env.raw.Close() })
	return env
}

// ledger opens a Ledger through the package's Connect
func (e *ledgerEnv) ledger(t *testing.T, claimTTL, retention time.Duration) *redis.Ledger {
	t.Helper()

	client, err := redis.Connect(e.addr, "", 0)
	require.NoError(t, err, "failed to connect to Redis")
	l := redis.NewLedger(client, claimTTL, retention)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

// deliveryID returns an ID no other subtest uses
func deliveryID(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("dlv-%s-%d", strings.ReplaceAll(t.Name(), "/", "-"), time.Now().UnixNano())
}

func ledgerRedisKey(provider, id string) string {
	return "webhook:ledger:" + provider + ":" + id
}

func (e *ledgerEnv) ttl(t *testing.T, key string) time.Duration {
	t.Helper()
	d, err := e.raw.TTL(context.Background(), key).Result()
	require.NoError(t, err)
	return d
}

func (e *ledgerEnv) exists(t *testing.T, key string) bool {
	t.Helper()
	n, err := e.raw.Exists(context.Background(), key).Result()
	require.NoError(t, err)
	return n > 0
}
