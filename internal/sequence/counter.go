package sequence

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ChuLiYu/fleetstore/internal/docstore"
	"github.com/ChuLiYu/fleetstore/internal/errs"
)

// Counter performs one atomic increment-and-read on a scope's counter. An
// implementation must never derive the returned value from a separate read.
type Counter interface {
	IncrementAndGet(ctx context.Context, scope Scope) (int64, error)
}

// StoreCounter keeps counters as documents in the document store, one
// collection per scope family, using the store's upserting increment.
type StoreCounter struct {
	store docstore.Store
}

func NewStoreCounter(store docstore.Store) *StoreCounter {
	return &StoreCounter{store: store}
}

func (c *StoreCounter) IncrementAndGet(ctx context.Context, scope Scope) (int64, error) {
	return c.store.Increment(ctx, scope.Collection(), scope.Filter(), scope.ValueField())
}

// DefaultRedisPrefix namespaces counter keys in a shared Redis.
const DefaultRedisPrefix = "fleetstore:"

// RedisCounter keeps counters as plain Redis integers advanced with INCR.
// Keys look like "fleetstore:seq_map_id:{3,7}".
type RedisCounter struct {
	client redis.Cmdable
	prefix string
}

// NewRedisCounter returns a counter over client. An empty prefix selects
// DefaultRedisPrefix. The caller owns the client lifecycle.
func NewRedisCounter(client redis.Cmdable, prefix string) *RedisCounter {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisCounter{client: client, prefix: prefix}
}

func (c *RedisCounter) key(scope Scope) string {
	return c.prefix + scope.String()
}

func (c *RedisCounter) IncrementAndGet(ctx context.Context, scope Scope) (int64, error) {
	v, err := c.client.Incr(ctx, c.key(scope)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr %s: %w", c.key(scope), errs.Wrap(errs.ErrStoreUnavailable, err))
	}
	return v, nil
}
