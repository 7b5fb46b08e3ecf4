package core

import (
	"context"
	"time"
)

// Delivery is a single message received on a subscribed channel.
type Delivery struct {
	Channel string
	Payload []byte
}

// Store is the backing key-value contract consumed by the memory and
// coordinator components. Any store satisfying it (TTL + pub/sub + basic
// collections) is acceptable; the canonical backend is Redis.
//
// Contract:
//   - Get returns ErrNotFound on a plain miss and ErrStoreUnavailable (or a
//     wrapped form of it) when the backend is unreachable. The two cases must
//     stay distinguishable.
//   - Single-key operations are atomic; concurrent writers to the same key
//     resolve last-write-wins.
//   - Scan visits the keyspace in bounded batches so a large keyspace never
//     has to be materialized at once.
//   - A ttl of zero means "no expiration".
type Store interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, error)

	SAdd(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)

	RPush(ctx context.Context, key string, values ...string) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	Incr(ctx context.Context, key string) (int64, error)
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)

	// Scan streams keys matching the glob pattern to fn in batches of at most
	// batchSize. Scanning stops early if fn returns an error.
	Scan(ctx context.Context, pattern string, batchSize int64, fn func(keys []string) error) error

	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe returns a receive channel plus a cancel function that stops
	// delivery and releases the subscription.
	Subscribe(ctx context.Context, channels ...string) (<-chan Delivery, func() error, error)

	Ping(ctx context.Context) error
	// MemoryUsage reports the approximate number of bytes held by the store.
	MemoryUsage(ctx context.Context) (int64, error)
	Close() error
}
