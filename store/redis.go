package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hupe1980/coordmesh/core"
)

// RedisConfig configures construction of a RedisStore.
type RedisConfig struct {
	// Addr is the host:port of the Redis server.
	Addr string
	// Password is optional; empty means no AUTH.
	Password string
	// DB selects the logical Redis database.
	DB int
	// PingInterval controls how often the background readiness probe runs
	// after a connectivity failure. Defaults to 5s.
	PingInterval time.Duration
}

// DefaultRedisConfig returns a baseline localhost configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{Addr: "localhost:6379", PingInterval: 5 * time.Second}
}

// RedisStore adapts a Redis client to the core.Store contract. Connectivity
// failures flip an internal ready flag; while not ready every operation fails
// fast with core.ErrStoreUnavailable and a background probe re-pings the
// server until the connection recovers.
type RedisStore struct {
	client *redis.Client
	ready  atomic.Bool
	probe  time.Duration
	cancel context.CancelFunc
}

var _ core.Store = (*RedisStore)(nil)

// NewRedisStore connects to Redis and starts the readiness probe. The initial
// ping failing is not fatal; the store starts not-ready and recovers once the
// server becomes reachable.
func NewRedisStore(cfg RedisConfig) *RedisStore {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 5 * time.Second
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})

	ctx, cancel := context.WithCancel(context.Background())
	s := &RedisStore{client: client, probe: cfg.PingInterval, cancel: cancel}
	s.ready.Store(client.Ping(ctx).Err() == nil)
	go s.probeLoop(ctx)
	return s
}

// NewRedisStoreFromClient wraps an existing client (tests, cluster setups).
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	ctx, cancel := context.WithCancel(context.Background())
	s := &RedisStore{client: client, probe: 5 * time.Second, cancel: cancel}
	s.ready.Store(client.Ping(ctx).Err() == nil)
	go s.probeLoop(ctx)
	return s
}

// Ready reports whether the last interaction with Redis succeeded.
func (s *RedisStore) Ready() bool { return s.ready.Load() }

func (s *RedisStore) probeLoop(ctx context.Context) {
	ticker := time.NewTicker(s.probe)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.ready.Load() {
				continue
			}
			if err := s.client.Ping(ctx).Err(); err == nil {
				s.ready.Store(true)
			}
		}
	}
}

// wrap classifies a go-redis error: redis.Nil becomes core.ErrNotFound, any
// other failure marks the store not-ready and wraps core.ErrStoreUnavailable
// with enough context (operation, key) to log meaningfully.
func (s *RedisStore) wrap(op, key string, err error) error {
	if err == nil {
		s.ready.Store(true)
		return nil
	}
	if err == redis.Nil {
		return core.ErrNotFound
	}
	s.ready.Store(false)
	return fmt.Errorf("%s %q: %w: %v", op, key, core.ErrStoreUnavailable, err)
}

func (s *RedisStore) guard(op, key string) error {
	if !s.ready.Load() {
		return fmt.Errorf("%s %q: %w", op, key, core.ErrStoreUnavailable)
	}
	return nil
}

// Set stores value under key with the given ttl (zero = no expiration).
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.guard("set", key); err != nil {
		return err
	}
	return s.wrap("set", key, s.client.Set(ctx, key, value, ttl).Err())
}

// Get returns the stored value or core.ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := s.guard("get", key); err != nil {
		return nil, err
	}
	val, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, s.wrap("get", key, err)
	}
	return val, nil
}

// Delete removes key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.guard("del", key); err != nil {
		return err
	}
	return s.wrap("del", key, s.client.Del(ctx, key).Err())
}

// Expire sets the expiration of an existing key.
func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.guard("expire", key); err != nil {
		return err
	}
	ok, err := s.client.Expire(ctx, key, ttl).Result()
	if err != nil {
		return s.wrap("expire", key, err)
	}
	if !ok {
		return core.ErrNotFound
	}
	return nil
}

// TTL reports the remaining time-to-live of key.
func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	if err := s.guard("ttl", key); err != nil {
		return 0, err
	}
	d, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, s.wrap("ttl", key, err)
	}
	// go-redis passes through the raw -2 (missing key) / -1 (no expiration)
	// sentinels without scaling them to seconds.
	if d == time.Duration(-2) {
		return 0, core.ErrNotFound
	}
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

// SAdd adds members to the set stored at key.
func (s *RedisStore) SAdd(ctx context.Context, key string, members ...string) error {
	if err := s.guard("sadd", key); err != nil {
		return err
	}
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return s.wrap("sadd", key, s.client.SAdd(ctx, key, args...).Err())
}

// SMembers returns the members of the set stored at key.
func (s *RedisStore) SMembers(ctx context.Context, key string) ([]string, error) {
	if err := s.guard("smembers", key); err != nil {
		return nil, err
	}
	members, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, s.wrap("smembers", key, err)
	}
	return members, nil
}

// RPush appends values to the list stored at key.
func (s *RedisStore) RPush(ctx context.Context, key string, values ...string) error {
	if err := s.guard("rpush", key); err != nil {
		return err
	}
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return s.wrap("rpush", key, s.client.RPush(ctx, key, args...).Err())
}

// LRange returns the list slice [start, stop], stop inclusive.
func (s *RedisStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	if err := s.guard("lrange", key); err != nil {
		return nil, err
	}
	vals, err := s.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, s.wrap("lrange", key, err)
	}
	return vals, nil
}

// Incr increments the counter stored at key.
func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	if err := s.guard("incr", key); err != nil {
		return 0, err
	}
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, s.wrap("incr", key, err)
	}
	return n, nil
}

// IncrBy adds delta to the counter stored at key.
func (s *RedisStore) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	if err := s.guard("incrby", key); err != nil {
		return 0, err
	}
	n, err := s.client.IncrBy(ctx, key, delta).Result()
	if err != nil {
		return 0, s.wrap("incrby", key, err)
	}
	return n, nil
}

// Scan streams matching keys to fn in batches of at most batchSize.
func (s *RedisStore) Scan(ctx context.Context, pattern string, batchSize int64, fn func(keys []string) error) error {
	if err := s.guard("scan", pattern); err != nil {
		return err
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, batchSize).Result()
		if err != nil {
			return s.wrap("scan", pattern, err)
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Publish delivers payload on channel.
func (s *RedisStore) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := s.guard("publish", channel); err != nil {
		return err
	}
	return s.wrap("publish", channel, s.client.Publish(ctx, channel, payload).Err())
}

// Subscribe registers interest in the given channels. The returned cancel
// function closes the subscription and the delivery channel.
func (s *RedisStore) Subscribe(ctx context.Context, channels ...string) (<-chan core.Delivery, func() error, error) {
	if err := s.guard("subscribe", strings.Join(channels, ",")); err != nil {
		return nil, nil, err
	}
	pubsub := s.client.Subscribe(ctx, channels...)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, s.wrap("subscribe", strings.Join(channels, ","), err)
	}

	out := make(chan core.Delivery, 64)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			select {
			case out <- core.Delivery{Channel: msg.Channel, Payload: []byte(msg.Payload)}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, pubsub.Close, nil
}

// Ping verifies connectivity and refreshes the ready flag.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.wrap("ping", "", s.client.Ping(ctx).Err())
}

// MemoryUsage reports the server's used_memory from INFO memory.
func (s *RedisStore) MemoryUsage(ctx context.Context) (int64, error) {
	if err := s.guard("info", "memory"); err != nil {
		return 0, err
	}
	info, err := s.client.Info(ctx, "memory").Result()
	if err != nil {
		return 0, s.wrap("info", "memory", err)
	}
	for _, line := range strings.Split(info, "\n") {
		if rest, ok := strings.CutPrefix(line, "used_memory:"); ok {
			n, perr := strconv.ParseInt(strings.TrimSpace(rest), 10, 64)
			if perr != nil {
				return 0, fmt.Errorf("parse used_memory: %w", perr)
			}
			return n, nil
		}
	}
	return 0, nil
}

// Close stops the readiness probe and closes the client.
func (s *RedisStore) Close() error {
	s.cancel()
	return s.client.Close()
}
