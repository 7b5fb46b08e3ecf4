package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/coordmesh/core"
)

type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiration
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// InMemoryStore is a process-local core.Store implementation useful for
// tests, examples and single-process prototypes. It emulates per-key TTL
// (checked lazily on access), set membership, ordered lists, counters and an
// in-process publish/subscribe fan-out. It is safe for concurrent access.
//
// This implementation is intentionally minimal; it does not enforce size
// quotas or background eviction. For production, prefer RedisStore so state
// survives process restarts and is shared across nodes.
type InMemoryStore struct {
	mu       sync.RWMutex
	entries  map[string]entry
	sets     map[string]map[string]struct{}
	lists    map[string][]string
	counters map[string]int64
	ttls     map[string]entry // expiry bookkeeping for sets/lists/counters

	subMu   sync.Mutex
	subs    map[int]subscription
	nextSub int

	closed bool
}

type subscription struct {
	channels map[string]struct{}
	ch       chan core.Delivery
}

// NewInMemoryStore returns an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		entries:  make(map[string]entry),
		sets:     make(map[string]map[string]struct{}),
		lists:    make(map[string][]string),
		counters: make(map[string]int64),
		ttls:     make(map[string]entry),
		subs:     make(map[int]subscription),
	}
}

// Set stores value under key with the given ttl (zero = no expiration).
func (s *InMemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	s.entries[key] = entry{value: cp, expiresAt: expiry(ttl)}
	return nil
}

// Get returns a copy of the stored value or core.ErrNotFound.
func (s *InMemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || e.expired(time.Now()) {
		delete(s.entries, key)
		return nil, core.ErrNotFound
	}
	cp := make([]byte, len(e.value))
	copy(cp, e.value)
	return cp, nil
}

// Delete removes the key from every keyspace.
func (s *InMemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	delete(s.sets, key)
	delete(s.lists, key)
	delete(s.counters, key)
	delete(s.ttls, key)
	return nil
}

// Expire sets (or clears, with zero ttl) the expiration of an existing key.
func (s *InMemoryStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok {
		e.expiresAt = expiry(ttl)
		s.entries[key] = e
		return nil
	}
	if _, ok := s.sets[key]; ok {
		s.ttls[key] = entry{expiresAt: expiry(ttl)}
		return nil
	}
	if _, ok := s.lists[key]; ok {
		s.ttls[key] = entry{expiresAt: expiry(ttl)}
		return nil
	}
	if _, ok := s.counters[key]; ok {
		s.ttls[key] = entry{expiresAt: expiry(ttl)}
		return nil
	}
	return core.ErrNotFound
}

// TTL reports the remaining time-to-live of key. Zero means no expiration.
func (s *InMemoryStore) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.entries[key]; ok {
		if e.expiresAt.IsZero() {
			return 0, nil
		}
		return time.Until(e.expiresAt), nil
	}
	if e, ok := s.ttls[key]; ok && !e.expiresAt.IsZero() {
		return time.Until(e.expiresAt), nil
	}
	if s.hasCollection(key) {
		return 0, nil
	}
	return 0, core.ErrNotFound
}

func (s *InMemoryStore) hasCollection(key string) bool {
	if _, ok := s.sets[key]; ok {
		return true
	}
	if _, ok := s.lists[key]; ok {
		return true
	}
	_, ok := s.counters[key]
	return ok
}

// SAdd adds members to the set stored at key.
func (s *InMemoryStore) SAdd(_ context.Context, key string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[key]
	if !ok {
		set = make(map[string]struct{})
		s.sets[key] = set
	}
	for _, m := range members {
		set[m] = struct{}{}
	}
	return nil
}

// SMembers returns a snapshot of the set stored at key.
func (s *InMemoryStore) SMembers(_ context.Context, key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.sets[key]
	if !ok {
		return []string{}, nil
	}
	members := make([]string, 0, len(set))
	for m := range set {
		members = append(members, m)
	}
	return members, nil
}

// RPush appends values to the list stored at key.
func (s *InMemoryStore) RPush(_ context.Context, key string, values ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[key] = append(s.lists[key], values...)
	return nil
}

// LRange returns the list slice [start, stop] using Redis index semantics
// (negative indexes count from the tail, stop is inclusive).
func (s *InMemoryStore) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.lists[key]
	n := int64(len(list))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop || start >= n {
		return []string{}, nil
	}
	out := make([]string, stop-start+1)
	copy(out, list[start:stop+1])
	return out, nil
}

// Incr increments the counter stored at key and returns the new value.
func (s *InMemoryStore) Incr(ctx context.Context, key string) (int64, error) {
	return s.IncrBy(ctx, key, 1)
}

// IncrBy adds delta to the counter stored at key and returns the new value.
func (s *InMemoryStore) IncrBy(_ context.Context, key string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[key] += delta
	return s.counters[key], nil
}

// Scan visits all keys matching the glob pattern in batches.
func (s *InMemoryStore) Scan(_ context.Context, pattern string, batchSize int64, fn func(keys []string) error) error {
	if batchSize <= 0 {
		batchSize = 100
	}
	s.mu.RLock()
	now := time.Now()
	keys := make([]string, 0)
	for k, e := range s.entries {
		if !e.expired(now) && matchGlob(pattern, k) {
			keys = append(keys, k)
		}
	}
	for k := range s.sets {
		if !s.ttls[k].expired(now) && matchGlob(pattern, k) {
			keys = append(keys, k)
		}
	}
	for k := range s.lists {
		if !s.ttls[k].expired(now) && matchGlob(pattern, k) {
			keys = append(keys, k)
		}
	}
	for k := range s.counters {
		if !s.ttls[k].expired(now) && matchGlob(pattern, k) {
			keys = append(keys, k)
		}
	}
	s.mu.RUnlock()

	for len(keys) > 0 {
		n := int64(len(keys))
		if n > batchSize {
			n = batchSize
		}
		if err := fn(keys[:n]); err != nil {
			return err
		}
		keys = keys[n:]
	}
	return nil
}

// Publish delivers payload to every subscriber of channel. Slow subscribers
// are skipped rather than blocking the publisher.
func (s *InMemoryStore) Publish(_ context.Context, channel string, payload []byte) error {
	cp := make([]byte, len(payload))
	copy(cp, payload)
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, sub := range s.subs {
		if _, ok := sub.channels[channel]; !ok {
			continue
		}
		select {
		case sub.ch <- core.Delivery{Channel: channel, Payload: cp}:
		default:
		}
	}
	return nil
}

// Subscribe registers interest in the given channels.
func (s *InMemoryStore) Subscribe(_ context.Context, channels ...string) (<-chan core.Delivery, func() error, error) {
	chans := make(map[string]struct{}, len(channels))
	for _, c := range channels {
		chans[c] = struct{}{}
	}
	ch := make(chan core.Delivery, 64)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = subscription{channels: chans, ch: ch}
	s.subMu.Unlock()

	cancel := func() error {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub.ch)
		}
		return nil
	}
	return ch, cancel, nil
}

// Ping reports readiness; the in-memory store is always ready until closed.
func (s *InMemoryStore) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return core.ErrStoreUnavailable
	}
	return nil
}

// MemoryUsage reports the approximate number of bytes held in values.
func (s *InMemoryStore) MemoryUsage(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for k, e := range s.entries {
		total += int64(len(k) + len(e.value))
	}
	for k, list := range s.lists {
		total += int64(len(k))
		for _, v := range list {
			total += int64(len(v))
		}
	}
	for k, set := range s.sets {
		total += int64(len(k))
		for m := range set {
			total += int64(len(m))
		}
	}
	total += int64(len(s.counters) * (8 + 16))
	return total, nil
}

// Close marks the store unavailable and drops all subscriptions.
func (s *InMemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, sub := range s.subs {
		delete(s.subs, id)
		close(sub.ch)
	}
	return nil
}

// SweepExpired removes lazily-expired entries eagerly. Exposed so maintenance
// jobs can reclaim memory without waiting for reads to touch dead keys.
func (s *InMemoryStore) SweepExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	removed := 0
	for k, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, k)
			removed++
		}
	}
	for k, e := range s.ttls {
		if e.expired(now) {
			delete(s.sets, k)
			delete(s.lists, k)
			delete(s.counters, k)
			delete(s.ttls, k)
			removed++
		}
	}
	return removed
}

func expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}

// matchGlob supports the subset of Redis glob syntax the components use:
// literal segments with a single '*' wildcard matching any run of characters.
func matchGlob(pattern, s string) bool {
	if pattern == "*" || pattern == "" {
		return true
	}
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == s
	}
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]
	for i := 1; i < len(parts)-1; i++ {
		idx := strings.Index(s, parts[i])
		if idx < 0 {
			return false
		}
		s = s[idx+len(parts[i]):]
	}
	return strings.HasSuffix(s, parts[len(parts)-1])
}
