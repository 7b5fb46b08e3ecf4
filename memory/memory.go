package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/coordmesh/core"
	"github.com/hupe1980/coordmesh/logging"
)

// Counter names under <namespace>:stats:.
const (
	counterOps            = "operations"
	counterCacheHits      = "cache_hits"
	counterCacheMisses    = "cache_misses"
	counterActiveSessions = "active_sessions"
	counterPatterns       = "patterns_stored"
	counterMessages       = "messages_stored"
	counterLearnings      = "learnings_stored"
)

// Options configures a Memory instance using the functional options pattern.
type Options struct {
	// Config contains TTLs, namespace and scan tuning. Defaults to
	// DefaultConfig if not specified.
	Config Config

	// Logger provides structured logging. Defaults to NoOp logger if nil.
	Logger logging.Logger
}

// WithConfig overrides the default configuration.
func WithConfig(cfg Config) func(o *Options) {
	return func(o *Options) { o.Config = cfg }
}

// WithLogger overrides the default NoOp logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// Memory is the coordination memory component. All state lives in the backing
// store (single source of truth); the struct itself only carries wiring and is
// safe for concurrent use.
type Memory struct {
	store   core.Store
	cfg     Config
	logger  logging.Logger
	started time.Time
}

// New creates a Memory on top of the given store. The configuration is
// validated eagerly; an invalid TTL ordering is a construction error, not a
// runtime surprise.
func New(store core.Store, optFns ...func(o *Options)) (*Memory, error) {
	opts := Options{Config: DefaultConfig, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Memory{store: store, cfg: opts.Config, logger: opts.Logger, started: time.Now()}, nil
}

// Config returns the active configuration.
func (m *Memory) Config() Config { return m.cfg }

// StoreSession writes the session with the session TTL, bumps the
// active-session counter for first-time ids and publishes session-stored.
// Calling again with the same id is an idempotent last-write-wins overwrite.
func (m *Memory) StoreSession(ctx context.Context, sess *core.Session) (time.Time, error) {
	if sess == nil || sess.ID == "" {
		return time.Time{}, core.NewValidationError("id", "session id must not be empty")
	}
	key := m.cfg.sessionKey(sess.ID)

	_, err := m.store.Get(ctx, key)
	isNew := errors.Is(err, core.ErrNotFound)
	if err != nil && !isNew {
		return time.Time{}, fmt.Errorf("store session %q: %w", sess.ID, err)
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return time.Time{}, fmt.Errorf("store session %q: encode: %w", sess.ID, err)
	}
	if err := m.store.Set(ctx, key, data, m.cfg.SessionTTL); err != nil {
		return time.Time{}, fmt.Errorf("store session %q: %w", sess.ID, err)
	}

	if isNew {
		m.bump(ctx, counterActiveSessions, 1)
	}
	m.bump(ctx, counterOps, 1)
	m.publish(ctx, core.NewEvent(core.EventSessionStored, sess.ID, sess.ProjectDescription))
	return time.Now().UTC(), nil
}

// GetSession returns the session or core.ErrNotFound. A hit refreshes the TTL
// (sliding expiration) and the last-accessed timestamp; a miss bumps the
// cache-miss counter and is a normal outcome, not a failure.
func (m *Memory) GetSession(ctx context.Context, id string) (*core.Session, error) {
	key := m.cfg.sessionKey(id)
	data, err := m.store.Get(ctx, key)
	if errors.Is(err, core.ErrNotFound) {
		m.bump(ctx, counterCacheMisses, 1)
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %q: %w", id, err)
	}

	var sess core.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("get session %q: decode: %w", id, err)
	}
	sess.LastAccessed = time.Now().UTC()

	// sliding expiration; a lost update here only shortens bookkeeping, so
	// the rewrite is best-effort
	if refreshed, err := json.Marshal(&sess); err == nil {
		if err := m.store.Set(ctx, key, refreshed, m.cfg.SessionTTL); err != nil {
			m.logger.Warn("session TTL refresh failed", "session_id", id, "error", err)
		}
	}

	m.bump(ctx, counterCacheHits, 1)
	m.bump(ctx, counterOps, 1)
	return &sess, nil
}

// StorePattern writes the pattern with the pattern TTL, maintains the
// type/language/source/tag indexes and publishes pattern-stored. Missing id,
// creation time and validation status are defaulted.
func (m *Memory) StorePattern(ctx context.Context, p *core.Pattern) (time.Time, error) {
	if p == nil || p.Name == "" {
		return time.Time{}, core.NewValidationError("name", "pattern name must not be empty")
	}
	if p.ID == "" {
		p.ID = core.NewID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.LastAccessed.IsZero() {
		p.LastAccessed = p.CreatedAt
	}
	if p.Validation == "" {
		p.Validation = core.PatternPending
	}

	key := m.cfg.patternKey(p.ID)
	_, err := m.store.Get(ctx, key)
	isNew := errors.Is(err, core.ErrNotFound)
	if err != nil && !isNew {
		return time.Time{}, fmt.Errorf("store pattern %q: %w", p.ID, err)
	}

	data, err := json.Marshal(p)
	if err != nil {
		return time.Time{}, fmt.Errorf("store pattern %q: encode: %w", p.ID, err)
	}
	if err := m.store.Set(ctx, key, data, m.cfg.PatternTTL); err != nil {
		return time.Time{}, fmt.Errorf("store pattern %q: %w", p.ID, err)
	}
	if err := m.indexPattern(ctx, p); err != nil {
		return time.Time{}, err
	}

	if isNew {
		m.bump(ctx, counterPatterns, 1)
	}
	m.bump(ctx, counterOps, 1)
	m.publish(ctx, core.NewEvent(core.EventPatternStored, p.ID, p.Name))
	return time.Now().UTC(), nil
}

// indexPattern records the pattern id in every index set the pattern belongs
// to. Index keys inherit the pattern TTL so they cannot outlive their
// members forever; the maintenance sweep self-heals any missed expirations.
func (m *Memory) indexPattern(ctx context.Context, p *core.Pattern) error {
	keys := make([]string, 0, 3+len(p.Tags))
	if p.Type != "" {
		keys = append(keys, m.cfg.patternIndexKey("type", p.Type))
	}
	if p.Language != "" {
		keys = append(keys, m.cfg.patternIndexKey("language", p.Language))
	}
	if p.SourceAgent != "" {
		keys = append(keys, m.cfg.patternIndexKey("source", p.SourceAgent))
	}
	for _, tag := range p.Tags {
		keys = append(keys, m.cfg.patternIndexKey("tag", tag))
	}
	for _, key := range keys {
		if err := m.store.SAdd(ctx, key, p.ID); err != nil {
			return fmt.Errorf("index pattern %q: %w", p.ID, err)
		}
		if err := m.store.Expire(ctx, key, m.cfg.PatternTTL); err != nil && !errors.Is(err, core.ErrNotFound) {
			m.logger.Warn("index TTL set failed", "key", key, "error", err)
		}
	}
	return nil
}

// GetPattern returns the pattern or core.ErrNotFound. A hit increments the
// access counter, updates last-accessed and refreshes the TTL.
func (m *Memory) GetPattern(ctx context.Context, id string) (*core.Pattern, error) {
	key := m.cfg.patternKey(id)
	data, err := m.store.Get(ctx, key)
	if errors.Is(err, core.ErrNotFound) {
		m.bump(ctx, counterCacheMisses, 1)
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pattern %q: %w", id, err)
	}

	var p core.Pattern
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("get pattern %q: decode: %w", id, err)
	}
	p.AccessCount++
	p.LastAccessed = time.Now().UTC()

	if refreshed, err := json.Marshal(&p); err == nil {
		if err := m.store.Set(ctx, key, refreshed, m.cfg.PatternTTL); err != nil {
			m.logger.Warn("pattern access update failed", "pattern_id", id, "error", err)
		}
	}

	m.bump(ctx, counterCacheHits, 1)
	m.bump(ctx, counterOps, 1)
	return &p, nil
}

// StoreMessage writes the message with the message TTL. If the message
// belongs to a session, its id is appended to that session's ordered message
// list and the list TTL is re-matched to the session TTL.
func (m *Memory) StoreMessage(ctx context.Context, msg *core.Message) (string, time.Time, error) {
	if msg == nil || msg.FromAgent == "" {
		return "", time.Time{}, core.NewValidationError("from_agent", "message sender must not be empty")
	}
	if msg.ToAgent == "" {
		return "", time.Time{}, core.NewValidationError("to_agent", "message recipient must not be empty")
	}
	if msg.ID == "" {
		msg.ID = core.NewID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if msg.Priority == "" {
		msg.Priority = core.PriorityNormal
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("store message %q: encode: %w", msg.ID, err)
	}
	if err := m.store.Set(ctx, m.cfg.messageKey(msg.ID), data, m.cfg.MessageTTL); err != nil {
		return "", time.Time{}, fmt.Errorf("store message %q: %w", msg.ID, err)
	}

	if msg.SessionID != "" {
		listKey := m.cfg.messagesKey(msg.SessionID)
		if err := m.store.RPush(ctx, listKey, msg.ID); err != nil {
			return "", time.Time{}, fmt.Errorf("store message %q: session list: %w", msg.ID, err)
		}
		if err := m.store.Expire(ctx, listKey, m.cfg.SessionTTL); err != nil && !errors.Is(err, core.ErrNotFound) {
			m.logger.Warn("message list TTL set failed", "session_id", msg.SessionID, "error", err)
		}
	}

	m.bump(ctx, counterMessages, 1)
	m.bump(ctx, counterOps, 1)
	return msg.ID, time.Now().UTC(), nil
}

// SessionMessages returns up to limit messages of a session in chronological
// order, oldest first. A non-positive limit returns the full list. Messages
// whose record already expired are skipped.
func (m *Memory) SessionMessages(ctx context.Context, sessionID string, limit int) ([]*core.Message, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	ids, err := m.store.LRange(ctx, m.cfg.messagesKey(sessionID), 0, stop)
	if err != nil {
		return nil, fmt.Errorf("session messages %q: %w", sessionID, err)
	}

	msgs := make([]*core.Message, 0, len(ids))
	for _, id := range ids {
		data, err := m.store.Get(ctx, m.cfg.messageKey(id))
		if errors.Is(err, core.ErrNotFound) {
			continue // message TTL elapsed before the list reference
		}
		if err != nil {
			return nil, fmt.Errorf("session messages %q: %w", sessionID, err)
		}
		var msg core.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			m.logger.Warn("skipping undecodable message", "message_id", id, "error", err)
			continue
		}
		msgs = append(msgs, &msg)
	}
	return msgs, nil
}

// StoreLearning computes the importance score for the record, writes it with
// the learning TTL, indexes it by type and importance bucket and publishes
// learning-stored.
func (m *Memory) StoreLearning(ctx context.Context, rec *core.LearningRecord) (string, time.Time, error) {
	if rec == nil || rec.Insights == "" {
		return "", time.Time{}, core.NewValidationError("insights", "learning insights must not be empty")
	}
	if rec.ID == "" {
		rec.ID = core.NewID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Type == "" {
		rec.Type = core.LearningGeneral
	}
	rec.Importance = importanceScore(rec)

	data, err := json.Marshal(rec)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("store learning %q: encode: %w", rec.ID, err)
	}
	if err := m.store.Set(ctx, m.cfg.learningKey(rec.ID), data, m.cfg.LearningTTL); err != nil {
		return "", time.Time{}, fmt.Errorf("store learning %q: %w", rec.ID, err)
	}

	for _, key := range []string{
		m.cfg.learningIndexKey("type", string(rec.Type)),
		m.cfg.learningIndexKey("importance", string(core.BucketFor(rec.Importance))),
	} {
		if err := m.store.SAdd(ctx, key, rec.ID); err != nil {
			return "", time.Time{}, fmt.Errorf("index learning %q: %w", rec.ID, err)
		}
		if err := m.store.Expire(ctx, key, m.cfg.LearningTTL); err != nil && !errors.Is(err, core.ErrNotFound) {
			m.logger.Warn("index TTL set failed", "key", key, "error", err)
		}
	}

	m.bump(ctx, counterLearnings, 1)
	m.bump(ctx, counterOps, 1)
	m.publish(ctx, core.NewEvent(core.EventLearningStored, rec.ID, string(rec.Type)))
	return rec.ID, time.Now().UTC(), nil
}

// ArchiveSession moves a session record into the long-TTL archive namespace,
// deletes the live copy, decrements the active-session counter and publishes
// session-archived.
func (m *Memory) ArchiveSession(ctx context.Context, sess *core.Session) (time.Time, error) {
	if sess == nil || sess.ID == "" {
		return time.Time{}, core.NewValidationError("id", "session id must not be empty")
	}
	if sess.EndedAt == nil {
		now := time.Now().UTC()
		sess.EndedAt = &now
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return time.Time{}, fmt.Errorf("archive session %q: encode: %w", sess.ID, err)
	}
	if err := m.store.Set(ctx, m.cfg.archiveKey(sess.ID), data, m.cfg.ArchiveTTL); err != nil {
		return time.Time{}, fmt.Errorf("archive session %q: %w", sess.ID, err)
	}
	if err := m.store.Delete(ctx, m.cfg.sessionKey(sess.ID)); err != nil {
		return time.Time{}, fmt.Errorf("archive session %q: remove live copy: %w", sess.ID, err)
	}

	m.bump(ctx, counterActiveSessions, -1)
	m.bump(ctx, counterOps, 1)
	m.publish(ctx, core.NewEvent(core.EventSessionArchived, sess.ID, sess.Summary))
	return time.Now().UTC(), nil
}

// DropSession removes a live session without archiving it. Used by the expiry
// sweep for sessions that exceeded the maximum duration.
func (m *Memory) DropSession(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, m.cfg.sessionKey(id)); err != nil {
		return fmt.Errorf("drop session %q: %w", id, err)
	}
	m.bump(ctx, counterActiveSessions, -1)
	return nil
}

// ActiveSessions streams every live session to fn. Undecodable records are
// skipped and logged, matching search semantics.
func (m *Memory) ActiveSessions(ctx context.Context, fn func(*core.Session) error) error {
	prefix := m.cfg.Namespace + ":session:"
	return m.store.Scan(ctx, prefix+"*", m.cfg.ScanBatchSize, func(keys []string) error {
		for _, key := range keys {
			if strings.HasSuffix(key, ":messages") {
				continue
			}
			data, err := m.store.Get(ctx, key)
			if errors.Is(err, core.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			var sess core.Session
			if err := json.Unmarshal(data, &sess); err != nil {
				m.logger.Warn("skipping undecodable session", "key", key, "error", err)
				continue
			}
			if err := fn(&sess); err != nil {
				return err
			}
		}
		return nil
	})
}

// Patterns streams every stored pattern to fn in bounded batches. Unlike
// SearchPatterns it applies no ranking and no truncation, so callers see the
// complete registry. Undecodable records are skipped and logged, matching
// search semantics.
func (m *Memory) Patterns(ctx context.Context, fn func(*core.Pattern) error) error {
	prefix := m.cfg.Namespace + ":pattern:"
	return m.store.Scan(ctx, prefix+"*", m.cfg.ScanBatchSize, func(keys []string) error {
		for _, key := range keys {
			data, err := m.store.Get(ctx, key)
			if errors.Is(err, core.ErrNotFound) {
				continue // expired between scan and read
			}
			if err != nil {
				return err
			}
			var p core.Pattern
			if err := json.Unmarshal(data, &p); err != nil {
				m.logger.Warn("skipping undecodable pattern", "key", key, "error", err)
				continue
			}
			if err := fn(&p); err != nil {
				return err
			}
		}
		return nil
	})
}

// Stats are the aggregate counters of the coordination memory.
type Stats struct {
	Operations       int64         `json:"operations"`
	CacheHits        int64         `json:"cache_hits"`
	CacheMisses      int64         `json:"cache_misses"`
	ActiveSessions   int64         `json:"active_sessions"`
	PatternsStored   int64         `json:"patterns_stored"`
	MessagesStored   int64         `json:"messages_stored"`
	LearningsStored  int64         `json:"learnings_stored"`
	MemoryUsageBytes int64         `json:"memory_usage_bytes"`
	Uptime           time.Duration `json:"uptime"`
}

// GetStats reads the aggregate counters plus the approximate backing-store
// memory usage.
func (m *Memory) GetStats(ctx context.Context) (Stats, error) {
	stats := Stats{Uptime: time.Since(m.started)}
	reads := []struct {
		name string
		dst  *int64
	}{
		{counterOps, &stats.Operations},
		{counterCacheHits, &stats.CacheHits},
		{counterCacheMisses, &stats.CacheMisses},
		{counterActiveSessions, &stats.ActiveSessions},
		{counterPatterns, &stats.PatternsStored},
		{counterMessages, &stats.MessagesStored},
		{counterLearnings, &stats.LearningsStored},
	}
	for _, r := range reads {
		// IncrBy 0 is an atomic read that works on counters never written
		n, err := m.store.IncrBy(ctx, m.cfg.statsKey(r.name), 0)
		if err != nil {
			return Stats{}, fmt.Errorf("read counter %q: %w", r.name, err)
		}
		*r.dst = n
	}
	usage, err := m.store.MemoryUsage(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("read memory usage: %w", err)
	}
	stats.MemoryUsageBytes = usage
	return stats, nil
}

// Subscribe returns a typed event channel for the given kinds (all four when
// none are named) plus a cancel function releasing the subscription.
func (m *Memory) Subscribe(ctx context.Context, kinds ...core.EventKind) (<-chan core.Event, func() error, error) {
	if len(kinds) == 0 {
		kinds = core.EventKinds()
	}
	channels := make([]string, len(kinds))
	for i, k := range kinds {
		channels[i] = m.cfg.eventChannel(string(k))
	}
	deliveries, cancel, err := m.store.Subscribe(ctx, channels...)
	if err != nil {
		return nil, nil, fmt.Errorf("subscribe events: %w", err)
	}

	out := make(chan core.Event, 64)
	go func() {
		defer close(out)
		for d := range deliveries {
			var ev core.Event
			if err := json.Unmarshal(d.Payload, &ev); err != nil {
				m.logger.Warn("skipping undecodable event", "channel", d.Channel, "error", err)
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, cancel, nil
}

// EnsureIndexTTLs walks the index keyspace and sets an expiration on any
// index key missing one, self-healing against missed TTL sets. Advisory:
// failures are logged by the scheduler, never fatal.
func (m *Memory) EnsureIndexTTLs(ctx context.Context) (int, error) {
	touched := 0
	prefix := m.cfg.Namespace + ":index:"
	err := m.store.Scan(ctx, prefix+"*", m.cfg.ScanBatchSize, func(keys []string) error {
		for _, key := range keys {
			ttl, err := m.store.TTL(ctx, key)
			if errors.Is(err, core.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if ttl != 0 {
				continue
			}
			want := m.cfg.PatternTTL
			if strings.HasPrefix(key, prefix+"learning:") {
				want = m.cfg.LearningTTL
			}
			if err := m.store.Expire(ctx, key, want); err != nil && !errors.Is(err, core.ErrNotFound) {
				return err
			}
			touched++
		}
		return nil
	})
	return touched, err
}

// bump adjusts a stats counter. Counters are observability aids; failures are
// logged at debug and never surface to callers.
func (m *Memory) bump(ctx context.Context, name string, delta int64) {
	if _, err := m.store.IncrBy(ctx, m.cfg.statsKey(name), delta); err != nil {
		m.logger.Debug("counter update failed", "counter", name, "error", err)
	}
}

// publish emits a lifecycle event on the kind's channel. Event delivery is
// best-effort; a publish failure is logged, not propagated, because the write
// it announces already succeeded.
func (m *Memory) publish(ctx context.Context, ev core.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		m.logger.Warn("event encode failed", "kind", ev.Kind, "error", err)
		return
	}
	if err := m.store.Publish(ctx, m.cfg.eventChannel(string(ev.Kind)), payload); err != nil {
		m.logger.Warn("event publish failed", "kind", ev.Kind, "error", err)
	}
}
