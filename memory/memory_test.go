package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/coordmesh/core"
	"github.com/hupe1980/coordmesh/store"
)

func newTestMemory(t *testing.T) (*Memory, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemoryStore()
	m, err := New(st)
	require.NoError(t, err)
	return m, st
}

func TestNew_RejectsUnorderedTTLs(t *testing.T) {
	cfg := DefaultConfig
	cfg.MessageTTL = cfg.SessionTTL / 2 // message must outlive session
	_, err := New(store.NewInMemoryStore(), WithConfig(cfg))
	assert.Error(t, err)
}

func TestStoreSession_RoundTrip(t *testing.T) {
	m, st := newTestMemory(t)
	ctx := context.Background()

	sess := core.NewSession("sess-1", "coord-1")
	sess.ProjectDescription = "rebuild the auth flow"
	sess.Participants["agent-a"] = "backend-lead"

	_, err := m.StoreSession(ctx, sess)
	require.NoError(t, err)

	got, err := m.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, sess.ProjectDescription, got.ProjectDescription)
	assert.Equal(t, sess.Participants, got.Participants)
	assert.Equal(t, core.SessionActive, got.Status)

	// the live record must never outlive the configured session TTL
	ttl, err := st.TTL(ctx, "coordmesh:session:sess-1")
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, m.Config().SessionTTL)
}

func TestGetSession_MissIsNotFound(t *testing.T) {
	m, _ := newTestMemory(t)
	ctx := context.Background()

	_, err := m.GetSession(ctx, "nope")
	assert.ErrorIs(t, err, core.ErrNotFound)

	stats, err := m.GetStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.CacheMisses)
}

func TestStoreSession_OverwriteDoesNotDoubleCount(t *testing.T) {
	m, _ := newTestMemory(t)
	ctx := context.Background()

	sess := core.NewSession("sess-1", "coord-1")
	_, err := m.StoreSession(ctx, sess)
	require.NoError(t, err)
	_, err = m.StoreSession(ctx, sess) // idempotent overwrite
	require.NoError(t, err)

	stats, err := m.GetStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.ActiveSessions)
}

func TestArchiveSession_RemovesLiveCopy(t *testing.T) {
	m, _ := newTestMemory(t)
	ctx := context.Background()

	sess := core.NewSession("sess-1", "coord-1")
	_, err := m.StoreSession(ctx, sess)
	require.NoError(t, err)

	_, err = m.ArchiveSession(ctx, sess)
	require.NoError(t, err)

	_, err = m.GetSession(ctx, "sess-1")
	assert.ErrorIs(t, err, core.ErrNotFound)

	stats, err := m.GetStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, stats.ActiveSessions)
}

func TestGetPattern_AccessTracking(t *testing.T) {
	m, _ := newTestMemory(t)
	ctx := context.Background()

	p := &core.Pattern{Name: "auth-middleware", Type: "component", SourceAgent: "agent-a"}
	_, err := m.StorePattern(ctx, p)
	require.NoError(t, err)

	var last time.Time
	for i := 1; i <= 3; i++ {
		time.Sleep(2 * time.Millisecond)
		got, err := m.GetPattern(ctx, p.ID)
		require.NoError(t, err)
		assert.EqualValues(t, i, got.AccessCount)
		assert.True(t, got.LastAccessed.After(last), "last_accessed must strictly increase")
		last = got.LastAccessed
	}
}

func TestStorePattern_Indexes(t *testing.T) {
	m, st := newTestMemory(t)
	ctx := context.Background()

	p := &core.Pattern{Name: "retry-loop", Type: "snippet", Language: "go", SourceAgent: "agent-b", Tags: []string{"resilience", "http"}}
	_, err := m.StorePattern(ctx, p)
	require.NoError(t, err)

	for _, key := range []string{
		"coordmesh:index:pattern:type:snippet",
		"coordmesh:index:pattern:language:go",
		"coordmesh:index:pattern:source:agent-b",
		"coordmesh:index:pattern:tag:resilience",
		"coordmesh:index:pattern:tag:http",
	} {
		members, err := st.SMembers(ctx, key)
		require.NoError(t, err)
		assert.Contains(t, members, p.ID, "missing index entry in %s", key)
	}
}

func TestStoreMessage_SessionListChronological(t *testing.T) {
	m, _ := newTestMemory(t)
	ctx := context.Background()

	var ids []string
	for _, body := range []string{"first", "second", "third"} {
		msg := &core.Message{
			FromAgent: "agent-a",
			ToAgent:   "agent-b",
			Type:      core.MessageStatusUpdate,
			Payload:   map[string]any{"body": body},
			SessionID: "sess-1",
		}
		id, _, err := m.StoreMessage(ctx, msg)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	msgs, err := m.SessionMessages(ctx, "sess-1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for i, msg := range msgs {
		assert.Equal(t, ids[i], msg.ID, "messages must replay oldest first")
	}

	limited, err := m.SessionMessages(ctx, "sess-1", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, ids[0], limited[0].ID)
}

func TestStoreMessage_ValidatesEndpoints(t *testing.T) {
	m, _ := newTestMemory(t)
	ctx := context.Background()

	_, _, err := m.StoreMessage(ctx, &core.Message{ToAgent: "b"})
	var verr *core.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, _, err = m.StoreMessage(ctx, &core.Message{FromAgent: "a"})
	assert.ErrorAs(t, err, &verr)
}

func TestStoreLearning_ImportanceClamped(t *testing.T) {
	m, _ := newTestMemory(t)
	ctx := context.Background()

	rec := &core.LearningRecord{
		Type:        core.LearningOptimization,
		SourceAgent: "agent-a",
		Insights:    "caching the plan cut latency in half",
		Impact: core.ImpactMetrics{
			SuccessRate:            0.99,
			PerformanceImprovement: 0.5,
			UsageFrequency:         100,
		},
	}
	id, _, err := m.StoreLearning(ctx, rec)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.LessOrEqual(t, rec.Importance, 1.0)
	assert.GreaterOrEqual(t, rec.Importance, 0.0)
	assert.Equal(t, core.ImportanceHigh, core.BucketFor(rec.Importance))
}

func TestImportanceScore_Bounds(t *testing.T) {
	for _, typ := range []core.LearningType{
		core.LearningDiscovery, core.LearningInsight, core.LearningOptimization,
		core.LearningErrorResolution, core.LearningGeneral, core.LearningType("unknown"),
	} {
		for _, impact := range []core.ImpactMetrics{
			{},
			{SuccessRate: 1, PerformanceImprovement: 99, UsageFrequency: 1 << 30},
			{SuccessRate: -5, PerformanceImprovement: -1},
		} {
			score := importanceScore(&core.LearningRecord{Type: typ, Impact: impact})
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 1.0)
		}
	}
}

func TestSubscribe_ReceivesTypedEvents(t *testing.T) {
	m, _ := newTestMemory(t)
	ctx := context.Background()

	events, cancel, err := m.Subscribe(ctx, core.EventPatternStored)
	require.NoError(t, err)
	defer func() { _ = cancel() }()

	p := &core.Pattern{Name: "auth-middleware", Type: "component"}
	_, err = m.StorePattern(ctx, p)
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, core.EventPatternStored, ev.Kind)
		assert.Equal(t, p.ID, ev.SubjectID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for pattern-stored event")
	}
}

func TestEnsureIndexTTLs_HealsMissingExpiry(t *testing.T) {
	m, st := newTestMemory(t)
	ctx := context.Background()

	// simulate an index write whose Expire was missed
	require.NoError(t, st.SAdd(ctx, "coordmesh:index:pattern:type:orphan", "p1"))

	touched, err := m.EnsureIndexTTLs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, touched)

	ttl, err := st.TTL(ctx, "coordmesh:index:pattern:type:orphan")
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestGetStats_Aggregates(t *testing.T) {
	m, _ := newTestMemory(t)
	ctx := context.Background()

	_, err := m.StoreSession(ctx, core.NewSession("s1", "c1"))
	require.NoError(t, err)
	_, err = m.StorePattern(ctx, &core.Pattern{Name: "p", Type: "component"})
	require.NoError(t, err)
	_, _, err = m.StoreMessage(ctx, &core.Message{FromAgent: "a", ToAgent: "b"})
	require.NoError(t, err)

	stats, err := m.GetStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.ActiveSessions)
	assert.EqualValues(t, 1, stats.PatternsStored)
	assert.EqualValues(t, 1, stats.MessagesStored)
	assert.Greater(t, stats.Operations, int64(0))
	assert.Greater(t, stats.MemoryUsageBytes, int64(0))
}
