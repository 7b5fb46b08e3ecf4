package coordinator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/coordmesh/core"
	"github.com/hupe1980/coordmesh/internal/testutil"
	"github.com/hupe1980/coordmesh/memory"
	"github.com/hupe1980/coordmesh/store"
)

func newTestCoordinator(t *testing.T, optFns ...func(o *Options)) (*Coordinator, *memory.Memory) {
	t.Helper()
	mem, err := memory.New(store.NewInMemoryStore())
	require.NoError(t, err)
	coord, err := New(mem, optFns...)
	require.NoError(t, err)
	return coord, mem
}

func testPool() []Agent {
	return []Agent{
		{ID: "agent-a", Capabilities: []string{"backend"}},
		{ID: "agent-b", Capabilities: []string{"security"}},
		{ID: "agent-c", Capabilities: []string{"frontend"}},
	}
}

func TestCoordinator_StartSession(t *testing.T) {
	coord, mem := newTestCoordinator(t)
	ctx := context.Background()

	sess, err := coord.StartSession(ctx, StartSessionRequest{
		SessionID:            "sess-1",
		CoordinatorID:        "coordinator-1",
		ProjectDescription:   "harden the payment service",
		CoordinationType:     "project",
		RequiredCapabilities: []string{"backend", "security"},
		Agents:               testPool(),
	})
	require.NoError(t, err)

	assert.Equal(t, core.SessionActive, sess.Status)
	assert.Equal(t, "backend-lead", sess.Participants["agent-a"])
	assert.Equal(t, "security-advisor", sess.Participants["agent-b"])
	assert.Contains(t, sess.Participants, "agent-c") // complementary pick
	assert.Len(t, sess.Phases, 4)

	stored, err := mem.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, sess.ID, stored.ID)
	assert.Equal(t, sess.Participants, stored.Participants)

	assert.Equal(t, int64(1), coord.Metrics().SessionsStarted)
}

func TestCoordinator_StartSession_DuplicateID(t *testing.T) {
	coord, _ := newTestCoordinator(t)
	ctx := context.Background()

	req := StartSessionRequest{
		SessionID:            "sess-dup",
		CoordinatorID:        "coordinator-1",
		RequiredCapabilities: []string{"backend"},
		Agents:               testPool(),
	}
	_, err := coord.StartSession(ctx, req)
	require.NoError(t, err)

	_, err = coord.StartSession(ctx, req)
	assert.ErrorIs(t, err, core.ErrSessionExists)
}

func TestCoordinator_StartSession_Validation(t *testing.T) {
	coord, _ := newTestCoordinator(t)
	ctx := context.Background()

	var verr *core.ValidationError
	_, err := coord.StartSession(ctx, StartSessionRequest{
		CoordinatorID: "coordinator-1",
		Agents:        testPool(),
	})
	assert.ErrorAs(t, err, &verr)

	_, err = coord.StartSession(ctx, StartSessionRequest{
		CoordinatorID:        "coordinator-1",
		RequiredCapabilities: []string{"database"},
		Agents:               testPool(),
	})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "database")
}

func TestCoordinator_SyncPatterns_SecondSameNameIsRenamed(t *testing.T) {
	coord, mem := newTestCoordinator(t)
	ctx := context.Background()

	first := &core.Pattern{Name: "auth-middleware", Type: "component", Language: "go", Content: "verify bearer token"}
	res, err := coord.SyncPatterns(ctx, "agent-a", []*core.Pattern{first}, nil, "share")
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, ActionStored, res.Outcomes[0].Action)
	assert.Equal(t, "auth-middleware", res.Outcomes[0].Name)

	second := &core.Pattern{Name: "auth-middleware", Type: "component", Language: "typescript", Content: "express middleware checking jwt"}
	res, err = coord.SyncPatterns(ctx, "agent-b", []*core.Pattern{second}, nil, "share")
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, ActionRenamed, res.Outcomes[0].Action)
	assert.True(t, strings.HasPrefix(res.Outcomes[0].Name, "auth-middleware-"))
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, ResolutionRename, res.Conflicts[0].Strategy)

	stored, err := mem.GetPattern(ctx, res.Outcomes[0].PatternID)
	require.NoError(t, err)
	assert.Equal(t, "auth-middleware", stored.Metadata["original_name"])
	assert.Equal(t, "agent-b", stored.SourceAgent)
}

func TestCoordinator_SyncPatterns_RenamesWithinOneBatch(t *testing.T) {
	coord, _ := newTestCoordinator(t)
	ctx := context.Background()

	batch := []*core.Pattern{
		{Name: "retry-loop", Type: "snippet", Language: "go", Content: "backoff with jitter"},
		{Name: "retry-loop", Type: "snippet", Language: "python", Content: "tenacity wrapper"},
	}
	res, err := coord.SyncPatterns(ctx, "agent-a", batch, nil, "share")
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, ActionStored, res.Outcomes[0].Action)
	assert.Equal(t, ActionRenamed, res.Outcomes[1].Action)
}

func TestCoordinator_SyncPatterns_DetectsConflictWithColdPattern(t *testing.T) {
	coord, mem := newTestCoordinator(t)
	ctx := context.Background()

	batch := []*core.Pattern{
		{Name: "alpha", Type: "snippet", Language: "go", Content: "first entry"},
		{Name: "beta", Type: "snippet", Language: "go", Content: "second entry"},
	}
	res, err := coord.SyncPatterns(ctx, "agent-a", batch, nil, "share")
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 2)

	// heat alpha so ranking-based views of the registry would surface it first
	for i := 0; i < 5; i++ {
		_, err := mem.GetPattern(ctx, res.Outcomes[0].PatternID)
		require.NoError(t, err)
	}

	// a duplicate of the never-read pattern must still be caught and renamed
	res, err = coord.SyncPatterns(ctx, "agent-b", []*core.Pattern{
		{Name: "beta", Type: "snippet", Language: "go", Content: "competing entry"},
	}, nil, "share")
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, ActionRenamed, res.Outcomes[0].Action)
	assert.True(t, strings.HasPrefix(res.Outcomes[0].Name, "beta-"))
}

func TestCoordinator_SyncPatterns_SkipLeavesRegistryUnchanged(t *testing.T) {
	cfg := DefaultConfig
	cfg.Similarity.ConflictThreshold = 0.7
	cfg.Similarity.SkipThreshold = 0.8
	coord, mem := newTestCoordinator(t, WithConfig(cfg))
	ctx := context.Background()

	first := &core.Pattern{Name: "auth", Type: "component", Language: "go", Content: "verify token issue session"}
	_, err := coord.SyncPatterns(ctx, "agent-a", []*core.Pattern{first}, nil, "share")
	require.NoError(t, err)

	duplicate := &core.Pattern{Name: "auth-middleware", Type: "component", Language: "go", Content: "verify token issue session"}
	res, err := coord.SyncPatterns(ctx, "agent-b", []*core.Pattern{duplicate}, nil, "share")
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, ActionSkipped, res.Outcomes[0].Action)
	assert.Empty(t, res.Outcomes[0].PatternID)

	search, err := mem.SearchPatterns(ctx, core.PatternQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, search.TotalFound, "skipped pattern must not grow the registry")
	assert.Equal(t, int64(1), coord.Metrics().PatternsSkipped)
}

func TestCoordinator_SyncPatterns_MergeUnionsKnowledge(t *testing.T) {
	coord, mem := newTestCoordinator(t)
	ctx := context.Background()

	first := &core.Pattern{
		Name: "auth", Type: "component", Language: "go",
		Content:    "verify token issue session",
		Confidence: 0.9,
		Tags:       []string{"auth", "http"},
	}
	_, err := coord.SyncPatterns(ctx, "agent-a", []*core.Pattern{first}, nil, "share")
	require.NoError(t, err)

	overlapping := &core.Pattern{
		Name: "auth-middleware", Type: "component", Language: "go",
		Content:    "verify token issue session",
		Confidence: 0.5,
		Tags:       []string{"middleware"},
	}
	res, err := coord.SyncPatterns(ctx, "agent-b", []*core.Pattern{overlapping}, nil, "share")
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 1)
	require.Equal(t, ActionMerged, res.Outcomes[0].Action)

	merged, err := mem.GetPattern(ctx, res.Outcomes[0].PatternID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"auth", "http", "middleware"}, merged.Tags)
	assert.InDelta(t, 0.9, merged.Confidence, 1e-9)
}

// flakyStore fails writes whose payload mentions the poisoned name. It stands
// in for a store that drops out mid-batch.
type flakyStore struct {
	core.Store
	poison string
}

func (s *flakyStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if strings.Contains(string(value), s.poison) {
		return core.ErrStoreUnavailable
	}
	return s.Store.Set(ctx, key, value, ttl)
}

func TestCoordinator_SyncPatterns_PartialFailure(t *testing.T) {
	mem, err := memory.New(&flakyStore{Store: store.NewInMemoryStore(), poison: "broken-pattern"})
	require.NoError(t, err)
	coord, err := New(mem)
	require.NoError(t, err)
	ctx := context.Background()

	batch := []*core.Pattern{
		{Name: "broken-pattern", Type: "snippet", Language: "go", Content: "will not persist"},
		{Name: "healthy-pattern", Type: "snippet", Language: "go", Content: "persists fine"},
	}
	res, err := coord.SyncPatterns(ctx, "agent-a", batch, nil, "share")
	require.NoError(t, err, "one failed pattern must not fail the batch")

	require.Len(t, res.Failures, 1)
	assert.Equal(t, "broken-pattern", res.Failures[0].Name)
	assert.ErrorIs(t, res.Failures[0].Err, core.ErrStoreUnavailable)

	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, "healthy-pattern", res.Outcomes[0].Name)
	assert.Equal(t, ActionStored, res.Outcomes[0].Action)
}

func TestCoordinator_SyncPatterns_NotifiesTargets(t *testing.T) {
	coord, mem := newTestCoordinator(t)
	ctx := context.Background()

	p := &core.Pattern{Name: "cache-aside", Type: "snippet", Language: "go", Content: "read through"}
	_, err := coord.SyncPatterns(ctx, "agent-a", []*core.Pattern{p}, []string{"agent-b", "agent-c"}, "share")
	require.NoError(t, err)

	stats, err := mem.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.MessagesStored)
}

func TestCoordinator_CompleteSession_SuccessRate(t *testing.T) {
	coord, mem := newTestCoordinator(t)
	ctx := context.Background()

	_, err := coord.StartSession(ctx, StartSessionRequest{
		SessionID:            "sess-done",
		CoordinatorID:        "coordinator-1",
		RequiredCapabilities: []string{"backend"},
		Agents:               testPool(),
	})
	require.NoError(t, err)

	sess, err := coord.CompleteSession(ctx, "sess-done", SessionResults{CriteriaMet: 3, CriteriaTotal: 4}, "shipped")
	require.NoError(t, err)
	assert.Equal(t, core.SessionCompleted, sess.Status)
	assert.InDelta(t, 75.0, sess.SuccessRate, 1e-9)
	assert.Equal(t, "shipped", sess.Summary)
	require.NotNil(t, sess.EndedAt)

	// archived sessions leave the live namespace
	_, err = mem.GetSession(ctx, "sess-done")
	assert.ErrorIs(t, err, core.ErrNotFound)

	m := coord.Metrics()
	assert.Equal(t, int64(1), m.SessionsCompleted)
	assert.Greater(t, m.AverageSessionDuration, time.Duration(0))
}

func TestCoordinator_CompleteSession_MissingSession(t *testing.T) {
	coord, _ := newTestCoordinator(t)

	_, err := coord.CompleteSession(context.Background(), "nope", SessionResults{CriteriaMet: 1, CriteriaTotal: 1}, "")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCoordinator_CompleteSession_RejectsBadResults(t *testing.T) {
	coord, _ := newTestCoordinator(t)
	ctx := context.Background()

	_, err := coord.StartSession(ctx, StartSessionRequest{
		SessionID:            "sess-bad",
		CoordinatorID:        "coordinator-1",
		RequiredCapabilities: []string{"backend"},
		Agents:               testPool(),
	})
	require.NoError(t, err)

	var verr *core.ValidationError
	_, err = coord.CompleteSession(ctx, "sess-bad", SessionResults{CriteriaMet: 5, CriteriaTotal: 4}, "")
	assert.ErrorAs(t, err, &verr)
}

func TestCoordinator_ExpireSessions(t *testing.T) {
	cfg := DefaultConfig
	cfg.MaxSessionDuration = time.Hour
	coord, mem := newTestCoordinator(t, WithConfig(cfg))
	ctx := context.Background()

	stale := testutil.NewSessionBuilder("sess-stale").StartedAgo(2 * time.Hour).Build()
	_, err := mem.StoreSession(ctx, stale)
	require.NoError(t, err)

	fresh := testutil.NewSessionBuilder("sess-fresh").Build()
	_, err = mem.StoreSession(ctx, fresh)
	require.NoError(t, err)

	expired, err := coord.ExpireSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	_, err = mem.GetSession(ctx, "sess-stale")
	assert.ErrorIs(t, err, core.ErrNotFound)

	still, err := mem.GetSession(ctx, "sess-fresh")
	require.NoError(t, err)
	assert.Equal(t, core.SessionActive, still.Status)

	assert.Equal(t, int64(1), coord.Metrics().SessionsExpired)
}

func TestNew_RejectsNilMemory(t *testing.T) {
	_, err := New(nil)
	var verr *core.ValidationError
	assert.True(t, errors.As(err, &verr))
}
