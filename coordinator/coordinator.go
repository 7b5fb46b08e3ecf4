package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/coordmesh/core"
	"github.com/hupe1980/coordmesh/logging"
	"github.com/hupe1980/coordmesh/memory"
)

// StartSessionRequest carries everything needed to open a coordination
// session. SessionID is optional; a fresh id is generated when empty.
type StartSessionRequest struct {
	SessionID            string
	CoordinatorID        string
	ProjectDescription   string
	CoordinationType     string
	RequiredCapabilities []string
	// Agents is the pool participants are selected from.
	Agents []Agent
}

// SessionResults reports how many success criteria a session met.
type SessionResults struct {
	CriteriaMet   int
	CriteriaTotal int
}

// SyncAction is the per-pattern outcome of a sync run.
type SyncAction string

const (
	// ActionStored means the pattern was persisted unchanged.
	ActionStored SyncAction = "stored"
	// ActionRenamed means the pattern was persisted under a new name.
	ActionRenamed SyncAction = "renamed"
	// ActionSkipped means the pattern was rejected as a near-duplicate.
	ActionSkipped SyncAction = "skipped"
	// ActionMerged means the pattern was persisted after merging with
	// conflicting registry entries.
	ActionMerged SyncAction = "merged"
)

// SyncOutcome is the result for one pattern of a sync batch.
type SyncOutcome struct {
	PatternID string     `json:"pattern_id,omitempty"`
	Name      string     `json:"name"`
	Action    SyncAction `json:"action"`
	Reason    string     `json:"reason,omitempty"`
}

// SyncFailure records a pattern whose persistence failed. Other patterns in
// the same batch are unaffected.
type SyncFailure struct {
	Name string `json:"name"`
	Err  error  `json:"-"`
}

// SyncResult summarizes one pattern synchronization run.
type SyncResult struct {
	SourceAgent string             `json:"source_agent"`
	SyncType    string             `json:"sync_type"`
	Outcomes    []SyncOutcome      `json:"outcomes"`
	Conflicts   []ResolvedConflict `json:"conflicts,omitempty"`
	Failures    []SyncFailure      `json:"failures,omitempty"`
	Started     time.Time          `json:"started"`
	Duration    time.Duration      `json:"duration"`
}

// Metrics is a snapshot of the coordinator's in-process counters.
type Metrics struct {
	SessionsStarted        int64
	SessionsCompleted      int64
	SessionsExpired        int64
	PatternsSynced         int64
	PatternsSkipped        int64
	ConflictsResolved      int64
	AverageSessionDuration time.Duration
}

// Options configure a Coordinator instance.
type Options struct {
	// Config holds the tuning parameters. Defaults to DefaultConfig.
	Config Config
	// Logger receives coordination diagnostics. Defaults to a no-op logger.
	Logger logging.Logger
}

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) func(o *Options) {
	return func(o *Options) { o.Config = cfg }
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = logger }
}

// Coordinator owns the session lifecycle and pattern synchronization. It is
// safe for concurrent use; all persistent state lives in the backing memory,
// only run metrics are kept in process.
type Coordinator struct {
	mem    *memory.Memory
	cfg    Config
	logger logging.Logger

	mu      sync.Mutex
	metrics Metrics
}

// New creates a Coordinator on top of the given coordination memory.
func New(mem *memory.Memory, optFns ...func(o *Options)) (*Coordinator, error) {
	if mem == nil {
		return nil, core.NewValidationError("memory", "coordination memory must not be nil")
	}
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	return &Coordinator{
		mem:    mem,
		cfg:    opts.Config,
		logger: opts.Logger,
	}, nil
}

// StartSession validates the request, selects participants covering every
// required capability, assigns roles, builds the four-phase plan and persists
// the new session. Reusing an existing session id fails with ErrSessionExists.
func (c *Coordinator) StartSession(ctx context.Context, req StartSessionRequest) (*core.Session, error) {
	if len(req.RequiredCapabilities) == 0 {
		return nil, core.NewValidationError("required_capabilities", "at least one capability is required")
	}
	if len(req.Agents) == 0 {
		return nil, core.NewValidationError("agents", "agent pool must not be empty")
	}
	if req.CoordinatorID == "" {
		return nil, core.NewValidationError("coordinator_id", "coordinator id must not be empty")
	}
	ctx, cancel := c.bound(ctx)
	defer cancel()

	id := req.SessionID
	if id == "" {
		id = core.NewID()
	} else {
		if _, err := c.mem.GetSession(ctx, id); err == nil {
			return nil, fmt.Errorf("start session %q: %w", id, core.ErrSessionExists)
		} else if !errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("start session %q: %w", id, err)
		}
	}

	participants, uncovered := selectParticipants(req.RequiredCapabilities, req.Agents)
	if uncovered != "" {
		return nil, core.NewValidationError("required_capabilities",
			fmt.Sprintf("no agent in the pool offers %q", uncovered))
	}

	sess := core.NewSession(id, req.CoordinatorID)
	sess.ProjectDescription = req.ProjectDescription
	sess.CoordinationType = req.CoordinationType
	sess.Phases = buildPlan(participants, req.RequiredCapabilities)
	for _, agent := range participants {
		sess.Participants[agent.ID] = roleFor(agent)
	}

	if _, err := c.mem.StoreSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("start session %q: %w", id, err)
	}

	c.mu.Lock()
	c.metrics.SessionsStarted++
	c.mu.Unlock()

	c.logger.Info("session started",
		"session_id", sess.ID,
		"participants", len(sess.Participants),
		"phases", len(sess.Phases),
	)
	return sess, nil
}

// SyncPatterns runs conflict detection for each proposed pattern against the
// existing registry, resolves conflicts (rename, skip or merge) and persists
// the possibly transformed pattern. A persistence failure affects only that
// pattern; the rest of the batch continues. Accepted patterns join the
// registry immediately, so conflicts within one batch are detected too. Target
// agents are notified with a single pattern-share message per recipient; an
// empty target list broadcasts.
func (c *Coordinator) SyncPatterns(ctx context.Context, sourceAgent string, patterns []*core.Pattern, targetAgents []string, syncType string) (*SyncResult, error) {
	if sourceAgent == "" {
		return nil, core.NewValidationError("source_agent", "source agent must not be empty")
	}
	if len(patterns) == 0 {
		return nil, core.NewValidationError("patterns", "pattern batch must not be empty")
	}
	ctx, cancel := c.bound(ctx)
	defer cancel()

	result := &SyncResult{
		SourceAgent: sourceAgent,
		SyncType:    syncType,
		Started:     time.Now().UTC(),
	}
	var acceptedIDs []string

	for _, p := range patterns {
		candidate := p.Clone()
		if candidate.SourceAgent == "" {
			candidate.SourceAgent = sourceAgent
		}

		conflicts, conflicting, err := c.findConflicts(ctx, candidate)
		if err != nil {
			return nil, fmt.Errorf("sync patterns: scan registry: %w", err)
		}
		action := ActionStored
		reason := ""
		if len(conflicts) > 0 {
			strategy, resolved, why := resolveConflicts(candidate, conflicts, conflicting, c.cfg.Similarity)
			reason = why
			for _, conf := range conflicts {
				result.Conflicts = append(result.Conflicts, ResolvedConflict{
					PatternName: candidate.Name,
					Strategy:    strategy,
					Conflict:    conf,
				})
			}
			c.mu.Lock()
			c.metrics.ConflictsResolved += int64(len(conflicts))
			c.mu.Unlock()

			switch strategy {
			case ResolutionSkip:
				result.Outcomes = append(result.Outcomes, SyncOutcome{
					Name:   candidate.Name,
					Action: ActionSkipped,
					Reason: reason,
				})
				c.mu.Lock()
				c.metrics.PatternsSkipped++
				c.mu.Unlock()
				continue
			case ResolutionRename:
				action = ActionRenamed
			case ResolutionMerge:
				action = ActionMerged
			}
			candidate = resolved
		}

		if _, err := c.mem.StorePattern(ctx, candidate); err != nil {
			c.logger.Warn("pattern sync failed",
				"pattern", candidate.Name,
				"source_agent", sourceAgent,
				"error", err,
			)
			result.Failures = append(result.Failures, SyncFailure{Name: candidate.Name, Err: err})
			continue
		}

		acceptedIDs = append(acceptedIDs, candidate.ID)
		result.Outcomes = append(result.Outcomes, SyncOutcome{
			PatternID: candidate.ID,
			Name:      candidate.Name,
			Action:    action,
			Reason:    reason,
		})
		c.mu.Lock()
		c.metrics.PatternsSynced++
		c.mu.Unlock()
	}

	if len(acceptedIDs) > 0 {
		c.notifyTargets(ctx, sourceAgent, targetAgents, syncType, acceptedIDs)
	}

	result.Duration = time.Since(result.Started)
	c.logger.Info("pattern sync finished",
		"source_agent", sourceAgent,
		"patterns", len(patterns),
		"conflicts", len(result.Conflicts),
		"failures", len(result.Failures),
		"duration", result.Duration,
	)
	return result, nil
}

// findConflicts streams the complete pattern registry in bounded batches and
// compares the candidate against every record. Only the conflicting entries
// are retained (resolution needs them for merging), so memory stays
// proportional to the conflict count, not the registry size.
func (c *Coordinator) findConflicts(ctx context.Context, p *core.Pattern) ([]Conflict, []*core.Pattern, error) {
	var conflicts []Conflict
	var conflicting []*core.Pattern
	err := c.mem.Patterns(ctx, func(ex *core.Pattern) error {
		if conf, ok := conflictBetween(p, ex, c.cfg.Similarity); ok {
			conflicts = append(conflicts, conf)
			conflicting = append(conflicting, ex)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return conflicts, conflicting, nil
}

// notifyTargets delivers one pattern-share message per target agent, or a
// single broadcast when no targets are given. Delivery is best effort.
func (c *Coordinator) notifyTargets(ctx context.Context, sourceAgent string, targets []string, syncType string, patternIDs []string) {
	if len(targets) == 0 {
		targets = []string{core.Broadcast}
	}
	payload := map[string]any{
		"pattern_ids": patternIDs,
		"sync_type":   syncType,
	}
	for _, target := range targets {
		msg := &core.Message{
			FromAgent: sourceAgent,
			ToAgent:   target,
			Type:      core.MessagePatternShare,
			Payload:   payload,
		}
		if _, _, err := c.mem.StoreMessage(ctx, msg); err != nil {
			c.logger.Warn("pattern share notification failed",
				"to_agent", target,
				"error", err,
			)
		}
	}
}

// CompleteSession transitions an active session to completed, computes the
// success rate from the supplied results, folds the session duration into the
// running average and archives the session.
func (c *Coordinator) CompleteSession(ctx context.Context, sessionID string, results SessionResults, summary string) (*core.Session, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	sess, err := c.mem.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("complete session %q: %w", sessionID, err)
	}
	if sess.Status.Terminal() {
		return nil, core.NewValidationError("status",
			fmt.Sprintf("session %q is already %s", sessionID, sess.Status))
	}
	if results.CriteriaTotal < results.CriteriaMet || results.CriteriaMet < 0 {
		return nil, core.NewValidationError("results", "criteria met must be within [0, total]")
	}

	now := time.Now().UTC()
	sess.Status = core.SessionCompleted
	sess.EndedAt = &now
	sess.Updated = now
	sess.Summary = summary
	if results.CriteriaTotal > 0 {
		sess.SuccessRate = float64(results.CriteriaMet) / float64(results.CriteriaTotal) * 100
	}

	if _, err := c.mem.ArchiveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("complete session %q: %w", sessionID, err)
	}

	duration := now.Sub(sess.StartedAt)
	c.mu.Lock()
	c.metrics.SessionsCompleted++
	n := c.metrics.SessionsCompleted
	c.metrics.AverageSessionDuration += (duration - c.metrics.AverageSessionDuration) / time.Duration(n)
	c.mu.Unlock()

	c.logger.Info("session completed",
		"session_id", sess.ID,
		"success_rate", sess.SuccessRate,
		"duration", duration,
	)
	return sess, nil
}

// ExpireSessions sweeps the live sessions and terminates those whose
// wall-clock age exceeds the configured maximum duration. Expired sessions
// are archived with status expired. Returns the number of sessions expired.
// The sweep is the system's only cancellation mechanism.
func (c *Coordinator) ExpireSessions(ctx context.Context) (int, error) {
	expired := 0
	err := c.mem.ActiveSessions(ctx, func(sess *core.Session) error {
		if sess.Status.Terminal() || sess.Age() <= c.cfg.MaxSessionDuration {
			return nil
		}
		now := time.Now().UTC()
		sess.Status = core.SessionExpired
		sess.EndedAt = &now
		sess.Updated = now
		if _, err := c.mem.ArchiveSession(ctx, sess); err != nil {
			return fmt.Errorf("expire session %q: %w", sess.ID, err)
		}
		expired++
		c.logger.Info("session expired",
			"session_id", sess.ID,
			"age", sess.Age(),
		)
		return nil
	})
	if expired > 0 {
		c.mu.Lock()
		c.metrics.SessionsExpired += int64(expired)
		c.mu.Unlock()
	}
	return expired, err
}

// Metrics returns a snapshot of the in-process counters.
func (c *Coordinator) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

func (c *Coordinator) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.CoordinationTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.cfg.CoordinationTimeout)
}
