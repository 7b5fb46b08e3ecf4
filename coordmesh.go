// Package coordmesh provides a high-level façade over the coordination memory
// and the pattern coordinator, enabling rapid construction of multi-agent
// coordination backends. Most applications interact with this package by:
//  1. Creating a CoordMesh via New() (optionally supplying a Redis-backed store)
//  2. Calling Start() to run the background maintenance sweeps
//  3. Driving sessions and pattern syncs through the pass-through operations
//
// The façade delegates storage to memory.Memory and lifecycle decisions to
// coordinator.Coordinator while keeping setup ergonomics concise. All defaults
// are safe for local development and testing; production deployments typically
// supply a Redis store and a structured logger.
package coordmesh

import (
	"context"
	"time"

	"github.com/hupe1980/coordmesh/coordinator"
	"github.com/hupe1980/coordmesh/core"
	"github.com/hupe1980/coordmesh/logging"
	"github.com/hupe1980/coordmesh/memory"
	"github.com/hupe1980/coordmesh/schedule"
	"github.com/hupe1980/coordmesh/store"
)

// DefaultMaintenanceInterval is the cadence of the background sweeps (session
// expiry and index TTL healing).
const DefaultMaintenanceInterval = 5 * time.Minute

// Options configures the CoordMesh instance.
type Options struct {
	// MemoryConfig tunes TTLs, namespace and scan batching.
	MemoryConfig memory.Config

	// CoordinatorConfig tunes session duration limits and conflict policy.
	CoordinatorConfig coordinator.Config

	// MaintenanceInterval sets the cadence of the background sweeps. Set to 0
	// to disable background maintenance entirely.
	MaintenanceInterval time.Duration

	// Store is the backing key-value store (defaults to an in-memory
	// implementation if not provided).
	Store core.Store

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// CoordMesh is the high-level façade aggregating the store, the coordination
// memory, the pattern coordinator and the maintenance scheduler.
type CoordMesh struct {
	opts      Options
	store     core.Store
	memory    *memory.Memory
	coord     *coordinator.Coordinator
	scheduler *schedule.Scheduler
}

// New creates a new CoordMesh instance with optional overrides. An unset store
// is initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) (*CoordMesh, error) {
	opts := Options{
		MemoryConfig:        memory.DefaultConfig,
		CoordinatorConfig:   coordinator.DefaultConfig,
		MaintenanceInterval: DefaultMaintenanceInterval,
		Logger:              logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Store == nil {
		opts.Store = store.NewInMemoryStore()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	mem, err := memory.New(opts.Store,
		memory.WithConfig(opts.MemoryConfig),
		memory.WithLogger(opts.Logger),
	)
	if err != nil {
		return nil, err
	}
	coord, err := coordinator.New(mem,
		coordinator.WithConfig(opts.CoordinatorConfig),
		coordinator.WithLogger(opts.Logger),
	)
	if err != nil {
		return nil, err
	}

	mesh := &CoordMesh{
		opts:      opts,
		store:     opts.Store,
		memory:    mem,
		coord:     coord,
		scheduler: schedule.New(opts.Logger),
	}
	if opts.MaintenanceInterval > 0 {
		if err := mesh.registerMaintenance(opts.MaintenanceInterval); err != nil {
			return nil, err
		}
	}
	return mesh, nil
}

// expiredSweeper is implemented by stores that expire lazily and benefit from
// an eager reclaim pass (the in-memory store; Redis expires keys itself).
type expiredSweeper interface{ SweepExpired() int }

func (c *CoordMesh) registerMaintenance(interval time.Duration) error {
	if err := c.scheduler.Every(interval, "session-expiry", c.coord.ExpireSessions); err != nil {
		return err
	}
	if err := c.scheduler.Every(interval, "index-ttl-heal", c.memory.EnsureIndexTTLs); err != nil {
		return err
	}
	if sw, ok := c.store.(expiredSweeper); ok {
		return c.scheduler.Every(interval, "store-expiry", func(context.Context) (int, error) {
			return sw.SweepExpired(), nil
		})
	}
	return nil
}

// Start launches the background maintenance sweeps. Safe to call once; a
// second call is a no-op.
func (c *CoordMesh) Start() { c.scheduler.Start() }

// Close stops the maintenance sweeps and releases the backing store.
func (c *CoordMesh) Close() error {
	c.scheduler.Stop()
	return c.store.Close()
}

// Memory exposes the underlying coordination memory for advanced use.
func (c *CoordMesh) Memory() *memory.Memory { return c.memory }

// Coordinator exposes the underlying pattern coordinator for advanced use.
func (c *CoordMesh) Coordinator() *coordinator.Coordinator { return c.coord }

// StartSession opens a coordination session: participants are selected by
// capability, roles assigned and the four-phase plan attached.
func (c *CoordMesh) StartSession(ctx context.Context, req coordinator.StartSessionRequest) (*core.Session, error) {
	return c.coord.StartSession(ctx, req)
}

// SyncPatterns runs conflict detection and resolution for the batch and
// persists the accepted patterns.
func (c *CoordMesh) SyncPatterns(ctx context.Context, sourceAgent string, patterns []*core.Pattern, targetAgents []string, syncType string) (*coordinator.SyncResult, error) {
	return c.coord.SyncPatterns(ctx, sourceAgent, patterns, targetAgents, syncType)
}

// CompleteSession finishes a session, computes its success rate and archives
// it.
func (c *CoordMesh) CompleteSession(ctx context.Context, sessionID string, results coordinator.SessionResults, summary string) (*core.Session, error) {
	return c.coord.CompleteSession(ctx, sessionID, results, summary)
}

// GetSession returns a live session or core.ErrNotFound.
func (c *CoordMesh) GetSession(ctx context.Context, id string) (*core.Session, error) {
	return c.memory.GetSession(ctx, id)
}

// StorePattern persists a pattern directly, bypassing conflict detection.
// Prefer SyncPatterns for agent-contributed patterns.
func (c *CoordMesh) StorePattern(ctx context.Context, p *core.Pattern) (time.Time, error) {
	return c.memory.StorePattern(ctx, p)
}

// GetPattern returns a pattern by id, tracking the access.
func (c *CoordMesh) GetPattern(ctx context.Context, id string) (*core.Pattern, error) {
	return c.memory.GetPattern(ctx, id)
}

// SearchPatterns queries the pattern registry.
func (c *CoordMesh) SearchPatterns(ctx context.Context, q core.PatternQuery) (*core.PatternSearchResult, error) {
	return c.memory.SearchPatterns(ctx, q)
}

// StoreMessage persists an agent-to-agent message.
func (c *CoordMesh) StoreMessage(ctx context.Context, msg *core.Message) (string, time.Time, error) {
	return c.memory.StoreMessage(ctx, msg)
}

// SessionMessages returns a session's messages in chronological order.
func (c *CoordMesh) SessionMessages(ctx context.Context, sessionID string, limit int) ([]*core.Message, error) {
	return c.memory.SessionMessages(ctx, sessionID, limit)
}

// StoreLearning persists a learning record with its computed importance.
func (c *CoordMesh) StoreLearning(ctx context.Context, rec *core.LearningRecord) (string, time.Time, error) {
	return c.memory.StoreLearning(ctx, rec)
}

// Stats returns the aggregate counters of the coordination memory.
func (c *CoordMesh) Stats(ctx context.Context) (memory.Stats, error) {
	return c.memory.GetStats(ctx)
}

// Metrics returns the coordinator's in-process counters.
func (c *CoordMesh) Metrics() coordinator.Metrics { return c.coord.Metrics() }

// Subscribe returns a typed event channel for the given lifecycle event kinds
// (all kinds when none are named) plus a cancel function.
func (c *CoordMesh) Subscribe(ctx context.Context, kinds ...core.EventKind) (<-chan core.Event, func() error, error) {
	return c.memory.Subscribe(ctx, kinds...)
}
