// Package coordinator owns the session lifecycle (start, execute, complete),
// participant selection by capability, coordination-plan construction and
// pattern conflict detection/resolution.
//
// Sessions move created -> active -> completed, with an orthogonal
// active -> expired transition applied by a periodic sweep once a session's
// wall-clock age exceeds the configured maximum duration. Completed and
// expired are terminal. The sweep is the system's only cancellation
// mechanism; there is no explicit cancel API.
//
// Conflict resolution applies a fixed priority: identical (name, type) pairs
// are definitionally ambiguous and are renamed, never silently overwritten;
// near-duplicates above the skip threshold add no value and are discarded;
// everything else is assumed complementary and merged rather than lost. The
// similarity weights and thresholds are tunable policy, not a principled
// algorithm, and are exposed through SimilarityConfig.
package coordinator
