// Package memory implements the coordination memory: categorized, TTL-scoped
// storage and indexing for sessions, patterns, messages and learning records
// on top of the core.Store contract.
//
// Each category carries its own time-to-live, ordered so that ephemeral
// coordination state expires fastest and organizational knowledge slowest
// (session < message < pattern < learning); the ordering is validated at
// construction. Every pattern write is indexed by type, language, source and
// tag so search never needs a full scan under normal operation, and lifecycle
// operations publish typed events (session-stored, session-archived,
// pattern-stored, learning-stored) through the store's pub/sub for external
// transport layers to fan out.
//
// Counters (operations, cache hits/misses, active sessions) are maintained
// with atomic store increments. They are observability aids, not
// correctness-critical state: lost updates under races are accepted.
package memory
