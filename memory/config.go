package memory

import (
	"fmt"
	"time"
)

// Config defines the TTL categories and scan tuning of the coordination
// memory. All values are supplied at construction time; there is no runtime
// mutation.
type Config struct {
	// Namespace prefixes every key and pub/sub channel so multiple instances
	// can coexist on one backend.
	Namespace string

	// SessionTTL bounds live session records. Refreshed on read (sliding
	// expiration).
	SessionTTL time.Duration

	// MessageTTL bounds individual message records.
	MessageTTL time.Duration

	// PatternTTL bounds pattern records. Patterns are durable organizational
	// knowledge, so this is orders of magnitude longer than a session.
	PatternTTL time.Duration

	// LearningTTL bounds learning records, the slowest-expiring category.
	LearningTTL time.Duration

	// ArchiveTTL bounds archived session records.
	ArchiveTTL time.Duration

	// ScanBatchSize caps how many keys a keyspace scan materializes at once.
	ScanBatchSize int64

	// DefaultSearchLimit applies when a pattern query carries no limit.
	DefaultSearchLimit int
}

// DefaultConfig provides production-ready default TTLs honoring the
// monotonic ordering session < message < pattern < learning.
var DefaultConfig = Config{
	Namespace:          "coordmesh",
	SessionTTL:         time.Hour,
	MessageTTL:         6 * time.Hour,
	PatternTTL:         14 * 24 * time.Hour,
	LearningTTL:        30 * 24 * time.Hour,
	ArchiveTTL:         30 * 24 * time.Hour,
	ScanBatchSize:      100,
	DefaultSearchLimit: 20,
}

// Validate checks the TTL ordering invariant and scan tuning.
func (c Config) Validate() error {
	if c.Namespace == "" {
		return fmt.Errorf("memory config: namespace must not be empty")
	}
	if c.SessionTTL <= 0 || c.MessageTTL <= 0 || c.PatternTTL <= 0 || c.LearningTTL <= 0 {
		return fmt.Errorf("memory config: all TTLs must be positive")
	}
	if !(c.SessionTTL < c.MessageTTL && c.MessageTTL < c.PatternTTL && c.PatternTTL < c.LearningTTL) {
		return fmt.Errorf("memory config: TTLs must be ordered session < message < pattern < learning")
	}
	if c.ArchiveTTL <= 0 {
		return fmt.Errorf("memory config: archive TTL must be positive")
	}
	if c.ScanBatchSize <= 0 {
		return fmt.Errorf("memory config: scan batch size must be positive")
	}
	return nil
}

// Key layout: <namespace>:<entity>:<id>, indexes under <namespace>:index:...
// and counters under <namespace>:stats:<name>.

func (c Config) sessionKey(id string) string  { return c.Namespace + ":session:" + id }
func (c Config) archiveKey(id string) string  { return c.Namespace + ":archive:session:" + id }
func (c Config) messagesKey(id string) string { return c.Namespace + ":session:" + id + ":messages" }
func (c Config) patternKey(id string) string  { return c.Namespace + ":pattern:" + id }
func (c Config) messageKey(id string) string  { return c.Namespace + ":message:" + id }
func (c Config) learningKey(id string) string { return c.Namespace + ":learning:" + id }
func (c Config) statsKey(name string) string  { return c.Namespace + ":stats:" + name }

func (c Config) patternIndexKey(field, value string) string {
	return c.Namespace + ":index:pattern:" + field + ":" + value
}

func (c Config) learningIndexKey(field, value string) string {
	return c.Namespace + ":index:learning:" + field + ":" + value
}

func (c Config) eventChannel(kind string) string {
	return c.Namespace + ":events:" + kind
}
