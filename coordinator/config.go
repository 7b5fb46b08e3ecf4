package coordinator

import (
	"fmt"
	"time"
)

// SimilarityConfig tunes pattern conflict detection. The defaults carry over
// the historical weights; treat them as policy knobs, not ground truth.
type SimilarityConfig struct {
	// NameWeight is credited fully on an exact name match and at half value
	// when one name contains the other.
	NameWeight float64
	// TypeWeight is credited when the pattern types match.
	TypeWeight float64
	// LanguageWeight is credited when the language tags match.
	LanguageWeight float64
	// ContentWeight scales the Jaccard overlap of whitespace-tokenized,
	// lowercased content.
	ContentWeight float64

	// ConflictThreshold flags a similarity conflict when the blended score
	// exceeds it.
	ConflictThreshold float64
	// SkipThreshold rejects a new pattern as a near-duplicate when the
	// highest similarity exceeds it. Also the boundary for high impact.
	SkipThreshold float64
	// MediumImpactThreshold is the boundary between low and medium impact.
	MediumImpactThreshold float64
}

// DefaultSimilarityConfig returns the historical weight blend
// (0.3/0.2/0.1/0.4) and thresholds (0.8 conflict, 0.9 skip).
func DefaultSimilarityConfig() SimilarityConfig {
	return SimilarityConfig{
		NameWeight:            0.3,
		TypeWeight:            0.2,
		LanguageWeight:        0.1,
		ContentWeight:         0.4,
		ConflictThreshold:     0.8,
		SkipThreshold:         0.9,
		MediumImpactThreshold: 0.7,
	}
}

// Config defines tuning parameters for the coordinator's behavior. All values
// are supplied at construction time.
type Config struct {
	// MaxSessionDuration is the wall-clock age after which the expiry sweep
	// terminates an active session.
	MaxSessionDuration time.Duration

	// CoordinationTimeout bounds a single coordinator operation (start,
	// sync, complete) including its store round trips. Zero disables the
	// bound.
	CoordinationTimeout time.Duration

	// Similarity tunes conflict detection.
	Similarity SimilarityConfig
}

// DefaultConfig provides production-ready defaults.
var DefaultConfig = Config{
	MaxSessionDuration:  4 * time.Hour,
	CoordinationTimeout: 30 * time.Second,
	Similarity:          DefaultSimilarityConfig(),
}

// Validate checks the configuration invariants.
func (c Config) Validate() error {
	if c.MaxSessionDuration <= 0 {
		return fmt.Errorf("coordinator config: max session duration must be positive")
	}
	s := c.Similarity
	if s.ConflictThreshold <= 0 || s.ConflictThreshold >= 1 {
		return fmt.Errorf("coordinator config: conflict threshold must be in (0,1)")
	}
	if s.SkipThreshold < s.ConflictThreshold {
		return fmt.Errorf("coordinator config: skip threshold must not undercut conflict threshold")
	}
	return nil
}
