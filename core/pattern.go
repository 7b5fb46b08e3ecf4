package core

import "time"

// PatternValidation enumerates the review states of a pattern.
type PatternValidation string

const (
	// PatternPending marks a pattern awaiting validation.
	PatternPending PatternValidation = "pending"
	// PatternValidated marks a pattern accepted as organizational knowledge.
	PatternValidated PatternValidation = "validated"
	// PatternRejected marks a pattern that failed validation.
	PatternRejected PatternValidation = "rejected"
)

// Pattern is a reusable unit of solution knowledge (code fragment, design
// approach) discovered or contributed by an agent. Patterns are durable
// organizational knowledge: their TTL is orders of magnitude longer than a
// session's. Any agent may propose a pattern; conflict resolution governs
// whether it is accepted, renamed, merged or skipped.
type Pattern struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Type          string            `json:"type"`
	Content       string            `json:"content"`
	SourceAgent   string            `json:"source_agent"`
	Language      string            `json:"language,omitempty"`
	Confidence    float64           `json:"confidence"` // [0,1]
	Tags          []string          `json:"tags,omitempty"`
	UsageContexts []string          `json:"usage_contexts,omitempty"`
	UsageCount    int64             `json:"usage_count"`
	AccessCount   int64             `json:"access_count"`
	CreatedAt     time.Time         `json:"created_at"`
	LastAccessed  time.Time         `json:"last_accessed"`
	Validation    PatternValidation `json:"validation"`
	// Metadata is an explicit bag for genuinely free-form fields so the core
	// fields above stay typed.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Clone returns a deep copy of the pattern.
func (p *Pattern) Clone() *Pattern {
	clone := *p
	clone.Tags = append([]string(nil), p.Tags...)
	clone.UsageContexts = append([]string(nil), p.UsageContexts...)
	if p.Metadata != nil {
		clone.Metadata = make(map[string]string, len(p.Metadata))
		for k, v := range p.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}

// HasTag reports whether the pattern carries the given tag.
func (p *Pattern) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// PatternQuery describes search criteria for the pattern keyspace. Distinct
// fields combine with AND semantics; multiple tags combine with OR.
type PatternQuery struct {
	Type     string   `json:"type,omitempty"`
	Language string   `json:"language,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Source   string   `json:"source,omitempty"`
	Limit    int      `json:"limit,omitempty"`
}

// PatternSearchResult carries the ranked matches of a pattern search plus the
// total number of records that matched before truncation to the limit.
type PatternSearchResult struct {
	Patterns   []*Pattern `json:"patterns"`
	TotalFound int        `json:"total_found"`
}
