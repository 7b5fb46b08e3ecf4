package coordinator

import (
	"strings"

	"github.com/hupe1980/coordmesh/core"
)

// ConflictKind distinguishes the two detection rules.
type ConflictKind string

const (
	// ConflictNaming is an exact match on (name, type). Severity is always
	// high; it must be resolved before acceptance.
	ConflictNaming ConflictKind = "naming"
	// ConflictSimilarity is a blended-score match above the configured
	// threshold.
	ConflictSimilarity ConflictKind = "similarity"
)

// ConflictImpact rates how disruptive accepting the new pattern would be.
type ConflictImpact string

const (
	// ImpactLow covers weak or cross-type/cross-language overlap.
	ImpactLow ConflictImpact = "low"
	// ImpactMedium covers same-type, same-language overlap above the medium
	// threshold.
	ImpactMedium ConflictImpact = "medium"
	// ImpactHigh covers naming conflicts and near-duplicates.
	ImpactHigh ConflictImpact = "high"
)

// Conflict records one detected overlap between a proposed pattern and an
// existing registry entry.
type Conflict struct {
	Kind         ConflictKind   `json:"kind"`
	ExistingID   string         `json:"existing_id"`
	ExistingName string         `json:"existing_name"`
	Similarity   float64        `json:"similarity"`
	Impact       ConflictImpact `json:"impact"`
}

// ResolutionStrategy is the policy applied to a conflicting pattern.
type ResolutionStrategy string

const (
	// ResolutionRename appends a uniqueness suffix to the new pattern's name.
	ResolutionRename ResolutionStrategy = "rename"
	// ResolutionSkip rejects the new pattern as a near-duplicate.
	ResolutionSkip ResolutionStrategy = "skip"
	// ResolutionMerge unions the new pattern with its conflicting entries.
	ResolutionMerge ResolutionStrategy = "merge"
)

// ResolvedConflict pairs a conflict with the strategy that settled it.
type ResolvedConflict struct {
	PatternName string             `json:"pattern_name"`
	Strategy    ResolutionStrategy `json:"strategy"`
	Conflict    Conflict           `json:"conflict"`
}

// conflictBetween checks one candidate/existing pair. An exact (name, type)
// match is a naming conflict regardless of score; otherwise the blended
// similarity is compared against the configured threshold.
func conflictBetween(p, ex *core.Pattern, cfg SimilarityConfig) (Conflict, bool) {
	if ex.ID == p.ID {
		return Conflict{}, false
	}
	if ex.Name == p.Name && ex.Type == p.Type {
		return Conflict{
			Kind:         ConflictNaming,
			ExistingID:   ex.ID,
			ExistingName: ex.Name,
			Similarity:   1,
			Impact:       ImpactHigh,
		}, true
	}
	score := similarity(p, ex, cfg)
	if score > cfg.ConflictThreshold {
		return Conflict{
			Kind:         ConflictSimilarity,
			ExistingID:   ex.ID,
			ExistingName: ex.Name,
			Similarity:   score,
			Impact:       impactOf(p, ex, score, cfg),
		}, true
	}
	return Conflict{}, false
}

// detectConflicts compares the proposed pattern against every entry of the
// given registry slice.
func detectConflicts(p *core.Pattern, existing []*core.Pattern, cfg SimilarityConfig) []Conflict {
	var conflicts []Conflict
	for _, ex := range existing {
		if conf, ok := conflictBetween(p, ex, cfg); ok {
			conflicts = append(conflicts, conf)
		}
	}
	return conflicts
}

// similarity blends four weak signals: name equality (partial credit for
// substring containment), type match, language match and the Jaccard overlap
// of whitespace-tokenized lowercase content.
func similarity(a, b *core.Pattern, cfg SimilarityConfig) float64 {
	var score float64

	an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
	switch {
	case an == bn:
		score += cfg.NameWeight
	case an != "" && bn != "" && (strings.Contains(an, bn) || strings.Contains(bn, an)):
		score += cfg.NameWeight / 2
	}

	if a.Type != "" && a.Type == b.Type {
		score += cfg.TypeWeight
	}
	if a.Language != "" && strings.EqualFold(a.Language, b.Language) {
		score += cfg.LanguageWeight
	}
	score += cfg.ContentWeight * jaccard(tokenize(a.Content), tokenize(b.Content))
	return score
}

// impactOf rates a similarity conflict. Cross-type or cross-language matches
// are always low impact; only same-type, same-language overlap escalates.
func impactOf(a, b *core.Pattern, score float64, cfg SimilarityConfig) ConflictImpact {
	if a.Type != b.Type || !strings.EqualFold(a.Language, b.Language) {
		return ImpactLow
	}
	switch {
	case score > cfg.SkipThreshold:
		return ImpactHigh
	case score > cfg.MediumImpactThreshold:
		return ImpactMedium
	default:
		return ImpactLow
	}
}

func tokenize(content string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(content)) {
		tokens[tok] = struct{}{}
	}
	return tokens
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// resolveConflicts applies the resolution policy in priority order:
//
//  1. any naming conflict -> rename, recording the original name in metadata
//  2. highest similarity above the skip threshold -> skip
//  3. otherwise -> merge tags, usage contexts, metadata (new keys win) and
//     take the maximum confidence across all merged patterns
//
// The returned pattern is a transformed clone; the input is never mutated.
// For a skip the returned pattern is nil.
func resolveConflicts(p *core.Pattern, conflicts []Conflict, existing []*core.Pattern, cfg SimilarityConfig) (ResolutionStrategy, *core.Pattern, string) {
	var maxSim float64
	hasNaming := false
	for _, c := range conflicts {
		if c.Kind == ConflictNaming {
			hasNaming = true
		}
		if c.Similarity > maxSim && c.Kind == ConflictSimilarity {
			maxSim = c.Similarity
		}
	}

	if hasNaming {
		renamed := p.Clone()
		suffix := core.NewID()[:8]
		if renamed.Metadata == nil {
			renamed.Metadata = map[string]string{}
		}
		renamed.Metadata["original_name"] = p.Name
		renamed.Name = p.Name + "-" + suffix
		return ResolutionRename, renamed, "identical (name, type) pair in registry"
	}

	if maxSim > cfg.SkipThreshold {
		return ResolutionSkip, nil, "near-duplicate of existing pattern"
	}

	merged := p.Clone()
	byID := make(map[string]*core.Pattern, len(existing))
	for _, ex := range existing {
		byID[ex.ID] = ex
	}
	for _, c := range conflicts {
		ex, ok := byID[c.ExistingID]
		if !ok {
			continue
		}
		merged.Tags = unionStrings(merged.Tags, ex.Tags)
		merged.UsageContexts = unionStrings(merged.UsageContexts, ex.UsageContexts)
		if merged.Metadata == nil && len(ex.Metadata) > 0 {
			merged.Metadata = map[string]string{}
		}
		for k, v := range ex.Metadata {
			if _, taken := merged.Metadata[k]; !taken { // new pattern's keys win
				merged.Metadata[k] = v
			}
		}
		if ex.Confidence > merged.Confidence {
			merged.Confidence = ex.Confidence
		}
	}
	return ResolutionMerge, merged, "complementary overlap merged"
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
