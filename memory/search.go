package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hupe1980/coordmesh/core"
)

// Search ranking blend. Access count saturates so a handful of very hot
// patterns cannot fully drown out recently used ones.
const (
	accessWeight  = 0.7
	recencyWeight = 0.3

	accessSaturation = 10.0
	recencyHorizon   = 7 * 24 * time.Hour
)

// SearchPatterns scans the pattern keyspace in bounded batches, applies the
// query filters (AND across distinct fields, OR within tags), ranks matches
// by an access-count/recency blend and truncates to the query limit.
// Individual records that fail to deserialize are skipped and logged; a bad
// record never aborts the whole search.
func (m *Memory) SearchPatterns(ctx context.Context, q core.PatternQuery) (*core.PatternSearchResult, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = m.cfg.DefaultSearchLimit
	}

	var matches []*core.Pattern
	prefix := m.cfg.Namespace + ":pattern:"
	err := m.store.Scan(ctx, prefix+"*", m.cfg.ScanBatchSize, func(keys []string) error {
		for _, key := range keys {
			data, err := m.store.Get(ctx, key)
			if errors.Is(err, core.ErrNotFound) {
				continue // expired between scan and read
			}
			if err != nil {
				return fmt.Errorf("search patterns: %w", err)
			}
			var p core.Pattern
			if err := json.Unmarshal(data, &p); err != nil {
				m.logger.Warn("skipping undecodable pattern", "key", key, "error", err)
				continue
			}
			if matchesQuery(&p, q) {
				matches = append(matches, &p)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sort.Slice(matches, func(i, j int) bool {
		return rankScore(matches[i], now) > rankScore(matches[j], now)
	})

	total := len(matches)
	if len(matches) > limit {
		matches = matches[:limit]
	}
	m.bump(ctx, counterOps, 1)
	return &core.PatternSearchResult{Patterns: matches, TotalFound: total}, nil
}

// matchesQuery applies AND semantics across distinct fields and OR semantics
// within the tags filter.
func matchesQuery(p *core.Pattern, q core.PatternQuery) bool {
	if q.Type != "" && !strings.EqualFold(p.Type, q.Type) {
		return false
	}
	if q.Language != "" && !strings.EqualFold(p.Language, q.Language) {
		return false
	}
	if q.Source != "" && p.SourceAgent != q.Source {
		return false
	}
	if len(q.Tags) > 0 {
		anyTag := false
		for _, tag := range q.Tags {
			if p.HasTag(tag) {
				anyTag = true
				break
			}
		}
		if !anyTag {
			return false
		}
	}
	return true
}

// rankScore combines saturating access count with linear recency decay over
// the horizon.
func rankScore(p *core.Pattern, now time.Time) float64 {
	access := float64(p.AccessCount) / (float64(p.AccessCount) + accessSaturation)

	age := now.Sub(p.LastAccessed)
	recency := 1 - float64(age)/float64(recencyHorizon)
	if recency < 0 {
		recency = 0
	}
	if recency > 1 {
		recency = 1
	}
	return accessWeight*access + recencyWeight*recency
}
