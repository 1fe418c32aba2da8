package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/sawpanic/contentrun/internal/metrics"
	"github.com/sawpanic/contentrun/internal/scoring"
)

const (
	scoreCacheType = "score"
	scoreKeyPrefix = "contentrun:score:v1:"
)

// ScoreFunc computes a report on a cache miss
type ScoreFunc func(scoring.Draft) scoring.Report

// ScoreCache memoises score reports by platform and text
type ScoreCache struct {
	cache   Cache
	ttl     time.Duration
	metrics *metrics.Registry
}

// NewScoreCache wraps c; m may be nil
func NewScoreCache(c Cache, ttl time.Duration, m *metrics.Registry) *ScoreCache {
	return &ScoreCache{cache: c, ttl: ttl, metrics: m}
}

// ScoreKey is the cache key for a draft
func ScoreKey(draft scoring.Draft) string {
	sum := sha256.Sum256([]byte(draft.Text))
	return scoreKeyPrefix + string(draft.Platform) + ":" + hex.EncodeToString(sum[:])
}

// Score returns the cached report for draft, computing and storing it on a
// miss. The second result reports a hit.
func (s *ScoreCache) Score(ctx context.Context, draft scoring.Draft, compute ScoreFunc) (scoring.Report, bool) {
	key := ScoreKey(draft)

	if raw, ok := s.cache.Get(ctx, key); ok {
		var report scoring.Report
		if err := json.Unmarshal(raw, &report); err == nil {
			s.record(true)
			return report, true
		}
	}

	s.record(false)
	report := compute(draft)
	if raw, err := json.Marshal(report); err == nil {
		s.cache.Set(ctx, key, raw, s.ttl)
	}
	return report, false
}

func (s *ScoreCache) record(hit bool) {
	if s.metrics == nil {
		return
	}
	if hit {
		s.metrics.RecordCacheHit(scoreCacheType)
	} else {
		s.metrics.RecordCacheMiss(scoreCacheType)
	}
}
