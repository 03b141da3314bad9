package analytics

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// AggregateCache is the process-wide (no-session) cache backing the
// read-only aggregate surface named in spec §6: /features,
// /snapshot/latest, /anomalies/summary. It never holds per-session state
// (that stays exclusively owned by Session per §3/§9) — only the last
// published aggregate view, refreshed by whichever session last produced
// one.
type AggregateCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewAggregateCache wraps an already-configured redis client.
func NewAggregateCache(rdb *redis.Client, ttl time.Duration) *AggregateCache {
	return &AggregateCache{rdb: rdb, ttl: ttl}
}

const (
	keyLatestSnapshot  = "lob:snapshot:latest"
	keyFeatures        = "lob:features:latest"
	keyAnomalySummary  = "lob:anomalies:summary"
)

// PublishLatestSnapshot overwrites the cached latest-enriched-snapshot
// view. Failures are logged by the caller and never block the hot path.
func (c *AggregateCache) PublishLatestSnapshot(ctx context.Context, e EnrichedSnapshot) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, keyLatestSnapshot, data, c.ttl).Err()
}

// LatestSnapshot reads back the cached view, if any.
func (c *AggregateCache) LatestSnapshot(ctx context.Context) (EnrichedSnapshot, bool, error) {
	data, err := c.rdb.Get(ctx, keyLatestSnapshot).Bytes()
	if err == redis.Nil {
		return EnrichedSnapshot{}, false, nil
	}
	if err != nil {
		return EnrichedSnapshot{}, false, err
	}
	var e EnrichedSnapshot
	if err := json.Unmarshal(data, &e); err != nil {
		return EnrichedSnapshot{}, false, err
	}
	return e, true, nil
}

// FeatureSummary is the aggregate view backing /features.
type FeatureSummary struct {
	Spread          float64 `json:"spread"`
	OBI             float64 `json:"obi"`
	OFINormalized   float64 `json:"ofi_normalized"`
	DirectionalProb float64 `json:"directional_prob"`
	Regime          int     `json:"regime"`
	RegimeLabel     string  `json:"regime_label"`
	VPIN            float64 `json:"vpin"`
}

// PublishFeatures overwrites the cached feature summary.
func (c *AggregateCache) PublishFeatures(ctx context.Context, f FeatureSummary) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, keyFeatures, data, c.ttl).Err()
}

// LatestFeatures reads back the cached feature summary, if any.
func (c *AggregateCache) LatestFeatures(ctx context.Context) (FeatureSummary, bool, error) {
	data, err := c.rdb.Get(ctx, keyFeatures).Bytes()
	if err == redis.Nil {
		return FeatureSummary{}, false, nil
	}
	if err != nil {
		return FeatureSummary{}, false, err
	}
	var f FeatureSummary
	if err := json.Unmarshal(data, &f); err != nil {
		return FeatureSummary{}, false, err
	}
	return f, true, nil
}

// AnomalySummary is the aggregate view backing /anomalies/summary.
type AnomalySummary struct {
	CountsByType map[string]int `json:"counts_by_type"`
}

// PublishAnomalySummary overwrites the cached anomaly summary.
func (c *AggregateCache) PublishAnomalySummary(ctx context.Context, s AnomalySummary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, keyAnomalySummary, data, c.ttl).Err()
}

// LatestAnomalySummary reads back the cached anomaly summary, if any.
func (c *AggregateCache) LatestAnomalySummary(ctx context.Context) (AnomalySummary, bool, error) {
	data, err := c.rdb.Get(ctx, keyAnomalySummary).Bytes()
	if err == redis.Nil {
		return AnomalySummary{}, false, nil
	}
	if err != nil {
		return AnomalySummary{}, false, err
	}
	var s AnomalySummary
	if err := json.Unmarshal(data, &s); err != nil {
		return AnomalySummary{}, false, err
	}
	return s, true, nil
}
