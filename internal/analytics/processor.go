package analytics

import (
	"context"
	"time"
)

const (
	engineTagPrimary         = "primary"
	engineTagPrimaryAdvanced = "primary+secondary_advanced"
	engineTagSecondaryFall   = "secondary_fallback"
	engineTagSecondary       = "secondary"
)

// SnapshotProcessor implements the §4.G routing policy: try the primary
// engine through the EngineRouter, augment its result with the secondary
// pipeline's advanced-only detector pass, and fall back to the full
// secondary pipeline on any primary failure.
type SnapshotProcessor struct {
	Router    *EngineRouter
	Secondary *Pipeline
}

// NewSnapshotProcessor wires a router and the session's reference pipeline
// (used both as the fallback engine and as the advanced-only augmenter).
func NewSnapshotProcessor(router *EngineRouter, secondary *Pipeline) *SnapshotProcessor {
	return &SnapshotProcessor{Router: router, Secondary: secondary}
}

// Process runs one raw snapshot through the routing policy and returns the
// enriched snapshot (tagged with its originating engine), the alerts
// emitted this tick, and whether the snapshot was accepted at all.
func (sp *SnapshotProcessor) Process(ctx context.Context, now time.Time, raw Snapshot) (EnrichedSnapshot, []Alert, bool) {
	start := time.Now()
	status := sp.Router.Status()

	if status.Mode == ModePrimary && status.PrimaryAvailable {
		enriched, err := sp.Router.Call(ctx, raw)
		if err == nil {
			enriched.Engine = engineTagPrimary
			processingTime := time.Since(start)

			// Keep the secondary pipeline's incremental/regime state live off
			// the primary-engine snapshot so the advanced-only pass below sees
			// a fresh feature vector instead of whatever was last computed
			// during a prior fallback tick.
			result := Validate(raw)
			if result.OK {
				prior := CapturePrior(sp.Secondary.Incremental)
				metrics := ComputeMetrics(sp.Secondary.Incremental, result.Sanitized, sp.Secondary.TickSize)
				rank, _ := sp.Secondary.Regime.Predict(metrics.Feature)
				sp.Secondary.Regime.MaybeRetrain(now, sp.Secondary.RetrainInterval, sp.Secondary.Incremental.FeatRing)

				advanced := sp.Secondary.AdvancedOnly(now, prior, result.Sanitized, metrics, rank, processingTime)
				if len(advanced) > 0 {
					enriched.Engine = engineTagPrimaryAdvanced
					enriched.Anomalies = append(enriched.Anomalies, advanced...)
				}
			}
			return enriched, enriched.Anomalies, true
		}
		// Primary failure: process with the secondary pipeline this tick.
		enriched, alerts, ok := sp.Secondary.Run(now, raw, time.Since(start))
		if ok {
			enriched.Engine = engineTagSecondaryFall
		}
		return enriched, alerts, ok
	}

	enriched, alerts, ok := sp.Secondary.Run(now, raw, time.Since(start))
	if ok {
		enriched.Engine = engineTagSecondary
	}
	return enriched, alerts, ok
}

