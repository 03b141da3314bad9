package analytics

import "time"

// Pipeline owns the full A→B→C→D→E→F reference (secondary) analytics
// chain for exactly one session. It is also used, in its detectors-only
// form, as the "advanced-only" augmentation pass applied on top of
// primary-engine results (spec §4.G step 1).
type Pipeline struct {
	TickSize        float64
	VPINBucket      float64
	RegimeK         int
	RetrainInterval time.Duration

	Incremental *IncrementalState
	Trade       *TradeState
	Regime      *RegimeState
	Detectors   *DetectorState
	Alerts      *AlertManager
}

// NewPipeline constructs a fresh per-session reference pipeline.
func NewPipeline(cfg Config, tickSize, vpinBucket float64, regimeK int) *Pipeline {
	return &Pipeline{
		TickSize:        tickSize,
		VPINBucket:      vpinBucket,
		RegimeK:         regimeK,
		RetrainInterval: time.Duration(cfg.RetrainIntervalSecs) * time.Second,
		Incremental:     NewIncrementalState(),
		Trade:           NewTradeState(vpinBucket, 64),
		Regime:          NewRegimeState(regimeK),
		Detectors:       NewDetectorState(),
		Alerts:          NewAlertManager(time.Duration(cfg.DedupWindowSecs) * time.Second),
	}
}

// Run executes the full reference pipeline (A through F) for one raw
// snapshot. If validation fails fatally, it returns ok=false and a single
// DATA_VALIDATION_ERROR alert; the snapshot is not enriched further and no
// per-session state is updated.
func (p *Pipeline) Run(now time.Time, raw Snapshot, processingTime time.Duration) (EnrichedSnapshot, []Alert, bool) {
	result := Validate(raw)
	if !result.OK {
		alert := Alert{
			Type:     "DATA_VALIDATION_ERROR",
			Severity: SeverityCritical,
			Message:  "snapshot failed validation and sanitization",
			Timestamp: now,
		}
		return EnrichedSnapshot{}, []Alert{alert}, false
	}
	snap := result.Sanitized

	prior := CapturePrior(p.Incremental)
	metrics := ComputeMetrics(p.Incremental, snap, p.TickSize)

	bestBid, bestAsk := snap.Bids[0], snap.Asks[0]
	trade := ClassifyTrade(p.Trade, snap, snap.MidPrice, bestBid, bestAsk, p.TickSize)

	rank, label := p.Regime.Predict(metrics.Feature)
	p.Regime.MaybeRetrain(now, p.RetrainInterval, p.Incremental.FeatRing)

	rawAlerts := DetectAll(p.Detectors, now, snap, metrics, p.Incremental, prior, rank, p.RegimeK, processingTime)
	accepted := p.Alerts.Process(now, rawAlerts)

	enriched := EnrichedSnapshot{
		Snapshot:         snap,
		Spread:           metrics.Spread,
		Microprice:       metrics.Microprice,
		OBI:              metrics.OBI,
		OFINormalized:    metrics.OFINormalized,
		Divergence:       metrics.Divergence,
		DirectionalProb:  metrics.DirectionalProb,
		Regime:           rank,
		RegimeLabel:      label,
		VPIN:             trade.VPIN,
		TradeSide:        trade.Side,
		EffectiveSpread:  trade.EffectiveSpread,
		RealizedSpread:   trade.RealizedSpread,
		SpoofingRisk:     spoofingRiskOf(accepted),
		VolumeVolatility: ringStdOverMean(p.Detectors.VolumeVolatilityRing),
		Anomalies:        accepted,
	}
	enriched.GapCount, enriched.GapSeverityScore, enriched.LiquidityGaps = gapSummary(accepted)

	return enriched, accepted, true
}

// AdvancedOnly re-runs only the anomaly-detector stage against a snapshot
// that the primary engine has already enriched, for use as the
// post-analytics augmentation pass in §4.G step 1. It shares this
// session's detector/alert state so dedup and escalation stay coherent
// regardless of which engine produced the base metrics.
func (p *Pipeline) AdvancedOnly(now time.Time, prior PriorTickState, snap Snapshot, metrics MetricsResult, rank int, processingTime time.Duration) []Alert {
	rawAlerts := DetectAll(p.Detectors, now, snap, metrics, p.Incremental, prior, rank, p.RegimeK, processingTime)
	return p.Alerts.Process(now, rawAlerts)
}

func spoofingRiskOf(alerts []Alert) float64 {
	var max float64
	for _, a := range alerts {
		if a.Type != "SPOOFING" {
			continue
		}
		if v, ok := a.Evidence["spoofing_risk"].(float64); ok && v > max {
			max = v
		}
	}
	return max
}

func gapSummary(alerts []Alert) (int, float64, []LiquidityGapRecord) {
	for _, a := range alerts {
		if a.Type != "LIQUIDITY_GAP" {
			continue
		}
		count, _ := a.Evidence["gap_count"].(int)
		score, _ := a.Evidence["gap_severity_score"].(float64)
		gaps, _ := a.Evidence["gaps"].([]LiquidityGapRecord)
		return count, score, gaps
	}
	return 0, 0, nil
}
