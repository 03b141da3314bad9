// Package analytics implements the per-session limit-order-book
// microstructure analytics pipeline: validation, incremental metrics,
// trade classification, regime classification, anomaly detection, alert
// management, and engine routing.
package analytics

import "time"

// Level is a single (price, volume) pair on one side of the book.
type Level struct {
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
}

// TradeSide classifies the aggressor side of a trade print.
type TradeSide string

const (
	TradeSideBuy     TradeSide = "buy"
	TradeSideSell    TradeSide = "sell"
	TradeSideUnknown TradeSide = "unknown"
	TradeSideNone    TradeSide = ""
)

// Snapshot is a single timestamped depth-of-book observation.
type Snapshot struct {
	Symbol         string    `json:"symbol,omitempty"`
	Exchange       string    `json:"exchange,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	ExchangeTS     time.Time `json:"exchange_ts,omitempty"`
	IngestTS       time.Time `json:"ingest_ts,omitempty"`
	Bids           []Level   `json:"bids"`
	Asks           []Level   `json:"asks"`
	MidPrice       float64   `json:"mid_price"`
	TradeVolume    float64   `json:"trade_volume,omitempty"`
	LastTradePrice float64   `json:"last_trade_price,omitempty"`
}

// Severity is the escalation-aware severity level of an Alert.
type Severity string

const (
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Alert is a typed anomaly notification with its supporting evidence.
type Alert struct {
	Type      string                 `json:"type"`
	Severity  Severity               `json:"severity"`
	Message   string                 `json:"message"`
	Timestamp time.Time              `json:"timestamp"`
	Evidence  map[string]interface{} `json:"evidence,omitempty"`
}

// Hash is the dedup identity of an alert: hash(type ‖ message).
func (a Alert) Hash() string {
	return a.Type + "\x00" + a.Message
}

// LiquidityGapRecord is a per-level liquidity-gap record attached to an
// EnrichedSnapshot.
type LiquidityGapRecord struct {
	Side      string  `json:"side"`
	Level     int     `json:"level"`
	Volume    float64 `json:"volume"`
	RiskScore float64 `json:"risk_score"`
}

// EnrichedSnapshot is the Snapshot plus every derived microstructure
// metric, regime classification, and anomaly alert computed for this tick.
type EnrichedSnapshot struct {
	Snapshot

	Spread           float64              `json:"spread"`
	Microprice       float64              `json:"microprice"`
	OBI              float64              `json:"obi"`
	OFINormalized    float64              `json:"ofi_normalized"`
	Divergence       float64              `json:"divergence"`
	DirectionalProb  float64              `json:"directional_prob"`
	Regime           int                  `json:"regime"`
	RegimeLabel      string               `json:"regime_label"`
	VPIN             float64              `json:"vpin"`
	TradeSide        TradeSide            `json:"trade_side,omitempty"`
	EffectiveSpread  float64              `json:"effective_spread"`
	RealizedSpread   float64              `json:"realized_spread"`
	GapCount         int                  `json:"gap_count"`
	GapSeverityScore float64              `json:"gap_severity_score"`
	SpoofingRisk     float64              `json:"spoofing_risk"`
	VolumeVolatility float64              `json:"volume_volatility"`
	LiquidityGaps    []LiquidityGapRecord `json:"liquidity_gaps,omitempty"`
	Anomalies        []Alert              `json:"anomalies,omitempty"`
	Engine           string               `json:"engine"`
}

// ValidationError describes one fatal or warning-class validation failure.
type ValidationError struct {
	Field   string
	Message string
	Fatal   bool
}

func (e ValidationError) Error() string { return e.Field + ": " + e.Message }
