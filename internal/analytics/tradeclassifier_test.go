package analytics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyTrade_LeeReadyBasicSides(t *testing.T) {
	bestBid := Level{Price: 99.95, Volume: 100}
	bestAsk := Level{Price: 100.05, Volume: 100}

	cases := []struct {
		name  string
		price float64
		want  TradeSide
	}{
		{"above mid is buy", 100.02, TradeSideBuy},
		{"below mid is sell", 99.98, TradeSideSell},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := NewTradeState(1000, 64)
			snap := Snapshot{TradeVolume: 10, LastTradePrice: tc.price, MidPrice: 100.0}
			result := ClassifyTrade(st, snap, 100.0, bestBid, bestAsk, 0.01)
			require.Equal(t, tc.want, result.Side)
		})
	}
}

func TestClassifyTrade_NoTradeReturnsNoneSide(t *testing.T) {
	st := NewTradeState(1000, 64)
	bestBid, bestAsk := Level{Price: 99.95}, Level{Price: 100.05}
	result := ClassifyTrade(st, Snapshot{TradeVolume: 0}, 100.0, bestBid, bestAsk, 0.01)
	require.Equal(t, TradeSideNone, result.Side)
}

func TestClassifyTrade_VPINInRange(t *testing.T) {
	st := NewTradeState(1000, 64)
	bestBid, bestAsk := Level{Price: 99.95}, Level{Price: 100.05}
	for i := 0; i < 50; i++ {
		price := 100.02
		if i%2 == 1 {
			price = 99.98
		}
		snap := Snapshot{TradeVolume: 100, LastTradePrice: price, MidPrice: 100.0}
		result := ClassifyTrade(st, snap, 100.0, bestBid, bestAsk, 0.01)
		require.GreaterOrEqual(t, result.VPIN, 0.0)
		require.LessOrEqual(t, result.VPIN, 1.0)
	}
}

// V-PIN balanced (spec seed scenario 6): 20 snapshots alternating
// last_trade_price between two sides with trade_volume=100. The scenario's
// own bucket size (B=1000) only completes 2 buckets across 20 trades of
// volume 100 each, never reaching the >=10-bucket floor vpin() requires
// (see DESIGN.md open-question resolution); a bucket size of 200 is used
// here instead so each buy/sell pair completes exactly one balanced
// bucket, letting the ring reach the >=10 entries the scenario describes
// while keeping each bucket's order imbalance at zero.
func TestClassifyTrade_VPINBalancedIsSmall(t *testing.T) {
	st := NewTradeState(200, 64)
	bestBid, bestAsk := Level{Price: 99.95}, Level{Price: 100.05}

	var last TradeResult
	for i := 0; i < 20; i++ {
		price := 100.05
		if i%2 == 1 {
			price = 99.95
		}
		snap := Snapshot{TradeVolume: 100, LastTradePrice: price, MidPrice: 100.0}
		last = ClassifyTrade(st, snap, 100.0, bestBid, bestAsk, 0.01)
	}

	require.GreaterOrEqual(t, len(st.CompletedOI), 10)
	require.LessOrEqual(t, last.VPIN, 0.2)
}
