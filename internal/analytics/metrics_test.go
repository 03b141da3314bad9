package analytics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeMetrics_MicropriceWithinBestQuotes(t *testing.T) {
	st := NewIncrementalState()
	snap := Snapshot{
		Bids:     []Level{{Price: 99.95, Volume: 1000}},
		Asks:     []Level{{Price: 100.05, Volume: 400}},
		MidPrice: 100.0,
	}
	result := ComputeMetrics(st, snap, 0.01)
	require.GreaterOrEqual(t, result.Microprice, snap.Bids[0].Price)
	require.LessOrEqual(t, result.Microprice, snap.Asks[0].Price)
}

func TestComputeMetrics_OFINormalizedBounded(t *testing.T) {
	st := NewIncrementalState()
	snap1 := Snapshot{
		Bids:     []Level{{Price: 99.95, Volume: 1000}},
		Asks:     []Level{{Price: 100.05, Volume: 1000}},
		MidPrice: 100.0,
	}
	ComputeMetrics(st, snap1, 0.01)

	snap2 := snap1
	snap2.Bids = []Level{{Price: 99.96, Volume: 50000}}
	result := ComputeMetrics(st, snap2, 0.01)

	require.GreaterOrEqual(t, result.OFINormalized, -1.0)
	require.LessOrEqual(t, result.OFINormalized, 1.0)
}

func TestComputeMetrics_DirectionalProbBounded(t *testing.T) {
	st := NewIncrementalState()
	snap := Snapshot{
		Bids:     []Level{{Price: 99.95, Volume: 100000}},
		Asks:     []Level{{Price: 100.05, Volume: 1}},
		MidPrice: 100.0,
	}
	result := ComputeMetrics(st, snap, 0.01)
	require.GreaterOrEqual(t, result.DirectionalProb, 0.0)
	require.LessOrEqual(t, result.DirectionalProb, 100.0)
}

func TestComputeMetrics_SpreadNonNegative(t *testing.T) {
	st := NewIncrementalState()
	snap := Snapshot{
		Bids:     []Level{{Price: 99.95, Volume: 100}},
		Asks:     []Level{{Price: 100.05, Volume: 100}},
		MidPrice: 100.0,
	}
	result := ComputeMetrics(st, snap, 0.01)
	require.GreaterOrEqual(t, result.Spread, 0.0)
}

// EWMA after N updates must be a convex combination of the prior value and
// the new sample: it always lies between the two (monotone smoothing).
func TestComputeMetrics_EWMAIsConvexCombination(t *testing.T) {
	st := NewIncrementalState()
	snap := Snapshot{
		Bids:     []Level{{Price: 99.95, Volume: 100}},
		Asks:     []Level{{Price: 100.05, Volume: 100}},
		MidPrice: 100.0,
	}
	ComputeMetrics(st, snap, 0.01) // seeds AvgSpread = spread (0.10)
	priorAvg := st.AvgSpread

	wider := snap
	wider.Asks = []Level{{Price: 100.50, Volume: 100}}
	ComputeMetrics(st, wider, 0.01)
	newSpread := wider.Asks[0].Price - wider.Bids[0].Price

	lo, hi := priorAvg, newSpread
	if lo > hi {
		lo, hi = hi, lo
	}
	require.GreaterOrEqual(t, st.AvgSpread, lo)
	require.LessOrEqual(t, st.AvgSpread, hi)
}
