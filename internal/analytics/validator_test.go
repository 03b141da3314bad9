package analytics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func validSnapshot() Snapshot {
	return Snapshot{
		Bids:     []Level{{Price: 99.95, Volume: 1000}, {Price: 99.90, Volume: 500}},
		Asks:     []Level{{Price: 100.05, Volume: 1000}, {Price: 100.10, Volume: 500}},
		MidPrice: 100.0,
	}
}

func TestValidate_AcceptsCleanSnapshot(t *testing.T) {
	result := Validate(validSnapshot())
	require.True(t, result.OK)
	require.False(t, result.Fatal)
	require.Equal(t, validSnapshot(), result.Sanitized)
}

func TestValidate_MissingRequiredFieldsIsFatal(t *testing.T) {
	cases := []struct {
		name string
		snap Snapshot
	}{
		{"no bids", Snapshot{Asks: validSnapshot().Asks, MidPrice: 100}},
		{"no asks", Snapshot{Bids: validSnapshot().Bids, MidPrice: 100}},
		{"zero mid price", Snapshot{Bids: validSnapshot().Bids, Asks: validSnapshot().Asks}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := Validate(tc.snap)
			require.False(t, result.OK)
			require.True(t, result.Fatal)
		})
	}
}

func TestValidate_SanitizesNonFinitePriceAndVolume(t *testing.T) {
	snap := validSnapshot()
	snap.Bids[0].Price = math.NaN()
	snap.Asks[0].Volume = -5

	result := Validate(snap)
	require.True(t, result.OK)
	require.Equal(t, float64(defaultPrice), result.Sanitized.Bids[0].Price)
	require.Equal(t, float64(defaultVolume), result.Sanitized.Asks[0].Volume)
}

func TestValidate_CrossedBookIsNonFatalWarning(t *testing.T) {
	snap := validSnapshot()
	snap.Bids[0].Price = 100.10 // now >= best ask
	result := Validate(snap)
	// Crossed book is warning-class: sanitize can't fix a crossed price, so
	// the warning survives the revalidate pass, but it never escalates to
	// fatal and the snapshot is still enriched.
	require.True(t, result.OK)
	require.False(t, result.Fatal)
	require.NotEmpty(t, result.Errors)
}

func TestValidate_WideSpreadIsNonFatalWarning(t *testing.T) {
	snap := Snapshot{
		Bids:     []Level{{Price: 50, Volume: 1000}},
		Asks:     []Level{{Price: 100, Volume: 1000}},
		MidPrice: 75,
	}
	result := Validate(snap)
	require.True(t, result.OK)
	require.False(t, result.Fatal)
	require.NotEmpty(t, result.Errors)
}

func TestValidate_IdempotentOnAlreadyCleanSnapshot(t *testing.T) {
	snap := validSnapshot()
	first := Validate(snap)
	require.True(t, first.OK)
	second := Validate(first.Sanitized)
	require.True(t, second.OK)
	require.Equal(t, first.Sanitized, second.Sanitized)
}
