package analytics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAdaptiveScheduler_EntersAdaptiveModeUnderSustainedSlowness(t *testing.T) {
	s := NewAdaptiveScheduler(100)
	require.False(t, s.IsAdaptive())
	for i := 0; i < 5; i++ {
		s.Observe(250)
	}
	require.True(t, s.IsAdaptive())
	require.Greater(t, s.SkipRatio(), 1)
}

func TestAdaptiveScheduler_ExitsAdaptiveModeOnceRecovered(t *testing.T) {
	s := NewAdaptiveScheduler(100)
	for i := 0; i < 5; i++ {
		s.Observe(250)
	}
	require.True(t, s.IsAdaptive())
	for i := 0; i < 5; i++ {
		s.Observe(10)
	}
	require.False(t, s.IsAdaptive())
	require.Equal(t, 1, s.SkipRatio())
}

// Under adaptive mode, for every k-th consecutive snapshot accepted into
// the pipeline, k-1 are skipped before state changes.
func TestAdaptiveScheduler_SkipsExactlyKMinusOneBetweenProcessed(t *testing.T) {
	s := NewAdaptiveScheduler(100)
	for i := 0; i < 5; i++ {
		s.Observe(300) // pushes skipN to 3 (clamp(300/50,1,3))
	}
	require.True(t, s.IsAdaptive())
	k := s.SkipRatio()
	require.Equal(t, 3, k)

	var processed, skipped int
	for i := 0; i < k*4; i++ {
		if s.ShouldProcess() {
			processed++
		} else {
			skipped++
		}
	}
	require.Equal(t, 4, processed)
	require.Equal(t, k*4-4, skipped)
}
