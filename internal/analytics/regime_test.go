package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRegimeState_PredictDefaultsToCalmBeforeFit(t *testing.T) {
	rs := NewRegimeState(4)
	rank, label := rs.Predict(FeatureVector{0, 0, 0, 0})
	require.Equal(t, 0, rank)
	require.Equal(t, "Calm", label)
}

func TestRegimeState_MaybeRetrainSkipsWithInsufficientData(t *testing.T) {
	rs := NewRegimeState(4)
	started := rs.MaybeRetrain(time.Now(), time.Second, make([]FeatureVector, 5))
	require.False(t, started)
}

func TestRegimeState_MaybeRetrainRespectsInterval(t *testing.T) {
	rs := NewRegimeState(4)
	ring := make([]FeatureVector, minFeaturesToFit+10)
	for i := range ring {
		ring[i] = FeatureVector{float64(i % 5), 0.1, 0.2, 0.3}
	}

	now := time.Now()
	started := rs.MaybeRetrain(now, time.Second, ring)
	require.True(t, started)

	// Immediately retrying within the interval must not start a second
	// training run (single-flight + interval gating).
	startedAgain := rs.MaybeRetrain(now, time.Second, ring)
	require.False(t, startedAgain)
}

func TestStressRank_OrdersByCombinedStressAscending(t *testing.T) {
	centroids := []FeatureVector{
		{5, 0, 5, 5}, // high stress
		{0, 0, 0, 0}, // calm
		{2, 0, 2, 2}, // medium
	}
	ranks := stressRank(centroids)
	// centroid 1 (calm) should get rank 0, centroid 2 (medium) rank 1,
	// centroid 0 (high) rank 2.
	require.Equal(t, 0, ranks[1])
	require.Equal(t, 1, ranks[2])
	require.Equal(t, 2, ranks[0])
}

func TestKmeans_ReturnsNilWhenDataSmallerThanK(t *testing.T) {
	data := []FeatureVector{{0, 0, 0, 0}, {1, 1, 1, 1}}
	require.Nil(t, kmeans(data, 4, 10))
}
