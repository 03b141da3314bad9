package analytics

import (
	"math"
	"sync"
	"time"
)

const (
	defaultK            = 4
	minFeaturesToFit    = 50
	kmeansIterations    = 25
	kmeansRestartSeed   = 1
)

var regimeLabels = [...]string{"Calm", "Stressed", "Execution Hot", "Manipulation Suspected"}

// RegimeLabel returns the stress-ranked label for a rank index, clamping to
// the nearest defined label if K differs from the canonical four.
func RegimeLabel(rank, k int) string {
	if k == len(regimeLabels) && rank >= 0 && rank < len(regimeLabels) {
		return regimeLabels[rank]
	}
	switch {
	case rank <= 0:
		return "Calm"
	case rank >= k-1:
		return "Manipulation Suspected"
	default:
		return "Stressed"
	}
}

// clusterer is an immutable fitted K-means model over FeatureVector space.
type clusterer struct {
	centroids []FeatureVector
	rankMap   []int // raw cluster index -> stress rank
}

// predict returns the stress rank of the nearest centroid to f.
func (c *clusterer) predict(f FeatureVector) int {
	best, bestDist := 0, math.Inf(1)
	for i, centroid := range c.centroids {
		d := sqDist(f, centroid)
		if d < bestDist {
			bestDist, best = d, i
		}
	}
	return c.rankMap[best]
}

// RegimeState owns the single-flight retraining guard and the current
// immutable clusterer for one session.
type RegimeState struct {
	K int

	mu            sync.Mutex
	model         *clusterer
	lastTrainTime time.Time
	trainingFlag  bool
}

// NewRegimeState returns regime-classification state for K clusters.
func NewRegimeState(k int) *RegimeState {
	if k <= 0 {
		k = defaultK
	}
	return &RegimeState{K: k}
}

// Predict returns (rank, label) for the current feature vector. Before the
// first successful fit, it returns rank 0 ("Calm").
func (rs *RegimeState) Predict(f FeatureVector) (int, string) {
	rs.mu.Lock()
	m := rs.model
	rs.mu.Unlock()
	if m == nil {
		return 0, RegimeLabel(0, rs.K)
	}
	rank := m.predict(f)
	return rank, RegimeLabel(rank, rs.K)
}

// MaybeRetrain fits a new model from a snapshot copy of featRing when the
// retrain interval has elapsed and no training is in flight. The fit itself
// runs in a goroutine started here, so the calling tick only pays for the
// copy of featRing; on failure the previous model is retained.
func (rs *RegimeState) MaybeRetrain(now time.Time, retrainInterval time.Duration, featRing []FeatureVector) (started bool) {
	rs.mu.Lock()
	if rs.trainingFlag || now.Sub(rs.lastTrainTime) < retrainInterval {
		rs.mu.Unlock()
		return false
	}
	if len(featRing) <= minFeaturesToFit {
		rs.mu.Unlock()
		return false
	}
	rs.trainingFlag = true
	snapshot := make([]FeatureVector, len(featRing))
	copy(snapshot, featRing)
	rs.mu.Unlock()

	go rs.retrain(now, snapshot)
	return true
}

func (rs *RegimeState) retrain(now time.Time, data []FeatureVector) {
	defer func() {
		rs.mu.Lock()
		rs.trainingFlag = false
		rs.lastTrainTime = now
		rs.mu.Unlock()
	}()

	centroids := kmeans(data, rs.K, kmeansIterations)
	if centroids == nil {
		return // retrain failure: keep previous model
	}
	rankMap := stressRank(centroids)

	newModel := &clusterer{centroids: centroids, rankMap: rankMap}

	rs.mu.Lock()
	rs.model = newModel
	rs.mu.Unlock()
}

// stressRank sorts cluster indices by stress = c[0]+c[2]+c[3] ascending and
// returns, for each raw cluster index, its rank (0 = calmest).
func stressRank(centroids []FeatureVector) []int {
	type scored struct {
		idx    int
		stress float64
	}
	scores := make([]scored, len(centroids))
	for i, c := range centroids {
		scores[i] = scored{idx: i, stress: c[0] + c[2] + c[3]}
	}
	for i := 1; i < len(scores); i++ {
		for j := i; j > 0 && scores[j].stress < scores[j-1].stress; j-- {
			scores[j], scores[j-1] = scores[j-1], scores[j]
		}
	}
	rankMap := make([]int, len(centroids))
	for rank, s := range scores {
		rankMap[s.idx] = rank
	}
	return rankMap
}

// kmeans fits K centroids over data with a fixed iteration budget. Returns
// nil if data is too small to support K non-empty clusters.
func kmeans(data []FeatureVector, k, iterations int) []FeatureVector {
	if len(data) < k {
		return nil
	}
	centroids := make([]FeatureVector, k)
	stride := len(data) / k
	for i := 0; i < k; i++ {
		centroids[i] = data[(i*stride+kmeansRestartSeed)%len(data)]
	}

	assign := make([]int, len(data))
	for iter := 0; iter < iterations; iter++ {
		for i, f := range data {
			best, bestDist := 0, math.Inf(1)
			for c, centroid := range centroids {
				d := sqDist(f, centroid)
				if d < bestDist {
					bestDist, best = d, c
				}
			}
			assign[i] = best
		}

		sums := make([]FeatureVector, k)
		counts := make([]int, k)
		for i, f := range data {
			c := assign[i]
			for d := 0; d < len(f); d++ {
				sums[c][d] += f[d]
			}
			counts[c]++
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				continue // keep previous centroid for empty clusters
			}
			for d := 0; d < len(sums[c]); d++ {
				centroids[c][d] = sums[c][d] / float64(counts[c])
			}
		}
	}
	return centroids
}

func sqDist(a, b FeatureVector) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
