package digest

import "math"

// Weight bounds of the recency scheme.
const (
	weightFloor = 0.3
	weightSpan  = 0.7

	recentFraction = 0.3
)

// Weight computes the recency weight of the summary at zero-indexed position
// i of n. Position 0 is the oldest entry (weight 0.3), position n-1 the
// newest (weight 1.0). Quadratic in recency, so the most recent quarter
// dominates disproportionately more than a linear scheme would.
func Weight(i, n int) float32 {
	if n <= 0 || i < 0 || i >= n {
		return 0
	}

	position := 1.0
	if n > 1 {
		position = float64(i) / float64(n-1)
	}

	return float32(position*position*weightSpan + weightFloor)
}

// Weights computes the full weight vector for n chronologically ordered
// summaries, oldest first.
func Weights(n int) []float32 {
	weights := make([]float32, n)
	for i := range weights {
		weights[i] = Weight(i, n)
	}

	return weights
}

// splitMeans returns the mean weight of the newest 30% of entries and the
// mean weight of the older remainder, stored on the digest for
// observability. The older mean is 0 when every entry falls in the recent
// split.
func splitMeans(weights []float32) (recent, older float32) {
	n := len(weights)
	if n == 0 {
		return 0, 0
	}

	recentCount := int(math.Ceil(recentFraction * float64(n)))
	if recentCount < 1 {
		recentCount = 1
	}

	boundary := n - recentCount

	return mean(weights[boundary:]), mean(weights[:boundary])
}

func mean(values []float32) float32 {
	if len(values) == 0 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += float64(v)
	}

	return float32(sum / float64(len(values)))
}
