package metrics

import (
	"math"
	"sort"

	"narrative-lab/internal/domain"
)

// DefaultHalfLifeDays is the recency half-life applied to episode weights.
const DefaultHalfLifeDays = 45.0

// Round2 rounds x to 2 decimal places, halves away from zero.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// recencyWeight returns exp(-ln2 * days / halfLife).
func recencyWeight(days, halfLife float64) float64 {
	if halfLife <= 0 {
		return 1
	}
	return math.Exp(-math.Ln2 * days / halfLife)
}

// computeWeightedMean returns sum(w*v)/sum(w), or nil when values is empty.
// values and weights must have equal length.
func computeWeightedMean(values, weights []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	var sum, wsum float64
	for i, v := range values {
		sum += v * weights[i]
		wsum += weights[i]
	}
	if wsum == 0 {
		return nil
	}
	m := Round2(sum / wsum)
	return &m
}

// computeMean returns the arithmetic mean, or nil when values is empty.
func computeMean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	m := Round2(sum / float64(len(values)))
	return &m
}

// computeMedian returns the middle element for odd n, the mean of the two
// middle elements for even n. sorted must be pre-sorted ASC and non-empty.
func computeMedian(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// computePercentile uses the nearest-rank-below rule: sorted[floor(n*p)].
// sorted must be pre-sorted ASC and non-empty.
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	idx := int(math.Floor(float64(n) * p))
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}

// computeWinRate returns round(100 * positive / total), or nil when total is 0.
func computeWinRate(values []float64) *int {
	if len(values) == 0 {
		return nil
	}
	wins := 0
	for _, v := range values {
		if v > 0 {
			wins++
		}
	}
	rate := int(math.Round(100 * float64(wins) / float64(len(values))))
	return &rate
}

// sampleScore returns the sample-size component of confidence.
func sampleScore(count int) float64 {
	switch {
	case count < 5:
		return 0.2
	case count < 10:
		return 0.5
	default:
		return 0.8
	}
}

// ConfidenceScore combines sample size with the 10-day interquartile spread.
// A nil quartile counts as zero spread. The result is never below 0.1.
func ConfidenceScore(count int, p25, p75 *float64) float64 {
	iqr := 0.0
	if p25 != nil && p75 != nil {
		iqr = *p75 - *p25
	}
	penalty := math.Min(math.Abs(iqr)/40, 0.3)
	return math.Max(0.1, Round2(sampleScore(count)-penalty))
}

// LabelFor maps a closed-episode count to a confidence label.
func LabelFor(count int) domain.ConfidenceLabel {
	switch {
	case count < 5:
		return domain.ConfidenceExperimental
	case count < 10:
		return domain.ConfidenceModerate
	default:
		return domain.ConfidenceHigh
	}
}

func sortedCopy(values []float64) []float64 {
	s := make([]float64, len(values))
	copy(s, values)
	sort.Float64s(s)
	return s
}
