package analytics

import "math"

const (
	// minTrendSnapshots is the history length below which a sensor is reported stable.
	minTrendSnapshots = 3

	// trendWindow is how many of the most recent snapshots a sensor trend looks at.
	trendWindow = 5

	// StableThreshold is the absolute change rate, in percent, under which a series is stable.
	StableThreshold = 5.0

	// predictionFactor scales the observed change into the next-value estimate.
	predictionFactor = 0.5
)

// CalculateTrends derives a sensor trend from its history, oldest first.
// It compares the first and last average AQI of the most recent snapshots and
// extrapolates half of that change as the next value. This is a heuristic,
// not a statistical model.
func CalculateTrends(history []Snapshot) Trends {
	if len(history) < minTrendSnapshots {
		return Trends{Direction: TrendStable}
	}

	window := history
	if len(window) > trendWindow {
		window = window[len(window)-trendWindow:]
	}

	first := float64(window[0].AverageAQI)
	last := float64(window[len(window)-1].AverageAQI)
	change := last - first
	rate := ChangeRate(first, last)
	predicted := last + change*predictionFactor

	return Trends{
		Direction:     Classify(rate),
		ChangeRate:    rate,
		PredictedNext: &predicted,
	}
}

// ChangeRate returns the percentage change from base to value.
// A zero base yields 0 when nothing changed and ±100 otherwise.
func ChangeRate(base, value float64) float64 {
	change := value - base
	if base == 0 {
		switch {
		case change > 0:
			return 100
		case change < 0:
			return -100
		default:
			return 0
		}
	}
	return change / base * 100
}

// Classify maps a change rate to a direction using StableThreshold.
func Classify(rate float64) TrendDirection {
	switch {
	case math.Abs(rate) < StableThreshold:
		return TrendStable
	case rate > 0:
		return TrendIncreasing
	default:
		return TrendDecreasing
	}
}

// HalfTrend compares the mean of the first half of values against the mean of
// the second half. With an odd count the middle value belongs to the second half.
func HalfTrend(values []float64) (direction TrendDirection, rate, firstMean, secondMean float64) {
	if len(values) < 2 {
		return TrendStable, 0, 0, 0
	}

	mid := len(values) / 2
	firstMean = mean(values[:mid])
	secondMean = mean(values[mid:])
	rate = ChangeRate(firstMean, secondMean)
	return Classify(rate), rate, firstMean, secondMean
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
