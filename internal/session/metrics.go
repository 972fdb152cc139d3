package session

import (
	"github.com/stridelab/runtracker-go/internal/stats"
)

// weightedAvg folds a new sample into a running average, weighting history
// 4:1 against the sample. Smooths the displayed metric without keeping the
// full sample history in memory.
func weightedAvg(avg, latest *int) *int {
	if latest == nil {
		return avg
	}
	if avg == nil {
		v := *latest
		return &v
	}
	v := (*avg*4 + *latest) / 5
	return &v
}

func runningMax(current, latest *int) *int {
	if latest == nil {
		return current
	}
	if current == nil || *latest > *current {
		v := *latest
		return &v
	}
	return current
}

func avgAndMax(values []int) (*int, *int) {
	if len(values) == 0 {
		return nil, nil
	}
	avg := stats.MeanInt(values)
	max := stats.MaxInt(values)
	return &avg, &max
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
