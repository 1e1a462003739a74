package history

import (
	"math"
	"time"
)

// WindowStats summarizes recent ambient samples for status reporting
type WindowStats struct {
	AverageLux float64
	MinLux     float64
	MaxLux     float64
	Count      int
	Trend      string
	Stability  string
}

// AnalyzeWindow computes statistics over samples within the given window
func AnalyzeWindow(samples []Sample, window time.Duration, now time.Time) *WindowStats {
	cutoff := now.Add(-window)
	var filtered []Sample
	for _, sample := range samples {
		if sample.Timestamp.After(cutoff) {
			filtered = append(filtered, sample)
		}
	}

	if len(filtered) == 0 {
		return &WindowStats{Trend: "unknown", Stability: "unknown"}
	}

	var sum float64
	min := filtered[0].Lux
	max := filtered[0].Lux
	for _, sample := range filtered {
		sum += sample.Lux
		if sample.Lux < min {
			min = sample.Lux
		}
		if sample.Lux > max {
			max = sample.Lux
		}
	}
	avg := sum / float64(len(filtered))

	return &WindowStats{
		AverageLux: avg,
		MinLux:     min,
		MaxLux:     max,
		Count:      len(filtered),
		Trend:      calculateTrend(filtered),
		Stability:  calculateStability(filtered, avg),
	}
}

// calculateTrend compares first- and second-half averages; a 20% change in
// either direction counts as a trend
func calculateTrend(samples []Sample) string {
	if len(samples) < 3 {
		return "unknown"
	}

	mid := len(samples) / 2
	var firstSum, secondSum float64
	for _, s := range samples[:mid] {
		firstSum += s.Lux
	}
	for _, s := range samples[mid:] {
		secondSum += s.Lux
	}
	firstAvg := firstSum / float64(mid)
	secondAvg := secondSum / float64(len(samples)-mid)

	if firstAvg == 0 {
		if secondAvg > 0 {
			return "brightening"
		}
		return "stable"
	}

	percentChange := ((secondAvg - firstAvg) / firstAvg) * 100
	if percentChange > 20 {
		return "brightening"
	}
	if percentChange < -20 {
		return "dimming"
	}
	return "stable"
}

// calculateStability classifies volatility by coefficient of variation
func calculateStability(samples []Sample, avg float64) string {
	if len(samples) < 2 || avg == 0 {
		return "unknown"
	}

	var sumSquaredDiff float64
	for _, s := range samples {
		diff := s.Lux - avg
		sumSquaredDiff += diff * diff
	}
	stdDev := math.Sqrt(sumSquaredDiff / float64(len(samples)))

	cv := stdDev / avg
	if cv > 0.5 {
		return "volatile"
	}
	if cv > 0.2 {
		return "variable"
	}
	return "stable"
}
