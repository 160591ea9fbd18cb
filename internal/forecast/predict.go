package forecast

import (
	"math"

	"attn/backend/internal/domain"
)

// PredictNextWeek estimates next week's quantity from a series sorted by
// week. Up to three weeks it averages; from four weeks on it fits a least
// squares line and caps the projection at twice the mean.
func PredictNextWeek(series []domain.WeeklyTotal) int {
	switch n := len(series); {
	case n == 0:
		return 0
	case n == 1:
		return nonNegative(roundHalfUp(series[0].Total))
	case n <= 3:
		return nonNegative(roundHalfUp(meanTotal(series)))
	}

	n := float64(len(series))
	var sumX, sumY, sumXY, sumXX float64
	for i, week := range series {
		x := float64(i + 1)
		sumX += x
		sumY += week.Total
		sumXY += x * week.Total
		sumXX += x * x
	}

	denominator := n*sumXX - sumX*sumX
	if denominator == 0 {
		return nonNegative(roundHalfUp(sumY / n))
	}

	slope := (n*sumXY - sumX*sumY) / denominator
	intercept := (sumY - slope*sumX) / n
	prediction := slope*(n+1) + intercept

	ceiling := 2 * (sumY / n)
	return nonNegative(roundHalfUp(clamp(prediction, 0, ceiling)))
}

func meanTotal(series []domain.WeeklyTotal) float64 {
	sum := 0.0
	for _, week := range series {
		sum += week.Total
	}
	return sum / float64(len(series))
}

// roundHalfUp rounds .5 toward positive infinity.
func roundHalfUp(val float64) float64 {
	return math.Floor(val + 0.5)
}

func clamp(val float64, minVal float64, maxVal float64) float64 {
	return math.Max(minVal, math.Min(val, maxVal))
}

func nonNegative(val float64) int {
	if val < 0 || math.IsNaN(val) {
		return 0
	}
	return int(val)
}
