package forecast

import (
	"fmt"
	"math"
	"sort"

	"attn/backend/internal/domain"
)

type RestockOptions struct {
	// SafetyBufferRate is the share of predicted demand ordered on top of it.
	SafetyBufferRate float64
	// LowStockDays is the largest stockout horizon that still raises a
	// "will run out" message.
	LowStockDays int
	// UrgentDays marks recommendations as urgent at or below this horizon.
	UrgentDays int
}

func DefaultRestockOptions() RestockOptions {
	return RestockOptions{
		SafetyBufferRate: 0.2,
		LowStockDays:     5,
		UrgentDays:       3,
	}
}

// Recommend builds one restock recommendation per product and orders them so
// the most pressing restocks come first: out of stock, then the shortest
// known stockout horizon, then the lowest stock.
func Recommend(products []domain.Product, seriesByProduct map[string][]domain.WeeklyTotal, opts RestockOptions) []domain.RestockRecommendation {
	recommendations := make([]domain.RestockRecommendation, 0, len(products))
	for _, product := range products {
		label := product.Label()
		predicted := PredictNextWeek(seriesByProduct[NormalizeProductName(label)])
		days := DaysUntilStockout(product.Stock, predicted)

		rec := domain.RestockRecommendation{
			ProductID:             product.ID,
			ProductName:           label,
			CurrentStock:          product.Stock,
			PredictedWeeklyDemand: predicted,
			DaysUntilStockout:     days,
			SuggestedRestockQty:   SuggestedRestockQty(product.Stock, predicted, opts.SafetyBufferRate),
		}

		switch {
		case days != nil && *days > 0 && *days <= opts.LowStockDays:
			rec.Urgency = domain.UrgencyLowStock
			rec.UrgencyMessage = fmt.Sprintf("%s will likely be out of stock in %d %s. Restock soon!", label, *days, pluralDays(*days))
		case product.Stock == 0:
			rec.Urgency = domain.UrgencyOutOfStock
			rec.UrgencyMessage = fmt.Sprintf("%s is OUT OF STOCK! Restock immediately!", label)
		}
		rec.Urgent = days != nil && *days <= opts.UrgentDays

		recommendations = append(recommendations, rec)
	}

	sort.SliceStable(recommendations, func(i, j int) bool {
		return restockLess(recommendations[i], recommendations[j])
	})
	return recommendations
}

func restockLess(a domain.RestockRecommendation, b domain.RestockRecommendation) bool {
	aEmpty, bEmpty := a.CurrentStock == 0, b.CurrentStock == 0
	if aEmpty != bEmpty {
		return aEmpty
	}
	if a.DaysUntilStockout != nil && b.DaysUntilStockout != nil {
		return *a.DaysUntilStockout < *b.DaysUntilStockout
	}
	return a.CurrentStock < b.CurrentStock
}

// DaysUntilStockout returns nil when there is no predicted demand.
func DaysUntilStockout(stock int, predictedWeekly int) *int {
	if predictedWeekly <= 0 {
		return nil
	}
	daily := float64(predictedWeekly) / 7
	days := int(math.Floor(float64(stock) / daily))
	return &days
}

func SuggestedRestockQty(stock int, predictedWeekly int, bufferRate float64) int {
	buffer := int(math.Ceil(float64(predictedWeekly) * bufferRate))
	return max(0, predictedWeekly+buffer-stock)
}

func pluralDays(days int) string {
	if days == 1 {
		return "day"
	}
	return "days"
}
