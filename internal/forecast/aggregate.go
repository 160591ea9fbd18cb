package forecast

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"attn/backend/internal/domain"
)

const millisPerDay = 86400000.0

// WeekKey buckets t into a "YYYY-Www" key. Weeks are counted from January 1
// of t's year in t's location, offset by the weekday that year started on.
func WeekKey(t time.Time) string {
	yearStart := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
	days := float64(t.Sub(yearStart).Milliseconds()) / millisPerDay
	week := int(math.Ceil((days + float64(yearStart.Weekday()) + 1) / 7))
	return fmt.Sprintf("%d-W%02d", t.Year(), week)
}

func NormalizeProductName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

type productWeeks struct {
	weeks       map[string]int
	currentWeek int
}

// Aggregation holds per-product weekly quantities built from one batch of
// order lines.
type Aggregation struct {
	products map[string]*productWeeks
	Stats    domain.AggregationStats
}

// Aggregate groups order lines by normalized product name and week key.
// Lines dated within the seven days ending at now (inclusive) also count
// toward the product's current-week total. Lines without a date or product
// name are skipped and counted in Stats.Skipped.
func Aggregate(lines []domain.OrderLine, now time.Time) Aggregation {
	agg := Aggregation{products: make(map[string]*productWeeks)}
	weekAgo := now.AddDate(0, 0, -7)
	weeks := make(map[string]struct{})

	for _, line := range lines {
		agg.Stats.Processed++
		if line.OrderDate == nil {
			agg.Stats.Skipped++
			continue
		}

		orderDate := *line.OrderDate
		week := WeekKey(orderDate)
		weeks[week] = struct{}{}
		if agg.Stats.Earliest == nil || orderDate.Before(*agg.Stats.Earliest) {
			earliest := orderDate
			agg.Stats.Earliest = &earliest
		}
		if agg.Stats.Latest == nil || orderDate.After(*agg.Stats.Latest) {
			latest := orderDate
			agg.Stats.Latest = &latest
		}

		name := NormalizeProductName(line.ProductName)
		if name == "" {
			agg.Stats.Skipped++
			continue
		}

		qty := line.Qty
		if qty < 0 {
			qty = 0
		}

		pw, ok := agg.products[name]
		if !ok {
			pw = &productWeeks{weeks: make(map[string]int)}
			agg.products[name] = pw
		}
		pw.weeks[week] += qty

		if !orderDate.Before(weekAgo) && !orderDate.After(now) {
			pw.currentWeek += qty
		}
	}

	agg.Stats.Weeks = len(weeks)
	return agg
}

// Products returns the normalized product names present, sorted.
func (a Aggregation) Products() []string {
	names := make([]string, 0, len(a.products))
	for name := range a.products {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Series returns the product's weekly totals in ascending week order. The
// name is normalized before lookup.
func (a Aggregation) Series(product string) []domain.WeeklyTotal {
	pw, ok := a.products[NormalizeProductName(product)]
	if !ok {
		return nil
	}

	series := make([]domain.WeeklyTotal, 0, len(pw.weeks))
	for week, total := range pw.weeks {
		series = append(series, domain.WeeklyTotal{Week: week, Total: float64(total)})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Week < series[j].Week })
	return series
}

func (a Aggregation) CurrentWeek(product string) int {
	pw, ok := a.products[NormalizeProductName(product)]
	if !ok {
		return 0
	}
	return pw.currentWeek
}

// SeriesByProduct returns every product's sorted weekly series keyed by
// normalized name.
func (a Aggregation) SeriesByProduct() map[string][]domain.WeeklyTotal {
	out := make(map[string][]domain.WeeklyTotal, len(a.products))
	for name := range a.products {
		out[name] = a.Series(name)
	}
	return out
}

// WeeklyForecasts pairs each product's current-week total with its predicted
// next week, busiest products first. A limit below 1 returns every product.
func WeeklyForecasts(agg Aggregation, limit int) []domain.ProductForecast {
	names := agg.Products()
	forecasts := make([]domain.ProductForecast, 0, len(names))
	for _, name := range names {
		series := agg.Series(name)
		forecasts = append(forecasts, domain.ProductForecast{
			Product:     name,
			ThisWeek:    agg.CurrentWeek(name),
			NextWeek:    PredictNextWeek(series),
			WeeksOfData: len(series),
		})
	}

	sort.SliceStable(forecasts, func(i, j int) bool {
		return forecasts[i].ThisWeek > forecasts[j].ThisWeek
	})
	if limit > 0 && len(forecasts) > limit {
		forecasts = forecasts[:limit]
	}
	return forecasts
}
