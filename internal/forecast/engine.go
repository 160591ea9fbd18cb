package forecast

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"log"
	"time"

	"attn/backend/internal/cache"
	"attn/backend/internal/domain"
	"attn/backend/internal/metrics"
)

type Engine struct {
	cache      cache.ReportCache
	cacheTTL   time.Duration
	restock    RestockOptions
	chartLimit int
	metrics    *metrics.Registry
}

func NewEngine(cacheStore cache.ReportCache, cacheTTL time.Duration, restock RestockOptions, chartLimit int, reg *metrics.Registry) *Engine {
	if cacheStore == nil {
		cacheStore = cache.NoopReportCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	if restock.SafetyBufferRate < 0 {
		restock.SafetyBufferRate = 0
	}
	if chartLimit < 1 {
		chartLimit = 10
	}

	return &Engine{
		cache:      cacheStore,
		cacheTTL:   cacheTTL,
		restock:    restock,
		chartLimit: chartLimit,
		metrics:    reg,
	}
}

// Build runs the aggregation, prediction and restock steps over one
// snapshot. Reports are memoized per exact input: snapshot content, now
// with its location, and the engine's options.
func (e *Engine) Build(ctx context.Context, snapshot domain.Snapshot, now time.Time) domain.ForecastReport {
	cacheKey := e.buildCacheKey(snapshot, now)
	if cached, ok, err := e.cache.Get(ctx, cacheKey); err != nil {
		log.Printf("[forecast] WARN: report cache get failed: %v", err)
	} else if ok {
		e.metrics.ObserveCacheHit()
		return *cached
	}

	startedAt := time.Now()
	agg := Aggregate(snapshot.OrderLines, now)
	recommendations := Recommend(snapshot.Products, agg.SeriesByProduct(), e.restock)

	report := domain.ForecastReport{
		GeneratedAt:     now.UTC().Format(time.RFC3339),
		Stats:           agg.Stats,
		Chart:           WeeklyForecasts(agg, e.chartLimit),
		Recommendations: recommendations,
	}

	outOfStock, lowStock := 0, 0
	for _, rec := range recommendations {
		switch rec.Urgency {
		case domain.UrgencyOutOfStock:
			outOfStock++
		case domain.UrgencyLowStock:
			lowStock++
		}
	}
	e.metrics.ObserveBuild(time.Since(startedAt), agg.Stats.Skipped, outOfStock, lowStock)

	if err := e.cache.Set(ctx, cacheKey, &report, e.cacheTTL); err != nil {
		log.Printf("[forecast] WARN: report cache set failed: %v", err)
	}
	return report
}

// Series returns one product's weekly totals with its current-week and
// predicted next-week quantities.
func (e *Engine) Series(lines []domain.OrderLine, product string, now time.Time) domain.ProductSeries {
	agg := Aggregate(lines, now)
	series := agg.Series(product)
	if series == nil {
		series = []domain.WeeklyTotal{}
	}
	return domain.ProductSeries{
		Product:       NormalizeProductName(product),
		Weeks:         series,
		ThisWeek:      agg.CurrentWeek(product),
		PredictedNext: PredictNextWeek(series),
	}
}

// cacheKeyInput holds every input that affects a built report.
type cacheKeyInput struct {
	Now        int64              `json:"now"`
	Location   string             `json:"location"`
	Restock    RestockOptions     `json:"restock"`
	ChartLimit int                `json:"chart_limit"`
	Products   []domain.Product   `json:"products"`
	OrderLines []domain.OrderLine `json:"order_lines"`
}

func (e *Engine) buildCacheKey(snapshot domain.Snapshot, now time.Time) string {
	hash := sha1.New()
	// Writes to a hash never fail and every field encodes cleanly.
	_ = json.NewEncoder(hash).Encode(cacheKeyInput{
		Now:        now.UnixNano(),
		Location:   now.Location().String(),
		Restock:    e.restock,
		ChartLimit: e.chartLimit,
		Products:   snapshot.Products,
		OrderLines: snapshot.OrderLines,
	})
	return "attn:forecast:" + hex.EncodeToString(hash.Sum(nil))
}
