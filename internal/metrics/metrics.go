package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg             *prometheus.Registry
	ReportsBuilt    prometheus.Counter
	ReportCacheHits prometheus.Counter
	BuildLatencySec prometheus.Histogram
	LinesSkipped    prometheus.Counter
	RefreshFailures prometheus.Counter
	OutOfStock      prometheus.Gauge
	LowStock        prometheus.Gauge
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	built := prometheus.NewCounter(prometheus.CounterOpts{Name: "forecast_reports_built_total"})
	hits := prometheus.NewCounter(prometheus.CounterOpts{Name: "forecast_report_cache_hits_total"})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "forecast_build_latency_seconds",
		Buckets: prometheus.DefBuckets,
	})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{Name: "forecast_order_lines_skipped_total"})
	refreshFailures := prometheus.NewCounter(prometheus.CounterOpts{Name: "forecast_refresh_failures_total"})
	outOfStock := prometheus.NewGauge(prometheus.GaugeOpts{Name: "forecast_products_out_of_stock"})
	lowStock := prometheus.NewGauge(prometheus.GaugeOpts{Name: "forecast_products_low_stock"})

	r.MustRegister(built, hits, latency, skipped, refreshFailures, outOfStock, lowStock)
	return &Registry{
		reg:             r,
		ReportsBuilt:    built,
		ReportCacheHits: hits,
		BuildLatencySec: latency,
		LinesSkipped:    skipped,
		RefreshFailures: refreshFailures,
		OutOfStock:      outOfStock,
		LowStock:        lowStock,
	}
}

// ObserveBuild records one freshly computed report. Safe on a nil registry.
func (r *Registry) ObserveBuild(elapsed time.Duration, skipped int, outOfStock int, lowStock int) {
	if r == nil {
		return
	}
	r.ReportsBuilt.Inc()
	r.BuildLatencySec.Observe(elapsed.Seconds())
	r.LinesSkipped.Add(float64(skipped))
	r.OutOfStock.Set(float64(outOfStock))
	r.LowStock.Set(float64(lowStock))
}

func (r *Registry) ObserveCacheHit() {
	if r == nil {
		return
	}
	r.ReportCacheHits.Inc()
}

func (r *Registry) ObserveRefreshFailure() {
	if r == nil {
		return
	}
	r.RefreshFailures.Inc()
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
