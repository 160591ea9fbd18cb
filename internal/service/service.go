package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"attn/backend/internal/domain"
	"attn/backend/internal/ewallet"
	"attn/backend/internal/forecast"
	"attn/backend/internal/metrics"
	"attn/backend/internal/store"
)

var ErrOwnerRequired = errors.New("owner role required")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	source   store.SnapshotSource
	engine   *forecast.Engine
	location *time.Location
	metrics  *metrics.Registry
	now      func() time.Time
	latest   atomic.Pointer[domain.ForecastReport]
}

func New(source store.SnapshotSource, engine *forecast.Engine, location *time.Location, reg *metrics.Registry) *Service {
	if location == nil {
		location = time.UTC
	}
	return &Service{
		source:   source,
		engine:   engine,
		location: location,
		metrics:  reg,
		now:      time.Now,
	}
}

// SetClock replaces the wall clock used as the forecast's reference time.
func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) Forecast(ctx context.Context) (domain.ForecastReport, error) {
	snapshot, err := s.snapshot(ctx)
	if err != nil {
		return domain.ForecastReport{}, err
	}

	report := s.engine.Build(ctx, snapshot, s.localNow())
	if report.Stats.Skipped > 0 {
		log.Printf("[service] WARN: skipped %d order lines without a date or product name", report.Stats.Skipped)
	}
	return report, nil
}

// Restock returns the ranked recommendations narrowed by the query. The
// notifications always cover the whole catalogue.
func (s *Service) Restock(ctx context.Context, query domain.RestockQuery) (domain.RestockResponse, error) {
	report, err := s.Forecast(ctx)
	if err != nil {
		return domain.RestockResponse{}, err
	}

	search := strings.ToLower(strings.TrimSpace(query.Search))
	notifications := make([]string, 0, 8)
	filtered := make([]domain.RestockRecommendation, 0, len(report.Recommendations))
	for _, rec := range report.Recommendations {
		if rec.UrgencyMessage != "" {
			notifications = append(notifications, rec.UrgencyMessage)
		}
		if search != "" && !strings.Contains(strings.ToLower(rec.ProductName), search) {
			continue
		}
		if query.UrgentOnly && !rec.Urgent && rec.Urgency != domain.UrgencyOutOfStock {
			continue
		}
		filtered = append(filtered, rec)
	}

	return domain.RestockResponse{
		GeneratedAt:     report.GeneratedAt,
		Notifications:   notifications,
		Recommendations: filtered,
	}, nil
}

func (s *Service) ProductSeries(ctx context.Context, product string) (domain.ProductSeries, error) {
	if forecast.NormalizeProductName(product) == "" {
		return domain.ProductSeries{}, store.ErrInvalidInput
	}

	lines, err := s.source.ListOrderLines(ctx)
	if err != nil {
		return domain.ProductSeries{}, err
	}
	series := s.engine.Series(s.localize(lines), product, s.localNow())
	if len(series.Weeks) == 0 {
		return domain.ProductSeries{}, store.ErrNotFound
	}
	return series, nil
}

// SalesSummary reports the catalogue size, order count and revenue for
// today, this month and last month in the configured time zone. Callers
// that carry an actor must be owners.
func (s *Service) SalesSummary(ctx context.Context) (domain.SalesSummary, error) {
	if actor, ok := ActorFromContext(ctx); ok && actor.Role != domain.RoleOwner {
		return domain.SalesSummary{}, ErrOwnerRequired
	}

	snapshot, err := s.snapshot(ctx)
	if err != nil {
		return domain.SalesSummary{}, err
	}

	now := s.localNow()
	thisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.location)
	lastMonth := thisMonth.AddDate(0, -1, 0)

	today, thisMonthSales, lastMonthSales := decimal.Zero, decimal.Zero, decimal.Zero
	for _, line := range snapshot.OrderLines {
		if line.OrderDate == nil {
			continue
		}
		date := *line.OrderDate
		amount := line.SellingPrice.Mul(decimal.NewFromInt(int64(line.Qty)))

		if sameDay(date, now) {
			today = today.Add(amount)
		}
		switch {
		case sameMonth(date, thisMonth):
			thisMonthSales = thisMonthSales.Add(amount)
		case sameMonth(date, lastMonth):
			lastMonthSales = lastMonthSales.Add(amount)
		}
	}

	return domain.SalesSummary{
		Date:                 now.Format("2006-01-02"),
		Products:             len(snapshot.Products),
		Orders:               snapshot.OrderCount,
		TodaySales:           today,
		ThisMonthSales:       thisMonthSales,
		LastMonthSales:       lastMonthSales,
		MonthlyGrowthPercent: growthPercent(thisMonthSales, lastMonthSales),
	}, nil
}

func (s *Service) EwalletFee(amount decimal.Decimal) (domain.EwalletFeeQuote, error) {
	if amount.IsNegative() {
		return domain.EwalletFeeQuote{}, store.ErrInvalidInput
	}
	return ewallet.Quote(amount), nil
}

// Refresh builds a report and publishes it as the latest one.
func (s *Service) Refresh(ctx context.Context) error {
	report, err := s.Forecast(ctx)
	if err != nil {
		s.metrics.ObserveRefreshFailure()
		return err
	}
	s.latest.Store(&report)
	return nil
}

func (s *Service) Latest() (domain.ForecastReport, bool) {
	report := s.latest.Load()
	if report == nil {
		return domain.ForecastReport{}, false
	}
	return *report, true
}

func (s *Service) snapshot(ctx context.Context) (domain.Snapshot, error) {
	var snapshot domain.Snapshot

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		products, err := s.source.ListProducts(gctx)
		snapshot.Products = products
		return err
	})
	if history, ok := s.source.(store.OrderHistoryLister); ok {
		g.Go(func() error {
			lines, count, err := history.ListOrderHistory(gctx)
			snapshot.OrderLines = lines
			snapshot.OrderCount = count
			return err
		})
	} else {
		g.Go(func() error {
			lines, err := s.source.ListOrderLines(gctx)
			snapshot.OrderLines = lines
			return err
		})
		g.Go(func() error {
			count, err := s.source.CountOrders(gctx)
			snapshot.OrderCount = count
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return domain.Snapshot{}, err
	}

	snapshot.OrderLines = s.localize(snapshot.OrderLines)
	return snapshot, nil
}

// localize moves order dates into the configured zone so week keys and day
// boundaries follow the store's calendar.
func (s *Service) localize(lines []domain.OrderLine) []domain.OrderLine {
	for i := range lines {
		if lines[i].OrderDate == nil {
			continue
		}
		date := lines[i].OrderDate.In(s.location)
		lines[i].OrderDate = &date
	}
	return lines
}

func (s *Service) localNow() time.Time {
	return s.now().In(s.location)
}

var hundred = decimal.NewFromInt(100)

func growthPercent(current, previous decimal.Decimal) decimal.Decimal {
	if !previous.IsPositive() {
		return hundred
	}
	return current.Sub(previous).Div(previous).Mul(hundred).Round(1)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func sameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}
