package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"attn/backend/internal/domain"
	"attn/backend/internal/forecast"
	"attn/backend/internal/metrics"
	"attn/backend/internal/store"
	"attn/backend/internal/store/memory"
)

var referenceNow = time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

func dated(y int, m time.Month, d, h int) *time.Time {
	t := time.Date(y, m, d, h, 0, 0, 0, time.UTC)
	return &t
}

func newTestService(source store.SnapshotSource, loc *time.Location) *Service {
	engine := forecast.NewEngine(nil, 0, forecast.DefaultRestockOptions(), 10, nil)
	svc := New(source, engine, loc, metrics.NewRegistry())
	svc.SetClock(func() time.Time { return referenceNow })
	return svc
}

func forecastFixture() *memory.Store {
	return memory.New(
		[]domain.Product{
			{ID: "1", Name: "Mighty Bond", Stock: 3, Active: true},
			{ID: "2", Name: "Duct Tape", Stock: 0, Active: true},
			{ID: "3", Name: "Concrete Nails", Stock: 333, Active: true},
		},
		[]domain.OrderLine{
			{OrderID: "o1", ProductName: "Mighty Bond", Qty: 10, OrderDate: dated(2024, time.March, 7, 12)},
			{OrderID: "o2", ProductName: "mighty bond ", Qty: 10, OrderDate: dated(2024, time.March, 14, 12)},
			{OrderID: "o3", ProductName: "Duct Tape", Qty: 2, OrderDate: dated(2024, time.March, 1, 12)},
			{OrderID: "o4", ProductName: "Concrete Nails", Qty: 50, OrderDate: dated(2024, time.March, 13, 12)},
			{OrderID: "o5", ProductName: "Duct Tape", Qty: 1},
		},
	)
}

type failingSource struct{}

func (failingSource) ListProducts(context.Context) ([]domain.Product, error) {
	return nil, errors.New("upstream unavailable")
}

func (failingSource) ListOrderLines(context.Context) ([]domain.OrderLine, error) {
	return nil, errors.New("upstream unavailable")
}

func (failingSource) CountOrders(context.Context) (int, error) {
	return 0, errors.New("upstream unavailable")
}

func TestForecastRanksRecommendations(t *testing.T) {
	svc := newTestService(forecastFixture(), time.UTC)

	report, err := svc.Forecast(context.Background())
	if err != nil {
		t.Fatalf("forecast failed: %v", err)
	}

	if report.Stats.Processed != 5 || report.Stats.Skipped != 1 {
		t.Fatalf("unexpected stats %+v", report.Stats)
	}
	if len(report.Recommendations) != 3 {
		t.Fatalf("expected 3 recommendations, got %d", len(report.Recommendations))
	}
	order := []string{report.Recommendations[0].ProductID, report.Recommendations[1].ProductID, report.Recommendations[2].ProductID}
	if order[0] != "2" || order[1] != "1" || order[2] != "3" {
		t.Fatalf("expected order [2 1 3], got %v", order)
	}

	bond := report.Recommendations[1]
	if bond.PredictedWeeklyDemand != 10 || bond.SuggestedRestockQty != 9 || !bond.Urgent {
		t.Fatalf("unexpected Mighty Bond recommendation %+v", bond)
	}
	if bond.UrgencyMessage != "Mighty Bond will likely be out of stock in 2 days. Restock soon!" {
		t.Fatalf("unexpected message %q", bond.UrgencyMessage)
	}

	if len(report.Chart) != 3 || report.Chart[0].Product != "concrete nails" || report.Chart[0].ThisWeek != 50 {
		t.Fatalf("unexpected chart %+v", report.Chart)
	}
}

func TestForecastPropagatesSourceErrors(t *testing.T) {
	svc := newTestService(failingSource{}, time.UTC)

	if _, err := svc.Forecast(context.Background()); err == nil {
		t.Fatalf("expected source error")
	}
}

func TestRestockFiltersBySearchAndUrgency(t *testing.T) {
	svc := newTestService(forecastFixture(), time.UTC)
	ctx := context.Background()

	resp, err := svc.Restock(ctx, domain.RestockQuery{Search: "  BOND "})
	if err != nil {
		t.Fatalf("restock failed: %v", err)
	}
	if len(resp.Recommendations) != 1 || resp.Recommendations[0].ProductName != "Mighty Bond" {
		t.Fatalf("expected only Mighty Bond, got %+v", resp.Recommendations)
	}
	if len(resp.Notifications) != 2 || resp.Notifications[0] != "Duct Tape is OUT OF STOCK! Restock immediately!" {
		t.Fatalf("expected notifications for the whole catalogue, got %v", resp.Notifications)
	}

	urgent, err := svc.Restock(ctx, domain.RestockQuery{UrgentOnly: true})
	if err != nil {
		t.Fatalf("restock failed: %v", err)
	}
	if len(urgent.Recommendations) != 2 || urgent.Recommendations[0].ProductID != "2" || urgent.Recommendations[1].ProductID != "1" {
		t.Fatalf("expected Duct Tape and Mighty Bond, got %+v", urgent.Recommendations)
	}
}

func TestProductSeries(t *testing.T) {
	svc := newTestService(forecastFixture(), time.UTC)
	ctx := context.Background()

	series, err := svc.ProductSeries(ctx, "MIGHTY BOND")
	if err != nil {
		t.Fatalf("series failed: %v", err)
	}
	if len(series.Weeks) != 2 || series.Weeks[0].Week != "2024-W10" || series.Weeks[1].Week != "2024-W11" {
		t.Fatalf("unexpected weeks %+v", series.Weeks)
	}
	if series.PredictedNext != 10 || series.ThisWeek != 10 {
		t.Fatalf("unexpected series %+v", series)
	}

	if _, err := svc.ProductSeries(ctx, "sandpaper"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.ProductSeries(ctx, "   "); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func summaryFixture() *memory.Store {
	return memory.New(
		[]domain.Product{
			{ID: "1", Name: "Mighty Bond", Active: true},
			{ID: "2", Name: "Duct Tape", Active: true},
		},
		[]domain.OrderLine{
			{OrderID: "o1", ProductName: "Mighty Bond", Qty: 2, SellingPrice: decimal.RequireFromString("35.00"), OrderDate: dated(2024, time.March, 15, 9)},
			{OrderID: "o2", ProductName: "Duct Tape", Qty: 1, SellingPrice: decimal.RequireFromString("60.00"), OrderDate: dated(2024, time.March, 2, 9)},
			{OrderID: "o3", ProductName: "Mighty Bond", Qty: 4, SellingPrice: decimal.RequireFromString("25.00"), OrderDate: dated(2024, time.February, 20, 9)},
			{OrderID: "o3", ProductName: "Duct Tape", Qty: 10, SellingPrice: decimal.RequireFromString("10.00"), OrderDate: dated(2023, time.March, 10, 9)},
			{OrderID: "o4", ProductName: "Duct Tape", Qty: 3, SellingPrice: decimal.RequireFromString("60.00")},
		},
	)
}

func TestSalesSummary(t *testing.T) {
	svc := newTestService(summaryFixture(), time.UTC)

	summary, err := svc.SalesSummary(context.Background())
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if summary.Date != "2024-03-15" || summary.Products != 2 || summary.Orders != 4 {
		t.Fatalf("unexpected counts %+v", summary)
	}
	if !summary.TodaySales.Equal(decimal.NewFromInt(70)) {
		t.Fatalf("expected today sales 70, got %s", summary.TodaySales)
	}
	if !summary.ThisMonthSales.Equal(decimal.NewFromInt(130)) || !summary.LastMonthSales.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected monthly sales %+v", summary)
	}
	if !summary.MonthlyGrowthPercent.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("expected growth 30, got %s", summary.MonthlyGrowthPercent)
	}
}

func TestSalesSummaryUsesConfiguredTimezone(t *testing.T) {
	manila := time.FixedZone("PHT", 8*60*60)
	// 20:00 UTC on the 14th is already the 15th in Manila.
	late := time.Date(2024, time.March, 14, 20, 0, 0, 0, time.UTC)
	source := memory.New(nil, []domain.OrderLine{
		{OrderID: "o1", ProductName: "Glue", Qty: 1, SellingPrice: decimal.NewFromInt(40), OrderDate: &late},
	})

	utc, err := newTestService(source, time.UTC).SalesSummary(context.Background())
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	local, err := newTestService(source, manila).SalesSummary(context.Background())
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if !utc.TodaySales.IsZero() || !local.TodaySales.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected sale to count only in Manila, utc=%s local=%s", utc.TodaySales, local.TodaySales)
	}
	if !local.MonthlyGrowthPercent.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected 100%% growth without last month sales, got %s", local.MonthlyGrowthPercent)
	}
}

func TestSalesSummaryRequiresOwner(t *testing.T) {
	svc := newTestService(summaryFixture(), time.UTC)
	ctx := WithActor(context.Background(), domain.Actor{Username: "staff", Role: domain.RoleStaff})

	if _, err := svc.SalesSummary(ctx); !errors.Is(err, ErrOwnerRequired) {
		t.Fatalf("expected ErrOwnerRequired, got %v", err)
	}

	ctx = WithActor(context.Background(), domain.Actor{Username: "owner", Role: domain.RoleOwner})
	if _, err := svc.SalesSummary(ctx); err != nil {
		t.Fatalf("expected owner to read summary, got %v", err)
	}
}

func TestEwalletFee(t *testing.T) {
	svc := newTestService(forecastFixture(), time.UTC)

	quote, err := svc.EwalletFee(decimal.NewFromInt(750))
	if err != nil {
		t.Fatalf("fee failed: %v", err)
	}
	if !quote.Fee.Equal(decimal.NewFromInt(20)) || !quote.Total.Equal(decimal.NewFromInt(770)) {
		t.Fatalf("unexpected quote %+v", quote)
	}
	if _, err := svc.EwalletFee(decimal.NewFromInt(-1)); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRefreshPublishesLatest(t *testing.T) {
	svc := newTestService(forecastFixture(), time.UTC)

	if _, ok := svc.Latest(); ok {
		t.Fatalf("expected no report before the first refresh")
	}
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	report, ok := svc.Latest()
	if !ok || len(report.Recommendations) != 3 {
		t.Fatalf("expected published report, got %+v", report)
	}
}

func TestRefreshFailureKeepsPreviousReport(t *testing.T) {
	svc := newTestService(forecastFixture(), time.UTC)
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	svc.source = failingSource{}
	if err := svc.Refresh(context.Background()); err == nil {
		t.Fatalf("expected refresh error")
	}
	if _, ok := svc.Latest(); !ok {
		t.Fatalf("expected previous report to survive a failed refresh")
	}
}

func TestRefreshPicksUpStoreChanges(t *testing.T) {
	source := forecastFixture()
	svc := newTestService(source, time.UTC)
	ctx := context.Background()

	if err := source.SetStock(ctx, "2", 40); err != nil {
		t.Fatalf("set stock: %v", err)
	}
	source.AddOrderLines(ctx, []domain.OrderLine{
		{OrderID: "o6", ProductName: "Duct Tape", Qty: 4, OrderDate: dated(2024, time.March, 14, 9)},
	})

	if err := svc.Refresh(ctx); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	report, _ := svc.Latest()
	if report.Stats.Processed != 6 {
		t.Fatalf("expected the added line to be processed, got %+v", report.Stats)
	}
	for _, rec := range report.Recommendations {
		if rec.ProductID == "2" && (rec.CurrentStock != 40 || rec.Urgency == domain.UrgencyOutOfStock) {
			t.Fatalf("expected restocked duct tape, got %+v", rec)
		}
	}
}

type historySource struct {
	*memory.Store
	countCalls int
}

func (h *historySource) CountOrders(ctx context.Context) (int, error) {
	h.countCalls++
	return h.Store.CountOrders(ctx)
}

func (h *historySource) ListOrderHistory(ctx context.Context) ([]domain.OrderLine, int, error) {
	lines, err := h.Store.ListOrderLines(ctx)
	return lines, 42, err
}

func TestSnapshotPrefersOneHistoryFetch(t *testing.T) {
	source := &historySource{Store: forecastFixture()}
	svc := newTestService(source, time.UTC)

	snapshot, err := svc.snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snapshot.OrderCount != 42 || len(snapshot.OrderLines) != 5 {
		t.Fatalf("expected count and lines from the history call, got %d orders and %d lines", snapshot.OrderCount, len(snapshot.OrderLines))
	}
	if source.countCalls != 0 {
		t.Fatalf("expected CountOrders to be skipped, got %d calls", source.countCalls)
	}
}
