package forecast

import (
	"testing"
	"time"

	"attn/backend/internal/domain"
)

func at(year int, month time.Month, day int, hour int) *time.Time {
	t := time.Date(year, month, day, hour, 0, 0, 0, time.UTC)
	return &t
}

func TestWeekKey(t *testing.T) {
	cases := []struct {
		date time.Time
		want string
	}{
		{date: *at(2024, time.January, 1, 12), want: "2024-W01"},
		{date: *at(2024, time.January, 10, 12), want: "2024-W02"},
		{date: *at(2024, time.January, 17, 12), want: "2024-W03"},
		{date: *at(2024, time.March, 5, 12), want: "2024-W10"},
		{date: *at(2024, time.December, 31, 12), want: "2024-W53"},
		{date: *at(2023, time.January, 1, 12), want: "2023-W01"},
	}

	for _, tc := range cases {
		if got := WeekKey(tc.date); got != tc.want {
			t.Fatalf("WeekKey(%s): expected %s, got %s", tc.date.Format(time.RFC3339), tc.want, got)
		}
	}
}

func TestWeekKeyIsStableAndAdvancesWeekly(t *testing.T) {
	first := *at(2024, time.March, 5, 12)
	second := first.AddDate(0, 0, 7)

	if WeekKey(first) != WeekKey(first) {
		t.Fatalf("expected identical keys for the same date")
	}
	if WeekKey(first) != "2024-W10" || WeekKey(second) != "2024-W11" {
		t.Fatalf("expected adjacent weeks, got %s and %s", WeekKey(first), WeekKey(second))
	}
}

func TestAggregateMergesNameVariants(t *testing.T) {
	now := *at(2024, time.March, 15, 12)
	lines := []domain.OrderLine{
		{ProductName: "Mighty Bond", Qty: 2, OrderDate: at(2024, time.March, 12, 9)},
		{ProductName: " mighty bond ", Qty: 3, OrderDate: at(2024, time.March, 12, 10)},
		{ProductName: "MIGHTY BOND", Qty: 5, OrderDate: at(2024, time.March, 12, 11)},
	}

	agg := Aggregate(lines, now)

	if products := agg.Products(); len(products) != 1 || products[0] != "mighty bond" {
		t.Fatalf("expected single mighty bond group, got %v", products)
	}
	series := agg.Series("Mighty Bond")
	if len(series) != 1 || series[0].Total != 10 {
		t.Fatalf("expected one week totalling 10, got %+v", series)
	}
	if agg.CurrentWeek("MIGHTY BOND") != 10 {
		t.Fatalf("expected current week 10, got %d", agg.CurrentWeek("mighty bond"))
	}
}

func TestAggregateSkipsIncompleteLines(t *testing.T) {
	now := *at(2024, time.March, 15, 12)
	lines := []domain.OrderLine{
		{ProductName: "Rugby", Qty: 4, OrderDate: nil},
		{ProductName: "   ", Qty: 4, OrderDate: at(2024, time.March, 1, 12)},
		{ProductName: "Rugby", Qty: 6, OrderDate: at(2024, time.March, 2, 12)},
		{ProductName: "Rugby", Qty: -3, OrderDate: at(2024, time.March, 2, 13)},
	}

	agg := Aggregate(lines, now)

	if agg.Stats.Processed != 4 || agg.Stats.Skipped != 2 {
		t.Fatalf("expected 4 processed and 2 skipped, got %+v", agg.Stats)
	}
	series := agg.Series("rugby")
	if len(series) != 1 || series[0].Total != 6 {
		t.Fatalf("expected negative quantity to count as zero, got %+v", series)
	}
	if agg.Stats.Earliest == nil || !agg.Stats.Earliest.Equal(*at(2024, time.March, 1, 12)) {
		t.Fatalf("unexpected earliest date %v", agg.Stats.Earliest)
	}
}

func TestAggregateCurrentWeekBoundsAreInclusive(t *testing.T) {
	now := *at(2024, time.March, 15, 12)
	weekAgo := now.AddDate(0, 0, -7)
	justBefore := weekAgo.Add(-time.Second)
	justAfter := now.Add(time.Second)

	lines := []domain.OrderLine{
		{ProductName: "Tape", Qty: 1, OrderDate: &weekAgo},
		{ProductName: "Tape", Qty: 10, OrderDate: &now},
		{ProductName: "Tape", Qty: 100, OrderDate: &justBefore},
		{ProductName: "Tape", Qty: 1000, OrderDate: &justAfter},
	}

	agg := Aggregate(lines, now)

	if got := agg.CurrentWeek("tape"); got != 11 {
		t.Fatalf("expected current week 11, got %d", got)
	}
}

func TestAggregateSeriesIsSortedByWeek(t *testing.T) {
	now := *at(2024, time.March, 15, 12)
	lines := []domain.OrderLine{
		{ProductName: "Glue", Qty: 3, OrderDate: at(2024, time.March, 12, 12)},
		{ProductName: "Glue", Qty: 1, OrderDate: at(2024, time.January, 10, 12)},
		{ProductName: "Glue", Qty: 2, OrderDate: at(2024, time.February, 14, 12)},
	}

	series := Aggregate(lines, now).Series("glue")

	if len(series) != 3 {
		t.Fatalf("expected 3 weeks, got %d", len(series))
	}
	for i := 1; i < len(series); i++ {
		if series[i-1].Week >= series[i].Week {
			t.Fatalf("series not ascending: %+v", series)
		}
	}
	if series[0].Total != 1 || series[2].Total != 3 {
		t.Fatalf("unexpected totals %+v", series)
	}
}

func TestAggregateEmptyInput(t *testing.T) {
	agg := Aggregate(nil, time.Now())
	if len(agg.Products()) != 0 || agg.Stats.Weeks != 0 {
		t.Fatalf("expected empty aggregation, got %+v", agg.Stats)
	}
	if agg.Series("anything") != nil {
		t.Fatalf("expected nil series for unknown product")
	}
}

func TestWeeklyForecastsOrdersByCurrentWeek(t *testing.T) {
	now := *at(2024, time.March, 15, 12)
	lines := []domain.OrderLine{
		{ProductName: "Slow", Qty: 1, OrderDate: at(2024, time.March, 14, 12)},
		{ProductName: "Fast", Qty: 9, OrderDate: at(2024, time.March, 14, 12)},
		{ProductName: "Mid", Qty: 4, OrderDate: at(2024, time.March, 14, 12)},
	}

	chart := WeeklyForecasts(Aggregate(lines, now), 2)

	if len(chart) != 2 {
		t.Fatalf("expected chart truncated to 2, got %d", len(chart))
	}
	if chart[0].Product != "fast" || chart[1].Product != "mid" {
		t.Fatalf("unexpected chart order %+v", chart)
	}
	if chart[0].NextWeek != 9 || chart[0].WeeksOfData != 1 {
		t.Fatalf("unexpected forecast %+v", chart[0])
	}
}
