package chartdata

import "testing"

func fv(v float64) *float64 { return &v }

func TestNewSeriesRowFactory(t *testing.T) {
	tp := TimePoint{Timestamp: 1000}
	orig := NewUnixTime(1000)

	t.Run("line_duplicates_value_and_keeps_color", func(t *testing.T) {
		row := newSeriesRowFactory(SeriesLine)(tp, 3, DataItem{Value: fv(10), Color: "#f00"}, orig)
		if row.IsWhitespace() {
			t.Fatalf("expected value row")
		}
		want := PlotValue{10, 10, 10, 10}
		if *row.Value != want {
			t.Fatalf("value = %v; want %v", *row.Value, want)
		}
		if row.Index != 3 || row.Color != "#f00" {
			t.Fatalf("unexpected row %+v", row)
		}
	})

	t.Run("histogram_keeps_color", func(t *testing.T) {
		row := newSeriesRowFactory(SeriesHistogram)(tp, 0, DataItem{Value: fv(5), Color: "#0f0"}, orig)
		if row.Color != "#0f0" {
			t.Fatalf("color = %q; want #0f0", row.Color)
		}
	})

	t.Run("area_and_baseline_drop_per_row_color", func(t *testing.T) {
		for _, st := range []SeriesType{SeriesArea, SeriesBaseline} {
			row := newSeriesRowFactory(st)(tp, 0, DataItem{Value: fv(5), Color: "#00f"}, orig)
			if row.Color != "" {
				t.Fatalf("%s row color = %q; want empty", st, row.Color)
			}
			if (*row.Value)[PlotClose] != 5 {
				t.Fatalf("%s close = %v; want 5", st, (*row.Value)[PlotClose])
			}
		}
	})

	t.Run("bar_builds_ohlc", func(t *testing.T) {
		item := DataItem{Open: fv(1), High: fv(4), Low: fv(0.5), Close: fv(2), Color: "#abc"}
		row := newSeriesRowFactory(SeriesBar)(tp, 1, item, orig)
		want := PlotValue{1, 4, 0.5, 2}
		if *row.Value != want {
			t.Fatalf("value = %v; want %v", *row.Value, want)
		}
		if row.Color != "#abc" || row.BorderColor != "" || row.WickColor != "" {
			t.Fatalf("unexpected colors %+v", row)
		}
	})

	t.Run("candlestick_keeps_all_colors", func(t *testing.T) {
		item := DataItem{Open: fv(1), High: fv(4), Low: fv(0.5), Close: fv(2), Color: "#1", BorderColor: "#2", WickColor: "#3"}
		row := newSeriesRowFactory(SeriesCandlestick)(tp, 1, item, orig)
		if row.Color != "#1" || row.BorderColor != "#2" || row.WickColor != "#3" {
			t.Fatalf("unexpected colors %+v", row)
		}
	})

	t.Run("whitespace_guard_applies_to_every_type", func(t *testing.T) {
		for _, st := range []SeriesType{SeriesLine, SeriesHistogram, SeriesArea, SeriesBaseline, SeriesBar, SeriesCandlestick} {
			row := newSeriesRowFactory(st)(tp, 7, DataItem{}, orig)
			if !row.IsWhitespace() {
				t.Fatalf("%s: expected whitespace row", st)
			}
			if row.Index != 7 || row.Time != tp {
				t.Fatalf("%s: unexpected whitespace row %+v", st, row)
			}
		}
	})
}

func TestDataItemIsWhitespace(t *testing.T) {
	if !(DataItem{}).IsWhitespace() {
		t.Fatalf("empty item should be whitespace")
	}
	if (DataItem{Value: fv(0)}).IsWhitespace() {
		t.Fatalf("zero value is still a value")
	}
	if (DataItem{Open: fv(0)}).IsWhitespace() {
		t.Fatalf("zero open is still a value")
	}
}
