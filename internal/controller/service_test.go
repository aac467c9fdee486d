package controller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgnsrekt/chartcore/internal/chartdata"
	"github.com/dgnsrekt/chartcore/internal/stream"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s := New(Options{StrictTime: true, FrameInterval: 2 * time.Millisecond})
	t.Cleanup(s.Close)
	return s
}

func hasCode(err error, code string) bool {
	var coded *chartdata.CodedError
	return errors.As(err, &coded) && coded.Code == code
}

func fval(v float64) *float64 { return &v }

func TestCreateChart_RequiresName(t *testing.T) {
	s := newTestService(t)
	_, err := s.CreateChart(context.Background(), "   ")
	if !hasCode(err, chartdata.CodeValidation) {
		t.Fatalf("CreateChart() = %v; want %s", err, chartdata.CodeValidation)
	}
	var coded *chartdata.CodedError
	if errors.As(err, &coded) && coded.Message != "name is required" {
		t.Fatalf("message = %q; want %q", coded.Message, "name is required")
	}
}

func TestChartLifecycle(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	chart, err := s.CreateChart(ctx, "btc-usd")
	if err != nil {
		t.Fatalf("CreateChart() = %v; want nil", err)
	}
	if chart.ChartID == "" || chart.Name != "btc-usd" {
		t.Fatalf("unexpected chart info %+v", chart)
	}

	charts, err := s.ListCharts(ctx)
	if err != nil || len(charts) != 1 {
		t.Fatalf("ListCharts() = %v, %v; want one chart", charts, err)
	}

	if err := s.DeleteChart(ctx, chart.ChartID); err != nil {
		t.Fatalf("DeleteChart() = %v; want nil", err)
	}
	if err := s.DeleteChart(ctx, chart.ChartID); !hasCode(err, chartdata.CodeChartNotFound) {
		t.Fatalf("DeleteChart() second time = %v; want %s", err, chartdata.CodeChartNotFound)
	}
}

func TestSeriesDataRoundTrip(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	chart, _ := s.CreateChart(ctx, "test")
	series, err := s.AddSeries(ctx, chart.ChartID, chartdata.SeriesLine, 0)
	if err != nil {
		t.Fatalf("AddSeries() = %v; want nil", err)
	}

	summary, err := s.SetSeriesData(ctx, chart.ChartID, series.ID, []chartdata.DataItem{
		{Time: chartdata.NewDateStringTime("2020-01-01"), Value: fval(10)},
		{Time: chartdata.NewDateStringTime("2020-01-02"), Value: fval(11)},
	})
	if err != nil {
		t.Fatalf("SetSeriesData() = %v; want nil", err)
	}
	if !summary.TimeScaleChanged || summary.PointCount != 2 || summary.FirstChangedPointIndex != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if len(summary.Series) != 1 || summary.Series[0].SeriesID != series.ID || len(summary.Series[0].Rows) != 2 {
		t.Fatalf("unexpected series delta %+v", summary.Series)
	}

	rows, err := s.GetSeriesData(ctx, chart.ChartID, series.ID)
	if err != nil || len(rows) != 2 {
		t.Fatalf("GetSeriesData() = %d rows, %v; want 2", len(rows), err)
	}

	update, err := s.UpdateSeriesData(ctx, chart.ChartID, series.ID, chartdata.DataItem{
		Time: chartdata.NewDateStringTime("2020-01-02"), Value: fval(42),
	})
	if err != nil {
		t.Fatalf("UpdateSeriesData() = %v; want nil", err)
	}
	if update.TimeScaleChanged || update.FirstChangedPointIndex != -1 {
		t.Fatalf("in-place update summary = %+v; want incremental", update)
	}
}

func TestUnknownChartAndSeries(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	if _, err := s.ListSeries(ctx, "nope"); !hasCode(err, chartdata.CodeChartNotFound) {
		t.Fatalf("ListSeries(bad chart) = %v; want %s", err, chartdata.CodeChartNotFound)
	}

	chart, _ := s.CreateChart(ctx, "test")
	if _, err := s.SetSeriesData(ctx, chart.ChartID, 999, nil); !hasCode(err, chartdata.CodeSeriesNotFound) {
		t.Fatalf("SetSeriesData(bad series) = %v; want %s", err, chartdata.CodeSeriesNotFound)
	}
}

func TestUpdatesReachTheBroker(t *testing.T) {
	broker := stream.NewBroker(16)
	s := New(Options{StrictTime: true, FrameInterval: 2 * time.Millisecond, Broker: broker})
	t.Cleanup(s.Close)
	ctx := context.Background()

	chart, _ := s.CreateChart(ctx, "streamed")
	series, _ := s.AddSeries(ctx, chart.ChartID, chartdata.SeriesLine, 0)

	_, events := broker.Subscribe()
	if _, err := s.SetSeriesData(ctx, chart.ChartID, series.ID, []chartdata.DataItem{
		{Time: chartdata.NewUnixTime(1000), Value: fval(1)},
	}); err != nil {
		t.Fatalf("SetSeriesData() = %v; want nil", err)
	}

	select {
	case evt := <-events:
		if evt.ChartID != chart.ChartID || evt.Update.Op != "set" || evt.Update.SeriesID != series.ID {
			t.Fatalf("unexpected event %+v", evt)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no event published within deadline")
	}
}

func TestTimeScaleCommandsBySurface(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	chart, _ := s.CreateChart(ctx, "ts")
	series, _ := s.AddSeries(ctx, chart.ChartID, chartdata.SeriesLine, 0)
	if _, err := s.SetSeriesData(ctx, chart.ChartID, series.ID, []chartdata.DataItem{
		{Time: chartdata.NewUnixTime(1000), Value: fval(1)},
		{Time: chartdata.NewUnixTime(2000), Value: fval(2)},
	}); err != nil {
		t.Fatalf("SetSeriesData() = %v; want nil", err)
	}

	if err := s.SetBarSpacing(ctx, chart.ChartID, 0); !hasCode(err, chartdata.CodeValidation) {
		t.Fatalf("SetBarSpacing(0) = %v; want %s", err, chartdata.CodeValidation)
	}
	if err := s.FitContent(ctx, chart.ChartID); err != nil {
		t.Fatalf("FitContent() = %v; want nil", err)
	}
	if err := s.SetBarSpacing(ctx, chart.ChartID, 9); err != nil {
		t.Fatalf("SetBarSpacing(9) = %v; want nil", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		info, err := s.GetTimeScale(ctx, chart.ChartID, false)
		if err != nil {
			t.Fatalf("GetTimeScale() = %v; want nil", err)
		}
		if info.BarSpacing == 9 && info.VisibleRange != nil {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("time scale commands not applied within deadline")
}
