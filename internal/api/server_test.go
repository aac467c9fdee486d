package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dgnsrekt/chartcore/internal/chartdata"
	"github.com/dgnsrekt/chartcore/internal/controller"
	"github.com/dgnsrekt/chartcore/internal/engine"
	"github.com/dgnsrekt/chartcore/internal/render"
)

// stubService satisfies Service with canned responses.
type stubService struct {
	lastSetItems []chartdata.DataItem
}

func (s *stubService) CreateChart(_ context.Context, name string) (controller.ChartInfo, error) {
	if strings.TrimSpace(name) == "" {
		return controller.ChartInfo{}, chartdata.NewError(chartdata.CodeValidation, "name is required", nil)
	}
	return controller.ChartInfo{ChartID: "chart-0001", Name: name}, nil
}

func (s *stubService) ListCharts(context.Context) ([]controller.ChartInfo, error) {
	return []controller.ChartInfo{}, nil
}

func (s *stubService) DeleteChart(_ context.Context, chartID string) error {
	return chartdata.NewError(chartdata.CodeChartNotFound, "chart not found", nil)
}

func (s *stubService) AddSeries(_ context.Context, _ string, t chartdata.SeriesType, pane int) (engine.SeriesInfo, error) {
	return engine.SeriesInfo{ID: 1, Type: t, Pane: pane}, nil
}

func (s *stubService) ListSeries(context.Context, string) ([]engine.SeriesInfo, error) {
	return nil, nil
}

func (s *stubService) RemoveSeries(context.Context, string, uint64) (controller.UpdateSummary, error) {
	return controller.UpdateSummary{FirstChangedPointIndex: -1}, nil
}

func (s *stubService) SetSeriesData(_ context.Context, _ string, _ uint64, items []chartdata.DataItem) (controller.UpdateSummary, error) {
	s.lastSetItems = items
	return controller.UpdateSummary{TimeScaleChanged: true, PointCount: len(items)}, nil
}

func (s *stubService) UpdateSeriesData(context.Context, string, uint64, chartdata.DataItem) (controller.UpdateSummary, error) {
	return controller.UpdateSummary{FirstChangedPointIndex: -1}, nil
}

func (s *stubService) GetSeriesData(context.Context, string, uint64) ([]*chartdata.PlotRow, error) {
	return []*chartdata.PlotRow{}, nil
}

func (s *stubService) GetTimeScale(context.Context, string, bool) (engine.TimeScaleInfo, error) {
	return engine.TimeScaleInfo{BarSpacing: 6}, nil
}

func (s *stubService) GetPanes(context.Context, string) ([]engine.PaneInfo, error) {
	return nil, nil
}

func (s *stubService) FitContent(context.Context, string) error { return nil }

func (s *stubService) SetVisibleRange(context.Context, string, float64, float64) error { return nil }

func (s *stubService) SetBarSpacing(context.Context, string, float64) error { return nil }

func (s *stubService) SetRightOffset(context.Context, string, float64) error { return nil }

func (s *stubService) ResetTimeScale(context.Context, string) error { return nil }

func (s *stubService) FrameStats(context.Context, string) (render.FrameStats, error) {
	return render.FrameStats{FramesDrawn: 3}, nil
}

func TestServer_CreateChart(t *testing.T) {
	handler := NewServer(&stubService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/charts", strings.NewReader(`{"name":"demo"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200, body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "chart-0001") {
		t.Fatalf("body missing chart id: %s", rec.Body.String())
	}
}

func TestServer_ErrorMapping(t *testing.T) {
	handler := NewServer(&stubService{}, nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/chart/missing", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d; want 404", rec.Code)
	}
}

func TestServer_SetSeriesDataDecodesUnionTimes(t *testing.T) {
	svc := &stubService{}
	handler := NewServer(svc, nil)

	body := `[{"time":"2020-01-01","value":10},{"time":1577923200,"value":11},{"time":{"year":2020,"month":1,"day":3}}]`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/chart/c1/series/1/data", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200, body=%s", rec.Code, rec.Body.String())
	}
	if len(svc.lastSetItems) != 3 {
		t.Fatalf("decoded items = %d; want 3", len(svc.lastSetItems))
	}
	if svc.lastSetItems[0].Time.Date != "2020-01-01" {
		t.Fatalf("item 0 time = %+v; want date string", svc.lastSetItems[0].Time)
	}
	if svc.lastSetItems[1].Time.Unix != 1577923200 {
		t.Fatalf("item 1 time = %+v; want unix timestamp", svc.lastSetItems[1].Time)
	}
	if svc.lastSetItems[2].Time.Day == nil || !svc.lastSetItems[2].IsWhitespace() {
		t.Fatalf("item 2 = %+v; want business-day whitespace", svc.lastSetItems[2])
	}
}

func TestServer_DocsPage(t *testing.T) {
	handler := NewServer(&stubService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/docs", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "elements-api") {
		t.Fatalf("docs page missing stoplight element")
	}
}
