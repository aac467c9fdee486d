package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/dgnsrekt/chartcore/internal/chartdata"
	"github.com/dgnsrekt/chartcore/internal/controller"
	"github.com/dgnsrekt/chartcore/internal/engine"
	"github.com/dgnsrekt/chartcore/internal/render"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Service is the engine-facing surface the HTTP handlers call into.
type Service interface {
	CreateChart(ctx context.Context, name string) (controller.ChartInfo, error)
	ListCharts(ctx context.Context) ([]controller.ChartInfo, error)
	DeleteChart(ctx context.Context, chartID string) error
	AddSeries(ctx context.Context, chartID string, seriesType chartdata.SeriesType, pane int) (engine.SeriesInfo, error)
	ListSeries(ctx context.Context, chartID string) ([]engine.SeriesInfo, error)
	RemoveSeries(ctx context.Context, chartID string, seriesID uint64) (controller.UpdateSummary, error)
	SetSeriesData(ctx context.Context, chartID string, seriesID uint64, items []chartdata.DataItem) (controller.UpdateSummary, error)
	UpdateSeriesData(ctx context.Context, chartID string, seriesID uint64, item chartdata.DataItem) (controller.UpdateSummary, error)
	GetSeriesData(ctx context.Context, chartID string, seriesID uint64) ([]*chartdata.PlotRow, error)
	GetTimeScale(ctx context.Context, chartID string, includePoints bool) (engine.TimeScaleInfo, error)
	GetPanes(ctx context.Context, chartID string) ([]engine.PaneInfo, error)
	FitContent(ctx context.Context, chartID string) error
	SetVisibleRange(ctx context.Context, chartID string, from, to float64) error
	SetBarSpacing(ctx context.Context, chartID string, spacing float64) error
	SetRightOffset(ctx context.Context, chartID string, offset float64) error
	ResetTimeScale(ctx context.Context, chartID string) error
	FrameStats(ctx context.Context, chartID string) (render.FrameStats, error)
}

// NewServer builds the chi router with the huma API mounted on it. stream
// is an optional WebSocket handler for live update events.
func NewServer(svc Service, stream http.Handler) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("chartcore API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})

	if stream != nil {
		router.Get("/api/v1/chart/{chart_id}/stream", stream.ServeHTTP)
	}

	registerChartHandlers(api, svc)
	registerSeriesHandlers(api, svc)

	return router
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *chartdata.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case chartdata.CodeValidation, chartdata.CodeInvalidTime, chartdata.CodeTimeType, chartdata.CodeUnorderedInput:
			return huma.Error400BadRequest(coded.Message)
		case chartdata.CodeChartNotFound, chartdata.CodeSeriesNotFound, chartdata.CodeUnknownSeries:
			return huma.Error404NotFound(coded.Message)
		case chartdata.CodeUpdateOutOfOrder:
			return huma.Error409Conflict(coded.Message)
		case chartdata.CodeEngineDestroyed:
			return huma.Error410Gone(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
