package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/chartcore/internal/controller"
	"github.com/dgnsrekt/chartcore/internal/engine"
	"github.com/dgnsrekt/chartcore/internal/render"
)

type chartIDInput struct {
	ChartID string `path:"chart_id"`
}

func registerChartHandlers(api huma.API, svc Service) {
	// --- Chart lifecycle ---

	type chartInfoOutput struct {
		Body controller.ChartInfo
	}
	huma.Register(api, huma.Operation{OperationID: "create-chart", Method: http.MethodPost, Path: "/api/v1/charts", Summary: "Create a chart", Tags: []string{"Charts"}},
		func(ctx context.Context, input *struct {
			Body struct {
				Name string `json:"name" required:"true"`
			}
		}) (*chartInfoOutput, error) {
			info, err := svc.CreateChart(ctx, input.Body.Name)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &chartInfoOutput{}
			out.Body = info
			return out, nil
		})

	type listChartsOutput struct {
		Body struct {
			Charts []controller.ChartInfo `json:"charts"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-charts", Method: http.MethodGet, Path: "/api/v1/charts", Summary: "List charts", Tags: []string{"Charts"}},
		func(ctx context.Context, input *struct{}) (*listChartsOutput, error) {
			charts, err := svc.ListCharts(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &listChartsOutput{}
			out.Body.Charts = charts
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "delete-chart", Method: http.MethodDelete, Path: "/api/v1/chart/{chart_id}", Summary: "Destroy a chart", Tags: []string{"Charts"}},
		func(ctx context.Context, input *chartIDInput) (*struct{}, error) {
			if err := svc.DeleteChart(ctx, input.ChartID); err != nil {
				return nil, mapErr(err)
			}
			return &struct{}{}, nil
		})

	// --- Panes ---

	type panesOutput struct {
		Body struct {
			Panes []engine.PaneInfo `json:"panes"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "get-panes", Method: http.MethodGet, Path: "/api/v1/chart/{chart_id}/panes", Summary: "Get pane topology and autoscaled price ranges", Tags: []string{"Charts"}},
		func(ctx context.Context, input *chartIDInput) (*panesOutput, error) {
			panes, err := svc.GetPanes(ctx, input.ChartID)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &panesOutput{}
			out.Body.Panes = panes
			return out, nil
		})

	// --- Time scale ---

	type timeScaleOutput struct {
		Body engine.TimeScaleInfo
	}
	huma.Register(api, huma.Operation{OperationID: "get-timescale", Method: http.MethodGet, Path: "/api/v1/chart/{chart_id}/timescale", Summary: "Get time scale state", Tags: []string{"TimeScale"}},
		func(ctx context.Context, input *struct {
			ChartID       string `path:"chart_id"`
			IncludePoints bool   `query:"include_points" doc:"Include the full sorted point list."`
		}) (*timeScaleOutput, error) {
			info, err := svc.GetTimeScale(ctx, input.ChartID, input.IncludePoints)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &timeScaleOutput{}
			out.Body = info
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "fit-content", Method: http.MethodPost, Path: "/api/v1/chart/{chart_id}/timescale/fit", Summary: "Fit all content into view", Tags: []string{"TimeScale"}},
		func(ctx context.Context, input *chartIDInput) (*struct{}, error) {
			if err := svc.FitContent(ctx, input.ChartID); err != nil {
				return nil, mapErr(err)
			}
			return &struct{}{}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "set-visible-range", Method: http.MethodPut, Path: "/api/v1/chart/{chart_id}/timescale/range", Summary: "Set visible logical range", Tags: []string{"TimeScale"}},
		func(ctx context.Context, input *struct {
			ChartID string `path:"chart_id"`
			Body    struct {
				From float64 `json:"from"`
				To   float64 `json:"to"`
			}
		}) (*struct{}, error) {
			if err := svc.SetVisibleRange(ctx, input.ChartID, input.Body.From, input.Body.To); err != nil {
				return nil, mapErr(err)
			}
			return &struct{}{}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "set-bar-spacing", Method: http.MethodPut, Path: "/api/v1/chart/{chart_id}/timescale/bar-spacing", Summary: "Set bar spacing", Tags: []string{"TimeScale"}},
		func(ctx context.Context, input *struct {
			ChartID string `path:"chart_id"`
			Body    struct {
				BarSpacing float64 `json:"barSpacing" required:"true"`
			}
		}) (*struct{}, error) {
			if err := svc.SetBarSpacing(ctx, input.ChartID, input.Body.BarSpacing); err != nil {
				return nil, mapErr(err)
			}
			return &struct{}{}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "set-right-offset", Method: http.MethodPut, Path: "/api/v1/chart/{chart_id}/timescale/right-offset", Summary: "Set right offset", Tags: []string{"TimeScale"}},
		func(ctx context.Context, input *struct {
			ChartID string `path:"chart_id"`
			Body    struct {
				RightOffset float64 `json:"rightOffset"`
			}
		}) (*struct{}, error) {
			if err := svc.SetRightOffset(ctx, input.ChartID, input.Body.RightOffset); err != nil {
				return nil, mapErr(err)
			}
			return &struct{}{}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "reset-timescale", Method: http.MethodPost, Path: "/api/v1/chart/{chart_id}/timescale/reset", Summary: "Reset the time scale to defaults", Tags: []string{"TimeScale"}},
		func(ctx context.Context, input *chartIDInput) (*struct{}, error) {
			if err := svc.ResetTimeScale(ctx, input.ChartID); err != nil {
				return nil, mapErr(err)
			}
			return &struct{}{}, nil
		})

	// --- Frames ---

	type frameStatsOutput struct {
		Body render.FrameStats
	}
	huma.Register(api, huma.Operation{OperationID: "get-frame-stats", Method: http.MethodGet, Path: "/api/v1/chart/{chart_id}/frames", Summary: "Get paint scheduler counters", Tags: []string{"Charts"}},
		func(ctx context.Context, input *chartIDInput) (*frameStatsOutput, error) {
			stats, err := svc.FrameStats(ctx, input.ChartID)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &frameStatsOutput{}
			out.Body = stats
			return out, nil
		})
}
