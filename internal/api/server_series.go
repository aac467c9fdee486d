package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/chartcore/internal/chartdata"
	"github.com/dgnsrekt/chartcore/internal/controller"
	"github.com/dgnsrekt/chartcore/internal/engine"
)

type seriesIDInput struct {
	ChartID  string `path:"chart_id"`
	SeriesID uint64 `path:"series_id"`
}

func registerSeriesHandlers(api huma.API, svc Service) {
	// --- Series lifecycle ---

	type seriesInfoOutput struct {
		Body engine.SeriesInfo
	}
	huma.Register(api, huma.Operation{OperationID: "add-series", Method: http.MethodPost, Path: "/api/v1/chart/{chart_id}/series", Summary: "Add a series", Tags: []string{"Series"}},
		func(ctx context.Context, input *struct {
			ChartID string `path:"chart_id"`
			Body    struct {
				Type chartdata.SeriesType `json:"type" required:"true" doc:"Bar, Candlestick, Area, Baseline, Line or Histogram."`
				Pane int                  `json:"pane" default:"0"`
			}
		}) (*seriesInfoOutput, error) {
			info, err := svc.AddSeries(ctx, input.ChartID, input.Body.Type, input.Body.Pane)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &seriesInfoOutput{}
			out.Body = info
			return out, nil
		})

	type listSeriesOutput struct {
		Body struct {
			Series []engine.SeriesInfo `json:"series"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-series", Method: http.MethodGet, Path: "/api/v1/chart/{chart_id}/series", Summary: "List series", Tags: []string{"Series"}},
		func(ctx context.Context, input *chartIDInput) (*listSeriesOutput, error) {
			list, err := svc.ListSeries(ctx, input.ChartID)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &listSeriesOutput{}
			out.Body.Series = list
			return out, nil
		})

	type updateSummaryOutput struct {
		Body controller.UpdateSummary
	}
	huma.Register(api, huma.Operation{OperationID: "remove-series", Method: http.MethodDelete, Path: "/api/v1/chart/{chart_id}/series/{series_id}", Summary: "Remove a series", Tags: []string{"Series"}},
		func(ctx context.Context, input *seriesIDInput) (*updateSummaryOutput, error) {
			summary, err := svc.RemoveSeries(ctx, input.ChartID, input.SeriesID)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &updateSummaryOutput{}
			out.Body = summary
			return out, nil
		})

	// --- Series data ---
	// Data items are decoded by hand: the time field is a union of number,
	// string and object, which the generated schema cannot express.

	huma.Register(api, huma.Operation{OperationID: "set-series-data", Method: http.MethodPut, Path: "/api/v1/chart/{chart_id}/series/{series_id}/data", Summary: "Replace the series dataset", Tags: []string{"Series"}},
		func(ctx context.Context, input *struct {
			ChartID  string `path:"chart_id"`
			SeriesID uint64 `path:"series_id"`
			RawBody  []byte
		}) (*updateSummaryOutput, error) {
			var items []chartdata.DataItem
			if err := json.Unmarshal(input.RawBody, &items); err != nil {
				return nil, huma.Error400BadRequest("invalid data items: " + err.Error())
			}
			summary, err := svc.SetSeriesData(ctx, input.ChartID, input.SeriesID, items)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &updateSummaryOutput{}
			out.Body = summary
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "update-series-data", Method: http.MethodPatch, Path: "/api/v1/chart/{chart_id}/series/{series_id}/data", Summary: "Apply a single-point update", Tags: []string{"Series"}},
		func(ctx context.Context, input *struct {
			ChartID  string `path:"chart_id"`
			SeriesID uint64 `path:"series_id"`
			RawBody  []byte
		}) (*updateSummaryOutput, error) {
			var item chartdata.DataItem
			if err := json.Unmarshal(input.RawBody, &item); err != nil {
				return nil, huma.Error400BadRequest("invalid data item: " + err.Error())
			}
			summary, err := svc.UpdateSeriesData(ctx, input.ChartID, input.SeriesID, item)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &updateSummaryOutput{}
			out.Body = summary
			return out, nil
		})

	type seriesDataOutput struct {
		Body struct {
			Rows []*chartdata.PlotRow `json:"rows"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "get-series-data", Method: http.MethodGet, Path: "/api/v1/chart/{chart_id}/series/{series_id}/data", Summary: "Get the series' current rows", Tags: []string{"Series"}},
		func(ctx context.Context, input *seriesIDInput) (*seriesDataOutput, error) {
			rows, err := svc.GetSeriesData(ctx, input.ChartID, input.SeriesID)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &seriesDataOutput{}
			out.Body.Rows = rows
			return out, nil
		})
}
