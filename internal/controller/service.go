// Package controller implements the API service on top of a registry of
// chart engines.
package controller

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/chartcore/internal/chartdata"
	"github.com/dgnsrekt/chartcore/internal/chartmodel"
	"github.com/dgnsrekt/chartcore/internal/engine"
	"github.com/dgnsrekt/chartcore/internal/render"
	"github.com/dgnsrekt/chartcore/internal/storage"
	"github.com/dgnsrekt/chartcore/internal/stream"
)

// ChartInfo describes a chart in the registry.
type ChartInfo struct {
	ChartID   string    `json:"chart_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Series    int       `json:"series"`
}

// SeriesDelta is one series' slice of an update summary.
type SeriesDelta struct {
	SeriesID uint64                      `json:"seriesId"`
	Rows     []*chartdata.PlotRow        `json:"rows"`
	Info     *chartdata.SeriesUpdateInfo `json:"info,omitempty"`
}

// UpdateSummary is the wire form of a data layer delta.
type UpdateSummary struct {
	Series                 []SeriesDelta `json:"series"`
	BaseIndex              *int          `json:"baseIndex"`
	FirstChangedPointIndex int           `json:"firstChangedPointIndex"`
	TimeScaleChanged       bool          `json:"timeScaleChanged"`
	PointCount             int           `json:"pointCount"`
}

// Options configures the service.
type Options struct {
	StrictTime    bool
	FrameInterval time.Duration
	Journal       *storage.Journal // nil disables journaling
	Broker        *stream.Broker   // nil disables streaming
}

type chartEntry struct {
	id        string
	name      string
	createdAt time.Time
	eng       *engine.Engine
}

// Service owns the chart registry and routes API calls to engines.
type Service struct {
	opts Options

	mu     sync.RWMutex
	charts map[string]*chartEntry
}

// New builds an empty service.
func New(opts Options) *Service {
	return &Service{opts: opts, charts: make(map[string]*chartEntry)}
}

func (s *Service) requireNonEmpty(value, field string) error {
	if strings.TrimSpace(value) == "" {
		return chartdata.NewError(chartdata.CodeValidation, field+" is required", nil)
	}
	return nil
}

func newChartID() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("chart-%d", time.Now().UnixNano())
	}
	return "chart-" + hex.EncodeToString(buf)
}

func (s *Service) lookup(chartID string) (*chartEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.charts[chartID]
	if !ok {
		return nil, chartdata.NewError(chartdata.CodeChartNotFound, fmt.Sprintf("chart %q not found", chartID), nil)
	}
	return entry, nil
}

// CreateChart registers a new chart engine.
func (s *Service) CreateChart(_ context.Context, name string) (ChartInfo, error) {
	if err := s.requireNonEmpty(name, "name"); err != nil {
		return ChartInfo{}, err
	}

	entry := &chartEntry{
		id:        newChartID(),
		name:      strings.TrimSpace(name),
		createdAt: time.Now().UTC(),
		eng:       engine.New(engine.Options{StrictTime: s.opts.StrictTime, FrameInterval: s.opts.FrameInterval}),
	}

	// fan applied updates out to the stream and the journal; the listener
	// is linked to the entry so chart deletion drops it
	chartID := entry.id
	entry.eng.OnDataAppliedLinked(func(ev engine.UpdateEvent) {
		if s.opts.Broker != nil {
			s.opts.Broker.Publish(stream.Event{ChartID: chartID, Update: ev})
		}
		if s.opts.Journal != nil {
			rec := storage.Record{
				At:                     time.Now().UTC(),
				ChartID:                chartID,
				SeriesID:               ev.SeriesID,
				Op:                     ev.Op,
				BaseIndex:              ev.BaseIndex,
				FirstChangedPointIndex: ev.FirstChangedPointIndex,
				TimeScaleChanged:       ev.TimeScaleChanged,
				PointCount:             ev.PointCount,
				RowCount:               ev.RowCount,
			}
			if err := s.opts.Journal.Write(rec); err != nil {
				slog.Debug("journal write skipped", "chart_id", chartID, "error", err)
			}
		}
	}, entry)

	s.mu.Lock()
	s.charts[entry.id] = entry
	s.mu.Unlock()

	slog.Info("chart created", "chart_id", entry.id, "name", entry.name)
	return ChartInfo{ChartID: entry.id, Name: entry.name, CreatedAt: entry.createdAt}, nil
}

// ListCharts returns all charts sorted by creation time.
func (s *Service) ListCharts(_ context.Context) ([]ChartInfo, error) {
	s.mu.RLock()
	entries := make([]*chartEntry, 0, len(s.charts))
	for _, e := range s.charts {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].createdAt.Before(entries[j].createdAt) })
	out := make([]ChartInfo, 0, len(entries))
	for _, e := range entries {
		count := 0
		if list, err := e.eng.ListSeries(); err == nil {
			count = len(list)
		}
		out = append(out, ChartInfo{ChartID: e.id, Name: e.name, CreatedAt: e.createdAt, Series: count})
	}
	return out, nil
}

// DeleteChart destroys a chart engine and unregisters it.
func (s *Service) DeleteChart(_ context.Context, chartID string) error {
	s.mu.Lock()
	entry, ok := s.charts[chartID]
	if ok {
		delete(s.charts, chartID)
	}
	s.mu.Unlock()
	if !ok {
		return chartdata.NewError(chartdata.CodeChartNotFound, fmt.Sprintf("chart %q not found", chartID), nil)
	}

	entry.eng.UnsubscribeDataApplied(entry)
	entry.eng.Destroy()
	slog.Info("chart deleted", "chart_id", chartID)
	return nil
}

// AddSeries adds a series of the given type on a pane.
func (s *Service) AddSeries(_ context.Context, chartID string, seriesType chartdata.SeriesType, pane int) (engine.SeriesInfo, error) {
	entry, err := s.lookup(chartID)
	if err != nil {
		return engine.SeriesInfo{}, err
	}
	return entry.eng.AddSeries(seriesType, pane)
}

// ListSeries lists a chart's series.
func (s *Service) ListSeries(_ context.Context, chartID string) ([]engine.SeriesInfo, error) {
	entry, err := s.lookup(chartID)
	if err != nil {
		return nil, err
	}
	return entry.eng.ListSeries()
}

// RemoveSeries wipes and unregisters a series.
func (s *Service) RemoveSeries(_ context.Context, chartID string, seriesID uint64) (UpdateSummary, error) {
	entry, err := s.lookup(chartID)
	if err != nil {
		return UpdateSummary{}, err
	}
	resp, err := entry.eng.RemoveSeries(seriesID)
	if err != nil {
		return UpdateSummary{}, err
	}
	return summarize(resp), nil
}

// SetSeriesData replaces a series' dataset.
func (s *Service) SetSeriesData(_ context.Context, chartID string, seriesID uint64, items []chartdata.DataItem) (UpdateSummary, error) {
	entry, err := s.lookup(chartID)
	if err != nil {
		return UpdateSummary{}, err
	}
	resp, err := entry.eng.SetSeriesData(seriesID, items)
	if err != nil {
		return UpdateSummary{}, err
	}
	return summarize(resp), nil
}

// UpdateSeriesData applies a single-point update.
func (s *Service) UpdateSeriesData(_ context.Context, chartID string, seriesID uint64, item chartdata.DataItem) (UpdateSummary, error) {
	entry, err := s.lookup(chartID)
	if err != nil {
		return UpdateSummary{}, err
	}
	resp, err := entry.eng.UpdateSeriesData(seriesID, item)
	if err != nil {
		return UpdateSummary{}, err
	}
	return summarize(resp), nil
}

// GetSeriesData returns a series' current rows.
func (s *Service) GetSeriesData(_ context.Context, chartID string, seriesID uint64) ([]*chartdata.PlotRow, error) {
	entry, err := s.lookup(chartID)
	if err != nil {
		return nil, err
	}
	rows, err := entry.eng.SeriesRows(seriesID)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []*chartdata.PlotRow{}
	}
	return rows, nil
}

// GetTimeScale snapshots a chart's time scale.
func (s *Service) GetTimeScale(_ context.Context, chartID string, includePoints bool) (engine.TimeScaleInfo, error) {
	entry, err := s.lookup(chartID)
	if err != nil {
		return engine.TimeScaleInfo{}, err
	}
	return entry.eng.TimeScale(includePoints)
}

// GetPanes returns a chart's pane topology.
func (s *Service) GetPanes(_ context.Context, chartID string) ([]engine.PaneInfo, error) {
	entry, err := s.lookup(chartID)
	if err != nil {
		return nil, err
	}
	return entry.eng.PaneInfos()
}

// FitContent queues a fit-content on the chart's time scale.
func (s *Service) FitContent(_ context.Context, chartID string) error {
	entry, err := s.lookup(chartID)
	if err != nil {
		return err
	}
	return entry.eng.FitContent()
}

// SetVisibleRange queues an explicit visible logical range.
func (s *Service) SetVisibleRange(_ context.Context, chartID string, from, to float64) error {
	entry, err := s.lookup(chartID)
	if err != nil {
		return err
	}
	return entry.eng.SetVisibleLogicalRange(chartmodel.LogicalRange{From: from, To: to})
}

// SetBarSpacing queues a bar spacing change.
func (s *Service) SetBarSpacing(_ context.Context, chartID string, spacing float64) error {
	entry, err := s.lookup(chartID)
	if err != nil {
		return err
	}
	return entry.eng.SetBarSpacing(spacing)
}

// SetRightOffset queues a right offset change.
func (s *Service) SetRightOffset(_ context.Context, chartID string, offset float64) error {
	entry, err := s.lookup(chartID)
	if err != nil {
		return err
	}
	return entry.eng.SetRightOffset(offset)
}

// ResetTimeScale queues a time scale reset.
func (s *Service) ResetTimeScale(_ context.Context, chartID string) error {
	entry, err := s.lookup(chartID)
	if err != nil {
		return err
	}
	return entry.eng.ResetTimeScale()
}

// FrameStats reports a chart's scheduler counters.
func (s *Service) FrameStats(_ context.Context, chartID string) (render.FrameStats, error) {
	entry, err := s.lookup(chartID)
	if err != nil {
		return render.FrameStats{}, err
	}
	return entry.eng.FrameStats()
}

// Close destroys every chart.
func (s *Service) Close() {
	s.mu.Lock()
	entries := make([]*chartEntry, 0, len(s.charts))
	for id, e := range s.charts {
		entries = append(entries, e)
		delete(s.charts, id)
	}
	s.mu.Unlock()
	for _, e := range entries {
		e.eng.Destroy()
	}
}

func summarize(resp chartdata.DataUpdateResponse) UpdateSummary {
	out := UpdateSummary{
		BaseIndex:              resp.TimeScale.BaseIndex,
		FirstChangedPointIndex: resp.TimeScale.FirstChangedPointIndex,
		TimeScaleChanged:       resp.TimeScale.FirstChangedPointIndex >= 0,
		PointCount:             len(resp.TimeScale.Points),
	}
	for series, changes := range resp.Series {
		rows := changes.Data
		if rows == nil {
			rows = []*chartdata.PlotRow{}
		}
		out.Series = append(out.Series, SeriesDelta{SeriesID: series.ID(), Rows: rows, Info: changes.Info})
	}
	sort.Slice(out.Series, func(i, j int) bool { return out.Series[i].SeriesID < out.Series[j].SeriesID })
	return out
}
