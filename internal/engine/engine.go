// Package engine glues the data layer, the invalidation pipeline and the
// paint scheduler into one chart instance.
package engine

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgnsrekt/chartcore/internal/chartdata"
	"github.com/dgnsrekt/chartcore/internal/chartmodel"
	"github.com/dgnsrekt/chartcore/internal/delegate"
	"github.com/dgnsrekt/chartcore/internal/render"
)

const (
	defaultBarSpacing = 6.0
	minBarSpacing     = 0.5
)

// Renderer is the opaque paint surface the engine draws into each frame.
type Renderer interface {
	PaintPane(paneIndex int, level chartmodel.InvalidationLevel, autoScale bool)
	PaintTimeAxis()
}

type nopRenderer struct{}

func (nopRenderer) PaintPane(int, chartmodel.InvalidationLevel, bool) {}
func (nopRenderer) PaintTimeAxis()                                    {}

// Options configures a chart engine instance.
type Options struct {
	// StrictTime rejects out-of-range calendar components in date strings.
	StrictTime bool
	// FrameInterval is the paint coalescing window; zero means the default.
	FrameInterval time.Duration
	// Renderer receives per-frame paint calls; nil installs a no-op.
	Renderer Renderer
}

// UpdateEvent summarizes one applied data mutation for observers.
type UpdateEvent struct {
	SeriesID               uint64                      `json:"seriesId"`
	Op                     string                      `json:"op"`
	BaseIndex              *int                        `json:"baseIndex"`
	FirstChangedPointIndex int                         `json:"firstChangedPointIndex"`
	TimeScaleChanged       bool                        `json:"timeScaleChanged"`
	PointCount             int                         `json:"pointCount"`
	RowCount               int                         `json:"rowCount"`
	Info                   *chartdata.SeriesUpdateInfo `json:"info,omitempty"`
}

// SeriesInfo describes one registered series.
type SeriesInfo struct {
	ID   uint64               `json:"id"`
	Type chartdata.SeriesType `json:"type"`
	Pane int                  `json:"pane"`
	Rows int                  `json:"rows"`
}

// PaneInfo describes one pane after the last topology sync.
type PaneInfo struct {
	Index      int      `json:"index"`
	SeriesIDs  []uint64 `json:"seriesIds"`
	PriceMin   *float64 `json:"priceMin,omitempty"`
	PriceMax   *float64 `json:"priceMax,omitempty"`
	Autoscaled bool     `json:"autoscaled"`
}

// TimeScaleInfo is a read-only snapshot of the time scale state.
type TimeScaleInfo struct {
	BarSpacing   float64                    `json:"barSpacing"`
	RightOffset  float64                    `json:"rightOffset"`
	VisibleRange *chartmodel.LogicalRange   `json:"visibleRange,omitempty"`
	BaseIndex    *int                       `json:"baseIndex"`
	PointCount   int                        `json:"pointCount"`
	Points       []chartdata.TimeScalePoint `json:"points,omitempty"`
}

type pane struct {
	index      int
	seriesIDs  []uint64
	priceRange *chartmodel.PriceRange
	autoscaled bool
}

type timeScaleState struct {
	barSpacing   float64
	rightOffset  float64
	visibleRange *chartmodel.LogicalRange
	baseIndex    *int
	points       []chartdata.TimeScalePoint
}

// Engine owns one chart: the data layer, pane topology, time scale state
// and the paint scheduler. All mutators are synchronous; rendering effects
// land no earlier than the next frame.
type Engine struct {
	mu         sync.Mutex
	layer      *chartdata.DataLayer
	seriesByID map[uint64]*chartdata.Series
	panes      []*pane
	ts         timeScaleState
	renderer   Renderer
	sched      *render.Scheduler
	destroyed  bool

	axisUpdates uint64

	dataApplied     *delegate.Delegate[UpdateEvent]
	destroyedEvents *delegate.Delegate[struct{}]
}

// New builds an engine and starts its frame scheduler.
func New(opts Options) *Engine {
	renderer := opts.Renderer
	if renderer == nil {
		renderer = nopRenderer{}
	}
	e := &Engine{
		layer:           chartdata.NewDataLayer(opts.StrictTime),
		seriesByID:      make(map[uint64]*chartdata.Series),
		panes:           []*pane{{index: 0}},
		ts:              timeScaleState{barSpacing: defaultBarSpacing},
		renderer:        renderer,
		dataApplied:     delegate.New[UpdateEvent](),
		destroyedEvents: delegate.New[struct{}](),
	}
	e.sched = render.NewScheduler(e, opts.FrameInterval)
	return e
}

// OnDataApplied subscribes to applied-update events.
func (e *Engine) OnDataApplied(fn func(UpdateEvent)) { e.dataApplied.Subscribe(fn) }

// OnDataAppliedLinked subscribes with an owner for bulk unsubscribe.
func (e *Engine) OnDataAppliedLinked(fn func(UpdateEvent), owner any) {
	e.dataApplied.SubscribeLinked(fn, owner)
}

// UnsubscribeDataApplied drops all listeners owned by owner.
func (e *Engine) UnsubscribeDataApplied(owner any) { e.dataApplied.UnsubscribeAll(owner) }

// OnDestroyed subscribes to the destruction event.
func (e *Engine) OnDestroyed(fn func(struct{})) { e.destroyedEvents.Subscribe(fn) }

func (e *Engine) guard() error {
	if e.destroyed {
		return chartdata.NewError(chartdata.CodeEngineDestroyed, "engine is destroyed", nil)
	}
	return nil
}

// AddSeries registers a series on a pane and schedules a full repaint.
func (e *Engine) AddSeries(t chartdata.SeriesType, paneIndex int) (SeriesInfo, error) {
	if paneIndex < 0 {
		return SeriesInfo{}, chartdata.NewError(chartdata.CodeValidation, "pane index must not be negative", nil)
	}
	e.mu.Lock()
	if err := e.guard(); err != nil {
		e.mu.Unlock()
		return SeriesInfo{}, err
	}
	s := chartdata.NewSeries(t)
	s.Pane = paneIndex
	e.seriesByID[s.ID()] = s
	e.syncPanesLocked()
	e.mu.Unlock()

	e.sched.Invalidate(chartmodel.NewInvalidateMask(chartmodel.LevelFull))
	return SeriesInfo{ID: s.ID(), Type: s.Type(), Pane: paneIndex}, nil
}

func (e *Engine) lookupSeries(id uint64) (*chartdata.Series, error) {
	s, ok := e.seriesByID[id]
	if !ok {
		return nil, chartdata.NewError(chartdata.CodeSeriesNotFound, fmt.Sprintf("series %d not found", id), nil)
	}
	return s, nil
}

// SetSeriesData replaces a series' dataset.
func (e *Engine) SetSeriesData(id uint64, items []chartdata.DataItem) (chartdata.DataUpdateResponse, error) {
	return e.mutate(id, "set", func(s *chartdata.Series) (chartdata.DataUpdateResponse, error) {
		return e.layer.SetSeriesData(s, items)
	})
}

// UpdateSeriesData applies a single-point update.
func (e *Engine) UpdateSeriesData(id uint64, item chartdata.DataItem) (chartdata.DataUpdateResponse, error) {
	return e.mutate(id, "update", func(s *chartdata.Series) (chartdata.DataUpdateResponse, error) {
		return e.layer.UpdateSeriesData(s, item)
	})
}

// RemoveSeries wipes a series' data and unregisters it.
func (e *Engine) RemoveSeries(id uint64) (chartdata.DataUpdateResponse, error) {
	resp, err := e.mutate(id, "remove", func(s *chartdata.Series) (chartdata.DataUpdateResponse, error) {
		return e.layer.RemoveSeries(s)
	})
	if err != nil {
		return resp, err
	}
	e.mu.Lock()
	delete(e.seriesByID, id)
	e.syncPanesLocked()
	e.mu.Unlock()
	e.sched.Invalidate(chartmodel.NewInvalidateMask(chartmodel.LevelFull))
	return resp, nil
}

func (e *Engine) mutate(id uint64, op string, fn func(*chartdata.Series) (chartdata.DataUpdateResponse, error)) (chartdata.DataUpdateResponse, error) {
	e.mu.Lock()
	if err := e.guard(); err != nil {
		e.mu.Unlock()
		return chartdata.DataUpdateResponse{}, err
	}
	s, err := e.lookupSeries(id)
	if err != nil {
		e.mu.Unlock()
		return chartdata.DataUpdateResponse{}, err
	}
	resp, err := fn(s)
	if err != nil {
		e.mu.Unlock()
		return chartdata.DataUpdateResponse{}, err
	}

	event := e.applyUpdateResponseLocked(s, op, resp)
	e.mu.Unlock()

	// listeners run without the engine lock so they may call back in
	e.dataApplied.Fire(event)
	return resp, nil
}

// applyUpdateResponseLocked folds a data layer delta into the model state
// and enqueues the matching invalidation mask.
func (e *Engine) applyUpdateResponseLocked(s *chartdata.Series, op string, resp chartdata.DataUpdateResponse) UpdateEvent {
	e.ts.baseIndex = resp.TimeScale.BaseIndex

	timeScaleChanged := resp.TimeScale.FirstChangedPointIndex >= 0
	var mask *chartmodel.InvalidateMask
	if timeScaleChanged {
		e.ts.points = resp.TimeScale.Points
		mask = chartmodel.NewInvalidateMask(chartmodel.LevelFull)
		mask.InvalidatePane(s.Pane, chartmodel.PaneInvalidation{Level: chartmodel.LevelFull, AutoScale: true})
	} else {
		mask = chartmodel.NewInvalidateMask(chartmodel.LevelLight)
		mask.InvalidatePane(s.Pane, chartmodel.PaneInvalidation{Level: chartmodel.LevelLight, AutoScale: true})
	}
	e.sched.Invalidate(mask)

	rowCount := 0
	if changes, ok := resp.Series[s]; ok {
		rowCount = len(changes.Data)
	}
	var info *chartdata.SeriesUpdateInfo
	if changes, ok := resp.Series[s]; ok {
		info = changes.Info
	}
	return UpdateEvent{
		SeriesID:               s.ID(),
		Op:                     op,
		BaseIndex:              resp.TimeScale.BaseIndex,
		FirstChangedPointIndex: resp.TimeScale.FirstChangedPointIndex,
		TimeScaleChanged:       timeScaleChanged,
		PointCount:             len(e.ts.points),
		RowCount:               rowCount,
		Info:                   info,
	}
}

// SeriesRows returns a series' current value-bearing rows.
func (e *Engine) SeriesRows(id uint64) ([]*chartdata.PlotRow, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guard(); err != nil {
		return nil, err
	}
	s, err := e.lookupSeries(id)
	if err != nil {
		return nil, err
	}
	return e.layer.SeriesRows(s), nil
}

// ListSeries returns the registered series ordered by ID.
func (e *Engine) ListSeries() ([]SeriesInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guard(); err != nil {
		return nil, err
	}
	out := make([]SeriesInfo, 0, len(e.seriesByID))
	for _, s := range e.seriesByID {
		out = append(out, SeriesInfo{ID: s.ID(), Type: s.Type(), Pane: s.Pane, Rows: len(e.layer.SeriesRows(s))})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// PaneInfos returns the pane topology from the last sync.
func (e *Engine) PaneInfos() ([]PaneInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guard(); err != nil {
		return nil, err
	}
	out := make([]PaneInfo, 0, len(e.panes))
	for _, p := range e.panes {
		info := PaneInfo{Index: p.index, SeriesIDs: append([]uint64(nil), p.seriesIDs...), Autoscaled: p.autoscaled}
		if p.priceRange != nil {
			minV, maxV := p.priceRange.MinValue(), p.priceRange.MaxValue()
			info.PriceMin, info.PriceMax = &minV, &maxV
		}
		out = append(out, info)
	}
	return out, nil
}

// TimeScale snapshots the time scale. includePoints controls whether the
// full sorted point list rides along.
func (e *Engine) TimeScale(includePoints bool) (TimeScaleInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.guard(); err != nil {
		return TimeScaleInfo{}, err
	}
	info := TimeScaleInfo{
		BarSpacing:  e.ts.barSpacing,
		RightOffset: e.ts.rightOffset,
		BaseIndex:   e.ts.baseIndex,
		PointCount:  len(e.ts.points),
	}
	if e.ts.visibleRange != nil {
		r := *e.ts.visibleRange
		info.VisibleRange = &r
	}
	if includePoints {
		info.Points = e.ts.points
	}
	return info, nil
}

// FitContent queues a fit of the whole dataset into view.
func (e *Engine) FitContent() error {
	return e.queueTimeScale(func(mask *chartmodel.InvalidateMask) { mask.SetFitContent() })
}

// SetVisibleLogicalRange queues an explicit visible range.
func (e *Engine) SetVisibleLogicalRange(r chartmodel.LogicalRange) error {
	if r.From > r.To {
		return chartdata.NewError(chartdata.CodeValidation, "visible range from must not exceed to", nil)
	}
	return e.queueTimeScale(func(mask *chartmodel.InvalidateMask) { mask.ApplyRange(r) })
}

// SetBarSpacing queues a bar spacing change.
func (e *Engine) SetBarSpacing(spacing float64) error {
	if spacing <= 0 {
		return chartdata.NewError(chartdata.CodeValidation, "bar spacing must be positive", nil)
	}
	return e.queueTimeScale(func(mask *chartmodel.InvalidateMask) { mask.SetBarSpacing(spacing) })
}

// SetRightOffset queues a right offset change.
func (e *Engine) SetRightOffset(offset float64) error {
	return e.queueTimeScale(func(mask *chartmodel.InvalidateMask) { mask.SetRightOffset(offset) })
}

// ResetTimeScale queues a reset to defaults.
func (e *Engine) ResetTimeScale() error {
	return e.queueTimeScale(func(mask *chartmodel.InvalidateMask) { mask.ResetTimeScale() })
}

func (e *Engine) queueTimeScale(build func(*chartmodel.InvalidateMask)) error {
	e.mu.Lock()
	if err := e.guard(); err != nil {
		e.mu.Unlock()
		return err
	}
	e.mu.Unlock()
	mask := chartmodel.NewInvalidateMask(chartmodel.LevelLight)
	build(mask)
	e.sched.Invalidate(mask)
	return nil
}

// FrameStats reports scheduler counters.
func (e *Engine) FrameStats() (render.FrameStats, error) {
	e.mu.Lock()
	if err := e.guard(); err != nil {
		e.mu.Unlock()
		return render.FrameStats{}, err
	}
	e.mu.Unlock()
	return e.sched.Stats(), nil
}

// Destroy cancels the pending frame, clears all state and fires the
// destroyed event. Further operations fail with ENGINE_DESTROYED.
func (e *Engine) Destroy() {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}
	e.destroyed = true
	e.mu.Unlock()

	// the scheduler may be mid-drain and needs the engine lock, so the
	// wait happens outside of it
	e.sched.Destroy()

	e.mu.Lock()
	e.layer.Destroy()
	e.seriesByID = make(map[uint64]*chartdata.Series)
	e.panes = nil
	e.ts = timeScaleState{barSpacing: defaultBarSpacing}
	e.mu.Unlock()

	e.destroyedEvents.Fire(struct{}{})
	e.dataApplied.Destroy()
	e.destroyedEvents.Destroy()
}

// --- render.Surface ---

// SyncPanes rebuilds the pane topology from the registered series.
func (e *Engine) SyncPanes() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return
	}
	e.syncPanesLocked()
}

func (e *Engine) syncPanesLocked() {
	paneCount := 1
	for _, s := range e.seriesByID {
		if s.Pane+1 > paneCount {
			paneCount = s.Pane + 1
		}
	}
	prev := make(map[int]*pane, len(e.panes))
	for _, p := range e.panes {
		prev[p.index] = p
	}
	panes := make([]*pane, paneCount)
	for i := range panes {
		if p, ok := prev[i]; ok {
			p.seriesIDs = p.seriesIDs[:0]
			panes[i] = p
		} else {
			panes[i] = &pane{index: i}
		}
	}
	ids := make([]uint64, 0, len(e.seriesByID))
	for id := range e.seriesByID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		s := e.seriesByID[id]
		panes[s.Pane].seriesIDs = append(panes[s.Pane].seriesIDs, id)
	}
	e.panes = panes
}

// ApplyTimeScale folds queued mutations into the time scale state, in list
// order.
func (e *Engine) ApplyTimeScale(invalidations []chartmodel.TimeScaleInvalidation) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return
	}
	for _, inv := range invalidations {
		switch inv.Type {
		case chartmodel.TimeScaleFitContent:
			if n := len(e.ts.points); n > 0 {
				e.ts.visibleRange = &chartmodel.LogicalRange{From: 0, To: float64(n - 1)}
			} else {
				e.ts.visibleRange = nil
			}
		case chartmodel.TimeScaleApplyRange:
			r := *inv.LogicalRange
			e.ts.visibleRange = &r
		case chartmodel.TimeScaleApplyBarSpacing:
			e.ts.barSpacing = max(inv.Value, minBarSpacing)
		case chartmodel.TimeScaleApplyRightOffset:
			e.ts.rightOffset = inv.Value
		case chartmodel.TimeScaleReset:
			e.ts.barSpacing = defaultBarSpacing
			e.ts.rightOffset = 0
			e.ts.visibleRange = nil
		}
	}
}

// AutoScale recomputes a pane's price range from its series rows.
func (e *Engine) AutoScale(paneIndex int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed || paneIndex < 0 || paneIndex >= len(e.panes) {
		return
	}
	p := e.panes[paneIndex]
	var merged *chartmodel.PriceRange
	for _, id := range p.seriesIDs {
		s := e.seriesByID[id]
		if s == nil {
			continue
		}
		merged = merged.Merge(seriesPriceRange(e.layer.SeriesRows(s)))
	}
	p.priceRange = merged
	p.autoscaled = merged != nil
}

func seriesPriceRange(rows []*chartdata.PlotRow) *chartmodel.PriceRange {
	var r *chartmodel.PriceRange
	for _, row := range rows {
		if row.IsWhitespace() {
			continue
		}
		low := (*row.Value)[chartdata.PlotLow]
		high := (*row.Value)[chartdata.PlotHigh]
		r = r.Merge(chartmodel.NewPriceRange(low, high))
	}
	return r
}

// UpdateAxes refreshes the axis widgets. The headless engine only tracks
// that it happened.
func (e *Engine) UpdateAxes() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.axisUpdates++
}

// Panes lists pane indexes for the paint pass.
func (e *Engine) Panes() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]int, len(e.panes))
	for i, p := range e.panes {
		out[i] = p.index
	}
	return out
}

// PaintPane forwards a pane paint to the renderer.
func (e *Engine) PaintPane(paneIndex int, inv chartmodel.PaneInvalidation) {
	e.renderer.PaintPane(paneIndex, inv.Level, inv.AutoScale)
}

// PaintTimeAxis forwards the axis paint to the renderer.
func (e *Engine) PaintTimeAxis() {
	e.renderer.PaintTimeAxis()
}
